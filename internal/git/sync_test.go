package git

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
)

func TestSynchronizer_Fetch(t *testing.T) {
	s := NewSynchronizer("", zap.NewNop().Sugar())

	t.Run("success - fetches branch tip from local origin", func(t *testing.T) {
		if _, err := exec.LookPath("git-upload-pack"); err != nil {
			t.Skip("git-upload-pack not available")
		}
		// arrange
		upstreamDir, upstream := initRepo(t)
		commitFile(t, upstreamDir, upstream, "a.txt", "one\n")
		localDir := filepath.Join(t.TempDir(), "local")
		_, err := gogit.PlainClone(localDir, false, &gogit.CloneOptions{URL: upstreamDir})
		require.NoError(t, err)
		tip := commitFile(t, upstreamDir, upstream, "a.txt", "two\n")

		// act
		fetched, err := s.Fetch(context.Background(), localDir, "master", "")

		// assert
		require.NoError(t, err)
		assert.Equal(t, tip, fetched.Hash)
		assert.Equal(t, "master", fetched.Branch)
		assert.Equal(t, "tester", fetched.Author)
		assert.Equal(t, "update a.txt", fetched.Message)
	})
	t.Run("failure - missing repository", func(t *testing.T) {
		// act
		_, err := s.Fetch(context.Background(), filepath.Join(t.TempDir(), "missing"), "master", "")

		// assert
		var gitErr *Error
		require.ErrorAs(t, err, &gitErr)
		assert.Equal(t, "open", gitErr.Op)
		assert.ErrorIs(t, err, gogit.ErrRepositoryNotExists)
	})
	t.Run("failure - repository without origin", func(t *testing.T) {
		// arrange
		dir, _ := initRepo(t)

		// act
		_, err := s.Fetch(context.Background(), dir, "master", "")

		// assert
		var gitErr *Error
		require.ErrorAs(t, err, &gitErr)
		assert.Equal(t, "remote", gitErr.Op)
		assert.ErrorIs(t, err, gogit.ErrRemoteNotFound)
	})
	t.Run("failure - ssh origin with missing key", func(t *testing.T) {
		// arrange
		dir, repo := initRepo(t)
		_, err := repo.CreateRemote(&config.RemoteConfig{
			Name: RemoteName,
			URLs: []string{"git@github.com:owner/name.git"},
		})
		require.NoError(t, err)

		// act
		_, err = s.Fetch(context.Background(), dir, "master", filepath.Join(t.TempDir(), "id_ed25519"))

		// assert
		var gitErr *Error
		require.ErrorAs(t, err, &gitErr)
		assert.Equal(t, "auth", gitErr.Op)
	})
}

func writePrivateKey(t *testing.T) string {
	t.Helper()
	_, key, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	block, err := ssh.MarshalPrivateKey(key, "")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0o600))
	return path
}

func TestSynchronizer_authMethod(t *testing.T) {
	t.Run("success - local remotes need no auth", func(t *testing.T) {
		// arrange
		s := NewSynchronizer("", zap.NewNop().Sugar())

		// act
		auth, err := s.authMethod("/srv/upstream", "")

		// assert
		assert.NoError(t, err)
		assert.Nil(t, auth)
	})
	t.Run("success - ssh remotes use public keys", func(t *testing.T) {
		// arrange
		s := NewSynchronizer("", zap.NewNop().Sugar())
		keyPath := writePrivateKey(t)

		// act
		auth, err := s.authMethod("ssh://deploy@example.com/owner/name.git", keyPath)

		// assert
		require.NoError(t, err)
		keys, ok := auth.(*gitssh.PublicKeys)
		require.True(t, ok)
		assert.Equal(t, "deploy", keys.User)
		assert.Nil(t, keys.HostKeyCallback)
	})
	t.Run("success - scp-like remotes default to git user with known hosts", func(t *testing.T) {
		// arrange
		knownHosts := filepath.Join(t.TempDir(), "known_hosts")
		require.NoError(t, os.WriteFile(knownHosts, nil, 0o600))
		s := NewSynchronizer(knownHosts, zap.NewNop().Sugar())
		keyPath := writePrivateKey(t)

		// act
		auth, err := s.authMethod("git@github.com:owner/name.git", keyPath)

		// assert
		require.NoError(t, err)
		keys, ok := auth.(*gitssh.PublicKeys)
		require.True(t, ok)
		assert.Equal(t, "git", keys.User)
		assert.NotNil(t, keys.HostKeyCallback)
	})
	t.Run("failure - missing known hosts file", func(t *testing.T) {
		// arrange
		s := NewSynchronizer(filepath.Join(t.TempDir(), "known_hosts"), zap.NewNop().Sugar())
		keyPath := writePrivateKey(t)

		// act
		_, err := s.authMethod("git@github.com:owner/name.git", keyPath)

		// assert
		assert.Error(t, err)
	})
}
