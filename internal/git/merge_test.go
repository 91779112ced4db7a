package git

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testSignature() *object.Signature {
	return &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Now()}
}

func initRepo(t *testing.T) (string, *gogit.Repository) {
	t.Helper()
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	return dir, repo
}

func commitFile(t *testing.T, dir string, repo *gogit.Repository, name, content string) plumbing.Hash {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(dir, name)), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(name)
	require.NoError(t, err)
	hash, err := wt.Commit("update "+name, &gogit.CommitOptions{Author: testSignature()})
	require.NoError(t, err)
	return hash
}

func resetBranch(t *testing.T, repo *gogit.Repository, hash plumbing.Hash) {
	t.Helper()
	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, wt.Reset(&gogit.ResetOptions{Commit: hash, Mode: gogit.HardReset}))
}

func branchHash(t *testing.T, repo *gogit.Repository, branch string) plumbing.Hash {
	t.Helper()
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	require.NoError(t, err)
	return ref.Hash()
}

func readFile(t *testing.T, dir, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	return string(b)
}

// diverge creates base, a local commit and a remote commit on top of base,
// leaving master at the local commit.
func diverge(
	t *testing.T, dir string, repo *gogit.Repository,
	local, remote map[string]string,
) (plumbing.Hash, plumbing.Hash) {
	t.Helper()
	base := commitFile(t, dir, repo, "a.txt", "base\n")

	var localHash plumbing.Hash
	for name, content := range local {
		localHash = commitFile(t, dir, repo, name, content)
	}
	resetBranch(t, repo, base)
	var remoteHash plumbing.Hash
	for name, content := range remote {
		remoteHash = commitFile(t, dir, repo, name, content)
	}
	resetBranch(t, repo, localHash)
	return localHash, remoteHash
}

func writeCommit(
	t *testing.T, dir string, repo *gogit.Repository, name, content string, perm os.FileMode,
) plumbing.Hash {
	t.Helper()
	full := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(full, []byte(content), perm))
	require.NoError(t, os.Chmod(full, perm))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(name)
	require.NoError(t, err)
	hash, err := wt.Commit("update "+name, &gogit.CommitOptions{Author: testSignature()})
	require.NoError(t, err)
	return hash
}

// divergeFile commits base content of name, then a local and a remote
// version of it on top of base, leaving master at the local commit.
func divergeFile(
	t *testing.T, dir string, repo *gogit.Repository,
	name, base, local, remote string, perm os.FileMode,
) (plumbing.Hash, plumbing.Hash) {
	t.Helper()
	baseHash := writeCommit(t, dir, repo, name, base, perm)
	localHash := writeCommit(t, dir, repo, name, local, perm)
	resetBranch(t, repo, baseHash)
	remoteHash := writeCommit(t, dir, repo, name, remote, perm)
	resetBranch(t, repo, localHash)
	return localHash, remoteHash
}

func TestSynchronizer_Merge(t *testing.T) {
	s := NewSynchronizer("", zap.NewNop().Sugar())

	t.Run("success - fast-forward moves branch and checks out", func(t *testing.T) {
		// arrange
		dir, repo := initRepo(t)
		first := commitFile(t, dir, repo, "a.txt", "one\n")
		second := commitFile(t, dir, repo, "a.txt", "two\n")
		resetBranch(t, repo, first)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("dirty\n"), 0o644))

		// act
		result, err := s.Merge(dir, "master", &FetchedCommit{Branch: "master", Hash: second})

		// assert
		require.NoError(t, err)
		assert.Equal(t, FastForward, result.Analysis)
		assert.Equal(t, second, result.Head)
		assert.Equal(t, second, branchHash(t, repo, "master"))
		assert.Equal(t, "two\n", readFile(t, dir, "a.txt"))
	})
	t.Run("success - fetched ancestor is up to date", func(t *testing.T) {
		// arrange
		dir, repo := initRepo(t)
		first := commitFile(t, dir, repo, "a.txt", "one\n")
		second := commitFile(t, dir, repo, "a.txt", "two\n")

		// act
		result, err := s.Merge(dir, "master", &FetchedCommit{Branch: "master", Hash: first})

		// assert
		require.NoError(t, err)
		assert.Equal(t, UpToDate, result.Analysis)
		assert.Equal(t, second, branchHash(t, repo, "master"))
	})
	t.Run("success - missing branch is created at fetched commit", func(t *testing.T) {
		// arrange
		dir, repo := initRepo(t)
		fetched := commitFile(t, dir, repo, "a.txt", "one\n")
		require.NoError(t, repo.Storer.RemoveReference(plumbing.NewBranchReferenceName("master")))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("dirty\n"), 0o644))

		// act
		result, err := s.Merge(dir, "master", &FetchedCommit{Branch: "master", Hash: fetched})

		// assert
		require.NoError(t, err)
		assert.Equal(t, Unborn, result.Analysis)
		assert.Equal(t, fetched, branchHash(t, repo, "master"))
		head, err := repo.Head()
		require.NoError(t, err)
		assert.Equal(t, plumbing.NewBranchReferenceName("master"), head.Name())
		assert.Equal(t, "one\n", readFile(t, dir, "a.txt"))
	})
	t.Run("success - missing non-default branch becomes head", func(t *testing.T) {
		// arrange
		dir, repo := initRepo(t)
		fetched := commitFile(t, dir, repo, "a.txt", "one\n")

		// act
		result, err := s.Merge(dir, "develop", &FetchedCommit{Branch: "develop", Hash: fetched})

		// assert
		require.NoError(t, err)
		assert.Equal(t, Unborn, result.Analysis)
		head, err := repo.Head()
		require.NoError(t, err)
		assert.Equal(t, plumbing.NewBranchReferenceName("develop"), head.Name())
		assert.Equal(t, fetched, head.Hash())
	})
	t.Run("success - diverged branches are merged with two parents", func(t *testing.T) {
		// arrange
		dir, repo := initRepo(t)
		cfg, err := repo.Config()
		require.NoError(t, err)
		cfg.User.Name = "deployer"
		cfg.User.Email = "deployer@example.com"
		require.NoError(t, repo.SetConfig(cfg))
		local, remote := diverge(t, dir, repo,
			map[string]string{"b.txt": "local\n"},
			map[string]string{"c/d.txt": "remote\n"},
		)

		// act
		result, err := s.Merge(dir, "master", &FetchedCommit{Branch: "master", Hash: remote})

		// assert
		require.NoError(t, err)
		assert.Equal(t, Normal, result.Analysis)
		assert.False(t, result.HasConflicts())
		assert.Equal(t, result.Head, branchHash(t, repo, "master"))
		merge, err := repo.CommitObject(result.Head)
		require.NoError(t, err)
		assert.Equal(t, []plumbing.Hash{local, remote}, merge.ParentHashes)
		assert.Equal(t, "deployer", merge.Author.Name)
		assert.Equal(t, "deployer@example.com", merge.Author.Email)
		assert.Equal(t, "base\n", readFile(t, dir, "a.txt"))
		assert.Equal(t, "local\n", readFile(t, dir, "b.txt"))
		assert.Equal(t, "remote\n", readFile(t, dir, "c/d.txt"))
	})
	t.Run("success - identical changes on both sides do not conflict", func(t *testing.T) {
		// arrange
		dir, repo := initRepo(t)
		_, remote := diverge(t, dir, repo,
			map[string]string{"a.txt": "same\n"},
			map[string]string{"a.txt": "same\n"},
		)

		// act
		result, err := s.Merge(dir, "master", &FetchedCommit{Branch: "master", Hash: remote})

		// assert
		require.NoError(t, err)
		assert.False(t, result.HasConflicts())
		assert.Equal(t, "same\n", readFile(t, dir, "a.txt"))
	})
	t.Run("success - remote deletion is applied", func(t *testing.T) {
		// arrange
		dir, repo := initRepo(t)
		commitFile(t, dir, repo, "a.txt", "base\n")
		commitFile(t, dir, repo, "gone.txt", "x\n")
		withGone := branchHash(t, repo, "master")
		local := commitFile(t, dir, repo, "b.txt", "local\n")
		resetBranch(t, repo, withGone)
		wt, err := repo.Worktree()
		require.NoError(t, err)
		_, err = wt.Remove("gone.txt")
		require.NoError(t, err)
		remote, err := wt.Commit("remove gone.txt", &gogit.CommitOptions{Author: testSignature()})
		require.NoError(t, err)
		resetBranch(t, repo, local)

		// act
		result, err := s.Merge(dir, "master", &FetchedCommit{Branch: "master", Hash: remote})

		// assert
		require.NoError(t, err)
		assert.False(t, result.HasConflicts())
		_, err = os.Stat(filepath.Join(dir, "gone.txt"))
		assert.True(t, os.IsNotExist(err))
		assert.Equal(t, "local\n", readFile(t, dir, "b.txt"))
	})
	t.Run("success - conflicts are checked out without a commit", func(t *testing.T) {
		// arrange
		dir, repo := initRepo(t)
		local, remote := diverge(t, dir, repo,
			map[string]string{"a.txt": "local\n"},
			map[string]string{"a.txt": "remote"},
		)

		// act
		result, err := s.Merge(dir, "master", &FetchedCommit{Branch: "master", Hash: remote})

		// assert
		require.NoError(t, err)
		assert.Equal(t, Normal, result.Analysis)
		assert.Equal(t, []string{"a.txt"}, result.Conflicts)
		assert.Equal(t, local, result.Head)
		assert.Equal(t, local, branchHash(t, repo, "master"))
		assert.Equal(t,
			"<<<<<<< HEAD\nlocal\n=======\nremote\n>>>>>>> "+remote.String()[:8]+"\n",
			readFile(t, dir, "a.txt"),
		)
	})
	t.Run("success - disjoint hunks in one file merge with two parents", func(t *testing.T) {
		// arrange
		dir, repo := initRepo(t)
		local, remote := divergeFile(t, dir, repo, "f.txt",
			"1\n2\n3\n4\n5\n6\n7\n8\n9\n10\n",
			"ONE\n2\n3\n4\n5\n6\n7\n8\n9\n10\n",
			"1\n2\n3\n4\n5\n6\n7\n8\n9\nTEN\n",
			0o644,
		)

		// act
		result, err := s.Merge(dir, "master", &FetchedCommit{Branch: "master", Hash: remote})

		// assert
		require.NoError(t, err)
		assert.Equal(t, Normal, result.Analysis)
		assert.False(t, result.HasConflicts())
		assert.Equal(t, result.Head, branchHash(t, repo, "master"))
		merge, err := repo.CommitObject(result.Head)
		require.NoError(t, err)
		assert.Equal(t, []plumbing.Hash{local, remote}, merge.ParentHashes)
		want := "ONE\n2\n3\n4\n5\n6\n7\n8\n9\nTEN\n"
		assert.Equal(t, want, readFile(t, dir, "f.txt"))
		file, err := merge.File("f.txt")
		require.NoError(t, err)
		committed, err := file.Contents()
		require.NoError(t, err)
		assert.Equal(t, want, committed)
		wt, err := repo.Worktree()
		require.NoError(t, err)
		status, err := wt.Status()
		require.NoError(t, err)
		assert.True(t, status.IsClean())
	})
	t.Run("success - overlapping hunks conflict only where they overlap", func(t *testing.T) {
		// arrange
		dir, repo := initRepo(t)
		local, remote := divergeFile(t, dir, repo, "f.txt",
			"1\n2\n3\n4\n5\n6\n7\n8\n9\n10\n",
			"ONE\n2\n3\n4\nFIVE\n6\n7\n8\n9\n10\n",
			"1\n2\n3\n4\nfive\n6\n7\n8\n9\nTEN\n",
			0o644,
		)

		// act
		result, err := s.Merge(dir, "master", &FetchedCommit{Branch: "master", Hash: remote})

		// assert
		require.NoError(t, err)
		assert.Equal(t, []string{"f.txt"}, result.Conflicts)
		assert.Equal(t, local, branchHash(t, repo, "master"))
		assert.Equal(t,
			"ONE\n2\n3\n4\n<<<<<<< HEAD\nFIVE\n=======\nfive\n>>>>>>> "+remote.String()[:8]+"\n6\n7\n8\n9\nTEN\n",
			readFile(t, dir, "f.txt"),
		)
	})
	t.Run("success - conflicted executable keeps its mode", func(t *testing.T) {
		// arrange
		dir, repo := initRepo(t)
		_, remote := divergeFile(t, dir, repo, "deploy.sh",
			"#!/bin/sh\necho base\n",
			"#!/bin/sh\necho local\n",
			"#!/bin/sh\necho remote\n",
			0o755,
		)

		// act
		result, err := s.Merge(dir, "master", &FetchedCommit{Branch: "master", Hash: remote})

		// assert
		require.NoError(t, err)
		assert.Equal(t, []string{"deploy.sh"}, result.Conflicts)
		info, err := os.Stat(filepath.Join(dir, "deploy.sh"))
		require.NoError(t, err)
		assert.NotZero(t, info.Mode().Perm()&0o100)
	})
	t.Run("success - modified and deleted file keeps mode in conflict", func(t *testing.T) {
		// arrange
		dir, repo := initRepo(t)
		base := writeCommit(t, dir, repo, "run.sh", "#!/bin/sh\n", 0o755)
		local := writeCommit(t, dir, repo, "run.sh", "#!/bin/sh\necho local\n", 0o755)
		resetBranch(t, repo, base)
		wt, err := repo.Worktree()
		require.NoError(t, err)
		_, err = wt.Remove("run.sh")
		require.NoError(t, err)
		remote, err := wt.Commit("remove run.sh", &gogit.CommitOptions{Author: testSignature()})
		require.NoError(t, err)
		resetBranch(t, repo, local)

		// act
		result, err := s.Merge(dir, "master", &FetchedCommit{Branch: "master", Hash: remote})

		// assert
		require.NoError(t, err)
		assert.Equal(t, []string{"run.sh"}, result.Conflicts)
		assert.Equal(t, local, branchHash(t, repo, "master"))
		assert.Equal(t,
			"<<<<<<< HEAD\n#!/bin/sh\necho local\n=======\n>>>>>>> "+remote.String()[:8]+"\n",
			readFile(t, dir, "run.sh"),
		)
		info, err := os.Stat(filepath.Join(dir, "run.sh"))
		require.NoError(t, err)
		assert.NotZero(t, info.Mode().Perm()&0o100)
	})
	t.Run("failure - missing repository", func(t *testing.T) {
		// act
		_, err := s.Merge(filepath.Join(t.TempDir(), "missing"), "master", &FetchedCommit{})

		// assert
		var gitErr *Error
		require.ErrorAs(t, err, &gitErr)
		assert.Equal(t, "open", gitErr.Op)
	})
	t.Run("failure - unknown fetched commit", func(t *testing.T) {
		// arrange
		dir, repo := initRepo(t)
		commitFile(t, dir, repo, "a.txt", "one\n")

		// act
		_, err := s.Merge(dir, "master", &FetchedCommit{Hash: plumbing.NewHash("0123456789abcdef0123456789abcdef01234567")})

		// assert
		var gitErr *Error
		require.ErrorAs(t, err, &gitErr)
		assert.Equal(t, "merge", gitErr.Op)
	})
}

func TestAnalysis_String(t *testing.T) {
	assert.Equal(t, "fast-forward", FastForward.String())
	assert.Equal(t, "unknown", Analysis(42).String())
}
