package git

import (
	"context"
	"errors"
	"fmt"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"go.uber.org/zap"
)

const RemoteName = "origin"

// Error is returned by every failed fetch or merge step.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("git %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// FetchedCommit is the tip of a remote branch after a fetch.
type FetchedCommit struct {
	Branch  string
	Hash    plumbing.Hash
	Message string
	Author  string
}

func (fc *FetchedCommit) String() string {
	return fmt.Sprintf("%s@%s", fc.Branch, fc.Hash)
}

type Synchronizer struct {
	knownHosts string
	log        *zap.SugaredLogger
}

// NewSynchronizer returns a Synchronizer verifying ssh host keys against
// knownHosts. An empty knownHosts falls back to the user's known_hosts files.
func NewSynchronizer(knownHosts string, log *zap.SugaredLogger) *Synchronizer {
	return &Synchronizer{knownHosts: knownHosts, log: log}
}

// Fetch retrieves branch and all tags from the origin remote of the
// repository at repoPath.
func (s *Synchronizer) Fetch(
	ctx context.Context, repoPath, branch, sshKeyPath string,
) (*FetchedCommit, error) {
	repo, err := gogit.PlainOpen(repoPath)
	if err != nil {
		return nil, &Error{Op: "open", Path: repoPath, Err: err}
	}

	remote, err := repo.Remote(RemoteName)
	if err != nil {
		return nil, &Error{Op: "remote", Path: repoPath, Err: err}
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return nil, &Error{Op: "remote", Path: repoPath, Err: errors.New("origin has no url")}
	}

	auth, err := s.authMethod(urls[0], sshKeyPath)
	if err != nil {
		return nil, &Error{Op: "auth", Path: repoPath, Err: err}
	}

	remoteRef := plumbing.NewRemoteReferenceName(RemoteName, branch)
	refSpec := config.RefSpec(
		fmt.Sprintf("+%s:%s", plumbing.NewBranchReferenceName(branch), remoteRef),
	)
	err = remote.FetchContext(ctx, &gogit.FetchOptions{
		RemoteName: RemoteName,
		RefSpecs:   []config.RefSpec{refSpec},
		Auth:       auth,
		Tags:       gogit.AllTags,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return nil, &Error{Op: "fetch", Path: repoPath, Err: err}
	}

	ref, err := repo.Reference(remoteRef, true)
	if err != nil {
		return nil, &Error{Op: "fetch", Path: repoPath, Err: err}
	}
	commit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, &Error{Op: "fetch", Path: repoPath, Err: err}
	}

	s.log.Infow("fetched branch",
		"path", repoPath,
		"branch", branch,
		"commit", commit.Hash.String(),
	)
	return &FetchedCommit{
		Branch:  branch,
		Hash:    commit.Hash,
		Message: commit.Message,
		Author:  commit.Author.Name,
	}, nil
}
