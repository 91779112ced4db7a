package git

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path"
	"slices"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/haatos/fisherman/internal/util"
)

type Analysis int

const (
	UpToDate Analysis = iota
	FastForward
	Unborn
	Normal
)

func (a Analysis) String() string {
	switch a {
	case UpToDate:
		return "up-to-date"
	case FastForward:
		return "fast-forward"
	case Unborn:
		return "unborn"
	case Normal:
		return "normal"
	}
	return "unknown"
}

type MergeResult struct {
	Analysis Analysis
	// Head is the branch tip after the merge. With conflicts it is the
	// unchanged local tip.
	Head      plumbing.Hash
	Conflicts []string
}

func (mr *MergeResult) HasConflicts() bool {
	return len(mr.Conflicts) > 0
}

const (
	defaultSignatureName  = "fisherman"
	defaultSignatureEmail = "fisherman@localhost"
)

// Merge integrates fetched into the local branch of the repository at
// repoPath. Working tree modifications are discarded. Conflicting paths of a
// diverged merge are left in the working tree with conflict markers and no
// commit is created; this is not an error.
func (s *Synchronizer) Merge(repoPath, branch string, fetched *FetchedCommit) (*MergeResult, error) {
	repo, err := gogit.PlainOpen(repoPath)
	if err != nil {
		return nil, &Error{Op: "open", Path: repoPath, Err: err}
	}
	remote, err := repo.CommitObject(fetched.Hash)
	if err != nil {
		return nil, &Error{Op: "merge", Path: repoPath, Err: err}
	}

	branchName := plumbing.NewBranchReferenceName(branch)
	localRef, err := repo.Reference(branchName, true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		if err := moveBranch(repo, branchName, remote.Hash); err != nil {
			return nil, &Error{Op: "checkout", Path: repoPath, Err: err}
		}
		s.log.Infow("created branch", "path", repoPath, "branch", branch, "commit", remote.Hash.String())
		return &MergeResult{Analysis: Unborn, Head: remote.Hash}, nil
	}
	if err != nil {
		return nil, &Error{Op: "merge", Path: repoPath, Err: err}
	}
	local, err := repo.CommitObject(localRef.Hash())
	if err != nil {
		return nil, &Error{Op: "merge", Path: repoPath, Err: err}
	}

	analysis, err := analyze(local, remote)
	if err != nil {
		return nil, &Error{Op: "merge", Path: repoPath, Err: err}
	}

	switch analysis {
	case UpToDate:
		s.log.Infow("branch up to date", "path", repoPath, "branch", branch)
		return &MergeResult{Analysis: UpToDate, Head: local.Hash}, nil
	case FastForward:
		if err := moveBranch(repo, branchName, remote.Hash); err != nil {
			return nil, &Error{Op: "checkout", Path: repoPath, Err: err}
		}
		s.log.Infow("fast-forwarded branch",
			"path", repoPath,
			"branch", branch,
			"from", local.Hash.String(),
			"to", remote.Hash.String(),
		)
		return &MergeResult{Analysis: FastForward, Head: remote.Hash}, nil
	}

	result, err := s.mergeTrees(repo, branchName, local, remote)
	if err != nil {
		return nil, &Error{Op: "merge", Path: repoPath, Err: err}
	}
	if result.HasConflicts() {
		s.log.Warnw("merge produced conflicts",
			"path", repoPath,
			"branch", branch,
			"conflicts", result.Conflicts,
		)
	} else {
		s.log.Infow("merged branch", "path", repoPath, "branch", branch, "commit", result.Head.String())
	}
	return result, nil
}

func analyze(local, remote *object.Commit) (Analysis, error) {
	if local.Hash == remote.Hash {
		return UpToDate, nil
	}
	behind, err := remote.IsAncestor(local)
	if err != nil {
		return 0, err
	}
	if behind {
		return UpToDate, nil
	}
	ahead, err := local.IsAncestor(remote)
	if err != nil {
		return 0, err
	}
	if ahead {
		return FastForward, nil
	}
	return Normal, nil
}

// moveBranch points branch at hash, makes it HEAD and force checks it out.
func moveBranch(repo *gogit.Repository, branch plumbing.ReferenceName, hash plumbing.Hash) error {
	if err := repo.Storer.SetReference(plumbing.NewHashReference(branch, hash)); err != nil {
		return err
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, branch)); err != nil {
		return err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	return wt.Checkout(&gogit.CheckoutOptions{Branch: branch, Force: true})
}

type treeEntry struct {
	deleted bool
	mode    filemode.FileMode
	hash    plumbing.Hash
}

func (te treeEntry) equal(other treeEntry) bool {
	return te.deleted == other.deleted && te.mode == other.mode && te.hash == other.hash
}

func (s *Synchronizer) mergeTrees(
	repo *gogit.Repository,
	branch plumbing.ReferenceName,
	local, remote *object.Commit,
) (*MergeResult, error) {
	bases, err := local.MergeBase(remote)
	if err != nil {
		return nil, err
	}
	if len(bases) == 0 {
		return nil, fmt.Errorf("no merge base between %s and %s", local.Hash, remote.Hash)
	}
	base := bases[0]

	ours, err := changesSince(base, local)
	if err != nil {
		return nil, err
	}
	theirs, err := changesSince(base, remote)
	if err != nil {
		return nil, err
	}

	if err := moveBranch(repo, branch, local.Hash); err != nil {
		return nil, err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, err
	}

	label := util.ShortID(remote.Hash.String())
	var conflicts []string
	for _, p := range slices.Sorted(maps.Keys(theirs)) {
		their := theirs[p]
		our, changed := ours[p]
		if !changed {
			if err := s.apply(repo, wt, p, their); err != nil {
				return nil, fmt.Errorf("apply %s: %w", p, err)
			}
			continue
		}
		if our.equal(their) {
			continue
		}
		clean, err := mergeFile(repo, wt, base, p, our, their, label)
		if err != nil {
			return nil, fmt.Errorf("merge %s: %w", p, err)
		}
		if !clean {
			conflicts = append(conflicts, p)
		}
	}
	if len(conflicts) > 0 {
		return &MergeResult{Analysis: Normal, Head: local.Hash, Conflicts: conflicts}, nil
	}

	sig := mergeSignature(repo)
	hash, err := wt.Commit(
		fmt.Sprintf("Merge: %s into %s", remote.Hash, local.Hash),
		&gogit.CommitOptions{
			Author:            sig,
			Committer:         sig,
			Parents:           []plumbing.Hash{local.Hash, remote.Hash},
			AllowEmptyCommits: true,
		},
	)
	if err != nil {
		return nil, err
	}
	return &MergeResult{Analysis: Normal, Head: hash}, nil
}

// changesSince maps every path changed between base and commit to its new
// entry.
func changesSince(base, commit *object.Commit) (map[string]treeEntry, error) {
	from, err := base.Tree()
	if err != nil {
		return nil, err
	}
	to, err := commit.Tree()
	if err != nil {
		return nil, err
	}
	changes, err := object.DiffTree(from, to)
	if err != nil {
		return nil, err
	}

	entries := make(map[string]treeEntry, len(changes))
	for _, change := range changes {
		if change.To.Name == "" {
			entries[change.From.Name] = treeEntry{deleted: true}
			continue
		}
		entries[change.To.Name] = treeEntry{
			mode: change.To.TreeEntry.Mode,
			hash: change.To.TreeEntry.Hash,
		}
	}
	return entries, nil
}

func (s *Synchronizer) apply(repo *gogit.Repository, wt *gogit.Worktree, p string, entry treeEntry) error {
	if entry.deleted {
		_, err := wt.Remove(p)
		return err
	}
	if entry.mode == filemode.Submodule {
		s.log.Warnw("skipping submodule change", "path", p)
		return nil
	}

	content, err := blobContent(repo, entry)
	if err != nil {
		return err
	}
	if entry.mode == filemode.Symlink {
		if err := wt.Filesystem.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
		if err := wt.Filesystem.MkdirAll(path.Dir(p), 0o755); err != nil {
			return err
		}
		if err := wt.Filesystem.Symlink(string(content), p); err != nil {
			return err
		}
	} else {
		perm, err := entry.mode.ToOSFileMode()
		if err != nil {
			return err
		}
		if err := writeFile(wt, p, content, perm.Perm()); err != nil {
			return err
		}
	}
	_, err = wt.Add(p)
	return err
}

// mergeFile merges a path changed on both sides. Regular files are merged
// line by line and the result is staged when clean. Deletions, symlinks,
// submodules and binary content conflict as a whole.
func mergeFile(
	repo *gogit.Repository,
	wt *gogit.Worktree,
	base *object.Commit,
	p string,
	ours, theirs treeEntry,
	label string,
) (bool, error) {
	if !isRegular(ours) || !isRegular(theirs) {
		return false, writeConflict(repo, wt, p, ours, theirs, label)
	}

	baseEntry, err := entryAt(base, p)
	if err != nil {
		return false, err
	}
	baseContent, err := blobContent(repo, baseEntry)
	if err != nil {
		return false, err
	}
	ourContent, err := blobContent(repo, ours)
	if err != nil {
		return false, err
	}
	theirContent, err := blobContent(repo, theirs)
	if err != nil {
		return false, err
	}
	if isBinary(baseContent) || isBinary(ourContent) || isBinary(theirContent) {
		return false, writeConflict(repo, wt, p, ours, theirs, label)
	}

	mode := ours.mode
	if ours.mode == baseEntry.mode {
		mode = theirs.mode
	}
	perm, err := mode.ToOSFileMode()
	if err != nil {
		return false, err
	}

	merged, conflicted := mergeLines(baseContent, ourContent, theirContent, label)
	if err := writeFile(wt, p, merged, perm.Perm()); err != nil {
		return false, err
	}
	if conflicted {
		return false, nil
	}
	_, err = wt.Add(p)
	return err == nil, err
}

func isRegular(entry treeEntry) bool {
	return !entry.deleted && (entry.mode == filemode.Regular || entry.mode == filemode.Executable)
}

// entryAt returns the entry of p in commit, or a deleted entry when the path
// did not exist there.
func entryAt(commit *object.Commit, p string) (treeEntry, error) {
	tree, err := commit.Tree()
	if err != nil {
		return treeEntry{}, err
	}
	entry, err := tree.FindEntry(p)
	if errors.Is(err, object.ErrEntryNotFound) || errors.Is(err, object.ErrDirectoryNotFound) {
		return treeEntry{deleted: true}, nil
	}
	if err != nil {
		return treeEntry{}, err
	}
	return treeEntry{mode: entry.Mode, hash: entry.Hash}, nil
}

// writeConflict writes both versions of p between conflict markers, keeping
// the permissions of the local side.
func writeConflict(
	repo *gogit.Repository, wt *gogit.Worktree, p string, ours, theirs treeEntry, label string,
) error {
	ourContent, err := blobContent(repo, ours)
	if err != nil {
		return err
	}
	theirContent, err := blobContent(repo, theirs)
	if err != nil {
		return err
	}

	var b bytes.Buffer
	b.WriteString("<<<<<<< HEAD\n")
	writeSection(&b, ourContent)
	b.WriteString("=======\n")
	writeSection(&b, theirContent)
	fmt.Fprintf(&b, ">>>>>>> %s\n", label)
	return writeFile(wt, p, b.Bytes(), conflictPerm(ours, theirs))
}

func conflictPerm(ours, theirs treeEntry) os.FileMode {
	for _, entry := range []treeEntry{ours, theirs} {
		if entry.deleted || entry.mode == filemode.Symlink || entry.mode == filemode.Submodule {
			continue
		}
		if perm, err := entry.mode.ToOSFileMode(); err == nil {
			return perm.Perm()
		}
	}
	return 0o644
}

func writeSection(b *bytes.Buffer, content []byte) {
	b.Write(content)
	if len(content) > 0 && content[len(content)-1] != '\n' {
		b.WriteByte('\n')
	}
}

func writeFile(wt *gogit.Worktree, p string, content []byte, perm os.FileMode) error {
	if err := wt.Filesystem.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := wt.Filesystem.MkdirAll(path.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := wt.Filesystem.OpenFile(p, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func blobContent(repo *gogit.Repository, entry treeEntry) ([]byte, error) {
	if entry.deleted || entry.mode == filemode.Submodule {
		return nil, nil
	}
	blob, err := repo.BlobObject(entry.hash)
	if err != nil {
		return nil, err
	}
	r, err := blob.Reader()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func mergeSignature(repo *gogit.Repository) *object.Signature {
	sig := &object.Signature{
		Name:  defaultSignatureName,
		Email: defaultSignatureEmail,
		When:  time.Now(),
	}
	cfg, err := repo.ConfigScoped(config.GlobalScope)
	if err != nil {
		return sig
	}
	if cfg.User.Name != "" {
		sig.Name = cfg.User.Name
	}
	if cfg.User.Email != "" {
		sig.Email = cfg.User.Email
	}
	return sig
}
