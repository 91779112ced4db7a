package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/haatos/fisherman/internal/git"
)

type MockSyncer struct {
	mock.Mock
}

func (m *MockSyncer) Fetch(
	ctx context.Context,
	repoPath, branch, sshKeyPath string,
) (*git.FetchedCommit, error) {
	args := m.Called(ctx, repoPath, branch, sshKeyPath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*git.FetchedCommit), args.Error(1)
}

func (m *MockSyncer) Merge(
	repoPath, branch string,
	fetched *git.FetchedCommit,
) (*git.MergeResult, error) {
	args := m.Called(repoPath, branch, fetched)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*git.MergeResult), args.Error(1)
}
