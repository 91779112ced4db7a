package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/haatos/fisherman/internal/runner"
)

type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, cmd runner.Command, base string) (int, error) {
	args := m.Called(ctx, cmd, base)
	return args.Int(0), args.Error(1)
}
