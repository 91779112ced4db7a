package testutil

import (
	"github.com/stretchr/testify/mock"

	"github.com/haatos/fisherman/internal/webhook"
)

type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Enqueue(d *webhook.Delivery) error {
	args := m.Called(d)
	return args.Error(0)
}

func (m *MockDispatcher) Len() int {
	args := m.Called()
	return args.Int(0)
}
