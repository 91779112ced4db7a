package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/haatos/fisherman/internal/store"
)

type MockEventStore struct {
	mock.Mock
}

func (m *MockEventStore) CreateEvent(
	ctx context.Context,
	deliveryID, repository string,
	variant store.EventVariant,
	message *string,
) (*store.Event, error) {
	args := m.Called(ctx, deliveryID, repository, variant, message)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Event), args.Error(1)
}

func (m *MockEventStore) ListLatestEvents(ctx context.Context, limit int64) ([]store.Event, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]store.Event), args.Error(1)
}

func (m *MockEventStore) ListRepositoryEvents(
	ctx context.Context,
	repository string,
	limit int64,
) ([]store.Event, error) {
	args := m.Called(ctx, repository, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]store.Event), args.Error(1)
}

func (m *MockEventStore) DeleteEventsBefore(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

type MockEventRecorder struct {
	mock.Mock
}

func (m *MockEventRecorder) Record(
	ctx context.Context,
	deliveryID, repository string,
	variant store.EventVariant,
	message string,
) {
	m.Called(ctx, deliveryID, repository, variant, message)
}

type MockEventLister struct {
	mock.Mock
}

func (m *MockEventLister) ListEvents(
	ctx context.Context,
	repository string,
	limit int64,
) ([]store.Event, error) {
	args := m.Called(ctx, repository, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]store.Event), args.Error(1)
}
