package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/haatos/fisherman/internal/store"
)

type HistoryService struct {
	eventStore store.EventStore
	log        *zap.SugaredLogger
}

func NewHistoryService(eventStore store.EventStore, log *zap.SugaredLogger) *HistoryService {
	return &HistoryService{eventStore: eventStore, log: log}
}

// Record appends an entry to the event history. Failures are only logged.
func (s *HistoryService) Record(
	ctx context.Context,
	deliveryID, repository string,
	variant store.EventVariant,
	message string,
) {
	var msg *string
	if message != "" {
		msg = &message
	}
	if _, err := s.eventStore.CreateEvent(ctx, deliveryID, repository, variant, msg); err != nil {
		s.log.Warnw("err recording event",
			"delivery", deliveryID,
			"repository", repository,
			"variant", variant,
			"error", err,
		)
	}
}

// ListEvents returns the newest events first, optionally only those of
// repository.
func (s *HistoryService) ListEvents(
	ctx context.Context,
	repository string,
	limit int64,
) ([]store.Event, error) {
	if repository != "" {
		return s.eventStore.ListRepositoryEvents(ctx, repository, limit)
	}
	return s.eventStore.ListLatestEvents(ctx, limit)
}

func (s *HistoryService) PruneHistory(ctx context.Context, retention time.Duration) (int64, error) {
	deleted, err := s.eventStore.DeleteEventsBefore(ctx, time.Now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("err pruning event history: %w", err)
	}
	return deleted, nil
}

// ScheduleHistoryCleanUp prunes events older than retention every midnight.
func (s *HistoryService) ScheduleHistoryCleanUp(
	scheduler gocron.Scheduler,
	retention time.Duration,
) error {
	_, err := scheduler.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 0, 0))),
		gocron.NewTask(func() {
			deleted, err := s.PruneHistory(context.Background(), retention)
			if err != nil {
				s.log.Errorw("err deleting expired events", "error", err)
				return
			}
			s.log.Infow("pruned event history", "deleted", deleted)
		}),
	)
	return err
}
