package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/haatos/fisherman/internal/webhook"
)

type Handler interface {
	Handle(context.Context, *webhook.Delivery) Outcome
}

// DispatchQueue hands accepted deliveries to a single consumer in the order
// they were enqueued.
type DispatchQueue struct {
	handler Handler
	log     *zap.SugaredLogger

	queue chan *webhook.Delivery
	done  chan struct{}
	mu    sync.Mutex
}

func NewDispatchQueue(handler Handler, size int, log *zap.SugaredLogger) *DispatchQueue {
	return &DispatchQueue{
		handler: handler,
		log:     log,
		queue:   make(chan *webhook.Delivery, size),
		done:    make(chan struct{}),
	}
}

// Enqueue never blocks. It fails with ErrQueueFull when the buffer is
// exhausted and with ErrQueueClosed after Shutdown.
func (dq *DispatchQueue) Enqueue(d *webhook.Delivery) error {
	select {
	case <-dq.done:
		return ErrQueueClosed
	default:
	}

	select {
	case dq.queue <- d:
		return nil
	default:
		return ErrQueueFull
	}
}

func (dq *DispatchQueue) Len() int {
	return len(dq.queue)
}

// Run consumes deliveries until ctx is cancelled or Shutdown is called. The
// delivery being handled at that moment runs to completion; deliveries still
// queued are dropped.
func (dq *DispatchQueue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			dq.drop()
			return
		case <-dq.done:
			dq.drop()
			return
		default:
		}

		select {
		case <-ctx.Done():
			dq.drop()
			return
		case <-dq.done:
			dq.drop()
			return
		case d := <-dq.queue:
			dq.process(context.WithoutCancel(ctx), d)
		}
	}
}

func (dq *DispatchQueue) Shutdown() {
	dq.mu.Lock()
	defer dq.mu.Unlock()
	select {
	case <-dq.done:
	default:
		close(dq.done)
	}
}

func (dq *DispatchQueue) process(ctx context.Context, d *webhook.Delivery) {
	dq.log.Infow("handling delivery",
		"delivery", d.ID,
		"event", d.Event.Kind(),
		"repository", d.Event.FullName(),
	)
	outcome := dq.handler.Handle(ctx, d)
	if outcome.Err != nil {
		dq.log.Errorw("delivery failed",
			"delivery", d.ID,
			"repository", d.Event.FullName(),
			"error", outcome.Err,
		)
		return
	}
	dq.log.Infow("delivery handled",
		"delivery", d.ID,
		"repository", d.Event.FullName(),
		"skipped", outcome.Skipped,
	)
}

func (dq *DispatchQueue) drop() {
	for {
		select {
		case d := <-dq.queue:
			dq.log.Warnw("dropping queued delivery",
				"delivery", d.ID,
				"repository", d.Event.FullName(),
			)
		default:
			return
		}
	}
}
