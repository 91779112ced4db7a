package store

import (
	"context"
	"time"
)

type EventVariant string

const (
	VariantPing    EventVariant = "ping"
	VariantPull    EventVariant = "pull"
	VariantBuild   EventVariant = "build"
	VariantRestart EventVariant = "restart"
	VariantSuccess EventVariant = "success"
	VariantFailure EventVariant = "failure"
	VariantWarning EventVariant = "warning"
)

// Event is one entry of the deployment history.
type Event struct {
	EventID    int64        `json:"event_id"`
	DeliveryID string       `json:"delivery_id"`
	Repository string       `json:"repository"`
	Variant    EventVariant `json:"variant"`
	Message    *string      `json:"message,omitempty"`
	CreatedOn  time.Time    `json:"created_on"`
}

type EventStore interface {
	CreateEvent(context.Context, string, string, EventVariant, *string) (*Event, error)
	ListLatestEvents(context.Context, int64) ([]Event, error)
	ListRepositoryEvents(context.Context, string, int64) ([]Event, error)
	DeleteEventsBefore(context.Context, time.Time) (int64, error)
}
