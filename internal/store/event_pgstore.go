package store

import (
	"context"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EventPostgresStore struct {
	pool *pgxpool.Pool
}

func NewEventPostgresStore(pool *pgxpool.Pool) *EventPostgresStore {
	return &EventPostgresStore{pool: pool}
}

func (store *EventPostgresStore) CreateEvent(
	ctx context.Context,
	deliveryID, repository string,
	variant EventVariant,
	message *string,
) (*Event, error) {
	e := &Event{
		DeliveryID: deliveryID,
		Repository: repository,
		Variant:    variant,
		Message:    message,
	}
	query := `insert into events (
		delivery_id,
		repository,
		variant,
		message
	)
	values ($1, $2, $3, $4)
	returning event_id, created_on`
	if err := pgxscan.Get(ctx, store.pool, e, query, e.DeliveryID, e.Repository, string(e.Variant), e.Message); err != nil {
		return nil, err
	}
	return e, nil
}

func (store *EventPostgresStore) ListLatestEvents(ctx context.Context, limit int64) ([]Event, error) {
	events := make([]Event, 0, limit)
	query := `select * from events
	order by created_on desc, event_id desc
	limit $1`
	err := pgxscan.Select(ctx, store.pool, &events, query, limit)
	return events, err
}

func (store *EventPostgresStore) ListRepositoryEvents(
	ctx context.Context,
	repository string,
	limit int64,
) ([]Event, error) {
	events := make([]Event, 0, limit)
	query := `select * from events
	where repository = $1
	order by created_on desc, event_id desc
	limit $2`
	err := pgxscan.Select(ctx, store.pool, &events, query, repository, limit)
	return events, err
}

func (store *EventPostgresStore) DeleteEventsBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := store.pool.Exec(ctx, "delete from events where created_on < $1", before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
