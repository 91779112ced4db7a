package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"

	"github.com/haatos/fisherman/internal"
)

type EventSQLiteStore struct {
	rdb, rwdb *sql.DB
}

func NewEventSQLiteStore(rdb, rwdb *sql.DB) *EventSQLiteStore {
	return &EventSQLiteStore{rdb, rwdb}
}

func (store *EventSQLiteStore) CreateEvent(
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
	if err := sqlscan.Get(ctx, store.rwdb, e, query, e.DeliveryID, e.Repository, e.Variant, e.Message); err != nil {
		return nil, err
	}
	return e, nil
}

func (store *EventSQLiteStore) ListLatestEvents(ctx context.Context, limit int64) ([]Event, error) {
	events := make([]Event, 0, limit)
	query := `select * from events
	order by created_on desc, event_id desc
	limit $1`
	err := sqlscan.Select(ctx, store.rdb, &events, query, limit)
	return events, err
}

func (store *EventSQLiteStore) ListRepositoryEvents(
	ctx context.Context,
	repository string,
	limit int64,
) ([]Event, error) {
	events := make([]Event, 0, limit)
	query := `select * from events
	where repository = $1
	order by created_on desc, event_id desc
	limit $2`
	err := sqlscan.Select(ctx, store.rdb, &events, query, repository, limit)
	return events, err
}

func (store *EventSQLiteStore) DeleteEventsBefore(ctx context.Context, before time.Time) (int64, error) {
	query := "delete from events where created_on < $1"
	res, err := store.rwdb.ExecContext(ctx, query, before.UTC().Format(internal.DBTimestampLayout))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
