package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	qb "github.com/Masterminds/squirrel"
)

// Event is the storage row for a single event bus occurrence. ID is a
// UUIDv7 string minted by the caller before insert, so it both orders
// lexically by publish time and gives recovery a durable cursor.
type Event struct {
	ID      string
	Kind    string
	Details string
	Emitted int64
}

// ListEvents returns at most limit rows, in ascending id order unless
// reverse requests newest-first.
func (db *DB) ListEvents(conn Queryable, offset, limit int, reverse bool) ([]Event, error) {
	if limit == 0 || limit > db.maxResultsLimit {
		limit = db.maxResultsLimit
	}

	orderByStr := "id ASC"
	if reverse {
		orderByStr = "id DESC"
	}

	query, args := qb.Select("id", "kind", "details", "emitted").From("events").
		OrderBy(orderByStr).
		Limit(uint64(limit)).
		Offset(uint64(offset)).MustSql()

	events := []Event{}
	err := conn.Select(&events, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return events, nil
}

// ListEventsSince returns events with id > after, ascending, for recovery
// replay starting from a run's durable cursor.
func (db *DB) ListEventsSince(conn Queryable, after string, limit int) ([]Event, error) {
	if limit == 0 || limit > db.maxResultsLimit {
		limit = db.maxResultsLimit
	}

	query, args := qb.Select("id", "kind", "details", "emitted").From("events").
		Where(qb.Gt{"id": after}).
		OrderBy("id ASC").
		Limit(uint64(limit)).MustSql()

	events := []Event{}
	err := conn.Select(&events, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return events, nil
}

func (db *DB) InsertEvent(conn Queryable, event *Event) error {
	_, err := qb.Insert("events").Columns("id", "kind", "details", "emitted").
		Values(event.ID, event.Kind, event.Details, event.Emitted).RunWith(conn).Exec()
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrEntityExists
		}

		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}

func (db *DB) GetEvent(conn Queryable, id string) (Event, error) {
	query, args := qb.Select("id", "kind", "details", "emitted").From("events").
		Where(qb.Eq{"id": id}).MustSql()

	event := Event{}
	err := conn.Get(&event, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Event{}, ErrEntityNotFound
		}

		return Event{}, fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return event, nil
}

func (db *DB) DeleteEvent(conn Queryable, id string) error {
	_, err := qb.Delete("events").Where(qb.Eq{"id": id}).RunWith(conn).Exec()
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}

		return fmt.Errorf("database error occurred: %v; %w", err, ErrInternal)
	}

	return nil
}
