package db

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrEventFull is returned when an event has reached its capacity.
var ErrEventFull = errors.New("event is at capacity")

type Event struct {
	ID               string     `json:"id"`
	OrganizationID   *string    `json:"organization_id,omitempty"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	EventType        string     `json:"event_type"`
	Location         string     `json:"location,omitempty"`
	IsVirtual        bool       `json:"is_virtual"`
	Capacity         int        `json:"capacity"`
	StartsAt         time.Time  `json:"starts_at"`
	EndsAt           *time.Time `json:"ends_at,omitempty"`
	RegisteredCount  int        `json:"registered_count"`
	IsRegistered     bool       `json:"is_registered"`
	CreatedAt        time.Time  `json:"created_at"`
}

func (db *DB) CreateEvent(ctx context.Context, creatorID string, e Event) (*Event, error) {
	var orgID any
	if e.OrganizationID != nil {
		orgID = toUUID(*e.OrganizationID)
	}

	err := db.Pool.QueryRow(ctx, `
		INSERT INTO events (organization_id, title, description, event_type, location,
			is_virtual, capacity, starts_at, ends_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`, orgID, SanitizeUTF8(e.Title), SanitizeUTF8(e.Description), e.EventType, e.Location,
		e.IsVirtual, e.Capacity, e.StartsAt, e.EndsAt, toUUID(creatorID)).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return nil, wrapRowError(err, "create event")
	}

	return &e, nil
}

const eventSelect = `
	SELECT e.id, e.organization_id, e.title, e.description, e.event_type, e.location,
		e.is_virtual, e.capacity, e.starts_at, e.ends_at, e.created_at,
		(SELECT count(*) FROM event_registrations r WHERE r.event_id = e.id)`

func scanEvent(row interface{ Scan(...any) error }) (*Event, error) {
	var e Event

	err := row.Scan(&e.ID, &e.OrganizationID, &e.Title, &e.Description, &e.EventType,
		&e.Location, &e.IsVirtual, &e.Capacity, &e.StartsAt, &e.EndsAt, &e.CreatedAt,
		&e.RegisteredCount)
	if err != nil {
		return nil, err
	}

	return &e, nil
}

// ListUpcomingEvents returns events starting after now, soonest first.
func (db *DB) ListUpcomingEvents(ctx context.Context, eventType string, limit int) ([]Event, error) {
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}

	query := eventSelect + " FROM events e WHERE e.starts_at > now()"
	args := []any{}

	if eventType != "" {
		args = append(args, eventType)
		query += " AND e.event_type = $1"
	}

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY e.starts_at LIMIT $%d", len(args))

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapRowError(err, "list upcoming events")
	}
	defer rows.Close()

	out := []Event{}

	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, wrapRowError(err, "scan event")
		}

		out = append(out, *e)
	}

	return out, rows.Err()
}

func (db *DB) GetEventByID(ctx context.Context, eventID, userID string) (*Event, error) {
	e, err := scanEvent(db.Pool.QueryRow(ctx, eventSelect+" FROM events e WHERE e.id = $1", toUUID(eventID)))
	if err != nil {
		return nil, wrapRowError(err, "get event by id")
	}

	if userID != "" {
		err = db.Pool.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM event_registrations WHERE event_id = $1 AND user_id = $2)
		`, toUUID(eventID), toUUID(userID)).Scan(&e.IsRegistered)
		if err != nil {
			return nil, wrapRowError(err, "check event registration")
		}
	}

	return e, nil
}

// RegisterForEvent signs the user up, enforcing capacity when set. Returns
// ErrDuplicate on repeat registration and ErrEventFull when capacity is
// exhausted. The capacity check and insert run in one transaction.
func (db *DB) RegisterForEvent(ctx context.Context, eventID, userID string) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return wrapRowError(err, "register for event: begin")
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var capacity, registered int

	err = tx.QueryRow(ctx, `
		SELECT e.capacity, (SELECT count(*) FROM event_registrations r WHERE r.event_id = e.id)
		FROM events e
		WHERE e.id = $1
		FOR UPDATE
	`, toUUID(eventID)).Scan(&capacity, &registered)
	if err != nil {
		return wrapRowError(err, "register for event: load")
	}

	if capacity > 0 && registered >= capacity {
		return ErrEventFull
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO event_registrations (event_id, user_id)
		VALUES ($1, $2)
	`, toUUID(eventID), toUUID(userID)); err != nil {
		return wrapRowError(err, "register for event")
	}

	if err := tx.Commit(ctx); err != nil {
		return wrapRowError(err, "register for event: commit")
	}

	return nil
}

func (db *DB) UnregisterFromEvent(ctx context.Context, eventID, userID string) error {
	tag, err := db.Pool.Exec(ctx, `
		DELETE FROM event_registrations WHERE event_id = $1 AND user_id = $2
	`, toUUID(eventID), toUUID(userID))
	if err != nil {
		return wrapRowError(err, "unregister from event")
	}

	if tag.RowsAffected() == 0 {
		return wrapRowError(ErrNotFound, "unregister from event")
	}

	return nil
}
