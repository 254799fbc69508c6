// ABOUTME: Event persistence. Events live under a calendar and inherit its
// ABOUTME: organisation scope; moving an event means moving it between calendars.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

type Event struct {
	ID         int64
	CalendarID int64
	Name       string
	StartsAt   time.Time
	EndsAt     *time.Time
	IsGig      bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

const eventColumns = "id, calendar_id, name, starts_at, ends_at, is_gig, created_at, updated_at"

func scanEvent(row pgx.Row) (*Event, error) {
	var e Event
	err := row.Scan(&e.ID, &e.CalendarID, &e.Name, &e.StartsAt, &e.EndsAt, &e.IsGig, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

type CreateEventParams struct {
	CalendarID int64
	Name       string
	StartsAt   time.Time
	EndsAt     *time.Time
	IsGig      bool
}

func (s *Store) CreateEvent(ctx context.Context, p CreateEventParams) (*Event, error) {
	e, err := scanEvent(s.pool.QueryRow(ctx,
		`INSERT INTO events (calendar_id, name, starts_at, ends_at, is_gig)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+eventColumns,
		p.CalendarID, p.Name, p.StartsAt, p.EndsAt, p.IsGig))
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	return e, nil
}

func (s *Store) GetEventByID(ctx context.Context, id int64) (*Event, error) {
	e, err := scanEvent(s.pool.QueryRow(ctx,
		"SELECT "+eventColumns+" FROM events WHERE id = $1", id))
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

type UpdateEventParams struct {
	Name     string
	StartsAt time.Time
	EndsAt   *time.Time
	IsGig    bool
}

func (s *Store) UpdateEvent(ctx context.Context, id int64, p UpdateEventParams) (*Event, error) {
	e, err := scanEvent(s.pool.QueryRow(ctx,
		`UPDATE events SET name = $2, starts_at = $3, ends_at = $4, is_gig = $5, updated_at = now()
		 WHERE id = $1
		 RETURNING `+eventColumns,
		id, p.Name, p.StartsAt, p.EndsAt, p.IsGig))
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	return e, nil
}

// MoveEvent reparents an event onto another calendar.
func (s *Store) MoveEvent(ctx context.Context, id, newCalendarID int64) (*Event, error) {
	e, err := scanEvent(s.pool.QueryRow(ctx,
		`UPDATE events SET calendar_id = $2, updated_at = now()
		 WHERE id = $1
		 RETURNING `+eventColumns,
		id, newCalendarID))
	if err != nil {
		return nil, fmt.Errorf("move event: %w", err)
	}
	return e, nil
}

func (s *Store) DeleteEvent(ctx context.Context, id int64) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM events WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

// ListEventsInWindow returns events from the given calendars overlapping the
// [from, to) window, ordered by start time. Feed rendering uses this.
func (s *Store) ListEventsInWindow(ctx context.Context, calendarIDs []int64, from, to time.Time) ([]Event, error) {
	if len(calendarIDs) == 0 {
		return nil, nil
	}
	query, args, err := psql.Select(eventColumns).
		From("events").
		Where(sq.Eq{"calendar_id": calendarIDs}).
		Where(sq.Lt{"starts_at": to}).
		Where(sq.Or{sq.Eq{"ends_at": nil}, sq.GtOrEq{"ends_at": from}}).
		OrderBy("starts_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("list events: build query: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.CalendarID, &e.Name, &e.StartsAt, &e.EndsAt, &e.IsGig, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("list events: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
