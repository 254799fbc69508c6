// ABOUTME: Calendar persistence, including the org-to-org move operation.
// ABOUTME: Personal calendars carry a user_id; shared ones leave it NULL.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Calendar struct {
	ID        int64
	OrgID     int64
	UserID    *int64
	Name      string
	FeedToken uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

const calendarColumns = "id, org_id, user_id, name, feed_token, created_at, updated_at"

func scanCalendar(row pgx.Row) (*Calendar, error) {
	var c Calendar
	err := row.Scan(&c.ID, &c.OrgID, &c.UserID, &c.Name, &c.FeedToken, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCalendar inserts a calendar. userID is nil for org-shared calendars.
func (s *Store) CreateCalendar(ctx context.Context, orgID int64, userID *int64, name string) (*Calendar, error) {
	c, err := scanCalendar(s.pool.QueryRow(ctx,
		`INSERT INTO calendars (org_id, user_id, name)
		 VALUES ($1, $2, $3)
		 RETURNING `+calendarColumns,
		orgID, userID, name))
	if err != nil {
		return nil, fmt.Errorf("create calendar: %w", err)
	}
	return c, nil
}

func (s *Store) GetCalendarByID(ctx context.Context, id int64) (*Calendar, error) {
	c, err := scanCalendar(s.pool.QueryRow(ctx,
		"SELECT "+calendarColumns+" FROM calendars WHERE id = $1", id))
	if err != nil {
		return nil, fmt.Errorf("get calendar: %w", err)
	}
	return c, nil
}

func (s *Store) GetCalendarByFeedToken(ctx context.Context, token uuid.UUID) (*Calendar, error) {
	c, err := scanCalendar(s.pool.QueryRow(ctx,
		"SELECT "+calendarColumns+" FROM calendars WHERE feed_token = $1", token))
	if err != nil {
		return nil, fmt.Errorf("get calendar by feed token: %w", err)
	}
	return c, nil
}

func (s *Store) UpdateCalendar(ctx context.Context, id int64, name string) (*Calendar, error) {
	c, err := scanCalendar(s.pool.QueryRow(ctx,
		`UPDATE calendars SET name = $2, updated_at = now()
		 WHERE id = $1
		 RETURNING `+calendarColumns,
		id, name))
	if err != nil {
		return nil, fmt.Errorf("update calendar: %w", err)
	}
	return c, nil
}

// MoveCalendar reparents a calendar to another organisation. Events stay
// attached; their org scope follows the calendar.
func (s *Store) MoveCalendar(ctx context.Context, id, newOrgID int64) (*Calendar, error) {
	c, err := scanCalendar(s.pool.QueryRow(ctx,
		`UPDATE calendars SET org_id = $2, updated_at = now()
		 WHERE id = $1
		 RETURNING `+calendarColumns,
		id, newOrgID))
	if err != nil {
		return nil, fmt.Errorf("move calendar: %w", err)
	}
	return c, nil
}

// RotateCalendarFeedToken invalidates the current feed URL.
func (s *Store) RotateCalendarFeedToken(ctx context.Context, id int64) (*Calendar, error) {
	c, err := scanCalendar(s.pool.QueryRow(ctx,
		`UPDATE calendars SET feed_token = gen_random_uuid(), updated_at = now()
		 WHERE id = $1
		 RETURNING `+calendarColumns,
		id))
	if err != nil {
		return nil, fmt.Errorf("rotate calendar feed token: %w", err)
	}
	return c, nil
}

func (s *Store) DeleteCalendar(ctx context.Context, id int64) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM calendars WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete calendar: %w", err)
	}
	return nil
}

// ListCalendars returns the calendars whose IDs the caller already resolved
// as accessible. An empty id list yields an empty result.
func (s *Store) ListCalendars(ctx context.Context, ids []int64) ([]Calendar, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := psql.Select(calendarColumns).
		From("calendars").
		Where(sq.Eq{"id": ids}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("list calendars: build query: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list calendars: %w", err)
	}
	defer rows.Close()

	var out []Calendar
	for rows.Next() {
		var c Calendar
		if err := rows.Scan(&c.ID, &c.OrgID, &c.UserID, &c.Name, &c.FeedToken, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("list calendars: scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
