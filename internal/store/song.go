// ABOUTME: Song persistence. Songs with a NULL org_id form the shared
// ABOUTME: catalogue every signed-in user can read.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

type Song struct {
	ID          int64
	OrgID       *int64
	Nr          int
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const songColumns = "id, org_id, nr, name, description, created_at, updated_at"

func scanSong(row pgx.Row) (*Song, error) {
	var s Song
	err := row.Scan(&s.ID, &s.OrgID, &s.Nr, &s.Name, &s.Description, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSong inserts a song. orgID is nil for catalogue songs.
func (s *Store) CreateSong(ctx context.Context, orgID *int64, nr int, name, description string) (*Song, error) {
	song, err := scanSong(s.pool.QueryRow(ctx,
		`INSERT INTO songs (org_id, nr, name, description)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+songColumns,
		orgID, nr, name, description))
	if err != nil {
		return nil, fmt.Errorf("create song: %w", err)
	}
	return song, nil
}

func (s *Store) GetSongByID(ctx context.Context, id int64) (*Song, error) {
	song, err := scanSong(s.pool.QueryRow(ctx,
		"SELECT "+songColumns+" FROM songs WHERE id = $1", id))
	if err != nil {
		return nil, fmt.Errorf("get song: %w", err)
	}
	return song, nil
}

func (s *Store) UpdateSong(ctx context.Context, id int64, nr int, name, description string) (*Song, error) {
	song, err := scanSong(s.pool.QueryRow(ctx,
		`UPDATE songs SET nr = $2, name = $3, description = $4, updated_at = now()
		 WHERE id = $1
		 RETURNING `+songColumns,
		id, nr, name, description))
	if err != nil {
		return nil, fmt.Errorf("update song: %w", err)
	}
	return song, nil
}

func (s *Store) DeleteSong(ctx context.Context, id int64) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM songs WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete song: %w", err)
	}
	return nil
}

// ListSongs returns songs by resolved ID set, ordered by nr then id.
func (s *Store) ListSongs(ctx context.Context, ids []int64) ([]Song, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := psql.Select(songColumns).
		From("songs").
		Where(sq.Eq{"id": ids}).
		OrderBy("nr", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("list songs: build query: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list songs: %w", err)
	}
	defer rows.Close()

	var out []Song
	for rows.Next() {
		var song Song
		if err := rows.Scan(&song.ID, &song.OrgID, &song.Nr, &song.Name, &song.Description, &song.CreatedAt, &song.UpdatedAt); err != nil {
			return nil, fmt.Errorf("list songs: scan: %w", err)
		}
		out = append(out, song)
	}
	return out, rows.Err()
}
