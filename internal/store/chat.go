// ABOUTME: Chat and chat grant persistence. Grants are per-user overrides on
// ABOUTME: top of the org role threshold and project linkage.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

type Chat struct {
	ID           int64
	OrgID        int64
	ProjectID    *int64
	Name         string
	MinRoleLevel int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const chatColumns = "id, org_id, project_id, name, min_role_level, created_at, updated_at"

func scanChat(row pgx.Row) (*Chat, error) {
	var c Chat
	err := row.Scan(&c.ID, &c.OrgID, &c.ProjectID, &c.Name, &c.MinRoleLevel, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateChat inserts an org-wide chat. Project chats are created with their
// project; see CreateProject.
func (s *Store) CreateChat(ctx context.Context, orgID int64, name string, minRoleLevel int) (*Chat, error) {
	c, err := scanChat(s.pool.QueryRow(ctx,
		`INSERT INTO chats (org_id, name, min_role_level)
		 VALUES ($1, $2, $3)
		 RETURNING `+chatColumns,
		orgID, name, minRoleLevel))
	if err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}
	return c, nil
}

func (s *Store) GetChatByID(ctx context.Context, id int64) (*Chat, error) {
	c, err := scanChat(s.pool.QueryRow(ctx,
		"SELECT "+chatColumns+" FROM chats WHERE id = $1", id))
	if err != nil {
		return nil, fmt.Errorf("get chat: %w", err)
	}
	return c, nil
}

// ListChats fetches the given chats in one query, ordered by id.
func (s *Store) ListChats(ctx context.Context, ids []int64) ([]Chat, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := psql.Select(chatColumns).
		From("chats").
		Where(sq.Eq{"id": ids}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("list chats: build query: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	var out []Chat
	for rows.Next() {
		var c Chat
		if err := rows.Scan(&c.ID, &c.OrgID, &c.ProjectID, &c.Name, &c.MinRoleLevel, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("list chats: scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetProjectChat returns the chat attached to a project, or nil if the
// project has none.
func (s *Store) GetProjectChat(ctx context.Context, projectID int64) (*Chat, error) {
	c, err := scanChat(s.pool.QueryRow(ctx,
		"SELECT "+chatColumns+" FROM chats WHERE project_id = $1", projectID))
	if err != nil {
		return nil, fmt.Errorf("get project chat: %w", err)
	}
	return c, nil
}

func (s *Store) UpdateChat(ctx context.Context, id int64, name string, minRoleLevel int) (*Chat, error) {
	c, err := scanChat(s.pool.QueryRow(ctx,
		`UPDATE chats SET name = $2, min_role_level = $3, updated_at = now()
		 WHERE id = $1
		 RETURNING `+chatColumns,
		id, name, minRoleLevel))
	if err != nil {
		return nil, fmt.Errorf("update chat: %w", err)
	}
	return c, nil
}

func (s *Store) DeleteChat(ctx context.Context, id int64) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM chats WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	return nil
}

type ChatGrant struct {
	UserID    int64
	ChatID    int64
	View      bool
	Write     bool
	Muted     bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UpsertChatGrant records a per-user override for a chat. A grant with
// view=false shuts the user out regardless of role or project membership.
func (s *Store) UpsertChatGrant(ctx context.Context, g ChatGrant) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO chat_grants (user_id, chat_id, view, write, muted)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id, chat_id)
		 DO UPDATE SET view = EXCLUDED.view, write = EXCLUDED.write,
		               muted = EXCLUDED.muted, updated_at = now()`,
		g.UserID, g.ChatID, g.View, g.Write, g.Muted)
	if err != nil {
		return fmt.Errorf("upsert chat grant: %w", err)
	}
	return nil
}

// DeleteChatGrant removes the override, returning the user to whatever the
// role threshold and project linkage give them.
func (s *Store) DeleteChatGrant(ctx context.Context, userID, chatID int64) error {
	_, err := s.pool.Exec(ctx,
		"DELETE FROM chat_grants WHERE user_id = $1 AND chat_id = $2",
		userID, chatID)
	if err != nil {
		return fmt.Errorf("delete chat grant: %w", err)
	}
	return nil
}

func (s *Store) ListChatGrants(ctx context.Context, chatID int64) ([]ChatGrant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, chat_id, view, write, muted, created_at, updated_at
		 FROM chat_grants WHERE chat_id = $1 ORDER BY user_id`, chatID)
	if err != nil {
		return nil, fmt.Errorf("list chat grants: %w", err)
	}
	defer rows.Close()

	var out []ChatGrant
	for rows.Next() {
		var g ChatGrant
		if err := rows.Scan(&g.UserID, &g.ChatID, &g.View, &g.Write, &g.Muted, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("list chat grants: scan: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
