// ABOUTME: Project persistence. Creating a project also creates its chat in
// ABOUTME: the same transaction, so a project never exists without one.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

type Project struct {
	ID        int64
	OrgID     int64
	EventID   *int64
	Name      string
	Deadline  *time.Time
	Priority  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

const projectColumns = "id, org_id, event_id, name, deadline, priority, created_at, updated_at"

func scanProject(row pgx.Row) (*Project, error) {
	var p Project
	err := row.Scan(&p.ID, &p.OrgID, &p.EventID, &p.Name, &p.Deadline, &p.Priority, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

type CreateProjectParams struct {
	OrgID    int64
	EventID  *int64
	Name     string
	Deadline *time.Time
	Priority int
	// ChatMinRoleLevel sets the threshold on the project's chat.
	ChatMinRoleLevel int
	// CreatorID, when non-zero, becomes the first project member.
	CreatorID int64
}

// CreateProject inserts a project together with its chat. The chat is scoped
// to the project and inherits the org.
func (s *Store) CreateProject(ctx context.Context, p CreateProjectParams) (*Project, error) {
	var created *Project
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		proj, err := scanProject(tx.QueryRow(ctx,
			`INSERT INTO projects (org_id, event_id, name, deadline, priority)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING `+projectColumns,
			p.OrgID, p.EventID, p.Name, p.Deadline, p.Priority))
		if err != nil {
			return fmt.Errorf("insert project: %w", err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO chats (org_id, project_id, name, min_role_level)
			 VALUES ($1, $2, $3, $4)`,
			p.OrgID, proj.ID, p.Name, p.ChatMinRoleLevel)
		if err != nil {
			return fmt.Errorf("insert project chat: %w", err)
		}
		if p.CreatorID != 0 {
			_, err = tx.Exec(ctx,
				`INSERT INTO project_members (user_id, project_id) VALUES ($1, $2)`,
				p.CreatorID, proj.ID)
			if err != nil {
				return fmt.Errorf("insert creator membership: %w", err)
			}
		}
		created = proj
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return created, nil
}

func (s *Store) GetProjectByID(ctx context.Context, id int64) (*Project, error) {
	p, err := scanProject(s.pool.QueryRow(ctx,
		"SELECT "+projectColumns+" FROM projects WHERE id = $1", id))
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// ListProjects fetches the given projects in one query, ordered by id.
func (s *Store) ListProjects(ctx context.Context, ids []int64) ([]Project, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := psql.Select(projectColumns).
		From("projects").
		Where(sq.Eq{"id": ids}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("list projects: build query: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.OrgID, &p.EventID, &p.Name, &p.Deadline, &p.Priority, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("list projects: scan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type UpdateProjectParams struct {
	Name     string
	EventID  *int64
	Deadline *time.Time
	Priority int
}

func (s *Store) UpdateProject(ctx context.Context, id int64, p UpdateProjectParams) (*Project, error) {
	proj, err := scanProject(s.pool.QueryRow(ctx,
		`UPDATE projects SET name = $2, event_id = $3, deadline = $4, priority = $5, updated_at = now()
		 WHERE id = $1
		 RETURNING `+projectColumns,
		id, p.Name, p.EventID, p.Deadline, p.Priority))
	if err != nil {
		return nil, fmt.Errorf("update project: %w", err)
	}
	return proj, nil
}

// MoveProject reparents a project, and its chat, to another organisation.
func (s *Store) MoveProject(ctx context.Context, id, newOrgID int64) (*Project, error) {
	var moved *Project
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		p, err := scanProject(tx.QueryRow(ctx,
			`UPDATE projects SET org_id = $2, updated_at = now()
			 WHERE id = $1
			 RETURNING `+projectColumns,
			id, newOrgID))
		if err != nil {
			return fmt.Errorf("update project: %w", err)
		}
		if p == nil {
			return nil
		}
		_, err = tx.Exec(ctx,
			`UPDATE chats SET org_id = $2, updated_at = now() WHERE project_id = $1`,
			id, newOrgID)
		if err != nil {
			return fmt.Errorf("update project chat: %w", err)
		}
		moved = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("move project: %w", err)
	}
	return moved, nil
}

func (s *Store) DeleteProject(ctx context.Context, id int64) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM projects WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}

func (s *Store) AddProjectMember(ctx context.Context, userID, projectID int64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO project_members (user_id, project_id)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id, project_id) DO NOTHING`,
		userID, projectID)
	if err != nil {
		return fmt.Errorf("add project member: %w", err)
	}
	return nil
}

func (s *Store) RemoveProjectMember(ctx context.Context, userID, projectID int64) error {
	_, err := s.pool.Exec(ctx,
		"DELETE FROM project_members WHERE user_id = $1 AND project_id = $2",
		userID, projectID)
	if err != nil {
		return fmt.Errorf("remove project member: %w", err)
	}
	return nil
}

func (s *Store) ListProjectMembers(ctx context.Context, projectID int64) ([]int64, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT user_id FROM project_members WHERE project_id = $1 ORDER BY user_id", projectID)
	if err != nil {
		return nil, fmt.Errorf("list project members: %w", err)
	}
	return collectIDs(rows)
}
