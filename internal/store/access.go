// ABOUTME: Postgres implementation of access.Store — the resolver's read view.
// ABOUTME: Each channel set is one bulk query; no per-resource membership checks.
package store

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/delegator-ch/delegator/internal/access"
)

// OrganisationExists implements access.Store.
func (s *Store) OrganisationExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM organisations WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("organisation exists: %w", err)
	}
	return exists, nil
}

// CalendarByID implements access.Store.
func (s *Store) CalendarByID(ctx context.Context, id int64) (*access.Calendar, error) {
	var c access.Calendar
	err := s.pool.QueryRow(ctx,
		"SELECT id, org_id, user_id FROM calendars WHERE id = $1", id).
		Scan(&c.ID, &c.OrgID, &c.UserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("calendar by id: %w", err)
	}
	return &c, nil
}

// EventByID implements access.Store.
func (s *Store) EventByID(ctx context.Context, id int64) (*access.Event, error) {
	var e access.Event
	err := s.pool.QueryRow(ctx,
		"SELECT id, calendar_id FROM events WHERE id = $1", id).
		Scan(&e.ID, &e.CalendarID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("event by id: %w", err)
	}
	return &e, nil
}

// ProjectByID implements access.Store.
func (s *Store) ProjectByID(ctx context.Context, id int64) (*access.Project, error) {
	var p access.Project
	err := s.pool.QueryRow(ctx,
		"SELECT id, org_id, event_id FROM projects WHERE id = $1", id).
		Scan(&p.ID, &p.OrgID, &p.EventID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("project by id: %w", err)
	}
	return &p, nil
}

// ChatByID implements access.Store. The chat's scope is resolved here, once,
// into the explicit ChatScope form.
func (s *Store) ChatByID(ctx context.Context, id int64) (*access.Chat, error) {
	var (
		orgID     int64
		projectID *int64
		c         access.Chat
	)
	err := s.pool.QueryRow(ctx,
		"SELECT id, org_id, project_id, min_role_level FROM chats WHERE id = $1", id).
		Scan(&c.ID, &orgID, &projectID, &c.MinRoleLevel)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("chat by id: %w", err)
	}
	if projectID != nil {
		c.Scope = access.ProjectScope(orgID, *projectID)
	} else {
		c.Scope = access.OrgScope(orgID)
	}
	return &c, nil
}

// SongByID implements access.Store.
func (s *Store) SongByID(ctx context.Context, id int64) (*access.Song, error) {
	var song access.Song
	err := s.pool.QueryRow(ctx,
		"SELECT id, org_id FROM songs WHERE id = $1", id).
		Scan(&song.ID, &song.OrgID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("song by id: %w", err)
	}
	return &song, nil
}

// OrgRole implements access.Store.
func (s *Store) OrgRole(ctx context.Context, userID, orgID int64) (int64, bool, error) {
	var roleID int64
	err := s.pool.QueryRow(ctx,
		"SELECT role_id FROM org_members WHERE user_id = $1 AND org_id = $2",
		userID, orgID).Scan(&roleID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("org role: %w", err)
	}
	return roleID, true, nil
}

// ProjectMember implements access.Store.
func (s *Store) ProjectMember(ctx context.Context, userID, projectID int64) (bool, error) {
	var member bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM project_members WHERE user_id = $1 AND project_id = $2)",
		userID, projectID).Scan(&member)
	if err != nil {
		return false, fmt.Errorf("project member: %w", err)
	}
	return member, nil
}

// ChatGrantFor implements access.Store.
func (s *Store) ChatGrantFor(ctx context.Context, userID, chatID int64) (*access.Grant, error) {
	var g access.Grant
	err := s.pool.QueryRow(ctx,
		`SELECT view, write, muted FROM chat_grants WHERE user_id = $1 AND chat_id = $2`,
		userID, chatID).Scan(&g.View, &g.Write, &g.Muted)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("chat grant: %w", err)
	}
	return &g, nil
}

// ProjectOrgs implements access.Store.
func (s *Store) ProjectOrgs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT p.org_id FROM projects p
		 JOIN project_members pm ON pm.project_id = p.id
		 WHERE pm.user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("project orgs: %w", err)
	}
	return collectIDs(rows)
}

// projectOrgsJoin is the orgs-of-user's-projects subquery used by the
// project channel for kinds without a project linkage of their own.
const projectOrgsJoin = `(SELECT DISTINCT p.org_id FROM projects p
	JOIN project_members pm ON pm.project_id = p.id
	WHERE pm.user_id = ?) po`

// OrgChannelIDs implements access.Store: resources reachable through plain
// org membership. For chats the role-level threshold is applied in the query.
func (s *Store) OrgChannelIDs(ctx context.Context, userID int64, kind access.Kind) ([]int64, error) {
	var sb sq.SelectBuilder
	switch kind {
	case access.KindOrganisation:
		sb = psql.Select("org_id").From("org_members").Where(sq.Eq{"user_id": userID})
	case access.KindCalendar:
		sb = psql.Select("c.id").From("calendars c").
			Join("org_members m ON m.org_id = c.org_id").
			Where(sq.Eq{"m.user_id": userID})
	case access.KindEvent:
		sb = psql.Select("e.id").From("events e").
			Join("calendars c ON c.id = e.calendar_id").
			Join("org_members m ON m.org_id = c.org_id").
			Where(sq.Eq{"m.user_id": userID})
	case access.KindProject:
		sb = psql.Select("p.id").From("projects p").
			Join("org_members m ON m.org_id = p.org_id").
			Where(sq.Eq{"m.user_id": userID})
	case access.KindChat:
		sb = psql.Select("c.id").From("chats c").
			Join("org_members m ON m.org_id = c.org_id").
			Join("roles r ON r.id = m.role_id").
			Where(sq.Eq{"m.user_id": userID}).
			Where("r.level <= c.min_role_level")
	case access.KindSong:
		sb = psql.Select("s.id").From("songs s").
			Join("org_members m ON m.org_id = s.org_id").
			Where(sq.Eq{"m.user_id": userID})
	default:
		return nil, fmt.Errorf("org channel: unknown kind %d", kind)
	}
	return s.queryIDs(ctx, sb, "org channel")
}

// ProjectChannelIDs implements access.Store: resources reachable through
// project membership. Chats use their own project linkage; every other kind
// reaches through the orgs owning the user's projects.
func (s *Store) ProjectChannelIDs(ctx context.Context, userID int64, kind access.Kind) ([]int64, error) {
	var sb sq.SelectBuilder
	switch kind {
	case access.KindProject:
		sb = psql.Select("project_id").From("project_members").Where(sq.Eq{"user_id": userID})
	case access.KindChat:
		sb = psql.Select("c.id").From("chats c").
			Join("project_members pm ON pm.project_id = c.project_id").
			Where(sq.Eq{"pm.user_id": userID})
	case access.KindOrganisation:
		return s.ProjectOrgs(ctx, userID)
	case access.KindCalendar:
		sb = psql.Select("c.id").From("calendars c").
			JoinClause("JOIN "+projectOrgsJoin+" ON po.org_id = c.org_id", userID)
	case access.KindEvent:
		sb = psql.Select("e.id").From("events e").
			Join("calendars c ON c.id = e.calendar_id").
			JoinClause("JOIN "+projectOrgsJoin+" ON po.org_id = c.org_id", userID)
	case access.KindSong:
		sb = psql.Select("s.id").From("songs s").
			JoinClause("JOIN "+projectOrgsJoin+" ON po.org_id = s.org_id", userID)
	default:
		return nil, fmt.Errorf("project channel: unknown kind %d", kind)
	}
	return s.queryIDs(ctx, sb, "project channel")
}

// GrantedChatIDs implements access.Store: chats with an explicit view=true grant.
func (s *Store) GrantedChatIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT chat_id FROM chat_grants WHERE user_id = $1 AND view", userID)
	if err != nil {
		return nil, fmt.Errorf("granted chats: %w", err)
	}
	return collectIDs(rows)
}

// RevokedChatIDs implements access.Store: chats with an explicit view=false
// grant, which overrides the other channels.
func (s *Store) RevokedChatIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT chat_id FROM chat_grants WHERE user_id = $1 AND NOT view", userID)
	if err != nil {
		return nil, fmt.Errorf("revoked chats: %w", err)
	}
	return collectIDs(rows)
}

// PersonalCalendarIDs implements access.Store.
func (s *Store) PersonalCalendarIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id FROM calendars WHERE user_id = $1", userID)
	if err != nil {
		return nil, fmt.Errorf("personal calendars: %w", err)
	}
	return collectIDs(rows)
}

// PersonalCalendarEventIDs implements access.Store: events whose calendar is
// one of the user's personal calendars.
func (s *Store) PersonalCalendarEventIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT e.id FROM events e
		 JOIN calendars c ON c.id = e.calendar_id
		 WHERE c.user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("personal calendar events: %w", err)
	}
	return collectIDs(rows)
}

// UnscopedSongIDs implements access.Store.
func (s *Store) UnscopedSongIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.pool.Query(ctx, "SELECT id FROM songs WHERE org_id IS NULL")
	if err != nil {
		return nil, fmt.Errorf("unscoped songs: %w", err)
	}
	return collectIDs(rows)
}

var kindTables = map[access.Kind]string{
	access.KindOrganisation: "organisations",
	access.KindCalendar:     "calendars",
	access.KindEvent:        "events",
	access.KindProject:      "projects",
	access.KindChat:         "chats",
	access.KindSong:         "songs",
}

// AllIDs implements access.Store: the staff view of a kind.
func (s *Store) AllIDs(ctx context.Context, kind access.Kind) ([]int64, error) {
	table, ok := kindTables[kind]
	if !ok {
		return nil, fmt.Errorf("all ids: unknown kind %d", kind)
	}
	rows, err := s.pool.Query(ctx, "SELECT id FROM "+table)
	if err != nil {
		return nil, fmt.Errorf("all ids: %w", err)
	}
	return collectIDs(rows)
}

// OrgMembersAtLevel implements access.Store: backs the admin invariant's
// read-only form. The write path re-checks inside its own transaction.
func (s *Store) OrgMembersAtLevel(ctx context.Context, orgID int64, level int) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM org_members m
		 JOIN roles r ON r.id = m.role_id
		 WHERE m.org_id = $1 AND r.level = $2`,
		orgID, level).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("org members at level: %w", err)
	}
	return count, nil
}

func (s *Store) queryIDs(ctx context.Context, sb sq.SelectBuilder, what string) ([]int64, error) {
	query, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: build query: %w", what, err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	return collectIDs(rows)
}
