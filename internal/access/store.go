// ABOUTME: The abstract query interface the access core consumes.
// ABOUTME: Pure reads; absence is (nil/zero, false, nil) — never an error.
package access

import "context"

// Store is the read view the resolver and guard run against. internal/store
// implements it on Postgres; tests use an in-memory fake. Every method is a
// pure read against a point-in-time snapshot; the core itself never writes.
//
// Record lookups return (nil, nil) when the row is absent — absence is a
// normal outcome, never conflated with a failure. The bulk methods each map
// to a single query so that set resolution never degenerates into per-row
// membership checks.
type Store interface {
	// Record fetches (scope-graph links).
	UserByID(ctx context.Context, id int64) (*User, error)
	OrganisationExists(ctx context.Context, id int64) (bool, error)
	CalendarByID(ctx context.Context, id int64) (*Calendar, error)
	EventByID(ctx context.Context, id int64) (*Event, error)
	ProjectByID(ctx context.Context, id int64) (*Project, error)
	ChatByID(ctx context.Context, id int64) (*Chat, error)
	SongByID(ctx context.Context, id int64) (*Song, error)

	// Membership lookups (composite key; ok=false means no row).
	OrgRole(ctx context.Context, userID, orgID int64) (roleID int64, ok bool, err error)
	ProjectMember(ctx context.Context, userID, projectID int64) (bool, error)
	ChatGrantFor(ctx context.Context, userID, chatID int64) (*Grant, error)

	// ProjectOrgs returns the distinct organisations owning a project the
	// user is a member of — the project channel's reach for kinds that have
	// no project linkage of their own.
	ProjectOrgs(ctx context.Context, userID int64) ([]int64, error)

	// Bulk channel sets, one query each. OrgChannelIDs applies the chat
	// role-level threshold in the query for KindChat. ProjectChannelIDs uses
	// the chat's own project linkage for KindChat and the orgs-of-projects
	// chain for every other kind.
	OrgChannelIDs(ctx context.Context, userID int64, kind Kind) ([]int64, error)
	ProjectChannelIDs(ctx context.Context, userID int64, kind Kind) ([]int64, error)
	GrantedChatIDs(ctx context.Context, userID int64) ([]int64, error)
	RevokedChatIDs(ctx context.Context, userID int64) ([]int64, error)
	PersonalCalendarIDs(ctx context.Context, userID int64) ([]int64, error)
	// PersonalCalendarEventIDs returns the events of the user's personal
	// calendars. Events have no direct channel of their own; they inherit the
	// calendar's, and this keeps set resolution in step with per-event
	// decisions.
	PersonalCalendarEventIDs(ctx context.Context, userID int64) ([]int64, error)
	UnscopedSongIDs(ctx context.Context) ([]int64, error)

	// AllIDs enumerates every live resource of a kind — the staff view.
	AllIDs(ctx context.Context, kind Kind) ([]int64, error)

	// OrgMembersAtLevel counts members of orgID whose role level equals
	// level. Backs the last-admin invariant.
	OrgMembersAtLevel(ctx context.Context, orgID int64, level int) (int, error)
}
