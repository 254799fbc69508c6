// ABOUTME: Resource kinds, actions, and entity records consumed by the access core.
// ABOUTME: ChatScope is the resolved ownership of a chat — built once, never probed.
package access

// Kind identifies a resource kind the resolver can decide on.
type Kind int

const (
	KindOrganisation Kind = iota
	KindCalendar
	KindEvent
	KindProject
	KindChat
	KindSong
)

func (k Kind) String() string {
	switch k {
	case KindOrganisation:
		return "organisation"
	case KindCalendar:
		return "calendar"
	case KindEvent:
		return "event"
	case KindProject:
		return "project"
	case KindChat:
		return "chat"
	case KindSong:
		return "song"
	}
	return "unknown"
}

// Action is the operation a caller wants to perform on a resource.
type Action int

const (
	ActionView Action = iota
	ActionWrite
	ActionCreate
	ActionMove
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionView:
		return "view"
	case ActionWrite:
		return "write"
	case ActionCreate:
		return "create"
	case ActionMove:
		return "move"
	case ActionDelete:
		return "delete"
	}
	return "unknown"
}

// User carries the two flags the resolver cares about. IsStaff bypasses every
// check; IsPremium gates org creation in the API layer, not here.
type User struct {
	ID        int64
	IsStaff   bool
	IsPremium bool
}

// Organisation is the root of one ownership tree.
type Organisation struct {
	ID   int64
	Name string
}

// Calendar belongs to an organisation. UserID, when non-nil, makes it a
// personal calendar: that user has access regardless of org role.
type Calendar struct {
	ID     int64
	OrgID  int64
	UserID *int64
}

// Event inherits its calendar's accessibility.
type Event struct {
	ID         int64
	CalendarID int64
}

// Project lives inside exactly one organisation. EventID optionally links the
// project to a scheduled event.
type Project struct {
	ID      int64
	OrgID   int64
	EventID *int64
}

// ChatScope is a chat's resolved ownership chain: always an organisation,
// optionally a project. It is constructed once when the chat row is loaded so
// that no call site has to probe for an optional relation.
type ChatScope struct {
	org       int64
	project   int64
	inProject bool
}

// OrgScope returns the scope of an organisation-wide chat.
func OrgScope(orgID int64) ChatScope {
	return ChatScope{org: orgID}
}

// ProjectScope returns the scope of a chat attached to a project.
func ProjectScope(orgID, projectID int64) ChatScope {
	return ChatScope{org: orgID, project: projectID, inProject: true}
}

// Org returns the owning organisation.
func (s ChatScope) Org() int64 { return s.org }

// Project returns the linked project and whether one exists.
func (s ChatScope) Project() (int64, bool) { return s.project, s.inProject }

// Chat is an organisation channel with a role-level threshold. An org member
// qualifies iff their role level <= MinRoleLevel (lower level = more
// privileged, so the comparison is inclusive at the boundary).
type Chat struct {
	ID           int64
	Scope        ChatScope
	MinRoleLevel int
}

// Grant is a direct per-user-per-chat access row. Its presence is
// authoritative: View/Write override whatever the project and organisation
// channels would decide. Muted only affects notification delivery.
type Grant struct {
	View  bool
	Write bool
	Muted bool
}

// Song belongs to an organisation, or to none: a song with OrgID == nil is
// globally unscoped and viewable by every user.
type Song struct {
	ID    int64
	OrgID *int64
}
