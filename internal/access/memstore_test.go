// ABOUTME: In-memory access.Store fake for resolver and guard unit tests.
// ABOUTME: Bulk methods mirror the SQL channel queries over plain maps.
package access

import "context"

type pair struct{ a, b int64 }

// memStore holds fixture data keyed the way the real schema is. roleLevels
// stands in for the roles table so the org channel can apply chat thresholds.
type memStore struct {
	users      map[int64]*User
	orgs       map[int64]*Organisation
	calendars  map[int64]*Calendar
	events     map[int64]*Event
	projects   map[int64]*Project
	chats      map[int64]*Chat
	songs      map[int64]*Song
	orgRoles   map[pair]int64 // (user, org) -> role
	projMember map[pair]bool  // (user, project)
	grants     map[pair]Grant // (user, chat)
	roleLevels map[int64]int
}

func newMemStore() *memStore {
	return &memStore{
		users:      map[int64]*User{},
		orgs:       map[int64]*Organisation{},
		calendars:  map[int64]*Calendar{},
		events:     map[int64]*Event{},
		projects:   map[int64]*Project{},
		chats:      map[int64]*Chat{},
		songs:      map[int64]*Song{},
		orgRoles:   map[pair]int64{},
		projMember: map[pair]bool{},
		grants:     map[pair]Grant{},
		roleLevels: map[int64]int{},
	}
}

func (m *memStore) UserByID(_ context.Context, id int64) (*User, error) { return m.users[id], nil }

func (m *memStore) OrganisationExists(_ context.Context, id int64) (bool, error) {
	_, ok := m.orgs[id]
	return ok, nil
}

func (m *memStore) CalendarByID(_ context.Context, id int64) (*Calendar, error) {
	return m.calendars[id], nil
}

func (m *memStore) EventByID(_ context.Context, id int64) (*Event, error) { return m.events[id], nil }

func (m *memStore) ProjectByID(_ context.Context, id int64) (*Project, error) {
	return m.projects[id], nil
}

func (m *memStore) ChatByID(_ context.Context, id int64) (*Chat, error) { return m.chats[id], nil }

func (m *memStore) SongByID(_ context.Context, id int64) (*Song, error) { return m.songs[id], nil }

func (m *memStore) OrgRole(_ context.Context, userID, orgID int64) (int64, bool, error) {
	role, ok := m.orgRoles[pair{userID, orgID}]
	return role, ok, nil
}

func (m *memStore) ProjectMember(_ context.Context, userID, projectID int64) (bool, error) {
	return m.projMember[pair{userID, projectID}], nil
}

func (m *memStore) ChatGrantFor(_ context.Context, userID, chatID int64) (*Grant, error) {
	if g, ok := m.grants[pair{userID, chatID}]; ok {
		return &g, nil
	}
	return nil, nil
}

func (m *memStore) ProjectOrgs(_ context.Context, userID int64) ([]int64, error) {
	seen := map[int64]struct{}{}
	var orgs []int64
	for key, member := range m.projMember {
		if !member || key.a != userID {
			continue
		}
		p, ok := m.projects[key.b]
		if !ok {
			continue
		}
		if _, dup := seen[p.OrgID]; !dup {
			seen[p.OrgID] = struct{}{}
			orgs = append(orgs, p.OrgID)
		}
	}
	return orgs, nil
}

// memberOrgs returns the orgs the user belongs to, regardless of role.
func (m *memStore) memberOrgs(userID int64) map[int64]int64 {
	orgs := map[int64]int64{}
	for key, role := range m.orgRoles {
		if key.a == userID {
			orgs[key.b] = role
		}
	}
	return orgs
}

func (m *memStore) OrgChannelIDs(ctx context.Context, userID int64, kind Kind) ([]int64, error) {
	orgs := m.memberOrgs(userID)
	return m.idsInOrgs(kind, orgs, true), nil
}

func (m *memStore) ProjectChannelIDs(ctx context.Context, userID int64, kind Kind) ([]int64, error) {
	switch kind {
	case KindProject:
		var ids []int64
		for key, member := range m.projMember {
			if member && key.a == userID {
				ids = append(ids, key.b)
			}
		}
		return ids, nil
	case KindChat:
		projects := map[int64]struct{}{}
		for key, member := range m.projMember {
			if member && key.a == userID {
				projects[key.b] = struct{}{}
			}
		}
		var ids []int64
		for id, c := range m.chats {
			if pid, ok := c.Scope.Project(); ok {
				if _, member := projects[pid]; member {
					ids = append(ids, id)
				}
			}
		}
		return ids, nil
	default:
		projOrgs, _ := m.ProjectOrgs(ctx, userID)
		orgs := map[int64]int64{}
		for _, o := range projOrgs {
			orgs[o] = 0
		}
		return m.idsInOrgs(kind, orgs, false), nil
	}
}

// idsInOrgs collects resources of kind owned by any org in orgs. When
// applyThreshold is set, chats additionally require the member's role level
// to pass the chat's min_role_level (the org channel's threshold).
func (m *memStore) idsInOrgs(kind Kind, orgs map[int64]int64, applyThreshold bool) []int64 {
	var ids []int64
	switch kind {
	case KindOrganisation:
		for orgID := range orgs {
			ids = append(ids, orgID)
		}
	case KindCalendar:
		for id, c := range m.calendars {
			if _, ok := orgs[c.OrgID]; ok {
				ids = append(ids, id)
			}
		}
	case KindEvent:
		for id, ev := range m.events {
			cal, ok := m.calendars[ev.CalendarID]
			if !ok {
				continue
			}
			if _, ok := orgs[cal.OrgID]; ok {
				ids = append(ids, id)
			}
		}
	case KindProject:
		for id, p := range m.projects {
			if _, ok := orgs[p.OrgID]; ok {
				ids = append(ids, id)
			}
		}
	case KindChat:
		for id, c := range m.chats {
			role, ok := orgs[c.Scope.Org()]
			if !ok {
				continue
			}
			if applyThreshold && m.roleLevels[role] > c.MinRoleLevel {
				continue
			}
			ids = append(ids, id)
		}
	case KindSong:
		for id, s := range m.songs {
			if s.OrgID == nil {
				continue
			}
			if _, ok := orgs[*s.OrgID]; ok {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

func (m *memStore) GrantedChatIDs(_ context.Context, userID int64) ([]int64, error) {
	var ids []int64
	for key, g := range m.grants {
		if key.a == userID && g.View {
			ids = append(ids, key.b)
		}
	}
	return ids, nil
}

func (m *memStore) RevokedChatIDs(_ context.Context, userID int64) ([]int64, error) {
	var ids []int64
	for key, g := range m.grants {
		if key.a == userID && !g.View {
			ids = append(ids, key.b)
		}
	}
	return ids, nil
}

func (m *memStore) PersonalCalendarIDs(_ context.Context, userID int64) ([]int64, error) {
	var ids []int64
	for id, c := range m.calendars {
		if c.UserID != nil && *c.UserID == userID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memStore) PersonalCalendarEventIDs(_ context.Context, userID int64) ([]int64, error) {
	var ids []int64
	for id, ev := range m.events {
		cal, ok := m.calendars[ev.CalendarID]
		if !ok {
			continue
		}
		if cal.UserID != nil && *cal.UserID == userID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memStore) UnscopedSongIDs(_ context.Context) ([]int64, error) {
	var ids []int64
	for id, s := range m.songs {
		if s.OrgID == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memStore) AllIDs(_ context.Context, kind Kind) ([]int64, error) {
	var ids []int64
	switch kind {
	case KindOrganisation:
		for id := range m.orgs {
			ids = append(ids, id)
		}
	case KindCalendar:
		for id := range m.calendars {
			ids = append(ids, id)
		}
	case KindEvent:
		for id := range m.events {
			ids = append(ids, id)
		}
	case KindProject:
		for id := range m.projects {
			ids = append(ids, id)
		}
	case KindChat:
		for id := range m.chats {
			ids = append(ids, id)
		}
	case KindSong:
		for id := range m.songs {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memStore) OrgMembersAtLevel(_ context.Context, orgID int64, level int) (int, error) {
	count := 0
	for key, role := range m.orgRoles {
		if key.b == orgID && m.roleLevels[role] == level {
			count++
		}
	}
	return count, nil
}
