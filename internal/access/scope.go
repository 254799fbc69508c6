// ABOUTME: Scope graph — resolves each resource's ownership chain to its organisation.
// ABOUTME: Fails closed: a dangling link yields ErrOrphanedResource, never a grant.
package access

import (
	"context"
	"fmt"
)

// Graph resolves ownership chains. It is a pure traversal over Store reads
// with one extra duty: when a link in the chain is missing (a dangling
// foreign key), it reports the orphan explicitly so that data corruption is
// never mistaken for an ordinary denial.
type Graph struct {
	store Store
}

// NewGraph returns a Graph over store.
func NewGraph(store Store) *Graph { return &Graph{store: store} }

// orgOf verifies that orgID exists and returns it. kind and id identify the
// resource being resolved, for the orphan report.
func (g *Graph) orgOf(ctx context.Context, kind Kind, id, orgID int64) (int64, error) {
	ok, err := g.store.OrganisationExists(ctx, orgID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%s %d references missing organisation %d: %w",
			kind, id, orgID, ErrOrphanedResource)
	}
	return orgID, nil
}

// OrgOfCalendar returns the calendar's owning organisation.
func (g *Graph) OrgOfCalendar(ctx context.Context, cal *Calendar) (int64, error) {
	return g.orgOf(ctx, KindCalendar, cal.ID, cal.OrgID)
}

// CalendarOfEvent returns the event's calendar, or ErrOrphanedResource when
// the calendar row is gone.
func (g *Graph) CalendarOfEvent(ctx context.Context, ev *Event) (*Calendar, error) {
	cal, err := g.store.CalendarByID(ctx, ev.CalendarID)
	if err != nil {
		return nil, err
	}
	if cal == nil {
		return nil, fmt.Errorf("event %d references missing calendar %d: %w",
			ev.ID, ev.CalendarID, ErrOrphanedResource)
	}
	return cal, nil
}

// OrgOfProject returns the project's owning organisation.
func (g *Graph) OrgOfProject(ctx context.Context, p *Project) (int64, error) {
	return g.orgOf(ctx, KindProject, p.ID, p.OrgID)
}

// OrgOfChat returns the chat's owning organisation.
func (g *Graph) OrgOfChat(ctx context.Context, c *Chat) (int64, error) {
	return g.orgOf(ctx, KindChat, c.ID, c.Scope.Org())
}

// OrgOfSong returns the song's owning organisation. ok=false means the song
// is globally unscoped (no organisation at all), which is a legitimate state,
// not an orphan.
func (g *Graph) OrgOfSong(ctx context.Context, s *Song) (int64, bool, error) {
	if s.OrgID == nil {
		return 0, false, nil
	}
	orgID, err := g.orgOf(ctx, KindSong, s.ID, *s.OrgID)
	if err != nil {
		return 0, false, err
	}
	return orgID, true, nil
}
