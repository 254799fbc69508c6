// Package access is the authorization core: it decides, for any (user,
// resource) pair, whether access is granted, and computes the complete
// accessible-resource set per kind for listing.
//
// Access is the union of three independent channels — a direct per-resource
// grant, project membership, and organisation membership filtered by role
// level — resolved through each resource's ownership chain. A present direct
// grant is authoritative and short-circuits the other channels; the project
// and organisation channels are a plain OR.
//
// The package is read-only: it holds no state beyond the Store snapshot it
// is called with, performs no writes, and is safe for any degree of
// concurrent use.
package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

// Resolver computes access decisions and accessible sets.
type Resolver struct {
	store Store
	roles *Registry
	graph *Graph
}

// NewResolver returns a Resolver over store, with roles as the immutable
// role-level catalog.
func NewResolver(store Store, roles *Registry) *Resolver {
	return &Resolver{store: store, roles: roles, graph: NewGraph(store)}
}

// Roles exposes the registry for callers that need level thresholds (the
// guard's admin invariant, the API's org-level middleware).
func (r *Resolver) Roles() *Registry { return r.roles }

// CanAccess reports whether userID may perform action on the resource
// (kind, id). A missing resource or user is an ordinary deny. An orphaned
// ownership chain denies and returns ErrOrphanedResource; an unknown role ID
// aborts with ErrConfig.
func (r *Resolver) CanAccess(ctx context.Context, userID int64, action Action, kind Kind, id int64) (bool, error) {
	ok, err := r.decide(ctx, userID, action, kind, id)
	switch {
	case errors.Is(err, ErrOrphanedResource):
		slog.WarnContext(ctx, "orphaned resource in access check",
			"kind", kind.String(), "id", id, "error", err)
		decisions.WithLabelValues(kind.String(), outcomeOrphaned).Inc()
	case errors.Is(err, ErrConfig):
		slog.ErrorContext(ctx, "role configuration error in access check",
			"kind", kind.String(), "id", id, "error", err)
		decisions.WithLabelValues(kind.String(), outcomeConfigError).Inc()
	case err != nil:
		decisions.WithLabelValues(kind.String(), outcomeError).Inc()
	case ok:
		decisions.WithLabelValues(kind.String(), outcomeAllow).Inc()
	default:
		decisions.WithLabelValues(kind.String(), outcomeDeny).Inc()
	}
	return ok, err
}

func (r *Resolver) decide(ctx context.Context, userID int64, action Action, kind Kind, id int64) (bool, error) {
	user, err := r.store.UserByID(ctx, userID)
	if err != nil {
		return false, err
	}
	if user == nil {
		return false, nil
	}
	if user.IsStaff {
		// Unconditional bypass. Documented behavior, not a loophole.
		return true, nil
	}

	switch kind {
	case KindOrganisation:
		return r.decideOrganisation(ctx, userID, id)
	case KindCalendar:
		cal, err := r.store.CalendarByID(ctx, id)
		if err != nil || cal == nil {
			return false, err
		}
		return r.decideCalendar(ctx, userID, cal)
	case KindEvent:
		ev, err := r.store.EventByID(ctx, id)
		if err != nil || ev == nil {
			return false, err
		}
		cal, err := r.graph.CalendarOfEvent(ctx, ev)
		if err != nil {
			return false, err
		}
		return r.decideCalendar(ctx, userID, cal)
	case KindProject:
		return r.decideProject(ctx, userID, id)
	case KindChat:
		return r.decideChat(ctx, userID, action, id)
	case KindSong:
		return r.decideSong(ctx, userID, action, id)
	}
	return false, fmt.Errorf("unknown resource kind %d", kind)
}

func (r *Resolver) decideOrganisation(ctx context.Context, userID, orgID int64) (bool, error) {
	exists, err := r.store.OrganisationExists(ctx, orgID)
	if err != nil || !exists {
		return false, err
	}
	if _, ok, err := r.store.OrgRole(ctx, userID, orgID); err != nil || ok {
		return ok, err
	}
	return r.reachableThroughProjects(ctx, userID, orgID)
}

// decideCalendar handles both calendars and events (an event resolves to its
// calendar first). The direct channel is the personal-calendar assignment.
func (r *Resolver) decideCalendar(ctx context.Context, userID int64, cal *Calendar) (bool, error) {
	if cal.UserID != nil && *cal.UserID == userID {
		return true, nil
	}
	orgID, err := r.graph.OrgOfCalendar(ctx, cal)
	if err != nil {
		return false, err
	}
	if _, ok, err := r.store.OrgRole(ctx, userID, orgID); err != nil || ok {
		return ok, err
	}
	return r.reachableThroughProjects(ctx, userID, orgID)
}

func (r *Resolver) decideProject(ctx context.Context, userID, projectID int64) (bool, error) {
	p, err := r.store.ProjectByID(ctx, projectID)
	if err != nil || p == nil {
		return false, err
	}
	// Project membership grants access regardless of the user's organisation
	// standing, or absence thereof.
	member, err := r.store.ProjectMember(ctx, userID, projectID)
	if err != nil || member {
		return member, err
	}
	orgID, err := r.graph.OrgOfProject(ctx, p)
	if err != nil {
		return false, err
	}
	_, ok, err := r.store.OrgRole(ctx, userID, orgID)
	return ok, err
}

func (r *Resolver) decideChat(ctx context.Context, userID int64, action Action, chatID int64) (bool, error) {
	c, err := r.store.ChatByID(ctx, chatID)
	if err != nil || c == nil {
		return false, err
	}

	// Direct channel first: a grant row, when present, is authoritative for
	// the view/write decision and no further channel is consulted.
	grant, err := r.store.ChatGrantFor(ctx, userID, chatID)
	if err != nil {
		return false, err
	}
	if grant != nil {
		if action == ActionView {
			return grant.View, nil
		}
		return grant.Write, nil
	}

	// Project channel: only the chat's own project linkage counts here, so
	// that the org-level threshold below stays meaningful for org-wide chats.
	if projectID, ok := c.Scope.Project(); ok {
		member, err := r.store.ProjectMember(ctx, userID, projectID)
		if err != nil || member {
			return member, err
		}
	}

	orgID, err := r.graph.OrgOfChat(ctx, c)
	if err != nil {
		return false, err
	}
	roleID, ok, err := r.store.OrgRole(ctx, userID, orgID)
	if err != nil || !ok {
		return false, err
	}
	level, err := r.roles.LevelOf(roleID)
	if err != nil {
		return false, err
	}
	return level <= c.MinRoleLevel, nil
}

func (r *Resolver) decideSong(ctx context.Context, userID int64, action Action, songID int64) (bool, error) {
	s, err := r.store.SongByID(ctx, songID)
	if err != nil || s == nil {
		return false, err
	}
	orgID, scoped, err := r.graph.OrgOfSong(ctx, s)
	if err != nil {
		return false, err
	}
	if !scoped {
		// No tenant owns an unscoped song: everyone may view it, and no
		// channel can grant a write (staff bypass already happened).
		return action == ActionView, nil
	}
	if _, ok, err := r.store.OrgRole(ctx, userID, orgID); err != nil || ok {
		return ok, err
	}
	return r.reachableThroughProjects(ctx, userID, orgID)
}

// reachableThroughProjects reports whether orgID owns a project the user is a
// member of — the project channel's reach for org-scoped kinds without a
// project linkage of their own.
func (r *Resolver) reachableThroughProjects(ctx context.Context, userID, orgID int64) (bool, error) {
	orgs, err := r.store.ProjectOrgs(ctx, userID)
	if err != nil {
		return false, err
	}
	return slices.Contains(orgs, orgID), nil
}

// AccessibleSet returns the IDs of every resource of kind the user can view.
// It is the deduplicated union of the three channel sets, each fetched with a
// single bulk query; this backs every "list my X" call, so no per-resource
// membership checks happen here.
func (r *Resolver) AccessibleSet(ctx context.Context, userID int64, kind Kind) (map[int64]struct{}, error) {
	user, err := r.store.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return map[int64]struct{}{}, nil
	}
	if user.IsStaff {
		ids, err := r.store.AllIDs(ctx, kind)
		if err != nil {
			return nil, err
		}
		return toSet(ids), nil
	}

	set := make(map[int64]struct{})

	// Direct channel.
	switch kind {
	case KindChat:
		granted, err := r.store.GrantedChatIDs(ctx, userID)
		if err != nil {
			return nil, err
		}
		addAll(set, granted)
	case KindCalendar:
		personal, err := r.store.PersonalCalendarIDs(ctx, userID)
		if err != nil {
			return nil, err
		}
		addAll(set, personal)
	case KindEvent:
		// Events inherit the calendar's direct channel.
		personal, err := r.store.PersonalCalendarEventIDs(ctx, userID)
		if err != nil {
			return nil, err
		}
		addAll(set, personal)
	}

	// Project and organisation channels are commutative; order is arbitrary.
	project, err := r.store.ProjectChannelIDs(ctx, userID, kind)
	if err != nil {
		return nil, err
	}
	addAll(set, project)

	org, err := r.store.OrgChannelIDs(ctx, userID, kind)
	if err != nil {
		return nil, err
	}
	addAll(set, org)

	if kind == KindSong {
		unscoped, err := r.store.UnscopedSongIDs(ctx)
		if err != nil {
			return nil, err
		}
		addAll(set, unscoped)
	}

	// Direct-grant precedence: an explicit view=false grant overrides
	// whatever the other channels contributed. The one deliberate exception
	// to monotonicity.
	if kind == KindChat {
		revoked, err := r.store.RevokedChatIDs(ctx, userID)
		if err != nil {
			return nil, err
		}
		for _, id := range revoked {
			delete(set, id)
		}
	}

	return set, nil
}

func toSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	addAll(set, ids)
	return set
}

func addAll(set map[int64]struct{}, ids []int64) {
	for _, id := range ids {
		set[id] = struct{}{}
	}
}
