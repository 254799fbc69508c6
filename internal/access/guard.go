// ABOUTME: Mutation guard — wraps resolver decisions around state-changing operations.
// ABOUTME: It only ever vetoes; the store performs the mutation after the guard passes.
package access

import (
	"context"
	"fmt"
)

// Parent is the declared parent scope of a resource that does not exist yet
// (create) or is being reattached (move): the organisation a calendar will
// belong to, the calendar an event goes into, and so on.
type Parent struct {
	Kind Kind
	ID   int64
}

// Guard authorizes writes. Decision failures come back as ErrDenied (wrapped
// with what was attempted); orphan and config conditions propagate unchanged
// from the resolver.
type Guard struct {
	resolver *Resolver
}

// NewGuard returns a Guard over resolver.
func NewGuard(resolver *Resolver) *Guard { return &Guard{resolver: resolver} }

// AuthorizeCreate checks that the caller may write to the declared parent
// scope before the child resource exists. The child is a synthetic
// descriptor at this point; only the parent is consulted.
func (g *Guard) AuthorizeCreate(ctx context.Context, userID int64, kind Kind, parent Parent) error {
	ok, err := g.resolver.CanAccess(ctx, userID, ActionWrite, parent.Kind, parent.ID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("create %s in %s %d: %w", kind, parent.Kind, parent.ID, ErrDenied)
	}
	return nil
}

// AuthorizeWrite checks an update to an existing resource.
func (g *Guard) AuthorizeWrite(ctx context.Context, userID int64, kind Kind, id int64) error {
	return g.authorize(ctx, userID, ActionWrite, kind, id)
}

// AuthorizeDelete checks a deletion.
func (g *Guard) AuthorizeDelete(ctx context.Context, userID int64, kind Kind, id int64) error {
	return g.authorize(ctx, userID, ActionDelete, kind, id)
}

// AuthorizeMove checks a reparenting: the caller must hold access to the
// resource under its current parent AND to the requested new parent. Failing
// either blocks the whole operation; there is no partial move.
func (g *Guard) AuthorizeMove(ctx context.Context, userID int64, kind Kind, id int64, newParent Parent) error {
	ok, err := g.resolver.CanAccess(ctx, userID, ActionMove, kind, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("move %s %d: %w", kind, id, ErrDenied)
	}
	ok, err = g.resolver.CanAccess(ctx, userID, ActionWrite, newParent.Kind, newParent.ID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("move %s %d into %s %d: %w", kind, id, newParent.Kind, newParent.ID, ErrDenied)
	}
	return nil
}

func (g *Guard) authorize(ctx context.Context, userID int64, action Action, kind Kind, id int64) error {
	ok, err := g.resolver.CanAccess(ctx, userID, action, kind, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s %s %d: %w", action, kind, id, ErrDenied)
	}
	return nil
}

// AssertAdminInvariant verifies that orgID still has at least one member at
// the registry's top privilege level. Call it after every org membership
// deletion; the store's removal path runs it inside the same transaction so
// two concurrent removals cannot both slip past it.
func (g *Guard) AssertAdminInvariant(ctx context.Context, orgID int64) error {
	count, err := g.resolver.store.OrgMembersAtLevel(ctx, orgID, g.resolver.roles.TopLevel())
	if err != nil {
		return err
	}
	if count < 1 {
		return fmt.Errorf("organisation %d: %w", orgID, ErrLastAdmin)
	}
	return nil
}
