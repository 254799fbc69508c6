// ABOUTME: Store methods for organisations and org membership.
// ABOUTME: RemoveOrgMember enforces the last-admin invariant transactionally.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/delegator-ch/delegator/internal/access"
)

// Organisation is a full organisation row.
type Organisation struct {
	ID    int64
	Name  string
	Since time.Time
}

// OrgMember is one membership row joined with its user and role.
type OrgMember struct {
	UserID      int64
	Email       string
	DisplayName string
	RoleID      int64
	RoleName    string
	RoleLevel   int
	JoinedAt    time.Time
}

// CreateOrgWithOwner atomically creates an organisation and adds ownerID as
// a member at the top privilege level, so the admin invariant holds from the
// first moment the org exists.
func (s *Store) CreateOrgWithOwner(ctx context.Context, name string, ownerID int64) (*Organisation, error) {
	var org Organisation
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			"INSERT INTO organisations (name) VALUES ($1) RETURNING id, name, since",
			name).Scan(&org.ID, &org.Name, &org.Since)
		if err != nil {
			return fmt.Errorf("create organisation: %w", err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO org_members (user_id, org_id, role_id)
			 VALUES ($1, $2, (SELECT id FROM roles ORDER BY level LIMIT 1))`,
			ownerID, org.ID)
		if err != nil {
			return fmt.Errorf("add owner: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &org, nil
}

// GetOrgByID returns the organisation, or (nil, nil).
func (s *Store) GetOrgByID(ctx context.Context, id int64) (*Organisation, error) {
	var org Organisation
	err := s.pool.QueryRow(ctx,
		"SELECT id, name, since FROM organisations WHERE id = $1", id).
		Scan(&org.ID, &org.Name, &org.Since)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get organisation: %w", err)
	}
	return &org, nil
}

// UpdateOrg renames the organisation. Returns (nil, nil) if it is gone.
func (s *Store) UpdateOrg(ctx context.Context, id int64, name string) (*Organisation, error) {
	var org Organisation
	err := s.pool.QueryRow(ctx,
		"UPDATE organisations SET name = $2 WHERE id = $1 RETURNING id, name, since",
		id, name).Scan(&org.ID, &org.Name, &org.Since)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update organisation: %w", err)
	}
	return &org, nil
}

// DeleteOrg removes the organisation; everything it owns cascades away.
func (s *Store) DeleteOrg(ctx context.Context, id int64) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM organisations WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete organisation: %w", err)
	}
	return nil
}

// AddOrgMember adds userID to orgID with the given role.
func (s *Store) AddOrgMember(ctx context.Context, orgID, userID, roleID int64) error {
	if _, err := s.pool.Exec(ctx,
		"INSERT INTO org_members (user_id, org_id, role_id) VALUES ($1, $2, $3)",
		userID, orgID, roleID); err != nil {
		return fmt.Errorf("add org member: %w", err)
	}
	return nil
}

// UpdateOrgMemberRole changes a member's role. Demoting the last top-level
// member is rejected under the same lock as RemoveOrgMember: a demotion is a
// removal from the admin set.
func (s *Store) UpdateOrgMemberRole(ctx context.Context, orgID, userID, roleID int64) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if err := lockOrgMembers(ctx, tx, orgID); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx,
			"UPDATE org_members SET role_id = $3 WHERE org_id = $1 AND user_id = $2",
			orgID, userID, roleID)
		if err != nil {
			return fmt.Errorf("update member role: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("member %d of org %d: %w", userID, orgID, access.ErrNotFound)
		}
		return assertAdminRemains(ctx, tx, orgID)
	})
}

// RemoveOrgMember deletes one membership row. The deletion and the
// admin-invariant check run in one transaction with the org's membership
// rows locked, so two concurrent removals of the last two admins cannot both
// succeed. Returns access.ErrLastAdmin when the deletion would leave the org
// without a top-level member, access.ErrNotFound when there is no such row.
func (s *Store) RemoveOrgMember(ctx context.Context, orgID, userID int64) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if err := lockOrgMembers(ctx, tx, orgID); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx,
			"DELETE FROM org_members WHERE org_id = $1 AND user_id = $2",
			orgID, userID)
		if err != nil {
			return fmt.Errorf("remove org member: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("member %d of org %d: %w", userID, orgID, access.ErrNotFound)
		}
		return assertAdminRemains(ctx, tx, orgID)
	})
}

// lockOrgMembers takes row locks on all of the org's membership rows so that
// concurrent invariant checks serialize.
func lockOrgMembers(ctx context.Context, tx pgx.Tx, orgID int64) error {
	rows, err := tx.Query(ctx,
		"SELECT user_id FROM org_members WHERE org_id = $1 FOR UPDATE", orgID)
	if err != nil {
		return fmt.Errorf("lock org members: %w", err)
	}
	rows.Close()
	return rows.Err()
}

// assertAdminRemains is the in-transaction form of the guard's admin
// invariant: at least one member at the catalog's top level must remain.
func assertAdminRemains(ctx context.Context, tx pgx.Tx, orgID int64) error {
	var count int
	err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM org_members m
		 JOIN roles r ON r.id = m.role_id
		 WHERE m.org_id = $1 AND r.level = (SELECT MIN(level) FROM roles)`,
		orgID).Scan(&count)
	if err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if count < 1 {
		return fmt.Errorf("organisation %d: %w", orgID, access.ErrLastAdmin)
	}
	return nil
}

// ListOrgMembers returns all members of an org ordered by join time.
func (s *Store) ListOrgMembers(ctx context.Context, orgID int64) ([]OrgMember, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT m.user_id, u.email, u.display_name, m.role_id, r.name, r.level, m.created_at
		 FROM org_members m
		 JOIN users u ON u.id = m.user_id
		 JOIN roles r ON r.id = m.role_id
		 WHERE m.org_id = $1
		 ORDER BY m.created_at`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list org members: %w", err)
	}
	defer rows.Close()

	var members []OrgMember
	for rows.Next() {
		var m OrgMember
		if err := rows.Scan(&m.UserID, &m.Email, &m.DisplayName,
			&m.RoleID, &m.RoleName, &m.RoleLevel, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("list org members: scan: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}
