// ABOUTME: Loads the immutable role catalog for the access registry.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/delegator-ch/delegator/internal/access"
)

// LoadRoles reads the full role catalog. Called once at startup to build the
// access.Registry; role levels never change at runtime.
func (s *Store) LoadRoles(ctx context.Context) ([]access.Role, error) {
	rows, err := s.pool.Query(ctx, "SELECT id, name, level FROM roles ORDER BY level")
	if err != nil {
		return nil, fmt.Errorf("load roles: %w", err)
	}
	defer rows.Close()

	var roles []access.Role
	for rows.Next() {
		var r access.Role
		if err := rows.Scan(&r.ID, &r.Name, &r.Level); err != nil {
			return nil, fmt.Errorf("load roles: scan: %w", err)
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

// RoleIDByName returns the id of the named role, or (0, false).
func (s *Store) RoleIDByName(ctx context.Context, name string) (int64, bool, error) {
	var id int64
	err := s.pool.QueryRow(ctx, "SELECT id FROM roles WHERE name = $1", name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("role id by name: %w", err)
	}
	return id, true, nil
}
