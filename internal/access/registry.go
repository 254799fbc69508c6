// ABOUTME: Immutable role catalog mapping role IDs to numeric privilege levels.
// ABOUTME: Lower level = more privileged; levels are the sole semantic signal.
package access

import "fmt"

// Role is one catalog entry. Level is an integer privilege rank; lower values
// are more privileged. Role IDs carry no semantics of their own — never
// branch on an ID literal, only on the level.
type Role struct {
	ID    int64
	Name  string
	Level int
}

// Registry is the immutable role catalog. Levels are loaded once (from the
// roles table at startup) and never change during a resolution; changing a
// level is a configuration operation, not a runtime path.
type Registry struct {
	levels map[int64]int
	top    int
}

// NewRegistry builds a Registry from the loaded role rows. An empty catalog
// is a configuration error: no threshold comparison could ever succeed.
func NewRegistry(roles []Role) (*Registry, error) {
	if len(roles) == 0 {
		return nil, fmt.Errorf("empty role catalog: %w", ErrConfig)
	}
	levels := make(map[int64]int, len(roles))
	top := roles[0].Level
	for _, r := range roles {
		levels[r.ID] = r.Level
		if r.Level < top {
			top = r.Level
		}
	}
	return &Registry{levels: levels, top: top}, nil
}

// LevelOf returns the privilege level of roleID. A miss means a membership
// row references a role the deployment never seeded — that is ErrConfig, and
// the resolution must abort rather than default to allow or deny.
func (r *Registry) LevelOf(roleID int64) (int, error) {
	level, ok := r.levels[roleID]
	if !ok {
		return 0, fmt.Errorf("unknown role %d: %w", roleID, ErrConfig)
	}
	return level, nil
}

// TopLevel returns the most privileged (lowest) level in the catalog. The
// admin invariant counts members at this level.
func (r *Registry) TopLevel() int { return r.top }
