// ABOUTME: Sentinel errors forming the closed access-core error taxonomy.
// ABOUTME: Match with errors.Is; details are attached via fmt.Errorf %w wrapping.
package access

import "errors"

var (
	// ErrDenied is the normal negative outcome of a guard check. It is an
	// error (not a bool) so that callers cannot forget to handle it, but it
	// signals an expected condition, never a fault.
	ErrDenied = errors.New("access denied")

	// ErrNotFound marks a target resource that does not exist. Decision calls
	// translate it to a plain deny; set resolution simply omits the resource.
	ErrNotFound = errors.New("resource not found")

	// ErrOrphanedResource marks a dangling link in a resource's ownership
	// chain. It is a data-integrity problem, not a denial: it must stay
	// distinguishable so operators can detect corruption instead of reading
	// it as a legitimate "forbidden".
	ErrOrphanedResource = errors.New("orphaned resource")

	// ErrConfig marks a role-registry inconsistency (a membership row naming
	// a role the registry does not know). The call aborts loudly; guessing
	// either allow or deny would hide a deployment bug.
	ErrConfig = errors.New("role configuration error")

	// ErrLastAdmin is returned when a membership deletion would leave an
	// organisation without any member at the top privilege level.
	ErrLastAdmin = errors.New("organisation would lose its last admin")
)
