// ABOUTME: Unit tests for the role registry: level lookups and config failures.
package access

import (
	"errors"
	"testing"
)

func TestRegistryLevelOf(t *testing.T) {
	t.Parallel()
	reg, err := NewRegistry(testRoles)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	level, err := reg.LevelOf(2)
	if err != nil {
		t.Fatalf("LevelOf(2): %v", err)
	}
	if level != 2 {
		t.Errorf("LevelOf(2) = %d, want 2", level)
	}

	if _, err := reg.LevelOf(77); !errors.Is(err, ErrConfig) {
		t.Errorf("unknown role: want ErrConfig, got %v", err)
	}

	if top := reg.TopLevel(); top != 1 {
		t.Errorf("TopLevel = %d, want 1", top)
	}
}

func TestRegistryRejectsEmptyCatalog(t *testing.T) {
	t.Parallel()
	if _, err := NewRegistry(nil); !errors.Is(err, ErrConfig) {
		t.Errorf("empty catalog: want ErrConfig, got %v", err)
	}
}
