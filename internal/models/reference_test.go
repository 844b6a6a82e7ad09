package models

import (
	"regexp"
	"testing"
)

func TestNewReferenceShape(t *testing.T) {
	pattern := regexp.MustCompile(`^CLM-2026-[A-Z0-9]{6}$`)
	seen := map[string]struct{}{}
	for i := 0; i < 50; i++ {
		reference, err := NewReference("CLM", 2026)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !pattern.MatchString(reference) {
			t.Fatalf("unexpected reference %q", reference)
		}
		seen[reference] = struct{}{}
	}
	if len(seen) < 45 {
		t.Fatalf("references should be effectively unique, got %d distinct of 50", len(seen))
	}
}

func TestRoleIsAdmin(t *testing.T) {
	if RoleUser.IsAdmin() || !RoleAdmin.IsAdmin() || !RoleSuperAdmin.IsAdmin() {
		t.Fatalf("unexpected admin classification")
	}
}
