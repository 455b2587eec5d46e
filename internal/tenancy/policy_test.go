package tenancy

import (
	"testing"

	"github.com/ledgerspace/ledgerspace/model"
)

func TestRequirement_Interned(t *testing.T) {
	a := Requirement(model.RoleEditor)
	b := Requirement(model.RoleEditor)
	if a != b {
		t.Error("Requirement should return the same instance per role")
	}
	if a.MinimumRole != model.RoleEditor {
		t.Errorf("MinimumRole = %s, want editor", a.MinimumRole)
	}

	if Requirement(model.RoleViewer) == Requirement(model.RoleOwner) {
		t.Error("distinct roles must map to distinct requirements")
	}
}

func TestRequirement_PanicsOnInvalidRole(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Requirement with invalid role should panic")
		}
	}()
	Requirement(model.Role(42))
}

func TestRequirement_PanicsOnRoleNone(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Requirement(RoleNone) should panic")
		}
	}()
	Requirement(model.RoleNone)
}

func TestRequireRole(t *testing.T) {
	p := RequireRole(model.RoleOwner)
	if p.Kind != PolicyRequireRole {
		t.Errorf("Kind = %d, want PolicyRequireRole", p.Kind)
	}
	if p.Requirement != Requirement(model.RoleOwner) {
		t.Error("policy should carry the interned requirement")
	}
}

func TestAllowAnonymousWorkspace(t *testing.T) {
	p := AllowAnonymousWorkspace()
	if p.Kind != PolicyAllowAnonymousWorkspace {
		t.Errorf("Kind = %d, want PolicyAllowAnonymousWorkspace", p.Kind)
	}
	if p.Requirement != nil {
		t.Error("anonymous policy must carry no role requirement")
	}
}
