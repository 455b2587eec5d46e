package model

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
)

func TestRole_Ordering(t *testing.T) {
	if !(RoleViewer < RoleEditor && RoleEditor < RoleOwner) {
		t.Fatal("role ordering must be Viewer < Editor < Owner")
	}
}

func TestRole_Meets(t *testing.T) {
	tests := []struct {
		role Role
		min  Role
		want bool
	}{
		{RoleViewer, RoleViewer, true},
		{RoleViewer, RoleEditor, false},
		{RoleViewer, RoleOwner, false},
		{RoleEditor, RoleViewer, true},
		{RoleEditor, RoleEditor, true},
		{RoleEditor, RoleOwner, false},
		{RoleOwner, RoleViewer, true},
		{RoleOwner, RoleEditor, true},
		{RoleOwner, RoleOwner, true},
		{RoleNone, RoleViewer, false},
		{RoleViewer, RoleNone, false},
	}
	for _, tt := range tests {
		if got := tt.role.Meets(tt.min); got != tt.want {
			t.Errorf("%s.Meets(%s) = %v, want %v", tt.role, tt.min, got, tt.want)
		}
	}
}

func TestRole_Meets_Transitive(t *testing.T) {
	roles := []Role{RoleViewer, RoleEditor, RoleOwner}
	for _, a := range roles {
		for _, b := range roles {
			for _, c := range roles {
				if a.Meets(b) && b.Meets(c) && !a.Meets(c) {
					t.Errorf("Meets not transitive: %s >= %s >= %s", a, b, c)
				}
			}
		}
	}
}

func TestParseRole(t *testing.T) {
	for _, name := range []string{"viewer", "editor", "owner"} {
		r, err := ParseRole(name)
		if err != nil {
			t.Fatalf("ParseRole(%q) error = %v", name, err)
		}
		if r.String() != name {
			t.Errorf("round trip: ParseRole(%q).String() = %q", name, r.String())
		}
	}

	if _, err := ParseRole("admin"); err == nil {
		t.Error("ParseRole(admin) should fail")
	}
	if _, err := ParseRole(""); err == nil {
		t.Error("ParseRole(empty) should fail")
	}
}

func TestRole_JSON(t *testing.T) {
	data, err := json.Marshal(RoleEditor)
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}
	if string(data) != `"editor"` {
		t.Errorf("Marshal = %s, want %q", data, `"editor"`)
	}

	var r Role
	if err := json.Unmarshal([]byte(`"owner"`), &r); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if r != RoleOwner {
		t.Errorf("Unmarshal = %v, want RoleOwner", r)
	}

	if err := json.Unmarshal([]byte(`"superuser"`), &r); err == nil {
		t.Error("Unmarshal of unknown role should fail")
	}

	if _, err := json.Marshal(RoleNone); err == nil {
		t.Error("Marshal of RoleNone should fail")
	}
}

func TestRoleClaims_ForWorkspace(t *testing.T) {
	w1 := uuid.New()
	w2 := uuid.New()
	claims := RoleClaims{
		{WorkspaceID: w1, Role: RoleViewer},
		{WorkspaceID: w2, Role: RoleOwner},
	}

	c, ok := claims.ForWorkspace(w2)
	if !ok {
		t.Fatal("ForWorkspace(w2) not found")
	}
	if c.Role != RoleOwner {
		t.Errorf("Role = %v, want RoleOwner", c.Role)
	}

	if _, ok := claims.ForWorkspace(uuid.New()); ok {
		t.Error("ForWorkspace(unknown) should not be found")
	}

	var empty RoleClaims
	if _, ok := empty.ForWorkspace(w1); ok {
		t.Error("ForWorkspace on empty set should not be found")
	}
}
