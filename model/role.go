package model

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Role is the ordinal permission level a user holds within one workspace.
// The ordering is total: Viewer < Editor < Owner.
type Role int

const (
	// RoleNone marks the absence of a role, e.g. on anonymous workspace
	// grants. It never satisfies any requirement.
	RoleNone Role = iota - 1

	RoleViewer
	RoleEditor
	RoleOwner
)

var roleNames = map[Role]string{
	RoleViewer: "viewer",
	RoleEditor: "editor",
	RoleOwner:  "owner",
}

// ParseRole converts a role name to a Role. Unknown names are an error.
func ParseRole(s string) (Role, error) {
	for r, name := range roleNames {
		if name == s {
			return r, nil
		}
	}
	return RoleNone, fmt.Errorf("model: unknown role %q", s)
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// Meets reports whether r satisfies a requirement of at least min.
// RoleNone never meets anything.
func (r Role) Meets(min Role) bool {
	return r.Valid() && min.Valid() && r >= min
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "none"
}

// MarshalJSON encodes the role by name.
func (r Role) MarshalJSON() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("model: cannot marshal invalid role %d", int(r))
	}
	return json.Marshal(r.String())
}

// UnmarshalJSON decodes a role name.
func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// UnmarshalYAML decodes a role name from configuration.
func (r *Role) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// RoleClaim asserts that an identity holds a role on one workspace.
// Claims are issued at login time, embedded in the session token, and
// immutable afterwards. There is at most one claim per
// (identity, workspace) pair; duplicates are rejected when the
// assignment is created, not when claims are read.
type RoleClaim struct {
	WorkspaceID uuid.UUID `json:"workspace_id"`
	Role        Role      `json:"role"`
}

// RoleClaims is the full set of workspace memberships an identity holds.
type RoleClaims []RoleClaim

// ForWorkspace returns the claim for the given workspace, if any.
func (cs RoleClaims) ForWorkspace(id uuid.UUID) (RoleClaim, bool) {
	for _, c := range cs {
		if c.WorkspaceID == id {
			return c, true
		}
	}
	return RoleClaim{}, false
}
