// Package tenancy binds authenticated identities to workspaces and roles:
// the role-assignment store, the claims provider used at token issuance,
// the per-request workspace context, and the policy evaluators that gate
// workspace-scoped routes.
package tenancy

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerspace/ledgerspace/model"
)

// ErrDuplicateAssignment is returned by Assign when the subject already
// holds a role on the workspace. The existing assignment is left
// untouched; callers map this to a conflict response.
var ErrDuplicateAssignment = errors.New("tenancy: subject already holds a role on this workspace")

// ErrAssignmentNotFound is returned by Remove when no assignment exists
// for the (subject, workspace) pair.
var ErrAssignmentNotFound = errors.New("tenancy: no role assignment for subject on this workspace")

// Membership is one persisted role assignment.
type Membership struct {
	SubjectID   string
	WorkspaceID uuid.UUID
	Role        model.Role
	CreatedAt   time.Time
}

// MembershipStore persists workspace role assignments. Implementations
// enforce at most one assignment per (subject, workspace) pair.
type MembershipStore interface {
	// List returns all assignments held by a subject. A subject with no
	// assignments yields an empty slice, not an error.
	List(ctx context.Context, subjectID string) ([]Membership, error)

	// ListMembers returns all assignments on a workspace.
	ListMembers(ctx context.Context, workspaceID uuid.UUID) ([]Membership, error)

	// Assign creates a new assignment. Returns ErrDuplicateAssignment if
	// the subject already holds a role on the workspace, whatever that
	// role is.
	Assign(ctx context.Context, m Membership) error

	// Remove deletes an assignment. Returns ErrAssignmentNotFound if
	// none exists.
	Remove(ctx context.Context, subjectID string, workspaceID uuid.UUID) error

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
}

// MemoryMembershipStore is an in-memory MembershipStore. Suitable for
// tests and single-instance deployments.
type MemoryMembershipStore struct {
	mu      sync.RWMutex
	entries map[string]Membership // key: subjectID + "/" + workspaceID
}

// NewMemoryMembershipStore creates an empty in-memory store.
func NewMemoryMembershipStore() *MemoryMembershipStore {
	return &MemoryMembershipStore{entries: make(map[string]Membership)}
}

func membershipKey(subjectID string, workspaceID uuid.UUID) string {
	return subjectID + "/" + workspaceID.String()
}

// List returns all assignments held by a subject.
func (s *MemoryMembershipStore) List(_ context.Context, subjectID string) ([]Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	memberships := make([]Membership, 0)
	for _, m := range s.entries {
		if m.SubjectID == subjectID {
			memberships = append(memberships, m)
		}
	}
	return memberships, nil
}

// ListMembers returns all assignments on a workspace.
func (s *MemoryMembershipStore) ListMembers(_ context.Context, workspaceID uuid.UUID) ([]Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	memberships := make([]Membership, 0)
	for _, m := range s.entries {
		if m.WorkspaceID == workspaceID {
			memberships = append(memberships, m)
		}
	}
	return memberships, nil
}

// Assign creates a new assignment, rejecting duplicates.
func (s *MemoryMembershipStore) Assign(_ context.Context, m Membership) error {
	key := membershipKey(m.SubjectID, m.WorkspaceID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; exists {
		return ErrDuplicateAssignment
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	s.entries[key] = m
	return nil
}

// Remove deletes an assignment.
func (s *MemoryMembershipStore) Remove(_ context.Context, subjectID string, workspaceID uuid.UUID) error {
	key := membershipKey(subjectID, workspaceID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; !exists {
		return ErrAssignmentNotFound
	}
	delete(s.entries, key)
	return nil
}

// Ping always succeeds for the in-memory store.
func (s *MemoryMembershipStore) Ping(_ context.Context) error {
	return nil
}

// Len returns the number of assignments. For testing.
func (s *MemoryMembershipStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
