package tenancy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerspace/ledgerspace/model"
)

// uniqueViolation is the PostgreSQL error code raised by the
// workspace_memberships primary key on (subject_id, workspace_id).
const uniqueViolation = "23505"

// PgMembershipStore is a PostgreSQL-backed MembershipStore using pgx/v5.
type PgMembershipStore struct {
	pool *pgxpool.Pool
}

// NewPgMembershipStore creates a new PostgreSQL membership store.
func NewPgMembershipStore(pool *pgxpool.Pool) *PgMembershipStore {
	return &PgMembershipStore{pool: pool}
}

// List returns all assignments held by a subject.
func (s *PgMembershipStore) List(ctx context.Context, subjectID string) ([]Membership, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT subject_id, workspace_id, role, created_at
		FROM workspace_memberships
		WHERE subject_id = $1
		ORDER BY created_at ASC`,
		subjectID,
	)
	if err != nil {
		return nil, fmt.Errorf("query memberships: %w", err)
	}
	defer rows.Close()

	return scanMemberships(rows)
}

// ListMembers returns all assignments on a workspace.
func (s *PgMembershipStore) ListMembers(ctx context.Context, workspaceID uuid.UUID) ([]Membership, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT subject_id, workspace_id, role, created_at
		FROM workspace_memberships
		WHERE workspace_id = $1
		ORDER BY created_at ASC`,
		workspaceID,
	)
	if err != nil {
		return nil, fmt.Errorf("query workspace members: %w", err)
	}
	defer rows.Close()

	return scanMemberships(rows)
}

// Assign creates a new assignment. The table's primary key on
// (subject_id, workspace_id) enforces the one-claim-per-pair invariant;
// a unique violation surfaces as ErrDuplicateAssignment.
func (s *PgMembershipStore) Assign(ctx context.Context, m Membership) error {
	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO workspace_memberships (subject_id, workspace_id, role, created_at)
		VALUES ($1, $2, $3, $4)`,
		m.SubjectID, m.WorkspaceID, m.Role.String(), createdAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateAssignment
		}
		return fmt.Errorf("insert membership: %w", err)
	}
	return nil
}

// Remove deletes an assignment.
func (s *PgMembershipStore) Remove(ctx context.Context, subjectID string, workspaceID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM workspace_memberships
		WHERE subject_id = $1 AND workspace_id = $2`,
		subjectID, workspaceID,
	)
	if err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAssignmentNotFound
	}
	return nil
}

// Ping checks connectivity to the database.
func (s *PgMembershipStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// rowScanner is satisfied by pgx.Rows.
type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanMemberships(rows rowScanner) ([]Membership, error) {
	memberships := make([]Membership, 0)
	for rows.Next() {
		var m Membership
		var roleName string
		if err := rows.Scan(&m.SubjectID, &m.WorkspaceID, &roleName, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		role, err := model.ParseRole(roleName)
		if err != nil {
			return nil, fmt.Errorf("stored role: %w", err)
		}
		m.Role = role
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}
