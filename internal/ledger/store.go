// Package ledger holds the workspace registry and the workspace-scoped
// account store that sits behind the authorization gate. It is the
// consumer side of the resolved workspace context: every read and write
// here is filtered by the workspace id the pipeline resolved.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerspace/ledgerspace/model"
)

// Store persists workspaces and their accounts.
type Store interface {
	// CreateWorkspace persists a new workspace.
	CreateWorkspace(ctx context.Context, ws model.Workspace) error

	// GetWorkspace retrieves a workspace by ID.
	GetWorkspace(ctx context.Context, workspaceID uuid.UUID) (model.Workspace, error)

	// CreateAccount persists a new account in its workspace.
	CreateAccount(ctx context.Context, acct model.Account) error

	// GetAccount retrieves an account by ID, scoped to workspace.
	GetAccount(ctx context.Context, workspaceID, accountID uuid.UUID) (model.Account, error)

	// ListAccounts returns all accounts in a workspace, oldest first.
	ListAccounts(ctx context.Context, workspaceID uuid.UUID) ([]model.Account, error)

	// ApplyEntry adjusts an account balance by a feed entry and returns
	// the updated account.
	ApplyEntry(ctx context.Context, workspaceID uuid.UUID, entry model.FeedEntry) (model.Account, error)

	// Summary aggregates the workspace's accounts.
	Summary(ctx context.Context, workspaceID uuid.UUID) (model.LedgerSummary, error)
}

// MemoryStore is an in-memory Store for tests and single-node runs.
type MemoryStore struct {
	mu         sync.RWMutex
	workspaces map[uuid.UUID]model.Workspace
	accounts   map[uuid.UUID]model.Account // key: account ID
}

// NewMemoryStore creates a new in-memory ledger store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		workspaces: make(map[uuid.UUID]model.Workspace),
		accounts:   make(map[uuid.UUID]model.Account),
	}
}

// CreateWorkspace persists a new workspace.
func (s *MemoryStore) CreateWorkspace(_ context.Context, ws model.Workspace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.workspaces[ws.ID]; exists {
		return model.NewConflictError(
			fmt.Sprintf("workspace %q already exists", ws.ID),
		)
	}

	s.workspaces[ws.ID] = ws
	return nil
}

// GetWorkspace retrieves a workspace by ID.
func (s *MemoryStore) GetWorkspace(_ context.Context, workspaceID uuid.UUID) (model.Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ws, exists := s.workspaces[workspaceID]
	if !exists {
		return model.Workspace{}, model.NewNotFoundError(
			fmt.Sprintf("workspace %q not found", workspaceID),
		)
	}
	return ws, nil
}

// CreateAccount persists a new account. The workspace must exist.
func (s *MemoryStore) CreateAccount(_ context.Context, acct model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.workspaces[acct.WorkspaceID]; !exists {
		return model.NewNotFoundError(
			fmt.Sprintf("workspace %q not found", acct.WorkspaceID),
		)
	}
	if _, exists := s.accounts[acct.ID]; exists {
		return model.NewConflictError(
			fmt.Sprintf("account %q already exists", acct.ID),
		)
	}

	s.accounts[acct.ID] = acct
	return nil
}

// GetAccount retrieves an account by ID, scoped to workspace.
func (s *MemoryStore) GetAccount(_ context.Context, workspaceID, accountID uuid.UUID) (model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, exists := s.accounts[accountID]
	if !exists || acct.WorkspaceID != workspaceID {
		return model.Account{}, model.NewNotFoundError(
			fmt.Sprintf("account %q not found", accountID),
		)
	}
	return acct, nil
}

// ListAccounts returns all accounts in a workspace, oldest first.
func (s *MemoryStore) ListAccounts(_ context.Context, workspaceID uuid.UUID) ([]model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Account, 0)
	for _, acct := range s.accounts {
		if acct.WorkspaceID != workspaceID {
			continue
		}
		result = append(result, acct)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// ApplyEntry adjusts an account balance by a feed entry.
func (s *MemoryStore) ApplyEntry(_ context.Context, workspaceID uuid.UUID, entry model.FeedEntry) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, exists := s.accounts[entry.AccountID]
	if !exists || acct.WorkspaceID != workspaceID {
		return model.Account{}, model.NewNotFoundError(
			fmt.Sprintf("account %q not found", entry.AccountID),
		)
	}

	acct.Balance += entry.Amount
	acct.UpdatedAt = time.Now().UTC()
	s.accounts[entry.AccountID] = acct
	return acct, nil
}

// Summary aggregates the workspace's accounts.
func (s *MemoryStore) Summary(_ context.Context, workspaceID uuid.UUID) (model.LedgerSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.workspaces[workspaceID]; !exists {
		return model.LedgerSummary{}, model.NewNotFoundError(
			fmt.Sprintf("workspace %q not found", workspaceID),
		)
	}

	summary := model.LedgerSummary{
		WorkspaceID: workspaceID,
		Totals:      make(map[string]int64),
		GeneratedAt: time.Now().UTC(),
	}
	for _, acct := range s.accounts {
		if acct.WorkspaceID != workspaceID {
			continue
		}
		summary.AccountCount++
		summary.Totals[acct.Currency] += acct.Balance
	}
	return summary, nil
}

// Len returns the total number of accounts. For testing.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}
