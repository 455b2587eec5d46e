package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerspace/ledgerspace/model"
)

func newTestWorkspace(t *testing.T, s *MemoryStore) model.Workspace {
	t.Helper()
	ws := model.Workspace{
		ID:        uuid.New(),
		Name:      "household",
		CreatedBy: "u1",
		CreatedAt: time.Now().UTC(),
	}
	if err := s.CreateWorkspace(context.Background(), ws); err != nil {
		t.Fatalf("CreateWorkspace error: %v", err)
	}
	return ws
}

func newTestAccount(t *testing.T, s *MemoryStore, workspaceID uuid.UUID, name string, balance int64) model.Account {
	t.Helper()
	acct := model.Account{
		ID:          uuid.New(),
		WorkspaceID: workspaceID,
		Name:        name,
		Kind:        model.AccountKindAsset,
		Currency:    "EUR",
		Balance:     balance,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := s.CreateAccount(context.Background(), acct); err != nil {
		t.Fatalf("CreateAccount error: %v", err)
	}
	return acct
}

func assertNotFound(t *testing.T, err error) {
	t.Helper()
	envErr, ok := err.(*model.ErrorEnvelope)
	if !ok {
		t.Fatalf("error type = %T, want *model.ErrorEnvelope", err)
	}
	if envErr.Code != model.ErrNotFound {
		t.Errorf("error code = %s, want %s", envErr.Code, model.ErrNotFound)
	}
}

func TestMemoryStore_CreateWorkspaceConflict(t *testing.T) {
	s := NewMemoryStore()
	ws := newTestWorkspace(t, s)

	err := s.CreateWorkspace(context.Background(), ws)
	envErr, ok := err.(*model.ErrorEnvelope)
	if !ok {
		t.Fatalf("error type = %T, want *model.ErrorEnvelope", err)
	}
	if envErr.Code != model.ErrConflict {
		t.Errorf("error code = %s, want %s", envErr.Code, model.ErrConflict)
	}
}

func TestMemoryStore_GetWorkspaceNotFound(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.GetWorkspace(context.Background(), uuid.New())
	assertNotFound(t, err)
}

func TestMemoryStore_CreateAccountRequiresWorkspace(t *testing.T) {
	s := NewMemoryStore()

	err := s.CreateAccount(context.Background(), model.Account{
		ID:          uuid.New(),
		WorkspaceID: uuid.New(),
		Name:        "checking",
	})
	assertNotFound(t, err)
}

func TestMemoryStore_GetAccountScopedToWorkspace(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	ws1 := newTestWorkspace(t, s)
	ws2 := newTestWorkspace(t, s)
	acct := newTestAccount(t, s, ws1.ID, "checking", 1000)

	got, err := s.GetAccount(ctx, ws1.ID, acct.ID)
	if err != nil {
		t.Fatalf("GetAccount error: %v", err)
	}
	if got.Name != "checking" {
		t.Errorf("Name = %q, want checking", got.Name)
	}

	// The same account must not be visible through another workspace.
	_, err = s.GetAccount(ctx, ws2.ID, acct.ID)
	assertNotFound(t, err)
}

func TestMemoryStore_ListAccountsOrderedAndScoped(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	ws1 := newTestWorkspace(t, s)
	ws2 := newTestWorkspace(t, s)

	a1 := model.Account{ID: uuid.New(), WorkspaceID: ws1.ID, Name: "first", Currency: "EUR", CreatedAt: time.Now().UTC().Add(-time.Hour)}
	a2 := model.Account{ID: uuid.New(), WorkspaceID: ws1.ID, Name: "second", Currency: "EUR", CreatedAt: time.Now().UTC()}
	_ = s.CreateAccount(ctx, a2)
	_ = s.CreateAccount(ctx, a1)
	newTestAccount(t, s, ws2.ID, "elsewhere", 5)

	accounts, err := s.ListAccounts(ctx, ws1.ID)
	if err != nil {
		t.Fatalf("ListAccounts error: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("len(accounts) = %d, want 2", len(accounts))
	}
	if accounts[0].Name != "first" || accounts[1].Name != "second" {
		t.Errorf("order = [%s, %s], want oldest first", accounts[0].Name, accounts[1].Name)
	}
}

func TestMemoryStore_ListAccountsEmptyWorkspace(t *testing.T) {
	s := NewMemoryStore()
	ws := newTestWorkspace(t, s)

	accounts, err := s.ListAccounts(context.Background(), ws.ID)
	if err != nil {
		t.Fatalf("ListAccounts error: %v", err)
	}
	if len(accounts) != 0 {
		t.Errorf("len(accounts) = %d, want 0", len(accounts))
	}
	if accounts == nil {
		t.Error("accounts = nil, want empty slice")
	}
}

func TestMemoryStore_ApplyEntry(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	ws := newTestWorkspace(t, s)
	acct := newTestAccount(t, s, ws.ID, "checking", 1000)

	updated, err := s.ApplyEntry(ctx, ws.ID, model.FeedEntry{
		AccountID: acct.ID,
		Amount:    -250,
		Memo:      "groceries",
	})
	if err != nil {
		t.Fatalf("ApplyEntry error: %v", err)
	}
	if updated.Balance != 750 {
		t.Errorf("Balance = %d, want 750", updated.Balance)
	}

	got, _ := s.GetAccount(ctx, ws.ID, acct.ID)
	if got.Balance != 750 {
		t.Errorf("stored Balance = %d, want 750", got.Balance)
	}
}

func TestMemoryStore_ApplyEntryWrongWorkspace(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	ws1 := newTestWorkspace(t, s)
	ws2 := newTestWorkspace(t, s)
	acct := newTestAccount(t, s, ws1.ID, "checking", 1000)

	_, err := s.ApplyEntry(ctx, ws2.ID, model.FeedEntry{AccountID: acct.ID, Amount: 100})
	assertNotFound(t, err)

	// Balance unchanged after the rejected entry.
	got, _ := s.GetAccount(ctx, ws1.ID, acct.ID)
	if got.Balance != 1000 {
		t.Errorf("Balance = %d, want 1000", got.Balance)
	}
}

func TestMemoryStore_Summary(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	ws := newTestWorkspace(t, s)
	newTestAccount(t, s, ws.ID, "checking", 1000)
	newTestAccount(t, s, ws.ID, "savings", 5000)

	usd := model.Account{ID: uuid.New(), WorkspaceID: ws.ID, Name: "travel", Currency: "USD", Balance: 300, CreatedAt: time.Now().UTC()}
	_ = s.CreateAccount(ctx, usd)

	summary, err := s.Summary(ctx, ws.ID)
	if err != nil {
		t.Fatalf("Summary error: %v", err)
	}
	if summary.AccountCount != 3 {
		t.Errorf("AccountCount = %d, want 3", summary.AccountCount)
	}
	if summary.Totals["EUR"] != 6000 {
		t.Errorf("Totals[EUR] = %d, want 6000", summary.Totals["EUR"])
	}
	if summary.Totals["USD"] != 300 {
		t.Errorf("Totals[USD] = %d, want 300", summary.Totals["USD"])
	}
}

func TestMemoryStore_SummaryUnknownWorkspace(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.Summary(context.Background(), uuid.New())
	assertNotFound(t, err)
}
