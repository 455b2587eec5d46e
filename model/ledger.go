package model

import (
	"time"

	"github.com/google/uuid"
)

// Account kind constants.
const (
	AccountKindAsset     = "asset"
	AccountKindLiability = "liability"
	AccountKindIncome    = "income"
	AccountKindExpense   = "expense"
)

// Workspace is a tenant boundary. Every account and every role
// assignment hangs off exactly one workspace.
type Workspace struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Account is a ledger account scoped to one workspace. Balances are
// kept in minor units (cents) to avoid float arithmetic.
type Account struct {
	ID          uuid.UUID `json:"id"`
	WorkspaceID uuid.UUID `json:"workspace_id"`
	Name        string    `json:"name"`
	Kind        string    `json:"kind"`
	Currency    string    `json:"currency"`
	Balance     int64     `json:"balance"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FeedEntry is one balance adjustment delivered by a trusted automation
// feed. Amount is signed, in minor units.
type FeedEntry struct {
	AccountID  uuid.UUID `json:"account_id"`
	Amount     int64     `json:"amount"`
	Memo       string    `json:"memo,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// LedgerSummary aggregates a workspace's accounts for the summary view.
type LedgerSummary struct {
	WorkspaceID  uuid.UUID        `json:"workspace_id"`
	AccountCount int              `json:"account_count"`
	Totals       map[string]int64 `json:"totals"` // currency -> summed balance
	GeneratedAt  time.Time        `json:"generated_at"`
}
