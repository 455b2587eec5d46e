package transport

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerspace/ledgerspace/internal/ledger"
	"github.com/ledgerspace/ledgerspace/internal/tenancy"
	"github.com/ledgerspace/ledgerspace/model"
)

var accountKinds = map[string]bool{
	model.AccountKindAsset:     true,
	model.AccountKindLiability: true,
	model.AccountKindIncome:    true,
	model.AccountKindExpense:   true,
}

func handleAccountList(store ledger.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		workspaceID, _ := tenancy.MustWorkspace(r.Context())

		accounts, err := store.ListAccounts(r.Context(), workspaceID)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"data": accounts})
	}
}

func handleAccountCreate(store ledger.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		workspaceID, _ := tenancy.MustWorkspace(r.Context())

		var body struct {
			Name     string `json:"name"`
			Kind     string `json:"kind"`
			Currency string `json:"currency"`
			Balance  int64  `json:"balance"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		var details []model.FieldError
		if strings.TrimSpace(body.Name) == "" {
			details = append(details, model.FieldError{
				Field: "name", Code: "REQUIRED", Message: "Name is required",
			})
		}
		if !accountKinds[body.Kind] {
			details = append(details, model.FieldError{
				Field: "kind", Code: "INVALID", Message: "Kind must be asset, liability, income, or expense",
			})
		}
		if len(body.Currency) != 3 {
			details = append(details, model.FieldError{
				Field: "currency", Code: "INVALID", Message: "Currency must be a 3-letter code",
			})
		}
		if len(details) > 0 {
			WriteValidationError(w, details)
			return
		}

		now := time.Now().UTC()
		acct := model.Account{
			ID:          uuid.New(),
			WorkspaceID: workspaceID,
			Name:        strings.TrimSpace(body.Name),
			Kind:        body.Kind,
			Currency:    strings.ToUpper(body.Currency),
			Balance:     body.Balance,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := store.CreateAccount(r.Context(), acct); err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, acct)
	}
}

func handleSummary(store ledger.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		workspaceID, _ := tenancy.MustWorkspace(r.Context())

		summary, err := store.Summary(r.Context(), workspaceID)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, summary)
	}
}
