package transport

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/ledgerspace/ledgerspace/internal/ledger"
	"github.com/ledgerspace/ledgerspace/internal/tenancy"
	"github.com/ledgerspace/ledgerspace/model"
)

// FeedSecretHeader carries the shared secret for the trusted-automation
// feed endpoint.
const FeedSecretHeader = "X-Feed-Secret"

const maxFeedEntries = 500

// handleFeed ingests balance adjustments from trusted automation. The
// route is gated only by an anonymous workspace policy, so this handler
// owns every further trust decision: it re-validates the shared secret
// before touching any state.
func handleFeed(store ledger.Store, secret string, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if secret == "" {
			// No secret configured means the surface is dark.
			WriteNotFound(w, msgWorkspaceNotFound)
			return
		}
		provided := r.Header.Get(FeedSecretHeader)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			logger.Warn("feed request with bad secret",
				zap.String("path", r.URL.Path),
			)
			WriteError(w, model.NewUnauthorizedError("Invalid feed credentials"))
			return
		}

		workspaceID, _ := tenancy.MustWorkspace(r.Context())

		var body struct {
			Entries []model.FeedEntry `json:"entries"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}
		if len(body.Entries) == 0 {
			WriteValidationError(w, []model.FieldError{{
				Field: "entries", Code: "REQUIRED", Message: "At least one entry is required",
			}})
			return
		}
		if len(body.Entries) > maxFeedEntries {
			WriteValidationError(w, []model.FieldError{{
				Field: "entries", Code: "TOO_MANY", Message: "At most 500 entries per request",
			}})
			return
		}

		applied := 0
		for _, entry := range body.Entries {
			if _, err := store.ApplyEntry(r.Context(), workspaceID, entry); err != nil {
				WriteError(w, err)
				return
			}
			applied++
		}

		logger.Info("feed applied",
			zap.String("workspace_id", workspaceID.String()),
			zap.Int("entries", applied),
		)
		WriteJSON(w, http.StatusOK, map[string]any{"applied": applied})
	}
}
