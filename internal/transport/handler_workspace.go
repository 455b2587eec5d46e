package transport

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ledgerspace/ledgerspace/internal/ledger"
	"github.com/ledgerspace/ledgerspace/internal/tenancy"
	"github.com/ledgerspace/ledgerspace/model"
)

const maxWorkspaceNameLen = 120

// workspaceView pairs a workspace record with the caller's role on it.
type workspaceView struct {
	Workspace model.Workspace `json:"workspace"`
	Role      model.Role      `json:"role"`
}

func handleWorkspaceCreate(store ledger.Store, memberships tenancy.MembershipStore, provider *tenancy.ClaimsProvider, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident := model.MustIdentity(r.Context())

		var body struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		body.Name = strings.TrimSpace(body.Name)
		if body.Name == "" || len(body.Name) > maxWorkspaceNameLen {
			WriteValidationError(w, []model.FieldError{{
				Field:   "name",
				Code:    "INVALID",
				Message: "Name must be 1-120 characters",
			}})
			return
		}

		ws := model.Workspace{
			ID:        uuid.New(),
			Name:      body.Name,
			CreatedBy: ident.SubjectID,
			CreatedAt: time.Now().UTC(),
		}
		if err := store.CreateWorkspace(r.Context(), ws); err != nil {
			WriteError(w, err)
			return
		}

		// The creator becomes Owner. If the assignment fails the
		// workspace would be orphaned, so surface the error.
		err := memberships.Assign(r.Context(), tenancy.Membership{
			SubjectID:   ident.SubjectID,
			WorkspaceID: ws.ID,
			Role:        model.RoleOwner,
			CreatedAt:   ws.CreatedAt,
		})
		if err != nil {
			logger.Error("owner assignment failed after workspace create",
				zap.String("workspace_id", ws.ID.String()),
				zap.String("subject_id", ident.SubjectID),
				zap.Error(err),
			)
			WriteError(w, model.NewInternalError())
			return
		}

		provider.Invalidate(r.Context(), ident.SubjectID)
		WriteJSON(w, http.StatusCreated, ws)
	}
}

func handleWorkspaceList(store ledger.Store, provider *tenancy.ClaimsProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident := model.MustIdentity(r.Context())

		claims, err := provider.WorkspaceClaims(r.Context(), ident.SubjectID)
		if err != nil {
			WriteError(w, err)
			return
		}

		views := make([]workspaceView, 0, len(claims))
		for _, claim := range claims {
			ws, err := store.GetWorkspace(r.Context(), claim.WorkspaceID)
			if err != nil {
				// Stale assignment pointing at a deleted workspace.
				continue
			}
			views = append(views, workspaceView{Workspace: ws, Role: claim.Role})
		}

		WriteJSON(w, http.StatusOK, map[string]any{"data": views})
	}
}
