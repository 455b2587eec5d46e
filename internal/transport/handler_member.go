package transport

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerspace/ledgerspace/internal/tenancy"
	"github.com/ledgerspace/ledgerspace/model"
)

// memberView is the wire shape for one workspace member.
type memberView struct {
	SubjectID string     `json:"subject_id"`
	Role      model.Role `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
}

func handleMemberList(memberships tenancy.MembershipStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		workspaceID, _ := tenancy.MustWorkspace(r.Context())

		members, err := memberships.ListMembers(r.Context(), workspaceID)
		if err != nil {
			WriteError(w, err)
			return
		}

		views := make([]memberView, 0, len(members))
		for _, m := range members {
			views = append(views, memberView{
				SubjectID: m.SubjectID,
				Role:      m.Role,
				CreatedAt: m.CreatedAt,
			})
		}
		WriteJSON(w, http.StatusOK, map[string]any{"data": views})
	}
}

func handleMemberAdd(memberships tenancy.MembershipStore, provider *tenancy.ClaimsProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		workspaceID, _ := tenancy.MustWorkspace(r.Context())

		var body struct {
			SubjectID string `json:"subject_id"`
			Role      string `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		// Parse the role by name rather than decoding into model.Role: an
		// absent field must not fall through to the zero value.
		role, roleErr := model.ParseRole(body.Role)

		var details []model.FieldError
		if strings.TrimSpace(body.SubjectID) == "" {
			details = append(details, model.FieldError{
				Field: "subject_id", Code: "REQUIRED", Message: "Subject ID is required",
			})
		}
		if roleErr != nil {
			details = append(details, model.FieldError{
				Field: "role", Code: "INVALID", Message: "Role must be viewer, editor, or owner",
			})
		}
		if len(details) > 0 {
			WriteValidationError(w, details)
			return
		}

		m := tenancy.Membership{
			SubjectID:   body.SubjectID,
			WorkspaceID: workspaceID,
			Role:        role,
			CreatedAt:   time.Now().UTC(),
		}
		if err := memberships.Assign(r.Context(), m); err != nil {
			if errors.Is(err, tenancy.ErrDuplicateAssignment) {
				WriteError(w, model.NewConflictError("Subject already has a role in this workspace"))
				return
			}
			WriteError(w, err)
			return
		}

		provider.Invalidate(r.Context(), body.SubjectID)
		WriteJSON(w, http.StatusCreated, memberView{
			SubjectID: m.SubjectID,
			Role:      m.Role,
			CreatedAt: m.CreatedAt,
		})
	}
}

func handleMemberRemove(memberships tenancy.MembershipStore, provider *tenancy.ClaimsProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		workspaceID, _ := tenancy.MustWorkspace(r.Context())
		subjectID := chi.URLParam(r, "subjectID")

		if err := memberships.Remove(r.Context(), subjectID, workspaceID); err != nil {
			if errors.Is(err, tenancy.ErrAssignmentNotFound) {
				WriteNotFound(w, "Member not found")
				return
			}
			WriteError(w, err)
			return
		}

		provider.Invalidate(r.Context(), subjectID)
		WriteJSON(w, http.StatusOK, map[string]string{"status": "removed"})
	}
}
