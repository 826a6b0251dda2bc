package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	"chainrelay/internal/platform/middleware"
	dErrors "chainrelay/pkg/domain-errors"
	"chainrelay/pkg/platform/httputil"
)

type recordContactRequest struct {
	PartnerID  string `json:"partner_id"`
	RecordedAt string `json:"recorded_at,omitempty"`
}

type recordContactResponse struct {
	ContactID  string    `json:"contact_id"`
	RecordedAt time.Time `json:"recorded_at"`
}

func (h *Handlers) handleRecordContact(w http.ResponseWriter, r *http.Request) {
	var req recordContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	var recordedAt time.Time
	if req.RecordedAt != "" {
		var err error
		recordedAt, err = time.Parse(time.RFC3339, req.RecordedAt)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "recorded_at must be RFC 3339"))
			return
		}
	}

	ids := h.users.Pseudonyms(middleware.GetDeviceID(r.Context()))
	c, err := h.contacts.Record(r.Context(), ids.Contact, req.PartnerID, recordedAt)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, recordContactResponse{
		ContactID:  c.ID.String(),
		RecordedAt: c.RecordedAt,
	})
}
