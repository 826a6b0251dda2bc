package httptransport

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"chainrelay/internal/notification"
	"chainrelay/internal/platform/middleware"
	"chainrelay/pkg/domain"
	"chainrelay/pkg/platform/httputil"
)

// notificationResponse deliberately omits the chain path: clients learn how
// far away the exposure was, never through whom it travelled.
type notificationResponse struct {
	ID           string  `json:"id"`
	Type         string  `json:"type"`
	Condition    *string `json:"condition,omitempty"`
	ExposureDate *string `json:"exposure_date,omitempty"`
	HopDepth     int     `json:"hop_depth"`
	Read         bool    `json:"read"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

func toNotificationResponse(n notification.Notification) notificationResponse {
	resp := notificationResponse{
		ID:        n.ID.String(),
		Type:      string(n.Type),
		HopDepth:  n.HopDepth,
		Read:      n.Read,
		CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: n.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if n.Condition != nil {
		c := string(*n.Condition)
		resp.Condition = &c
	}
	if n.ExposureDate != nil {
		d := n.ExposureDate.UTC().Format("2006-01-02")
		resp.ExposureDate = &d
	}
	return resp
}

type listNotificationsResponse struct {
	Notifications []notificationResponse `json:"notifications"`
}

func (h *Handlers) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	ids := h.users.Pseudonyms(middleware.GetDeviceID(r.Context()))
	ns, err := h.notifications.ListForRecipient(r.Context(), ids.Notify, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]notificationResponse, 0, len(ns))
	for _, n := range ns {
		out = append(out, toNotificationResponse(n))
	}
	httputil.WriteJSON(w, http.StatusOK, listNotificationsResponse{Notifications: out})
}

func (h *Handlers) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseNotificationID(chi.URLParam(r, "notificationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	ids := h.users.Pseudonyms(middleware.GetDeviceID(r.Context()))
	if err := h.notifications.MarkRead(r.Context(), ids.Notify, id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
