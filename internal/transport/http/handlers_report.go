package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"chainrelay/internal/platform/middleware"
	"chainrelay/internal/report"
	"chainrelay/pkg/domain"
	dErrors "chainrelay/pkg/domain-errors"
	"chainrelay/pkg/platform/httputil"
)

type submitPositiveRequest struct {
	Conditions []string `json:"conditions"`
	TestDate   string   `json:"test_date"`
	Disclosure string   `json:"disclosure"`
}

type submitNegativeRequest struct {
	NotificationID string `json:"notification_id"`
	TestDate       string `json:"test_date"`
}

type reportResponse struct {
	ReportID       string  `json:"report_id"`
	Result         string  `json:"result"`
	Status         string  `json:"status"`
	StatusMessage  string  `json:"status_message,omitempty"`
	LinkedReportID *string `json:"linked_report_id,omitempty"`
	CreatedAt      string  `json:"created_at"`
}

func toReportResponse(rpt report.Report) reportResponse {
	resp := reportResponse{
		ReportID:      rpt.ID.String(),
		Result:        string(rpt.Result),
		Status:        string(rpt.Status),
		StatusMessage: rpt.StatusMessage,
		CreatedAt:     rpt.CreatedAt.UTC().Format(time.RFC3339),
	}
	if rpt.LinkedReportID != nil {
		linked := rpt.LinkedReportID.String()
		resp.LinkedReportID = &linked
	}
	return resp
}

// parseTestDate accepts a bare date or a full RFC 3339 timestamp.
func parseTestDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, dErrors.New(dErrors.CodeInvalidInput, "test_date is required")
	}
	if d, err := time.Parse("2006-01-02", s); err == nil {
		return d, nil
	}
	d, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeInvalidInput, "test_date must be YYYY-MM-DD or RFC 3339")
	}
	return d, nil
}

func (h *Handlers) handleSubmitPositive(w http.ResponseWriter, r *http.Request) {
	var req submitPositiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	testDate, err := parseTestDate(req.TestDate)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	ids := h.users.Pseudonyms(middleware.GetDeviceID(r.Context()))
	rpt, err := h.reports.SubmitPositive(r.Context(), ids, report.PositiveInput{
		Conditions: req.Conditions,
		TestDate:   testDate,
		Disclosure: req.Disclosure,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, toReportResponse(rpt))
}

func (h *Handlers) handleSubmitNegative(w http.ResponseWriter, r *http.Request) {
	var req submitNegativeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	var targetID *domain.NotificationID
	if req.NotificationID != "" {
		id, err := domain.ParseNotificationID(req.NotificationID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		targetID = &id
	}
	testDate, err := parseTestDate(req.TestDate)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	ids := h.users.Pseudonyms(middleware.GetDeviceID(r.Context()))
	rpt, err := h.reports.SubmitNegative(r.Context(), ids, targetID, testDate)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, toReportResponse(rpt))
}

func (h *Handlers) handleReportStatus(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseReportID(chi.URLParam(r, "reportID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	ids := h.users.Pseudonyms(middleware.GetDeviceID(r.Context()))
	rpt, err := h.reports.Status(r.Context(), ids, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toReportResponse(rpt))
}

type deleteReportResponse struct {
	Deleted              bool `json:"deleted"`
	NotificationsUpdated int  `json:"notifications_updated"`
}

func (h *Handlers) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseReportID(chi.URLParam(r, "reportID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	ids := h.users.Pseudonyms(middleware.GetDeviceID(r.Context()))
	affected, err := h.reports.Delete(r.Context(), ids, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, deleteReportResponse{
		Deleted:              true,
		NotificationsUpdated: affected,
	})
}

type chainLinkResponse struct {
	Linked         bool   `json:"linked"`
	NotificationID string `json:"notification_id,omitempty"`
	ReportID       string `json:"report_id,omitempty"`
	HopDepth       int    `json:"hop_depth,omitempty"`
	ReceivedAt     string `json:"received_at,omitempty"`
}

func (h *Handlers) handleChainLink(w http.ResponseWriter, r *http.Request) {
	var condition *domain.ConditionType
	if raw := r.URL.Query().Get("condition"); raw != "" {
		c, err := domain.ParseConditionType(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, err.Error()))
			return
		}
		condition = &c
	}

	ids := h.users.Pseudonyms(middleware.GetDeviceID(r.Context()))
	link, ok, err := h.reports.ChainLink(r.Context(), ids, condition)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if !ok {
		httputil.WriteJSON(w, http.StatusOK, chainLinkResponse{Linked: false})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, chainLinkResponse{
		Linked:         true,
		NotificationID: link.NotificationID.String(),
		ReportID:       link.ReportID.String(),
		HopDepth:       link.HopDepth,
		ReceivedAt:     link.ReceivedAt.UTC().Format(time.RFC3339),
	})
}
