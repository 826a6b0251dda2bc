// Package httptransport is the thin HTTP layer. Handlers decode, derive
// pseudonyms from the authenticated device, delegate to domain services and
// encode; no business logic lives here. Raw device identifiers exist only
// inside a single handler call.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chainrelay/internal/contact"
	"chainrelay/internal/notification"
	"chainrelay/internal/platform/metrics"
	"chainrelay/internal/platform/middleware"
	"chainrelay/internal/report"
	"chainrelay/internal/user"
	"chainrelay/pkg/platform/httputil"
)

const requestTimeout = 30 * time.Second

// Handlers bundles the services the HTTP surface exposes.
type Handlers struct {
	logger        *slog.Logger
	metrics       *metrics.Metrics
	validator     middleware.TokenValidator
	users         *user.Service
	contacts      *contact.Service
	reports       *report.Service
	notifications *notification.Service
}

func NewHandlers(
	logger *slog.Logger,
	mx *metrics.Metrics,
	validator middleware.TokenValidator,
	users *user.Service,
	contacts *contact.Service,
	reports *report.Service,
	notifications *notification.Service,
) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		logger:        logger,
		metrics:       mx,
		validator:     validator,
		users:         users,
		contacts:      contacts,
		reports:       reports,
		notifications: notifications,
	}
}

// NewRouter wires all endpoints. Registration is the only unauthenticated
// v1 route; everything else requires a device token.
func NewRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(h.logger))
	r.Use(middleware.Logger(h.logger))
	r.Use(middleware.Timeout(requestTimeout))
	if h.metrics != nil {
		r.Use(middleware.Latency(h.metrics))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.With(middleware.ContentTypeJSON).Post("/devices", h.handleRegisterDevice)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(h.validator, h.logger))

			r.With(middleware.ContentTypeJSON).Post("/contacts", h.handleRecordContact)
			r.With(middleware.ContentTypeJSON).Post("/reports/positive", h.handleSubmitPositive)
			r.With(middleware.ContentTypeJSON).Post("/reports/negative", h.handleSubmitNegative)
			r.Get("/reports/{reportID}", h.handleReportStatus)
			r.Delete("/reports/{reportID}", h.handleDeleteReport)
			r.Get("/chain-link", h.handleChainLink)
			r.Get("/notifications", h.handleListNotifications)
			r.Post("/notifications/{notificationID}/read", h.handleMarkRead)
		})
	})
	return r
}
