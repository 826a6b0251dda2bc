package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainrelay/internal/contact"
	"chainrelay/internal/identity"
	jwttoken "chainrelay/internal/jwt_token"
	"chainrelay/internal/notification"
	"chainrelay/internal/push"
	"chainrelay/internal/report"
	"chainrelay/internal/user"
	"chainrelay/pkg/domain"
	"chainrelay/pkg/testutil"
)

type fixture struct {
	router        http.Handler
	users         *user.InMemoryStore
	contacts      *contact.InMemoryStore
	reports       *report.InMemoryStore
	notifications *notification.InMemoryStore
	tokens        *push.InMemoryTokenStore
	queue         *recordingQueue
}

type recordingQueue struct {
	mu       sync.Mutex
	enqueued []domain.ReportID
}

func (q *recordingQueue) Enqueue(_ context.Context, id domain.ReportID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueued = append(q.enqueued, id)
	return nil
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users:         user.NewInMemoryStore(),
		contacts:      contact.NewInMemoryStore(),
		reports:       report.NewInMemoryStore(),
		notifications: notification.NewInMemoryStore(),
		tokens:        push.NewInMemoryTokenStore(),
		queue:         &recordingQueue{},
	}

	logger := slog.New(slog.DiscardHandler)
	jwt := jwttoken.NewService("test-key", "chainrelay", "chainrelay-devices")
	userSvc := user.NewService(f.users, f.tokens, jwt)
	contactSvc := contact.NewService(f.contacts)
	notificationSvc := notification.NewService(f.notifications)
	cascader := notification.NewCascadeRunner(f.notifications, f.tokens, nil,
		notification.WithCascadeLogger(logger))
	reportSvc := report.NewService(f.reports, notificationSvc, cascader, f.queue, logger)

	h := NewHandlers(logger, nil, jwttoken.NewMiddlewareAdapter(jwt),
		userSvc, contactSvc, reportSvc, notificationSvc)
	f.router = NewRouter(h)
	return f
}

// registerDevice runs the real registration flow and returns the bearer
// token the subsequent requests authenticate with.
func (f *fixture) registerDevice(t *testing.T, deviceID string) string {
	t.Helper()
	req := testutil.NewJSONRequest(t, http.MethodPost, "/v1/devices", map[string]string{
		"device_id":  deviceID,
		"push_token": "push-" + deviceID,
	})
	rr := testutil.DoRequest(f.router, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	resp := testutil.UnmarshalResponse[registerDeviceResponse](t, rr)
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func (f *fixture) authed(t *testing.T, token, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = testutil.NewJSONRequest(t, method, path, body)
	} else {
		req = testutil.NewRequest(t, method, path)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return testutil.DoRequest(f.router, req)
}

func TestDeviceRegistration(t *testing.T) {
	t.Run("registers and returns a bearer token", func(t *testing.T) {
		f := newFixture(t)
		token := f.registerDevice(t, "device-1")
		assert.NotEmpty(t, token)
	})

	t.Run("rejects an empty device id", func(t *testing.T) {
		f := newFixture(t)
		req := testutil.NewJSONRequest(t, http.MethodPost, "/v1/devices", map[string]string{})
		rr := testutil.DoRequest(f.router, req)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("rejects a malformed body", func(t *testing.T) {
		f := newFixture(t)
		req := testutil.NewRequestWithBody(t, http.MethodPost, "/v1/devices", "{not json")
		rr := testutil.DoRequest(f.router, req)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
}

func TestAuthBoundary(t *testing.T) {
	f := newFixture(t)

	paths := []struct{ method, path string }{
		{http.MethodPost, "/v1/contacts"},
		{http.MethodPost, "/v1/reports/positive"},
		{http.MethodGet, "/v1/chain-link"},
		{http.MethodGet, "/v1/notifications"},
	}
	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			rr := testutil.DoRequest(f.router, testutil.NewRequest(t, p.method, p.path))
			testutil.AssertStatus(t, rr, http.StatusUnauthorized)
		})
	}

	t.Run("garbage token is rejected", func(t *testing.T) {
		rr := f.authed(t, "garbage", http.MethodGet, "/v1/notifications", nil)
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})
}

func TestRecordContact(t *testing.T) {
	t.Run("records a directional contact", func(t *testing.T) {
		f := newFixture(t)
		token := f.registerDevice(t, "device-1")

		rr := f.authed(t, token, http.MethodPost, "/v1/contacts", map[string]string{
			"partner_id":  "exchange-abc",
			"recorded_at": time.Now().Add(-24 * time.Hour).Format(time.RFC3339),
		})
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		resp := testutil.UnmarshalResponse[recordContactResponse](t, rr)
		assert.NotEmpty(t, resp.ContactID)
	})

	t.Run("rejects a missing partner", func(t *testing.T) {
		f := newFixture(t)
		token := f.registerDevice(t, "device-1")
		rr := f.authed(t, token, http.MethodPost, "/v1/contacts", map[string]string{})
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
}

func TestSubmitReports(t *testing.T) {
	t.Run("positive report is accepted and enqueued", func(t *testing.T) {
		f := newFixture(t)
		token := f.registerDevice(t, "device-1")

		rr := f.authed(t, token, http.MethodPost, "/v1/reports/positive", map[string]any{
			"conditions": []string{"chlamydia"},
			"test_date":  time.Now().Add(-48 * time.Hour).Format("2006-01-02"),
			"disclosure": "full",
		})
		require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
		resp := testutil.UnmarshalResponse[reportResponse](t, rr)
		assert.Equal(t, "pending", resp.Status)
		assert.Equal(t, "positive", resp.Result)
		assert.Len(t, f.queue.enqueued, 1)
	})

	t.Run("unknown condition is rejected", func(t *testing.T) {
		f := newFixture(t)
		token := f.registerDevice(t, "device-1")
		rr := f.authed(t, token, http.MethodPost, "/v1/reports/positive", map[string]any{
			"conditions": []string{"scurvy"},
			"test_date":  "2026-01-02",
			"disclosure": "full",
		})
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("negative report against someone else's notification is forbidden", func(t *testing.T) {
		f := newFixture(t)
		f.registerDevice(t, "device-alice")
		bobToken := f.registerDevice(t, "device-bob")

		// A notification addressed to alice, not bob.
		target := seedNotificationFor(t, f, "device-alice")

		rr := f.authed(t, bobToken, http.MethodPost, "/v1/reports/negative", map[string]string{
			"notification_id": target.String(),
			"test_date":       time.Now().Format("2006-01-02"),
		})
		testutil.AssertStatus(t, rr, http.StatusForbidden)
	})

	t.Run("report status is owner-only", func(t *testing.T) {
		f := newFixture(t)
		aliceToken := f.registerDevice(t, "device-alice")
		bobToken := f.registerDevice(t, "device-bob")

		rr := f.authed(t, aliceToken, http.MethodPost, "/v1/reports/positive", map[string]any{
			"conditions": []string{"hiv"},
			"test_date":  time.Now().Add(-24 * time.Hour).Format("2006-01-02"),
			"disclosure": "anonymous",
		})
		require.Equal(t, http.StatusAccepted, rr.Code)
		resp := testutil.UnmarshalResponse[reportResponse](t, rr)

		rr = f.authed(t, aliceToken, http.MethodGet, "/v1/reports/"+resp.ReportID, nil)
		testutil.AssertStatus(t, rr, http.StatusOK)

		rr = f.authed(t, bobToken, http.MethodGet, "/v1/reports/"+resp.ReportID, nil)
		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})
}

func TestDeleteReport(t *testing.T) {
	f := newFixture(t)
	token := f.registerDevice(t, "device-alice")

	rr := f.authed(t, token, http.MethodPost, "/v1/reports/positive", map[string]any{
		"conditions": []string{"chlamydia"},
		"test_date":  time.Now().Add(-24 * time.Hour).Format("2006-01-02"),
		"disclosure": "full",
	})
	require.Equal(t, http.StatusAccepted, rr.Code)
	resp := testutil.UnmarshalResponse[reportResponse](t, rr)

	rr = f.authed(t, token, http.MethodDelete, "/v1/reports/"+resp.ReportID, nil)
	testutil.AssertStatus(t, rr, http.StatusOK)
	del := testutil.UnmarshalResponse[deleteReportResponse](t, rr)
	assert.True(t, del.Deleted)

	rr = f.authed(t, token, http.MethodDelete, "/v1/reports/"+resp.ReportID, nil)
	testutil.AssertStatus(t, rr, http.StatusConflict)
}

func TestNotificationEndpoints(t *testing.T) {
	f := newFixture(t)
	token := f.registerDevice(t, "device-alice")
	id := seedNotificationFor(t, f, "device-alice")

	t.Run("list hides the chain path", func(t *testing.T) {
		rr := f.authed(t, token, http.MethodGet, "/v1/notifications", nil)
		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.NotContains(t, rr.Body.String(), "chain_path")

		resp := testutil.UnmarshalResponse[listNotificationsResponse](t, rr)
		require.Len(t, resp.Notifications, 1)
		assert.Equal(t, "exposure", resp.Notifications[0].Type)
		assert.Equal(t, 1, resp.Notifications[0].HopDepth)
	})

	t.Run("chain-link reflects the exposure", func(t *testing.T) {
		rr := f.authed(t, token, http.MethodGet, "/v1/chain-link", nil)
		testutil.AssertStatus(t, rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[chainLinkResponse](t, rr)
		assert.True(t, resp.Linked)
		assert.Equal(t, 1, resp.HopDepth)
	})

	t.Run("chain-link condition filter", func(t *testing.T) {
		rr := f.authed(t, token, http.MethodGet, "/v1/chain-link?condition=chlamydia", nil)
		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.True(t, testutil.UnmarshalResponse[chainLinkResponse](t, rr).Linked)

		rr = f.authed(t, token, http.MethodGet, "/v1/chain-link?condition=syphilis", nil)
		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.False(t, testutil.UnmarshalResponse[chainLinkResponse](t, rr).Linked)

		rr = f.authed(t, token, http.MethodGet, "/v1/chain-link?condition=made-up", nil)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("mark read", func(t *testing.T) {
		rr := f.authed(t, token, http.MethodPost, "/v1/notifications/"+id.String()+"/read", nil)
		testutil.AssertStatus(t, rr, http.StatusNoContent)

		rr = f.authed(t, token, http.MethodGet, "/v1/notifications", nil)
		resp := testutil.UnmarshalResponse[listNotificationsResponse](t, rr)
		require.Len(t, resp.Notifications, 1)
		assert.True(t, resp.Notifications[0].Read)
	})

	t.Run("someone else's notification cannot be marked read", func(t *testing.T) {
		other := f.registerDevice(t, "device-bob")
		rr := f.authed(t, other, http.MethodPost, "/v1/notifications/"+id.String()+"/read", nil)
		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})
}

// seedNotificationFor writes one hop-one exposure notification addressed to
// the device, bypassing the pipeline.
func seedNotificationFor(t *testing.T, f *fixture, deviceID string) domain.NotificationID {
	t.Helper()
	u := identity.Derive(deviceID)
	condition := domain.ConditionChlamydia
	n := notification.Notification{
		ID:            domain.NewNotificationID(),
		RecipientHash: u.Notify,
		Type:          notification.TypeExposure,
		Condition:     &condition,
		ChainPath:     []domain.ChainHash{"chain-origin"},
		ChainPaths:    [][]domain.ChainHash{{"chain-origin"}},
		HopDepth:      1,
		ReportID:      domain.NewReportID(),
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	require.NoError(t, f.notifications.Create(context.Background(), n))
	return n.ID
}
