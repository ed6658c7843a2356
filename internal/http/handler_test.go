package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wenwu/saas-platform/panel-fulfillment-service/internal/config"
	"github.com/wenwu/saas-platform/panel-fulfillment-service/internal/models"
	"github.com/wenwu/saas-platform/panel-fulfillment-service/internal/service"
	"go.uber.org/zap"
)

const (
	testJWTSecret      = "test-jwt-secret-that-is-long-enough-000"
	testInternalSecret = "test-internal-secret-long-enough-00000"
)

type fakeFulfiller struct {
	resp  *models.ProvisionResponse
	err   error
	calls []int64
}

func (f *fakeFulfiller) Fulfill(_ context.Context, orderID int64) (*models.ProvisionResponse, error) {
	f.calls = append(f.calls, orderID)
	return f.resp, f.err
}

type fakeBroadcaster struct {
	readyErr error
	resp     *models.BroadcastResponse
	err      error
	received [][]models.NotificationOrder
}

func (b *fakeBroadcaster) Ready() error { return b.readyErr }

func (b *fakeBroadcaster) Broadcast(_ context.Context, orders []models.NotificationOrder) (*models.BroadcastResponse, error) {
	b.received = append(b.received, orders)
	return b.resp, b.err
}

type fakeAuditReader struct {
	entries []*models.FulfillmentLog
	limit   int
}

func (a *fakeAuditReader) GetByOrderID(_ context.Context, _ int64, limit int) ([]*models.FulfillmentLog, error) {
	a.limit = limit
	return a.entries, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server:         config.ServerConfig{Mode: gin.TestMode, RateLimitPerMinute: 100},
		JWT:            config.JWTConfig{SecretKey: testJWTSecret, AdminRole: "service_role"},
		InternalSecret: testInternalSecret,
	}
}

func newTestServer(f Fulfiller, b Broadcaster, a AuditReader) http.Handler {
	return NewServer(testConfig(), f, b, a, zap.NewNop()).Handler()
}

func adminToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	if claims == nil {
		claims = jwt.MapClaims{"sub": "admin-1", "role": "service_role"}
	}
	claims["exp"] = time.Now().Add(time.Hour).Unix()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

func provisionRequest(t *testing.T, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/fulfillment/provision", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+adminToken(t, nil))
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestProvisionSuccess(t *testing.T) {
	f := &fakeFulfiller{resp: &models.ProvisionResponse{
		Success: true,
		Message: "Server provisioned successfully",
		Server:  &models.ServerInfo{UUID: "srv-1", IP: "10.0.0.1", Port: 25565},
	}}
	srv := newTestServer(f, &fakeBroadcaster{}, &fakeAuditReader{})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, provisionRequest(t, `{"order_id": 42}`))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{42}, f.calls)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestProvisionBadRequest(t *testing.T) {
	for _, body := range []string{`{}`, `{"order_id": "abc"}`, `not json`, `{"order_id": 0}`} {
		f := &fakeFulfiller{}
		srv := newTestServer(f, &fakeBroadcaster{}, &fakeAuditReader{})

		w := httptest.NewRecorder()
		srv.ServeHTTP(w, provisionRequest(t, body))

		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Empty(t, f.calls, body)
	}
}

func TestProvisionErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		details bool
	}{
		{"not found", service.ErrOrderNotFound, http.StatusNotFound, false},
		{"wrong category", service.ErrNotPanelProduct, http.StatusBadRequest, false},
		{"no credentials", service.ErrPanelCredentialsMissing, http.StatusInternalServerError, false},
		{"no config", service.ErrPanelConfigMissing, http.StatusInternalServerError, false},
		{"locked", service.ErrProvisionInProgress, http.StatusConflict, false},
		{"panel failure", &service.ProvisionError{OrderID: 1, Err: errors.New("panel returned status 422")}, http.StatusInternalServerError, true},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(&fakeFulfiller{err: tt.err}, &fakeBroadcaster{}, &fakeAuditReader{})

			w := httptest.NewRecorder()
			srv.ServeHTTP(w, provisionRequest(t, `{"order_id": 1}`))

			assert.Equal(t, tt.status, w.Code)
			body := decode(t, w)
			assert.NotEmpty(t, body["error"])
			if tt.details {
				assert.NotEmpty(t, body["details"])
			} else {
				assert.NotContains(t, body, "details")
			}
		})
	}
}

func TestProvisionMethodNotAllowed(t *testing.T) {
	srv := newTestServer(&fakeFulfiller{}, &fakeBroadcaster{}, &fakeAuditReader{})

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, httptest.NewRequest(method, "/api/v1/fulfillment/provision", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code, method)
		assert.Equal(t, "method not allowed", decode(t, w)["error"])
	}
}

func broadcastRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/orders", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Internal-Secret", testInternalSecret)
	return req
}

func TestBroadcastOrders(t *testing.T) {
	b := &fakeBroadcaster{resp: &models.BroadcastResponse{Success: true, Message: "processed 2 orders", Sent: 2}}
	srv := newTestServer(&fakeFulfiller{}, b, &fakeAuditReader{})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, broadcastRequest(`{"orders":[{"id":1,"status":"done","payment_proof":"https://x/p.jpg"},{"id":2}]}`))

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, b.received, 1)
	require.Len(t, b.received[0], 2)
	require.NotNil(t, b.received[0][0].PaymentProof)
	assert.Equal(t, "https://x/p.jpg", *b.received[0][0].PaymentProof)
	assert.Equal(t, "processed 2 orders", decode(t, w)["message"])
}

func TestBroadcastOrdersMalformed(t *testing.T) {
	for _, body := range []string{`{"orders":"nope"}`, `{}`, `[]`, `garbage`} {
		b := &fakeBroadcaster{}
		srv := newTestServer(&fakeFulfiller{}, b, &fakeAuditReader{})

		w := httptest.NewRecorder()
		srv.ServeHTTP(w, broadcastRequest(body))

		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Empty(t, b.received, body)
	}
}

func TestBroadcastOrdersNotConfiguredBeforeParsing(t *testing.T) {
	b := &fakeBroadcaster{readyErr: service.ErrChatNotConfigured}
	srv := newTestServer(&fakeFulfiller{}, b, &fakeAuditReader{})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, broadcastRequest(`garbage`))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, b.received)
}

func TestBroadcastOrdersMethodNotAllowed(t *testing.T) {
	srv := newTestServer(&fakeFulfiller{}, &fakeBroadcaster{}, &fakeAuditReader{})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/notifications/orders", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestOrderLogsMasksSensitiveMetadata(t *testing.T) {
	a := &fakeAuditReader{entries: []*models.FulfillmentLog{{
		ID: "l1", OrderID: 42, Action: models.ActionServerCreated, Status: "ok",
		Metadata: map[string]interface{}{"server_uuid": "srv-1", "panel_api_key": "ptla_x"},
	}}}
	srv := newTestServer(&fakeFulfiller{}, &fakeBroadcaster{}, a)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/fulfillment/orders/42/logs?limit=1000", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, nil))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, maxAuditEntries, a.limit)
	assert.NotContains(t, w.Body.String(), "ptla_x")
	assert.Contains(t, w.Body.String(), "srv-1")
}

func TestOrderLogsInvalidID(t *testing.T) {
	srv := newTestServer(&fakeFulfiller{}, &fakeBroadcaster{}, &fakeAuditReader{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/fulfillment/orders/abc/logs", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, nil))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(&fakeFulfiller{}, &fakeBroadcaster{}, &fakeAuditReader{})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}
