package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/wenwu/saas-platform/panel-fulfillment-service/internal/client"
	"github.com/wenwu/saas-platform/panel-fulfillment-service/internal/models"
	"github.com/wenwu/saas-platform/panel-fulfillment-service/internal/repository"
	"go.uber.org/zap"
)

// fakePanel is an httptest-backed panel application API.
type fakePanel struct {
	mu            sync.Mutex
	users         []client.PanelUser
	searchStatus  int
	createStatus  int
	noAllocation  bool
	searches      int
	usersCreated  []client.CreateUserRequest
	serverCreated []client.CreateServerRequest
	authHeaders   []string
	srv           *httptest.Server
}

func newFakePanel(t *testing.T) *fakePanel {
	t.Helper()
	p := &fakePanel{searchStatus: http.StatusOK, createStatus: http.StatusCreated}
	p.srv = httptest.NewServer(http.HandlerFunc(p.handle))
	t.Cleanup(p.srv.Close)
	return p
}

func (p *fakePanel) handle(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.authHeaders = append(p.authHeaders, r.Header.Get("Authorization"))
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/application/users":
		p.searches++
		if p.searchStatus != http.StatusOK {
			w.WriteHeader(p.searchStatus)
			_, _ = w.Write([]byte(`{"errors":[{"code":"InternalError"}]}`))
			return
		}
		data := make([]map[string]any, 0, len(p.users))
		for _, u := range p.users {
			data = append(data, map[string]any{"object": "user", "attributes": u})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data})

	case r.Method == http.MethodPost && r.URL.Path == "/api/application/users":
		var req client.CreateUserRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		p.usersCreated = append(p.usersCreated, req)
		if p.createStatus >= 300 {
			w.WriteHeader(p.createStatus)
			_, _ = w.Write([]byte(`{"errors":[{"code":"ValidationException","detail":"email taken"}]}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "user",
			"attributes": client.PanelUser{
				ID: 77, UUID: "user-uuid", Username: req.Username, Email: req.Email,
				FirstName: req.FirstName, LastName: req.LastName,
			},
		})

	case r.Method == http.MethodPost && r.URL.Path == "/api/application/servers":
		var req client.CreateServerRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		p.serverCreated = append(p.serverCreated, req)

		allocations := []map[string]any{}
		if !p.noAllocation {
			allocations = append(allocations, map[string]any{
				"object":     "allocation",
				"attributes": map[string]any{"id": 1, "ip": "10.0.0.1", "port": 25565, "assigned": true},
			})
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "server",
			"attributes": map[string]any{
				"id":          9,
				"external_id": req.ExternalID,
				"uuid":        "srv-uuid-42",
				"identifier":  "srv42",
				"name":        req.Name,
				"relationships": map[string]any{
					"allocations": map[string]any{"object": "list", "data": allocations},
				},
			},
		})

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (p *fakePanel) factory() PanelFactory {
	return func(baseURL, apiKey string) PanelAPI {
		return client.NewPanelClient(baseURL, apiKey, p.srv.Client(), nil, zap.NewNop())
	}
}

func (p *fakePanel) client() PanelAPI {
	return p.factory()(p.srv.URL, "ptla_test")
}

func (p *fakePanel) calls() (searches, users, servers int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.searches, len(p.usersCreated), len(p.serverCreated)
}

type fakeOrderStore struct {
	mu       sync.Mutex
	details  map[int64]*models.OrderDetail
	getErr   error
	markErr  error
	marked   map[int64]string
	markHits int
}

func newFakeOrderStore(details ...*models.OrderDetail) *fakeOrderStore {
	s := &fakeOrderStore{details: map[int64]*models.OrderDetail{}, marked: map[int64]string{}}
	for _, d := range details {
		s.details[d.Order.ID] = d
	}
	return s
}

func (s *fakeOrderStore) GetWithProduct(_ context.Context, id int64) (*models.OrderDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	d, ok := s.details[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *fakeOrderStore) MarkProvisioned(_ context.Context, id int64, serverID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markHits++
	if s.markErr != nil {
		return s.markErr
	}
	s.marked[id] = serverID
	if d, ok := s.details[id]; ok {
		d.Order.Status = models.OrderStatusDone
		d.Order.PterodactylServerID = &serverID
	}
	return nil
}

type fakeSettings struct {
	settings *models.Settings
	err      error
	calls    int
}

func (s *fakeSettings) Get(context.Context) (*models.Settings, error) {
	s.calls++
	return s.settings, s.err
}

type fakeActionLogger struct {
	mu      sync.Mutex
	actions []string
	err     error
}

func (l *fakeActionLogger) LogActionWithMetadata(_ context.Context, _ int64, action, _, _ string, _ map[string]interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.actions = append(l.actions, action)
	return l.err
}

type sentEmail struct {
	To, Subject, HTML string
}

type fakeMailer struct {
	mu     sync.Mutex
	sent   []sentEmail
	result client.EmailResult
}

func (m *fakeMailer) SendEmail(_ context.Context, to, subject, html string) client.EmailResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentEmail{To: to, Subject: subject, HTML: html})
	return m.result
}

type sentChat struct {
	Method, ChatID, Photo, Text string
}

type fakeNotifier struct {
	mu         sync.Mutex
	configured bool
	err        error
	sent       []sentChat
}

func (n *fakeNotifier) Configured() bool { return n.configured }

func (n *fakeNotifier) SendMessage(_ context.Context, chatID, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentChat{Method: "sendMessage", ChatID: chatID, Text: text})
	return n.err
}

func (n *fakeNotifier) SendPhoto(_ context.Context, chatID, photo, caption string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentChat{Method: "sendPhoto", ChatID: chatID, Photo: photo, Text: caption})
	return n.err
}

func (n *fakeNotifier) count(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, s := range n.sent {
		if s.Method == method {
			c++
		}
	}
	return c
}
