package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wenwu/saas-platform/panel-fulfillment-service/internal/metrics"
	"go.uber.org/zap"
)

const panelAccept = "Application/vnd.pterodactyl.v1+json"

// PanelClient calls the Pterodactyl application API
type PanelClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	metrics    *metrics.Metrics
	log        *zap.Logger
}

// NewPanelClient creates a panel client bound to one panel installation
func NewPanelClient(baseURL, apiKey string, httpClient *http.Client, m *metrics.Metrics, log *zap.Logger) *PanelClient {
	return &PanelClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
		metrics:    m,
		log:        log.Named("panel"),
	}
}

// PanelError is a non-2xx answer from the panel.
type PanelError struct {
	StatusCode int
	Body       string
}

func (e *PanelError) Error() string {
	return fmt.Sprintf("panel returned status %d: %s", e.StatusCode, truncate(e.Body, 512))
}

// PanelUser is a panel account
type PanelUser struct {
	ID         int    `json:"id"`
	ExternalID string `json:"external_id,omitempty"`
	UUID       string `json:"uuid"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
}

type userObject struct {
	Object     string    `json:"object"`
	Attributes PanelUser `json:"attributes"`
}

type userList struct {
	Object string       `json:"object"`
	Data   []userObject `json:"data"`
}

// CreateUserRequest creates a panel account. The panel never returns the
// password; new users set their own through the panel's setup email.
type CreateUserRequest struct {
	Email      string `json:"email"`
	Username   string `json:"username"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Password   string `json:"password,omitempty"`
	ExternalID string `json:"external_id,omitempty"`
}

// ServerLimits are the hard resource limits of a server
type ServerLimits struct {
	Memory int `json:"memory"`
	Swap   int `json:"swap"`
	Disk   int `json:"disk"`
	IO     int `json:"io"`
	CPU    int `json:"cpu"`
}

// FeatureLimits caps panel-side features. Nil means unlimited.
type FeatureLimits struct {
	Databases   *int `json:"databases"`
	Allocations *int `json:"allocations"`
	Backups     *int `json:"backups"`
}

// DeployConfig lets the panel pick a node and a free allocation
type DeployConfig struct {
	Locations   []int    `json:"locations"`
	DedicatedIP bool     `json:"dedicated_ip"`
	PortRange   []string `json:"port_range"`
}

// CreateServerRequest is the payload of POST /api/application/servers
type CreateServerRequest struct {
	Name              string         `json:"name"`
	User              int            `json:"user"`
	Egg               int            `json:"egg"`
	Nest              int            `json:"nest,omitempty"`
	DockerImage       string         `json:"docker_image,omitempty"`
	Startup           string         `json:"startup,omitempty"`
	Environment       map[string]any `json:"environment"`
	Limits            ServerLimits   `json:"limits"`
	FeatureLimits     FeatureLimits  `json:"feature_limits"`
	Deploy            DeployConfig   `json:"deploy"`
	StartOnCompletion bool           `json:"start_on_completion"`
	ExternalID        string         `json:"external_id"`
}

// Allocation is an ip/port pair assigned to a server
type Allocation struct {
	ID       int     `json:"id"`
	IP       string  `json:"ip"`
	Alias    *string `json:"alias,omitempty"`
	Port     int     `json:"port"`
	Assigned bool    `json:"assigned"`
}

// PanelServer is a created server with its allocations included
type PanelServer struct {
	ID            int    `json:"id"`
	ExternalID    string `json:"external_id"`
	UUID          string `json:"uuid"`
	Identifier    string `json:"identifier"`
	Name          string `json:"name"`
	Relationships struct {
		Allocations struct {
			Data []struct {
				Attributes Allocation `json:"attributes"`
			} `json:"data"`
		} `json:"allocations"`
	} `json:"relationships"`
}

// PrimaryAllocation returns the first allocation. The panel may not have
// assigned one yet, in which case ok is false.
func (s *PanelServer) PrimaryAllocation() (Allocation, bool) {
	if len(s.Relationships.Allocations.Data) == 0 {
		return Allocation{}, false
	}
	return s.Relationships.Allocations.Data[0].Attributes, true
}

type serverObject struct {
	Object     string       `json:"object"`
	Attributes *PanelServer `json:"attributes"`
}

// SearchUsers lists panel users matching email
func (c *PanelClient) SearchUsers(ctx context.Context, email string) ([]PanelUser, error) {
	var result userList
	path := "/api/application/users?search=" + url.QueryEscape(email)
	if err := c.do(ctx, http.MethodGet, path, "users.search", nil, &result); err != nil {
		return nil, err
	}

	users := make([]PanelUser, 0, len(result.Data))
	for _, u := range result.Data {
		users = append(users, u.Attributes)
	}
	return users, nil
}

// CreateUser creates a panel account
func (c *PanelClient) CreateUser(ctx context.Context, req *CreateUserRequest) (*PanelUser, error) {
	c.log.Info("creating panel user", zap.String("username", req.Username))

	var result userObject
	if err := c.do(ctx, http.MethodPost, "/api/application/users", "users.create", req, &result); err != nil {
		return nil, err
	}
	if result.Attributes.ID == 0 {
		return nil, errors.New("panel user response missing id")
	}

	c.log.Info("panel user created", zap.Int("panel_user_id", result.Attributes.ID))
	return &result.Attributes, nil
}

// CreateServer creates a server and returns it with allocations included
func (c *PanelClient) CreateServer(ctx context.Context, req *CreateServerRequest) (*PanelServer, error) {
	c.log.Info("creating panel server",
		zap.String("name", req.Name), zap.Int("user", req.User), zap.Int("egg", req.Egg))

	var result serverObject
	path := "/api/application/servers?include=allocations"
	if err := c.do(ctx, http.MethodPost, path, "servers.create", req, &result); err != nil {
		return nil, err
	}
	if result.Attributes == nil || result.Attributes.UUID == "" {
		return nil, errors.New("panel server response missing attributes")
	}

	c.log.Info("panel server created", zap.String("uuid", result.Attributes.UUID))
	return result.Attributes, nil
}

func (c *PanelClient) do(ctx context.Context, method, path, endpoint string, body, dest any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Accept", panelAccept)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		observe(c.metrics, "panel", endpoint, 0, err, start)
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	observe(c.metrics, "panel", endpoint, resp.StatusCode, nil, start)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &PanelError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if err := json.Unmarshal(respBody, dest); err != nil {
		return fmt.Errorf("decode response: %w (body: %s)", err, truncate(string(respBody), 512))
	}
	return nil
}
