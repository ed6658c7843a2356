package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/wenwu/saas-platform/panel-fulfillment-service/internal/client"
	"github.com/wenwu/saas-platform/panel-fulfillment-service/internal/models"
	"github.com/wenwu/saas-platform/panel-fulfillment-service/internal/notify"
	"go.uber.org/zap"
)

const (
	panelLastName    = "Customer"
	passwordLength   = 24
	passwordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_"
)

// PanelAPI is the subset of the panel application API used for provisioning
type PanelAPI interface {
	SearchUsers(ctx context.Context, email string) ([]client.PanelUser, error)
	CreateUser(ctx context.Context, req *client.CreateUserRequest) (*client.PanelUser, error)
	CreateServer(ctx context.Context, req *client.CreateServerRequest) (*client.PanelServer, error)
}

// PanelFactory builds a panel client for the credentials read from settings
type PanelFactory func(baseURL, apiKey string) PanelAPI

// ProvisionInput is everything needed to create one server for an order
type ProvisionInput struct {
	OrderID     int64
	Email       string
	Username    string
	ProductName string
	Config      *models.PanelConfig
}

// ProvisionResult describes the server created for an order.
// The panel account password is never part of it: new accounts receive a
// set-password email from the panel (CredentialDelivery says which case applies).
type ProvisionResult struct {
	PanelUserID        int
	UserCreated        bool
	ServerUUID         string
	Identifier         string
	Name               string
	IP                 string
	Port               int
	CredentialDelivery string
}

// Provisioner drives LookupUser -> {Found | CreateUser} -> CreateServer on the panel
type Provisioner struct {
	namePrefix string
	log        *zap.Logger
}

// NewProvisioner creates a provisioner. An empty namePrefix names servers after the product.
func NewProvisioner(namePrefix string, log *zap.Logger) *Provisioner {
	return &Provisioner{
		namePrefix: namePrefix,
		log:        log.Named("provisioner"),
	}
}

// Provision finds or creates the panel user, then creates the server
func (p *Provisioner) Provision(ctx context.Context, panel PanelAPI, in ProvisionInput) (*ProvisionResult, error) {
	if in.Config == nil {
		return nil, fmt.Errorf("order %d has no panel config", in.OrderID)
	}

	username := PanelUsername(in.Username, in.Email, in.OrderID)

	result := &ProvisionResult{}

	user := p.lookupUser(ctx, panel, in.Email)
	if user != nil {
		result.PanelUserID = user.ID
		result.CredentialDelivery = models.CredentialDeliveryExistingAccount
		p.log.Info("reusing panel user",
			zap.Int64("order_id", in.OrderID), zap.Int("panel_user_id", user.ID))
	} else {
		created, err := p.createUser(ctx, panel, in.Email, username)
		if err != nil {
			return nil, fmt.Errorf("create panel user: %w", err)
		}
		result.PanelUserID = created.ID
		result.UserCreated = true
		result.CredentialDelivery = models.CredentialDeliveryPasswordSetup
	}

	req := BuildServerRequest(p.serverName(in.ProductName, username, in.OrderID), result.PanelUserID, in.OrderID, in.Config)
	server, err := panel.CreateServer(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create panel server: %w", err)
	}

	result.ServerUUID = server.UUID
	result.Identifier = server.Identifier
	result.Name = server.Name
	result.IP = notify.AllocationPlaceholder
	if alloc, ok := server.PrimaryAllocation(); ok {
		result.IP = alloc.IP
		result.Port = alloc.Port
	} else {
		p.log.Warn("panel server has no allocation yet",
			zap.Int64("order_id", in.OrderID), zap.String("server_uuid", server.UUID))
	}

	return result, nil
}

// lookupUser returns the panel user whose email matches, or nil. Search
// failures are not fatal: the user may simply not exist yet.
func (p *Provisioner) lookupUser(ctx context.Context, panel PanelAPI, email string) *client.PanelUser {
	users, err := panel.SearchUsers(ctx, email)
	if err != nil {
		p.log.Warn("panel user search failed, treating as not found",
			zap.String("email", email), zap.Error(err))
		return nil
	}
	for i := range users {
		if strings.EqualFold(users[i].Email, email) {
			return &users[i]
		}
	}
	return nil
}

func (p *Provisioner) createUser(ctx context.Context, panel PanelAPI, email, username string) (*client.PanelUser, error) {
	password, err := GeneratePassword(passwordLength)
	if err != nil {
		return nil, err
	}

	return panel.CreateUser(ctx, &client.CreateUserRequest{
		Email:     email,
		Username:  username,
		FirstName: username,
		LastName:  panelLastName,
		Password:  password,
	})
}

func (p *Provisioner) serverName(productName, username string, orderID int64) string {
	prefix := p.namePrefix
	if prefix == "" {
		prefix = productName
	}
	return fmt.Sprintf("%s - %s #%d", prefix, username, orderID)
}

// BuildServerRequest maps a panel config onto a server creation payload.
// Port allocation is left to the panel.
func BuildServerRequest(name string, userID int, orderID int64, cfg *models.PanelConfig) *client.CreateServerRequest {
	env := cfg.Environment
	if env == nil {
		env = map[string]any{}
	}

	req := &client.CreateServerRequest{
		Name:        name,
		User:        userID,
		Egg:         cfg.EggID,
		Nest:        cfg.NestID,
		Environment: env,
		Limits: client.ServerLimits{
			Memory: cfg.Memory,
			Swap:   cfg.Swap,
			Disk:   cfg.Disk,
			IO:     cfg.IO,
			CPU:    cfg.CPU,
		},
		FeatureLimits: client.FeatureLimits{
			Databases:   cfg.Databases,
			Allocations: cfg.Allocations,
			Backups:     cfg.Backups,
		},
		Deploy: client.DeployConfig{
			Locations:   []int{cfg.LocationID},
			DedicatedIP: false,
			PortRange:   []string{},
		},
		StartOnCompletion: true,
		ExternalID:        fmt.Sprintf("order-%d", orderID),
	}
	if cfg.DockerImage != nil {
		req.DockerImage = *cfg.DockerImage
	}
	if cfg.Startup != nil {
		req.Startup = *cfg.Startup
	}
	return req
}

// PanelUsername derives a panel-safe username from the explicit username or
// the email local part. Only [a-z0-9._-] survive.
func PanelUsername(username, email string, orderID int64) string {
	source := strings.TrimSpace(username)
	if source == "" {
		source, _, _ = strings.Cut(email, "@")
	}

	var b strings.Builder
	for _, r := range strings.ToLower(source) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}

	if b.Len() == 0 {
		return fmt.Sprintf("user%d", orderID)
	}
	return b.String()
}

// GeneratePassword returns n characters drawn uniformly from a 64-symbol alphabet
func GeneratePassword(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}
	for i := range buf {
		buf[i] = passwordAlphabet[buf[i]&63]
	}
	return string(buf), nil
}
