package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/wenwu/saas-platform/panel-fulfillment-service/internal/client"
	"github.com/wenwu/saas-platform/panel-fulfillment-service/internal/lock"
	"github.com/wenwu/saas-platform/panel-fulfillment-service/internal/metrics"
	"github.com/wenwu/saas-platform/panel-fulfillment-service/internal/models"
	"github.com/wenwu/saas-platform/panel-fulfillment-service/internal/notify"
	"github.com/wenwu/saas-platform/panel-fulfillment-service/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrOrderNotFound           = errors.New("order not found")
	ErrNotPanelProduct         = errors.New("product is not a panel product")
	ErrPanelConfigMissing      = errors.New("product has no panel config")
	ErrPanelCredentialsMissing = errors.New("panel credentials are not configured")
	ErrProvisionInProgress     = errors.New("order is already being provisioned")
)

// ProvisionError wraps a fatal panel step. The server may or may not exist.
type ProvisionError struct {
	OrderID int64
	Err     error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("provision order %d: %v", e.OrderID, e.Err)
}

func (e *ProvisionError) Unwrap() error {
	return e.Err
}

// OrderStore reads orders and links them to panel servers
type OrderStore interface {
	GetWithProduct(ctx context.Context, id int64) (*models.OrderDetail, error)
	MarkProvisioned(ctx context.Context, id int64, serverID string) error
}

// SettingsStore reads the settings singleton
type SettingsStore interface {
	Get(ctx context.Context) (*models.Settings, error)
}

// ActionLogger writes fulfillment audit entries
type ActionLogger interface {
	LogActionWithMetadata(ctx context.Context, orderID int64, action, status, message string, metadata map[string]interface{}) error
}

// Mailer sends one transactional email and reports the outcome
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, html string) client.EmailResult
}

// Notifier delivers admin chat messages
type Notifier interface {
	Configured() bool
	SendMessage(ctx context.Context, chatID, text string) error
	SendPhoto(ctx context.Context, chatID, photo, caption string) error
}

// Locker serialises provisioning per order
type Locker interface {
	Acquire(ctx context.Context, orderID int64) (func(), error)
}

// FulfillmentService turns a paid order into a running panel server
type FulfillmentService struct {
	orders      OrderStore
	settings    SettingsStore
	logs        ActionLogger
	locker      Locker
	provisioner *Provisioner
	newPanel    PanelFactory
	mailer      Mailer
	notifier    Notifier
	adminChatID string
	metrics     *metrics.Metrics
	log         *zap.Logger
}

// NewFulfillmentService creates a new fulfillment service
func NewFulfillmentService(
	orders OrderStore,
	settings SettingsStore,
	logs ActionLogger,
	locker Locker,
	provisioner *Provisioner,
	newPanel PanelFactory,
	mailer Mailer,
	notifier Notifier,
	adminChatID string,
	m *metrics.Metrics,
	log *zap.Logger,
) *FulfillmentService {
	return &FulfillmentService{
		orders:      orders,
		settings:    settings,
		logs:        logs,
		locker:      locker,
		provisioner: provisioner,
		newPanel:    newPanel,
		mailer:      mailer,
		notifier:    notifier,
		adminChatID: adminChatID,
		metrics:     m,
		log:         log.Named("fulfillment"),
	}
}

// Fulfill provisions the panel server for orderID and notifies the customer and admins
func (s *FulfillmentService) Fulfill(ctx context.Context, orderID int64) (*models.ProvisionResponse, error) {
	log := s.log.With(zap.Int64("order_id", orderID))

	// 1. Panel credentials
	settings, err := s.settings.Get(ctx)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.recordOutcome("error")
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if !settings.PanelCredentialsSet() {
		s.recordOutcome("misconfigured")
		return nil, ErrPanelCredentialsMissing
	}

	release, err := s.locker.Acquire(ctx, orderID)
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			s.recordOutcome("conflict")
			return nil, ErrProvisionInProgress
		}
		s.recordOutcome("error")
		return nil, err
	}
	defer release()

	// 2. Order with product and panel config
	detail, err := s.orders.GetWithProduct(ctx, orderID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			log.Error("load order failed", zap.Error(err))
		}
		s.recordOutcome("not_found")
		return nil, ErrOrderNotFound
	}

	// 3. Category
	if detail.Product.Category != models.CategoryPanelPterodactyl {
		s.recordOutcome("rejected")
		return nil, fmt.Errorf("%w: category %q", ErrNotPanelProduct, detail.Product.Category)
	}

	// 4. Panel config
	if detail.Config == nil {
		s.recordOutcome("misconfigured")
		return nil, ErrPanelConfigMissing
	}

	// 5. Idempotency
	if detail.Order.Provisioned() {
		log.Info("order already provisioned", zap.String("server_id", *detail.Order.PterodactylServerID))
		s.audit(ctx, orderID, models.ActionAlreadyProvisioned, "skipped", "order already linked to a panel server",
			map[string]interface{}{"server_id": *detail.Order.PterodactylServerID})
		s.recordOutcome("already_provisioned")
		return &models.ProvisionResponse{
			Success: true,
			Message: "Order already provisioned",
		}, nil
	}

	s.audit(ctx, orderID, models.ActionProvisionStarted, "pending", "provisioning started", nil)

	// 6. Panel user and server
	panel := s.newPanel(settings.PanelURL, settings.PanelAPIKey)
	result, err := s.provisioner.Provision(ctx, panel, ProvisionInput{
		OrderID:     orderID,
		Email:       detail.Order.ContactEmail,
		Username:    detail.Order.Username,
		ProductName: detail.Product.Name,
		Config:      detail.Config,
	})
	if err != nil {
		log.Error("provisioning failed", zap.Error(err))
		s.audit(ctx, orderID, models.ActionProvisionFailed, "failed", err.Error(), nil)
		s.recordOutcome("failed")
		return nil, &ProvisionError{OrderID: orderID, Err: err}
	}

	userAction := models.ActionPanelUserReused
	if result.UserCreated {
		userAction = models.ActionPanelUserCreated
	}
	s.audit(ctx, orderID, userAction, "ok", fmt.Sprintf("panel user %d", result.PanelUserID),
		map[string]interface{}{"panel_user_id": result.PanelUserID})
	s.audit(ctx, orderID, models.ActionServerCreated, "ok", fmt.Sprintf("server %s created", result.ServerUUID),
		map[string]interface{}{"server_uuid": result.ServerUUID, "ip": result.IP, "port": result.Port})

	// 7. Persist; the server exists regardless, so failures are for manual reconciliation
	if err := s.orders.MarkProvisioned(ctx, orderID, result.ServerUUID); err != nil {
		action := models.ActionStatusUpdateFailed
		if errors.Is(err, repository.ErrAlreadyProvisioned) {
			action = models.ActionAlreadyProvisioned
		}
		log.Error("order update failed after server creation",
			zap.String("server_uuid", result.ServerUUID), zap.Error(err))
		s.audit(ctx, orderID, action, "failed", err.Error(),
			map[string]interface{}{"server_uuid": result.ServerUUID})
	}

	// 8 + 9. Customer email and admin notification
	s.notifyProvisioned(ctx, notify.ProvisionedServer{
		OrderID:     orderID,
		Username:    detail.Order.Username,
		Email:       detail.Order.ContactEmail,
		ProductName: detail.Product.Name,
		ServerName:  result.Name,
		ServerUUID:  result.ServerUUID,
		IP:          result.IP,
		Port:        result.Port,
		PanelURL:    settings.PanelURL,
		NewAccount:  result.UserCreated,
	})

	s.recordOutcome("provisioned")
	log.Info("order fulfilled", zap.String("server_uuid", result.ServerUUID))

	// 10.
	return &models.ProvisionResponse{
		Success: true,
		Message: "Server provisioned successfully",
		Server: &models.ServerInfo{
			UUID:               result.ServerUUID,
			Identifier:         result.Identifier,
			Name:               result.Name,
			IP:                 result.IP,
			Port:               result.Port,
			PanelUserID:        result.PanelUserID,
			CredentialDelivery: result.CredentialDelivery,
		},
	}, nil
}

// notifyProvisioned sends the email and the admin message concurrently.
// Neither outcome affects the response.
func (s *FulfillmentService) notifyProvisioned(ctx context.Context, server notify.ProvisionedServer) {
	var g errgroup.Group

	g.Go(func() error {
		subject, body := notify.CompletionEmail(server)
		res := s.mailer.SendEmail(ctx, server.Email, subject, body)
		if !res.Success {
			s.log.Warn("completion email not sent",
				zap.Int64("order_id", server.OrderID), zap.String("error", res.Error))
		}
		s.recordNotification("email", res.Success)
		return nil
	})

	if s.notifier != nil && s.notifier.Configured() && s.adminChatID != "" {
		g.Go(func() error {
			err := s.notifier.SendMessage(ctx, s.adminChatID, notify.FormatFulfillmentAdmin(server))
			if err != nil {
				s.log.Warn("admin notification not sent",
					zap.Int64("order_id", server.OrderID), zap.Error(err))
			}
			s.recordNotification("telegram", err == nil)
			return nil
		})
	}

	_ = g.Wait()
}

func (s *FulfillmentService) audit(ctx context.Context, orderID int64, action, status, message string, metadata map[string]interface{}) {
	if s.logs == nil {
		return
	}
	if err := s.logs.LogActionWithMetadata(ctx, orderID, action, status, message, metadata); err != nil {
		s.log.Warn("audit log write failed",
			zap.Int64("order_id", orderID), zap.String("action", action), zap.Error(err))
	}
}

func (s *FulfillmentService) recordOutcome(outcome string) {
	if s.metrics != nil {
		s.metrics.Fulfillments.WithLabelValues(outcome).Inc()
	}
}

func (s *FulfillmentService) recordNotification(kind string, ok bool) {
	if s.metrics == nil {
		return
	}
	outcome := "sent"
	if !ok {
		outcome = "failed"
	}
	s.metrics.Notifications.WithLabelValues(kind, outcome).Inc()
}
