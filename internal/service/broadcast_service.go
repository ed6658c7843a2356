package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/wenwu/saas-platform/panel-fulfillment-service/internal/metrics"
	"github.com/wenwu/saas-platform/panel-fulfillment-service/internal/models"
	"github.com/wenwu/saas-platform/panel-fulfillment-service/internal/notify"
	"github.com/wenwu/saas-platform/panel-fulfillment-service/internal/repository"
	"go.uber.org/zap"
)

// ErrChatNotConfigured means the bot token or admin chat id is missing
var ErrChatNotConfigured = errors.New("telegram bot token or admin chat id not configured")

// BroadcastService relays order records to the admin chat
type BroadcastService struct {
	settings SettingsStore
	notifier Notifier
	chatID   string
	metrics  *metrics.Metrics
	log      *zap.Logger
}

// NewBroadcastService creates a new broadcast service
func NewBroadcastService(settings SettingsStore, notifier Notifier, chatID string, m *metrics.Metrics, log *zap.Logger) *BroadcastService {
	return &BroadcastService{
		settings: settings,
		notifier: notifier,
		chatID:   chatID,
		metrics:  m,
		log:      log.Named("broadcast"),
	}
}

// Ready reports whether messages can be sent at all
func (s *BroadcastService) Ready() error {
	if s.notifier == nil || !s.notifier.Configured() || s.chatID == "" {
		return ErrChatNotConfigured
	}
	return nil
}

// Broadcast sends one message per order. A failed record is logged and
// counted; it never stops the batch.
func (s *BroadcastService) Broadcast(ctx context.Context, orders []models.NotificationOrder) (*models.BroadcastResponse, error) {
	if err := s.Ready(); err != nil {
		return nil, err
	}

	panelURL := s.panelURL(ctx)

	resp := &models.BroadcastResponse{Success: true}
	for _, o := range orders {
		text := notify.FormatOrder(o, panelURL)

		var err error
		kind := "telegram_message"
		if o.PaymentProof != nil && *o.PaymentProof != "" {
			kind = "telegram_photo"
			err = s.notifier.SendPhoto(ctx, s.chatID, *o.PaymentProof, text)
		} else {
			err = s.notifier.SendMessage(ctx, s.chatID, text)
		}

		if err != nil {
			s.log.Error("order notification failed",
				zap.Int64("order_id", o.ID), zap.String("status", o.Status), zap.Error(err))
			resp.Failed++
		} else {
			resp.Sent++
		}
		s.recordNotification(kind, err == nil)
	}

	resp.Message = fmt.Sprintf("processed %d orders", len(orders))
	return resp, nil
}

// panelURL resolves the panel link once per batch. A missing settings row
// is expected on fresh installs and falls back to the placeholder silently.
func (s *BroadcastService) panelURL(ctx context.Context) string {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Warn("load settings failed, using placeholder panel URL", zap.Error(err))
		}
		return notify.PanelURLPlaceholder
	}
	if settings == nil || settings.PanelURL == "" {
		return notify.PanelURLPlaceholder
	}
	return settings.PanelURL
}

func (s *BroadcastService) recordNotification(kind string, ok bool) {
	if s.metrics == nil {
		return
	}
	outcome := "sent"
	if !ok {
		outcome = "failed"
	}
	s.metrics.Notifications.WithLabelValues(kind, outcome).Inc()
}
