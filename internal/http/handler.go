package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wenwu/saas-platform/panel-fulfillment-service/internal/models"
	"github.com/wenwu/saas-platform/panel-fulfillment-service/internal/service"
	"go.uber.org/zap"
)

// Fulfiller provisions a paid order
type Fulfiller interface {
	Fulfill(ctx context.Context, orderID int64) (*models.ProvisionResponse, error)
}

// Broadcaster relays order records to the admin chat
type Broadcaster interface {
	Ready() error
	Broadcast(ctx context.Context, orders []models.NotificationOrder) (*models.BroadcastResponse, error)
}

type Handler struct {
	fulfillment Fulfiller
	broadcast   Broadcaster
	log         *zap.Logger
}

func NewHandler(fulfillment Fulfiller, broadcast Broadcaster, log *zap.Logger) *Handler {
	return &Handler{
		fulfillment: fulfillment,
		broadcast:   broadcast,
		log:         log.Named("handler"),
	}
}

// Provision fulfils one order on the panel
func (h *Handler) Provision(c *gin.Context) {
	var req models.ProvisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "order_id is required"})
		return
	}

	resp, err := h.fulfillment.Fulfill(c.Request.Context(), req.OrderID)
	if err != nil {
		h.writeFulfillmentError(c, req.OrderID, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) writeFulfillmentError(c *gin.Context, orderID int64, err error) {
	var provisionErr *service.ProvisionError

	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
	case errors.Is(err, service.ErrNotPanelProduct):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Order is not a Pterodactyl panel product"})
	case errors.Is(err, service.ErrPanelCredentialsMissing):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Pterodactyl panel credentials are not configured"})
	case errors.Is(err, service.ErrPanelConfigMissing):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Product has no Pterodactyl configuration"})
	case errors.Is(err, service.ErrProvisionInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "Order is already being provisioned"})
	case errors.As(err, &provisionErr):
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to provision server",
			"details": provisionErr.Err.Error(),
		})
	default:
		h.log.Error("fulfillment failed", zap.Int64("order_id", orderID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal server error",
			"details": err.Error(),
		})
	}
}

// BroadcastOrders relays a batch of orders from the database webhook
func (h *Handler) BroadcastOrders(c *gin.Context) {
	// Credentials are checked before the body is read.
	if err := h.broadcast.Ready(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Telegram credentials are not configured"})
		return
	}

	var req models.BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "orders must be an array"})
		return
	}

	resp, err := h.broadcast.Broadcast(c.Request.Context(), req.Orders)
	if err != nil {
		h.log.Error("broadcast failed", zap.Int("orders", len(req.Orders)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}
