package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/wenwu/saas-platform/panel-fulfillment-service/internal/models"
)

const maxAuditEntries = 200

// AuditReader lists fulfillment audit entries for an order
type AuditReader interface {
	GetByOrderID(ctx context.Context, orderID int64, limit int) ([]*models.FulfillmentLog, error)
}

// AuditHandler exposes the fulfillment audit trail to the admin dashboard
type AuditHandler struct {
	logs AuditReader
}

func NewAuditHandler(logs AuditReader) *AuditHandler {
	return &AuditHandler{logs: logs}
}

// metadata keys that must never leave the service
var sensitivePatterns = []string{"password", "hash", "secret", "api_key", "token", "private_key"}

func isSensitiveKey(name string) bool {
	lower := strings.ToLower(name)
	for _, p := range sensitivePatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// OrderLogs returns the newest audit entries of one order
// GET /orders/:id/logs?limit=50
func (h *AuditHandler) OrderLogs(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || orderID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 {
		limit = 50
	}
	if limit > maxAuditEntries {
		limit = maxAuditEntries
	}

	entries, err := h.logs.GetByOrderID(c.Request.Context(), orderID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	for _, e := range entries {
		for k := range e.Metadata {
			if isSensitiveKey(k) {
				e.Metadata[k] = "***"
			}
		}
	}
	if entries == nil {
		entries = []*models.FulfillmentLog{}
	}

	c.JSON(http.StatusOK, gin.H{"order_id": orderID, "logs": entries})
}
