package models

import "time"

// Fulfillment log actions
const (
	ActionProvisionStarted   = "provision_started"
	ActionPanelUserCreated   = "panel_user_created"
	ActionPanelUserReused    = "panel_user_reused"
	ActionServerCreated      = "server_created"
	ActionProvisionFailed    = "provision_failed"
	ActionStatusUpdateFailed = "status_update_failed"
	ActionAlreadyProvisioned = "already_provisioned"
)

// FulfillmentLog represents an audit entry for one fulfillment step
type FulfillmentLog struct {
	ID        string                 `json:"id"`
	OrderID   int64                  `json:"order_id"`
	Action    string                 `json:"action"`
	Status    string                 `json:"status"`
	Message   string                 `json:"message"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}
