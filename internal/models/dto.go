package models

// ==================== Fulfillment DTOs ====================

// ProvisionRequest is sent by the admin dashboard to fulfil a paid order
type ProvisionRequest struct {
	OrderID int64 `json:"order_id" binding:"required"`
}

// ProvisionResponse is returned after a successful (or already completed) fulfillment
type ProvisionResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Server  *ServerInfo `json:"server,omitempty"`
}

// Credential delivery modes reported for a provisioned server. The service
// never returns or stores a panel password.
const (
	// CredentialDeliveryPasswordSetup means a new panel account was created and
	// the panel itself emails the customer a link to set the password.
	CredentialDeliveryPasswordSetup = "panel_password_setup"
	// CredentialDeliveryExistingAccount means the server was attached to an
	// account the customer already owns.
	CredentialDeliveryExistingAccount = "existing_account"
)

// ServerInfo summarises the created panel server
type ServerInfo struct {
	UUID               string `json:"uuid"`
	Identifier         string `json:"identifier,omitempty"`
	Name               string `json:"name"`
	IP                 string `json:"ip"`
	Port               int    `json:"port"`
	PanelUserID        int    `json:"panel_user_id"`
	CredentialDelivery string `json:"credential_delivery"`
}

// ==================== Notification DTOs ====================

// NotificationOrder is an order record pushed by the database webhook.
// It is relayed as-is and never re-fetched.
type NotificationOrder struct {
	ID                  int64   `json:"id"`
	Username            string  `json:"username"`
	ProductName         string  `json:"product_name"`
	PaymentMethod       string  `json:"payment_method"`
	ContactEmail        string  `json:"contact_email"`
	Status              string  `json:"status"`
	ProductCategory     string  `json:"product_category"`
	PterodactylServerID *string `json:"pterodactyl_server_id,omitempty"`
	PaymentProof        *string `json:"payment_proof,omitempty"`
}

// BroadcastRequest is the batch accepted by the notification endpoint
type BroadcastRequest struct {
	Orders []NotificationOrder `json:"orders" binding:"required"`
}

// BroadcastResponse reports how many records were relayed
type BroadcastResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Sent    int    `json:"sent"`
	Failed  int    `json:"failed"`
}
