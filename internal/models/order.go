package models

import "time"

// OrderStatus is the order lifecycle state stored in orders.status.
type OrderStatus string

const (
	OrderStatusPending             OrderStatus = "pending"
	OrderStatusWaitingConfirmation OrderStatus = "waiting_confirmation"
	OrderStatusProcessing          OrderStatus = "processing"
	OrderStatusDone                OrderStatus = "done"
	OrderStatusCancelled           OrderStatus = "cancelled"
	OrderStatusRejected            OrderStatus = "rejected"
)

// Known reports whether s is one of the declared statuses. Unknown values
// still load from the store; they only lose template specialisation.
func (s OrderStatus) Known() bool {
	switch s {
	case OrderStatusPending, OrderStatusWaitingConfirmation, OrderStatusProcessing,
		OrderStatusDone, OrderStatusCancelled, OrderStatusRejected:
		return true
	}
	return false
}

// CategoryPanelPterodactyl marks products that are fulfilled on the panel.
const CategoryPanelPterodactyl = "panel_pterodactyl"

// Order represents a storefront order row
type Order struct {
	ID                  int64
	UserID              *string
	ProductID           int64
	ContactEmail        string
	Username            string
	Status              OrderStatus
	PaymentMethod       string
	PaymentProof        *string
	PterodactylServerID *string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Provisioned reports whether a panel server is already linked to the order.
func (o *Order) Provisioned() bool {
	return o.PterodactylServerID != nil && *o.PterodactylServerID != ""
}

// Product is the purchasable item referenced by an order
type Product struct {
	ID                  int64
	Name                string
	Category            string
	PterodactylConfigID *int64
}

// PanelConfig holds resource limits and placement for servers created from a product.
type PanelConfig struct {
	ID          int64
	Memory      int
	CPU         int
	Disk        int
	Swap        int
	IO          int
	LocationID  int
	EggID       int
	NestID      int
	Databases   *int
	Allocations *int
	Backups     *int
	Startup     *string
	DockerImage *string
	Environment map[string]any
}

// OrderDetail is an order joined with its product and resolved panel config.
type OrderDetail struct {
	Order   Order
	Product Product
	Config  *PanelConfig
}

// Settings is the singleton settings row holding panel credentials.
type Settings struct {
	PanelURL    string
	PanelAPIKey string
}

// PanelCredentialsSet reports whether both the panel URL and API key are present.
func (s *Settings) PanelCredentialsSet() bool {
	return s != nil && s.PanelURL != "" && s.PanelAPIKey != ""
}
