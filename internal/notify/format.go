// Package notify renders Telegram admin messages and customer emails.
// Every value interpolated into markup goes through Escape.
package notify

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/wenwu/saas-platform/panel-fulfillment-service/internal/models"
)

// PanelURLPlaceholder is shown when the settings row has no panel URL.
const PanelURLPlaceholder = "(panel URL not configured)"

// AllocationPlaceholder stands in for a server address the panel has not assigned yet.
const AllocationPlaceholder = "N/A"

// Template identifies which admin message layout an order gets.
type Template int

const (
	TemplateStatusUpdate Template = iota
	TemplateNewOrder
	TemplateProvisioned
)

func (t Template) String() string {
	switch t {
	case TemplateNewOrder:
		return "new_order"
	case TemplateProvisioned:
		return "provisioned"
	default:
		return "status_update"
	}
}

// Escape HTML-escapes & < > " and '.
func Escape(s string) string {
	return html.EscapeString(s)
}

// SelectTemplate picks the layout from status and product category only.
func SelectTemplate(status, category string) Template {
	switch {
	case status == string(models.OrderStatusWaitingConfirmation):
		return TemplateNewOrder
	case status == string(models.OrderStatusDone) && category == models.CategoryPanelPterodactyl:
		return TemplateProvisioned
	default:
		return TemplateStatusUpdate
	}
}

// FormatOrder renders the admin message for one broadcast record.
func FormatOrder(o models.NotificationOrder, panelURL string) string {
	var b strings.Builder

	switch SelectTemplate(o.Status, o.ProductCategory) {
	case TemplateNewOrder:
		fmt.Fprintf(&b, "🛒 <b>New Order #%d</b>\n\n", o.ID)
		writeOrderFields(&b, o)
		b.WriteString("\nPlease verify the payment and confirm the order.")
	case TemplateProvisioned:
		fmt.Fprintf(&b, "✅ <b>Order #%d Provisioned</b>\n\n", o.ID)
		writeOrderFields(&b, o)
		fmt.Fprintf(&b, "🖥 <b>Server ID:</b> <code>%s</code>\n", Escape(deref(o.PterodactylServerID, "-")))
		fmt.Fprintf(&b, "🔗 <b>Panel:</b> %s", Escape(panelURL))
	default:
		fmt.Fprintf(&b, "ℹ️ <b>Order #%d Status Update</b>\n\n", o.ID)
		writeOrderFields(&b, o)
	}

	return b.String()
}

func writeOrderFields(b *strings.Builder, o models.NotificationOrder) {
	fmt.Fprintf(b, "👤 <b>User:</b> %s\n", Escape(o.Username))
	fmt.Fprintf(b, "📦 <b>Product:</b> %s\n", Escape(o.ProductName))
	fmt.Fprintf(b, "💳 <b>Payment:</b> %s\n", Escape(o.PaymentMethod))
	fmt.Fprintf(b, "📧 <b>Email:</b> %s\n", Escape(o.ContactEmail))
	fmt.Fprintf(b, "📌 <b>Status:</b> %s\n", Escape(o.Status))
}

// ProvisionedServer is what the fulfillment flow knows about a fresh server.
type ProvisionedServer struct {
	OrderID     int64
	Username    string
	Email       string
	ProductName string
	ServerName  string
	ServerUUID  string
	IP          string
	Port        int
	PanelURL    string
	NewAccount  bool
}

// Address renders ip:port, or the placeholder when no allocation exists.
func (s ProvisionedServer) Address() string {
	if s.IP == "" || s.IP == AllocationPlaceholder || s.Port == 0 {
		return AllocationPlaceholder
	}
	return s.IP + ":" + strconv.Itoa(s.Port)
}

// FormatFulfillmentAdmin renders the admin message sent right after provisioning.
func FormatFulfillmentAdmin(s ProvisionedServer) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ <b>Server created for order #%d</b>\n\n", s.OrderID)
	fmt.Fprintf(&b, "👤 <b>User:</b> %s\n", Escape(s.Username))
	fmt.Fprintf(&b, "📧 <b>Email:</b> %s\n", Escape(s.Email))
	fmt.Fprintf(&b, "📦 <b>Product:</b> %s\n", Escape(s.ProductName))
	fmt.Fprintf(&b, "🖥 <b>Server:</b> %s (<code>%s</code>)\n", Escape(s.ServerName), Escape(s.ServerUUID))
	fmt.Fprintf(&b, "🌐 <b>Address:</b> <code>%s</code>\n", Escape(s.Address()))
	if s.NewAccount {
		b.WriteString("🆕 New panel account created\n")
	}
	fmt.Fprintf(&b, "🔗 <b>Panel:</b> %s", Escape(s.PanelURL))
	return b.String()
}

func deref(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}
