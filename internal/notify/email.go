package notify

import (
	"fmt"
	"strings"
)

// CompletionEmail renders the subject and HTML body sent to the customer once
// their server exists.
func CompletionEmail(s ProvisionedServer) (subject, body string) {
	subject = fmt.Sprintf("Your server is ready - Order #%d", s.OrderID)

	var b strings.Builder
	b.WriteString(`<div style="font-family:Arial,sans-serif;max-width:560px;margin:0 auto">`)
	fmt.Fprintf(&b, `<h2>Hi %s, your server is ready!</h2>`, Escape(s.Username))
	fmt.Fprintf(&b, `<p>Thank you for your order <b>#%d</b> (%s). Your server has been created and is starting up.</p>`,
		s.OrderID, Escape(s.ProductName))

	b.WriteString(`<table style="border-collapse:collapse">`)
	row(&b, "Server", s.ServerName)
	row(&b, "Address", s.Address())
	row(&b, "Panel", s.PanelURL)
	row(&b, "Login email", s.Email)
	b.WriteString(`</table>`)

	if s.NewAccount {
		b.WriteString(`<p>A new panel account was created for you. The panel will send a separate email with a link to set your password.</p>`)
	} else {
		b.WriteString(`<p>The server was added to your existing panel account. Log in with your current password.</p>`)
	}

	fmt.Fprintf(&b, `<p><a href="%s">Open the panel</a></p>`, Escape(s.PanelURL))
	b.WriteString(`</div>`)

	return subject, b.String()
}

func row(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, `<tr><td style="padding:4px 12px 4px 0"><b>%s</b></td><td>%s</td></tr>`, label, Escape(value))
}
