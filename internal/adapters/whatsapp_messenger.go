package adapters

import (
	"context"

	"tradesdesk_backend/internal/conversation"
	"tradesdesk_backend/internal/tenant"
	"tradesdesk_backend/internal/whatsapp"
)

// WhatsAppSender is the narrow interface of the Cloud API client used for
// outbound messages.
type WhatsAppSender interface {
	SendText(ctx context.Context, acct whatsapp.Account, to, body string) error
	SendButtons(ctx context.Context, acct whatsapp.Account, to, body string, buttons []whatsapp.Button) error
	SendList(ctx context.Context, acct whatsapp.Account, to, body, label string, rows []whatsapp.Row) error
}

// WhatsAppMessenger implements conversation.Messenger over the tenant's
// WhatsApp business number.
type WhatsAppMessenger struct {
	client WhatsAppSender
}

// NewWhatsAppMessenger creates a new adapter.
func NewWhatsAppMessenger(client WhatsAppSender) *WhatsAppMessenger {
	return &WhatsAppMessenger{client: client}
}

// AccountFor returns the sending identity of a tenant.
func AccountFor(t *tenant.Tenant) whatsapp.Account {
	return whatsapp.Account{PhoneNumberID: t.WhatsAppPhoneNumberID, AccessToken: t.WhatsAppToken}
}

// Send renders msg in the matching WhatsApp message type.
func (m *WhatsAppMessenger) Send(ctx context.Context, t *tenant.Tenant, to string, msg conversation.Outbound) error {
	acct := AccountFor(t)
	switch msg.Kind {
	case conversation.KindButtons:
		buttons := make([]whatsapp.Button, 0, len(msg.Options))
		for _, o := range msg.Options {
			buttons = append(buttons, whatsapp.Button{ID: o.ID, Title: o.Title})
		}
		return m.client.SendButtons(ctx, acct, to, msg.Body, buttons)
	case conversation.KindList:
		rows := make([]whatsapp.Row, 0, len(msg.Options))
		for _, o := range msg.Options {
			rows = append(rows, whatsapp.Row{ID: o.ID, Title: o.Title, Description: o.Description})
		}
		return m.client.SendList(ctx, acct, to, msg.Body, msg.Label, rows)
	default:
		return m.client.SendText(ctx, acct, to, msg.Body)
	}
}

// Compile-time check.
var _ conversation.Messenger = (*WhatsAppMessenger)(nil)
