package conversation

import (
	"context"
	"fmt"
	"log/slog"

	"tradesdesk_backend/internal/events"
	"tradesdesk_backend/internal/tenant"
	"tradesdesk_backend/platform/logger"
)

// Handoff reasons recorded on the owner alert.
const (
	ReasonCustomerRequest = "Customer requested human agent"
	ReasonAssistant       = "assistant suggested escalation"
)

// HandoffController freezes a conversation for a human and notifies both
// the customer and the business owner.
type HandoffController struct {
	store     Store
	messenger Messenger
	bus       events.Bus
	log       *logger.Logger
}

// NewHandoffController creates a controller.
func NewHandoffController(store Store, messenger Messenger, bus events.Bus, log *logger.Logger) *HandoffController {
	return &HandoffController{store: store, messenger: messenger, bus: bus, log: log}
}

// Initiate marks the conversation as human-owned, then tells the customer
// and alerts the owner. Notification failures are logged; only the state
// change can fail the call.
func (h *HandoffController) Initiate(ctx context.Context, t *tenant.Tenant, conv *Conversation, customerPhone, reason string) error {
	if err := h.store.MarkHandedOff(ctx, conv.ID); err != nil {
		return fmt.Errorf("mark conversation handed off: %w", err)
	}
	conv.moveTo(HandoffAttrs{})
	conv.HandedOff = true

	if err := h.messenger.Send(ctx, t, customerPhone, Text(msgHandoffCustomer)); err != nil {
		h.log.ExternalFailure("messenger", "handoff_customer_notice", err)
	}

	if t.OwnerPhone == "" {
		h.log.Warn("handoff without owner phone", slog.String("tenant_id", t.ID.String()))
	} else if err := h.messenger.Send(ctx, t, t.OwnerPhone, handoffAlert(customerPhone, reason)); err != nil {
		h.log.ExternalFailure("messenger", "handoff_owner_alert", err)
	}

	h.bus.Publish(ctx, events.ConversationHandedOff{
		BaseEvent:      events.NewBaseEvent(),
		TenantID:       t.ID,
		ConversationID: conv.ID,
		CustomerPhone:  customerPhone,
		Reason:         reason,
	})
	return nil
}
