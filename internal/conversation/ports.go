package conversation

import (
	"context"
	"time"

	"tradesdesk_backend/internal/slots"
	"tradesdesk_backend/internal/tenant"

	"github.com/google/uuid"
)

// TenantResolver returns the tenant an event belongs to.
type TenantResolver interface {
	ByID(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error)
}

// Store persists customers, conversations and jobs. Lookups that find
// nothing return an apperr NotFound error.
type Store interface {
	UpsertCustomer(ctx context.Context, tenantID uuid.UUID, phone string) (*Customer, error)
	// ActiveConversation returns the customer's most recent conversation
	// that is not DONE.
	ActiveConversation(ctx context.Context, tenantID, customerID uuid.UUID) (*Conversation, error)
	// StartConversation closes previous (when non-nil) and opens a new
	// conversation in MENU, atomically.
	StartConversation(ctx context.Context, tenantID, customerID uuid.UUID, previous *Conversation) (*Conversation, error)
	// SaveConversation writes state, attributes and history if the stored
	// version still matches c.Version, then bumps c.Version. A stale version
	// is an apperr Conflict.
	SaveConversation(ctx context.Context, c *Conversation) error
	// MarkHandedOff freezes the conversation in HANDOFF.
	MarkHandedOff(ctx context.Context, conversationID uuid.UUID) error

	CreateJob(ctx context.Context, job *Job) error
	ConfirmJob(ctx context.Context, tenantID, jobID uuid.UUID) error
	// JobExists reports an apperr NotFound error when the tenant has no such job.
	JobExists(ctx context.Context, tenantID, jobID uuid.UUID) error
	ScheduleJob(ctx context.Context, tenantID, jobID uuid.UUID, s Schedule) error
}

// Messenger delivers messages over the tenant's channel.
type Messenger interface {
	Send(ctx context.Context, t *tenant.Tenant, to string, msg Outbound) error
}

// Completer produces one assistant reply for a system prompt and history.
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, history []Turn) (string, error)
}

// CalendarEvent is an appointment to write to the tenant's calendar.
type CalendarEvent struct {
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
}

// BookedEvent identifies a created calendar event.
type BookedEvent struct {
	ID   string
	Link string
}

// Calendar reads availability from and writes appointments to the tenant's
// calendar.
type Calendar interface {
	BusyIntervals(ctx context.Context, t *tenant.Tenant, from, to time.Time) ([]slots.Interval, error)
	CreateEvent(ctx context.Context, t *tenant.Tenant, ev CalendarEvent) (BookedEvent, error)
}

// ReminderScheduler arranges a reminder ahead of a booked appointment.
type ReminderScheduler interface {
	ScheduleBookingReminder(ctx context.Context, tenantID, jobID uuid.UUID, appointment time.Time) error
}
