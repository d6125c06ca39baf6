// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"tradesdesk_backend/platform/events"
	"tradesdesk_backend/platform/logger"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Identified  = events.Identified
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// NewInMemoryBus creates the process-local bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return events.NewInMemoryBus(log)
}

// =============================================================================
// Job Domain Events
// =============================================================================

// JobCreated is published when an intake produces a PENDING job.
type JobCreated struct {
	BaseEvent
	TenantID    uuid.UUID `json:"tenantId"`
	JobID       uuid.UUID `json:"jobId"`
	CustomerID  uuid.UUID `json:"customerId"`
	ServiceType string    `json:"serviceType"`
	Urgent      bool      `json:"urgent"`
	QuoteMin    int       `json:"quoteMin"`
	QuoteMax    int       `json:"quoteMax"`
}

func (e JobCreated) EventName() string { return "jobs.job.created" }

// JobConfirmed is published when the customer accepts the summary.
type JobConfirmed struct {
	BaseEvent
	TenantID uuid.UUID `json:"tenantId"`
	JobID    uuid.UUID `json:"jobId"`
}

func (e JobConfirmed) EventName() string { return "jobs.job.confirmed" }

// JobScheduled is published when the customer picks an appointment slot.
type JobScheduled struct {
	BaseEvent
	TenantID        uuid.UUID `json:"tenantId"`
	JobID           uuid.UUID `json:"jobId"`
	ScheduledAt     time.Time `json:"scheduledAt"`
	CalendarEventID string    `json:"calendarEventId,omitempty"`
}

func (e JobScheduled) EventName() string { return "jobs.job.scheduled" }

// JobStatusChanged is published when the owner moves a job on the dashboard.
type JobStatusChanged struct {
	BaseEvent
	TenantID  uuid.UUID `json:"tenantId"`
	JobID     uuid.UUID `json:"jobId"`
	OldStatus string    `json:"oldStatus"`
	NewStatus string    `json:"newStatus"`
}

func (e JobStatusChanged) EventName() string { return "jobs.job.status_changed" }

// =============================================================================
// Conversation Domain Events
// =============================================================================

// ConversationHandedOff is published when a human takes over a conversation.
type ConversationHandedOff struct {
	BaseEvent
	TenantID       uuid.UUID `json:"tenantId"`
	ConversationID uuid.UUID `json:"conversationId"`
	CustomerPhone  string    `json:"customerPhone"`
	Reason         string    `json:"reason"`
}

func (e ConversationHandedOff) EventName() string { return "conversations.handed_off" }

// ConversationReleased is published when the owner hands a conversation back.
type ConversationReleased struct {
	BaseEvent
	TenantID       uuid.UUID `json:"tenantId"`
	ConversationID uuid.UUID `json:"conversationId"`
}

func (e ConversationReleased) EventName() string { return "conversations.released" }

// =============================================================================
// Tenant Domain Events
// =============================================================================

// TenantRegistered is published after a business signs up.
type TenantRegistered struct {
	BaseEvent
	TenantID uuid.UUID `json:"tenantId"`
	Slug     string    `json:"slug"`
}

func (e TenantRegistered) EventName() string { return "tenants.registered" }

// TenantUpdated is published after settings change.
type TenantUpdated struct {
	BaseEvent
	TenantID uuid.UUID `json:"tenantId"`
}

func (e TenantUpdated) EventName() string { return "tenants.updated" }
