// Package conversation is the booking assistant's core: the per-customer
// state machine that turns inbound chat events into replies, jobs, calendar
// bookings and human handoffs.
package conversation

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Customer is a chat counterpart of one tenant, keyed by channel address.
type Customer struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Phone     string
	Name      string
	CreatedAt time.Time
}

// Role of a chat history turn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message of the free-form AI history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation is one session between a customer and the assistant.
type Conversation struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	CustomerID uuid.UUID
	State      State
	Attributes Attributes
	History    []Turn
	HandedOff  bool
	Version    int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// consistent reports whether the stored attributes belong to the state.
func (c *Conversation) consistent() bool {
	return c.Attributes != nil && c.Attributes.State() == c.State
}

// moveTo replaces state and attributes together.
func (c *Conversation) moveTo(attrs Attributes) {
	c.State = attrs.State()
	c.Attributes = attrs
}

// JobStatus is the lifecycle of a job. It only moves forward.
type JobStatus string

const (
	JobPending   JobStatus = "PENDING"
	JobConfirmed JobStatus = "CONFIRMED"
	JobDone      JobStatus = "DONE"
)

func (s JobStatus) rank() int {
	switch s {
	case JobPending:
		return 1
	case JobConfirmed:
		return 2
	case JobDone:
		return 3
	}
	return 0
}

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool { return s.rank() > 0 }

// CanAdvanceTo reports whether moving from s to next keeps the lifecycle
// monotonic. Staying put is allowed.
func (s JobStatus) CanAdvanceTo(next JobStatus) bool {
	return next.Valid() && s.Valid() && next.rank() >= s.rank()
}

// Job is a service request created from a completed intake.
type Job struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	CustomerID      uuid.UUID
	ServiceType     string
	Description     string
	Address         string
	Urgent          bool
	QuoteMin        int
	QuoteMax        int
	Status          JobStatus
	ScheduledAt     *time.Time
	CalendarEventID string
	CalendarLink    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Schedule is the appointment attached to a job.
type Schedule struct {
	At              time.Time
	CalendarEventID string
	CalendarLink    string
}

// InboundEvent is one customer message after channel decoding.
type InboundEvent struct {
	EventID    string
	TenantID   uuid.UUID
	From       string
	Text       string
	ReceivedAt time.Time
}

// Key identifies the conversation the event belongs to for serialization.
func (e InboundEvent) Key() string {
	return e.TenantID.String() + ":" + e.From
}

// OutboundKind selects how a message is rendered by the channel.
type OutboundKind int

const (
	KindText OutboundKind = iota
	KindButtons
	KindList
)

// Option is a button or list row. ID is the token echoed back on selection.
type Option struct {
	ID          string
	Title       string
	Description string
}

// Outbound is a message to a customer or the owner.
type Outbound struct {
	Kind    OutboundKind
	Body    string
	Label   string
	Options []Option
}

func Text(body string) Outbound {
	return Outbound{Kind: KindText, Body: body}
}

func Buttons(body string, options ...Option) Outbound {
	return Outbound{Kind: KindButtons, Body: body, Options: options}
}

func List(body, label string, options ...Option) Outbound {
	return Outbound{Kind: KindList, Body: body, Label: label, Options: options}
}

var greetings = map[string]struct{}{
	"hi": {}, "hello": {}, "hey": {}, "start": {}, "menu": {}, "hola": {}, "bonjour": {},
}

// IsGreeting reports whether text restarts the conversation.
func IsGreeting(text string) bool {
	_, ok := greetings[strings.ToLower(strings.TrimSpace(text))]
	return ok
}
