package conversation

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// State is the position of a conversation in the booking flow.
type State string

const (
	StateMenu          State = "MENU"
	StateServiceSelect State = "SERVICE_SELECT"
	StateIntake        State = "INTAKE"
	StateConfirm       State = "CONFIRM"
	StateSlotSelect    State = "SLOT_SELECT"
	StateAIChat        State = "AI_CHAT"
	StateDone          State = "DONE"
	StateHandoff       State = "HANDOFF"
)

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StateMenu, StateServiceSelect, StateIntake, StateConfirm,
		StateSlotSelect, StateAIChat, StateDone, StateHandoff:
		return true
	}
	return false
}

// Attributes is the data a conversation carries in its current state. Each
// state has exactly one variant, so a conversation can only hold fields
// that are meaningful where it is.
type Attributes interface {
	State() State
	sealed()
}

type MenuAttrs struct{}

type ServiceSelectAttrs struct{}

// IntakeStep is the question being asked during intake.
type IntakeStep int

const (
	StepDescription IntakeStep = 0
	StepAddress     IntakeStep = 1
	StepUrgency     IntakeStep = 2
)

type IntakeAttrs struct {
	ServiceID   string     `json:"serviceId"`
	ServiceType string     `json:"serviceType"`
	Step        IntakeStep `json:"intakeStep"`
	Description string     `json:"description,omitempty"`
	Address     string     `json:"address,omitempty"`
}

// Booking is the completed intake together with the job it created.
type Booking struct {
	ServiceID   string    `json:"serviceId"`
	ServiceType string    `json:"serviceType"`
	Description string    `json:"description"`
	Address     string    `json:"address"`
	Urgent      bool      `json:"urgent"`
	JobID       uuid.UUID `json:"jobId"`
	QuoteMin    int       `json:"quoteMin"`
	QuoteMax    int       `json:"quoteMax"`
}

type ConfirmAttrs struct {
	Booking
}

type SlotSelectAttrs struct {
	Booking
	Slots []time.Time `json:"availableSlots"`
}

// ChatAttrs remembers the job booked before free-form chat, if any.
type ChatAttrs struct {
	JobID *uuid.UUID `json:"jobId,omitempty"`
}

type DoneAttrs struct{}

type HandoffAttrs struct{}

func (MenuAttrs) State() State          { return StateMenu }
func (ServiceSelectAttrs) State() State { return StateServiceSelect }
func (IntakeAttrs) State() State        { return StateIntake }
func (ConfirmAttrs) State() State       { return StateConfirm }
func (SlotSelectAttrs) State() State    { return StateSlotSelect }
func (ChatAttrs) State() State          { return StateAIChat }
func (DoneAttrs) State() State          { return StateDone }
func (HandoffAttrs) State() State       { return StateHandoff }

func (MenuAttrs) sealed()          {}
func (ServiceSelectAttrs) sealed() {}
func (IntakeAttrs) sealed()        {}
func (ConfirmAttrs) sealed()       {}
func (SlotSelectAttrs) sealed()    {}
func (ChatAttrs) sealed()          {}
func (DoneAttrs) sealed()          {}
func (HandoffAttrs) sealed()       {}

// EncodeAttributes serialises attrs for storage.
func EncodeAttributes(attrs Attributes) ([]byte, error) {
	if attrs == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(attrs)
}

// DecodeAttributes restores the variant belonging to state.
func DecodeAttributes(state State, raw []byte) (Attributes, error) {
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	switch state {
	case StateMenu:
		return MenuAttrs{}, nil
	case StateServiceSelect:
		return ServiceSelectAttrs{}, nil
	case StateDone:
		return DoneAttrs{}, nil
	case StateHandoff:
		return HandoffAttrs{}, nil
	case StateIntake:
		var a IntakeAttrs
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("decode intake attributes: %w", err)
		}
		if a.Step < StepDescription || a.Step > StepUrgency || a.ServiceType == "" {
			return nil, fmt.Errorf("decode intake attributes: invalid step %d or missing service", a.Step)
		}
		return a, nil
	case StateConfirm:
		var a ConfirmAttrs
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("decode confirm attributes: %w", err)
		}
		if a.JobID == uuid.Nil {
			return nil, fmt.Errorf("decode confirm attributes: missing job id")
		}
		return a, nil
	case StateSlotSelect:
		var a SlotSelectAttrs
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("decode slot attributes: %w", err)
		}
		if a.JobID == uuid.Nil || len(a.Slots) == 0 {
			return nil, fmt.Errorf("decode slot attributes: missing job id or slots")
		}
		return a, nil
	case StateAIChat:
		var a ChatAttrs
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("decode chat attributes: %w", err)
		}
		return a, nil
	}
	return nil, fmt.Errorf("unknown conversation state %q", state)
}
