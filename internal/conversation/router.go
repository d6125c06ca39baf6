package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"tradesdesk_backend/internal/events"
	"tradesdesk_backend/internal/faq"
	"tradesdesk_backend/internal/slots"
	"tradesdesk_backend/internal/tenant"
	"tradesdesk_backend/platform/apperr"
	"tradesdesk_backend/platform/logger"
	"tradesdesk_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	defaultAITimeout       = 20 * time.Second
	defaultCalendarTimeout = 10 * time.Second
	maxFreeTextRunes       = 1000
)

var slotTokenPattern = regexp.MustCompile(`^slot_(\d+)$`)

// Deps are the collaborators of the Router.
type Deps struct {
	Tenants   TenantResolver
	Store     Store
	Messenger Messenger
	Completer Completer
	Calendar  Calendar
	Reminders ReminderScheduler
	Bus       events.Bus
	Log       *logger.Logger

	AITimeout       time.Duration
	CalendarTimeout time.Duration
	Now             func() time.Time
}

// Router is the conversation state machine. Handle must not run twice at
// the same time for the same conversation; the Dispatcher guarantees that.
type Router struct {
	tenants   TenantResolver
	store     Store
	messenger Messenger
	completer Completer
	calendar  Calendar
	reminders ReminderScheduler
	bus       events.Bus
	log       *logger.Logger
	handoff   *HandoffController

	aiTimeout       time.Duration
	calendarTimeout time.Duration
	now             func() time.Time
}

// NewRouter wires a Router. Calendar and Reminders may be nil.
func NewRouter(d Deps) *Router {
	r := &Router{
		tenants:         d.Tenants,
		store:           d.Store,
		messenger:       d.Messenger,
		completer:       d.Completer,
		calendar:        d.Calendar,
		reminders:       d.Reminders,
		bus:             d.Bus,
		log:             d.Log,
		aiTimeout:       d.AITimeout,
		calendarTimeout: d.CalendarTimeout,
		now:             d.Now,
	}
	if r.aiTimeout <= 0 {
		r.aiTimeout = defaultAITimeout
	}
	if r.calendarTimeout <= 0 {
		r.calendarTimeout = defaultCalendarTimeout
	}
	if r.now == nil {
		r.now = time.Now
	}
	r.handoff = NewHandoffController(d.Store, d.Messenger, d.Bus, d.Log)
	return r
}

// turn is the working set for one inbound event.
type turn struct {
	tenant   *tenant.Tenant
	customer *Customer
	conv     *Conversation
	from     string
	text     string
	log      *logger.Logger
}

// outcome is what a state handler decided: messages to send after the
// conversation is saved, and optionally a handoff to start afterwards.
type outcome struct {
	messages []Outbound
	handoff  string
}

func reply(msgs ...Outbound) outcome { return outcome{messages: msgs} }

// Handle processes one inbound event end to end: resolve the tenant, load
// or open the conversation, run the state handler, persist, then deliver.
func (r *Router) Handle(ctx context.Context, ev InboundEvent) error {
	log := r.log.WithTenant(ev.TenantID.String())

	t, err := r.tenants.ByID(ctx, ev.TenantID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			log.Warn("dropping event for unknown tenant", slog.String("event_id", ev.EventID))
			return nil
		}
		return fmt.Errorf("resolve tenant: %w", err)
	}
	if !t.Active {
		log.Warn("dropping event for inactive tenant", slog.String("event_id", ev.EventID))
		return nil
	}

	text := strings.TrimSpace(ev.Text)
	if text == "" || ev.From == "" {
		log.Warn("dropping event without sender or content", slog.String("event_id", ev.EventID))
		return nil
	}

	customer, err := r.store.UpsertCustomer(ctx, t.ID, ev.From)
	if err != nil {
		return fmt.Errorf("upsert customer: %w", err)
	}

	conv, err := r.store.ActiveConversation(ctx, t.ID, customer.ID)
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return fmt.Errorf("load conversation: %w", err)
	}
	if err != nil {
		conv = nil
	}

	if conv != nil && conv.State == StateHandoff {
		log.Debug("conversation is with a human, ignoring", slog.String("conversation_id", conv.ID.String()))
		return nil
	}

	if conv == nil || IsGreeting(text) {
		if _, err := r.store.StartConversation(ctx, t.ID, customer.ID, conv); err != nil {
			return fmt.Errorf("start conversation: %w", err)
		}
		r.deliver(ctx, t, ev.From, welcomeMenu())
		return nil
	}

	log = log.WithConversation(conv.ID.String())
	tr := &turn{tenant: t, customer: customer, conv: conv, from: ev.From, text: text, log: log}

	if !conv.consistent() {
		log.Warn("conversation attributes do not match state, resetting to menu", slog.String("state", string(conv.State)))
		conv.moveTo(MenuAttrs{})
		if err := r.store.SaveConversation(ctx, conv); err != nil {
			return fmt.Errorf("reset conversation: %w", err)
		}
		r.deliver(ctx, t, ev.From, welcomeMenu())
		return nil
	}

	out, err := r.step(ctx, tr)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			log.Warn("dropping event for missing record", slog.String("event_id", ev.EventID), slog.String("error", err.Error()))
			return nil
		}
		r.deliver(ctx, t, ev.From, Text(msgInternalError))
		return err
	}

	if err := r.store.SaveConversation(ctx, conv); err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			log.Warn("conversation changed concurrently, dropping event", slog.String("event_id", ev.EventID))
			return nil
		}
		r.deliver(ctx, t, ev.From, Text(msgInternalError))
		return fmt.Errorf("save conversation: %w", err)
	}

	r.deliver(ctx, t, ev.From, out.messages...)

	if out.handoff != "" {
		if err := r.handoff.Initiate(ctx, t, conv, ev.From, out.handoff); err != nil {
			return err
		}
	}
	return nil
}

func (r *Router) step(ctx context.Context, tr *turn) (outcome, error) {
	switch attrs := tr.conv.Attributes.(type) {
	case MenuAttrs:
		return r.onMenu(tr), nil
	case ServiceSelectAttrs:
		return r.onServiceSelect(tr), nil
	case IntakeAttrs:
		return r.onIntake(ctx, tr, attrs)
	case ConfirmAttrs:
		return r.onConfirm(ctx, tr, attrs)
	case SlotSelectAttrs:
		return r.onSlotSelect(ctx, tr, attrs)
	case ChatAttrs:
		return r.onChat(ctx, tr), nil
	default:
		return reply(welcomeMenu()), nil
	}
}

func (r *Router) onMenu(tr *turn) outcome {
	switch {
	case tr.text == TokenMenuRequest || tr.text == TokenMenuQuote:
		tr.conv.moveTo(ServiceSelectAttrs{})
		return reply(serviceMenu())
	case tr.text == TokenMenuFAQ:
		return reply(faqMenu())
	case faq.IsTopic(tr.text):
		if answer, ok := faq.TopicAnswer(tr.text); ok {
			return reply(Text(answer))
		}
		return reply(welcomeMenu())
	case tr.text == TokenMenuHuman:
		return outcome{handoff: ReasonCustomerRequest}
	}
	return reply(welcomeMenu())
}

func (r *Router) onServiceSelect(tr *turn) outcome {
	svc, ok := LookupService(tr.text)
	if !ok {
		return reply(serviceMenu())
	}
	tr.conv.moveTo(IntakeAttrs{ServiceID: svc.ID, ServiceType: svc.Title, Step: StepDescription})
	return reply(intakeQuestion(StepDescription, svc.Title))
}

func (r *Router) onIntake(ctx context.Context, tr *turn, a IntakeAttrs) (outcome, error) {
	switch a.Step {
	case StepDescription:
		description := sanitize.Text(tr.text, maxFreeTextRunes)
		if description == "" {
			return reply(intakeQuestion(StepDescription, a.ServiceType)), nil
		}
		a.Description = description
		a.Step = StepAddress
		tr.conv.moveTo(a)
		return reply(intakeQuestion(StepAddress, a.ServiceType)), nil

	case StepAddress:
		address := sanitize.Text(tr.text, maxFreeTextRunes)
		if address == "" {
			return reply(intakeQuestion(StepAddress, a.ServiceType)), nil
		}
		a.Address = address
		a.Step = StepUrgency
		tr.conv.moveTo(a)
		return reply(intakeQuestion(StepUrgency, a.ServiceType)), nil
	}

	var urgent bool
	switch tr.text {
	case TokenUrgentYes:
		urgent = true
	case TokenUrgentNo:
	default:
		return reply(intakeQuestion(StepUrgency, a.ServiceType)), nil
	}

	r.deliver(ctx, tr.tenant, tr.from, Text(msgGeneratingQuote))
	quote := r.estimate(ctx, tr, a.ServiceType, a.Description, urgent)

	job := &Job{
		ID:          uuid.New(),
		TenantID:    tr.tenant.ID,
		CustomerID:  tr.customer.ID,
		ServiceType: a.ServiceType,
		Description: a.Description,
		Address:     a.Address,
		Urgent:      urgent,
		QuoteMin:    quote.Min,
		QuoteMax:    quote.Max,
		Status:      JobPending,
	}
	if err := r.store.CreateJob(ctx, job); err != nil {
		return outcome{}, fmt.Errorf("create job: %w", err)
	}
	r.bus.Publish(ctx, events.JobCreated{
		BaseEvent:   events.NewBaseEvent(),
		TenantID:    job.TenantID,
		JobID:       job.ID,
		CustomerID:  job.CustomerID,
		ServiceType: job.ServiceType,
		Urgent:      job.Urgent,
		QuoteMin:    job.QuoteMin,
		QuoteMax:    job.QuoteMax,
	})

	booking := Booking{
		ServiceID:   a.ServiceID,
		ServiceType: a.ServiceType,
		Description: a.Description,
		Address:     a.Address,
		Urgent:      urgent,
		JobID:       job.ID,
		QuoteMin:    quote.Min,
		QuoteMax:    quote.Max,
	}
	tr.conv.moveTo(ConfirmAttrs{Booking: booking})
	return reply(jobSummary(booking)), nil
}

func (r *Router) onConfirm(ctx context.Context, tr *turn, a ConfirmAttrs) (outcome, error) {
	switch tr.text {
	case TokenConfirmNo:
		tr.conv.moveTo(DoneAttrs{})
		return reply(Text(msgCancelled)), nil
	case TokenConfirmYes:
	default:
		return reply(jobSummary(a.Booking)), nil
	}

	if err := r.store.ConfirmJob(ctx, tr.tenant.ID, a.JobID); err != nil {
		return outcome{}, fmt.Errorf("confirm job: %w", err)
	}
	r.bus.Publish(ctx, events.JobConfirmed{BaseEvent: events.NewBaseEvent(), TenantID: tr.tenant.ID, JobID: a.JobID})

	r.deliver(ctx, tr.tenant, tr.from, Text(msgCheckingSlots))
	now := r.now()
	candidates := r.findSlots(ctx, tr, a.Booking, now)
	if len(candidates) == 0 {
		jobID := a.JobID
		tr.conv.moveTo(ChatAttrs{JobID: &jobID})
		return reply(Text(msgNoSlots)), nil
	}

	tr.conv.moveTo(SlotSelectAttrs{Booking: a.Booking, Slots: candidates})
	return reply(slotPicker(candidates, now, tr.tenant.Location())), nil
}

func (r *Router) onSlotSelect(ctx context.Context, tr *turn, a SlotSelectAttrs) (outcome, error) {
	loc := tr.tenant.Location()
	m := slotTokenPattern.FindStringSubmatch(tr.text)
	if m == nil {
		return reply(slotPicker(a.Slots, r.now(), loc)), nil
	}
	index, err := strconv.Atoi(m[1])
	if err != nil || index < 0 || index >= len(a.Slots) {
		return reply(slotPicker(a.Slots, r.now(), loc)), nil
	}
	chosen := a.Slots[index]

	if err := r.store.JobExists(ctx, tr.tenant.ID, a.JobID); err != nil {
		return outcome{}, fmt.Errorf("load job: %w", err)
	}
	booked := r.createEvent(ctx, tr, a.Booking, chosen)
	schedule := Schedule{At: chosen, CalendarEventID: booked.ID, CalendarLink: booked.Link}
	if err := r.store.ScheduleJob(ctx, tr.tenant.ID, a.JobID, schedule); err != nil {
		return outcome{}, fmt.Errorf("schedule job: %w", err)
	}
	r.bus.Publish(ctx, events.JobScheduled{
		BaseEvent:       events.NewBaseEvent(),
		TenantID:        tr.tenant.ID,
		JobID:           a.JobID,
		ScheduledAt:     chosen,
		CalendarEventID: booked.ID,
	})

	if r.reminders != nil {
		if err := r.reminders.ScheduleBookingReminder(ctx, tr.tenant.ID, a.JobID, chosen); err != nil {
			tr.log.ExternalFailure("scheduler", "booking_reminder", err)
		}
	}

	jobID := a.JobID
	tr.conv.moveTo(ChatAttrs{JobID: &jobID})
	return reply(bookedMessage(chosen, a.Address, loc)), nil
}

func (r *Router) onChat(ctx context.Context, tr *turn) outcome {
	if answer, ok := faq.Match(tr.text); ok {
		return reply(Text(answer))
	}

	history := append(append([]Turn(nil), tr.conv.History...), Turn{Role: RoleUser, Content: tr.text})

	aiCtx, cancel := context.WithTimeout(ctx, r.aiTimeout)
	defer cancel()
	answer, err := r.completer.Complete(aiCtx, chatSystemPrompt(tr.tenant.Name), history)
	answer = strings.TrimSpace(answer)
	if err != nil || answer == "" {
		if err == nil {
			err = errors.New("empty reply")
		}
		tr.log.ExternalFailure("assistant", "chat", err)
		tr.conv.History = history
		return reply(Text(msgAIUnavailable))
	}

	tr.conv.History = append(history, Turn{Role: RoleAssistant, Content: answer})
	out := reply(Text(answer))
	if suggestsEscalation(answer) {
		out.handoff = ReasonAssistant
	}
	return out
}

// estimate asks the assistant for a price range, falling back to
// DefaultQuote on timeout, error or an unparseable reply.
func (r *Router) estimate(ctx context.Context, tr *turn, serviceType, description string, urgent bool) Quote {
	aiCtx, cancel := context.WithTimeout(ctx, r.aiTimeout)
	defer cancel()

	raw, err := r.completer.Complete(aiCtx, quoteSystemPrompt, []Turn{{Role: RoleUser, Content: quotePrompt(serviceType, description, urgent)}})
	if err != nil {
		tr.log.ExternalFailure("assistant", "quote", err)
		return DefaultQuote
	}
	q, ok := ParseQuote(raw)
	if !ok {
		tr.log.Warn("unparseable quote, using default", slog.String("reply", raw))
		return DefaultQuote
	}
	return q
}

// findSlots queries the calendar for the finder's window. Any calendar
// problem yields no candidates, which the caller treats as manual follow-up.
func (r *Router) findSlots(ctx context.Context, tr *turn, b Booking, now time.Time) []time.Time {
	if r.calendar == nil || !tr.tenant.CalendarConfigured() {
		return nil
	}
	req := slots.Request{
		Service: b.ServiceType,
		Urgent:  b.Urgent,
		Hours:   tr.tenant.BusinessHours.Policy(),
		Now:     now,
	}
	window := slots.Plan(req)

	calCtx, cancel := context.WithTimeout(ctx, r.calendarTimeout)
	defer cancel()
	busy, err := r.calendar.BusyIntervals(calCtx, tr.tenant, window.Start, window.End)
	if err != nil {
		tr.log.ExternalFailure("calendar", "busy_intervals", err)
		return nil
	}
	return slots.Find(req, busy)
}

// createEvent writes the appointment to the calendar. Failure leaves the
// booking without an event reference.
func (r *Router) createEvent(ctx context.Context, tr *turn, b Booking, start time.Time) BookedEvent {
	if r.calendar == nil || !tr.tenant.CalendarConfigured() {
		return BookedEvent{}
	}
	summary := b.ServiceType + " — " + tr.from
	if b.Urgent {
		summary = "[URGENT] " + summary
	}
	ev := CalendarEvent{
		Summary:     summary,
		Description: "Problem: " + b.Description + "\nCustomer: " + tr.from,
		Location:    b.Address,
		Start:       start,
		End:         start.Add(slots.Duration(b.ServiceType, b.Urgent)),
	}

	calCtx, cancel := context.WithTimeout(ctx, r.calendarTimeout)
	defer cancel()
	booked, err := r.calendar.CreateEvent(calCtx, tr.tenant, ev)
	if err != nil {
		tr.log.ExternalFailure("calendar", "create_event", err)
		return BookedEvent{}
	}
	return booked
}

// deliver sends messages in order. A failed send is logged and does not
// stop the rest.
func (r *Router) deliver(ctx context.Context, t *tenant.Tenant, to string, msgs ...Outbound) {
	for _, msg := range msgs {
		if err := r.messenger.Send(ctx, t, to, msg); err != nil {
			r.log.WithTenant(t.ID.String()).ExternalFailure("messenger", "send", err)
		}
	}
}
