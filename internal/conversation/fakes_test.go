package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"tradesdesk_backend/internal/events"
	"tradesdesk_backend/internal/slots"
	"tradesdesk_backend/internal/tenant"
	"tradesdesk_backend/platform/apperr"
	"tradesdesk_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeTenants struct {
	tenants map[uuid.UUID]*tenant.Tenant
}

func (f *fakeTenants) ByID(_ context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	t, ok := f.tenants[id]
	if !ok {
		return nil, apperr.NotFound("tenant not found")
	}
	cp := *t
	return &cp, nil
}

type fakeStore struct {
	mu            sync.Mutex
	customers     map[string]*Customer
	conversations []*Conversation
	jobs          map[uuid.UUID]*Job
	handedOff     []uuid.UUID
	failCreateJob error
	saves         int
}

func newFakeStore() *fakeStore {
	return &fakeStore{customers: map[string]*Customer{}, jobs: map[uuid.UUID]*Job{}}
}

func (s *fakeStore) UpsertCustomer(_ context.Context, tenantID uuid.UUID, phone string) (*Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := tenantID.String() + phone
	c, ok := s.customers[key]
	if !ok {
		c = &Customer{ID: uuid.New(), TenantID: tenantID, Phone: phone}
		s.customers[key] = c
	}
	cp := *c
	return &cp, nil
}

func (s *fakeStore) ActiveConversation(_ context.Context, tenantID, customerID uuid.UUID) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.conversations) - 1; i >= 0; i-- {
		c := s.conversations[i]
		if c.TenantID == tenantID && c.CustomerID == customerID && c.State != StateDone {
			cp := *c
			cp.History = append([]Turn(nil), c.History...)
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("conversation not found")
}

func (s *fakeStore) StartConversation(_ context.Context, tenantID, customerID uuid.UUID, _ *Conversation) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conversations {
		if c.CustomerID == customerID && c.State != StateDone && c.State != StateHandoff {
			c.State, c.Attributes = StateDone, DoneAttrs{}
			c.Version++
		}
	}
	c := &Conversation{ID: uuid.New(), TenantID: tenantID, CustomerID: customerID, State: StateMenu, Attributes: MenuAttrs{}, Version: 1}
	s.conversations = append(s.conversations, c)
	cp := *c
	return &cp, nil
}

func (s *fakeStore) SaveConversation(_ context.Context, c *Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, stored := range s.conversations {
		if stored.ID != c.ID {
			continue
		}
		if stored.Version != c.Version || stored.State == StateHandoff {
			return apperr.Conflict("stale")
		}
		c.Version++
		cp := *c
		cp.History = append([]Turn(nil), c.History...)
		*stored = cp
		s.saves++
		return nil
	}
	return apperr.NotFound("conversation not found")
}

func (s *fakeStore) MarkHandedOff(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conversations {
		if c.ID == id {
			c.State, c.Attributes, c.HandedOff = StateHandoff, HandoffAttrs{}, true
			c.Version++
			s.handedOff = append(s.handedOff, id)
			return nil
		}
	}
	return apperr.NotFound("conversation not found")
}

func (s *fakeStore) CreateJob(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreateJob != nil {
		return s.failCreateJob
	}
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *fakeStore) ConfirmJob(_ context.Context, _, jobID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return apperr.NotFound("job not found")
	}
	j.Status = JobConfirmed
	return nil
}

func (s *fakeStore) JobExists(_ context.Context, _, jobID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[jobID]; !ok {
		return apperr.NotFound("job not found")
	}
	return nil
}

func (s *fakeStore) ScheduleJob(_ context.Context, _, jobID uuid.UUID, sch Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return apperr.NotFound("job not found")
	}
	at := sch.At
	j.ScheduledAt = &at
	j.CalendarEventID = sch.CalendarEventID
	j.CalendarLink = sch.CalendarLink
	return nil
}

func (s *fakeStore) current(customerPhone string) *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	var customerID uuid.UUID
	for _, c := range s.customers {
		if c.Phone == customerPhone {
			customerID = c.ID
		}
	}
	for i := len(s.conversations) - 1; i >= 0; i-- {
		if s.conversations[i].CustomerID == customerID {
			cp := *s.conversations[i]
			return &cp
		}
	}
	return nil
}

func (s *fakeStore) onlyJob() *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		cp := *j
		return &cp
	}
	return nil
}

type sent struct {
	to  string
	msg Outbound
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []sent
	fail bool
}

func (m *fakeMessenger) Send(_ context.Context, _ *tenant.Tenant, to string, msg Outbound) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sent{to: to, msg: msg})
	if m.fail {
		return errors.New("channel down")
	}
	return nil
}

func (m *fakeMessenger) take() []sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.sent
	m.sent = nil
	return out
}

type fakeCompleter struct {
	mu      sync.Mutex
	replies []string
	err     error
	block   bool
	calls   [][]Turn
	prompts []string
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt string, history []Turn) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]Turn(nil), history...))
	f.prompts = append(f.prompts, systemPrompt)
	block, err := f.block, f.err
	var reply string
	if len(f.replies) > 0 {
		reply, f.replies = f.replies[0], f.replies[1:]
	}
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return reply, err
}

type fakeCalendar struct {
	busy      []slots.Interval
	busyErr   error
	createErr error
	created   []CalendarEvent
	from, to  time.Time
	busyCalls int
}

func (c *fakeCalendar) BusyIntervals(_ context.Context, _ *tenant.Tenant, from, to time.Time) ([]slots.Interval, error) {
	c.busyCalls++
	c.from, c.to = from, to
	return c.busy, c.busyErr
}

func (c *fakeCalendar) CreateEvent(_ context.Context, _ *tenant.Tenant, ev CalendarEvent) (BookedEvent, error) {
	c.created = append(c.created, ev)
	if c.createErr != nil {
		return BookedEvent{}, c.createErr
	}
	return BookedEvent{ID: "evt-1", Link: "https://calendar.example/evt-1"}, nil
}

type fakeReminders struct {
	scheduled []time.Time
	err       error
}

func (r *fakeReminders) ScheduleBookingReminder(_ context.Context, _, _ uuid.UUID, at time.Time) error {
	r.scheduled = append(r.scheduled, at)
	return r.err
}

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *recordingBus) PublishSync(ctx context.Context, e events.Event) error {
	b.Publish(ctx, e)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.EventName())
	}
	return out
}

const customerPhone = "447700900123"

// harness wires a Router over fakes for one tenant.
type harness struct {
	t         *tenant.Tenant
	tenants   *fakeTenants
	store     *fakeStore
	messenger *fakeMessenger
	completer *fakeCompleter
	calendar  *fakeCalendar
	reminders *fakeReminders
	bus       *recordingBus
	router    *Router
	now       time.Time
}

func newHarness() *harness {
	t := &tenant.Tenant{
		ID:                        uuid.New(),
		Name:                      "Acme Repairs",
		Active:                    true,
		OwnerPhone:                "447700900999",
		WhatsAppToken:             "token",
		WhatsAppPhoneNumberID:     "12345",
		GoogleServiceAccountEmail: "svc@example.iam.gserviceaccount.com",
		GooglePrivateKey:          "key",
		GoogleCalendarID:          "cal",
		BusinessHours:             tenant.BusinessHours{Start: 8, End: 18, Days: []int{1, 2, 3, 4, 5}, Timezone: "UTC"},
	}
	h := &harness{
		t:         t,
		tenants:   &fakeTenants{tenants: map[uuid.UUID]*tenant.Tenant{t.ID: t}},
		store:     newFakeStore(),
		messenger: &fakeMessenger{},
		completer: &fakeCompleter{},
		calendar:  &fakeCalendar{},
		reminders: &fakeReminders{},
		bus:       &recordingBus{},
		// Monday 14 April 2025, 09:00 UTC
		now: time.Date(2025, time.April, 14, 9, 0, 0, 0, time.UTC),
	}
	h.router = NewRouter(Deps{
		Tenants:         h.tenants,
		Store:           h.store,
		Messenger:       h.messenger,
		Completer:       h.completer,
		Calendar:        h.calendar,
		Reminders:       h.reminders,
		Bus:             h.bus,
		Log:             logger.Discard(),
		AITimeout:       50 * time.Millisecond,
		CalendarTimeout: 50 * time.Millisecond,
		Now:             func() time.Time { return h.now },
	})
	return h
}

func (h *harness) send(text string) error {
	return h.router.Handle(context.Background(), InboundEvent{
		EventID:  uuid.NewString(),
		TenantID: h.t.ID,
		From:     customerPhone,
		Text:     text,
	})
}
