package scheduler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"tradesdesk_backend/internal/conversation"
	"tradesdesk_backend/internal/digest"
	"tradesdesk_backend/internal/tenant"
	"tradesdesk_backend/platform/apperr"
	"tradesdesk_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type testTenants struct {
	tenants []tenant.Tenant
}

func (f *testTenants) GetByID(_ context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	for _, t := range f.tenants {
		if t.ID == id {
			cp := t
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("tenant not found")
}

func (f *testTenants) ListActive(context.Context) ([]tenant.Tenant, error) {
	var out []tenant.Tenant
	for _, t := range f.tenants {
		if t.Active {
			out = append(out, t)
		}
	}
	return out, nil
}

type testBookings struct {
	booking *Booking
}

func (f *testBookings) Booking(context.Context, uuid.UUID, uuid.UUID) (*Booking, error) {
	if f.booking == nil {
		return nil, apperr.NotFound("job not found")
	}
	cp := *f.booking
	return &cp, nil
}

type testMessenger struct {
	to   []string
	body []string
}

func (m *testMessenger) Send(_ context.Context, _ *tenant.Tenant, to string, msg conversation.Outbound) error {
	m.to = append(m.to, to)
	m.body = append(m.body, msg.Body)
	return nil
}

type testDigests struct {
	sent []uuid.UUID
	err  error
}

func (d *testDigests) Send(_ context.Context, tenantID uuid.UUID) error {
	d.sent = append(d.sent, tenantID)
	return d.err
}

type testDigestQueue struct {
	tenants []uuid.UUID
	days    []string
}

func (q *testDigestQueue) EnqueueDigest(_ context.Context, tenantID uuid.UUID, day string) error {
	q.tenants = append(q.tenants, tenantID)
	q.days = append(q.days, day)
	return nil
}

type workerFixture struct {
	worker    *Worker
	tenant    tenant.Tenant
	tenants   *testTenants
	bookings  *testBookings
	messenger *testMessenger
	digests   *testDigests
	queue     *testDigestQueue
}

func newWorkerFixture() *workerFixture {
	tn := tenant.Tenant{
		ID:                    uuid.New(),
		Name:                  "Acme Repairs",
		Active:                true,
		WhatsAppToken:         "token",
		WhatsAppPhoneNumberID: "12345",
		BusinessHours:         tenant.BusinessHours{Start: 8, End: 18, Days: []int{1, 2, 3, 4, 5}, Timezone: "UTC"},
	}
	f := &workerFixture{
		tenant:    tn,
		tenants:   &testTenants{tenants: []tenant.Tenant{tn}},
		bookings:  &testBookings{},
		messenger: &testMessenger{},
		digests:   &testDigests{},
		queue:     &testDigestQueue{},
	}
	f.worker = newWorker(WorkerDeps{
		Bookings:  f.bookings,
		Tenants:   f.tenants,
		Messenger: f.messenger,
		Digests:   f.digests,
		Enqueuer:  f.queue,
		Log:       logger.Discard(),
	}, time.UTC)
	return f
}

func reminderTask(t *testing.T, tenantID, jobID uuid.UUID, at time.Time) *asynq.Task {
	t.Helper()
	task, err := NewBookingReminderTask(BookingReminderPayload{TenantID: tenantID.String(), JobID: jobID.String(), AppointmentAt: at})
	if err != nil {
		t.Fatalf("task: %v", err)
	}
	return task
}

func TestBookingReminderSentForConfirmedJob(t *testing.T) {
	f := newWorkerFixture()
	at := time.Date(2025, time.April, 15, 10, 0, 0, 0, time.UTC)
	jobID := uuid.New()
	f.bookings.booking = &Booking{
		JobID:         jobID,
		Status:        conversation.JobConfirmed,
		ServiceType:   "Plumber",
		Address:       "1 High Street",
		ScheduledAt:   &at,
		CustomerPhone: "447700900123",
	}

	if err := f.worker.mux.ProcessTask(context.Background(), reminderTask(t, f.tenant.ID, jobID, at)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(f.messenger.to) != 1 || f.messenger.to[0] != "447700900123" {
		t.Fatalf("expected one reminder to the customer, got %v", f.messenger.to)
	}
	body := f.messenger.body[0]
	if !strings.Contains(body, "Plumber appointment is at 10:00am on Tuesday 15 April") || !strings.Contains(body, "1 High Street") {
		t.Fatalf("unexpected reminder text:\n%s", body)
	}
}

func TestBookingReminderSkippedWhenStale(t *testing.T) {
	at := time.Date(2025, time.April, 15, 10, 0, 0, 0, time.UTC)
	moved := at.Add(2 * time.Hour)

	cases := []struct {
		name    string
		booking *Booking
	}{
		{"done", &Booking{Status: conversation.JobDone, ScheduledAt: &at}},
		{"pending", &Booking{Status: conversation.JobPending, ScheduledAt: &at}},
		{"rescheduled", &Booking{Status: conversation.JobConfirmed, ScheduledAt: &moved}},
		{"unscheduled", &Booking{Status: conversation.JobConfirmed}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newWorkerFixture()
			f.bookings.booking = tc.booking
			if err := f.worker.mux.ProcessTask(context.Background(), reminderTask(t, f.tenant.ID, uuid.New(), at)); err != nil {
				t.Fatalf("process: %v", err)
			}
			if len(f.messenger.to) != 0 {
				t.Fatalf("expected no reminder, got %v", f.messenger.body)
			}
		})
	}
}

func TestBookingReminderForMissingJobSkipsRetry(t *testing.T) {
	f := newWorkerFixture()
	err := f.worker.mux.ProcessTask(context.Background(), reminderTask(t, f.tenant.ID, uuid.New(), time.Now()))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}

func TestDigestFanoutEnqueuesActiveTenants(t *testing.T) {
	f := newWorkerFixture()
	inactive := tenant.Tenant{ID: uuid.New(), Active: false}
	f.tenants.tenants = append(f.tenants.tenants, inactive)
	f.worker.now = func() time.Time { return time.Date(2025, time.April, 14, 8, 0, 0, 0, time.UTC) }

	if err := f.worker.mux.ProcessTask(context.Background(), NewDigestFanoutTask()); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(f.queue.tenants) != 1 || f.queue.tenants[0] != f.tenant.ID {
		t.Fatalf("expected only the active tenant, got %v", f.queue.tenants)
	}
	if f.queue.days[0] != "2025-04-14" {
		t.Fatalf("unexpected day %q", f.queue.days[0])
	}
}

func TestDigestSendHandler(t *testing.T) {
	f := newWorkerFixture()
	task, err := NewDigestSendTask(DigestSendPayload{TenantID: f.tenant.ID.String(), Day: "2025-04-14"})
	if err != nil {
		t.Fatalf("task: %v", err)
	}

	if err := f.worker.mux.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(f.digests.sent) != 1 || f.digests.sent[0] != f.tenant.ID {
		t.Fatalf("expected digest for tenant, got %v", f.digests.sent)
	}

	f.digests.err = digest.ErrNoRecipient
	if err := f.worker.mux.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("missing recipient should not fail the task, got %v", err)
	}

	f.digests.err = errors.New("channel down")
	if err := f.worker.mux.ProcessTask(context.Background(), task); err == nil || errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected a retryable error, got %v", err)
	}
}
