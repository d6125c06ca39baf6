package digest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"tradesdesk_backend/internal/conversation"
	"tradesdesk_backend/internal/email"
	"tradesdesk_backend/internal/tenant"
	"tradesdesk_backend/platform/apperr"
	"tradesdesk_backend/platform/logger"

	"github.com/google/uuid"
)

type testTenants struct{ t *tenant.Tenant }

func (f testTenants) GetByID(_ context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	if f.t == nil || f.t.ID != id {
		return nil, apperr.NotFound("tenant not found")
	}
	cp := *f.t
	return &cp, nil
}

type testCounts struct {
	counts Counts
	since  time.Time
}

func (f *testCounts) Counts(_ context.Context, _ uuid.UUID, since time.Time) (Counts, error) {
	f.since = since
	return f.counts, nil
}

type testMessenger struct {
	to   []string
	body []string
	err  error
}

func (m *testMessenger) Send(_ context.Context, _ *tenant.Tenant, to string, msg conversation.Outbound) error {
	m.to = append(m.to, to)
	m.body = append(m.body, msg.Body)
	return m.err
}

type testMail struct {
	to      []string
	digests []email.Digest
}

func (m *testMail) SendDigestEmail(_ context.Context, to string, d email.Digest) error {
	m.to = append(m.to, to)
	m.digests = append(m.digests, d)
	return nil
}

func newTenant() *tenant.Tenant {
	return &tenant.Tenant{
		ID:                    uuid.New(),
		Name:                  "Acme Repairs",
		Email:                 "owner@acme.test",
		OwnerPhone:            "447700900999",
		WhatsAppToken:         "token",
		WhatsAppPhoneNumberID: "12345",
		BusinessHours:         tenant.BusinessHours{Start: 8, End: 18, Days: []int{1, 2, 3, 4, 5}, Timezone: "UTC"},
	}
}

func TestComposeBusyDay(t *testing.T) {
	now := time.Date(2025, time.April, 14, 8, 0, 0, 0, time.UTC)
	got := Compose(Counts{NewJobsToday: 2, Pending: 3, UrgentPending: 1, Confirmed: 4, ActiveConversations: 5, Handoffs: 2}, now)

	for _, want := range []string{
		"Daily Summary for Monday 14 April",
		"• New jobs today: *2*\n",
		"• Pending (unconfirmed): *3* (🚨 1 urgent)\n",
		"• Confirmed (in progress): *4*\n",
		"• Active bot chats: *5*\n",
		"• Waiting for your reply: *2*",
		"You have *2* customer(s) waiting for a human reply.",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in digest:\n%s", want, got)
		}
	}
	if strings.Contains(got, "All caught up") {
		t.Fatal("busy day must not be reported as caught up")
	}
	if !strings.HasSuffix(got, "_Reply \"menu\" to any customer to restart their conversation._") {
		t.Fatalf("missing footer:\n%s", got)
	}
}

func TestComposeQuietDay(t *testing.T) {
	got := Compose(Counts{Confirmed: 1}, time.Date(2025, time.April, 13, 8, 0, 0, 0, time.UTC))
	if !strings.Contains(got, "All caught up") {
		t.Fatalf("expected caught-up line:\n%s", got)
	}
	if strings.Contains(got, "urgent") || strings.Contains(got, "⚠️") {
		t.Fatalf("unexpected warnings in quiet digest:\n%s", got)
	}
}

func TestSendDeliversOverBothChannels(t *testing.T) {
	tn := newTenant()
	counts := &testCounts{counts: Counts{Pending: 1}}
	msgs := &testMessenger{}
	mail := &testMail{}
	svc := NewService(testTenants{tn}, counts, msgs, mail, logger.Discard())
	svc.now = func() time.Time { return time.Date(2025, time.April, 14, 8, 30, 0, 0, time.UTC) }

	if err := svc.Send(context.Background(), tn.ID); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(msgs.to) != 1 || msgs.to[0] != tn.OwnerPhone {
		t.Fatalf("expected one WhatsApp digest to owner, got %v", msgs.to)
	}
	if len(mail.to) != 1 || mail.to[0] != tn.Email || mail.digests[0].Pending != 1 {
		t.Fatalf("expected one email digest, got %+v", mail.digests)
	}
	if want := time.Date(2025, time.April, 14, 0, 0, 0, 0, time.UTC); !counts.since.Equal(want) {
		t.Fatalf("expected counts since %v, got %v", want, counts.since)
	}
}

func TestSendUsesTenantDayBoundary(t *testing.T) {
	tn := newTenant()
	tn.BusinessHours.Timezone = "Europe/London"
	counts := &testCounts{}
	svc := NewService(testTenants{tn}, counts, &testMessenger{}, nil, logger.Discard())
	// 23:30 UTC on 14 April is already 15 April in London (BST).
	svc.now = func() time.Time { return time.Date(2025, time.April, 14, 23, 30, 0, 0, time.UTC) }

	if err := svc.Send(context.Background(), tn.ID); err != nil {
		t.Fatalf("send: %v", err)
	}
	if want := time.Date(2025, time.April, 14, 23, 0, 0, 0, time.UTC); !counts.since.Equal(want) {
		t.Fatalf("expected London midnight %v, got %v", want, counts.since.UTC())
	}
}

func TestSendWithoutRecipient(t *testing.T) {
	tn := newTenant()
	tn.OwnerPhone, tn.Email = "", ""
	svc := NewService(testTenants{tn}, &testCounts{}, &testMessenger{}, nil, logger.Discard())
	if err := svc.Send(context.Background(), tn.ID); !errors.Is(err, ErrNoRecipient) {
		t.Fatalf("expected ErrNoRecipient, got %v", err)
	}
}

func TestSendReportsChannelFailure(t *testing.T) {
	tn := newTenant()
	tn.Email = ""
	svc := NewService(testTenants{tn}, &testCounts{}, &testMessenger{err: errors.New("down")}, nil, logger.Discard())
	if err := svc.Send(context.Background(), tn.ID); err == nil {
		t.Fatal("expected channel failure to be returned")
	}
}
