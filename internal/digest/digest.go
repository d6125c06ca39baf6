// Package digest builds and delivers the owner's daily summary.
package digest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tradesdesk_backend/internal/conversation"
	"tradesdesk_backend/internal/email"
	"tradesdesk_backend/internal/tenant"
	"tradesdesk_backend/platform/logger"

	"github.com/google/uuid"
)

// Counts is the state of one tenant's work at digest time.
type Counts struct {
	NewJobsToday        int `json:"newJobsToday"`
	Pending             int `json:"pending"`
	UrgentPending       int `json:"urgentPending"`
	Confirmed           int `json:"confirmed"`
	ActiveConversations int `json:"activeConversations"`
	Handoffs            int `json:"handoffs"`
}

// CountReader aggregates a tenant's jobs and conversations.
type CountReader interface {
	Counts(ctx context.Context, tenantID uuid.UUID, since time.Time) (Counts, error)
}

// TenantReader loads the tenant a digest is for.
type TenantReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error)
}

// ErrNoRecipient means the tenant has neither an owner phone nor a usable
// email address.
var ErrNoRecipient = errors.New("tenant has no digest recipient")

// Service composes and sends digests.
type Service struct {
	tenants   TenantReader
	counts    CountReader
	messenger conversation.Messenger
	mail      email.Sender
	log       *logger.Logger
	now       func() time.Time
}

// NewService creates a digest service. mail may be email.NoopSender{}.
func NewService(tenants TenantReader, counts CountReader, messenger conversation.Messenger, mail email.Sender, log *logger.Logger) *Service {
	if mail == nil {
		mail = email.NoopSender{}
	}
	return &Service{tenants: tenants, counts: counts, messenger: messenger, mail: mail, log: log, now: time.Now}
}

// Send delivers today's digest for one tenant over WhatsApp to the owner
// phone and, when configured, by email.
func (s *Service) Send(ctx context.Context, tenantID uuid.UUID) error {
	t, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return err
	}

	viaChat := t.OwnerPhone != "" && t.ChannelConfigured()
	viaMail := t.Email != ""
	if !viaChat && !viaMail {
		return ErrNoRecipient
	}

	now := s.now().In(t.Location())
	counts, err := s.counts.Counts(ctx, t.ID, startOfDay(now))
	if err != nil {
		return fmt.Errorf("digest counts: %w", err)
	}

	log := s.log.WithTenant(t.ID.String())
	var errs []error
	if viaChat {
		if err := s.messenger.Send(ctx, t, t.OwnerPhone, conversation.Text(Compose(counts, now))); err != nil {
			log.ExternalFailure("whatsapp", "send digest", err)
			errs = append(errs, err)
		}
	}
	if viaMail {
		if err := s.mail.SendDigestEmail(ctx, t.Email, toEmail(t.Name, counts, now)); err != nil {
			log.ExternalFailure("smtp", "send digest", err)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	log.Info("daily digest sent", slog.Bool("whatsapp", viaChat), slog.Bool("email", viaMail))
	return nil
}

// Compose renders the WhatsApp digest text.
func Compose(c Counts, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "☀️ *Good morning! Daily Summary for %s*\n\n", dateLabel(now))

	b.WriteString("📋 *Jobs Overview*\n")
	fmt.Fprintf(&b, "• New jobs today: *%d*\n", c.NewJobsToday)
	fmt.Fprintf(&b, "• Pending (unconfirmed): *%d*", c.Pending)
	if c.UrgentPending > 0 {
		fmt.Fprintf(&b, " (🚨 %d urgent)", c.UrgentPending)
	}
	fmt.Fprintf(&b, "\n• Confirmed (in progress): *%d*\n", c.Confirmed)

	b.WriteString("\n💬 *Conversations*\n")
	fmt.Fprintf(&b, "• Active bot chats: *%d*\n", c.ActiveConversations)
	fmt.Fprintf(&b, "• Waiting for your reply: *%d*", c.Handoffs)

	if c.Handoffs > 0 {
		fmt.Fprintf(&b, "\n\n⚠️ You have *%d* customer(s) waiting for a human reply.", c.Handoffs)
	}
	if c.Pending == 0 && c.ActiveConversations == 0 {
		b.WriteString("\n\n✅ All caught up, no pending actions!")
	}

	b.WriteString("\n\n_Reply \"menu\" to any customer to restart their conversation._")
	return b.String()
}

func toEmail(name string, c Counts, now time.Time) email.Digest {
	return email.Digest{
		TenantName:          name,
		Date:                dateLabel(now),
		NewJobsToday:        c.NewJobsToday,
		Pending:             c.Pending,
		UrgentPending:       c.UrgentPending,
		Confirmed:           c.Confirmed,
		ActiveConversations: c.ActiveConversations,
		Handoffs:            c.Handoffs,
	}
}

func dateLabel(t time.Time) string {
	return t.Format("Monday 2 January")
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
