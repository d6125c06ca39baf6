package webhook

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tradesdesk_backend/internal/conversation"
	"tradesdesk_backend/internal/tenant"
	"tradesdesk_backend/internal/whatsapp"
	"tradesdesk_backend/platform/apperr"
	"tradesdesk_backend/platform/logger"
)

// TenantResolver maps a business phone-number id to its tenant.
type TenantResolver interface {
	ByChannelID(ctx context.Context, phoneNumberID string) (*tenant.Tenant, error)
}

// ReadMarker acknowledges inbound messages on the channel.
type ReadMarker interface {
	MarkRead(ctx context.Context, acct whatsapp.Account, messageID string) error
}

// Submitter queues an inbound event for the conversation router.
type Submitter interface {
	Submit(ev conversation.InboundEvent)
}

// Service turns webhook payloads into conversation events.
type Service struct {
	tenants TenantResolver
	dedupe  Deduper
	reader  ReadMarker
	sink    Submitter
	log     *logger.Logger
	now     func() time.Time
	wg      sync.WaitGroup
}

const markReadTimeout = 10 * time.Second

func NewService(tenants TenantResolver, dedupe Deduper, reader ReadMarker, sink Submitter, log *logger.Logger) *Service {
	if dedupe == nil {
		dedupe = NewMemoryDeduper()
	}
	return &Service{tenants: tenants, dedupe: dedupe, reader: reader, sink: sink, log: log, now: time.Now}
}

// Process submits every usable message in payload, in order, before it
// returns. Failures are logged per message.
func (s *Service) Process(ctx context.Context, payload whatsapp.WebhookPayload) {
	for _, msg := range payload.Messages() {
		s.processMessage(ctx, msg)
	}
}

// Wait blocks until pending read receipts have been sent.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) processMessage(ctx context.Context, msg whatsapp.IncomingMessage) {
	log := s.log.With(slog.String("message_id", msg.ID), slog.String("phone_number_id", msg.PhoneNumberID))

	t, err := s.tenants.ByChannelID(ctx, msg.PhoneNumberID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			log.Warn("webhook for unknown phone number id")
			return
		}
		log.Error("resolve tenant failed", slog.String("error", err.Error()))
		return
	}
	if !t.Active {
		log.Debug("dropping message for inactive tenant", slog.String("tenant_id", t.ID.String()))
		return
	}

	if msg.ID != "" {
		first, err := s.dedupe.FirstSeen(ctx, msg.ID)
		if err != nil {
			// fail open
			log.Warn("dedupe unavailable", slog.String("error", err.Error()))
		} else if !first {
			log.Debug("duplicate webhook delivery")
			return
		}
	}

	s.sink.Submit(conversation.InboundEvent{
		EventID:    msg.ID,
		TenantID:   t.ID,
		From:       msg.From,
		Text:       msg.Text,
		ReceivedAt: s.now(),
	})

	if msg.ID != "" {
		s.markRead(ctx, log, whatsapp.Account{PhoneNumberID: t.WhatsAppPhoneNumberID, AccessToken: t.WhatsAppToken}, msg.ID)
	}
}

func (s *Service) markRead(ctx context.Context, log *slog.Logger, acct whatsapp.Account, messageID string) {
	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		rctx, cancel := context.WithTimeout(ctx, markReadTimeout)
		defer cancel()
		if err := s.reader.MarkRead(rctx, acct, messageID); err != nil {
			log.Debug("mark read failed", slog.String("error", err.Error()))
		}
	}()
}
