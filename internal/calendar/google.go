// Package calendar reads availability from and books appointments in a
// tenant's Google Calendar using the tenant's service account.
package calendar

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"tradesdesk_backend/internal/conversation"
	"tradesdesk_backend/internal/slots"
	"tradesdesk_backend/internal/tenant"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// Popup reminders put on every booked appointment, in minutes.
var reminderMinutes = []int64{60, 15}

// Google implements conversation.Calendar against Calendar API v3.
type Google struct {
	mu      sync.Mutex
	sources map[string]oauth2.TokenSource

	// endpoint overrides the API base URL without authentication. Tests only.
	endpoint string
}

// NewGoogle creates a calendar provider.
func NewGoogle() *Google {
	return &Google{sources: make(map[string]oauth2.TokenSource)}
}

var _ conversation.Calendar = (*Google)(nil)

// BusyIntervals returns the busy blocks of the tenant's calendar in
// [from, to).
func (g *Google) BusyIntervals(ctx context.Context, t *tenant.Tenant, from, to time.Time) ([]slots.Interval, error) {
	svc, err := g.service(ctx, t)
	if err != nil {
		return nil, err
	}

	resp, err := svc.Freebusy.Query(&gcal.FreeBusyRequest{
		TimeMin: from.UTC().Format(time.RFC3339),
		TimeMax: to.UTC().Format(time.RFC3339),
		Items:   []*gcal.FreeBusyRequestItem{{Id: t.GoogleCalendarID}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("query free/busy: %w", err)
	}

	cal, ok := resp.Calendars[t.GoogleCalendarID]
	if !ok {
		return nil, fmt.Errorf("free/busy response has no entry for calendar %q", t.GoogleCalendarID)
	}
	if len(cal.Errors) > 0 {
		return nil, fmt.Errorf("free/busy for calendar: %s", cal.Errors[0].Reason)
	}

	busy := make([]slots.Interval, 0, len(cal.Busy))
	for _, b := range cal.Busy {
		start, err1 := time.Parse(time.RFC3339, b.Start)
		end, err2 := time.Parse(time.RFC3339, b.End)
		if err1 != nil || err2 != nil {
			continue
		}
		busy = append(busy, slots.Interval{Start: start, End: end})
	}
	return busy, nil
}

// CreateEvent inserts the appointment with popup reminders.
func (g *Google) CreateEvent(ctx context.Context, t *tenant.Tenant, ev conversation.CalendarEvent) (conversation.BookedEvent, error) {
	svc, err := g.service(ctx, t)
	if err != nil {
		return conversation.BookedEvent{}, err
	}

	overrides := make([]*gcal.EventReminder, 0, len(reminderMinutes))
	for _, m := range reminderMinutes {
		overrides = append(overrides, &gcal.EventReminder{Method: "popup", Minutes: m})
	}

	created, err := svc.Events.Insert(t.GoogleCalendarID, &gcal.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		Start:       &gcal.EventDateTime{DateTime: ev.Start.Format(time.RFC3339)},
		End:         &gcal.EventDateTime{DateTime: ev.End.Format(time.RFC3339)},
		Reminders: &gcal.EventReminders{
			UseDefault:      false,
			Overrides:       overrides,
			ForceSendFields: []string{"UseDefault"},
		},
	}).Context(ctx).Do()
	if err != nil {
		return conversation.BookedEvent{}, fmt.Errorf("insert calendar event: %w", err)
	}
	return conversation.BookedEvent{ID: created.Id, Link: created.HtmlLink}, nil
}

func (g *Google) service(ctx context.Context, t *tenant.Tenant) (*gcal.Service, error) {
	if !t.CalendarConfigured() {
		return nil, fmt.Errorf("calendar not configured for tenant %s", t.ID)
	}
	if g.endpoint != "" {
		return gcal.NewService(ctx, option.WithEndpoint(g.endpoint), option.WithoutAuthentication())
	}
	return gcal.NewService(ctx, option.WithTokenSource(g.tokenSource(t)))
}

// tokenSource caches one reusable token source per credential set, so a
// settings change produces a new entry.
func (g *Google) tokenSource(t *tenant.Tenant) oauth2.TokenSource {
	sum := sha256.Sum256([]byte(t.GoogleServiceAccountEmail + "\x00" + t.GooglePrivateKey))
	key := t.ID.String() + ":" + hex.EncodeToString(sum[:8])

	g.mu.Lock()
	defer g.mu.Unlock()
	if ts, ok := g.sources[key]; ok {
		return ts
	}

	conf := &jwt.Config{
		Email: t.GoogleServiceAccountEmail,
		// keys pasted into env files arrive with escaped newlines
		PrivateKey: []byte(strings.ReplaceAll(t.GooglePrivateKey, `\n`, "\n")),
		Scopes:     []string{gcal.CalendarScope},
		TokenURL:   google.JWTTokenURL,
	}
	ts := conf.TokenSource(context.Background())
	g.sources[key] = ts
	return ts
}
