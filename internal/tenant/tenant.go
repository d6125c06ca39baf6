// Package tenant owns the businesses using the assistant: their channel and
// calendar credentials, owner contact and business-hours policy, plus the
// resolver cache used on the webhook hot path.
package tenant

import (
	"time"

	"tradesdesk_backend/internal/slots"

	"github.com/google/uuid"
)

const DefaultTimezone = "Europe/London"

// Tenant is one business.
type Tenant struct {
	ID                        uuid.UUID
	Name                      string
	Slug                      string
	Email                     string
	PasswordHash              string
	WhatsAppToken             string
	WhatsAppPhoneNumberID     string
	GoogleServiceAccountEmail string
	GooglePrivateKey          string
	GoogleCalendarID          string
	OwnerPhone                string
	BusinessHours             BusinessHours
	Active                    bool
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

// ChannelConfigured reports whether messages can be sent for this tenant.
func (t *Tenant) ChannelConfigured() bool {
	return t.WhatsAppToken != "" && t.WhatsAppPhoneNumberID != ""
}

// CalendarConfigured reports whether the calendar provider can be used.
func (t *Tenant) CalendarConfigured() bool {
	return t.GoogleServiceAccountEmail != "" && t.GooglePrivateKey != "" && t.GoogleCalendarID != ""
}

// Location returns the tenant's business time zone, UTC when unknown.
func (t *Tenant) Location() *time.Location {
	return t.BusinessHours.location()
}

// BusinessHours is the stored form of the opening policy. Days use
// 0 = Sunday through 6 = Saturday.
type BusinessHours struct {
	Start    int    `json:"start"`
	End      int    `json:"end"`
	Days     []int  `json:"days"`
	Timezone string `json:"timezone,omitempty"`
}

// DefaultBusinessHours is 08:00–18:00 Monday to Friday, London time.
func DefaultBusinessHours() BusinessHours {
	return BusinessHours{Start: 8, End: 18, Days: []int{1, 2, 3, 4, 5}, Timezone: DefaultTimezone}
}

// Policy converts the stored hours into the slot finder's policy. Invalid
// values are left for the finder to replace with its default.
func (b BusinessHours) Policy() slots.Hours {
	days := make([]time.Weekday, 0, len(b.Days))
	for _, d := range b.Days {
		days = append(days, time.Weekday(d))
	}
	return slots.Hours{Start: b.Start, End: b.End, Days: days, Location: b.location()}
}

func (b BusinessHours) location() *time.Location {
	name := b.Timezone
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
