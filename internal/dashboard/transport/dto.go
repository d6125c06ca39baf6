package transport

import (
	"time"

	"github.com/google/uuid"
)

type StatsResponse struct {
	TotalJobs           int `json:"totalJobs"`
	Pending             int `json:"pending"`
	UrgentPending       int `json:"urgentPending"`
	Confirmed           int `json:"confirmed"`
	Done                int `json:"done"`
	NewJobsToday        int `json:"newJobsToday"`
	NewJobsThisWeek     int `json:"newJobsThisWeek"`
	Customers           int `json:"customers"`
	ActiveConversations int `json:"activeConversations"`
	Handoffs            int `json:"handoffs"`
}

type ListJobsRequest struct {
	Status   string `form:"status" validate:"omitempty,oneof=PENDING CONFIRMED DONE"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

type JobResponse struct {
	ID            uuid.UUID  `json:"id"`
	CustomerID    uuid.UUID  `json:"customerId"`
	CustomerPhone string     `json:"customerPhone"`
	CustomerName  string     `json:"customerName,omitempty"`
	ServiceType   string     `json:"serviceType"`
	Description   string     `json:"description"`
	Address       string     `json:"address"`
	Urgent        bool       `json:"urgent"`
	QuoteMin      int        `json:"quoteMin"`
	QuoteMax      int        `json:"quoteMax"`
	Status        string     `json:"status"`
	ScheduledAt   *time.Time `json:"scheduledAt,omitempty"`
	CalendarLink  string     `json:"calendarLink,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

type JobListResponse struct {
	Items      []JobResponse `json:"items"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	PageSize   int           `json:"pageSize"`
	TotalPages int           `json:"totalPages"`
}

type UpdateJobStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=PENDING CONFIRMED DONE"`
}

type TurnResponse struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ConversationResponse struct {
	ID            uuid.UUID      `json:"id"`
	CustomerID    uuid.UUID      `json:"customerId"`
	CustomerPhone string         `json:"customerPhone"`
	CustomerName  string         `json:"customerName,omitempty"`
	State         string         `json:"state"`
	HandedOff     bool           `json:"handedOff"`
	History       []TurnResponse `json:"history"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

type ConversationListResponse struct {
	Items []ConversationResponse `json:"items"`
}

type CustomerResponse struct {
	ID                uuid.UUID  `json:"id"`
	Phone             string     `json:"phone"`
	Name              string     `json:"name,omitempty"`
	JobCount          int        `json:"jobCount"`
	ConversationCount int        `json:"conversationCount"`
	LastContactAt     *time.Time `json:"lastContactAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
}

type CustomerListResponse struct {
	Items []CustomerResponse `json:"items"`
}

type BusinessHours struct {
	Start    int    `json:"start" validate:"min=0,max=23"`
	End      int    `json:"end" validate:"min=1,max=24,gtfield=Start"`
	Days     []int  `json:"days" validate:"required,min=1,max=7,dive,weekday"`
	Timezone string `json:"timezone" validate:"omitempty,timezone"`
}

// SettingsResponse never echoes stored secrets; the Configured flags tell the
// dashboard whether they are set.
type SettingsResponse struct {
	ID                        uuid.UUID     `json:"id"`
	Name                      string        `json:"name"`
	Slug                      string        `json:"slug"`
	Email                     string        `json:"email"`
	OwnerPhone                string        `json:"ownerPhone"`
	WhatsAppPhoneNumberID     string        `json:"whatsappPhoneNumberId"`
	WhatsAppConfigured        bool          `json:"whatsappConfigured"`
	GoogleServiceAccountEmail string        `json:"googleServiceAccountEmail"`
	GoogleCalendarID          string        `json:"googleCalendarId"`
	CalendarConfigured        bool          `json:"calendarConfigured"`
	BusinessHours             BusinessHours `json:"businessHours"`
}

// UpdateSettingsRequest is a partial update: nil fields keep their value.
type UpdateSettingsRequest struct {
	Name                      *string        `json:"name,omitempty" validate:"omitempty,min=1,max=120"`
	OwnerPhone                *string        `json:"ownerPhone,omitempty" validate:"omitempty,max=32"`
	WhatsAppToken             *string        `json:"whatsappToken,omitempty" validate:"omitempty,max=1024"`
	WhatsAppPhoneNumberID     *string        `json:"whatsappPhoneNumberId,omitempty" validate:"omitempty,numeric,max=32"`
	GoogleServiceAccountEmail *string        `json:"googleServiceAccountEmail,omitempty" validate:"omitempty,email"`
	GooglePrivateKey          *string        `json:"googlePrivateKey,omitempty" validate:"omitempty,max=8192"`
	GoogleCalendarID          *string        `json:"googleCalendarId,omitempty" validate:"omitempty,max=254"`
	BusinessHours             *BusinessHours `json:"businessHours,omitempty" validate:"omitempty"`
}

type DigestTestResponse struct {
	Sent bool `json:"sent"`
}
