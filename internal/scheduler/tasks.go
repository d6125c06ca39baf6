package scheduler

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskBookingReminder = "jobs.booking_reminder"

const TaskDigestFanout = "digest.fanout"

const TaskDigestSend = "digest.send"

type BookingReminderPayload struct {
	TenantID      string    `json:"tenantId"`
	JobID         string    `json:"jobId"`
	AppointmentAt time.Time `json:"appointmentAt"`
}

type DigestSendPayload struct {
	TenantID string `json:"tenantId"`
	Day      string `json:"day"`
}

func NewBookingReminderTask(payload BookingReminderPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBookingReminder, data), nil
}

func ParseBookingReminderPayload(task *asynq.Task) (BookingReminderPayload, error) {
	var payload BookingReminderPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return BookingReminderPayload{}, err
	}
	return payload, nil
}

// NewDigestFanoutTask is the periodic trigger; it carries no payload.
func NewDigestFanoutTask() *asynq.Task {
	return asynq.NewTask(TaskDigestFanout, nil)
}

func NewDigestSendTask(payload DigestSendPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDigestSend, data), nil
}

func ParseDigestSendPayload(task *asynq.Task) (DigestSendPayload, error) {
	var payload DigestSendPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return DigestSendPayload{}, err
	}
	return payload, nil
}
