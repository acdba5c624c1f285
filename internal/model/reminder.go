package model

import "time"

type Status string

const (
	Scheduled Status = "scheduled"
	Completed Status = "completed"
	Failed    Status = "failed"
)

func (s Status) Valid() bool {
	switch s {
	case Scheduled, Completed, Failed:
		return true
	}
	return false
}

// Editable reports whether the CRUD layer may still change the reminder.
func (s Status) Editable() bool {
	return s == Scheduled || s == Failed
}

type Reminder struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Message          string     `json:"message"`
	PhoneNumber      string     `json:"phone_number"`
	Timezone         string     `json:"timezone"`
	ScheduledTimeUTC time.Time  `json:"scheduled_time_utc"`
	Status           Status     `json:"status"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	LastRunAt        *time.Time `json:"last_run_at,omitempty"`
	RetryCount       int        `json:"retry_count"`
	CallSID          *string    `json:"call_sid,omitempty"`
	FailureReason    *string    `json:"failure_reason,omitempty"`
}

// CallContent is the text spoken to the callee.
func (r Reminder) CallContent() string {
	return "Reminder titled " + r.Title + ": " + r.Message + "."
}
