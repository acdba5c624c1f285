package api

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/LeventeLantos/reminder-calls/internal/model"
	"github.com/LeventeLantos/reminder-calls/internal/validate"
)

// flexTime accepts RFC 3339 timestamps and zone-less ones, which are read as UTC.
type flexTime struct {
	time.Time
}

var zonelessLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

func (t *flexTime) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("scheduled_time_utc must be a string: %w", err)
	}
	raw = strings.TrimSpace(raw)

	if v, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		t.Time = v.UTC()
		return nil
	}
	for _, layout := range zonelessLayouts {
		if v, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			t.Time = v
			return nil
		}
	}
	return fmt.Errorf("scheduled_time_utc: cannot parse %q as a timestamp", raw)
}

type createRequest struct {
	Title            string   `json:"title"`
	Message          string   `json:"message"`
	PhoneNumber      string   `json:"phone_number"`
	ScheduledTimeUTC flexTime `json:"scheduled_time_utc"`
	Timezone         string   `json:"timezone"`
}

type updateRequest struct {
	Title            *string   `json:"title"`
	Message          *string   `json:"message"`
	PhoneNumber      *string   `json:"phone_number"`
	ScheduledTimeUTC *flexTime `json:"scheduled_time_utc"`
	Timezone         *string   `json:"timezone"`
}

type reminderResponse struct {
	ID                   string       `json:"id"`
	Title                string       `json:"title"`
	Message              string       `json:"message"`
	PhoneNumber          string       `json:"phone_number"`
	MaskedPhoneNumber    string       `json:"masked_phone_number"`
	ScheduledTimeUTC     time.Time    `json:"scheduled_time_utc"`
	Timezone             string       `json:"timezone"`
	Status               model.Status `json:"status"`
	TimeRemainingSeconds float64      `json:"time_remaining_seconds"`
	RetryCount           int          `json:"retry_count"`
	LastRunAt            *time.Time   `json:"last_run_at"`
	CallSID              *string      `json:"call_sid"`
	FailureReason        *string      `json:"failure_reason"`
	CreatedAt            time.Time    `json:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at"`
}

type listResponse struct {
	Page       int                `json:"page"`
	PerPage    int                `json:"per_page"`
	TotalItems int                `json:"total_items"`
	Items      []reminderResponse `json:"items"`
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func toResponse(r model.Reminder, now time.Time) reminderResponse {
	return reminderResponse{
		ID:                   r.ID,
		Title:                r.Title,
		Message:              r.Message,
		PhoneNumber:          r.PhoneNumber,
		MaskedPhoneNumber:    validate.MaskPhone(r.PhoneNumber),
		ScheduledTimeUTC:     r.ScheduledTimeUTC,
		Timezone:             r.Timezone,
		Status:               r.Status,
		TimeRemainingSeconds: validate.TimeRemaining(r.ScheduledTimeUTC, now),
		RetryCount:           r.RetryCount,
		LastRunAt:            r.LastRunAt,
		CallSID:              r.CallSID,
		FailureReason:        r.FailureReason,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
}
