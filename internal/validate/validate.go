// Package validate holds the input rules applied before a reminder reaches
// the store: E.164 phone numbers, the supported timezone list, bounded text
// and strictly future schedule times.
package validate

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nyaruka/phonenumbers"
)

const MaxTitleLength = 128

// Error is an input rejection for a single field.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return e.Field + ": " + e.Message
}

func fieldErr(field, format string, args ...any) *Error {
	return &Error{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NormalizePhone parses an international number and returns its E.164 form.
func NormalizePhone(raw string) (string, error) {
	num, err := phonenumbers.Parse(strings.TrimSpace(raw), "")
	if err != nil {
		return "", fieldErr("phone_number", "%v", err)
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", fieldErr("phone_number", "invalid phone number")
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// MaskPhone keeps the first three and last three characters.
func MaskPhone(v string) string {
	if len(strings.TrimPrefix(v, "+")) <= 6 {
		return v
	}
	return v[:3] + "****" + v[len(v)-3:]
}

func Title(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fieldErr("title", "must not be empty")
	}
	if n := utf8.RuneCountInString(s); n > MaxTitleLength {
		return "", fieldErr("title", "must be at most %d characters, got %d", MaxTitleLength, n)
	}
	return s, nil
}

func Message(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fieldErr("message", "must not be empty")
	}
	return s, nil
}

// FutureTime normalises t to UTC and requires it to be strictly after now.
func FutureTime(t, now time.Time) (time.Time, error) {
	if t.IsZero() {
		return time.Time{}, fieldErr("scheduled_time_utc", "is required")
	}
	t = t.UTC()
	if !t.After(now) {
		return time.Time{}, fieldErr("scheduled_time_utc", "must be in the future")
	}
	return t, nil
}

// TimeRemaining is the number of seconds until scheduled, floored at zero.
func TimeRemaining(scheduled, now time.Time) float64 {
	if d := scheduled.Sub(now); d > 0 {
		return d.Seconds()
	}
	return 0
}
