package lifecycle

import (
	"time"

	"github.com/LeventeLantos/reminder-calls/internal/model"
)

// Update is the set of attempt fields written back after one dispatch.
// ExpectedRetryCount is the retry count the transition was computed from;
// stores use it as an optimistic guard.
type Update struct {
	Status             model.Status
	RetryCount         int
	ExpectedRetryCount int
	LastRunAt          time.Time
	// CallSID is nil when the attempt leaves the stored value untouched.
	CallSID *string
	// FailureReason is nil when the attempt clears the stored value.
	FailureReason *string
}

// Transition maps a reminder and the outcome of its dispatch attempt to the
// fields that must be persisted. It is total over every retry count.
func Transition(r model.Reminder, o Outcome, p RetryPolicy, now time.Time) Update {
	attempts := r.RetryCount + 1
	u := Update{
		RetryCount:         attempts,
		ExpectedRetryCount: r.RetryCount,
		LastRunAt:          now.UTC(),
	}

	if o.OK() {
		sid := o.CallSID
		u.Status = model.Completed
		u.CallSID = &sid
		return u
	}

	reason := o.Reason
	u.FailureReason = &reason
	if p.Exhausted(attempts) {
		u.Status = model.Failed
	} else {
		u.Status = model.Scheduled
	}
	return u
}

// Apply returns r with u applied, mirroring what the store persists.
func Apply(r model.Reminder, u Update) model.Reminder {
	last := u.LastRunAt
	r.Status = u.Status
	r.RetryCount = u.RetryCount
	r.LastRunAt = &last
	r.UpdatedAt = last
	if u.CallSID != nil {
		sid := *u.CallSID
		r.CallSID = &sid
	}
	if u.FailureReason != nil {
		reason := *u.FailureReason
		r.FailureReason = &reason
	} else {
		r.FailureReason = nil
	}
	return r
}
