package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/LeventeLantos/reminder-calls/internal/lifecycle"
	"github.com/LeventeLantos/reminder-calls/internal/model"
)

type CallClient interface {
	PlaceCall(ctx context.Context, phoneNumber, content string) (callID string, err error)
}

// CallLedger remembers placed calls, so a reminder whose attempt could not be
// recorded is not dialled a second time.
type CallLedger interface {
	StoreCompleted(ctx context.Context, reminderID, callSID string, completedAt time.Time) error
	LookupCompleted(ctx context.Context, reminderID string) (callSID string, ok bool, err error)
}

// Dispatcher turns one provider call into an explicit outcome.
type Dispatcher struct {
	client CallClient
	ledger CallLedger
	now    func() time.Time
	logger *slog.Logger
}

func NewDispatcher(client CallClient) *Dispatcher {
	return &Dispatcher{client: client, now: time.Now, logger: slog.Default()}
}

// WithLedger makes every dispatch consult l before dialling and record the
// call id in it afterwards. Ledger errors are logged and never block a call.
func (d *Dispatcher) WithLedger(l CallLedger) *Dispatcher {
	d.ledger = l
	return d
}

func (d *Dispatcher) Dispatch(ctx context.Context, r model.Reminder) (out lifecycle.Outcome) {
	defer func() {
		if p := recover(); p != nil {
			out = lifecycle.Failed(fmt.Sprintf("call provider panic: %v", p))
		}
	}()

	if sid, ok := d.placedBefore(ctx, r.ID); ok {
		d.logger.Info("call already placed for reminder, reusing its call id", "reminder_id", r.ID, "call_sid", sid)
		return lifecycle.Succeeded(sid)
	}

	callID, err := d.client.PlaceCall(ctx, r.PhoneNumber, r.CallContent())
	if err != nil {
		return lifecycle.Failed(err.Error())
	}
	if callID == "" {
		return lifecycle.Failed("call provider returned an empty call id")
	}

	d.remember(ctx, r.ID, callID)
	return lifecycle.Succeeded(callID)
}

func (d *Dispatcher) placedBefore(ctx context.Context, reminderID string) (string, bool) {
	if d.ledger == nil {
		return "", false
	}
	sid, ok, err := d.ledger.LookupCompleted(ctx, reminderID)
	if err != nil {
		d.logger.Warn("call ledger lookup failed", "reminder_id", reminderID, "error", err)
		return "", false
	}
	return sid, ok && sid != ""
}

func (d *Dispatcher) remember(ctx context.Context, reminderID, callID string) {
	if d.ledger == nil {
		return
	}
	// The call has been placed; record it even if the pass is shutting down.
	if err := d.ledger.StoreCompleted(context.WithoutCancel(ctx), reminderID, callID, d.now()); err != nil {
		d.logger.Warn("call ledger write failed", "reminder_id", reminderID, "error", err)
	}
}
