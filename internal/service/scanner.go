package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/LeventeLantos/reminder-calls/internal/lifecycle"
	"github.com/LeventeLantos/reminder-calls/internal/model"
	"github.com/LeventeLantos/reminder-calls/internal/repo"
)

const defaultPersistTimeout = 10 * time.Second

type ScanStore interface {
	repo.DueQuerier
	repo.AttemptRecorder
}

type CallDispatcher interface {
	Dispatch(ctx context.Context, r model.Reminder) lifecycle.Outcome
}

// PassResult summarises one scan pass.
type PassResult struct {
	Due       int `json:"due"`
	Completed int `json:"completed"`
	Retried   int `json:"retried"`
	Failed    int `json:"failed"`
	NotFound  int `json:"not_found"`
	Conflicts int `json:"conflicts"`
	Errors    int `json:"errors"`
	// Skipped counts due reminders left untouched because the pass was cancelled.
	Skipped int `json:"skipped"`
}

type Scanner struct {
	store          ScanStore
	dispatcher     CallDispatcher
	policy         lifecycle.RetryPolicy
	now            func() time.Time
	persistTimeout time.Duration
	logger         *slog.Logger
}

type ScannerOption func(*Scanner)

func WithClock(now func() time.Time) ScannerOption {
	return func(s *Scanner) { s.now = now }
}

func WithLogger(l *slog.Logger) ScannerOption {
	return func(s *Scanner) { s.logger = l }
}

func WithPersistTimeout(d time.Duration) ScannerOption {
	return func(s *Scanner) {
		if d > 0 {
			s.persistTimeout = d
		}
	}
}

func NewScanner(store ScanStore, dispatcher CallDispatcher, policy lifecycle.RetryPolicy, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		store:          store,
		dispatcher:     dispatcher,
		policy:         policy,
		now:            time.Now,
		persistTimeout: defaultPersistTimeout,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tick adapts RunPass to the scheduler's tick function.
func (s *Scanner) Tick(ctx context.Context) {
	s.RunPass(ctx)
}

// RunPass processes every reminder due at a single reference instant.
// Reminders are handled one at a time; a failure on one never stops the rest.
// Once ctx is cancelled no further calls are placed, but the attempt already
// in flight is still persisted.
func (s *Scanner) RunPass(ctx context.Context) PassResult {
	var res PassResult
	now := s.now().UTC()

	due, err := s.store.QueryDue(ctx, now)
	if err != nil {
		res.Errors++
		s.logger.Error("due reminder query failed", "error", err)
		return res
	}
	res.Due = len(due)

	for i, r := range due {
		if ctx.Err() != nil {
			res.Skipped = len(due) - i
			s.logger.Info("scan pass cancelled", "skipped", res.Skipped)
			break
		}
		s.process(ctx, r, now, &res)
	}

	if res.Due > 0 {
		s.logger.Info("scan pass finished",
			"due", res.Due,
			"completed", res.Completed,
			"retried", res.Retried,
			"failed", res.Failed,
			"not_found", res.NotFound,
			"conflicts", res.Conflicts,
			"errors", res.Errors,
			"skipped", res.Skipped,
		)
	}
	return res
}

func (s *Scanner) process(ctx context.Context, r model.Reminder, now time.Time, res *PassResult) {
	outcome := s.dispatcher.Dispatch(ctx, r)
	u := lifecycle.Transition(r, outcome, s.policy, now)

	// The call has happened; record it even if the pass is being shut down.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.persistTimeout)
	defer cancel()

	log := s.logger.With("reminder_id", r.ID, "attempt", u.RetryCount)

	err := s.store.ApplyAttempt(pctx, r.ID, u)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		res.NotFound++
		log.Warn("reminder deleted during scan pass")
		return
	case errors.Is(err, repo.ErrConflict):
		res.Conflicts++
		log.Warn("reminder changed during scan pass, attempt not recorded")
		return
	case err != nil:
		res.Errors++
		log.Error("recording attempt failed", "status", u.Status, "error", err)
		return
	}

	switch u.Status {
	case model.Completed:
		res.Completed++
		log.Info("reminder call placed", "call_sid", outcome.CallSID)
	case model.Failed:
		res.Failed++
		log.Warn("reminder failed permanently", "reason", outcome.Reason)
	default:
		res.Retried++
		log.Warn("reminder call failed, will retry",
			"reason", outcome.Reason,
			"remaining", s.policy.Remaining(u.RetryCount),
		)
	}
}
