package repo

import (
	"context"
	"errors"
	"time"

	"github.com/LeventeLantos/reminder-calls/internal/lifecycle"
	"github.com/LeventeLantos/reminder-calls/internal/model"
)

var (
	ErrNotFound    = errors.New("reminder not found")
	ErrNotEditable = errors.New("only scheduled or failed reminders can be updated")
	// ErrConflict means the row changed between the scan read and the attempt write.
	ErrConflict = errors.New("reminder changed concurrently")
)

const (
	DefaultPerPage = 25
	MaxPerPage     = 100
)

// DueQuerier and AttemptRecorder are all the scanner needs from the store.
type DueQuerier interface {
	QueryDue(ctx context.Context, now time.Time) ([]model.Reminder, error)
}

type AttemptRecorder interface {
	ApplyAttempt(ctx context.Context, id string, u lifecycle.Update) error
}

type ReminderRepository interface {
	DueQuerier
	AttemptRecorder

	Create(ctx context.Context, r model.Reminder) (model.Reminder, error)
	Get(ctx context.Context, id string) (model.Reminder, error)
	List(ctx context.Context, f ListFilter) (ListPage, error)
	UpdateEditable(ctx context.Context, id string, p ReminderPatch) (model.Reminder, error)
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
}

type SortOrder string

const (
	Ascending  SortOrder = "ascending"
	Descending SortOrder = "descending"
)

type ListFilter struct {
	// Status is empty or "all" for no status filter.
	Status  string
	Search  string
	Sort    SortOrder
	Page    int
	PerPage int
}

func (f ListFilter) normalized() ListFilter {
	if f.Status == "all" {
		f.Status = ""
	}
	if f.Sort != Ascending {
		f.Sort = Descending
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = DefaultPerPage
	}
	if f.PerPage > MaxPerPage {
		f.PerPage = MaxPerPage
	}
	return f
}

type ListPage struct {
	Page    int
	PerPage int
	Total   int
	Items   []model.Reminder
}

// ReminderPatch holds the content and schedule fields a CRUD edit may change.
// Nil fields are left as stored.
type ReminderPatch struct {
	Title            *string
	Message          *string
	PhoneNumber      *string
	Timezone         *string
	ScheduledTimeUTC *time.Time
}

func (p ReminderPatch) Empty() bool {
	return p.Title == nil && p.Message == nil && p.PhoneNumber == nil &&
		p.Timezone == nil && p.ScheduledTimeUTC == nil
}
