package service

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/LeventeLantos/reminder-calls/internal/model"
	"github.com/LeventeLantos/reminder-calls/internal/repo"
	"github.com/LeventeLantos/reminder-calls/internal/validate"
)

const QuickCallDelay = 10 * time.Second

type CreateInput struct {
	Title            string
	Message          string
	PhoneNumber      string
	ScheduledTimeUTC time.Time
	Timezone         string
}

type UpdateInput struct {
	Title            *string
	Message          *string
	PhoneNumber      *string
	ScheduledTimeUTC *time.Time
	Timezone         *string
}

// ReminderService validates CRUD input before it reaches the store.
type ReminderService struct {
	repo            repo.ReminderRepository
	defaultTimezone string
	now             func() time.Time
}

func NewReminderService(r repo.ReminderRepository, defaultTimezone string) *ReminderService {
	if defaultTimezone == "" {
		defaultTimezone = "UTC"
	}
	return &ReminderService{repo: r, defaultTimezone: defaultTimezone, now: time.Now}
}

func (s *ReminderService) Now() time.Time {
	return s.now().UTC()
}

func (s *ReminderService) Create(ctx context.Context, in CreateInput) (model.Reminder, error) {
	title, err := validate.Title(in.Title)
	if err != nil {
		return model.Reminder{}, err
	}
	message, err := validate.Message(in.Message)
	if err != nil {
		return model.Reminder{}, err
	}
	phone, err := validate.NormalizePhone(in.PhoneNumber)
	if err != nil {
		return model.Reminder{}, err
	}
	tz := in.Timezone
	if tz == "" {
		tz = s.defaultTimezone
	}
	if err := validate.Timezone(tz); err != nil {
		return model.Reminder{}, err
	}
	at, err := validate.FutureTime(in.ScheduledTimeUTC, s.Now())
	if err != nil {
		return model.Reminder{}, err
	}

	return s.repo.Create(ctx, model.Reminder{
		Title:            title,
		Message:          message,
		PhoneNumber:      phone,
		Timezone:         tz,
		ScheduledTimeUTC: at,
	})
}

func (s *ReminderService) Get(ctx context.Context, id string) (model.Reminder, error) {
	return s.repo.Get(ctx, id)
}

func (s *ReminderService) List(ctx context.Context, f repo.ListFilter) (repo.ListPage, error) {
	if f.Status != "" && f.Status != "all" && !model.Status(f.Status).Valid() {
		return repo.ListPage{}, &validate.Error{Field: "status", Message: "unknown status " + f.Status}
	}
	if f.Sort != "" && f.Sort != repo.Ascending && f.Sort != repo.Descending {
		return repo.ListPage{}, &validate.Error{Field: "sort", Message: "must be ascending or descending"}
	}
	return s.repo.List(ctx, f)
}

// Update edits content or schedule fields of a scheduled or failed reminder.
// The status and attempt fields are never changed here.
func (s *ReminderService) Update(ctx context.Context, id string, in UpdateInput) (model.Reminder, error) {
	var p repo.ReminderPatch

	if in.Title != nil {
		v, err := validate.Title(*in.Title)
		if err != nil {
			return model.Reminder{}, err
		}
		p.Title = &v
	}
	if in.Message != nil {
		v, err := validate.Message(*in.Message)
		if err != nil {
			return model.Reminder{}, err
		}
		p.Message = &v
	}
	if in.PhoneNumber != nil {
		v, err := validate.NormalizePhone(*in.PhoneNumber)
		if err != nil {
			return model.Reminder{}, err
		}
		p.PhoneNumber = &v
	}
	if in.Timezone != nil {
		if err := validate.Timezone(*in.Timezone); err != nil {
			return model.Reminder{}, err
		}
		v := *in.Timezone
		p.Timezone = &v
	}
	if in.ScheduledTimeUTC != nil {
		v, err := validate.FutureTime(*in.ScheduledTimeUTC, s.Now())
		if err != nil {
			return model.Reminder{}, err
		}
		p.ScheduledTimeUTC = &v
	}

	return s.repo.UpdateEditable(ctx, id, p)
}

func (s *ReminderService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func (s *ReminderService) DeleteAll(ctx context.Context) error {
	return s.repo.DeleteAll(ctx)
}

// QuickCall schedules a throwaway reminder a few seconds out, for checking
// the call path end to end.
func (s *ReminderService) QuickCall(ctx context.Context, phoneNumber string) (model.Reminder, error) {
	return s.Create(ctx, CreateInput{
		Title:            fmt.Sprintf("Random Title %d", 1000+rand.IntN(9000)),
		Message:          fmt.Sprintf("Random Message %d", 1000+rand.IntN(9000)),
		PhoneNumber:      phoneNumber,
		ScheduledTimeUTC: s.Now().Add(QuickCallDelay),
		Timezone:         "UTC",
	})
}
