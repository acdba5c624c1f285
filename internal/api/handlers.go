package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/LeventeLantos/reminder-calls/internal/model"
	"github.com/LeventeLantos/reminder-calls/internal/repo"
	"github.com/LeventeLantos/reminder-calls/internal/scheduler"
	"github.com/LeventeLantos/reminder-calls/internal/service"
	"github.com/LeventeLantos/reminder-calls/internal/validate"
)

const maxBodySize = 64 << 10

type Reminders interface {
	Now() time.Time
	Create(ctx context.Context, in service.CreateInput) (model.Reminder, error)
	Get(ctx context.Context, id string) (model.Reminder, error)
	List(ctx context.Context, f repo.ListFilter) (repo.ListPage, error)
	Update(ctx context.Context, id string, in service.UpdateInput) (model.Reminder, error)
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
	QuickCall(ctx context.Context, phoneNumber string) (model.Reminder, error)
}

type PassRunner interface {
	RunPass(ctx context.Context) service.PassResult
}

type Handler struct {
	sched     *scheduler.Scheduler
	reminders Reminders
	scanner   PassRunner
}

func NewHandler(s *scheduler.Scheduler, reminders Reminders, scanner PassRunner) *Handler {
	return &Handler{sched: s, reminders: reminders, scanner: scanner}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sched.Status())
}

func (h *Handler) SchedulerStart(w http.ResponseWriter, r *http.Request) {
	h.sched.Start()
	writeJSON(w, http.StatusOK, h.sched.Status())
}

func (h *Handler) SchedulerStop(w http.ResponseWriter, r *http.Request) {
	h.sched.Stop()
	writeJSON(w, http.StatusOK, h.sched.Status())
}

// SchedulerRun runs one pass synchronously. It answers 409 while the
// background loop is in the middle of a pass.
func (h *Handler) SchedulerRun(w http.ResponseWriter, r *http.Request) {
	var res service.PassResult
	ran := h.sched.TryPass(r.Context(), func(ctx context.Context) {
		res = h.scanner.RunPass(ctx)
	})
	if !ran {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "a scan pass is already in progress"})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) CreateReminder(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !decodeBody(w, r, &req) {
		return
	}

	m, err := h.reminders.Create(r.Context(), service.CreateInput{
		Title:            req.Title,
		Message:          req.Message,
		PhoneNumber:      req.PhoneNumber,
		ScheduledTimeUTC: req.ScheduledTimeUTC.Time,
		Timezone:         req.Timezone,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResponse(m, h.reminders.Now()))
}

func (h *Handler) ListReminders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, err := parseInt(q.Get("page"), 1, 1, 0)
	if err != nil {
		writeError(w, &validate.Error{Field: "page", Message: err.Error()})
		return
	}
	perPage, err := parseInt(q.Get("per_page"), repo.DefaultPerPage, 1, repo.MaxPerPage)
	if err != nil {
		writeError(w, &validate.Error{Field: "per_page", Message: err.Error()})
		return
	}

	res, err := h.reminders.List(r.Context(), repo.ListFilter{
		Status:  q.Get("status"),
		Search:  q.Get("search"),
		Sort:    repo.SortOrder(q.Get("sort")),
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	now := h.reminders.Now()
	items := make([]reminderResponse, 0, len(res.Items))
	for _, m := range res.Items {
		items = append(items, toResponse(m, now))
	}
	writeJSON(w, http.StatusOK, listResponse{
		Page:       res.Page,
		PerPage:    res.PerPage,
		TotalItems: res.Total,
		Items:      items,
	})
}

func (h *Handler) GetReminder(w http.ResponseWriter, r *http.Request) {
	m, err := h.reminders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(m, h.reminders.Now()))
}

func (h *Handler) UpdateReminder(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	in := service.UpdateInput{
		Title:       req.Title,
		Message:     req.Message,
		PhoneNumber: req.PhoneNumber,
		Timezone:    req.Timezone,
	}
	if req.ScheduledTimeUTC != nil {
		in.ScheduledTimeUTC = &req.ScheduledTimeUTC.Time
	}

	m, err := h.reminders.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(m, h.reminders.Now()))
}

func (h *Handler) DeleteReminder(w http.ResponseWriter, r *http.Request) {
	if err := h.reminders.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeleteAllReminders(w http.ResponseWriter, r *http.Request) {
	if err := h.reminders.DeleteAll(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) QuickCall(w http.ResponseWriter, r *http.Request) {
	m, err := h.reminders.QuickCall(r.Context(), r.URL.Query().Get("phone_number"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(m, h.reminders.Now()))
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// parseInt reads an optional query parameter; hi <= 0 means no upper bound.
func parseInt(raw string, def, lo, hi int) (int, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("must be an integer")
	}
	if v < lo {
		return 0, errors.New("must be at least " + strconv.Itoa(lo))
	}
	if hi > 0 && v > hi {
		return 0, errors.New("must be at most " + strconv.Itoa(hi))
	}
	return v, nil
}

func writeError(w http.ResponseWriter, err error) {
	var verr *validate.Error
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Message, Field: verr.Field})
	case errors.Is(err, repo.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, repo.ErrNotEditable):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
