package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func Router(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/v1/health", h.Health)

	r.Route("/v1/scheduler", func(r chi.Router) {
		r.Get("/status", h.SchedulerStatus)
		r.Post("/start", h.SchedulerStart)
		r.Post("/stop", h.SchedulerStop)
		r.Post("/run", h.SchedulerRun)
	})

	r.Route("/api/reminders", func(r chi.Router) {
		r.Post("/", h.CreateReminder)
		r.Get("/", h.ListReminders)
		r.Post("/call-me-in-10-secs", h.QuickCall)
		r.Delete("/all", h.DeleteAllReminders)
		r.Get("/{id}", h.GetReminder)
		r.Patch("/{id}", h.UpdateReminder)
		r.Delete("/{id}", h.DeleteReminder)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("reminder-calls"))
	})

	return r
}
