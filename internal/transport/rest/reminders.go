package rest

import (
	"net/http"
	"strconv"

	"collections-engine/internal/domain"
	"collections-engine/internal/transport/auth"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) scheduleReminder(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.GetActorID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "actor required")
		return
	}

	var req ScheduleReminderRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorFromDomain(w, err)
		return
	}
	scheduled, err := parseDate(req.ScheduledDate, "scheduled_date", true)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	task, err := h.reminders.ScheduleReminder(
		r.Context(),
		chi.URLParam(r, "task_id"),
		domain.ReminderType(req.Type),
		*scheduled,
		req.Template,
		domain.ReminderRecipient(req.Recipient),
		actor,
	)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}
	SuccessCreated(w, "reminder scheduled", task)
}

func (h *Handler) listReminders(w http.ResponseWriter, r *http.Request) {
	reminders, err := h.reminders.ListReminders(r.Context(), chi.URLParam(r, "task_id"))
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}
	Success(w, "reminders", reminders)
}

func (h *Handler) cancelReminder(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.GetActorID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "actor required")
		return
	}

	reminderID, err := reminderIDParam(r)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	task, err := h.reminders.CancelReminder(r.Context(), chi.URLParam(r, "task_id"), reminderID, actor)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}
	Success(w, "reminder cancelled", task)
}

func (h *Handler) markReminderSent(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.GetActorID(r.Context()); err != nil {
		ErrorUnauthorized(w, "actor required")
		return
	}

	reminderID, err := reminderIDParam(r)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	var req ReminderOutcomeRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorFromDomain(w, err)
		return
	}

	task, err := h.reminders.MarkReminderSent(r.Context(), chi.URLParam(r, "task_id"), reminderID, req.Message, req.ErrorMessage)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}
	Success(w, "reminder outcome recorded", task)
}

func reminderIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "reminder_id"), 10, 64)
	if err != nil {
		return 0, &domain.ValidationError{Field: "reminder_id", Message: "reminder_id must be an integer"}
	}
	return id, nil
}
