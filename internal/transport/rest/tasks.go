package rest

import (
	"net/http"

	"collections-engine/internal/domain"
	"collections-engine/internal/transport/auth"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) createTask(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.GetActorID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "actor required")
		return
	}

	in, err := ValidateCreateTaskRequest(r, actor)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	task, err := h.tasks.CreateTask(r.Context(), *in)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}
	SuccessCreated(w, "task created", task)
}

func (h *Handler) getTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.tasks.GetTask(r.Context(), chi.URLParam(r, "task_id"))
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}
	Success(w, "task", task)
}

func (h *Handler) updateTask(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.GetActorID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "actor required")
		return
	}

	patch, err := ValidateUpdateTaskRequest(r)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	task, err := h.tasks.UpdateTask(r.Context(), chi.URLParam(r, "task_id"), *patch, actor)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}
	Success(w, "task updated", task)
}

func (h *Handler) addCommunication(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.GetActorID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "actor required")
		return
	}

	var req CommunicationRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorFromDomain(w, err)
		return
	}
	var next *domain.Task
	nextContact, err := parseDate(stringOrEmpty(req.NextContact), "next_contact_date", false)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	next, err = h.tasks.AddCommunication(r.Context(), chi.URLParam(r, "task_id"), req.Channel, req.Summary, nextContact, actor)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}
	Success(w, "communication recorded", next)
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.GetActorID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "actor required")
		return
	}

	var req PaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorFromDomain(w, err)
		return
	}

	task, err := h.tasks.RecordPayment(r.Context(), chi.URLParam(r, "task_id"), req.Amount, actor)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}
	Success(w, "payment recorded", task)
}

func (h *Handler) setPaymentPlan(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.GetActorID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "actor required")
		return
	}

	var req PaymentPlanRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorFromDomain(w, err)
		return
	}
	nextPayment, err := parseDate(req.NextPaymentDate, "next_payment_date", true)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	plan := domain.PaymentPlan{
		TotalAmount:          req.TotalAmount,
		InstallmentAmount:    req.InstallmentAmount,
		NumberOfInstallments: req.NumberOfInstallments,
		InstallmentFrequency: domain.InstallmentFrequency(req.InstallmentFrequency),
		NextPaymentDate:      *nextPayment,
		ReminderFrequency:    domain.ReminderFrequency(req.ReminderFrequency),
	}

	task, err := h.tasks.SetPaymentPlan(r.Context(), chi.URLParam(r, "task_id"), plan, actor)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}
	Success(w, "payment plan set", task)
}

func (h *Handler) addEscalationRule(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.GetActorID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "actor required")
		return
	}

	var req EscalationRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorFromDomain(w, err)
		return
	}

	task, err := h.tasks.AddEscalationRule(r.Context(), chi.URLParam(r, "task_id"), req.TriggerDays, domain.EscalationAction(req.Action), actor)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}
	Success(w, "escalation rule added", task)
}

func stringOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
