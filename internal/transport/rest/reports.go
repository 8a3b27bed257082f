package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) overdue(w http.ResponseWriter, r *http.Request) {
	set, err := h.tasks.ListOverdue(r.Context())
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}
	Success(w, "overdue tasks", map[string]interface{}{
		"tasks":        set.Tasks,
		"count":        len(set.Tasks),
		"total_amount": set.TotalAmount,
	})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.reports.Stats(r.Context())
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}
	Success(w, "statistics", stats)
}

func (h *Handler) aging(w http.ResponseWriter, r *http.Request) {
	buckets, err := h.reports.Aging(r.Context())
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}
	Success(w, "aging buckets", buckets)
}

func (h *Handler) rates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.reports.Rates(r.Context())
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}
	Success(w, "collection rates", rates)
}

func (h *Handler) startWeeklyReport(w http.ResponseWriter, r *http.Request) {
	reportID, err := h.reports.StartWeeklyReport(r.Context())
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}
	SuccessAccepted(w, "report generation started", map[string]string{"report_id": reportID})
}

func (h *Handler) listReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.reports.GetReports(r.Context())
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}
	Success(w, "reports", reports)
}

func (h *Handler) getReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.reports.GetReport(r.Context(), chi.URLParam(r, "report_id"))
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}
	Success(w, "report", report)
}
