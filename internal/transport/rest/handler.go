package rest

import (
	"context"
	"net/http"
	"time"

	"collections-engine/internal/domain"
	"collections-engine/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type TaskService interface {
	CreateTask(ctx context.Context, in service.CreateTaskInput) (*domain.Task, error)
	GetTask(ctx context.Context, id string) (*domain.Task, error)
	UpdateTask(ctx context.Context, id string, patch service.TaskPatch, actor string) (*domain.Task, error)
	AddCommunication(ctx context.Context, taskID, channel, summary string, nextContact *time.Time, actor string) (*domain.Task, error)
	SetPaymentPlan(ctx context.Context, taskID string, plan domain.PaymentPlan, actor string) (*domain.Task, error)
	AddEscalationRule(ctx context.Context, taskID string, triggerDays int, action domain.EscalationAction, actor string) (*domain.Task, error)
	RecordPayment(ctx context.Context, taskID string, amount float64, actor string) (*domain.Task, error)
	ListOverdue(ctx context.Context) (*service.OverdueSet, error)
}

type ReminderService interface {
	ScheduleReminder(ctx context.Context, taskID string, rtype domain.ReminderType, scheduledDate time.Time, template string, recipient domain.ReminderRecipient, actor string) (*domain.Task, error)
	ListReminders(ctx context.Context, taskID string) ([]domain.Reminder, error)
	CancelReminder(ctx context.Context, taskID string, reminderID int64, actor string) (*domain.Task, error)
	MarkReminderSent(ctx context.Context, taskID string, reminderID int64, message, errorMessage string) (*domain.Task, error)
}

type DocumentService interface {
	AddLegalDocument(ctx context.Context, taskID, documentType, fileName string, data []byte, expiresAt *time.Time, actor string) (*domain.Task, error)
	ListLegalDocuments(ctx context.Context, taskID string) ([]domain.LegalDocument, error)
	ArchiveLegalDocument(ctx context.Context, taskID string, documentID int64, actor string) (*domain.Task, error)
}

type ReportingService interface {
	Stats(ctx context.Context) (*service.TaskStats, error)
	Aging(ctx context.Context) (map[string]service.AgingBucket, error)
	Rates(ctx context.Context) (*service.CollectionRates, error)
	StartWeeklyReport(ctx context.Context) (string, error)
	GetReports(ctx context.Context) ([]service.ReportStatus, error)
	GetReport(ctx context.Context, reportID string) (*service.ReportStatus, error)
}

type Handler struct {
	tasks     TaskService
	reminders ReminderService
	documents DocumentService
	reports   ReportingService
}

func NewHandler(tasks TaskService, reminders ReminderService, documents DocumentService, reports ReportingService) *Handler {
	return &Handler{
		tasks:     tasks,
		reminders: reminders,
		documents: documents,
		reports:   reports,
	}
}

func (h *Handler) InitRouter() *chi.Mux {
	return h.InitRouterWithAuth(nil)
}

func (h *Handler) InitRouterWithAuth(authMiddleware func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)

	if authMiddleware != nil {
		r.Use(authMiddleware)
	}

	r.Route("/tasks", func(r chi.Router) {
		r.Post("/", h.createTask)
		r.Get("/{task_id}", h.getTask)
		r.Patch("/{task_id}", h.updateTask)
		r.Post("/{task_id}/communications", h.addCommunication)
		r.Post("/{task_id}/payments", h.recordPayment)
		r.Put("/{task_id}/payment-plan", h.setPaymentPlan)
		r.Post("/{task_id}/escalation-rules", h.addEscalationRule)

		r.Post("/{task_id}/reminders", h.scheduleReminder)
		r.Get("/{task_id}/reminders", h.listReminders)
		r.Delete("/{task_id}/reminders/{reminder_id}", h.cancelReminder)
		r.Post("/{task_id}/reminders/{reminder_id}/outcome", h.markReminderSent)

		r.Post("/{task_id}/documents", h.uploadDocument)
		r.Get("/{task_id}/documents", h.listDocuments)
		r.Post("/{task_id}/documents/{document_id}/archive", h.archiveDocument)
	})

	r.Route("/reports", func(r chi.Router) {
		r.Get("/overdue", h.overdue)
		r.Get("/stats", h.stats)
		r.Get("/aging", h.aging)
		r.Get("/rates", h.rates)
		r.Post("/weekly", h.startWeeklyReport)
		r.Get("/", h.listReports)
		r.Get("/{report_id}", h.getReport)
	})

	return r
}
