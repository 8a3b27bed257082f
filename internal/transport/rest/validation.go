package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"collections-engine/internal/domain"
	"collections-engine/internal/service"
)

type ContactPayload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func (c ContactPayload) toDomain() domain.Contact {
	return domain.Contact{Name: c.Name, Email: c.Email, Phone: c.Phone}
}

type CreateTaskRequest struct {
	CustomerID  string  `json:"customer_id"`
	InvoiceID   *string `json:"invoice_id,omitempty"`
	Type        string  `json:"type"`
	Title       string  `json:"title"`
	Description string  `json:"description"`

	Amount  float64 `json:"amount"`
	DueDate string  `json:"due_date"`

	Priority  string `json:"priority"`
	RiskLevel string `json:"risk_level"`

	EscalationLevel     int  `json:"escalation_level"`
	AutoEscalate        bool `json:"auto_escalate"`
	EscalationThreshold int  `json:"escalation_threshold"`
	MaxReminders        int  `json:"max_reminders"`

	AssignedTo string `json:"assigned_to"`

	CustomerContact ContactPayload `json:"customer_contact"`
	AssignedContact ContactPayload `json:"assigned_contact"`
	CreatorContact  ContactPayload `json:"creator_contact"`
}

func ValidateCreateTaskRequest(r *http.Request, actor string) (*service.CreateTaskInput, error) {
	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, &domain.ValidationError{Field: "body", Message: "invalid JSON body"}
	}

	dueDate, err := parseDate(req.DueDate, "due_date", true)
	if err != nil {
		return nil, err
	}

	return &service.CreateTaskInput{
		CustomerID:          req.CustomerID,
		InvoiceID:           req.InvoiceID,
		Type:                domain.CollectionsType(req.Type),
		Title:               req.Title,
		Description:         req.Description,
		Amount:              req.Amount,
		DueDate:             *dueDate,
		Priority:            domain.Priority(req.Priority),
		RiskLevel:           domain.RiskLevel(req.RiskLevel),
		EscalationLevel:     req.EscalationLevel,
		AutoEscalate:        req.AutoEscalate,
		EscalationThreshold: req.EscalationThreshold,
		MaxReminders:        req.MaxReminders,
		AssignedTo:          req.AssignedTo,
		CreatedBy:           actor,
		CustomerContact:     req.CustomerContact.toDomain(),
		AssignedContact:     req.AssignedContact.toDomain(),
		CreatorContact:      req.CreatorContact.toDomain(),
	}, nil
}

type UpdateTaskRequest struct {
	Title               *string  `json:"title,omitempty"`
	Description         *string  `json:"description,omitempty"`
	Amount              *float64 `json:"amount,omitempty"`
	DueDate             *string  `json:"due_date,omitempty"`
	Status              *string  `json:"status,omitempty"`
	Priority            *string  `json:"priority,omitempty"`
	RiskLevel           *string  `json:"risk_level,omitempty"`
	EscalationLevel     *int     `json:"escalation_level,omitempty"`
	AutoEscalate        *bool    `json:"auto_escalate,omitempty"`
	EscalationThreshold *int     `json:"escalation_threshold,omitempty"`
	MaxReminders        *int     `json:"max_reminders,omitempty"`
	AssignedTo          *string  `json:"assigned_to,omitempty"`
	NextContactDate     *string  `json:"next_contact_date,omitempty"`
}

func ValidateUpdateTaskRequest(r *http.Request) (*service.TaskPatch, error) {
	var req UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, &domain.ValidationError{Field: "body", Message: "invalid JSON body"}
	}

	patch := &service.TaskPatch{
		Title:               req.Title,
		Description:         req.Description,
		Amount:              req.Amount,
		EscalationLevel:     req.EscalationLevel,
		AutoEscalate:        req.AutoEscalate,
		EscalationThreshold: req.EscalationThreshold,
		MaxReminders:        req.MaxReminders,
		AssignedTo:          req.AssignedTo,
	}

	if req.DueDate != nil {
		dueDate, err := parseDate(*req.DueDate, "due_date", true)
		if err != nil {
			return nil, err
		}
		patch.DueDate = dueDate
	}
	if req.NextContactDate != nil {
		next, err := parseDate(*req.NextContactDate, "next_contact_date", true)
		if err != nil {
			return nil, err
		}
		patch.NextContactDate = next
	}
	if req.Status != nil {
		v := domain.TaskStatus(*req.Status)
		patch.Status = &v
	}
	if req.Priority != nil {
		v := domain.Priority(*req.Priority)
		patch.Priority = &v
	}
	if req.RiskLevel != nil {
		v := domain.RiskLevel(*req.RiskLevel)
		patch.RiskLevel = &v
	}

	return patch, nil
}

type CommunicationRequest struct {
	Channel     string  `json:"channel"`
	Summary     string  `json:"summary"`
	NextContact *string `json:"next_contact_date,omitempty"`
}

type PaymentRequest struct {
	Amount float64 `json:"amount"`
}

type PaymentPlanRequest struct {
	TotalAmount          float64 `json:"total_amount"`
	InstallmentAmount    float64 `json:"installment_amount"`
	NumberOfInstallments int     `json:"number_of_installments"`
	InstallmentFrequency string  `json:"installment_frequency"`
	NextPaymentDate      string  `json:"next_payment_date"`
	ReminderFrequency    string  `json:"reminder_frequency"`
}

type EscalationRuleRequest struct {
	TriggerDays int    `json:"trigger_days"`
	Action      string `json:"action"`
}

type ScheduleReminderRequest struct {
	Type          string `json:"type"`
	ScheduledDate string `json:"scheduled_date"`
	Template      string `json:"template"`
	Recipient     string `json:"recipient"`
}

type ReminderOutcomeRequest struct {
	Message      string `json:"message"`
	ErrorMessage string `json:"error_message"`
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &domain.ValidationError{Field: "body", Message: "invalid JSON body"}
	}
	return nil
}

// parseDate accepts RFC3339 or plain YYYY-MM-DD.
func parseDate(value, field string, required bool) (*time.Time, error) {
	if value == "" {
		if required {
			return nil, &domain.ValidationError{Field: field, Message: field + " is required"}
		}
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return &t, nil
	}
	return nil, &domain.ValidationError{Field: field, Message: field + " must be RFC3339 or YYYY-MM-DD"}
}
