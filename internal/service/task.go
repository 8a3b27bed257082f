package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"collections-engine/internal/domain"
	"collections-engine/internal/repository"

	"github.com/google/uuid"
)

type CreateTaskInput struct {
	CustomerID  string
	InvoiceID   *string
	Type        domain.CollectionsType
	Title       string
	Description string

	Amount  float64
	DueDate time.Time

	Priority  domain.Priority
	RiskLevel domain.RiskLevel

	EscalationLevel     int
	AutoEscalate        bool
	EscalationThreshold int
	MaxReminders        int

	AssignedTo string
	CreatedBy  string

	CustomerContact domain.Contact
	AssignedContact domain.Contact
	CreatorContact  domain.Contact
}

// CreateTask validates the input and opens a new case in status pending.
func (e *Engine) CreateTask(ctx context.Context, in CreateTaskInput) (*domain.Task, error) {
	if in.CustomerID == "" {
		return nil, &domain.ValidationError{Field: "customer_id", Message: "customer reference is required"}
	}
	if in.Amount < 0 {
		return nil, &domain.ValidationError{Field: "amount", Message: "amount must not be negative"}
	}
	if in.DueDate.IsZero() {
		return nil, &domain.ValidationError{Field: "due_date", Message: "due date is required"}
	}
	if !domain.ValidCollectionsType(in.Type) {
		return nil, &domain.ValidationError{Field: "type", Message: fmt.Sprintf("unknown collections type %q", in.Type)}
	}
	if in.RiskLevel == "" {
		in.RiskLevel = domain.RiskMedium
	}
	if !domain.ValidRiskLevel(in.RiskLevel) {
		return nil, &domain.ValidationError{Field: "risk_level", Message: fmt.Sprintf("unknown risk level %q", in.RiskLevel)}
	}
	if in.Priority == "" {
		in.Priority = domain.PriorityMedium
	}
	if !domain.ValidPriority(in.Priority) {
		return nil, &domain.ValidationError{Field: "priority", Message: fmt.Sprintf("unknown priority %q", in.Priority)}
	}
	if in.EscalationLevel == 0 {
		in.EscalationLevel = 1
	}
	if in.EscalationLevel < 1 || in.EscalationLevel > domain.MaxEscalationLevel {
		return nil, &domain.ValidationError{Field: "escalation_level", Message: "escalation level must be between 1 and 5"}
	}
	if in.MaxReminders == 0 {
		in.MaxReminders = domain.DefaultMaxReminders
	}
	if in.MaxReminders < 0 {
		return nil, &domain.ValidationError{Field: "max_reminders", Message: "max reminders must not be negative"}
	}

	now := e.clock.Now()
	t := &domain.Task{
		ID:                  uuid.NewString(),
		CustomerID:          in.CustomerID,
		InvoiceID:           in.InvoiceID,
		Type:                in.Type,
		Title:               in.Title,
		Description:         in.Description,
		Amount:              in.Amount,
		DueDate:             in.DueDate,
		Status:              domain.StatusPending,
		Priority:            in.Priority,
		RiskLevel:           in.RiskLevel,
		EscalationLevel:     in.EscalationLevel,
		AutoEscalate:        in.AutoEscalate,
		EscalationThreshold: in.EscalationThreshold,
		MaxReminders:        in.MaxReminders,
		AssignedTo:          in.AssignedTo,
		CreatedBy:           in.CreatedBy,
		CustomerContact:     in.CustomerContact,
		AssignedContact:     in.AssignedContact,
		CreatorContact:      in.CreatorContact,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	e.audit(t, "created", "collections case opened", in.CreatedBy, "", string(t.Status))

	if err := e.store.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (e *Engine) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	return e.store.FindByID(ctx, id)
}

// TaskPatch is a field-level partial update. Nil fields are untouched.
// Sub-entity lists have their own operations and are not patchable here.
type TaskPatch struct {
	Title               *string
	Description         *string
	Amount              *float64
	DueDate             *time.Time
	Status              *domain.TaskStatus
	Priority            *domain.Priority
	RiskLevel           *domain.RiskLevel
	EscalationLevel     *int
	AutoEscalate        *bool
	EscalationThreshold *int
	MaxReminders        *int
	AssignedTo          *string
	NextContactDate     *time.Time
}

type fieldChange struct {
	field    string
	previous string
	current  string
}

// UpdateTask applies the patch, snapshotting the previous value of every
// changed field, and writes one audit entry summarizing the change set.
// Status transitions are deliberately unrestricted here.
func (e *Engine) UpdateTask(ctx context.Context, id string, patch TaskPatch, actor string) (*domain.Task, error) {
	if err := validatePatch(patch); err != nil {
		return nil, err
	}

	t, err := e.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var changes []fieldChange
	change := func(field, previous, current string) {
		if previous == current {
			return
		}
		changes = append(changes, fieldChange{field, previous, current})
	}

	if patch.Title != nil {
		change("title", t.Title, *patch.Title)
		t.Title = *patch.Title
	}
	if patch.Description != nil {
		change("description", t.Description, *patch.Description)
		t.Description = *patch.Description
	}
	if patch.Amount != nil {
		change("amount", fmt.Sprintf("%g", t.Amount), fmt.Sprintf("%g", *patch.Amount))
		t.Amount = *patch.Amount
	}
	if patch.DueDate != nil {
		change("due_date", t.DueDate.Format(time.RFC3339), patch.DueDate.Format(time.RFC3339))
		t.DueDate = *patch.DueDate
	}
	if patch.Status != nil {
		change("status", string(t.Status), string(*patch.Status))
		if *patch.Status == domain.StatusCompleted && t.Status != domain.StatusCompleted {
			now := e.clock.Now()
			t.CompletedAt = &now
		}
		t.Status = *patch.Status
	}
	if patch.Priority != nil {
		change("priority", string(t.Priority), string(*patch.Priority))
		t.Priority = *patch.Priority
	}
	if patch.RiskLevel != nil {
		change("risk_level", string(t.RiskLevel), string(*patch.RiskLevel))
		t.RiskLevel = *patch.RiskLevel
	}
	if patch.EscalationLevel != nil {
		change("escalation_level", fmt.Sprintf("%d", t.EscalationLevel), fmt.Sprintf("%d", *patch.EscalationLevel))
		t.EscalationLevel = *patch.EscalationLevel
	}
	if patch.AutoEscalate != nil {
		change("auto_escalate", fmt.Sprintf("%t", t.AutoEscalate), fmt.Sprintf("%t", *patch.AutoEscalate))
		t.AutoEscalate = *patch.AutoEscalate
	}
	if patch.EscalationThreshold != nil {
		change("escalation_threshold", fmt.Sprintf("%d", t.EscalationThreshold), fmt.Sprintf("%d", *patch.EscalationThreshold))
		t.EscalationThreshold = *patch.EscalationThreshold
	}
	if patch.MaxReminders != nil {
		change("max_reminders", fmt.Sprintf("%d", t.MaxReminders), fmt.Sprintf("%d", *patch.MaxReminders))
		t.MaxReminders = *patch.MaxReminders
	}
	if patch.AssignedTo != nil {
		change("assigned_to", t.AssignedTo, *patch.AssignedTo)
		t.AssignedTo = *patch.AssignedTo
	}
	if patch.NextContactDate != nil {
		previous := ""
		if t.NextContactDate != nil {
			previous = t.NextContactDate.Format(time.RFC3339)
		}
		change("next_contact_date", previous, patch.NextContactDate.Format(time.RFC3339))
		t.NextContactDate = patch.NextContactDate
	}

	if len(changes) == 0 {
		return t, nil
	}

	fields := make([]string, 0, len(changes))
	previous := make([]string, 0, len(changes))
	current := make([]string, 0, len(changes))
	for _, c := range changes {
		fields = append(fields, c.field)
		previous = append(previous, fmt.Sprintf("%s=%s", c.field, c.previous))
		current = append(current, fmt.Sprintf("%s=%s", c.field, c.current))
	}
	e.audit(t,
		"updated",
		"changed "+strings.Join(fields, ", "),
		actor,
		strings.Join(previous, "; "),
		strings.Join(current, "; "),
	)
	e.touch(t)

	if err := e.store.Save(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func validatePatch(p TaskPatch) error {
	if p.Amount != nil && *p.Amount < 0 {
		return &domain.ValidationError{Field: "amount", Message: "amount must not be negative"}
	}
	if p.Status != nil && !domain.ValidTaskStatus(*p.Status) {
		return &domain.ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", *p.Status)}
	}
	if p.Priority != nil && !domain.ValidPriority(*p.Priority) {
		return &domain.ValidationError{Field: "priority", Message: fmt.Sprintf("unknown priority %q", *p.Priority)}
	}
	if p.RiskLevel != nil && !domain.ValidRiskLevel(*p.RiskLevel) {
		return &domain.ValidationError{Field: "risk_level", Message: fmt.Sprintf("unknown risk level %q", *p.RiskLevel)}
	}
	if p.EscalationLevel != nil && (*p.EscalationLevel < 1 || *p.EscalationLevel > domain.MaxEscalationLevel) {
		return &domain.ValidationError{Field: "escalation_level", Message: "escalation level must be between 1 and 5"}
	}
	if p.MaxReminders != nil && *p.MaxReminders < 0 {
		return &domain.ValidationError{Field: "max_reminders", Message: "max reminders must not be negative"}
	}
	return nil
}

// AddCommunication appends a contact record and moves lastContactDate to now.
func (e *Engine) AddCommunication(ctx context.Context, taskID, channel, summary string, nextContact *time.Time, actor string) (*domain.Task, error) {
	if summary == "" {
		return nil, &domain.ValidationError{Field: "summary", Message: "summary is required"}
	}

	t, err := e.store.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	t.Communications = append(t.Communications, domain.Communication{
		ID:      t.NextRecordID(),
		Channel: channel,
		Summary: summary,
		Actor:   actor,
		At:      now,
	})
	t.LastContactDate = &now
	if nextContact != nil {
		t.NextContactDate = nextContact
	}
	e.audit(t, "communication_added", fmt.Sprintf("%s contact recorded", channel), actor, "", summary)
	e.touch(t)

	if err := e.store.Save(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// SetPaymentPlan attaches or replaces the installment plan. Bookkeeping
// counters always restart at zero; recorded payments survive only through
// the audit trail.
func (e *Engine) SetPaymentPlan(ctx context.Context, taskID string, plan domain.PaymentPlan, actor string) (*domain.Task, error) {
	if plan.TotalAmount <= 0 {
		return nil, &domain.ValidationError{Field: "total_amount", Message: "total amount must be positive"}
	}
	if plan.InstallmentAmount <= 0 {
		return nil, &domain.ValidationError{Field: "installment_amount", Message: "installment amount must be positive"}
	}
	if plan.NumberOfInstallments <= 0 {
		return nil, &domain.ValidationError{Field: "number_of_installments", Message: "number of installments must be positive"}
	}
	if !domain.ValidInstallmentFrequency(plan.InstallmentFrequency) {
		return nil, &domain.ValidationError{Field: "installment_frequency", Message: fmt.Sprintf("unknown frequency %q", plan.InstallmentFrequency)}
	}
	if plan.NextPaymentDate.IsZero() {
		return nil, &domain.ValidationError{Field: "next_payment_date", Message: "next payment date is required"}
	}
	if plan.ReminderFrequency == "" {
		plan.ReminderFrequency = domain.RemindWeekly
	}
	if !domain.ValidReminderFrequency(plan.ReminderFrequency) {
		return nil, &domain.ValidationError{Field: "reminder_frequency", Message: fmt.Sprintf("unknown frequency %q", plan.ReminderFrequency)}
	}

	t, err := e.store.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	plan.PaymentsMade = 0
	plan.TotalPaid = 0
	previous := "none"
	if t.PaymentPlan != nil {
		previous = fmt.Sprintf("%g over %d installments", t.PaymentPlan.TotalAmount, t.PaymentPlan.NumberOfInstallments)
	}
	t.PaymentPlan = &plan
	e.audit(t, "payment_plan_set",
		fmt.Sprintf("%s plan of %d installments", plan.InstallmentFrequency, plan.NumberOfInstallments),
		actor, previous,
		fmt.Sprintf("%g over %d installments", plan.TotalAmount, plan.NumberOfInstallments),
	)
	e.touch(t)

	if err := e.store.Save(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// AddEscalationRule appends a rule; rules are evaluated in stored order.
func (e *Engine) AddEscalationRule(ctx context.Context, taskID string, triggerDays int, action domain.EscalationAction, actor string) (*domain.Task, error) {
	if triggerDays < 0 {
		return nil, &domain.ValidationError{Field: "trigger_days", Message: "trigger days must not be negative"}
	}
	if !domain.ValidEscalationAction(action) {
		return nil, &domain.ValidationError{Field: "action", Message: fmt.Sprintf("unknown escalation action %q", action)}
	}

	t, err := e.store.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	t.EscalationRules = append(t.EscalationRules, domain.EscalationRule{
		ID:          t.NextRecordID(),
		TriggerDays: triggerDays,
		Action:      action,
	})
	e.audit(t, "escalation_rule_added",
		fmt.Sprintf("%s after %d days overdue", action, triggerDays),
		actor, "", string(action))
	e.touch(t)

	if err := e.store.Save(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// OverdueSet is the overdue listing with its total outstanding amount.
type OverdueSet struct {
	Tasks       []domain.Task
	TotalAmount float64
}

// ListOverdue returns every non-completed case past its due date.
func (e *Engine) ListOverdue(ctx context.Context) (*OverdueSet, error) {
	now := e.clock.Now()
	archived := false
	tasks, err := e.store.List(ctx, repository.TaskFilter{
		OverdueAsOf: &now,
		Archived:    &archived,
	})
	if err != nil {
		return nil, err
	}

	set := &OverdueSet{Tasks: tasks}
	for _, t := range tasks {
		set.TotalAmount += t.Amount
	}
	return set, nil
}
