package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"collections-engine/internal/domain"
)

// TaskFilter narrows List/GroupCount/SumAmount queries. Nil fields are
// ignored. Predicates over embedded sub-records (pending reminders, expired
// documents, audit length) are evaluated against the jsonb columns.
type TaskFilter struct {
	CustomerID *string
	AssignedTo *string
	Type       *domain.CollectionsType
	Status     *domain.TaskStatus
	NotStatus  *domain.TaskStatus
	RiskLevel  *domain.RiskLevel
	Archived   *bool

	AutoEscalate *bool

	// OverdueAsOf matches due_date < t AND status != completed.
	OverdueAsOf *time.Time

	// PendingReminderDueBy matches tasks holding at least one reminder with
	// status=pending and scheduled_date <= t.
	PendingReminderDueBy *time.Time

	// ExpiredDocumentAsOf matches tasks holding at least one active legal
	// document with expires_at < t.
	ExpiredDocumentAsOf *time.Time

	AuditEntriesOver *int
	CompletedBefore  *time.Time
	CreatedAfter     *time.Time
}

type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = `
	id, version, customer_id, invoice_id, type, title, description,
	amount, due_date, status, priority, risk_level,
	escalation_level, auto_escalate, escalation_threshold,
	reminder_count, max_reminders, last_reminder_date, next_reminder_date,
	last_contact_date, next_contact_date,
	assigned_to, created_by,
	customer_contact, assigned_contact, creator_contact,
	payment_plan, reminders, escalation_rules, legal_documents,
	communications, audit_trail,
	archived, completed_at, next_seq, created_at, updated_at`

func (r *TaskRepository) FindByID(ctx context.Context, id string) (*domain.Task, error) {
	query := `SELECT` + taskColumns + ` FROM collections_tasks WHERE id = $1`

	t, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &domain.NotFoundError{Resource: "task", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *TaskRepository) List(ctx context.Context, f TaskFilter) ([]domain.Task, error) {
	query := `SELECT` + taskColumns + ` FROM collections_tasks`
	where, args := buildWhere(f)
	query += " WHERE " + where + " ORDER BY created_at"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Create inserts a new task at version 1.
func (r *TaskRepository) Create(ctx context.Context, t *domain.Task) error {
	t.Version = 1
	cols, vals, args := taskValues(t)
	query := fmt.Sprintf(
		"INSERT INTO collections_tasks (%s) VALUES (%s)",
		strings.Join(cols, ", "), strings.Join(vals, ", "),
	)
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

// Save writes the task back, checking the version the caller read. A stale
// version yields ConflictError; a missing row yields NotFoundError. On
// success the task's version is incremented in place.
func (r *TaskRepository) Save(ctx context.Context, t *domain.Task) error {
	readVersion := t.Version
	t.Version++
	cols, vals, args := taskValues(t)

	set := make([]string, 0, len(cols))
	for i, col := range cols {
		if col == "id" {
			continue
		}
		set = append(set, fmt.Sprintf("%s = %s", col, vals[i]))
	}

	idArg := len(args) + 1
	verArg := len(args) + 2
	query := fmt.Sprintf(
		"UPDATE collections_tasks SET %s WHERE id = $%d AND version = $%d",
		strings.Join(set, ", "), idArg, verArg,
	)
	args = append(args, t.ID, readVersion)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		t.Version = readVersion
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		t.Version = readVersion
		return err
	}
	if n == 0 {
		t.Version = readVersion
		var exists bool
		if err := r.db.QueryRowContext(ctx,
			"SELECT EXISTS (SELECT 1 FROM collections_tasks WHERE id = $1)", t.ID,
		).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return &domain.NotFoundError{Resource: "task", ID: t.ID}
		}
		return &domain.ConflictError{TaskID: t.ID, Version: readVersion}
	}
	return nil
}

// groupColumns whitelists GROUP BY targets for reporting aggregates.
var groupColumns = map[string]string{
	"type":       "type",
	"risk_level": "risk_level",
	"status":     "status",
	"priority":   "priority",
}

func (r *TaskRepository) GroupCount(ctx context.Context, groupBy string, f TaskFilter) (map[string]int64, error) {
	col, ok := groupColumns[groupBy]
	if !ok {
		return nil, fmt.Errorf("unsupported group column %q", groupBy)
	}

	where, args := buildWhere(f)
	query := fmt.Sprintf(
		"SELECT %s, COUNT(*) FROM collections_tasks WHERE %s GROUP BY %s",
		col, where, col,
	)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int64{}
	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		out[key] = count
	}
	return out, rows.Err()
}

func (r *TaskRepository) SumAmount(ctx context.Context, f TaskFilter) (float64, error) {
	where, args := buildWhere(f)
	query := "SELECT COALESCE(SUM(amount), 0) FROM collections_tasks WHERE " + where

	var sum float64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&sum); err != nil {
		return 0, err
	}
	return sum, nil
}

func (r *TaskRepository) Count(ctx context.Context, f TaskFilter) (int64, error) {
	where, args := buildWhere(f)
	query := "SELECT COUNT(*) FROM collections_tasks WHERE " + where

	var n int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func buildWhere(f TaskFilter) (string, []any) {
	where := []string{"1=1"}
	args := []any{}
	i := 1

	add := func(cond string, vals ...any) {
		where = append(where, cond)
		args = append(args, vals...)
		i += len(vals)
	}

	if f.CustomerID != nil {
		add(fmt.Sprintf("customer_id = $%d", i), *f.CustomerID)
	}
	if f.AssignedTo != nil {
		add(fmt.Sprintf("assigned_to = $%d", i), *f.AssignedTo)
	}
	if f.Type != nil {
		add(fmt.Sprintf("type = $%d", i), string(*f.Type))
	}
	if f.Status != nil {
		add(fmt.Sprintf("status = $%d", i), string(*f.Status))
	}
	if f.NotStatus != nil {
		add(fmt.Sprintf("status <> $%d", i), string(*f.NotStatus))
	}
	if f.RiskLevel != nil {
		add(fmt.Sprintf("risk_level = $%d", i), string(*f.RiskLevel))
	}
	if f.Archived != nil {
		add(fmt.Sprintf("archived = $%d", i), *f.Archived)
	}
	if f.AutoEscalate != nil {
		add(fmt.Sprintf("auto_escalate = $%d", i), *f.AutoEscalate)
	}
	if f.OverdueAsOf != nil {
		add(fmt.Sprintf("due_date < $%d AND status <> 'completed'", i), *f.OverdueAsOf)
	}
	if f.PendingReminderDueBy != nil {
		add(fmt.Sprintf(`
			EXISTS (
				SELECT 1 FROM jsonb_array_elements(reminders) rem
				WHERE rem->>'status' = 'pending'
				  AND (rem->>'scheduled_date')::timestamptz <= $%d
			)`, i), *f.PendingReminderDueBy)
	}
	if f.ExpiredDocumentAsOf != nil {
		add(fmt.Sprintf(`
			EXISTS (
				SELECT 1 FROM jsonb_array_elements(legal_documents) doc
				WHERE doc->>'status' = 'active'
				  AND doc->>'expires_at' IS NOT NULL
				  AND (doc->>'expires_at')::timestamptz < $%d
			)`, i), *f.ExpiredDocumentAsOf)
	}
	if f.AuditEntriesOver != nil {
		add(fmt.Sprintf("jsonb_array_length(audit_trail) > $%d", i), *f.AuditEntriesOver)
	}
	if f.CompletedBefore != nil {
		add(fmt.Sprintf("completed_at IS NOT NULL AND completed_at < $%d", i), *f.CompletedBefore)
	}
	if f.CreatedAfter != nil {
		add(fmt.Sprintf("created_at >= $%d", i), *f.CreatedAfter)
	}

	return strings.Join(where, " AND "), args
}

func taskValues(t *domain.Task) (cols []string, placeholders []string, args []any) {
	push := func(col string, v any) {
		cols = append(cols, col)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)+1))
		args = append(args, v)
	}

	push("id", t.ID)
	push("version", t.Version)
	push("customer_id", t.CustomerID)
	push("invoice_id", t.InvoiceID)
	push("type", string(t.Type))
	push("title", t.Title)
	push("description", t.Description)
	push("amount", t.Amount)
	push("due_date", t.DueDate)
	push("status", string(t.Status))
	push("priority", string(t.Priority))
	push("risk_level", string(t.RiskLevel))
	push("escalation_level", t.EscalationLevel)
	push("auto_escalate", t.AutoEscalate)
	push("escalation_threshold", t.EscalationThreshold)
	push("reminder_count", t.ReminderCount)
	push("max_reminders", t.MaxReminders)
	push("last_reminder_date", t.LastReminderDate)
	push("next_reminder_date", t.NextReminderDate)
	push("last_contact_date", t.LastContactDate)
	push("next_contact_date", t.NextContactDate)
	push("assigned_to", t.AssignedTo)
	push("created_by", t.CreatedBy)
	push("customer_contact", mustJSON(t.CustomerContact))
	push("assigned_contact", mustJSON(t.AssignedContact))
	push("creator_contact", mustJSON(t.CreatorContact))
	push("payment_plan", nullableJSON(t.PaymentPlan))
	push("reminders", mustJSON(emptySlice(t.Reminders)))
	push("escalation_rules", mustJSON(emptySlice(t.EscalationRules)))
	push("legal_documents", mustJSON(emptySlice(t.LegalDocuments)))
	push("communications", mustJSON(emptySlice(t.Communications)))
	push("audit_trail", mustJSON(emptySlice(t.AuditTrail)))
	push("archived", t.Archived)
	push("completed_at", t.CompletedAt)
	push("next_seq", t.NextSeq)
	push("created_at", t.CreatedAt)
	push("updated_at", t.UpdatedAt)
	return cols, placeholders, args
}

// emptySlice keeps jsonb columns as [] instead of null so that array
// predicates stay valid.
func emptySlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// all embedded records are plain structs; marshal cannot fail
		panic(err)
	}
	return data
}

func nullableJSON(v *domain.PaymentPlan) any {
	if v == nil {
		return nil
	}
	return mustJSON(v)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var t domain.Task
	var invoiceID sql.NullString
	var lastReminder, nextReminder, lastContact, nextContact, completedAt sql.NullTime
	var customerContact, assignedContact, creatorContact []byte
	var plan, reminders, rules, documents, communications, audit []byte

	if err := row.Scan(
		&t.ID,
		&t.Version,
		&t.CustomerID,
		&invoiceID,
		&t.Type,
		&t.Title,
		&t.Description,
		&t.Amount,
		&t.DueDate,
		&t.Status,
		&t.Priority,
		&t.RiskLevel,
		&t.EscalationLevel,
		&t.AutoEscalate,
		&t.EscalationThreshold,
		&t.ReminderCount,
		&t.MaxReminders,
		&lastReminder,
		&nextReminder,
		&lastContact,
		&nextContact,
		&t.AssignedTo,
		&t.CreatedBy,
		&customerContact,
		&assignedContact,
		&creatorContact,
		&plan,
		&reminders,
		&rules,
		&documents,
		&communications,
		&audit,
		&t.Archived,
		&completedAt,
		&t.NextSeq,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if invoiceID.Valid {
		v := invoiceID.String
		t.InvoiceID = &v
	}
	t.LastReminderDate = timeOrNil(lastReminder)
	t.NextReminderDate = timeOrNil(nextReminder)
	t.LastContactDate = timeOrNil(lastContact)
	t.NextContactDate = timeOrNil(nextContact)
	t.CompletedAt = timeOrNil(completedAt)

	for _, field := range []struct {
		data []byte
		dst  any
	}{
		{customerContact, &t.CustomerContact},
		{assignedContact, &t.AssignedContact},
		{creatorContact, &t.CreatorContact},
		{reminders, &t.Reminders},
		{rules, &t.EscalationRules},
		{documents, &t.LegalDocuments},
		{communications, &t.Communications},
		{audit, &t.AuditTrail},
	} {
		if len(field.data) == 0 {
			continue
		}
		if err := json.Unmarshal(field.data, field.dst); err != nil {
			return nil, fmt.Errorf("decode task %s: %w", t.ID, err)
		}
	}
	if len(plan) > 0 {
		var p domain.PaymentPlan
		if err := json.Unmarshal(plan, &p); err != nil {
			return nil, fmt.Errorf("decode task %s payment plan: %w", t.ID, err)
		}
		t.PaymentPlan = &p
	}

	return &t, nil
}

func timeOrNil(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	tm := v.Time
	return &tm
}
