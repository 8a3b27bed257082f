package domain

import "time"

type CollectionsType string

const (
	TypePaymentReminder CollectionsType = "payment_reminder"
	TypeOverdueNotice   CollectionsType = "overdue_notice"
	TypePaymentPlan     CollectionsType = "payment_plan"
	TypeNegotiation     CollectionsType = "negotiation"
	TypeLegalAction     CollectionsType = "legal_action"
	TypeOther           CollectionsType = "other"
)

type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
	StatusCancelled  TaskStatus = "cancelled"
)

type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Contact is the snapshot of a person reachable by the reminder dispatcher.
// Snapshots are maintained by the upstream CRM; the engine only reads them.
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Task is the collections case aggregate. It is the single consistency
// boundary: every sub-record (plan, reminders, rules, documents, audit
// entries, communications) lives inside it and is addressed by a per-case
// sequence id, never by a global reference.
type Task struct {
	ID      string
	Version int64

	CustomerID string
	InvoiceID  *string

	Type        CollectionsType
	Title       string
	Description string

	Amount  float64
	DueDate time.Time

	Status    TaskStatus
	Priority  Priority
	RiskLevel RiskLevel

	EscalationLevel     int
	AutoEscalate        bool
	EscalationThreshold int

	ReminderCount    int
	MaxReminders     int
	LastReminderDate *time.Time
	NextReminderDate *time.Time

	LastContactDate *time.Time
	NextContactDate *time.Time

	AssignedTo string
	CreatedBy  string

	CustomerContact Contact
	AssignedContact Contact
	CreatorContact  Contact

	PaymentPlan     *PaymentPlan
	Reminders       []Reminder
	EscalationRules []EscalationRule
	LegalDocuments  []LegalDocument
	Communications  []Communication
	AuditTrail      []AuditEntry

	Archived    bool
	CompletedAt *time.Time

	// NextSeq is the per-case id allocator for sub-records.
	NextSeq int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NextRecordID hands out the next case-local sub-record id.
func (t *Task) NextRecordID() int64 {
	t.NextSeq++
	return t.NextSeq
}

// Overdue is computed, never stored.
func (t *Task) Overdue(now time.Time) bool {
	return t.DueDate.Before(now) && t.Status != StatusCompleted
}

// DaysOverdue returns whole days past the due date, negative when not yet due.
func (t *Task) DaysOverdue(now time.Time) int {
	return int(now.Sub(t.DueDate).Hours() / 24)
}

// FindReminder returns the reminder with the given case-local id, or nil.
func (t *Task) FindReminder(id int64) *Reminder {
	for i := range t.Reminders {
		if t.Reminders[i].ID == id {
			return &t.Reminders[i]
		}
	}
	return nil
}

// FindLegalDocument returns the document with the given case-local id, or nil.
func (t *Task) FindLegalDocument(id int64) *LegalDocument {
	for i := range t.LegalDocuments {
		if t.LegalDocuments[i].ID == id {
			return &t.LegalDocuments[i]
		}
	}
	return nil
}

type InstallmentFrequency string

const (
	InstallmentWeekly    InstallmentFrequency = "weekly"
	InstallmentBiWeekly  InstallmentFrequency = "bi-weekly"
	InstallmentMonthly   InstallmentFrequency = "monthly"
	InstallmentQuarterly InstallmentFrequency = "quarterly"
)

type ReminderFrequency string

const (
	RemindDaily    ReminderFrequency = "daily"
	RemindWeekly   ReminderFrequency = "weekly"
	RemindBiWeekly ReminderFrequency = "bi-weekly"
	RemindMonthly  ReminderFrequency = "monthly"
)

type PaymentPlan struct {
	TotalAmount          float64              `json:"total_amount"`
	InstallmentAmount    float64              `json:"installment_amount"`
	NumberOfInstallments int                  `json:"number_of_installments"`
	InstallmentFrequency InstallmentFrequency `json:"installment_frequency"`
	NextPaymentDate      time.Time            `json:"next_payment_date"`
	PaymentsMade         int                  `json:"payments_made"`
	TotalPaid            float64              `json:"total_paid"`
	ReminderFrequency    ReminderFrequency    `json:"reminder_frequency"`
}

// RemainingBalance never goes below zero even if the plan was overpaid.
func (p *PaymentPlan) RemainingBalance() float64 {
	if p.TotalPaid >= p.TotalAmount {
		return 0
	}
	return p.TotalAmount - p.TotalPaid
}

type ReminderType string

const (
	ReminderEmail  ReminderType = "email"
	ReminderSMS    ReminderType = "sms"
	ReminderLetter ReminderType = "letter"
	ReminderPhone  ReminderType = "phone"
)

type ReminderStatus string

const (
	ReminderPending   ReminderStatus = "pending"
	ReminderSent      ReminderStatus = "sent"
	ReminderFailed    ReminderStatus = "failed"
	ReminderCancelled ReminderStatus = "cancelled"
)

type ReminderRecipient string

const (
	RecipientCustomer     ReminderRecipient = "customer"
	RecipientAssignedUser ReminderRecipient = "assigned_user"
	RecipientManager      ReminderRecipient = "manager"
)

type Reminder struct {
	ID            int64             `json:"id"`
	Type          ReminderType      `json:"type"`
	ScheduledDate time.Time         `json:"scheduled_date"`
	SentDate      *time.Time        `json:"sent_date,omitempty"`
	Status        ReminderStatus    `json:"status"`
	Template      string            `json:"template"`
	Recipient     ReminderRecipient `json:"recipient"`
	Message       string            `json:"message,omitempty"`
	ErrorMessage  string            `json:"error_message,omitempty"`
}

type EscalationAction string

const (
	ActionNotifyManager      EscalationAction = "notify_manager"
	ActionChangePriority     EscalationAction = "change_priority"
	ActionAssignToSpecialist EscalationAction = "assign_to_specialist"
	ActionLegalReview        EscalationAction = "legal_review"
)

type EscalationRule struct {
	ID          int64            `json:"id"`
	TriggerDays int              `json:"trigger_days"`
	Action      EscalationAction `json:"action"`
	Executed    bool             `json:"executed"`
	ExecutedAt  *time.Time       `json:"executed_at,omitempty"`
	ExecutedBy  string           `json:"executed_by,omitempty"`
}

type DocumentStatus string

const (
	DocumentActive   DocumentStatus = "active"
	DocumentExpired  DocumentStatus = "expired"
	DocumentArchived DocumentStatus = "archived"
)

type LegalDocument struct {
	ID           int64          `json:"id"`
	DocumentType string         `json:"document_type"`
	FileName     string         `json:"file_name"`
	StoragePath  string         `json:"storage_path"`
	ArchivePath  string         `json:"archive_path,omitempty"`
	Status       DocumentStatus `json:"status"`
	ExpiresAt    *time.Time     `json:"expires_at,omitempty"`
	UploadedBy   string         `json:"uploaded_by"`
	UploadedAt   time.Time      `json:"uploaded_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

type Communication struct {
	ID      int64     `json:"id"`
	Channel string    `json:"channel"`
	Summary string    `json:"summary"`
	Actor   string    `json:"actor"`
	At      time.Time `json:"at"`
}

type AuditEntry struct {
	ID            int64     `json:"id"`
	Action        string    `json:"action"`
	Description   string    `json:"description"`
	PerformedBy   string    `json:"performed_by"`
	PerformedAt   time.Time `json:"performed_at"`
	PreviousValue string    `json:"previous_value,omitempty"`
	NewValue      string    `json:"new_value,omitempty"`
}

const (
	DefaultMaxReminders = 5
	MaxEscalationLevel  = 5
	AuditRetainEntries  = 1000
)

func ValidCollectionsType(v CollectionsType) bool {
	switch v {
	case TypePaymentReminder, TypeOverdueNotice, TypePaymentPlan, TypeNegotiation, TypeLegalAction, TypeOther:
		return true
	}
	return false
}

func ValidTaskStatus(v TaskStatus) bool {
	switch v {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func ValidRiskLevel(v RiskLevel) bool {
	switch v {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}

func ValidPriority(v Priority) bool {
	switch v {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

func ValidReminderType(v ReminderType) bool {
	switch v {
	case ReminderEmail, ReminderSMS, ReminderLetter, ReminderPhone:
		return true
	}
	return false
}

func ValidReminderRecipient(v ReminderRecipient) bool {
	switch v {
	case RecipientCustomer, RecipientAssignedUser, RecipientManager:
		return true
	}
	return false
}

func ValidEscalationAction(v EscalationAction) bool {
	switch v {
	case ActionNotifyManager, ActionChangePriority, ActionAssignToSpecialist, ActionLegalReview:
		return true
	}
	return false
}

func ValidInstallmentFrequency(v InstallmentFrequency) bool {
	switch v {
	case InstallmentWeekly, InstallmentBiWeekly, InstallmentMonthly, InstallmentQuarterly:
		return true
	}
	return false
}

func ValidReminderFrequency(v ReminderFrequency) bool {
	switch v {
	case RemindDaily, RemindWeekly, RemindBiWeekly, RemindMonthly:
		return true
	}
	return false
}
