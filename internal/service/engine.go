package service

import (
	"context"
	"time"

	"collections-engine/internal/domain"
	"collections-engine/internal/repository"
)

// TaskStore is the persistent case store. All engine components read and
// write through it; Save performs an optimistic version check and returns
// domain.ConflictError on stale writes.
type TaskStore interface {
	FindByID(ctx context.Context, id string) (*domain.Task, error)
	List(ctx context.Context, f repository.TaskFilter) ([]domain.Task, error)
	Create(ctx context.Context, t *domain.Task) error
	Save(ctx context.Context, t *domain.Task) error
	GroupCount(ctx context.Context, groupBy string, f repository.TaskFilter) (map[string]int64, error)
	SumAmount(ctx context.Context, f repository.TaskFilter) (float64, error)
	Count(ctx context.Context, f repository.TaskFilter) (int64, error)
}

// NotificationGateway delivers outbound messages. A timeout or transport
// failure is reported as an error and treated as a delivery failure by the
// dispatcher; it never aborts a batch.
type NotificationGateway interface {
	SendEmail(ctx context.Context, to, subject, body string) error
	SendSMS(ctx context.Context, to, body string) error
}

// DocumentStorage holds legal-document files.
type DocumentStorage interface {
	Save(ctx context.Context, fileName string, data []byte) (string, error)
	Load(ctx context.Context, fileName string) ([]byte, error)
}

// DocumentArchive is the long-term bucket expired or closed documents are
// copied into.
type DocumentArchive interface {
	Upload(ctx context.Context, objectName string, data []byte, contentType string) (string, error)
}

// EventNotifier pushes engine events to connected staff. All methods are
// best-effort; the engine never fails an operation over a notification.
type EventNotifier interface {
	NotifyReminderOutcome(ctx context.Context, actorID, taskID string, reminderID int64, status domain.ReminderStatus, detail string)
	NotifyEscalation(ctx context.Context, actorID, taskID string, ruleID int64, action domain.EscalationAction)
}

// Clock abstracts wall-clock time so jobs and tests control "now".
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func SystemClock() Clock { return systemClock{} }

// EscalationPolicy selects how many eligible rules one sweep may fire.
type EscalationPolicy string

const (
	// EscalateSingleFire fires only the first eligible rule per check.
	EscalateSingleFire EscalationPolicy = "single-fire"
	// EscalateCascade fires every eligible unexecuted rule in one pass.
	EscalateCascade EscalationPolicy = "cascade"
)

type EngineOptions struct {
	Clock            Clock
	Notifier         EventNotifier
	EscalationPolicy EscalationPolicy
}

// Engine owns every mutation of a collections case: aggregate updates,
// payment-plan bookkeeping, escalation checks, reminder dispatch, legal
// documents, and the periodic maintenance passes.
type Engine struct {
	store    TaskStore
	gateway  NotificationGateway
	storage  DocumentStorage
	archive  DocumentArchive
	clock    Clock
	notifier EventNotifier
	policy   EscalationPolicy
}

func NewEngine(store TaskStore, gateway NotificationGateway, storage DocumentStorage, archive DocumentArchive, opts EngineOptions) *Engine {
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock()
	}
	policy := opts.EscalationPolicy
	if policy == "" {
		policy = EscalateSingleFire
	}
	return &Engine{
		store:    store,
		gateway:  gateway,
		storage:  storage,
		archive:  archive,
		clock:    clock,
		notifier: opts.Notifier,
		policy:   policy,
	}
}

// audit appends one entry to the case trail. Values are stored verbatim;
// insertion order is the only ordering guarantee.
func (e *Engine) audit(t *domain.Task, action, description, actor, previous, current string) {
	t.AuditTrail = append(t.AuditTrail, domain.AuditEntry{
		ID:            t.NextRecordID(),
		Action:        action,
		Description:   description,
		PerformedBy:   actor,
		PerformedAt:   e.clock.Now(),
		PreviousValue: previous,
		NewValue:      current,
	})
}

func (e *Engine) touch(t *domain.Task) {
	t.UpdatedAt = e.clock.Now()
}
