package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"collections-engine/internal/domain"
	"collections-engine/internal/repository"
)

// fakeClock lets tests pin and advance "now".
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fakeStore struct {
	mu    sync.Mutex
	tasks map[string]*domain.Task

	saveCount   int
	failSaveFor string // task id whose next Save returns ConflictError
}

func newFakeStore() *fakeStore {
	return &fakeStore{tasks: map[string]*domain.Task{}}
}

func (s *fakeStore) put(t *domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := cloneTask(t)
	s.tasks[t.ID] = cp
}

func cloneTask(t *domain.Task) *domain.Task {
	cp := *t
	cp.Reminders = append([]domain.Reminder(nil), t.Reminders...)
	cp.EscalationRules = append([]domain.EscalationRule(nil), t.EscalationRules...)
	cp.LegalDocuments = append([]domain.LegalDocument(nil), t.LegalDocuments...)
	cp.Communications = append([]domain.Communication(nil), t.Communications...)
	cp.AuditTrail = append([]domain.AuditEntry(nil), t.AuditTrail...)
	if t.PaymentPlan != nil {
		plan := *t.PaymentPlan
		cp.PaymentPlan = &plan
	}
	return &cp
}

func (s *fakeStore) FindByID(ctx context.Context, id string) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, &domain.NotFoundError{Resource: "task", ID: id}
	}
	return cloneTask(t), nil
}

func (s *fakeStore) Create(ctx context.Context, t *domain.Task) error {
	t.Version = 1
	s.put(t)
	return nil
}

func (s *fakeStore) Save(ctx context.Context, t *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveCount++
	if _, ok := s.tasks[t.ID]; !ok {
		return &domain.NotFoundError{Resource: "task", ID: t.ID}
	}
	if s.failSaveFor == t.ID {
		s.failSaveFor = ""
		return &domain.ConflictError{TaskID: t.ID, Version: t.Version}
	}
	t.Version++
	s.tasks[t.ID] = cloneTask(t)
	return nil
}

func (s *fakeStore) List(ctx context.Context, f repository.TaskFilter) ([]domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.tasks))
	for id := range s.tasks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return s.tasks[ids[i]].CreatedAt.Before(s.tasks[ids[j]].CreatedAt)
	})

	var out []domain.Task
	for _, id := range ids {
		t := s.tasks[id]
		if matchesFilter(t, f) {
			out = append(out, *cloneTask(t))
		}
	}
	return out, nil
}

func (s *fakeStore) Count(ctx context.Context, f repository.TaskFilter) (int64, error) {
	tasks, _ := s.List(ctx, f)
	return int64(len(tasks)), nil
}

func (s *fakeStore) SumAmount(ctx context.Context, f repository.TaskFilter) (float64, error) {
	tasks, _ := s.List(ctx, f)
	var sum float64
	for _, t := range tasks {
		sum += t.Amount
	}
	return sum, nil
}

func (s *fakeStore) GroupCount(ctx context.Context, groupBy string, f repository.TaskFilter) (map[string]int64, error) {
	tasks, _ := s.List(ctx, f)
	out := map[string]int64{}
	for _, t := range tasks {
		switch groupBy {
		case "type":
			out[string(t.Type)]++
		case "risk_level":
			out[string(t.RiskLevel)]++
		case "status":
			out[string(t.Status)]++
		case "priority":
			out[string(t.Priority)]++
		default:
			return nil, fmt.Errorf("unsupported group column %q", groupBy)
		}
	}
	return out, nil
}

func matchesFilter(t *domain.Task, f repository.TaskFilter) bool {
	if f.CustomerID != nil && t.CustomerID != *f.CustomerID {
		return false
	}
	if f.AssignedTo != nil && t.AssignedTo != *f.AssignedTo {
		return false
	}
	if f.Type != nil && t.Type != *f.Type {
		return false
	}
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.NotStatus != nil && t.Status == *f.NotStatus {
		return false
	}
	if f.RiskLevel != nil && t.RiskLevel != *f.RiskLevel {
		return false
	}
	if f.Archived != nil && t.Archived != *f.Archived {
		return false
	}
	if f.AutoEscalate != nil && t.AutoEscalate != *f.AutoEscalate {
		return false
	}
	if f.OverdueAsOf != nil && !t.Overdue(*f.OverdueAsOf) {
		return false
	}
	if f.PendingReminderDueBy != nil {
		due := false
		for _, r := range t.Reminders {
			if r.Status == domain.ReminderPending && !r.ScheduledDate.After(*f.PendingReminderDueBy) {
				due = true
				break
			}
		}
		if !due {
			return false
		}
	}
	if f.ExpiredDocumentAsOf != nil {
		expired := false
		for _, d := range t.LegalDocuments {
			if d.Status == domain.DocumentActive && d.ExpiresAt != nil && d.ExpiresAt.Before(*f.ExpiredDocumentAsOf) {
				expired = true
				break
			}
		}
		if !expired {
			return false
		}
	}
	if f.AuditEntriesOver != nil && len(t.AuditTrail) <= *f.AuditEntriesOver {
		return false
	}
	if f.CompletedBefore != nil && (t.CompletedAt == nil || !t.CompletedAt.Before(*f.CompletedBefore)) {
		return false
	}
	if f.CreatedAfter != nil && t.CreatedAt.Before(*f.CreatedAfter) {
		return false
	}
	return true
}

type sentEmail struct {
	To      string
	Subject string
	Body    string
}

type sentSMS struct {
	To   string
	Body string
}

type fakeGateway struct {
	emails []sentEmail
	sms    []sentSMS

	emailErr error
	smsErr   error
}

func (g *fakeGateway) SendEmail(ctx context.Context, to, subject, body string) error {
	if g.emailErr != nil {
		return g.emailErr
	}
	g.emails = append(g.emails, sentEmail{To: to, Subject: subject, Body: body})
	return nil
}

func (g *fakeGateway) SendSMS(ctx context.Context, to, body string) error {
	if g.smsErr != nil {
		return g.smsErr
	}
	g.sms = append(g.sms, sentSMS{To: to, Body: body})
	return nil
}

type fakeStorage struct {
	files   map[string][]byte
	saveErr error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{files: map[string][]byte{}}
}

func (s *fakeStorage) Save(ctx context.Context, fileName string, data []byte) (string, error) {
	if s.saveErr != nil {
		return "", s.saveErr
	}
	name := "stored_" + fileName
	s.files[name] = append([]byte(nil), data...)
	return name, nil
}

func (s *fakeStorage) Load(ctx context.Context, fileName string) ([]byte, error) {
	data, ok := s.files[fileName]
	if !ok {
		return nil, errors.New("file not found: " + fileName)
	}
	return data, nil
}

type fakeArchive struct {
	objects map[string][]byte
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{objects: map[string][]byte{}}
}

func (a *fakeArchive) Upload(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	a.objects[objectName] = append([]byte(nil), data...)
	return "archive/" + objectName, nil
}

type notifiedOutcome struct {
	ActorID    string
	TaskID     string
	ReminderID int64
	Status     domain.ReminderStatus
	Detail     string
}

type notifiedEscalation struct {
	ActorID string
	TaskID  string
	RuleID  int64
	Action  domain.EscalationAction
}

type fakeNotifier struct {
	outcomes    []notifiedOutcome
	escalations []notifiedEscalation
}

func (n *fakeNotifier) NotifyReminderOutcome(ctx context.Context, actorID, taskID string, reminderID int64, status domain.ReminderStatus, detail string) {
	n.outcomes = append(n.outcomes, notifiedOutcome{actorID, taskID, reminderID, status, detail})
}

func (n *fakeNotifier) NotifyEscalation(ctx context.Context, actorID, taskID string, ruleID int64, action domain.EscalationAction) {
	n.escalations = append(n.escalations, notifiedEscalation{actorID, taskID, ruleID, action})
}

type testEnv struct {
	engine   *Engine
	store    *fakeStore
	gateway  *fakeGateway
	storage  *fakeStorage
	archive  *fakeArchive
	notifier *fakeNotifier
	clock    *fakeClock
}

func newTestEnv(opts ...func(*EngineOptions)) *testEnv {
	env := &testEnv{
		store:    newFakeStore(),
		gateway:  &fakeGateway{},
		storage:  newFakeStorage(),
		archive:  newFakeArchive(),
		notifier: &fakeNotifier{},
		clock:    &fakeClock{now: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)},
	}
	o := EngineOptions{Clock: env.clock, Notifier: env.notifier}
	for _, opt := range opts {
		opt(&o)
	}
	env.engine = NewEngine(env.store, env.gateway, env.storage, env.archive, o)
	return env
}

// seedTask stores a ready-made case and returns its id.
func (env *testEnv) seedTask(t *domain.Task) string {
	if t.ID == "" {
		t.ID = "task-1"
	}
	if t.Version == 0 {
		t.Version = 1
	}
	if t.Status == "" {
		t.Status = domain.StatusPending
	}
	if t.MaxReminders == 0 {
		t.MaxReminders = domain.DefaultMaxReminders
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = env.clock.now
	}
	env.store.put(t)
	return t.ID
}

func (env *testEnv) lastAudit(id string) *domain.AuditEntry {
	t, err := env.store.FindByID(context.Background(), id)
	if err != nil || len(t.AuditTrail) == 0 {
		return nil
	}
	return &t.AuditTrail[len(t.AuditTrail)-1]
}
