package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"collections-engine/internal/domain"
	"collections-engine/internal/service"
	"collections-engine/internal/transport/auth"
)

// fakeBackend implements every handler dependency; each field overrides one
// method, unset methods fail the request with a not-found.
type fakeBackend struct {
	createTask      func(ctx context.Context, in service.CreateTaskInput) (*domain.Task, error)
	getTask         func(ctx context.Context, id string) (*domain.Task, error)
	updateTask      func(ctx context.Context, id string, patch service.TaskPatch, actor string) (*domain.Task, error)
	recordPayment   func(ctx context.Context, taskID string, amount float64, actor string) (*domain.Task, error)
	cancelReminder  func(ctx context.Context, taskID string, reminderID int64, actor string) (*domain.Task, error)
	addDocument     func(ctx context.Context, taskID, documentType, fileName string, data []byte, expiresAt *time.Time, actor string) (*domain.Task, error)
	archiveDocument func(ctx context.Context, taskID string, documentID int64, actor string) (*domain.Task, error)
	listOverdue     func(ctx context.Context) (*service.OverdueSet, error)
	startWeekly     func(ctx context.Context) (string, error)
}

func notFound() error { return &domain.NotFoundError{Resource: "task", ID: "missing"} }

func (f *fakeBackend) CreateTask(ctx context.Context, in service.CreateTaskInput) (*domain.Task, error) {
	if f.createTask == nil {
		return nil, notFound()
	}
	return f.createTask(ctx, in)
}

func (f *fakeBackend) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	if f.getTask == nil {
		return nil, notFound()
	}
	return f.getTask(ctx, id)
}

func (f *fakeBackend) UpdateTask(ctx context.Context, id string, patch service.TaskPatch, actor string) (*domain.Task, error) {
	if f.updateTask == nil {
		return nil, notFound()
	}
	return f.updateTask(ctx, id, patch, actor)
}

func (f *fakeBackend) AddCommunication(ctx context.Context, taskID, channel, summary string, nextContact *time.Time, actor string) (*domain.Task, error) {
	return nil, notFound()
}

func (f *fakeBackend) SetPaymentPlan(ctx context.Context, taskID string, plan domain.PaymentPlan, actor string) (*domain.Task, error) {
	return nil, notFound()
}

func (f *fakeBackend) AddEscalationRule(ctx context.Context, taskID string, triggerDays int, action domain.EscalationAction, actor string) (*domain.Task, error) {
	return nil, notFound()
}

func (f *fakeBackend) RecordPayment(ctx context.Context, taskID string, amount float64, actor string) (*domain.Task, error) {
	if f.recordPayment == nil {
		return nil, notFound()
	}
	return f.recordPayment(ctx, taskID, amount, actor)
}

func (f *fakeBackend) ListOverdue(ctx context.Context) (*service.OverdueSet, error) {
	if f.listOverdue == nil {
		return &service.OverdueSet{}, nil
	}
	return f.listOverdue(ctx)
}

func (f *fakeBackend) ScheduleReminder(ctx context.Context, taskID string, rtype domain.ReminderType, scheduledDate time.Time, template string, recipient domain.ReminderRecipient, actor string) (*domain.Task, error) {
	return nil, notFound()
}

func (f *fakeBackend) ListReminders(ctx context.Context, taskID string) ([]domain.Reminder, error) {
	return nil, notFound()
}

func (f *fakeBackend) CancelReminder(ctx context.Context, taskID string, reminderID int64, actor string) (*domain.Task, error) {
	if f.cancelReminder == nil {
		return nil, notFound()
	}
	return f.cancelReminder(ctx, taskID, reminderID, actor)
}

func (f *fakeBackend) MarkReminderSent(ctx context.Context, taskID string, reminderID int64, message, errorMessage string) (*domain.Task, error) {
	return nil, notFound()
}

func (f *fakeBackend) AddLegalDocument(ctx context.Context, taskID, documentType, fileName string, data []byte, expiresAt *time.Time, actor string) (*domain.Task, error) {
	if f.addDocument == nil {
		return nil, notFound()
	}
	return f.addDocument(ctx, taskID, documentType, fileName, data, expiresAt, actor)
}

func (f *fakeBackend) ListLegalDocuments(ctx context.Context, taskID string) ([]domain.LegalDocument, error) {
	return nil, notFound()
}

func (f *fakeBackend) ArchiveLegalDocument(ctx context.Context, taskID string, documentID int64, actor string) (*domain.Task, error) {
	if f.archiveDocument == nil {
		return nil, notFound()
	}
	return f.archiveDocument(ctx, taskID, documentID, actor)
}

func (f *fakeBackend) Stats(ctx context.Context) (*service.TaskStats, error) {
	return &service.TaskStats{}, nil
}

func (f *fakeBackend) Aging(ctx context.Context) (map[string]service.AgingBucket, error) {
	return map[string]service.AgingBucket{}, nil
}

func (f *fakeBackend) Rates(ctx context.Context) (*service.CollectionRates, error) {
	return &service.CollectionRates{}, nil
}

func (f *fakeBackend) StartWeeklyReport(ctx context.Context) (string, error) {
	if f.startWeekly == nil {
		return "reports:test", nil
	}
	return f.startWeekly(ctx)
}

func (f *fakeBackend) GetReports(ctx context.Context) ([]service.ReportStatus, error) {
	return nil, nil
}

func (f *fakeBackend) GetReport(ctx context.Context, reportID string) (*service.ReportStatus, error) {
	return nil, &domain.NotFoundError{Resource: "report", ID: reportID}
}

func newTestServer(f *fakeBackend) *httptest.Server {
	h := NewHandler(f, f, f, f)
	return httptest.NewServer(h.InitRouterWithAuth(auth.ActorMiddleware()))
}

func doJSON(t *testing.T, method, url, actor string, body string) (*http.Response, APIResponse) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if actor != "" {
		req.Header.Set("X-Actor-ID", actor)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	var parsed APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, parsed
}

func TestCreateTask_Created(t *testing.T) {
	backend := &fakeBackend{
		createTask: func(ctx context.Context, in service.CreateTaskInput) (*domain.Task, error) {
			if in.CustomerID != "cust-1" || in.CreatedBy != "agent-7" {
				t.Errorf("unexpected input: %+v", in)
			}
			return &domain.Task{ID: "task-1", CustomerID: in.CustomerID, Status: domain.StatusPending}, nil
		},
	}
	ts := newTestServer(backend)
	defer ts.Close()

	body := `{"customer_id":"cust-1","type":"payment_reminder","title":"Invoice","amount":100,"due_date":"2025-07-01"}`
	resp, parsed := doJSON(t, http.MethodPost, ts.URL+"/tasks", "agent-7", body)

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if parsed.Status != "success" {
		t.Fatalf("expected success envelope, got %+v", parsed)
	}
}

func TestCreateTask_MissingActor(t *testing.T) {
	ts := newTestServer(&fakeBackend{})
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/tasks", strings.NewReader(`{}`))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestCreateTask_BadDate(t *testing.T) {
	ts := newTestServer(&fakeBackend{})
	defer ts.Close()

	body := `{"customer_id":"cust-1","type":"other","due_date":"next tuesday"}`
	resp, parsed := doJSON(t, http.MethodPost, ts.URL+"/tasks", "agent-7", body)

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if !strings.Contains(parsed.Message, "due_date") {
		t.Fatalf("expected due_date in message, got %q", parsed.Message)
	}
}

func TestGetTask_NotFound(t *testing.T) {
	ts := newTestServer(&fakeBackend{})
	defer ts.Close()

	resp, parsed := doJSON(t, http.MethodGet, ts.URL+"/tasks/nope", "agent-7", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if parsed.Status != "error" {
		t.Fatalf("expected error envelope, got %+v", parsed)
	}
}

func TestRecordPayment_StateErrorMapsTo422(t *testing.T) {
	backend := &fakeBackend{
		recordPayment: func(ctx context.Context, taskID string, amount float64, actor string) (*domain.Task, error) {
			return nil, &domain.StateError{Message: "No payment plan found for this task"}
		},
	}
	ts := newTestServer(backend)
	defer ts.Close()

	resp, parsed := doJSON(t, http.MethodPost, ts.URL+"/tasks/task-1/payments", "agent-7", `{"amount":100}`)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	if parsed.Message != "No payment plan found for this task" {
		t.Fatalf("unexpected message: %q", parsed.Message)
	}
}

func TestUpdateTask_ConflictMapsTo409(t *testing.T) {
	backend := &fakeBackend{
		updateTask: func(ctx context.Context, id string, patch service.TaskPatch, actor string) (*domain.Task, error) {
			return nil, &domain.ConflictError{TaskID: id, Version: 3}
		},
	}
	ts := newTestServer(backend)
	defer ts.Close()

	resp, _ := doJSON(t, http.MethodPatch, ts.URL+"/tasks/task-1", "agent-7", `{"title":"new"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestCancelReminder_BadID(t *testing.T) {
	ts := newTestServer(&fakeBackend{})
	defer ts.Close()

	resp, _ := doJSON(t, http.MethodDelete, ts.URL+"/tasks/task-1/reminders/abc", "agent-7", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestUploadDocument(t *testing.T) {
	var gotName, gotType string
	var gotData []byte
	backend := &fakeBackend{
		addDocument: func(ctx context.Context, taskID, documentType, fileName string, data []byte, expiresAt *time.Time, actor string) (*domain.Task, error) {
			gotName, gotType, gotData = fileName, documentType, data
			return &domain.Task{ID: taskID}, nil
		},
	}
	ts := newTestServer(backend)
	defer ts.Close()

	buf := new(bytes.Buffer)
	mw := multipart.NewWriter(buf)
	fw, _ := mw.CreateFormFile("file", "contract.pdf")
	fw.Write([]byte("pdf bytes"))
	mw.WriteField("document_type", "contract")
	mw.Close()

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/tasks/task-1/documents", buf)
	req.Header.Set("X-Actor-ID", "agent-7")
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if gotName != "contract.pdf" || gotType != "contract" || string(gotData) != "pdf bytes" {
		t.Fatalf("upload not passed through: name=%q type=%q data=%q", gotName, gotType, gotData)
	}
}

func TestOverdueReport(t *testing.T) {
	backend := &fakeBackend{
		listOverdue: func(ctx context.Context) (*service.OverdueSet, error) {
			return &service.OverdueSet{
				Tasks:       []domain.Task{{ID: "a", Amount: 100}, {ID: "b", Amount: 250}},
				TotalAmount: 350,
			}, nil
		},
	}
	ts := newTestServer(backend)
	defer ts.Close()

	resp, parsed := doJSON(t, http.MethodGet, ts.URL+"/reports/overdue", "agent-7", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	data, ok := parsed.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("expected object data, got %T", parsed.Data)
	}
	if data["count"].(float64) != 2 || data["total_amount"].(float64) != 350 {
		t.Fatalf("unexpected payload: %+v", data)
	}
}

func TestStartWeeklyReport_Accepted(t *testing.T) {
	ts := newTestServer(&fakeBackend{})
	defer ts.Close()

	resp, parsed := doJSON(t, http.MethodPost, ts.URL+"/reports/weekly", "agent-7", "")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	data := parsed.Data.(map[string]interface{})
	if data["report_id"] != "reports:test" {
		t.Fatalf("unexpected report id: %v", data["report_id"])
	}
}
