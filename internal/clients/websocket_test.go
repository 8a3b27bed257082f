package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"collections-engine/internal/domain"
	ws "collections-engine/internal/transport/websocket"

	"github.com/gorilla/websocket"
)

func startHub(t *testing.T) (*ws.Hub, *httptest.Server, func()) {
	t.Helper()
	hub := ws.NewHub()
	ctx, cancel := context.WithCancel(context.Background())

	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.HandleWebSocket(w, r, r.URL.Query().Get("actor"))
	}))

	return hub, server, func() {
		server.Close()
		cancel()
	}
}

func connectActor(t *testing.T, server *httptest.Server, actor string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + server.URL[4:] + "?actor=" + actor
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	return conn
}

func messageData(t *testing.T, m *ws.Message) map[string]interface{} {
	t.Helper()
	raw, err := json.Marshal(m.Data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	return data
}

func TestWebSocketClient_NotifyReminderOutcome(t *testing.T) {
	hub, server, stop := startHub(t)
	defer stop()

	conn := connectActor(t, server, "agent-7")
	defer conn.Close()

	client := NewWebSocketClient(hub)
	client.NotifyReminderOutcome(context.Background(), "agent-7", "task-1", 3, domain.ReminderFailed, "Invalid email address")

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var received ws.Message
	if err := conn.ReadJSON(&received); err != nil {
		t.Fatalf("failed to read message: %v", err)
	}

	if received.Type != "reminder_outcome" {
		t.Errorf("expected type 'reminder_outcome', got '%s'", received.Type)
	}
	if received.Channel != "collections.reminders#agent-7" {
		t.Errorf("unexpected channel '%s'", received.Channel)
	}

	data := messageData(t, &received)
	if data["task_id"] != "task-1" {
		t.Errorf("expected task_id 'task-1', got '%v'", data["task_id"])
	}
	if data["status"] != "failed" {
		t.Errorf("expected status 'failed', got '%v'", data["status"])
	}
	if data["detail"] != "Invalid email address" {
		t.Errorf("expected detail with the failure reason, got '%v'", data["detail"])
	}
}

func TestWebSocketClient_NotifyEscalation(t *testing.T) {
	hub, server, stop := startHub(t)
	defer stop()

	conn := connectActor(t, server, "agent-7")
	defer conn.Close()

	client := NewWebSocketClient(hub)
	client.NotifyEscalation(context.Background(), "agent-7", "task-1", 2, domain.ActionChangePriority)

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var received ws.Message
	if err := conn.ReadJSON(&received); err != nil {
		t.Fatalf("failed to read message: %v", err)
	}

	if received.Type != "escalation_fired" {
		t.Errorf("expected type 'escalation_fired', got '%s'", received.Type)
	}
	data := messageData(t, &received)
	if data["action"] != "change_priority" {
		t.Errorf("expected action 'change_priority', got '%v'", data["action"])
	}
}

func TestWebSocketClient_NotifyReportReadyReachesEveryone(t *testing.T) {
	hub, server, stop := startHub(t)
	defer stop()

	conn1 := connectActor(t, server, "agent-7")
	defer conn1.Close()
	conn2 := connectActor(t, server, "agent-8")
	defer conn2.Close()

	client := NewWebSocketClient(hub)
	client.NotifyReportReady(context.Background(), "reports:abc", "https://example.com/weekly.xlsx", "collections_weekly_20250615.xlsx")

	for i, conn := range []*websocket.Conn{conn1, conn2} {
		conn.SetReadDeadline(time.Now().Add(time.Second))
		var received ws.Message
		if err := conn.ReadJSON(&received); err != nil {
			t.Fatalf("connection %d failed to read: %v", i, err)
		}
		if received.Type != "report_ready" {
			t.Errorf("connection %d: expected 'report_ready', got '%s'", i, received.Type)
		}
		data := messageData(t, &received)
		if data["url"] != "https://example.com/weekly.xlsx" {
			t.Errorf("connection %d: unexpected url '%v'", i, data["url"])
		}
	}
}

func TestWebSocketClient_NilHub(t *testing.T) {
	client := NewWebSocketClient(nil)

	// must be safe no-ops
	client.NotifyReminderOutcome(context.Background(), "agent-7", "task-1", 1, domain.ReminderSent, "")
	client.NotifyEscalation(context.Background(), "agent-7", "task-1", 1, domain.ActionLegalReview)
	client.NotifyReportReady(context.Background(), "reports:abc", "url", "file.xlsx")
}
