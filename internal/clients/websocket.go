package clients

import (
	"context"

	"collections-engine/internal/domain"
	ws "collections-engine/internal/transport/websocket"
)

// WebSocketClient pushes engine events to connected staff through the hub.
// It satisfies both the engine's EventNotifier and the report service's
// ReportNotifier.
type WebSocketClient struct {
	hub *ws.Hub
}

func NewWebSocketClient(hub *ws.Hub) *WebSocketClient {
	return &WebSocketClient{
		hub: hub,
	}
}

func (c *WebSocketClient) NotifyReminderOutcome(
	ctx context.Context,
	actorID, taskID string,
	reminderID int64,
	status domain.ReminderStatus,
	detail string,
) {
	if c.hub == nil || actorID == "" {
		return
	}

	message := &ws.Message{
		Type:    "reminder_outcome",
		Channel: "collections.reminders#" + actorID,
		Data: map[string]interface{}{
			"task_id":     taskID,
			"reminder_id": reminderID,
			"status":      string(status),
			"detail":      detail,
		},
	}

	c.hub.Broadcast(actorID, message)
}

func (c *WebSocketClient) NotifyEscalation(
	ctx context.Context,
	actorID, taskID string,
	ruleID int64,
	action domain.EscalationAction,
) {
	if c.hub == nil || actorID == "" {
		return
	}

	message := &ws.Message{
		Type:    "escalation_fired",
		Channel: "collections.escalations#" + actorID,
		Data: map[string]interface{}{
			"task_id": taskID,
			"rule_id": ruleID,
			"action":  string(action),
		},
	}

	c.hub.Broadcast(actorID, message)
}

// NotifyReportReady goes to every connected actor; reports are not owned by
// a single assignee.
func (c *WebSocketClient) NotifyReportReady(ctx context.Context, reportID, url, fileName string) {
	if c.hub == nil {
		return
	}

	message := &ws.Message{
		Type:    "report_ready",
		Channel: "collections.reports",
		Data: map[string]interface{}{
			"id":       reportID,
			"url":      url,
			"filename": fileName,
		},
	}

	c.hub.BroadcastAll(message)
}
