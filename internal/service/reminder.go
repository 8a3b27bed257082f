package service

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"collections-engine/internal/domain"
	"collections-engine/internal/repository"
)

const smsMaxLength = 160

var phonePattern = regexp.MustCompile(`^[+\d\s()\-]+$`)

// ScheduleReminder appends a pending reminder and moves nextReminderDate to
// its slot. The scheduled date may lie in the past; dispatch simply picks it
// up on the next tick.
func (e *Engine) ScheduleReminder(ctx context.Context, taskID string, rtype domain.ReminderType, scheduledDate time.Time, template string, recipient domain.ReminderRecipient, actor string) (*domain.Task, error) {
	if !domain.ValidReminderType(rtype) {
		return nil, &domain.ValidationError{Field: "type", Message: fmt.Sprintf("unknown reminder type %q", rtype)}
	}
	if scheduledDate.IsZero() {
		return nil, &domain.ValidationError{Field: "scheduled_date", Message: "scheduled date is required"}
	}
	if recipient == "" {
		recipient = domain.RecipientCustomer
	}
	if !domain.ValidReminderRecipient(recipient) {
		return nil, &domain.ValidationError{Field: "recipient", Message: fmt.Sprintf("unknown recipient %q", recipient)}
	}

	t, err := e.store.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.ReminderCount >= t.MaxReminders {
		return nil, &domain.StateError{Message: "Maximum reminders reached for this task"}
	}

	t.Reminders = append(t.Reminders, domain.Reminder{
		ID:            t.NextRecordID(),
		Type:          rtype,
		ScheduledDate: scheduledDate,
		Status:        domain.ReminderPending,
		Template:      template,
		Recipient:     recipient,
	})
	t.ReminderCount++
	t.NextReminderDate = &scheduledDate
	e.audit(t, "reminder_scheduled",
		fmt.Sprintf("%s reminder to %s for %s", rtype, recipient, scheduledDate.Format("2006-01-02")),
		actor, "", string(rtype))
	e.touch(t)

	if err := e.store.Save(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (e *Engine) ListReminders(ctx context.Context, taskID string) ([]domain.Reminder, error) {
	t, err := e.store.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return t.Reminders, nil
}

// CancelReminder flips the reminder to cancelled; dispatch only considers
// pending reminders, so the slot is silently skipped at its scheduled time.
func (e *Engine) CancelReminder(ctx context.Context, taskID string, reminderID int64, actor string) (*domain.Task, error) {
	t, err := e.store.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	r := t.FindReminder(reminderID)
	if r == nil {
		return nil, &domain.NotFoundError{Resource: "reminder", ID: fmt.Sprintf("%d", reminderID)}
	}

	r.Status = domain.ReminderCancelled
	e.audit(t, "reminder_cancelled",
		fmt.Sprintf("%s reminder for %s cancelled", r.Type, r.ScheduledDate.Format("2006-01-02")),
		actor, string(domain.ReminderPending), string(domain.ReminderCancelled))
	e.touch(t)

	if err := e.store.Save(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// MarkReminderSent records a delivery outcome reported by an external
// collaborator. An empty errorMessage marks the reminder sent, otherwise
// failed.
func (e *Engine) MarkReminderSent(ctx context.Context, taskID string, reminderID int64, message, errorMessage string) (*domain.Task, error) {
	t, err := e.store.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	r := t.FindReminder(reminderID)
	if r == nil {
		return nil, &domain.NotFoundError{Resource: "reminder", ID: fmt.Sprintf("%d", reminderID)}
	}

	now := e.clock.Now()
	if errorMessage == "" {
		r.Status = domain.ReminderSent
		r.SentDate = &now
		r.Message = message
		r.ErrorMessage = ""
	} else {
		r.Status = domain.ReminderFailed
		r.ErrorMessage = errorMessage
	}
	t.LastReminderDate = &now
	e.touch(t)

	if err := e.store.Save(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// ProcessPendingReminders is the 15-minute job body. It queries every case
// holding a due pending reminder and dispatches them sequentially in stored
// order. Failures are isolated per reminder and per case.
func (e *Engine) ProcessPendingReminders(ctx context.Context) {
	now := e.clock.Now()
	archived := false
	tasks, err := e.store.List(ctx, repository.TaskFilter{
		PendingReminderDueBy: &now,
		Archived:             &archived,
	})
	if err != nil {
		log.Printf("[reminders] dispatch query failed: %v", err)
		return
	}

	for i := range tasks {
		t := &tasks[i]
		dispatched := false
		for j := range t.Reminders {
			r := &t.Reminders[j]
			if r.Status != domain.ReminderPending || r.ScheduledDate.After(now) {
				continue
			}
			e.dispatchReminder(ctx, t, r)
			dispatched = true
		}
		if !dispatched {
			continue
		}
		if err := e.store.Save(ctx, t); err != nil {
			log.Printf("[reminders] save task %s failed: %v", t.ID, err)
		}
	}
}

// dispatchReminder resolves the recipient, renders the message, validates the
// target, and hands the result to the gateway. lastReminderDate moves on both
// outcomes; with a payment plan, nextReminderDate is recomputed from the
// plan's reminder frequency.
func (e *Engine) dispatchReminder(ctx context.Context, t *domain.Task, r *domain.Reminder) {
	now := e.clock.Now()

	contact := resolveRecipient(t, r.Recipient)
	if contact == nil || (contact.Email == "" && contact.Phone == "") {
		e.finishDispatch(ctx, t, r, now, "", "No recipient contact information")
		return
	}

	message := buildReminderMessage(t)

	switch r.Type {
	case domain.ReminderEmail:
		if !strings.Contains(contact.Email, "@") {
			e.finishDispatch(ctx, t, r, now, "", "Invalid email address")
			return
		}
		subject := fmt.Sprintf("Payment reminder: %s", t.Title)
		if err := e.gateway.SendEmail(ctx, contact.Email, subject, message); err != nil {
			e.finishDispatch(ctx, t, r, now, "", err.Error())
			return
		}
		e.finishDispatch(ctx, t, r, now, message, "")

	case domain.ReminderSMS:
		if contact.Phone == "" || !phonePattern.MatchString(contact.Phone) {
			e.finishDispatch(ctx, t, r, now, "", "Invalid phone number")
			return
		}
		body := message
		if len(body) > smsMaxLength {
			body = body[:smsMaxLength]
		}
		if err := e.gateway.SendSMS(ctx, contact.Phone, body); err != nil {
			e.finishDispatch(ctx, t, r, now, "", err.Error())
			return
		}
		e.finishDispatch(ctx, t, r, now, body, "")

	case domain.ReminderLetter, domain.ReminderPhone:
		// no real channel behind these; record the intent for staff follow-up
		log.Printf("[reminders] %s reminder for task %s queued for manual handling", r.Type, t.ID)
		e.finishDispatch(ctx, t, r, now, message, "")
	}
}

func (e *Engine) finishDispatch(ctx context.Context, t *domain.Task, r *domain.Reminder, now time.Time, message, errorMessage string) {
	if errorMessage == "" {
		r.Status = domain.ReminderSent
		r.SentDate = &now
		r.Message = message
		e.audit(t, "reminder_sent",
			fmt.Sprintf("%s reminder delivered to %s", r.Type, r.Recipient),
			"system", string(domain.ReminderPending), string(domain.ReminderSent))
	} else {
		r.Status = domain.ReminderFailed
		r.ErrorMessage = errorMessage
		e.audit(t, "reminder_failed",
			fmt.Sprintf("%s reminder to %s failed: %s", r.Type, r.Recipient, errorMessage),
			"system", string(domain.ReminderPending), string(domain.ReminderFailed))
	}

	t.LastReminderDate = &now
	if t.PaymentPlan != nil {
		next := advanceByReminderFrequency(now, t.PaymentPlan.ReminderFrequency)
		t.NextReminderDate = &next
	}
	e.touch(t)

	if e.notifier != nil {
		e.notifier.NotifyReminderOutcome(ctx, t.AssignedTo, t.ID, r.ID, r.Status, errorMessage)
	}
}

func resolveRecipient(t *domain.Task, recipient domain.ReminderRecipient) *domain.Contact {
	var c domain.Contact
	switch recipient {
	case domain.RecipientCustomer:
		c = t.CustomerContact
	case domain.RecipientAssignedUser:
		c = t.AssignedContact
	case domain.RecipientManager:
		c = t.CreatorContact
	default:
		return nil
	}
	if c.Email == "" && c.Phone == "" {
		return nil
	}
	return &c
}

// buildReminderMessage renders the fixed per-collections-type template.
func buildReminderMessage(t *domain.Task) string {
	name := t.CustomerContact.Name
	if name == "" {
		name = "customer"
	}

	switch t.Type {
	case domain.TypePaymentReminder:
		return fmt.Sprintf(
			"Dear %s, this is a friendly reminder that a payment of %.2f was due on %s. Please arrange payment at your earliest convenience.",
			name, t.Amount, t.DueDate.Format("2006-01-02"))
	case domain.TypeOverdueNotice:
		return fmt.Sprintf(
			"Dear %s, your account is overdue. An outstanding balance of %.2f was due on %s. Please contact us to avoid further action.",
			name, t.Amount, t.DueDate.Format("2006-01-02"))
	case domain.TypePaymentPlan:
		remaining := t.Amount
		if t.PaymentPlan != nil {
			remaining = t.PaymentPlan.RemainingBalance()
		}
		return fmt.Sprintf(
			"Dear %s, this is a reminder about your payment plan. Your remaining balance is %.2f. Your next installment is due soon.",
			name, remaining)
	default:
		return fmt.Sprintf(
			"Dear %s, please contact us regarding your account with an outstanding amount of %.2f.",
			name, t.Amount)
	}
}

func advanceByReminderFrequency(from time.Time, freq domain.ReminderFrequency) time.Time {
	switch freq {
	case domain.RemindDaily:
		return from.AddDate(0, 0, 1)
	case domain.RemindWeekly:
		return from.AddDate(0, 0, 7)
	case domain.RemindBiWeekly:
		return from.AddDate(0, 0, 14)
	case domain.RemindMonthly:
		return addMonthsClipped(from, 1)
	default:
		return from.AddDate(0, 0, 7)
	}
}
