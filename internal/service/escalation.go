package service

import (
	"context"
	"fmt"
	"log"

	"collections-engine/internal/domain"
	"collections-engine/internal/repository"
)

// CheckEscalation evaluates the case's rules in stored order and fires the
// first eligible one (every eligible one under the cascade policy). A rule is
// eligible when daysOverdue >= triggerDays and it has not fired before; an
// executed rule never re-fires. Returns true when at least one rule fired.
// The caller is responsible for saving the task.
func (e *Engine) CheckEscalation(ctx context.Context, t *domain.Task, actor string) bool {
	if !t.AutoEscalate || t.Status == domain.StatusCompleted {
		return false
	}

	now := e.clock.Now()
	daysOverdue := t.DaysOverdue(now)
	if daysOverdue < 0 {
		return false
	}

	fired := false
	for i := range t.EscalationRules {
		rule := &t.EscalationRules[i]
		if rule.Executed || daysOverdue < rule.TriggerDays {
			continue
		}

		rule.Executed = true
		firedAt := e.clock.Now()
		rule.ExecutedAt = &firedAt
		rule.ExecutedBy = actor
		e.applyEscalationAction(ctx, t, rule)
		e.audit(t, "escalation_fired",
			fmt.Sprintf("%s triggered at %d days overdue (threshold %d)", rule.Action, daysOverdue, rule.TriggerDays),
			actor, "", string(rule.Action))
		if e.notifier != nil {
			e.notifier.NotifyEscalation(ctx, t.AssignedTo, t.ID, rule.ID, rule.Action)
		}
		fired = true

		if e.policy == EscalateSingleFire {
			break
		}
	}

	if fired {
		e.touch(t)
	}
	return fired
}

func (e *Engine) applyEscalationAction(ctx context.Context, t *domain.Task, rule *domain.EscalationRule) {
	switch rule.Action {
	case domain.ActionChangePriority:
		if t.Priority != domain.PriorityUrgent {
			t.Priority = domain.PriorityUrgent
		}
	case domain.ActionLegalReview:
		if t.EscalationLevel < domain.MaxEscalationLevel {
			t.EscalationLevel++
		}
	case domain.ActionNotifyManager:
		// delegation only, no local state change
		if t.CreatorContact.Email != "" {
			subject := fmt.Sprintf("Collections case %s requires attention", t.Title)
			body := fmt.Sprintf("Case for customer %s is %d days overdue with %.2f outstanding.",
				t.CustomerContact.Name, t.DaysOverdue(e.clock.Now()), t.Amount)
			if err := e.gateway.SendEmail(ctx, t.CreatorContact.Email, subject, body); err != nil {
				log.Printf("[escalation] manager notification for task %s failed: %v", t.ID, err)
			}
		}
	case domain.ActionAssignToSpecialist:
		// specialist routing lives in the assignment collaborator
		log.Printf("[escalation] task %s flagged for specialist assignment", t.ID)
	}
}

// RunEscalationSweep is the hourly job body: it loads every overdue,
// auto-escalating, non-completed case and runs the rule check on each. A
// failure on one case is logged and does not block the rest.
func (e *Engine) RunEscalationSweep(ctx context.Context) {
	now := e.clock.Now()
	autoEscalate := true
	archived := false
	tasks, err := e.store.List(ctx, repository.TaskFilter{
		OverdueAsOf:  &now,
		AutoEscalate: &autoEscalate,
		Archived:     &archived,
	})
	if err != nil {
		log.Printf("[escalation] sweep query failed: %v", err)
		return
	}

	for i := range tasks {
		t := &tasks[i]
		if !e.CheckEscalation(ctx, t, "system") {
			continue
		}
		if err := e.store.Save(ctx, t); err != nil {
			log.Printf("[escalation] save task %s failed: %v", t.ID, err)
		}
	}
}
