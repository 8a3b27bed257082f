package service

import (
	"time"

	"collections-engine/internal/scheduler"
)

type OrchestratorConfig struct {
	ReminderInterval   time.Duration
	EscalationInterval time.Duration
	// MaintenanceHour is the local hour (0-23) the daily pass runs at.
	MaintenanceHour int
	// ReportWeekday/ReportHour fix the weekly report slot.
	ReportWeekday time.Weekday
	ReportHour    int
}

func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		ReminderInterval:   15 * time.Minute,
		EscalationInterval: time.Hour,
		MaintenanceHour:    2,
		ReportWeekday:      time.Monday,
		ReportHour:         6,
	}
}

// Orchestrator binds the four periodic jobs to a Scheduler. Jobs are
// independent; each isolates its own per-item failures, so a bad case never
// stalls a batch, and a failed tick is simply retried at the next one.
type Orchestrator struct {
	engine  *Engine
	reports *ReportService
	clock   Clock
	cfg     OrchestratorConfig
}

func NewOrchestrator(engine *Engine, reports *ReportService, clock Clock, cfg OrchestratorConfig) *Orchestrator {
	if clock == nil {
		clock = SystemClock()
	}
	if cfg.ReminderInterval == 0 {
		cfg.ReminderInterval = 15 * time.Minute
	}
	if cfg.EscalationInterval == 0 {
		cfg.EscalationInterval = time.Hour
	}
	return &Orchestrator{engine: engine, reports: reports, clock: clock, cfg: cfg}
}

func (o *Orchestrator) Register(s scheduler.Scheduler) {
	now := o.clock.Now()

	s.RegisterPeriodic("reminder-dispatch", 0, o.cfg.ReminderInterval, o.engine.ProcessPendingReminders)
	s.RegisterPeriodic("escalation-sweep", 0, o.cfg.EscalationInterval, o.engine.RunEscalationSweep)
	s.RegisterPeriodic("daily-maintenance", delayUntilHour(now, o.cfg.MaintenanceHour), 24*time.Hour, o.engine.RunMaintenance)
	s.RegisterPeriodic("weekly-report", delayUntilWeekday(now, o.cfg.ReportWeekday, o.cfg.ReportHour), 7*24*time.Hour, o.reports.RunWeeklyReport)
}

func delayUntilHour(now time.Time, hour int) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}

func delayUntilWeekday(now time.Time, weekday time.Weekday, hour int) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	days := (int(weekday) - int(now.Weekday()) + 7) % 7
	next = next.AddDate(0, 0, days)
	if !next.After(now) {
		next = next.AddDate(0, 0, 7)
	}
	return next.Sub(now)
}
