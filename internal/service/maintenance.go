package service

import (
	"context"
	"log"
	"time"

	"collections-engine/internal/domain"
	"collections-engine/internal/repository"
)

// RunMaintenance is the daily job body: legal-document expiry, audit-trail
// trimming, and flagging completed cases older than one year as archived.
// Each pass isolates per-case failures.
func (e *Engine) RunMaintenance(ctx context.Context) {
	now := e.clock.Now()
	e.expireDocumentsPass(ctx, now)
	e.trimAuditPass(ctx)
	e.archiveCompletedPass(ctx, now)
}

func (e *Engine) expireDocumentsPass(ctx context.Context, now time.Time) {
	tasks, err := e.store.List(ctx, repository.TaskFilter{ExpiredDocumentAsOf: &now})
	if err != nil {
		log.Printf("[maintenance] expired-document query failed: %v", err)
		return
	}
	for i := range tasks {
		t := &tasks[i]
		if e.expireLegalDocuments(t, now) == 0 {
			continue
		}
		e.touch(t)
		if err := e.store.Save(ctx, t); err != nil {
			log.Printf("[maintenance] save task %s after document expiry failed: %v", t.ID, err)
		}
	}
}

func (e *Engine) trimAuditPass(ctx context.Context) {
	limit := domain.AuditRetainEntries
	tasks, err := e.store.List(ctx, repository.TaskFilter{AuditEntriesOver: &limit})
	if err != nil {
		log.Printf("[maintenance] audit-trim query failed: %v", err)
		return
	}
	for i := range tasks {
		t := &tasks[i]
		if len(t.AuditTrail) <= limit {
			continue
		}
		// drop from the head, keep the most recent entries in order
		t.AuditTrail = append([]domain.AuditEntry(nil), t.AuditTrail[len(t.AuditTrail)-limit:]...)
		e.touch(t)
		if err := e.store.Save(ctx, t); err != nil {
			log.Printf("[maintenance] save task %s after audit trim failed: %v", t.ID, err)
		}
	}
}

func (e *Engine) archiveCompletedPass(ctx context.Context, now time.Time) {
	cutoff := now.AddDate(-1, 0, 0)
	completed := domain.StatusCompleted
	archived := false
	tasks, err := e.store.List(ctx, repository.TaskFilter{
		Status:          &completed,
		Archived:        &archived,
		CompletedBefore: &cutoff,
	})
	if err != nil {
		log.Printf("[maintenance] archive query failed: %v", err)
		return
	}
	for i := range tasks {
		t := &tasks[i]
		t.Archived = true
		e.audit(t, "archived", "case archived one year after completion", "system", "", "")
		e.touch(t)
		if err := e.store.Save(ctx, t); err != nil {
			log.Printf("[maintenance] save task %s after archive failed: %v", t.ID, err)
		}
	}
}
