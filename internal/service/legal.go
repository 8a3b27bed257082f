package service

import (
	"context"
	"fmt"
	"time"

	"collections-engine/internal/domain"
)

// AddLegalDocument stores the file and appends an active document record.
// File-type and size policing happens in the transport layer.
func (e *Engine) AddLegalDocument(ctx context.Context, taskID, documentType, fileName string, data []byte, expiresAt *time.Time, actor string) (*domain.Task, error) {
	if documentType == "" {
		return nil, &domain.ValidationError{Field: "document_type", Message: "document type is required"}
	}
	if fileName == "" {
		return nil, &domain.ValidationError{Field: "file_name", Message: "file name is required"}
	}
	if len(data) == 0 {
		return nil, &domain.ValidationError{Field: "file", Message: "file content is required"}
	}

	t, err := e.store.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	storagePath, err := e.storage.Save(ctx, fileName, data)
	if err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}

	now := e.clock.Now()
	t.LegalDocuments = append(t.LegalDocuments, domain.LegalDocument{
		ID:           t.NextRecordID(),
		DocumentType: documentType,
		FileName:     fileName,
		StoragePath:  storagePath,
		Status:       domain.DocumentActive,
		ExpiresAt:    expiresAt,
		UploadedBy:   actor,
		UploadedAt:   now,
		UpdatedAt:    now,
	})
	e.audit(t, "legal_document_added", fmt.Sprintf("%s uploaded: %s", documentType, fileName), actor, "", string(domain.DocumentActive))
	e.touch(t)

	if err := e.store.Save(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (e *Engine) ListLegalDocuments(ctx context.Context, taskID string) ([]domain.LegalDocument, error) {
	t, err := e.store.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return t.LegalDocuments, nil
}

// ArchiveLegalDocument copies the stored file into the long-term archive
// bucket and flips the record to archived. Archiving an already archived
// document is rejected.
func (e *Engine) ArchiveLegalDocument(ctx context.Context, taskID string, documentID int64, actor string) (*domain.Task, error) {
	t, err := e.store.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	doc := t.FindLegalDocument(documentID)
	if doc == nil {
		return nil, &domain.NotFoundError{Resource: "legal document", ID: fmt.Sprintf("%d", documentID)}
	}
	if doc.Status == domain.DocumentArchived {
		return nil, &domain.StateError{Message: "Document is already archived"}
	}

	data, err := e.storage.Load(ctx, doc.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", doc.StoragePath, err)
	}
	objectName := fmt.Sprintf("%s/%d_%s", t.ID, doc.ID, doc.FileName)
	archivePath, err := e.archive.Upload(ctx, objectName, data, "application/octet-stream")
	if err != nil {
		return nil, fmt.Errorf("archive document %s: %w", doc.StoragePath, err)
	}

	previous := string(doc.Status)
	doc.Status = domain.DocumentArchived
	doc.ArchivePath = archivePath
	doc.UpdatedAt = e.clock.Now()
	e.audit(t, "legal_document_archived", fmt.Sprintf("%s moved to archive", doc.FileName), actor, previous, string(domain.DocumentArchived))
	e.touch(t)

	if err := e.store.Save(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// expireLegalDocuments flips active documents past their expiry. Idempotent,
// no notification is triggered.
func (e *Engine) expireLegalDocuments(t *domain.Task, now time.Time) int {
	expired := 0
	for i := range t.LegalDocuments {
		doc := &t.LegalDocuments[i]
		if doc.Status != domain.DocumentActive || doc.ExpiresAt == nil || !doc.ExpiresAt.Before(now) {
			continue
		}
		doc.Status = domain.DocumentExpired
		doc.UpdatedAt = now
		expired++
	}
	return expired
}
