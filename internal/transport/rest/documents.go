package rest

import (
	"bytes"
	"net/http"
	"strconv"

	"collections-engine/internal/domain"
	"collections-engine/internal/transport/auth"

	"github.com/go-chi/chi/v5"
)

const maxDocumentSize = 20 << 20 // 20 MB

func (h *Handler) uploadDocument(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.GetActorID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "actor required")
		return
	}

	if err := r.ParseMultipartForm(maxDocumentSize); err != nil {
		ErrorBadRequest(w, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		ErrorBadRequest(w, "file is required")
		return
	}
	defer file.Close()

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(file); err != nil {
		ErrorInternal(w, "failed to read file")
		return
	}

	expiresAt, err := parseDate(r.FormValue("expires_at"), "expires_at", false)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}

	task, err := h.documents.AddLegalDocument(
		r.Context(),
		chi.URLParam(r, "task_id"),
		r.FormValue("document_type"),
		header.Filename,
		buf.Bytes(),
		expiresAt,
		actor,
	)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}
	SuccessCreated(w, "document uploaded", task)
}

func (h *Handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	documents, err := h.documents.ListLegalDocuments(r.Context(), chi.URLParam(r, "task_id"))
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}
	Success(w, "documents", documents)
}

func (h *Handler) archiveDocument(w http.ResponseWriter, r *http.Request) {
	actor, err := auth.GetActorID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "actor required")
		return
	}

	documentID, err := strconv.ParseInt(chi.URLParam(r, "document_id"), 10, 64)
	if err != nil {
		ErrorFromDomain(w, &domain.ValidationError{Field: "document_id", Message: "document_id must be an integer"})
		return
	}

	task, err := h.documents.ArchiveLegalDocument(r.Context(), chi.URLParam(r, "task_id"), documentID, actor)
	if err != nil {
		ErrorFromDomain(w, err)
		return
	}
	Success(w, "document archived", task)
}
