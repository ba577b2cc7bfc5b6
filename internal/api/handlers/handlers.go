package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/ledgerscan/internal/api/middleware"
	"github.com/dvloznov/ledgerscan/internal/domain"
	"github.com/dvloznov/ledgerscan/internal/ingest"
	"github.com/dvloznov/ledgerscan/internal/jobs"
)

// DocumentsHandler exposes the document ingestion surface over HTTP.
type DocumentsHandler struct {
	svc *ingest.Service
	log zerolog.Logger
}

// NewDocumentsHandler creates a new documents handler.
func NewDocumentsHandler(svc *ingest.Service, log zerolog.Logger) *DocumentsHandler {
	return &DocumentsHandler{
		svc: svc,
		log: log.With().Str("handler", "documents").Logger(),
	}
}

// Upload handles POST /api/documents.
// Expects multipart form data with a "file" part and optional metadata fields.
func (h *DocumentsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read uploaded file")
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}

	kind := domain.DocumentKind(strings.ToUpper(r.FormValue("kind")))

	doc, err := h.svc.Upload(r.Context(), ingest.UploadRequest{
		UserID:        userID,
		Filename:      header.Filename,
		ContentType:   header.Header.Get("Content-Type"),
		Kind:          kind,
		Data:          data,
		AccountID:     r.FormValue("account_id"),
		TransactionID: r.FormValue("transaction_id"),
		BankName:      r.FormValue("bank_name"),
	})
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}

	middleware.WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"document_id": doc.ID,
		"status":      doc.Status,
		"message":     doc.ProcessingMessage,
	})
}

// Status handles GET /api/documents/{id}/status.
func (h *DocumentsHandler) Status(w http.ResponseWriter, r *http.Request, documentID string) {
	info, err := h.svc.Status(r.Context(), middleware.UserID(r.Context()), documentID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, info)
}

// Preview handles GET /api/documents/{id}/preview.
func (h *DocumentsHandler) Preview(w http.ResponseWriter, r *http.Request, documentID string) {
	preview, err := h.svc.Preview(r.Context(), middleware.UserID(r.Context()), documentID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, preview)
}

// Import handles POST /api/documents/{id}/import.
func (h *DocumentsHandler) Import(w http.ResponseWriter, r *http.Request, documentID string) {
	var req ingest.ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.svc.ImportSelected(r.Context(), middleware.UserID(r.Context()), documentID, req)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}

// Retry handles POST /api/documents/{id}/retry.
func (h *DocumentsHandler) Retry(w http.ResponseWriter, r *http.Request, documentID string) {
	if err := h.svc.Retry(r.Context(), middleware.UserID(r.Context()), documentID); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"document_id": documentID,
		"message":     "Reprocessing scheduled",
	})
}

// Delete handles DELETE /api/documents/{id}.
func (h *DocumentsHandler) Delete(w http.ResponseWriter, r *http.Request, documentID string) {
	if err := h.svc.Delete(r.Context(), middleware.UserID(r.Context()), documentID); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"document_id": documentID,
		"message":     "Document deleted",
	})
}

// writeServiceError maps service errors onto HTTP status codes.
func writeServiceError(w http.ResponseWriter, log zerolog.Logger, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		middleware.WriteError(w, http.StatusBadRequest, verr.Reason)
	case errors.Is(err, domain.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, "Document not found")
	case errors.Is(err, domain.ErrInvalidState):
		middleware.WriteError(w, http.StatusConflict, "Operation not allowed in current document state")
	case errors.Is(err, domain.ErrPreviewNotAvailable):
		middleware.WriteError(w, http.StatusConflict, "Preview not available for this document")
	default:
		log.Error().Err(err).Msg("Request failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// JobsHandler exposes background job visibility for operators.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log.With().Str("handler", "jobs").Logger(),
	}
}

// ListJobs handles GET /api/jobs with optional filters.
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	filter := jobs.JobFilter{
		UserID:     r.URL.Query().Get("user_id"),
		DocumentID: r.URL.Query().Get("document_id"),
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = jobs.JobStatus(status)
	}

	list, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  list,
		"count": len(list),
	})
}

// GetJob handles GET /api/jobs/{id}.
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}
