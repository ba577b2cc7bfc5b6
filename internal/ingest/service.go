// Package ingest owns the uploaded-document lifecycle: accepting uploads,
// running the processing pipeline, serving previews, and committing selected
// transactions into the ledger.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/ledgerscan/internal/blobstore"
	"github.com/dvloznov/ledgerscan/internal/categorizer"
	"github.com/dvloznov/ledgerscan/internal/domain"
	"github.com/dvloznov/ledgerscan/internal/dupdetect"
	"github.com/dvloznov/ledgerscan/internal/jobs"
	"github.com/dvloznov/ledgerscan/internal/scanner"
	"github.com/dvloznov/ledgerscan/internal/statement"
)

// ContentScanner inspects raw bytes before anything parses them.
type ContentScanner interface {
	Scan(data []byte) scanner.ScanResult
}

// TextExtractor turns document bytes into text.
type TextExtractor interface {
	Validate(data []byte) bool
	ExtractText(data []byte) (string, error)
}

// Deps bundles the collaborators the ingest service sequences.
type Deps struct {
	Store     DocumentStore
	Blobs     blobstore.BlobStore
	Scanner   ContentScanner
	Extractor TextExtractor
	Parsers   *statement.Registry
	Detector  *dupdetect.Detector
	Suggester *categorizer.Suggester
	Ledger    domain.LedgerWriter
	Queue     jobs.Publisher

	// MaxUploadBytes rejects larger uploads synchronously, before any
	// record is created. Zero disables the limit.
	MaxUploadBytes int64

	// ProcessingTimeout bounds one pipeline run. Zero disables the bound.
	ProcessingTimeout time.Duration

	Logger zerolog.Logger
}

// Service is the ingestion orchestrator. It is the single writer of document
// status, extracted text and extracted data.
type Service struct {
	store     DocumentStore
	blobs     blobstore.BlobStore
	scanner   ContentScanner
	extractor TextExtractor
	parsers   *statement.Registry
	detector  *dupdetect.Detector
	suggester *categorizer.Suggester
	ledger    domain.LedgerWriter
	queue     jobs.Publisher
	maxBytes  int64
	timeout   time.Duration
	log       zerolog.Logger
}

func NewService(deps Deps) *Service {
	return &Service{
		store:     deps.Store,
		blobs:     deps.Blobs,
		scanner:   deps.Scanner,
		extractor: deps.Extractor,
		parsers:   deps.Parsers,
		detector:  deps.Detector,
		suggester: deps.Suggester,
		ledger:    deps.Ledger,
		queue:     deps.Queue,
		maxBytes:  deps.MaxUploadBytes,
		timeout:   deps.ProcessingTimeout,
		log:       deps.Logger.With().Str("component", "ingest").Logger(),
	}
}

// UploadRequest carries one uploaded file and its declared metadata.
type UploadRequest struct {
	UserID      string
	Filename    string
	ContentType string
	Kind        domain.DocumentKind
	Data        []byte

	// Optional linkage.
	AccountID     string
	TransactionID string
	BankName      string
}

// Upload validates and scans the bytes synchronously, persists them, creates
// the document record and schedules background processing. The returned
// document is in status Uploaded; for rejected content it is VirusDetected
// and no pipeline runs.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*domain.UploadedDocument, error) {
	// 1. Validate the request shape before anything is persisted.
	if err := validateUpload(req, s.maxBytes); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	doc := &domain.UploadedDocument{
		ID:               uuid.New().String(),
		UserID:           req.UserID,
		Kind:             req.Kind,
		OriginalFilename: req.Filename,
		ContentType:      req.ContentType,
		SizeBytes:        int64(len(req.Data)),
		AccountID:        req.AccountID,
		TransactionID:    req.TransactionID,
		BankName:         req.BankName,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	// 2. Scan before the bytes ever reach durable storage.
	result := s.scanner.Scan(req.Data)
	doc.ScanVerdict = result.Verdict
	doc.ScannedAt = &now
	if !result.Clean {
		scanErr := &domain.ScanRejectedError{Verdict: result.Verdict}
		doc.Status = domain.StatusVirusDetected
		doc.ProcessingMessage = "upload rejected: " + scanErr.Verdict
		if err := s.store.Create(ctx, doc); err != nil {
			return nil, fmt.Errorf("Upload: saving rejected document: %w", err)
		}
		s.log.Warn().
			Err(scanErr).
			Str("document_id", doc.ID).
			Str("user_id", doc.UserID).
			Msg("upload rejected by scanner")
		return doc, nil
	}

	// 3. Persist the bytes and the record.
	path, err := s.blobs.Store(ctx, req.Data, req.Filename, string(req.Kind), req.UserID)
	if err != nil {
		return nil, fmt.Errorf("Upload: storing bytes: %w", err)
	}
	doc.StoragePath = path
	doc.Status = domain.StatusUploaded
	doc.ProcessingMessage = "uploaded, waiting for processing"
	if err := s.store.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("Upload: saving document: %w", err)
	}

	// 4. Schedule background processing for pipeline-driving kinds.
	if doc.DrivesPipeline() {
		job := &jobs.ProcessDocumentJob{DocumentID: doc.ID, UserID: doc.UserID}
		if err := s.queue.PublishProcessDocument(ctx, job); err != nil {
			// The record exists; a reaper-independent retry is still
			// possible through the explicit retry endpoint.
			s.log.Error().Err(err).Str("document_id", doc.ID).Msg("scheduling processing failed")
		}
	}

	s.log.Info().
		Str("document_id", doc.ID).
		Str("user_id", doc.UserID).
		Str("kind", string(doc.Kind)).
		Int64("size_bytes", doc.SizeBytes).
		Msg("document uploaded")
	return doc, nil
}

func validateUpload(req UploadRequest, maxBytes int64) error {
	if req.UserID == "" {
		return &domain.ValidationError{Reason: "user id is required"}
	}
	if strings.TrimSpace(req.Filename) == "" {
		return &domain.ValidationError{Reason: "filename is required"}
	}
	if !req.Kind.Valid() {
		return &domain.ValidationError{Reason: fmt.Sprintf("unknown document kind %q", req.Kind)}
	}
	if len(req.Data) == 0 {
		return &domain.ValidationError{Reason: "file is empty"}
	}
	if maxBytes > 0 && int64(len(req.Data)) > maxBytes {
		return &domain.ValidationError{Reason: fmt.Sprintf("file exceeds the %d byte limit", maxBytes)}
	}
	return nil
}

// StatusInfo is the caller-facing processing status of one document.
type StatusInfo struct {
	DocumentID    string                `json:"document_id"`
	Status        domain.DocumentStatus `json:"status"`
	Message       string                `json:"message,omitempty"`
	ExtractedText string                `json:"extracted_text,omitempty"`
}

// Status returns the processing status of a document owned by userID.
func (s *Service) Status(ctx context.Context, userID, documentID string) (*StatusInfo, error) {
	doc, err := s.ownedDocument(ctx, userID, documentID)
	if err != nil {
		return nil, fmt.Errorf("Status: %w", err)
	}
	return &StatusInfo{
		DocumentID:    doc.ID,
		Status:        doc.Status,
		Message:       doc.ProcessingMessage,
		ExtractedText: doc.ExtractedText,
	}, nil
}

// Retry re-schedules processing for a Failed document.
func (s *Service) Retry(ctx context.Context, userID, documentID string) error {
	doc, err := s.ownedDocument(ctx, userID, documentID)
	if err != nil {
		return fmt.Errorf("Retry: %w", err)
	}
	if doc.Status != domain.StatusFailed {
		return fmt.Errorf("Retry: document %s is %s: %w", documentID, doc.Status, domain.ErrInvalidState)
	}

	job := &jobs.ProcessDocumentJob{DocumentID: doc.ID, UserID: doc.UserID}
	if err := s.queue.PublishProcessDocument(ctx, job); err != nil {
		return fmt.Errorf("Retry: scheduling processing: %w", err)
	}
	s.log.Info().Str("document_id", doc.ID).Msg("retry scheduled")
	return nil
}

// Delete soft-deletes a document and removes its stored bytes best-effort.
func (s *Service) Delete(ctx context.Context, userID, documentID string) error {
	doc, err := s.ownedDocument(ctx, userID, documentID)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}

	doc.Deleted = true
	doc.UpdatedAt = time.Now().UTC()
	if err := s.store.Update(ctx, doc); err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	if doc.StoragePath != "" {
		if _, err := s.blobs.Delete(ctx, doc.StoragePath); err != nil {
			s.log.Warn().Err(err).Str("document_id", doc.ID).Msg("deleting stored bytes failed")
		}
	}
	s.log.Info().Str("document_id", doc.ID).Msg("document deleted")
	return nil
}

// ownedDocument loads a document and verifies ownership. Foreign documents
// surface as not-found so ids cannot be probed.
func (s *Service) ownedDocument(ctx context.Context, userID, documentID string) (*domain.UploadedDocument, error) {
	doc, err := s.store.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return doc, nil
}
