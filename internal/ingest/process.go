package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/ledgerscan/internal/domain"
	"github.com/dvloznov/ledgerscan/internal/jobs"
)

// HandleJob adapts Process to the queue's handler signature.
func (s *Service) HandleJob(ctx context.Context, job jobs.Job) error {
	pd, ok := job.(*jobs.ProcessDocumentJob)
	if !ok {
		return fmt.Errorf("HandleJob: unexpected job type %s", job.GetType())
	}
	return s.Process(ctx, pd.DocumentID)
}

// Process runs the pipeline for one document: scan, extract, parse, flag
// duplicates, suggest categories. The Uploaded/Failed to Processing
// transition is claimed atomically; losing that race is a logged no-op, as
// is a document already Processed or Imported. Pipeline failures land the
// document in Failed or VirusDetected, never back in Uploaded.
func (s *Service) Process(ctx context.Context, documentID string) error {
	started := time.Now().UTC()
	claimed, err := s.store.TryMarkProcessing(ctx, documentID, started)
	if err != nil {
		return fmt.Errorf("Process: claiming document %s: %w", documentID, err)
	}
	if !claimed {
		s.log.Info().Str("document_id", documentID).Msg("document not claimable, skipping")
		return nil
	}

	doc, err := s.store.Get(ctx, documentID)
	if err != nil {
		return fmt.Errorf("Process: loading document %s: %w", documentID, err)
	}

	runCtx := ctx
	cancel := context.CancelFunc(func() {})
	if s.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
	}
	defer cancel()

	status, message := s.runPipeline(runCtx, doc)
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		status = domain.StatusFailed
		message = "processing exceeded the time budget"
	}

	doc.Status = status
	doc.ProcessingMessage = message
	doc.UpdatedAt = time.Now().UTC()
	if err := s.store.Update(ctx, doc); err != nil {
		return fmt.Errorf("Process: saving document %s: %w", documentID, err)
	}

	s.log.Info().
		Str("document_id", doc.ID).
		Str("status", string(status)).
		Dur("elapsed", time.Since(started)).
		Msg("processing finished")
	return nil
}

// runPipeline executes the stage sequence and returns the terminal status
// for this run. Panics inside a stage become a Failed outcome rather than
// taking the worker down.
func (s *Service) runPipeline(ctx context.Context, doc *domain.UploadedDocument) (status domain.DocumentStatus, message string) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Str("document_id", doc.ID).Interface("panic", r).Msg("pipeline panicked")
			status = domain.StatusFailed
			message = "processing failed unexpectedly"
		}
	}()

	// 1. Fetch the stored bytes.
	data, err := s.blobs.Read(ctx, doc.StoragePath)
	if err != nil {
		s.log.Error().Err(err).Str("document_id", doc.ID).Msg("reading stored bytes failed")
		return domain.StatusFailed, "stored file could not be read"
	}

	// 2. Scan. Uploads were scanned synchronously, but retries re-enter
	// here and the stored bytes are what actually gets parsed.
	scan := s.scanner.Scan(data)
	now := time.Now().UTC()
	doc.ScanVerdict = scan.Verdict
	doc.ScannedAt = &now
	if !scan.Clean {
		scanErr := &domain.ScanRejectedError{Verdict: scan.Verdict}
		s.log.Warn().Err(scanErr).Str("document_id", doc.ID).Msg("scan rejected stored bytes")
		return domain.StatusVirusDetected, "content rejected: " + scanErr.Verdict
	}

	// 3. Extract text.
	if !s.extractor.Validate(data) {
		return domain.StatusFailed, "document could not be opened"
	}
	text, err := s.extractor.ExtractText(data)
	if err != nil {
		extractErr := &domain.ExtractionError{Err: err}
		s.log.Error().Err(extractErr).Str("document_id", doc.ID).Msg("text extraction failed")
		return domain.StatusFailed, "text could not be extracted from the document"
	}
	doc.ExtractedText = text

	// Receipts and administrative kinds stop after extraction.
	if doc.Kind != domain.KindBankStatement {
		return domain.StatusProcessed, "text extracted"
	}

	// 4. Parse the statement with the bank-specific dialect.
	parser := s.parsers.Get(doc.BankName)
	candidates, warnings, err := parser.Parse(text)
	if err != nil {
		s.log.Error().Err(err).Str("document_id", doc.ID).Str("parser", parser.Name()).Msg("statement parse failed")
		return domain.StatusFailed, "no transactions could be read from this statement"
	}
	if len(candidates) == 0 && strings.TrimSpace(text) != "" {
		parseErr := &domain.ParseError{Detail: "no transaction lines recognized"}
		s.log.Error().Err(parseErr).Str("document_id", doc.ID).Str("parser", parser.Name()).Msg("statement parse failed")
		return domain.StatusFailed, "no transactions could be read from this statement"
	}
	for _, w := range warnings {
		s.log.Warn().Str("document_id", doc.ID).Int("line", w.Line).Str("reason", w.Reason).Msg("statement line skipped")
	}

	// 5. Flag duplicates against the user's ledger.
	if err := s.detector.Annotate(ctx, doc.UserID, candidates); err != nil {
		s.log.Error().Err(err).Str("document_id", doc.ID).Msg("duplicate detection failed")
		return domain.StatusFailed, "duplicate detection failed"
	}

	// 6. Suggest categories. Best-effort: a suggester error degrades to no
	// suggestions rather than failing the run.
	s.suggestCategories(ctx, doc.UserID, candidates)

	doc.ExtractedData = candidates
	doc.StatementStart, doc.StatementEnd = statementPeriod(candidates)

	msg := fmt.Sprintf("%d transactions extracted", len(candidates))
	if len(warnings) > 0 {
		msg += fmt.Sprintf(", %d lines skipped", len(warnings))
	}
	return domain.StatusProcessed, msg
}

func (s *Service) suggestCategories(ctx context.Context, userID string, candidates []domain.ExtractedTransaction) {
	for i := range candidates {
		c := &candidates[i]
		suggestions, err := s.suggester.Suggest(ctx, userID, c.Description, c.MerchantName, c.Amount, c.Type)
		if err != nil {
			s.log.Warn().Err(err).Str("candidate_id", c.ID).Msg("category suggestion failed")
			return
		}
		if len(suggestions) == 0 {
			continue
		}
		c.SuggestedCategoryID = suggestions[0].CategoryID
		c.SuggestedCategoryName = suggestions[0].Name
	}
}

// statementPeriod derives the covered period from the extracted transaction
// dates.
func statementPeriod(candidates []domain.ExtractedTransaction) (start, end *time.Time) {
	for i := range candidates {
		d := candidates[i].TransactionDate
		if start == nil || d.Before(*start) {
			t := d
			start = &t
		}
		if end == nil || d.After(*end) {
			t := d
			end = &t
		}
	}
	return start, end
}
