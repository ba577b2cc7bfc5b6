package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/ledgerscan/internal/domain"
)

// Preview is the user-facing review payload for a processed bank statement.
type Preview struct {
	DocumentID     string                        `json:"document_id"`
	Transactions   []domain.ExtractedTransaction `json:"transactions"`
	TotalIncome    decimal.Decimal               `json:"total_income"`
	TotalExpense   decimal.Decimal               `json:"total_expense"`
	DuplicateCount int                           `json:"duplicate_count"`
	NewCount       int                           `json:"new_count"`
}

// Preview returns the extracted transactions of a processed bank statement
// together with batch totals. Any other kind or status yields
// ErrPreviewNotAvailable.
func (s *Service) Preview(ctx context.Context, userID, documentID string) (*Preview, error) {
	doc, err := s.ownedDocument(ctx, userID, documentID)
	if err != nil {
		return nil, fmt.Errorf("Preview: %w", err)
	}
	if doc.Kind != domain.KindBankStatement || doc.Status != domain.StatusProcessed {
		return nil, fmt.Errorf("Preview: document %s is %s %s: %w",
			documentID, doc.Status, doc.Kind, domain.ErrPreviewNotAvailable)
	}

	p := &Preview{
		DocumentID:   doc.ID,
		Transactions: doc.ExtractedData,
		TotalIncome:  decimal.Zero,
		TotalExpense: decimal.Zero,
	}
	for i := range doc.ExtractedData {
		c := &doc.ExtractedData[i]
		switch c.Type {
		case domain.TypeIncome:
			p.TotalIncome = p.TotalIncome.Add(c.Amount)
		case domain.TypeExpense:
			p.TotalExpense = p.TotalExpense.Add(c.Amount)
		}
		if c.IsDuplicate {
			p.DuplicateCount++
		} else {
			p.NewCount++
		}
	}
	return p, nil
}

// ImportRequest selects which extracted candidates to commit and how.
type ImportRequest struct {
	SelectedIDs       []string `json:"selected_ids"`
	SkipDuplicates    bool     `json:"skip_duplicates"`
	DefaultCategoryID string   `json:"default_category_id,omitempty"`
	AutoCategorize    bool     `json:"auto_categorize"`
}

// ImportResult reports the outcome of one import batch.
type ImportResult struct {
	Total             int      `json:"total"`
	Imported          int      `json:"imported"`
	SkippedDuplicates int      `json:"skipped_duplicates"`
	Failed            int      `json:"failed"`
	ImportedIDs       []string `json:"imported_ids"`
	FailedIDs         []string `json:"failed_ids"`
	Warnings          []string `json:"warnings,omitempty"`
	Errors            []string `json:"errors,omitempty"`
}

// ImportSelected commits the selected candidates of a processed bank
// statement into the ledger. A failure writing one candidate is recorded and
// the batch continues; the document ends up Imported either way, with the
// result payload surfacing what went wrong.
func (s *Service) ImportSelected(ctx context.Context, userID, documentID string, req ImportRequest) (*ImportResult, error) {
	doc, err := s.ownedDocument(ctx, userID, documentID)
	if err != nil {
		return nil, fmt.Errorf("ImportSelected: %w", err)
	}
	if doc.Kind != domain.KindBankStatement {
		return nil, fmt.Errorf("ImportSelected: document %s is %s: %w", documentID, doc.Kind, domain.ErrInvalidState)
	}
	if doc.Status != domain.StatusProcessed {
		return nil, fmt.Errorf("ImportSelected: document %s is %s: %w", documentID, doc.Status, domain.ErrInvalidState)
	}

	// Claim the import atomically. Two concurrent imports of the same
	// document both pass the read check above; only the claim winner may
	// write ledger rows, otherwise every candidate would commit twice.
	claimed, err := s.store.TryMarkImported(ctx, documentID, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("ImportSelected: claiming document: %w", err)
	}
	if !claimed {
		return nil, fmt.Errorf("ImportSelected: document %s is already imported: %w", documentID, domain.ErrInvalidState)
	}

	byID := make(map[string]*domain.ExtractedTransaction, len(doc.ExtractedData))
	for i := range doc.ExtractedData {
		byID[doc.ExtractedData[i].ID] = &doc.ExtractedData[i]
	}

	result := &ImportResult{}
	// Iterate candidates in statement order, restricted to the selection,
	// so the ledger receives them in the order the statement listed them.
	selected := make(map[string]bool, len(req.SelectedIDs))
	for _, id := range req.SelectedIDs {
		if _, ok := byID[id]; !ok {
			result.Warnings = append(result.Warnings, fmt.Sprintf("unknown candidate id %q ignored", id))
			continue
		}
		selected[id] = true
	}

	for i := range doc.ExtractedData {
		c := &doc.ExtractedData[i]
		if !selected[c.ID] {
			continue
		}
		result.Total++

		if req.SkipDuplicates && c.IsDuplicate {
			result.SkippedDuplicates++
			continue
		}

		categoryID := req.DefaultCategoryID
		if req.AutoCategorize && c.SuggestedCategoryID != "" {
			categoryID = c.SuggestedCategoryID
		}

		tx := domain.LedgerTransaction{
			UserID:           userID,
			TransactionDate:  c.TransactionDate,
			Amount:           c.Amount,
			Description:      c.Description,
			MerchantName:     c.MerchantName,
			Type:             c.Type,
			CategoryID:       categoryID,
			AccountID:        doc.AccountID,
			SourceDocumentID: doc.ID,
		}
		ledgerID, err := s.ledger.CreateTransaction(ctx, tx)
		if err != nil {
			result.Failed++
			result.FailedIDs = append(result.FailedIDs, c.ID)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", c.ID, err))
			s.log.Error().Err(err).Str("document_id", doc.ID).Str("candidate_id", c.ID).Msg("ledger write failed")
			continue
		}
		result.Imported++
		result.ImportedIDs = append(result.ImportedIDs, c.ID)
		s.log.Debug().Str("candidate_id", c.ID).Str("ledger_id", ledgerID).Msg("candidate imported")

		// Feed the confirmed category choice back into the suggester.
		if categoryID != "" && s.suggester != nil {
			if err := s.suggester.Learn(ctx, userID, categoryID, c.Description, c.MerchantName); err != nil {
				s.log.Warn().Err(err).Str("candidate_id", c.ID).Msg("keyword learning failed")
			}
		}
	}

	doc.Status = domain.StatusImported
	doc.ProcessingMessage = fmt.Sprintf("%d of %d selected transactions imported", result.Imported, result.Total)
	doc.UpdatedAt = time.Now().UTC()
	if err := s.store.Update(ctx, doc); err != nil {
		return nil, fmt.Errorf("ImportSelected: saving document: %w", err)
	}

	s.log.Info().
		Str("document_id", doc.ID).
		Int("total", result.Total).
		Int("imported", result.Imported).
		Int("skipped_duplicates", result.SkippedDuplicates).
		Int("failed", result.Failed).
		Msg("import finished")
	return result, nil
}
