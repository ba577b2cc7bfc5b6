package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/ledgerscan/internal/domain"
	"github.com/dvloznov/ledgerscan/internal/ingest"
)

// processedStatement seeds a Processed bank statement with n candidates,
// the first dupes of them flagged duplicate.
func processedStatement(t *testing.T, e *env, n, dupes int) *domain.UploadedDocument {
	t.Helper()

	doc := &domain.UploadedDocument{
		ID:        "doc-import",
		UserID:    "user-1",
		Kind:      domain.KindBankStatement,
		Status:    domain.StatusProcessed,
		AccountID: "acct-1",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	for i := 0; i < n; i++ {
		c := domain.ExtractedTransaction{
			ID:              fmt.Sprintf("txn-%d", i+1),
			TransactionDate: time.Date(2024, 3, i+1, 0, 0, 0, 0, time.UTC),
			Amount:          decimal.NewFromInt(int64(10 * (i + 1))),
			Description:     fmt.Sprintf("POSTING %d", i+1),
			Type:            domain.TypeExpense,
			IsSelected:      true,
		}
		if i < dupes {
			c.IsDuplicate = true
			c.DuplicateTransactionID = "ledger-old"
			c.IsSelected = false
		}
		doc.ExtractedData = append(doc.ExtractedData, c)
	}
	if err := e.store.Create(context.Background(), doc); err != nil {
		t.Fatalf("seeding document: %v", err)
	}
	return doc
}

func selectedIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("txn-%d", i+1)
	}
	return ids
}

func TestPreview(t *testing.T) {
	e := newEnv(t, &stubExtractor{text: statementText}, 1<<20)
	doc := processedStatement(t, e, 4, 1)
	// Make one candidate income so both totals are exercised.
	doc.ExtractedData[3].Type = domain.TypeIncome
	if err := e.store.Update(context.Background(), doc); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	p, err := e.svc.Preview(context.Background(), "user-1", doc.ID)
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if len(p.Transactions) != 4 {
		t.Errorf("preview has %d transactions, want 4", len(p.Transactions))
	}
	if p.DuplicateCount != 1 || p.NewCount != 3 {
		t.Errorf("counts = %d dup / %d new, want 1/3", p.DuplicateCount, p.NewCount)
	}
	if !p.TotalExpense.Equal(decimal.NewFromInt(60)) {
		t.Errorf("total expense = %s, want 60", p.TotalExpense)
	}
	if !p.TotalIncome.Equal(decimal.NewFromInt(40)) {
		t.Errorf("total income = %s, want 40", p.TotalIncome)
	}
}

func TestPreviewUnavailable(t *testing.T) {
	e := newEnv(t, &stubExtractor{text: statementText}, 1<<20)

	// Not yet processed.
	uploaded := upload(t, e, domain.KindBankStatement)
	if _, err := e.svc.Preview(context.Background(), "user-1", uploaded.ID); !errors.Is(err, domain.ErrPreviewNotAvailable) {
		t.Errorf("preview of uploaded document = %v, want ErrPreviewNotAvailable", err)
	}

	// Wrong kind.
	receipt := upload(t, e, domain.KindReceipt)
	if err := e.svc.Process(context.Background(), receipt.ID); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if _, err := e.svc.Preview(context.Background(), "user-1", receipt.ID); !errors.Is(err, domain.ErrPreviewNotAvailable) {
		t.Errorf("preview of receipt = %v, want ErrPreviewNotAvailable", err)
	}
}

func TestImportSelectedSkipsDuplicates(t *testing.T) {
	e := newEnv(t, &stubExtractor{text: statementText}, 1<<20)
	doc := processedStatement(t, e, 5, 2)

	result, err := e.svc.ImportSelected(context.Background(), "user-1", doc.ID, ingest.ImportRequest{
		SelectedIDs:    selectedIDs(5),
		SkipDuplicates: true,
	})
	if err != nil {
		t.Fatalf("ImportSelected failed: %v", err)
	}

	if result.Total != 5 || result.Imported != 3 || result.SkippedDuplicates != 2 || result.Failed != 0 {
		t.Errorf("result = %+v, want total 5 / imported 3 / skipped 2", result)
	}
	if len(e.ledger.created) != 3 {
		t.Fatalf("ledger received %d writes, want 3", len(e.ledger.created))
	}
	for _, tx := range e.ledger.created {
		if tx.SourceDocumentID != doc.ID {
			t.Errorf("ledger transaction missing back-reference: %+v", tx)
		}
		if tx.AccountID != "acct-1" {
			t.Errorf("ledger transaction missing account: %+v", tx)
		}
	}

	stored, _ := e.store.Get(context.Background(), doc.ID)
	if stored.Status != domain.StatusImported {
		t.Errorf("status = %s, want Imported", stored.Status)
	}
}

func TestImportSelectedSubset(t *testing.T) {
	e := newEnv(t, &stubExtractor{text: statementText}, 1<<20)
	doc := processedStatement(t, e, 5, 0)

	result, err := e.svc.ImportSelected(context.Background(), "user-1", doc.ID, ingest.ImportRequest{
		SelectedIDs: []string{"txn-2", "txn-4", "txn-999"},
	})
	if err != nil {
		t.Fatalf("ImportSelected failed: %v", err)
	}
	if result.Total != 2 || result.Imported != 2 {
		t.Errorf("result = %+v, want total 2 / imported 2", result)
	}
	if len(result.Warnings) != 1 {
		t.Errorf("unknown candidate id should produce a warning, got %v", result.Warnings)
	}
	// Statement order is preserved regardless of selection order.
	if e.ledger.created[0].Description != "POSTING 2" || e.ledger.created[1].Description != "POSTING 4" {
		t.Errorf("write order = %v", e.ledger.created)
	}
}

func TestImportPartialFailure(t *testing.T) {
	e := newEnv(t, &stubExtractor{text: statementText}, 1<<20)
	e.ledger.failOn = map[string]bool{"POSTING 2": true}
	doc := processedStatement(t, e, 3, 0)

	result, err := e.svc.ImportSelected(context.Background(), "user-1", doc.ID, ingest.ImportRequest{
		SelectedIDs: selectedIDs(3),
	})
	if err != nil {
		t.Fatalf("ImportSelected failed: %v", err)
	}
	if result.Imported != 2 || result.Failed != 1 {
		t.Errorf("result = %+v, want imported 2 / failed 1", result)
	}
	if len(result.FailedIDs) != 1 || result.FailedIDs[0] != "txn-2" {
		t.Errorf("FailedIDs = %v, want [txn-2]", result.FailedIDs)
	}
	if len(result.Errors) != 1 {
		t.Errorf("Errors = %v, want one entry", result.Errors)
	}

	// Partial failure still completes the batch.
	stored, _ := e.store.Get(context.Background(), doc.ID)
	if stored.Status != domain.StatusImported {
		t.Errorf("status = %s, want Imported", stored.Status)
	}
}

func TestImportCategoryChoice(t *testing.T) {
	e := newEnv(t, &stubExtractor{text: statementText}, 1<<20)
	doc := processedStatement(t, e, 2, 0)
	doc.ExtractedData[0].SuggestedCategoryID = "cat-suggested"
	if err := e.store.Update(context.Background(), doc); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	_, err := e.svc.ImportSelected(context.Background(), "user-1", doc.ID, ingest.ImportRequest{
		SelectedIDs:       selectedIDs(2),
		AutoCategorize:    true,
		DefaultCategoryID: "cat-default",
	})
	if err != nil {
		t.Fatalf("ImportSelected failed: %v", err)
	}

	if got := e.ledger.created[0].CategoryID; got != "cat-suggested" {
		t.Errorf("suggested candidate category = %q, want cat-suggested", got)
	}
	// No suggestion falls back to the default.
	if got := e.ledger.created[1].CategoryID; got != "cat-default" {
		t.Errorf("unsuggested candidate category = %q, want cat-default", got)
	}
}

func TestImportInvalidState(t *testing.T) {
	e := newEnv(t, &stubExtractor{text: statementText}, 1<<20)

	// Receipt kind is never importable.
	receipt := upload(t, e, domain.KindReceipt)
	if _, err := e.svc.ImportSelected(context.Background(), "user-1", receipt.ID, ingest.ImportRequest{}); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("import of receipt = %v, want ErrInvalidState", err)
	}

	// Importing twice is rejected: the document is already Imported.
	doc := processedStatement(t, e, 1, 0)
	if _, err := e.svc.ImportSelected(context.Background(), "user-1", doc.ID, ingest.ImportRequest{SelectedIDs: selectedIDs(1)}); err != nil {
		t.Fatalf("first import failed: %v", err)
	}
	if _, err := e.svc.ImportSelected(context.Background(), "user-1", doc.ID, ingest.ImportRequest{SelectedIDs: selectedIDs(1)}); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("second import = %v, want ErrInvalidState", err)
	}
}

func TestImportConcurrentCalls(t *testing.T) {
	e := newEnv(t, &stubExtractor{text: statementText}, 1<<20)
	e.ledger.writeDelay = 20 * time.Millisecond
	doc := processedStatement(t, e, 3, 0)

	// A doubled import request: both calls observe the document as
	// Processed, but only the claim winner may write ledger rows.
	results := make([]*ingest.ImportResult, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = e.svc.ImportSelected(context.Background(), "user-1", doc.ID, ingest.ImportRequest{
				SelectedIDs: selectedIDs(3),
			})
		}(i)
	}
	wg.Wait()

	var winners, losers int
	for i := 0; i < 2; i++ {
		switch {
		case errs[i] == nil:
			winners++
			if results[i].Imported != 3 {
				t.Errorf("winning import committed %d candidates, want 3", results[i].Imported)
			}
		case errors.Is(errs[i], domain.ErrInvalidState):
			losers++
		default:
			t.Errorf("unexpected import error: %v", errs[i])
		}
	}
	if winners != 1 || losers != 1 {
		t.Fatalf("got %d winners and %d losers, want exactly 1 of each", winners, losers)
	}

	if got := len(e.ledger.created); got != 3 {
		t.Fatalf("ledger received %d transactions, want 3", got)
	}
	stored, _ := e.store.Get(context.Background(), doc.ID)
	if stored.Status != domain.StatusImported {
		t.Errorf("status = %s, want Imported", stored.Status)
	}
}
