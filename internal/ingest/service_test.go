package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/ledgerscan/internal/blobstore"
	"github.com/dvloznov/ledgerscan/internal/categorizer"
	"github.com/dvloznov/ledgerscan/internal/domain"
	"github.com/dvloznov/ledgerscan/internal/dupdetect"
	"github.com/dvloznov/ledgerscan/internal/ingest"
	docstore "github.com/dvloznov/ledgerscan/internal/ingest/inmemory"
	"github.com/dvloznov/ledgerscan/internal/jobs"
	"github.com/dvloznov/ledgerscan/internal/logger"
	"github.com/dvloznov/ledgerscan/internal/scanner"
	"github.com/dvloznov/ledgerscan/internal/statement"
)

const statementText = `Kontoauszug Maerz 2024

01.03.2024 GEHALT ACME GMBH 2.500,00
10.03.2024 REWE SAGT DANKE -49,99
15.03.2024 MIETE MAERZ -1.200,00
`

// pdfBytes passes the scanner's magic-header check without being a real PDF;
// the stub extractor supplies the text.
var pdfBytes = []byte("%PDF-1.4 test statement bytes")

type stubQueue struct {
	mu        sync.Mutex
	published []*jobs.ProcessDocumentJob
}

func (q *stubQueue) PublishProcessDocument(ctx context.Context, job *jobs.ProcessDocumentJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published = append(q.published, job)
	return nil
}

func (q *stubQueue) Close() error { return nil }

func (q *stubQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.published)
}

type stubExtractor struct {
	text    string
	err     error
	invalid bool
	calls   int32
}

func (e *stubExtractor) Validate(data []byte) bool { return !e.invalid }

func (e *stubExtractor) ExtractText(data []byte) (string, error) {
	atomic.AddInt32(&e.calls, 1)
	return e.text, e.err
}

type testLedger struct {
	mu           sync.Mutex
	transactions []domain.LedgerTransaction
	categories   []domain.Category
	failOn       map[string]bool // description → fail the write
	writeDelay   time.Duration   // slows each write to widen race windows
	created      []domain.LedgerTransaction
	nextID       int
}

func (l *testLedger) TransactionsForUser(ctx context.Context, userID string) ([]domain.LedgerTransaction, error) {
	return l.transactions, nil
}

func (l *testLedger) CategoriesByType(ctx context.Context, userID string, txType domain.TransactionType) ([]domain.Category, error) {
	var out []domain.Category
	for _, c := range l.categories {
		if c.Type == txType {
			out = append(out, c)
		}
	}
	return out, nil
}

func (l *testLedger) CreateTransaction(ctx context.Context, tx domain.LedgerTransaction) (string, error) {
	if l.writeDelay > 0 {
		time.Sleep(l.writeDelay)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failOn[tx.Description] {
		return "", errors.New("ledger write refused")
	}
	l.nextID++
	tx.ID = fmt.Sprintf("ledger-%d", l.nextID)
	l.created = append(l.created, tx)
	return tx.ID, nil
}

type env struct {
	svc    *ingest.Service
	store  *docstore.Store
	blobs  *blobstore.MemoryStore
	queue  *stubQueue
	ledger *testLedger
	ext    *stubExtractor
}

func newEnv(t *testing.T, ext *stubExtractor, maxBytes int64) *env {
	t.Helper()

	ledger := &testLedger{}
	log := logger.NewWithWriter(nil)
	suggester, err := categorizer.New(ledger, categorizer.NewMemoryKeywordStore(), log)
	if err != nil {
		t.Fatalf("building suggester: %v", err)
	}

	e := &env{
		store:  docstore.NewStore(),
		blobs:  blobstore.NewMemoryStore(),
		queue:  &stubQueue{},
		ledger: ledger,
		ext:    ext,
	}
	e.svc = ingest.NewService(ingest.Deps{
		Store:             e.store,
		Blobs:             e.blobs,
		Scanner:           scanner.New(maxBytes),
		Extractor:         ext,
		Parsers:           statement.NewRegistry(),
		Detector:          dupdetect.New(ledger, dupdetect.DefaultThreshold, log),
		Suggester:         suggester,
		Ledger:            ledger,
		Queue:             e.queue,
		MaxUploadBytes:    maxBytes,
		ProcessingTimeout: 5 * time.Second,
		Logger:            log,
	})
	return e
}

func upload(t *testing.T, e *env, kind domain.DocumentKind) *domain.UploadedDocument {
	t.Helper()
	doc, err := e.svc.Upload(context.Background(), ingest.UploadRequest{
		UserID:      "user-1",
		Filename:    "statement.pdf",
		ContentType: "application/pdf",
		Kind:        kind,
		Data:        pdfBytes,
		BankName:    "",
		AccountID:   "acct-1",
	})
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	return doc
}

func TestUploadValidation(t *testing.T) {
	e := newEnv(t, &stubExtractor{text: statementText}, 64)

	tests := []struct {
		name string
		req  ingest.UploadRequest
	}{
		{"missing user", ingest.UploadRequest{Filename: "a.pdf", Kind: domain.KindReceipt, Data: pdfBytes}},
		{"missing filename", ingest.UploadRequest{UserID: "u", Kind: domain.KindReceipt, Data: pdfBytes}},
		{"unknown kind", ingest.UploadRequest{UserID: "u", Filename: "a.pdf", Kind: "WHATEVER", Data: pdfBytes}},
		{"empty file", ingest.UploadRequest{UserID: "u", Filename: "a.pdf", Kind: domain.KindReceipt}},
		{"oversized", ingest.UploadRequest{UserID: "u", Filename: "a.pdf", Kind: domain.KindReceipt, Data: make([]byte, 65)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.Upload(context.Background(), tt.req)
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("got %v, want ValidationError", err)
			}
		})
	}
	if e.queue.count() != 0 {
		t.Error("rejected uploads must not schedule processing")
	}
}

func TestUploadScanRejection(t *testing.T) {
	e := newEnv(t, &stubExtractor{text: statementText}, 1<<20)

	doc, err := e.svc.Upload(context.Background(), ingest.UploadRequest{
		UserID:   "user-1",
		Filename: "evil.pdf",
		Kind:     domain.KindBankStatement,
		Data:     []byte("MZ executable payload"),
	})
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if doc.Status != domain.StatusVirusDetected {
		t.Errorf("status = %s, want VirusDetected", doc.Status)
	}
	if doc.StoragePath != "" {
		t.Error("rejected bytes must not reach the blob store")
	}
	if e.queue.count() != 0 {
		t.Error("rejected upload must not schedule processing")
	}

	// The record is persisted so the user can see the outcome.
	stored, err := e.store.Get(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.ScanVerdict == "" {
		t.Error("scan verdict should be recorded")
	}
}

func TestUploadSchedulesProcessing(t *testing.T) {
	e := newEnv(t, &stubExtractor{text: statementText}, 1<<20)
	doc := upload(t, e, domain.KindBankStatement)

	if doc.Status != domain.StatusUploaded {
		t.Errorf("status = %s, want Uploaded", doc.Status)
	}
	if e.queue.count() != 1 {
		t.Fatalf("published %d jobs, want 1", e.queue.count())
	}
	if got := e.queue.published[0].DocumentID; got != doc.ID {
		t.Errorf("job document = %s, want %s", got, doc.ID)
	}
	exists, err := e.blobs.Exists(context.Background(), doc.StoragePath)
	if err != nil || !exists {
		t.Errorf("uploaded bytes not in blob store (exists=%v err=%v)", exists, err)
	}
}

func TestProcessBankStatement(t *testing.T) {
	e := newEnv(t, &stubExtractor{text: statementText}, 1<<20)
	// One near-identical ledger entry makes the REWE line a duplicate.
	e.ledger.transactions = []domain.LedgerTransaction{{
		ID:              "ledger-old",
		UserID:          "user-1",
		TransactionDate: time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC),
		Amount:          decimal.RequireFromString("49.99"),
		Description:     "REWE SAGT DANKE 24",
		Type:            domain.TypeExpense,
	}}
	e.ledger.categories = []domain.Category{
		{ID: "cat-groceries", Name: "Groceries", Type: domain.TypeExpense},
		{ID: "cat-salary", Name: "Salary", Type: domain.TypeIncome},
	}

	doc := upload(t, e, domain.KindBankStatement)
	if err := e.svc.Process(context.Background(), doc.ID); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	stored, err := e.store.Get(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.Status != domain.StatusProcessed {
		t.Fatalf("status = %s (%s), want Processed", stored.Status, stored.ProcessingMessage)
	}
	if len(stored.ExtractedData) != 3 {
		t.Fatalf("extracted %d transactions, want 3", len(stored.ExtractedData))
	}

	salary := stored.ExtractedData[0]
	if salary.Type != domain.TypeIncome || !salary.Amount.Equal(decimal.RequireFromString("2500.00")) {
		t.Errorf("first candidate = %s %s, want INCOME 2500", salary.Type, salary.Amount)
	}
	if salary.SuggestedCategoryID != "cat-salary" {
		t.Errorf("salary suggestion = %q, want cat-salary", salary.SuggestedCategoryID)
	}

	rewe := stored.ExtractedData[1]
	if !rewe.IsDuplicate || rewe.DuplicateTransactionID != "ledger-old" {
		t.Errorf("REWE line should be flagged against ledger-old, got %+v", rewe)
	}
	if rewe.IsSelected {
		t.Error("flagged duplicate must be deselected")
	}
	if rewe.SuggestedCategoryID != "cat-groceries" {
		t.Errorf("REWE suggestion = %q, want cat-groceries", rewe.SuggestedCategoryID)
	}

	if stored.StatementStart == nil || stored.StatementEnd == nil {
		t.Fatal("statement period should be derived")
	}
	if stored.StatementStart.Day() != 1 || stored.StatementEnd.Day() != 15 {
		t.Errorf("period = %v..%v, want 1st..15th", stored.StatementStart, stored.StatementEnd)
	}
}

func TestProcessReceiptStopsAfterExtraction(t *testing.T) {
	e := newEnv(t, &stubExtractor{text: "Coffee 3,50 EUR"}, 1<<20)
	doc := upload(t, e, domain.KindReceipt)

	if err := e.svc.Process(context.Background(), doc.ID); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	stored, _ := e.store.Get(context.Background(), doc.ID)
	if stored.Status != domain.StatusProcessed {
		t.Fatalf("status = %s, want Processed", stored.Status)
	}
	if stored.ExtractedText == "" {
		t.Error("receipt text should be stored")
	}
	if len(stored.ExtractedData) != 0 {
		t.Error("receipts must not produce extracted transactions")
	}
}

func TestProcessExtractionFailure(t *testing.T) {
	e := newEnv(t, &stubExtractor{err: errors.New("broken xref table")}, 1<<20)
	doc := upload(t, e, domain.KindBankStatement)

	if err := e.svc.Process(context.Background(), doc.ID); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	stored, _ := e.store.Get(context.Background(), doc.ID)
	if stored.Status != domain.StatusFailed {
		t.Fatalf("status = %s, want Failed", stored.Status)
	}
	if stored.ProcessingMessage == "" {
		t.Error("failure must carry a diagnostic message")
	}
}

func TestProcessParseFailure(t *testing.T) {
	e := newEnv(t, &stubExtractor{text: "nothing that looks like a transaction"}, 1<<20)
	doc := upload(t, e, domain.KindBankStatement)

	if err := e.svc.Process(context.Background(), doc.ID); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	stored, _ := e.store.Get(context.Background(), doc.ID)
	if stored.Status != domain.StatusFailed {
		t.Fatalf("status = %s, want Failed", stored.Status)
	}
}

func TestProcessIdempotentOnProcessed(t *testing.T) {
	e := newEnv(t, &stubExtractor{text: statementText}, 1<<20)
	doc := upload(t, e, domain.KindBankStatement)

	if err := e.svc.Process(context.Background(), doc.ID); err != nil {
		t.Fatalf("first Process failed: %v", err)
	}
	if err := e.svc.Process(context.Background(), doc.ID); err != nil {
		t.Fatalf("second Process failed: %v", err)
	}
	if got := atomic.LoadInt32(&e.ext.calls); got != 1 {
		t.Errorf("extractor invoked %d times, want 1 (second run is a no-op)", got)
	}
}

func TestProcessConcurrentClaims(t *testing.T) {
	e := newEnv(t, &stubExtractor{text: statementText}, 1<<20)
	doc := upload(t, e, domain.KindBankStatement)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = e.svc.Process(context.Background(), doc.ID)
		}()
	}
	wg.Wait()

	stored, _ := e.store.Get(context.Background(), doc.ID)
	if stored.Status != domain.StatusProcessed {
		t.Fatalf("status = %s, want Processed", stored.Status)
	}
	if got := atomic.LoadInt32(&e.ext.calls); got != 1 {
		t.Errorf("pipeline ran %d times, want exactly 1", got)
	}
}

func TestStatusAndOwnership(t *testing.T) {
	e := newEnv(t, &stubExtractor{text: statementText}, 1<<20)
	doc := upload(t, e, domain.KindBankStatement)

	info, err := e.svc.Status(context.Background(), "user-1", doc.ID)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if info.Status != domain.StatusUploaded {
		t.Errorf("status = %s, want Uploaded", info.Status)
	}

	if _, err := e.svc.Status(context.Background(), "someone-else", doc.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("foreign document lookup = %v, want ErrNotFound", err)
	}
	if _, err := e.svc.Status(context.Background(), "user-1", "no-such-id"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown id lookup = %v, want ErrNotFound", err)
	}
}

func TestRetry(t *testing.T) {
	e := newEnv(t, &stubExtractor{err: errors.New("corrupt")}, 1<<20)
	doc := upload(t, e, domain.KindBankStatement)
	if err := e.svc.Process(context.Background(), doc.ID); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	before := e.queue.count()
	if err := e.svc.Retry(context.Background(), "user-1", doc.ID); err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if e.queue.count() != before+1 {
		t.Error("retry should publish a new job")
	}

	// Retry is only legal from Failed.
	e.ext.err = nil
	e.ext.text = statementText
	if err := e.svc.Process(context.Background(), doc.ID); err != nil {
		t.Fatalf("reprocess failed: %v", err)
	}
	if err := e.svc.Retry(context.Background(), "user-1", doc.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("Retry on processed document = %v, want ErrInvalidState", err)
	}
}

func TestDeleteSoftDeletes(t *testing.T) {
	e := newEnv(t, &stubExtractor{text: statementText}, 1<<20)
	doc := upload(t, e, domain.KindBankStatement)

	if err := e.svc.Delete(context.Background(), "user-1", doc.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := e.store.Get(context.Background(), doc.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("deleted document lookup = %v, want ErrNotFound", err)
	}
	exists, _ := e.blobs.Exists(context.Background(), doc.StoragePath)
	if exists {
		t.Error("stored bytes should be removed on delete")
	}
}

func TestReaperSweep(t *testing.T) {
	e := newEnv(t, &stubExtractor{text: statementText}, 1<<20)
	doc := upload(t, e, domain.KindBankStatement)

	// Claim the document, then backdate the claim beyond the age limit.
	claimed, err := e.store.TryMarkProcessing(context.Background(), doc.ID, time.Now().UTC().Add(-time.Hour))
	if err != nil || !claimed {
		t.Fatalf("claim failed (claimed=%v err=%v)", claimed, err)
	}

	reaper := ingest.NewReaper(e.store, 10*time.Minute, "*/5 * * * *", logger.NewWithWriter(nil))
	if err := reaper.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	stored, _ := e.store.Get(context.Background(), doc.ID)
	if stored.Status != domain.StatusFailed {
		t.Errorf("status = %s, want Failed", stored.Status)
	}
	if stored.ProcessingMessage == "" {
		t.Error("reaped document must carry a diagnostic message")
	}
}
