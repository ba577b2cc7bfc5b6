package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/ledgerscan/internal/domain"
	"github.com/dvloznov/ledgerscan/internal/ingest"
)

var _ ingest.DocumentStore = (*DocumentStore)(nil)

// DocumentStore persists uploaded-document records in BigQuery. It holds a
// shared client to avoid creating a new connection for each operation.
type DocumentStore struct {
	client  *bigquery.Client
	project string
	dataset string
}

// NewDocumentStore creates a document store with its own BigQuery client.
func NewDocumentStore(ctx context.Context, project, dataset string) (*DocumentStore, error) {
	client, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("NewDocumentStore: creating client: %w", err)
	}
	return NewDocumentStoreWithClient(client, project, dataset), nil
}

// NewDocumentStoreWithClient creates a document store on a shared client.
func NewDocumentStoreWithClient(client *bigquery.Client, project, dataset string) *DocumentStore {
	return &DocumentStore{client: client, project: project, dataset: dataset}
}

// Close closes the underlying BigQuery client.
func (s *DocumentStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func (s *DocumentStore) table() string {
	return fmt.Sprintf("`%s.%s.%s`", s.project, s.dataset, documentsTable)
}

// Create inserts a new document record.
func (s *DocumentStore) Create(ctx context.Context, doc *domain.UploadedDocument) error {
	row, err := documentToRow(doc)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	inserter := s.client.DatasetInProject(s.project, s.dataset).Table(documentsTable).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("Create: inserting row: %w", err)
	}
	return nil
}

// Get retrieves a document by ID. Soft-deleted records are treated as not
// found.
func (s *DocumentStore) Get(ctx context.Context, id string) (*domain.UploadedDocument, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT *
		FROM %s
		WHERE document_id = @id AND deleted = FALSE
		LIMIT 1
	`, s.table()))
	q.Parameters = []bigquery.QueryParameter{{Name: "id", Value: id}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("Get: reading query: %w", err)
	}

	var row DocumentRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: reading row: %w", err)
	}
	return documentFromRow(&row)
}

// Update overwrites the mutable fields of a stored record.
func (s *DocumentStore) Update(ctx context.Context, doc *domain.UploadedDocument) error {
	row, err := documentToRow(doc)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}

	q := s.client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
			statement_start_date = @statement_start,
			statement_end_date = @statement_end,
			extracted_text = @extracted_text,
			extracted_data = SAFE.PARSE_JSON(@extracted_data),
			processing_message = @processing_message,
			scan_verdict = @scan_verdict,
			scanned_at = @scanned_at,
			deleted = @deleted,
			updated_ts = @updated_ts
		WHERE document_id = @id
	`, s.table()))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "id", Value: row.DocumentID},
		{Name: "status", Value: row.Status},
		{Name: "statement_start", Value: nullDateParam(row.StatementStart)},
		{Name: "statement_end", Value: nullDateParam(row.StatementEnd)},
		{Name: "extracted_text", Value: row.ExtractedText},
		{Name: "extracted_data", Value: jsonParam(row.ExtractedData)},
		{Name: "processing_message", Value: row.ProcessingMessage},
		{Name: "scan_verdict", Value: row.ScanVerdict},
		{Name: "scanned_at", Value: nullTimestampParam(row.ScannedAt)},
		{Name: "deleted", Value: row.Deleted},
		{Name: "updated_ts", Value: row.UpdatedAt},
	}

	affected, err := runDML(ctx, q)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// TryMarkProcessing atomically claims the Uploaded/Failed to Processing
// transition. The status predicate plus the DML affected-row count make the
// claim a compare-and-set: only one of two racing runs sees a non-zero
// count.
func (s *DocumentStore) TryMarkProcessing(ctx context.Context, id string, at time.Time) (bool, error) {
	q := s.client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @processing,
			processing_message = 'processing',
			updated_ts = @at
		WHERE document_id = @id
		  AND deleted = FALSE
		  AND status IN (@uploaded, @failed)
	`, s.table()))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "id", Value: id},
		{Name: "at", Value: at},
		{Name: "processing", Value: string(domain.StatusProcessing)},
		{Name: "uploaded", Value: string(domain.StatusUploaded)},
		{Name: "failed", Value: string(domain.StatusFailed)},
	}

	affected, err := runDML(ctx, q)
	if err != nil {
		return false, fmt.Errorf("TryMarkProcessing: %w", err)
	}
	return affected > 0, nil
}

// TryMarkImported atomically claims the Processed to Imported transition
// with the same affected-row compare-and-set, so a doubled import request
// commits its candidates exactly once.
func (s *DocumentStore) TryMarkImported(ctx context.Context, id string, at time.Time) (bool, error) {
	q := s.client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @imported,
			processing_message = 'importing',
			updated_ts = @at
		WHERE document_id = @id
		  AND deleted = FALSE
		  AND status = @processed
	`, s.table()))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "id", Value: id},
		{Name: "at", Value: at},
		{Name: "imported", Value: string(domain.StatusImported)},
		{Name: "processed", Value: string(domain.StatusProcessed)},
	}

	affected, err := runDML(ctx, q)
	if err != nil {
		return false, fmt.Errorf("TryMarkImported: %w", err)
	}
	return affected > 0, nil
}

// StuckProcessing lists documents that entered Processing before the cutoff.
func (s *DocumentStore) StuckProcessing(ctx context.Context, cutoff time.Time) ([]*domain.UploadedDocument, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT *
		FROM %s
		WHERE status = @processing
		  AND deleted = FALSE
		  AND updated_ts < @cutoff
	`, s.table()))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "processing", Value: string(domain.StatusProcessing)},
		{Name: "cutoff", Value: cutoff},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("StuckProcessing: reading query: %w", err)
	}

	var docs []*domain.UploadedDocument
	for {
		var row DocumentRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("StuckProcessing: iterating: %w", err)
		}
		doc, err := documentFromRow(&row)
		if err != nil {
			return nil, fmt.Errorf("StuckProcessing: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// runDML executes a DML statement and returns the affected-row count.
func runDML(ctx context.Context, q *bigquery.Query) (int64, error) {
	job, err := q.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("running statement: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("waiting for statement: %w", err)
	}
	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("statement failed: %w", err)
	}
	if stats, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok {
		return stats.NumDMLAffectedRows, nil
	}
	return 0, nil
}

func nullDateParam(d bigquery.NullDate) interface{} {
	if !d.Valid {
		return bigquery.NullDate{}
	}
	return d.Date
}

func nullTimestampParam(ts bigquery.NullTimestamp) interface{} {
	if !ts.Valid {
		return bigquery.NullTimestamp{}
	}
	return ts.Timestamp
}

func jsonParam(j bigquery.NullJSON) string {
	if !j.Valid {
		return ""
	}
	return j.JSONVal
}
