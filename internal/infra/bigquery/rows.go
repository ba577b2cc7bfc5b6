// Package bigquery persists uploaded-document records and serves the ledger
// read/write collaborators over BigQuery.
package bigquery

import (
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/ledgerscan/internal/domain"
)

const (
	documentsTable    = "uploaded_documents"
	transactionsTable = "transactions"
	categoriesTable   = "categories"
)

type DocumentRow struct {
	DocumentID string `bigquery:"document_id"` // REQUIRED
	UserID     string `bigquery:"user_id"`     // REQUIRED
	Kind       string `bigquery:"kind"`        // REQUIRED
	Status     string `bigquery:"status"`      // REQUIRED

	StoragePath      string `bigquery:"storage_path"`      // NULLABLE
	OriginalFilename string `bigquery:"original_filename"` // NULLABLE
	ContentType      string `bigquery:"content_type"`      // NULLABLE
	SizeBytes        int64  `bigquery:"size_bytes"`        // NULLABLE

	AccountID     string `bigquery:"account_id"`     // NULLABLE
	TransactionID string `bigquery:"transaction_id"` // NULLABLE
	BankName      string `bigquery:"bank_name"`      // NULLABLE

	StatementStart bigquery.NullDate `bigquery:"statement_start_date"` // NULLABLE
	StatementEnd   bigquery.NullDate `bigquery:"statement_end_date"`   // NULLABLE

	ExtractedText string `bigquery:"extracted_text"` // NULLABLE
	// ExtractedData is the serialized ExtractedTransaction list; it
	// round-trips through encoding/json.
	ExtractedData bigquery.NullJSON `bigquery:"extracted_data"` // NULLABLE

	ProcessingMessage string `bigquery:"processing_message"` // NULLABLE

	ScanVerdict string                 `bigquery:"scan_verdict"` // NULLABLE
	ScannedAt   bigquery.NullTimestamp `bigquery:"scanned_at"`   // NULLABLE

	Deleted   bool      `bigquery:"deleted"`    // REQUIRED
	CreatedAt time.Time `bigquery:"created_ts"` // REQUIRED
	UpdatedAt time.Time `bigquery:"updated_ts"` // REQUIRED
}

func documentToRow(doc *domain.UploadedDocument) (*DocumentRow, error) {
	row := &DocumentRow{
		DocumentID:        doc.ID,
		UserID:            doc.UserID,
		Kind:              string(doc.Kind),
		Status:            string(doc.Status),
		StoragePath:       doc.StoragePath,
		OriginalFilename:  doc.OriginalFilename,
		ContentType:       doc.ContentType,
		SizeBytes:         doc.SizeBytes,
		AccountID:         doc.AccountID,
		TransactionID:     doc.TransactionID,
		BankName:          doc.BankName,
		ExtractedText:     doc.ExtractedText,
		ProcessingMessage: doc.ProcessingMessage,
		ScanVerdict:       doc.ScanVerdict,
		Deleted:           doc.Deleted,
		CreatedAt:         doc.CreatedAt,
		UpdatedAt:         doc.UpdatedAt,
	}
	if doc.StatementStart != nil {
		row.StatementStart = bigquery.NullDate{Date: civil.DateOf(*doc.StatementStart), Valid: true}
	}
	if doc.StatementEnd != nil {
		row.StatementEnd = bigquery.NullDate{Date: civil.DateOf(*doc.StatementEnd), Valid: true}
	}
	if doc.ScannedAt != nil {
		row.ScannedAt = bigquery.NullTimestamp{Timestamp: *doc.ScannedAt, Valid: true}
	}
	if len(doc.ExtractedData) > 0 {
		raw, err := json.Marshal(doc.ExtractedData)
		if err != nil {
			return nil, fmt.Errorf("documentToRow: serializing extracted data: %w", err)
		}
		row.ExtractedData = bigquery.NullJSON{JSONVal: string(raw), Valid: true}
	}
	return row, nil
}

func documentFromRow(row *DocumentRow) (*domain.UploadedDocument, error) {
	doc := &domain.UploadedDocument{
		ID:                row.DocumentID,
		UserID:            row.UserID,
		Kind:              domain.DocumentKind(row.Kind),
		Status:            domain.DocumentStatus(row.Status),
		StoragePath:       row.StoragePath,
		OriginalFilename:  row.OriginalFilename,
		ContentType:       row.ContentType,
		SizeBytes:         row.SizeBytes,
		AccountID:         row.AccountID,
		TransactionID:     row.TransactionID,
		BankName:          row.BankName,
		ExtractedText:     row.ExtractedText,
		ProcessingMessage: row.ProcessingMessage,
		ScanVerdict:       row.ScanVerdict,
		Deleted:           row.Deleted,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}
	if row.StatementStart.Valid {
		t := row.StatementStart.Date.In(time.UTC)
		doc.StatementStart = &t
	}
	if row.StatementEnd.Valid {
		t := row.StatementEnd.Date.In(time.UTC)
		doc.StatementEnd = &t
	}
	if row.ScannedAt.Valid {
		t := row.ScannedAt.Timestamp
		doc.ScannedAt = &t
	}
	if row.ExtractedData.Valid {
		raw := row.ExtractedData.JSONVal
		if err := json.Unmarshal([]byte(raw), &doc.ExtractedData); err != nil {
			return nil, fmt.Errorf("documentFromRow: deserializing extracted data: %w", err)
		}
	}
	return doc, nil
}

type TransactionRow struct {
	TransactionID    string            `bigquery:"transaction_id"`     // REQUIRED
	UserID           string            `bigquery:"user_id"`            // REQUIRED
	TransactionDate  civil.Date        `bigquery:"transaction_date"`   // REQUIRED
	Amount           string            `bigquery:"amount"`             // REQUIRED, decimal string
	Description      string            `bigquery:"description"`        // NULLABLE
	MerchantName     string            `bigquery:"merchant_name"`      // NULLABLE
	TransactionType  string            `bigquery:"transaction_type"`   // REQUIRED
	CategoryID       string            `bigquery:"category_id"`        // NULLABLE
	AccountID        string            `bigquery:"account_id"`         // NULLABLE
	SourceDocumentID string            `bigquery:"source_document_id"` // NULLABLE
	CreatedAt        time.Time         `bigquery:"created_ts"`         // REQUIRED
}

func transactionFromRow(row *TransactionRow) (domain.LedgerTransaction, error) {
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return domain.LedgerTransaction{}, fmt.Errorf("transactionFromRow: amount %q: %w", row.Amount, err)
	}
	return domain.LedgerTransaction{
		ID:               row.TransactionID,
		UserID:           row.UserID,
		TransactionDate:  row.TransactionDate.In(time.UTC),
		Amount:           amount,
		Description:      row.Description,
		MerchantName:     row.MerchantName,
		Type:             domain.TransactionType(row.TransactionType),
		CategoryID:       row.CategoryID,
		AccountID:        row.AccountID,
		SourceDocumentID: row.SourceDocumentID,
	}, nil
}

type CategoryRow struct {
	CategoryID string   `bigquery:"category_id"` // REQUIRED
	UserID     string   `bigquery:"user_id"`     // REQUIRED
	Name       string   `bigquery:"name"`        // REQUIRED
	Icon       string   `bigquery:"icon"`        // NULLABLE
	Color      string   `bigquery:"color"`       // NULLABLE
	Type       string   `bigquery:"type"`        // REQUIRED
	Keywords   []string `bigquery:"keywords"`    // REPEATED
}

func categoryFromRow(row *CategoryRow) domain.Category {
	return domain.Category{
		ID:       row.CategoryID,
		Name:     row.Name,
		Icon:     row.Icon,
		Color:    row.Color,
		Type:     domain.TransactionType(row.Type),
		Keywords: row.Keywords,
	}
}
