package domain

import (
	"time"
)

// DocumentKind classifies an uploaded file. Only Receipt and BankStatement
// drive pipeline behavior; the administrative kinds are stored and returned
// as-is.
type DocumentKind string

const (
	KindReceipt       DocumentKind = "RECEIPT"
	KindBankStatement DocumentKind = "BANK_STATEMENT"
	KindDocument      DocumentKind = "DOCUMENT"
	KindInvoice       DocumentKind = "INVOICE"
	KindContract      DocumentKind = "CONTRACT"
)

// Valid reports whether k is a known document kind.
func (k DocumentKind) Valid() bool {
	switch k {
	case KindReceipt, KindBankStatement, KindDocument, KindInvoice, KindContract:
		return true
	}
	return false
}

// DocumentStatus is the lifecycle state of an uploaded document.
//
//	Uploaded → Processing → {Processed | Failed | VirusDetected}
//	Processed → Imported (bank statements only)
//	Failed → Processing (explicit retry)
type DocumentStatus string

const (
	StatusUploaded      DocumentStatus = "UPLOADED"
	StatusProcessing    DocumentStatus = "PROCESSING"
	StatusProcessed     DocumentStatus = "PROCESSED"
	StatusFailed        DocumentStatus = "FAILED"
	StatusVirusDetected DocumentStatus = "VIRUS_DETECTED"
	StatusImported      DocumentStatus = "IMPORTED"
)

// Terminal reports whether no further pipeline transition happens without
// explicit user action. Failed is terminal pending a retry.
func (s DocumentStatus) Terminal() bool {
	switch s {
	case StatusImported, StatusVirusDetected, StatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether the s → to transition is legal.
func (s DocumentStatus) CanTransition(to DocumentStatus) bool {
	switch s {
	case StatusUploaded:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusProcessed || to == StatusFailed || to == StatusVirusDetected
	case StatusProcessed:
		return to == StatusImported
	case StatusFailed:
		return to == StatusProcessing
	}
	return false
}

// UploadedDocument is one row per uploaded file. The ingest service is the
// only writer of Status, ExtractedText and ExtractedData.
type UploadedDocument struct {
	ID     string         `json:"id"`
	UserID string         `json:"user_id"`
	Kind   DocumentKind   `json:"kind"`
	Status DocumentStatus `json:"status"`

	StoragePath      string `json:"storage_path"`
	OriginalFilename string `json:"original_filename"`
	ContentType      string `json:"content_type"`
	SizeBytes        int64  `json:"size_bytes"`

	// Optional linkage.
	AccountID      string     `json:"account_id,omitempty"`
	TransactionID  string     `json:"transaction_id,omitempty"` // receipts only
	BankName       string     `json:"bank_name,omitempty"`
	StatementStart *time.Time `json:"statement_start,omitempty"`
	StatementEnd   *time.Time `json:"statement_end,omitempty"`

	ExtractedText string                 `json:"extracted_text,omitempty"`
	ExtractedData []ExtractedTransaction `json:"extracted_data,omitempty"`

	// ProcessingMessage carries the last human-readable status detail. It is
	// diagnostic only; callers must never parse it.
	ProcessingMessage string `json:"processing_message,omitempty"`

	ScanVerdict string     `json:"scan_verdict,omitempty"`
	ScannedAt   *time.Time `json:"scanned_at,omitempty"`

	Deleted   bool      `json:"deleted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DrivesPipeline reports whether this document kind goes through the
// processing pipeline at all.
func (d *UploadedDocument) DrivesPipeline() bool {
	return d.Kind == KindReceipt || d.Kind == KindBankStatement
}
