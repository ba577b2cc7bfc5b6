package ingest

import (
	"context"
	"time"

	"github.com/dvloznov/ledgerscan/internal/domain"
)

// DocumentStore persists uploaded-document records. The service is the only
// writer; implementations must make TryMarkProcessing atomic so two
// concurrent processing runs can never both claim the same document.
type DocumentStore interface {
	// Create persists a new document record.
	Create(ctx context.Context, doc *domain.UploadedDocument) error

	// Get retrieves a document by ID. Soft-deleted documents are not
	// returned. Returns domain.ErrNotFound when no record exists.
	Get(ctx context.Context, id string) (*domain.UploadedDocument, error)

	// Update overwrites the stored record.
	Update(ctx context.Context, doc *domain.UploadedDocument) error

	// TryMarkProcessing atomically moves an Uploaded or Failed document to
	// Processing. It reports false, without error, when the document is
	// in any other state; that is the losing side of a dispatch race.
	TryMarkProcessing(ctx context.Context, id string, at time.Time) (bool, error)

	// TryMarkImported atomically moves a Processed document to Imported,
	// claiming the import for exactly one caller. It reports false, without
	// error, when the document is in any other state, so a second concurrent
	// import cannot commit the same candidates twice.
	TryMarkImported(ctx context.Context, id string, at time.Time) (bool, error)

	// StuckProcessing lists documents that entered Processing before the
	// cutoff and never reached a terminal state.
	StuckProcessing(ctx context.Context, cutoff time.Time) ([]*domain.UploadedDocument, error)
}
