package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// LedgerTransaction is a permanent, already-committed transaction as seen by
// this core. The ledger subsystem owns these; the pipeline only reads them
// for duplicate detection and writes new ones through LedgerWriter during
// import.
type LedgerTransaction struct {
	ID              string
	UserID          string
	TransactionDate time.Time
	Amount          decimal.Decimal
	Description     string
	MerchantName    string
	Type            TransactionType
	CategoryID      string
	AccountID       string
	// SourceDocumentID back-references the uploaded document an imported
	// transaction came from.
	SourceDocumentID string
}

// Category is a ledger category as seen by the Category Suggester.
type Category struct {
	ID       string
	Name     string
	Icon     string
	Color    string
	Type     TransactionType
	Keywords []string // user-defined keywords, newest last
}

// LedgerReader is the read-only view of the ledger consumed by the Duplicate
// Detector and the Category Suggester.
type LedgerReader interface {
	TransactionsForUser(ctx context.Context, userID string) ([]LedgerTransaction, error)
	CategoriesByType(ctx context.Context, userID string, txType TransactionType) ([]Category, error)
}

// LedgerWriter is the Import Executor's only external effect.
type LedgerWriter interface {
	CreateTransaction(ctx context.Context, tx LedgerTransaction) (string, error)
}
