package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType carries the economic direction of a transaction. The
// parser normalizes bank sign conventions so Amount is always non-negative
// and the direction lives here.
type TransactionType string

const (
	TypeIncome  TransactionType = "INCOME"
	TypeExpense TransactionType = "EXPENSE"
)

// ExtractedTransaction is a parsed-but-not-yet-committed transaction awaiting
// user review. It lives inside UploadedDocument.ExtractedData and in memory
// during preview; it is never persisted as its own entity.
type ExtractedTransaction struct {
	// ID is stable within one parse run ("txn-1", "txn-2", ...), not
	// globally unique.
	ID string `json:"id"`

	TransactionDate time.Time       `json:"transaction_date"`
	BookingDate     *time.Time      `json:"booking_date,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
	MerchantName    string          `json:"merchant_name,omitempty"`
	ReferenceNumber string          `json:"reference_number,omitempty"`
	Type            TransactionType `json:"type"`
	PaymentMethod   string          `json:"payment_method,omitempty"`
	Location        string          `json:"location,omitempty"`
	Tags            []string        `json:"tags,omitempty"`

	SuggestedCategoryID   string `json:"suggested_category_id,omitempty"`
	SuggestedCategoryName string `json:"suggested_category_name,omitempty"`

	IsDuplicate            bool    `json:"is_duplicate"`
	DuplicateTransactionID string  `json:"duplicate_transaction_id,omitempty"`
	DuplicateReason        string  `json:"duplicate_reason,omitempty"`
	ConfidenceScore        float64 `json:"confidence_score"`

	// IsSelected defaults to true and is forced to false when the candidate
	// is flagged as a duplicate. The user may override it before import.
	IsSelected bool `json:"is_selected"`
}

// CategorySuggestion is pure Category Suggester output; never persisted.
type CategorySuggestion struct {
	CategoryID      string  `json:"category_id"`
	Name            string  `json:"name"`
	Icon            string  `json:"icon,omitempty"`
	Color           string  `json:"color,omitempty"`
	ConfidenceScore float64 `json:"confidence_score"`
	MatchReason     string  `json:"match_reason"`
}
