package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/ledgerscan/internal/domain"
)

// Ledger reads and writes the permanent transaction tables. It implements
// both domain.LedgerReader and domain.LedgerWriter.
type Ledger struct {
	client  *bigquery.Client
	project string
	dataset string
}

// NewLedger creates a ledger collaborator with its own BigQuery client.
func NewLedger(ctx context.Context, project, dataset string) (*Ledger, error) {
	client, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("NewLedger: creating client: %w", err)
	}
	return NewLedgerWithClient(client, project, dataset), nil
}

// NewLedgerWithClient creates a ledger collaborator on a shared client.
func NewLedgerWithClient(client *bigquery.Client, project, dataset string) *Ledger {
	return &Ledger{client: client, project: project, dataset: dataset}
}

// Close closes the underlying BigQuery client.
func (l *Ledger) Close() error {
	if l.client != nil {
		return l.client.Close()
	}
	return nil
}

// TransactionsForUser returns the user's committed transactions, oldest
// first.
func (l *Ledger) TransactionsForUser(ctx context.Context, userID string) ([]domain.LedgerTransaction, error) {
	q := l.client.Query(fmt.Sprintf(`
		SELECT *
		FROM `+"`%s.%s.%s`"+`
		WHERE user_id = @user_id
		ORDER BY transaction_date, created_ts
	`, l.project, l.dataset, transactionsTable))
	q.Parameters = []bigquery.QueryParameter{{Name: "user_id", Value: userID}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("TransactionsForUser: reading query: %w", err)
	}

	var transactions []domain.LedgerTransaction
	for {
		var row TransactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("TransactionsForUser: iterating: %w", err)
		}
		tx, err := transactionFromRow(&row)
		if err != nil {
			return nil, fmt.Errorf("TransactionsForUser: %w", err)
		}
		transactions = append(transactions, tx)
	}
	return transactions, nil
}

// CategoriesByType returns the user's categories of the given transaction
// type.
func (l *Ledger) CategoriesByType(ctx context.Context, userID string, txType domain.TransactionType) ([]domain.Category, error) {
	q := l.client.Query(fmt.Sprintf(`
		SELECT *
		FROM `+"`%s.%s.%s`"+`
		WHERE user_id = @user_id AND type = @type
		ORDER BY name
	`, l.project, l.dataset, categoriesTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "type", Value: string(txType)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("CategoriesByType: reading query: %w", err)
	}

	var categories []domain.Category
	for {
		var row CategoryRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("CategoriesByType: iterating: %w", err)
		}
		categories = append(categories, categoryFromRow(&row))
	}
	return categories, nil
}

// CreateTransaction inserts one committed transaction and returns its ID.
func (l *Ledger) CreateTransaction(ctx context.Context, tx domain.LedgerTransaction) (string, error) {
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	row := &TransactionRow{
		TransactionID:    tx.ID,
		UserID:           tx.UserID,
		TransactionDate:  civil.DateOf(tx.TransactionDate),
		Amount:           tx.Amount.String(),
		Description:      tx.Description,
		MerchantName:     tx.MerchantName,
		TransactionType:  string(tx.Type),
		CategoryID:       tx.CategoryID,
		AccountID:        tx.AccountID,
		SourceDocumentID: tx.SourceDocumentID,
		CreatedAt:        time.Now().UTC(),
	}

	inserter := l.client.DatasetInProject(l.project, l.dataset).Table(transactionsTable).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return "", fmt.Errorf("CreateTransaction: inserting row: %w", err)
	}
	return tx.ID, nil
}

var (
	_ domain.LedgerReader = (*Ledger)(nil)
	_ domain.LedgerWriter = (*Ledger)(nil)
)
