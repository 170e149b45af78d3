package quotations

import (
	"context"
	"time"

	"github.com/altamira-asset/indexes-server/internal/domain/indices"
)

// Repository is the sole writer of quotation rows.
type Repository interface {
	// Get returns the quotation for (index, date, currency code), or nil
	// when absent.
	Get(ctx context.Context, indexID int64, date time.Time, currencyCode string) (*Quotation, error)

	// List returns all quotations ordered by (date, index name).
	List(ctx context.Context) ([]Quotation, error)

	// ListIndicesMissingAny returns indices with zero quotation rows.
	ListIndicesMissingAny(ctx context.Context) ([]indices.Index, error)

	// UpsertBatch writes rows keyed on (index_id, currency_id, date); on
	// conflict every mutable column is overwritten from the incoming row.
	// Rows are processed in bounded-size chunks and the returned set is
	// hydrated with index/currency/source names, preserving submission
	// order across chunks.
	UpsertBatch(ctx context.Context, rows []Quotation) ([]Quotation, error)

	// WithTx runs fn inside a transaction; a nested call reuses the open
	// transaction so a whole use case commits or rolls back as one unit.
	WithTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error
}
