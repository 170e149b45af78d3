// Package quotations defines the quotation rows the pipeline persists, the
// transient records connectors produce, and the warning/error taxonomy of a
// collection run.
package quotations

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Quotation is one persisted price level, unique per (index, currency,
// date). Name fields are hydrated by the store for downstream responses.
type Quotation struct {
	ID           int64
	IndexID      int64
	IndexName    string
	CurrencyID   int64
	CurrencyCode string
	SourceID     int64
	SourceName   string
	Date         time.Time
	Value        decimal.Decimal
}

// Collected is a connector's output before name→id resolution. It is never
// persisted directly.
type Collected struct {
	Date         time.Time
	IndexName    string
	Value        decimal.Decimal
	CurrencyCode string
	SourceName   string
}

// SortCollected orders records by (date ascending, index name ascending),
// the deterministic output order of every collection run.
func SortCollected(records []Collected) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].Date.Equal(records[j].Date) {
			return records[i].Date.Before(records[j].Date)
		}
		return records[i].IndexName < records[j].IndexName
	})
}

// Warning is a non-fatal collection-time annotation. Warnings accumulate and
// are returned alongside whatever did succeed; they never interrupt control
// flow.
type Warning struct {
	Message    string   `json:"message"`
	IndexNames []string `json:"index_names,omitempty"`
}
