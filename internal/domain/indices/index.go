// Package indices holds the market index metadata the collection pipeline
// runs over: indices, their provider identifiers, currencies and data
// sources, plus the in-memory registry queries.
package indices

import (
	"time"

	"github.com/altamira-asset/indexes-server/internal/calendar"
)

// DataSource is an external system supplying raw quotation data, or the
// internal "Manual" source for seeded values.
type DataSource struct {
	ID   int64
	Name string
}

// Currency is a reference currency. BRL is the domestic base currency.
type Currency struct {
	ID   int64
	Code string
	Name string
}

// BaseCurrencyCode is the domestic currency against which FX indices are
// quoted and in which synthetic bases are seeded at 100.
const BaseCurrencyCode = "BRL"

// Identifier is a provider-specific code used to request an index's data
// from that provider. An index carries at most one identifier per source.
type Identifier struct {
	ID          int64
	IndexID     int64
	SourceID    int64
	SourceName  string
	Code        string
	Description string
}

// Index is a named market benchmark tracked by the platform.
type Index struct {
	ID              int64
	Name            string
	Currency        Currency
	PrincipalSource DataSource
	// IsSynthetic marks indices whose price level is derived by compounding
	// daily returns from a seeded base value rather than quoted directly.
	IsSynthetic         bool
	CollectionStartDate time.Time
	// CollectionLagDays is the number of business days by which the index's
	// latest available quotation trails the current date.
	CollectionLagDays int
	Identifiers       []Identifier
}

// IdentifierFor returns the index's identifier for the named source.
func (ix Index) IdentifierFor(sourceName string) (Identifier, bool) {
	for _, ident := range ix.Identifiers {
		if ident.SourceName == sourceName {
			return ident, true
		}
	}
	return Identifier{}, false
}

// LastQuotableDate is the most recent date for which a quotation is expected
// to exist. The reference day is the last close (today when today is a
// business day, otherwise the nearest prior business day), moved back by the
// index's collection lag.
func (ix Index) LastQuotableDate(today time.Time, holidays calendar.HolidaySet) time.Time {
	lastClose := calendar.PriorBusinessDay(today, holidays)
	if ix.CollectionLagDays <= 0 {
		return lastClose
	}
	return calendar.AddBusinessDays(lastClose, -ix.CollectionLagDays, holidays)
}
