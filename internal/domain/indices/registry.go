package indices

import (
	"time"

	"github.com/altamira-asset/indexes-server/internal/calendar"
)

// Registry is the full set of configured indices, loaded once per collection
// request. It is a plain value slice; all queries below are pure
// computations with no lazy I/O.
type Registry []Index

// ByName returns the index with the given unique name.
func (r Registry) ByName(name string) (Index, bool) {
	for _, ix := range r {
		if ix.Name == name {
			return ix, true
		}
	}
	return Index{}, false
}

// ByNames partitions the requested names into resolved indices and names
// absent from the registry. Order of found follows the input order.
func (r Registry) ByNames(names []string) (found []Index, missing []string) {
	for _, name := range names {
		if ix, ok := r.ByName(name); ok {
			found = append(found, ix)
		} else {
			missing = append(missing, name)
		}
	}
	return found, missing
}

// ByIdentifier returns the index carrying the given provider code for the
// named source. Absence is an expected condition for callers building
// requests; response parsers treat it as a data-integrity failure.
func (r Registry) ByIdentifier(sourceName, code string) (Index, bool) {
	for _, ix := range r {
		if ident, ok := ix.IdentifierFor(sourceName); ok && ident.Code == code {
			return ix, true
		}
	}
	return Index{}, false
}

// ByIdentifiers returns the indices carrying any of the given provider codes
// for the named source. Output follows the input code order; unresolved codes
// are silently dropped, matching the warning-not-crash contract of
// ByIdentifier.
func (r Registry) ByIdentifiers(sourceName string, codes []string) []Index {
	var out []Index
	for _, code := range codes {
		if ix, ok := r.ByIdentifier(sourceName, code); ok {
			out = append(out, ix)
		}
	}
	return out
}

// Synthetic returns the indices whose levels are derived from daily returns.
func (r Registry) Synthetic() []Index {
	var out []Index
	for _, ix := range r {
		if ix.IsSynthetic {
			out = append(out, ix)
		}
	}
	return out
}

// GroupBySourceAndCurrency buckets indices by principal data source name and
// then by currency code, the unit of work for one connector invocation.
func GroupBySourceAndCurrency(ixs []Index) map[string]map[string][]Index {
	groups := make(map[string]map[string][]Index)
	for _, ix := range ixs {
		byCurrency, ok := groups[ix.PrincipalSource.Name]
		if !ok {
			byCurrency = make(map[string][]Index)
			groups[ix.PrincipalSource.Name] = byCurrency
		}
		byCurrency[ix.Currency.Code] = append(byCurrency[ix.Currency.Code], ix)
	}
	return groups
}

// LastQuotableBounds returns the earliest and latest last-quotable dates
// across the given indices. Each index applies its own collection lag, so
// the bounds differ whenever lags differ.
func LastQuotableBounds(ixs []Index, today time.Time, holidays calendar.HolidaySet) (min, max time.Time) {
	for i, ix := range ixs {
		last := ix.LastQuotableDate(today, holidays)
		if i == 0 {
			min, max = last, last
			continue
		}
		if last.Before(min) {
			min = last
		}
		if last.After(max) {
			max = last
		}
	}
	return min, max
}
