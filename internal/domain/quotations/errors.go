package quotations

import (
	"fmt"
	"time"
)

// MissingBaseError aborts a collection run: a synthetic index's forward
// chain depends on an unbroken sequence of daily values, so a gap must be
// backfilled, never skipped.
type MissingBaseError struct {
	IndexName string
	Date      time.Time
}

func (e MissingBaseError) Error() string {
	return fmt.Sprintf("index %q: no quotation for business day %s; backfill before collecting",
		e.IndexName, e.Date.Format("2006-01-02"))
}

// UnknownIdentifierError aborts a collection run: an identifier present in a
// provider response was necessarily requested, so its absence from the
// registry at parse time indicates corrupted reference data, not an expected
// external condition.
type UnknownIdentifierError struct {
	SourceName string
	Code       string
}

func (e UnknownIdentifierError) Error() string {
	return fmt.Sprintf("identifier %q returned by source %q is not registered to any index", e.Code, e.SourceName)
}
