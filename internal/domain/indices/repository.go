package indices

import (
	"context"

	"github.com/altamira-asset/indexes-server/internal/calendar"
)

// Repository loads index metadata and its reference tables. Lookups that can
// legitimately miss return nil rather than an error; callers surface the
// absence as a collection warning.
type Repository interface {
	LoadRegistry(ctx context.Context) (Registry, error)
	CurrencyByCode(ctx context.Context, code string) (*Currency, error)
	SourceByName(ctx context.Context, name string) (*DataSource, error)
	Holidays(ctx context.Context) (calendar.HolidaySet, error)
}
