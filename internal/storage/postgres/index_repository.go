package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/altamira-asset/indexes-server/internal/calendar"
	"github.com/altamira-asset/indexes-server/internal/domain/indices"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ indices.Repository = (*IndexRepository)(nil)

// IndexRepository implements indices.Repository using PostgreSQL.
type IndexRepository struct {
	pool *pgxpool.Pool
}

func NewIndexRepository(pool *pgxpool.Pool) (*IndexRepository, error) {
	if pool == nil {
		return nil, fmt.Errorf("index repository: pool is nil")
	}
	return &IndexRepository{pool: pool}, nil
}

const loadIndicesQuery = `
SELECT i.id, i.name, i.is_synthetic, i.collection_start_date, i.collection_lag_days,
       c.id, c.code, c.name,
       s.id, s.name
FROM indices i
JOIN currencies c ON c.id = i.currency_id
JOIN data_sources s ON s.id = i.principal_source_id
ORDER BY i.name`

const loadIdentifiersQuery = `
SELECT ii.id, ii.index_id, ii.data_source_id, s.name, ii.code, ii.description
FROM index_identifiers ii
JOIN data_sources s ON s.id = ii.data_source_id
ORDER BY ii.index_id, s.name`

// LoadRegistry returns every registered index with its currency, principal
// source and provider identifiers resolved.
func (r *IndexRepository) LoadRegistry(ctx context.Context) (indices.Registry, error) {
	rows, err := r.pool.Query(ctx, loadIndicesQuery)
	if err != nil {
		return nil, fmt.Errorf("load indices: %w", err)
	}
	defer rows.Close()

	var registry indices.Registry
	byID := make(map[int64]int)
	for rows.Next() {
		var ix indices.Index
		var startDate time.Time
		err := rows.Scan(
			&ix.ID, &ix.Name, &ix.IsSynthetic, &startDate, &ix.CollectionLagDays,
			&ix.Currency.ID, &ix.Currency.Code, &ix.Currency.Name,
			&ix.PrincipalSource.ID, &ix.PrincipalSource.Name,
		)
		if err != nil {
			return nil, fmt.Errorf("scan index: %w", err)
		}
		ix.CollectionStartDate = startDate.UTC()
		byID[ix.ID] = len(registry)
		registry = append(registry, ix)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load indices: %w", err)
	}

	identRows, err := r.pool.Query(ctx, loadIdentifiersQuery)
	if err != nil {
		return nil, fmt.Errorf("load identifiers: %w", err)
	}
	defer identRows.Close()

	for identRows.Next() {
		var ident indices.Identifier
		err := identRows.Scan(&ident.ID, &ident.IndexID, &ident.SourceID, &ident.SourceName, &ident.Code, &ident.Description)
		if err != nil {
			return nil, fmt.Errorf("scan identifier: %w", err)
		}
		pos, ok := byID[ident.IndexID]
		if !ok {
			continue
		}
		registry[pos].Identifiers = append(registry[pos].Identifiers, ident)
	}
	if err := identRows.Err(); err != nil {
		return nil, fmt.Errorf("load identifiers: %w", err)
	}

	return registry, nil
}

// CurrencyByCode returns the currency with the given code, or nil when no
// such currency is registered.
func (r *IndexRepository) CurrencyByCode(ctx context.Context, code string) (*indices.Currency, error) {
	var currency indices.Currency
	err := r.pool.QueryRow(ctx,
		`SELECT id, code, name FROM currencies WHERE code = $1`, code,
	).Scan(&currency.ID, &currency.Code, &currency.Name)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get currency %q: %w", code, err)
	}
	return &currency, nil
}

// SourceByName returns the data source with the given name, or nil when no
// such source is registered.
func (r *IndexRepository) SourceByName(ctx context.Context, name string) (*indices.DataSource, error) {
	var source indices.DataSource
	err := r.pool.QueryRow(ctx,
		`SELECT id, name FROM data_sources WHERE name = $1`, name,
	).Scan(&source.ID, &source.Name)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get data source %q: %w", name, err)
	}
	return &source, nil
}

// Holidays returns the full holiday calendar as a lookup set.
func (r *IndexRepository) Holidays(ctx context.Context) (calendar.HolidaySet, error) {
	rows, err := r.pool.Query(ctx, `SELECT day FROM holidays`)
	if err != nil {
		return nil, fmt.Errorf("load holidays: %w", err)
	}
	defer rows.Close()

	var days []time.Time
	for rows.Next() {
		var day time.Time
		if err := rows.Scan(&day); err != nil {
			return nil, fmt.Errorf("scan holiday: %w", err)
		}
		days = append(days, day.UTC())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load holidays: %w", err)
	}
	return calendar.NewHolidaySet(days...), nil
}

// ReplaceHolidays loads the given calendar into the holidays table, keeping
// rows already present. Used by the migrate command to sync the YAML file.
func (r *IndexRepository) ReplaceHolidays(ctx context.Context, holidays []calendar.Holiday) error {
	for _, h := range holidays {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO holidays (day, name) VALUES ($1, $2)
			 ON CONFLICT (day) DO UPDATE SET name = EXCLUDED.name`,
			h.Date, h.Name,
		)
		if err != nil {
			return fmt.Errorf("upsert holiday %s: %w", h.Date.Format("2006-01-02"), err)
		}
	}
	return nil
}
