package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/altamira-asset/indexes-server/internal/domain/indices"
	"github.com/altamira-asset/indexes-server/internal/domain/quotations"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var _ quotations.Repository = (*QuotationRepository)(nil)

// upsertChunkSize bounds the number of rows per INSERT statement, keeping the
// parameter count well under the wire protocol limit.
const upsertChunkSize = 1000

// QuotationRepository implements quotations.Repository using PostgreSQL. A
// zero tx runs queries on the pool; WithTx hands out a copy bound to an open
// transaction.
type QuotationRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func NewQuotationRepository(pool *pgxpool.Pool) (*QuotationRepository, error) {
	if pool == nil {
		return nil, fmt.Errorf("quotation repository: pool is nil")
	}
	return &QuotationRepository{pool: pool}, nil
}

func (r *QuotationRepository) db() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

// WithTx runs fn inside a transaction. A nested call reuses the transaction
// already open so the outermost caller controls commit and rollback.
func (r *QuotationRepository) WithTx(ctx context.Context, fn func(context.Context, quotations.Repository) error) error {
	if r.tx != nil {
		return fn(ctx, r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	wrapped := &QuotationRepository{pool: r.pool, tx: tx}
	if err := fn(ctx, wrapped); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

const quotationColumns = `
q.id, q.index_id, i.name, q.currency_id, c.code, q.data_source_id, s.name, q.date, q.value::text
FROM index_quotations q
JOIN indices i ON i.id = q.index_id
JOIN currencies c ON c.id = q.currency_id
JOIN data_sources s ON s.id = q.data_source_id`

func scanQuotation(row pgx.Row) (*quotations.Quotation, error) {
	var q quotations.Quotation
	var day time.Time
	var value string
	err := row.Scan(&q.ID, &q.IndexID, &q.IndexName, &q.CurrencyID, &q.CurrencyCode,
		&q.SourceID, &q.SourceName, &day, &value)
	if err != nil {
		return nil, err
	}
	q.Date = day.UTC()
	q.Value, err = decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("parse stored value %q: %w", value, err)
	}
	return &q, nil
}

// Get returns the quotation for (index, date, currency code), or nil when
// none is stored.
func (r *QuotationRepository) Get(ctx context.Context, indexID int64, date time.Time, currencyCode string) (*quotations.Quotation, error) {
	row := r.db().QueryRow(ctx,
		`SELECT `+quotationColumns+`
		 WHERE q.index_id = $1 AND q.date = $2 AND c.code = $3`,
		indexID, date, currencyCode,
	)
	q, err := scanQuotation(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get quotation: %w", err)
	}
	return q, nil
}

// List returns all stored quotations ordered by date, then index name.
func (r *QuotationRepository) List(ctx context.Context) ([]quotations.Quotation, error) {
	rows, err := r.db().Query(ctx, `SELECT `+quotationColumns+` ORDER BY q.date, i.name`)
	if err != nil {
		return nil, fmt.Errorf("list quotations: %w", err)
	}
	defer rows.Close()

	var out []quotations.Quotation
	for rows.Next() {
		q, err := scanQuotation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan quotation: %w", err)
		}
		out = append(out, *q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list quotations: %w", err)
	}
	return out, nil
}

// ListIndicesMissingAny returns the indices that have no quotation rows at
// all, typically freshly registered ones awaiting their first collection.
func (r *QuotationRepository) ListIndicesMissingAny(ctx context.Context) ([]indices.Index, error) {
	rows, err := r.db().Query(ctx, `
SELECT i.id, i.name, i.is_synthetic, i.collection_start_date, i.collection_lag_days,
       c.id, c.code, c.name,
       s.id, s.name
FROM indices i
JOIN currencies c ON c.id = i.currency_id
JOIN data_sources s ON s.id = i.principal_source_id
LEFT JOIN index_quotations q ON q.index_id = i.id
WHERE q.id IS NULL
ORDER BY i.name`)
	if err != nil {
		return nil, fmt.Errorf("list indices without quotations: %w", err)
	}
	defer rows.Close()

	var out []indices.Index
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
		out = append(out, ix)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list indices without quotations: %w", err)
	}
	return out, nil
}

// UpsertBatch writes rows keyed on (index_id, currency_id, date), overwriting
// the source and value on conflict. The returned slice carries the database
// ids and preserves the submission order.
func (r *QuotationRepository) UpsertBatch(ctx context.Context, rows []quotations.Quotation) ([]quotations.Quotation, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	out := make([]quotations.Quotation, len(rows))
	copy(out, rows)

	for start := 0; start < len(out); start += upsertChunkSize {
		end := start + upsertChunkSize
		if end > len(out) {
			end = len(out)
		}
		if err := r.upsertChunk(ctx, out[start:end]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *QuotationRepository) upsertChunk(ctx context.Context, chunk []quotations.Quotation) error {
	args := make([]any, 0, len(chunk)*5)
	for _, q := range chunk {
		args = append(args, q.IndexID, q.CurrencyID, q.SourceID, q.Date, q.Value.String())
	}

	rows, err := r.db().Query(ctx, buildUpsertSQL(len(chunk)), args...)
	if err != nil {
		return fmt.Errorf("upsert quotations: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]int64, len(chunk))
	for rows.Next() {
		var id, indexID, currencyID int64
		var day time.Time
		if err := rows.Scan(&id, &indexID, &currencyID, &day); err != nil {
			return fmt.Errorf("scan upserted id: %w", err)
		}
		ids[upsertKey(indexID, currencyID, day)] = id
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("upsert quotations: %w", err)
	}

	for i := range chunk {
		chunk[i].ID = ids[upsertKey(chunk[i].IndexID, chunk[i].CurrencyID, chunk[i].Date)]
	}
	return nil
}

func upsertKey(indexID, currencyID int64, day time.Time) string {
	return fmt.Sprintf("%d/%d/%s", indexID, currencyID, day.UTC().Format("2006-01-02"))
}

// buildUpsertSQL renders the multi-row upsert statement for n rows, five
// parameters each.
func buildUpsertSQL(n int) string {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO index_quotations (index_id, currency_id, data_source_id, date, value) VALUES `)
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteByte(',')
		}
		base := i * 5
		fmt.Fprintf(&sb, "($%d,$%d,$%d,$%d,$%d)", base+1, base+2, base+3, base+4, base+5)
	}
	sb.WriteString(`
ON CONFLICT (index_id, currency_id, date) DO UPDATE SET
  data_source_id = EXCLUDED.data_source_id,
  value = EXCLUDED.value,
  updated_at = now()
RETURNING id, index_id, currency_id, date`)
	return sb.String()
}
