package quantum

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/altamira-asset/indexes-server/internal/calendar"
	"github.com/altamira-asset/indexes-server/internal/domain/indices"
	"github.com/altamira-asset/indexes-server/internal/domain/quotations"
	"github.com/altamira-asset/indexes-server/internal/provider"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// BaseSource looks up persisted quotations needed to anchor a synthetic
// index's return chain. Implemented by the quotation store.
type BaseSource interface {
	Get(ctx context.Context, indexID int64, date time.Time, currencyCode string) (*quotations.Quotation, error)
}

// Connector fetches index quotation points from Quantum. Plain indices are
// requested as price levels; synthetic indices are requested as period
// returns and bootstrapped into price levels day by day.
type Connector struct {
	client *Client
	bases  BaseSource
	logger zerolog.Logger
	now    func() time.Time
}

var _ provider.Connector = (*Connector)(nil)

func New(client *Client, bases BaseSource, logger zerolog.Logger) *Connector {
	return &Connector{
		client: client,
		bases:  bases,
		logger: logger.With().Str("connector", "quantum").Logger(),
		now:    time.Now,
	}
}

func (c *Connector) FetchQuotations(ctx context.Context, req provider.FetchRequest) ([]quotations.Collected, []quotations.Warning, error) {
	today := req.Today
	if today.IsZero() {
		today = c.now()
	}

	var warnings []quotations.Warning

	plain, synthetic, missingIdent := partition(req.Indices, req.Source.Name)
	if len(missingIdent) > 0 {
		warnings = append(warnings, quotations.Warning{
			Message:    fmt.Sprintf("no identifier registered for source %q", req.Source.Name),
			IndexNames: missingIdent,
		})
	}

	var collected []quotations.Collected

	if len(plain) > 0 {
		series, err := c.fetch(ctx, req, plain, FieldClose)
		if err != nil {
			return nil, nil, err
		}
		records, err := c.convertPrices(req, series, today)
		if err != nil {
			return nil, nil, err
		}
		collected = append(collected, records...)
	}

	if len(synthetic) > 0 {
		series, err := c.fetch(ctx, req, synthetic, FieldReturn)
		if err != nil {
			return nil, nil, err
		}
		records, err := c.convertReturns(ctx, req, series, today)
		if err != nil {
			return nil, nil, err
		}
		collected = append(collected, records...)
	}

	c.logger.Info().
		Int("indices", len(req.Indices)).
		Int("collected", len(collected)).
		Str("currency", req.Currency.Code).
		Msg("fetched quotation points")

	return collected, warnings, nil
}

// partition splits indices into plain and synthetic subsets, dropping (and
// reporting) indices that carry no identifier for the source. The two
// subsets hit the same endpoint with different field parameters.
func partition(ixs []indices.Index, sourceName string) (plain, synthetic []indices.Index, missingIdent []string) {
	for _, ix := range ixs {
		if _, ok := ix.IdentifierFor(sourceName); !ok {
			missingIdent = append(missingIdent, ix.Name)
			continue
		}
		if ix.IsSynthetic {
			synthetic = append(synthetic, ix)
		} else {
			plain = append(plain, ix)
		}
	}
	return plain, synthetic, missingIdent
}

func (c *Connector) fetch(ctx context.Context, req provider.FetchRequest, ixs []indices.Index, field Field) (*Series, error) {
	codes := make([]string, 0, len(ixs))
	for _, ix := range ixs {
		ident, _ := ix.IdentifierFor(req.Source.Name)
		codes = append(codes, ident.Code)
	}
	return c.client.FetchSeries(ctx, SeriesQuery{
		Codes:        codes,
		Start:        req.Start,
		End:          req.End,
		CurrencyCode: req.Currency.Code,
		Field:        field,
	})
}

// convertPrices turns price-level cells into collected quotations, dropping
// no-data cells and dates outside each index's quotable window.
func (c *Connector) convertPrices(req provider.FetchRequest, series *Series, today time.Time) ([]quotations.Collected, error) {
	var out []quotations.Collected
	for _, row := range series.Rows {
		for _, col := range sortedColumns(row.Cells) {
			raw := row.Cells[col]
			ix, skip, err := c.resolveCell(req, series, col, row.Date, raw, today)
			if err != nil {
				return nil, err
			}
			if skip {
				continue
			}
			value, err := parseDecimal(raw)
			if err != nil {
				return nil, fmt.Errorf("index %q on %s: %w", ix.Name, row.Date.Format("2006-01-02"), err)
			}
			out = append(out, quotations.Collected{
				Date:         row.Date,
				IndexName:    ix.Name,
				Value:        value,
				CurrencyCode: req.Currency.Code,
				SourceName:   req.Source.Name,
			})
		}
	}
	return out, nil
}

// convertReturns bootstraps period returns into absolute price levels. The
// fold walks rows in ascending date order carrying the last computed price
// per index; the first value of a chain anchors on a persisted quotation for
// the preceding business day. A broken chain is an integrity failure, never
// a silent skip.
func (c *Connector) convertReturns(ctx context.Context, req provider.FetchRequest, series *Series, today time.Time) ([]quotations.Collected, error) {
	chain := make(map[string]chainState)
	one := decimal.NewFromInt(1)

	var out []quotations.Collected
	for _, row := range series.Rows {
		for _, col := range sortedColumns(row.Cells) {
			raw := row.Cells[col]
			ix, skip, err := c.resolveCell(req, series, col, row.Date, raw, today)
			if err != nil {
				return nil, err
			}
			if skip {
				continue
			}
			// Returns only produce values after inception; the level at
			// the collection start date itself comes from base seeding.
			if !row.Date.After(ix.CollectionStartDate) {
				continue
			}

			periodReturn, err := parseDecimal(raw)
			if err != nil {
				return nil, fmt.Errorf("index %q on %s: %w", ix.Name, row.Date.Format("2006-01-02"), err)
			}

			base, err := c.baseFor(ctx, req, ix, row.Date, chain)
			if err != nil {
				return nil, err
			}

			price := base.Mul(one.Add(periodReturn))
			chain[ix.Name] = chainState{date: row.Date, price: price}

			out = append(out, quotations.Collected{
				Date:         row.Date,
				IndexName:    ix.Name,
				Value:        price,
				CurrencyCode: req.Currency.Code,
				SourceName:   req.Source.Name,
			})
		}
	}
	return out, nil
}

// chainState carries the last computed price per index through the fold, so
// each return can verify it compounds on exactly the preceding business day.
type chainState struct {
	date  time.Time
	price decimal.Decimal
}

// baseFor returns the price level the day's return compounds on. The chain's
// first value (the request's start date, or the day after inception) anchors
// on the persisted quotation for the preceding business day; every later
// value chains on the price computed in this run for that exact day.
func (c *Connector) baseFor(ctx context.Context, req provider.FetchRequest, ix indices.Index, day time.Time, chain map[string]chainState) (decimal.Decimal, error) {
	prev := calendar.AddBusinessDays(day, -1, req.Holidays)

	startPlusOne := calendar.AddBusinessDays(ix.CollectionStartDate, 1, req.Holidays)
	if day.Equal(req.Start) || day.Equal(startPlusOne) {
		persisted, err := c.bases.Get(ctx, ix.ID, prev, req.Currency.Code)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("look up base quotation: %w", err)
		}
		if persisted == nil {
			return decimal.Decimal{}, quotations.MissingBaseError{IndexName: ix.Name, Date: prev}
		}
		return persisted.Value, nil
	}

	state, ok := chain[ix.Name]
	if !ok || !state.date.Equal(prev) {
		return decimal.Decimal{}, quotations.MissingBaseError{IndexName: ix.Name, Date: prev}
	}
	return state.price, nil
}

// resolveCell maps a response cell back to its index and applies the shared
// skip rules. An identifier missing from the registry here is fatal: step
// construction already filtered unknown identifiers, so the response can
// only echo codes we requested.
func (c *Connector) resolveCell(req provider.FetchRequest, series *Series, col string, day time.Time, raw string, today time.Time) (indices.Index, bool, error) {
	code, ok := series.Columns[col]
	if !ok {
		return indices.Index{}, false, fmt.Errorf("quantum: column %q missing from legend", col)
	}
	ix, ok := req.Registry.ByIdentifier(req.Source.Name, code)
	if !ok {
		return indices.Index{}, false, quotations.UnknownIdentifierError{SourceName: req.Source.Name, Code: code}
	}
	if strings.EqualFold(strings.TrimSpace(raw), NoData) {
		return ix, true, nil
	}
	if day.Before(ix.CollectionStartDate) {
		return ix, true, nil
	}
	if day.After(ix.LastQuotableDate(today, req.Holidays)) {
		return ix, true, nil
	}
	return ix, false, nil
}

// parseDecimal normalizes Quantum's locale: dots are thousand separators
// and the comma is the decimal separator.
func parseDecimal(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	value, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid decimal %q", raw)
	}
	return value, nil
}

func sortedColumns(cells map[string]string) []string {
	cols := make([]string, 0, len(cells))
	for col := range cells {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}
