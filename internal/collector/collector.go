// Package collector orchestrates quotation collection runs: it groups
// indices by data source and currency, drives the provider connectors,
// reconciles the results against the store, and accumulates warnings.
package collector

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/altamira-asset/indexes-server/internal/calendar"
	"github.com/altamira-asset/indexes-server/internal/domain/indices"
	"github.com/altamira-asset/indexes-server/internal/domain/quotations"
	"github.com/altamira-asset/indexes-server/internal/metrics"
	"github.com/altamira-asset/indexes-server/internal/provider"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// Selector names one index to collect, qualified by source and currency.
type Selector struct {
	Source   string
	Currency string
	Index    string
}

// Request describes a collection run. An empty Indices slice means the full
// registry.
type Request struct {
	Indices []Selector
	Start   time.Time
	End     time.Time
}

// Result is the structured outcome of a run. Warnings accompany whatever
// succeeded; a Result is returned even when nothing was collected.
type Result struct {
	RunID    string                 `json:"run_id"`
	Warnings []quotations.Warning   `json:"warnings"`
	Inserted []quotations.Quotation `json:"inserted"`
	// NotInserted are collected records dropped during name→id resolution.
	NotInserted []quotations.Collected `json:"not_inserted,omitempty"`
	// Missing names requested indices that produced no quotation.
	Missing []string `json:"missing,omitempty"`
}

type Service struct {
	indexRepo  indices.Repository
	quoteRepo  quotations.Repository
	connectors provider.Set
	logger     zerolog.Logger
	now        func() time.Time
}

func New(indexRepo indices.Repository, quoteRepo quotations.Repository, connectors provider.Set, logger zerolog.Logger) *Service {
	return &Service{
		indexRepo:  indexRepo,
		quoteRepo:  quoteRepo,
		connectors: connectors,
		logger:     logger.With().Str("component", "collector").Logger(),
		now:        time.Now,
	}
}

// group is one connector invocation: indices sharing a source and currency.
type group struct {
	sourceName   string
	currencyCode string
	indices      []indices.Index
}

// Collect runs a collection over an explicit date range, either for the
// named indices or, when the request names none, for the whole registry.
// The entire run persists inside one transaction: integrity and transport
// failures roll everything back.
func (s *Service) Collect(ctx context.Context, req Request) (result *Result, err error) {
	started := s.now()
	defer func() {
		metrics.CollectionRunDuration.Observe(s.now().Sub(started).Seconds())
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.CollectionRuns.WithLabelValues(outcome).Inc()
		if result != nil {
			metrics.CollectionWarnings.Add(float64(len(result.Warnings)))
			for _, q := range result.Inserted {
				metrics.QuotationsInserted.WithLabelValues(q.SourceName).Inc()
			}
		}
	}()

	if req.Start.IsZero() || req.End.IsZero() {
		return nil, fmt.Errorf("collect: start and end dates are required")
	}
	if req.End.Before(req.Start) {
		return nil, fmt.Errorf("collect: end date precedes start date")
	}

	registry, err := s.indexRepo.LoadRegistry(ctx)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	holidays, err := s.indexRepo.Holidays(ctx)
	if err != nil {
		return nil, fmt.Errorf("load holidays: %w", err)
	}

	result = &Result{RunID: ulid.Make().String()}
	logger := s.logger.With().Str("run_id", result.RunID).Logger()

	groups, requested := s.workSet(registry, req, result)

	var collected []quotations.Collected
	for _, g := range groups {
		records, err := s.collectGroup(ctx, registry, g, req, holidays, result)
		if err != nil {
			return nil, err
		}
		collected = append(collected, records...)
	}

	flagMissing(requested, collected, result)
	quotations.SortCollected(collected)

	rows, err := s.resolve(ctx, registry, collected, result)
	if err != nil {
		return nil, err
	}

	err = s.quoteRepo.WithTx(ctx, func(ctx context.Context, repo quotations.Repository) error {
		inserted, err := repo.UpsertBatch(ctx, rows)
		if err != nil {
			return fmt.Errorf("persist quotations: %w", err)
		}
		result.Inserted = inserted
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info().
		Int("inserted", len(result.Inserted)).
		Int("warnings", len(result.Warnings)).
		Int("missing", len(result.Missing)).
		Msg("collection run finished")

	return result, nil
}

// CollectLatest collects only the most recent missing quotation per index:
// it fetches the widest window implied by the per-index collection lags,
// then narrows the reported set to each index's own last quotable date.
func (s *Service) CollectLatest(ctx context.Context) (*Result, error) {
	registry, err := s.indexRepo.LoadRegistry(ctx)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	if len(registry) == 0 {
		return &Result{RunID: ulid.Make().String()}, nil
	}
	holidays, err := s.indexRepo.Holidays(ctx)
	if err != nil {
		return nil, fmt.Errorf("load holidays: %w", err)
	}

	today := s.now()
	min, max := indices.LastQuotableBounds(registry, today, holidays)

	result, err := s.Collect(ctx, Request{Start: min, End: max})
	if err != nil {
		return nil, err
	}

	// Keep only the quotation landing exactly on each index's own target
	// date; everything else was collected opportunistically.
	targets := make(map[string]time.Time, len(registry))
	for _, ix := range registry {
		targets[ix.Name] = ix.LastQuotableDate(today, holidays)
	}

	kept := result.Inserted[:0]
	hit := make(map[string]bool, len(registry))
	for _, q := range result.Inserted {
		target, ok := targets[q.IndexName]
		if ok && q.Date.Equal(target) {
			kept = append(kept, q)
			hit[q.IndexName] = true
		}
	}
	result.Inserted = kept

	var missing []string
	for _, ix := range registry {
		if !hit[ix.Name] {
			missing = append(missing, ix.Name)
		}
	}
	sort.Strings(missing)
	if len(missing) > 0 {
		result.Missing = missing
		result.Warnings = append(result.Warnings, quotations.Warning{
			Message:    "no quotation collected for the index's last quotable date",
			IndexNames: missing,
		})
	}

	return result, nil
}

// workSet resolves the request into connector groups plus the set of
// requested index names used later for completeness warnings.
func (s *Service) workSet(registry indices.Registry, req Request, result *Result) ([]group, []string) {
	byKey := make(map[string]*group)
	var requested []string

	add := func(sourceName, currencyCode string, ix indices.Index) {
		key := sourceName + "\x00" + currencyCode
		g, ok := byKey[key]
		if !ok {
			g = &group{sourceName: sourceName, currencyCode: currencyCode}
			byKey[key] = g
		}
		g.indices = append(g.indices, ix)
	}

	if len(req.Indices) == 0 {
		// Full-registry run: every index is by definition found.
		for _, ix := range registry {
			requested = append(requested, ix.Name)
			add(ix.PrincipalSource.Name, ix.Currency.Code, ix)
		}
	} else {
		var notFound []string
		for _, sel := range req.Indices {
			ix, ok := registry.ByName(sel.Index)
			if !ok {
				notFound = append(notFound, sel.Index)
				continue
			}
			requested = append(requested, ix.Name)
			add(sel.Source, sel.Currency, ix)
		}
		if len(notFound) > 0 {
			result.Warnings = append(result.Warnings, quotations.Warning{
				Message:    "requested index is not registered",
				IndexNames: notFound,
			})
		}
	}

	keys := make([]string, 0, len(byKey))
	for key := range byKey {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	groups := make([]group, 0, len(keys))
	for _, key := range keys {
		groups = append(groups, *byKey[key])
	}
	return groups, requested
}

// collectGroup resolves the group's currency, source and connector, then
// fetches. Resolution failures skip the group with a warning naming its
// indices; fetch failures abort the run.
func (s *Service) collectGroup(ctx context.Context, registry indices.Registry, g group, req Request, holidays calendar.HolidaySet, result *Result) ([]quotations.Collected, error) {
	names := indexNames(g.indices)

	currency, err := s.indexRepo.CurrencyByCode(ctx, g.currencyCode)
	if err != nil {
		return nil, fmt.Errorf("resolve currency %q: %w", g.currencyCode, err)
	}
	if currency == nil {
		result.Warnings = append(result.Warnings, quotations.Warning{
			Message:    fmt.Sprintf("currency %q is not registered", g.currencyCode),
			IndexNames: names,
		})
		return nil, nil
	}

	source, err := s.indexRepo.SourceByName(ctx, g.sourceName)
	if err != nil {
		return nil, fmt.Errorf("resolve data source %q: %w", g.sourceName, err)
	}
	if source == nil {
		result.Warnings = append(result.Warnings, quotations.Warning{
			Message:    fmt.Sprintf("data source %q is not registered", g.sourceName),
			IndexNames: names,
		})
		return nil, nil
	}

	conn, err := s.connectors.Resolve(source.Name)
	if err != nil {
		result.Warnings = append(result.Warnings, quotations.Warning{
			Message:    err.Error(),
			IndexNames: names,
		})
		return nil, nil
	}

	records, warnings, err := conn.FetchQuotations(ctx, provider.FetchRequest{
		Registry: registry,
		Indices:  g.indices,
		Start:    req.Start,
		End:      req.End,
		Source:   *source,
		Currency: *currency,
		Holidays: holidays,
		Today:    s.now(),
	})
	if err != nil {
		return nil, &provider.FetchError{Source: source.Name, Currency: currency.Code, Err: err}
	}
	result.Warnings = append(result.Warnings, warnings...)
	return records, nil
}

// flagMissing warns about requested indices absent from the collected set.
func flagMissing(requested []string, collected []quotations.Collected, result *Result) {
	seen := make(map[string]bool, len(collected))
	for _, record := range collected {
		seen[record.IndexName] = true
	}

	var missing []string
	for _, name := range requested {
		if !seen[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return
	}
	sort.Strings(missing)
	result.Missing = missing
	result.Warnings = append(result.Warnings, quotations.Warning{
		Message:    "no quotations collected",
		IndexNames: missing,
	})
}

// resolve translates collected records into persistable rows, mapping names
// back to ids. Records whose index, currency or source cannot be resolved
// are reported, not fatal.
func (s *Service) resolve(ctx context.Context, registry indices.Registry, collected []quotations.Collected, result *Result) ([]quotations.Quotation, error) {
	currencies := make(map[string]*indices.Currency)
	sources := make(map[string]*indices.DataSource)
	var dropped []string

	rows := make([]quotations.Quotation, 0, len(collected))
	for _, record := range collected {
		ix, ok := registry.ByName(record.IndexName)
		if !ok {
			dropped = append(dropped, record.IndexName)
			result.NotInserted = append(result.NotInserted, record)
			continue
		}

		currency, cached := currencies[record.CurrencyCode]
		if !cached {
			var err error
			currency, err = s.indexRepo.CurrencyByCode(ctx, record.CurrencyCode)
			if err != nil {
				return nil, fmt.Errorf("resolve currency %q: %w", record.CurrencyCode, err)
			}
			currencies[record.CurrencyCode] = currency
		}
		source, cached := sources[record.SourceName]
		if !cached {
			var err error
			source, err = s.indexRepo.SourceByName(ctx, record.SourceName)
			if err != nil {
				return nil, fmt.Errorf("resolve data source %q: %w", record.SourceName, err)
			}
			sources[record.SourceName] = source
		}
		if currency == nil || source == nil {
			dropped = append(dropped, record.IndexName)
			result.NotInserted = append(result.NotInserted, record)
			continue
		}

		rows = append(rows, quotations.Quotation{
			IndexID:      ix.ID,
			IndexName:    ix.Name,
			CurrencyID:   currency.ID,
			CurrencyCode: currency.Code,
			SourceID:     source.ID,
			SourceName:   source.Name,
			Date:         record.Date,
			Value:        record.Value,
		})
	}

	if len(dropped) > 0 {
		sort.Strings(dropped)
		result.Warnings = append(result.Warnings, quotations.Warning{
			Message:    "collected quotation could not be resolved for persistence",
			IndexNames: dedupe(dropped),
		})
	}
	return rows, nil
}

func indexNames(ixs []indices.Index) []string {
	names := make([]string, 0, len(ixs))
	for _, ix := range ixs {
		names = append(names, ix.Name)
	}
	return names
}

func dedupe(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || sorted[i-1] != s {
			out = append(out, s)
		}
	}
	return out
}
