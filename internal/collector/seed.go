package collector

import (
	"context"
	"fmt"

	"github.com/altamira-asset/indexes-server/internal/domain/indices"
	"github.com/altamira-asset/indexes-server/internal/domain/quotations"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

// syntheticBaseValue is the level a synthetic index starts at on its
// collection start date, in the domestic currency.
var syntheticBaseValue = decimal.NewFromInt(100)

// SeedSyntheticBases creates the missing base quotation for every synthetic
// index, anchoring the return-compounding chain the connectors depend on.
// BRL indices seed at 100; other currencies seed at 100 times the
// currency's FX quotation on the start date. A missing FX quotation skips
// the index with a warning.
func (s *Service) SeedSyntheticBases(ctx context.Context) (*Result, error) {
	registry, err := s.indexRepo.LoadRegistry(ctx)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}

	manual, err := s.indexRepo.SourceByName(ctx, "Manual")
	if err != nil {
		return nil, fmt.Errorf("resolve manual data source: %w", err)
	}
	if manual == nil {
		return nil, fmt.Errorf("data source %q is not registered; run migrations", "Manual")
	}

	result := &Result{RunID: ulid.Make().String()}

	var rows []quotations.Quotation
	for _, ix := range registry.Synthetic() {
		existing, err := s.quoteRepo.Get(ctx, ix.ID, ix.CollectionStartDate, ix.Currency.Code)
		if err != nil {
			return nil, fmt.Errorf("check base for %q: %w", ix.Name, err)
		}
		if existing != nil {
			continue
		}

		value := syntheticBaseValue
		if ix.Currency.Code != indices.BaseCurrencyCode {
			fx, warning := s.fxQuotation(ctx, registry, ix)
			if warning != nil {
				result.Warnings = append(result.Warnings, *warning)
				continue
			}
			value = syntheticBaseValue.Mul(fx)
		}

		rows = append(rows, quotations.Quotation{
			IndexID:      ix.ID,
			IndexName:    ix.Name,
			CurrencyID:   ix.Currency.ID,
			CurrencyCode: ix.Currency.Code,
			SourceID:     manual.ID,
			SourceName:   manual.Name,
			Date:         ix.CollectionStartDate,
			Value:        value,
		})
	}

	err = s.quoteRepo.WithTx(ctx, func(ctx context.Context, repo quotations.Repository) error {
		inserted, err := repo.UpsertBatch(ctx, rows)
		if err != nil {
			return fmt.Errorf("persist base quotations: %w", err)
		}
		result.Inserted = inserted
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("run_id", result.RunID).
		Int("seeded", len(result.Inserted)).
		Int("warnings", len(result.Warnings)).
		Msg("synthetic bases seeded")

	return result, nil
}

// fxQuotation returns the domestic-currency quotation of the index's
// currency on its collection start date. FX rates are tracked as quotations
// of an index named after the currency code.
func (s *Service) fxQuotation(ctx context.Context, registry indices.Registry, ix indices.Index) (decimal.Decimal, *quotations.Warning) {
	fxIndex, ok := registry.ByName(ix.Currency.Code)
	if !ok {
		return decimal.Decimal{}, &quotations.Warning{
			Message:    fmt.Sprintf("no FX index registered for currency %q", ix.Currency.Code),
			IndexNames: []string{ix.Name},
		}
	}

	fx, err := s.quoteRepo.Get(ctx, fxIndex.ID, ix.CollectionStartDate, indices.BaseCurrencyCode)
	if err == nil && fx == nil {
		return decimal.Decimal{}, &quotations.Warning{
			Message: fmt.Sprintf("no %s quotation for currency %q on %s",
				indices.BaseCurrencyCode, ix.Currency.Code, ix.CollectionStartDate.Format("2006-01-02")),
			IndexNames: []string{ix.Name},
		}
	}
	if err != nil {
		return decimal.Decimal{}, &quotations.Warning{
			Message:    fmt.Sprintf("FX lookup failed for currency %q: %v", ix.Currency.Code, err),
			IndexNames: []string{ix.Name},
		}
	}
	return fx.Value, nil
}
