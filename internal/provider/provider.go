// Package provider defines the contract between the collection orchestrator
// and the external data source connectors. The set of providers is small and
// known at compile time, so connectors are wired explicitly into a Set
// rather than through a dynamic plugin registry.
package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/altamira-asset/indexes-server/internal/calendar"
	"github.com/altamira-asset/indexes-server/internal/domain/indices"
	"github.com/altamira-asset/indexes-server/internal/domain/quotations"
)

// Source names a known external data provider.
type Source string

const (
	// SourceQuantum is the Quantum terminal, the platform's primary
	// quotation provider.
	SourceQuantum Source = "Quantum"
	// SourceManual marks hand-seeded rows such as synthetic base values.
	// It has no connector.
	SourceManual Source = "Manual"
)

// FetchRequest asks a connector for quotation points for one group of
// indices sharing a data source and currency.
type FetchRequest struct {
	// Registry is the full index set, used to resolve identifiers that
	// come back in the provider response.
	Registry indices.Registry
	// Indices is the subset of the registry to fetch, all sharing Source
	// and Currency.
	Indices  []indices.Index
	Start    time.Time
	End      time.Time
	Source   indices.DataSource
	Currency indices.Currency
	Holidays calendar.HolidaySet
	// Today anchors each index's last quotable date. The zero value means
	// time.Now.
	Today time.Time
}

// Connector translates a FetchRequest into provider wire calls and parses
// the response back into normalized quotation records. Unresolvable
// identifiers discovered while building the request are warnings; integrity
// and transport failures are errors that abort the run.
type Connector interface {
	FetchQuotations(ctx context.Context, req FetchRequest) ([]quotations.Collected, []quotations.Warning, error)
}

// FetchError wraps a connector failure with the group it belonged to, so
// callers can tell a provider problem apart from a local one.
type FetchError struct {
	Source   string
	Currency string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch from %s (%s): %v", e.Source, e.Currency, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Set maps each known source to its connector.
type Set map[Source]Connector

// Resolve returns the connector for the named source.
func (s Set) Resolve(name string) (Connector, error) {
	conn, ok := s[Source(name)]
	if !ok {
		return nil, fmt.Errorf("no connector for data source %q", name)
	}
	return conn, nil
}
