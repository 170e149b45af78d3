package indices

import (
	"testing"
	"time"

	"github.com/altamira-asset/indexes-server/internal/calendar"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var (
	brl     = Currency{ID: 1, Code: "BRL", Name: "Real"}
	usd     = Currency{ID: 2, Code: "USD", Name: "Dólar"}
	quantum = DataSource{ID: 1, Name: "Quantum"}
)

func testRegistry() Registry {
	return Registry{
		{
			ID: 1, Name: "IMA-B", Currency: brl, PrincipalSource: quantum,
			CollectionStartDate: date(2020, time.January, 2),
			Identifiers: []Identifier{
				{IndexID: 1, SourceName: "Quantum", Code: "IMAB"},
			},
		},
		{
			ID: 2, Name: "CONSIGNADO-INSS", Currency: brl, PrincipalSource: quantum,
			IsSynthetic:         true,
			CollectionStartDate: date(2024, time.January, 2),
			CollectionLagDays:   2,
			Identifiers: []Identifier{
				{IndexID: 2, SourceName: "Quantum", Code: "CONSINSS"},
			},
		},
		{
			ID: 3, Name: "GLOBAL-AGG", Currency: usd, PrincipalSource: quantum,
			CollectionStartDate: date(2021, time.June, 1),
			CollectionLagDays:   1,
		},
	}
}

func TestByName(t *testing.T) {
	r := testRegistry()

	if _, ok := r.ByName("IMA-B"); !ok {
		t.Error("expected to find IMA-B")
	}
	if _, ok := r.ByName("NOPE"); ok {
		t.Error("did not expect to find NOPE")
	}
}

func TestByNames(t *testing.T) {
	r := testRegistry()

	found, missing := r.ByNames([]string{"CONSIGNADO-INSS", "NOPE", "IMA-B"})
	if len(found) != 2 {
		t.Fatalf("found %d indices, want 2", len(found))
	}
	if found[0].Name != "CONSIGNADO-INSS" || found[1].Name != "IMA-B" {
		t.Errorf("found order = %q, %q", found[0].Name, found[1].Name)
	}
	if len(missing) != 1 || missing[0] != "NOPE" {
		t.Errorf("missing = %v, want [NOPE]", missing)
	}
}

func TestByIdentifier(t *testing.T) {
	r := testRegistry()

	ix, ok := r.ByIdentifier("Quantum", "CONSINSS")
	if !ok || ix.Name != "CONSIGNADO-INSS" {
		t.Errorf("ByIdentifier = %q, %v", ix.Name, ok)
	}
	if _, ok := r.ByIdentifier("Quantum", "GHOST"); ok {
		t.Error("did not expect to resolve GHOST")
	}
	if _, ok := r.ByIdentifier("OtherSource", "IMAB"); ok {
		t.Error("identifier codes are scoped per source")
	}
}

func TestByIdentifiers(t *testing.T) {
	r := testRegistry()

	found := r.ByIdentifiers("Quantum", []string{"CONSINSS", "GHOST", "IMAB"})
	if len(found) != 2 {
		t.Fatalf("found %d indices, want 2", len(found))
	}
	if found[0].Name != "CONSIGNADO-INSS" || found[1].Name != "IMA-B" {
		t.Errorf("found order = %q, %q", found[0].Name, found[1].Name)
	}
}

func TestSynthetic(t *testing.T) {
	synthetic := testRegistry().Synthetic()
	if len(synthetic) != 1 || synthetic[0].Name != "CONSIGNADO-INSS" {
		t.Errorf("Synthetic() = %v", synthetic)
	}
}

func TestGroupBySourceAndCurrency(t *testing.T) {
	groups := GroupBySourceAndCurrency(testRegistry())

	byCurrency, ok := groups["Quantum"]
	if !ok {
		t.Fatal("expected Quantum group")
	}
	if len(byCurrency["BRL"]) != 2 {
		t.Errorf("Quantum/BRL has %d indices, want 2", len(byCurrency["BRL"]))
	}
	if len(byCurrency["USD"]) != 1 {
		t.Errorf("Quantum/USD has %d indices, want 1", len(byCurrency["USD"]))
	}
}

func TestLastQuotableDate(t *testing.T) {
	holidays := calendar.NewHolidaySet(date(2024, time.January, 1))
	// 2024-01-10 is a Wednesday.
	today := date(2024, time.January, 10)

	tests := []struct {
		name string
		lag  int
		want time.Time
	}{
		{"no lag quotes at last close", 0, date(2024, time.January, 10)},
		{"one day lag", 1, date(2024, time.January, 9)},
		{"lag crosses weekend and holiday", 7, date(2023, time.December, 29)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ix := Index{CollectionLagDays: tt.lag}
			got := ix.LastQuotableDate(today, holidays)
			if !got.Equal(tt.want) {
				t.Errorf("LastQuotableDate = %s, want %s", got.Format("2006-01-02"), tt.want.Format("2006-01-02"))
			}
		})
	}
}

func TestLastQuotableDateFromWeekend(t *testing.T) {
	// Saturday rolls back to Friday before applying the lag.
	ix := Index{CollectionLagDays: 1}
	got := ix.LastQuotableDate(date(2024, time.January, 13), nil)
	want := date(2024, time.January, 11)
	if !got.Equal(want) {
		t.Errorf("LastQuotableDate = %s, want %s", got.Format("2006-01-02"), want.Format("2006-01-02"))
	}
}

func TestLastQuotableBounds(t *testing.T) {
	holidays := calendar.NewHolidaySet(date(2024, time.January, 1))
	today := date(2024, time.January, 10)

	min, max := LastQuotableBounds(testRegistry(), today, holidays)
	// Lags are 0, 2 and 1 → last quotable dates 01-10, 01-08, 01-09.
	if !min.Equal(date(2024, time.January, 8)) {
		t.Errorf("min = %s, want 2024-01-08", min.Format("2006-01-02"))
	}
	if !max.Equal(date(2024, time.January, 10)) {
		t.Errorf("max = %s, want 2024-01-10", max.Format("2006-01-02"))
	}
}
