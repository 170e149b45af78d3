package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/altamira-asset/indexes-server/internal/calendar"
)

func TestLoadRegistry(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)

	brlID := insertCurrency(t, ctx, pool, "BRL", "Real")
	usdID := insertCurrency(t, ctx, pool, "USD", "Dólar")
	quantumID := insertDataSource(t, ctx, pool, "Quantum")
	imabID := insertIndex(t, ctx, pool, "IMA-B", brlID, quantumID, false, day(2020, time.January, 2), 0)
	consID := insertIndex(t, ctx, pool, "CONSIGNADO-INSS", brlID, quantumID, true, day(2024, time.January, 2), 2)
	insertIndex(t, ctx, pool, "GLOBAL-AGG", usdID, quantumID, false, day(2021, time.June, 1), 1)
	insertIdentifier(t, ctx, pool, imabID, quantumID, "IMAB")
	insertIdentifier(t, ctx, pool, consID, quantumID, "CONSINSS")

	repo, err := NewIndexRepository(pool)
	require.NoError(t, err)

	registry, err := repo.LoadRegistry(ctx)
	require.NoError(t, err)
	require.Len(t, registry, 3)

	require.Equal(t, "CONSIGNADO-INSS", registry[0].Name, "registry ordered by name")
	require.Equal(t, "GLOBAL-AGG", registry[1].Name)
	require.Equal(t, "IMA-B", registry[2].Name)

	imab, ok := registry.ByName("IMA-B")
	require.True(t, ok)
	require.Equal(t, "BRL", imab.Currency.Code)
	require.Equal(t, "Quantum", imab.PrincipalSource.Name)
	require.True(t, imab.CollectionStartDate.Equal(day(2020, time.January, 2)))
	require.Len(t, imab.Identifiers, 1)
	require.Equal(t, "IMAB", imab.Identifiers[0].Code)
	require.Equal(t, "Quantum", imab.Identifiers[0].SourceName)

	cons, ok := registry.ByIdentifier("Quantum", "CONSINSS")
	require.True(t, ok)
	require.True(t, cons.IsSynthetic)
	require.Equal(t, 2, cons.CollectionLagDays)

	global, ok := registry.ByName("GLOBAL-AGG")
	require.True(t, ok)
	require.Empty(t, global.Identifiers)
}

func TestCurrencyByCode(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)

	brlID := insertCurrency(t, ctx, pool, "BRL", "Real")

	repo, err := NewIndexRepository(pool)
	require.NoError(t, err)

	brl, err := repo.CurrencyByCode(ctx, "BRL")
	require.NoError(t, err)
	require.NotNil(t, brl)
	require.Equal(t, brlID, brl.ID)
	require.Equal(t, "Real", brl.Name)

	none, err := repo.CurrencyByCode(ctx, "CHF")
	require.NoError(t, err)
	require.Nil(t, none)
}

func TestSourceByName(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)

	quantumID := insertDataSource(t, ctx, pool, "Quantum")

	repo, err := NewIndexRepository(pool)
	require.NoError(t, err)

	quantum, err := repo.SourceByName(ctx, "Quantum")
	require.NoError(t, err)
	require.NotNil(t, quantum)
	require.Equal(t, quantumID, quantum.ID)

	none, err := repo.SourceByName(ctx, "Bloomberg")
	require.NoError(t, err)
	require.Nil(t, none)
}

func TestHolidaysRoundTrip(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)

	repo, err := NewIndexRepository(pool)
	require.NoError(t, err)

	err = repo.ReplaceHolidays(ctx, []calendar.Holiday{
		{Date: day(2024, time.January, 1), Name: "Confraternização Universal"},
		{Date: day(2024, time.November, 15), Name: "Proclamação da República"},
	})
	require.NoError(t, err)

	// Re-running with a renamed entry updates in place instead of duplicating.
	err = repo.ReplaceHolidays(ctx, []calendar.Holiday{
		{Date: day(2024, time.January, 1), Name: "Ano Novo"},
	})
	require.NoError(t, err)

	set, err := repo.Holidays(ctx)
	require.NoError(t, err)
	require.True(t, set.Contains(day(2024, time.January, 1)))
	require.True(t, set.Contains(day(2024, time.November, 15)))
	require.False(t, set.Contains(day(2024, time.December, 25)))

	var count int
	err = pool.QueryRow(ctx, `SELECT count(*) FROM holidays`).Scan(&count)
	require.NoError(t, err)
	require.Equal(t, 2, count)
}
