package scraper

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		in    string
		want  string
		valid bool
	}{
		{in: "1.234,56", want: "1234.56", valid: true},
		{in: "21.500,00", want: "21500", valid: true},
		{in: "-0,35", want: "-0.35", valid: true},
		{in: "1.234.567", want: "1234567", valid: true},
		{in: " 12,5 ", want: "12.5", valid: true},
		{in: "1 234,5", want: "1234.5", valid: true},
		{in: "2,10%", want: "2.1", valid: true},
		{in: "", valid: false},
		{in: "   ", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDecimal(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.valid, got.Valid)
			if tt.valid {
				assert.True(t, decimal.RequireFromString(tt.want).Equal(got.Decimal), "got %s", got.Decimal)
			}
		})
	}
}

func TestParseDecimal_Malformed(t *testing.T) {
	_, err := ParseDecimal("n/a")
	assert.Error(t, err)
}

func TestParseTradeDate(t *testing.T) {
	got, err := ParseTradeDate("03.02.2025")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC), got)

	for _, bad := range []string{"2025-02-03", "3.2.2025", "32.01.2025", "", "03.02.25"} {
		_, err := ParseTradeDate(bad)
		assert.Error(t, err, bad)
	}
}

func row(date string) []string {
	return []string{date, "1.234,56", "1.240,00", "1.220,00", "1.230,10", "0,45", "150", "184.515,00", "184.515,00"}
}

func TestNormalizeRows(t *testing.T) {
	cells := append(row("03.02.2025"), row("04.02.2025")...)

	recs, dropped := NormalizeRows("ALK", cells)

	require.Len(t, recs, 2)
	assert.Zero(t, dropped)
	assert.Equal(t, "ALK", recs[0].Code)
	assert.Equal(t, time.Date(2025, 2, 4, 0, 0, 0, 0, time.UTC), recs[1].TradeDate)
	assert.True(t, decimal.RequireFromString("1234.56").Equal(recs[0].LastTradePrice.Decimal))
	assert.True(t, decimal.RequireFromString("184515").Equal(recs[0].TotalTurnoverDenars.Decimal))
}

func TestNormalizeRows_DropsBadDateInsteadOfDefaulting(t *testing.T) {
	cells := append(row("2025/02/03"), row("04.02.2025")...)

	recs, dropped := NormalizeRows("ALK", cells)

	require.Len(t, recs, 1)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, time.Date(2025, 2, 4, 0, 0, 0, 0, time.UTC), recs[0].TradeDate)
}

func TestNormalizeRows_EmptyCellsAreNull(t *testing.T) {
	cells := []string{"05.02.2025", "", "", "", "", "", "0", "0", ""}

	recs, dropped := NormalizeRows("ALK", cells)

	require.Len(t, recs, 1)
	assert.Zero(t, dropped)
	assert.False(t, recs[0].LastTradePrice.Valid)
	assert.False(t, recs[0].TotalTurnoverDenars.Valid)
	assert.True(t, recs[0].Volume.Valid)
}

func TestNormalizeRows_TrailingPartialRow(t *testing.T) {
	cells := append(row("03.02.2025"), "04.02.2025", "1,00")

	recs, dropped := NormalizeRows("ALK", cells)

	assert.Len(t, recs, 1)
	assert.Equal(t, 1, dropped)
}
