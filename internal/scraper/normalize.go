package scraper

import (
	"strings"
	"time"
	"unicode"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"

	"github.com/ahmethakanbesel/mse-harvester/internal/entity"
)

// TradeDateLayout is the day.month.year format the exchange renders dates in.
const TradeDateLayout = "02.01.2006"

// ParseDecimal converts a locale formatted cell ("1.234,56") into a decimal.
// An empty cell is a valid null.
func ParseDecimal(cell string) (decimal.NullDecimal, error) {
	s, _, err := transform.String(runes.Remove(runes.In(unicode.Zs)), cell)
	if err != nil {
		return decimal.NullDecimal{}, eris.Wrapf(err, "normalize cell %q", cell)
	}
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	s = strings.ReplaceAll(s, ".", "")
	s = strings.Replace(s, ",", ".", 1)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, eris.Wrapf(err, "parse decimal %q", cell)
	}
	return decimal.NewNullDecimal(d), nil
}

// ParseTradeDate parses a dd.mm.yyyy cell. Anything else is rejected.
func ParseTradeDate(cell string) (time.Time, error) {
	t, err := time.Parse(TradeDateLayout, strings.TrimSpace(cell))
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "parse trade date %q", cell)
	}
	return t, nil
}

// NormalizeRow turns the CellsPerRecord cells of one trading day into a
// record.
func NormalizeRow(code string, cells []string) (entity.HistoricalRecord, error) {
	if len(cells) != CellsPerRecord {
		return entity.HistoricalRecord{}, eris.Errorf("row has %d cells, want %d", len(cells), CellsPerRecord)
	}

	day, err := ParseTradeDate(cells[0])
	if err != nil {
		return entity.HistoricalRecord{}, err
	}
	rec := entity.HistoricalRecord{Code: code, TradeDate: day}

	fields := []*decimal.NullDecimal{
		&rec.LastTradePrice,
		&rec.MaxPrice,
		&rec.MinPrice,
		&rec.AvgPrice,
		&rec.PercentChange,
		&rec.Volume,
		&rec.TurnoverBestDenars,
		&rec.TotalTurnoverDenars,
	}
	for i, f := range fields {
		v, err := ParseDecimal(cells[i+1])
		if err != nil {
			return entity.HistoricalRecord{}, err
		}
		*f = v
	}
	return rec, nil
}

// NormalizeRows converts a row-major cell dump into records. Rows that fail to
// parse and a trailing incomplete row are dropped and counted.
func NormalizeRows(code string, cells []string) (records []entity.HistoricalRecord, dropped int) {
	full := len(cells) / CellsPerRecord * CellsPerRecord
	if full != len(cells) {
		dropped++
		zap.L().Debug("dropping incomplete trailing row",
			zap.String("code", code), zap.Int("cells", len(cells)-full))
	}

	records = make([]entity.HistoricalRecord, 0, full/CellsPerRecord)
	for i := 0; i < full; i += CellsPerRecord {
		rec, err := NormalizeRow(code, cells[i:i+CellsPerRecord])
		if err != nil {
			dropped++
			zap.L().Debug("dropping malformed row", zap.String("code", code), zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	return records, dropped
}
