package server

import (
	"encoding/csv"
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/ahmethakanbesel/mse-harvester/internal/entity"
)

type APIResponse[T any] struct {
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func writeJSON[T any](w http.ResponseWriter, status int, data T) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse[T]{
		Message: "ok",
		Data:    data,
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse[string]{
		Message: message,
		Data:    "",
	})
}

func writeCSV(w http.ResponseWriter, records []entity.HistoricalRecord) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=records.csv")
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{
		"Code", "Date", "LastTradePrice", "MaxPrice", "MinPrice", "AvgPrice",
		"PercentChange", "Volume", "TurnoverBestDenars", "TotalTurnoverDenars",
	})
	for _, r := range records {
		_ = cw.Write([]string{
			r.Code,
			r.TradeDate.Format(entity.DateFormat),
			cell(r.LastTradePrice),
			cell(r.MaxPrice),
			cell(r.MinPrice),
			cell(r.AvgPrice),
			cell(r.PercentChange),
			cell(r.Volume),
			cell(r.TurnoverBestDenars),
			cell(r.TotalTurnoverDenars),
		})
	}
	cw.Flush()
}

// cell renders a missing value as an empty field.
func cell(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}
