package entity

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	domain "github.com/ahmethakanbesel/mse-harvester/internal/entity"
)

const dateFormat = domain.DateFormat

// Repository stores entities and records in SQLite.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) ListEntities(ctx context.Context) ([]domain.TrackedEntity, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT code, last_update FROM entities ORDER BY code`)
	if err != nil {
		return nil, eris.Wrap(err, "list entities")
	}
	defer func() { _ = rows.Close() }()

	var out []domain.TrackedEntity
	for rows.Next() {
		var e domain.TrackedEntity
		var last sql.NullString
		if err := rows.Scan(&e.Code, &last); err != nil {
			return nil, eris.Wrap(err, "scan entity")
		}
		if e.Marker, err = domain.ParseMarker(last.String); err != nil {
			return nil, eris.Wrapf(err, "entity %s: bad marker", e.Code)
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "list entities")
}

func (r *Repository) UpsertEntity(ctx context.Context, code string, marker domain.Marker) error {
	const query = `INSERT INTO entities (code, last_update) VALUES (?, ?)
		ON CONFLICT(code) DO UPDATE SET last_update = excluded.last_update,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')`

	if _, err := r.db.ExecContext(ctx, query, code, markerArg(marker)); err != nil {
		return eris.Wrapf(err, "upsert entity %s", code)
	}
	return nil
}

func (r *Repository) UpdateMarker(ctx context.Context, code string, marker domain.Marker) (bool, error) {
	const query = `UPDATE entities SET last_update = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE code = ?`

	res, err := r.db.ExecContext(ctx, query, markerArg(marker), code)
	if err != nil {
		return false, eris.Wrapf(err, "update marker %s", code)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrapf(err, "update marker %s", code)
	}
	return n > 0, nil
}

func (r *Repository) InsertRecord(ctx context.Context, rec domain.HistoricalRecord) error {
	const query = `INSERT OR IGNORE INTO records (code, trade_date,
		last_trade_price, max_price, min_price, avg_price, percent_change,
		volume, turnover_best_denars, total_turnover_denars)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		rec.Code, rec.TradeDate.Format(dateFormat),
		rec.LastTradePrice, rec.MaxPrice, rec.MinPrice, rec.AvgPrice, rec.PercentChange,
		rec.Volume, rec.TurnoverBestDenars, rec.TotalTurnoverDenars,
	)
	if err != nil {
		return eris.Wrapf(err, "insert record %s %s", rec.Code, rec.TradeDate.Format(dateFormat))
	}
	return nil
}

func (r *Repository) ListRecordsByCode(ctx context.Context, code string) ([]domain.HistoricalRecord, error) {
	const query = `SELECT code, trade_date,
		last_trade_price, max_price, min_price, avg_price, percent_change,
		volume, turnover_best_denars, total_turnover_denars
		FROM records WHERE code = ? ORDER BY trade_date ASC`

	rows, err := r.db.QueryContext(ctx, query, code)
	if err != nil {
		return nil, eris.Wrapf(err, "list records %s", code)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.HistoricalRecord
	for rows.Next() {
		var rec domain.HistoricalRecord
		var day string
		if err := rows.Scan(&rec.Code, &day,
			&rec.LastTradePrice, &rec.MaxPrice, &rec.MinPrice, &rec.AvgPrice, &rec.PercentChange,
			&rec.Volume, &rec.TurnoverBestDenars, &rec.TotalTurnoverDenars,
		); err != nil {
			return nil, eris.Wrap(err, "scan record")
		}
		if rec.TradeDate, err = time.Parse(dateFormat, day); err != nil {
			return nil, eris.Wrapf(err, "record %s: bad trade date", rec.Code)
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "list records")
}

func (r *Repository) DeleteRecordsForCodes(ctx context.Context, codes []string) (int64, error) {
	if len(codes) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(codes)), ", ")
	args := make([]any, len(codes))
	for i, c := range codes {
		args[i] = c
	}

	res, err := r.db.ExecContext(ctx, //nolint:gosec // placeholders are not user input
		"DELETE FROM records WHERE code IN ("+placeholders+")", args...)
	if err != nil {
		return 0, eris.Wrap(err, "delete records")
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "delete records")
}

func (r *Repository) DeleteEntitiesWithMarker(ctx context.Context, marker domain.Marker) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if marker.IsNever() {
		res, err = r.db.ExecContext(ctx, `DELETE FROM entities WHERE last_update IS NULL`)
	} else {
		res, err = r.db.ExecContext(ctx, `DELETE FROM entities WHERE last_update = ?`, marker.String())
	}
	if err != nil {
		return 0, eris.Wrap(err, "delete entities")
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "delete entities")
}

// markerArg maps NeverUpdated to SQL NULL.
func markerArg(m domain.Marker) any {
	if m.IsNever() {
		return nil
	}
	return m.String()
}
