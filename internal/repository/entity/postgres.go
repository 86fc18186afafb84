package entity

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	domain "github.com/ahmethakanbesel/mse-harvester/internal/entity"
	"github.com/ahmethakanbesel/mse-harvester/internal/platform/postgres"
)

// PostgresRepository stores entities and records in Postgres.
type PostgresRepository struct {
	pool postgres.Pool
}

func NewPostgresRepository(pool postgres.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) ListEntities(ctx context.Context) ([]domain.TrackedEntity, error) {
	rows, err := r.pool.Query(ctx, `SELECT code, last_update FROM entities ORDER BY code`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list entities")
	}
	defer rows.Close()

	var out []domain.TrackedEntity
	for rows.Next() {
		var e domain.TrackedEntity
		var last *time.Time
		if err := rows.Scan(&e.Code, &last); err != nil {
			return nil, eris.Wrap(err, "postgres: scan entity")
		}
		if last != nil {
			e.Marker = domain.MarkerAt(*last)
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list entities")
}

func (r *PostgresRepository) UpsertEntity(ctx context.Context, code string, marker domain.Marker) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO entities (code, last_update) VALUES ($1, $2)
		ON CONFLICT (code) DO UPDATE SET last_update = EXCLUDED.last_update, updated_at = now()`,
		code, pgMarker(marker),
	)
	return eris.Wrapf(err, "postgres: upsert entity %s", code)
}

func (r *PostgresRepository) UpdateMarker(ctx context.Context, code string, marker domain.Marker) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE entities SET last_update = $1, updated_at = now() WHERE code = $2`,
		pgMarker(marker), code,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: update marker %s", code)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepository) InsertRecord(ctx context.Context, rec domain.HistoricalRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO records (code, trade_date,
			last_trade_price, max_price, min_price, avg_price, percent_change,
			volume, turnover_best_denars, total_turnover_denars)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (code, trade_date) DO NOTHING`,
		rec.Code, rec.TradeDate,
		rec.LastTradePrice, rec.MaxPrice, rec.MinPrice, rec.AvgPrice, rec.PercentChange,
		rec.Volume, rec.TurnoverBestDenars, rec.TotalTurnoverDenars,
	)
	return eris.Wrapf(err, "postgres: insert record %s %s", rec.Code, rec.TradeDate.Format(dateFormat))
}

func (r *PostgresRepository) ListRecordsByCode(ctx context.Context, code string) ([]domain.HistoricalRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT code, trade_date,
			last_trade_price, max_price, min_price, avg_price, percent_change,
			volume, turnover_best_denars, total_turnover_denars
		FROM records WHERE code = $1 ORDER BY trade_date ASC`,
		code,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list records %s", code)
	}
	defer rows.Close()

	var out []domain.HistoricalRecord
	for rows.Next() {
		var rec domain.HistoricalRecord
		if err := rows.Scan(&rec.Code, &rec.TradeDate,
			&rec.LastTradePrice, &rec.MaxPrice, &rec.MinPrice, &rec.AvgPrice, &rec.PercentChange,
			&rec.Volume, &rec.TurnoverBestDenars, &rec.TotalTurnoverDenars,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list records")
}

func (r *PostgresRepository) DeleteRecordsForCodes(ctx context.Context, codes []string) (int64, error) {
	if len(codes) == 0 {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM records WHERE code = ANY($1)`, codes)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete records")
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) DeleteEntitiesWithMarker(ctx context.Context, marker domain.Marker) (int64, error) {
	var (
		query = `DELETE FROM entities WHERE last_update IS NULL`
		args  []any
	)
	if !marker.IsNever() {
		query = `DELETE FROM entities WHERE last_update = $1`
		args = append(args, marker.Date())
	}
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete entities")
	}
	return tag.RowsAffected(), nil
}

func pgMarker(m domain.Marker) *time.Time {
	if m.IsNever() {
		return nil
	}
	d := m.Date()
	return &d
}

var (
	_ domain.Repository = (*PostgresRepository)(nil)
	_ domain.Repository = (*Repository)(nil)
)
