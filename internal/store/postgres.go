package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register the pgx database/sql driver

	"github.com/couchcryptid/crossflow/internal/domain"
)

// Postgres is the feature store backed by PostgreSQL. One table per
// feature group and version, plus metadata tables shared across versions.
type Postgres struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open connects to the store and verifies the connection.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping store: %w", err)
	}
	return &Postgres{db: db, logger: logger}, nil
}

// CheckReadiness reports whether the database is reachable.
func (p *Postgres) CheckReadiness(ctx context.Context) error {
	if p == nil || p.db == nil {
		return errors.New("store: nil db")
	}
	return p.db.PingContext(ctx)
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

// EnsureGroup creates the group's versioned table when absent and records
// its description.
func (p *Postgres) EnsureGroup(ctx context.Context, group string, version int) error {
	if p == nil || p.db == nil {
		return errors.New("store: nil db")
	}
	spec, ok := groupSpecs[group]
	if !ok {
		return fmt.Errorf("unknown feature group %q", group)
	}
	if err := p.ensureMetadataTables(ctx); err != nil {
		return err
	}

	table := tableName(group, version)
	if _, err := p.db.ExecContext(ctx, spec.ddl(table)); err != nil {
		return fmt.Errorf("create %s: %w", table, err)
	}

	_, err := p.db.ExecContext(ctx, `
INSERT INTO feature_descriptions (group_name, version, description)
VALUES ($1, $2, $3)
ON CONFLICT (group_name, version) DO UPDATE SET description = EXCLUDED.description`,
		group, version, spec.description)
	if err != nil {
		return fmt.Errorf("describe %s: %w", table, err)
	}
	p.logger.Debug("ensured feature group", "table", table)
	return nil
}

// EnsureFeatureView records a named query over the feature groups; training
// runs resolve their input through it.
func (p *Postgres) EnsureFeatureView(ctx context.Context, name string, version int, query string) error {
	if p == nil || p.db == nil {
		return errors.New("store: nil db")
	}
	if err := p.ensureMetadataTables(ctx); err != nil {
		return err
	}
	_, err := p.db.ExecContext(ctx, `
INSERT INTO feature_views (name, version, query)
VALUES ($1, $2, $3)
ON CONFLICT (name, version) DO UPDATE SET query = EXCLUDED.query`,
		name, version, query)
	if err != nil {
		return fmt.Errorf("ensure feature view %s: %w", name, err)
	}
	return nil
}

func (p *Postgres) ensureMetadataTables(ctx context.Context) error {
	const descriptions = `CREATE TABLE IF NOT EXISTS feature_descriptions (
	group_name TEXT NOT NULL,
	version INTEGER NOT NULL,
	description TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (group_name, version)
)`
	const views = `CREATE TABLE IF NOT EXISTS feature_views (
	name TEXT NOT NULL,
	version INTEGER NOT NULL,
	query TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (name, version)
)`
	if _, err := p.db.ExecContext(ctx, descriptions); err != nil {
		return fmt.Errorf("create feature_descriptions: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, views); err != nil {
		return fmt.Errorf("create feature_views: %w", err)
	}
	return nil
}

// UpsertWeather writes hourly weather rows keyed by (datetime, country_code).
func (p *Postgres) UpsertWeather(ctx context.Context, version int, records []domain.WeatherRecord) error {
	query := upsertSQL(tableName(domain.GroupWeather, version),
		[]string{"datetime", "country_code"}, domain.WeatherColumns)
	return p.upsertBatch(ctx, query, len(records), func(i int) []any {
		rec := records[i]
		args := make([]any, 0, len(domain.WeatherColumns)+2)
		args = append(args, rec.Datetime, rec.CountryCode)
		for _, col := range domain.WeatherColumns {
			v, _ := rec.Value(col)
			args = append(args, v)
		}
		return args
	})
}

// UpsertPricesGeneration writes hourly price/generation rows keyed by
// (datetime, country_code).
func (p *Postgres) UpsertPricesGeneration(ctx context.Context, version int, records []domain.PriceGenerationRecord) error {
	query := upsertSQL(tableName(domain.GroupPricesGeneration, version),
		[]string{"datetime", "country_code"}, pricesGenerationColumns())
	return p.upsertBatch(ctx, query, len(records), func(i int) []any {
		rec := records[i]
		args := make([]any, 0, len(domain.GenerationTechs)+4)
		args = append(args, rec.Datetime, rec.CountryCode, rec.EnergyPrice)
		for _, tech := range domain.GenerationTechs {
			v, _ := rec.Tech(tech)
			args = append(args, v)
		}
		args = append(args, rec.TotalGeneration)
		return args
	})
}

// UpsertFlows writes realized flow rows keyed by the directed pair and hour.
func (p *Postgres) UpsertFlows(ctx context.Context, version int, records []domain.FlowRecord) error {
	query := upsertSQL(tableName(domain.GroupPhysicalFlow, version),
		[]string{"datetime", "country_from", "country_to"}, []string{"energy_sent"})
	return p.upsertBatch(ctx, query, len(records), func(i int) []any {
		rec := records[i]
		return []any{rec.Datetime, rec.CountryFrom, rec.CountryTo, rec.EnergySent}
	})
}

// UpsertModelRows writes assembled feature rows. Forecast rows carry a null
// label; a later run with realized data overwrites them through the same
// key.
func (p *Postgres) UpsertModelRows(ctx context.Context, version int, rows []domain.ModelFeatureRow) error {
	payloads := make([][]byte, len(rows))
	for i, row := range rows {
		data, err := json.Marshal(row.Features)
		if err != nil {
			return fmt.Errorf("encode features: %w", err)
		}
		payloads[i] = data
	}
	query := upsertSQL(tableName(domain.GroupModelData, version),
		[]string{"datetime", "country_from", "country_to"}, []string{"energy_sent", "features"})
	return p.upsertBatch(ctx, query, len(rows), func(i int) []any {
		row := rows[i]
		label := sql.NullFloat64{}
		if row.EnergySent != nil {
			label = sql.NullFloat64{Float64: *row.EnergySent, Valid: true}
		}
		return []any{row.Datetime, row.CountryFrom, row.CountryTo, label, payloads[i]}
	})
}

// UpsertPredictions writes predicted flow rows keyed by the directed pair
// and hour.
func (p *Postgres) UpsertPredictions(ctx context.Context, version int, records []domain.PredictionRecord) error {
	query := upsertSQL(tableName(domain.GroupPredictions, version),
		[]string{"datetime", "country_from", "country_to"},
		[]string{"energy_sent", "home_energy_price", "home_total_generation"})
	return p.upsertBatch(ctx, query, len(records), func(i int) []any {
		rec := records[i]
		return []any{rec.Datetime, rec.CountryFrom, rec.CountryTo,
			rec.EnergySent, rec.HomeEnergyPrice, rec.HomeTotalGeneration}
	})
}

func (p *Postgres) upsertBatch(ctx context.Context, query string, n int, args func(i int) []any) error {
	if p == nil || p.db == nil {
		return errors.New("store: nil db")
	}
	if n == 0 {
		return nil
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// ReadWeather returns weather rows with datetime in [start, end).
func (p *Postgres) ReadWeather(ctx context.Context, version int, start, end time.Time) ([]domain.WeatherRecord, error) {
	query := fmt.Sprintf(`
SELECT datetime, country_code, %s
FROM %s
WHERE datetime >= $1 AND datetime < $2
ORDER BY datetime, country_code`,
		strings.Join(domain.WeatherColumns, ", "), tableName(domain.GroupWeather, version))

	rows, err := p.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.WeatherRecord
	for rows.Next() {
		var rec domain.WeatherRecord
		vals := make([]float64, len(domain.WeatherColumns))
		dest := make([]any, 0, len(vals)+2)
		dest = append(dest, &rec.Datetime, &rec.CountryCode)
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		for i, col := range domain.WeatherColumns {
			rec.Set(col, vals[i])
		}
		rec.Datetime = rec.Datetime.UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ReadPricesGeneration returns price/generation rows with datetime in
// [start, end).
func (p *Postgres) ReadPricesGeneration(ctx context.Context, version int, start, end time.Time) ([]domain.PriceGenerationRecord, error) {
	query := fmt.Sprintf(`
SELECT datetime, country_code, %s
FROM %s
WHERE datetime >= $1 AND datetime < $2
ORDER BY datetime, country_code`,
		strings.Join(pricesGenerationColumns(), ", "), tableName(domain.GroupPricesGeneration, version))

	rows, err := p.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PriceGenerationRecord
	for rows.Next() {
		var rec domain.PriceGenerationRecord
		vals := make([]float64, len(domain.GenerationTechs))
		dest := make([]any, 0, len(vals)+5)
		dest = append(dest, &rec.Datetime, &rec.CountryCode, &rec.EnergyPrice)
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		dest = append(dest, &rec.TotalGeneration)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		for i, tech := range domain.GenerationTechs {
			rec.SetTech(tech, vals[i])
		}
		rec.Datetime = rec.Datetime.UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ReadFlows returns realized flow rows with datetime in [start, end).
func (p *Postgres) ReadFlows(ctx context.Context, version int, start, end time.Time) ([]domain.FlowRecord, error) {
	query := fmt.Sprintf(`
SELECT datetime, country_from, country_to, energy_sent
FROM %s
WHERE datetime >= $1 AND datetime < $2
ORDER BY datetime, country_from, country_to`, tableName(domain.GroupPhysicalFlow, version))

	rows, err := p.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.FlowRecord
	for rows.Next() {
		var rec domain.FlowRecord
		if err := rows.Scan(&rec.Datetime, &rec.CountryFrom, &rec.CountryTo, &rec.EnergySent); err != nil {
			return nil, err
		}
		rec.Datetime = rec.Datetime.UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ReadPredictions returns predicted flow rows with datetime in [start,
// end). Monitoring reads yesterday's rows through this.
func (p *Postgres) ReadPredictions(ctx context.Context, version int, start, end time.Time) ([]domain.PredictionRecord, error) {
	query := fmt.Sprintf(`
SELECT datetime, country_from, country_to, energy_sent, home_energy_price, home_total_generation
FROM %s
WHERE datetime >= $1 AND datetime < $2
ORDER BY datetime, country_from, country_to`, tableName(domain.GroupPredictions, version))

	rows, err := p.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PredictionRecord
	for rows.Next() {
		var rec domain.PredictionRecord
		if err := rows.Scan(&rec.Datetime, &rec.CountryFrom, &rec.CountryTo,
			&rec.EnergySent, &rec.HomeEnergyPrice, &rec.HomeTotalGeneration); err != nil {
			return nil, err
		}
		rec.Datetime = rec.Datetime.UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ReadModelRows returns assembled feature rows with datetime in [start,
// end). With labelledOnly set, null-label forecast rows are excluded.
func (p *Postgres) ReadModelRows(ctx context.Context, version int, start, end time.Time, labelledOnly bool) ([]domain.ModelFeatureRow, error) {
	query := fmt.Sprintf(`
SELECT datetime, country_from, country_to, energy_sent, features
FROM %s
WHERE datetime >= $1 AND datetime < $2`, tableName(domain.GroupModelData, version))
	if labelledOnly {
		query += " AND energy_sent IS NOT NULL"
	}
	query += " ORDER BY datetime, country_from, country_to"

	rows, err := p.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ModelFeatureRow
	for rows.Next() {
		var row domain.ModelFeatureRow
		var label sql.NullFloat64
		var payload []byte
		if err := rows.Scan(&row.Datetime, &row.CountryFrom, &row.CountryTo, &label, &payload); err != nil {
			return nil, err
		}
		if label.Valid {
			v := label.Float64
			row.EnergySent = &v
		}
		if err := json.Unmarshal(payload, &row.Features); err != nil {
			return nil, fmt.Errorf("decode features: %w", err)
		}
		row.Datetime = row.Datetime.UTC()
		out = append(out, row)
	}
	return out, rows.Err()
}
