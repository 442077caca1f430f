package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/i474232898/wine-region-evaluator/internal/climate"
	"github.com/i474232898/wine-region-evaluator/internal/common"
)

// pgUniqueViolation is the SQLSTATE for unique constraint violations.
const pgUniqueViolation = "23505"

// insertChunk bounds rows per INSERT; 11 params per row stays well under the
// 65535 parameter limit.
const insertChunk = 1000

// Pool is the subset of pgxpool.Pool used by PostgresStore; pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgresStore implements climate.Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 1
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			pgxCfg.MaxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			pgxCfg.MinConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS regions (
	id          BIGSERIAL PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	latitude    DOUBLE PRECISION NOT NULL,
	longitude   DOUBLE PRECISION NOT NULL,
	description TEXT,
	UNIQUE (latitude, longitude)
);

CREATE TABLE IF NOT EXISTS climate_readings (
	id               BIGSERIAL PRIMARY KEY,
	region_id        BIGINT NOT NULL REFERENCES regions(id) ON DELETE CASCADE,
	date             DATE NOT NULL,
	mean_temperature DOUBLE PRECISION NOT NULL,
	max_temperature  DOUBLE PRECISION NOT NULL,
	min_temperature  DOUBLE PRECISION NOT NULL,
	mean_humidity    DOUBLE PRECISION NOT NULL,
	max_humidity     DOUBLE PRECISION NOT NULL,
	min_humidity     DOUBLE PRECISION NOT NULL,
	rain             DOUBLE PRECISION NOT NULL,
	cloud_cover      DOUBLE PRECISION NOT NULL,
	soil_moisture    DOUBLE PRECISION NOT NULL,
	UNIQUE (region_id, date)
);

CREATE INDEX IF NOT EXISTS idx_regions_lat_lon ON regions(latitude, longitude);
CREATE INDEX IF NOT EXISTS idx_climate_readings_region_date ON climate_readings(region_id, date);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateRegion(ctx context.Context, r climate.Region) (climate.Region, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO regions (name, latitude, longitude, description)
		 VALUES ($1, $2, $3, NULLIF($4, '')) RETURNING id`,
		r.Name, r.Latitude, r.Longitude, r.Description,
	).Scan(&r.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return climate.Region{}, climate.ErrRegionExists
		}
		return climate.Region{}, eris.Wrapf(err, "postgres: create region %q", r.Name)
	}
	return r, nil
}

func (s *PostgresStore) GetRegion(ctx context.Context, name string) (climate.Region, error) {
	var r climate.Region
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, latitude, longitude, COALESCE(description, '') FROM regions WHERE name = $1`,
		name,
	).Scan(&r.ID, &r.Name, &r.Latitude, &r.Longitude, &r.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return climate.Region{}, climate.ErrRegionNotFound
		}
		return climate.Region{}, eris.Wrapf(err, "postgres: get region %q", name)
	}
	return r, nil
}

func (s *PostgresStore) ListRegions(ctx context.Context, names []string) ([]climate.Region, error) {
	query := `SELECT id, name, latitude, longitude, COALESCE(description, '') FROM regions`
	var args []any
	if len(names) > 0 {
		query += ` WHERE name = ANY($1)`
		args = append(args, names)
	}
	query += ` ORDER BY id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list regions")
	}
	defer rows.Close()

	var out []climate.Region
	for rows.Next() {
		var r climate.Region
		if err := rows.Scan(&r.ID, &r.Name, &r.Latitude, &r.Longitude, &r.Description); err != nil {
			return nil, eris.Wrap(err, "postgres: scan region")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate regions")
}

func (s *PostgresStore) DeleteRegion(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM regions WHERE name = $1`, name)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete region %q", name)
	}
	if tag.RowsAffected() == 0 {
		return climate.ErrRegionNotFound
	}
	return nil
}

func (s *PostgresStore) CountRegions(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM regions`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "postgres: count regions")
	}
	return n, nil
}

func (s *PostgresStore) Readings(ctx context.Context, regionIDs []int64, since time.Time) (map[int64][]climate.Reading, error) {
	out := make(map[int64][]climate.Reading, len(regionIDs))
	if len(regionIDs) == 0 {
		return out, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT region_id, date, mean_temperature, max_temperature, min_temperature,
		        mean_humidity, max_humidity, min_humidity, rain, cloud_cover, soil_moisture
		 FROM climate_readings
		 WHERE region_id = ANY($1) AND date >= $2
		 ORDER BY region_id, date`,
		regionIDs, common.Day(since),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query readings")
	}
	defer rows.Close()

	for rows.Next() {
		var r climate.Reading
		if err := rows.Scan(&r.RegionID, &r.Date,
			&r.MeanTemperature, &r.MaxTemperature, &r.MinTemperature,
			&r.MeanHumidity, &r.MaxHumidity, &r.MinHumidity,
			&r.Rain, &r.CloudCover, &r.SoilMoisture,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan reading")
		}
		r.Date = common.Day(r.Date)
		out[r.RegionID] = append(out[r.RegionID], r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate readings")
}

func (s *PostgresStore) LatestReadingDates(ctx context.Context, regionIDs []int64) (map[int64]time.Time, error) {
	out := make(map[int64]time.Time, len(regionIDs))
	if len(regionIDs) == 0 {
		return out, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT region_id, MAX(date) FROM climate_readings
		 WHERE region_id = ANY($1) GROUP BY region_id`,
		regionIDs,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query latest dates")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id     int64
			latest time.Time
		)
		if err := rows.Scan(&id, &latest); err != nil {
			return nil, eris.Wrap(err, "postgres: scan latest date")
		}
		out[id] = common.Day(latest)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate latest dates")
}

var readingColumns = []string{
	"region_id", "date",
	"mean_temperature", "max_temperature", "min_temperature",
	"mean_humidity", "max_humidity", "min_humidity",
	"rain", "cloud_cover", "soil_moisture",
}

// InsertReadings writes readings in chunks inside one transaction.
// ON CONFLICT DO NOTHING drops readings whose (region_id, date) already exists.
func (s *PostgresStore) InsertReadings(ctx context.Context, readings []climate.Reading) (int64, error) {
	if len(readings) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin insert readings")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var inserted int64
	for start := 0; start < len(readings); start += insertChunk {
		end := min(start+insertChunk, len(readings))
		query, args := buildReadingInsert(readings[start:end])

		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: insert readings")
		}
		inserted += tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit insert readings")
	}
	return inserted, nil
}

func buildReadingInsert(readings []climate.Reading) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO climate_readings (")
	b.WriteString(strings.Join(readingColumns, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(readings)*len(readingColumns))
	for i, r := range readings {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j := range readingColumns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", i*len(readingColumns)+j+1)
		}
		b.WriteByte(')')

		args = append(args, r.RegionID, common.Day(r.Date),
			r.MeanTemperature, r.MaxTemperature, r.MinTemperature,
			r.MeanHumidity, r.MaxHumidity, r.MinHumidity,
			r.Rain, r.CloudCover, r.SoilMoisture,
		)
	}
	b.WriteString(" ON CONFLICT (region_id, date) DO NOTHING")
	return b.String(), args
}
