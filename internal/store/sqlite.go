package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rotisserie/eris"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/i474232898/wine-region-evaluator/internal/climate"
	"github.com/i474232898/wine-region-evaluator/internal/common"
)

// SQLiteStore implements climate.Store using sqlx over modernc.org/sqlite.
// Dates are stored as YYYY-MM-DD text so they sort and compare lexically.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Pragmas are per connection; a single connection keeps foreign_keys on.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS regions (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL UNIQUE,
	latitude    REAL NOT NULL,
	longitude   REAL NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	UNIQUE (latitude, longitude)
);

CREATE TABLE IF NOT EXISTS climate_readings (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	region_id        INTEGER NOT NULL REFERENCES regions(id) ON DELETE CASCADE,
	date             TEXT NOT NULL,
	mean_temperature REAL NOT NULL,
	max_temperature  REAL NOT NULL,
	min_temperature  REAL NOT NULL,
	mean_humidity    REAL NOT NULL,
	max_humidity     REAL NOT NULL,
	min_humidity     REAL NOT NULL,
	rain             REAL NOT NULL,
	cloud_cover      REAL NOT NULL,
	soil_moisture    REAL NOT NULL,
	UNIQUE (region_id, date)
);

CREATE INDEX IF NOT EXISTS idx_climate_readings_region_date ON climate_readings(region_id, date);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// sqliteReading mirrors a climate_readings row.
type sqliteReading struct {
	RegionID        int64   `db:"region_id"`
	Date            string  `db:"date"`
	MeanTemperature float64 `db:"mean_temperature"`
	MaxTemperature  float64 `db:"max_temperature"`
	MinTemperature  float64 `db:"min_temperature"`
	MeanHumidity    float64 `db:"mean_humidity"`
	MaxHumidity     float64 `db:"max_humidity"`
	MinHumidity     float64 `db:"min_humidity"`
	Rain            float64 `db:"rain"`
	CloudCover      float64 `db:"cloud_cover"`
	SoilMoisture    float64 `db:"soil_moisture"`
}

func (r sqliteReading) toReading() (climate.Reading, error) {
	date, err := common.ParseDay(r.Date)
	if err != nil {
		return climate.Reading{}, eris.Wrapf(err, "sqlite: parse reading date %q", r.Date)
	}
	return climate.Reading{
		RegionID:        r.RegionID,
		Date:            date,
		MeanTemperature: r.MeanTemperature,
		MaxTemperature:  r.MaxTemperature,
		MinTemperature:  r.MinTemperature,
		MeanHumidity:    r.MeanHumidity,
		MaxHumidity:     r.MaxHumidity,
		MinHumidity:     r.MinHumidity,
		Rain:            r.Rain,
		CloudCover:      r.CloudCover,
		SoilMoisture:    r.SoilMoisture,
	}, nil
}

func (s *SQLiteStore) CreateRegion(ctx context.Context, r climate.Region) (climate.Region, error) {
	res, err := s.db.NamedExecContext(ctx,
		`INSERT INTO regions (name, latitude, longitude, description)
		 VALUES (:name, :latitude, :longitude, :description)`, r)
	if err != nil {
		if isUniqueViolation(err) {
			return climate.Region{}, climate.ErrRegionExists
		}
		return climate.Region{}, eris.Wrapf(err, "sqlite: create region %q", r.Name)
	}

	r.ID, err = res.LastInsertId()
	if err != nil {
		return climate.Region{}, eris.Wrap(err, "sqlite: region id")
	}
	return r, nil
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY
// constraint failure. The driver enables extended result codes.
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

func (s *SQLiteStore) GetRegion(ctx context.Context, name string) (climate.Region, error) {
	var r climate.Region
	err := s.db.GetContext(ctx, &r,
		`SELECT id, name, latitude, longitude, description FROM regions WHERE name = ?`, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return climate.Region{}, climate.ErrRegionNotFound
		}
		return climate.Region{}, eris.Wrapf(err, "sqlite: get region %q", name)
	}
	return r, nil
}

func (s *SQLiteStore) ListRegions(ctx context.Context, names []string) ([]climate.Region, error) {
	query := `SELECT id, name, latitude, longitude, description FROM regions`
	var args []any
	if len(names) > 0 {
		var err error
		query, args, err = sqlx.In(query+` WHERE name IN (?)`, names)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: build region query")
		}
	}

	var regions []climate.Region
	if err := s.db.SelectContext(ctx, &regions, s.db.Rebind(query+` ORDER BY id`), args...); err != nil {
		return nil, eris.Wrap(err, "sqlite: list regions")
	}
	return regions, nil
}

// DeleteRegion removes readings explicitly as well, so the cascade does not
// depend on the foreign_keys pragma of the connection.
func (s *SQLiteStore) DeleteRegion(ctx context.Context, name string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin delete region")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM climate_readings WHERE region_id IN (SELECT id FROM regions WHERE name = ?)`, name,
	); err != nil {
		return eris.Wrapf(err, "sqlite: delete readings of %q", name)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM regions WHERE name = ?`, name)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete region %q", name)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return climate.ErrRegionNotFound
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit delete region")
}

func (s *SQLiteStore) CountRegions(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM regions`); err != nil {
		return 0, eris.Wrap(err, "sqlite: count regions")
	}
	return n, nil
}

func (s *SQLiteStore) Readings(ctx context.Context, regionIDs []int64, since time.Time) (map[int64][]climate.Reading, error) {
	out := make(map[int64][]climate.Reading, len(regionIDs))
	if len(regionIDs) == 0 {
		return out, nil
	}

	query, args, err := sqlx.In(
		`SELECT region_id, date, mean_temperature, max_temperature, min_temperature,
		        mean_humidity, max_humidity, min_humidity, rain, cloud_cover, soil_moisture
		 FROM climate_readings
		 WHERE region_id IN (?) AND date >= ?
		 ORDER BY region_id, date`,
		regionIDs, common.Day(since).Format(common.DateLayout),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build readings query")
	}

	var rows []sqliteReading
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, eris.Wrap(err, "sqlite: query readings")
	}

	for _, row := range rows {
		r, err := row.toReading()
		if err != nil {
			return nil, err
		}
		out[r.RegionID] = append(out[r.RegionID], r)
	}
	return out, nil
}

func (s *SQLiteStore) LatestReadingDates(ctx context.Context, regionIDs []int64) (map[int64]time.Time, error) {
	out := make(map[int64]time.Time, len(regionIDs))
	if len(regionIDs) == 0 {
		return out, nil
	}

	query, args, err := sqlx.In(
		`SELECT region_id, MAX(date) AS date FROM climate_readings
		 WHERE region_id IN (?) GROUP BY region_id`,
		regionIDs,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build latest dates query")
	}

	var rows []struct {
		RegionID int64  `db:"region_id"`
		Date     string `db:"date"`
	}
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, eris.Wrap(err, "sqlite: query latest dates")
	}

	for _, row := range rows {
		d, err := common.ParseDay(row.Date)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: parse latest date %q", row.Date)
		}
		out[row.RegionID] = d
	}
	return out, nil
}

// InsertReadings writes readings in one transaction; INSERT OR IGNORE drops
// readings whose (region_id, date) already exists.
func (s *SQLiteStore) InsertReadings(ctx context.Context, readings []climate.Reading) (int64, error) {
	if len(readings) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin insert readings")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareNamedContext(ctx,
		`INSERT OR IGNORE INTO climate_readings (`+strings.Join(readingColumns, ", ")+`)
		 VALUES (:region_id, :date, :mean_temperature, :max_temperature, :min_temperature,
		         :mean_humidity, :max_humidity, :min_humidity, :rain, :cloud_cover, :soil_moisture)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert readings")
	}
	defer stmt.Close()

	var inserted int64
	for _, r := range readings {
		res, err := stmt.ExecContext(ctx, sqliteReading{
			RegionID:        r.RegionID,
			Date:            common.Day(r.Date).Format(common.DateLayout),
			MeanTemperature: r.MeanTemperature,
			MaxTemperature:  r.MaxTemperature,
			MinTemperature:  r.MinTemperature,
			MeanHumidity:    r.MeanHumidity,
			MaxHumidity:     r.MaxHumidity,
			MinHumidity:     r.MinHumidity,
			Rain:            r.Rain,
			CloudCover:      r.CloudCover,
			SoilMoisture:    r.SoilMoisture,
		})
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: insert reading")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: rows affected")
		}
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit insert readings")
	}
	return inserted, nil
}
