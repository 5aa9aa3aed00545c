package store

import (
	"context"
	"database/sql"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/i474232898/plot-weather/internal/dateutil"
	"github.com/i474232898/plot-weather/internal/weather"
)

// sqliteSchema mirrors the server tables. measurement_time holds the
// reporting-zone wall clock as "YYYY-MM-DD HH:MM:SS" so text order is
// time order.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS t_device (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS t_weather (
	did INTEGER NOT NULL REFERENCES t_device(id),
	measurement_time TEXT NOT NULL,
	temp_out REAL,
	temp_in REAL,
	humid REAL,
	pressure REAL,
	PRIMARY KEY (did, measurement_time)
);

CREATE INDEX IF NOT EXISTS idx_weather_time ON t_weather(measurement_time);
`

// SQLiteStore serves the single-file database generation.
type SQLiteStore struct {
	db       *sql.DB
	loc      *time.Location
	readOnly bool
}

// NewSQLiteStore opens the database at path. A read-only store never
// creates the file or its schema.
func NewSQLiteStore(path string, loc *time.Location, readOnly bool) (*SQLiteStore, error) {
	if loc == nil {
		loc = time.UTC
	}

	dsn := "file:" + path + "?_busy_timeout=5000&mode=ro"
	if !readOnly {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, errors.Wrap(err, "create database directory")
		}
		dsn = "file:" + path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite database")
	}
	return &SQLiteStore{db: db, loc: loc, readOnly: readOnly}, nil
}

// Initialize creates the schema.
func (s *SQLiteStore) Initialize(ctx context.Context) error {
	if s.readOnly {
		return errors.New("sqlite store is read-only")
	}
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return errors.Wrap(err, "create schema")
	}

	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return errors.Wrapf(err, "set %s", pragma)
		}
	}
	return nil
}

// AddDevice registers a device name, ignoring duplicates.
func (s *SQLiteStore) AddDevice(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO t_device (name) VALUES (?)`, name)
	return errors.Wrapf(err, "add device %s", name)
}

// InsertObservations stores rows for a registered device in one transaction.
func (s *SQLiteStore) InsertObservations(ctx context.Context, device string, obs []weather.Observation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	var did int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM t_device WHERE name = ?`, device).Scan(&did); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUnknownDevice
		}
		return errors.Wrap(err, "look up device")
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO t_weather (did, measurement_time, temp_out, temp_in, humid, pressure)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return errors.Wrap(err, "prepare insert")
	}
	defer stmt.Close()

	for _, o := range obs {
		if _, err := stmt.ExecContext(ctx, did, s.format(o.MeasurementTime),
			o.TempOut, o.TempIn, o.Humid, o.Pressure); err != nil {
			return errors.Wrap(err, "insert observation")
		}
	}

	return errors.Wrap(tx.Commit(), "commit observations")
}

func (s *SQLiteStore) Observations(ctx context.Context, device string, from, to time.Time) ([]weather.Observation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tw.measurement_time, tw.temp_out, tw.temp_in, tw.humid, tw.pressure
		FROM t_weather tw
		INNER JOIN t_device td ON tw.did = td.id
		WHERE td.name = ? AND tw.measurement_time >= ? AND tw.measurement_time < ?
		ORDER BY tw.measurement_time
	`, device, s.format(from), s.format(to))
	if err != nil {
		return nil, sqliteErr("observations", err)
	}
	defer rows.Close()

	result := make([]weather.Observation, 0)
	for rows.Next() {
		var (
			ts                               string
			tempOut, tempIn, humid, pressure sql.NullFloat64
		)
		if err := rows.Scan(&ts, &tempOut, &tempIn, &humid, &pressure); err != nil {
			return nil, sqliteErr("observations", err)
		}
		mt, err := dateutil.ParseDateTime(ts, s.loc)
		if err != nil {
			return nil, sqliteErr("observations", err)
		}
		result = append(result, weather.Observation{
			MeasurementTime: mt,
			TempOut:         nullFloat(tempOut),
			TempIn:          nullFloat(tempIn),
			Humid:           nullFloat(humid),
			Pressure:        nullFloat(pressure),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, sqliteErr("observations", err)
	}
	return result, nil
}

func (s *SQLiteStore) DistinctMonths(ctx context.Context, device string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT substr(tw.measurement_time, 1, 7) AS ym
		FROM t_weather tw
		INNER JOIN t_device td ON tw.did = td.id
		WHERE td.name = ?
		ORDER BY ym DESC
	`, device)
	if err != nil {
		return nil, sqliteErr("distinct months", err)
	}
	defer rows.Close()

	months := make([]string, 0)
	for rows.Next() {
		var ym string
		if err := rows.Scan(&ym); err != nil {
			return nil, sqliteErr("distinct months", err)
		}
		months = append(months, ym)
	}
	if err := rows.Err(); err != nil {
		return nil, sqliteErr("distinct months", err)
	}
	return months, nil
}

func (s *SQLiteStore) FirstDate(ctx context.Context, device string) (*time.Time, error) {
	return s.boundaryDate(ctx, "first date", "min", device)
}

func (s *SQLiteStore) LastDate(ctx context.Context, device string) (*time.Time, error) {
	return s.boundaryDate(ctx, "last date", "max", device)
}

// boundaryDate runs min or max over the device's measurement dates.
func (s *SQLiteStore) boundaryDate(ctx context.Context, op, agg, device string) (*time.Time, error) {
	var day sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT `+agg+`(substr(tw.measurement_time, 1, 10))
		FROM t_weather tw
		INNER JOIN t_device td ON tw.did = td.id
		WHERE td.name = ?
	`, device).Scan(&day)
	if err != nil {
		return nil, sqliteErr(op, err)
	}
	if !day.Valid {
		return nil, nil
	}
	d, err := dateutil.ParseDate(day.String, s.loc)
	if err != nil {
		return nil, sqliteErr(op, err)
	}
	return &d, nil
}

func (s *SQLiteStore) LastObservation(ctx context.Context, device string) (*weather.Observation, error) {
	var (
		ts                               string
		tempOut, tempIn, humid, pressure sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT tw.measurement_time, tw.temp_out, tw.temp_in, tw.humid, tw.pressure
		FROM t_weather tw
		INNER JOIN t_device td ON tw.did = td.id
		WHERE td.name = ?
		ORDER BY tw.measurement_time DESC
		LIMIT 1
	`, device).Scan(&ts, &tempOut, &tempIn, &humid, &pressure)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, sqliteErr("last observation", err)
	}
	mt, err := dateutil.ParseDateTime(ts, s.loc)
	if err != nil {
		return nil, sqliteErr("last observation", err)
	}
	return &weather.Observation{
		MeasurementTime: mt,
		TempOut:         nullFloat(tempOut),
		TempIn:          nullFloat(tempIn),
		Humid:           nullFloat(humid),
		Pressure:        nullFloat(pressure),
	}, nil
}

func (s *SQLiteStore) DeviceExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM t_device WHERE name = ?)`, name).Scan(&exists)
	if err != nil {
		return false, sqliteErr("device exists", err)
	}
	return exists, nil
}

func (s *SQLiteStore) ListDevices(ctx context.Context) ([]weather.Device, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM t_device ORDER BY id`)
	if err != nil {
		return nil, sqliteErr("list devices", err)
	}
	defer rows.Close()

	devices := make([]weather.Device, 0)
	for rows.Next() {
		var d weather.Device
		if err := rows.Scan(&d.Name); err != nil {
			return nil, sqliteErr("list devices", err)
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, sqliteErr("list devices", err)
	}
	return devices, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return sqliteErr("ping", err)
	}
	return nil
}

func (s *SQLiteStore) Close() {
	s.db.Close()
}

func (s *SQLiteStore) format(t time.Time) string {
	return t.In(s.loc).Format(dateutil.LayoutDateTime)
}

func sqliteErr(op string, err error) error {
	return &weather.DataAccessError{Op: "sqlite " + op, Err: errors.WithStack(err)}
}

func nullFloat(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
