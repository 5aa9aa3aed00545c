package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/i474232898/plot-weather/internal/weather"
)

var _ weather.Backend = (*PostgresStore)(nil)

// PostgresConfig holds pool settings for PostgresStore.
type PostgresConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// PostgresStore reads the weather schema (weather.t_device, weather.t_weather).
// measurement_time is a timestamp without time zone holding the wall clock
// of the reporting zone.
type PostgresStore struct {
	pool *pgxpool.Pool
	loc  *time.Location
}

// NewPostgresStore connects a read-only pool and pings it.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig, loc *time.Location) (*PostgresStore, error) {
	if loc == nil {
		loc = time.UTC
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse config failed: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["default_transaction_read_only"] = "on"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("pool creation error: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	log.Printf("INFO: PostgreSQL pool ready (max %d connections)", poolConfig.MaxConns)
	return &PostgresStore{pool: pool, loc: loc}, nil
}

func (s *PostgresStore) Observations(ctx context.Context, device string, from, to time.Time) ([]weather.Observation, error) {
	query := `
        SELECT tw.measurement_time, tw.temp_out, tw.temp_in, tw.humid, tw.pressure
        FROM weather.t_weather tw
        INNER JOIN weather.t_device td ON tw.did = td.id
        WHERE td.name = $1
          AND tw.measurement_time >= $2
          AND tw.measurement_time < $3
        ORDER BY tw.measurement_time`

	rows, err := s.pool.Query(ctx, query, device, from.In(s.loc), to.In(s.loc))
	if err != nil {
		return nil, pgErr("observations", err)
	}
	defer rows.Close()

	result := make([]weather.Observation, 0)
	for rows.Next() {
		o, err := s.scanObservation(rows)
		if err != nil {
			return nil, pgErr("observations", err)
		}
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, pgErr("observations", err)
	}
	return result, nil
}

func (s *PostgresStore) DistinctMonths(ctx context.Context, device string) ([]string, error) {
	query := `
        SELECT to_char(tw.measurement_time, 'YYYY-MM') AS ym
        FROM weather.t_weather tw
        INNER JOIN weather.t_device td ON tw.did = td.id
        WHERE td.name = $1
        GROUP BY ym
        ORDER BY ym DESC`

	rows, err := s.pool.Query(ctx, query, device)
	if err != nil {
		return nil, pgErr("distinct months", err)
	}
	months, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, pgErr("distinct months", err)
	}
	if months == nil {
		months = []string{}
	}
	return months, nil
}

func (s *PostgresStore) FirstDate(ctx context.Context, device string) (*time.Time, error) {
	return s.boundaryDate(ctx, "first date", `
        SELECT min(tw.measurement_time)::date
        FROM weather.t_weather tw
        INNER JOIN weather.t_device td ON tw.did = td.id
        WHERE td.name = $1`, device)
}

func (s *PostgresStore) LastDate(ctx context.Context, device string) (*time.Time, error) {
	return s.boundaryDate(ctx, "last date", `
        SELECT max(tw.measurement_time)::date
        FROM weather.t_weather tw
        INNER JOIN weather.t_device td ON tw.did = td.id
        WHERE td.name = $1`, device)
}

func (s *PostgresStore) boundaryDate(ctx context.Context, op, query, device string) (*time.Time, error) {
	var day pgtype.Date
	if err := s.pool.QueryRow(ctx, query, device).Scan(&day); err != nil {
		return nil, pgErr(op, err)
	}
	if !day.Valid {
		return nil, nil
	}
	d := wallClock(day.Time, s.loc)
	return &d, nil
}

// LastObservation picks the newest row of this device only.
func (s *PostgresStore) LastObservation(ctx context.Context, device string) (*weather.Observation, error) {
	query := `
        SELECT tw.measurement_time, tw.temp_out, tw.temp_in, tw.humid, tw.pressure
        FROM weather.t_weather tw
        INNER JOIN weather.t_device td ON tw.did = td.id
        WHERE td.name = $1
        ORDER BY tw.measurement_time DESC
        LIMIT 1`

	o, err := s.scanObservation(s.pool.QueryRow(ctx, query, device))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, pgErr("last observation", err)
	}
	return &o, nil
}

func (s *PostgresStore) DeviceExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM weather.t_device WHERE name = $1)`, name).Scan(&exists)
	if err != nil {
		return false, pgErr("device exists", err)
	}
	return exists, nil
}

func (s *PostgresStore) ListDevices(ctx context.Context) ([]weather.Device, error) {
	rows, err := s.pool.Query(ctx, `SELECT name FROM weather.t_device ORDER BY id`)
	if err != nil {
		return nil, pgErr("list devices", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, pgErr("list devices", err)
	}

	devices := make([]weather.Device, 0, len(names))
	for _, n := range names {
		devices = append(devices, weather.Device{Name: n})
	}
	return devices, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return pgErr("ping", err)
	}
	return nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	log.Println("INFO: Closing PostgreSQL connection pool.")
	s.pool.Close()
}

func (s *PostgresStore) scanObservation(row pgx.Row) (weather.Observation, error) {
	var (
		ts                               time.Time
		tempOut, tempIn, humid, pressure pgtype.Float8
	)
	if err := row.Scan(&ts, &tempOut, &tempIn, &humid, &pressure); err != nil {
		return weather.Observation{}, err
	}
	return weather.Observation{
		MeasurementTime: wallClock(ts, s.loc),
		TempOut:         float8(tempOut),
		TempIn:          float8(tempIn),
		Humid:           float8(humid),
		Pressure:        float8(pressure),
	}, nil
}

// wallClock reinterprets a timestamp-without-time-zone value, which pgx
// returns in UTC, as a wall clock in loc.
func wallClock(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

func float8(v pgtype.Float8) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

func pgErr(op string, err error) error {
	return &weather.DataAccessError{Op: "postgres " + op, Err: err}
}
