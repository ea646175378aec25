// Package store persists normalized clinical records behind database/sql.
// SQLite is the default embedded backend; postgres and mysql are supported
// for shared deployments. All SQL is written with ? placeholders and
// rebound for postgres.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/chartr-dev/chartr/internal/chartr/config"
	"github.com/chartr-dev/chartr/internal/chartr/logger"
)

type Store struct {
	db     *sql.DB
	driver string
}

// Open connects per the database config and ensures the schema exists.
// sqlite uses the file path directly; postgres and mysql require a DSN.
func Open(ctx context.Context, cfg config.DatabaseCfg) (*Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "sqlite"
	}
	dsn, err := buildDSN(driver, cfg)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	s := &Store{db: db, driver: driver}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logger.L().Debugw("store opened", "driver", driver)
	return s, nil
}

func buildDSN(driver string, cfg config.DatabaseCfg) (string, error) {
	switch driver {
	case "sqlite":
		path := cfg.Path
		if path == "" {
			path = "health_data.db"
		}
		return "file:" + path + "?_pragma=busy_timeout(5000)", nil
	case "postgres", "mysql":
		if cfg.DSN == "" {
			return "", fmt.Errorf("driver %s requires database.dsn", driver)
		}
		return cfg.DSN, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

func (s *Store) Close() error { return s.db.Close() }

// rebind converts ? placeholders to $1..$n for postgres. sqlite and mysql
// take ? natively.
func (s *Store) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Column types stick to TEXT / DOUBLE PRECISION / INTEGER so the same DDL
// runs on all three backends. Dates are stored as ISO-8601 text.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS medications (
		name TEXT NOT NULL,
		dosage TEXT,
		frequency TEXT,
		route TEXT,
		start_date TEXT,
		end_date TEXT,
		status TEXT NOT NULL,
		prescriber TEXT,
		drug_code TEXT,
		normalized_drug_code TEXT,
		instructions TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS allergies (
		substance TEXT NOT NULL,
		reaction TEXT,
		severity TEXT,
		status TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS problems (
		description TEXT NOT NULL,
		diagnosis_code TEXT,
		normalized_code TEXT,
		onset_date TEXT,
		resolution_date TEXT,
		status TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS procedures (
		name TEXT NOT NULL,
		procedure_code TEXT,
		normalized_code TEXT,
		procedure_date TEXT,
		provider TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS lab_results (
		test_name TEXT NOT NULL,
		test_date TEXT,
		value TEXT,
		unit TEXT,
		reference_range TEXT,
		abnormal_flag TEXT NOT NULL,
		status TEXT NOT NULL,
		test_code TEXT,
		normalized_code TEXT,
		provider TEXT,
		notes TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS vitals (
		measurement_date TEXT NOT NULL,
		measurement_time TEXT,
		height_cm DOUBLE PRECISION,
		weight_kg DOUBLE PRECISION,
		bmi DOUBLE PRECISION,
		systolic_bp DOUBLE PRECISION,
		diastolic_bp DOUBLE PRECISION,
		heart_rate DOUBLE PRECISION,
		temperature_c DOUBLE PRECISION,
		respiratory_rate DOUBLE PRECISION,
		oxygen_saturation DOUBLE PRECISION
	)`,
	`CREATE TABLE IF NOT EXISTS immunizations (
		vaccine_name TEXT NOT NULL,
		administration_date TEXT,
		manufacturer TEXT,
		lot_number TEXT,
		vaccine_code TEXT,
		normalized_code TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS load_meta (
		batch_id TEXT NOT NULL,
		document_id TEXT,
		domain TEXT NOT NULL,
		loaded INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		loaded_at TEXT NOT NULL
	)`,
}

func (s *Store) ensureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
