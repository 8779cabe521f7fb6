package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverSQLite = "sqlite3"
	DriverMySQL  = "mysql"
)

// DB wraps a connection pool and remembers which dialect it speaks.
type DB struct {
	conn   *sql.DB
	driver string
}

// Open connects and creates the schema if it is missing. MySQL DSNs are
// rewritten to parse DATETIME columns into time.Time.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	switch driver {
	case DriverSQLite:
	case DriverMySQL:
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("invalid mysql DSN: %w", err)
		}
		cfg.ParseTime = true
		cfg.Loc = time.UTC
		dsn = cfg.FormatDSN()
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, driver)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		// sqlite serializes writers; one connection avoids SQLITE_BUSY between pool members.
		conn.SetMaxOpenConns(1)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn, driver: driver}
	if err := db.createTables(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return db, nil
}

func (db *DB) createTables(ctx context.Context) error {
	for _, stmt := range schema(db.driver) {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func schema(driver string) []string {
	id, text, ts := "TEXT", "TEXT", "DATETIME"
	if driver == DriverMySQL {
		id, text, ts = "VARCHAR(64)", "LONGTEXT", "DATETIME(6)"
	}

	return []string{
		`CREATE TABLE IF NOT EXISTS captures (
			id ` + id + ` PRIMARY KEY,
			artifact ` + text + ` NOT NULL,
			camera_id VARCHAR(64) NOT NULL,
			captured_at ` + ts + ` NOT NULL,
			confidence DOUBLE NOT NULL,
			preview ` + text + ` NOT NULL,
			is_code BOOLEAN NOT NULL,
			content_type VARCHAR(16) NOT NULL,
			created_at ` + ts + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS frame_metadata (
			id ` + id + ` PRIMARY KEY,
			capture_id ` + id + ` NOT NULL,
			captured_at ` + ts + ` NOT NULL,
			camera_id VARCHAR(64) NOT NULL,
			blur_variance DOUBLE NOT NULL,
			illumination_mean DOUBLE NOT NULL,
			enhanced BOOLEAN NOT NULL,
			enhanced_text ` + text + ` NOT NULL,
			enhanced_confidence DOUBLE NOT NULL,
			enhanced_word_count INTEGER NOT NULL,
			raw_text ` + text + ` NOT NULL,
			raw_confidence DOUBLE NOT NULL,
			raw_word_count INTEGER NOT NULL,
			accuracy_improvement DOUBLE NOT NULL,
			metrics ` + text + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ocr_results (
			id ` + id + ` PRIMARY KEY,
			capture_id ` + id + ` NOT NULL,
			extracted_text ` + text + ` NOT NULL,
			confidence DOUBLE NOT NULL,
			word_count INTEGER NOT NULL,
			character_count INTEGER NOT NULL,
			line_count INTEGER NOT NULL,
			content_type VARCHAR(16) NOT NULL,
			processing_time_sec DOUBLE NOT NULL,
			created_at ` + ts + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS code_blocks (
			id ` + id + ` PRIMARY KEY,
			ocr_result_id ` + id + ` NOT NULL,
			capture_id ` + id + ` NOT NULL,
			code ` + text + ` NOT NULL,
			language VARCHAR(32) NOT NULL,
			line_start INTEGER NOT NULL,
			line_end INTEGER NOT NULL
		)`,
	}
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Conn() *sql.DB {
	return db.conn
}

func (db *DB) Driver() string {
	return db.driver
}
