package history

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/etmur007/rainfall-risk-dashboard/internal/domain"

	_ "modernc.org/sqlite"
)

const tableName = "risk_history"

const createTable = `
	CREATE TABLE IF NOT EXISTS risk_history (
		twp_id       TEXT NOT NULL,
		name         TEXT NOT NULL,
		lon          REAL NOT NULL,
		lat          REAL NOT NULL,
		date         TEXT NOT NULL,
		rolling_7d   REAL,
		failure_risk REAL NOT NULL,
		risk_level   TEXT NOT NULL,
		date_fetched TEXT NOT NULL
	)
`

// SQLiteStore is an append-only history table in a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates the database at path and verifies the history
// table has exactly the history column set.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One writer; SQLite serializes anyway.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, path: path}
	if err := s.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("create %s table: %w", tableName, err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?) ORDER BY cid", tableName)
	if err != nil {
		return fmt.Errorf("inspect %s table: %w", tableName, err)
	}
	defer rows.Close()

	var got []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("scan column: %w", err)
		}
		got = append(got, name)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("inspect %s table: %w", tableName, err)
	}
	if !slices.Equal(got, Columns) {
		return &domain.IncompatibleHistoryError{Path: s.path, Want: Columns, Got: got}
	}
	return nil
}

// Append inserts rows in one transaction.
func (s *SQLiteStore) Append(ctx context.Context, rows []domain.RiskAssessment) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO risk_history
			(twp_id, name, lon, lat, date, rolling_7d, failure_risk, risk_level, date_fetched)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range rows {
		var rolling sql.NullFloat64
		if a.Rolling7d.Valid {
			rolling = sql.NullFloat64{Float64: a.Rolling7d.Value, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			a.LocationID, a.Name, a.Geo.Lon, a.Geo.Lat,
			a.Date.Format(domain.DateFormat), rolling, a.FailureRisk,
			string(a.RiskLevel), a.FetchedAt.Format(domain.DateFormat),
		); err != nil {
			return fmt.Errorf("insert %s: %w", a.LocationID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Load returns every row in insertion order.
func (s *SQLiteStore) Load(ctx context.Context) ([]domain.RiskAssessment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT twp_id, name, lon, lat, date, rolling_7d, failure_risk, risk_level, date_fetched
		FROM risk_history ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []domain.RiskAssessment
	line := 0
	for rows.Next() {
		line++
		var (
			a             domain.RiskAssessment
			rolling       sql.NullFloat64
			date, fetched string
			tier          string
		)
		if err := rows.Scan(&a.LocationID, &a.Name, &a.Geo.Lon, &a.Geo.Lat,
			&date, &rolling, &a.FailureRisk, &tier, &fetched); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		if a.Date, err = time.ParseInLocation(domain.DateFormat, date, time.UTC); err != nil {
			return nil, &RecordError{Line: line, Err: fmt.Errorf("date: %w", err)}
		}
		if a.FetchedAt, err = time.ParseInLocation(domain.DateFormat, fetched, time.UTC); err != nil {
			return nil, &RecordError{Line: line, Err: fmt.Errorf("date_fetched: %w", err)}
		}
		if a.RiskLevel, err = domain.ParseTier(tier); err != nil {
			return nil, &RecordError{Line: line, Err: fmt.Errorf("risk_level: %w", err)}
		}
		if rolling.Valid {
			a.Rolling7d = domain.Millimetres(rolling.Float64)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return out, nil
}

// Close releases the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
