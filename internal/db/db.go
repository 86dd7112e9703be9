// Package db persists conditioned tank readings and temperature reports in
// SQLite.
package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kiniou-labs/level.report/internal/tanklevel"
)

// DB wraps the SQLite handle with tank-specific queries.
type DB struct {
	*sql.DB
	path string
}

// NewDB opens (or creates) the database at path and applies any pending
// migrations.
func NewDB(path string) (*DB, error) {
	handle, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// WAL keeps the once-per-second writer from blocking API reads.
	if _, err := handle.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		handle.Close()
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}

	db := &DB{DB: handle, path: path}
	if err := db.MigrateUp(); err != nil {
		handle.Close()
		return nil, err
	}
	return db, nil
}

// StoredReading is one persisted pipeline report.
type StoredReading struct {
	SessionID     string    `json:"session_id"`
	RawMin        float64   `json:"raw_min"`
	RawMax        float64   `json:"raw_max"`
	TrimmedMin    float64   `json:"trimmed_min"`
	TrimmedMax    float64   `json:"trimmed_max"`
	TrimmedMean   float64   `json:"trimmed_mean"`
	Smoothed      float64   `json:"smoothed_cm"`
	UsefulLevel   float64   `json:"useful_level_cm"`
	VolumeLiters  float64   `json:"volume_l"`
	UsefulPercent float64   `json:"useful_percent"`
	Timestamp     time.Time `json:"timestamp"`
}

// StoredTemperature is one persisted ambient temperature report.
type StoredTemperature struct {
	SessionID string    `json:"session_id"`
	Celsius   float64   `json:"celsius"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// RecordReading inserts one pipeline report for the given collector
// session.
func (db *DB) RecordReading(sessionID string, result tanklevel.TrimResult, smoothed float64, reading tanklevel.Reading) error {
	_, err := db.Exec(
		`INSERT INTO readings (
			session_id, raw_min, raw_max, trimmed_min, trimmed_max,
			trimmed_mean, smoothed, useful_level, volume_l, percent
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, result.RawMin, result.RawMax, result.TrimmedMin, result.TrimmedMax,
		result.TrimmedMean, smoothed, reading.UsefulLevel, reading.VolumeLiters, reading.UsefulPercent,
	)
	if err != nil {
		return fmt.Errorf("failed to record reading: %w", err)
	}
	return nil
}

// RecordTemperature inserts one ambient temperature report. source names
// where the value came from ("api", "dht11", ...).
func (db *DB) RecordTemperature(sessionID string, celsius float64, source string) error {
	_, err := db.Exec(
		"INSERT INTO temperatures (session_id, celsius, source) VALUES (?, ?, ?)",
		sessionID, celsius, source,
	)
	if err != nil {
		return fmt.Errorf("failed to record temperature: %w", err)
	}
	return nil
}

const readingColumns = `session_id, raw_min, raw_max, trimmed_min, trimmed_max,
	trimmed_mean, smoothed, useful_level, volume_l, percent, timestamp`

// LatestReading returns the most recent reading, or sql.ErrNoRows when the
// table is empty.
func (db *DB) LatestReading() (*StoredReading, error) {
	row := db.QueryRow("SELECT " + readingColumns + " FROM readings ORDER BY timestamp DESC, rowid DESC LIMIT 1")
	return scanReading(row)
}

// ReadingsSince returns readings newer than since, oldest first, capped at
// limit rows.
func (db *DB) ReadingsSince(since time.Time, limit int) ([]StoredReading, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := db.Query(
		"SELECT "+readingColumns+" FROM readings WHERE timestamp > ? ORDER BY timestamp ASC, rowid ASC LIMIT ?",
		since.UTC().Format("2006-01-02 15:04:05"), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	var readings []StoredReading
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		readings = append(readings, *r)
	}
	return readings, rows.Err()
}

// LatestTemperature returns the most recent temperature report, or
// sql.ErrNoRows when none has been recorded.
func (db *DB) LatestTemperature() (*StoredTemperature, error) {
	row := db.QueryRow("SELECT session_id, celsius, source, timestamp FROM temperatures ORDER BY timestamp DESC, rowid DESC LIMIT 1")
	var t StoredTemperature
	var ts string
	if err := row.Scan(&t.SessionID, &t.Celsius, &t.Source, &ts); err != nil {
		return nil, err
	}
	parsed, err := parseTimestamp(ts)
	if err != nil {
		return nil, err
	}
	t.Timestamp = parsed
	return &t, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReading(row rowScanner) (*StoredReading, error) {
	var r StoredReading
	var ts string
	err := row.Scan(
		&r.SessionID, &r.RawMin, &r.RawMax, &r.TrimmedMin, &r.TrimmedMax,
		&r.TrimmedMean, &r.Smoothed, &r.UsefulLevel, &r.VolumeLiters,
		&r.UsefulPercent, &ts,
	)
	if err != nil {
		return nil, err
	}
	parsed, err := parseTimestamp(ts)
	if err != nil {
		return nil, err
	}
	r.Timestamp = parsed
	return &r, nil
}

func parseTimestamp(ts string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, ts); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", ts)
}
