// Package db persists per-frame observations and size estimates in a
// local sqlite database. Schema changes are managed by the embedded
// migrations; NewDB always migrates to the latest version on open.
package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the sqlite handle with the sonar-specific queries.
type DB struct {
	*sql.DB
}

// NewDB opens (creating if needed) the database at path and applies all
// pending migrations.
func NewDB(path string) (*DB, error) {
	handle, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// sqlite allows a single writer; the pipeline's processing actor
	// is the only writer, so one connection avoids lock contention.
	handle.SetMaxOpenConns(1)

	db := &DB{handle}
	if err := db.MigrateUp(); err != nil {
		handle.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// Observation is one processed frame's summary row.
type Observation struct {
	SessionID     string    `json:"session_id"`
	FrameIndex    int       `json:"frame_index"`
	VelocityMps   float64   `json:"velocity_mps"`
	Correlation   float64   `json:"correlation"`
	PeakMagnitude float64   `json:"peak_magnitude"`
	Timestamp     time.Time `json:"timestamp"`
}

// SizeEstimate is one frame's derived target size.
type SizeEstimate struct {
	SessionID  string    `json:"session_id"`
	FrameIndex int       `json:"frame_index"`
	LengthMM   float64   `json:"length_mm"`
	WidthMM    float64   `json:"width_mm"`
	Shape      string    `json:"shape"`
	Timestamp  time.Time `json:"timestamp"`
}

// RecordObservation inserts one observation row.
func (db *DB) RecordObservation(sessionID string, frameIndex int, velocityMps, correlation, peakMagnitude float64) error {
	_, err := db.Exec(
		`INSERT INTO observations (session_id, frame_index, velocity_mps, correlation, peak_magnitude)
		 VALUES (?, ?, ?, ?, ?)`,
		sessionID, frameIndex, velocityMps, correlation, peakMagnitude)
	if err != nil {
		return fmt.Errorf("failed to record observation: %w", err)
	}
	return nil
}

// RecordSizeEstimate inserts one size estimate row.
func (db *DB) RecordSizeEstimate(sessionID string, frameIndex int, lengthMM, widthMM float64, shape string) error {
	_, err := db.Exec(
		`INSERT INTO size_estimates (session_id, frame_index, length_mm, width_mm, shape)
		 VALUES (?, ?, ?, ?, ?)`,
		sessionID, frameIndex, lengthMM, widthMM, shape)
	if err != nil {
		return fmt.Errorf("failed to record size estimate: %w", err)
	}
	return nil
}

// RecentObservations returns up to limit observations, newest first.
func (db *DB) RecentObservations(limit int) ([]Observation, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := db.Query(
		`SELECT session_id, frame_index, velocity_mps, correlation, peak_magnitude, timestamp
		 FROM observations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var out []Observation
	for rows.Next() {
		var o Observation
		if err := rows.Scan(&o.SessionID, &o.FrameIndex, &o.VelocityMps,
			&o.Correlation, &o.PeakMagnitude, &o.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// LatestSizeEstimate returns the most recent size estimate, or nil if
// none has been recorded.
func (db *DB) LatestSizeEstimate() (*SizeEstimate, error) {
	row := db.QueryRow(
		`SELECT session_id, frame_index, length_mm, width_mm, shape, timestamp
		 FROM size_estimates ORDER BY id DESC LIMIT 1`)

	var s SizeEstimate
	err := row.Scan(&s.SessionID, &s.FrameIndex, &s.LengthMM, &s.WidthMM, &s.Shape, &s.Timestamp)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query size estimate: %w", err)
	}
	return &s, nil
}

// ObservationCount returns the total number of stored observations.
func (db *DB) ObservationCount() (int, error) {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM observations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count observations: %w", err)
	}
	return n, nil
}
