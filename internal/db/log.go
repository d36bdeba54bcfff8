package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/banshee-data/gps-recorder/internal/gps"
)

// createdAtLayout is the format of SQLite's CURRENT_TIMESTAMP.
const createdAtLayout = "2006-01-02 15:04:05"

// Record is one row of the log.
type Record struct {
	ID        int64
	Payload   string
	CreatedAt time.Time
}

// Decode parses the stored fix. Errors name the record id.
func (r Record) Decode() (gps.Fix, error) {
	f, err := gps.ParseFix(r.Payload)
	if err != nil {
		return gps.Fix{}, fmt.Errorf("record %d: %w", r.ID, err)
	}
	return f, nil
}

// Append serializes f and appends it to the log, returning the record id.
func (db *DB) Append(ctx context.Context, f gps.Fix) (int64, error) {
	payload, err := f.Marshal()
	if err != nil {
		return 0, fmt.Errorf("serialize fix: %w", err)
	}
	return db.AppendPayload(ctx, payload)
}

// AppendPayload appends an already serialized fix.
func (db *DB) AppendPayload(ctx context.Context, payload string) (int64, error) {
	res, err := db.ExecContext(ctx, `INSERT INTO location_history (waypoint) VALUES (?)`, payload)
	if err != nil {
		return 0, fmt.Errorf("append to location_history: %w", err)
	}
	return res.LastInsertId()
}

// Scan calls fn for every record in id order. Each call starts from the
// first record. Scan stops at the first error returned by fn and returns it.
func (db *DB) Scan(ctx context.Context, fn func(Record) error) error {
	rows, err := db.QueryContext(ctx, `SELECT id, waypoint, createdAt FROM location_history ORDER BY id ASC`)
	if err != nil {
		return fmt.Errorf("scan location_history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r         Record
			createdAt sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Payload, &createdAt); err != nil {
			return fmt.Errorf("scan location_history: %w", err)
		}
		if createdAt.Valid {
			// a malformed createdAt leaves the zero time; the payload carries the fix time
			r.CreatedAt, _ = time.ParseInLocation(createdAtLayout, createdAt.String, time.UTC)
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Count returns the number of records in the log.
func (db *DB) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM location_history`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count location_history: %w", err)
	}
	return n, nil
}
