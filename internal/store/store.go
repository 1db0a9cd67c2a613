// Package store keeps console transcripts and preset verification results in
// a SQLite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/tinysa/internal/preset"
	"github.com/banshee-data/tinysa/internal/protocol"
	"github.com/banshee-data/tinysa/internal/timeutil"
)

// Connection pragmas are set through the DSN so every pooled connection
// gets them; journal_mode is stored in the file itself.
const dsnPragmas = "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=synchronous(NORMAL)"

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
}

// ErrUnknownSession is returned when a session id is not in the database.
var ErrUnknownSession = errors.New("unknown session")

// DB is the transcript database.
type DB struct {
	*sql.DB
	path  string
	clock timeutil.Clock
}

// Open opens the database at path and brings its schema up to date.
func Open(path string) (*DB, error) {
	return OpenWithClock(path, timeutil.RealClock{})
}

// OpenWithClock is Open with a caller-supplied clock for session and check
// timestamps.
func OpenWithClock(path string, clock timeutil.Clock) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path+dsnPragmas)
	if err != nil {
		return nil, err
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	db := &DB{DB: sqlDB, path: path, clock: clock}
	if err := db.MigrateUp(Migrations); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Exchange is one stored command exchange.
type Exchange struct {
	ID         int64         `json:"id"`
	SessionID  string        `json:"session_id"`
	Command    string        `json:"command"`
	Response   string        `json:"response"`
	Written    int           `json:"bytes_written"`
	Requested  int           `json:"bytes_requested"`
	Started    time.Time     `json:"started"`
	Duration   time.Duration `json:"duration_ns"`
	Error      string        `json:"error,omitempty"`
	ShortWrite bool          `json:"short_write"`
}

// Recorder stores the exchanges of one console session. It implements
// protocol.Recorder.
type Recorder struct {
	db        *DB
	sessionID string
}

var _ protocol.Recorder = (*Recorder)(nil)

// StartSession opens a new transcript for the device at portName.
func (db *DB) StartSession(ctx context.Context, portName string) (*Recorder, error) {
	id := uuid.NewString()
	_, err := db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, port_name, started_unix_nanos) VALUES (?, ?, ?)`,
		id, portName, db.clock.Now().UnixNano())
	if err != nil {
		return nil, fmt.Errorf("starting session: %w", err)
	}
	return &Recorder{db: db, sessionID: id}, nil
}

// SessionID returns the transcript's id.
func (r *Recorder) SessionID() string { return r.sessionID }

// RecordExchange appends resp to the transcript. execErr, if any, is stored
// alongside whatever text arrived before it.
func (r *Recorder) RecordExchange(ctx context.Context, resp protocol.Response, execErr error) error {
	var errText sql.NullString
	if execErr != nil {
		errText = sql.NullString{String: execErr.Error(), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO exchanges (
			session_id, command, response, bytes_written, bytes_requested,
			started_unix_nanos, duration_nanos, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.sessionID, resp.Command, resp.Text, resp.Written, resp.Requested,
		resp.Started.UnixNano(), int64(resp.Duration), errText,
	)
	return err
}

// End marks the session finished.
func (r *Recorder) End(ctx context.Context) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET ended_unix_nanos = ? WHERE session_id = ?`,
		r.db.clock.Now().UnixNano(), r.sessionID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownSession, r.sessionID)
	}
	return nil
}

// RecentExchanges returns up to limit exchanges, newest first. An empty
// sessionID selects every session.
func (db *DB) RecentExchanges(ctx context.Context, sessionID string, limit int) ([]Exchange, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx, `
		SELECT exchange_id, session_id, command, response, bytes_written,
			bytes_requested, started_unix_nanos, duration_nanos, error
		FROM exchanges
		WHERE ? = '' OR session_id = ?
		ORDER BY exchange_id DESC
		LIMIT ?`, sessionID, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exchanges []Exchange
	for rows.Next() {
		var (
			e       Exchange
			started int64
			dur     int64
			errText sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Command, &e.Response, &e.Written,
			&e.Requested, &started, &dur, &errText); err != nil {
			return nil, err
		}
		e.Started = time.Unix(0, started).UTC()
		e.Duration = time.Duration(dur)
		e.Error = errText.String
		e.ShortWrite = e.Written < e.Requested
		exchanges = append(exchanges, e)
	}
	return exchanges, rows.Err()
}

// PresetCheck is one stored preset verification.
type PresetCheck struct {
	ID       int64     `json:"id"`
	Path     string    `json:"path"`
	Computed uint32    `json:"computed"`
	Stored   uint32    `json:"stored"`
	Valid    bool      `json:"valid"`
	Error    string    `json:"error,omitempty"`
	Checked  time.Time `json:"checked"`
}

// RecordPresetCheck stores the outcome of verifying one preset file.
func (db *DB) RecordPresetCheck(ctx context.Context, report preset.FileReport) error {
	var (
		computed, stored sql.NullInt64
		errText          sql.NullString
	)
	if report.Err != nil {
		errText = sql.NullString{String: report.Err.Error(), Valid: true}
	} else {
		computed = sql.NullInt64{Int64: int64(report.Result.Computed), Valid: true}
		stored = sql.NullInt64{Int64: int64(report.Result.Stored), Valid: true}
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO preset_checks (
			path, computed_checksum, stored_checksum, valid, error, checked_unix_nanos
		) VALUES (?, ?, ?, ?, ?, ?)`,
		report.Path, computed, stored, report.Err == nil && report.Result.Valid, errText,
		db.clock.Now().UnixNano(),
	)
	return err
}

// PresetChecks returns the stored checks for path, newest first. An empty
// path selects every file.
func (db *DB) PresetChecks(ctx context.Context, path string) ([]PresetCheck, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT check_id, path, computed_checksum, stored_checksum, valid, error, checked_unix_nanos
		FROM preset_checks
		WHERE ? = '' OR path = ?
		ORDER BY check_id DESC`, path, path)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var checks []PresetCheck
	for rows.Next() {
		var (
			c                PresetCheck
			computed, stored sql.NullInt64
			errText          sql.NullString
			checked          int64
		)
		if err := rows.Scan(&c.ID, &c.Path, &computed, &stored, &c.Valid, &errText, &checked); err != nil {
			return nil, err
		}
		c.Computed = uint32(computed.Int64)
		c.Stored = uint32(stored.Int64)
		c.Error = errText.String
		c.Checked = time.Unix(0, checked).UTC()
		checks = append(checks, c)
	}
	return checks, rows.Err()
}
