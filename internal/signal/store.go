package signal

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store is a recording file backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Channel describes one lead of a recording.
type Channel struct {
	Name    string
	Unit    string
	Comment string
}

// RecordingInfo describes a recording to add to a store.
type RecordingInfo struct {
	SamplingRate float64
	Description  string
	Start        time.Time
	End          time.Time
	Channels     []Channel
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond

	appendBatchSize = 4096
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// Create initializes a new recording store. It fails if path exists.
func Create(ctx context.Context, path string) (*Store, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("create recording %s: %w", path, fs.ErrExist)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("stat recording %s: %w", path, err)
	}
	return openStore(ctx, path)
}

// Open connects to an existing recording store.
func Open(ctx context.Context, path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open recording %s: %w", path, err)
	}
	return openStore(ctx, path)
}

func openStore(ctx context.Context, path string) (*Store, error) {
	ctx = ensureContext(ctx)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Frame readers hold a cursor while metadata queries run.
	db.SetMaxOpenConns(4)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the store file path.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// AddRecording inserts a recording and its channels, returning its id.
func (s *Store) AddRecording(ctx context.Context, info RecordingInfo) (int64, error) {
	ctx = ensureContext(ctx)
	if info.SamplingRate <= 0 || math.IsNaN(info.SamplingRate) || math.IsInf(info.SamplingRate, 0) {
		return 0, fmt.Errorf("sampling rate %g must be positive", info.SamplingRate)
	}
	if len(info.Channels) == 0 {
		return 0, errors.New("recording needs at least one channel")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin recording tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO recordings (sampling_rate, description, started_at, ended_at) VALUES (?, ?, ?, ?)",
		info.SamplingRate, info.Description, formatTime(info.Start), formatTime(info.End),
	)
	if err != nil {
		return 0, fmt.Errorf("insert recording: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("recording id: %w", err)
	}
	for idx, ch := range info.Channels {
		if strings.TrimSpace(ch.Name) == "" {
			return 0, fmt.Errorf("channel %d has no name", idx)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO channels (recording_id, idx, name, unit, comment) VALUES (?, ?, ?, ?, ?)",
			id, idx, ch.Name, ch.Unit, ch.Comment,
		); err != nil {
			return 0, fmt.Errorf("insert channel %q: %w", ch.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit recording: %w", err)
	}
	return id, nil
}

// AppendFrames writes frames for a recording in batched transactions.
func (s *Store) AppendFrames(ctx context.Context, recordingID int64, frames []Frame) error {
	ctx = ensureContext(ctx)
	for start := 0; start < len(frames); start += appendBatchSize {
		end := min(start+appendBatchSize, len(frames))
		batch := frames[start:end]
		if err := retryOnBusy(ctx, func() error {
			return s.appendBatch(ctx, recordingID, batch)
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) appendBatch(ctx context.Context, recordingID int64, frames []Frame) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin frames tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO frames (recording_id, idx, data) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare frame insert: %w", err)
	}
	defer stmt.Close()

	for _, frame := range frames {
		if _, err := stmt.ExecContext(ctx, recordingID, frame.Index, encodeValues(frame.Values)); err != nil {
			return fmt.Errorf("insert frame %d: %w", frame.Index, err)
		}
	}
	return tx.Commit()
}

// SetMeta appends a meta value. Keys may carry several values.
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, "INSERT INTO meta (key, value) VALUES (?, ?)", key, value)
		return err
	})
}

// Meta returns every value stored under key in insertion order.
func (s *Store) Meta(ctx context.Context, key string) ([]string, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, "SELECT value FROM meta WHERE key = ? ORDER BY id", key)
	if err != nil {
		return nil, fmt.Errorf("query meta %q: %w", key, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan meta: %w", err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// RecordingCount returns the number of recordings in the store.
func (s *Store) RecordingCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ensureContext(ctx), "SELECT COUNT(1) FROM recordings").Scan(&n); err != nil {
		return 0, fmt.Errorf("count recordings: %w", err)
	}
	return n, nil
}

// Recording loads the first recording of the store as a Source.
func (s *Store) Recording(ctx context.Context) (*Recording, error) {
	ctx = ensureContext(ctx)
	rec := &Recording{store: s}
	var started, ended sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT id, sampling_rate, description, started_at, ended_at FROM recordings ORDER BY id LIMIT 1",
	).Scan(&rec.id, &rec.rate, &rec.description, &started, &ended)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store %s has no recordings", s.path)
	}
	if err != nil {
		return nil, fmt.Errorf("load recording: %w", err)
	}
	rec.start = parseTime(started)
	rec.end = parseTime(ended)

	rows, err := s.db.QueryContext(ctx,
		"SELECT name, unit, comment FROM channels WHERE recording_id = ? ORDER BY idx", rec.id)
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ch Channel
		if err := rows.Scan(&ch.Name, &ch.Unit, &ch.Comment); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		rec.channels = append(rec.channels, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rec, nil
}

// Recording is one recording of a Store. It implements Source.
type Recording struct {
	store       *Store
	id          int64
	rate        float64
	description string
	start       time.Time
	end         time.Time
	channels    []Channel
}

// ID returns the recording row id.
func (r *Recording) ID() int64 { return r.id }

// Description returns the free-form recording description.
func (r *Recording) Description() string { return r.description }

// Channels returns the channel metadata in lead order.
func (r *Recording) Channels() []Channel { return append([]Channel(nil), r.channels...) }

// Leads returns the channel names in lead order.
func (r *Recording) Leads() []string {
	out := make([]string, len(r.channels))
	for i, ch := range r.channels {
		out[i] = ch.Name
	}
	return out
}

// SamplingRate returns samples per second.
func (r *Recording) SamplingRate() float64 { return r.rate }

// FrameCount returns the number of stored frames.
func (r *Recording) FrameCount(ctx context.Context) (int64, error) {
	var n int64
	err := r.store.db.QueryRowContext(ensureContext(ctx),
		"SELECT COUNT(1) FROM frames WHERE recording_id = ?", r.id).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count frames: %w", err)
	}
	return n, nil
}

// Duration is the recorded span derived from the frame count.
func (r *Recording) Duration(ctx context.Context) (time.Duration, error) {
	n, err := r.FrameCount(ctx)
	if err != nil {
		return 0, err
	}
	return time.Duration(float64(n) / r.rate * float64(time.Second)), nil
}

// Frames opens a cursor over the recording's frames.
func (r *Recording) Frames(ctx context.Context) (FrameReader, error) {
	rows, err := r.store.db.QueryContext(ensureContext(ctx),
		"SELECT idx, data FROM frames WHERE recording_id = ? ORDER BY idx", r.id)
	if err != nil {
		return nil, fmt.Errorf("query frames: %w", err)
	}
	return &rowReader{rows: rows, leads: len(r.channels)}, nil
}

type rowReader struct {
	rows  *sql.Rows
	leads int
	done  bool
}

func (rr *rowReader) Next() (Frame, error) {
	if rr.done {
		return Frame{}, io.EOF
	}
	if !rr.rows.Next() {
		rr.done = true
		if err := rr.rows.Err(); err != nil {
			return Frame{}, fmt.Errorf("read frames: %w", err)
		}
		return Frame{}, io.EOF
	}
	var (
		idx  int64
		data []byte
	)
	if err := rr.rows.Scan(&idx, &data); err != nil {
		return Frame{}, fmt.Errorf("scan frame: %w", err)
	}
	values, err := decodeValues(data, rr.leads)
	if err != nil {
		return Frame{}, fmt.Errorf("frame %d: %w", idx, err)
	}
	return Frame{Index: idx, Values: values}, nil
}

func (rr *rowReader) Close() error {
	rr.done = true
	return rr.rows.Close()
}

func encodeValues(values []float64) []byte {
	buf := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

func decodeValues(data []byte, leads int) ([]float64, error) {
	if len(data) != 8*leads {
		return nil, fmt.Errorf("expected %d bytes for %d leads, got %d", 8*leads, leads, len(data))
	}
	values := make([]float64, leads)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return values, nil
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(v sql.NullString) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return time.Time{}
	}
	return t
}
