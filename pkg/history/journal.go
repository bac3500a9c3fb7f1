// Package history keeps a local SQLite journal of delivery attempts.
package history

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/devicedata/datacollector/pkg/collector"
	"github.com/devicedata/datacollector/pkg/powerinfo"
)

// DefaultMaxEntries bounds the journal size.
const DefaultMaxEntries = 10000

// Entry is a stored delivery attempt.
type Entry struct {
	ID           int64                  `json:"id"`
	SampleTime   time.Time              `json:"sampleTime"`
	DeviceID     string                 `json:"deviceId"`
	BatteryLevel float64                `json:"batteryLevel"`
	BatteryState powerinfo.BatteryState `json:"batteryState"`
	LowPower     bool                   `json:"isLowPowerMode"`
	Success      bool                   `json:"success"`
	ErrorKind    string                 `json:"errorKind,omitempty"`
	StatusCode   int                    `json:"statusCode,omitempty"`
	Error        string                 `json:"error,omitempty"`
	DurationMs   int64                  `json:"durationMs"`
	RecordedAt   time.Time              `json:"recordedAt"`
}

// Stats summarizes the journal.
type Stats struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
}

// Journal is a collector.Journal backed by SQLite.
type Journal struct {
	db         *sql.DB
	maxEntries int

	mu      sync.Mutex
	inserts int
}

var _ collector.Journal = (*Journal)(nil)

// Open opens or creates the journal at path. maxEntries <= 0 uses
// DefaultMaxEntries.
func Open(path string, maxEntries int) (*Journal, error) {
	if path == "" {
		return nil, pkgerrors.New("history path is empty")
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to create directory for %s", path)
	}

	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to open history database %s", path)
	}
	db.SetMaxOpenConns(1)

	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"path":          path,
		"schemaVersion": SchemaVersion,
		"maxEntries":    maxEntries,
	}).Info("history journal opened")

	return &Journal{db: db, maxEntries: maxEntries}, nil
}

// Record appends one delivery attempt and prunes old entries now and then.
func (j *Journal) Record(ctx context.Context, rec collector.DeliveryRecord) error {
	_, err := j.db.ExecContext(ctx, insertDeliverySQL,
		rec.SampleTime.UnixNano(),
		rec.DeviceID,
		rec.BatteryLevel,
		string(rec.BatteryState),
		boolToInt(rec.LowPower),
		boolToInt(rec.Success),
		rec.ErrorKind,
		rec.StatusCode,
		rec.Error,
		rec.Duration.Milliseconds(),
		time.Now().UnixNano(),
	)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to insert delivery")
	}

	j.mu.Lock()
	j.inserts++
	prune := j.inserts%100 == 0
	j.mu.Unlock()

	if prune {
		return j.prune(ctx)
	}
	return nil
}

func (j *Journal) prune(ctx context.Context) error {
	res, err := j.db.ExecContext(ctx, pruneSQL, j.maxEntries)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to prune history")
	}
	if n, _ := res.RowsAffected(); n > 0 {
		logrus.Debugf("pruned %d history entries", n)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, selectRecentSQL, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to query history")
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			e                    Entry
			sampleNs, recordedNs int64
			state                string
			lowPower, success    int
		)
		if err := rows.Scan(&e.ID, &sampleNs, &e.DeviceID,
			&e.BatteryLevel, &state, &lowPower,
			&success, &e.ErrorKind, &e.StatusCode, &e.Error,
			&e.DurationMs, &recordedNs); err != nil {
			return nil, pkgerrors.Wrap(err, "failed to scan history row")
		}
		e.SampleTime = time.Unix(0, sampleNs).UTC()
		e.RecordedAt = time.Unix(0, recordedNs).UTC()
		e.BatteryState = powerinfo.ParseBatteryState(state)
		e.LowPower = lowPower == 1
		e.Success = success == 1
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to read history rows")
	}
	return entries, nil
}

// Stats counts stored attempts.
func (j *Journal) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	if err := j.db.QueryRowContext(ctx, selectCountsSQL).Scan(&s.Total, &s.Succeeded); err != nil {
		return Stats{}, pkgerrors.Wrap(err, "failed to count history")
	}
	return s, nil
}

// Close checkpoints the WAL and closes the database.
func (j *Journal) Close() error {
	if _, err := j.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		logrus.Warnf("failed to checkpoint history WAL: %v", err)
	}
	if err := j.db.Close(); err != nil {
		return pkgerrors.Wrap(err, "failed to close history database")
	}
	logrus.Debug("history journal closed")
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
