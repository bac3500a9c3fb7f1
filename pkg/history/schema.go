package history

import (
	"database/sql"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	SchemaVersion = 1

	createTablesSQL = `
	CREATE TABLE IF NOT EXISTS schema_versions (
		version     INTEGER PRIMARY KEY,
		applied_at  TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS deliveries (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		sample_time   INTEGER NOT NULL,
		device_id     TEXT NOT NULL,
		battery_level REAL NOT NULL,
		battery_state TEXT NOT NULL,
		low_power     INTEGER NOT NULL CHECK (low_power IN (0, 1)),
		success       INTEGER NOT NULL CHECK (success IN (0, 1)),
		error_kind    TEXT NOT NULL DEFAULT '',
		status_code   INTEGER NOT NULL DEFAULT 0,
		error         TEXT NOT NULL DEFAULT '',
		duration_ms   INTEGER NOT NULL,
		recorded_at   INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS deliveries_sample_time ON deliveries (sample_time);`

	insertDeliverySQL = `
	INSERT INTO deliveries (
		sample_time, device_id,
		battery_level, battery_state, low_power,
		success, error_kind, status_code, error,
		duration_ms, recorded_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectRecentSQL = `
	SELECT id, sample_time, device_id,
		battery_level, battery_state, low_power,
		success, error_kind, status_code, error,
		duration_ms, recorded_at
	FROM deliveries
	ORDER BY id DESC
	LIMIT ?`

	selectCountsSQL = `
	SELECT COUNT(*), COALESCE(SUM(success), 0) FROM deliveries`

	pruneSQL = `
	DELETE FROM deliveries WHERE id <= (
		SELECT id FROM deliveries ORDER BY id DESC LIMIT 1 OFFSET ?
	)`
)

// ensureSchema creates the tables on a fresh database and refuses to open
// one written by a different schema version.
func ensureSchema(db *sql.DB) error {
	var version int
	err := db.QueryRow("SELECT MAX(version) FROM schema_versions").Scan(&version)
	switch {
	case err == nil && version == SchemaVersion:
		return nil
	case err == nil && version != 0:
		return pkgerrors.Errorf("history database has schema version %d, want %d", version, SchemaVersion)
	}

	logrus.WithField("version", SchemaVersion).Debug("creating history schema")

	tx, err := db.Begin()
	if err != nil {
		return pkgerrors.Wrap(err, "failed to begin schema transaction")
	}
	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				logrus.Debugf("failed to roll back schema transaction: %v", err)
			}
		}
	}()

	if _, err := tx.Exec(createTablesSQL); err != nil {
		return pkgerrors.Wrap(err, "failed to create history tables")
	}
	if _, err := tx.Exec(
		"INSERT OR REPLACE INTO schema_versions (version, applied_at) VALUES (?, ?)",
		SchemaVersion, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return pkgerrors.Wrap(err, "failed to record schema version")
	}
	if err := tx.Commit(); err != nil {
		return pkgerrors.Wrap(err, "failed to commit history schema")
	}
	committed = true
	return nil
}
