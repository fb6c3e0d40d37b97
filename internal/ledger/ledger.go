// Package ledger provides an append-only history of effect runs for auditing.
package ledger

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog/log"
)

// Run is one recorded effect execution.
type Run struct {
	ID        int64
	Effect    string
	Source    string
	User      string
	Outcome   string
	Took      time.Duration
	StartedAt time.Time
}

// Ledger provides append-only effect run logging
type Ledger struct {
	db *sql.DB
}

// New creates a new Ledger using the provided database connection
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// Record appends one effect run. Implements the engine's Recorder; failures
// are logged and swallowed so bookkeeping never disturbs an effect.
func (l *Ledger) Record(effect, source, user, outcome string, took time.Duration) {
	startedAt := time.Now().Add(-took).UTC().Unix()

	_, err := l.db.Exec(`
		INSERT INTO effect_runs (effect, source, user, outcome, took_ms, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, effect, source, user, outcome, took.Milliseconds(), startedAt)
	if err != nil {
		log.Warn().Err(err).Str("effect", effect).Msg("Failed to record effect run")
	}
}

// Recent returns the latest runs, newest first.
func (l *Ledger) Recent(limit int) ([]*Run, error) {
	rows, err := l.db.Query(`
		SELECT id, effect, source, user, outcome, took_ms, started_at
		FROM effect_runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var run Run
		var user sql.NullString
		var tookMs, startedAt int64

		if err := rows.Scan(&run.ID, &run.Effect, &run.Source, &user, &run.Outcome, &tookMs, &startedAt); err != nil {
			return nil, err
		}
		if user.Valid {
			run.User = user.String
		}
		run.Took = time.Duration(tookMs) * time.Millisecond
		run.StartedAt = time.Unix(startedAt, 0).UTC()
		runs = append(runs, &run)
	}

	return runs, rows.Err()
}

// DeleteOlderThan removes runs older than the retention window.
func (l *Ledger) DeleteOlderThan(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).Unix()
	result, err := l.db.Exec(`DELETE FROM effect_runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// RunCleanup periodically applies the retention policy until ctx is done.
func (l *Ledger) RunCleanup(ctx context.Context, interval time.Duration, retentionDays int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	retention := time.Duration(retentionDays) * 24 * time.Hour
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := l.DeleteOlderThan(retention)
			if err != nil {
				log.Warn().Err(err).Msg("Ledger cleanup failed")
				continue
			}
			if removed > 0 {
				log.Debug().Int64("removed", removed).Msg("Ledger cleanup done")
			}
		}
	}
}
