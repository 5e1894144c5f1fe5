package state

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/tmplsync/pkg/core"
)

// CreateSyncRun starts a new fan-out run for a template.
func (s *SQLiteStore) CreateSyncRun(template string, trigger core.SyncTrigger) (*core.SyncRun, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	run := &core.SyncRun{
		ID:        generateID(),
		Template:  template,
		Trigger:   trigger,
		Status:    core.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	s.logger.Debug("creating sync run", slog.String("id", run.ID), slog.String("template", template))

	_, err := s.db.ExecContext(ctx(),
		`INSERT INTO sync_runs (id, template, triggered_by, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Template, string(run.Trigger), string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync run: %w", err)
	}

	return run, nil
}

// GetSyncRun retrieves a run by ID.
func (s *SQLiteStore) GetSyncRun(id string) (*core.SyncRun, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	row := s.db.QueryRowContext(ctx(),
		`SELECT id, template, triggered_by, status, started_at, completed_at, error FROM sync_runs WHERE id = ?`,
		id,
	)
	run, err := scanSyncRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sync run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync run: %w", err)
	}
	return run, nil
}

// CompleteSyncRun marks a run as finished with the given status.
func (s *SQLiteStore) CompleteSyncRun(id string, status core.RunStatus, errMsg string) error {
	if s.db == nil {
		return errNotOpened
	}

	var errorPtr *string
	if errMsg != "" {
		errorPtr = &errMsg
	}

	result, err := s.db.ExecContext(ctx(),
		`UPDATE sync_runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(status), time.Now().UTC(), errorPtr, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete sync run: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("sync run not found: %s", id)
	}
	return nil
}

// ListSyncRuns returns the most recent runs first. An empty template lists
// runs for every template; limit <= 0 means no limit.
func (s *SQLiteStore) ListSyncRuns(template string, limit int) ([]*core.SyncRun, error) {
	if s.db == nil {
		return nil, errNotOpened
	}
	if limit <= 0 {
		limit = -1
	}

	query := `SELECT id, template, triggered_by, status, started_at, completed_at, error FROM sync_runs`
	args := []any{}
	if template != "" {
		query += ` WHERE template = ?`
		args = append(args, template)
	}
	query += ` ORDER BY started_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx(), query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*core.SyncRun
	for rows.Next() {
		run, err := scanSyncRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RecordImplementationSync stores the outcome for one implementation.
func (s *SQLiteStore) RecordImplementationSync(result *core.ImplementationSync) error {
	if s.db == nil {
		return errNotOpened
	}

	syncedAt := result.SyncedAt
	if syncedAt.IsZero() {
		syncedAt = time.Now().UTC()
	}
	var errorPtr *string
	if result.Error != "" {
		errorPtr = &result.Error
	}

	_, err := s.db.ExecContext(ctx(),
		`INSERT OR REPLACE INTO implementation_syncs
		 (run_id, implementation, status, content_hash, error, duration_ms, synced_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		result.RunID, result.Implementation, string(result.Status), result.ContentHash,
		errorPtr, result.DurationMS, syncedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record sync of %s: %w", result.Implementation, err)
	}
	return nil
}

// GetImplementationSyncs returns every result of a run ordered by name.
func (s *SQLiteStore) GetImplementationSyncs(runID string) ([]*core.ImplementationSync, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	rows, err := s.db.QueryContext(ctx(),
		`SELECT run_id, implementation, status, content_hash, error, duration_ms, synced_at
		 FROM implementation_syncs WHERE run_id = ? ORDER BY implementation`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get implementation syncs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*core.ImplementationSync
	for rows.Next() {
		r := &core.ImplementationSync{}
		var status string
		var errMsg sql.NullString
		if err := rows.Scan(&r.RunID, &r.Implementation, &status, &r.ContentHash,
			&errMsg, &r.DurationMS, &r.SyncedAt); err != nil {
			return nil, fmt.Errorf("failed to scan implementation sync: %w", err)
		}
		r.Status = core.ImplementationSyncStatus(status)
		if errMsg.Valid {
			r.Error = errMsg.String
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSyncRun(row rowScanner) (*core.SyncRun, error) {
	run := &core.SyncRun{}
	var trigger, status string
	var completedAt sql.NullTime
	var errMsg sql.NullString

	if err := row.Scan(&run.ID, &run.Template, &trigger, &status,
		&run.StartedAt, &completedAt, &errMsg); err != nil {
		return nil, err
	}

	run.Trigger = core.SyncTrigger(trigger)
	run.Status = core.RunStatus(status)
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	if errMsg.Valid {
		run.Error = errMsg.String
	}
	return run, nil
}
