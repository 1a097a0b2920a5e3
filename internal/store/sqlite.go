package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/enerdoc/facture-cli/internal/model"
	"github.com/enerdoc/facture-cli/internal/resilience"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	stages     TEXT,
	counts     TEXT,
	error      TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS records (
	id            TEXT PRIMARY KEY,
	run_id        TEXT NOT NULL REFERENCES runs(id),
	source_file   TEXT NOT NULL,
	reference_key TEXT,
	state         TEXT NOT NULL,
	record        TEXT NOT NULL,
	journal       TEXT NOT NULL,
	superseded_by TEXT,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS assist_cache (
	key        TEXT PRIMARY KEY,
	reply      TEXT NOT NULL,
	cached_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS dead_letter_queue (
	id             TEXT PRIMARY KEY,
	source_file    TEXT NOT NULL,
	supplier       TEXT,
	error          TEXT NOT NULL,
	error_type     TEXT NOT NULL DEFAULT 'transient',
	failed_stage   TEXT,
	retry_count    INTEGER NOT NULL DEFAULT 0,
	max_retries    INTEGER NOT NULL DEFAULT 3,
	next_retry_at  DATETIME NOT NULL,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	last_failed_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_records_run_id ON records(run_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_records_run_source ON records(run_id, source_file);
CREATE INDEX IF NOT EXISTS idx_records_reference_key ON records(reference_key);
CREATE INDEX IF NOT EXISTS idx_records_state ON records(state);
CREATE INDEX IF NOT EXISTS idx_assist_cache_expires_at ON assist_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_dlq_error_type ON dead_letter_queue(error_type);
CREATE INDEX IF NOT EXISTS idx_dlq_next_retry ON dead_letter_queue(next_retry_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, source string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, source, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, source, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Source:    source,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FinishRun(ctx context.Context, run *model.Run) error {
	stagesJSON, err := json.Marshal(run.Stages)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal stages")
	}
	countsJSON, err := json.Marshal(run.Counts)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal counts")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, stages = ?, counts = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(run.Status), string(stagesJSON), string(countsJSON), run.Error, time.Now().UTC(), run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", run.ID)
	}
	return checkRowsAffected(res, "run", run.ID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, status, stages, counts, error, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, source, status, stages, counts, error, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, filter.Source)
	}
	if !filter.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since.UTC())
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) SaveRecords(ctx context.Context, records []StoredRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save records")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records (id, run_id, source_file, reference_key, state, record, journal, superseded_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, source_file) DO UPDATE SET
		   reference_key = excluded.reference_key,
		   state         = excluded.state,
		   record        = excluded.record,
		   journal       = excluded.journal,
		   superseded_by = excluded.superseded_by`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert record")
	}
	defer stmt.Close() //nolint:errcheck

	for i := range records {
		rec := &records[i]
		if rec.ID == "" {
			rec.ID = uuid.New().String()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now().UTC()
		}

		recordJSON, err := json.Marshal(rec.Record)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal record")
		}
		journalJSON, err := json.Marshal(rec.Journal)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal journal")
		}

		if _, err := stmt.ExecContext(ctx,
			rec.ID, rec.RunID, rec.Journal.SourceFile, rec.ReferenceKey, string(rec.State),
			string(recordJSON), string(journalJSON), rec.SupersededBy, rec.CreatedAt,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert record %s", rec.Journal.SourceFile)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit save records")
}

func (s *SQLiteStore) ListRecords(ctx context.Context, filter RecordFilter) ([]StoredRecord, error) {
	query := `SELECT id, run_id, reference_key, state, record, journal, superseded_by, created_at
	          FROM records WHERE 1=1`
	var args []any

	if filter.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, filter.RunID)
	}
	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, string(filter.State))
	}
	if filter.ReferenceKey != "" {
		query += ` AND reference_key = ?`
		args = append(args, filter.ReferenceKey)
	}
	query += ` ORDER BY reference_key, created_at`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list records")
	}
	defer rows.Close()

	var out []StoredRecord
	for rows.Next() {
		var sr StoredRecord
		var refKey, supersededBy sql.NullString
		var recordJSON, journalJSON string

		if err := rows.Scan(&sr.ID, &sr.RunID, &refKey, &sr.State,
			&recordJSON, &journalJSON, &supersededBy, &sr.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		sr.ReferenceKey = refKey.String
		sr.SupersededBy = supersededBy.String
		if err := json.Unmarshal([]byte(recordJSON), &sr.Record); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal record")
		}
		if err := json.Unmarshal([]byte(journalJSON), &sr.Journal); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal journal")
		}
		out = append(out, sr)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list records iterate")
}

func (s *SQLiteStore) GetAssistReply(ctx context.Context, key string) ([]byte, error) {
	var reply string
	err := s.db.QueryRowContext(ctx,
		`SELECT reply FROM assist_cache WHERE key = ? AND expires_at > ?`,
		key, time.Now().UTC(),
	).Scan(&reply)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get assist reply")
	}
	return []byte(reply), nil
}

func (s *SQLiteStore) SetAssistReply(ctx context.Context, key string, reply []byte, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO assist_cache (key, reply, cached_at, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET reply = excluded.reply, cached_at = excluded.cached_at, expires_at = excluded.expires_at`,
		key, string(reply), now, now.Add(ttl),
	)
	return eris.Wrap(err, "sqlite: set assist reply")
}

func (s *SQLiteStore) DeleteExpiredAssistReplies(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM assist_cache WHERE expires_at <= ?`, time.Now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired assist replies")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	if entry.LastFailedAt.IsZero() {
		entry.LastFailedAt = now
	}
	if entry.NextRetryAt.IsZero() {
		entry.NextRetryAt = now
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dead_letter_queue
		 (id, source_file, supplier, error, error_type, failed_stage, retry_count, max_retries, next_retry_at, created_at, last_failed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   error = excluded.error, error_type = excluded.error_type, failed_stage = excluded.failed_stage,
		   retry_count = excluded.retry_count, next_retry_at = excluded.next_retry_at, last_failed_at = excluded.last_failed_at`,
		entry.ID, entry.SourceFile, entry.Supplier, entry.Error, entry.ErrorType,
		entry.FailedStage, entry.RetryCount, entry.MaxRetries,
		entry.NextRetryAt.UTC(), entry.CreatedAt.UTC(), entry.LastFailedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: enqueue dlq")
}

func (s *SQLiteStore) DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	query := `SELECT id, source_file, supplier, error, error_type, failed_stage, retry_count, max_retries, next_retry_at, created_at, last_failed_at
	          FROM dead_letter_queue
	          WHERE next_retry_at <= ? AND retry_count < max_retries`
	args := []any{time.Now().UTC()}

	if filter.ErrorType != "" {
		query += ` AND error_type = ?`
		args = append(args, filter.ErrorType)
	}
	if filter.FailedStage != "" {
		query += ` AND failed_stage = ?`
		args = append(args, filter.FailedStage)
	}
	query += ` ORDER BY next_retry_at ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: dequeue dlq")
	}
	defer rows.Close()

	var entries []resilience.DLQEntry
	for rows.Next() {
		var e resilience.DLQEntry
		var supplier, failedStage sql.NullString
		if err := rows.Scan(&e.ID, &e.SourceFile, &supplier, &e.Error, &e.ErrorType,
			&failedStage, &e.RetryCount, &e.MaxRetries,
			&e.NextRetryAt, &e.CreatedAt, &e.LastFailedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dlq entry")
		}
		e.Supplier = supplier.String
		e.FailedStage = failedStage.String
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: dequeue dlq iterate")
}

func (s *SQLiteStore) IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE dead_letter_queue
		 SET retry_count = retry_count + 1, next_retry_at = ?, error = ?, last_failed_at = ?
		 WHERE id = ?`,
		nextRetryAt.UTC(), lastErr, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: increment dlq retry %s", id)
	}
	return checkRowsAffected(res, "dlq_entry", id)
}

func (s *SQLiteStore) RemoveDLQ(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM dead_letter_queue WHERE id = ?`, id)
	return eris.Wrap(err, "sqlite: remove dlq")
}

func (s *SQLiteStore) CountDLQ(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dead_letter_queue`).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count dlq")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var stagesJSON, countsJSON, runErr sql.NullString

	err := row.Scan(&r.ID, &r.Source, &r.Status, &stagesJSON, &countsJSON, &runErr, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if stagesJSON.Valid && stagesJSON.String != "" && stagesJSON.String != "null" {
		if err := json.Unmarshal([]byte(stagesJSON.String), &r.Stages); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal stages")
		}
	}
	if countsJSON.Valid && countsJSON.String != "" && countsJSON.String != "null" {
		r.Counts = &model.RunCounts{}
		if err := json.Unmarshal([]byte(countsJSON.String), r.Counts); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal counts")
		}
	}
	r.Error = runErr.String
	return &r, nil
}
