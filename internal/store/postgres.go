package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/enerdoc/facture-cli/internal/db"
	"github.com/enerdoc/facture-cli/internal/model"
	"github.com/enerdoc/facture-cli/internal/resilience"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_run":            `INSERT INTO runs (id, source, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
	"update_run_status":     `UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
	"finish_run":            `UPDATE runs SET status = $1, stages = $2, counts = $3, error = $4, updated_at = $5 WHERE id = $6`,
	"get_run":               `SELECT id, source, status, stages, counts, error, created_at, updated_at FROM runs WHERE id = $1`,
	"get_assist_reply":      `SELECT reply FROM assist_cache WHERE key = $1 AND expires_at > now()`,
	"set_assist_reply":      `INSERT INTO assist_cache (key, reply, cached_at, expires_at) VALUES ($1, $2, $3, $4) ON CONFLICT (key) DO UPDATE SET reply = $2, cached_at = $3, expires_at = $4`,
	"delete_expired_assist": `DELETE FROM assist_cache WHERE expires_at <= now()`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for use by subsystems
// that need direct query access (e.g., monitoring snapshots).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	source     TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	stages     JSONB,
	counts     JSONB,
	error      TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS records (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id        TEXT NOT NULL REFERENCES runs(id),
	source_file   TEXT NOT NULL,
	reference_key TEXT,
	state         TEXT NOT NULL,
	record        JSONB NOT NULL,
	journal       JSONB NOT NULL,
	superseded_by TEXT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS assist_cache (
	key        TEXT PRIMARY KEY,
	reply      JSONB NOT NULL,
	cached_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS dead_letter_queue (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	source_file    TEXT NOT NULL,
	supplier       TEXT,
	error          TEXT NOT NULL,
	error_type     TEXT NOT NULL DEFAULT 'transient',
	failed_stage   TEXT,
	retry_count    INTEGER NOT NULL DEFAULT 0,
	max_retries    INTEGER NOT NULL DEFAULT 3,
	next_retry_at  TIMESTAMPTZ NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_failed_at TIMESTAMPTZ NOT NULL DEFAULT now()
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

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, source string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, source, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, source, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Source:    source,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, run *model.Run) error {
	stagesJSON, err := json.Marshal(run.Stages)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal stages")
	}
	countsJSON, err := json.Marshal(run.Counts)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal counts")
	}

	run.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, stages = $2, counts = $3, error = $4, updated_at = $5 WHERE id = $6`,
		string(run.Status), stagesJSON, countsJSON, nullIfEmpty(run.Error), run.UpdatedAt, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", run.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", run.ID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, source, status, stages, counts, error, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	)
	r, err := scanPGRun(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, source, status, stages, counts, error, created_at, updated_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Source != "" {
		query += fmt.Sprintf(` AND source = $%d`, argIdx)
		args = append(args, filter.Source)
		argIdx++
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(` AND created_at >= $%d`, argIdx)
		args = append(args, filter.Since)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPGRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// recordColumns is the COPY column order used by SaveRecords.
var recordColumns = []string{"id", "run_id", "source_file", "reference_key", "state", "record", "journal", "superseded_by", "created_at"}

func (s *PostgresStore) SaveRecords(ctx context.Context, records []StoredRecord) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(records))
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
			return eris.Wrap(err, "postgres: marshal record")
		}
		journalJSON, err := json.Marshal(rec.Journal)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal journal")
		}

		rows = append(rows, []any{
			rec.ID, rec.RunID, rec.Journal.SourceFile, nullIfEmpty(rec.ReferenceKey), string(rec.State),
			recordJSON, journalJSON, nullIfEmpty(rec.SupersededBy), rec.CreatedAt,
		})
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "records",
		Columns:      recordColumns,
		ConflictKeys: []string{"run_id", "source_file"},
		UpdateCols:   []string{"reference_key", "state", "record", "journal", "superseded_by"},
	}, rows)
	return eris.Wrap(err, "postgres: save records")
}

func (s *PostgresStore) ListRecords(ctx context.Context, filter RecordFilter) ([]StoredRecord, error) {
	query := `SELECT id, run_id, reference_key, state, record, journal, superseded_by, created_at
	          FROM records WHERE true`
	args := []any{}
	argIdx := 1

	if filter.RunID != "" {
		query += fmt.Sprintf(` AND run_id = $%d`, argIdx)
		args = append(args, filter.RunID)
		argIdx++
	}
	if filter.State != "" {
		query += fmt.Sprintf(` AND state = $%d`, argIdx)
		args = append(args, string(filter.State))
		argIdx++
	}
	if filter.ReferenceKey != "" {
		query += fmt.Sprintf(` AND reference_key = $%d`, argIdx)
		args = append(args, filter.ReferenceKey)
		argIdx++
	}
	query += ` ORDER BY reference_key, created_at`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argIdx)
		args = append(args, filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list records")
	}
	defer rows.Close()

	var out []StoredRecord
	for rows.Next() {
		var sr StoredRecord
		var refKey, supersededBy *string
		var recordJSON, journalJSON []byte

		if err := rows.Scan(&sr.ID, &sr.RunID, &refKey, &sr.State,
			&recordJSON, &journalJSON, &supersededBy, &sr.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		if refKey != nil {
			sr.ReferenceKey = *refKey
		}
		if supersededBy != nil {
			sr.SupersededBy = *supersededBy
		}
		if err := json.Unmarshal(recordJSON, &sr.Record); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal record")
		}
		if err := json.Unmarshal(journalJSON, &sr.Journal); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal journal")
		}
		out = append(out, sr)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list records iterate")
}

func (s *PostgresStore) GetAssistReply(ctx context.Context, key string) ([]byte, error) {
	var reply []byte
	err := s.pool.QueryRow(ctx,
		`SELECT reply FROM assist_cache WHERE key = $1 AND expires_at > now()`,
		key,
	).Scan(&reply)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get assist reply")
	}
	return reply, nil
}

func (s *PostgresStore) SetAssistReply(ctx context.Context, key string, reply []byte, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO assist_cache (key, reply, cached_at, expires_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (key) DO UPDATE SET reply = $2, cached_at = $3, expires_at = $4`,
		key, reply, now, now.Add(ttl),
	)
	return eris.Wrap(err, "postgres: set assist reply")
}

func (s *PostgresStore) DeleteExpiredAssistReplies(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM assist_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired assist replies")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error {
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

	_, err := s.pool.Exec(ctx,
		`INSERT INTO dead_letter_queue
		 (id, source_file, supplier, error, error_type, failed_stage, retry_count, max_retries, next_retry_at, created_at, last_failed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO UPDATE SET
		   error = $4, error_type = $5, failed_stage = $6, retry_count = $7,
		   next_retry_at = $9, last_failed_at = $11`,
		entry.ID, entry.SourceFile, nullIfEmpty(entry.Supplier), entry.Error, entry.ErrorType,
		nullIfEmpty(entry.FailedStage), entry.RetryCount, entry.MaxRetries,
		entry.NextRetryAt, entry.CreatedAt, entry.LastFailedAt,
	)
	return eris.Wrap(err, "postgres: enqueue dlq")
}

func (s *PostgresStore) DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	query := `SELECT id, source_file, supplier, error, error_type, failed_stage, retry_count, max_retries, next_retry_at, created_at, last_failed_at
	          FROM dead_letter_queue
	          WHERE next_retry_at <= now() AND retry_count < max_retries`
	args := []any{}
	argIdx := 1

	if filter.ErrorType != "" {
		query += fmt.Sprintf(` AND error_type = $%d`, argIdx)
		args = append(args, filter.ErrorType)
		argIdx++
	}
	if filter.FailedStage != "" {
		query += fmt.Sprintf(` AND failed_stage = $%d`, argIdx)
		args = append(args, filter.FailedStage)
		argIdx++
	}

	query += ` ORDER BY next_retry_at ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: dequeue dlq")
	}
	defer rows.Close()

	var entries []resilience.DLQEntry
	for rows.Next() {
		var e resilience.DLQEntry
		var supplier, failedStage *string
		if err := rows.Scan(&e.ID, &e.SourceFile, &supplier, &e.Error, &e.ErrorType,
			&failedStage, &e.RetryCount, &e.MaxRetries,
			&e.NextRetryAt, &e.CreatedAt, &e.LastFailedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan dlq entry")
		}
		if supplier != nil {
			e.Supplier = *supplier
		}
		if failedStage != nil {
			e.FailedStage = *failedStage
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: dequeue dlq iterate")
}

func (s *PostgresStore) IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE dead_letter_queue
		 SET retry_count = retry_count + 1, next_retry_at = $1, error = $2, last_failed_at = now()
		 WHERE id = $3`,
		nextRetryAt, lastErr, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: increment dlq retry %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("dlq_entry not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) RemoveDLQ(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM dead_letter_queue WHERE id = $1`, id)
	return eris.Wrap(err, "postgres: remove dlq")
}

func (s *PostgresStore) CountDLQ(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM dead_letter_queue`).Scan(&count)
	return count, eris.Wrap(err, "postgres: count dlq")
}

func scanPGRun(row scannable) (*model.Run, error) {
	var r model.Run
	var stagesJSON, countsJSON []byte
	var errMsg *string

	if err := row.Scan(&r.ID, &r.Source, &r.Status, &stagesJSON, &countsJSON, &errMsg, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}

	if len(stagesJSON) > 0 && string(stagesJSON) != "null" {
		if err := json.Unmarshal(stagesJSON, &r.Stages); err != nil {
			return nil, eris.Wrap(err, "unmarshal stages")
		}
	}
	if len(countsJSON) > 0 && string(countsJSON) != "null" {
		r.Counts = &model.RunCounts{}
		if err := json.Unmarshal(countsJSON, r.Counts); err != nil {
			return nil, eris.Wrap(err, "unmarshal counts")
		}
	}
	if errMsg != nil {
		r.Error = *errMsg
	}
	return &r, nil
}

// nullIfEmpty maps empty strings to SQL NULL for nullable text columns.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
