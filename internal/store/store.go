package store

import (
	"context"
	"time"

	"github.com/enerdoc/facture-cli/internal/model"
	"github.com/enerdoc/facture-cli/internal/resilience"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Source string          `json:"source,omitempty"`
	Since  time.Time       `json:"since,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// RecordFilter specifies criteria for listing stored records.
type RecordFilter struct {
	RunID        string            `json:"run_id,omitempty"`
	State        model.RecordState `json:"state,omitempty"`
	ReferenceKey string            `json:"reference_key,omitempty"`
	Limit        int               `json:"limit,omitempty"`
}

// StoredRecord pairs an extracted record with its journal and the state
// the dedup index assigned it. Superseded records stay queryable for
// audit; exports read kept ones.
type StoredRecord struct {
	ID           string                    `json:"id"`
	RunID        string                    `json:"run_id"`
	ReferenceKey string                    `json:"reference_key,omitempty"`
	State        model.RecordState         `json:"state"`
	Record       model.EnergyInvoiceRecord `json:"record"`
	Journal      model.ExtractionJournal   `json:"journal"`
	SupersededBy string                    `json:"superseded_by,omitempty"`
	CreatedAt    time.Time                 `json:"created_at"`
}

// Store defines the persistence interface for the extraction pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, source string) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	FinishRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Records
	SaveRecords(ctx context.Context, records []StoredRecord) error
	ListRecords(ctx context.Context, filter RecordFilter) ([]StoredRecord, error)

	// Assist reply cache
	GetAssistReply(ctx context.Context, key string) ([]byte, error)
	SetAssistReply(ctx context.Context, key string, reply []byte, ttl time.Duration) error
	DeleteExpiredAssistReplies(ctx context.Context) (int, error)

	// Dead letter queue
	EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error
	DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error)
	IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error
	RemoveDLQ(ctx context.Context, id string) error
	CountDLQ(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
