package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enerdoc/facture-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testRecord(runID, sourceFile, refKey string) StoredRecord {
	journal := model.NewJournal(sourceFile)
	journal.ReferenceKey = refKey
	journal.Note("energy_reference", 0.95, "matched PDL pattern")

	return StoredRecord{
		RunID:        runID,
		ReferenceKey: refKey,
		State:        model.StateKept,
		Record: model.EnergyInvoiceRecord{
			Supplier:        model.StringPtr("EDF"),
			SiteName:        model.StringPtr("Mairie de Vannes"),
			EnergyReference: model.StringPtr(refKey),
			PostalCode:      model.StringPtr("56000"),
			City:            model.StringPtr("VANNES"),
		},
		Journal: *journal,
	}
}

// --- Runs ---

func TestSQLite_CreateRun_And_GetRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "inbox")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)
	assert.Equal(t, "inbox", run.Source)

	fetched, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, fetched.ID)
	assert.Equal(t, "inbox", fetched.Source)
}

func TestSQLite_GetRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetRun(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestSQLite_UpdateRunStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "inbox")
	require.NoError(t, err)

	err = st.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning)
	require.NoError(t, err)

	fetched, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusRunning, fetched.Status)
}

func TestSQLite_UpdateRunStatus_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.UpdateRunStatus(context.Background(), "nonexistent", model.RunStatusRunning)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestSQLite_FinishRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "inbox")
	require.NoError(t, err)

	run.Status = model.RunStatusComplete
	run.Stages = []model.StageResult{
		{Name: "ingest", Status: model.StageStatusComplete, Duration: 120},
		{Name: "extract", Status: model.StageStatusComplete, Duration: 4500},
	}
	run.Counts = &model.RunCounts{
		DocsTotal:    12,
		DocsRelevant: 10,
		DocsIgnored:  2,
		RecordsKept:  8,
	}
	require.NoError(t, st.FinishRun(ctx, run))

	fetched, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, fetched.Status)
	require.Len(t, fetched.Stages, 2)
	assert.Equal(t, "extract", fetched.Stages[1].Name)
	assert.Equal(t, int64(4500), fetched.Stages[1].Duration)
	require.NotNil(t, fetched.Counts)
	assert.Equal(t, 10, fetched.Counts.DocsRelevant)
	assert.Equal(t, 8, fetched.Counts.RecordsKept)
	assert.Empty(t, fetched.Error)
}

func TestSQLite_FinishRun_Failed(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "inbox")
	require.NoError(t, err)

	run.Status = model.RunStatusFailed
	run.Error = "ocr: pdftotext not found in PATH"
	require.NoError(t, st.FinishRun(ctx, run))

	fetched, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, fetched.Status)
	assert.Equal(t, "ocr: pdftotext not found in PATH", fetched.Error)
}

func TestSQLite_ListRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.CreateRun(ctx, "inbox")
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, "ftp://depot.fournisseur.fr/factures")
	require.NoError(t, err)

	runs, err := st.ListRuns(ctx, RunFilter{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestSQLite_ListRuns_FilterByStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "inbox")
	require.NoError(t, err)
	require.NoError(t, st.UpdateRunStatus(ctx, run.ID, model.RunStatusComplete))

	// Create another run that stays queued.
	_, err = st.CreateRun(ctx, "inbox")
	require.NoError(t, err)

	runs, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete, Limit: 10})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
}

func TestSQLite_ListRuns_FilterBySource(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.CreateRun(ctx, "inbox")
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, "https://portail.engie.fr/factures.zip")
	require.NoError(t, err)

	runs, err := st.ListRuns(ctx, RunFilter{Source: "inbox", Limit: 10})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "inbox", runs[0].Source)
}

// --- Records ---

func TestSQLite_SaveRecords_And_ListRecords(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "inbox")
	require.NoError(t, err)

	records := []StoredRecord{
		testRecord(run.ID, "inbox/facture_edf.pdf", "14552800125639"),
		testRecord(run.ID, "inbox/facture_engie.pdf", "30001442566100"),
	}
	require.NoError(t, st.SaveRecords(ctx, records))

	out, err := st.ListRecords(ctx, RecordFilter{RunID: run.ID})
	require.NoError(t, err)
	require.Len(t, out, 2)
	// Ordered by reference_key.
	assert.Equal(t, "14552800125639", out[0].ReferenceKey)
	assert.Equal(t, "30001442566100", out[1].ReferenceKey)
	require.NotNil(t, out[0].Record.Supplier)
	assert.Equal(t, "EDF", *out[0].Record.Supplier)
	assert.Equal(t, "inbox/facture_edf.pdf", out[0].Journal.SourceFile)
	assert.Equal(t, 0.95, out[0].Journal.Confidence("energy_reference"))
}

func TestSQLite_SaveRecords_UpsertSameSourceFile(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "inbox")
	require.NoError(t, err)

	rec := testRecord(run.ID, "inbox/facture_edf.pdf", "14552800125639")
	require.NoError(t, st.SaveRecords(ctx, []StoredRecord{rec}))

	// Re-saving the same source file within the same run replaces the row.
	rec2 := testRecord(run.ID, "inbox/facture_edf.pdf", "14552800125639")
	rec2.State = model.StateSuperseded
	rec2.SupersededBy = "inbox/facture_edf_v2.pdf"
	require.NoError(t, st.SaveRecords(ctx, []StoredRecord{rec2}))

	out, err := st.ListRecords(ctx, RecordFilter{RunID: run.ID})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, model.StateSuperseded, out[0].State)
	assert.Equal(t, "inbox/facture_edf_v2.pdf", out[0].SupersededBy)
}

func TestSQLite_ListRecords_FilterByState(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "inbox")
	require.NoError(t, err)

	kept := testRecord(run.ID, "inbox/a.pdf", "14552800125639")
	superseded := testRecord(run.ID, "inbox/b.pdf", "14552800125639")
	superseded.State = model.StateSuperseded
	superseded.SupersededBy = "inbox/a.pdf"
	require.NoError(t, st.SaveRecords(ctx, []StoredRecord{kept, superseded}))

	out, err := st.ListRecords(ctx, RecordFilter{RunID: run.ID, State: model.StateKept})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "inbox/a.pdf", out[0].Journal.SourceFile)
}

func TestSQLite_ListRecords_FilterByReferenceKey(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "inbox")
	require.NoError(t, err)

	require.NoError(t, st.SaveRecords(ctx, []StoredRecord{
		testRecord(run.ID, "inbox/a.pdf", "14552800125639"),
		testRecord(run.ID, "inbox/b.pdf", "30001442566100"),
	}))

	out, err := st.ListRecords(ctx, RecordFilter{ReferenceKey: "30001442566100"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "inbox/b.pdf", out[0].Journal.SourceFile)
}

func TestSQLite_SaveRecords_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)

	require.NoError(t, st.SaveRecords(context.Background(), nil))
}

func TestSQLite_SaveRecords_AssignsIDs(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "inbox")
	require.NoError(t, err)

	require.NoError(t, st.SaveRecords(ctx, []StoredRecord{
		testRecord(run.ID, "inbox/a.pdf", "14552800125639"),
	}))

	out, err := st.ListRecords(ctx, RecordFilter{RunID: run.ID})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.NotEmpty(t, out[0].ID)
	assert.False(t, out[0].CreatedAt.IsZero())
}

// --- Assist Cache ---

func TestSQLite_AssistCache_SetAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	reply := []byte(`{"supplier":"TotalEnergies","postal_code":"31000"}`)
	require.NoError(t, st.SetAssistReply(ctx, "key-abc", reply, 1*time.Hour))

	got, err := st.GetAssistReply(ctx, "key-abc")
	require.NoError(t, err)
	assert.Equal(t, reply, got)
}

func TestSQLite_AssistCache_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.GetAssistReply(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_AssistCache_Expired(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	// Set with already-expired TTL (-1 hour in the past).
	require.NoError(t, st.SetAssistReply(ctx, "expired-key", []byte(`{}`), -1*time.Hour))

	got, err := st.GetAssistReply(ctx, "expired-key")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_AssistCache_Overwrite(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetAssistReply(ctx, "key-ow", []byte(`{"v":1}`), 1*time.Hour))
	require.NoError(t, st.SetAssistReply(ctx, "key-ow", []byte(`{"v":2}`), 1*time.Hour))

	got, err := st.GetAssistReply(ctx, "key-ow")
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, string(got))
}

func TestSQLite_AssistCache_DeleteExpired(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetAssistReply(ctx, "stale", []byte(`{}`), -1*time.Hour))
	require.NoError(t, st.SetAssistReply(ctx, "fresh", []byte(`{}`), 1*time.Hour))

	deleted, err := st.DeleteExpiredAssistReplies(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	// Fresh entry should still be there.
	got, err := st.GetAssistReply(ctx, "fresh")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

// --- Migrate ---

func TestSQLite_Migrate_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)

	// Migrate was already called in newTestSQLiteStore; calling again should not error.
	require.NoError(t, st.Migrate(context.Background()))
}
