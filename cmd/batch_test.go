package main

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enerdoc/facture-cli/internal/model"
	"github.com/enerdoc/facture-cli/internal/pipeline"
	"github.com/enerdoc/facture-cli/internal/store"
)

func TestResolveSource_Directory(t *testing.T) {
	dir := t.TempDir()
	got, err := resolveSource(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, got)
}

func TestResolveSource_Zip(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "drop.zip")

	f, err := os.Create(zipPath)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	entry, err := w.Create("facture_edf.txt")
	require.NoError(t, err)
	_, err = entry.Write([]byte("EDF Facture\nPDL : 12345678901234"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	got, err := resolveSource(zipPath)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "drop"), got)
	assert.FileExists(t, filepath.Join(got, "facture_edf.txt"))
}

func TestResolveSource_PlainFileRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "facture.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF"), 0o644))

	_, err := resolveSource(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "neither a directory nor a ZIP")
}

func TestResolveSource_Missing(t *testing.T) {
	_, err := resolveSource("/nonexistent/path")
	require.Error(t, err)
}

func TestWriteBatchOutputs(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "out")

	ref := "12345678901234"
	res := &pipeline.RunResult{
		Run: &model.Run{ID: "test-run"},
		Records: []store.StoredRecord{{
			ID:           "rec-1",
			RunID:        "test-run",
			ReferenceKey: ref,
			State:        model.StateKept,
			Record:       model.EnergyInvoiceRecord{EnergyReference: &ref},
			Journal:      *model.NewJournal("facture_edf.txt"),
			CreatedAt:    time.Now().UTC(),
		}},
	}

	require.NoError(t, writeBatchOutputs(outDir, res))
	assert.FileExists(t, filepath.Join(outDir, "records_test-run.jsonl"))
	assert.FileExists(t, filepath.Join(outDir, "records_test-run.csv"))
	assert.FileExists(t, filepath.Join(outDir, "records_test-run.xlsx"))
}
