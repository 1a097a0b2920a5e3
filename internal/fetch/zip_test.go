package fetch

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestZIP(t *testing.T, zipPath string, files map[string]string) {
	t.Helper()
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	w := zip.NewWriter(f)
	for name, content := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}

func TestExtractZIP_MultiFile(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "drop.zip")
	createTestZIP(t, zipPath, map[string]string{
		"facture_1.pdf": "content one",
		"facture_2.pdf": "content two",
		"index.csv":     "a,b,c",
	})

	destDir := t.TempDir()
	extracted, err := ExtractZIP(zipPath, destDir)
	require.NoError(t, err)
	assert.Len(t, extracted, 3)

	data, err := os.ReadFile(filepath.Join(destDir, "facture_1.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "content one", string(data))
}

func TestExtractZIPFile_Specific(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "drop.zip")
	createTestZIP(t, zipPath, map[string]string{
		"a.pdf": "aaa",
		"b.pdf": "bbb",
	})

	destDir := t.TempDir()
	path, err := ExtractZIPFile(zipPath, "b.pdf", destDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(destDir, "b.pdf"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "bbb", string(data))
}

func TestExtractZIPFile_NotFound(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "drop.zip")
	createTestZIP(t, zipPath, map[string]string{"a.pdf": "aaa"})

	_, err := ExtractZIPFile(zipPath, "missing.pdf", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestExtractZIP_ZipSlipPrevention(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "malicious.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)

	w := zip.NewWriter(f)
	fw, err := w.Create("../../../etc/passwd")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("malicious")) //nolint:errcheck
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	_, err = ExtractZIP(zipPath, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zip slip")
}

func TestExtractZIP_WithSubdirectory(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "nested.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)

	w := zip.NewWriter(f)
	_, err = w.Create("2025-10/")
	require.NoError(t, err)
	fw, err := w.Create("2025-10/facture.pdf")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("nested content")) //nolint:errcheck
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	destDir := t.TempDir()
	extracted, err := ExtractZIP(zipPath, destDir)
	require.NoError(t, err)
	require.Len(t, extracted, 1)
	assert.Equal(t, filepath.Join(destDir, "2025-10", "facture.pdf"), extracted[0])
}

func TestExtractZIP_BadArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not_a_zip.zip")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o644))

	_, err := ExtractZIP(path, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open archive")
}
