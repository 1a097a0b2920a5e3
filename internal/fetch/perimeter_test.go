package fetch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePerimeterFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestReadPerimeter_CSV(t *testing.T) {
	path := writePerimeterFile(t, "perimetre.csv", []byte(
		"Site,Référence,Code postal,Commune\n"+
			"Mairie,12345678901234,75001,Paris\n"+
			"École Jules Ferry,98765432109876,75018,Paris\n"))

	entries, err := ReadPerimeter(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, PerimeterEntry{
		Site:       "Mairie",
		Reference:  "12345678901234",
		PostalCode: "75001",
		City:       "Paris",
	}, entries[0])
	assert.Equal(t, "École Jules Ferry", entries[1].Site)
}

func TestReadPerimeter_CSVLatin1Semicolon(t *testing.T) {
	// "Référence" encoded as Latin-1: é is the single byte 0xE9.
	path := writePerimeterFile(t, "perimetre.csv", []byte(
		"Site;R\xe9f\xe9rence;Code postal;Commune\n"+
			"Mairie;12345678901234;75001;Paris\n"))

	entries, err := ReadPerimeter(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "12345678901234", entries[0].Reference)
	assert.Equal(t, "Mairie", entries[0].Site)
}

func TestReadPerimeter_CSVWithBOM(t *testing.T) {
	path := writePerimeterFile(t, "perimetre.csv", []byte(
		"\xef\xbb\xbfSite,Référence\nMairie,12345678901234\n"))

	entries, err := ReadPerimeter(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "12345678901234", entries[0].Reference)
}

func TestReadPerimeter_CSVVerboseReferenceHeader(t *testing.T) {
	path := writePerimeterFile(t, "perimetre.csv", []byte(
		"Nom du site,Référence Point d'Énergie\nMairie,12345678901234\n"))

	entries, err := ReadPerimeter(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "12345678901234", entries[0].Reference)
	assert.Equal(t, "Mairie", entries[0].Site)
}

func TestReadPerimeter_CSVPDLHeader(t *testing.T) {
	path := writePerimeterFile(t, "perimetre.csv", []byte(
		"Site,PDL\nMairie,12345678901234\n"))

	entries, err := ReadPerimeter(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "12345678901234", entries[0].Reference)
}

func TestReadPerimeter_SkipsEmptyReferences(t *testing.T) {
	path := writePerimeterFile(t, "perimetre.csv", []byte(
		"Site,Référence\nMairie,12345678901234\nGymnase,\n"))

	entries, err := ReadPerimeter(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Mairie", entries[0].Site)
}

func TestReadPerimeter_XLSX(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Feuil1": {
			{"Nom du site", "Référence", "Code postal", "Commune"},
			{"Mairie", "12345678901234", "75001", "Paris"},
		},
	})

	entries, err := ReadPerimeter(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, PerimeterEntry{
		Site:       "Mairie",
		Reference:  "12345678901234",
		PostalCode: "75001",
		City:       "Paris",
	}, entries[0])
}

func TestReadPerimeter_MissingReferenceColumn(t *testing.T) {
	path := writePerimeterFile(t, "perimetre.csv", []byte(
		"Site,Adresse\nMairie,1 place de la Mairie\n"))

	_, err := ReadPerimeter(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no reference column")
}

func TestReadPerimeter_UnsupportedExtension(t *testing.T) {
	path := writePerimeterFile(t, "perimetre.ods", []byte("whatever"))

	_, err := ReadPerimeter(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}

func TestReadPerimeter_EmptyCSV(t *testing.T) {
	path := writePerimeterFile(t, "perimetre.csv", []byte(""))

	_, err := ReadPerimeter(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty file")
}
