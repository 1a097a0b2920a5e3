package fetch

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				row.AddCell().SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "test.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadXLSX_Basic(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Feuil1": {
			{"Site", "Référence"},
			{"Mairie", "12345678901234"},
			{"École", "98765432109876"},
		},
	})

	rows, err := ReadXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Site", "Référence"}, rows[0])
	assert.Equal(t, []string{"Mairie", "12345678901234"}, rows[1])
}

func TestReadXLSX_SkipRows(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Feuil1": {
			{"Site", "Référence"},
			{"a", "b"},
			{"c", "d"},
		},
	})

	rows, err := ReadXLSX(path, XLSXOptions{SkipRows: 1})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"a", "b"}, rows[0])
}

func TestReadXLSX_SheetName(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Perimetre": {{"x", "y"}, {"1", "2"}},
		"Notes":     {{"a", "b"}},
	})

	rows, err := ReadXLSX(path, XLSXOptions{SheetName: "Perimetre"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"x", "y"}, rows[0])
}

func TestReadXLSX_SheetNameNotFound(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{"Feuil1": {{"a"}}})

	_, err := ReadXLSX(path, XLSXOptions{SheetName: "Missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestReadXLSX_SheetIndexOutOfRange(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{"Feuil1": {{"a"}}})

	_, err := ReadXLSX(path, XLSXOptions{SheetIndex: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestReadXLSX_MissingFile(t *testing.T) {
	_, err := ReadXLSX(filepath.Join(t.TempDir(), "nope.xlsx"), XLSXOptions{})
	require.Error(t, err)
}
