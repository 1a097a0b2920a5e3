package fetch

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectRows(t *testing.T, rowCh <-chan []string, errCh <-chan error) [][]string {
	t.Helper()
	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	require.NoError(t, <-errCh)
	return rows
}

func TestStreamCSV_Basic(t *testing.T) {
	input := "site,reference\nMairie,12345678901234\nEcole,98765432109876\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{})

	rows := collectRows(t, rowCh, errCh)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"site", "reference"}, rows[0])
	assert.Equal(t, []string{"Mairie", "12345678901234"}, rows[1])
}

func TestStreamCSV_HeaderChannel(t *testing.T) {
	input := "site,reference\nMairie,12345678901234\n"
	headerCh := make(chan []string, 1)
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
	})

	rows := collectRows(t, rowCh, errCh)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"Mairie", "12345678901234"}, rows[0])
	assert.Equal(t, []string{"site", "reference"}, <-headerCh)
}

func TestStreamCSV_SemicolonDelimiter(t *testing.T) {
	input := "site;reference\nMairie;12345678901234\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		Delimiter: ';',
		HasHeader: true,
	})

	rows := collectRows(t, rowCh, errCh)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"Mairie", "12345678901234"}, rows[0])
}

func TestStreamCSV_TrimSpace(t *testing.T) {
	input := " site , reference \n Mairie , 12345678901234 \n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		TrimSpace: true,
	})

	rows := collectRows(t, rowCh, errCh)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"site", "reference"}, rows[0])
	assert.Equal(t, []string{"Mairie", "12345678901234"}, rows[1])
}

func TestStreamCSV_VariableFieldCount(t *testing.T) {
	input := "a,b,c\nx,y\n1,2,3,4\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{})

	rows := collectRows(t, rowCh, errCh)
	require.Len(t, rows, 3)
	assert.Len(t, rows[1], 2)
	assert.Len(t, rows[2], 4)
}

func TestStreamCSV_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rowCh, errCh := StreamCSV(ctx, strings.NewReader("a,b\nc,d\n"), CSVOptions{})
	for range rowCh {
	}
	err := <-errCh
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context cancelled")
}
