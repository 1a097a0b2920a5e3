package fetch

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/charmap"

	"github.com/enerdoc/facture-cli/internal/textnorm"
)

// PerimeterEntry is one expected delivery point from a site perimeter file.
// Reference is kept as written in the file; reconciliation normalizes it.
type PerimeterEntry struct {
	Site       string
	Reference  string
	PostalCode string
	City       string
}

// ReadPerimeter loads a perimeter file listing the sites and metering-point
// references a client expects invoices for. Dispatches on extension:
// .csv (comma or semicolon, UTF-8 or Latin-1) and .xlsx (first sheet).
func ReadPerimeter(ctx context.Context, path string) ([]PerimeterEntry, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readPerimeterCSV(ctx, path)
	case ".xlsx":
		return readPerimeterXLSX(path)
	default:
		return nil, eris.Errorf("perimeter: unsupported file type %q", filepath.Ext(path))
	}
}

func readPerimeterCSV(ctx context.Context, path string) ([]PerimeterEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "perimeter: read file")
	}

	// Excel exports prepend a UTF-8 BOM; strip it before sniffing the header.
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	// French Excel writes Latin-1 CSVs with semicolon separators.
	if !utf8.Valid(data) {
		decoded, decErr := charmap.Windows1252.NewDecoder().Bytes(data)
		if decErr != nil {
			return nil, eris.Wrap(decErr, "perimeter: decode latin-1")
		}
		data = decoded
	}

	headerCh := make(chan []string, 1)
	rowCh, errCh := StreamCSV(ctx, bytes.NewReader(data), CSVOptions{
		Delimiter: sniffDelimiter(data),
		HasHeader: true,
		HeaderCh:  headerCh,
		TrimSpace: true,
	})

	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}

	var header []string
	select {
	case header = <-headerCh:
	default:
		return nil, eris.New("perimeter: empty file")
	}

	return rowsToPerimeter(header, rows, path)
}

func readPerimeterXLSX(path string) ([]PerimeterEntry, error) {
	rows, err := ReadXLSX(path, XLSXOptions{})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, eris.New("perimeter: empty file")
	}
	return rowsToPerimeter(rows[0], rows[1:], path)
}

// sniffDelimiter inspects the header line: semicolons outnumbering commas
// means a French-locale export.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

func rowsToPerimeter(header []string, rows [][]string, path string) ([]PerimeterEntry, error) {
	refIdx := findColumn(header,
		"REFERENCE", "REFERENCE POINT D'ENERGIE", "PDL", "PCE", "PRM", "POINT DE LIVRAISON", "RAE")
	if refIdx < 0 {
		refIdx = findColumnContaining(header, "REFERENCE")
	}
	if refIdx < 0 {
		return nil, eris.Errorf("perimeter: no reference column in %s (header: %v)", filepath.Base(path), header)
	}

	siteIdx := findColumn(header, "SITE", "NOM DU SITE", "NOM SITE", "NOM")
	if siteIdx < 0 {
		siteIdx = findColumnContaining(header, "SITE")
	}
	postalIdx := findColumn(header, "CODE POSTAL", "CP")
	cityIdx := findColumn(header, "COMMUNE", "VILLE")

	var entries []PerimeterEntry
	for _, row := range rows {
		entry := PerimeterEntry{
			Reference:  cellAt(row, refIdx),
			Site:       cellAt(row, siteIdx),
			PostalCode: cellAt(row, postalIdx),
			City:       cellAt(row, cityIdx),
		}
		if entry.Reference == "" {
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// findColumn returns the index of the first header cell whose canonical form
// exactly matches one of the candidate names, or -1.
func findColumn(header []string, names ...string) int {
	for _, name := range names {
		for i, cell := range header {
			if textnorm.Canon(cell) == name {
				return i
			}
		}
	}
	return -1
}

func findColumnContaining(header []string, fragment string) int {
	for i, cell := range header {
		if strings.Contains(textnorm.Canon(cell), fragment) {
			return i
		}
	}
	return -1
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
