package export

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/enerdoc/facture-cli/internal/store"
)

// sheetTitle matches the tab name brokers expect in the delivery workbook.
const sheetTitle = "Extracted Energy Invoices"

// WriteXLSX writes kept records as an XLSX workbook with the broker
// column layout on a single sheet.
func WriteXLSX(path string, records []store.StoredRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "xlsx export: create dir")
	}

	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetTitle)
	if err != nil {
		return eris.Wrap(err, "xlsx export: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range Columns {
		header.AddCell().SetString(col)
	}

	for i := range records {
		row := sheet.AddRow()
		for _, cell := range Row(&records[i].Record) {
			row.AddCell().SetString(cell)
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "xlsx export: save")
	}
	return nil
}
