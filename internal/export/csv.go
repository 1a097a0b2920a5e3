package export

import (
	"encoding/csv"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/enerdoc/facture-cli/internal/store"
)

// WriteCSV writes kept records as a CSV file with the broker column layout.
func WriteCSV(path string, records []store.StoredRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "csv export: create dir")
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "csv export: create file")
	}
	defer f.Close()

	w := csv.NewWriter(f)

	if err := w.Write(Columns); err != nil {
		return eris.Wrap(err, "csv export: write header")
	}
	for i := range records {
		if err := w.Write(Row(&records[i].Record)); err != nil {
			return eris.Wrap(err, "csv export: write row")
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "csv export: flush")
	}
	return nil
}
