package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/enerdoc/facture-cli/internal/store"
)

// JournalPath derives the sibling journal stream path for a JSONL export:
// out/records.jsonl becomes out/records.journal.jsonl.
func JournalPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".journal" + ext
}

// WriteJSONL writes one record JSON object per line, and the matching
// journals to the sibling file named by JournalPath, in the same order.
func WriteJSONL(path string, records []store.StoredRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "jsonl export: create dir")
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "jsonl export: create file")
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for i := range records {
		if err := enc.Encode(&records[i].Record); err != nil {
			return eris.Wrap(err, "jsonl export: write record")
		}
	}

	jf, err := os.Create(JournalPath(path))
	if err != nil {
		return eris.Wrap(err, "jsonl export: create journal file")
	}
	defer jf.Close()

	jenc := json.NewEncoder(jf)
	for i := range records {
		if err := jenc.Encode(&records[i].Journal); err != nil {
			return eris.Wrap(err, "jsonl export: write journal")
		}
	}

	return nil
}
