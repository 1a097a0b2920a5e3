// Package reconcile compares extracted records against a client's site
// perimeter. The perimeter file lists the metering-point references a
// client expects invoices for; reconciliation shows which of those the
// run actually covered.
package reconcile

import (
	"sort"

	"github.com/enerdoc/facture-cli/internal/fetch"
	"github.com/enerdoc/facture-cli/internal/model"
	"github.com/enerdoc/facture-cli/internal/store"
	"github.com/enerdoc/facture-cli/internal/textnorm"
)

// Match pairs a perimeter entry with the kept record covering it.
type Match struct {
	Entry  fetch.PerimeterEntry
	Record store.StoredRecord
}

// Report partitions a run against the perimeter. Missing entries are in
// the perimeter but produced no record; unexpected records carry a
// reference absent from the perimeter.
type Report struct {
	Matched    []Match
	Missing    []fetch.PerimeterEntry
	Unexpected []store.StoredRecord
}

// Coverage returns matched entries over total perimeter entries, 0..1.
// An empty perimeter counts as fully covered.
func (r Report) Coverage() float64 {
	total := len(r.Matched) + len(r.Missing)
	if total == 0 {
		return 1.0
	}
	return float64(len(r.Matched)) / float64(total)
}

// Build reconciles perimeter entries against stored records. References
// on both sides go through the same normalization the dedup index uses,
// so formatting differences (spaces, dashes, prefixes) do not produce
// false misses. Superseded records are ignored; duplicate perimeter rows
// for one reference collapse to the first occurrence.
func Build(perimeter []fetch.PerimeterEntry, records []store.StoredRecord) Report {
	byKey := make(map[string]store.StoredRecord, len(records))
	for _, rec := range records {
		if rec.State == model.StateSuperseded {
			continue
		}
		key := rec.ReferenceKey
		if key == "" && rec.Record.EnergyReference != nil {
			key = textnorm.ReferenceKey(*rec.Record.EnergyReference)
		}
		if key == "" {
			continue
		}
		if _, ok := byKey[key]; !ok {
			byKey[key] = rec
		}
	}

	var report Report
	seen := make(map[string]bool, len(perimeter))
	matched := make(map[string]bool, len(perimeter))
	for _, entry := range perimeter {
		key := textnorm.ReferenceKey(entry.Reference)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		if rec, ok := byKey[key]; ok {
			report.Matched = append(report.Matched, Match{Entry: entry, Record: rec})
			matched[key] = true
		} else {
			report.Missing = append(report.Missing, entry)
		}
	}

	for key, rec := range byKey {
		if !matched[key] {
			report.Unexpected = append(report.Unexpected, rec)
		}
	}
	sort.Slice(report.Unexpected, func(i, j int) bool {
		return report.Unexpected[i].ReferenceKey < report.Unexpected[j].ReferenceKey
	})

	return report
}
