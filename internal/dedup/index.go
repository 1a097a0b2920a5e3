// Package dedup maintains the reference-keyed record index. All upserts
// funnel through one mutex, so extraction can run in parallel while index
// decisions stay strictly ordered. The conflict policy reads only record
// fields and effective dates; journals ride along untouched.
package dedup

import (
	"fmt"
	"sort"
	"sync"

	"github.com/enerdoc/facture-cli/internal/model"
	"github.com/enerdoc/facture-cli/internal/textnorm"
)

// Entry is one record held by the index, with its lifecycle state.
type Entry struct {
	Key           string
	State         model.RecordState
	Record        *model.EnergyInvoiceRecord
	Journal       *model.ExtractionJournal
	EffectiveDate *model.Date

	// SupersededBy names the source file whose record displaced this one.
	SupersededBy string
}

// Outcome is the index's verdict on one upserted record.
type Outcome string

const (
	OutcomeKept       Outcome = "kept"
	OutcomeSuperseded Outcome = "superseded"
)

// Decision reports what the index did with an upserted record and why.
type Decision struct {
	Outcome Outcome
	Key     string
	Reason  string
}

// Index holds the current keeper per normalized reference plus every
// record it has displaced. Records without a reference are stored
// unkeyed and never collide with anything.
type Index struct {
	mu         sync.Mutex
	entries    map[string]*Entry
	unkeyed    []*Entry
	superseded []*Entry
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{entries: make(map[string]*Entry)}
}

// Upsert offers a record to the index. The incoming record starts as a
// candidate and ends kept or superseded; a displaced keeper transitions
// to superseded in the same step. When effective dates tie, or both are
// absent, the incoming record wins: with no date evidence either way,
// the later document is assumed fresher.
func (ix *Index) Upsert(rec *model.EnergyInvoiceRecord, journal *model.ExtractionJournal, eff *model.Date) Decision {
	entry := &Entry{
		State:         model.StateCandidate,
		Record:        rec,
		Journal:       journal,
		EffectiveDate: eff,
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if !rec.HasReference() {
		entry.State = model.StateKept
		ix.unkeyed = append(ix.unkeyed, entry)
		return Decision{Outcome: OutcomeKept, Reason: "no reference to key on"}
	}

	key := textnorm.ReferenceKey(*rec.EnergyReference)
	entry.Key = key

	current, exists := ix.entries[key]
	if !exists {
		entry.State = model.StateKept
		ix.entries[key] = entry
		return Decision{Outcome: OutcomeKept, Key: key, Reason: "first record for reference"}
	}

	wins, reason := supersedes(entry.EffectiveDate, current.EffectiveDate)
	if !wins {
		entry.State = model.StateSuperseded
		entry.SupersededBy = sourceOf(current)
		ix.superseded = append(ix.superseded, entry)
		return Decision{Outcome: OutcomeSuperseded, Key: key, Reason: reason}
	}

	current.State = model.StateSuperseded
	current.SupersededBy = sourceOf(entry)
	ix.superseded = append(ix.superseded, current)

	entry.State = model.StateKept
	ix.entries[key] = entry
	return Decision{Outcome: OutcomeKept, Key: key, Reason: reason}
}

// supersedes decides whether a record with effective date next displaces
// the keeper dated prev. A record without a usable date never displaces
// a dated one.
func supersedes(next, prev *model.Date) (bool, string) {
	switch {
	case next == nil && prev == nil:
		return true, "both undated, later document wins"
	case next == nil:
		return false, fmt.Sprintf("undated record cannot supersede %s", prev)
	case prev == nil:
		return true, fmt.Sprintf("dated %s supersedes undated", next)
	case next.After(*prev):
		return true, fmt.Sprintf("effective date %s supersedes %s", next, prev)
	case next.Equal(*prev):
		return true, fmt.Sprintf("equal effective date %s, later document wins", next)
	default:
		return false, fmt.Sprintf("effective date %s is older than kept %s", next, prev)
	}
}

func sourceOf(e *Entry) string {
	if e.Journal != nil {
		return e.Journal.SourceFile
	}
	return ""
}

// Kept returns the current keepers: keyed entries sorted by reference,
// then unkeyed entries in arrival order.
func (ix *Index) Kept() []*Entry {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	keys := make([]string, 0, len(ix.entries))
	for k := range ix.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]*Entry, 0, len(keys)+len(ix.unkeyed))
	for _, k := range keys {
		out = append(out, ix.entries[k])
	}
	out = append(out, ix.unkeyed...)
	return out
}

// Superseded returns every displaced record in the order the
// displacements happened.
func (ix *Index) Superseded() []*Entry {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	out := make([]*Entry, len(ix.superseded))
	copy(out, ix.superseded)
	return out
}

// Counts returns the number of kept and superseded records.
func (ix *Index) Counts() (kept, superseded int) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.entries) + len(ix.unkeyed), len(ix.superseded)
}
