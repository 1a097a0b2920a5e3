package model

import "time"

// FieldNote records how one record field was resolved: a bounded
// confidence score and a human-readable reason ("matched pattern X in
// block Y", "no match, defaulted to null").
type FieldNote struct {
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// ExtractionJournal is the audit trail for one produced record. It is
// written by the assembler, immutable afterwards, and consumed only by
// sinks and observability tooling. Deduplication never reads it.
type ExtractionJournal struct {
	SourceFile   string               `json:"source_file,omitempty"`
	ReferenceKey string               `json:"reference_key,omitempty"`
	Fields       map[string]FieldNote `json:"fields"`
	CreatedAt    time.Time            `json:"created_at"`
}

// NewJournal creates an empty journal for the given source file.
func NewJournal(sourceFile string) *ExtractionJournal {
	return &ExtractionJournal{
		SourceFile: sourceFile,
		Fields:     make(map[string]FieldNote),
		CreatedAt:  time.Now().UTC(),
	}
}

// Note records how a field was resolved. Later notes for the same field
// overwrite earlier ones, so the journal always holds the final outcome.
func (j *ExtractionJournal) Note(field string, confidence float64, reason string) {
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	j.Fields[field] = FieldNote{Confidence: confidence, Reason: reason}
}

// Confidence returns the recorded confidence for a field, or 0.
func (j *ExtractionJournal) Confidence(field string) float64 {
	return j.Fields[field].Confidence
}
