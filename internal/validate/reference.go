// Package validate enforces the structural invariants of typed record
// fields: metering-point references, postal codes, SIREN/SIRET.
// Violations null the field with a reason; they never reject a record.
package validate

import (
	"fmt"
	"strings"

	"github.com/enerdoc/facture-cli/internal/model"
	"github.com/enerdoc/facture-cli/internal/textnorm"
)

// ReferenceOutcome is the validator's verdict on a reference candidate:
// either the validated (reference, type, length) triple, or nils plus
// the reason the candidate was discarded.
type ReferenceOutcome struct {
	Reference  *string
	Type       *model.ReferenceType
	Length     *int
	Confidence float64
	Reason     string
}

// typeKeywords maps context keywords to reference types, scanned in
// order. PCE wording is checked first: gas invoices frequently mention
// "point de livraison" for the delivery address while the meter itself
// is a PCE.
var typeKeywords = []struct {
	keyword string
	refType model.ReferenceType
}{
	{"PCE", model.ReferencePCE},
	{"POINT DE COMPTAGE", model.ReferencePCE},
	{"PRM", model.ReferencePRM},
	{"PDL", model.ReferencePDL},
	{"POINT DE LIVRAISON", model.ReferencePDL},
	{"REF ACHEMINEMENT", model.ReferencePDL},
}

// InferType derives the reference type from surrounding context keywords.
// Returns nil when no keyword appears.
func InferType(context string) *model.ReferenceType {
	canon := textnorm.Canon(context)
	for _, tk := range typeKeywords {
		if strings.Contains(canon, tk.keyword) {
			t := tk.refType
			return &t
		}
	}
	return nil
}

// Reference validates a raw reference string against the canonical
// format. The type is taken from declared when set, otherwise inferred
// from context keywords. The raw string is normalized to digits only;
// a digit count that differs from the type's canonical length nulls the
// reference and the type, with observed vs expected in the reason.
func Reference(raw, context string, declared *model.ReferenceType) ReferenceOutcome {
	if strings.TrimSpace(raw) == "" {
		return ReferenceOutcome{Reason: "no reference found"}
	}

	refType := declared
	if refType == nil {
		refType = InferType(context)
	}
	if refType == nil {
		return ReferenceOutcome{Reason: "reference type indeterminable from context"}
	}

	digits := textnorm.Digits(raw)
	expected := refType.ExpectedDigits()
	if len(digits) != expected {
		return ReferenceOutcome{
			Reason: fmt.Sprintf("%s length %d, expected %d", *refType, len(digits), expected),
		}
	}

	length := expected
	return ReferenceOutcome{
		Reference:  &digits,
		Type:       refType,
		Length:     &length,
		Confidence: 0.95,
		Reason:     fmt.Sprintf("validated %s reference", *refType),
	}
}

// RefCandidate is one labelled reference found by the extractor, with
// the rule priority that produced it (lower is stronger).
type RefCandidate struct {
	Raw      string
	Context  string
	Type     model.ReferenceType
	Priority int
}

// Adjudicate picks a winner among several reference candidates.
// Precedence: candidates already carrying the canonical digit count
// outrank the rest, then a type matching the known energy segment beats
// one that does not, then rule priority decides. Two candidates with
// different digit strings, conflicting types and no segment to arbitrate
// are ambiguous: no winner, reason "ambiguous".
func Adjudicate(cands []RefCandidate, segment *model.EnergySegment) (RefCandidate, bool, string) {
	if len(cands) == 0 {
		return RefCandidate{}, false, "no reference found"
	}
	if len(cands) == 1 {
		return cands[0], true, "single candidate"
	}

	var valid []RefCandidate
	for _, c := range cands {
		if len(textnorm.Digits(c.Raw)) == c.Type.ExpectedDigits() {
			valid = append(valid, c)
		}
	}
	if len(valid) > 0 && len(valid) < len(cands) {
		cands = valid
		if len(cands) == 1 {
			return cands[0], true, "only candidate with canonical length"
		}
	}

	if segment != nil {
		var matching []RefCandidate
		for _, c := range cands {
			if c.Type.Segment() == *segment {
				matching = append(matching, c)
			}
		}
		if len(matching) > 0 {
			best := matching[0]
			for _, c := range matching[1:] {
				if c.Priority < best.Priority {
					best = c
				}
			}
			return best, true, fmt.Sprintf("type %s matches segment %s", best.Type, *segment)
		}
	}

	best := cands[0]
	conflict := false
	for _, c := range cands[1:] {
		if c.Priority < best.Priority {
			best = c
		}
		if textnorm.Digits(c.Raw) != textnorm.Digits(cands[0].Raw) && c.Type.Segment() != cands[0].Type.Segment() {
			conflict = true
		}
	}
	if conflict && segment == nil {
		return RefCandidate{}, false, "ambiguous"
	}
	return best, true, "rule priority"
}
