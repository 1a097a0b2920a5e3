package extract

import (
	"regexp"
	"strings"

	"github.com/enerdoc/facture-cli/internal/model"
	"github.com/enerdoc/facture-cli/internal/textnorm"
	"github.com/enerdoc/facture-cli/internal/validate"
)

// Field is one extracted value with its provenance: the rule that found
// it and the confidence it carries into the journal.
type Field struct {
	Value      string
	Rule       string
	Confidence float64
}

// Found reports whether the field was extracted.
func (f Field) Found() bool { return f.Value != "" }

// Ptr returns the value for record assembly, nil when unset.
func (f Field) Ptr() *string { return model.StringPtr(f.Value) }

// digitRun matches 10 to 25 digits with optional single separators, the
// shapes metering references take on printed invoices.
const digitRun = `((?:\d[ .\-]?){9,24}\d)`

// lineRule is one entry of a field's ordered rule list. Scoped rules
// search the named blocks; when none of those blocks was located the rule
// falls back to the whole document, unless strict is set, in which case
// it is skipped.
type lineRule struct {
	name       string
	re         *regexp.Regexp
	confidence float64
	scope      []BlockKind
	strict     bool
}

// applyRules evaluates a rule list in order and returns the first match.
// The first capture group is the value.
func applyRules(rules []lineRule, blocks []Block, docLines []string) Field {
	for _, r := range rules {
		for _, line := range scopedLines(r.scope, r.strict, blocks, docLines) {
			if m := r.re.FindStringSubmatch(line); m != nil {
				return Field{
					Value:      strings.TrimSpace(m[1]),
					Rule:       r.name,
					Confidence: r.confidence,
				}
			}
		}
	}
	return Field{}
}

func scopedLines(scope []BlockKind, strict bool, blocks []Block, docLines []string) []string {
	if len(scope) == 0 {
		return docLines
	}
	var lines []string
	for _, b := range blocks {
		for _, k := range scope {
			if b.Kind == k {
				lines = append(lines, strings.Split(b.Text, "\n")...)
				break
			}
		}
	}
	if len(lines) == 0 && !strict {
		return docLines
	}
	return lines
}

// sirenRules resolve the client SIREN/SIRET. Labelled values win; bare
// 14-digit sequences are only trusted inside the client block, where they
// cannot be confused with a metering reference.
var sirenRules = []lineRule{
	{
		name:       "SIRET label",
		re:         regexp.MustCompile(`(?i)\bSIRET\b\s*(?:n°|no|num[eé]ro)?\s*:?\s*((?:\d[ .]?){13}\d)`),
		confidence: 0.9,
		scope:      []BlockKind{BlockClient},
	},
	{
		name:       "SIREN label",
		re:         regexp.MustCompile(`(?i)\bSIREN\b\s*(?:n°|no|num[eé]ro)?\s*:?\s*((?:\d[ .]?){8}\d)`),
		confidence: 0.9,
		scope:      []BlockKind{BlockClient},
	},
	{
		name:       "unlabelled 14-digit sequence in client block",
		re:         regexp.MustCompile(`(?:^|\D)((?:\d[ .]?){13}\d)(?:\D|$)`),
		confidence: 0.6,
		scope:      []BlockKind{BlockClient},
		strict:     true,
	},
	{
		name:       "unlabelled 9-digit sequence",
		re:         regexp.MustCompile(`(?:^|\D)(\d{9})(?:\D|$)`),
		confidence: 0.5,
		scope:      []BlockKind{BlockClient},
	},
}

// terminationRules resolve the notice period for ending the contract.
var terminationRules = []lineRule{
	{
		name:       "préavis duration",
		re:         regexp.MustCompile(`(?i)pr[eé]avis\s+(?:de\s+)?(\d+\s+(?:mois|jours?|semaines?))`),
		confidence: 0.9,
	},
	{
		name:       "préavis label line",
		re:         regexp.MustCompile(`(?i)pr[eé]avis(?:\s+de\s+r[eé]siliation)?\s*:\s*(.{2,80})`),
		confidence: 0.8,
	},
}

// renewalRules resolve the renewal terms wording.
var renewalRules = []lineRule{
	{
		name:       "renouvellement label",
		re:         regexp.MustCompile(`(?i)(?:conditions?\s+de\s+)?renouvellement\s*:\s*(.{2,100})`),
		confidence: 0.85,
	},
	{
		name:       "tacite reconduction wording",
		re:         regexp.MustCompile(`(?i)((?:tacite\s+reconduction|reconduction\s+tacite)(?:\s+(?:de|pour)\s+\d+\s+mois)?)`),
		confidence: 0.7,
	},
}

// referenceLabelRules find labelled metering references anywhere in the
// document, ordered by label strength. Gas wording precedes electricity
// wording; the generic acheminement label comes last.
var referenceLabelRules = []struct {
	name     string
	priority int
	refType  model.ReferenceType
	re       *regexp.Regexp
}{
	{
		name:     "PCE label",
		priority: 1,
		refType:  model.ReferencePCE,
		re:       regexp.MustCompile(`(?i)\b(?:PCE|point\s+de\s+comptage(?:\s+et\s+d['’][eé]stima[tl]ion)?)\b\s*(?:n°|no)?.{0,30}?` + digitRun),
	},
	{
		name:     "PDL label",
		priority: 2,
		refType:  model.ReferencePDL,
		re:       regexp.MustCompile(`(?i)\b(?:PDL|point\s+de\s+livraison)\b\s*(?:n°|no)?.{0,30}?` + digitRun),
	},
	{
		name:     "PRM label",
		priority: 3,
		refType:  model.ReferencePRM,
		re:       regexp.MustCompile(`(?i)\bPRM\b\s*(?:n°|no)?.{0,30}?` + digitRun),
	},
	{
		name:     "référence acheminement label",
		priority: 4,
		refType:  model.ReferencePDL,
		re:       regexp.MustCompile(`(?i)r[eé]f(?:[eé]rence)?\.?\s+acheminement.{0,30}?` + digitRun),
	},
}

var digitRunRe = regexp.MustCompile(`(?:^|\D)` + digitRun + `(?:\D|$)`)

// collectReferences gathers every typed reference candidate: labelled
// matches across the document, profile-label matches at top priority, and
// digit runs inside blocks whose label implies a type. The second return
// is the first digit run from a block whose label does not imply a type,
// kept so an otherwise reference-less document can journal what it saw.
func collectReferences(docLines []string, blocks []Block, profileLabels []string) ([]validate.RefCandidate, Field) {
	var cands []validate.RefCandidate
	add := func(c validate.RefCandidate) {
		key := textnorm.Digits(c.Raw)
		for _, existing := range cands {
			if textnorm.Digits(existing.Raw) == key && existing.Type == c.Type {
				return
			}
		}
		cands = append(cands, c)
	}

	for _, label := range profileLabels {
		t := validate.InferType(label)
		if t == nil {
			continue
		}
		re := regexp.MustCompile(LabelPattern(label).String() + `\s*(?:n°|no)?.{0,30}?` + digitRun)
		for _, line := range docLines {
			if m := re.FindStringSubmatch(line); m != nil {
				add(validate.RefCandidate{Raw: m[1], Context: label, Type: *t, Priority: 0})
				break
			}
		}
	}

	for _, r := range referenceLabelRules {
		for _, line := range docLines {
			if m := r.re.FindStringSubmatch(line); m != nil {
				add(validate.RefCandidate{Raw: m[1], Context: r.name, Type: r.refType, Priority: r.priority})
				break
			}
		}
	}

	var untyped Field
	for _, b := range blocks {
		if b.Kind != BlockDelivery && b.Kind != BlockMetering {
			continue
		}
		m := digitRunRe.FindStringSubmatch(b.Text)
		if m == nil {
			continue
		}
		if t := validate.InferType(b.Label); t != nil {
			add(validate.RefCandidate{Raw: m[1], Context: b.Label, Type: *t, Priority: 5})
		} else if !untyped.Found() {
			untyped = Field{Value: m[1], Rule: "digit run under " + b.Label, Confidence: 0.4}
		}
	}

	return cands, untyped
}
