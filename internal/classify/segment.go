// Package classify derives the labelled fields of an invoice that come from
// fixed French vocabulary rather than free text: energy segment, offer tags,
// tariff segment, regulated-tariff status, supplier identity, and the
// relevance gate that decides whether a document is an energy invoice at all.
//
// Every rule tier is an ordered list evaluated top to bottom; the first match
// wins and later rules are not consulted. All matching happens on
// textnorm.Canon output, so accents and case never affect the outcome.
package classify

import (
	"regexp"
	"strings"

	"github.com/enerdoc/facture-cli/internal/model"
	"github.com/enerdoc/facture-cli/internal/textnorm"
)

// segmentRules maps canonical keywords to an energy segment. Gas keywords
// are listed before electricity ones: dual-fuel wording resolves to Gaz.
var segmentRules = []struct {
	keyword string
	segment model.EnergySegment
}{
	{"GAZ NATUREL", model.SegmentGas},
	{"GAZ", model.SegmentGas},
	{"ELECTRICITE", model.SegmentElectricity},
	{"ELEC", model.SegmentElectricity},
}

// EnergySegment scans canonical text for segment keywords. Returns the
// matched segment and the keyword that decided it, or (nil, "") when no
// keyword appears.
func EnergySegment(text string) (*model.EnergySegment, string) {
	canon := textnorm.Canon(text)
	for _, r := range segmentRules {
		if strings.Contains(canon, r.keyword) {
			seg := r.segment
			return &seg, r.keyword
		}
	}
	return nil, ""
}

// offerVocabulary holds the closed offer-tag labels in display casing,
// keyed by their canonical match form.
var offerVocabulary = []struct {
	keyword string
	label   string
}{
	{"CONTRAT GARANTI", "Contrat Garanti"},
	{"PRIX FIXE", "Prix Fixe"},
	{"OFFRE VERTE", "Offre verte"},
}

var offerLineRe = regexp.MustCompile(`^(?:VOTRE\s+)?OFFRE\s*:?\s+(.{3,60})$`)

// OfferTags collects every vocabulary label present in the text, in
// vocabulary order. When none matches but a line announces an offer name,
// that free text is kept as a single unclassified tag; the second return
// reports whether the result came from the vocabulary.
func OfferTags(text string) ([]string, bool) {
	canon := textnorm.Canon(text)
	var tags []string
	for _, v := range offerVocabulary {
		if strings.Contains(canon, v.keyword) {
			tags = append(tags, v.label)
		}
	}
	if len(tags) > 0 {
		return tags, true
	}
	for _, line := range strings.Split(text, "\n") {
		if m := offerLineRe.FindStringSubmatch(textnorm.Canon(line)); m != nil {
			if free := strings.TrimSpace(m[1]); free != "" {
				return []string{free}, false
			}
		}
	}
	return nil, false
}

// tariffRules are tried in order; the C ladder outranks the T ladder when
// a document mentions both.
var tariffRules = []*regexp.Regexp{
	regexp.MustCompile(`\b(C[1-5])\b`),
	regexp.MustCompile(`\b(T[1-4])\b`),
}

// TariffSegment finds the first tariff ladder label in canonical text.
// Returns the label and its raw match, or (nil, "") when absent.
func TariffSegment(text string) (*model.TariffSegment, string) {
	canon := textnorm.Canon(text)
	for _, re := range tariffRules {
		if m := re.FindStringSubmatch(canon); m != nil {
			ts := model.TariffSegment(m[1])
			return &ts, m[1]
		}
	}
	return nil, ""
}

// regulatedRules pair explicit wording with a verdict. Negative wording is
// listed first so "prix non réglementés" can never fall through to the
// "réglementé" substring.
var regulatedRules = []struct {
	keyword string
	verdict model.RegulatedTariff
}{
	{"PRIX NON REGLEMENT", model.RegulatedNo},
	{"OFFRE DE MARCHE", model.RegulatedNo},
	{"TARIF REGLEMENTE", model.RegulatedYes},
	{"TARIFS REGLEMENTES", model.RegulatedYes},
	{"TARIF BLEU", model.RegulatedYes},
}

var trvRe = regexp.MustCompile(`\bTRV\b`)

// Regulated reports the regulated-tariff status only when the document
// carries explicit wording for it. Anything short of that yields nil: the
// field is never inferred from supplier or offer names.
func Regulated(text string) (*model.RegulatedTariff, string) {
	canon := textnorm.Canon(text)
	for _, r := range regulatedRules {
		if strings.Contains(canon, r.keyword) {
			v := r.verdict
			return &v, r.keyword
		}
	}
	if trvRe.MatchString(canon) {
		v := model.RegulatedYes
		return &v, "TRV"
	}
	return nil, ""
}
