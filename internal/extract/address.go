package extract

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/enerdoc/facture-cli/internal/classify"
	"github.com/enerdoc/facture-cli/internal/textnorm"
)

var streetRe = regexp.MustCompile(`(?i)\b(?:rue|avenue|av|boulevard|bd|chemin|route|rte|place|pl|all[eé]e|impasse|quai|cours|za|zi|zac|lieu-dit)\b`)

var leadingNumberRe = regexp.MustCompile(`^\s*\d{1,4}\s*(?:bis|ter)?[, ]\s*\p{L}`)

// trailingPostalCityRe splits the trailing "NNNNN CITY" token off an
// address line.
var trailingPostalCityRe = regexp.MustCompile(`(?:^|\D)(\d{5})\s+([^\d\n][^\n]{1,47}?)\s*$`)

// postalTokenRe finds a 5-digit token with non-digit boundaries; Go
// regexps have no lookaround, so the boundaries are explicit groups.
var postalTokenRe = regexp.MustCompile(`(?:^|\D)(\d{5})(?:\D|$)`)

var postalLabelRules = []lineRule{
	{
		name:       "code postal label",
		re:         regexp.MustCompile(`(?i)code\s+postal\s*:?\s*(\d{5})(?:\D|$)`),
		confidence: 0.95,
	},
}

var cityLabelRules = []lineRule{
	{
		name:       "commune label",
		re:         regexp.MustCompile(`(?i)\b(?:commune|ville)\s*:\s*([^\d\n]{2,40})`),
		confidence: 0.9,
	},
}

// extractAddresses fills the address, postal, city and site-name fields
// of the draft. Explicitly labelled postal and city fields are kept
// separate from tokens embedded in address text: the assembler prefers
// the labelled value and journals any disagreement.
func extractAddresses(d *Draft, blocks []Block, docLines []string) {
	d.AddressConsumption = addressFrom(blocks, BlockDelivery, "address lines in delivery block", 0.85)
	d.AddressBilling = addressFrom(blocks, BlockClient, "address lines in client block", 0.8)

	d.PostalCode = applyRules(postalLabelRules, blocks, docLines)
	d.City = applyRules(cityLabelRules, blocks, docLines)
	d.EmbeddedPostal, d.EmbeddedCity = embeddedPostalCity(d.AddressConsumption, blocks, docLines)

	d.SiteName = siteName(blocks, docLines)
}

// addressFrom collects consecutive address-looking lines from the first
// block of the given kind that has any.
func addressFrom(blocks []Block, kind BlockKind, rule string, confidence float64) Field {
	for _, b := range blocks {
		if b.Kind != kind {
			continue
		}
		var parts []string
		for _, line := range strings.Split(b.Text, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if looksLikeAddress(line) {
				parts = append(parts, line)
				continue
			}
			if len(parts) > 0 {
				break
			}
		}
		if len(parts) > 0 {
			return Field{Value: strings.Join(parts, ", "), Rule: rule, Confidence: confidence}
		}
	}
	return Field{}
}

func looksLikeAddress(line string) bool {
	if streetRe.MatchString(line) {
		return true
	}
	if leadingNumberRe.MatchString(line) {
		return true
	}
	return trailingPostalCityRe.MatchString(line)
}

// embeddedPostalCity resolves the postal code and city carried inside
// address text rather than behind a label. Rule order: the tail of the
// consumption address, then a postal token inside a delivery block, then
// the first postal token anywhere.
func embeddedPostalCity(consumption Field, blocks []Block, docLines []string) (Field, Field) {
	if consumption.Found() {
		if m := trailingPostalCityRe.FindStringSubmatch(lastLine(consumption.Value)); m != nil {
			return Field{Value: m[1], Rule: "consumption address tail", Confidence: 0.85},
				Field{Value: strings.TrimSpace(m[2]), Rule: "consumption address tail", Confidence: 0.85}
		}
	}

	for _, b := range blocks {
		if b.Kind != BlockDelivery {
			continue
		}
		for _, line := range strings.Split(b.Text, "\n") {
			if postal, city, ok := postalCityOnLine(line); ok {
				return Field{Value: postal, Rule: "postal token in delivery block", Confidence: 0.7},
					Field{Value: city, Rule: "postal token in delivery block", Confidence: 0.6}
			}
		}
	}

	for _, line := range docLines {
		if postal, city, ok := postalCityOnLine(line); ok {
			return Field{Value: postal, Rule: "first postal token in document", Confidence: 0.5},
				Field{Value: city, Rule: "first postal token in document", Confidence: 0.4}
		}
	}
	return Field{}, Field{}
}

// postalCityOnLine finds a 5-digit token and reads the city as the text
// that follows it on the same line. The city may be absent.
func postalCityOnLine(line string) (string, string, bool) {
	loc := postalTokenRe.FindStringSubmatchIndex(line)
	if loc == nil {
		return "", "", false
	}
	postal := line[loc[2]:loc[3]]
	rest := strings.TrimSpace(line[loc[3]:])
	if rest != "" && !strings.ContainsAny(rest[:1], "0123456789") {
		return postal, strings.TrimRight(rest, " .,;"), true
	}
	return postal, "", true
}

func lastLine(s string) string {
	lines := strings.Split(s, "\n")
	return lines[len(lines)-1]
}

// siteName applies the uppercase-heading heuristic: a line dense in
// capitals that is neither a supplier letterhead, a region label, an
// address, nor invoice boilerplate. Client-block lines are tried before
// the whole document.
func siteName(blocks []Block, docLines []string) Field {
	clientLines := scopedLines([]BlockKind{BlockClient}, true, blocks, nil)
	if f := siteNameAmong(clientLines, "uppercase heading in client block", 0.7); f.Found() {
		return f
	}
	return siteNameAmong(docLines, "uppercase heading heuristic", 0.6)
}

func siteNameAmong(lines []string, rule string, confidence float64) Field {
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if !upperDense(line) {
			continue
		}
		if looksLikeAddress(line) || classify.MatchesKnownSupplier(line) {
			continue
		}
		if bl, loc := matchLabel(line, nil); loc != nil && bl.name != "" {
			continue
		}
		if strings.Contains(textnorm.Canon(line), "FACTURE") {
			continue
		}
		return Field{Value: line, Rule: rule, Confidence: confidence}
	}
	return Field{}
}

// upperDense mirrors the historical heuristic: at least 8 characters,
// at least 6 capitals, and capitals covering 60% of the letters.
func upperDense(line string) bool {
	runes := []rune(line)
	if len(runes) < 8 {
		return false
	}
	upper := 0
	for _, r := range runes {
		if unicode.IsUpper(r) {
			upper++
		}
	}
	return upper >= 6 && textnorm.UppercaseRatio(line) >= 0.6
}
