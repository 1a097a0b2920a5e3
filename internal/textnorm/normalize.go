// Package textnorm normalizes French invoice text for matching: accent
// folding, whitespace collapse, and the canonical forms used as
// deduplication keys.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var multiSpaceRe = regexp.MustCompile(`\s{2,}`)

// foldTransformer strips combining marks: "Électricité" -> "Electricite".
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold removes diacritics while leaving the base letters intact.
// Invoice OCR output is inconsistent about accents, so all keyword
// matching happens on folded text.
func Fold(s string) string {
	out, _, err := transform.String(foldTransformer, s)
	if err != nil {
		return s
	}
	return out
}

// Collapse trims the string and squeezes runs of whitespace (including
// newlines) into single spaces.
func Collapse(s string) string {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("\t", " ", "\r", " ", "\n", " ").Replace(s)
	return multiSpaceRe.ReplaceAllString(s, " ")
}

// Canon is the canonical matching form: folded, uppercased, collapsed.
func Canon(s string) string {
	return Collapse(strings.ToUpper(Fold(s)))
}

// Digits returns only the decimal digits of s, in order.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ReferenceKey normalizes a metering-point reference for use as a
// deduplication key: digits only, no case, no separators. "PDL 12345"
// and "12345" collide on purpose.
func ReferenceKey(reference string) string {
	return Digits(reference)
}

// NormalizeCity uppercases and collapses a commune name. Accents are
// preserved: the folded form is for matching, not for output.
func NormalizeCity(s string) string {
	return Collapse(strings.ToUpper(s))
}

// Tokens splits canonical text into word tokens, dropping punctuation.
func Tokens(s string) []string {
	fields := strings.Fields(Canon(s))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?()[]{}\"'°-")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// TokenJaccard computes Jaccard similarity between the token sets of a
// and b on canonical text. Returns 0 when either side has no tokens.
func TokenJaccard(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for t := range setA {
		if setB[t] {
			intersection++
		}
	}
	union := len(setA)
	for t := range setB {
		if !setA[t] {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	tokens := Tokens(s)
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

// UppercaseRatio returns the fraction of letters in s that are uppercase.
// Lines that are mostly uppercase tend to be site or client names on
// French invoices.
func UppercaseRatio(s string) float64 {
	var letters, upper int
	for _, r := range s {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(upper) / float64(letters)
}
