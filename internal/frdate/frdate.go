// Package frdate parses dates written the French way (day first,
// two-digit years, textual months) and assigns document roles to the
// dates found in invoice text.
package frdate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/enerdoc/facture-cli/internal/model"
	"github.com/enerdoc/facture-cli/internal/textnorm"
)

// numericDateRe matches d/m/y with /, - or . separators. Years may be
// two digits; French invoices never zero-pad consistently.
var numericDateRe = regexp.MustCompile(`\b(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{2,4})\b`)

// monthNames maps folded lowercase French month names and their common
// abbreviations to month numbers.
var monthNames = map[string]time.Month{
	"janvier":   time.January,
	"janv":      time.January,
	"fevrier":   time.February,
	"fevr":      time.February,
	"fev":       time.February,
	"mars":      time.March,
	"avril":     time.April,
	"avr":       time.April,
	"mai":       time.May,
	"juin":      time.June,
	"juillet":   time.July,
	"juil":      time.July,
	"aout":      time.August,
	"septembre": time.September,
	"sept":      time.September,
	"octobre":   time.October,
	"oct":       time.October,
	"novembre":  time.November,
	"nov":       time.November,
	"decembre":  time.December,
	"dec":       time.December,
}

var textualDateRe = regexp.MustCompile(`\b(\d{1,2})(?:er)?\s+(janvier|janv|fevrier|fevr|fev|mars|avril|avr|mai|juin|juillet|juil|aout|septembre|sept|octobre|oct|novembre|nov|decembre|dec)\.?\s+(\d{4})\b`)

// periodRe matches a consumption period "du <date> au <date>".
var periodRe = regexp.MustCompile(`du\s+(\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4})\s+au\s+(\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4})`)

// Parse parses a single French date string: "13/10/2025", "1-2-24",
// "03.04.2025" or "13 octobre 2025". Two-digit years are 2000-relative.
func Parse(s string) (model.Date, bool) {
	folded := strings.ToLower(textnorm.Fold(strings.TrimSpace(s)))

	if m := numericDateRe.FindStringSubmatch(folded); m != nil {
		return buildDate(m[1], m[2], m[3])
	}
	if m := textualDateRe.FindStringSubmatch(folded); m != nil {
		month, ok := monthNames[m[2]]
		if !ok {
			return model.Date{}, false
		}
		return buildDate(m[1], strconv.Itoa(int(month)), m[3])
	}
	return model.Date{}, false
}

func buildDate(dayStr, monthStr, yearStr string) (model.Date, bool) {
	day, _ := strconv.Atoi(dayStr)
	month, _ := strconv.Atoi(monthStr)
	year, _ := strconv.Atoi(yearStr)

	if len(yearStr) == 2 {
		year += 2000
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return model.Date{}, false
	}
	if year < 1990 || year > 2100 {
		return model.Date{}, false
	}

	d := model.NewDate(year, time.Month(month), day)
	// time.Date normalizes Feb 30 into March; reject those.
	if d.Day() != day || d.Month() != time.Month(month) {
		return model.Date{}, false
	}
	return d, true
}

// Found is one date located in text, in order of appearance.
type Found struct {
	Raw   string
	Date  model.Date
	Index int
}

// Find locates every parseable date in text, numeric and textual forms,
// sorted by position.
func Find(text string) []Found {
	folded := strings.ToLower(textnorm.Fold(text))

	var found []Found
	for _, loc := range numericDateRe.FindAllStringSubmatchIndex(folded, -1) {
		raw := folded[loc[0]:loc[1]]
		if d, ok := Parse(raw); ok {
			found = append(found, Found{Raw: raw, Date: d, Index: loc[0]})
		}
	}
	for _, loc := range textualDateRe.FindAllStringSubmatchIndex(folded, -1) {
		raw := folded[loc[0]:loc[1]]
		if d, ok := Parse(raw); ok {
			found = append(found, Found{Raw: raw, Date: d, Index: loc[0]})
		}
	}

	// Restore document order across both passes.
	for i := 1; i < len(found); i++ {
		for j := i; j > 0 && found[j].Index < found[j-1].Index; j-- {
			found[j], found[j-1] = found[j-1], found[j]
		}
	}
	return found
}

// roleLabels are scanned in order against the text window preceding each
// date; the first label that matches decides the role. Order matters:
// "date d'echeance" must beat the bare "echeance" used in folded text.
var roleLabels = []struct {
	role   string
	labels []string
}{
	{"contract_expiry_date", []string{"date d'echeance", "echeance du contrat", "fin de contrat", "jusqu'au", "expire le", "terme du contrat", "echeance"}},
	{"contract_start_date", []string{"debut de contrat", "prise d'effet", "effet au", "a compter du", "date d'effet"}},
	{"document_date", []string{"date de facture", "date de la facture", "facture du", "date d'emission", "emise le", "editee le", "etablie le"}},
}

// labelWindow is how far back (in bytes of folded text) a label may sit
// from the date it qualifies.
const labelWindow = 48

// Resolution carries the role-assigned dates for one document plus the
// reason each role was (or was not) filled.
type Resolution struct {
	DocumentDate   *model.Date
	ContractStart  *model.Date
	ContractExpiry *model.Date
	PeriodStart    *model.Date
	PeriodEnd      *model.Date
	Reasons        map[string]string
}

// Resolve finds every date in text and assigns roles from surrounding
// label context. When no labelled document date exists, the first date
// in the document fills that role; everything else stays nil.
func Resolve(text string) Resolution {
	res := Resolution{Reasons: make(map[string]string)}
	folded := strings.ToLower(textnorm.Fold(text))

	// Consumption period first: its two dates must not be mistaken for
	// document or contract dates.
	periodIdx := map[int]bool{}
	if m := periodRe.FindStringSubmatchIndex(folded); m != nil {
		startRaw := folded[m[2]:m[3]]
		endRaw := folded[m[4]:m[5]]
		if d, ok := Parse(startRaw); ok {
			res.PeriodStart = &d
			periodIdx[m[2]] = true
		}
		if d, ok := Parse(endRaw); ok {
			res.PeriodEnd = &d
			periodIdx[m[4]] = true
			res.Reasons["period"] = fmt.Sprintf("consumption period %s au %s", startRaw, endRaw)
		}
	}

	dates := Find(text)
	assigned := map[int]bool{}
	for _, f := range dates {
		if periodIdx[f.Index] {
			continue
		}

		start := f.Index - labelWindow
		if start < 0 {
			start = 0
		}
		window := folded[start:f.Index]

		role, label := matchRole(window)
		switch role {
		case "document_date":
			if res.DocumentDate == nil {
				d := f.Date
				res.DocumentDate = &d
				res.Reasons["document_date"] = fmt.Sprintf("labelled %q", label)
				assigned[f.Index] = true
			}
		case "contract_start_date":
			if res.ContractStart == nil {
				d := f.Date
				res.ContractStart = &d
				res.Reasons["contract_start_date"] = fmt.Sprintf("labelled %q", label)
				assigned[f.Index] = true
			}
		case "contract_expiry_date":
			if res.ContractExpiry == nil {
				d := f.Date
				res.ContractExpiry = &d
				res.Reasons["contract_expiry_date"] = fmt.Sprintf("labelled %q", label)
				assigned[f.Index] = true
			}
		}
	}

	if res.DocumentDate == nil && len(dates) > 0 {
		// Fall back to the first date that is neither a period bound nor
		// already claimed by a contract role.
		for _, f := range dates {
			if periodIdx[f.Index] || assigned[f.Index] {
				continue
			}
			d := f.Date
			res.DocumentDate = &d
			res.Reasons["document_date"] = fmt.Sprintf("first date in document (%s)", f.Raw)
			break
		}
	}
	if res.DocumentDate == nil {
		res.Reasons["document_date"] = "no date found"
	}

	return res
}

func matchRole(window string) (role, label string) {
	for _, rl := range roleLabels {
		for _, l := range rl.labels {
			if strings.Contains(window, l) {
				return rl.role, l
			}
		}
	}
	return "", ""
}

// EffectiveDate applies the conflict-resolution date policy: the
// document date when present, else the end of the consumption period,
// else nil. A nil effective date ranks below every non-nil one during
// deduplication.
func EffectiveDate(res Resolution) (*model.Date, string) {
	if res.DocumentDate != nil {
		return res.DocumentDate, "document date"
	}
	if res.PeriodEnd != nil {
		return res.PeriodEnd, "consumption period end"
	}
	return nil, "no usable date"
}
