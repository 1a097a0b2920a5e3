package classify

import (
	"strings"

	"github.com/enerdoc/facture-cli/internal/textnorm"
)

// Supplier pairs a canonical display name with the spellings seen on
// invoices and in drop filenames.
type Supplier struct {
	Name     string
	Variants []string
}

// KnownSuppliers is the closed supplier list. Display names are the exact
// strings written to records and exports.
var KnownSuppliers = []Supplier{
	{Name: "EDF", Variants: []string{"EDF", "ELECTRICITE DE FRANCE"}},
	{Name: "ENGIE", Variants: []string{"ENGIE"}},
	{Name: "TOTAL ENERGIES", Variants: []string{"TOTAL ENERGIES", "TOTALENERGIES"}},
	{Name: "GAZ EUROPEEN", Variants: []string{"GAZ EUROPEEN"}},
	{Name: "GAZ DE PARIS", Variants: []string{"GAZ DE PARIS"}},
	{Name: "GAZ BORDEAUX", Variants: []string{"GAZ BORDEAUX", "GAZ DE BORDEAUX"}},
	{Name: "GAZ TARIF REGLEMENTE", Variants: []string{"GAZ TARIF REGLEMENTE"}},
	{Name: "GAZ TARIF RECOUVREMENT", Variants: []string{"GAZ TARIF RECOUVREMENT"}},
	{Name: "GAZ DE FRANCE PROVALYS", Variants: []string{"GAZ DE FRANCE PROVALYS", "GAZ DE FRANCE"}},
	{Name: "SEFE", Variants: []string{"SEFE", "SEFE ENERGY"}},
}

// supplierThreshold is the minimum similarity for a fuzzy supplier match.
const supplierThreshold = 0.8

// IdentifySupplier resolves the issuing supplier from document text.
// Exact variant containment scores 1.0, containment after stripping spaces
// scores 0.9, otherwise the best per-line token similarity is used. Returns
// ("", score) when nothing reaches the threshold.
func IdentifySupplier(text string) (string, float64) {
	canon := textnorm.Canon(text)
	packed := strings.ReplaceAll(canon, " ", "")
	lines := strings.Split(text, "\n")

	bestName, bestScore := "", 0.0
	for _, s := range KnownSuppliers {
		score := supplierScore(canon, packed, lines, s)
		if score > bestScore {
			bestName, bestScore = s.Name, score
		}
	}
	if bestScore < supplierThreshold {
		return "", bestScore
	}
	return bestName, bestScore
}

func supplierScore(canon, packed string, lines []string, s Supplier) float64 {
	best := 0.0
	for _, v := range s.Variants {
		if containsVariant(canon, v) {
			return 1.0
		}
		// OCR often drops the spaces of multi-word names; single-word
		// names stay on token boundaries to avoid substring hits.
		if strings.Contains(v, " ") && strings.Contains(packed, strings.ReplaceAll(v, " ", "")) {
			if best < 0.9 {
				best = 0.9
			}
			continue
		}
		for _, line := range lines {
			if sim := textnorm.TokenJaccard(v, line); sim > best {
				best = sim
			}
		}
	}
	return best
}

// MatchesKnownSupplier reports whether a line names a known supplier
// outright. The site-name heuristic uses it to skip letterhead lines.
func MatchesKnownSupplier(line string) bool {
	canon := textnorm.Canon(line)
	for _, s := range KnownSuppliers {
		for _, v := range s.Variants {
			if containsVariant(canon, v) {
				return true
			}
		}
	}
	return false
}

// containsVariant matches a variant on token boundaries so a short name
// like EDF cannot fire inside an unrelated word.
func containsVariant(canon, variant string) bool {
	if strings.Contains(variant, " ") {
		return strings.Contains(canon, variant)
	}
	for _, tok := range strings.FieldsFunc(canon, func(r rune) bool {
		return !('A' <= r && r <= 'Z' || '0' <= r && r <= '9')
	}) {
		if tok == variant {
			return true
		}
	}
	return false
}
