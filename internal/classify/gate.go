package classify

import (
	"strings"

	"github.com/enerdoc/facture-cli/internal/textnorm"
)

// ignoredFilenamePatterns lists vendors whose documents share the invoice
// drops but are never energy invoices (maintenance, roofing, cleaning).
// Matching is case-insensitive containment on the file name.
var ignoredFilenamePatterns = []string{
	"abypas",
	"adi incendie",
	"adi sas",
	"albasini",
	"tmd securite",
	"secat",
	"scem",
	"sani chauff",
	"s.p.m. nicolai",
	"rym",
	"riva paysages",
	"renovtoiture",
	"plagnol nettoyage",
	"nordtherm_",
	"my renovation et neuf",
	"long chauffage",
	"h.saint paul",
	"gesten",
	"gazflash",
	"albert & fils",
	"bouvier",
	"disdero",
	"delostal",
	"charles pereira",
}

// IgnoredFilename reports whether a file name matches a known non-energy
// vendor pattern, and which pattern fired.
func IgnoredFilename(name string) (string, bool) {
	lower := strings.ToLower(name)
	for _, p := range ignoredFilenamePatterns {
		if strings.Contains(lower, p) {
			return p, true
		}
	}
	return "", false
}

// gateSuppliers are the issuer and grid-operator names that, combined with
// invoice wording, mark a document as an energy invoice.
var gateSuppliers = []string{"EDF", "ENGIE", "GAZ EUROPEEN", "GAZ DE PARIS", "ENEDIS", "GRDF"}

// gateMeterKeywords are the metering-point labels used as a fallback when
// no known supplier name appears.
var gateMeterKeywords = []string{"POINT DE LIVRAISON", "POINT DE COMPTAGE", "PCE", "PDL", "PRM"}

// IsEnergyInvoice decides whether text reads like a French energy invoice:
// either a known supplier name next to invoice wording, or a metering-point
// label together with any FACT-prefixed word.
func IsEnergyInvoice(text string) bool {
	canon := textnorm.Canon(text)
	for _, s := range gateSuppliers {
		if strings.Contains(canon, s) {
			if strings.Contains(canon, "FACTURE") || strings.Contains(canon, "FACTURATION") {
				return true
			}
			break
		}
	}
	for _, k := range gateMeterKeywords {
		if strings.Contains(canon, k) {
			return strings.Contains(canon, "FACT")
		}
	}
	return false
}

// Relevance runs the full gate for one document. A false result carries the
// reason the document was set aside; relevant documents return (true, "").
func Relevance(filename, text string) (bool, string) {
	if p, ok := IgnoredFilename(filename); ok {
		return false, "filename matches ignore pattern " + p
	}
	if strings.TrimSpace(text) == "" {
		return false, "no text layer"
	}
	if !IsEnergyInvoice(text) {
		return false, "no energy invoice wording"
	}
	return true, ""
}
