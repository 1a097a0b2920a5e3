// Package export writes kept records to the delivery surfaces: JSONL and
// CSV/XLSX files for brokers, Notion pages and Salesforce objects for CRM
// sync. Sinks receive kept records only; superseded ones stay in the
// store for audit.
package export

import (
	"strings"

	"github.com/enerdoc/facture-cli/internal/model"
)

// Columns defines the ordered output columns shared by the CSV and XLSX
// writers. The names follow the broker template.
var Columns = []string{
	"Nom du site",
	"Référence Point d'Énergie",
	"Type de référence",
	"Adresse",
	"Code postal",
	"Commune",
	"Segment énergie",
	"Tarif réglementé (Oui/Non)",
	"Date de facture",
	"Début de contrat",
	"Date d'échéance du contrat",
	"Préavis de résiliation",
	"Conditions de renouvellement",
	"Fournisseur",
	"SIREN/SIRET",
	"Offres",
}

// Row maps a record to its output cells, in Columns order. Absent values
// become empty cells; the regulated tariff cell is forced to Oui/Non
// because the broker template has no unknown state.
func Row(r *model.EnergyInvoiceRecord) []string {
	return []string{
		strCell(r.SiteName),                // Nom du site
		strCell(r.EnergyReference),         // Référence Point d'Énergie
		refTypeCell(r.EnergyReferenceType), // Type de référence
		strCell(r.AddressConsumption),      // Adresse
		strCell(r.PostalCode),              // Code postal
		strCell(r.City),                    // Commune
		segmentCell(r.EnergySegment),       // Segment énergie
		regulatedCell(r.RegulatedTariff),   // Tarif réglementé (Oui/Non)
		dateCell(r.DocumentDate),           // Date de facture
		dateCell(r.ContractStartDate),      // Début de contrat
		dateCell(r.ContractExpiryDate),     // Date d'échéance du contrat
		strCell(r.TerminationNotice),       // Préavis de résiliation
		strCell(r.RenewalTerms),            // Conditions de renouvellement
		strCell(r.Supplier),                // Fournisseur
		strCell(r.ClientSirenSiret),        // SIREN/SIRET
		strings.Join(r.OfferTags, "; "),    // Offres
	}
}

func strCell(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func dateCell(d *model.Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func refTypeCell(t *model.ReferenceType) string {
	if t == nil {
		return ""
	}
	return string(*t)
}

func segmentCell(s *model.EnergySegment) string {
	if s == nil {
		return ""
	}
	return string(*s)
}

func regulatedCell(r *model.RegulatedTariff) string {
	if r != nil && *r == model.RegulatedYes {
		return "Oui"
	}
	return "Non"
}
