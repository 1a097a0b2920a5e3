// Package assemble is the per-document unit of work: it runs extraction,
// classification, date resolution and validation over one relevant
// document and emits exactly one record plus one journal entry. Invariant
// violations null the offending field with a journal reason; nothing a
// single document contains can make assembly fail.
package assemble

import (
	"fmt"

	"github.com/enerdoc/facture-cli/internal/classify"
	"github.com/enerdoc/facture-cli/internal/extract"
	"github.com/enerdoc/facture-cli/internal/frdate"
	"github.com/enerdoc/facture-cli/internal/model"
	"github.com/enerdoc/facture-cli/internal/profile"
	"github.com/enerdoc/facture-cli/internal/textnorm"
	"github.com/enerdoc/facture-cli/internal/validate"
)

// Result bundles the assembled record, its journal, and the effective
// date the deduplication index orders by.
type Result struct {
	Record        *model.EnergyInvoiceRecord
	Journal       *model.ExtractionJournal
	EffectiveDate *model.Date
}

// Assemble builds the record for one relevant document. It is pure:
// no I/O, deterministic for a given document and profile.
func Assemble(doc model.SourceDocument, prof profile.Profile) Result {
	journal := model.NewJournal(doc.Name)
	record := &model.EnergyInvoiceRecord{}

	draft := extract.Extract(doc.Text, prof.ReferenceLabels)
	if draft.Empty {
		journal.Note("document", 0, "no text")
		return Result{Record: record, Journal: journal}
	}

	keywordSeg, segKeyword := classify.EnergySegment(doc.Text)

	// Adjudication may consult the keyword segment, never one implied by
	// a reference type: the reference cannot arbitrate for itself.
	outcome := resolveReference(draft, keywordSeg)
	record.EnergyReference = outcome.Reference
	record.EnergyReferenceType = outcome.Type
	record.EnergyReferenceLength = outcome.Length
	journal.Note("energy_reference", outcome.Confidence, outcome.Reason)
	if record.EnergyReference != nil {
		journal.ReferenceKey = textnorm.ReferenceKey(*record.EnergyReference)
	}

	switch {
	case keywordSeg != nil:
		record.EnergySegment = keywordSeg
		journal.Note("energy_segment", 0.85, fmt.Sprintf("keyword %s", segKeyword))
	case record.EnergyReferenceType != nil:
		seg := record.EnergyReferenceType.Segment()
		record.EnergySegment = &seg
		journal.Note("energy_segment", 0.7, fmt.Sprintf("implied by reference type %s", *record.EnergyReferenceType))
	case prof.Segment() != nil:
		record.EnergySegment = prof.Segment()
		journal.Note("energy_segment", 0.6, "supplier profile default")
	default:
		journal.Note("energy_segment", 0, "no segment evidence")
	}

	if tariff, label := classify.TariffSegment(doc.Text); tariff != nil {
		if record.EnergySegment != nil && !tariff.ConsistentWith(*record.EnergySegment) {
			journal.Note("tariff_segment", 0, fmt.Sprintf("tariff %s inconsistent with segment %s", label, *record.EnergySegment))
		} else {
			record.TariffSegment = tariff
			journal.Note("tariff_segment", 0.85, fmt.Sprintf("tariff label %s", label))
		}
	} else {
		journal.Note("tariff_segment", 0, "no tariff label")
	}

	if tags, fromVocab := classify.OfferTags(doc.Text); len(tags) > 0 {
		for _, tag := range tags {
			record.AddOfferTag(tag)
		}
		if fromVocab {
			journal.Note("offer_tags", 0.85, fmt.Sprintf("%d vocabulary labels", len(tags)))
		} else {
			journal.Note("offer_tags", 0.5, "unclassified offer wording")
		}
	}

	if reg, wording := classify.Regulated(doc.Text); reg != nil {
		record.RegulatedTariff = reg
		journal.Note("regulated_tariff", 0.9, fmt.Sprintf("explicit wording %s", wording))
	} else {
		journal.Note("regulated_tariff", 0, "no explicit wording")
	}

	resolveSupplier(doc, record, journal)
	resolveAddresses(draft, record, journal)
	resolveIdentity(draft, record, journal)

	dates := frdate.Resolve(doc.Text)
	resolveDates(dates, record, journal)

	eff, effReason := frdate.EffectiveDate(dates)
	journal.Note("effective_date", effectiveConfidence(eff), effReason)

	return Result{Record: record, Journal: journal, EffectiveDate: eff}
}

// resolveReference adjudicates the typed candidates and validates the
// winner. An adjudication dead end falls back to the untyped digit run
// so the journal can still say what the document carried.
func resolveReference(draft extract.Draft, segment *model.EnergySegment) validate.ReferenceOutcome {
	winner, ok, adjReason := validate.Adjudicate(draft.References, segment)
	if ok {
		out := validate.Reference(winner.Raw, winner.Context, &winner.Type)
		if out.Reference != nil && len(draft.References) > 1 {
			out.Reason = fmt.Sprintf("%s (%s)", out.Reason, adjReason)
		}
		return out
	}
	if adjReason == "ambiguous" {
		return validate.ReferenceOutcome{Reason: "ambiguous"}
	}
	if draft.UntypedReference.Found() {
		return validate.Reference(draft.UntypedReference.Value, draft.UntypedReference.Rule, nil)
	}
	return validate.ReferenceOutcome{Reason: adjReason}
}

func resolveSupplier(doc model.SourceDocument, record *model.EnergyInvoiceRecord, journal *model.ExtractionJournal) {
	name, score := classify.IdentifySupplier(doc.Text)
	switch {
	case name != "":
		record.Supplier = &name
		journal.Note("supplier", score, "known supplier match")
	case doc.SupplierHint != "":
		hint := doc.SupplierHint
		record.Supplier = &hint
		journal.Note("supplier", 0.6, "filename profile")
	default:
		journal.Note("supplier", 0, "no supplier identified")
	}
}

func resolveAddresses(draft extract.Draft, record *model.EnergyInvoiceRecord, journal *model.ExtractionJournal) {
	if draft.AddressConsumption.Found() {
		record.AddressConsumption = draft.AddressConsumption.Ptr()
		journal.Note("address_consumption", draft.AddressConsumption.Confidence, draft.AddressConsumption.Rule)
	}
	if draft.AddressBilling.Found() {
		record.AddressBilling = draft.AddressBilling.Ptr()
		journal.Note("address_billing", draft.AddressBilling.Confidence, draft.AddressBilling.Rule)
	}

	postal, conf, reason := pickPostal(draft)
	switch {
	case postal == "":
		journal.Note("postal_code", 0, "no postal code found")
	case !validate.PostalCode(postal):
		journal.Note("postal_code", 0, fmt.Sprintf("postal code %q not 5 digits", postal))
	default:
		record.PostalCode = &postal
		journal.Note("postal_code", conf, reason)
	}

	city, cityConf, cityReason := pickCity(draft)
	if city == "" {
		journal.Note("city", 0, "no city found")
	} else {
		norm := textnorm.NormalizeCity(city)
		record.City = &norm
		journal.Note("city", cityConf, cityReason)
	}

	if draft.SiteName.Found() {
		record.SiteName = draft.SiteName.Ptr()
		journal.Note("site_name", draft.SiteName.Confidence, draft.SiteName.Rule)
	}
}

// pickPostal prefers the explicitly labelled postal code over a token
// embedded in address text; a disagreement between the two is carried in
// the reason.
func pickPostal(draft extract.Draft) (string, float64, string) {
	labelled, embedded := draft.PostalCode, draft.EmbeddedPostal
	switch {
	case labelled.Found() && embedded.Found() && labelled.Value != embedded.Value:
		return labelled.Value, labelled.Confidence,
			fmt.Sprintf("%s (address carries %s)", labelled.Rule, embedded.Value)
	case labelled.Found():
		return labelled.Value, labelled.Confidence, labelled.Rule
	case embedded.Found():
		return embedded.Value, embedded.Confidence, embedded.Rule
	default:
		return "", 0, ""
	}
}

func pickCity(draft extract.Draft) (string, float64, string) {
	if draft.City.Found() {
		return draft.City.Value, draft.City.Confidence, draft.City.Rule
	}
	if draft.EmbeddedCity.Found() {
		return draft.EmbeddedCity.Value, draft.EmbeddedCity.Confidence, draft.EmbeddedCity.Rule
	}
	return "", 0, ""
}

func resolveIdentity(draft extract.Draft, record *model.EnergyInvoiceRecord, journal *model.ExtractionJournal) {
	if draft.SirenSiret.Found() {
		digits := textnorm.Digits(draft.SirenSiret.Value)
		if validate.SirenSiret(digits) {
			record.ClientSirenSiret = &digits
			journal.Note("client_siren_siret", draft.SirenSiret.Confidence, draft.SirenSiret.Rule)
		} else {
			journal.Note("client_siren_siret", 0, fmt.Sprintf("SIREN/SIRET length %d, expected 9 or 14", len(digits)))
		}
	} else {
		journal.Note("client_siren_siret", 0, "no SIREN/SIRET found")
	}

	if draft.TerminationNotice.Found() {
		record.TerminationNotice = draft.TerminationNotice.Ptr()
		journal.Note("termination_notice", draft.TerminationNotice.Confidence, draft.TerminationNotice.Rule)
	}
	if draft.RenewalTerms.Found() {
		record.RenewalTerms = draft.RenewalTerms.Ptr()
		journal.Note("renewal_terms", draft.RenewalTerms.Confidence, draft.RenewalTerms.Rule)
	}
}

func resolveDates(dates frdate.Resolution, record *model.EnergyInvoiceRecord, journal *model.ExtractionJournal) {
	record.DocumentDate = dates.DocumentDate
	journal.Note("document_date", dateConfidence(dates.Reasons["document_date"]), dates.Reasons["document_date"])

	if dates.ContractStart != nil {
		record.ContractStartDate = dates.ContractStart
		journal.Note("contract_start_date", 0.85, dates.Reasons["contract_start_date"])
	}
	if dates.ContractExpiry != nil {
		record.ContractExpiryDate = dates.ContractExpiry
		journal.Note("contract_expiry_date", 0.85, dates.Reasons["contract_expiry_date"])
	}
}

func dateConfidence(reason string) float64 {
	switch {
	case reason == "no date found" || reason == "":
		return 0
	case len(reason) >= 8 && reason[:8] == "labelled":
		return 0.9
	default:
		return 0.6
	}
}

func effectiveConfidence(eff *model.Date) float64 {
	if eff == nil {
		return 0
	}
	return 0.8
}
