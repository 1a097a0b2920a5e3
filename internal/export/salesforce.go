package export

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/enerdoc/facture-cli/internal/model"
	"github.com/enerdoc/facture-cli/internal/store"
	"github.com/enerdoc/facture-cli/pkg/salesforce"
)

// SalesforceSink syncs kept records into a configurable SObject, one
// Salesforce record per metering point keyed by the reference field.
type SalesforceSink struct {
	client   salesforce.Client
	object   string
	refField string
}

// NewSalesforceSink creates a sink targeting the given SObject. refField
// is the API name of the field holding the metering point reference.
func NewSalesforceSink(client salesforce.Client, object, refField string) *SalesforceSink {
	return &SalesforceSink{client: client, object: object, refField: refField}
}

// SalesforceReport counts what a sync pass did. Upserted covers the
// collection fast path; Created/Updated cover the per-record fallback.
type SalesforceReport struct {
	Upserted int `json:"upserted"`
	Created  int `json:"created"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// Push syncs records into the org. The SObject is described first: the
// reference field must exist, and when it is flagged as an external ID
// the whole set goes through the Collections upsert API in batches.
// Otherwise each record is resolved with a SOQL lookup and written
// individually. Records without a reference are skipped.
func (s *SalesforceSink) Push(ctx context.Context, records []store.StoredRecord) (SalesforceReport, error) {
	var report SalesforceReport

	desc, err := s.client.DescribeSObject(ctx, s.object)
	if err != nil {
		return report, eris.Wrap(err, "sf export: describe object")
	}
	refField := desc.Field(s.refField)
	if refField == nil {
		return report, eris.Errorf("sf export: %s has no field %s", s.object, s.refField)
	}

	var rows []map[string]any
	for i := range records {
		rec := &records[i].Record
		if !rec.HasReference() {
			report.Skipped++
			continue
		}
		rows = append(rows, s.fields(rec, desc))
	}

	if refField.ExternalID {
		return s.pushBulk(ctx, rows, report)
	}
	return s.pushOneByOne(ctx, rows, report)
}

func (s *SalesforceSink) pushBulk(ctx context.Context, rows []map[string]any, report SalesforceReport) (SalesforceReport, error) {
	results, err := salesforce.BulkUpsert(ctx, s.client, s.object, s.refField, rows)
	for _, r := range results {
		if r.Success {
			report.Upserted++
			continue
		}
		report.Failed++
		zap.L().Warn("sf export: upsert rejected",
			zap.String("object", s.object),
			zap.Strings("errors", r.Errors))
	}
	if err != nil {
		return report, eris.Wrap(err, "sf export: bulk upsert")
	}
	return report, nil
}

func (s *SalesforceSink) pushOneByOne(ctx context.Context, rows []map[string]any, report SalesforceReport) (SalesforceReport, error) {
	for _, row := range rows {
		ref, _ := row[s.refField].(string)

		id, err := salesforce.FindIDByReference(ctx, s.client, s.object, s.refField, ref)
		if err != nil {
			report.Failed++
			zap.L().Warn("sf export: lookup failed", zap.String("reference", ref), zap.Error(err))
			continue
		}

		if id == "" {
			if _, err := salesforce.CreateMeteringPoint(ctx, s.client, s.object, s.refField, row); err != nil {
				report.Failed++
				zap.L().Warn("sf export: create failed", zap.String("reference", ref), zap.Error(err))
				continue
			}
			report.Created++
			continue
		}

		if err := salesforce.UpdateMeteringPoint(ctx, s.client, s.object, id, row); err != nil {
			report.Failed++
			zap.L().Warn("sf export: update failed", zap.String("reference", ref), zap.Error(err))
			continue
		}
		report.Updated++
	}
	return report, nil
}

// fields builds the write payload for one record, using the conventional
// custom field API names of the target org. Only fields the SObject
// actually defines are included, so the sink works against a minimal
// object that carries nothing but the reference.
func (s *SalesforceSink) fields(r *model.EnergyInvoiceRecord, desc *salesforce.SObjectDescription) map[string]any {
	row := map[string]any{s.refField: *r.EnergyReference}

	put := func(field, value string) {
		if value != "" && desc.Field(field) != nil {
			row[field] = value
		}
	}

	put("Nom_Site__c", strCell(r.SiteName))
	put("Type_Reference__c", refTypeCell(r.EnergyReferenceType))
	put("Adresse__c", strCell(r.AddressConsumption))
	put("Code_Postal__c", strCell(r.PostalCode))
	put("Commune__c", strCell(r.City))
	put("Segment_Energie__c", segmentCell(r.EnergySegment))
	if r.RegulatedTariff != nil {
		put("Tarif_Reglemente__c", string(*r.RegulatedTariff))
	}
	put("Date_Facture__c", dateCell(r.DocumentDate))
	put("Debut_Contrat__c", dateCell(r.ContractStartDate))
	put("Date_Echeance_Contrat__c", dateCell(r.ContractExpiryDate))
	put("Preavis_Resiliation__c", strCell(r.TerminationNotice))
	put("Conditions_Renouvellement__c", strCell(r.RenewalTerms))
	put("Fournisseur__c", strCell(r.Supplier))
	put("SIREN_SIRET__c", strCell(r.ClientSirenSiret))
	put("Offres__c", strings.Join(r.OfferTags, "; "))

	return row
}
