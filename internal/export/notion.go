package export

import (
	"context"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/enerdoc/facture-cli/internal/model"
	"github.com/enerdoc/facture-cli/internal/store"
	"github.com/enerdoc/facture-cli/pkg/notion"
)

// Notion property names. The title property carries the site name; the
// reference lives in its own rich_text property so a page stays keyed
// even when the site name changes between invoices.
const (
	notionTitleProp = "Nom du site"
	notionRefProp   = "Référence Point d'Énergie"
)

// NotionSink publishes kept records into a Notion database, one page per
// metering point keyed by its reference.
type NotionSink struct {
	client notion.Client
	dbID   string
}

// NewNotionSink creates a sink targeting the given database.
func NewNotionSink(client notion.Client, databaseID string) *NotionSink {
	return &NotionSink{client: client, dbID: databaseID}
}

// NotionReport counts what a publish pass did.
type NotionReport struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Publish upserts one page per record. Existing pages are matched by
// reference through a single paginated index query up front, so a sync
// of n records costs at most n+1 write round trips. Records without a
// reference are skipped: they cannot be keyed, and re-exporting them
// would duplicate pages. Per-page failures are logged and counted, not
// fatal.
func (s *NotionSink) Publish(ctx context.Context, records []store.StoredRecord) (NotionReport, error) {
	var report NotionReport

	index, err := notion.IndexByProperty(ctx, s.client, s.dbID, notionRefProp)
	if err != nil {
		return report, eris.Wrap(err, "notion export: index pages")
	}

	for i := range records {
		rec := &records[i].Record
		if !rec.HasReference() {
			report.Skipped++
			continue
		}
		ref := *rec.EnergyReference
		props := notionProperties(rec)

		if pageID, ok := index[ref]; ok {
			_, err := s.client.UpdatePage(ctx, pageID, &notionapi.PageUpdateRequest{Properties: props})
			if err != nil {
				report.Failed++
				zap.L().Warn("notion export: update page failed",
					zap.String("reference", ref),
					zap.Error(err))
				continue
			}
			report.Updated++
			continue
		}

		_, err := s.client.CreatePage(ctx, &notionapi.PageCreateRequest{
			Parent: notionapi.Parent{
				Type:       notionapi.ParentTypeDatabaseID,
				DatabaseID: notionapi.DatabaseID(s.dbID),
			},
			Properties: props,
		})
		if err != nil {
			report.Failed++
			zap.L().Warn("notion export: create page failed",
				zap.String("reference", ref),
				zap.Error(err))
			continue
		}
		report.Created++
	}

	return report, nil
}

// notionProperties maps a record onto database properties. Absent fields
// are omitted so they keep whatever value the page already has.
func notionProperties(r *model.EnergyInvoiceRecord) notionapi.Properties {
	props := notionapi.Properties{
		notionTitleProp: notion.Title(pageTitle(r)),
		notionRefProp:   notion.Text(strCell(r.EnergyReference)),
	}

	if r.EnergyReferenceType != nil {
		props["Type de référence"] = notion.SelectOption(string(*r.EnergyReferenceType))
	}
	if r.AddressConsumption != nil {
		props["Adresse"] = notion.Text(*r.AddressConsumption)
	}
	if r.PostalCode != nil {
		props["Code postal"] = notion.Text(*r.PostalCode)
	}
	if r.City != nil {
		props["Commune"] = notion.Text(*r.City)
	}
	if r.EnergySegment != nil {
		props["Segment énergie"] = notion.SelectOption(string(*r.EnergySegment))
	}
	if r.RegulatedTariff != nil {
		props["Tarif réglementé"] = notion.SelectOption(string(*r.RegulatedTariff))
	}
	if r.DocumentDate != nil {
		props["Date de facture"] = notion.DateValue(r.DocumentDate.Time)
	}
	if r.ContractStartDate != nil {
		props["Début de contrat"] = notion.DateValue(r.ContractStartDate.Time)
	}
	if r.ContractExpiryDate != nil {
		props["Date d'échéance du contrat"] = notion.DateValue(r.ContractExpiryDate.Time)
	}
	if r.TerminationNotice != nil {
		props["Préavis de résiliation"] = notion.Text(*r.TerminationNotice)
	}
	if r.RenewalTerms != nil {
		props["Conditions de renouvellement"] = notion.Text(*r.RenewalTerms)
	}
	if r.Supplier != nil {
		props["Fournisseur"] = notion.SelectOption(*r.Supplier)
	}
	if r.ClientSirenSiret != nil {
		props["SIREN/SIRET"] = notion.Text(*r.ClientSirenSiret)
	}
	if len(r.OfferTags) > 0 {
		props["Offres"] = notion.Text(strings.Join(r.OfferTags, "; "))
	}

	return props
}

// pageTitle picks the page title: site name, else the reference.
func pageTitle(r *model.EnergyInvoiceRecord) string {
	if r.SiteName != nil && *r.SiteName != "" {
		return *r.SiteName
	}
	if r.EnergyReference != nil {
		return *r.EnergyReference
	}
	return ""
}
