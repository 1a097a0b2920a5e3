package assist

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode/utf8"

	"github.com/enerdoc/facture-cli/internal/model"
)

// Reply keys double as the JSON keys the model is asked to produce.
// They match the record's JSON field names so journal entries read the
// same whichever tier wrote them.
const (
	keyReference     = "energy_reference"
	keyReferenceType = "energy_reference_type"
	keyDocumentDate  = "document_date"
	keySupplier      = "supplier"
	keySiteName      = "site_name"
	keyPostalCode    = "postal_code"
	keyCity          = "city"
	keyContractStart = "contract_start_date"
	keyContractEnd   = "contract_expiry_date"
)

// systemPrompt frames the task. The response contract (strict JSON,
// null for absent values, no invention) lives here so every request
// shares the block and it can be cached.
const systemPrompt = `Tu es un analyste spécialisé dans les factures d'énergie françaises (électricité et gaz).
On te fournit le texte brut d'une facture dont certains champs n'ont pas pu être déterminés automatiquement.

Règles:
- Réponds UNIQUEMENT par un objet JSON strict, sans aucun texte autour.
- L'objet contient exactement les clés demandées, plus une clé "confidence" entre 0 et 1.
- Utilise null quand l'information ne figure pas dans le document. N'invente jamais de valeur.
- Les dates sont au format AAAA-MM-JJ.
- Les numéros (PDL, PRM, PCE, code postal) sont des chaînes de chiffres, sans espaces.`

// fieldSpec describes one field the model may be asked for: its reply
// key, the French description shown in the prompt, and the null check
// that puts it on the missing list.
type fieldSpec struct {
	key   string
	ask   string
	unset func(*model.EnergyInvoiceRecord) bool
}

// assistFields lists every askable field in prompt order. The
// reference and its type travel together: both stay null until
// validation accepts the pair.
var assistFields = []fieldSpec{
	{
		key:   keyReference,
		ask:   "numéro du point de livraison ou de comptage (PDL, PRM ou PCE), exactement 14 chiffres",
		unset: func(r *model.EnergyInvoiceRecord) bool { return !r.HasReference() },
	},
	{
		key:   keyReferenceType,
		ask:   `type de la référence: "PCE", "PDL" ou "PRM"`,
		unset: func(r *model.EnergyInvoiceRecord) bool { return !r.HasReference() },
	},
	{
		key:   keyDocumentDate,
		ask:   "date d'émission de la facture, format AAAA-MM-JJ",
		unset: func(r *model.EnergyInvoiceRecord) bool { return r.DocumentDate == nil },
	},
	{
		key:   keySupplier,
		ask:   "nom du fournisseur d'énergie",
		unset: func(r *model.EnergyInvoiceRecord) bool { return r.Supplier == nil },
	},
	{
		key:   keySiteName,
		ask:   "nom du site ou de l'établissement facturé",
		unset: func(r *model.EnergyInvoiceRecord) bool { return r.SiteName == nil },
	},
	{
		key:   keyPostalCode,
		ask:   "code postal du lieu de consommation, 5 chiffres",
		unset: func(r *model.EnergyInvoiceRecord) bool { return r.PostalCode == nil },
	},
	{
		key:   keyCity,
		ask:   "commune du lieu de consommation",
		unset: func(r *model.EnergyInvoiceRecord) bool { return r.City == nil },
	},
	{
		key:   keyContractStart,
		ask:   "date de début du contrat, format AAAA-MM-JJ",
		unset: func(r *model.EnergyInvoiceRecord) bool { return r.ContractStartDate == nil },
	},
	{
		key:   keyContractEnd,
		ask:   "date d'échéance ou de fin du contrat, format AAAA-MM-JJ",
		unset: func(r *model.EnergyInvoiceRecord) bool { return r.ContractExpiryDate == nil },
	},
}

// missingFields returns the specs for every field still null on rec,
// in prompt order.
func missingFields(rec *model.EnergyInvoiceRecord) []fieldSpec {
	var out []fieldSpec
	for _, f := range assistFields {
		if f.unset(rec) {
			out = append(out, f)
		}
	}
	return out
}

// buildUserMessage lists the missing fields and appends the document
// text.
func buildUserMessage(fields []fieldSpec, text string) string {
	var sb strings.Builder
	sb.WriteString("Champs manquants à extraire:\n")
	for _, f := range fields {
		sb.WriteString("- \"")
		sb.WriteString(f.key)
		sb.WriteString("\": ")
		sb.WriteString(f.ask)
		sb.WriteString("\n")
	}
	sb.WriteString("\nTexte de la facture:\n---\n")
	sb.WriteString(text)
	sb.WriteString("\n---")
	return sb.String()
}

// cacheKey digests the model and the full request text. Two documents
// with the same text but different missing fields prompt differently,
// so keying on the final prompt is what makes a hit safe to replay.
func cacheKey(model, prompt string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + prompt))
	return hex.EncodeToString(sum[:])
}

// clip truncates text to at most n bytes without splitting a rune.
func clip(text string, n int) string {
	if n <= 0 || len(text) <= n {
		return text
	}
	for n > 0 && !utf8.RuneStart(text[n]) {
		n--
	}
	return text[:n]
}
