package extract

import (
	"strings"

	"github.com/enerdoc/facture-cli/internal/validate"
)

// Draft is the raw harvest from one document before validation and
// assembly. Unset fields stay zero. PostalCode and City hold explicitly
// labelled values; EmbeddedPostal and EmbeddedCity hold tokens found
// inside address text, kept apart so the assembler can prefer the label
// and journal disagreements.
type Draft struct {
	SiteName           Field
	AddressConsumption Field
	AddressBilling     Field
	PostalCode         Field
	City               Field
	EmbeddedPostal     Field
	EmbeddedCity       Field
	SirenSiret         Field
	TerminationNotice  Field
	RenewalTerms       Field
	References         []validate.RefCandidate
	UntypedReference   Field
	Blocks             []Block
	Empty              bool
}

// Extract runs the ordered rule lists over one document's text. It is a
// pure function: the same text and profile labels always produce the
// same draft, and no input makes it fail. Empty text yields a draft with
// Empty set and every field unset.
func Extract(text string, profileLabels []string) Draft {
	if strings.TrimSpace(text) == "" {
		return Draft{Empty: true}
	}

	blocks := LocateBlocks(text, profileLabels)
	docLines := strings.Split(text, "\n")

	d := Draft{Blocks: blocks}
	d.References, d.UntypedReference = collectReferences(docLines, blocks, profileLabels)
	d.SirenSiret = applyRules(sirenRules, blocks, docLines)
	d.TerminationNotice = applyRules(terminationRules, blocks, docLines)
	d.RenewalTerms = applyRules(renewalRules, blocks, docLines)
	extractAddresses(&d, blocks, docLines)
	return d
}
