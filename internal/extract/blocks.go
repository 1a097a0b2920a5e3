// Package extract pulls raw field values out of invoice text. It never
// fails: any input yields a Draft, possibly with every field unset. Rules
// per field are explicit ordered lists; the first satisfying match wins.
// Block locators scope the search to the region of the document where a
// field normally lives, with whole-document matching as the fallback when
// no block was found.
package extract

import (
	"regexp"
	"strings"

	"github.com/enerdoc/facture-cli/internal/textnorm"
)

// BlockKind names the invoice regions the locators recognize.
type BlockKind string

const (
	// BlockClient holds billing identity: client name, billing address,
	// SIREN/SIRET.
	BlockClient BlockKind = "client"
	// BlockDelivery holds the supply point: consumption address and the
	// metering reference.
	BlockDelivery BlockKind = "delivery"
	// BlockMetering holds meter readings and the reference on gas bills.
	BlockMetering BlockKind = "metering"
)

// Block is one located region: the label line that opened it plus the
// following lines up to a blank line, another label, or the window cap.
type Block struct {
	Kind  BlockKind
	Label string
	Line  int
	Text  string
}

// blockWindow caps how many lines after the label belong to a block.
const blockWindow = 8

type blockLabel struct {
	kind BlockKind
	name string
	re   *regexp.Regexp
}

// blockLabels are matched against each line in order; more specific
// labels come before generic ones so ties resolve to the most specific
// header.
var blockLabels = []blockLabel{
	{BlockClient, "VOS INFORMATIONS CLIENT", LabelPattern("VOS INFORMATIONS CLIENT")},
	{BlockClient, "INFORMATIONS CLIENT", LabelPattern("INFORMATIONS CLIENT")},
	{BlockClient, "TITULAIRE DU CONTRAT", LabelPattern("TITULAIRE DU CONTRAT")},
	{BlockClient, "ADRESSE DE FACTURATION", LabelPattern("ADRESSE DE FACTURATION")},
	{BlockDelivery, "POINT DE LIVRAISON", LabelPattern("POINT DE LIVRAISON")},
	{BlockDelivery, "ADRESSE DE CONSOMMATION", LabelPattern("ADRESSE DE CONSOMMATION")},
	{BlockDelivery, "LIEU DE CONSOMMATION", LabelPattern("LIEU DE CONSOMMATION")},
	{BlockDelivery, "SITE DE CONSOMMATION", LabelPattern("SITE DE CONSOMMATION")},
	{BlockMetering, "DONNEES DE COMPTAGE", LabelPattern("DONNEES DE COMPTAGE")},
	{BlockMetering, "POINT DE COMPTAGE", LabelPattern("POINT DE COMPTAGE")},
}

// accentClasses expands unaccented letters so label patterns match both
// the accented print form and its folded OCR renditions.
var accentClasses = map[rune]string{
	'A': "[aàâä]",
	'C': "[cç]",
	'E': "[eéèêë]",
	'I': "[iîï]",
	'O': "[oôö]",
	'U': "[uùûü]",
}

// LabelPattern compiles an uppercase unaccented label into a raw-text
// matcher tolerant of case, accents, apostrophe variants, flexible
// whitespace, and an optional degree sign after N.
func LabelPattern(label string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString(`(?i)`)
	for _, r := range label {
		switch {
		case r == ' ':
			b.WriteString(`\s+`)
		case r == '\'':
			b.WriteString("['’]")
		case r == '°':
			b.WriteString(`\s*(?:°|º|o\b)?\s*`)
		case accentClasses[r] != "":
			b.WriteString(accentClasses[r])
		default:
			b.WriteString(regexp.QuoteMeta(strings.ToLower(string(r))))
		}
	}
	return regexp.MustCompile(b.String())
}

// LocateBlocks scans the document for known region labels. Profile
// reference labels open delivery blocks, so supplier wording like
// "N° Point de livraison" scopes the same way as the generic labels.
// Blocks are returned in document order.
func LocateBlocks(text string, profileLabels []string) []Block {
	lines := strings.Split(text, "\n")

	extras := make([]blockLabel, 0, len(profileLabels))
	for _, l := range profileLabels {
		if canon := textnorm.Canon(l); canon != "" {
			extras = append(extras, blockLabel{BlockDelivery, canon, LabelPattern(canon)})
		}
	}

	var blocks []Block
	for i, line := range lines {
		bl, loc := matchLabel(line, extras)
		if loc == nil {
			continue
		}
		blocks = append(blocks, Block{
			Kind:  bl.kind,
			Label: bl.name,
			Line:  i,
			Text:  blockText(lines, i, loc[1], extras),
		})
	}
	return blocks
}

func matchLabel(line string, extras []blockLabel) (blockLabel, []int) {
	for _, bl := range blockLabels {
		if loc := bl.re.FindStringIndex(line); loc != nil {
			return bl, loc
		}
	}
	for _, bl := range extras {
		if loc := bl.re.FindStringIndex(line); loc != nil {
			return bl, loc
		}
	}
	return blockLabel{}, nil
}

// blockText joins the label line's remainder with the lines that follow,
// stopping at a blank line, the next label, or the window cap.
func blockText(lines []string, start, labelEnd int, extras []blockLabel) string {
	var parts []string
	if rest := strings.TrimSpace(strings.TrimLeft(lines[start][labelEnd:], " \t:.-–")); rest != "" {
		parts = append(parts, rest)
	}
	for i := start + 1; i < len(lines) && i <= start+blockWindow; i++ {
		if strings.TrimSpace(lines[i]) == "" {
			break
		}
		if _, loc := matchLabel(lines[i], extras); loc != nil {
			break
		}
		parts = append(parts, strings.TrimSpace(lines[i]))
	}
	return strings.Join(parts, "\n")
}
