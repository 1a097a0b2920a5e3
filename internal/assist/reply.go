package assist

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/enerdoc/facture-cli/internal/frdate"
	"github.com/enerdoc/facture-cli/internal/model"
	"github.com/enerdoc/facture-cli/internal/textnorm"
	"github.com/enerdoc/facture-cli/internal/validate"
	"github.com/enerdoc/facture-cli/pkg/anthropic"
)

// defaultConfidence is journaled for assist fills when the reply
// carries no usable confidence of its own.
const defaultConfidence = 0.6

const reasonAssist = "assist"

// replyText concatenates the text content blocks of a response.
func replyText(resp *anthropic.MessageResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "" || b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

// firstJSONObject returns the first balanced {...} in text, stripping
// markdown fences first. Returns nil when no object is found. Models
// wrap JSON in prose or fences often enough that taking the whole
// reply at face value would lose parseable answers.
func firstJSONObject(text string) []byte {
	text = stripFences(text)

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return nil
	}

	depth := 0
	inStr := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case inStr:
			if c == '\\' {
				escaped = true
			} else if c == '"' {
				inStr = false
			}
		case c == '"':
			inStr = true
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return []byte(text[start : i+1])
			}
		}
	}
	return nil
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
	} else {
		return text
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

// reply is one parsed assist answer: field values as strings, plus the
// model's self-reported confidence (0 when it gave none). Nulls and
// blank values never enter the map.
type reply struct {
	values     map[string]string
	confidence float64
}

// parseReply decodes a reply object. Numbers are kept as their literal
// digits so identifiers survive intact.
func parseReply(raw []byte) (reply, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return reply{}, eris.Wrap(err, "assist: parse reply")
	}

	rep := reply{values: make(map[string]string, len(obj))}
	for k, v := range obj {
		if k == "confidence" {
			switch c := v.(type) {
			case json.Number:
				if f, err := c.Float64(); err == nil {
					rep.confidence = f
				}
			case string:
				if f, err := strconv.ParseFloat(c, 64); err == nil {
					rep.confidence = f
				}
			}
			continue
		}

		switch val := v.(type) {
		case string:
			s := strings.TrimSpace(val)
			if s != "" && !strings.EqualFold(s, "null") {
				rep.values[k] = s
			}
		case json.Number:
			rep.values[k] = val.String()
		}
	}
	return rep, nil
}

// fillRecord writes reply values into still-null record fields and
// journals each fill with the model's confidence. Fields the rule tier
// already resolved are left alone, whatever the reply says. Returns
// the number of fields filled.
func fillRecord(rec *model.EnergyInvoiceRecord, journal *model.ExtractionJournal, rep reply) int {
	conf := rep.confidence
	if conf <= 0 || conf > 1 {
		conf = defaultConfidence
	}

	filled := 0
	if fillReference(rec, journal, rep, conf) {
		filled++
	}
	for _, f := range assistFields {
		if f.key == keyReference || f.key == keyReferenceType {
			continue
		}
		if !f.unset(rec) {
			continue
		}
		val, ok := rep.values[f.key]
		if !ok {
			continue
		}
		if fillScalar(rec, journal, f.key, val, conf) {
			filled++
		}
	}
	return filled
}

// fillReference validates the replied reference through the same
// checks as the rule tier and keys the journal for deduplication. A
// reply that fails validation fills nothing and leaves the rule tier's
// journal reason in place.
func fillReference(rec *model.EnergyInvoiceRecord, journal *model.ExtractionJournal, rep reply, conf float64) bool {
	if rec.HasReference() {
		return false
	}
	raw, ok := rep.values[keyReference]
	if !ok {
		return false
	}

	typeHint := strings.ToUpper(strings.TrimSpace(rep.values[keyReferenceType]))
	var declared *model.ReferenceType
	if t := model.ReferenceType(typeHint); t.Valid() {
		declared = &t
	}

	out := validate.Reference(raw, typeHint, declared)
	if out.Reference == nil {
		return false
	}

	rec.EnergyReference = out.Reference
	rec.EnergyReferenceType = out.Type
	rec.EnergyReferenceLength = out.Length
	journal.Note(keyReference, conf, reasonAssist)
	journal.ReferenceKey = textnorm.ReferenceKey(*out.Reference)
	return true
}

// fillScalar applies one non-reference value, running the same
// normalization and validation the rule tier applies. Invalid values
// fill nothing.
func fillScalar(rec *model.EnergyInvoiceRecord, journal *model.ExtractionJournal, key, val string, conf float64) bool {
	switch key {
	case keyDocumentDate:
		d, ok := parseReplyDate(val)
		if !ok {
			return false
		}
		rec.DocumentDate = &d

	case keySupplier:
		rec.Supplier = model.StringPtr(val)
		if rec.Supplier == nil {
			return false
		}

	case keySiteName:
		rec.SiteName = model.StringPtr(val)
		if rec.SiteName == nil {
			return false
		}

	case keyPostalCode:
		digits := textnorm.Digits(val)
		if !validate.PostalCode(digits) {
			return false
		}
		rec.PostalCode = &digits

	case keyCity:
		city := textnorm.NormalizeCity(val)
		if city == "" {
			return false
		}
		rec.City = &city

	case keyContractStart:
		d, ok := parseReplyDate(val)
		if !ok {
			return false
		}
		rec.ContractStartDate = &d

	case keyContractEnd:
		d, ok := parseReplyDate(val)
		if !ok {
			return false
		}
		rec.ContractExpiryDate = &d

	default:
		return false
	}

	journal.Note(key, conf, reasonAssist)
	return true
}

// parseReplyDate accepts the asked-for ISO form and falls back to
// French date forms, which models emit despite instructions.
func parseReplyDate(s string) (model.Date, bool) {
	s = strings.TrimSpace(s)
	if d, err := model.ParseISODate(s); err == nil {
		return d, true
	}
	return frdate.Parse(s)
}
