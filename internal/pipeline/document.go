package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/enerdoc/facture-cli/internal/assemble"
	"github.com/enerdoc/facture-cli/internal/classify"
	"github.com/enerdoc/facture-cli/internal/model"
	"github.com/enerdoc/facture-cli/internal/ocr"
	"github.com/enerdoc/facture-cli/internal/profile"
)

// DocResult is the outcome of processing one source document. Exactly
// one of Ignored or Assembled applies: an ignored document carries the
// gate's reason and no record.
type DocResult struct {
	Doc       model.SourceDocument
	Profile   profile.Profile
	Ignored   bool
	Reason    string
	Record    *model.EnergyInvoiceRecord
	Journal   *model.ExtractionJournal
	Effective *model.Date
}

// ProcessDocument runs the per-document path: read or OCR the text,
// gate for relevance, match a supplier profile and assemble the record.
// OCR trouble comes back as an error so the caller can dead-letter it;
// an irrelevant document is a valid result, not an error.
func (p *Pipeline) ProcessDocument(ctx context.Context, path string) (DocResult, error) {
	name := filepath.Base(path)
	res := DocResult{Doc: model.SourceDocument{Path: path, Name: name}}

	if reason, skip := classify.IgnoredFilename(name); skip {
		res.Ignored = true
		res.Reason = reason
		return res, nil
	}

	prof, _ := p.profiles.Match(name)

	text, err := p.readText(ctx, path, prof)
	if err != nil {
		res.Profile = prof
		return res, err
	}
	res.Doc.Text = text

	return p.ProcessText(res.Doc), nil
}

// ProcessText runs the gate, profile resolution and assembly over a
// document whose text is already in hand. The HTTP extract endpoint
// feeds this directly.
func (p *Pipeline) ProcessText(doc model.SourceDocument) DocResult {
	res := DocResult{Doc: doc}

	prof, matched := p.profiles.Match(doc.Name)
	res.Profile = prof

	relevant, reason := classify.Relevance(doc.Name, doc.Text)
	res.Doc.Relevant = relevant
	if !relevant {
		res.Ignored = true
		res.Reason = reason
		return res
	}

	if supplier, conf := classify.IdentifySupplier(doc.Text); conf > 0 {
		res.Doc.SupplierHint = supplier
		// A filename miss can still resolve through the document body.
		if !matched {
			if byBody, ok := p.profiles.Match(supplier); ok {
				res.Profile = byBody
				prof = byBody
			}
		}
	}

	out := assemble.Assemble(res.Doc, prof)
	res.Record = out.Record
	res.Journal = out.Journal
	res.Effective = out.EffectiveDate
	return res
}

// readText loads document text, running OCR for PDFs with the profile's
// page hints. Plain text files bypass OCR entirely.
func (p *Pipeline) readText(ctx context.Context, path string, prof profile.Profile) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".text":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", eris.Wrapf(err, "pipeline: read %s", path)
		}
		return string(data), nil
	case ".pdf":
		if p.ocr == nil {
			return "", eris.Errorf("pipeline: no OCR extractor configured for %s", path)
		}
		pages := ocr.PageRange{First: prof.FirstPage, Last: prof.LastPage}
		text, err := p.ocr.ExtractText(ctx, path, pages)
		if err != nil {
			return "", eris.Wrapf(err, "pipeline: ocr %s", path)
		}
		return text, nil
	default:
		return "", eris.Errorf("pipeline: unsupported document type %s", filepath.Ext(path))
	}
}
