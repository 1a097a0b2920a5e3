package ocr

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/enerdoc/facture-cli/internal/config"
)

// PageRange scopes extraction to a span of pages, 1-based and inclusive.
// Zero on either end means unbounded; the zero value covers the whole
// document. Supplier profiles narrow the range to the page that carries
// the metering data.
type PageRange struct {
	First int
	Last  int
}

// Whole reports whether the range covers the entire document.
func (r PageRange) Whole() bool {
	return r.First == 0 && r.Last == 0
}

// Contains reports whether the 1-based page number falls in the range.
func (r PageRange) Contains(page int) bool {
	if r.First > 0 && page < r.First {
		return false
	}
	if r.Last > 0 && page > r.Last {
		return false
	}
	return true
}

// Extractor extracts text content from PDF files.
type Extractor interface {
	ExtractText(ctx context.Context, pdfPath string, pages PageRange) (string, error)
}

// minTextChars is the threshold below which a pdftotext result is treated
// as a scanned document with no usable text layer.
const minTextChars = 100

// NewExtractor creates an Extractor based on config.
func NewExtractor(cfg config.OCRConfig, mistralKey string) (Extractor, error) {
	switch cfg.Provider {
	case "local", "":
		return NewPdfToText(cfg.PdfToTextPath), nil
	case "mistral":
		if mistralKey == "" {
			return nil, eris.New("ocr: mistral provider requires mistral_api_key")
		}
		return NewMistralOCR(mistralKey, cfg.MistralModel), nil
	case "auto":
		if mistralKey == "" {
			return nil, eris.New("ocr: auto provider requires mistral_api_key")
		}
		return &Cascade{
			local:    NewPdfToText(cfg.PdfToTextPath),
			remote:   NewMistralOCR(mistralKey, cfg.MistralModel),
			minChars: minTextChars,
		}, nil
	default:
		return nil, eris.Errorf("ocr: unknown provider %q", cfg.Provider)
	}
}

// Cascade reads the embedded text layer first and falls back to Mistral
// OCR when the result is too thin to be a real text layer. Scanned
// invoices produce a handful of stray characters at most.
type Cascade struct {
	local    Extractor
	remote   Extractor
	minChars int
}

// ExtractText implements Extractor.
func (c *Cascade) ExtractText(ctx context.Context, pdfPath string, pages PageRange) (string, error) {
	text, err := c.local.ExtractText(ctx, pdfPath, pages)
	if err == nil && len(strings.TrimSpace(text)) >= c.minChars {
		return text, nil
	}
	if err != nil {
		zap.L().Debug("ocr: text layer extraction failed, falling back to mistral",
			zap.String("pdf", pdfPath),
			zap.Error(err),
		)
	} else {
		zap.L().Debug("ocr: text layer too thin, falling back to mistral",
			zap.String("pdf", pdfPath),
			zap.Int("chars", len(strings.TrimSpace(text))),
		)
	}
	return c.remote.ExtractText(ctx, pdfPath, pages)
}
