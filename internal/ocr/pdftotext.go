package ocr

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"

	"github.com/rotisserie/eris"
)

// PdfToText extracts text from PDFs using the pdftotext CLI tool.
type PdfToText struct {
	binPath string
}

// NewPdfToText creates a PdfToText extractor. If binPath is empty, "pdftotext" is used.
func NewPdfToText(binPath string) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToText{binPath: binPath}
}

// ExtractText runs pdftotext -layout on the given PDF and returns stdout.
// A bounded page range is passed through as -f/-l flags.
func (p *PdfToText) ExtractText(ctx context.Context, pdfPath string, pages PageRange) (string, error) {
	args := []string{"-layout"}
	if pages.First > 0 {
		args = append(args, "-f", strconv.Itoa(pages.First))
	}
	if pages.Last > 0 {
		args = append(args, "-l", strconv.Itoa(pages.Last))
	}
	args = append(args, pdfPath, "-")

	cmd := exec.CommandContext(ctx, p.binPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "ocr: pdftotext failed for %s: %s", pdfPath, stderr.String())
	}

	return stdout.String(), nil
}
