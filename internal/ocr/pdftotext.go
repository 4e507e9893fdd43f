// Package ocr converts PDF documents to the plain page text the extractor
// consumes.
package ocr

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/gridline/crosscheck-cli/internal/extract"
)

// PdfToText extracts text from PDFs using the pdftotext CLI tool.
type PdfToText struct {
	binPath string
}

// NewPdfToText creates a PdfToText extractor. If binPath is empty,
// "pdftotext" is used.
func NewPdfToText(binPath string) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToText{binPath: binPath}
}

// ExtractText runs pdftotext -layout on the given PDF and returns stdout.
// Pages are separated by form feeds in the output.
func (p *PdfToText) ExtractText(ctx context.Context, pdfPath string) (string, error) {
	cmd := exec.CommandContext(ctx, p.binPath, "-layout", pdfPath, "-")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "ocr: pdftotext failed for %s: %s", pdfPath, stderr.String())
	}

	return stdout.String(), nil
}

// ReadDocument loads a document for extraction: PDFs go through pdftotext,
// anything else is read as plain text.
func (p *PdfToText) ReadDocument(ctx context.Context, path string) (extract.Document, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		text, err := p.ExtractText(ctx, path)
		if err != nil {
			return extract.Document{}, err
		}
		return extract.Document{
			Name:  filepath.Base(path),
			Pages: strings.Split(text, "\f"),
		}, nil
	}
	return extract.ReadDocument(path)
}
