package ocr

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPdfToTextDefaultBin(t *testing.T) {
	p := NewPdfToText("")
	assert.Equal(t, "pdftotext", p.binPath)

	p = NewPdfToText("/custom/pdftotext")
	assert.Equal(t, "/custom/pdftotext", p.binPath)
}

// fakePdfToText writes a script that echoes two form-feed separated pages.
func fakePdfToText(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stub not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "pdftotext")
	script := "#!/bin/sh\nprintf 'page one\\fpage two'\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestReadDocumentPDF(t *testing.T) {
	p := NewPdfToText(fakePdfToText(t))

	pdfPath := filepath.Join(t.TempDir(), "bill.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.4"), 0o644))

	doc, err := p.ReadDocument(context.Background(), pdfPath)
	require.NoError(t, err)
	assert.Equal(t, "bill.pdf", doc.Name)
	require.Len(t, doc.Pages, 2)
	assert.Equal(t, "page one", doc.Pages[0])
	assert.Equal(t, "page two", doc.Pages[1])
}

func TestReadDocumentPlainText(t *testing.T) {
	p := NewPdfToText("")

	txtPath := filepath.Join(t.TempDir(), "bill.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("only page"), 0o644))

	doc, err := p.ReadDocument(context.Background(), txtPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"only page"}, doc.Pages)
}

func TestExtractTextMissingBinary(t *testing.T) {
	p := NewPdfToText(filepath.Join(t.TempDir(), "no-such-binary"))
	_, err := p.ExtractText(context.Background(), "whatever.pdf")
	assert.Error(t, err)
}
