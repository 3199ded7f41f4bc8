// Package extract reads PDF files into per-page text records.
package extract

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"pdfqa/internal/domain"
)

// PDFExtractor extracts page text with github.com/ledongthuc/pdf.
type PDFExtractor struct{}

// NewPDFExtractor returns a ready extractor.
func NewPDFExtractor() *PDFExtractor { return &PDFExtractor{} }

// ExtractFile reads the PDF at path.
func (e *PDFExtractor) ExtractFile(path string) (*domain.Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrExtraction, path, err)
	}
	return e.ExtractBytes(filepath.Base(path), content)
}

// ExtractBytes parses an in-memory PDF, for example an uploaded file.
// The result has exactly one record per page, in page order.
func (e *PDFExtractor) ExtractBytes(name string, content []byte) (doc *domain.Document, err error) {
	// the pdf package panics on some malformed object streams
	defer func() {
		if p := recover(); p != nil {
			doc, err = nil, fmt.Errorf("%w: %s: %v", domain.ErrExtraction, name, p)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrExtraction, name, err)
	}
	numPages := r.NumPage()
	pages := make([]domain.PageRecord, 0, numPages)
	for i := 0; i < numPages; i++ {
		page := r.Page(i + 1)
		if page.V.IsNull() {
			pages = append(pages, domain.PageRecord{Index: i})
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d of %s: %v", domain.ErrExtraction, i+1, name, err)
		}
		pages = append(pages, domain.PageRecord{Index: i, Content: cleanLines(text)})
	}
	return &domain.Document{ID: DocumentID(content), Name: name, Pages: pages}, nil
}

// DocumentID derives a stable identifier from the raw PDF bytes.
func DocumentID(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:8])
}

// cleanLines trims every line and drops the empty ones.
func cleanLines(text string) string {
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
