// Package document opens uploaded receipt documents with MuPDF.
package document

import (
	"fmt"
	"sync"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"

	"github.com/garyjia/travel-support/internal/domain/validation"
)

// PDFInspector implements validation.DocumentInspector using go-fitz
type PDFInspector struct {
	logger *zap.Logger
	// mupdf contexts are not shared across goroutines
	mu sync.Mutex
}

// NewPDFInspector creates a new PDF inspector
func NewPDFInspector(logger *zap.Logger) *PDFInspector {
	return &PDFInspector{logger: logger}
}

// PageCount opens the document from memory and returns its page count
func (p *PDFInspector) PageCount(content []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	doc, err := fitz.NewFromMemory(content)
	if err != nil {
		p.logger.Warn("Failed to open PDF", zap.Int("size", len(content)), zap.Error(err))
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	p.logger.Debug("Inspected PDF", zap.Int("pages", pages))
	return pages, nil
}

var _ validation.DocumentInspector = (*PDFInspector)(nil)
