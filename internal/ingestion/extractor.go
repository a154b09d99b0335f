package ingestion

import (
	"fmt"
	"path/filepath"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/alintentu/farmer-app/pkg/config"
)

// Page is one unit of extracted text.
type Page struct {
	Number int
	Text   string
}

// PageExtractor pulls per-page text out of an uploaded file. An error
// fails the document; individual undecodable pages come back empty.
type PageExtractor interface {
	Extract(path string) ([]Page, error)
}

// NewExtractor builds the page extractor selected by configuration.
// Unknown drivers fall back to the PDF extractor.
func NewExtractor(cfg *config.IngestionConfig, root string, log *zap.Logger) PageExtractor {
	switch cfg.Extractor {
	case "pdf":
		return NewPDFExtractor(root)
	case "none":
		log.Warn("no page extractor configured, documents will get a single empty page")
		return NewNoopExtractor()
	default:
		log.Warn("unknown extractor driver, falling back to pdf",
			zap.String("driver", cfg.Extractor))
		return NewPDFExtractor(root)
	}
}

// PDFExtractor reads PDF files page by page. A file that cannot be
// opened or parsed is an extraction error; pages whose text cannot be
// decoded come back empty rather than failing the whole document.
// Document paths are stored relative to the upload root.
type PDFExtractor struct {
	root string
}

func NewPDFExtractor(root string) *PDFExtractor {
	return &PDFExtractor{root: root}
}

func (e *PDFExtractor) Extract(path string) ([]Page, error) {
	f, reader, err := pdf.Open(filepath.Join(e.root, path))
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	numPages := reader.NumPage()
	if numPages == 0 {
		// A parseable but empty file still gets one empty page so the
		// document record stays consistent.
		return []Page{{Number: 1, Text: ""}}, nil
	}

	pages := make([]Page, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, Page{Number: i, Text: ""})
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			text = ""
		}
		pages = append(pages, Page{Number: i, Text: text})
	}

	return pages, nil
}

// NoopExtractor is the no-capability backend for deployments without a
// PDF parser: every document yields a single empty page.
type NoopExtractor struct{}

func NewNoopExtractor() NoopExtractor {
	return NoopExtractor{}
}

func (NoopExtractor) Extract(string) ([]Page, error) {
	return []Page{{Number: 1, Text: ""}}, nil
}
