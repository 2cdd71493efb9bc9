package extract

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/cardwatch/agreements-tracker/internal/common"
)

// PDFExtractor pulls plain text out of PDF agreement documents, page by
// page in document order. It is synchronous and CPU-bound; any failure wraps
// ErrDocumentRead so the orchestrator can isolate it to the one document.
type PDFExtractor struct {
	logger *slog.Logger
}

func NewPDFExtractor(logger *slog.Logger) *PDFExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFExtractor{logger: logger}
}

func (e *PDFExtractor) Extract(ctx context.Context, path string) (TextExtractionResult, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return TextExtractionResult{}, err
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return TextExtractionResult{}, fmt.Errorf("%w: open %s: %v", common.ErrDocumentRead, filepath.Base(path), err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			e.logger.Warn("extract.pdf.close_error", "path", path, "error", cerr)
		}
	}()

	var b strings.Builder
	pages := r.NumPage()
	for n := 1; n <= pages; n++ {
		page := r.Page(n)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return TextExtractionResult{}, fmt.Errorf("%w: page %d of %s: %v", common.ErrDocumentRead, n, filepath.Base(path), err)
		}
		b.WriteString(text)
	}

	res := TextExtractionResult{
		Text:     b.String(),
		Pages:    pages,
		Duration: time.Since(start),
	}
	e.logger.Debug("extract.pdf.ok",
		"path", path,
		"pages", pages,
		"bytes", len(res.Text),
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}
