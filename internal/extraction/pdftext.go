package extraction

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFText parses a PDF's embedded text layer without any remote call. Fast,
// but scanned documents come back empty and fail the length screen, which is
// the signal to fall back.
type PDFText struct {
	httpClient *http.Client
}

func NewPDFText() *PDFText {
	return &PDFText{httpClient: defaultHTTPClient()}
}

func (p *PDFText) Name() string { return "pdf-text-layer" }

func (p *PDFText) Extract(ctx context.Context, src Source) (any, error) {
	if !src.IsPDF() {
		return nil, fmt.Errorf("pdf-text-layer only handles application/pdf, got %q", src.MIMEType)
	}

	data, err := fetchBytes(ctx, p.httpClient, src.URL)
	if err != nil {
		return nil, err
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.Validate(bytes.NewReader(data), conf); err != nil {
		return nil, fmt.Errorf("pdf validation failed: %w", err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Image-only or malformed page; the length screen decides
			// whether the rest was enough.
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String(), nil
}
