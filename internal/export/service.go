package export

import (
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"
)

// PDFRenderer prints an HTML page onto sheets described by layout.
type PDFRenderer func(ctx context.Context, html string, layout PageLayout) ([]byte, error)

// Service provides calendar export functionality
type Service struct {
	pdf PDFRenderer
	now func() time.Time
}

// NewService creates an export service printing PDFs with headless Chrome.
func NewService() *Service {
	return &Service{pdf: ChromePDF, now: time.Now}
}

// NewServiceWithRenderer creates an export service with a custom PDF renderer.
func NewServiceWithRenderer(pdf PDFRenderer) *Service {
	return &Service{pdf: pdf, now: time.Now}
}

// Export generates an export in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "Content Calendar"
	}

	data := BuildTemplateData(title, req.WebsiteName, req.Plan, s.now())
	data.PageSize = template.CSS(req.Layout.CSSPageSize())
	html, err := RenderCalendarHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatHTML, "":
		return &Result{
			Data:     []byte(html),
			Filename: fileStem(title) + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	case FormatPDF:
		data, err := s.pdf(ctx, html, req.Layout)
		if err != nil {
			return nil, err
		}
		return &Result{
			Data:     data,
			Filename: fileStem(title) + ".pdf",
			MimeType: "application/pdf",
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}
}
