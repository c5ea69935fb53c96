// Package export renders a content plan as a printable calendar in HTML or PDF.
package export

import (
	"errors"
	"fmt"
	"strings"

	"contentcal/api/internal/content"
)

// Format represents the export output format
type Format string

const (
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
)

func ParseFormat(raw string) (Format, error) {
	switch f := Format(raw); f {
	case "":
		return FormatHTML, nil
	case FormatHTML, FormatPDF:
		return f, nil
	}
	return "", ErrUnsupportedFormat
}

// Paper is a printable sheet size.
type Paper string

const (
	PaperLetter  Paper = "letter"
	PaperLegal   Paper = "legal"
	PaperTabloid Paper = "tabloid"
	PaperA4      Paper = "a4"
	PaperA3      Paper = "a3"
)

// paperInches holds portrait width and height.
var paperInches = map[Paper][2]float64{
	PaperLetter:  {8.5, 11},
	PaperLegal:   {8.5, 14},
	PaperTabloid: {11, 17},
	PaperA4:      {8.27, 11.69},
	PaperA3:      {11.69, 16.54},
}

// PageLayout controls how a calendar is laid out on paper. The zero value
// is US letter in landscape, which fits the month tables.
type PageLayout struct {
	Paper    Paper
	Portrait bool
}

// ParseLayout reads paper and orientation as given on the query string.
// Blank values keep the defaults.
func ParseLayout(paper, orientation string) (PageLayout, error) {
	var layout PageLayout
	if p := Paper(strings.ToLower(strings.TrimSpace(paper))); p != "" {
		if _, ok := paperInches[p]; !ok {
			return PageLayout{}, fmt.Errorf("%w: unknown paper size %q", content.ErrValidation, paper)
		}
		layout.Paper = p
	}
	switch strings.ToLower(strings.TrimSpace(orientation)) {
	case "", "landscape":
	case "portrait":
		layout.Portrait = true
	default:
		return PageLayout{}, fmt.Errorf("%w: unknown orientation %q", content.ErrValidation, orientation)
	}
	return layout, nil
}

func (l PageLayout) paper() Paper {
	if _, ok := paperInches[l.Paper]; ok {
		return l.Paper
	}
	return PaperLetter
}

// PaperInches returns the portrait width and height of the sheet.
func (l PageLayout) PaperInches() (width, height float64) {
	dims := paperInches[l.paper()]
	return dims[0], dims[1]
}

// CSSPageSize is the value for the @page size descriptor.
func (l PageLayout) CSSPageSize() string {
	name := string(l.paper())
	if l.paper() == PaperTabloid {
		// CSS calls 11x17 ledger.
		name = "ledger"
	}
	if l.Portrait {
		return name + " portrait"
	}
	return name + " landscape"
}

// Request contains parameters for an export operation
type Request struct {
	Title       string
	WebsiteName string
	Plan        content.Plan
	Format      Format
	Layout      PageLayout
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrUnsupportedFormat is returned for formats other than html and pdf.
	ErrUnsupportedFormat = errors.New("unsupported export format")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
)
