package export

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const (
	pdfTimeout = 30 * time.Second
	// pdfMargin is the sheet margin in inches; the month tables run edge to
	// edge inside it.
	pdfMargin = 0.4
)

var chromeBinaries = []string{"chromium-browser", "chromium", "google-chrome"}

// ChromePDF prints the calendar page with headless Chrome on the sheet
// described by layout.
func ChromePDF(parent context.Context, html string, layout PageLayout) ([]byte, error) {
	binary, err := findChrome()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(parent, pdfTimeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(binary),
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	taskCtx, cancelTask := chromedp.NewContext(allocCtx)
	defer cancelTask()

	var pdf []byte
	err = chromedp.Run(taskCtx,
		chromedp.Navigate(dataURL(html)),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = printParams(layout).Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("print calendar pdf: %w", err)
	}
	return pdf, nil
}

// printParams sizes the sheet from layout. Chrome rotates the sheet itself
// when Landscape is set, so paper dimensions are always portrait.
func printParams(layout PageLayout) *page.PrintToPDFParams {
	width, height := layout.PaperInches()
	return page.PrintToPDF().
		WithPrintBackground(true).
		WithLandscape(!layout.Portrait).
		WithPaperWidth(width).
		WithPaperHeight(height).
		WithMarginTop(pdfMargin).
		WithMarginBottom(pdfMargin).
		WithMarginLeft(pdfMargin).
		WithMarginRight(pdfMargin).
		WithDisplayHeaderFooter(false)
}

func findChrome() (string, error) {
	for _, name := range chromeBinaries {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: none of %s found in PATH", ErrPDFDependencyMissing, strings.Join(chromeBinaries, ", "))
}

// dataURL wraps html in a data URL. Spaces must become %20; url.QueryEscape
// would emit +.
func dataURL(html string) string {
	return "data:text/html;charset=utf-8," + percentEncode(html)
}

func percentEncode(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' ||
		c == '-' || c == '_' || c == '.' || c == '~'
}

const maxFilenameLen = 50

// fileStem keeps ASCII letters, digits, dashes and underscores from title,
// turning spaces into dashes.
func fileStem(title string) string {
	stem := strings.Map(func(r rune) rune {
		switch {
		case 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z', '0' <= r && r <= '9', r == '-', r == '_':
			return r
		case r == ' ':
			return '-'
		}
		return -1
	}, title)
	if len(stem) > maxFilenameLen {
		stem = stem[:maxFilenameLen]
	}
	if stem == "" {
		return "calendar"
	}
	return stem
}
