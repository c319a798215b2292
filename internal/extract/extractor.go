// Package extract turns stored PDF documents into normalized per-page text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
	lpdf "github.com/ledongthuc/pdf"
)

// ErrUnreadable is returned when no engine can open or read the document.
var ErrUnreadable = errors.New("document is encrypted or unreadable")

// ErrTooManyPages is returned when the document exceeds the configured
// page limit.
var ErrTooManyPages = errors.New("document exceeds page limit")

// Page holds the normalized text of a single document page. Number is
// 1-based.
type Page struct {
	Number int
	Text   string
}

// Extractor pulls text from PDF files. MuPDF is the primary engine; a pure
// Go reader backfills pages MuPDF cannot render.
type Extractor struct {
	maxPages int
}

// New creates an Extractor. maxPages <= 0 disables the page limit.
func New(maxPages int) *Extractor {
	return &Extractor{maxPages: maxPages}
}

// Extract reads every page of the document at path. The page slice always
// has one entry per page, in order; pages that yield no text are present
// with an empty Text. Pages with only whitespace are normalized to empty.
func (e *Extractor) Extract(ctx context.Context, path string) ([]Page, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return e.extractFallback(ctx, path)
	}
	defer doc.Close()

	total := doc.NumPage()
	if e.maxPages > 0 && total > e.maxPages {
		return nil, fmt.Errorf("%w: %d pages (limit %d)", ErrTooManyPages, total, e.maxPages)
	}

	pages := make([]Page, 0, total)
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, err := doc.Text(i)
		text = resolvePageText(text, err, func() (string, error) {
			return fallbackPage(path, i+1)
		})
		pages = append(pages, Page{Number: i + 1, Text: Normalize(text)})
	}
	return pages, nil
}

// extractFallback reads the whole document with the pure Go engine. Used
// when MuPDF cannot open the file at all.
func (e *Extractor) extractFallback(ctx context.Context, path string) ([]Page, error) {
	f, r, err := lpdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	defer f.Close()

	total := r.NumPage()
	if e.maxPages > 0 && total > e.maxPages {
		return nil, fmt.Errorf("%w: %d pages (limit %d)", ErrTooManyPages, total, e.maxPages)
	}

	pages := make([]Page, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var text string
		page := r.Page(i)
		if !page.V.IsNull() {
			// Malformed content streams surface as panics inside the
			// reader; treat the page as empty rather than failing the
			// whole document.
			text = safePlainText(page)
		}
		pages = append(pages, Page{Number: i, Text: Normalize(text)})
	}
	return pages, nil
}

// resolvePageText settles the text of a single page. The fallback engine
// runs when the primary errored or saw no visible text, which happens on
// scanned or oddly encoded pages; its output is used only when it actually
// recovers something.
func resolvePageText(text string, err error, fallback func() (string, error)) string {
	if err != nil {
		text = ""
	}
	if strings.TrimSpace(text) != "" {
		return text
	}
	recovered, ferr := fallback()
	if ferr != nil || strings.TrimSpace(recovered) == "" {
		return text
	}
	return recovered
}

func fallbackPage(path string, number int) (string, error) {
	f, r, err := lpdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if number > r.NumPage() {
		return "", nil
	}
	page := r.Page(number)
	if page.V.IsNull() {
		return "", nil
	}
	return safePlainText(page), nil
}

func safePlainText(page lpdf.Page) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()
	text, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return text
}

// PageCount reports the number of pages without extracting any text.
func PageCount(path string) (int, error) {
	doc, err := fitz.New(path)
	if err == nil {
		defer doc.Close()
		return doc.NumPage(), nil
	}

	f, r, ferr := lpdf.Open(path)
	if ferr != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnreadable, ferr)
	}
	defer f.Close()
	return r.NumPage(), nil
}

// JoinPages renders extracted pages as a single archival text file with
// page markers.
func JoinPages(pages []Page) string {
	var b strings.Builder
	for i, p := range pages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "--- PAGE %d ---\n", p.Number)
		b.WriteString(p.Text)
	}
	return b.String()
}

// HasText reports whether any page carries non-empty text.
func HasText(pages []Page) bool {
	for _, p := range pages {
		if p.Text != "" {
			return true
		}
	}
	return false
}
