// Package extract pulls plain text out of PDF résumés with github.com/ledongthuc/pdf.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// NoReadableTextMessage is shown when a PDF parses but carries no text layer.
const NoReadableTextMessage = "Could not extract text from PDF. Please ensure the PDF contains readable text."

// ErrNoText marks a document that parsed but produced only whitespace.
var ErrNoText = errors.New("no readable text")

// ExtractionError reports a PDF that cannot be opened, has no pages, or has
// no text layer. Reason is the user-facing message.
type ExtractionError struct {
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "pdf extraction failed"
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// document is the paginated view the engine walks. Pages are 1-based.
type document interface {
	NumPage() int
	PageTokens(i int) ([]string, error)
}

// Engine extracts text from PDF bytes. It is created once per process through
// Lazy and is safe for concurrent use.
type Engine struct {
	open func(data []byte) (document, error)
}

// NewEngine returns an engine backed by ledongthuc/pdf.
func NewEngine(ctx context.Context) (*Engine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Engine{open: openPDF}, nil
}

// ExtractText joins each page's text tokens with single spaces, joins pages
// with "\n" in ascending order and trims the result. A page that fails to
// decode contributes an empty segment.
func (e *Engine) ExtractText(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	doc, err := e.open(data)
	if err != nil {
		return "", &ExtractionError{Reason: fmt.Sprintf("Could not read PDF: %v", err), Err: err}
	}
	n := doc.NumPage()
	if n <= 0 {
		return "", &ExtractionError{Reason: "Could not read PDF: document has no pages"}
	}

	pages := make([]string, n)
	for i := 1; i <= n; i++ {
		tokens, err := doc.PageTokens(i)
		if err != nil {
			continue
		}
		pages[i-1] = strings.Join(tokens, " ")
	}
	return strings.TrimSpace(strings.Join(pages, "\n")), nil
}

type pdfDocument struct {
	r *pdf.Reader
}

func openPDF(data []byte) (doc document, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			doc, err = nil, fmt.Errorf("pdf parser panic: %v", rec)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	return pdfDocument{r: r}, nil
}

func (d pdfDocument) NumPage() int {
	return d.r.NumPage()
}

// PageTokens returns one token per text row, top to bottom.
func (d pdfDocument) PageTokens(i int) (tokens []string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			tokens, err = nil, fmt.Errorf("page %d: parser panic: %v", i, rec)
		}
	}()
	page := d.r.Page(i)
	if page.V.IsNull() {
		return nil, nil
	}
	rows, err := page.GetTextByRow()
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", i, err)
	}
	for _, row := range rows {
		var b strings.Builder
		for _, t := range row.Content {
			b.WriteString(t.S)
		}
		if s := strings.TrimSpace(b.String()); s != "" {
			tokens = append(tokens, s)
		}
	}
	return tokens, nil
}
