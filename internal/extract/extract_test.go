package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeDoc struct {
	pages [][]string
	fail  map[int]bool
}

func (d fakeDoc) NumPage() int { return len(d.pages) }

func (d fakeDoc) PageTokens(i int) ([]string, error) {
	if d.fail[i] {
		return nil, errors.New("broken page")
	}
	return d.pages[i-1], nil
}

func engineFor(doc document, openErr error) *Engine {
	return &Engine{open: func([]byte) (document, error) {
		if openErr != nil {
			return nil, openErr
		}
		return doc, nil
	}}
}

func TestExtractTextJoinsPagesInOrder(t *testing.T) {
	tests := []struct {
		name string
		doc  fakeDoc
		want string
	}{
		{
			name: "tokens joined with spaces and pages with newline",
			doc:  fakeDoc{pages: [][]string{{"Jane", "Doe"}, {"Go", "Engineer"}, {"References"}}},
			want: "Jane Doe\nGo Engineer\nReferences",
		},
		{
			name: "image only page contributes empty segment",
			doc:  fakeDoc{pages: [][]string{{"Page", "one"}, nil, {"Page", "three"}}},
			want: "Page one\n\nPage three",
		},
		{
			name: "failing page does not abort",
			doc:  fakeDoc{pages: [][]string{{"A"}, {"B"}, {"C"}}, fail: map[int]bool{2: true}},
			want: "A\n\nC",
		},
		{
			name: "outer whitespace trimmed",
			doc:  fakeDoc{pages: [][]string{nil, {"  body  "}, nil}},
			want: "body",
		},
		{
			name: "all pages empty yields empty text",
			doc:  fakeDoc{pages: [][]string{nil, nil}},
			want: "",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := engineFor(tt.doc, nil).ExtractText(context.Background(), []byte("%PDF"))
			if err != nil {
				t.Fatalf("ExtractText: %v", err)
			}
			if got != tt.want {
				t.Fatalf("ExtractText = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractTextZeroPagesIsExtractionError(t *testing.T) {
	_, err := engineFor(fakeDoc{}, nil).ExtractText(context.Background(), []byte("%PDF"))
	var extractErr *ExtractionError
	if !errors.As(err, &extractErr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
}

func TestExtractTextOpenFailureIsExtractionError(t *testing.T) {
	boom := errors.New("bad xref")
	_, err := engineFor(nil, boom).ExtractText(context.Background(), nil)
	var extractErr *ExtractionError
	if !errors.As(err, &extractErr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}

func TestRealEngineRejectsNonPDF(t *testing.T) {
	engine, err := NewEngine(context.Background())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	_, err = engine.ExtractText(context.Background(), []byte("this is not a pdf"))
	var extractErr *ExtractionError
	if !errors.As(err, &extractErr) {
		t.Fatalf("expected ExtractionError for garbage input, got %v", err)
	}
}

// buildPDF writes a minimal PDF with one Helvetica text line per page; an
// empty string leaves that page without text.
func buildPDF(pages ...string) []byte {
	var objs []string
	kids := ""
	for i := range pages {
		kids += fmt.Sprintf("%d 0 R ", 4+2*i)
	}
	objs = append(objs,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	)
	for i, text := range pages {
		stream := ""
		if text != "" {
			stream = fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		}
		objs = append(objs,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, obj := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

func TestRealEngineKeepsPageOrderAndEmptyPages(t *testing.T) {
	engine, err := NewEngine(context.Background())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	got, err := engine.ExtractText(context.Background(), buildPDF("Page one text", "", "Page three text"))
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if got != "Page one text\n\nPage three text" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestRealEngineTextlessPDFIsEmpty(t *testing.T) {
	engine, err := NewEngine(context.Background())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	got, err := engine.ExtractText(context.Background(), buildPDF("", ""))
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if got != "" {
		t.Fatalf("expected no text, got %q", got)
	}
}

func TestLazyConcurrentFirstUseInitializesOnce(t *testing.T) {
	var builds atomic.Int32
	release := make(chan struct{})
	lazy := NewLazy(func(ctx context.Context) (*Engine, error) {
		builds.Add(1)
		<-release
		return &Engine{open: openPDF}, nil
	})

	const callers = 8
	results := make([]*Engine, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, err := lazy.Get(context.Background())
			if err != nil {
				t.Errorf("Get: %v", err)
				return
			}
			results[i] = e
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := builds.Load(); got != 1 {
		t.Fatalf("expected exactly one engine build, got %d", got)
	}
	for i, e := range results {
		if e == nil || e != results[0] {
			t.Fatalf("caller %d observed a different engine", i)
		}
	}
}

func TestLazyRetriesAfterFailedInit(t *testing.T) {
	var calls atomic.Int32
	lazy := NewLazy(func(ctx context.Context) (*Engine, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("worker unavailable")
		}
		return &Engine{open: openPDF}, nil
	})

	if _, err := lazy.Get(context.Background()); err == nil {
		t.Fatalf("expected first Get to fail")
	}
	e1, err := lazy.Get(context.Background())
	if err != nil {
		t.Fatalf("expected retry to succeed: %v", err)
	}
	e2, _ := lazy.Get(context.Background())
	if e1 != e2 {
		t.Fatalf("expected the ready engine to be reused")
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 builds, got %d", calls.Load())
	}
}
