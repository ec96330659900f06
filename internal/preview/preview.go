// Package preview renders the first page of a résumé into a standalone
// artifact that the record view can display.
package preview

import (
	"bytes"
	"context"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"resumind/internal/shared/storage/object"
	"resumind/internal/shared/util"
)

// UnknownErrorMessage is used when a renderer fails without saying why.
const UnknownErrorMessage = "Unknown error during PDF conversion"

// Result is what a renderer hands back: a reference to the stored preview,
// or a message describing why none was produced.
type Result struct {
	Reference string
	Error     string
}

// Renderer turns a PDF into a page-1 preview.
type Renderer interface {
	Render(ctx context.Context, pdf []byte) Result
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, pdf []byte) Result

func (f RendererFunc) Render(ctx context.Context, pdf []byte) Result { return f(ctx, pdf) }

// PageOneRenderer trims the document to its first page with pdfcpu and stores
// it under previews/<sha256>.pdf.
type PageOneRenderer struct {
	Store  object.ObjectStore
	Prefix string
}

// NewPageOneRenderer returns a renderer writing into store.
func NewPageOneRenderer(store object.ObjectStore) *PageOneRenderer {
	return &PageOneRenderer{Store: store, Prefix: "previews"}
}

func (r *PageOneRenderer) Render(ctx context.Context, pdf []byte) Result {
	ref, err := r.render(ctx, pdf)
	if err != nil {
		return Result{Error: err.Error()}
	}
	return Result{Reference: ref}
}

func (r *PageOneRenderer) render(ctx context.Context, data []byte) (key string, err error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	defer func() {
		if rec := recover(); rec != nil {
			key, err = "", fmt.Errorf("pdf conversion panic: %v", rec)
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	var out bytes.Buffer
	if err := api.Trim(bytes.NewReader(data), &out, []string{"1"}, conf); err != nil {
		return "", fmt.Errorf("convert first page: %w", err)
	}

	key = fmt.Sprintf("%s/%s.pdf", r.Prefix, util.HashBytes(data))
	if _, err := r.Store.SaveWithKey(ctx, key, "application/pdf", &out); err != nil {
		return "", fmt.Errorf("store preview: %w", err)
	}
	return key, nil
}

// PageCount reports the number of pages pdfcpu sees in data.
func PageCount(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return api.PageCount(bytes.NewReader(data), conf)
}
