package scaling

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// Generator runs the full derivation for a single variant: render, an
// optional EXIF transplant, then decoding the rendered data URI back into
// a blob. Render failure is the only condition that rejects a variant with
// the user-facing failure text; EXIF problems degrade gracefully to the
// plain rendered image.
type Generator struct {
	Renderer    Renderer
	Exif        ExifRestorer
	IncludeExif bool
	FailureText string
	Logger      *log.Logger
}

func (g *Generator) Generate(ctx context.Context, ref Reference, opts RenderOptions) (Blob, error) {
	rendered, err := g.Renderer.Render(ctx, ref.Blob, opts)
	if err != nil {
		g.logf("render failed name=%s max_size=%d err=%v", ref.Name, opts.MaxSize, err)
		return Blob{}, errors.New(g.FailureText)
	}

	// The transplant only makes sense JPEG-to-JPEG, and only when the
	// caller asked for it. Everything on this path is best effort.
	if g.IncludeExif && g.Exif != nil && ref.Blob.MIME == MIMEJPEG && opts.Type == MIMEJPEG {
		merged, err := g.Exif.Restore(EncodeDataURI(ref.Blob), rendered)
		if err != nil {
			g.logf("exif restore failed name=%s err=%v, keeping rendered image", ref.Name, err)
		} else {
			rendered = merged
		}
	}

	blob, err := ParseDataURI(rendered)
	if err != nil {
		return Blob{}, fmt.Errorf("decode rendered image for %s: %w", ref.Name, err)
	}

	return blob, nil
}

func (g *Generator) logf(format string, args ...any) {
	if g.Logger != nil {
		g.Logger.Printf(format, args...)
	}
}
