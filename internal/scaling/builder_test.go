package scaling

import (
	"context"
	"fmt"
	"testing"
)

type alwaysPreviewable struct{}

func (alwaysPreviewable) IsPreviewable(Blob) bool { return true }

type neverPreviewable struct{}

func (neverPreviewable) IsPreviewable(Blob) bool { return false }

type recordingRenderer struct {
	types []string
}

func (r *recordingRenderer) Render(_ context.Context, _ Blob, opts RenderOptions) (string, error) {
	r.types = append(r.types, opts.Type)
	return EncodeDataURI(Blob{Data: []byte("rendered"), MIME: opts.Type}), nil
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("variant-%d", n)
	}
}

func newTestBuilder(t *testing.T, opts Options, caps Capabilities, renderer Renderer, detector Detector) *Builder {
	t.Helper()

	b, err := NewBuilder(BuilderConfig{
		Options:  opts,
		Caps:     caps,
		Renderer: renderer,
		Detector: detector,
		NewID:    sequentialIDs(),
		Logger:   testLogger(),
	})
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	return b
}

func TestBuildVariantsOrderAndNames(t *testing.T) {
	renderer := &recordingRenderer{}
	b := newTestBuilder(t, Options{
		SendOriginal:   true,
		DefaultQuality: 80,
		FailureText:    "failed",
		Sizes: []SizeSpec{
			{MaxSize: 400, Name: "large"},
			{MaxSize: 100, Name: "small"},
		},
	}, Capabilities{ImagePreview: true}, renderer, alwaysPreviewable{})

	ref := jpegRef()
	variants := b.BuildVariants(ref)

	wantNames := []string{"photo (small).jpg", "photo (large).jpg", "photo.jpg"}
	if len(variants) != len(wantNames) {
		t.Fatalf("expected %d variants, got %d", len(wantNames), len(variants))
	}
	for i, want := range wantNames {
		if variants[i].Name != want {
			t.Fatalf("expected name %q at %d, got %q", want, i, variants[i].Name)
		}
	}

	if variants[2].UUID != ref.UUID {
		t.Fatalf("reference variant should reuse the reference id, got %s", variants[2].UUID)
	}
	if variants[0].UUID == variants[1].UUID {
		t.Fatal("derived variants must have distinct ids")
	}

	// Nothing rendered at enumeration time.
	if len(renderer.types) != 0 {
		t.Fatalf("expected no render calls before production, got %d", len(renderer.types))
	}

	for _, v := range variants[:2] {
		if _, err := v.Producer.Produce(context.Background()); err != nil {
			t.Fatalf("produce %s: %v", v.Name, err)
		}
	}
	for i, typ := range renderer.types {
		if typ != MIMEJPEG {
			t.Fatalf("expected negotiated %s for variant %d, got %s", MIMEJPEG, i, typ)
		}
	}

	// The passthrough resolves to the reference bytes without rendering.
	blob, err := variants[2].Producer.Produce(context.Background())
	if err != nil {
		t.Fatalf("produce reference: %v", err)
	}
	if blob.MIME != ref.Blob.MIME || len(blob.Data) != len(ref.Blob.Data) {
		t.Fatalf("reference passthrough altered the blob: %+v", blob)
	}
	if len(renderer.types) != 2 {
		t.Fatalf("passthrough must not render, got %d render calls", len(renderer.types))
	}
}

func TestBuildVariantsTIFFFallback(t *testing.T) {
	renderer := &recordingRenderer{}
	b := newTestBuilder(t, Options{
		FailureText: "failed",
		Sizes: []SizeSpec{
			{MaxSize: 100, Name: "small", Type: MIMETIFF},
		},
	}, Capabilities{ImagePreview: true, TIFFPreview: false}, renderer, alwaysPreviewable{})

	variants := b.BuildVariants(jpegRef())
	if len(variants) != 1 {
		t.Fatalf("expected 1 variant, got %d", len(variants))
	}

	if _, err := variants[0].Producer.Produce(context.Background()); err != nil {
		t.Fatalf("produce: %v", err)
	}
	if renderer.types[0] == MIMETIFF {
		t.Fatal("TIFF must not be negotiated without the capability flag")
	}
	if renderer.types[0] != "" {
		t.Fatalf("expected empty negotiated type with no default, got %s", renderer.types[0])
	}
}

func TestBuildVariantsUnsupportedSource(t *testing.T) {
	b := newTestBuilder(t, Options{
		SendOriginal: true,
		FailureText:  "failed",
		Sizes: []SizeSpec{
			{MaxSize: 100, Name: "small"},
			{MaxSize: 400, Name: "large"},
		},
	}, Capabilities{ImagePreview: true}, &recordingRenderer{}, neverPreviewable{})

	ref := Reference{UUID: "ref-2", Name: "notes.txt", Blob: Blob{Data: []byte("text"), MIME: "text/plain"}}
	variants := b.BuildVariants(ref)
	if len(variants) != 1 {
		t.Fatalf("expected only the passthrough, got %d variants", len(variants))
	}
	if variants[0].Name != "notes.txt" {
		t.Fatalf("unexpected passthrough name %q", variants[0].Name)
	}
}

func TestBuildVariantsFailureIsolation(t *testing.T) {
	renderer := &flakyRenderer{failMaxSize: 100}
	b := newTestBuilder(t, Options{
		FailureText: "Could not scale this image",
		Sizes: []SizeSpec{
			{MaxSize: 400, Name: "large"},
			{MaxSize: 100, Name: "small"},
		},
	}, Capabilities{ImagePreview: true}, renderer, alwaysPreviewable{})

	variants := b.BuildVariants(jpegRef())

	_, err := variants[0].Producer.Produce(context.Background())
	if err == nil || err.Error() != "Could not scale this image" {
		t.Fatalf("expected configured failure text, got %v", err)
	}

	if _, err := variants[1].Producer.Produce(context.Background()); err != nil {
		t.Fatalf("sibling variant must be unaffected, got %v", err)
	}
}

type flakyRenderer struct {
	failMaxSize int
}

func (r *flakyRenderer) Render(_ context.Context, _ Blob, opts RenderOptions) (string, error) {
	if opts.MaxSize == r.failMaxSize {
		return "", fmt.Errorf("render error at max_size=%d", opts.MaxSize)
	}
	return EncodeDataURI(Blob{Data: []byte("ok"), MIME: MIMEJPEG}), nil
}
