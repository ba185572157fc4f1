package worker

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/hibiken/asynq"

	"github.com/jy4618272/fine-uploader/internal/config"
	"github.com/jy4618272/fine-uploader/internal/domain"
	"github.com/jy4618272/fine-uploader/internal/queue"
	"github.com/jy4618272/fine-uploader/internal/scaling"
	"github.com/jy4618272/fine-uploader/internal/store"
)

var pngMagic = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00}

type stubRenderer struct {
	err error
}

func (r *stubRenderer) Render(_ context.Context, _ scaling.Blob, opts scaling.RenderOptions) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	mime := opts.Type
	if mime == "" {
		mime = scaling.MIMEPNG
	}
	return scaling.EncodeDataURI(scaling.Blob{Data: []byte("rendered"), MIME: mime}), nil
}

type recordingWebhooks struct {
	mu     sync.Mutex
	events []string
}

func (w *recordingWebhooks) Send(_ context.Context, _ string, event string, _ any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, event)
	return nil
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func testScaling() config.ScalingConfig {
	return config.ScalingConfig{
		Options: scaling.Options{
			SendOriginal: true,
			FailureText:  "Failed to scale",
			Sizes: []scaling.SizeSpec{
				{MaxSize: 160, Name: "small"},
				{MaxSize: 640, Name: "medium"},
			},
		},
		Capabilities: scaling.Capabilities{ImagePreview: true},
	}
}

func writeReferenceFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "photo.png")
	if err := os.WriteFile(path, pngMagic, 0o644); err != nil {
		t.Fatalf("write reference file: %v", err)
	}
	return path
}

func newScaleTask(t *testing.T, payload queue.ScaleUploadPayload) *asynq.Task {
	t.Helper()
	task, err := queue.NewScaleUploadTask(payload)
	if err != nil {
		t.Fatalf("build scale task: %v", err)
	}
	return task
}

func TestHandleScaleUploadSucceeds(t *testing.T) {
	st := store.NewMemoryUploadStore()
	hooks := &recordingWebhooks{}
	outDir := t.TempDir()
	refPath := writeReferenceFile(t)

	srv, err := NewServer(Config{
		Logger:         testLogger(),
		Store:          st,
		Webhooks:       hooks,
		Scaling:        testScaling(),
		Renderer:       &stubRenderer{},
		LocalOutputDir: outDir,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	upload := domain.Upload{
		ID:         "upload-1",
		Status:     domain.UploadStatusQueued,
		SourceType: domain.SourceTypeLocalFile,
		Name:       "photo.png",
		ObjectKey:  refPath,
		WebhookURL: "https://hooks.example/uploads",
	}
	if err := st.Create(context.Background(), upload); err != nil {
		t.Fatalf("create upload: %v", err)
	}

	task := newScaleTask(t, queue.ScaleUploadPayload{
		UploadID:   upload.ID,
		SourceType: upload.SourceType,
		ObjectKey:  upload.ObjectKey,
		Name:       upload.Name,
		WebhookURL: upload.WebhookURL,
	})
	if err := srv.HandleScaleUpload(context.Background(), task); err != nil {
		t.Fatalf("handle task: %v", err)
	}

	stored, _, err := st.Get(context.Background(), upload.ID)
	if err != nil {
		t.Fatalf("get upload: %v", err)
	}
	if stored.Status != domain.UploadStatusSucceeded {
		t.Fatalf("expected status succeeded, got %s", stored.Status)
	}
	if len(stored.Variants) != 3 {
		t.Fatalf("expected 2 scaled variants plus the original, got %d", len(stored.Variants))
	}
	if stored.Variants[0].Name != "photo (small).png" {
		t.Fatalf("expected first variant photo (small).png, got %s", stored.Variants[0].Name)
	}
	if stored.Variants[2].Name != "photo.png" {
		t.Fatalf("expected passthrough original last, got %s", stored.Variants[2].Name)
	}

	for _, result := range stored.Variants {
		if !result.OK {
			t.Fatalf("expected variant %s to succeed: %s", result.Name, result.Error)
		}
		if _, err := os.Stat(result.ObjectKey); err != nil {
			t.Fatalf("expected emitted file %s: %v", result.ObjectKey, err)
		}
	}

	if len(hooks.events) != 1 || hooks.events[0] != EventCompleted {
		t.Fatalf("expected one upload.completed webhook, got %v", hooks.events)
	}
}

func TestHandleScaleUploadPartialOnRenderFailure(t *testing.T) {
	st := store.NewMemoryUploadStore()
	hooks := &recordingWebhooks{}
	refPath := writeReferenceFile(t)

	srv, err := NewServer(Config{
		Logger:         testLogger(),
		Store:          st,
		Webhooks:       hooks,
		Scaling:        testScaling(),
		Renderer:       &stubRenderer{err: errors.New("decode exploded")},
		LocalOutputDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	upload := domain.Upload{
		ID:         "upload-2",
		SourceType: domain.SourceTypeLocalFile,
		Name:       "photo.png",
		ObjectKey:  refPath,
		WebhookURL: "https://hooks.example/uploads",
	}
	if err := st.Create(context.Background(), upload); err != nil {
		t.Fatalf("create upload: %v", err)
	}

	task := newScaleTask(t, queue.ScaleUploadPayload{
		UploadID:   upload.ID,
		SourceType: upload.SourceType,
		ObjectKey:  upload.ObjectKey,
		Name:       upload.Name,
		WebhookURL: upload.WebhookURL,
	})
	if err := srv.HandleScaleUpload(context.Background(), task); err != nil {
		t.Fatalf("handle task: %v", err)
	}

	stored, _, err := st.Get(context.Background(), upload.ID)
	if err != nil {
		t.Fatalf("get upload: %v", err)
	}
	if stored.Status != domain.UploadStatusPartial {
		t.Fatalf("expected status partial, got %s", stored.Status)
	}

	for _, result := range stored.Variants[:2] {
		if result.OK {
			t.Fatalf("expected scaled variant %s to fail", result.Name)
		}
		if result.Error != "Failed to scale" {
			t.Fatalf("expected configured failure text, got %q", result.Error)
		}
	}
	if !stored.Variants[2].OK {
		t.Fatalf("expected passthrough original to survive render failures")
	}

	if len(hooks.events) != 1 || hooks.events[0] != EventPartial {
		t.Fatalf("expected one upload.partial webhook, got %v", hooks.events)
	}
}

func TestHandleScaleUploadMissingUploadSkipsRetry(t *testing.T) {
	srv, err := NewServer(Config{
		Logger:         testLogger(),
		Store:          store.NewMemoryUploadStore(),
		Scaling:        testScaling(),
		Renderer:       &stubRenderer{},
		LocalOutputDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	task := newScaleTask(t, queue.ScaleUploadPayload{
		UploadID:   "missing",
		SourceType: domain.SourceTypeLocalFile,
		ObjectKey:  "/nonexistent.png",
	})

	err = srv.HandleScaleUpload(context.Background(), task)
	if err == nil {
		t.Fatal("expected error for missing upload")
	}
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry error, got %v", err)
	}
}

func TestHandleScaleUploadUnsupportedSourcePassthroughOnly(t *testing.T) {
	st := store.NewMemoryUploadStore()
	dir := t.TempDir()
	refPath := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(refPath, []byte("plain text"), 0o644); err != nil {
		t.Fatalf("write reference file: %v", err)
	}

	srv, err := NewServer(Config{
		Logger:         testLogger(),
		Store:          st,
		Scaling:        testScaling(),
		Renderer:       &stubRenderer{},
		LocalOutputDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	upload := domain.Upload{
		ID:         "upload-3",
		SourceType: domain.SourceTypeLocalFile,
		Name:       "notes.txt",
		ObjectKey:  refPath,
	}
	if err := st.Create(context.Background(), upload); err != nil {
		t.Fatalf("create upload: %v", err)
	}

	task := newScaleTask(t, queue.ScaleUploadPayload{
		UploadID:   upload.ID,
		SourceType: upload.SourceType,
		ObjectKey:  upload.ObjectKey,
		Name:       upload.Name,
	})
	if err := srv.HandleScaleUpload(context.Background(), task); err != nil {
		t.Fatalf("handle task: %v", err)
	}

	stored, _, err := st.Get(context.Background(), upload.ID)
	if err != nil {
		t.Fatalf("get upload: %v", err)
	}
	if stored.Status != domain.UploadStatusSucceeded {
		t.Fatalf("expected status succeeded, got %s", stored.Status)
	}
	if len(stored.Variants) != 1 || stored.Variants[0].Name != "notes.txt" {
		t.Fatalf("expected only the passthrough original, got %+v", stored.Variants)
	}
}

func TestSanitizePathToken(t *testing.T) {
	cases := map[string]string{
		"photo (small).png": "photo (small).png",
		"a/b/c.png":         "a_b_c.png",
		"..\\evil.png":      "__evil.png",
		"  ":                "unnamed",
	}
	for in, want := range cases {
		if got := sanitizePathToken(in); got != want {
			t.Fatalf("sanitizePathToken(%q) = %q, want %q", in, got, want)
		}
	}
}
