package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jy4618272/fine-uploader/internal/scaling"
)

func writeScalingFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "scaling.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write scaling file: %v", err)
	}
	return path
}

func TestLoadScalingDefaults(t *testing.T) {
	cfg, err := LoadScaling("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if !cfg.SendOriginal {
		t.Fatal("defaults should send the original")
	}
	if len(cfg.Sizes) == 0 {
		t.Fatal("defaults should define sizes")
	}
	if !cfg.Capabilities.ImagePreview {
		t.Fatal("defaults should enable image preview")
	}
}

func TestLoadScalingFile(t *testing.T) {
	path := writeScalingFile(t, `
send_original: false
include_exif: true
orient: off
default_type: image/jpeg
default_quality: 70
failure_text: "Could not scale"
capabilities:
  image_preview: true
  tiff_preview: true
sizes:
  - max_size: 100
    name: small
  - max_size: 400
    name: large
    type: image/png
`)

	cfg, err := LoadScaling(path)
	if err != nil {
		t.Fatalf("load scaling: %v", err)
	}

	if cfg.SendOriginal {
		t.Fatal("send_original should be false")
	}
	if !cfg.IncludeExif {
		t.Fatal("include_exif should be true")
	}
	if cfg.Orient != scaling.OrientOff {
		t.Fatalf("expected orient off, got %q", cfg.Orient)
	}
	if cfg.DefaultType != scaling.MIMEJPEG {
		t.Fatalf("expected default type jpeg, got %q", cfg.DefaultType)
	}
	if !cfg.Capabilities.TIFFPreview {
		t.Fatal("tiff_preview should be true")
	}
	if len(cfg.Sizes) != 2 || cfg.Sizes[1].Type != scaling.MIMEPNG {
		t.Fatalf("unexpected sizes: %+v", cfg.Sizes)
	}
}

func TestLoadScalingRejectsBadSizes(t *testing.T) {
	path := writeScalingFile(t, `
sizes:
  - max_size: 0
    name: broken
`)
	if _, err := LoadScaling(path); err == nil {
		t.Fatal("expected validation error for max_size=0")
	}

	path = writeScalingFile(t, `
sizes:
  - max_size: 100
    name: ""
`)
	if _, err := LoadScaling(path); err == nil {
		t.Fatal("expected validation error for empty name")
	}
}
