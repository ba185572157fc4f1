package scaling

import "testing"

func TestDeriveNameKeepsExtensionForSameType(t *testing.T) {
	got := DeriveName("photo.jpg", "small", MIMEJPEG, MIMEJPEG)
	if got != "photo (small).jpg" {
		t.Fatalf("expected %q, got %q", "photo (small).jpg", got)
	}
}

func TestDeriveNameSwapsExtensionForNewType(t *testing.T) {
	got := DeriveName("photo.jpg", "large", MIMEPNG, MIMEJPEG)
	if got != "photo (large).png" {
		t.Fatalf("expected %q, got %q", "photo (large).png", got)
	}
}

func TestDeriveNameWithoutExtension(t *testing.T) {
	got := DeriveName("photo", "small", MIMEPNG, MIMEJPEG)
	if got != "photo (small)" {
		t.Fatalf("expected %q, got %q", "photo (small)", got)
	}
}

func TestDeriveNameUsesLastDot(t *testing.T) {
	got := DeriveName("vacation.2024.jpeg", "medium", MIMEJPEG, MIMEJPEG)
	if got != "vacation.2024 (medium).jpeg" {
		t.Fatalf("expected %q, got %q", "vacation.2024 (medium).jpeg", got)
	}
}

func TestDeriveNameEmptyNegotiatedTypeKeepsExtension(t *testing.T) {
	// An absent negotiated type has no subtype to borrow from.
	got := DeriveName("photo.tiff", "small", "", MIMETIFF)
	if got != "photo (small).tiff" {
		t.Fatalf("expected %q, got %q", "photo (small).tiff", got)
	}
}
