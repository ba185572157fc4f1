// Package render implements the rendering engine consumed by the scaling
// pipeline: decode a source blob, honor the orientation policy, bound the
// longest edge, and hand the result back as a data URI. A pure-Go engine is
// always available; a libvips-backed one is selected by the govips build
// tag.
package render

import (
	"github.com/jy4618272/fine-uploader/internal/scaling"
)

const defaultQuality = 80

// New returns the engine selected at build time.
func New() (scaling.Renderer, error) {
	return newEngine()
}

// bounded scales (w, h) so the longest edge does not exceed maxSize.
// Images already inside the bound keep their dimensions; the engine never
// upscales.
func bounded(w, h, maxSize int) (int, int) {
	longest := w
	if h > longest {
		longest = h
	}
	if longest <= maxSize {
		return w, h
	}

	scaledW := (w * maxSize) / longest
	scaledH := (h * maxSize) / longest
	if scaledW < 1 {
		scaledW = 1
	}
	if scaledH < 1 {
		scaledH = 1
	}
	return scaledW, scaledH
}

// outputMIME resolves the effective encoding: an empty negotiated type
// means no override, which encodes to PNG like a drawing surface would.
func outputMIME(negotiated string) string {
	if negotiated == "" {
		return scaling.MIMEPNG
	}
	return negotiated
}
