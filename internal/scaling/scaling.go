// Package scaling derives an ordered set of scaled image variants from a
// single reference image. Variant metadata (name, negotiated MIME type,
// identifier) is computed eagerly; the resized bytes are produced lazily,
// one deferred producer per variant, so nothing is rendered until a caller
// asks for it.
package scaling

import (
	"context"
	"errors"
	"strings"
)

const (
	MIMEJPEG = "image/jpeg"
	MIMEGIF  = "image/gif"
	MIMEPNG  = "image/png"
	MIMEBMP  = "image/bmp"
	MIMETIFF = "image/tiff"
	MIMEWEBP = "image/webp"
)

// previewableMIMETypes is the set of source encodings a rendering engine is
// expected to handle natively. TIFF additionally requires a capability flag,
// see NegotiateType.
var previewableMIMETypes = map[string]bool{
	MIMEJPEG: true,
	MIMEGIF:  true,
	MIMEPNG:  true,
	MIMEBMP:  true,
	MIMETIFF: true,
}

// OrientationPolicy controls whether the renderer applies the source EXIF
// orientation before scaling.
type OrientationPolicy string

const (
	OrientAuto OrientationPolicy = "auto"
	OrientOff  OrientationPolicy = "off"
)

// Blob is an immutable binary payload tagged with its MIME type.
type Blob struct {
	Data []byte
	MIME string
}

// Reference is the caller-owned source image the pipeline derives from.
// The pipeline only ever reads it.
type Reference struct {
	UUID string
	Name string
	Blob Blob
}

// SizeSpec describes one requested variant: a bound on the longest edge, a
// label appended to the derived file name, and an optional output MIME type.
type SizeSpec struct {
	MaxSize int    `yaml:"max_size" json:"max_size"`
	Name    string `yaml:"name" json:"name"`
	Type    string `yaml:"type,omitempty" json:"type,omitempty"`
}

// Capabilities carries the platform feature flags consulted during type
// negotiation. It is passed in explicitly rather than probed globally.
type Capabilities struct {
	ImagePreview bool `yaml:"image_preview" json:"image_preview"`
	TIFFPreview  bool `yaml:"tiff_preview" json:"tiff_preview"`
}

// Options is the configuration surface of the pipeline.
type Options struct {
	SendOriginal   bool              `yaml:"send_original"`
	IncludeExif    bool              `yaml:"include_exif"`
	Orient         OrientationPolicy `yaml:"orient"`
	DefaultType    string            `yaml:"default_type"`
	DefaultQuality int               `yaml:"default_quality"`
	FailureText    string            `yaml:"failure_text"`
	Sizes          []SizeSpec        `yaml:"sizes"`
}

// RenderOptions parameterizes a single render call. An empty Type means no
// output override; the renderer then falls back to PNG, mirroring what a
// drawing surface does when asked for an unspecified encoding.
type RenderOptions struct {
	MaxSize int
	Orient  OrientationPolicy
	Type    string
	Quality int
}

// Renderer is the external rendering engine: it decodes the source blob,
// applies orientation and the size bound, and returns the result as a
// data URI at the requested type and quality.
type Renderer interface {
	Render(ctx context.Context, src Blob, opts RenderOptions) (string, error)
}

// ExifRestorer transplants the metadata headers of the original encoded
// image into the rendered one. Both arguments and the result are data URIs.
type ExifRestorer interface {
	Restore(originalDataURI, renderedDataURI string) (string, error)
}

// Detector answers whether a blob can be rendered natively. It must be
// synchronous and side-effect free.
type Detector interface {
	IsPreviewable(blob Blob) bool
}

// ErrMalformedDataURI is returned by ParseDataURI for input that is not a
// well-formed data URI. It indicates a broken renderer, not a user error.
var ErrMalformedDataURI = errors.New("malformed data uri")

// subtype returns the text after the slash of a MIME type, or "" when the
// input has no slash.
func subtype(mimeType string) string {
	if i := strings.Index(mimeType, "/"); i >= 0 {
		return mimeType[i+1:]
	}
	return ""
}
