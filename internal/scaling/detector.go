package scaling

import "github.com/h2non/filetype"

// FiletypeDetector sniffs the blob's magic bytes and reports whether the
// detected encoding is one the rendering engine handles natively. The
// declared MIME type of the blob is deliberately ignored: uploads lie about
// their content type often enough that only the bytes count.
type FiletypeDetector struct {
	caps Capabilities
}

func NewFiletypeDetector(caps Capabilities) FiletypeDetector {
	return FiletypeDetector{caps: caps}
}

func (d FiletypeDetector) IsPreviewable(blob Blob) bool {
	if !d.caps.ImagePreview {
		return false
	}

	kind, err := filetype.Match(blob.Data)
	if err != nil {
		return false
	}

	mimeType := kind.MIME.Value
	if !previewableMIMETypes[mimeType] {
		return false
	}
	if mimeType == MIMETIFF && !d.caps.TIFFPreview {
		return false
	}
	return true
}

// SniffMIME returns the MIME type detected from the blob's magic bytes, or
// "" when the bytes match no known signature.
func SniffMIME(data []byte) string {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return ""
	}
	return kind.MIME.Value
}
