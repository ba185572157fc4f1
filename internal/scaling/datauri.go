package scaling

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

const dataURIScheme = "data:"

// ParseDataURI decodes a data URI into a Blob. The header up to the first
// comma names the MIME type and, optionally, a base64 marker; the payload
// after the comma is decoded accordingly. Percent-encoded payloads must
// escape single-byte code units only; multi-byte escapes are a caller bug
// and are not detected here.
func ParseDataURI(uri string) (Blob, error) {
	if !strings.HasPrefix(uri, dataURIScheme) {
		return Blob{}, fmt.Errorf("%w: missing data scheme", ErrMalformedDataURI)
	}

	comma := strings.Index(uri, ",")
	if comma < 0 {
		return Blob{}, fmt.Errorf("%w: missing payload separator", ErrMalformedDataURI)
	}

	header := uri[len(dataURIScheme):comma]
	payload := uri[comma+1:]

	mimeType := header
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}

	var data []byte
	if strings.Contains(header, "base64") {
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return Blob{}, fmt.Errorf("%w: decode base64 payload: %v", ErrMalformedDataURI, err)
		}
		data = decoded
	} else {
		unescaped, err := url.PathUnescape(payload)
		if err != nil {
			return Blob{}, fmt.Errorf("%w: decode percent-encoded payload: %v", ErrMalformedDataURI, err)
		}
		data = []byte(unescaped)
	}

	return Blob{Data: data, MIME: mimeType}, nil
}

// EncodeDataURI renders a blob as a base64 data URI.
func EncodeDataURI(blob Blob) string {
	return dataURIScheme + blob.MIME + ";base64," + base64.StdEncoding.EncodeToString(blob.Data)
}
