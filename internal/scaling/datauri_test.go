package scaling

import (
	"bytes"
	"errors"
	"testing"
)

func TestParseDataURIBase64RoundTrip(t *testing.T) {
	payload := []byte{0x00, 0x01, 0xFE, 0xFF, 'a', 'b'}
	uri := EncodeDataURI(Blob{Data: payload, MIME: MIMEPNG})

	blob, err := ParseDataURI(uri)
	if err != nil {
		t.Fatalf("parse data uri: %v", err)
	}
	if blob.MIME != MIMEPNG {
		t.Fatalf("expected %s, got %s", MIMEPNG, blob.MIME)
	}
	if !bytes.Equal(blob.Data, payload) {
		t.Fatalf("payload mismatch: %v vs %v", blob.Data, payload)
	}
}

func TestParseDataURIPercentEncoded(t *testing.T) {
	blob, err := ParseDataURI("data:image/svg+xml,%3Csvg%3E%20%3C%2Fsvg%3E")
	if err != nil {
		t.Fatalf("parse data uri: %v", err)
	}
	if blob.MIME != "image/svg+xml" {
		t.Fatalf("expected image/svg+xml, got %s", blob.MIME)
	}
	if string(blob.Data) != "<svg> </svg>" {
		t.Fatalf("unexpected payload: %q", blob.Data)
	}
}

func TestParseDataURIHeaderWithoutBase64Marker(t *testing.T) {
	blob, err := ParseDataURI("data:text/plain,hello")
	if err != nil {
		t.Fatalf("parse data uri: %v", err)
	}
	if blob.MIME != "text/plain" {
		t.Fatalf("expected text/plain, got %s", blob.MIME)
	}
	if string(blob.Data) != "hello" {
		t.Fatalf("unexpected payload: %q", blob.Data)
	}
}

func TestParseDataURIMalformed(t *testing.T) {
	for _, uri := range []string{
		"image/png;base64,AAAA",
		"data:image/png;base64",
		"data:image/png;base64,!!!not-base64!!!",
	} {
		if _, err := ParseDataURI(uri); !errors.Is(err, ErrMalformedDataURI) {
			t.Fatalf("expected ErrMalformedDataURI for %q, got %v", uri, err)
		}
	}
}
