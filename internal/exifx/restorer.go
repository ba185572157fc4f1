package exifx

import (
	"encoding/binary"
	"fmt"

	"github.com/jy4618272/fine-uploader/internal/scaling"
)

// Restorer copies the Exif APP1 segment of the original JPEG into a
// rendered JPEG that lost it during re-encoding. It satisfies
// scaling.ExifRestorer.
type Restorer struct{}

func (Restorer) Restore(originalDataURI, renderedDataURI string) (string, error) {
	original, err := scaling.ParseDataURI(originalDataURI)
	if err != nil {
		return "", fmt.Errorf("parse original: %w", err)
	}
	rendered, err := scaling.ParseDataURI(renderedDataURI)
	if err != nil {
		return "", fmt.Errorf("parse rendered: %w", err)
	}
	if original.MIME != scaling.MIMEJPEG || rendered.MIME != scaling.MIMEJPEG {
		return "", fmt.Errorf("%w: transplant is jpeg-to-jpeg only", ErrNotJPEG)
	}

	segment, err := exifSegment(original.Data)
	if err != nil {
		return "", fmt.Errorf("read original exif: %w", err)
	}

	merged, err := insertExifSegment(rendered.Data, segment)
	if err != nil {
		return "", err
	}

	return scaling.EncodeDataURI(scaling.Blob{Data: merged, MIME: scaling.MIMEJPEG}), nil
}

// insertExifSegment places an APP1/Exif segment directly after the SOI
// marker, dropping any Exif segment the stream already carries.
func insertExifSegment(jpeg, payload []byte) ([]byte, error) {
	if len(jpeg) < 2 || jpeg[0] != 0xFF || jpeg[1] != markerSOI {
		return nil, ErrNotJPEG
	}

	stripped, err := stripExifSegment(jpeg)
	if err != nil {
		return nil, err
	}

	segment := make([]byte, 4+len(payload))
	segment[0] = 0xFF
	segment[1] = markerAPP1
	binary.BigEndian.PutUint16(segment[2:4], uint16(len(payload)+2))
	copy(segment[4:], payload)

	out := make([]byte, 0, len(stripped)+len(segment))
	out = append(out, stripped[:2]...)
	out = append(out, segment...)
	out = append(out, stripped[2:]...)
	return out, nil
}

func stripExifSegment(jpeg []byte) ([]byte, error) {
	offset := 2
	for offset+4 <= len(jpeg) {
		if jpeg[offset] != 0xFF {
			return nil, fmt.Errorf("%w: bad marker at %d", ErrNotJPEG, offset)
		}
		marker := jpeg[offset+1]
		if marker == markerSOS {
			break
		}

		length := int(binary.BigEndian.Uint16(jpeg[offset+2 : offset+4]))
		if length < 2 || offset+2+length > len(jpeg) {
			return nil, fmt.Errorf("%w: truncated segment at %d", ErrNotJPEG, offset)
		}

		payload := jpeg[offset+4 : offset+2+length]
		if marker == markerAPP1 && len(payload) >= len(exifHeader) && hasExifHeader(payload) {
			out := make([]byte, 0, len(jpeg)-(2+length))
			out = append(out, jpeg[:offset]...)
			out = append(out, jpeg[offset+2+length:]...)
			return out, nil
		}

		offset += 2 + length
	}

	return jpeg, nil
}
