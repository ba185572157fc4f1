// Package exifx handles the JPEG APP1/Exif segment: reading the orientation
// tag and transplanting the whole segment from one encoded image into
// another. It works on the byte level only, no pixel data is touched.
package exifx

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrNotJPEG       = errors.New("not a jpeg stream")
	ErrNoExifSegment = errors.New("no exif segment")
	ErrNoOrientation = errors.New("no orientation tag")
)

const (
	markerSOI  = 0xD8
	markerAPP1 = 0xE1
	markerSOS  = 0xDA

	orientationTag = 0x0112
)

var exifHeader = []byte{'E', 'x', 'i', 'f', 0x00, 0x00}

// Orientation returns the EXIF orientation value (1-8) of a JPEG stream.
func Orientation(jpeg []byte) (int, error) {
	segment, err := exifSegment(jpeg)
	if err != nil {
		return 0, err
	}
	return orientationFromTIFF(segment[len(exifHeader):])
}

// exifSegment returns the payload of the first APP1 segment carrying the
// Exif header, without the marker and length bytes.
func exifSegment(jpeg []byte) ([]byte, error) {
	if len(jpeg) < 2 || jpeg[0] != 0xFF || jpeg[1] != markerSOI {
		return nil, ErrNotJPEG
	}

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
			return payload, nil
		}

		offset += 2 + length
	}

	return nil, ErrNoExifSegment
}

func hasExifHeader(payload []byte) bool {
	for i, b := range exifHeader {
		if payload[i] != b {
			return false
		}
	}
	return true
}

// orientationFromTIFF walks IFD0 of an embedded TIFF structure looking for
// the orientation tag.
func orientationFromTIFF(tiff []byte) (int, error) {
	if len(tiff) < 8 {
		return 0, ErrNoOrientation
	}

	var order binary.ByteOrder
	switch {
	case tiff[0] == 'I' && tiff[1] == 'I':
		order = binary.LittleEndian
	case tiff[0] == 'M' && tiff[1] == 'M':
		order = binary.BigEndian
	default:
		return 0, fmt.Errorf("%w: unknown byte order", ErrNoOrientation)
	}

	ifdOffset := int(order.Uint32(tiff[4:8]))
	if ifdOffset+2 > len(tiff) {
		return 0, ErrNoOrientation
	}

	count := int(order.Uint16(tiff[ifdOffset : ifdOffset+2]))
	entries := tiff[ifdOffset+2:]
	for i := 0; i < count; i++ {
		base := i * 12
		if base+12 > len(entries) {
			break
		}
		entry := entries[base : base+12]
		if order.Uint16(entry[0:2]) != orientationTag {
			continue
		}

		value := int(order.Uint16(entry[8:10]))
		if value < 1 || value > 8 {
			return 0, fmt.Errorf("%w: value %d out of range", ErrNoOrientation, value)
		}
		return value, nil
	}

	return 0, ErrNoOrientation
}
