package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/jy4618272/fine-uploader/internal/exifx"
	"github.com/jy4618272/fine-uploader/internal/scaling"
)

type stdEngine struct{}

func (stdEngine) Render(ctx context.Context, src scaling.Blob, opts scaling.RenderOptions) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	if opts.MaxSize <= 0 {
		return "", errors.New("max size must be positive")
	}

	img, _, err := image.Decode(bytes.NewReader(src.Data))
	if err != nil {
		return "", fmt.Errorf("decode source image: %w", err)
	}

	if opts.Orient == scaling.OrientAuto && src.MIME == scaling.MIMEJPEG {
		if orientation, err := exifx.Orientation(src.Data); err == nil && orientation > 1 {
			img = applyOrientation(img, orientation)
		}
	}

	img = scaleToFit(img, opts.MaxSize)

	mimeType := outputMIME(opts.Type)
	data, err := encodeImage(img, mimeType, opts.Quality)
	if err != nil {
		return "", err
	}

	return scaling.EncodeDataURI(scaling.Blob{Data: data, MIME: mimeType}), nil
}

func scaleToFit(src image.Image, maxSize int) image.Image {
	srcBounds := src.Bounds()
	srcW := srcBounds.Dx()
	srcH := srcBounds.Dy()

	width, height := bounded(srcW, srcH, maxSize)
	if width == srcW && height == srcH {
		return src
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		srcY := srcBounds.Min.Y + (y*srcH)/height
		for x := 0; x < width; x++ {
			srcX := srcBounds.Min.X + (x*srcW)/width
			dst.Set(x, y, src.At(srcX, srcY))
		}
	}
	return dst
}

// applyOrientation bakes an EXIF orientation (2-8) into the pixel data so
// the output renders upright without metadata.
func applyOrientation(src image.Image, orientation int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	outW, outH := w, h
	if orientation >= 5 {
		outW, outH = h, w
	}

	dst := image.NewRGBA(image.Rect(0, 0, outW, outH))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := src.At(bounds.Min.X+x, bounds.Min.Y+y)
			switch orientation {
			case 2: // mirrored horizontally
				dst.Set(w-1-x, y, c)
			case 3: // rotated 180
				dst.Set(w-1-x, h-1-y, c)
			case 4: // mirrored vertically
				dst.Set(x, h-1-y, c)
			case 5: // mirrored then rotated 270 CW
				dst.Set(y, x, c)
			case 6: // rotated 90 CW
				dst.Set(h-1-y, x, c)
			case 7: // mirrored then rotated 90 CW
				dst.Set(h-1-y, w-1-x, c)
			case 8: // rotated 270 CW
				dst.Set(y, w-1-x, c)
			default:
				dst.Set(x, y, c)
			}
		}
	}
	return dst
}

func encodeImage(img image.Image, mimeType string, quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = defaultQuality
	}

	var buf bytes.Buffer
	switch mimeType {
	case scaling.MIMEJPEG:
		if err := jpeg.Encode(&buf, flatten(img), &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
	case scaling.MIMEPNG:
		encoder := png.Encoder{CompressionLevel: png.DefaultCompression}
		if err := encoder.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
	case scaling.MIMEGIF:
		if err := gif.Encode(&buf, img, &gif.Options{NumColors: 256}); err != nil {
			return nil, fmt.Errorf("encode gif: %w", err)
		}
	case scaling.MIMEBMP:
		if err := bmp.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode bmp: %w", err)
		}
	case scaling.MIMETIFF:
		if err := tiff.Encode(&buf, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
			return nil, fmt.Errorf("encode tiff: %w", err)
		}
	case scaling.MIMEWEBP:
		return nil, errors.New("webp export requires the govips build tag")
	default:
		return nil, fmt.Errorf("unsupported output type: %s", mimeType)
	}

	return buf.Bytes(), nil
}

// flatten composites the image over white; JPEG has no alpha channel and
// the stdlib encoder renders transparency as black otherwise.
func flatten(img image.Image) image.Image {
	if opaque, ok := img.(interface{ Opaque() bool }); ok && opaque.Opaque() {
		return img
	}

	bounds := img.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, image.White, image.Point{}, draw.Src)
	draw.Draw(dst, bounds, img, bounds.Min, draw.Over)
	return dst
}
