//go:build govips && cgo

package render

import (
	"context"
	"fmt"

	"github.com/davidbyttow/govips/v2/vips"

	"github.com/jy4618272/fine-uploader/internal/scaling"
)

type govipsEngine struct{}

func (govipsEngine) Render(ctx context.Context, src scaling.Blob, opts scaling.RenderOptions) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	if opts.MaxSize <= 0 {
		return "", fmt.Errorf("max size must be positive")
	}

	img, err := vips.NewImageFromBuffer(src.Data)
	if err != nil {
		return "", fmt.Errorf("decode source image: %w", err)
	}
	defer img.Close()

	if opts.Orient == scaling.OrientAuto {
		if err := img.AutoRotate(); err != nil {
			return "", fmt.Errorf("apply orientation: %w", err)
		}
	}

	width, height := bounded(img.Width(), img.Height(), opts.MaxSize)
	if width != img.Width() || height != img.Height() {
		scale := float64(width) / float64(img.Width())
		if err := img.Resize(scale, vips.KernelLanczos3); err != nil {
			return "", fmt.Errorf("resize image: %w", err)
		}
	}

	mimeType := outputMIME(opts.Type)
	data, err := exportImage(img, mimeType, opts.Quality)
	if err != nil {
		return "", err
	}

	return scaling.EncodeDataURI(scaling.Blob{Data: data, MIME: mimeType}), nil
}

func exportImage(img *vips.ImageRef, mimeType string, quality int) ([]byte, error) {
	switch mimeType {
	case scaling.MIMEJPEG:
		params := vips.NewJpegExportParams()
		if quality > 0 && quality <= 100 {
			params.Quality = quality
		}
		data, _, err := img.ExportJpeg(params)
		if err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
		return data, nil
	case scaling.MIMEPNG:
		params := vips.NewPngExportParams()
		if quality > 0 && quality <= 100 {
			params.Quality = quality
		}
		data, _, err := img.ExportPng(params)
		if err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
		return data, nil
	case scaling.MIMEWEBP:
		params := vips.NewWebpExportParams()
		if quality > 0 && quality <= 100 {
			params.Quality = quality
		}
		data, _, err := img.ExportWebp(params)
		if err != nil {
			return nil, fmt.Errorf("encode webp: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported output type for govips engine: %s", mimeType)
	}
}
