//go:build !govips || !cgo

package render

import "github.com/jy4618272/fine-uploader/internal/scaling"

func Startup() error {
	return nil
}

func Shutdown() {}

func newEngine() (scaling.Renderer, error) {
	return stdEngine{}, nil
}
