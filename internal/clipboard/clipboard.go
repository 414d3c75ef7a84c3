// Package clipboard publishes text and PNG data to the desktop clipboard.
package clipboard

import (
	"bytes"
	"fmt"
	"os"
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// WriteImageFile publishes the PNG stored at path.
func WriteImageFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read clipboard image: %w", err)
	}
	if !bytes.HasPrefix(data, pngSignature) {
		return fmt.Errorf("%s is not a PNG image", path)
	}
	return WritePNG(data)
}

// System is the desktop clipboard.
type System struct{}

func (System) WriteText(text string) error      { return WriteText(text) }
func (System) WriteImageFile(path string) error { return WriteImageFile(path) }
