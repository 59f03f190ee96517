// encode.go — PNG encoding of rendered surfaces.
package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"os"
)

// DataURLPrefix starts every embeddable PNG produced by DataURL.
const DataURLPrefix = "data:image/png;base64,"

// EncodePNG encodes img to PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// DataURL wraps PNG bytes into an embeddable image-data string.
func DataURL(pngData []byte) string {
	return DataURLPrefix + base64.StdEncoding.EncodeToString(pngData)
}

// SavePNG saves an image to a PNG file.
func SavePNG(img image.Image, path string) error {
	data, err := EncodePNG(img)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
