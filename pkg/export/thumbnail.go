package export

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

// DefaultThumbnailWidth is the gallery tile width.
const DefaultThumbnailWidth = 240

// Thumbnail scales a PNG down to width pixels wide, keeping its aspect ratio.
// Images already narrower than width are re-encoded unchanged.
func Thumbnail(data []byte, width int) ([]byte, error) {
	if width <= 0 {
		width = DefaultThumbnailWidth
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode certificate: %w", err)
	}
	if img.Bounds().Dx() > width {
		img = imaging.Resize(img, width, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
