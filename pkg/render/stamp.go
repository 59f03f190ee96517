// stamp.go — Optional verification QR code drawn onto captured certificates.
package render

import (
	"fmt"
	"image"
	"image/draw"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/xob0t/CertStencil/pkg/certificate"
)

// NamePlaceholder in a stamp's content is replaced by the recipient name.
const NamePlaceholder = "{name}"

// QRStamp places a QR code encoding Content at Position.
type QRStamp struct {
	Enabled  bool                 `json:"enabled"`
	Content  string               `json:"content"`
	Size     int                  `json:"size"`
	Position certificate.Position `json:"position"`
}

// StampContent returns the payload encoded for recipient.
func (s QRStamp) StampContent(recipient string) string {
	return strings.ReplaceAll(s.Content, NamePlaceholder, recipient)
}

func drawStamp(img *image.RGBA, s QRStamp, recipient string) error {
	content := s.StampContent(recipient)
	if content == "" {
		return nil
	}
	size := max(s.Size, 64)

	q, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return fmt.Errorf("encode stamp: %w", err)
	}
	code := q.Image(size)

	at := image.Pt(s.Position.X, s.Position.Y)
	draw.Draw(img, code.Bounds().Add(at), code, code.Bounds().Min, draw.Over)
	return nil
}
