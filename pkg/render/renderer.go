// renderer.go - Composites a certificate from the data model: template background,
// then every text field at its position. Rendering never reads a live UI, so the
// output depends only on the Scene passed in.
package render

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/xob0t/CertStencil/pkg/certificate"
)

// Mode selects between the interactive preview and the final capture.
type Mode int

const (
	// Preview draws placeholders for empty fields so they stay visible while editing.
	Preview Mode = iota
	// Capture draws exactly the field text and nothing else.
	Capture
)

const (
	// PlaceholderText stands in for an empty field in Preview mode.
	PlaceholderText = "Văn bản mẫu"
	// EmptySurfaceText is shown while no template is loaded.
	EmptySurfaceText = "Xem trước mẫu chứng chỉ"

	// boxInset is the editing box's padding plus its border width.
	boxInset        = 5
	defaultFontSize = 16
)

var (
	surfaceBackground     = color.RGBA{255, 255, 255, 255}
	placeholderBackground = color.RGBA{0xf3, 0xf4, 0xf6, 255}
	placeholderForeground = color.RGBA{0x6b, 0x72, 0x80, 255}
)

// Scene is everything one composite depends on.
type Scene struct {
	Template  image.Image
	Elements  []certificate.TextElement
	Mode      Mode
	Stamp     *QRStamp
	Recipient string // substituted into Stamp content
}

// Renderer draws scenes onto the canonical canvas.
type Renderer struct {
	fonts *FontRegistry
	size  certificate.Size
}

// NewRenderer creates a renderer for the canonical canvas size.
func NewRenderer(fonts *FontRegistry) *Renderer {
	return &Renderer{fonts: fonts, size: certificate.Canvas}
}

// Fonts returns the registry faces are drawn from.
func (r *Renderer) Fonts() *FontRegistry {
	return r.fonts
}

// Size returns the canvas size.
func (r *Renderer) Size() certificate.Size {
	return r.size
}

// Render composites scene. It follows a layered approach:
// 1. Fills the surface white and covers it with the template, centered
// 2. Draws each field as a single unwrapped line at its position
// 3. Adds the verification stamp in Capture mode
func (r *Renderer) Render(ctx context.Context, scene Scene) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, r.size.Width, r.size.Height))

	if scene.Template == nil {
		if err := r.drawEmptySurface(img); err != nil {
			return nil, err
		}
		return img, nil
	}

	draw.Draw(img, img.Bounds(), &image.Uniform{surfaceBackground}, image.Point{}, draw.Src)
	bg := r.FitTemplate(scene.Template)
	draw.Draw(img, img.Bounds(), bg, bg.Bounds().Min, draw.Over)

	for _, el := range scene.Elements {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.drawElement(img, el, scene.Mode); err != nil {
			return nil, fmt.Errorf("draw %q: %w", el.Name, err)
		}
	}

	if scene.Mode == Capture && scene.Stamp != nil && scene.Stamp.Enabled {
		if err := drawStamp(img, *scene.Stamp, scene.Recipient); err != nil {
			return nil, err
		}
	}

	return img, nil
}

// FitTemplate scales and center-crops tmpl to cover the canvas. Images already at
// canvas size are returned as is, so a batch can fit the template once up front.
func (r *Renderer) FitTemplate(tmpl image.Image) image.Image {
	if tmpl.Bounds().Dx() == r.size.Width && tmpl.Bounds().Dy() == r.size.Height {
		return tmpl
	}
	return imaging.Fill(tmpl, r.size.Width, r.size.Height, imaging.Center, imaging.Lanczos)
}

// Measure returns the rendered box of el, in canvas coordinates. The box covers the
// text plus the editing inset, matching what a user grabs when dragging.
func (r *Renderer) Measure(el certificate.TextElement) (image.Rectangle, error) {
	face, err := r.fonts.Face(el.FontFamily, fontSize(el))
	if err != nil {
		return image.Rectangle{}, err
	}
	defer face.Close()

	text := displayText(el, Preview)
	m := face.Metrics()
	w := font.MeasureString(face, text).Ceil() + 2*boxInset
	h := (m.Ascent + m.Descent).Ceil() + 2*boxInset

	origin := image.Pt(el.Position.X, el.Position.Y)
	return image.Rectangle{Min: origin, Max: origin.Add(image.Pt(w, h))}, nil
}

// drawElement renders one field. Empty text draws nothing in Capture mode.
func (r *Renderer) drawElement(img *image.RGBA, el certificate.TextElement, mode Mode) error {
	text := displayText(el, mode)
	if text == "" {
		return nil
	}

	face, err := r.fonts.Face(el.FontFamily, fontSize(el))
	if err != nil {
		return err
	}
	defer face.Close()

	baseline := el.Position.Y + boxInset + face.Metrics().Ascent.Ceil()
	drawString(img, text, el.Position.X+boxInset, baseline, ParseHexRGBA(el.Color), face)
	return nil
}

// drawEmptySurface renders the "no template" placeholder.
func (r *Renderer) drawEmptySurface(img *image.RGBA) error {
	draw.Draw(img, img.Bounds(), &image.Uniform{placeholderBackground}, image.Point{}, draw.Src)

	face, err := r.fonts.Face(certificate.DefaultFontFamily, defaultFontSize)
	if err != nil {
		return err
	}
	defer face.Close()

	w := font.MeasureString(face, EmptySurfaceText).Ceil()
	m := face.Metrics()
	x := (r.size.Width - w) / 2
	y := (r.size.Height + m.Ascent.Ceil() - m.Descent.Ceil()) / 2
	drawString(img, EmptySurfaceText, x, y, placeholderForeground, face)
	return nil
}

// drawString draws text with its baseline at y.
func drawString(img *image.RGBA, text string, x, y int, col color.Color, face font.Face) {
	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	drawer.DrawString(text)
}

func displayText(el certificate.TextElement, mode Mode) string {
	if el.Text == "" && mode == Preview {
		return PlaceholderText
	}
	return el.Text
}

func fontSize(el certificate.TextElement) float64 {
	if el.FontSize <= 0 {
		return defaultFontSize
	}
	return float64(el.FontSize)
}
