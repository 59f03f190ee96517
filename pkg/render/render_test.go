package render

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"testing"
	"time"

	"golang.org/x/image/font/gofont/goregular"

	"github.com/xob0t/CertStencil/pkg/certificate"
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	fonts, err := NewFontRegistry()
	if err != nil {
		t.Fatalf("NewFontRegistry: %v", err)
	}
	return NewRenderer(fonts)
}

func solidTemplate(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
	return img
}

func sameImage(a, b *image.RGBA) bool {
	if a.Bounds() != b.Bounds() || len(a.Pix) != len(b.Pix) {
		return false
	}
	for i := range a.Pix {
		if a.Pix[i] != b.Pix[i] {
			return false
		}
	}
	return true
}

func TestRenderWithoutTemplateDrawsPlaceholderSurface(t *testing.T) {
	r := newTestRenderer(t)
	img, err := r.Render(context.Background(), Scene{
		Elements: certificate.DefaultElements(time.Now()),
		Mode:     Preview,
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got := img.Bounds().Size(); got != image.Pt(800, 566) {
		t.Fatalf("size = %v, want 800x566", got)
	}
	if got := img.RGBAAt(0, 0); got != placeholderBackground {
		t.Fatalf("corner pixel = %v, want %v", got, placeholderBackground)
	}
}

func TestRenderCaptureNeverDrawsPlaceholderText(t *testing.T) {
	r := newTestRenderer(t)
	tmpl := solidTemplate(400, 283, color.RGBA{200, 30, 30, 255})
	empty := []certificate.TextElement{{ID: 1, Name: "x", FontSize: 32, Color: "#000000", FontFamily: "serif"}}

	bare, err := r.Render(context.Background(), Scene{Template: tmpl, Mode: Capture})
	if err != nil {
		t.Fatalf("Render bare: %v", err)
	}
	captured, err := r.Render(context.Background(), Scene{Template: tmpl, Elements: empty, Mode: Capture})
	if err != nil {
		t.Fatalf("Render capture: %v", err)
	}
	if !sameImage(bare, captured) {
		t.Fatal("capture of an empty field changed pixels")
	}

	preview, err := r.Render(context.Background(), Scene{Template: tmpl, Elements: empty, Mode: Preview})
	if err != nil {
		t.Fatalf("Render preview: %v", err)
	}
	if sameImage(bare, preview) {
		t.Fatal("preview of an empty field should show the placeholder")
	}
}

func TestRenderDrawsTextInsideMeasuredBox(t *testing.T) {
	r := newTestRenderer(t)
	tmpl := solidTemplate(800, 566, color.White)
	el := certificate.TextElement{ID: 1, Name: "n", Text: "MMMM", FontSize: 40, Color: "#000000", FontFamily: "serif", Position: certificate.Position{X: 100, Y: 100}}

	img, err := r.Render(context.Background(), Scene{Template: tmpl, Elements: []certificate.TextElement{el}, Mode: Capture})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	box, err := r.Measure(el)
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}

	inside, outside := 0, 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.RGBAAt(x, y).R < 128 {
				if image.Pt(x, y).In(box) {
					inside++
				} else {
					outside++
				}
			}
		}
	}
	if inside == 0 {
		t.Fatal("expected dark text pixels inside the measured box")
	}
	if outside != 0 {
		t.Fatalf("found %d dark pixels outside the measured box %v", outside, box)
	}
}

func TestMeasureAnchorsAtPosition(t *testing.T) {
	r := newTestRenderer(t)
	el := certificate.TextElement{Text: "Nguyễn Văn A", FontSize: 48, FontFamily: "serif", Position: certificate.Position{X: 200, Y: 250}}

	box, err := r.Measure(el)
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	if box.Min != image.Pt(200, 250) {
		t.Fatalf("box.Min = %v, want (200,250)", box.Min)
	}
	if box.Dy() < 48 || box.Dx() <= 2*boxInset {
		t.Fatalf("unexpected box size %v", box.Size())
	}

	wider := el
	wider.FontSize = 96
	big, err := r.Measure(wider)
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	if big.Dx() <= box.Dx() {
		t.Fatalf("larger font should measure wider: %d <= %d", big.Dx(), box.Dx())
	}
}

func TestRenderStopsOnCancelledContext(t *testing.T) {
	r := newTestRenderer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Render(ctx, Scene{
		Template: solidTemplate(10, 10, color.White),
		Elements: certificate.DefaultElements(time.Now()),
		Mode:     Capture,
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestRegisterGeneratesDistinctFamilies(t *testing.T) {
	fonts, err := NewFontRegistry()
	if err != nil {
		t.Fatalf("NewFontRegistry: %v", err)
	}
	fixed := time.UnixMilli(1700000000000)
	fonts.now = func() time.Time { return fixed }

	first, err := fonts.Register(goregular.TTF)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	second, err := fonts.Register(goregular.TTF)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if first == second {
		t.Fatalf("families collide: %q", first)
	}
	for _, f := range []string{first, second} {
		if !strings.HasPrefix(f, CustomFontPrefix) {
			t.Fatalf("family %q lacks prefix %q", f, CustomFontPrefix)
		}
		if !fonts.Has(f) {
			t.Fatalf("family %q not registered", f)
		}
	}
	if first != "customFont-1700000000000" {
		t.Fatalf("first = %q", first)
	}
}

func TestRegisterRejectsInvalidFont(t *testing.T) {
	fonts, err := NewFontRegistry()
	if err != nil {
		t.Fatalf("NewFontRegistry: %v", err)
	}
	if _, err := fonts.Register(nil); !errors.Is(err, ErrEmptyFont) {
		t.Fatalf("err = %v, want ErrEmptyFont", err)
	}
	if _, err := fonts.Register([]byte("not a font")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.RGBA
		wantErr bool
	}{
		{"#333333", color.RGBA{0x33, 0x33, 0x33, 255}, false},
		{"#fff", color.RGBA{255, 255, 255, 255}, false},
		{"00ff7f", color.RGBA{0, 255, 127, 255}, false},
		{"#12345", color.RGBA{}, true},
		{"#zzzzzz", color.RGBA{}, true},
	}
	for _, tt := range tests {
		got, err := ParseColor(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseColor(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("ParseColor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestStampContentSubstitutesName(t *testing.T) {
	s := QRStamp{Content: "verify:{name}"}
	if got := s.StampContent("Trần Thị B"); got != "verify:Trần Thị B" {
		t.Fatalf("StampContent = %q", got)
	}
}

func TestDataURLPrefix(t *testing.T) {
	if got := DataURL([]byte{1, 2, 3}); got != DataURLPrefix+"AQID" {
		t.Fatalf("DataURL = %q", got)
	}
}

func TestFontDataOnlyForUploadedFamilies(t *testing.T) {
	fonts, err := NewFontRegistry()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := fonts.Data("serif"); ok {
		t.Fatal("built-in family exposes raw data")
	}
	family, err := fonts.Register(goregular.TTF)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	data, ok := fonts.Data(family)
	if !ok || len(data) != len(goregular.TTF) {
		t.Fatalf("Data(%q) = %d bytes, %v", family, len(data), ok)
	}
}
