// layout.go — Layout JSON files for the CLI: parsing, defaults and the init sample.
package layout

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/xob0t/CertStencil/pkg/certificate"
	"github.com/xob0t/CertStencil/pkg/render"
)

// Layout is the on-disk form of an editor session's fields.
type Layout struct {
	Meta     Meta                      `json:"meta,omitempty"`
	Elements []certificate.TextElement `json:"elements"`
	Stamp    *render.QRStamp           `json:"stamp,omitempty"`
}

// Meta describes a layout.
type Meta struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// Parse decodes layout JSON and fills missing style fields.
func Parse(data []byte) (*Layout, error) {
	var l Layout
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parse layout JSON: %w", err)
	}
	for i := range l.Elements {
		applyElementDefaults(&l.Elements[i])
	}
	return &l, nil
}

// ParseFile loads a layout from path.
func ParseFile(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}
	return Parse(data)
}

// Default returns the layout a fresh editor session starts with.
func Default(now time.Time) *Layout {
	return &Layout{
		Meta: Meta{
			Name:        "Chứng chỉ mẫu",
			Description: "Recipient name, course title and issue date.",
		},
		Elements: certificate.DefaultElements(now),
	}
}

// Example returns the sample layout written by certstencil init.
func Example(now time.Time) ([]byte, error) {
	l := Default(now)
	l.Stamp = &render.QRStamp{
		Content:  "Chứng nhận: {name}",
		Size:     96,
		Position: certificate.Position{X: 680, Y: 440},
	}
	return json.MarshalIndent(l, "", "  ")
}

// applyElementDefaults sets sane fallbacks for field style.
func applyElementDefaults(e *certificate.TextElement) {
	if e.FontSize <= 0 {
		e.FontSize = 16
	}
	if e.Color == "" {
		e.Color = "#000000"
	}
	if e.FontFamily == "" {
		e.FontFamily = certificate.DefaultFontFamily
	}
}
