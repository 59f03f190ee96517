// validator.go — Sanity checks on a layout before a batch.
package layout

import (
	"fmt"
	"strings"

	"github.com/xob0t/CertStencil/pkg/certificate"
	"github.com/xob0t/CertStencil/pkg/render"
)

// Validate returns warnings (never fatal errors) for layout problems that still render.
func Validate(l *Layout) []string {
	if l == nil {
		return nil
	}

	var warnings []string
	seen := make(map[int]struct{}, len(l.Elements))
	for _, e := range l.Elements {
		if _, dup := seen[e.ID]; dup {
			warnings = append(warnings, fmt.Sprintf("duplicate field id %d: only the first is editable", e.ID))
		}
		seen[e.ID] = struct{}{}

		if e.FontSize <= 0 {
			warnings = append(warnings, fmt.Sprintf("field %d: font size %d is not positive", e.ID, e.FontSize))
		}
		if _, err := render.ParseColor(e.Color); err != nil {
			warnings = append(warnings, fmt.Sprintf("field %d: %v, drawing in black", e.ID, err))
		}
		if !onCanvas(e.Position) {
			warnings = append(warnings, fmt.Sprintf("field %d: position (%d,%d) is outside the %dx%d canvas",
				e.ID, e.Position.X, e.Position.Y, certificate.Canvas.Width, certificate.Canvas.Height))
		}
	}

	if certificate.FindRecipient(l.Elements) < 0 {
		warnings = append(warnings, fmt.Sprintf("no field named %q: every certificate will look the same",
			certificate.RecipientFieldName))
	}

	if s := l.Stamp; s != nil && s.Enabled {
		if strings.TrimSpace(s.Content) == "" {
			warnings = append(warnings, "stamp is enabled but has no content")
		}
		if !onCanvas(s.Position) {
			warnings = append(warnings, fmt.Sprintf("stamp position (%d,%d) is outside the canvas", s.Position.X, s.Position.Y))
		}
	}
	return warnings
}

func onCanvas(p certificate.Position) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < certificate.Canvas.Width && p.Y < certificate.Canvas.Height
}

// Describe returns a human-readable summary of the layout's fields.
func Describe(l *Layout) string {
	var b strings.Builder
	if l.Meta.Name != "" {
		fmt.Fprintf(&b, "Layout: %s\n", l.Meta.Name)
	}
	if l.Meta.Description != "" {
		b.WriteString(l.Meta.Description + "\n")
	}
	b.WriteString("\nFields:\n")
	for _, e := range l.Elements {
		marker := ""
		if e.IsRecipient() {
			marker = "  (recipient)"
		}
		fmt.Fprintf(&b, "  [%d] %-16s %q at (%d,%d) %dpx %s %s%s\n",
			e.ID, e.Name, e.Text, e.Position.X, e.Position.Y, e.FontSize, e.Color, e.FontFamily, marker)
	}
	if s := l.Stamp; s != nil && s.Enabled {
		fmt.Fprintf(&b, "\nStamp: %q at (%d,%d), %dpx\n", s.Content, s.Position.X, s.Position.Y, s.Size)
	}
	return b.String()
}
