// merge.go — Apply edits and per-recipient overrides onto the field collection.
package certificate

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidPatch is returned when an edit carries an unusable value.
var ErrInvalidPatch = errors.New("invalid element patch")

var hexColorRe = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// ElementPatch carries the properties a control-panel edit changes.
// Nil fields are left untouched.
type ElementPatch struct {
	Text       *string   `json:"text,omitempty"`
	FontSize   *int      `json:"fontSize,omitempty"`
	Color      *string   `json:"color,omitempty"`
	FontFamily *string   `json:"fontFamily,omitempty"`
	Position   *Position `json:"position,omitempty"`
}

// Validate rejects patches that would produce an unrenderable element.
func (p ElementPatch) Validate() error {
	if p.FontSize != nil && *p.FontSize <= 0 {
		return fmt.Errorf("%w: font size must be positive, got %d", ErrInvalidPatch, *p.FontSize)
	}
	if p.Color != nil && !hexColorRe.MatchString(*p.Color) {
		return fmt.Errorf("%w: color %q is not #rrggbb", ErrInvalidPatch, *p.Color)
	}
	if p.FontFamily != nil && *p.FontFamily == "" {
		return fmt.Errorf("%w: empty font family", ErrInvalidPatch)
	}
	return nil
}

// Apply overlays the patch onto e.
func (p ElementPatch) Apply(e *TextElement) {
	if p.Text != nil {
		e.Text = *p.Text
	}
	if p.FontSize != nil {
		e.FontSize = *p.FontSize
	}
	if p.Color != nil {
		e.Color = *p.Color
	}
	if p.FontFamily != nil {
		e.FontFamily = *p.FontFamily
	}
	if p.Position != nil {
		e.Position = *p.Position
	}
}

// Clone returns a copy of the collection that shares nothing with elements.
func Clone(elements []TextElement) []TextElement {
	if elements == nil {
		return nil
	}
	out := make([]TextElement, len(elements))
	copy(out, elements)
	return out
}

// Find returns the index of the element with the given id, or -1.
func Find(elements []TextElement, id int) int {
	for i := range elements {
		if elements[i].ID == id {
			return i
		}
	}
	return -1
}

// FindRecipient returns the index of the recipient-name field, or -1.
func FindRecipient(elements []TextElement) int {
	for i := range elements {
		if elements[i].IsRecipient() {
			return i
		}
	}
	return -1
}

// WithRecipient returns a copy of elements with the recipient field's text set to name.
// The input collection is never modified.
func WithRecipient(elements []TextElement, name string) []TextElement {
	out := Clone(elements)
	for i := range out {
		if out[i].IsRecipient() {
			out[i].Text = name
		}
	}
	return out
}

// SetFontFamily switches every element to family.
func SetFontFamily(elements []TextElement, family string) {
	for i := range elements {
		elements[i].FontFamily = family
	}
}
