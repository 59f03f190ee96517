// Package certificate holds the certificate editor's data model: positioned text
// fields overlaid on a template and the per-recipient render results.
package certificate

import (
	"fmt"
	"time"
)

// RecipientFieldName tags the field whose text is replaced for every recipient.
const RecipientFieldName = "Tên người nhận"

// DefaultFontFamily is the family assigned to fields before a custom font is uploaded.
const DefaultFontFamily = "serif"

// Canvas is the canonical size of the preview surface and of every rendered certificate.
var Canvas = Size{Width: 800, Height: 566}

// Size is a pixel extent.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Position is a top-left anchored pixel offset within the canvas.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// TextElement is one overlay field.
type TextElement struct {
	ID         int      `json:"id"`
	Name       string   `json:"name"`
	Text       string   `json:"text"`
	FontSize   int      `json:"fontSize"`
	Color      string   `json:"color"`
	Position   Position `json:"position"`
	FontFamily string   `json:"fontFamily"`
}

// IsRecipient reports whether the element is the per-recipient name field.
func (e TextElement) IsRecipient() bool {
	return e.Name == RecipientFieldName
}

// GeneratedCertificate is one rendered result.
type GeneratedCertificate struct {
	Name    string `json:"name"`
	DataURL string `json:"dataUrl"`
}

// DefaultElements returns the three demonstration fields a new session starts with.
func DefaultElements(now time.Time) []TextElement {
	return []TextElement{
		{
			ID:         1,
			Name:       RecipientFieldName,
			Text:       "Nguyễn Văn A",
			FontSize:   48,
			Color:      "#333333",
			Position:   Position{X: 200, Y: 250},
			FontFamily: DefaultFontFamily,
		},
		{
			ID:         2,
			Name:       "Tên khóa học",
			Text:       "Hoàn thành xuất sắc khóa học",
			FontSize:   24,
			Color:      "#555555",
			Position:   Position{X: 230, Y: 320},
			FontFamily: DefaultFontFamily,
		},
		{
			ID:         3,
			Name:       "Ngày cấp",
			Text:       FormatIssueDate(now),
			FontSize:   18,
			Color:      "#555555",
			Position:   Position{X: 350, Y: 400},
			FontFamily: DefaultFontFamily,
		},
	}
}

// FormatIssueDate formats t the way Vietnamese locales print short dates (d/m/yyyy).
func FormatIssueDate(t time.Time) string {
	return fmt.Sprintf("%d/%d/%d", t.Day(), int(t.Month()), t.Year())
}
