// color.go — Hex color parsing for field and surface colors.
package render

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// ParseColor parses "#rrggbb" or the short "#rgb" form.
func ParseColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q: expected 6-char hex", s)
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

// ParseHexRGBA is ParseColor that falls back to black, the browser default text color.
func ParseHexRGBA(s string) color.RGBA {
	c, err := ParseColor(s)
	if err != nil {
		return color.RGBA{A: 255}
	}
	return c
}
