package certificate

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ParseNames splits a free-text name list into recipient names, one per line.
// Lines are trimmed and blank lines dropped; order is preserved. Names are
// NFC-normalised so decomposed diacritics map onto single glyphs.
func ParseNames(text string) []string {
	var names []string
	for _, line := range strings.Split(text, "\n") {
		name := strings.TrimSpace(line)
		if name == "" {
			continue
		}
		names = append(names, norm.NFC.String(name))
	}
	return names
}
