// fonts.go - Font registry with embedded fallbacks and uploaded custom families.
// Uses golang.org/x/image/font for OpenType rendering. Unknown families resolve to
// Go Regular so a missing font never blocks a render.
package render

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// CustomFontPrefix prefixes the family name of every uploaded font.
const CustomFontPrefix = "customFont-"

// ErrEmptyFont is returned when an upload carries no bytes.
var ErrEmptyFont = errors.New("empty font data")

// FontRegistry maps family names to parsed fonts.
type FontRegistry struct {
	mu        sync.RWMutex
	fonts     map[string]*opentype.Font
	raw       map[string][]byte // uploaded families only
	fallback  *opentype.Font
	lastStamp int64
	now       func() time.Time
}

// NewFontRegistry creates a registry preloaded with the embedded Go fonts.
func NewFontRegistry() (*FontRegistry, error) {
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded font: %w", err)
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded bold font: %w", err)
	}

	return &FontRegistry{
		fonts: map[string]*opentype.Font{
			"serif":      regular,
			"sans-serif": regular,
			"bold":       bold,
		},
		raw:      make(map[string][]byte),
		fallback: regular,
		now:      time.Now,
	}, nil
}

// Register parses a TTF/OTF font and makes it available under a freshly generated
// family name of the form customFont-<unix millis>. Two registrations never share a name.
func (r *FontRegistry) Register(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyFont
	}
	parsed, err := opentype.Parse(data)
	if err != nil {
		return "", fmt.Errorf("failed to parse font: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stamp := r.now().UnixMilli()
	if stamp <= r.lastStamp {
		stamp = r.lastStamp + 1
	}
	r.lastStamp = stamp

	family := CustomFontPrefix + strconv.FormatInt(stamp, 10)
	r.fonts[family] = parsed
	r.raw[family] = data
	return family, nil
}

// Data returns the original bytes of an uploaded family.
func (r *FontRegistry) Data(family string) ([]byte, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	data, ok := r.raw[family]
	return data, ok
}

// RegisterFile reads a font file from disk and registers it.
func (r *FontRegistry) RegisterFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read font %s: %w", path, err)
	}
	return r.Register(data)
}

// Has reports whether family was registered or is built in.
func (r *FontRegistry) Has(family string) bool {
	r.mu.RLock()
	_, ok := r.fonts[family]
	r.mu.RUnlock()
	return ok
}

// lookup returns the font for family, or the fallback.
func (r *FontRegistry) lookup(family string) *opentype.Font {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if f, ok := r.fonts[family]; ok {
		return f
	}
	return r.fallback
}

// Face returns a new font.Face for family at size pixels. Faces are not safe for
// concurrent use, so callers create one per render.
func (r *FontRegistry) Face(family string, size float64) (font.Face, error) {
	face, err := opentype.NewFace(r.lookup(family), &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}
	return face, nil
}
