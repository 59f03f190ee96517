// bundle.go — .certbundle archives: a layout plus its template, font and name list.
package layout

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Entry names inside a bundle.
const (
	LayoutEntry = "layout.json"
	NamesEntry  = "names.txt"
	FontEntry   = "font.ttf"
)

// BundleExt is the conventional extension of a bundle file.
const BundleExt = ".certbundle"

// DefaultMaxEntryBytes caps a single decompressed entry when no limit is given.
const DefaultMaxEntryBytes = 64 << 20

var (
	ErrNoLayout      = errors.New("bundle has no " + LayoutEntry)
	ErrEntryTooLarge = errors.New("bundle entry too large")
)

// Bundle is everything needed to rerun a batch elsewhere.
type Bundle struct {
	Layout       *Layout
	TemplateName string // entry name, e.g. template.png
	Template     []byte
	Font         []byte
	Names        string
}

// LoadBundle opens and parses a bundle file.
func LoadBundle(p string) (*Bundle, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
	b, err := ReadBundle(data, DefaultMaxEntryBytes)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", p, err)
	}
	return b, nil
}

// ReadBundle parses a bundle held in memory. Entries other than the known ones are ignored.
// No entry may decompress to more than maxEntry bytes; zero or less means DefaultMaxEntryBytes.
func ReadBundle(data []byte, maxEntry int64) (*Bundle, error) {
	if maxEntry <= 0 {
		maxEntry = DefaultMaxEntryBytes
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("invalid zip: %w", err)
	}

	b := &Bundle{}
	for _, f := range zr.File {
		// Guard against zip slip.
		if !filepath.IsLocal(f.Name) {
			return nil, fmt.Errorf("illegal path in bundle: %s", f.Name)
		}
		if f.FileInfo().IsDir() {
			continue
		}

		name := path.Clean(f.Name)
		switch {
		case name == LayoutEntry:
			raw, err := readEntry(f, maxEntry)
			if err != nil {
				return nil, err
			}
			if b.Layout, err = Parse(raw); err != nil {
				return nil, err
			}
		case name == NamesEntry:
			raw, err := readEntry(f, maxEntry)
			if err != nil {
				return nil, err
			}
			b.Names = string(raw)
		case name == FontEntry:
			if b.Font, err = readEntry(f, maxEntry); err != nil {
				return nil, err
			}
		case isTemplateEntry(name):
			if b.Template, err = readEntry(f, maxEntry); err != nil {
				return nil, err
			}
			b.TemplateName = name
		}
	}

	if b.Layout == nil {
		return nil, ErrNoLayout
	}
	return b, nil
}

// WriteBundle packs b into a zip and writes it to w once packaging succeeded.
func WriteBundle(w io.Writer, b *Bundle) error {
	if b.Layout == nil {
		return ErrNoLayout
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	add := func(name string, data []byte) error {
		fw, err := zw.Create(name)
		if err != nil {
			return fmt.Errorf("add %s: %w", name, err)
		}
		_, err = fw.Write(data)
		return err
	}

	raw, err := json.MarshalIndent(b.Layout, "", "  ")
	if err != nil {
		return fmt.Errorf("encode layout: %w", err)
	}
	if err := add(LayoutEntry, raw); err != nil {
		return err
	}
	if len(b.Template) > 0 {
		name := b.TemplateName
		if !isTemplateEntry(name) {
			name = "template.png"
		}
		if err := add(name, b.Template); err != nil {
			return err
		}
	}
	if len(b.Font) > 0 {
		if err := add(FontEntry, b.Font); err != nil {
			return err
		}
	}
	if b.Names != "" {
		if err := add(NamesEntry, []byte(b.Names)); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close bundle: %w", err)
	}

	_, err = buf.WriteTo(w)
	return err
}

func isTemplateEntry(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return strings.TrimSuffix(name, path.Ext(name)) == "template" &&
		(ext == ".png" || ext == ".jpg" || ext == ".jpeg")
}

func readEntry(f *zip.File, limit int64) ([]byte, error) {
	if f.UncompressedSize64 > uint64(limit) {
		return nil, fmt.Errorf("%w: %s", ErrEntryTooLarge, f.Name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	// the header size can lie; stop reading one byte past the limit
	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: %s", ErrEntryTooLarge, f.Name)
	}
	return data, nil
}
