// Package export turns generated certificates into downloadable files: single PNGs,
// a zip of the whole batch, gallery thumbnails and plain directories for the CLI.
package export

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/xob0t/CertStencil/pkg/certificate"
)

const (
	// FilePrefix starts every exported certificate file name.
	FilePrefix = "chung-chi"
	// ArchiveName is the fixed name of the bulk download.
	ArchiveName = FilePrefix + ".zip"
)

var (
	ErrInvalidDataURL = errors.New("invalid data URL")
	ErrEmptyBatch     = errors.New("no certificates to export")
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// FileName returns the download name for a recipient: every whitespace run becomes "-".
func FileName(name string) string {
	return FilePrefix + "-" + whitespaceRe.ReplaceAllString(name, "-") + ".png"
}

// FileNames returns one file name per certificate. Repeated recipients get a numeric
// suffix so no archive entry or file overwrites another.
func FileNames(certs []certificate.GeneratedCertificate) []string {
	used := make(map[string]bool, len(certs))
	next := make(map[string]int, len(certs))
	out := make([]string, len(certs))
	for i, c := range certs {
		base := FileName(c.Name)
		name := base
		if used[name] {
			ext := path.Ext(base)
			n := max(next[base], 2)
			for {
				name = strings.TrimSuffix(base, ext) + "-" + strconv.Itoa(n) + ext
				n++
				if !used[name] {
					break
				}
			}
			next[base] = n
		}
		used[name] = true
		out[i] = name
	}
	return out
}

// DecodeDataURL extracts the payload of a base64 data URL.
func DecodeDataURL(s string) ([]byte, error) {
	header, payload, ok := strings.Cut(s, ",")
	if !ok || !strings.HasPrefix(header, "data:") || !strings.HasSuffix(header, ";base64") {
		return nil, ErrInvalidDataURL
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	return data, nil
}

// WriteArchive packs every certificate into a zip and writes it to w. The archive is
// assembled in memory first; w receives nothing unless packaging succeeds.
func WriteArchive(w io.Writer, certs []certificate.GeneratedCertificate) error {
	if len(certs) == 0 {
		return ErrEmptyBatch
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for i, name := range FileNames(certs) {
		data, err := DecodeDataURL(certs[i].DataURL)
		if err != nil {
			return fmt.Errorf("certificate %q: %w", certs[i].Name, err)
		}
		fw, err := zw.Create(name)
		if err != nil {
			return fmt.Errorf("add %s: %w", name, err)
		}
		if _, err := fw.Write(data); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}

	_, err := buf.WriteTo(w)
	return err
}
