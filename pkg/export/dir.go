package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xob0t/CertStencil/pkg/certificate"
)

// WriteDir writes each certificate as its own PNG under dir and returns the paths written.
func WriteDir(dir string, certs []certificate.GeneratedCertificate) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}

	paths := make([]string, 0, len(certs))
	for i, name := range FileNames(certs) {
		data, err := DecodeDataURL(certs[i].DataURL)
		if err != nil {
			return paths, fmt.Errorf("certificate %q: %w", certs[i].Name, err)
		}
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, data, 0644); err != nil {
			return paths, fmt.Errorf("write %s: %w", p, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// WriteFile writes the batch to out: a zip when out ends in .zip, otherwise a directory.
func WriteFile(out string, certs []certificate.GeneratedCertificate) ([]string, error) {
	if !strings.EqualFold(filepath.Ext(out), ".zip") {
		return WriteDir(out, certs)
	}

	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	f, err := os.Create(out)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", out, err)
	}
	if err := WriteArchive(f, certs); err != nil {
		f.Close()
		os.Remove(out)
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close %s: %w", out, err)
	}
	return []string{out}, nil
}
