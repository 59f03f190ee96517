package export

import (
	"archive/zip"
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/xob0t/CertStencil/pkg/certificate"
	"github.com/xob0t/CertStencil/pkg/render"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.SetRGBA(0, 0, color.RGBA{R: 10, A: 255})
	data, err := render.EncodePNG(img)
	if err != nil {
		t.Fatalf("EncodePNG: %v", err)
	}
	return data
}

func cert(t *testing.T, name string) certificate.GeneratedCertificate {
	return certificate.GeneratedCertificate{Name: name, DataURL: render.DataURL(pngBytes(t, 4, 3))}
}

func TestFileName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Nguyen Van A", "chung-chi-Nguyen-Van-A.png"},
		{"Trần   Thị\tB", "chung-chi-Trần-Thị-B.png"},
		{"Solo", "chung-chi-Solo.png"},
	}
	for _, tt := range tests {
		if got := FileName(tt.name); got != tt.want {
			t.Errorf("FileName(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestFileNamesSuffixRepeats(t *testing.T) {
	certs := []certificate.GeneratedCertificate{{Name: "An"}, {Name: "Bình"}, {Name: "An"}}
	want := []string{"chung-chi-An.png", "chung-chi-Bình.png", "chung-chi-An-2.png"}
	if got := FileNames(certs); !slices.Equal(got, want) {
		t.Fatalf("FileNames = %v, want %v", got, want)
	}

	// a generated suffix must not reuse another recipient's real name
	certs = []certificate.GeneratedCertificate{{Name: "An"}, {Name: "An 2"}, {Name: "An"}, {Name: "An"}}
	want = []string{"chung-chi-An.png", "chung-chi-An-2.png", "chung-chi-An-3.png", "chung-chi-An-4.png"}
	if got := FileNames(certs); !slices.Equal(got, want) {
		t.Fatalf("FileNames = %v, want %v", got, want)
	}
}

func TestWriteDirKeepsEveryRecipient(t *testing.T) {
	dir := t.TempDir()
	certs := []certificate.GeneratedCertificate{cert(t, "An"), cert(t, "An 2"), cert(t, "An")}
	paths, err := WriteDir(dir, certs)
	if err != nil {
		t.Fatalf("WriteDir: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 3 || len(entries) != 3 {
		t.Fatalf("paths = %d, files on disk = %d, want 3", len(paths), len(entries))
	}
}

func TestDecodeDataURL(t *testing.T) {
	data := pngBytes(t, 2, 2)
	got, err := DecodeDataURL(render.DataURL(data))
	if err != nil {
		t.Fatalf("DecodeDataURL: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("decoded payload differs from the encoded PNG")
	}

	for _, bad := range []string{"", "not a url", "data:image/png,plain", "data:image/png;base64,@@@"} {
		if _, err := DecodeDataURL(bad); !errors.Is(err, ErrInvalidDataURL) {
			t.Errorf("DecodeDataURL(%q) err = %v, want ErrInvalidDataURL", bad, err)
		}
	}
}

func TestWriteArchiveOneEntryPerCertificate(t *testing.T) {
	c := cert(t, "Nguyen Van A")
	want, _ := DecodeDataURL(c.DataURL)

	var buf bytes.Buffer
	if err := WriteArchive(&buf, []certificate.GeneratedCertificate{c, cert(t, "Le B")}); err != nil {
		t.Fatalf("WriteArchive: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("entries = %d, want 2", len(zr.File))
	}
	if zr.File[0].Name != "chung-chi-Nguyen-Van-A.png" {
		t.Fatalf("first entry = %q", zr.File[0].Name)
	}
	rc, err := zr.File[0].Open()
	if err != nil {
		t.Fatalf("open entry: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if !bytes.Equal(got, want) {
		t.Fatal("entry bytes differ from the certificate image")
	}
}

func TestWriteArchiveWritesNothingOnFailure(t *testing.T) {
	broken := certificate.GeneratedCertificate{Name: "B", DataURL: "data:image/png;base64,%%%"}

	var buf bytes.Buffer
	err := WriteArchive(&buf, []certificate.GeneratedCertificate{cert(t, "A"), broken})
	if !errors.Is(err, ErrInvalidDataURL) {
		t.Fatalf("err = %v, want ErrInvalidDataURL", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("%d bytes written for a failed archive", buf.Len())
	}

	if err := WriteArchive(&buf, nil); !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("empty batch err = %v", err)
	}
}

func TestThumbnailKeepsAspect(t *testing.T) {
	thumb, err := Thumbnail(pngBytes(t, 800, 566), 200)
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(thumb))
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	if got := img.Bounds().Size(); got.X != 200 || got.Y != 142 {
		t.Fatalf("thumbnail size = %v, want 200x142", got)
	}

	small, err := Thumbnail(pngBytes(t, 50, 40), 200)
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}
	img, _ = png.Decode(bytes.NewReader(small))
	if got := img.Bounds().Size(); got != image.Pt(50, 40) {
		t.Fatalf("small image resized to %v", got)
	}

	if _, err := Thumbnail([]byte("nope"), 200); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	certs := []certificate.GeneratedCertificate{cert(t, "An Le"), cert(t, "Bình")}

	paths, err := WriteFile(filepath.Join(dir, "out"), certs)
	if err != nil {
		t.Fatalf("WriteFile dir: %v", err)
	}
	if len(paths) != 2 || filepath.Base(paths[0]) != "chung-chi-An-Le.png" {
		t.Fatalf("paths = %v", paths)
	}
	if _, err := os.Stat(paths[1]); err != nil {
		t.Fatalf("stat: %v", err)
	}

	zipPath := filepath.Join(dir, "nested", ArchiveName)
	paths, err = WriteFile(zipPath, certs)
	if err != nil {
		t.Fatalf("WriteFile zip: %v", err)
	}
	if len(paths) != 1 || paths[0] != zipPath {
		t.Fatalf("paths = %v", paths)
	}
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	defer zr.Close()
	if len(zr.File) != 2 {
		t.Fatalf("entries = %d, want 2", len(zr.File))
	}

	bad := filepath.Join(dir, "bad.zip")
	if _, err := WriteFile(bad, []certificate.GeneratedCertificate{{Name: "X", DataURL: "junk"}}); err == nil {
		t.Fatal("expected error for invalid data URL")
	}
	if _, err := os.Stat(bad); !os.IsNotExist(err) {
		t.Fatal("failed archive left on disk")
	}
}
