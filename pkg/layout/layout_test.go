package layout

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xob0t/CertStencil/pkg/certificate"
	"github.com/xob0t/CertStencil/pkg/render"
)

var fixedNow = time.Date(2024, time.March, 5, 9, 0, 0, 0, time.UTC)

func TestExampleRoundTrips(t *testing.T) {
	raw, err := Example(fixedNow)
	if err != nil {
		t.Fatalf("Example: %v", err)
	}
	l, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(l.Elements) != 3 {
		t.Fatalf("elements = %d, want 3", len(l.Elements))
	}
	if l.Elements[2].Text != "5/3/2024" {
		t.Fatalf("issue date = %q, want 5/3/2024", l.Elements[2].Text)
	}
	if l.Stamp == nil || l.Stamp.Enabled {
		t.Fatalf("sample stamp = %+v, want present and disabled", l.Stamp)
	}
	if w := Validate(l); len(w) != 0 {
		t.Fatalf("sample layout has warnings: %v", w)
	}
}

func TestParseAppliesDefaults(t *testing.T) {
	l, err := Parse([]byte(`{"elements":[{"id":1,"name":"Tên người nhận","text":"X","position":{"x":10,"y":20}}]}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	e := l.Elements[0]
	if e.FontSize != 16 || e.Color != "#000000" || e.FontFamily != certificate.DefaultFontFamily {
		t.Fatalf("defaults not applied: %+v", e)
	}

	if _, err := Parse([]byte(`{"elements":`)); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestParseFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "layout.json")
	raw, _ := Example(fixedNow)
	if err := os.WriteFile(p, raw, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ParseFile(p); err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if _, err := ParseFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidateWarnings(t *testing.T) {
	l := &Layout{
		Elements: []certificate.TextElement{
			{ID: 1, Name: "Course", FontSize: 20, Color: "#123456", Position: certificate.Position{X: 10, Y: 10}},
			{ID: 1, Name: "Dup", FontSize: 0, Color: "blue", Position: certificate.Position{X: 900, Y: 10}},
		},
		Stamp: &render.QRStamp{Enabled: true, Position: certificate.Position{X: -1}},
	}
	warnings := Validate(l)

	for _, want := range []string{
		"duplicate field id 1",
		"font size 0 is not positive",
		"invalid color",
		"outside the 800x566 canvas",
		"no field named",
		"stamp is enabled but has no content",
		"stamp position (-1,0)",
	} {
		found := false
		for _, w := range warnings {
			if strings.Contains(w, want) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing warning containing %q in %v", want, warnings)
		}
	}

	if Validate(nil) != nil {
		t.Fatal("nil layout should produce no warnings")
	}
}

func TestDescribeMarksRecipient(t *testing.T) {
	out := Describe(Default(fixedNow))
	if !strings.Contains(out, "(recipient)") || !strings.Contains(out, "Nguyễn Văn A") {
		t.Fatalf("unexpected description:\n%s", out)
	}
}

func TestBundleRoundTrip(t *testing.T) {
	in := &Bundle{
		Layout:       Default(fixedNow),
		TemplateName: "template.jpg",
		Template:     []byte("jpeg bytes"),
		Font:         []byte("font bytes"),
		Names:        "An\nBình\n",
	}
	var buf bytes.Buffer
	if err := WriteBundle(&buf, in); err != nil {
		t.Fatalf("WriteBundle: %v", err)
	}

	p := filepath.Join(t.TempDir(), "sample"+BundleExt)
	if err := os.WriteFile(p, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	out, err := LoadBundle(p)
	if err != nil {
		t.Fatalf("LoadBundle: %v", err)
	}
	if out.TemplateName != "template.jpg" || string(out.Template) != "jpeg bytes" {
		t.Fatalf("template = %q %q", out.TemplateName, out.Template)
	}
	if string(out.Font) != "font bytes" || out.Names != in.Names {
		t.Fatalf("font/names lost: %+v", out)
	}
	if len(out.Layout.Elements) != 3 {
		t.Fatalf("elements = %d", len(out.Layout.Elements))
	}
}

func zipOf(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(body))
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestReadBundleCapsEntrySize(t *testing.T) {
	data := zipOf(t, map[string]string{
		LayoutEntry: `{"elements":[]}`,
		NamesEntry:  strings.Repeat("A\n", 1024),
	})
	if _, err := ReadBundle(data, 512); !errors.Is(err, ErrEntryTooLarge) {
		t.Fatalf("err = %v, want ErrEntryTooLarge", err)
	}
	b, err := ReadBundle(data, 4096)
	if err != nil {
		t.Fatalf("ReadBundle: %v", err)
	}
	if len(b.Names) != 2048 {
		t.Fatalf("names = %d bytes", len(b.Names))
	}
}

func TestReadBundleRejectsBadArchives(t *testing.T) {
	if _, err := ReadBundle(zipOf(t, map[string]string{"names.txt": "A"}), 0); !errors.Is(err, ErrNoLayout) {
		t.Fatalf("err = %v, want ErrNoLayout", err)
	}
	if _, err := ReadBundle(zipOf(t, map[string]string{"../evil.json": "{}"}), 0); err == nil ||
		!strings.Contains(err.Error(), "illegal path") {
		t.Fatalf("err = %v, want illegal path", err)
	}
	if _, err := ReadBundle([]byte("not a zip"), 0); err == nil {
		t.Fatal("expected error for non-zip data")
	}
	if err := WriteBundle(&bytes.Buffer{}, &Bundle{}); !errors.Is(err, ErrNoLayout) {
		t.Fatalf("WriteBundle err = %v", err)
	}
}
