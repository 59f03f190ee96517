package main

import (
	"archive/zip"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func writeTemplate(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, 200, 141))); err != nil {
		t.Fatal(err)
	}
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

func TestInitThenRenderArchive(t *testing.T) {
	dir := t.TempDir()
	layoutPath := filepath.Join(dir, "layout.json")
	namesPath := filepath.Join(dir, "names.txt")
	tmplPath := filepath.Join(dir, "mau.png")
	out := filepath.Join(dir, "out", "chung-chi.zip")
	writeTemplate(t, tmplPath)

	if err := execute(t, "init", "--layout", layoutPath, "--names", namesPath); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := execute(t, "describe", "--layout", layoutPath); err != nil {
		t.Fatalf("describe: %v", err)
	}

	preview := filepath.Join(dir, "preview.png")
	err := execute(t, "render", "--template", tmplPath, "--names", namesPath, "--layout", layoutPath,
		"--out", out, "--preview", preview, "--concurrency", "2")
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	zr, err := zip.OpenReader(out)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer zr.Close()
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	want := "chung-chi-Nguyễn-Văn-A.png,chung-chi-Trần-Thị-B.png,chung-chi-Lê-Văn-C.png"
	if got := strings.Join(names, ","); got != want {
		t.Fatalf("entries = %s, want %s", got, want)
	}
	if _, err := os.Stat(preview); err != nil {
		t.Fatalf("preview not written: %v", err)
	}
}

func TestRenderRequiresInputs(t *testing.T) {
	if err := execute(t, "render", "--names", "x.txt"); err == nil {
		t.Fatal("expected error without --template")
	}
	if err := execute(t, "describe"); err == nil {
		t.Fatal("expected error without --layout")
	}
}

func TestRenderRejectsBadConfig(t *testing.T) {
	if err := execute(t, "render", "--concurrency", "0", "--template", "a", "--names", "b"); err == nil {
		t.Fatal("expected config validation error")
	}
}

func TestWatchFiresOnWrite(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "names.txt")
	if err := os.WriteFile(target, []byte("A\n"), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fired := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- watch(ctx, zap.NewNop(), []string{target}, func() {
			select {
			case fired <- struct{}{}:
			default:
			}
		})
	}()

	// Keep writing until the watcher is registered and reacts.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(2 * watchDebounce)
	defer tick.Stop()
	for {
		select {
		case <-fired:
			cancel()
			if err := <-done; err != nil {
				t.Fatalf("watch: %v", err)
			}
			return
		case <-tick.C:
			os.WriteFile(target, []byte("A\nB\n"), 0644)
		case <-deadline:
			t.Fatal("watch never fired")
		}
	}
}

func TestWatchNeverOverlapsCalls(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "names.txt")
	if err := os.WriteFile(target, []byte("A\n"), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var active, peak, calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- watch(ctx, zap.NewNop(), []string{target}, func() {
			n := active.Add(1)
			if n > peak.Load() {
				peak.Store(n)
			}
			// slower than the debounce, so edits land mid-call
			time.Sleep(3 * watchDebounce)
			active.Add(-1)
			calls.Add(1)
		})
	}()

	deadline := time.After(10 * time.Second)
	tick := time.NewTicker(watchDebounce + 50*time.Millisecond)
	defer tick.Stop()
	for calls.Load() < 3 {
		select {
		case <-tick.C:
			os.WriteFile(target, []byte("A\nB\n"), 0644)
		case <-deadline:
			t.Fatalf("only %d calls", calls.Load())
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("watch: %v", err)
	}
	if p := peak.Load(); p != 1 {
		t.Fatalf("peak concurrent calls = %d, want 1", p)
	}
}
