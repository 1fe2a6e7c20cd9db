package app

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/spf13/afero"
)

func writeTestPNG(t *testing.T, fs afero.Fs, path string, w, h int) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

func jpegSize(t *testing.T, fs afero.Fs, path string) image.Point {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", path, err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("%s is not a jpeg: %v", path, err)
	}
	return image.Pt(cfg.Width, cfg.Height)
}

func TestRunResize(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeTestPNG(t, fs, "/in/a.png", 400, 200)
	writeTestPNG(t, fs, "/in/b.png", 50, 50)
	_ = afero.WriteFile(fs, "/in/broken.jpg", []byte("not an image"), 0644)
	writeTestPNG(t, fs, "/in/sub/c.png", 10, 10)

	res, err := RunResize(fs, &ResizeOptions{InDir: "/in", OutDir: "/out", Size: 100})
	if err != nil {
		t.Fatalf("RunResize() error = %v", err)
	}
	if res.Written != 2 || res.Skipped != 1 {
		t.Errorf("Unexpected result %+v", res)
	}
	if got := jpegSize(t, fs, "/out/a.jpg"); got != image.Pt(100, 100) {
		t.Errorf("Expected a.jpg padded to 100x100, got %v", got)
	}
	if ok, _ := afero.Exists(fs, "/out/c.jpg"); ok {
		t.Error("Expected subdirectories to be ignored")
	}
}

func TestRunResize_ZeroSizeKeepsOriginal(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeTestPNG(t, fs, "/in/a.png", 40, 30)

	if _, err := RunResize(fs, &ResizeOptions{InDir: "/in", OutDir: "/out", Size: 0}); err != nil {
		t.Fatalf("RunResize() error = %v", err)
	}
	if got := jpegSize(t, fs, "/out/a.jpg"); got != image.Pt(40, 30) {
		t.Errorf("Expected original size 40x30, got %v", got)
	}
}

func TestRunResize_InvalidOptions(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = fs.MkdirAll("/in", 0755)

	if _, err := RunResize(fs, &ResizeOptions{InDir: "/in"}); err == nil {
		t.Error("Expected error without out dir")
	}
	if _, err := RunResize(fs, &ResizeOptions{InDir: "/in", OutDir: "/in/"}); err == nil {
		t.Error("Expected error when out dir equals in dir")
	}
	if _, err := RunResize(fs, &ResizeOptions{InDir: "/missing", OutDir: "/out"}); err == nil {
		t.Error("Expected error for missing in dir")
	}
}
