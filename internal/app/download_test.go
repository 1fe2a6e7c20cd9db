package app

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"

	"github.com/moyu-x/fastclass/pkg/crawler"
	"github.com/moyu-x/fastclass/pkg/progress"
)

func setupLibrary(t *testing.T, fs afero.Fs) {
	t.Helper()
	writeTestPNG(t, fs, "/lib/cats/a.png", 40, 20)
	data, _ := afero.ReadFile(fs, "/lib/cats/a.png")
	_ = afero.WriteFile(fs, "/lib/cats/b.png", data, 0644)
	writeTestPNG(t, fs, "/lib/cats/c.png", 10, 10)
	_ = afero.WriteFile(fs, "/lib/cats/readme.txt", []byte("hi"), 0644)

	_ = afero.WriteFile(fs, "/terms.txt", []byte("searchterm,exclude\ncats\n"), 0644)
}

func newDownloadOptions() *DownloadOptions {
	return &DownloadOptions{
		TermsFile: "/terms.txt",
		OutPath:   "/dataset",
		Size:      20,
		Keep:      true,
	}
}

func TestRunDownload(t *testing.T) {
	fs := afero.NewMemMapFs()
	setupLibrary(t, fs)
	registry := crawler.NewRegistry(crawler.NewLocalCrawler(fs, "/lib", 2))

	stats, err := RunDownload(context.Background(), fs, registry, newDownloadOptions())
	if err != nil {
		t.Fatalf("RunDownload() error = %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("Expected 1 class, got %d", len(stats))
	}
	st := stats[0]
	if st.Folder != "cats" || st.Crawled != 3 || st.Duplicates != 1 || st.Resized != 2 {
		t.Errorf("Unexpected stats %+v", st)
	}

	for _, name := range []string{"/dataset/cats/a.jpg", "/dataset/cats/c.jpg", "/dataset.raw/cats/a.png"} {
		if ok, _ := afero.Exists(fs, name); !ok {
			t.Errorf("Expected %s to exist", name)
		}
	}
	if ok, _ := afero.Exists(fs, "/dataset.raw/cats/b.png"); ok {
		t.Error("Expected duplicate to be removed from raw folder")
	}
	if got := jpegSize(t, fs, "/dataset/cats/a.jpg"); got.X != 20 || got.Y != 20 {
		t.Errorf("Expected 20x20 output, got %v", got)
	}

	log, _ := afero.ReadFile(fs, "/dataset/cats.log")
	want := "image,source\na.jpg,file:///lib/cats/a.png\nc.jpg,file:///lib/cats/c.png\n"
	if string(log) != want {
		t.Errorf("Unexpected source log:\n%s", log)
	}
	if progress.Exists(fs, "/dataset") {
		t.Error("Expected progress file removed after completion")
	}
}

func TestRunDownload_OutputExists(t *testing.T) {
	fs := afero.NewMemMapFs()
	setupLibrary(t, fs)
	registry := crawler.NewRegistry(crawler.NewLocalCrawler(fs, "/lib", 2))
	_ = afero.WriteFile(fs, "/dataset/old.txt", []byte("x"), 0644)

	_, err := RunDownload(context.Background(), fs, registry, newDownloadOptions())
	if !errors.Is(err, ErrOutputExists) {
		t.Fatalf("Expected ErrOutputExists, got %v", err)
	}

	opts := newDownloadOptions()
	opts.Overwrite = true
	if _, err := RunDownload(context.Background(), fs, registry, opts); err != nil {
		t.Fatalf("RunDownload() with overwrite error = %v", err)
	}
	if ok, _ := afero.Exists(fs, "/dataset/old.txt"); ok {
		t.Error("Expected overwrite to remove old output")
	}
}

func TestRunDownload_ResumeSkipsDoneClasses(t *testing.T) {
	fs := afero.NewMemMapFs()
	setupLibrary(t, fs)
	registry := crawler.NewRegistry(crawler.NewLocalCrawler(fs, "/lib", 2))

	tracker, err := progress.NewTracker(fs, "/dataset")
	if err != nil {
		t.Fatal(err)
	}
	_ = tracker.MarkDone("cats")
	_ = tracker.Release()

	opts := newDownloadOptions()
	opts.Resume = true
	stats, err := RunDownload(context.Background(), fs, registry, opts)
	if err != nil {
		t.Fatalf("RunDownload() error = %v", err)
	}
	if len(stats) != 0 {
		t.Errorf("Expected finished class to be skipped, got %+v", stats)
	}
	if ok, _ := afero.Exists(fs, "/dataset/cats.log"); ok {
		t.Error("Expected no work for finished class")
	}
}

func TestRunDownload_Cancelled(t *testing.T) {
	fs := afero.NewMemMapFs()
	setupLibrary(t, fs)
	registry := crawler.NewRegistry(crawler.NewLocalCrawler(fs, "/lib", 2))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RunDownload(ctx, fs, registry, newDownloadOptions())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if !progress.Exists(fs, "/dataset") {
		t.Error("Expected progress file kept after interruption")
	}
}

func TestRunDownload_UnknownCrawler(t *testing.T) {
	fs := afero.NewMemMapFs()
	setupLibrary(t, fs)
	registry := crawler.NewRegistry(crawler.NewLocalCrawler(fs, "/lib", 2))

	opts := newDownloadOptions()
	opts.Crawlers = []string{"GOOGLE"}
	if _, err := RunDownload(context.Background(), fs, registry, opts); err == nil {
		t.Error("Expected error for unknown crawler")
	}
}
