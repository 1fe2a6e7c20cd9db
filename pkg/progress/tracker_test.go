package progress

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
)

func TestNewTracker(t *testing.T) {
	fs := afero.NewMemMapFs()

	tracker, err := NewTracker(fs, "/dataset")
	if err != nil {
		t.Fatalf("NewTracker() error = %v", err)
	}
	if tracker.Count() != 0 {
		t.Errorf("Expected 0 done, got %d", tracker.Count())
	}
	if !Exists(fs, "/dataset") {
		t.Error("Expected progress file to be created")
	}
	if err := tracker.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if Exists(fs, "/dataset") {
		t.Error("Expected progress file to be removed after Close")
	}
}

func TestMarkDone(t *testing.T) {
	tracker, err := NewTracker(afero.NewMemMapFs(), "/dataset")
	if err != nil {
		t.Fatalf("NewTracker() error = %v", err)
	}
	defer tracker.Close()

	if err := tracker.MarkDone("cats"); err != nil {
		t.Fatalf("MarkDone() error = %v", err)
	}
	if !tracker.IsDone("cats") {
		t.Error("IsDone() should return true for marked class")
	}
	if tracker.IsDone("dogs") {
		t.Error("IsDone() should return false for unmarked class")
	}

	if err := tracker.MarkDone("cats"); err != nil {
		t.Fatalf("MarkDone() error = %v", err)
	}
	if tracker.Count() != 1 {
		t.Errorf("Expected 1 done (duplicate), got %d", tracker.Count())
	}
}

func TestResumeAfterRelease(t *testing.T) {
	fs := afero.NewMemMapFs()

	tracker, err := NewTracker(fs, "/dataset")
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"cats", "dogs"} {
		if err := tracker.MarkDone(name); err != nil {
			t.Fatal(err)
		}
	}
	if err := tracker.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	data, err := afero.ReadFile(fs, filepath.Join("/dataset", ProgressFileName))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "cats\ndogs\n" {
		t.Errorf("Unexpected progress file %q", data)
	}

	resumed, err := NewTracker(fs, "/dataset")
	if err != nil {
		t.Fatal(err)
	}
	defer resumed.Close()

	if !resumed.IsDone("cats") || !resumed.IsDone("dogs") {
		t.Error("Expected resumed tracker to know finished classes")
	}
	done := resumed.Done()
	if len(done) != 2 || done[0] != "cats" || done[1] != "dogs" {
		t.Errorf("Expected [cats dogs], got %v", done)
	}

	if err := resumed.MarkDone("birds"); err != nil {
		t.Fatal(err)
	}
	if resumed.Count() != 3 {
		t.Errorf("Expected 3 done, got %d", resumed.Count())
	}
}

func TestLoad_IgnoresBlankAndDuplicateLines(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, filepath.Join("/dataset", ProgressFileName), []byte("cats\n\ncats\n dogs \n"), 0644); err != nil {
		t.Fatal(err)
	}

	tracker, err := NewTracker(fs, "/dataset")
	if err != nil {
		t.Fatal(err)
	}
	defer tracker.Close()

	if tracker.Count() != 2 {
		t.Errorf("Expected 2 done, got %d", tracker.Count())
	}
	if !tracker.IsDone("dogs") {
		t.Error("Expected surrounding spaces to be trimmed")
	}
}
