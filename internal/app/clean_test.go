package app

import (
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/moyu-x/fastclass/pkg/session"
	"github.com/moyu-x/fastclass/tui"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func setupImages(t *testing.T, fs afero.Fs, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := afero.WriteFile(fs, name, []byte("data-"+name), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

// scriptedUI 依次执行标注动作，finish 为 false 时模拟中途退出
func scriptedUI(tags []string, finish bool) LabelUI {
	return func(sess *session.Session, opts tui.Options) (*session.Report, error) {
		for _, tag := range tags {
			path := sess.Current().Path
			if _, err := sess.Label(tag); err != nil {
				return nil, err
			}
			if opts.Store != nil {
				if err := opts.Store.Save(opts.Folder, path, tag); err != nil {
					return nil, err
				}
			}
		}
		if !finish {
			return nil, nil
		}
		rep, err := sess.Finish()
		return &rep, err
	}
}

func TestCleanConfig_Validate(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = fs.MkdirAll("/data/my cats", 0755)

	cfg := CleanConfig{InFolder: "/data/my cats/"}
	if err := cfg.Validate(fs); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.OutFolder != "/data/my cats.clean" {
		t.Errorf("Expected default out folder, got %q", cfg.OutFolder)
	}
	if cfg.Box != image.Pt(299, 299) {
		t.Errorf("Expected default box 299x299, got %v", cfg.Box)
	}

	bad := []CleanConfig{
		{},
		{InFolder: "/missing"},
		{InFolder: "/data/my cats", OutFolder: "/data/my cats"},
	}
	for _, c := range bad {
		if err := c.Validate(fs); err == nil {
			t.Errorf("Expected error for %+v", c)
		}
	}
}

func TestRunClean_WritesReportsAndCopies(t *testing.T) {
	fs := afero.NewMemMapFs()
	setupImages(t, fs, "/data/cats/a.jpg", "/data/cats/b.jpg", "/data/cats/c.png", "/data/cats/notes.txt")

	res, err := RunClean(fs, &CleanOptions{
		Config: CleanConfig{InFolder: "/data/cats", Copy: true},
		UI:     scriptedUI([]string{"1", "d", "2"}, true),
	})
	if err != nil {
		t.Fatalf("RunClean() error = %v", err)
	}

	if res.Total != 3 || res.Classified != 3 || !res.Finished {
		t.Errorf("Unexpected result %+v", res)
	}
	if res.Report.Copied != 2 {
		t.Errorf("Expected 2 copied, got %d", res.Report.Copied)
	}

	all, _ := afero.ReadFile(fs, "/data/cats_report_all.csv")
	want := "file;rank\n/data/cats/a.jpg;1\n/data/cats/b.jpg;D\n/data/cats/c.png;2\n"
	if string(all) != want {
		t.Errorf("Unexpected all report:\n%s", all)
	}
	clean, _ := afero.ReadFile(fs, "/data/cats_report_clean.csv")
	if strings.Contains(string(clean), "b.jpg") {
		t.Errorf("Expected deleted file excluded from clean report:\n%s", clean)
	}

	for name, want := range map[string]bool{"a.jpg": true, "b.jpg": false, "c.png": true} {
		if ok, _ := afero.Exists(fs, filepath.Join("/data/cats.clean", name)); ok != want {
			t.Errorf("Copied %s = %v, want %v", name, ok, want)
		}
	}
}

func TestRunClean_EmptyFolder(t *testing.T) {
	fs := afero.NewMemMapFs()
	setupImages(t, fs, "/data/empty/readme.txt")

	_, err := RunClean(fs, &CleanOptions{
		Config: CleanConfig{InFolder: "/data/empty"},
		UI:     scriptedUI(nil, true),
	})
	if !errors.Is(err, session.ErrEmptyInput) {
		t.Errorf("Expected ErrEmptyInput, got %v", err)
	}
}

func TestRunClean_QuitWritesNothing(t *testing.T) {
	fs := afero.NewMemMapFs()
	setupImages(t, fs, "/data/cats/a.jpg", "/data/cats/b.jpg")

	res, err := RunClean(fs, &CleanOptions{
		Config: CleanConfig{InFolder: "/data/cats"},
		UI:     scriptedUI([]string{"1"}, false),
	})
	if err != nil {
		t.Fatalf("RunClean() error = %v", err)
	}
	if res.Finished || res.Report != nil {
		t.Error("Expected unfinished session")
	}
	if ok, _ := afero.Exists(fs, "/data/cats_report_all.csv"); ok {
		t.Error("Expected no report after quit")
	}
}

func TestRunClean_ResumeRestoresLabels(t *testing.T) {
	fs := afero.NewMemMapFs()
	setupImages(t, fs, "/data/cats/a.jpg", "/data/cats/b.jpg", "/data/cats/c.jpg")
	dbPath := filepath.Join(t.TempDir(), "labels.db")

	// 第一次：标注两个后退出
	_, err := RunClean(fs, &CleanOptions{
		Config: CleanConfig{InFolder: "/data/cats"},
		DBPath: dbPath,
		UI:     scriptedUI([]string{"3", "d"}, false),
	})
	if err != nil {
		t.Fatalf("first RunClean() error = %v", err)
	}

	// 第二次：恢复后光标应停在第一个未标注的文件
	var cursor int
	res, err := RunClean(fs, &CleanOptions{
		Config: CleanConfig{InFolder: "/data/cats"},
		DBPath: dbPath,
		Resume: true,
		UI: func(sess *session.Session, opts tui.Options) (*session.Report, error) {
			cursor = sess.Cursor()
			return scriptedUI([]string{"5"}, true)(sess, opts)
		},
	})
	if err != nil {
		t.Fatalf("resumed RunClean() error = %v", err)
	}
	if res.Restored != 2 {
		t.Errorf("Expected 2 restored labels, got %d", res.Restored)
	}
	if cursor != 2 {
		t.Errorf("Expected cursor at 2, got %d", cursor)
	}

	all, _ := afero.ReadFile(fs, "/data/cats_report_all.csv")
	want := "file;rank\n/data/cats/a.jpg;3\n/data/cats/b.jpg;D\n/data/cats/c.jpg;5\n"
	if string(all) != want {
		t.Errorf("Unexpected all report:\n%s", all)
	}
}

func TestRunClean_ResumeWithRelativeFolder(t *testing.T) {
	fs := afero.NewOsFs()
	root := t.TempDir()
	dir := filepath.Join(root, "cats")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	setupImages(t, fs, filepath.Join(dir, "a.jpg"), filepath.Join(dir, "b.jpg"))
	dbPath := filepath.Join(t.TempDir(), "labels.db")

	_, err := RunClean(fs, &CleanOptions{
		Config: CleanConfig{InFolder: dir},
		DBPath: dbPath,
		UI:     scriptedUI([]string{"4"}, false),
	})
	if err != nil {
		t.Fatalf("first RunClean() error = %v", err)
	}

	chdir(t, root)
	res, err := RunClean(fs, &CleanOptions{
		Config: CleanConfig{InFolder: "cats"},
		DBPath: dbPath,
		Resume: true,
		UI:     scriptedUI(nil, false),
	})
	if err != nil {
		t.Fatalf("resumed RunClean() error = %v", err)
	}
	if res.Restored != 1 || res.Classified != 1 {
		t.Errorf("Expected 1 restored label, got restored=%d classified=%d", res.Restored, res.Classified)
	}
}

func TestRunClean_WithoutResumeStartsFresh(t *testing.T) {
	fs := afero.NewMemMapFs()
	setupImages(t, fs, "/data/cats/a.jpg", "/data/cats/b.jpg")
	dbPath := filepath.Join(t.TempDir(), "labels.db")

	_, _ = RunClean(fs, &CleanOptions{
		Config: CleanConfig{InFolder: "/data/cats"},
		DBPath: dbPath,
		UI:     scriptedUI([]string{"3"}, false),
	})

	res, err := RunClean(fs, &CleanOptions{
		Config: CleanConfig{InFolder: "/data/cats"},
		DBPath: dbPath,
		UI:     scriptedUI(nil, false),
	})
	if err != nil {
		t.Fatalf("RunClean() error = %v", err)
	}
	if res.Restored != 0 || res.Classified != 0 {
		t.Errorf("Expected fresh session, got %+v", res)
	}
}

func TestRunClean_UIError(t *testing.T) {
	fs := afero.NewMemMapFs()
	setupImages(t, fs, "/data/cats/a.jpg")

	boom := errors.New("terminal gone")
	_, err := RunClean(fs, &CleanOptions{
		Config: CleanConfig{InFolder: "/data/cats"},
		UI: func(*session.Session, tui.Options) (*session.Report, error) {
			return nil, boom
		},
	})
	if !errors.Is(err, boom) {
		t.Errorf("Expected UI error, got %v", err)
	}
}
