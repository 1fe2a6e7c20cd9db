package tui

import (
	"errors"
	"image"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/moyu-x/fastclass/pkg/session"
)

type fakeStore struct {
	saved map[string]string
	err   error
}

func (f *fakeStore) Save(folder, path, label string) error {
	if f.err != nil {
		return f.err
	}
	if f.saved == nil {
		f.saved = make(map[string]string)
	}
	f.saved[path] = label
	return nil
}

func runeKey(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestModel(t *testing.T, store Store, paths ...string) *model {
	t.Helper()
	sess, err := session.New(paths, image.Pt(299, 299))
	if err != nil {
		t.Fatal(err)
	}
	return newModel(sess, Options{Folder: "/data/cats", Store: store})
}

func press(m *model, msg tea.KeyMsg) tea.Cmd {
	_, cmd := m.Update(msg)
	return cmd
}

func TestKeyAction(t *testing.T) {
	tests := []struct {
		key    string
		action Action
		tag    string
	}{
		{"1", ActionLabel, "1"},
		{"9", ActionLabel, "9"},
		{"d", ActionLabel, "d"},
		{" ", ActionLabel, "1"},
		{"space", ActionLabel, "1"},
		{"right", ActionAdvance, ""},
		{"n", ActionAdvance, ""},
		{"left", ActionRetreat, ""},
		{"p", ActionRetreat, ""},
		{"x", ActionFinish, ""},
		{"esc", ActionQuit, ""},
		{"ctrl+c", ActionQuit, ""},
		{"0", ActionNone, ""},
		{"q", ActionNone, ""},
		{"D", ActionNone, ""},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			action, tag := KeyAction(tt.key)
			if action != tt.action || tag != tt.tag {
				t.Errorf("KeyAction(%q) = %s, %q; want %s, %q", tt.key, action, tag, tt.action, tt.tag)
			}
		})
	}
}

func TestModel_LabelSavesAndAdvances(t *testing.T) {
	store := &fakeStore{}
	m := newTestModel(t, store, "/data/cats/a.jpg", "/data/cats/b.jpg")

	press(m, runeKey("3"))

	if m.sess.Cursor() != 1 {
		t.Errorf("Expected cursor 1, got %d", m.sess.Cursor())
	}
	if store.saved["/data/cats/a.jpg"] != "3" {
		t.Errorf("Expected label saved, got %v", store.saved)
	}
}

func TestModel_LabelSavedBeforeQuit(t *testing.T) {
	store := &fakeStore{}
	m := newTestModel(t, store, "/data/cats/a.jpg", "/data/cats/b.jpg")

	// 标注后立即退出，不执行任何返回的命令
	if _, cmd := m.Update(runeKey("5")); cmd != nil {
		t.Error("Expected labelling to return no command")
	}
	if store.saved["/data/cats/a.jpg"] != "5" {
		t.Errorf("Expected label saved during Update, got %v", store.saved)
	}
	if cmd := press(m, tea.KeyMsg{Type: tea.KeyEsc}); cmd == nil {
		t.Fatal("Expected quit command")
	}
	if len(store.saved) != 1 {
		t.Errorf("Expected 1 saved label after quit, got %v", store.saved)
	}
}

func TestModel_NavigationDoesNotLabel(t *testing.T) {
	store := &fakeStore{}
	m := newTestModel(t, store, "a.jpg", "b.jpg", "c.jpg")

	press(m, tea.KeyMsg{Type: tea.KeyRight})
	press(m, tea.KeyMsg{Type: tea.KeyRight})
	press(m, tea.KeyMsg{Type: tea.KeyLeft})

	if m.sess.Cursor() != 1 {
		t.Errorf("Expected cursor 1, got %d", m.sess.Cursor())
	}
	if m.sess.Classified() != 0 {
		t.Errorf("Expected nothing classified, got %d", m.sess.Classified())
	}
	if len(store.saved) != 0 {
		t.Errorf("Expected nothing saved, got %v", store.saved)
	}
}

func TestModel_UnmappedKeyIgnored(t *testing.T) {
	m := newTestModel(t, nil, "a.jpg", "b.jpg")

	if cmd := press(m, runeKey("z")); cmd != nil {
		t.Error("Expected no command for unmapped key")
	}
	if m.sess.Cursor() != 0 || m.sess.Classified() != 0 {
		t.Error("Expected unmapped key to change nothing")
	}
}

func TestModel_FinishProducesReport(t *testing.T) {
	m := newTestModel(t, nil, "a.jpg", "b.jpg", "c.jpg")

	press(m, runeKey("1"))
	press(m, runeKey("d"))
	cmd := press(m, runeKey("x"))

	if cmd == nil {
		t.Fatal("Expected quit command after finish")
	}
	if m.report == nil {
		t.Fatal("Expected report after finish")
	}
	if len(m.report.All) != 3 || len(m.report.Clean) != 2 {
		t.Errorf("Unexpected report sizes %d/%d", len(m.report.All), len(m.report.Clean))
	}
	if m.sess.State() != session.Finished {
		t.Error("Expected session to be finished")
	}
}

func TestModel_QuitLeavesSessionActive(t *testing.T) {
	m := newTestModel(t, nil, "a.jpg")

	cmd := press(m, tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil {
		t.Fatal("Expected quit command")
	}
	if m.report != nil {
		t.Error("Expected no report on quit")
	}
	if m.sess.State() != session.Active {
		t.Error("Expected session to stay active on quit")
	}
}

func TestModel_SaveErrorShownInStatus(t *testing.T) {
	m := newTestModel(t, &fakeStore{err: errors.New("disk full")}, "a.jpg", "b.jpg")

	press(m, runeKey("2"))

	if !strings.Contains(m.status, "disk full") {
		t.Errorf("Expected status to mention error, got %q", m.status)
	}
	if m.sess.Classified() != 1 {
		t.Error("Expected label to be kept in session even if saving fails")
	}
}

func TestModel_Title(t *testing.T) {
	m := newTestModel(t, nil, "/data/cats/a.jpg", "/data/cats/b.jpg")

	if got := m.Title(); got != "FastClass :: a.jpg - [   ] (0/2)" {
		t.Errorf("Unexpected title %q", got)
	}

	press(m, runeKey("d"))
	press(m, tea.KeyMsg{Type: tea.KeyLeft})

	if got := m.Title(); got != "FastClass :: a.jpg - [ D ] (1/2)" {
		t.Errorf("Unexpected title %q", got)
	}

	view := m.View()
	if !strings.Contains(view, "b.jpg") {
		t.Error("Expected view to list neighbouring items")
	}
}
