package tui

import (
	"path/filepath"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/moyu-x/fastclass/pkg/session"
)

// Store 保存每次标注，用于中断后恢复
type Store interface {
	Save(folder, path, label string) error
}

type Options struct {
	// Folder 是标注目录，作为 Store 中的分组键
	Folder string
	Store  Store
	// Window 为当前条目前后各显示的条目数
	Window int
}

type model struct {
	sess        *session.Session
	opts        Options
	name        string
	progressBar progress.Model
	width       int
	report      *session.Report
	status      string
	err         error
}

func newModel(sess *session.Session, opts Options) *model {
	if opts.Window <= 0 {
		opts.Window = 3
	}

	progressBar := progress.New(progress.WithDefaultGradient())
	progressBar.PercentageStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("205")).
		Width(4)

	return &model{
		sess:        sess,
		opts:        opts,
		name:        filepath.Base(filepath.Clean(opts.Folder)),
		progressBar: progressBar,
	}
}
