package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/moyu-x/fastclass/pkg/logger"
	"github.com/moyu-x/fastclass/pkg/session"
)

type teaModel struct {
	m *model
}

func (tm teaModel) Init() tea.Cmd {
	return tea.SetWindowTitle(tm.m.Title())
}

func (tm teaModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	_, cmd := tm.m.Update(msg)
	if tm.m.report == nil && tm.m.err == nil {
		cmd = tea.Batch(cmd, tea.SetWindowTitle(tm.m.Title()))
	}
	return tm, cmd
}

func (tm teaModel) View() string {
	return tm.m.View()
}

// Run 运行标注界面。按 x 结束时返回报告；直接退出时返回 nil。
func Run(sess *session.Session, opts Options) (*session.Report, error) {
	logger.Get().Info().Msgf("启动标注界面: %s (%d 个文件)", opts.Folder, sess.Total())

	m := newModel(sess, opts)
	p := tea.NewProgram(teaModel{m: m}, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		logger.Get().Error().Err(err).Msg("TUI 运行错误")
		return nil, err
	}
	if m.err != nil {
		return nil, m.err
	}

	logger.Get().Info().Msg("TUI 正常退出")
	return m.report, nil
}
