package tui

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/moyu-x/fastclass/pkg/logger"
	"github.com/moyu-x/fastclass/pkg/session"
)

func (m *model) Update(msg tea.Msg) (*model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg.String())

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progressBar.Width = msg.Width - 10
		return m, nil

	case progress.FrameMsg:
		pm, cmd := m.progressBar.Update(msg)
		m.progressBar = pm.(progress.Model)
		return m, cmd
	}

	return m, nil
}

func (m *model) handleKey(key string) (*model, tea.Cmd) {
	action, tag := KeyAction(key)
	m.status = ""

	var err error
	switch action {
	case ActionLabel:
		path := m.sess.Current().Path
		var ok bool
		ok, err = m.sess.Label(tag)
		if err == nil && ok {
			logger.Get().Debug().Msgf("标注: %s -> %s", path, tag)
			m.save(path, tag)
			return m, nil
		}

	case ActionAdvance:
		err = m.sess.Advance()

	case ActionRetreat:
		err = m.sess.Retreat()

	case ActionFinish:
		var rep session.Report
		rep, err = m.sess.Finish()
		if err == nil {
			m.report = &rep
			logger.Get().Info().Msgf("标注完成: %d/%d", m.sess.Classified(), m.sess.Total())
			return m, tea.Quit
		}

	case ActionQuit:
		logger.Get().Info().Msg("退出标注，未生成报告")
		return m, tea.Quit
	}

	if err != nil {
		if errors.Is(err, session.ErrFinished) {
			return m, tea.Quit
		}
		m.err = err
		return m, tea.Quit
	}
	return m, nil
}

// save 同步写入 Store，保证退出前的标注都已落盘
func (m *model) save(path, tag string) {
	if m.opts.Store == nil {
		return
	}
	if err := m.opts.Store.Save(m.opts.Folder, path, tag); err != nil {
		m.status = fmt.Sprintf("保存标注失败: %v", err)
		logger.Get().Error().Err(err).Msgf("保存标注失败: %s", path)
	}
}
