package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Title 返回窗口标题，格式与报告中的标注一致，未标注时显示空格
func (m *model) Title() string {
	cur := m.sess.Current()
	label := " "
	if cur.Label.IsSet() {
		label = cur.Label.String()
	}
	return fmt.Sprintf("FastClass :: %s - [ %s ] (%d/%d)",
		filepath.Base(cur.Path), label, m.sess.Classified(), m.sess.Total())
}

func (m *model) View() string {
	if m.report != nil {
		return ""
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render(m.Title()) + "\n")
	b.WriteString(hintStyle.Render(m.opts.Folder) + "\n\n")

	percent := 0.0
	if total := m.sess.Total(); total > 0 {
		percent = float64(m.sess.Classified()) / float64(total)
	}
	b.WriteString(labelStyle.Render("标注进度：") + "\n")
	b.WriteString(m.progressBar.ViewAs(percent) + "\n\n")

	b.WriteString(statsBoxStyle.Render(m.renderWindow()) + "\n\n")

	if m.status != "" {
		b.WriteString(errorStyle.Render(m.status) + "\n\n")
	}

	b.WriteString(separatorStyle.Render(strings.Repeat("─", 60)) + "\n")
	b.WriteString(hintStyle.Render("操作提示：") + "\n")
	b.WriteString("  • 1-9 标注类别或评分，空格 = 1\n")
	b.WriteString("  • d 标记删除\n")
	b.WriteString("  • ←/→ 或 p/n 前后浏览，不改变标注\n")
	b.WriteString("  • x 保存报告并退出\n")
	b.WriteString("  • Esc/Ctrl+C 退出（标注已保存，可用 --resume 恢复）\n")

	return lipgloss.NewStyle().
		Padding(1).
		Render(b.String())
}

// renderWindow 显示当前条目及其前后若干条目
func (m *model) renderWindow() string {
	cursor := m.sess.Cursor()
	from, to := cursor-m.opts.Window, cursor+m.opts.Window
	// 条目不多时全部按顺序显示
	if total := m.sess.Total(); to-from+1 >= total {
		from, to = 0, total-1
	}

	var lines []string
	for i := from; i <= to; i++ {
		it := m.sess.At(i)
		line := fmt.Sprintf("[%s] %s", it.Label.String(), filepath.Base(it.Path))
		if i == cursor {
			lines = append(lines, currentItemStyle.Render("▶ "+line))
		} else {
			lines = append(lines, filePathStyle.Render("  "+line))
		}
	}
	return strings.Join(lines, "\n")
}
