package terminal

import "github.com/charmbracelet/lipgloss"

// Styles 是终端输出使用的样式集合。
type Styles struct {
	User      lipgloss.Style
	Assistant lipgloss.Style
	Error     lipgloss.Style
	Pending   lipgloss.Style
	Sources   lipgloss.Style
	Link      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Prompt    lipgloss.Style
}

// DefaultStyles 返回默认配色（Duoc 蓝 + 黄）。
func DefaultStyles() Styles {
	primary := lipgloss.Color("#003B71")
	accent := lipgloss.Color("#FFB800")
	muted := lipgloss.Color("#8A8A8A")

	return Styles{
		User: lipgloss.NewStyle().
			Foreground(accent).
			Bold(true),
		Assistant: lipgloss.NewStyle().
			Foreground(primary),
		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#D7263D")).
			Bold(true),
		Pending: lipgloss.NewStyle().
			Foreground(muted).
			Italic(true),
		Sources: lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderLeft(true).
			BorderForeground(accent).
			PaddingLeft(1),
		Link: lipgloss.NewStyle().
			Underline(true),
		Muted: lipgloss.NewStyle().
			Foreground(muted),
		Success: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#2E8B57")),
		Warning: lipgloss.NewStyle().
			Foreground(accent),
		Prompt: lipgloss.NewStyle().
			Foreground(accent).
			Bold(true),
	}
}
