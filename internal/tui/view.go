package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

func renderView(m Model) string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(m.header))
	b.WriteString("\n")
	b.WriteString(renderTabs(m.pages, m.current))
	b.WriteString("\n")

	if len(m.pages) == 0 {
		b.WriteString(emptyStyle.Render("  (empty report)"))
		b.WriteString("\n")
	} else {
		page := m.pages[m.current]
		b.WriteString(sectionStyle.Render(page.Title))
		b.WriteString("\n")
		b.WriteString(renderBody(page.Lines, m.offset, m.bodyHeight(), m.width))
	}

	b.WriteString(footerStyle.Render(renderFooter(m)))
	return b.String()
}

func renderTabs(pages []Page, current int) string {
	tabs := make([]string, 0, len(pages))
	for i := range pages {
		label := fmt.Sprintf("%d", i+1)
		if i == current {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, tabStyle.Render(label))
		}
	}
	return strings.Join(tabs, "")
}

func renderBody(lines []string, offset, height, width int) string {
	if len(lines) == 0 {
		return emptyStyle.Render("  (nothing to show)") + "\n"
	}

	end := min(len(lines), offset+height)
	var b strings.Builder
	for _, line := range lines[offset:end] {
		if width > 0 && runewidth.StringWidth(line) > width {
			line = runewidth.Truncate(line, width, "…")
		}
		b.WriteString(styleLine(line).Render(line))
		b.WriteString("\n")
	}
	return b.String()
}

// styleLine colors table rows by the sign of their trailing variance.
// Member and ticket rows both end with the variance column.
func styleLine(line string) lipgloss.Style {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return lineStyle
	}
	last := fields[len(fields)-1]
	switch {
	case fields[0] == "TOTAL" || fields[0] == "TOTALS":
		return totalStyle
	case strings.Trim(last, "-=") == "":
		return emptyStyle
	case strings.HasPrefix(last, "+") && strings.HasSuffix(last, "h"):
		return lineStyle.Foreground(colorOver)
	case strings.HasPrefix(last, "-") && strings.HasSuffix(last, "h"):
		return lineStyle.Foreground(colorUnder)
	default:
		return lineStyle
	}
}

func renderFooter(m Model) string {
	pos := ""
	if len(m.pages) > 0 {
		lines := len(m.pages[m.current].Lines)
		last := min(lines, m.offset+m.bodyHeight())
		pos = fmt.Sprintf("section %d/%d │ lines %d-%d of %d │ ",
			m.current+1, len(m.pages), min(m.offset+1, lines), last, lines)
	}
	return pos + "tab/←→:section ↑↓/pgup/pgdn:scroll g/G:top/bottom q:quit"
}
