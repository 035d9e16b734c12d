package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Lines taken by the header, tab bar, section title and footer.
const chromeHeight = 7

const defaultHeight = 40

// Model pages through a finished report one section at a time.
type Model struct {
	header  string
	pages   []Page
	current int
	offset  int // first visible line of the current page
	width   int
	height  int
}

func NewModel(header string, pages []Page) Model {
	return Model{header: header, pages: pages, height: defaultHeight}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.offset = min(m.offset, m.maxOffset())

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "tab", "right", "l":
			if len(m.pages) > 0 {
				m.current = (m.current + 1) % len(m.pages)
				m.offset = 0
			}
		case "shift+tab", "left", "h":
			if len(m.pages) > 0 {
				m.current = (m.current - 1 + len(m.pages)) % len(m.pages)
				m.offset = 0
			}
		case "1", "2", "3", "4", "5", "6", "7", "8", "9":
			if idx := int(msg.String()[0] - '1'); idx < len(m.pages) {
				m.current = idx
				m.offset = 0
			}
		case "up", "k":
			if m.offset > 0 {
				m.offset--
			}
		case "down", "j":
			m.offset = min(m.offset+1, m.maxOffset())
		case "pgup":
			m.offset = max(0, m.offset-m.bodyHeight())
		case "pgdown", " ":
			m.offset = min(m.offset+m.bodyHeight(), m.maxOffset())
		case "home", "g":
			m.offset = 0
		case "end", "G":
			m.offset = m.maxOffset()
		}
	}

	return m, nil
}

func (m Model) View() string {
	return renderView(m)
}

// Current returns the index of the visible page.
func (m Model) Current() int { return m.current }

// Offset returns the first visible line of the current page.
func (m Model) Offset() int { return m.offset }

func (m Model) bodyHeight() int {
	return max(1, m.height-chromeHeight)
}

func (m Model) maxOffset() int {
	if len(m.pages) == 0 {
		return 0
	}
	return max(0, len(m.pages[m.current].Lines)-m.bodyHeight())
}
