package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/docmap"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	pathStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	kindStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const pageSize = 20

type browserState int

const (
	stateBrowse browserState = iota
	stateFilter
	stateDetail
)

type browserModel struct {
	doc      *docmap.Document
	name     string
	all      []pathEntry
	visible  []pathEntry
	filter   textinput.Model
	selected int
	offset   int
	state    browserState
}

func newBrowserModel(name string, doc *docmap.Document) *browserModel {
	ti := textinput.New()
	ti.Placeholder = "path filter"
	ti.Prompt = "/ "
	ti.Width = 40

	all := flatten(doc)
	return &browserModel{
		doc:     doc,
		name:    name,
		all:     all,
		visible: all,
		filter:  ti,
		state:   stateBrowse,
	}
}

func (m *browserModel) Init() tea.Cmd {
	return nil
}

func (m *browserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	if m.state == stateFilter {
		switch key.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "enter", "esc":
			m.filter.Blur()
			m.state = stateBrowse
			return m, nil
		}
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		m.applyFilter()
		return m, cmd
	}

	switch key.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "up", "k":
		if m.state == stateBrowse && m.selected > 0 {
			m.selected--
		}

	case "down", "j":
		if m.state == stateBrowse && m.selected < len(m.visible)-1 {
			m.selected++
		}

	case "/":
		if m.state == stateBrowse {
			m.state = stateFilter
			return m, m.filter.Focus()
		}

	case "enter":
		switch m.state {
		case stateBrowse:
			if len(m.visible) > 0 {
				m.state = stateDetail
			}
		case stateDetail:
			m.state = stateBrowse
		}

	case "esc":
		if m.state == stateDetail {
			m.state = stateBrowse
		}
	}

	m.scroll()
	return m, nil
}

func (m *browserModel) applyFilter() {
	m.visible = filterPaths(m.all, m.filter.Value())
	m.selected = 0
	m.offset = 0
}

func (m *browserModel) scroll() {
	if m.selected < m.offset {
		m.offset = m.selected
	}
	if m.selected >= m.offset+pageSize {
		m.offset = m.selected - pageSize + 1
	}
}

func (m *browserModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("docmap"))
	b.WriteString(" ")
	b.WriteString(m.name)
	b.WriteString("\n\n")

	if m.state == stateDetail {
		e := m.visible[m.selected]
		b.WriteString(fmt.Sprintf("%s %s\n\n", pathStyle.Render(e.path), kindStyle.Render(e.kind.String())))
		b.WriteString(valueStyle.Render(m.detail(e)))
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter/esc back • q quit"))
		return b.String()
	}

	b.WriteString(m.filter.View())
	b.WriteString("\n\n")

	if len(m.visible) == 0 {
		b.WriteString("No matching paths.\n")
	}
	end := min(m.offset+pageSize, len(m.visible))
	for i := m.offset; i < end; i++ {
		e := m.visible[i]
		line := pathStyle.Render(e.path) + " " + kindStyle.Render(e.kind.String()) + " " + e.preview
		if i == m.selected {
			b.WriteString(selectedStyle.Render("> " + e.path + " " + e.kind.String() + " " + e.preview))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	b.WriteString(fmt.Sprintf("\n%d/%d paths\n", len(m.visible), len(m.all)))
	b.WriteString(helpStyle.Render("↑/↓ select • / filter • enter inspect • q quit"))
	return b.String()
}

// detail renders the full value under e.
func (m *browserModel) detail(e pathEntry) string {
	v, ok := lookupPath(m.doc, e.path)
	if !ok {
		return e.preview
	}
	switch t := v.(type) {
	case *docmap.Document:
		return t.String()
	case []any:
		return docmap.DocumentOf("items", t).String()
	default:
		return e.preview
	}
}

// lookupPath resolves a flattened path such as "a.b[2].c".
func lookupPath(doc *docmap.Document, path string) (any, bool) {
	var segs []string
	for _, part := range strings.Split(path, ".") {
		for {
			i := strings.IndexByte(part, '[')
			if i < 0 {
				segs = append(segs, part)
				break
			}
			if i > 0 {
				segs = append(segs, part[:i])
			}
			j := strings.IndexByte(part, ']')
			if j < i {
				return nil, false
			}
			segs = append(segs, part[i+1:j])
			part = part[j+1:]
			if part == "" {
				break
			}
		}
	}
	return doc.Lookup(segs...)
}

func runInteractive(name string, doc *docmap.Document) error {
	p := tea.NewProgram(newBrowserModel(name, doc), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
