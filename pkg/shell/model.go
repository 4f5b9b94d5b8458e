package shell

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// Model is the bubbletea model for the interactive session: an input
// line for commands and a scrolling transcript of what they did.
type Model struct {
	engine *Engine

	input      textinput.Model
	transcript viewport.Model
	lines      []string

	width  int
	height int
}

// NewModel builds a shell UI around an already-assembled engine.
func NewModel(engine *Engine) Model {
	ti := textinput.New()
	ti.Placeholder = "begin | table <name> | insert <text> | get <p> <s> | update <p> <s> <text> | delete <p> <s> | commit | abort"
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 80

	vp := viewport.New(80, 16)

	return Model{
		engine:     engine,
		input:      ti,
		transcript: vp,
		lines:      []string{mutedStyle.Render("ready.")},
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = m.width - 4
		m.transcript.Width = m.width - 4
		m.transcript.Height = m.height - 8

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Submit):
			line := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if line != "" {
				m.runLine(line)
			}
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) runLine(line string) {
	result := m.engine.Run(line)
	entry := promptStyle.Render("> " + line)
	m.lines = append(m.lines, entry)
	if strings.HasPrefix(result, "error:") {
		m.lines = append(m.lines, errorLineStyle.Render(result))
	} else if result != "" {
		m.lines = append(m.lines, result)
	}
	m.transcript.SetContent(strings.Join(m.lines, "\n"))
	m.transcript.GotoBottom()
}

func (m Model) View() string {
	title := titleStyle.Render("storeshell")
	body := m.transcript.View()
	status := m.renderStatus()
	prompt := "> " + m.input.View()

	return appStyle.Render(strings.Join([]string{title, body, status, prompt}, "\n"))
}

func (m Model) renderStatus() string {
	s := m.engine.Status()
	if !s.Active {
		return statusBarStyle.Render("no active transaction")
	}
	return statusBarStyle.Render(fmt.Sprintf("txn %d | %s | %d locks held", s.ID, s.State, s.NumLocks))
}
