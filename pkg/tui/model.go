package tui

import (
	"addrscope/pkg/config"
	"addrscope/pkg/models"
	"addrscope/pkg/navigator"
	"addrscope/pkg/render"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Version is set by Start()
var Version = "dev"

// localUser keys the terminal's session in the controller.
const localUser = "local"

// --- Messages ---

type clearStatusMsg struct{}

// renderMsg carries the outcome of one controller transition.
type renderMsg struct {
	payload models.RenderPayload
	err     error
}

// --- Model ---

type model struct {
	ctrl          *navigator.Controller
	renderer      render.Renderer
	chains        config.Config
	payload       *models.RenderPayload
	input         textinput.Model
	entering      bool
	viewport      viewport.Model
	spinner       spinner.Model
	loading       bool
	statusMessage string
	showGraph     bool
	showHelp      bool
	width         int
	height        int
}

func initialModel(ctrl *navigator.Controller, cfg config.Config, renderer render.Renderer, initialAddress string) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	ti := textinput.New()
	ti.Placeholder = "0x... or T..."
	ti.Width = 46
	ti.CharLimit = 64
	ti.SetValue(initialAddress)
	ti.Focus()

	return model{
		ctrl:     ctrl,
		renderer: renderer,
		chains:   cfg,
		loading:  initialAddress != "",
		input:    ti,
		entering: true,
		viewport: viewport.New(0, 0),
		spinner:  s,
	}
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.spinner.Tick}
	if v := m.input.Value(); v != "" {
		cmds = append(cmds, m.submitCmd(v))
	}
	return tea.Batch(cmds...)
}
