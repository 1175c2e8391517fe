package tui

import (
	"fmt"
	"strings"
	"time"

	"addrscope/pkg/models"
	"addrscope/pkg/render"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
)

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width - 4
		m.viewport.Height = msg.Height - 8
		m.updateViewport()

	case renderMsg:
		m.loading = false
		switch {
		case msg.err == nil:
			p := msg.payload
			m.payload = &p
			m.entering = false
			m.input.Blur()
			m.viewport.GotoTop()
			m.updateViewport()
		case errors.Is(msg.err, models.ErrStale):
			// a newer request owns the screen
		case errors.Is(msg.err, models.ErrInvalidAddress):
			m.statusMessage = render.InvalidAddressMessage()
			cmds = append(cmds, clearStatusAfter(3*time.Second))
		default:
			m.statusMessage = fmt.Sprintf("Error: %v", msg.err)
			cmds = append(cmds, clearStatusAfter(3*time.Second))
		}

	case tea.KeyMsg:
		if m.entering {
			return m.updateInput(msg)
		}
		if msg.String() == "?" {
			m.showHelp = !m.showHelp
			return m, nil
		}
		if m.showHelp {
			if msg.String() == "q" || msg.String() == "esc" {
				m.showHelp = false
			}
			return m, nil
		}

		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "/":
			m.entering = true
			m.input.SetValue("")
			m.input.Focus()
			return m, textinput.Blink
		case "n":
			cmds = append(cmds, m.actionCmd(models.ActionNext))
		case "p":
			cmds = append(cmds, m.actionCmd(models.ActionPrev))
		case "s":
			cmds = append(cmds, m.actionCmd(models.ActionSwitch))
		case "g":
			m.showGraph = !m.showGraph
			m.updateViewport()
		case "c":
			if m.payload != nil {
				if err := clipboard.WriteAll(m.payload.Address); err != nil {
					m.statusMessage = "Failed to copy to clipboard"
				} else {
					m.statusMessage = "Full address copied to clipboard!"
				}
				cmds = append(cmds, clearStatusAfter(2*time.Second))
			}
		case "o":
			if m.payload != nil {
				ch, _ := m.chains.Chain(m.payload.Chain)
				url := ch.AddressURL(m.payload.Address)
				switch {
				case url == "":
					m.statusMessage = "Explorer URL not configured for this chain"
				case openBrowser(url) != nil:
					m.statusMessage = "Failed to open browser"
				default:
					m.statusMessage = "Opened in browser"
				}
				cmds = append(cmds, clearStatusAfter(2*time.Second))
			}
		default:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			cmds = append(cmds, cmd)
		}

	case clearStatusMsg:
		m.statusMessage = ""
	}

	if m.loading {
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		if m.payload != nil {
			m.entering = false
			m.input.Blur()
		}
		return m, nil
	case "enter":
		addr := strings.TrimSpace(m.input.Value())
		if addr == "" {
			return m, nil
		}
		m.loading = true
		return m, tea.Batch(m.submitCmd(addr), m.spinner.Tick)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// actionCmd only sends actions the last render offered.
func (m *model) actionCmd(a models.Action) tea.Cmd {
	if m.payload == nil || m.loading {
		return nil
	}
	if !m.payload.HasAction(a) {
		m.statusMessage = unavailableHint(a)
		return clearStatusAfter(2 * time.Second)
	}
	data := models.CallbackSwitch
	if a != models.ActionSwitch {
		data = models.PageCallback(m.payload.Chain, a)
	}
	m.loading = true
	return tea.Batch(m.callbackCmd(data), m.spinner.Tick)
}
