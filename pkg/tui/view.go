package tui

import (
	"fmt"
	"strings"

	"addrscope/pkg/render"

	"github.com/charmbracelet/lipgloss"
)

func (m model) View() string {
	if m.showHelp {
		return m.viewHelp()
	}
	if m.entering {
		return m.viewInput()
	}

	header := titleStyle.Render(fmt.Sprintf("addrscope %s", Version))
	if m.payload != nil {
		header = lipgloss.JoinHorizontal(lipgloss.Center, header, " ",
			infoStyle.Render(fmt.Sprintf("%s • page %d", m.payload.Chain.Label(), m.payload.Page+1)))
	}
	if m.loading {
		header = lipgloss.JoinHorizontal(lipgloss.Center, header, " ", m.spinner.View())
	}

	body := boxStyle.Render(m.viewport.View())
	footer := subtleStyle.Render(keyHints(m.payload))
	if m.statusMessage != "" {
		footer = lipgloss.JoinVertical(lipgloss.Left, warnStyle.Render(m.statusMessage), footer)
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m model) viewInput() string {
	lines := []string{
		render.Welcome(),
		"",
		m.input.View(),
	}
	if m.loading {
		lines = append(lines, "", m.spinner.View()+" Looking up address...")
	}
	if m.statusMessage != "" {
		lines = append(lines, "", warnStyle.Render(m.statusMessage))
	}
	hint := "Enter to query • Ctrl+C to quit"
	if m.payload != nil {
		hint = "Enter to query • Esc to go back"
	}
	lines = append(lines, "", subtleStyle.Render(hint))

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
		boxStyle.Render(strings.Join(lines, "\n")))
}

func (m model) viewHelp() string {
	rows := []string{
		"/        enter a new address",
		"n / p    next / previous page of transfers",
		"s        switch to the next chain for this address",
		"c        copy the full address",
		"o        open the address in the block explorer",
		"g        toggle the transfer amount graph",
		"↑/↓      scroll",
		"q        quit",
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
		boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("Keys"),
			"",
			strings.Join(rows, "\n"),
			"",
			subtleStyle.Render("? or esc to close"),
		)))
}
