package tui

import (
	"context"
	"fmt"
	"strings"

	"addrscope/pkg/models"
	"addrscope/pkg/utils"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
)

func (m model) submitCmd(address string) tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		p, err := ctrl.Submit(context.Background(), localUser, address)
		return renderMsg{payload: p, err: err}
	}
}

func (m model) callbackCmd(data string) tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		p, err := ctrl.HandleCallback(context.Background(), localUser, data)
		return renderMsg{payload: p, err: err}
	}
}

func (m *model) updateViewport() {
	if m.payload == nil {
		m.viewport.SetContent("")
		return
	}
	content := m.renderer.Text(*m.payload)
	if m.showGraph {
		content = lipgloss.JoinVertical(lipgloss.Left, content, "", transferGraph(*m.payload, m.viewport.Width-10))
	}
	m.viewport.SetContent(content)
}

// transferSeries lists the page's amounts oldest first, outbound as negative.
func transferSeries(p models.RenderPayload) []float64 {
	series := make([]float64, 0, len(p.Transfers))
	for i := len(p.Transfers) - 1; i >= 0; i-- {
		tx := p.Transfers[i]
		v := utils.DecimalToFloat64(tx.Amount)
		if tx.Direction == models.Outbound {
			v = -v
		}
		series = append(series, v)
	}
	return series
}

func transferGraph(p models.RenderPayload, width int) string {
	series := transferSeries(p)
	if len(series) < 2 {
		return "Not enough data to draw graph."
	}
	if width < 10 {
		width = 10
	}
	return asciigraph.Plot(series,
		asciigraph.Height(8),
		asciigraph.Width(width),
		asciigraph.Caption(fmt.Sprintf("%s transfers on page %d (in +, out -)", p.Chain.Label(), p.Page+1)),
	)
}

func unavailableHint(a models.Action) string {
	switch a {
	case models.ActionNext:
		return "No further page"
	case models.ActionPrev:
		return "Already on the first page"
	case models.ActionSwitch:
		return "This address exists on one chain only"
	}
	return ""
}

// keyHints lists only the keys the current payload allows.
func keyHints(p *models.RenderPayload) string {
	hints := []string{"/: new address"}
	if p != nil {
		if p.HasAction(models.ActionPrev) {
			hints = append(hints, "p: prev")
		}
		if p.HasAction(models.ActionNext) {
			hints = append(hints, "n: next")
		}
		if p.HasAction(models.ActionSwitch) {
			hints = append(hints, "s: switch chain")
		}
		hints = append(hints, "c: copy", "o: explorer", "g: graph")
	}
	hints = append(hints, "?: help", "q: quit")
	return strings.Join(hints, " • ")
}
