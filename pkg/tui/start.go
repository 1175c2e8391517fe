package tui

import (
	"addrscope/pkg/config"
	"addrscope/pkg/navigator"
	"addrscope/pkg/render"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
)

// Start runs the terminal UI until the user quits. A non-empty address is
// queried right away.
func Start(ctrl *navigator.Controller, cfg config.Config, renderer render.Renderer, address, version string) error {
	Version = version
	p := tea.NewProgram(
		initialModel(ctrl, cfg, renderer, address),
		tea.WithAltScreen(),
	)

	if _, err := p.Run(); err != nil {
		return errors.Wrap(err, "run terminal ui")
	}
	return nil
}
