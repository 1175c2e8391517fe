package tui

import (
	"fmt"
	"strings"
	"testing"

	"addrscope/pkg/config"
	"addrscope/pkg/models"
	"addrscope/pkg/render"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddr = "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"

func testConfig() config.Config {
	return config.Config{Chains: config.DefaultChains(), Global: config.DefaultGlobalConfig()}
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func samplePayload(actions ...models.Action) models.RenderPayload {
	return models.RenderPayload{
		Address:  testAddr,
		Chain:    models.EVMMain,
		Balances: models.BalanceSnapshot{"USDT": decimal.NewFromInt(10)},
		Transfers: []models.TransferRecord{
			{Counterpart: "0x2222222222222222222222222222222222222222", Symbol: "USDT", Amount: decimal.NewFromInt(3), Direction: models.Outbound},
			{Counterpart: "0x1111111111111111111111111111111111111111", Symbol: "USDT", Amount: decimal.NewFromInt(5), Direction: models.Inbound},
		},
		Actions: actions,
	}
}

func TestTransferSeries(t *testing.T) {
	// newest first in the payload, oldest first in the series
	assert.Equal(t, []float64{5, -3}, transferSeries(samplePayload()))
	assert.Empty(t, transferSeries(models.RenderPayload{}))
}

func TestTransferGraph(t *testing.T) {
	assert.Equal(t, "Not enough data to draw graph.", transferGraph(models.RenderPayload{}, 40))

	out := transferGraph(samplePayload(), 40)
	assert.Contains(t, out, "ERC20 transfers on page 1")
}

func TestUnavailableHint(t *testing.T) {
	assert.Equal(t, "No further page", unavailableHint(models.ActionNext))
	assert.Equal(t, "Already on the first page", unavailableHint(models.ActionPrev))
	assert.Equal(t, "This address exists on one chain only", unavailableHint(models.ActionSwitch))
}

func TestKeyHints(t *testing.T) {
	assert.Equal(t, "/: new address • ?: help • q: quit", keyHints(nil))

	p := samplePayload(models.ActionNext)
	hints := keyHints(&p)
	assert.Contains(t, hints, "n: next")
	assert.NotContains(t, hints, "p: prev")
	assert.NotContains(t, hints, "s: switch chain")
}

func TestUpdate_RenderMsg(t *testing.T) {
	m := initialModel(nil, testConfig(), render.Default, "")
	m.loading = true

	next, _ := m.Update(renderMsg{payload: samplePayload(models.ActionNext)})
	got := next.(model)

	require.NotNil(t, got.payload)
	assert.False(t, got.loading)
	assert.False(t, got.entering)
	assert.Equal(t, testAddr, got.payload.Address)
}

func TestUpdate_RenderMsgErrors(t *testing.T) {
	m := initialModel(nil, testConfig(), render.Default, "")

	next, _ := m.Update(renderMsg{err: errors.Wrap(models.ErrInvalidAddress, "classify")})
	got := next.(model)
	assert.Equal(t, render.InvalidAddressMessage(), got.statusMessage)
	assert.Nil(t, got.payload)

	next, _ = m.Update(renderMsg{err: errors.WithStack(models.ErrStale)})
	got = next.(model)
	assert.Empty(t, got.statusMessage)

	next, _ = m.Update(renderMsg{err: fmt.Errorf("boom")})
	got = next.(model)
	assert.True(t, strings.HasPrefix(got.statusMessage, "Error:"))
}

func TestUpdate_ActionNotOffered(t *testing.T) {
	m := initialModel(nil, testConfig(), render.Default, "")
	p := samplePayload(models.ActionNext)
	m.payload = &p
	m.entering = false

	next, cmd := m.Update(key("p"))
	got := next.(model)
	assert.Equal(t, "Already on the first page", got.statusMessage)
	assert.False(t, got.loading)
	assert.NotNil(t, cmd)

	next, _ = m.Update(key("n"))
	got = next.(model)
	assert.True(t, got.loading)
	assert.Empty(t, got.statusMessage)
}

func TestUpdate_EnterAddress(t *testing.T) {
	m := initialModel(nil, testConfig(), render.Default, "")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	got := next.(model)
	assert.False(t, got.loading)
	assert.Nil(t, cmd)

	m.input.SetValue("  " + testAddr + " ")
	next, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	got = next.(model)
	assert.True(t, got.loading)
	assert.NotNil(t, cmd)
}

func TestUpdate_ToggleGraphAndHelp(t *testing.T) {
	m := initialModel(nil, testConfig(), render.Default, "")
	p := samplePayload()
	m.payload = &p
	m.entering = false

	next, _ := m.Update(key("g"))
	got := next.(model)
	assert.True(t, got.showGraph)

	next, _ = got.Update(key("?"))
	got = next.(model)
	assert.True(t, got.showHelp)
	assert.Contains(t, got.View(), "Keys")

	next, _ = got.Update(key("?"))
	got = next.(model)
	assert.False(t, got.showHelp)
}
