// Package render turns a RenderPayload into the text block and buttons shown
// to the user.
package render

import (
	"fmt"
	"sort"
	"strings"

	"addrscope/pkg/models"
	"addrscope/pkg/utils"

	"github.com/shopspring/decimal"
)

var tokenEmojis = map[string]string{
	"USDT": "💵", "USDC": "💸", "ETH": "🧫", "BNB": "🟡", "DAI": "🟠",
	"TRX": "🔺", "SHIB": "🐶", "BTC": "🟧", "BUSD": "💰", "TUSD": "🔪",
}

// TokenEmoji falls back to 🔹 for unknown symbols.
func TokenEmoji(symbol string) string {
	if e, ok := tokenEmojis[strings.ToUpper(symbol)]; ok {
		return e
	}
	return "🔹"
}

const welcomeText = `👋 Welcome to the multi-chain address lookup!

📌 What it does:
- Send an address and its chain is detected automatically
- Shows TRC20 / ERC20 / BEP20 balances and recent transfers
- The chain holding the larger balance is shown first

📥 Send an address to get started!`

// Welcome is the usage text shown before the first address.
func Welcome() string { return welcomeText }

// Button is one affordance with the callback data it sends back.
type Button struct {
	Label string `json:"label"`
	Data  string `json:"data"`
}

// Renderer formats amounts with Places decimals.
type Renderer struct {
	Places int32
}

// Default renders with four decimals.
var Default = Renderer{Places: 4}

func New(places int) Renderer {
	if places < 0 {
		places = 4
	}
	return Renderer{Places: int32(places)}
}

func Text(p models.RenderPayload) string { return Default.Text(p) }

func Buttons(p models.RenderPayload) []Button { return Default.Buttons(p) }

// maxSymbol bounds token symbols, which are free text on Tron.
const maxSymbol = 12

type balanceLine struct {
	symbol string
	amount decimal.Decimal
}

// Text builds the address header, balances sorted largest first, then the
// transfer page.
func (r Renderer) Text(p models.RenderPayload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📦 %s address: %s\n\n", p.Chain.Label(), utils.ShortenAddress(p.Address))

	b.WriteString("💰 Balances:\n")
	lines := make([]balanceLine, 0, len(p.Balances))
	for sym, amt := range p.Balances {
		lines = append(lines, balanceLine{sym, amt})
	}
	sort.Slice(lines, func(i, j int) bool {
		if c := lines[i].amount.Cmp(lines[j].amount); c != 0 {
			return c > 0
		}
		return lines[i].symbol < lines[j].symbol
	})
	for _, l := range lines {
		fmt.Fprintf(&b, "%s %s: %s\n", TokenEmoji(l.symbol), utils.TruncateString(l.symbol, maxSymbol), utils.FormatAmount(l.amount, r.Places))
	}
	if len(lines) == 0 {
		b.WriteString("no balance\n")
	}

	fmt.Fprintf(&b, "\n🧾 Recent transactions (page %d):\n", p.Page+1)
	for _, tx := range p.Transfers {
		icon := "📤"
		if tx.Direction == models.Inbound {
			icon = "📥"
		}
		fmt.Fprintf(&b, "%s %s %s → %s\n", icon, utils.FormatAmount(tx.Amount, r.Places), utils.TruncateString(tx.Symbol, maxSymbol), utils.ShortenAddress(tx.Counterpart))
	}
	if len(p.Transfers) == 0 {
		b.WriteString("no transactions\n")
	}

	if p.Warning != "" {
		fmt.Fprintf(&b, "\n⚠️ %s\n", p.Warning)
	}
	return b.String()
}

// Buttons lists the payload's actions in prev, next, switch order and always
// ends with a new-query button.
func (r Renderer) Buttons(p models.RenderPayload) []Button {
	out := make([]Button, 0, 4)
	if p.HasAction(models.ActionPrev) {
		out = append(out, Button{Label: "⬅️ Prev", Data: models.PageCallback(p.Chain, models.ActionPrev)})
	}
	if p.HasAction(models.ActionNext) {
		out = append(out, Button{Label: "➡️ Next", Data: models.PageCallback(p.Chain, models.ActionNext)})
	}
	if p.HasAction(models.ActionSwitch) {
		out = append(out, Button{Label: "🔁 Switch chain", Data: models.CallbackSwitch})
	}
	out = append(out, Button{Label: "🔍 New query", Data: models.CallbackQuery})
	return out
}

// InvalidAddressMessage is the user-facing rejection text.
func InvalidAddressMessage() string {
	return "⚠️ Please enter a valid address (starting with 0x... or T...)"
}
