package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PageSize is the number of transfers requested per page on every chain family.
const PageSize = 15

// ChainFamily identifies a group of networks sharing an address format and API shape.
type ChainFamily string

const (
	EVMMain  ChainFamily = "EVM_MAIN"
	EVMSide  ChainFamily = "EVM_SIDE"
	TronLike ChainFamily = "TRON_LIKE"
)

// Families lists every known family in declaration order. The order drives
// both cyclic chain switching and tie-breaking during preference resolution.
var Families = []ChainFamily{EVMMain, EVMSide, TronLike}

var familyLabels = map[ChainFamily]string{
	EVMMain:  "ERC20",
	EVMSide:  "BEP20",
	TronLike: "TRC20",
}

// Label returns the user-facing token standard name (ERC20, BEP20, TRC20).
func (f ChainFamily) Label() string {
	if l, ok := familyLabels[f]; ok {
		return l
	}
	return string(f)
}

// Valid reports whether f is one of the declared families.
func (f ChainFamily) Valid() bool {
	_, ok := familyLabels[f]
	return ok
}

// Index returns the declaration position of f, or -1.
func (f ChainFamily) Index() int {
	for i, c := range Families {
		if c == f {
			return i
		}
	}
	return -1
}

// ParseFamily accepts either the enum name or the label, case-insensitively.
func ParseFamily(s string) (ChainFamily, bool) {
	s = strings.TrimSpace(s)
	for _, f := range Families {
		if strings.EqualFold(s, string(f)) || strings.EqualFold(s, f.Label()) {
			return f, true
		}
	}
	return "", false
}

// BalanceSnapshot maps token symbol to a positive amount for one address on one family.
type BalanceSnapshot map[string]decimal.Decimal

// Total sums every amount regardless of token. It is a ranking signal only,
// not a financial total.
func (b BalanceSnapshot) Total() decimal.Decimal {
	total := decimal.Zero
	for _, amt := range b {
		total = total.Add(amt)
	}
	return total
}

// Add accumulates amt into symbol, ignoring non-positive amounts.
func (b BalanceSnapshot) Add(symbol string, amt decimal.Decimal) {
	if !amt.IsPositive() {
		return
	}
	b[symbol] = b[symbol].Add(amt)
}

// Direction of a transfer relative to the queried address.
type Direction string

const (
	Inbound  Direction = "in"
	Outbound Direction = "out"
)

// TransferRecord is one normalized token movement.
type TransferRecord struct {
	Counterpart string          `json:"counterpart"`
	Symbol      string          `json:"symbol"`
	Amount      decimal.Decimal `json:"amount"`
	Direction   Direction       `json:"direction"`
	TxHash      string          `json:"tx_hash,omitempty"`
	Timestamp   time.Time       `json:"timestamp,omitempty"`
}

// TokenResult is the outcome of a single per-token balance query.
type TokenResult struct {
	Symbol string
	Amount decimal.Decimal
	Err    error
}

// Action is a navigation affordance offered after a render.
type Action string

const (
	ActionPrev   Action = "prev"
	ActionNext   Action = "next"
	ActionSwitch Action = "switch"
)

// Callback data carried by buttons other than paging.
const (
	CallbackSwitch = "switch"
	CallbackQuery  = "query"
)

// PageCallback is the button data for paging f, e.g. "ERC20:next".
func PageCallback(f ChainFamily, a Action) string {
	return f.Label() + ":" + string(a)
}

// RenderPayload is what every navigation transition produces.
type RenderPayload struct {
	Address   string           `json:"address"`
	Chain     ChainFamily      `json:"chain"`
	Page      int              `json:"page"`
	Balances  BalanceSnapshot  `json:"balances"`
	Transfers []TransferRecord `json:"transfers"`
	Warning   string           `json:"warning,omitempty"`
	Actions   []Action         `json:"actions"`
}

// HasAction reports whether a is among the offered actions.
func (p RenderPayload) HasAction(a Action) bool {
	for _, x := range p.Actions {
		if x == a {
			return true
		}
	}
	return false
}

// ChainResult holds test results for a specific chain.
type ChainResult struct {
	Name            string      `json:"name"`
	Family          string      `json:"family"`
	ConfigChainID   int64       `json:"config_chain_id"`
	RPCs            []RPCResult `json:"rpcs"`
	Inconsistent    bool        `json:"inconsistent"`
	ObservedChainID int64       `json:"observed_chain_id,omitempty"`
	ChainIDUpdated  bool        `json:"chain_id_updated,omitempty"`
}

// RPCResult holds test results for a specific RPC URL.
type RPCResult struct {
	URL     string `json:"url"`
	Status  string `json:"status"` // "ok" or "error"
	ChainID int64  `json:"chain_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// TestReport holds the results of the configuration test.
type TestReport struct {
	ConfigPath         string        `json:"config_path"`
	ValidStructure     bool          `json:"valid_structure"`
	StructureErrors    []string      `json:"structure_errors,omitempty"`
	ChainCount         int           `json:"chain_count"`
	Chains             []ChainResult `json:"chains,omitempty"`
	InconsistentChains []string      `json:"inconsistent_chains,omitempty"`
	ConfigUpdated      bool          `json:"config_updated"`
	DryRun             bool          `json:"dry_run"`
	SaveError          string        `json:"save_error,omitempty"`
}
