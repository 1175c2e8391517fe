// Package session holds per-user navigation state: the submitted address, its
// candidate chain families, the current family and one page cursor per family.
package session

import (
	"encoding/json"
	"sort"
	"time"

	"addrscope/pkg/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// State is one user's session. Every mutation checks the invariants and
// leaves the state untouched when they would break.
type State struct {
	address    string
	candidates []models.ChainFamily
	current    models.ChainFamily
	pages      map[models.ChainFamily]int
	balances   map[models.ChainFamily]models.BalanceSnapshot
	generation string
	updatedAt  time.Time
}

// NewState starts a session at page 0 on every candidate, positioned on
// preferred. Each call gets a fresh generation id.
func NewState(address string, candidates []models.ChainFamily, preferred models.ChainFamily) (*State, error) {
	if len(candidates) == 0 {
		return nil, errors.Wrap(models.ErrStateInvariant, "no candidate chains")
	}
	ordered := make([]models.ChainFamily, 0, len(candidates))
	seen := make(map[models.ChainFamily]bool, len(candidates))
	for _, c := range candidates {
		if !seen[c] {
			seen[c] = true
			ordered = append(ordered, c)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Index() < ordered[j].Index() })

	s := &State{
		address:    address,
		candidates: ordered,
		pages:      make(map[models.ChainFamily]int, len(ordered)),
		balances:   make(map[models.ChainFamily]models.BalanceSnapshot, len(ordered)),
		generation: uuid.NewString(),
		updatedAt:  time.Now(),
	}
	for _, c := range ordered {
		s.pages[c] = 0
	}
	if !s.HasCandidate(preferred) {
		return nil, errors.Wrapf(models.ErrStateInvariant, "preferred chain %s is not a candidate", preferred)
	}
	s.current = preferred
	return s, nil
}

func (s *State) Address() string { return s.address }

// Generation identifies this session instance. A new submission replaces it.
func (s *State) Generation() string { return s.generation }

func (s *State) UpdatedAt() time.Time { return s.updatedAt }

func (s *State) CurrentChain() models.ChainFamily { return s.current }

// Candidates returns the candidate families in declared order.
func (s *State) Candidates() []models.ChainFamily {
	out := make([]models.ChainFamily, len(s.candidates))
	copy(out, s.candidates)
	return out
}

func (s *State) HasCandidate(c models.ChainFamily) bool {
	for _, x := range s.candidates {
		if x == c {
			return true
		}
	}
	return false
}

func (s *State) SetCurrentChain(c models.ChainFamily) error {
	if !s.HasCandidate(c) {
		return errors.Wrapf(models.ErrStateInvariant, "chain %s is not a candidate", c)
	}
	s.current = c
	s.touch()
	return nil
}

// NextChain is the candidate after the current one, wrapping around.
func (s *State) NextChain() models.ChainFamily {
	for i, c := range s.candidates {
		if c == s.current {
			return s.candidates[(i+1)%len(s.candidates)]
		}
	}
	return s.current
}

// Page returns the stored cursor for c, 0 for an unknown chain.
func (s *State) Page(c models.ChainFamily) int {
	return s.pages[c]
}

func (s *State) SetPage(c models.ChainFamily, page int) error {
	if !s.HasCandidate(c) {
		return errors.Wrapf(models.ErrStateInvariant, "chain %s is not a candidate", c)
	}
	if page < 0 {
		return errors.Wrapf(models.ErrStateInvariant, "negative page %d on %s", page, c)
	}
	s.pages[c] = page
	s.touch()
	return nil
}

// Balances returns the snapshot stored for c and whether one was stored.
func (s *State) Balances(c models.ChainFamily) (models.BalanceSnapshot, bool) {
	b, ok := s.balances[c]
	return b, ok
}

func (s *State) SetBalances(c models.ChainFamily, b models.BalanceSnapshot) error {
	if !s.HasCandidate(c) {
		return errors.Wrapf(models.ErrStateInvariant, "chain %s is not a candidate", c)
	}
	if b == nil {
		b = models.BalanceSnapshot{}
	}
	s.balances[c] = b
	return nil
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	cp := &State{
		address:    s.address,
		candidates: s.Candidates(),
		current:    s.current,
		pages:      make(map[models.ChainFamily]int, len(s.pages)),
		balances:   make(map[models.ChainFamily]models.BalanceSnapshot, len(s.balances)),
		generation: s.generation,
		updatedAt:  s.updatedAt,
	}
	for k, v := range s.pages {
		cp.pages[k] = v
	}
	for k, v := range s.balances {
		b := make(models.BalanceSnapshot, len(v))
		for sym, amt := range v {
			b[sym] = amt
		}
		cp.balances[k] = b
	}
	return cp
}

func (s *State) touch() { s.updatedAt = time.Now() }

type stateJSON struct {
	Address    string                                        `json:"address"`
	Candidates []models.ChainFamily                          `json:"candidates"`
	Current    models.ChainFamily                            `json:"current"`
	Pages      map[models.ChainFamily]int                    `json:"pages"`
	Balances   map[models.ChainFamily]models.BalanceSnapshot `json:"balances,omitempty"`
	Generation string                                        `json:"generation"`
	UpdatedAt  time.Time                                     `json:"updated_at"`
}

func (s *State) MarshalJSON() ([]byte, error) {
	return json.Marshal(stateJSON{
		Address:    s.address,
		Candidates: s.candidates,
		Current:    s.current,
		Pages:      s.pages,
		Balances:   s.balances,
		Generation: s.generation,
		UpdatedAt:  s.updatedAt,
	})
}

// UnmarshalJSON rejects encoded states that break the invariants.
func (s *State) UnmarshalJSON(b []byte) error {
	var raw stateJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	st := State{
		address:    raw.Address,
		candidates: raw.Candidates,
		current:    raw.Current,
		pages:      make(map[models.ChainFamily]int, len(raw.Candidates)),
		balances:   make(map[models.ChainFamily]models.BalanceSnapshot, len(raw.Candidates)),
		generation: raw.Generation,
		updatedAt:  raw.UpdatedAt,
	}
	if !st.HasCandidate(st.current) {
		return errors.Wrapf(models.ErrStateInvariant, "stored chain %s is not a candidate", st.current)
	}
	for _, c := range st.candidates {
		st.pages[c] = 0
	}
	for c, p := range raw.Pages {
		if err := st.SetPage(c, p); err != nil {
			return err
		}
	}
	for c, bal := range raw.Balances {
		if err := st.SetBalances(c, bal); err != nil {
			return err
		}
	}
	st.updatedAt = raw.UpdatedAt
	*s = st
	return nil
}
