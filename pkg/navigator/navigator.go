// Package navigator drives a user's session: address submission, chain
// switching and transfer paging. Each transition ends with one upstream page
// fetch and a RenderPayload.
package navigator

import (
	"context"
	"strings"
	"sync"
	"time"

	"addrscope/pkg/chain"
	"addrscope/pkg/gateway"
	"addrscope/pkg/models"
	"addrscope/pkg/resolver"
	"addrscope/pkg/session"
	"addrscope/pkg/utils"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// TransfersUnavailable is the warning shown when a page could not be fetched.
const TransfersUnavailable = "transactions are temporarily unavailable, try again"

type userLock struct {
	mu   sync.Mutex
	refs int
}

type Controller struct {
	gateways gateway.Set
	resolver *resolver.Resolver
	store    session.Store
	pageSize int
	logger   *zap.Logger

	locksMu sync.Mutex
	locks   map[string]*userLock

	subMu       sync.RWMutex
	subscribers []Subscriber
}

// New wires a controller. A nil store falls back to an in-memory one without expiry.
func New(gateways gateway.Set, store session.Store, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if store == nil {
		store = session.NewMemoryStore(0)
	}
	return &Controller{
		gateways: gateways,
		resolver: resolver.New(gateways, logger),
		store:    store,
		pageSize: models.PageSize,
		logger:   logger,
		locks:    make(map[string]*userLock),
	}
}

// SetPageSize overrides the page size that decides whether "next" is offered.
// It must match the page size the gateways request.
func (c *Controller) SetPageSize(n int) {
	if n > 0 {
		c.pageSize = n
	}
}

// lock serializes state access for one user and returns the unlock func.
func (c *Controller) lock(user string) func() {
	c.locksMu.Lock()
	l, ok := c.locks[user]
	if !ok {
		l = &userLock{}
		c.locks[user] = l
	}
	l.refs++
	c.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		c.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.locks, user)
		}
		c.locksMu.Unlock()
	}
}

// Submit classifies address, resolves the preferred chain and starts a new
// session at page 0, replacing any previous one for user.
func (c *Controller) Submit(ctx context.Context, user, address string) (models.RenderPayload, error) {
	address = strings.TrimSpace(address)
	candidates := chain.Classify(address)
	if len(candidates) == 0 {
		return models.RenderPayload{}, errors.WithStack(models.ErrInvalidAddress)
	}

	res, err := c.resolver.Resolve(ctx, address, candidates)
	if err != nil {
		return models.RenderPayload{}, err
	}
	st, err := session.NewState(address, candidates, res.Chain)
	if err != nil {
		return models.RenderPayload{}, err
	}

	var first *pageResult
	snapshots := res.Snapshots
	if snapshots == nil {
		var snap models.BalanceSnapshot
		if tb, ok := c.gateways[res.Chain].(gateway.TransferBalancer); ok {
			// The balances come from page 0, which is rendered next anyway.
			records, err := c.fetchTransfers(ctx, res.Chain, address, 0)
			first = &pageResult{records: records, err: err}
			snap = models.BalanceSnapshot{}
			if err == nil {
				snap = tb.BalancesFromTransfers(records)
			}
		} else {
			snap = c.fetchBalances(ctx, res.Chain, address)
		}
		snapshots = map[models.ChainFamily]models.BalanceSnapshot{res.Chain: snap}
	}
	for family, snap := range snapshots {
		if err := st.SetBalances(family, snap); err != nil {
			return models.RenderPayload{}, err
		}
	}

	unlock := c.lock(user)
	err = c.store.Put(ctx, user, st)
	unlock()
	if err != nil {
		return models.RenderPayload{}, errors.Wrap(err, "store session")
	}

	c.logger.Info("session started",
		zap.String("user", user),
		zap.String("address", utils.ShortenAddress(address)),
		zap.String("chain", res.Chain.Label()),
		zap.Int("candidates", len(candidates)))
	c.notify(Event{Type: EventSessionReplaced, User: user, Origin: originFrom(ctx), Time: time.Now()})

	return c.render(ctx, user, st, first)
}

// SwitchChain moves to the next candidate, wrapping around, and renders it at
// its stored page.
func (c *Controller) SwitchChain(ctx context.Context, user string) (models.RenderPayload, error) {
	return c.transition(ctx, user, func(st *session.State) error {
		return st.SetCurrentChain(st.NextChain())
	})
}

// Paginate moves family's cursor and makes family current. Next is never
// refused; Prev at page 0 stays at 0.
func (c *Controller) Paginate(ctx context.Context, user string, family models.ChainFamily, action models.Action) (models.RenderPayload, error) {
	if action != models.ActionNext && action != models.ActionPrev {
		return models.RenderPayload{}, errors.Wrapf(models.ErrBadCallback, "unsupported page action %q", action)
	}
	return c.transition(ctx, user, func(st *session.State) error {
		if !st.HasCandidate(family) {
			// A button from an earlier session whose address had other chains.
			return errors.Wrapf(models.ErrStale, "chain %s is not part of the current session", family.Label())
		}
		page := st.Page(family)
		switch action {
		case models.ActionNext:
			page++
		case models.ActionPrev:
			if page > 0 {
				page--
			}
		}
		if err := st.SetPage(family, page); err != nil {
			return err
		}
		return st.SetCurrentChain(family)
	})
}

// HandleCallback dispatches button data: "switch", "<LABEL>:next" or "<LABEL>:prev".
func (c *Controller) HandleCallback(ctx context.Context, user, data string) (models.RenderPayload, error) {
	data = strings.TrimSpace(data)
	if data == models.CallbackSwitch {
		return c.SwitchChain(ctx, user)
	}
	label, action, ok := strings.Cut(data, ":")
	if !ok {
		return models.RenderPayload{}, errors.Wrapf(models.ErrBadCallback, "%q", data)
	}
	family, ok := models.ParseFamily(label)
	if !ok {
		return models.RenderPayload{}, errors.Wrapf(models.ErrBadCallback, "unknown chain in %q", data)
	}
	return c.Paginate(ctx, user, family, models.Action(action))
}

// Session returns a copy of the user's current state.
func (c *Controller) Session(ctx context.Context, user string) (*session.State, error) {
	unlock := c.lock(user)
	defer unlock()
	return c.store.Get(ctx, user)
}

func (c *Controller) transition(ctx context.Context, user string, mutate func(*session.State) error) (models.RenderPayload, error) {
	unlock := c.lock(user)
	st, err := c.store.Get(ctx, user)
	if err != nil {
		unlock()
		return models.RenderPayload{}, err
	}
	if err := mutate(st); err != nil {
		unlock()
		return models.RenderPayload{}, err
	}
	err = c.store.Put(ctx, user, st)
	unlock()
	if err != nil {
		return models.RenderPayload{}, errors.Wrap(err, "store session")
	}
	return c.render(ctx, user, st, nil)
}

// pageResult is a transfer page fetched ahead of render.
type pageResult struct {
	records []models.TransferRecord
	err     error
}

// render fetches the page for st's current chain without holding the user
// lock, then discards the result if the session moved on meanwhile. A non-nil
// first is used instead of fetching.
func (c *Controller) render(ctx context.Context, user string, st *session.State, first *pageResult) (models.RenderPayload, error) {
	family := st.CurrentChain()
	page := st.Page(family)
	log := c.logger.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("user", user),
		zap.String("address", utils.ShortenAddress(st.Address())),
		zap.String("chain", family.Label()),
		zap.Int("page", page))

	var warning string
	var records []models.TransferRecord
	var err error
	if first != nil {
		records, err = first.records, first.err
	} else {
		records, err = c.fetchTransfers(ctx, family, st.Address(), page)
	}
	if err != nil {
		log.Warn("transfer page unavailable", zap.Error(err))
		records = []models.TransferRecord{}
		warning = TransfersUnavailable
	}

	unlock := c.lock(user)
	cur, err := c.store.Get(ctx, user)
	unlock()
	if err != nil && !errors.Is(err, models.ErrNoSession) {
		log.Error("session reload failed", zap.Error(err))
		return models.RenderPayload{}, errors.Wrap(err, "reload session")
	}
	// A session that vanished or moved on owns the screen now.
	if err != nil || isStale(st, cur) {
		log.Debug("discarding stale render")
		c.notify(Event{Type: EventStaleDiscarded, User: user, Origin: originFrom(ctx), Time: time.Now()})
		return models.RenderPayload{}, errors.Wrapf(models.ErrStale, "%s page %d", family.Label(), page)
	}

	balances, _ := st.Balances(family)
	if balances == nil {
		balances = models.BalanceSnapshot{}
	}
	payload := models.RenderPayload{
		Address:   st.Address(),
		Chain:     family,
		Page:      page,
		Balances:  balances,
		Transfers: records,
		Warning:   warning,
		Actions:   actions(page, len(records), c.pageSize, len(st.Candidates())),
	}
	log.Debug("rendered", zap.Int("transfers", len(records)))
	c.notify(Event{Type: EventRendered, User: user, Origin: originFrom(ctx), Payload: &payload, Time: time.Now()})
	return payload, nil
}

func isStale(want, cur *session.State) bool {
	if cur == nil {
		return true
	}
	family := want.CurrentChain()
	return cur.Generation() != want.Generation() ||
		cur.Address() != want.Address() ||
		cur.CurrentChain() != family ||
		cur.Page(family) != want.Page(family)
}

func actions(page, fetched, pageSize, candidates int) []models.Action {
	out := make([]models.Action, 0, 3)
	if page > 0 {
		out = append(out, models.ActionPrev)
	}
	if fetched == pageSize {
		out = append(out, models.ActionNext)
	}
	if candidates > 1 {
		out = append(out, models.ActionSwitch)
	}
	return out
}

func (c *Controller) fetchBalances(ctx context.Context, family models.ChainFamily, address string) models.BalanceSnapshot {
	gw, ok := c.gateways[family]
	if !ok {
		c.logger.Warn("no gateway configured", zap.String("chain", family.Label()))
		return models.BalanceSnapshot{}
	}
	return gw.FetchBalances(ctx, address)
}

func (c *Controller) fetchTransfers(ctx context.Context, family models.ChainFamily, address string, page int) ([]models.TransferRecord, error) {
	gw, ok := c.gateways[family]
	if !ok {
		return nil, errors.Wrapf(models.ErrUpstreamUnavailable, "no gateway for %s", family.Label())
	}
	return gw.FetchTransfers(ctx, address, page)
}

// Subscribe adds a new subscriber and returns a channel to receive events.
func (c *Controller) Subscribe() Subscriber {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	ch := make(Subscriber, 100)
	c.subscribers = append(c.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (c *Controller) Unsubscribe(ch Subscriber) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for i, sub := range c.subscribers {
		if sub == ch {
			c.subscribers = append(c.subscribers[:i], c.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

func (c *Controller) notify(event Event) {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	for _, sub := range c.subscribers {
		select {
		case sub <- event:
		default:
			// slow subscriber, drop
		}
	}
}
