// Package resolver picks a default chain family for an address that is valid
// on more than one family.
package resolver

import (
	"context"
	"sort"

	"addrscope/pkg/gateway"
	"addrscope/pkg/models"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Resolution is the chosen family plus every snapshot fetched to choose it.
// Snapshots is nil when only one candidate was given.
type Resolution struct {
	Chain     models.ChainFamily
	Snapshots map[models.ChainFamily]models.BalanceSnapshot
}

type Resolver struct {
	gateways gateway.Set
	logger   *zap.Logger
}

func New(gateways gateway.Set, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{gateways: gateways, logger: logger}
}

// Resolve returns the candidate with the strictly greatest balance sum. Ties
// go to the earliest declared family. A single candidate is returned without
// any upstream call.
func (r *Resolver) Resolve(ctx context.Context, address string, candidates []models.ChainFamily) (Resolution, error) {
	if len(candidates) == 0 {
		return Resolution{}, errors.WithStack(models.ErrInvalidAddress)
	}
	if len(candidates) == 1 {
		return Resolution{Chain: candidates[0]}, nil
	}

	ordered := make([]models.ChainFamily, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		return declared(ordered[i]) < declared(ordered[j])
	})

	snaps := make([]models.BalanceSnapshot, len(ordered))
	g, gctx := errgroup.WithContext(ctx)
	for i, family := range ordered {
		i, family := i, family
		gw, ok := r.gateways[family]
		if !ok {
			r.logger.Warn("no gateway for candidate, counting as zero", zap.String("chain", family.Label()))
			snaps[i] = models.BalanceSnapshot{}
			continue
		}
		g.Go(func() error {
			snaps[i] = gw.FetchBalances(gctx, address)
			return nil
		})
	}
	// Balance fetches absorb their own failures, so Wait only synchronizes.
	_ = g.Wait()

	res := Resolution{Chain: ordered[0], Snapshots: make(map[models.ChainFamily]models.BalanceSnapshot, len(ordered))}
	best := snaps[0].Total()
	for i, family := range ordered {
		snap := snaps[i]
		if snap == nil {
			snap = models.BalanceSnapshot{}
		}
		res.Snapshots[family] = snap
		if i > 0 && snap.Total().GreaterThan(best) {
			best = snap.Total()
			res.Chain = family
		}
	}

	r.logger.Debug("resolved preferred chain",
		zap.String("chain", res.Chain.Label()),
		zap.String("sum", best.String()),
		zap.Int("candidates", len(ordered)))
	return res, nil
}

// declared sorts unknown families after the known ones.
func declared(f models.ChainFamily) int {
	if i := f.Index(); i >= 0 {
		return i
	}
	return len(models.Families)
}
