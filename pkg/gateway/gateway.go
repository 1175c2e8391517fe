// Package gateway normalizes each chain family's upstream API into balance
// snapshots and pages of transfer records.
package gateway

import (
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"strings"

	"addrscope/pkg/config"
	"addrscope/pkg/models"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Gateway is the capability set every chain family adapter provides.
type Gateway interface {
	Family() models.ChainFamily
	// FetchBalances never fails: tokens whose query fails are left out.
	FetchBalances(ctx context.Context, address string) models.BalanceSnapshot
	// FetchTransfers returns one zero-indexed page, newest first.
	FetchTransfers(ctx context.Context, address string, page int) ([]models.TransferRecord, error)
}

// TransferBalancer is implemented by gateways whose balances come from the
// first page of transfers. A caller already holding that page derives the
// balances instead of fetching it twice.
type TransferBalancer interface {
	BalancesFromTransfers(records []models.TransferRecord) models.BalanceSnapshot
}

// Set selects the adapter for a family.
type Set map[models.ChainFamily]Gateway

// NewSet builds one adapter per configured chain.
func NewSet(cfg config.Config, logger *zap.Logger) Set {
	if logger == nil {
		logger = zap.NewNop()
	}
	set := make(Set, len(cfg.Chains))
	for _, ch := range cfg.Chains {
		switch ch.Family {
		case models.EVMMain, models.EVMSide:
			set[ch.Family] = NewEVMGateway(ch, cfg.Global, logger)
		case models.TronLike:
			set[ch.Family] = NewTronGateway(ch, cfg.Global, logger)
		default:
			logger.Warn("skipping chain with unknown family", zap.String("family", string(ch.Family)))
		}
	}
	return set
}

// maxBody caps how much of an upstream response is read.
const maxBody = 2 << 20

func getJSON(ctx context.Context, c *http.Client, u string, header http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.Unmarshal(b, out); err != nil {
		return errors.Wrap(err, "decode json")
	}
	return nil
}

// parseUnits converts a raw integer string into a decimal scaled by decimals.
func parseUnits(raw string, decimals int) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, errors.New("empty amount")
	}
	n, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return decimal.Zero, errors.Errorf("invalid integer amount %q", raw)
	}
	if n.Sign() < 0 {
		return decimal.Zero, errors.Errorf("negative amount %q", raw)
	}
	if decimals < 0 {
		decimals = 0
	}
	return decimal.NewFromBigInt(n, -int32(decimals)), nil
}

func unavailable(family models.ChainFamily, op string, err error) error {
	return errors.Wrapf(models.ErrUpstreamUnavailable, "%s %s: %v", family.Label(), op, err)
}
