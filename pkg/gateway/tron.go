package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"addrscope/pkg/chain"
	"addrscope/pkg/config"
	"addrscope/pkg/models"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TronGateway reads TRC20 transfers from a TronGrid-compatible API.
type TronGateway struct {
	chain    config.ChainConfig
	client   *http.Client
	timeout  time.Duration
	pageSize int
	logger   *zap.Logger
}

func NewTronGateway(ch config.ChainConfig, global config.GlobalConfig, logger *zap.Logger) *TronGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := global.RequestTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pageSize := global.PageSize
	if pageSize <= 0 {
		pageSize = models.PageSize
	}
	return &TronGateway{
		chain:    ch,
		client:   &http.Client{Timeout: timeout},
		timeout:  timeout,
		pageSize: pageSize,
		logger:   logger.With(zap.String("chain", ch.Family.Label())),
	}
}

func (g *TronGateway) Family() models.ChainFamily { return g.chain.Family }

type tronResp struct {
	Data    []tronTransfer `json:"data"`
	Success bool           `json:"success"`
	Error   string         `json:"error,omitempty"`
	Meta    struct {
		At          int64  `json:"at"`
		Fingerprint string `json:"fingerprint,omitempty"`
		PageSize    int    `json:"page_size"`
	} `json:"meta"`
}

type tronTransfer struct {
	TransactionID string `json:"transaction_id"`
	TokenInfo     struct {
		Symbol   string `json:"symbol"`
		Address  string `json:"address"`
		Decimals int    `json:"decimals"`
		Name     string `json:"name"`
	} `json:"token_info"`
	BlockTimestamp int64  `json:"block_timestamp"`
	From           string `json:"from"`
	To             string `json:"to"`
	Type           string `json:"type"`
	Value          string `json:"value"`
}

func (g *TronGateway) fetchPage(ctx context.Context, address, fingerprint string) (tronResp, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := url.Values{}
	params.Set("limit", strconv.Itoa(g.pageSize))
	params.Set("only_confirmed", "true")
	params.Set("order_by", "block_timestamp,desc")
	if fingerprint != "" {
		params.Set("fingerprint", fingerprint)
	}
	u := strings.TrimRight(g.chain.APIURL, "/") + "/v1/accounts/" + url.PathEscape(address) + "/transactions/trc20?" + params.Encode()

	header := http.Header{}
	if g.chain.APIKey != "" {
		header.Set("TRON-PRO-API-KEY", g.chain.APIKey)
	}

	var out tronResp
	if err := getJSON(ctx, g.client, u, header, &out); err != nil {
		return tronResp{}, err
	}
	if !out.Success && out.Error != "" {
		return tronResp{}, errors.New(out.Error)
	}
	return out, nil
}

// FetchTransfers follows the fingerprint continuation cursor from the first
// page up to page. A chain that ends early yields an empty page.
func (g *TronGateway) FetchTransfers(ctx context.Context, address string, page int) ([]models.TransferRecord, error) {
	if page < 0 {
		page = 0
	}
	fingerprint := ""
	for i := 0; ; i++ {
		resp, err := g.fetchPage(ctx, address, fingerprint)
		if err != nil {
			return nil, unavailable(g.chain.Family, "trc20 transfers", err)
		}
		if i == page {
			records := make([]models.TransferRecord, 0, len(resp.Data))
			for _, tx := range resp.Data {
				records = append(records, g.normalize(address, tx))
			}
			return records, nil
		}
		if resp.Meta.Fingerprint == "" {
			return []models.TransferRecord{}, nil
		}
		fingerprint = resp.Meta.Fingerprint
	}
}

// FetchBalances approximates balances by summing inbound amounts on the first
// page of transfers. TronGrid offers no per-token balance query here.
func (g *TronGateway) FetchBalances(ctx context.Context, address string) models.BalanceSnapshot {
	records, err := g.FetchTransfers(ctx, address, 0)
	if err != nil {
		g.logger.Debug("balance derivation skipped", zap.Error(err))
		return models.BalanceSnapshot{}
	}
	return g.BalancesFromTransfers(records)
}

// BalancesFromTransfers sums the inbound amounts per symbol.
func (g *TronGateway) BalancesFromTransfers(records []models.TransferRecord) models.BalanceSnapshot {
	snap := make(models.BalanceSnapshot)
	for _, tx := range records {
		if tx.Direction == models.Inbound {
			snap.Add(tx.Symbol, tx.Amount)
		}
	}
	return snap
}

func (g *TronGateway) normalize(address string, tx tronTransfer) models.TransferRecord {
	amount, err := parseUnits(tx.Value, tx.TokenInfo.Decimals)
	if err != nil {
		amount = decimal.Zero
	}
	rec := models.TransferRecord{
		Symbol: symbolOrUnknown(tx.TokenInfo.Symbol),
		Amount: amount,
		TxHash: tx.TransactionID,
	}
	if tx.BlockTimestamp > 0 {
		rec.Timestamp = time.UnixMilli(tx.BlockTimestamp).UTC()
	}
	if chain.SameAddress(g.chain.Family, tx.To, address) {
		rec.Direction = models.Inbound
		rec.Counterpart = tx.From
	} else {
		rec.Direction = models.Outbound
		rec.Counterpart = tx.To
	}
	return rec
}

func symbolOrUnknown(s string) string {
	if s == "" {
		return "???"
	}
	return s
}
