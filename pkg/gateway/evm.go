package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"addrscope/pkg/chain"
	"addrscope/pkg/config"
	"addrscope/pkg/models"
	"addrscope/pkg/rpc"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// EVMGateway reads an Etherscan-compatible explorer API. Token balances go
// through JSON-RPC instead when the chain lists RPC URLs.
type EVMGateway struct {
	chain    config.ChainConfig
	client   *http.Client
	timeout  time.Duration
	pageSize int
	logger   *zap.Logger
}

func NewEVMGateway(ch config.ChainConfig, global config.GlobalConfig, logger *zap.Logger) *EVMGateway {
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
	return &EVMGateway{
		chain:    ch,
		client:   &http.Client{Timeout: timeout},
		timeout:  timeout,
		pageSize: pageSize,
		logger:   logger.With(zap.String("chain", ch.Family.Label())),
	}
}

func (g *EVMGateway) Family() models.ChainFamily { return g.chain.Family }

type explorerResp struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type explorerTransfer struct {
	Hash         string `json:"hash"`
	TimeStamp    string `json:"timeStamp"`
	From         string `json:"from"`
	To           string `json:"to"`
	Value        string `json:"value"`
	TokenSymbol  string `json:"tokenSymbol"`
	TokenDecimal string `json:"tokenDecimal"`
}

func (g *EVMGateway) query(ctx context.Context, params url.Values) (explorerResp, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if g.chain.APIKey != "" {
		params.Set("apikey", g.chain.APIKey)
	}
	u := g.chain.APIURL
	if strings.Contains(u, "?") {
		u += "&" + params.Encode()
	} else {
		u += "?" + params.Encode()
	}

	var out explorerResp
	if err := getJSON(ctx, g.client, u, nil, &out); err != nil {
		return explorerResp{}, err
	}
	return out, nil
}

// FetchBalances queries every registered token. Failures stay local to their token.
func (g *EVMGateway) FetchBalances(ctx context.Context, address string) models.BalanceSnapshot {
	snap := make(models.BalanceSnapshot)
	for _, res := range g.tokenResults(ctx, address) {
		if res.Err != nil {
			g.logger.Debug("token balance omitted", zap.String("symbol", res.Symbol), zap.Error(res.Err))
			continue
		}
		snap.Add(res.Symbol, res.Amount)
	}
	return snap
}

func (g *EVMGateway) tokenResults(ctx context.Context, address string) []models.TokenResult {
	results := make([]models.TokenResult, 0, len(g.chain.Tokens))
	for _, token := range g.chain.Tokens {
		amt, err := g.tokenBalance(ctx, address, token)
		if err != nil {
			err = errors.Wrapf(models.ErrTokenFetch, "%s: %v", token.Symbol, err)
		}
		results = append(results, models.TokenResult{Symbol: token.Symbol, Amount: amt, Err: err})
	}
	return results
}

func (g *EVMGateway) tokenBalance(ctx context.Context, address string, token config.TokenConfig) (decimal.Decimal, error) {
	if len(g.chain.RPCURLs) > 0 {
		return rpc.FetchTokenBalance(ctx, g.chain.RPCURLs, token, address, g.timeout)
	}

	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", "tokenbalance")
	params.Set("contractaddress", token.Address)
	params.Set("address", address)
	params.Set("tag", "latest")

	resp, err := g.query(ctx, params)
	if err != nil {
		return decimal.Zero, err
	}
	var raw string
	if err := json.Unmarshal(resp.Result, &raw); err != nil {
		return decimal.Zero, errors.Wrap(err, "decode tokenbalance result")
	}
	if resp.Status != "1" {
		return decimal.Zero, errors.Errorf("explorer: %s: %s", resp.Message, raw)
	}
	return parseUnits(raw, token.Decimals)
}

// FetchTransfers requests one page of token transfers. Explorer pages are 1-based.
func (g *EVMGateway) FetchTransfers(ctx context.Context, address string, page int) ([]models.TransferRecord, error) {
	if page < 0 {
		page = 0
	}
	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", "tokentx")
	params.Set("address", address)
	params.Set("page", strconv.Itoa(page+1))
	params.Set("offset", strconv.Itoa(g.pageSize))
	params.Set("sort", "desc")

	resp, err := g.query(ctx, params)
	if err != nil {
		return nil, unavailable(g.chain.Family, "tokentx", err)
	}

	var txs []explorerTransfer
	if err := json.Unmarshal(resp.Result, &txs); err != nil {
		// Errors come back as a string result.
		var msg string
		_ = json.Unmarshal(resp.Result, &msg)
		if strings.Contains(strings.ToLower(resp.Message), "no transactions") {
			return []models.TransferRecord{}, nil
		}
		return nil, unavailable(g.chain.Family, "tokentx", errors.Errorf("%s: %s", resp.Message, msg))
	}

	records := make([]models.TransferRecord, 0, len(txs))
	for _, tx := range txs {
		records = append(records, g.normalize(address, tx))
	}
	return records, nil
}

func (g *EVMGateway) normalize(address string, tx explorerTransfer) models.TransferRecord {
	decimals, err := strconv.Atoi(strings.TrimSpace(tx.TokenDecimal))
	if err != nil {
		decimals = 0
	}
	amount, err := parseUnits(tx.Value, decimals)
	if err != nil {
		g.logger.Debug("unparseable transfer value", zap.String("hash", tx.Hash), zap.Error(err))
		amount = decimal.Zero
	}

	rec := models.TransferRecord{
		Symbol: symbolOrUnknown(tx.TokenSymbol),
		Amount: amount,
		TxHash: tx.Hash,
	}
	if ts, err := strconv.ParseInt(tx.TimeStamp, 10, 64); err == nil {
		rec.Timestamp = time.Unix(ts, 0).UTC()
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
