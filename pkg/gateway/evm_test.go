package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"addrscope/pkg/config"
	"addrscope/pkg/models"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const holder = "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"

func evmChain(apiURL string) config.ChainConfig {
	return config.ChainConfig{
		Family: models.EVMMain,
		Name:   "Ethereum",
		APIURL: apiURL,
		APIKey: "secret",
		Tokens: []config.TokenConfig{
			{Symbol: "USDT", Address: "0xdAC17F958D2ee523a2206206994597C13D831ec7", Decimals: 6},
			{Symbol: "USDC", Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Decimals: 6},
		},
	}
}

func explorerTransfers(n int, to string) []map[string]string {
	txs := make([]map[string]string, 0, n)
	for i := 0; i < n; i++ {
		txs = append(txs, map[string]string{
			"hash":         fmt.Sprintf("0x%064x", i),
			"timeStamp":    fmt.Sprintf("%d", 1700000000-i),
			"from":         "0x1111111111111111111111111111111111111111",
			"to":           to,
			"value":        "2500000",
			"tokenSymbol":  "USDT",
			"tokenDecimal": "6",
		})
	}
	return txs
}

func TestEVMGateway_FetchBalances_AbsorbsTokenFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "tokenbalance", q.Get("action"))
		assert.Equal(t, "secret", q.Get("apikey"))
		assert.Equal(t, holder, q.Get("address"))
		assert.Equal(t, "latest", q.Get("tag"))

		switch q.Get("contractaddress") {
		case "0xdAC17F958D2ee523a2206206994597C13D831ec7":
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "1", "message": "OK", "result": "120500000"})
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	g := NewEVMGateway(evmChain(srv.URL), config.DefaultGlobalConfig(), nil)
	snap := g.FetchBalances(context.Background(), holder)

	require.Len(t, snap, 1)
	assert.Equal(t, "120.5", snap["USDT"].String())
	_, ok := snap["USDC"]
	assert.False(t, ok)
}

func TestEVMGateway_FetchBalances_OmitsZeroAndMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("contractaddress") {
		case "0xdAC17F958D2ee523a2206206994597C13D831ec7":
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "1", "message": "OK", "result": "0"})
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "0", "message": "NOTOK", "result": "Invalid API Key"})
		}
	}))
	defer srv.Close()

	g := NewEVMGateway(evmChain(srv.URL), config.DefaultGlobalConfig(), nil)
	assert.Empty(t, g.FetchBalances(context.Background(), holder))
}

func TestEVMGateway_FetchBalances_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	g := NewEVMGateway(evmChain(url), config.DefaultGlobalConfig(), nil)
	snap := g.FetchBalances(context.Background(), holder)
	assert.NotNil(t, snap)
	assert.Empty(t, snap)
}

func TestEVMGateway_FetchBalances_UsesRPCWhenConfigured(t *testing.T) {
	rpcSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     int    `json:"id"`
			Method string `json:"method"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			// 3 tokens at 6 decimals
			"result": "0x00000000000000000000000000000000000000000000000000000000002dc6c0",
		})
	}))
	defer rpcSrv.Close()

	explorerHit := false
	explorer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		explorerHit = true
	}))
	defer explorer.Close()

	ch := evmChain(explorer.URL)
	ch.RPCURLs = []string{rpcSrv.URL}
	g := NewEVMGateway(ch, config.DefaultGlobalConfig(), nil)

	snap := g.FetchBalances(context.Background(), holder)
	assert.Equal(t, "3", snap["USDT"].String())
	assert.Equal(t, "3", snap["USDC"].String())
	assert.False(t, explorerHit)
}

func TestEVMGateway_FetchTransfers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "tokentx", q.Get("action"))
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "15", q.Get("offset"))
		assert.Equal(t, "desc", q.Get("sort"))

		txs := explorerTransfers(15, strings.ToLower(holder))
		txs[1]["from"] = "0x" + strings.ToUpper(holder[2:])
		txs[1]["to"] = "0x2222222222222222222222222222222222222222"
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "1", "message": "OK", "result": txs})
	}))
	defer srv.Close()

	g := NewEVMGateway(evmChain(srv.URL), config.DefaultGlobalConfig(), nil)
	records, err := g.FetchTransfers(context.Background(), holder, 1)
	require.NoError(t, err)
	require.Len(t, records, 15)

	assert.Equal(t, models.Inbound, records[0].Direction)
	assert.Equal(t, "0x1111111111111111111111111111111111111111", records[0].Counterpart)
	assert.Equal(t, "2.5", records[0].Amount.String())
	assert.Equal(t, "USDT", records[0].Symbol)
	assert.Equal(t, int64(1700000000), records[0].Timestamp.Unix())

	assert.Equal(t, models.Outbound, records[1].Direction)
	assert.Equal(t, "0x2222222222222222222222222222222222222222", records[1].Counterpart)
}

func TestEVMGateway_FetchTransfers_NoTransactions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "0", "message": "No transactions found", "result": []any{}})
	}))
	defer srv.Close()

	g := NewEVMGateway(evmChain(srv.URL), config.DefaultGlobalConfig(), nil)
	records, err := g.FetchTransfers(context.Background(), holder, 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestEVMGateway_FetchTransfers_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"string result", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "0", "message": "NOTOK", "result": "Max rate limit reached"})
		}},
		{"http error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad gateway", http.StatusBadGateway)
		}},
		{"malformed json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			g := NewEVMGateway(evmChain(srv.URL), config.DefaultGlobalConfig(), nil)
			_, err := g.FetchTransfers(context.Background(), holder, 0)
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrUpstreamUnavailable))
		})
	}
}

func TestParseUnits(t *testing.T) {
	tests := []struct {
		raw      string
		decimals int
		expected string
		wantErr  bool
	}{
		{"12345678", 6, "12.345678", false},
		{"1000000000000000000", 18, "1", false},
		{"42", 0, "42", false},
		{"0", 6, "0", false},
		{"", 6, "", true},
		{"abc", 6, "", true},
		{"-5", 6, "", true},
	}

	for _, tt := range tests {
		got, err := parseUnits(tt.raw, tt.decimals)
		if tt.wantErr {
			assert.Error(t, err, tt.raw)
			continue
		}
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.expected, got.String(), tt.raw)
	}
}
