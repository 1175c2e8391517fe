// Package rpc talks to EVM JSON-RPC endpoints through go-ethereum's ethclient.
package rpc

import (
	"context"
	"math/big"
	"time"

	"addrscope/pkg/config"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// balanceOf(address) selector
var balanceOfSelector = []byte{0x70, 0xa0, 0x82, 0x31}

// FetchTokenBalance queries balanceOf on each RPC URL in turn until one answers.
// Each attempt dials its own client and is bounded by timeout.
func FetchTokenBalance(ctx context.Context, rpcURLs []string, token config.TokenConfig, holder string, timeout time.Duration) (decimal.Decimal, error) {
	if len(rpcURLs) == 0 {
		return decimal.Zero, errors.New("no rpc urls configured")
	}
	var lastErr error
	for _, rpcURL := range rpcURLs {
		bal, err := fetchTokenBalanceFrom(ctx, rpcURL, token, holder, timeout)
		if err != nil {
			lastErr = errors.Wrapf(err, "rpc %s", rpcURL)
			continue
		}
		return bal, nil
	}
	return decimal.Zero, lastErr
}

func fetchTokenBalanceFrom(ctx context.Context, rpcURL string, token config.TokenConfig, holder string, timeout time.Duration) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return decimal.Zero, err
	}
	defer client.Close()

	raw, err := tokenBalanceRaw(ctx, client, token.Address, holder)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromBigInt(raw, -int32(token.Decimals)), nil
}

func tokenBalanceRaw(ctx context.Context, client *ethclient.Client, tokenAddress, holder string) (*big.Int, error) {
	account := common.HexToAddress(holder)
	data := make([]byte, 4+32)
	copy(data[0:4], balanceOfSelector)
	copy(data[4+12:], account.Bytes())

	tokenAddr := common.HexToAddress(tokenAddress)
	msg := ethereum.CallMsg{To: &tokenAddr, Data: data}
	result, err := client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, errors.New("empty balanceOf result")
	}
	return new(big.Int).SetBytes(result), nil
}

// ProbeChainID dials rpcURL and returns the chain id it reports.
func ProbeChainID(ctx context.Context, rpcURL string, timeout time.Duration) (*big.Int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	return client.ChainID(ctx)
}
