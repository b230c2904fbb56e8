package chain

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// EVMProvider reads native balances with eth_getBalance. When token is set it
// reads an ERC-20 balance through eth_call balanceOf instead.
type EVMProvider struct {
	rpc   *rpcClient
	token *TokenContract
}

// TokenContract identifies an ERC-20 contract on the parent chain.
type TokenContract struct {
	Address  string
	Decimals int32
}

func NewEVMProvider(rpcURL string, httpClient *http.Client) *EVMProvider {
	return &EVMProvider{rpc: newRPCClient(rpcURL, httpClient)}
}

// WithToken returns a provider on the same RPC that reads token balances.
func (p *EVMProvider) WithToken(token TokenContract) *EVMProvider {
	return &EVMProvider{rpc: p.rpc, token: &token}
}

// balanceOf(address) selector
const erc20BalanceOf = "0x70a08231"

func (p *EVMProvider) Balance(ctx context.Context, address string) (float64, error) {
	if p.token != nil {
		return p.tokenBalance(ctx, address)
	}

	var hexWei string
	if err := p.rpc.call(ctx, "eth_getBalance", []any{address, "latest"}, &hexWei); err != nil {
		return 0, err
	}
	wei, err := parseHexQuantity(hexWei)
	if err != nil {
		return 0, err
	}
	return fromBaseUnits(wei, weiExp), nil
}

func (p *EVMProvider) tokenBalance(ctx context.Context, address string) (float64, error) {
	holder := strings.TrimPrefix(strings.ToLower(address), "0x")
	if len(holder) != 40 {
		return 0, fmt.Errorf("invalid evm address %q", address)
	}
	data := erc20BalanceOf + strings.Repeat("0", 24) + holder

	var hexAmount string
	call := map[string]string{"to": p.token.Address, "data": data}
	if err := p.rpc.call(ctx, "eth_call", []any{call, "latest"}, &hexAmount); err != nil {
		return 0, err
	}
	amount, err := parseHexQuantity(hexAmount)
	if err != nil {
		return 0, err
	}
	return fromBaseUnits(amount, p.token.Decimals), nil
}
