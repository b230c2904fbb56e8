package chain

import (
	"context"
	"net/http"
)

type SolanaProvider struct {
	rpc *rpcClient
}

func NewSolanaProvider(rpcURL string, httpClient *http.Client) *SolanaProvider {
	return &SolanaProvider{rpc: newRPCClient(rpcURL, httpClient)}
}

func (p *SolanaProvider) Balance(ctx context.Context, address string) (float64, error) {
	var result struct {
		Value int64 `json:"value"`
	}
	params := []any{address, map[string]string{"commitment": "confirmed"}}
	if err := p.rpc.call(ctx, "getBalance", params, &result); err != nil {
		return 0, err
	}
	return fromBaseInt(result.Value, lamportExp), nil
}
