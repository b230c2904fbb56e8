package chain

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// UTXOProvider reads balances from an Esplora-compatible explorer (Blockstream, mempool.space).
type UTXOProvider struct {
	baseURL    string
	httpClient *http.Client
}

func NewUTXOProvider(baseURL string, httpClient *http.Client) *UTXOProvider {
	return &UTXOProvider{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

type esploraAddress struct {
	ChainStats struct {
		FundedTxoSum int64 `json:"funded_txo_sum"`
		SpentTxoSum  int64 `json:"spent_txo_sum"`
	} `json:"chain_stats"`
}

func (p *UTXOProvider) Balance(ctx context.Context, address string) (float64, error) {
	var info esploraAddress
	u := fmt.Sprintf("%s/address/%s", p.baseURL, url.PathEscape(address))
	if err := getJSON(ctx, p.httpClient, u, nil, nil, &info); err != nil {
		return 0, err
	}
	sat := info.ChainStats.FundedTxoSum - info.ChainStats.SpentTxoSum
	return fromBaseInt(sat, satoshiExp), nil
}
