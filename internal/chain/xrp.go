package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// XRPProvider queries rippled account_info. rippled reports errors inside a
// 200 result rather than as JSON-RPC errors, so it does not use rpcClient.
type XRPProvider struct {
	url        string
	httpClient *http.Client
}

func NewXRPProvider(rpcURL string, httpClient *http.Client) *XRPProvider {
	return &XRPProvider{url: rpcURL, httpClient: httpClient}
}

type xrpAccountInfo struct {
	Result struct {
		Status      string `json:"status"`
		Error       string `json:"error"`
		AccountData struct {
			Balance string `json:"Balance"`
		} `json:"account_data"`
	} `json:"result"`
}

func (p *XRPProvider) Balance(ctx context.Context, address string) (float64, error) {
	body, _ := json.Marshal(map[string]any{
		"method": "account_info",
		"params": []map[string]any{{
			"account":      address,
			"ledger_index": "validated",
			"strict":       true,
		}},
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("xrpl returned %d: %s", resp.StatusCode, string(b))
	}

	var info xrpAccountInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return 0, fmt.Errorf("decode account_info: %w", err)
	}

	switch {
	case info.Result.Error == "actNotFound":
		return 0, ErrAccountNotFound
	case info.Result.Error != "":
		return 0, fmt.Errorf("account_info: %s", info.Result.Error)
	}
	return parseBaseUnits(info.Result.AccountData.Balance, dropExp)
}
