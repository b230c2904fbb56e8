package chain

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// CardanoProvider reads address balances from Blockfrost.
type CardanoProvider struct {
	baseURL    string
	projectID  string
	httpClient *http.Client
}

func NewCardanoProvider(baseURL, projectID string, httpClient *http.Client) *CardanoProvider {
	return &CardanoProvider{baseURL: strings.TrimRight(baseURL, "/"), projectID: projectID, httpClient: httpClient}
}

type blockfrostAddress struct {
	Amount []struct {
		Unit     string `json:"unit"`
		Quantity string `json:"quantity"`
	} `json:"amount"`
}

func (p *CardanoProvider) Balance(ctx context.Context, address string) (float64, error) {
	var info blockfrostAddress
	u := fmt.Sprintf("%s/addresses/%s", p.baseURL, url.PathEscape(address))
	headers := map[string]string{"project_id": p.projectID}
	// Blockfrost answers 404 for addresses that never appeared on chain.
	if err := getJSON(ctx, p.httpClient, u, headers, ErrAccountNotFound, &info); err != nil {
		return 0, err
	}

	for _, a := range info.Amount {
		if a.Unit == "lovelace" {
			return parseBaseUnits(a.Quantity, lovelaceExp)
		}
	}
	return 0, nil
}
