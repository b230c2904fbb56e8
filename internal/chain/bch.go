package chain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// bchSource is one REST balance API in the fallback chain.
type bchSource struct {
	name  string
	fetch func(ctx context.Context, cashAddr, legacy string) (float64, error)
}

// BCHProvider tries each configured REST API in order; the first success wins.
type BCHProvider struct {
	sources []bchSource
	log     *zap.Logger
}

// BCHEndpoints are the base URLs of the fallback chain; empty entries are skipped.
type BCHEndpoints struct {
	Primary   string // Blockchair
	Secondary string // FullStack.cash electrumx
	Tertiary  string // rest.bitcoin.com
}

func NewBCHProvider(ep BCHEndpoints, httpClient *http.Client, log *zap.Logger) *BCHProvider {
	p := &BCHProvider{log: log}
	if ep.Primary != "" {
		p.sources = append(p.sources, blockchairSource(strings.TrimRight(ep.Primary, "/"), httpClient))
	}
	if ep.Secondary != "" {
		p.sources = append(p.sources, fullstackSource(strings.TrimRight(ep.Secondary, "/"), httpClient))
	}
	if ep.Tertiary != "" {
		p.sources = append(p.sources, bitcoinComSource(strings.TrimRight(ep.Tertiary, "/"), httpClient))
	}
	return p
}

func (p *BCHProvider) Balance(ctx context.Context, address string) (float64, error) {
	if len(p.sources) == 0 {
		return 0, errors.New("no bch balance sources configured")
	}

	cashAddr := address
	if IsCashAddr(address) && !strings.Contains(address, ":") {
		cashAddr = cashAddrDefaultPrefix + ":" + address
	}
	if IsCashAddr(cashAddr) && !VerifyCashAddrChecksum(cashAddr) {
		p.log.Warn("bch address checksum mismatch", zap.String("address", address))
	}
	legacy, err := ToLegacyAddress(address)
	if err != nil {
		return 0, err
	}

	var errs []error
	for _, src := range p.sources {
		bal, err := src.fetch(ctx, cashAddr, legacy)
		if err == nil {
			return bal, nil
		}
		p.log.Debug("bch source failed, trying next", zap.String("source", src.name), zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", src.name, err))
		if ctx.Err() != nil {
			break
		}
	}
	return 0, errors.Join(errs...)
}

func blockchairSource(base string, httpClient *http.Client) bchSource {
	return bchSource{
		name: "blockchair",
		fetch: func(ctx context.Context, _, legacy string) (float64, error) {
			var resp struct {
				Data map[string]struct {
					Address struct {
						Balance int64 `json:"balance"`
					} `json:"address"`
				} `json:"data"`
			}
			u := fmt.Sprintf("%s/dashboards/address/%s", base, url.PathEscape(legacy))
			if err := getJSON(ctx, httpClient, u, nil, nil, &resp); err != nil {
				return 0, err
			}
			for _, entry := range resp.Data {
				return fromBaseInt(entry.Address.Balance, satoshiExp), nil
			}
			return 0, errors.New("address missing from response")
		},
	}
}

func fullstackSource(base string, httpClient *http.Client) bchSource {
	return bchSource{
		name: "fullstack",
		fetch: func(ctx context.Context, cashAddr, _ string) (float64, error) {
			var resp struct {
				Success bool `json:"success"`
				Balance struct {
					Confirmed   int64 `json:"confirmed"`
					Unconfirmed int64 `json:"unconfirmed"`
				} `json:"balance"`
			}
			u := fmt.Sprintf("%s/electrumx/balance/%s", base, url.PathEscape(cashAddr))
			if err := getJSON(ctx, httpClient, u, nil, nil, &resp); err != nil {
				return 0, err
			}
			if !resp.Success {
				return 0, errors.New("unsuccessful response")
			}
			return fromBaseInt(resp.Balance.Confirmed+resp.Balance.Unconfirmed, satoshiExp), nil
		},
	}
}

func bitcoinComSource(base string, httpClient *http.Client) bchSource {
	return bchSource{
		name: "bitcoin.com",
		fetch: func(ctx context.Context, _, legacy string) (float64, error) {
			var resp struct {
				BalanceSat            int64 `json:"balanceSat"`
				UnconfirmedBalanceSat int64 `json:"unconfirmedBalanceSat"`
			}
			u := fmt.Sprintf("%s/address/details/%s", base, url.PathEscape(legacy))
			if err := getJSON(ctx, httpClient, u, nil, nil, &resp); err != nil {
				return 0, err
			}
			return fromBaseInt(resp.BalanceSat+resp.UnconfirmedBalanceSat, satoshiExp), nil
		},
	}
}
