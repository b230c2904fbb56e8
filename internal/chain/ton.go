package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/liteclient"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton"
	"go.uber.org/zap"
)

// TONAccountAPI is the subset of ton.APIClientWrapped the provider needs.
type TONAccountAPI interface {
	CurrentMasterchainInfo(ctx context.Context) (*ton.BlockIDExt, error)
	GetAccount(ctx context.Context, block *ton.BlockIDExt, addr *address.Address) (*tlb.Account, error)
}

// TONProvider reads account balances from lite servers.
type TONProvider struct {
	api TONAccountAPI
}

func NewTONProvider(api TONAccountAPI) *TONProvider {
	return &TONProvider{api: api}
}

func (p *TONProvider) Balance(ctx context.Context, addr string) (float64, error) {
	a, err := address.ParseAddr(addr)
	if err != nil {
		return 0, fmt.Errorf("parse ton address: %w", err)
	}

	block, err := p.api.CurrentMasterchainInfo(ctx)
	if err != nil {
		return 0, fmt.Errorf("get master block: %w", err)
	}

	account, err := p.api.GetAccount(ctx, block, a)
	if err != nil {
		return 0, fmt.Errorf("get account: %w", err)
	}
	if account == nil || !account.IsActive || account.State == nil {
		return 0, ErrAccountNotFound
	}
	return fromBaseUnits(account.State.Balance.Nano(), nanoTONExp), nil
}

// ConnectTON opens a lite server pool. With host and key set it connects to
// that server; otherwise it discovers servers from the global network config.
func ConnectTON(ctx context.Context, network, host string, port int, key string, log *zap.Logger) (ton.APIClientWrapped, error) {
	client := liteclient.NewConnectionPool()

	if host != "" && key != "" {
		addr := fmt.Sprintf("%s:%d", host, port)
		log.Info("connecting to lite server", zap.String("addr", addr))
		if err := client.AddConnection(ctx, addr, key); err != nil {
			return nil, fmt.Errorf("connect to lite server %s: %w", addr, err)
		}
	} else {
		configURL := "https://ton.org/testnet-global.config.json"
		if strings.ToLower(network) == "mainnet" {
			configURL = "https://ton.org/global.config.json"
		}
		log.Info("connecting via global config", zap.String("url", configURL), zap.String("network", network))
		if err := client.AddConnectionsFromConfigUrl(ctx, configURL); err != nil {
			return nil, fmt.Errorf("connect via config %s: %w", configURL, err)
		}
	}

	policy := ton.ProofCheckPolicyFast
	if strings.ToLower(network) == "mainnet" {
		policy = ton.ProofCheckPolicySecure
	}
	return ton.NewAPIClient(client, policy).WithRetry(), nil
}
