// Package chain implements the balance oracle: per-chain balance lookup
// behind a registry of providers, address normalization and the shared
// payment tolerance policy.
package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Chain identifiers as stored on payments and escrows.
const (
	BTC     = "BTC"
	BCH     = "BCH"
	ETH     = "ETH"
	POL     = "POL"
	BNB     = "BNB"
	SOL     = "SOL"
	XRP     = "XRP"
	ADA     = "ADA"
	TON     = "TON"
	USDCETH = "USDC_ETH"
	USDCPOL = "USDC_POL"
	USDCSOL = "USDC_SOL"
)

var (
	// ErrUnsupportedChain is returned by Registry.Lookup for chains with no provider.
	ErrUnsupportedChain = errors.New("unsupported chain")
	// ErrAccountNotFound means the chain reports the address has never been funded.
	ErrAccountNotFound = errors.New("account not found")
)

// BalanceProvider returns the balance of address in whole coins.
type BalanceProvider interface {
	Balance(ctx context.Context, address string) (float64, error)
}

// Family groups providers by how balances are modelled on chain.
type Family string

const (
	FamilyUTXO    Family = "utxo"
	FamilyEVM     Family = "evm"
	FamilyAccount Family = "account"
)

type registration struct {
	family   Family
	provider BalanceProvider
}

// Registry maps chain identifiers to balance providers.
type Registry struct {
	providers map[string]registration
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]registration)}
}

// Register binds chain to p. Later registrations replace earlier ones.
func (r *Registry) Register(chain string, family Family, p BalanceProvider) {
	r.providers[normalizeChain(chain)] = registration{family: family, provider: p}
}

// Lookup returns the provider for chain or ErrUnsupportedChain.
func (r *Registry) Lookup(chain string) (BalanceProvider, Family, error) {
	reg, ok := r.providers[normalizeChain(chain)]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedChain, chain)
	}
	return reg.provider, reg.family, nil
}

// Chains lists registered chain identifiers.
func (r *Registry) Chains() []string {
	out := make([]string, 0, len(r.providers))
	for ch := range r.providers {
		out = append(out, ch)
	}
	return out
}

func normalizeChain(chain string) string {
	return strings.ToUpper(strings.TrimSpace(chain))
}
