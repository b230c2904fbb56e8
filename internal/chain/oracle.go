package chain

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// DefaultTolerance is the underpayment allowance for network-fee variance.
const DefaultTolerance = 0.01

// IsFunded reports whether balance covers expected within tolerance.
func IsFunded(balance, expected, tolerance float64) bool {
	if expected <= 0 {
		return false
	}
	return balance >= expected*(1-tolerance)
}

// Oracle wraps a Registry with the never-fail contract used by the
// reconciler: every failure is logged and reported as a zero balance.
type Oracle struct {
	registry *Registry
	timeout  time.Duration
	log      *zap.Logger
}

func NewOracle(registry *Registry, timeout time.Duration, log *zap.Logger) *Oracle {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Oracle{registry: registry, timeout: timeout, log: log}
}

// CheckBalance returns the on-chain balance of address, or 0 on any failure.
func (o *Oracle) CheckBalance(ctx context.Context, address, chain string) float64 {
	provider, family, err := o.registry.Lookup(chain)
	if err != nil {
		o.log.Warn("balance check skipped", zap.String("chain", chain), zap.Error(err))
		return 0
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	balance, err := provider.Balance(ctx, address)
	switch {
	case err == nil:
		return balance
	case errors.Is(err, ErrAccountNotFound):
		o.log.Debug("account not found on chain, balance is zero",
			zap.String("chain", chain),
			zap.String("address", address),
		)
	default:
		o.log.Error("balance check failed",
			zap.String("chain", chain),
			zap.String("family", string(family)),
			zap.String("address", address),
			zap.Error(err),
		)
	}
	return 0
}
