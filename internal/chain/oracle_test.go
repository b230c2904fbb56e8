package chain

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

type stubProvider struct {
	balance     float64
	err         error
	calls       int
	sawDeadline bool
}

func (s *stubProvider) Balance(ctx context.Context, address string) (float64, error) {
	s.calls++
	_, s.sawDeadline = ctx.Deadline()
	return s.balance, s.err
}

func TestIsFunded(t *testing.T) {
	tests := []struct {
		name     string
		balance  float64
		expected float64
		want     bool
	}{
		{"exact", 1.0, 1.0, true},
		{"within tolerance", 0.995, 1.0, true},
		{"at tolerance edge", 0.99, 1.0, true},
		{"below tolerance", 0.98, 1.0, false},
		{"overpaid", 1.5, 1.0, true},
		{"zero balance", 0, 1.0, false},
		{"zero expected never funds", 5, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFunded(tt.balance, tt.expected, DefaultTolerance); got != tt.want {
				t.Errorf("IsFunded(%v, %v) = %v, want %v", tt.balance, tt.expected, got, tt.want)
			}
		})
	}
}

func TestOracleCheckBalance(t *testing.T) {
	reg := NewRegistry()
	ok := &stubProvider{balance: 1.25}
	down := &stubProvider{err: errors.New("connection refused")}
	missing := &stubProvider{err: ErrAccountNotFound}
	reg.Register("eth", FamilyEVM, ok)
	reg.Register(XRP, FamilyAccount, missing)
	reg.Register(SOL, FamilyAccount, down)

	o := NewOracle(reg, time.Second, zaptest.NewLogger(t))
	ctx := context.Background()

	if got := o.CheckBalance(ctx, "0xabc", " ETH "); got != 1.25 {
		t.Errorf("ETH balance = %v, want 1.25", got)
	}
	if !ok.sawDeadline {
		t.Error("provider call should carry a deadline")
	}
	if got := o.CheckBalance(ctx, "rabc", XRP); got != 0 {
		t.Errorf("missing account balance = %v, want 0", got)
	}
	if got := o.CheckBalance(ctx, "sol", SOL); got != 0 {
		t.Errorf("failing provider balance = %v, want 0", got)
	}
	if got := o.CheckBalance(ctx, "doge", "DOGE"); got != 0 {
		t.Errorf("unsupported chain balance = %v, want 0", got)
	}
}

func TestRegistryLookupUnsupported(t *testing.T) {
	_, _, err := NewRegistry().Lookup("DOGE")
	if !errors.Is(err, ErrUnsupportedChain) {
		t.Fatalf("expected ErrUnsupportedChain, got %v", err)
	}
}
