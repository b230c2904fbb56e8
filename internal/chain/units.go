package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Base-unit exponents per coin.
const (
	satoshiExp  = 8
	weiExp      = 18
	lamportExp  = 9
	dropExp     = 6
	lovelaceExp = 6
	nanoTONExp  = 9
)

func fromBaseUnits(v *big.Int, exp int32) float64 {
	return decimal.NewFromBigInt(v, -exp).InexactFloat64()
}

func fromBaseInt(v int64, exp int32) float64 {
	return decimal.New(v, -exp).InexactFloat64()
}

// parseBaseUnits parses a decimal integer string (drops, lovelace).
func parseBaseUnits(s string, exp int32) (float64, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return 0, fmt.Errorf("invalid base unit amount %q", s)
	}
	return fromBaseUnits(v, exp), nil
}

// parseHexQuantity parses a 0x-prefixed JSON-RPC quantity.
func parseHexQuantity(s string) (*big.Int, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex quantity %q", s)
	}
	return v, nil
}
