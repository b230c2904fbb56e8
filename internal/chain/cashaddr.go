package chain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"
)

const (
	cashAddrCharset       = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"
	cashAddrDefaultPrefix = "bitcoincash"
	cashAddrChecksumLen   = 8

	legacyP2PKHVersion byte = 0x00
	legacyP2SHVersion  byte = 0x05
)

var ErrInvalidCashAddr = errors.New("invalid cashaddr")

// IsCashAddr reports whether address looks like a CashAddr (prefixed or bare q/p form).
func IsCashAddr(address string) bool {
	a := strings.ToLower(strings.TrimSpace(address))
	if i := strings.IndexByte(a, ':'); i >= 0 {
		a = a[i+1:]
	}
	return len(a) >= 42 && (a[0] == 'q' || a[0] == 'p')
}

// ToLegacyAddress converts a CashAddr to the legacy Base58Check form several
// BCH explorers require. Legacy input is returned unchanged. The checksum is
// stripped, not verified; see VerifyCashAddrChecksum.
func ToLegacyAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if !IsCashAddr(address) {
		return address, nil
	}

	_, data, err := decodeCashAddr(address)
	if err != nil {
		return "", err
	}

	raw, err := convertBits(data[:len(data)-cashAddrChecksumLen], 5, 8, false)
	if err != nil {
		return "", err
	}
	if len(raw) != 21 {
		return "", fmt.Errorf("%w: unexpected payload length %d", ErrInvalidCashAddr, len(raw))
	}

	var version byte
	switch raw[0] >> 3 {
	case 0:
		version = legacyP2PKHVersion
	case 1:
		version = legacyP2SHVersion
	default:
		return "", fmt.Errorf("%w: unknown address type %d", ErrInvalidCashAddr, raw[0]>>3)
	}

	return base58.CheckEncode(raw[1:], version), nil
}

// VerifyCashAddrChecksum reports whether the BCH polymod checksum of address is valid.
func VerifyCashAddrChecksum(address string) bool {
	prefix, data, err := decodeCashAddr(address)
	if err != nil {
		return false
	}
	values := make([]byte, 0, len(prefix)+1+len(data))
	for i := 0; i < len(prefix); i++ {
		values = append(values, prefix[i]&0x1f)
	}
	values = append(values, 0)
	values = append(values, data...)
	return cashAddrPolymod(values) == 0
}

func decodeCashAddr(address string) (string, []byte, error) {
	a := strings.ToLower(strings.TrimSpace(address))
	prefix := cashAddrDefaultPrefix
	if i := strings.IndexByte(a, ':'); i >= 0 {
		prefix, a = a[:i], a[i+1:]
	}
	if len(a) <= cashAddrChecksumLen {
		return "", nil, fmt.Errorf("%w: too short", ErrInvalidCashAddr)
	}

	data := make([]byte, len(a))
	for i := 0; i < len(a); i++ {
		v := strings.IndexByte(cashAddrCharset, a[i])
		if v < 0 {
			return "", nil, fmt.Errorf("%w: bad character %q", ErrInvalidCashAddr, a[i])
		}
		data[i] = byte(v)
	}
	return prefix, data, nil
}

func cashAddrPolymod(values []byte) uint64 {
	generators := [5]uint64{0x98f2bc8e61, 0x79b76d99e2, 0xf33e5fb3c4, 0xae2eabe2a8, 0x1e4f43e470}
	c := uint64(1)
	for _, d := range values {
		c0 := byte(c >> 35)
		c = ((c & 0x07ffffffff) << 5) ^ uint64(d)
		for i, g := range generators {
			if (c0>>uint(i))&1 == 1 {
				c ^= g
			}
		}
	}
	return c ^ 1
}

// convertBits regroups data from fromBits-wide groups into toBits-wide groups.
func convertBits(data []byte, fromBits, toBits uint, pad bool) ([]byte, error) {
	var acc, bits uint
	maxv := uint(1)<<toBits - 1
	out := make([]byte, 0, len(data)*int(fromBits)/int(toBits)+1)
	for _, v := range data {
		acc = acc<<fromBits | uint(v)
		bits += fromBits
		for bits >= toBits {
			bits -= toBits
			out = append(out, byte(acc>>bits&maxv))
		}
	}
	if pad {
		if bits > 0 {
			out = append(out, byte(acc<<(toBits-bits)&maxv))
		}
	} else if bits >= fromBits || acc<<(toBits-bits)&maxv != 0 {
		return nil, fmt.Errorf("%w: non-zero padding", ErrInvalidCashAddr)
	}
	return out, nil
}
