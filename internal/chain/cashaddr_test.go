package chain

import (
	"errors"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcutil/base58"
)

func TestToLegacyAddress(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"p2pkh prefixed", "bitcoincash:qpm2qsznhks23z7629mms6s4cwef74vcwvy22gdx6a", "1BpEi6DfDAUFd7GtittLSdBeYJvcoaVggu"},
		{"p2pkh bare", "qpm2qsznhks23z7629mms6s4cwef74vcwvy22gdx6a", "1BpEi6DfDAUFd7GtittLSdBeYJvcoaVggu"},
		{"p2sh", "bitcoincash:ppm2qsznhks23z7629mms6s4cwef74vcwvn0h829pq", "3CWFddi6m4ndiGyKqzYvsFYagqDLPVMTzC"},
		{"uppercase", "BITCOINCASH:QPM2QSZNHKS23Z7629MMS6S4CWEF74VCWVY22GDX6A", "1BpEi6DfDAUFd7GtittLSdBeYJvcoaVggu"},
		{"legacy passes through", "1BpEi6DfDAUFd7GtittLSdBeYJvcoaVggu", "1BpEi6DfDAUFd7GtittLSdBeYJvcoaVggu"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToLegacyAddress(tt.input)
			if err != nil {
				t.Fatalf("ToLegacyAddress(%q) error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("ToLegacyAddress(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestToLegacyAddressProducesBase58Check(t *testing.T) {
	got, err := ToLegacyAddress("bitcoincash:qpat0gmrdrlhrq2r9f467f42u55kazdknyml9aaj76")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(got, "1") && !strings.HasPrefix(got, "3") {
		t.Fatalf("legacy address %q should start with 1 or 3", got)
	}

	payload, version, err := base58.CheckDecode(got)
	if err != nil {
		t.Fatalf("CheckDecode(%q): %v", got, err)
	}
	if version != legacyP2PKHVersion {
		t.Errorf("version = %#x, want %#x", version, legacyP2PKHVersion)
	}
	if len(payload) != 20 {
		t.Errorf("hash160 length = %d, want 20", len(payload))
	}
	if got != "1CBsRp5FsdFaJEns7uQJycBbX16UHCNKTX" {
		t.Errorf("got %q", got)
	}
}

func TestToLegacyAddressInvalid(t *testing.T) {
	inputs := []string{
		"bitcoincash:qpm2qsznhks23z7629mms6s4cwef74vcwvy22gdx6c", // checksum corrupted
		"bitcoincash:qpm2qsznhks23z7629mms6s4cwef74vcwvy22gdxio", // 'i' and 'o' are outside the charset
	}
	if _, err := ToLegacyAddress(inputs[1]); !errors.Is(err, ErrInvalidCashAddr) {
		t.Errorf("expected ErrInvalidCashAddr for bad charset, got %v", err)
	}
	// The checksum is stripped, not verified, so a corrupted checksum still converts.
	if _, err := ToLegacyAddress(inputs[0]); err != nil {
		t.Errorf("unexpected error for corrupted checksum: %v", err)
	}
}

func TestVerifyCashAddrChecksum(t *testing.T) {
	tests := []struct {
		address  string
		expected bool
	}{
		{"bitcoincash:qpm2qsznhks23z7629mms6s4cwef74vcwvy22gdx6a", true},
		{"qpm2qsznhks23z7629mms6s4cwef74vcwvy22gdx6a", true},
		{"bitcoincash:ppm2qsznhks23z7629mms6s4cwef74vcwvn0h829pq", true},
		{"bitcoincash:qpat0gmrdrlhrq2r9f467f42u55kazdknyjl9aaj76", true},
		{"bitcoincash:qpat0gmrdrlhrq2r9f467f42u55kazdknyml9aaj76", false},
		{"bchtest:qpm2qsznhks23z7629mms6s4cwef74vcwvy22gdx6a", false},
	}
	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			if got := VerifyCashAddrChecksum(tt.address); got != tt.expected {
				t.Errorf("VerifyCashAddrChecksum(%q) = %v, want %v", tt.address, got, tt.expected)
			}
		})
	}
}

func TestIsCashAddr(t *testing.T) {
	if !IsCashAddr("bitcoincash:qpm2qsznhks23z7629mms6s4cwef74vcwvy22gdx6a") {
		t.Error("prefixed cashaddr not detected")
	}
	if !IsCashAddr("ppm2qsznhks23z7629mms6s4cwef74vcwvn0h829pq") {
		t.Error("bare p2sh cashaddr not detected")
	}
	if IsCashAddr("1BpEi6DfDAUFd7GtittLSdBeYJvcoaVggu") {
		t.Error("legacy address detected as cashaddr")
	}
}
