package types

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestHashHexRoundTrip(t *testing.T) {
	var h Hash
	for i := range h {
		h[i] = byte(i)
	}

	s := h.String()
	if len(s) != HashSize*2 {
		t.Fatalf("String() length = %d, want %d", len(s), HashSize*2)
	}

	parsed, err := HexToHash(s)
	if err != nil {
		t.Fatalf("HexToHash() error: %v", err)
	}
	if parsed != h {
		t.Errorf("round trip mismatch: got %s, want %s", parsed, h)
	}
}

func TestHexToHashRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"short", "abcd"},
		{"not hex", strings.Repeat("zz", HashSize)},
		{"too long", strings.Repeat("ab", HashSize+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := HexToHash(tt.in); err == nil {
				t.Errorf("HexToHash(%q) should fail", tt.in)
			}
		})
	}
}

func TestHashIsZero(t *testing.T) {
	var zero Hash
	if !zero.IsZero() {
		t.Error("zero hash should report IsZero")
	}
	zero[0] = 1
	if zero.IsZero() {
		t.Error("non-zero hash should not report IsZero")
	}
}

func TestAddressBech32RoundTrip(t *testing.T) {
	var a Address
	for i := range a {
		a[i] = byte(0xA0 + i)
	}

	s := a.String()
	if !strings.HasPrefix(s, MainnetHRP+"1") {
		t.Fatalf("String() = %q, want %q prefix", s, MainnetHRP+"1")
	}

	parsed, err := ParseAddress(s)
	if err != nil {
		t.Fatalf("ParseAddress() error: %v", err)
	}
	if parsed != a {
		t.Errorf("round trip mismatch: got %s, want %s", parsed, a)
	}
}

func TestParseAddressRawHex(t *testing.T) {
	var a Address
	a[19] = 0x7F

	parsed, err := ParseAddress(a.Hex())
	if err != nil {
		t.Fatalf("ParseAddress(hex) error: %v", err)
	}
	if parsed != a {
		t.Errorf("ParseAddress(hex) = %s, want %s", parsed, a)
	}
}

func TestParseAddressRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"garbage", "not-an-address"},
		{"short hex", "abcd"},
		{"bad checksum", "stc1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqq"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseAddress(tt.in); err == nil {
				t.Errorf("ParseAddress(%q) should fail", tt.in)
			}
		})
	}
}

func TestAddressJSON(t *testing.T) {
	var a Address
	a[0] = 0x42

	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	var decoded Address
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if decoded != a {
		t.Errorf("JSON round trip mismatch: got %s, want %s", decoded, a)
	}
}

func TestTestnetHRP(t *testing.T) {
	SetAddressHRP(TestnetHRP)
	defer SetAddressHRP(MainnetHRP)

	var a Address
	a[5] = 9
	s := a.String()
	if !strings.HasPrefix(s, TestnetHRP+"1") {
		t.Errorf("String() = %q, want %q prefix", s, TestnetHRP+"1")
	}
	parsed, err := ParseAddress(s)
	if err != nil {
		t.Fatalf("ParseAddress() error: %v", err)
	}
	if parsed != a {
		t.Errorf("round trip mismatch under testnet HRP")
	}
}

func TestBech32RejectsMixedCase(t *testing.T) {
	var a Address
	s := a.String()
	mixed := strings.ToUpper(s[:4]) + s[4:]
	if _, _, err := Bech32Decode(mixed); err == nil {
		t.Error("Bech32Decode should reject mixed case")
	}
}
