package crypto

import (
	"bytes"
	"testing"

	"github.com/casperliquid/liquidstake/pkg/types"
)

func TestHashDeterministic(t *testing.T) {
	a := Hash([]byte("hello"))
	b := Hash([]byte("hello"))
	if a != b {
		t.Error("same input should produce same hash")
	}
	c := Hash([]byte("hello!"))
	if a == c {
		t.Error("different input should produce different hash")
	}
}

func TestAddressFromPubKey(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}

	addr := AddressFromPubKey(key.PublicKey())
	if addr.IsZero() {
		t.Error("derived address should not be zero")
	}

	// Deriving again from the same key must give the same address.
	again := AddressFromPubKey(key.PublicKey())
	if addr != again {
		t.Error("address derivation should be deterministic")
	}
}

func TestSignAndVerify(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}

	msg := Hash([]byte("stake 100 to alice"))
	sig, err := key.Sign(msg[:])
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}

	if !VerifySignature(msg[:], sig, key.PublicKey()) {
		t.Error("valid signature should verify")
	}

	// Tampered hash must fail.
	tampered := Hash([]byte("stake 101 to alice"))
	if VerifySignature(tampered[:], sig, key.PublicKey()) {
		t.Error("signature over different hash should not verify")
	}

	// Wrong key must fail.
	other, _ := GenerateKey()
	if VerifySignature(msg[:], sig, other.PublicKey()) {
		t.Error("signature should not verify under a different key")
	}
}

func TestSignRejectsBadHashLength(t *testing.T) {
	key, _ := GenerateKey()
	if _, err := key.Sign([]byte("short")); err == nil {
		t.Error("Sign() should reject non-32-byte input")
	}
}

func TestPrivateKeyFromBytesRoundTrip(t *testing.T) {
	key, _ := GenerateKey()
	restored, err := PrivateKeyFromBytes(key.Serialize())
	if err != nil {
		t.Fatalf("PrivateKeyFromBytes() error: %v", err)
	}
	if !bytes.Equal(restored.PublicKey(), key.PublicKey()) {
		t.Error("restored key should have the same public key")
	}
}

func TestHashConcatOrderMatters(t *testing.T) {
	a := Hash([]byte("a"))
	b := Hash([]byte("b"))
	if HashConcat(a, b) == HashConcat(b, a) {
		t.Error("HashConcat should be order-sensitive")
	}
	var got types.Hash = HashConcat(a, b)
	if got.IsZero() {
		t.Error("HashConcat result should not be zero")
	}
}
