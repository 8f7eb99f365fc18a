package rpc

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/casperliquid/liquidstake/internal/storage"
	"github.com/casperliquid/liquidstake/pkg/crypto"
	"github.com/casperliquid/liquidstake/pkg/types"
)

// Mutating endpoints carry a signature instead of a session: the caller
// signs BLAKE3(method|params|nonce) with the key behind their account.
// Nonces are per-account counters persisted next to the ledger, so a
// captured request cannot be replayed after the node restarts.

// Nonce storage keys: n/<addr(20)> -> 8 bytes, big-endian.
var prefixNonce = []byte("n/")

// Authenticator verifies signed mutating requests and tracks per-account
// nonces.
type Authenticator struct {
	db storage.DB
}

// NewAuthenticator creates an authenticator persisting nonces in db.
func NewAuthenticator(db storage.DB) *Authenticator {
	return &Authenticator{db: db}
}

// SigningPayload builds the canonical byte string covered by a request
// signature. Params are joined in the fixed order the handler defines;
// the separator cannot appear in addresses or decimal amounts, so the
// encoding is unambiguous.
func SigningPayload(method string, params []string, nonce uint64) []byte {
	var b strings.Builder
	b.WriteString(method)
	for _, p := range params {
		b.WriteByte('|')
		b.WriteString(p)
	}
	b.WriteByte('|')
	fmt.Fprintf(&b, "%d", nonce)
	return []byte(b.String())
}

// SignRequest signs the canonical payload for a mutating call. Used by
// clients; the server side verifies with Verify.
func SignRequest(signer crypto.Signer, method string, params []string, nonce uint64) (Auth, error) {
	digest := crypto.Hash(SigningPayload(method, params, nonce))
	sig, err := signer.Sign(digest[:])
	if err != nil {
		return Auth{}, fmt.Errorf("sign request: %w", err)
	}
	return Auth{
		PublicKey: hex.EncodeToString(signer.PublicKey()),
		Nonce:     nonce,
		Signature: hex.EncodeToString(sig),
	}, nil
}

// Verify checks the signature and nonce of a mutating request and
// returns the caller's account address. The nonce must equal the
// account's current counter; Advance bumps it only after the operation
// commits, so a failed call can be retried with the same nonce.
func (a *Authenticator) Verify(auth Auth, method string, params []string) (types.Address, *Error) {
	pubKey, err := hex.DecodeString(auth.PublicKey)
	if err != nil || len(pubKey) != 33 {
		return types.Address{}, &Error{Code: CodeUnauthorized, Message: "public_key must be 33-byte hex"}
	}
	sig, err := hex.DecodeString(auth.Signature)
	if err != nil || len(sig) != 64 {
		return types.Address{}, &Error{Code: CodeUnauthorized, Message: "signature must be 64-byte hex"}
	}

	caller := crypto.AddressFromPubKey(pubKey)

	expected, err := a.Nonce(caller)
	if err != nil {
		return types.Address{}, &Error{Code: CodeInternalError, Message: fmt.Sprintf("nonce lookup: %v", err)}
	}
	if auth.Nonce != expected {
		return types.Address{}, &Error{
			Code:    CodeUnauthorized,
			Message: fmt.Sprintf("nonce mismatch: got %d, expected %d", auth.Nonce, expected),
		}
	}

	digest := crypto.Hash(SigningPayload(method, params, auth.Nonce))
	if !crypto.VerifySignature(digest[:], sig, pubKey) {
		return types.Address{}, &Error{Code: CodeUnauthorized, Message: "signature verification failed"}
	}
	return caller, nil
}

// Nonce returns the account's current nonce counter (zero for accounts
// that never sent a mutating request).
func (a *Authenticator) Nonce(addr types.Address) (uint64, error) {
	key := nonceKey(addr)
	has, err := a.db.Has(key)
	if err != nil {
		return 0, err
	}
	if !has {
		return 0, nil
	}
	raw, err := a.db.Get(key)
	if err != nil {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("nonce for %s must be 8 bytes, got %d", addr, len(raw))
	}
	return binary.BigEndian.Uint64(raw), nil
}

// Advance increments the account's nonce counter after a committed
// mutation and returns the new value.
func (a *Authenticator) Advance(addr types.Address) (uint64, error) {
	current, err := a.Nonce(addr)
	if err != nil {
		return 0, err
	}
	next := current + 1
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], next)
	if err := a.db.Put(nonceKey(addr), buf[:]); err != nil {
		return 0, err
	}
	return next, nil
}

func nonceKey(addr types.Address) []byte {
	key := make([]byte, len(prefixNonce)+types.AddressSize)
	copy(key, prefixNonce)
	copy(key[len(prefixNonce):], addr[:])
	return key
}
