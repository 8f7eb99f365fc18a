package rpc

import (
	"fmt"
	"strings"

	"github.com/casperliquid/liquidstake/internal/events"
	"github.com/casperliquid/liquidstake/pkg/types"
	"github.com/holiman/uint256"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeNotFound       = -32000
	CodeLedgerRejected = -32001 // Operation rejected by a ledger precondition.
	CodeUnauthorized   = -32002 // Missing, stale, or invalid request signature.
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      interface{} `json:"id"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ── Param types ─────────────────────────────────────────────────────────

// Auth carries the caller credentials on mutating endpoints. The caller
// account is derived from the public key; the signature covers the
// method, the canonical parameter string, and the nonce.
type Auth struct {
	PublicKey string `json:"public_key"` // 33-byte compressed secp256k1, hex
	Nonce     uint64 `json:"nonce"`
	Signature string `json:"signature"` // 64-byte Schnorr, hex
}

// StakeParam is used by ledger_stake and ledger_unstake. The account is
// always the authenticated caller.
type StakeParam struct {
	Amount string `json:"amount"` // Decimal string.
	Auth   Auth   `json:"auth"`
}

// TransferParam is used by ledger_transfer. The sender is the caller.
type TransferParam struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Auth      Auth   `json:"auth"`
}

// ApproveParam is used by ledger_approve. The owner is the caller.
type ApproveParam struct {
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
	Auth    Auth   `json:"auth"`
}

// TransferFromParam is used by ledger_transferFrom. The spender is the
// caller; owner granted the allowance.
type TransferFromParam struct {
	Owner     string `json:"owner"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Auth      Auth   `json:"auth"`
}

// BalanceParam is used by ledger_balanceOf.
type BalanceParam struct {
	Account string `json:"account"`
}

// AllowanceParam is used by ledger_allowance.
type AllowanceParam struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
}

// EventsParam is used by events_list. With Account set, only records
// touching that account are returned.
type EventsParam struct {
	Account string `json:"account,omitempty"`
	From    uint64 `json:"from,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

// NonceParam is used by ledger_getNonce.
type NonceParam struct {
	Account string `json:"account"`
}

// ── Result types ────────────────────────────────────────────────────────

// InfoResult is returned by ledger_getInfo.
type InfoResult struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Decimals    uint8  `json:"decimals"`
	TotalSupply string `json:"total_supply"`
	Custody     string `json:"custody"`
	Accounts    int    `json:"accounts"`
}

// AmountResult is returned by balance, allowance and supply queries.
type AmountResult struct {
	Amount string `json:"amount"`
}

// CommitmentResult is returned by ledger_getCommitment.
type CommitmentResult struct {
	Commitment string `json:"commitment"`
}

// MutationResult is returned by all mutating endpoints.
type MutationResult struct {
	Account   string `json:"account"` // Authenticated caller.
	NextNonce uint64 `json:"next_nonce"`
}

// NonceResult is returned by ledger_getNonce.
type NonceResult struct {
	Nonce uint64 `json:"nonce"`
}

// EventsResult is returned by events_list.
type EventsResult struct {
	Records []events.Record `json:"records"`
	Total   uint64          `json:"total"` // Journal length, for paging.
}

// ── Param decoding helpers ──────────────────────────────────────────────

// maxAmountDigits bounds decimal amount strings. 2^256-1 has 78 digits;
// anything longer cannot fit and is rejected before parsing.
const maxAmountDigits = 78

// parseAmount decodes a decimal amount string.
func parseAmount(field, s string) (*uint256.Int, *Error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("%s is required", field)}
	}
	if len(s) > maxAmountDigits {
		return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("%s exceeds 256 bits", field)}
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("%s must be a decimal integer: %v", field, err)}
	}
	return v, nil
}

// parseAddressParam decodes a bech32 or raw-hex account address.
func parseAddressParam(field, s string) (types.Address, *Error) {
	if s == "" {
		return types.Address{}, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("%s is required", field)}
	}
	addr, err := types.ParseAddress(s)
	if err != nil {
		return types.Address{}, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid %s: %v", field, err)}
	}
	return addr, nil
}
