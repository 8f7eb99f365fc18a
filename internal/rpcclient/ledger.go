package rpcclient

import (
	"fmt"

	"github.com/casperliquid/liquidstake/internal/rpc"
	"github.com/casperliquid/liquidstake/pkg/crypto"
	"github.com/casperliquid/liquidstake/pkg/types"
	"github.com/holiman/uint256"
)

// Typed wrappers over the ledger and events endpoints. Mutating calls
// fetch the caller's current nonce, canonicalize the parameters, and
// sign exactly what the server will verify.

// GetInfo returns the token metadata and supply counters.
func (c *Client) GetInfo() (*rpc.InfoResult, error) {
	var out rpc.InfoResult
	if err := c.Call("ledger_getInfo", struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// BalanceOf returns the balance of account as a decimal string.
func (c *Client) BalanceOf(account string) (string, error) {
	addr, err := types.ParseAddress(account)
	if err != nil {
		return "", fmt.Errorf("invalid account: %w", err)
	}
	var out rpc.AmountResult
	if err := c.Call("ledger_balanceOf", rpc.BalanceParam{Account: addr.String()}, &out); err != nil {
		return "", err
	}
	return out.Amount, nil
}

// Allowance returns the remaining allowance owner granted spender.
func (c *Client) Allowance(owner, spender string) (string, error) {
	ownerAddr, err := types.ParseAddress(owner)
	if err != nil {
		return "", fmt.Errorf("invalid owner: %w", err)
	}
	spenderAddr, err := types.ParseAddress(spender)
	if err != nil {
		return "", fmt.Errorf("invalid spender: %w", err)
	}
	var out rpc.AmountResult
	err = c.Call("ledger_allowance", rpc.AllowanceParam{
		Owner:   ownerAddr.String(),
		Spender: spenderAddr.String(),
	}, &out)
	if err != nil {
		return "", err
	}
	return out.Amount, nil
}

// TotalSupply returns the total supply as a decimal string.
func (c *Client) TotalSupply() (string, error) {
	var out rpc.AmountResult
	if err := c.Call("ledger_totalSupply", struct{}{}, &out); err != nil {
		return "", err
	}
	return out.Amount, nil
}

// Commitment returns the ledger state commitment as hex.
func (c *Client) Commitment() (string, error) {
	var out rpc.CommitmentResult
	if err := c.Call("ledger_getCommitment", struct{}{}, &out); err != nil {
		return "", err
	}
	return out.Commitment, nil
}

// Nonce returns the account's current request nonce.
func (c *Client) Nonce(account types.Address) (uint64, error) {
	var out rpc.NonceResult
	if err := c.Call("ledger_getNonce", rpc.NonceParam{Account: account.String()}, &out); err != nil {
		return 0, err
	}
	return out.Nonce, nil
}

// Events lists journal records. With account set, only records touching
// that account are returned.
func (c *Client) Events(account string, from uint64, limit int) (*rpc.EventsResult, error) {
	params := rpc.EventsParam{From: from, Limit: limit}
	if account != "" {
		addr, err := types.ParseAddress(account)
		if err != nil {
			return nil, fmt.Errorf("invalid account: %w", err)
		}
		params.Account = addr.String()
	}
	var out rpc.EventsResult
	if err := c.Call("events_list", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stake submits a signed ledger_stake for the signer's account.
func (c *Client) Stake(signer crypto.Signer, amount string) (*rpc.MutationResult, error) {
	amt, err := canonicalAmount(amount)
	if err != nil {
		return nil, err
	}
	return c.mutate(signer, "ledger_stake", []string{amt},
		rpc.StakeParam{Amount: amt})
}

// Unstake submits a signed ledger_unstake for the signer's account.
func (c *Client) Unstake(signer crypto.Signer, amount string) (*rpc.MutationResult, error) {
	amt, err := canonicalAmount(amount)
	if err != nil {
		return nil, err
	}
	return c.mutate(signer, "ledger_unstake", []string{amt},
		rpc.StakeParam{Amount: amt})
}

// Transfer submits a signed ledger_transfer from the signer's account.
func (c *Client) Transfer(signer crypto.Signer, recipient, amount string) (*rpc.MutationResult, error) {
	to, err := types.ParseAddress(recipient)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	amt, err := canonicalAmount(amount)
	if err != nil {
		return nil, err
	}
	return c.mutate(signer, "ledger_transfer", []string{to.String(), amt},
		rpc.TransferParam{Recipient: to.String(), Amount: amt})
}

// Approve submits a signed ledger_approve granting spender an allowance
// on the signer's account.
func (c *Client) Approve(signer crypto.Signer, spender, amount string) (*rpc.MutationResult, error) {
	sp, err := types.ParseAddress(spender)
	if err != nil {
		return nil, fmt.Errorf("invalid spender: %w", err)
	}
	amt, err := canonicalAmount(amount)
	if err != nil {
		return nil, err
	}
	return c.mutate(signer, "ledger_approve", []string{sp.String(), amt},
		rpc.ApproveParam{Spender: sp.String(), Amount: amt})
}

// TransferFrom submits a signed ledger_transferFrom spending the
// signer's allowance on owner's account.
func (c *Client) TransferFrom(signer crypto.Signer, owner, recipient, amount string) (*rpc.MutationResult, error) {
	ownerAddr, err := types.ParseAddress(owner)
	if err != nil {
		return nil, fmt.Errorf("invalid owner: %w", err)
	}
	to, err := types.ParseAddress(recipient)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	amt, err := canonicalAmount(amount)
	if err != nil {
		return nil, err
	}
	return c.mutate(signer, "ledger_transferFrom", []string{ownerAddr.String(), to.String(), amt},
		rpc.TransferFromParam{Owner: ownerAddr.String(), Recipient: to.String(), Amount: amt})
}

// mutate signs and submits one mutating call. The params value must
// carry an Auth field named "auth"; the four param structs all do.
func (c *Client) mutate(signer crypto.Signer, method string, signedParams []string, params interface{}) (*rpc.MutationResult, error) {
	caller := crypto.AddressFromPubKey(signer.PublicKey())
	nonce, err := c.Nonce(caller)
	if err != nil {
		return nil, fmt.Errorf("fetch nonce: %w", err)
	}

	auth, err := rpc.SignRequest(signer, method, signedParams, nonce)
	if err != nil {
		return nil, err
	}

	withAuth, err := injectAuth(params, auth)
	if err != nil {
		return nil, err
	}

	var out rpc.MutationResult
	if err := c.Call(method, withAuth, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// injectAuth fills the Auth field of a param struct.
func injectAuth(params interface{}, auth rpc.Auth) (interface{}, error) {
	switch p := params.(type) {
	case rpc.StakeParam:
		p.Auth = auth
		return p, nil
	case rpc.TransferParam:
		p.Auth = auth
		return p, nil
	case rpc.ApproveParam:
		p.Auth = auth
		return p, nil
	case rpc.TransferFromParam:
		p.Auth = auth
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported param type %T", params)
	}
}

// canonicalAmount normalizes a decimal amount to the exact string the
// server signs over (no leading zeros, no whitespace).
func canonicalAmount(s string) (string, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return "", fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return v.Dec(), nil
}
