package rpc

import (
	"errors"
	"fmt"

	"github.com/casperliquid/liquidstake/internal/ledger"
	"github.com/casperliquid/liquidstake/pkg/types"
)

// ── Mutating endpoints ──────────────────────────────────────────────────

func (s *Server) handleStake(req *Request) (interface{}, *Error) {
	var params StakeParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	amount, rpcErr := parseAmount("amount", params.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	caller, rpcErr := s.auth.Verify(params.Auth, req.Method, []string{amount.Dec()})
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.ledger.Stake(caller, amount); err != nil {
		return nil, ledgerError(err)
	}
	return s.mutationResult(caller)
}

func (s *Server) handleUnstake(req *Request) (interface{}, *Error) {
	var params StakeParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	amount, rpcErr := parseAmount("amount", params.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	caller, rpcErr := s.auth.Verify(params.Auth, req.Method, []string{amount.Dec()})
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.ledger.Unstake(caller, amount); err != nil {
		return nil, ledgerError(err)
	}
	return s.mutationResult(caller)
}

func (s *Server) handleTransfer(req *Request) (interface{}, *Error) {
	var params TransferParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	recipient, rpcErr := parseAddressParam("recipient", params.Recipient)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parseAmount("amount", params.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	caller, rpcErr := s.auth.Verify(params.Auth, req.Method, []string{recipient.String(), amount.Dec()})
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.ledger.Transfer(caller, recipient, amount); err != nil {
		return nil, ledgerError(err)
	}
	return s.mutationResult(caller)
}

func (s *Server) handleApprove(req *Request) (interface{}, *Error) {
	var params ApproveParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	spender, rpcErr := parseAddressParam("spender", params.Spender)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parseAmount("amount", params.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	caller, rpcErr := s.auth.Verify(params.Auth, req.Method, []string{spender.String(), amount.Dec()})
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.ledger.Approve(caller, spender, amount); err != nil {
		return nil, ledgerError(err)
	}
	return s.mutationResult(caller)
}

func (s *Server) handleTransferFrom(req *Request) (interface{}, *Error) {
	var params TransferFromParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	owner, rpcErr := parseAddressParam("owner", params.Owner)
	if rpcErr != nil {
		return nil, rpcErr
	}
	recipient, rpcErr := parseAddressParam("recipient", params.Recipient)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parseAmount("amount", params.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	caller, rpcErr := s.auth.Verify(params.Auth, req.Method,
		[]string{owner.String(), recipient.String(), amount.Dec()})
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.ledger.TransferFrom(caller, owner, recipient, amount); err != nil {
		return nil, ledgerError(err)
	}
	return s.mutationResult(caller)
}

// mutationResult advances the caller's nonce and builds the response.
// Called with writeMu held, after the ledger operation committed.
func (s *Server) mutationResult(caller types.Address) (interface{}, *Error) {
	next, err := s.auth.Advance(caller)
	if err != nil {
		// The operation itself committed; only the counter write failed.
		s.logger.Error().Err(err).Str("account", caller.String()).Msg("nonce advance failed")
		return nil, &Error{Code: CodeInternalError, Message: "nonce update failed"}
	}
	return &MutationResult{
		Account:   caller.String(),
		NextNonce: next,
	}, nil
}

// ledgerError maps a ledger rejection to a JSON-RPC error.
func ledgerError(err error) *Error {
	switch {
	case errors.Is(err, ledger.ErrZeroAmount),
		errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrInsufficientAllowance),
		errors.Is(err, ledger.ErrOverflow),
		errors.Is(err, ledger.ErrUnderflow),
		errors.Is(err, ledger.ErrInvalidAccount):
		return &Error{Code: CodeLedgerRejected, Message: err.Error()}
	default:
		return &Error{Code: CodeInternalError, Message: fmt.Sprintf("ledger: %v", err)}
	}
}

// ── Read endpoints ──────────────────────────────────────────────────────

func (s *Server) handleBalanceOf(req *Request) (interface{}, *Error) {
	var params BalanceParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	account, rpcErr := parseAddressParam("account", params.Account)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return &AmountResult{Amount: s.ledger.BalanceOf(account).Dec()}, nil
}

func (s *Server) handleAllowance(req *Request) (interface{}, *Error) {
	var params AllowanceParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	owner, rpcErr := parseAddressParam("owner", params.Owner)
	if rpcErr != nil {
		return nil, rpcErr
	}
	spender, rpcErr := parseAddressParam("spender", params.Spender)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return &AmountResult{Amount: s.ledger.Allowance(owner, spender).Dec()}, nil
}

func (s *Server) handleTotalSupply(req *Request) (interface{}, *Error) {
	return &AmountResult{Amount: s.ledger.TotalSupply().Dec()}, nil
}

func (s *Server) handleGetInfo(req *Request) (interface{}, *Error) {
	return &InfoResult{
		Name:        s.ledger.Name(),
		Symbol:      s.ledger.Symbol(),
		Decimals:    s.ledger.Decimals(),
		TotalSupply: s.ledger.TotalSupply().Dec(),
		Custody:     s.ledger.CustodyBalance().Dec(),
		Accounts:    s.ledger.AccountCount(),
	}, nil
}

func (s *Server) handleGetCommitment(req *Request) (interface{}, *Error) {
	return &CommitmentResult{Commitment: s.ledger.Commitment().String()}, nil
}

func (s *Server) handleGetNonce(req *Request) (interface{}, *Error) {
	var params NonceParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	account, rpcErr := parseAddressParam("account", params.Account)
	if rpcErr != nil {
		return nil, rpcErr
	}
	nonce, err := s.auth.Nonce(account)
	if err != nil {
		return nil, &Error{Code: CodeInternalError, Message: fmt.Sprintf("nonce lookup: %v", err)}
	}
	return &NonceResult{Nonce: nonce}, nil
}

// ── Event endpoints ─────────────────────────────────────────────────────

func (s *Server) handleEventsList(req *Request) (interface{}, *Error) {
	if s.journal == nil {
		return nil, &Error{Code: CodeNotFound, Message: "event journal not enabled"}
	}

	params := EventsParam{Limit: 100}
	if req.Params != nil {
		if err := parseParams(req, &params); err != nil {
			return nil, err
		}
	}
	if params.Limit <= 0 || params.Limit > 1000 {
		params.Limit = 100
	}

	if params.Account != "" {
		account, rpcErr := parseAddressParam("account", params.Account)
		if rpcErr != nil {
			return nil, rpcErr
		}
		recs, err := s.journal.ByAccount(account, params.Limit)
		if err != nil {
			return nil, &Error{Code: CodeInternalError, Message: fmt.Sprintf("event journal: %v", err)}
		}
		return &EventsResult{Records: recs, Total: s.journal.Len()}, nil
	}

	recs, err := s.journal.List(params.From, params.Limit)
	if err != nil {
		return nil, &Error{Code: CodeInternalError, Message: fmt.Sprintf("event journal: %v", err)}
	}
	return &EventsResult{Records: recs, Total: s.journal.Len()}, nil
}
