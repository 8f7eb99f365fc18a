// Package ledger implements the stCSPR token ledger state machine.
//
// The ledger holds per-account balances of the derivative token, delegated
// spending allowances, and the running total supply. Staking mints stCSPR
// 1:1 against base-asset units escrowed by the host; unstaking burns them.
// Every mutating operation follows the checks-effects-interactions order:
// all preconditions are validated first, state is then committed
// atomically (memory and, when a store is attached, a single storage
// batch), and events are emitted last. A failed operation leaves the
// ledger exactly as it was.
//
// A Ledger is safe for concurrent use. Reads and writes are guarded by
// an internal lock; the transport additionally serializes each
// authenticate-mutate-acknowledge sequence as a unit (see internal/rpc).
package ledger

import (
	"sync"
	"time"

	klog "github.com/casperliquid/liquidstake/internal/log"
	"github.com/casperliquid/liquidstake/pkg/types"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
)

// Metadata holds the token's immutable descriptive constants, fixed at
// construction and never changed afterwards.
type Metadata struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// DefaultMetadata returns the stCSPR token constants. Decimals match the
// base asset (CSPR, 9 decimals).
func DefaultMetadata() Metadata {
	return Metadata{
		Name:     "Staked CSPR",
		Symbol:   "stCSPR",
		Decimals: 9,
	}
}

// allowanceKey identifies an (owner, spender) allowance entry.
type allowanceKey struct {
	owner   types.Address
	spender types.Address
}

// Ledger is the derivative-token accounting state machine.
type Ledger struct {
	mu      sync.RWMutex
	meta    Metadata
	supply  uint256.Int
	custody uint256.Int // Base-asset units escrowed by the host, 1:1 with supply.

	balances   map[types.Address]uint256.Int
	allowances map[allowanceKey]uint256.Int

	store  *Store    // nil = in-memory only
	sink   EventSink // nil = events discarded
	logger zerolog.Logger
	now    func() time.Time
}

// New creates an empty ledger with the given metadata: zero supply, no
// balances, no allowances.
func New(meta Metadata) *Ledger {
	return &Ledger{
		meta:       meta,
		balances:   make(map[types.Address]uint256.Int),
		allowances: make(map[allowanceKey]uint256.Int),
		logger:     klog.WithComponent("ledger"),
		now:        time.Now,
	}
}

// SetEventSink attaches an event sink. Events are emitted only after the
// corresponding state change has committed.
func (l *Ledger) SetEventSink(sink EventSink) {
	l.sink = sink
}

// SetStore attaches a persistence store. Subsequent mutations are written
// through in a single atomic batch before the in-memory state changes.
func (l *Ledger) SetStore(store *Store) {
	l.store = store
}

// ── Read accessors ──────────────────────────────────────────────────────

// Name returns the token display name.
func (l *Ledger) Name() string { return l.meta.Name }

// Symbol returns the token symbol.
func (l *Ledger) Symbol() string { return l.meta.Symbol }

// Decimals returns the token decimal precision.
func (l *Ledger) Decimals() uint8 { return l.meta.Decimals }

// Metadata returns the token's immutable constants.
func (l *Ledger) Metadata() Metadata { return l.meta }

// TotalSupply returns the current total supply of the derivative token.
func (l *Ledger) TotalSupply() *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(uint256.Int).Set(&l.supply)
}

// CustodyBalance returns the base-asset units held in custody. It equals
// the total supply at all times (1:1 peg).
func (l *Ledger) CustodyBalance() *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(uint256.Int).Set(&l.custody)
}

// BalanceOf returns the balance of the given account, zero if the account
// has never held tokens. Absent and zero are equivalent.
func (l *Ledger) BalanceOf(account types.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	bal := l.balances[account]
	return new(uint256.Int).Set(&bal)
}

// Allowance returns the remaining allowance spender may transfer on
// owner's behalf, zero if none was granted.
func (l *Ledger) Allowance(owner, spender types.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	al := l.allowances[allowanceKey{owner, spender}]
	return new(uint256.Int).Set(&al)
}

// AccountCount returns the number of accounts with a nonzero balance.
func (l *Ledger) AccountCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.balances)
}

// ConsistencyOK reports whether the ledger invariants hold: total supply
// equals both the custody balance and the sum of all account balances.
func (l *Ledger) ConsistencyOK() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.supply != l.custody {
		return false
	}
	var sum uint256.Int
	for _, bal := range l.balances {
		if _, carry := sum.AddOverflow(&sum, &bal); carry {
			return false
		}
	}
	return sum == l.supply
}

// ── Mutating operations ─────────────────────────────────────────────────

// Stake mints amount derivative tokens to account against an equal
// base-asset deposit already escrowed by the host. All-or-nothing: if any
// addition would overflow, nothing is mutated.
func (l *Ledger) Stake(account types.Address, amount *uint256.Int) error {
	if err := checkAccount(account); err != nil {
		return err
	}
	if err := checkAmount(amount); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	bal := l.balances[account]
	var newBal, newSupply, newCustody uint256.Int
	if _, carry := newBal.AddOverflow(&bal, amount); carry {
		return ErrOverflow
	}
	if _, carry := newSupply.AddOverflow(&l.supply, amount); carry {
		return ErrOverflow
	}
	if _, carry := newCustody.AddOverflow(&l.custody, amount); carry {
		return ErrOverflow
	}

	cs := newChangeSet()
	cs.setBalance(account, &newBal)
	cs.setSupply(&newSupply)
	cs.setCustody(&newCustody)
	if err := l.commit(cs); err != nil {
		return err
	}

	l.logger.Debug().
		Str("account", account.String()).
		Str("amount", amount.Dec()).
		Str("supply", newSupply.Dec()).
		Msg("stake committed")

	l.emit(Event{
		Kind:      EventStaked,
		Account:   account,
		Amount:    new(uint256.Int).Set(amount),
		Timestamp: l.now(),
	})
	return nil
}

// Unstake burns amount derivative tokens from account, releasing an equal
// amount of escrowed base asset. Fails with ErrInsufficientBalance before
// touching any state if account holds less than amount.
func (l *Ledger) Unstake(account types.Address, amount *uint256.Int) error {
	if err := checkAccount(account); err != nil {
		return err
	}
	if err := checkAmount(amount); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	bal := l.balances[account]
	if bal.Lt(amount) {
		return ErrInsufficientBalance
	}

	var newBal, newSupply, newCustody uint256.Int
	if _, borrow := newBal.SubOverflow(&bal, amount); borrow {
		return ErrUnderflow
	}
	if _, borrow := newSupply.SubOverflow(&l.supply, amount); borrow {
		return ErrUnderflow
	}
	if _, borrow := newCustody.SubOverflow(&l.custody, amount); borrow {
		return ErrUnderflow
	}

	cs := newChangeSet()
	cs.setBalance(account, &newBal)
	cs.setSupply(&newSupply)
	cs.setCustody(&newCustody)
	if err := l.commit(cs); err != nil {
		return err
	}

	l.logger.Debug().
		Str("account", account.String()).
		Str("amount", amount.Dec()).
		Str("supply", newSupply.Dec()).
		Msg("unstake committed")

	l.emit(Event{
		Kind:      EventUnstaked,
		Account:   account,
		Amount:    new(uint256.Int).Set(amount),
		Timestamp: l.now(),
	})
	return nil
}

// Transfer moves amount from sender to recipient. A self-transfer is a
// valid no-op on balances but still requires sender to hold at least
// amount.
func (l *Ledger) Transfer(sender, recipient types.Address, amount *uint256.Int) error {
	if err := checkAccount(sender); err != nil {
		return err
	}
	if err := checkAccount(recipient); err != nil {
		return err
	}
	if err := checkAmount(amount); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cs, err := l.prepareTransfer(sender, recipient, amount)
	if err != nil {
		return err
	}
	if err := l.commit(cs); err != nil {
		return err
	}

	l.logger.Debug().
		Str("from", sender.String()).
		Str("to", recipient.String()).
		Str("amount", amount.Dec()).
		Msg("transfer committed")

	l.emit(Event{
		Kind:      EventTransfer,
		From:      sender,
		To:        recipient,
		Amount:    new(uint256.Int).Set(amount),
		Timestamp: l.now(),
	})
	return nil
}

// Approve sets (overwrites, never adds to) the allowance spender may
// transfer on owner's behalf. The allowance is a promise, not an escrow:
// it may exceed owner's balance. Zero clears the entry.
func (l *Ledger) Approve(owner, spender types.Address, amount *uint256.Int) error {
	if err := checkAccount(owner); err != nil {
		return err
	}
	if err := checkAccount(spender); err != nil {
		return err
	}
	if amount == nil {
		amount = uint256.NewInt(0)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cs := newChangeSet()
	cs.setAllowance(owner, spender, amount)
	if err := l.commit(cs); err != nil {
		return err
	}

	l.logger.Debug().
		Str("owner", owner.String()).
		Str("spender", spender.String()).
		Str("amount", amount.Dec()).
		Msg("approval committed")

	l.emit(Event{
		Kind:      EventApproval,
		Owner:     owner,
		Spender:   spender,
		Amount:    new(uint256.Int).Set(amount),
		Timestamp: l.now(),
	})
	return nil
}

// TransferFrom moves amount from owner to recipient on the authority of
// caller's allowance. Both checks (allowance, then balance) run strictly
// before any state write, so a failure can never leave the allowance and
// the balances disagreeing.
func (l *Ledger) TransferFrom(caller, owner, recipient types.Address, amount *uint256.Int) error {
	if err := checkAccount(caller); err != nil {
		return err
	}
	if err := checkAccount(owner); err != nil {
		return err
	}
	if err := checkAccount(recipient); err != nil {
		return err
	}
	if err := checkAmount(amount); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	allowance := l.allowances[allowanceKey{owner, caller}]
	if allowance.Lt(amount) {
		return ErrInsufficientAllowance
	}

	cs, err := l.prepareTransfer(owner, recipient, amount)
	if err != nil {
		return err
	}

	var newAllowance uint256.Int
	if _, borrow := newAllowance.SubOverflow(&allowance, amount); borrow {
		return ErrUnderflow
	}
	cs.setAllowance(owner, caller, &newAllowance)

	if err := l.commit(cs); err != nil {
		return err
	}

	l.logger.Debug().
		Str("caller", caller.String()).
		Str("from", owner.String()).
		Str("to", recipient.String()).
		Str("amount", amount.Dec()).
		Str("remaining_allowance", newAllowance.Dec()).
		Msg("transfer-from committed")

	l.emit(Event{
		Kind:      EventTransfer,
		From:      owner,
		To:        recipient,
		Amount:    new(uint256.Int).Set(amount),
		Timestamp: l.now(),
	})
	return nil
}

// ── Internals ───────────────────────────────────────────────────────────

// prepareTransfer validates the balance precondition and stages the
// debit/credit pair. Self-transfers stage no balance change at all: the
// net effect is zero and writing intermediate values would be the only
// way to get it wrong.
func (l *Ledger) prepareTransfer(from, to types.Address, amount *uint256.Int) (*changeSet, error) {
	fromBal := l.balances[from]
	if fromBal.Lt(amount) {
		return nil, ErrInsufficientBalance
	}

	cs := newChangeSet()
	if from == to {
		return cs, nil
	}

	var newFrom, newTo uint256.Int
	if _, borrow := newFrom.SubOverflow(&fromBal, amount); borrow {
		return nil, ErrUnderflow
	}
	toBal := l.balances[to]
	if _, carry := newTo.AddOverflow(&toBal, amount); carry {
		return nil, ErrOverflow
	}

	cs.setBalance(from, &newFrom)
	cs.setBalance(to, &newTo)
	return cs, nil
}

// commit applies a fully validated change set: first to the store (one
// atomic batch), then to memory. If the store write fails the in-memory
// state is untouched and the error aborts the operation.
func (l *Ledger) commit(cs *changeSet) error {
	if l.store != nil {
		if err := l.store.apply(cs); err != nil {
			return err
		}
	}

	for addr, bal := range cs.balances {
		if bal.IsZero() {
			delete(l.balances, addr)
			continue
		}
		l.balances[addr] = *bal
	}
	for key, al := range cs.allowances {
		if al.IsZero() {
			delete(l.allowances, key)
			continue
		}
		l.allowances[key] = *al
	}
	if cs.supply != nil {
		l.supply = *cs.supply
	}
	if cs.custody != nil {
		l.custody = *cs.custody
	}
	return nil
}

// emit forwards an event to the sink, if any. Sink failures are logged
// and ignored: events are observability, not correctness.
func (l *Ledger) emit(ev Event) {
	if l.sink == nil {
		return
	}
	if err := l.sink.Emit(ev); err != nil {
		l.logger.Warn().Err(err).Str("kind", string(ev.Kind)).Msg("event sink failed")
	}
}

// checkAmount rejects nil or zero amounts.
func checkAmount(amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrZeroAmount
	}
	return nil
}

// checkAccount rejects the zero address: it is not a resolvable account.
func checkAccount(addr types.Address) error {
	if addr.IsZero() {
		return ErrInvalidAccount
	}
	return nil
}

// changeSet stages the writes of one validated operation so they can be
// applied all-or-nothing.
type changeSet struct {
	balances   map[types.Address]*uint256.Int
	allowances map[allowanceKey]*uint256.Int
	supply     *uint256.Int
	custody    *uint256.Int
}

func newChangeSet() *changeSet {
	return &changeSet{
		balances:   make(map[types.Address]*uint256.Int),
		allowances: make(map[allowanceKey]*uint256.Int),
	}
}

func (cs *changeSet) setBalance(addr types.Address, v *uint256.Int) {
	cs.balances[addr] = new(uint256.Int).Set(v)
}

func (cs *changeSet) setAllowance(owner, spender types.Address, v *uint256.Int) {
	cs.allowances[allowanceKey{owner, spender}] = new(uint256.Int).Set(v)
}

func (cs *changeSet) setSupply(v *uint256.Int) {
	cs.supply = new(uint256.Int).Set(v)
}

func (cs *changeSet) setCustody(v *uint256.Int) {
	cs.custody = new(uint256.Int).Set(v)
}
