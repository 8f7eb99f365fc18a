package ledger

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/casperliquid/liquidstake/internal/storage"
	"github.com/casperliquid/liquidstake/pkg/types"
	"github.com/holiman/uint256"
)

// Storage key prefixes.
//
//	m/                         -> Metadata JSON
//	s/                         -> total supply (32 bytes, big-endian)
//	c/                         -> custody balance (32 bytes, big-endian)
//	b/<addr(20)>               -> account balance (32 bytes, big-endian)
//	al/<owner(20)><spender(20)> -> allowance (32 bytes, big-endian)
var (
	keyMetadata     = []byte("m/")
	keySupply       = []byte("s/")
	keyCustody      = []byte("c/")
	prefixBalance   = []byte("b/")
	prefixAllowance = []byte("al/")
)

// Store persists ledger state in a key-value database. Each committed
// operation is written as one atomic batch, so a crash can never leave
// half an operation on disk.
type Store struct {
	db storage.DB
}

// NewStore creates a ledger store over the given database.
func NewStore(db storage.DB) *Store {
	return &Store{db: db}
}

// Open restores a ledger from the store, or initializes one with meta if
// the store is empty. The metadata is fixed at first initialization;
// reopening with different construction parameters is an error.
func Open(store *Store, meta Metadata) (*Ledger, error) {
	stored, found, err := store.loadMetadata()
	if err != nil {
		return nil, err
	}
	if !found {
		if err := store.saveMetadata(meta); err != nil {
			return nil, err
		}
		stored = meta
	} else if stored != meta {
		return nil, fmt.Errorf("ledger metadata is immutable: store holds %s (%s), got %s (%s)",
			stored.Name, stored.Symbol, meta.Name, meta.Symbol)
	}

	l := New(stored)
	if err := store.load(l); err != nil {
		return nil, err
	}
	l.SetStore(store)
	return l, nil
}

// apply writes a validated change set as a single atomic batch.
func (s *Store) apply(cs *changeSet) error {
	batcher, ok := s.db.(storage.Batcher)
	if !ok {
		return errors.New("ledger store requires a batching database")
	}
	batch := batcher.NewBatch()

	for addr, bal := range cs.balances {
		key := balanceKey(addr)
		if bal.IsZero() {
			// Zero and absent are equivalent; keep the table sparse.
			if err := batch.Delete(key); err != nil {
				return err
			}
			continue
		}
		v := bal.Bytes32()
		if err := batch.Put(key, v[:]); err != nil {
			return err
		}
	}
	for ak, al := range cs.allowances {
		key := allowanceStoreKey(ak.owner, ak.spender)
		if al.IsZero() {
			if err := batch.Delete(key); err != nil {
				return err
			}
			continue
		}
		v := al.Bytes32()
		if err := batch.Put(key, v[:]); err != nil {
			return err
		}
	}
	if cs.supply != nil {
		v := cs.supply.Bytes32()
		if err := batch.Put(keySupply, v[:]); err != nil {
			return err
		}
	}
	if cs.custody != nil {
		v := cs.custody.Bytes32()
		if err := batch.Put(keyCustody, v[:]); err != nil {
			return err
		}
	}

	if err := batch.Commit(); err != nil {
		return fmt.Errorf("ledger store commit: %w", err)
	}
	return nil
}

// load reads the full ledger state from disk into l.
func (s *Store) load(l *Ledger) error {
	if has, err := s.db.Has(keySupply); err != nil {
		return fmt.Errorf("ledger load: %w", err)
	} else if has {
		raw, err := s.db.Get(keySupply)
		if err != nil {
			return fmt.Errorf("ledger load supply: %w", err)
		}
		if err := decodeAmount(raw, &l.supply); err != nil {
			return fmt.Errorf("ledger load supply: %w", err)
		}
	}

	if has, err := s.db.Has(keyCustody); err != nil {
		return fmt.Errorf("ledger load: %w", err)
	} else if has {
		raw, err := s.db.Get(keyCustody)
		if err != nil {
			return fmt.Errorf("ledger load custody: %w", err)
		}
		if err := decodeAmount(raw, &l.custody); err != nil {
			return fmt.Errorf("ledger load custody: %w", err)
		}
	}

	err := s.db.ForEach(prefixBalance, func(key, value []byte) error {
		if len(key) != len(prefixBalance)+types.AddressSize {
			return nil // Malformed key, skip.
		}
		var addr types.Address
		copy(addr[:], key[len(prefixBalance):])

		var bal uint256.Int
		if err := decodeAmount(value, &bal); err != nil {
			return fmt.Errorf("balance %s: %w", addr, err)
		}
		if !bal.IsZero() {
			l.balances[addr] = bal
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ledger load balances: %w", err)
	}

	err = s.db.ForEach(prefixAllowance, func(key, value []byte) error {
		if len(key) != len(prefixAllowance)+2*types.AddressSize {
			return nil
		}
		var owner, spender types.Address
		copy(owner[:], key[len(prefixAllowance):len(prefixAllowance)+types.AddressSize])
		copy(spender[:], key[len(prefixAllowance)+types.AddressSize:])

		var al uint256.Int
		if err := decodeAmount(value, &al); err != nil {
			return fmt.Errorf("allowance %s/%s: %w", owner, spender, err)
		}
		if !al.IsZero() {
			l.allowances[allowanceKey{owner, spender}] = al
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ledger load allowances: %w", err)
	}
	return nil
}

// saveMetadata writes the construction-time token constants.
func (s *Store) saveMetadata(meta Metadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("metadata marshal: %w", err)
	}
	return s.db.Put(keyMetadata, data)
}

// loadMetadata reads the stored token constants, if any.
func (s *Store) loadMetadata() (Metadata, bool, error) {
	has, err := s.db.Has(keyMetadata)
	if err != nil {
		return Metadata{}, false, fmt.Errorf("metadata load: %w", err)
	}
	if !has {
		return Metadata{}, false, nil
	}
	data, err := s.db.Get(keyMetadata)
	if err != nil {
		return Metadata{}, false, fmt.Errorf("metadata load: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, false, fmt.Errorf("metadata unmarshal: %w", err)
	}
	return meta, true, nil
}

func balanceKey(addr types.Address) []byte {
	key := make([]byte, len(prefixBalance)+types.AddressSize)
	copy(key, prefixBalance)
	copy(key[len(prefixBalance):], addr[:])
	return key
}

func allowanceStoreKey(owner, spender types.Address) []byte {
	key := make([]byte, len(prefixAllowance)+2*types.AddressSize)
	copy(key, prefixAllowance)
	copy(key[len(prefixAllowance):], owner[:])
	copy(key[len(prefixAllowance)+types.AddressSize:], spender[:])
	return key
}

func decodeAmount(raw []byte, dst *uint256.Int) error {
	if len(raw) != 32 {
		return fmt.Errorf("amount must be 32 bytes, got %d", len(raw))
	}
	dst.SetBytes32(raw)
	return nil
}
