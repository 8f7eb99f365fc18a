package ledger

import (
	"sort"

	"github.com/casperliquid/liquidstake/pkg/crypto"
	"github.com/casperliquid/liquidstake/pkg/types"
)

// Leaf domain tags keep balance, allowance, and header leaves from
// colliding in the commitment tree.
const (
	leafHeader    = 0x00
	leafBalance   = 0x01
	leafAllowance = 0x02
)

// Commitment computes a deterministic BLAKE3 merkle root over the entire
// ledger state: metadata, supply, custody, every balance, and every
// allowance. Two nodes holding the same state produce the same root, so
// operators can audit replicas cheaply.
func (l *Ledger) Commitment() types.Hash {
	l.mu.RLock()
	defer l.mu.RUnlock()

	leaves := make([]types.Hash, 0, 1+len(l.balances)+len(l.allowances))
	leaves = append(leaves, l.headerLeaf())

	for addr, bal := range l.balances {
		var buf []byte
		buf = append(buf, leafBalance)
		buf = append(buf, addr[:]...)
		v := bal.Bytes32()
		buf = append(buf, v[:]...)
		leaves = append(leaves, crypto.Hash(buf))
	}

	for key, al := range l.allowances {
		var buf []byte
		buf = append(buf, leafAllowance)
		buf = append(buf, key.owner[:]...)
		buf = append(buf, key.spender[:]...)
		v := al.Bytes32()
		buf = append(buf, v[:]...)
		leaves = append(leaves, crypto.Hash(buf))
	}

	// Sort for deterministic ordering (map iteration order varies).
	sort.Slice(leaves, func(i, j int) bool {
		return hashLess(leaves[i], leaves[j])
	})

	return merkleRoot(leaves)
}

// headerLeaf hashes the scalar state: metadata, supply, custody.
func (l *Ledger) headerLeaf() types.Hash {
	var buf []byte
	buf = append(buf, leafHeader)
	buf = append(buf, byte(len(l.meta.Name)))
	buf = append(buf, l.meta.Name...)
	buf = append(buf, byte(len(l.meta.Symbol)))
	buf = append(buf, l.meta.Symbol...)
	buf = append(buf, l.meta.Decimals)
	s := l.supply.Bytes32()
	buf = append(buf, s[:]...)
	c := l.custody.Bytes32()
	buf = append(buf, c[:]...)
	return crypto.Hash(buf)
}

// merkleRoot folds sorted leaf hashes pairwise; an odd leaf is paired
// with itself.
func merkleRoot(hashes []types.Hash) types.Hash {
	if len(hashes) == 0 {
		return types.Hash{}
	}
	for len(hashes) > 1 {
		next := make([]types.Hash, 0, (len(hashes)+1)/2)
		for i := 0; i < len(hashes); i += 2 {
			if i+1 < len(hashes) {
				next = append(next, crypto.HashConcat(hashes[i], hashes[i+1]))
			} else {
				next = append(next, crypto.HashConcat(hashes[i], hashes[i]))
			}
		}
		hashes = next
	}
	return hashes[0]
}

func hashLess(a, b types.Hash) bool {
	for i := 0; i < types.HashSize; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
