package ledger

import (
	"testing"

	"github.com/casperliquid/liquidstake/pkg/types"
)

func TestCommitmentChangesWithState(t *testing.T) {
	l := newTestLedger()
	alice := testAddr(1)

	empty := l.Commitment()
	if empty == (types.Hash{}) {
		t.Fatal("empty ledger commitment is the zero hash")
	}

	if err := l.Stake(alice, amt(100)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	staked := l.Commitment()
	if staked == empty {
		t.Fatal("commitment unchanged after stake")
	}

	if err := l.Unstake(alice, amt(100)); err != nil {
		t.Fatalf("unstake: %v", err)
	}
	if got := l.Commitment(); got != empty {
		t.Fatalf("commitment after round trip = %s, want %s", got, empty)
	}
}

func TestCommitmentIndependentOfOperationOrder(t *testing.T) {
	alice, bob := testAddr(1), testAddr(2)

	a := newTestLedger()
	if err := a.Stake(alice, amt(10)); err != nil {
		t.Fatal(err)
	}
	if err := a.Stake(bob, amt(20)); err != nil {
		t.Fatal(err)
	}

	b := newTestLedger()
	if err := b.Stake(bob, amt(20)); err != nil {
		t.Fatal(err)
	}
	if err := b.Stake(alice, amt(10)); err != nil {
		t.Fatal(err)
	}

	if a.Commitment() != b.Commitment() {
		t.Fatal("same state, different commitments")
	}
}

func TestCommitmentCoversAllowances(t *testing.T) {
	l := newTestLedger()
	alice, bob := testAddr(1), testAddr(2)

	before := l.Commitment()
	if err := l.Approve(alice, bob, amt(5)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if l.Commitment() == before {
		t.Fatal("commitment unchanged after approval")
	}
	// Direction matters: (alice, bob) and (bob, alice) commit differently.
	other := newTestLedger()
	if err := other.Approve(bob, alice, amt(5)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if l.Commitment() == other.Commitment() {
		t.Fatal("swapped owner/spender produced identical commitment")
	}
}

func TestCommitmentCoversMetadata(t *testing.T) {
	a := New(DefaultMetadata())
	b := New(Metadata{Name: "Wrapped CSPR", Symbol: "wCSPR", Decimals: 9})
	if a.Commitment() == b.Commitment() {
		t.Fatal("different metadata produced identical commitment")
	}
}

func TestMerkleRootEmptyAndSingle(t *testing.T) {
	if merkleRoot(nil) != (types.Hash{}) {
		t.Fatal("empty merkle root is not zero")
	}
	leaf := types.Hash{1}
	if merkleRoot([]types.Hash{leaf}) != leaf {
		t.Fatal("single-leaf root is not the leaf itself")
	}
}
