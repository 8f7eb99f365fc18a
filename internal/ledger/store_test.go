package ledger

import (
	"errors"
	"testing"

	"github.com/casperliquid/liquidstake/internal/storage"
	"github.com/casperliquid/liquidstake/pkg/types"
)

func TestOpenEmptyStoreInitializesMetadata(t *testing.T) {
	db := storage.NewMemory()
	l, err := Open(NewStore(db), DefaultMetadata())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if l.Symbol() != "stCSPR" {
		t.Fatalf("symbol = %q, want stCSPR", l.Symbol())
	}
	requireSupply(t, l, amt(0))
}

func TestStateSurvivesReopen(t *testing.T) {
	db := storage.NewMemory()
	alice, bob, carol := testAddr(1), testAddr(2), testAddr(3)

	l, err := Open(NewStore(db), DefaultMetadata())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := l.Stake(alice, amt(1000)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if err := l.Transfer(alice, bob, amt(250)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := l.Approve(alice, carol, amt(75)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	wantRoot := l.Commitment()

	// Reopen over the same database and compare the full state.
	reopened, err := Open(NewStore(db), DefaultMetadata())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	requireBalance(t, reopened, alice, amt(750))
	requireBalance(t, reopened, bob, amt(250))
	requireSupply(t, reopened, amt(1000))
	if got := reopened.Allowance(alice, carol); !got.Eq(amt(75)) {
		t.Fatalf("allowance = %s, want 75", got.Dec())
	}
	if !reopened.ConsistencyOK() {
		t.Fatal("reloaded ledger fails consistency check")
	}
	if got := reopened.Commitment(); got != wantRoot {
		t.Fatalf("commitment after reload = %s, want %s", got, wantRoot)
	}
}

func TestReopenRejectsChangedMetadata(t *testing.T) {
	db := storage.NewMemory()
	if _, err := Open(NewStore(db), DefaultMetadata()); err != nil {
		t.Fatalf("open: %v", err)
	}

	other := Metadata{Name: "Wrapped CSPR", Symbol: "wCSPR", Decimals: 9}
	if _, err := Open(NewStore(db), other); err == nil {
		t.Fatal("reopen with different metadata succeeded, want error")
	}
}

func TestZeroBalancesDeletedFromDisk(t *testing.T) {
	db := storage.NewMemory()
	alice := testAddr(1)

	l, err := Open(NewStore(db), DefaultMetadata())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := l.Stake(alice, amt(10)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if err := l.Unstake(alice, amt(10)); err != nil {
		t.Fatalf("unstake: %v", err)
	}

	has, err := db.Has(balanceKey(alice))
	if err != nil {
		t.Fatalf("has: %v", err)
	}
	if has {
		t.Fatal("zero balance still present on disk")
	}
}

// failingBatchDB delegates reads to a MemoryDB but fails every batch
// commit, simulating a storage outage mid-operation.
type failingBatchDB struct {
	*storage.MemoryDB
}

func (f failingBatchDB) NewBatch() storage.Batch { return failingBatch{} }

type failingBatch struct{}

func (failingBatch) Put([]byte, []byte) error { return nil }
func (failingBatch) Delete([]byte) error      { return nil }
func (failingBatch) Commit() error            { return errors.New("disk full") }

func TestStoreFailureRollsBackMemoryState(t *testing.T) {
	alice := testAddr(1)

	l := New(DefaultMetadata())
	l.SetStore(NewStore(failingBatchDB{storage.NewMemory()}))

	if err := l.Stake(alice, amt(100)); err == nil {
		t.Fatal("stake succeeded despite failing store")
	}
	requireBalance(t, l, alice, amt(0))
	requireSupply(t, l, amt(0))
	if !l.ConsistencyOK() {
		t.Fatal("consistency check failed after aborted commit")
	}
}

func TestOpenSkipsMalformedKeys(t *testing.T) {
	db := storage.NewMemory()
	l, err := Open(NewStore(db), DefaultMetadata())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := l.Stake(testAddr(1), amt(5)); err != nil {
		t.Fatalf("stake: %v", err)
	}

	// A truncated balance key must not break reload.
	if err := db.Put([]byte("b/short"), make([]byte, 32)); err != nil {
		t.Fatalf("put: %v", err)
	}
	reopened, err := Open(NewStore(db), DefaultMetadata())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	requireBalance(t, reopened, testAddr(1), amt(5))
}

func TestBalanceKeyLayout(t *testing.T) {
	addr := testAddr(7)
	key := balanceKey(addr)
	if len(key) != len(prefixBalance)+types.AddressSize {
		t.Fatalf("key length = %d", len(key))
	}
	alKey := allowanceStoreKey(testAddr(1), testAddr(2))
	if len(alKey) != len(prefixAllowance)+2*types.AddressSize {
		t.Fatalf("allowance key length = %d", len(alKey))
	}
}
