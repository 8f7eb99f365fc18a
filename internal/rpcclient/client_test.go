package rpcclient

import (
	"encoding/json"
	"testing"

	"github.com/casperliquid/liquidstake/internal/events"
	"github.com/casperliquid/liquidstake/internal/ledger"
	klog "github.com/casperliquid/liquidstake/internal/log"
	"github.com/casperliquid/liquidstake/internal/rpc"
	"github.com/casperliquid/liquidstake/internal/storage"
	"github.com/casperliquid/liquidstake/pkg/crypto"
	"github.com/casperliquid/liquidstake/pkg/types"
)

type testEnv struct {
	client *Client
	ledger *ledger.Ledger
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	klog.Init("error", false, "")

	db := storage.NewMemory()
	l, err := ledger.Open(ledger.NewStore(storage.NewPrefixDB(db, []byte("l/"))), ledger.DefaultMetadata())
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	j, err := events.Open(storage.NewPrefixDB(db, []byte("e/")))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	l.SetEventSink(j)

	auth := rpc.NewAuthenticator(storage.NewPrefixDB(db, []byte("a/")))
	srv := rpc.New("127.0.0.1:0", l, auth)
	srv.SetJournal(j)
	if err := srv.Start(); err != nil {
		t.Fatalf("start rpc: %v", err)
	}
	t.Cleanup(func() { srv.Stop() })

	url := "http://" + srv.Addr() + "/"
	return &testEnv{client: New(url), ledger: l}
}

func newKey(t *testing.T) (*crypto.PrivateKey, types.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key, crypto.AddressFromPubKey(key.PublicKey())
}

func TestClient_GetInfo(t *testing.T) {
	env := setupTestEnv(t)

	info, err := env.client.GetInfo()
	if err != nil {
		t.Fatalf("GetInfo: %v", err)
	}
	if info.Symbol != "stCSPR" || info.Decimals != 9 {
		t.Errorf("info = %+v", info)
	}
	if info.TotalSupply != "0" {
		t.Errorf("total supply = %s, want 0", info.TotalSupply)
	}
}

func TestClient_StakeAndQuery(t *testing.T) {
	env := setupTestEnv(t)
	key, addr := newKey(t)

	res, err := env.client.Stake(key, "2500")
	if err != nil {
		t.Fatalf("Stake: %v", err)
	}
	if res.NextNonce != 1 {
		t.Errorf("next nonce = %d, want 1", res.NextNonce)
	}
	if res.Account != addr.String() {
		t.Errorf("account = %s, want %s", res.Account, addr.String())
	}

	bal, err := env.client.BalanceOf(addr.String())
	if err != nil {
		t.Fatalf("BalanceOf: %v", err)
	}
	if bal != "2500" {
		t.Errorf("balance = %s, want 2500", bal)
	}

	supply, err := env.client.TotalSupply()
	if err != nil {
		t.Fatalf("TotalSupply: %v", err)
	}
	if supply != "2500" {
		t.Errorf("supply = %s, want 2500", supply)
	}
}

func TestClient_FullTokenFlow(t *testing.T) {
	env := setupTestEnv(t)
	aliceKey, aliceAddr := newKey(t)
	bobKey, bobAddr := newKey(t)
	_, carolAddr := newKey(t)

	if _, err := env.client.Stake(aliceKey, "1000"); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if _, err := env.client.Transfer(aliceKey, bobAddr.String(), "300"); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if _, err := env.client.Approve(aliceKey, bobAddr.String(), "200"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := env.client.TransferFrom(bobKey, aliceAddr.String(), carolAddr.String(), "150"); err != nil {
		t.Fatalf("transferFrom: %v", err)
	}
	if _, err := env.client.Unstake(bobKey, "100"); err != nil {
		t.Fatalf("unstake: %v", err)
	}

	checks := []struct {
		account string
		want    string
	}{
		{aliceAddr.String(), "550"},
		{bobAddr.String(), "200"},
		{carolAddr.String(), "150"},
	}
	for _, c := range checks {
		bal, err := env.client.BalanceOf(c.account)
		if err != nil {
			t.Fatalf("BalanceOf(%s): %v", c.account, err)
		}
		if bal != c.want {
			t.Errorf("balance of %s = %s, want %s", c.account, bal, c.want)
		}
	}

	al, err := env.client.Allowance(aliceAddr.String(), bobAddr.String())
	if err != nil {
		t.Fatalf("Allowance: %v", err)
	}
	if al != "50" {
		t.Errorf("allowance = %s, want 50", al)
	}

	evs, err := env.client.Events("", 0, 0)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if evs.Total != 5 {
		t.Errorf("event total = %d, want 5", evs.Total)
	}
}

func TestClient_LedgerRejectionSurfacesAsRPCError(t *testing.T) {
	env := setupTestEnv(t)
	key, _ := newKey(t)

	_, err := env.client.Unstake(key, "1")
	if err == nil {
		t.Fatal("unstake with empty balance succeeded")
	}
	rpcErr, ok := err.(*RPCError)
	if !ok {
		t.Fatalf("expected RPCError, got %T: %v", err, err)
	}
	if rpcErr.Code != rpc.CodeLedgerRejected {
		t.Errorf("error code = %d, want %d", rpcErr.Code, rpc.CodeLedgerRejected)
	}
}

func TestClient_Commitment(t *testing.T) {
	env := setupTestEnv(t)
	key, _ := newKey(t)

	before, err := env.client.Commitment()
	if err != nil {
		t.Fatalf("Commitment: %v", err)
	}
	if _, err := env.client.Stake(key, "10"); err != nil {
		t.Fatalf("stake: %v", err)
	}
	after, err := env.client.Commitment()
	if err != nil {
		t.Fatalf("Commitment: %v", err)
	}
	if before == after {
		t.Error("commitment unchanged after stake")
	}
}

func TestClient_Call_InvalidEndpoint(t *testing.T) {
	client := New("http://127.0.0.1:1/") // port 1 — should refuse

	var raw json.RawMessage
	err := client.Call("ledger_getInfo", nil, &raw)
	if err == nil {
		t.Fatal("expected connection error")
	}
}

func TestClient_Call_MethodNotFound(t *testing.T) {
	env := setupTestEnv(t)

	var raw json.RawMessage
	err := env.client.Call("nonexistent_method", nil, &raw)
	if err == nil {
		t.Fatal("expected error for unknown method")
	}

	rpcErr, ok := err.(*RPCError)
	if !ok {
		t.Fatalf("expected RPCError, got %T: %v", err, err)
	}
	if rpcErr.Code != -32601 {
		t.Errorf("error code = %d, want -32601", rpcErr.Code)
	}
}
