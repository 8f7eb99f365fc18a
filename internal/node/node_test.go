package node

import (
	"fmt"
	"testing"

	"github.com/casperliquid/liquidstake/config"
	"github.com/casperliquid/liquidstake/internal/rpcclient"
	"github.com/casperliquid/liquidstake/pkg/crypto"
	"github.com/casperliquid/liquidstake/pkg/types"
	"github.com/holiman/uint256"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultTestnet()
	cfg.DataDir = t.TempDir()
	cfg.Log.Level = "error"
	cfg.RPC.Addr = "127.0.0.1"
	cfg.RPC.Port = 0
	cfg.RPC.AllowedIPs = []string{"127.0.0.1"}
	return cfg
}

func startNode(t *testing.T, cfg *config.Config) *Node {
	t.Helper()
	n, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := n.Start(); err != nil {
		n.Stop()
		t.Fatalf("Start() error: %v", err)
	}
	return n
}

func TestNodeLifecycle(t *testing.T) {
	n := startNode(t, testConfig(t))
	defer n.Stop()

	if n.RPCAddr() == "" {
		t.Error("RPC server should be listening")
	}
	if n.Ledger() == nil {
		t.Fatal("ledger should be initialized")
	}
	if n.Journal() == nil {
		t.Fatal("journal should be initialized")
	}
	if got := n.Ledger().Symbol(); got != "stCSPR" {
		t.Errorf("symbol = %q, want stCSPR", got)
	}
}

func TestNodeInMemory(t *testing.T) {
	cfg := testConfig(t)
	cfg.DataDir = ""
	cfg.RPC.Enabled = false

	n := startNode(t, cfg)
	defer n.Stop()

	if n.RPCAddr() != "" {
		t.Error("RPC should be disabled")
	}

	addr := types.Address{0x01}
	if err := n.Ledger().Stake(addr, uint256.NewInt(500)); err != nil {
		t.Fatalf("Stake() error: %v", err)
	}
	if got := n.Ledger().BalanceOf(addr); !got.Eq(uint256.NewInt(500)) {
		t.Errorf("balance = %s, want 500", got.Dec())
	}
}

func TestNodeStatePersistsAcrossRestart(t *testing.T) {
	cfg := testConfig(t)
	alice := types.Address{0xaa}

	n := startNode(t, cfg)
	if err := n.Ledger().Stake(alice, uint256.NewInt(1234)); err != nil {
		n.Stop()
		t.Fatalf("Stake() error: %v", err)
	}
	commitment := n.Ledger().Commitment()
	eventCount := n.Journal().Len()
	n.Stop()

	n2 := startNode(t, cfg)
	defer n2.Stop()

	if got := n2.Ledger().BalanceOf(alice); !got.Eq(uint256.NewInt(1234)) {
		t.Errorf("balance after restart = %s, want 1234", got.Dec())
	}
	if n2.Ledger().Commitment() != commitment {
		t.Error("commitment changed across restart")
	}
	if n2.Journal().Len() != eventCount {
		t.Errorf("journal length after restart = %d, want %d", n2.Journal().Len(), eventCount)
	}
}

func TestNodeRejectsChangedTokenParams(t *testing.T) {
	cfg := testConfig(t)

	n := startNode(t, cfg)
	n.Stop()

	cfg.Token.Symbol = "other"
	n2, err := New(cfg)
	if err == nil {
		n2.Stop()
		t.Fatal("New() should reject changed token parameters")
	}
}

func TestNodeServesSignedRequests(t *testing.T) {
	n := startNode(t, testConfig(t))
	defer n.Stop()

	client := rpcclient.New(fmt.Sprintf("http://%s", n.RPCAddr()))

	signer, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}

	res, err := client.Stake(signer, "750")
	if err != nil {
		t.Fatalf("Stake() error: %v", err)
	}

	bal, err := client.BalanceOf(res.Account)
	if err != nil {
		t.Fatalf("BalanceOf() error: %v", err)
	}
	if bal != "750" {
		t.Errorf("balance = %s, want 750", bal)
	}

	supply, err := client.TotalSupply()
	if err != nil {
		t.Fatalf("TotalSupply() error: %v", err)
	}
	if supply != "750" {
		t.Errorf("supply = %s, want 750", supply)
	}
}
