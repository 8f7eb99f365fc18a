// Package node provides a reusable ledger node that can be embedded
// in any binary (daemon, tooling, tests).
package node

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/casperliquid/liquidstake/config"
	"github.com/casperliquid/liquidstake/internal/events"
	"github.com/casperliquid/liquidstake/internal/ledger"
	klog "github.com/casperliquid/liquidstake/internal/log"
	"github.com/casperliquid/liquidstake/internal/rpc"
	"github.com/casperliquid/liquidstake/internal/storage"
	"github.com/casperliquid/liquidstake/pkg/types"
	"github.com/rs/zerolog"
)

// Key-space prefixes segmenting the single database between subsystems.
var (
	prefixLedger = []byte("l/")
	prefixEvents = []byte("e/")
	prefixAuth   = []byte("a/")
)

// auditInterval is how often the background audit re-checks the
// supply/custody invariant and logs the state commitment.
const auditInterval = 5 * time.Minute

// Node is a fully-initialized ledger node.
type Node struct {
	cfg    *config.Config
	logger zerolog.Logger

	// Core
	db      storage.DB
	ledger  *ledger.Ledger
	journal *events.Journal
	auth    *rpc.Authenticator

	// RPC
	rpcServer *rpc.Server

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates and initializes a new Node. It performs all setup steps
// (logger, storage, ledger, event journal, RPC) but does NOT start the
// background audit loop. Call Start() for that.
func New(cfg *config.Config) (*Node, error) {
	// ── 1. Set address HRP ──────────────────────────────────────────
	if cfg.Network == config.Testnet {
		types.SetAddressHRP(types.TestnetHRP)
	} else {
		types.SetAddressHRP(types.MainnetHRP)
	}

	// ── 2. Init logger ──────────────────────────────────────────────
	logFile := cfg.Log.File
	if logFile == "" && cfg.DataDir != "" {
		logsDir := cfg.LogsDir()
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return nil, fmt.Errorf("creating logs dir: %w", err)
		}
		logFile = logsDir + "/liquidstake.log"
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	logger := klog.WithComponent("node")

	logger.Info().
		Str("network", string(cfg.Network)).
		Str("token", cfg.Token.Symbol).
		Msg("Starting Liquidstake Node")

	// ── 3. Open storage ─────────────────────────────────────────────
	// An empty data directory selects an in-memory database; state is
	// lost on shutdown.
	var db storage.DB
	var err error
	if cfg.DataDir == "" {
		db = storage.NewMemory()
		logger.Warn().Msg("No data directory configured; using in-memory storage")
	} else {
		db, err = storage.NewBadger(cfg.LedgerDir())
		if err != nil {
			return nil, fmt.Errorf("open database at %s: %w", cfg.LedgerDir(), err)
		}
		logger.Info().Str("path", cfg.LedgerDir()).Msg("Database opened")
	}

	// ── 4. Ledger ───────────────────────────────────────────────────
	meta := ledger.Metadata{
		Name:     cfg.Token.Name,
		Symbol:   cfg.Token.Symbol,
		Decimals: cfg.Token.Decimals,
	}
	store := ledger.NewStore(storage.NewPrefixDB(db, prefixLedger))
	l, err := ledger.Open(store, meta)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	supply := l.TotalSupply()
	logger.Info().
		Str("name", l.Name()).
		Str("symbol", l.Symbol()).
		Uint8("decimals", l.Decimals()).
		Str("supply", supply.Dec()).
		Msg("Ledger opened")

	// ── 5. Event journal ────────────────────────────────────────────
	journal, err := events.Open(storage.NewPrefixDB(db, prefixEvents))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open event journal: %w", err)
	}
	l.SetEventSink(journal)
	logger.Info().Uint64("events", journal.Len()).Msg("Event journal opened")

	// ── 6. Request authenticator ────────────────────────────────────
	auth := rpc.NewAuthenticator(storage.NewPrefixDB(db, prefixAuth))

	// ── 7. RPC server ───────────────────────────────────────────────
	var rpcServer *rpc.Server
	if cfg.RPC.Enabled {
		rpcAddr := fmt.Sprintf("%s:%d", cfg.RPC.Addr, cfg.RPC.Port)
		rpcServer = rpc.New(rpcAddr, l, auth, cfg.RPC)
		rpcServer.SetJournal(journal)
		if err := rpcServer.Start(); err != nil {
			db.Close()
			return nil, fmt.Errorf("start RPC at %s: %w", rpcAddr, err)
		}
		logger.Info().Str("addr", rpcServer.Addr()).Msg("RPC server started")
	} else {
		logger.Warn().Msg("RPC disabled by config; node serves no requests")
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Node{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		ledger:    l,
		journal:   journal,
		auth:      auth,
		rpcServer: rpcServer,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Start launches the background audit loop and logs a readiness summary.
func (n *Node) Start() error {
	if !n.ledger.ConsistencyOK() {
		return fmt.Errorf("ledger supply does not match custody balance")
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.runAuditLoop()
	}()

	supply := n.ledger.TotalSupply()
	n.logger.Info().
		Str("supply", supply.Dec()).
		Int("accounts", n.ledger.AccountCount()).
		Str("commitment", n.ledger.Commitment().String()).
		Msg("Node started successfully")

	return nil
}

// Stop performs graceful shutdown in reverse order.
func (n *Node) Stop() {
	n.cancel()
	n.wg.Wait()

	if n.rpcServer != nil {
		n.rpcServer.Stop()
	}
	if n.db != nil {
		n.db.Close()
	}

	n.logger.Info().Msg("Goodbye!")
}

// Ledger returns the node's token ledger.
func (n *Node) Ledger() *ledger.Ledger {
	return n.ledger
}

// Journal returns the node's event journal.
func (n *Node) Journal() *events.Journal {
	return n.journal
}

// RPCAddr returns the address the RPC server is listening on.
func (n *Node) RPCAddr() string {
	if n.rpcServer == nil {
		return ""
	}
	return n.rpcServer.Addr()
}

// runAuditLoop periodically re-checks the supply/custody invariant and
// logs the current state commitment.
func (n *Node) runAuditLoop() {
	ticker := time.NewTicker(auditInterval)
	defer ticker.Stop()

	for {
		select {
		case <-n.ctx.Done():
			return
		case <-ticker.C:
			if !n.ledger.ConsistencyOK() {
				n.logger.Error().Msg("Audit failed: supply does not match custody balance")
				continue
			}
			n.logger.Debug().
				Str("commitment", n.ledger.Commitment().String()).
				Uint64("events", n.journal.Len()).
				Msg("Audit passed")
		}
	}
}
