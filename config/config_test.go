package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	main := DefaultMainnet()
	if main.Network != Mainnet || main.RPC.Port != 8545 {
		t.Fatalf("mainnet defaults wrong: %+v", main)
	}
	if main.Token.Symbol != "stCSPR" || main.Token.Decimals != 9 {
		t.Fatalf("token defaults wrong: %+v", main.Token)
	}

	test := DefaultTestnet()
	if test.Network != Testnet || test.RPC.Port != 8645 {
		t.Fatalf("testnet defaults wrong: %+v", test)
	}
}

func TestLoadFileAndApply(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "liquidstake.conf")
	content := `# comment
network = testnet
rpc.port = 9999
rpc.allowed = 127.0.0.1, 10.0.0.5
token.symbol = "xCSPR"
token.decimals = 12
log.level = debug
log.json = true
unknown.key = ignored
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	values, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := DefaultMainnet()
	if err := ApplyFileConfig(cfg, values); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if cfg.Network != Testnet {
		t.Errorf("network = %q", cfg.Network)
	}
	if cfg.RPC.Port != 9999 {
		t.Errorf("rpc port = %d", cfg.RPC.Port)
	}
	if len(cfg.RPC.AllowedIPs) != 2 || cfg.RPC.AllowedIPs[1] != "10.0.0.5" {
		t.Errorf("allowed IPs = %v", cfg.RPC.AllowedIPs)
	}
	if cfg.Token.Symbol != "xCSPR" || cfg.Token.Decimals != 12 {
		t.Errorf("token = %+v", cfg.Token)
	}
	if cfg.Log.Level != "debug" || !cfg.Log.JSON {
		t.Errorf("log = %+v", cfg.Log)
	}
}

func TestLoadFileMissingReturnsEmpty(t *testing.T) {
	values, err := LoadFile(filepath.Join(t.TempDir(), "missing.conf"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(values) != 0 {
		t.Fatalf("got %d values, want 0", len(values))
	}
}

func TestLoadFileRejectsMalformedLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.conf")
	if err := os.WriteFile(path, []byte("no equals sign here\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("malformed line accepted")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults ok", func(*Config) {}, false},
		{"bad network", func(c *Config) { c.Network = "devnet" }, true},
		{"bad rpc port", func(c *Config) { c.RPC.Port = 70000 }, true},
		{"empty token name", func(c *Config) { c.Token.Name = "" }, true},
		{"empty token symbol", func(c *Config) { c.Token.Symbol = "" }, true},
		{"too many decimals", func(c *Config) { c.Token.Decimals = 31 }, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultMainnet()
			tc.mutate(cfg)
			err := Validate(cfg)
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestEnsureDataDirs(t *testing.T) {
	cfg := DefaultMainnet()
	cfg.DataDir = filepath.Join(t.TempDir(), "data")

	if err := EnsureDataDirs(cfg); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	for _, dir := range []string{cfg.LedgerDir(), cfg.WalletDir(), cfg.KeystoreDir(), cfg.LogsDir()} {
		if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
			t.Errorf("directory %s missing", dir)
		}
	}
	if _, err := os.Stat(cfg.ConfigFile()); err != nil {
		t.Errorf("default config file missing: %v", err)
	}

	// Idempotent: a second call must not fail or clobber.
	if err := EnsureDataDirs(cfg); err != nil {
		t.Fatalf("second ensure: %v", err)
	}
}
