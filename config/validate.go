package config

import (
	"fmt"
)

// MaxTokenDecimals caps the decimal precision. Larger values serve no
// asset and usually indicate a typo in the config file.
const MaxTokenDecimals = 30

// Validate checks runtime node config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network != Mainnet && cfg.Network != Testnet {
		return fmt.Errorf("network must be %q or %q", Mainnet, Testnet)
	}
	if cfg.RPC.Port < 0 || cfg.RPC.Port > 65535 {
		return fmt.Errorf("rpc.port must be in range [0, 65535]")
	}
	if cfg.Token.Name == "" {
		return fmt.Errorf("token.name must not be empty")
	}
	if cfg.Token.Symbol == "" {
		return fmt.Errorf("token.symbol must not be empty")
	}
	if cfg.Token.Decimals > MaxTokenDecimals {
		return fmt.Errorf("token.decimals must be at most %d", MaxTokenDecimals)
	}
	return nil
}
