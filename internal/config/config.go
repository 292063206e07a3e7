// Package config loads and validates the indexer's TOML configuration
// (spec §6), following the field set of the original Rust
// IndexerConfig (crates/indexer/src/config.rs).
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"github.com/godwoken/web3-indexer/internal/indexererr"
	"github.com/godwoken/web3-indexer/internal/web3"
)

// Config is the validated startup configuration (spec §6).
type Config struct {
	L2SudtTypeScriptHash   HexHash `toml:"l2_sudt_type_script_hash"`
	PolyjuiceTypeScriptHash HexHash `toml:"polyjuice_type_script_hash"`
	RollupTypeHash         HexHash `toml:"rollup_type_hash"`
	EthAccountLockHash     HexHash `toml:"eth_account_lock_hash"`
	TronAccountLockHash    *HexHash `toml:"tron_account_lock_hash,omitempty"`

	GodwokenRPCURL string `toml:"godwoken_rpc_url"`
	WSRPCURL       string `toml:"ws_rpc_url"`
	PGURL          string `toml:"pg_url"`

	ChainID uint64 `toml:"chain_id"`

	SentryDSN         *string `toml:"sentry_dsn,omitempty"`
	SentryEnvironment *string `toml:"sentry_environment,omitempty"`

	// DBPoolSize bounds the Postgres connection pool (spec §5, default 5).
	// Not part of the original Rust schema; an ambient addition so the
	// pool size the spec calls out is actually configurable.
	DBPoolSize int `toml:"db_pool_size,omitempty"`

	// IdlePollInterval is how long the sync loop sleeps when upstream has
	// no new block (spec §4.5, default 1s).
	IdlePollInterval time.Duration `toml:"-"`
	// WSReconnectInterval is how long the subscriber waits before
	// redialing after a disconnect (spec §4.5, default 3s).
	WSReconnectInterval time.Duration `toml:"-"`
}

// HexHash unmarshals a "0x"-prefixed 32-byte hex string into a web3.Hash.
type HexHash web3.Hash

func (h *HexHash) UnmarshalText(text []byte) error {
	b, err := decodeHex(string(text))
	if err != nil {
		return errors.Wrap(err, "hex hash")
	}
	if len(b) != web3.HashLength {
		return fmt.Errorf("hex hash: expected %d bytes, got %d", web3.HashLength, len(b))
	}
	copy(h[:], b)
	return nil
}

func (h HexHash) Hash() web3.Hash { return web3.Hash(h) }

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("odd-length hex string")
	}
	out := make([]byte, len(s)/2)
	for i := 0; i < len(out); i++ {
		hi, ok := hexDigit(s[2*i])
		if !ok {
			return nil, fmt.Errorf("invalid hex digit %q", s[2*i])
		}
		lo, ok := hexDigit(s[2*i+1])
		if !ok {
			return nil, fmt.Errorf("invalid hex digit %q", s[2*i+1])
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func hexDigit(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

// Load reads and validates the TOML config at path (spec §6's
// "./indexer-config.toml").
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, indexererr.New(indexererr.KindConfig, errors.Wrap(err, "read config"))
	}
	var cfg Config
	if err := toml.Unmarshal(content, &cfg); err != nil {
		return nil, indexererr.New(indexererr.KindConfig, errors.Wrap(err, "parse config"))
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, indexererr.New(indexererr.KindConfig, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DBPoolSize <= 0 {
		c.DBPoolSize = 5
	}
	if c.IdlePollInterval <= 0 {
		c.IdlePollInterval = time.Second
	}
	if c.WSReconnectInterval <= 0 {
		c.WSReconnectInterval = 3 * time.Second
	}
}

// Validate checks the required fields are present (spec §6: everything
// but tron_account_lock_hash/sentry_* is required).
func (c *Config) Validate() error {
	if c.L2SudtTypeScriptHash == (HexHash{}) {
		return fmt.Errorf("l2_sudt_type_script_hash is required")
	}
	if c.PolyjuiceTypeScriptHash == (HexHash{}) {
		return fmt.Errorf("polyjuice_type_script_hash is required")
	}
	if c.RollupTypeHash == (HexHash{}) {
		return fmt.Errorf("rollup_type_hash is required")
	}
	if c.EthAccountLockHash == (HexHash{}) {
		return fmt.Errorf("eth_account_lock_hash is required")
	}
	if c.GodwokenRPCURL == "" {
		return fmt.Errorf("godwoken_rpc_url is required")
	}
	if c.WSRPCURL == "" {
		return fmt.Errorf("ws_rpc_url is required")
	}
	if c.PGURL == "" {
		return fmt.Errorf("pg_url is required")
	}
	if c.ChainID == 0 {
		return fmt.Errorf("chain_id is required")
	}
	return nil
}

// String renders the config for startup logging, mirroring the original
// Rust Display impl (crates/indexer/src/config.rs).
func (c *Config) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "IndexerConfig { l2_sudt_type_script_hash: 0x%x, ", c.L2SudtTypeScriptHash)
	fmt.Fprintf(&b, "polyjuice_type_script_hash: 0x%x, ", c.PolyjuiceTypeScriptHash)
	fmt.Fprintf(&b, "rollup_type_hash: 0x%x, ", c.RollupTypeHash)
	fmt.Fprintf(&b, "eth_account_lock_hash: 0x%x, ", c.EthAccountLockHash)
	if c.TronAccountLockHash != nil {
		fmt.Fprintf(&b, "tron_account_lock_hash: 0x%x, ", *c.TronAccountLockHash)
	} else {
		b.WriteString("tron_account_lock_hash: null, ")
	}
	fmt.Fprintf(&b, "godwoken_rpc_url: %s, ", c.GodwokenRPCURL)
	fmt.Fprintf(&b, "ws_rpc_url: %s, ", c.WSRPCURL)
	fmt.Fprintf(&b, "pg_url: %s, ", redactURL(c.PGURL))
	fmt.Fprintf(&b, "chain_id: %d }", c.ChainID)
	return b.String()
}

// redactURL strips user credentials before a connection string reaches a
// log line.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = url.UserPassword("redacted", "redacted")
	return u.String()
}
