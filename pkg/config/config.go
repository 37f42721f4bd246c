// Package config loads and validates the §6 environment-variable
// surface into a single Config, failing fast with errkind.ConfigInvalid
// on any violation rather than degrading silently.
package config

import (
	"time"

	"github.com/asymmetric-research/scramjet/internal/errkind"
	"github.com/spf13/viper"
)

const (
	defaultRpcPollInterval    = 400 * time.Millisecond
	floorPollInterval         = 50 * time.Millisecond
	defaultScoutInterval      = time.Second
	floorScoutInterval        = 50 * time.Millisecond
	defaultScoutLookahead     = 10
	defaultMonitorInterval    = time.Second
	defaultQuicKeepAlive      = 5 * time.Second
	defaultQuicIdleTimeout    = 10 * time.Second
	defaultComputeUnitLimit   = 200_000
	defaultBlocklistRefresh   = 300 * time.Second
	defaultGeyserReconnect    = time.Second
	defaultGeyserMaxReconnect = 10 * time.Second
	defaultHttpTimeout        = 10 * time.Second
	defaultNodeMapTTL         = 45 * time.Second
)

// Config is the fully-validated runtime configuration for the core.
type Config struct {
	RpcUrl      string
	HttpTimeout time.Duration

	// GeyserUrl selects streaming Clock mode when non-empty; else polling.
	GeyserUrl               string
	RpcPollInterval         time.Duration
	GeyserReconnectDelay    time.Duration
	GeyserMaxReconnectDelay time.Duration

	ScoutInterval       time.Duration
	ScoutLookaheadSlots uint64

	MonitorInterval time.Duration

	QuicKeepAlive   time.Duration
	QuicIdleTimeout time.Duration

	DefaultComputeUnitLimit uint32
	DefaultPriorityFee      uint64

	BlocklistFile         string
	BlocklistUrl          string
	BlocklistRefreshEvery time.Duration

	// CartographerNodeMapTTL is the independent refresh cadence for the
	// cluster node map (spec §4.1 recommends 30-60s).
	CartographerNodeMapTTL time.Duration

	// IdentitySeedFile points at a raw 32-byte Ed25519 seed; if empty, an
	// ephemeral identity is generated at startup. Full keypair-file I/O
	// (encrypted, JSON-array formats, etc.) is an external concern per
	// §1 Non-goals -- this is the minimal hook the demo CLI needs.
	IdentitySeedFile string
}

// Load reads the environment into a Config and validates it.
// Environment variable names match §6 exactly.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()

	v.SetDefault("RPC_POLL_INTERVAL_MS", defaultRpcPollInterval.Milliseconds())
	v.SetDefault("SCOUT_INTERVAL_MS", defaultScoutInterval.Milliseconds())
	v.SetDefault("SCOUT_LOOKAHEAD_SLOTS", defaultScoutLookahead)
	v.SetDefault("MONITOR_INTERVAL_MS", defaultMonitorInterval.Milliseconds())
	v.SetDefault("QUIC_KEEP_ALIVE_SECS", int64(defaultQuicKeepAlive.Seconds()))
	v.SetDefault("QUIC_IDLE_TIMEOUT_SECS", int64(defaultQuicIdleTimeout.Seconds()))
	v.SetDefault("DEFAULT_COMPUTE_UNIT_LIMIT", defaultComputeUnitLimit)
	v.SetDefault("DEFAULT_PRIORITY_FEE", 0)
	v.SetDefault("SCRAMJET_BLOCKLIST_REFRESH_SECS", int64(defaultBlocklistRefresh.Seconds()))
	v.SetDefault("GEYSER_RECONNECT_DELAY_MS", defaultGeyserReconnect.Milliseconds())
	v.SetDefault("GEYSER_MAX_RECONNECT_DELAY_MS", defaultGeyserMaxReconnect.Milliseconds())
	v.SetDefault("CARTOGRAPHER_NODE_MAP_TTL_SECS", int64(defaultNodeMapTTL.Seconds()))

	cfg := &Config{
		RpcUrl:                  v.GetString("SOLANA_RPC_URL"),
		HttpTimeout:             defaultHttpTimeout,
		GeyserUrl:               v.GetString("GEYSER_URL"),
		RpcPollInterval:         time.Duration(v.GetInt64("RPC_POLL_INTERVAL_MS")) * time.Millisecond,
		GeyserReconnectDelay:    time.Duration(v.GetInt64("GEYSER_RECONNECT_DELAY_MS")) * time.Millisecond,
		GeyserMaxReconnectDelay: time.Duration(v.GetInt64("GEYSER_MAX_RECONNECT_DELAY_MS")) * time.Millisecond,
		ScoutInterval:           time.Duration(v.GetInt64("SCOUT_INTERVAL_MS")) * time.Millisecond,
		ScoutLookaheadSlots:     v.GetUint64("SCOUT_LOOKAHEAD_SLOTS"),
		MonitorInterval:         time.Duration(v.GetInt64("MONITOR_INTERVAL_MS")) * time.Millisecond,
		QuicKeepAlive:           time.Duration(v.GetInt64("QUIC_KEEP_ALIVE_SECS")) * time.Second,
		QuicIdleTimeout:         time.Duration(v.GetInt64("QUIC_IDLE_TIMEOUT_SECS")) * time.Second,
		DefaultComputeUnitLimit: uint32(v.GetUint64("DEFAULT_COMPUTE_UNIT_LIMIT")),
		DefaultPriorityFee:      v.GetUint64("DEFAULT_PRIORITY_FEE"),
		BlocklistFile:           v.GetString("SCRAMJET_BLOCKLIST_FILE"),
		BlocklistUrl:            v.GetString("SCRAMJET_BLOCKLIST_URL"),
		BlocklistRefreshEvery:   time.Duration(v.GetInt64("SCRAMJET_BLOCKLIST_REFRESH_SECS")) * time.Second,
		CartographerNodeMapTTL:  time.Duration(v.GetInt64("CARTOGRAPHER_NODE_MAP_TTL_SECS")) * time.Second,
		IdentitySeedFile:        v.GetString("SCRAMJET_IDENTITY_FILE"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces the invariants §4.3 and §6 require at load time.
func (c *Config) Validate() error {
	if c.RpcUrl == "" {
		return errkind.Mark(errkind.ConfigInvalid, nil, "SOLANA_RPC_URL must be set")
	}
	if c.QuicKeepAlive >= c.QuicIdleTimeout {
		return errkind.Mark(
			errkind.ConfigInvalid, nil,
			"QUIC_KEEP_ALIVE_SECS (%s) must be strictly less than QUIC_IDLE_TIMEOUT_SECS (%s)",
			c.QuicKeepAlive, c.QuicIdleTimeout,
		)
	}
	if c.RpcPollInterval < floorPollInterval {
		return errkind.Mark(
			errkind.ConfigInvalid, nil,
			"RPC_POLL_INTERVAL_MS (%s) is below the floor of %s", c.RpcPollInterval, floorPollInterval,
		)
	}
	if c.ScoutInterval < floorScoutInterval {
		return errkind.Mark(
			errkind.ConfigInvalid, nil,
			"SCOUT_INTERVAL_MS (%s) is below the floor of %s", c.ScoutInterval, floorScoutInterval,
		)
	}
	if c.DefaultComputeUnitLimit == 0 {
		return errkind.Mark(errkind.ConfigInvalid, nil, "DEFAULT_COMPUTE_UNIT_LIMIT must be > 0")
	}
	if c.ScoutLookaheadSlots == 0 {
		return errkind.Mark(errkind.ConfigInvalid, nil, "SCOUT_LOOKAHEAD_SLOTS must be > 0")
	}
	return nil
}

// Streaming reports whether GEYSER_URL selects the streaming Clock mode.
func (c *Config) Streaming() bool {
	return c.GeyserUrl != ""
}
