// Package params loads the node's runtime configuration, spec.md §6
// "Configuration (environment)", mirroring the teacher's config loading
// idiom (flags/env parsed into a plain struct) and optionally overlaid by a
// TOML file via github.com/BurntSushi/toml for operators who prefer a file
// to a long environment-variable list. Environment variables always win.
package params

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/aitbc-network/chain-node/log"
)

var configLog = log.New("params")

// Config is the full set of tunables of spec.md §6, with the teacher-idiom
// of explicit fields and defaults rather than a dynamic dict.
type Config struct {
	ChainID    string `toml:"chain_id"`
	DataDir    string `toml:"data_dir"`
	ProposerID string `toml:"proposer_id"`

	RPCBindHost string `toml:"rpc_bind_host"`
	RPCBindPort int    `toml:"rpc_bind_port"`

	BlockTimeSeconds  int   `toml:"block_time_seconds"`
	MaxBlockSizeBytes int   `toml:"max_block_size_bytes"`
	MaxTxsPerBlock    int   `toml:"max_txs_per_block"`
	MinFee            uint64 `toml:"min_fee"`

	MempoolBackend string `toml:"mempool_backend"` // "memory" or "database"
	MempoolMaxSize int    `toml:"mempool_max_size"`

	CircuitBreakerThreshold int `toml:"circuit_breaker_threshold"`
	CircuitBreakerTimeout   int `toml:"circuit_breaker_timeout"` // seconds

	TrustedProposers       []string `toml:"trusted_proposers"`
	MaxReorgDepth          int      `toml:"max_reorg_depth"`
	SyncValidateSignatures bool     `toml:"sync_validate_signatures"`

	GossipBackend      string `toml:"gossip_backend"` // "memory" or "broadcast"
	GossipBroadcastURL string `toml:"gossip_broadcast_url"`

	MetricsBindHost string `toml:"metrics_bind_host"`
	MetricsBindPort int    `toml:"metrics_bind_port"`
}

// Default returns the same baseline values as the original's ChainSettings
// class defaults.
func Default() *Config {
	return &Config{
		ChainID:                 "ait-devnet",
		DataDir:                 "./data/chain.db",
		ProposerID:              "ait-devnet-proposer",
		RPCBindHost:             "127.0.0.1",
		RPCBindPort:             8080,
		BlockTimeSeconds:        2,
		MaxBlockSizeBytes:       1_000_000,
		MaxTxsPerBlock:          500,
		MinFee:                  0,
		MempoolBackend:          "memory",
		MempoolMaxSize:          10_000,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   30,
		MaxReorgDepth:           10,
		SyncValidateSignatures:  true,
		GossipBackend:           "memory",
		MetricsBindHost:         "127.0.0.1",
		MetricsBindPort:         9090,
	}
}

// Load builds a Config starting from Default(), overlaying tomlPath if
// non-empty, then overlaying any set environment variables — env always
// wins, matching twelve-factor precedent.
func Load(tomlPath string) (*Config, error) {
	cfg := Default()

	if tomlPath != "" {
		if _, err := toml.DecodeFile(tomlPath, cfg); err != nil {
			return nil, err
		}
		configLog.Info("loaded config overlay", "path", tomlPath)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	str(&cfg.ChainID, "CHAIN_ID")
	str(&cfg.DataDir, "DB_PATH")
	str(&cfg.ProposerID, "PROPOSER_ID")
	str(&cfg.RPCBindHost, "RPC_BIND_HOST")
	intVal(&cfg.RPCBindPort, "RPC_BIND_PORT")
	intVal(&cfg.BlockTimeSeconds, "BLOCK_TIME_SECONDS")
	intVal(&cfg.MaxBlockSizeBytes, "MAX_BLOCK_SIZE_BYTES")
	intVal(&cfg.MaxTxsPerBlock, "MAX_TXS_PER_BLOCK")
	uintVal(&cfg.MinFee, "MIN_FEE")
	str(&cfg.MempoolBackend, "MEMPOOL_BACKEND")
	intVal(&cfg.MempoolMaxSize, "MEMPOOL_MAX_SIZE")
	intVal(&cfg.CircuitBreakerThreshold, "CIRCUIT_BREAKER_THRESHOLD")
	intVal(&cfg.CircuitBreakerTimeout, "CIRCUIT_BREAKER_TIMEOUT")
	intVal(&cfg.MaxReorgDepth, "MAX_REORG_DEPTH")
	boolVal(&cfg.SyncValidateSignatures, "SYNC_VALIDATE_SIGNATURES")
	str(&cfg.GossipBackend, "GOSSIP_BACKEND")
	str(&cfg.GossipBroadcastURL, "GOSSIP_BROADCAST_URL")
	str(&cfg.MetricsBindHost, "METRICS_BIND_HOST")
	intVal(&cfg.MetricsBindPort, "METRICS_BIND_PORT")

	if v, ok := os.LookupEnv("TRUSTED_PROPOSERS"); ok {
		cfg.TrustedProposers = splitNonEmpty(v)
	}
}

func str(dst *string, env string) {
	if v, ok := os.LookupEnv(env); ok {
		*dst = v
	}
}

func intVal(dst *int, env string) {
	if v, ok := os.LookupEnv(env); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		} else {
			configLog.Warn("ignoring malformed int env var", "env", env, "value", v)
		}
	}
}

func uintVal(dst *uint64, env string) {
	if v, ok := os.LookupEnv(env); ok {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		} else {
			configLog.Warn("ignoring malformed uint env var", "env", env, "value", v)
		}
	}
}

func boolVal(dst *bool, env string) {
	if v, ok := os.LookupEnv(env); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		} else {
			configLog.Warn("ignoring malformed bool env var", "env", env, "value", v)
		}
	}
}

func splitNonEmpty(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
