package config

import (
	"errors"
	"time"

	"github.com/andrew-solarstorm/go-packages/common"
)

type EngineConfig struct {
	// RoundInterval is how often a round is closed.
	// Default: 6s
	RoundInterval time.Duration

	// DBPath is the path to the BoltDB file for state persistence.
	// Default: "./data/omnipool.db"
	DBPath string

	// PersistenceEnabled controls whether state is persisted to disk.
	// Default: true
	PersistenceEnabled bool

	// PersistInterval is how often pending writes are flushed.
	// Default: 5s
	PersistInterval time.Duration

	// SnapshotPath seeds the pool from a JSON snapshot when the database is
	// empty. Optional.
	SnapshotPath string

	// MaxDeadline bounds how far in the future an intent deadline may be.
	// Default: 24h
	MaxDeadline time.Duration

	// HubAssetID is the id of the hub asset.
	// Default: 1
	HubAssetID uint32

	// BurnPermill is the share of the protocol fee that is burned.
	// Default: 0
	BurnPermill uint32

	// TradeTolerance is the accepted rounding difference when replaying trades.
	// Default: 1
	TradeTolerance uint64

	// MinWithdrawalFee is the floor of the liquidity withdrawal fee in permill.
	// Default: 100 (0.01%)
	MinWithdrawalFee uint32

	// OracleWindow is the volume oracle EMA period in rounds.
	// Default: 10
	OracleWindow uint64

	// QuoteCacheSize bounds the quote cache.
	// Default: 4096
	QuoteCacheSize int
}

func (c *EngineConfig) Key() string {
	return ENGINE_CONFIG_KEY
}

func (c *EngineConfig) Load() error {
	var err error
	if c.RoundInterval, err = envDuration("ENGINE_ROUND_INTERVAL", 6*time.Second); err != nil {
		return err
	}
	c.DBPath = common.GetEnvOrDefault("ENGINE_DB_PATH", "./data/omnipool.db")
	c.PersistenceEnabled = common.GetEnvOrDefault("ENGINE_PERSISTENCE_ENABLED", "true") == "true"
	if c.PersistInterval, err = envDuration("ENGINE_PERSIST_INTERVAL", 5*time.Second); err != nil {
		return err
	}
	c.SnapshotPath = common.GetEnvOrDefault("ENGINE_SNAPSHOT_PATH", "")
	if c.MaxDeadline, err = envDuration("ENGINE_MAX_DEADLINE", 24*time.Hour); err != nil {
		return err
	}
	c.HubAssetID = uint32(common.GetEnvOrDefaultInt("ENGINE_HUB_ASSET_ID", 1))
	c.BurnPermill = uint32(common.GetEnvOrDefaultInt("ENGINE_BURN_PERMILL", 0))
	if c.TradeTolerance, err = envUint64("ENGINE_TRADE_TOLERANCE", 1); err != nil {
		return err
	}
	c.MinWithdrawalFee = uint32(common.GetEnvOrDefaultInt("ENGINE_MIN_WITHDRAWAL_FEE", 100))
	if c.OracleWindow, err = envUint64("ENGINE_ORACLE_WINDOW", 10); err != nil {
		return err
	}
	c.QuoteCacheSize = common.GetEnvOrDefaultInt("ENGINE_QUOTE_CACHE_SIZE", 4096)
	return c.Validate()
}

func (c *EngineConfig) Validate() error {
	if c.RoundInterval <= 0 {
		return errors.New("round interval must be positive")
	}
	if c.PersistenceEnabled && c.DBPath == "" {
		return errors.New("db path required when persistence is enabled")
	}
	if c.PersistenceEnabled && c.PersistInterval <= 0 {
		return errors.New("persist interval must be positive")
	}
	if c.BurnPermill > 1_000_000 || c.MinWithdrawalFee > 1_000_000 {
		return errors.New("permill values must not exceed 1000000")
	}
	if c.QuoteCacheSize <= 0 {
		return errors.New("quote cache size must be positive")
	}
	return nil
}
