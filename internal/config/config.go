package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/andrew-solarstorm/go-packages/common"
)

type ServerEnv = string

var (
	DevEnv     ServerEnv = "dev"
	StagingEnv ServerEnv = "staging"
	ProdEnv    ServerEnv = "prod"
)

const (
	GENERAL_CONFIG_KEY = "general-config"
	ENGINE_CONFIG_KEY  = "engine-config"
	SOLVER_CONFIG_KEY  = "solver-config"
	FEE_CONFIG_KEY     = "fee-config"
)

type GeneralConfig struct {
	HTTPPort string
	HTTPHost string
	Env      string
	LogLevel string

	// RateLimit is the per-IP request rate per second; RateBurst its burst.
	RateLimit int
	RateBurst int
	// AdminToken guards the admin API. Empty disables the admin routes.
	AdminToken string
}

func (gc *GeneralConfig) Key() string {
	return GENERAL_CONFIG_KEY
}

func (gc *GeneralConfig) Load() error {
	gc.HTTPPort = common.GetEnvOrDefault("HTTP_PORT", "8080")
	gc.HTTPHost = common.GetEnvOrDefault("HTTP_HOST", "localhost")
	gc.Env = common.GetEnvOrDefault("ENV", "dev")
	gc.LogLevel = common.GetEnvOrDefault("LOG_LEVEL", "INFO")
	gc.RateLimit = common.GetEnvOrDefaultInt("HTTP_RATE_LIMIT", 10)
	gc.RateBurst = common.GetEnvOrDefaultInt("HTTP_RATE_BURST", 20)
	gc.AdminToken = common.GetEnvOrDefault("ADMIN_TOKEN", "")
	return gc.Validate()
}

func (gc *GeneralConfig) Validate() error {
	if gc.HTTPPort == "" || gc.HTTPHost == "" || gc.Env == "" {
		return errors.New("invalid server config")
	}
	if gc.RateLimit <= 0 || gc.RateBurst <= 0 {
		return errors.New("invalid rate limit")
	}
	return nil
}

func envUint64(key string, def uint64) (uint64, error) {
	raw := common.GetEnvOrDefault(key, strconv.FormatUint(def, 10))
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	raw := common.GetEnvOrDefault(key, def.String())
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}
