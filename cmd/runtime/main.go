package main

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/omnipool-engine/internal/common"
	"github.com/hxuan190/omnipool-engine/internal/config"
	"github.com/hxuan190/omnipool-engine/internal/engine"
	"github.com/hxuan190/omnipool-engine/internal/http"
)

// @title Omnipool Engine API
// @version 1.0-beta
// @description Intent based trading engine over a single hub-asset liquidity pool.
// @description
// @description ## - Features
// @description - **Omnipool**: every asset is paired with the hub asset in one pool
// @description - **Intents**: submit ExactIn or ExactOut swaps with limits and deadlines
// @description - **Solver rounds**: intents are netted against each other and the residual is routed through the pool once per round
// @description - **Open solving**: external solvers read the snapshot and propose scored solutions
// @description - **Dynamic fees**: asset and protocol fees follow the oracle volume imbalance
// @description
// @description ## - Usage Tips
// @description - Amounts are in smallest units unless `human=true` is set
// @description - The hub asset has 12 decimals
// @description - Intent ids are decimal strings: deadline << 64 | sequence
// @description - Admin routes need `Authorization: Bearer <ADMIN_TOKEN>`
// @BasePath /
// @schemes https http
// @tag.name assets
// @tag.description Pool assets, reserves and hub prices
// @tag.name intents
// @tag.description Submit, inspect and cancel swap intents
// @tag.name quote
// @tag.description Price a single pool trade at the current state
// @tag.name solutions
// @tag.description Solver snapshot and solution proposals
// @tag.name rounds
// @tag.description Round status
// @tag.name admin
// @tag.description Asset listing, liquidity and manual round control

func setupLogger() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	level, err := zerolog.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL")))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if os.Getenv("ENV") != config.ProdEnv {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func main() {
	// load env
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("no .env file, using process environment")
	}
	setupLogger()

	common.InitRuntime()

	// di container config
	conf := container.NewConf(
		&config.GeneralConfig{},
		&config.EngineConfig{},
		&config.SolverConfig{},
		&config.FeeConfig{},
	)

	// di container
	dic, err := container.New(
		// config
		conf,

		// services
		&engine.Service{},
		&http.HTTPService{},
	)
	if err != nil {
		log.Error().Err(err).Msg("failed to create di container")
		return
	}

	// Run blocks until SIGINT/SIGTERM
	if err := dic.Run(); err != nil {
		log.Error().Err(err).Msg("failed to run di container")
		return
	}

	log.Info().Msg("Shutting down services...")
	if err := dic.Stop(); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
	log.Info().Msg("Shutdown complete")
}
