// Package engine wires the omnipool executor, the intent store and the
// built-in solver into one service that closes a round on every tick.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	container "github.com/thehyperflames/dicontainer-go"
	"golang.org/x/sync/errgroup"

	"github.com/hxuan190/omnipool-engine/internal/adapters/persistence"
	"github.com/hxuan190/omnipool-engine/internal/config"
	"github.com/hxuan190/omnipool-engine/internal/domain"
	"github.com/hxuan190/omnipool-engine/internal/executor"
	"github.com/hxuan190/omnipool-engine/internal/intent"
	"github.com/hxuan190/omnipool-engine/internal/math/fixed"
	"github.com/hxuan190/omnipool-engine/internal/metrics"
	"github.com/hxuan190/omnipool-engine/internal/oracle"
	"github.com/hxuan190/omnipool-engine/internal/services"
	"github.com/hxuan190/omnipool-engine/internal/solver"
)

const ENGINE_SERVICE = "engine-service"

var (
	ErrIntentNotFound = errors.New("intent not found")
	ErrNotOwner       = errors.New("intent belongs to another account")
)

type Service struct {
	container.BaseDIInstance
	logger *services.ServiceLogger

	cfg       *config.EngineConfig
	solverCfg *config.SolverConfig
	feeCfg    *config.FeeConfig

	exec      *executor.Executor
	store     *intent.Store
	volumes   *oracle.VolumeOracle
	providers []solver.SolutionProvider
	storage   *persistence.Storage
	quotes    *QuoteCache

	// intents submitted since the last flush, written by the persistence loop
	pendingMu      sync.Mutex
	pendingIntents []*domain.Intent
	dirty          atomic.Bool

	// now returns the current time in unix milliseconds.
	now func() uint64

	cancel context.CancelFunc
	group  *errgroup.Group
}

func (svc *Service) ID() string {
	return ENGINE_SERVICE
}

func (svc *Service) Configure(c container.IContainer) error {
	engineCfg := c.GetConfig(config.ENGINE_CONFIG_KEY).(*config.EngineConfig)
	solverCfg := c.GetConfig(config.SOLVER_CONFIG_KEY).(*config.SolverConfig)
	feeCfg := c.GetConfig(config.FEE_CONFIG_KEY).(*config.FeeConfig)
	return svc.setup(engineCfg, solverCfg, feeCfg)
}

// NewService builds a service outside the DI container. now may be nil.
func NewService(cfg *config.EngineConfig, solverCfg *config.SolverConfig, feeCfg *config.FeeConfig, now func() uint64) (*Service, error) {
	svc := &Service{now: now}
	if err := svc.setup(cfg, solverCfg, feeCfg); err != nil {
		return nil, err
	}
	return svc, nil
}

func (svc *Service) setup(cfg *config.EngineConfig, solverCfg *config.SolverConfig, feeCfg *config.FeeConfig) error {
	if svc.logger == nil {
		svc.logger = services.NewServiceLogger(svc)
	}
	if svc.now == nil {
		svc.now = func() uint64 { return uint64(time.Now().UnixMilli()) }
	}
	svc.cfg = cfg
	svc.solverCfg = solverCfg
	svc.feeCfg = feeCfg

	svc.store = intent.NewStore(uint64(cfg.MaxDeadline.Milliseconds()), domain.AssetID(cfg.HubAssetID))
	svc.volumes = oracle.NewVolumeOracle(cfg.OracleWindow)
	svc.quotes = NewQuoteCache(cfg.QuoteCacheSize)

	if cfg.PersistenceEnabled {
		storage, err := persistence.NewStorage(cfg.DBPath)
		if err != nil {
			return err
		}
		svc.storage = storage
	}

	state, err := svc.loadState()
	if err != nil {
		return err
	}

	svc.exec = executor.New(svc.executorConfig(), state, svc.store, svc.volumes)
	svc.exec.Now = svc.now

	omni := solver.NewOmnipoolSolver(solverCfg.Name)
	omni.HubAsset = domain.AssetID(cfg.HubAssetID)
	omni.Burn = fixed.PermillFromParts(cfg.BurnPermill)
	omni.Tolerance = solverCfg.Tolerance
	omni.MaxIterations = solverCfg.MaxIterations
	omni.Now = svc.now
	svc.providers = []solver.SolutionProvider{omni}
	if solverCfg.Sequential {
		sequential := *omni
		sequential.Batch = false
		svc.AddProvider(&sequential)
	}

	metrics.CurrentRound.Set(float64(state.Round))
	metrics.AssetCount.Set(float64(len(state.Assets)))
	metrics.IntentsPending.Set(float64(svc.store.Len()))
	return nil
}

func (svc *Service) executorConfig() executor.Config {
	cfg := executor.DefaultConfig()
	cfg.HubAsset = domain.AssetID(svc.cfg.HubAssetID)
	cfg.Burn = fixed.PermillFromParts(svc.cfg.BurnPermill)
	cfg.TradeTolerance = svc.cfg.TradeTolerance
	cfg.MinWithdrawalFee = fixed.PermillFromParts(svc.cfg.MinWithdrawalFee)
	if svc.feeCfg != nil && svc.feeCfg.Enabled {
		assetFees, protocolFees := svc.feeCfg.Params()
		cfg.AssetFees = &assetFees
		cfg.ProtocolFees = &protocolFees
	}
	return cfg
}

// loadState restores the persisted state, falling back to the configured
// snapshot file and then to an empty pool.
func (svc *Service) loadState() (*executor.State, error) {
	if svc.storage != nil {
		state, ok, err := svc.storage.LoadState()
		if err != nil {
			return nil, err
		}
		if ok {
			intents, err := svc.storage.LoadPendingIntents()
			if err != nil {
				return nil, err
			}
			svc.restoreIntents(intents)
			svc.logger.Info().
				Uint64("round", state.Round).
				Int("assets", len(state.Assets)).
				Int("intents", svc.store.Len()).
				Msg("[EngineService] restored state from storage")
			return state, nil
		}
	}

	if svc.cfg.SnapshotPath == "" {
		svc.logger.Warn().Msg("[EngineService] no stored state and no snapshot, starting with an empty pool")
		return executor.NewState(0, nil), nil
	}

	snap, err := LoadSnapshot(svc.cfg.SnapshotPath)
	if err != nil {
		return nil, err
	}
	svc.restoreIntents(snap.Intents)
	svc.logger.Info().
		Str("path", svc.cfg.SnapshotPath).
		Uint64("round", snap.Round).
		Int("assets", len(snap.Assets)).
		Int("intents", len(snap.Intents)).
		Msg("[EngineService] seeded state from snapshot")

	state := executor.NewState(snap.Round, snap.Assets)
	if svc.storage != nil {
		if err := svc.storage.SaveState(state); err != nil {
			return nil, err
		}
		if err := svc.storage.SaveIntents(snap.Intents, persistence.IntentPending, svc.now()); err != nil {
			return nil, err
		}
	}
	return state, nil
}

func (svc *Service) restoreIntents(intents []*domain.Intent) {
	for _, in := range intents {
		if err := svc.store.Restore(in); err != nil {
			svc.logger.Warn().Err(err).Str("intent", in.ID.String()).Msg("[EngineService] failed to restore intent, skipping")
		}
	}
}

// LoadSnapshot reads a JSON snapshot of assets and intents.
func LoadSnapshot(path string) (*domain.Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var snap domain.Snapshot
	if err := sonic.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", path, err)
	}
	snap.Normalize()
	return &snap, nil
}

func (svc *Service) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	svc.cancel = cancel
	svc.group = g

	g.Go(func() error { return svc.runRounds(gctx) })
	if svc.storage != nil {
		g.Go(func() error { return svc.runPersistence(gctx) })
	}

	svc.logger.Info().
		Dur("round_interval", svc.cfg.RoundInterval).
		Bool("solver", svc.solverCfg.Enabled).
		Int("candidates", len(svc.providers)).
		Bool("dynamic_fees", svc.feeCfg != nil && svc.feeCfg.Enabled).
		Msg("[EngineService] started")
	return nil
}

func (svc *Service) Stop() error {
	if svc.cancel != nil {
		svc.cancel()
		if err := svc.group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			svc.logger.Error().Err(err).Msg("[EngineService] background loop failed")
		}
	}

	if svc.storage == nil {
		return nil
	}
	svc.persist()
	if err := svc.storage.Close(); err != nil {
		svc.logger.Error().Err(err).Msg("[EngineService] failed to close storage")
		return err
	}
	return nil
}

// AddProvider registers an extra solution provider for the built-in solver
// worker. With more than one provider they run concurrently and the best
// scoring solution is proposed. Must be called before Start.
func (svc *Service) AddProvider(p solver.SolutionProvider) {
	svc.providers = append(svc.providers, p)
}

func (svc *Service) provider() solver.SolutionProvider {
	if len(svc.providers) == 1 {
		return svc.providers[0]
	}
	return solver.BestOf(svc.providers...)
}

func (svc *Service) Now() uint64 {
	return svc.now()
}

func (svc *Service) Round() uint64 {
	return svc.exec.Round()
}

func (svc *Service) RoundInterval() time.Duration {
	return svc.cfg.RoundInterval
}

func (svc *Service) HubAsset() domain.AssetID {
	return domain.AssetID(svc.cfg.HubAssetID)
}
