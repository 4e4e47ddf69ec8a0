package engine

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/hxuan190/omnipool-engine/internal/adapters/persistence"
	"github.com/hxuan190/omnipool-engine/internal/domain"
	"github.com/hxuan190/omnipool-engine/internal/executor"
	"github.com/hxuan190/omnipool-engine/internal/intent"
	"github.com/hxuan190/omnipool-engine/internal/metrics"
	"github.com/hxuan190/omnipool-engine/internal/solver"
)

func (svc *Service) runRounds(ctx context.Context) error {
	ticker := time.NewTicker(svc.cfg.RoundInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if svc.solverCfg.Enabled {
				if _, err := svc.SolveAndPropose(ctx); err != nil && !errors.Is(err, solver.ErrNoSolution) {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					svc.logger.Round(svc.exec.Round()).Warn().Err(err).Msg("[EngineService] built-in solver proposal failed")
				}
			}
			if _, err := svc.CloseRound(); err != nil {
				svc.logger.Warn().Err(err).Msg("[EngineService] round close rejected the best proposal")
			}
		}
	}
}

// SolveAndPropose runs the solution providers on the pending intents and
// proposes the result for the open round. It returns the score the executor
// assigned.
func (svc *Service) SolveAndPropose(ctx context.Context) (uint64, error) {
	round := svc.exec.Round()
	pending := svc.store.Pending(svc.now())
	if len(pending) == 0 {
		metrics.SolveOutcomes.WithLabelValues("idle").Inc()
		return 0, solver.ErrNoSolution
	}
	assets := svc.exec.Snapshot().Assets

	ctx, cancel := context.WithTimeout(ctx, svc.solverCfg.Timeout)
	defer cancel()

	start := time.Now()
	sol, err := svc.provider().Solve(ctx, pending, assets)
	metrics.SolveDuration.Observe(time.Since(start).Seconds())
	switch {
	case errors.Is(err, solver.ErrNoSolution):
		metrics.SolveOutcomes.WithLabelValues("no_solution").Inc()
		return 0, err
	case errors.Is(err, context.DeadlineExceeded):
		metrics.SolveOutcomes.WithLabelValues("timeout").Inc()
		return 0, err
	case err != nil:
		metrics.SolveOutcomes.WithLabelValues("error").Inc()
		return 0, err
	}
	metrics.SolveOutcomes.WithLabelValues("solved").Inc()

	svc.logger.Round(round).Debug().
		Int("pending", len(pending)).
		Int("resolved", len(sol.ResolvedIntents)).
		Int("trades", len(sol.Trades)).
		Dur("took", time.Since(start)).
		Msg("[EngineService] solver produced a solution")

	return svc.Propose(svc.solverCfg.Name, sol, round)
}

// Propose forwards a solution to the executor.
func (svc *Service) Propose(who string, sol *domain.Solution, round uint64) (uint64, error) {
	score, err := svc.exec.Propose(who, sol, round)
	if err != nil {
		label := "rejected"
		if reason, ok := intent.ReasonOf(err); ok {
			label = reason.String()
		}
		metrics.Proposals.WithLabelValues(label).Inc()
		svc.logger.Round(round).Debug().Err(err).Str("proposer", who).Msg("[EngineService] proposal rejected")
		return score, err
	}
	metrics.Proposals.WithLabelValues("accepted").Inc()
	return score, nil
}

func (svc *Service) Best() (*domain.Solution, bool) {
	return svc.exec.Best()
}

// CloseRound finalizes the open round and persists the outcome.
func (svc *Service) CloseRound() (*executor.RoundResult, error) {
	// intents must be on disk before the round that resolves them
	svc.flushIntents()

	start := time.Now()
	result, err := svc.exec.Finalize()
	metrics.FinalizeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Rounds.WithLabelValues("rejected").Inc()
		return nil, err
	}

	outcome := "empty"
	if result.Solution != nil {
		outcome = "applied"
		metrics.SolutionScore.Observe(float64(result.Score))
	}
	metrics.Rounds.WithLabelValues(outcome).Inc()
	metrics.IntentsResolved.Add(float64(len(result.Updates)))
	metrics.IntentsExpired.Add(float64(len(result.Expired)))
	metrics.IntentsPending.Set(float64(svc.store.Len()))
	metrics.CurrentRound.Set(float64(svc.exec.Round()))
	for id, entry := range result.Fees {
		label := strconv.FormatUint(uint64(id), 10)
		metrics.AssetFee.WithLabelValues(label).Set(entry.AssetFee.Float64())
		metrics.ProtocolFee.WithLabelValues(label).Set(entry.ProtocolFee.Float64())
	}

	logger := svc.logger.Round(result.Round)
	if svc.storage != nil {
		persistStart := time.Now()
		if err := svc.storage.SaveRound(result, svc.now()); err != nil {
			logger.Error().Err(err).Msg("[EngineService] failed to persist round")
		}
		if err := svc.storage.SaveState(svc.exec.State()); err != nil {
			logger.Error().Err(err).Msg("[EngineService] failed to persist state")
			svc.dirty.Store(true)
		}
		metrics.PersistDuration.Observe(time.Since(persistStart).Seconds())
	}

	ev := logger.Info().
		Str("outcome", outcome).
		Int("resolved", len(result.Updates)).
		Int("expired", len(result.Expired))
	if result.Solution != nil {
		ev = ev.Str("proposer", result.Proposer).Uint64("score", result.Score)
	}
	ev.Msg("[EngineService] round closed")
	return result, nil
}

func (svc *Service) runPersistence(ctx context.Context) error {
	ticker := time.NewTicker(svc.cfg.PersistInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			svc.persist()
		}
	}
}

// persist writes queued intents and, when something changed outside a round
// close, the executor state.
func (svc *Service) persist() {
	svc.flushIntents()
	if !svc.dirty.Swap(false) {
		return
	}
	start := time.Now()
	if err := svc.storage.SaveState(svc.exec.State()); err != nil {
		svc.logger.Error().Err(err).Msg("[EngineService] failed to persist state")
		svc.dirty.Store(true)
		return
	}
	metrics.PersistDuration.Observe(time.Since(start).Seconds())
}

func (svc *Service) flushIntents() {
	if svc.storage == nil {
		return
	}
	svc.pendingMu.Lock()
	if len(svc.pendingIntents) == 0 {
		svc.pendingMu.Unlock()
		return
	}
	intents := svc.pendingIntents
	svc.pendingIntents = nil
	svc.pendingMu.Unlock()

	if err := svc.storage.SaveIntents(intents, persistence.IntentPending, svc.now()); err != nil {
		svc.logger.Error().Err(err).Int("count", len(intents)).Msg("[EngineService] failed to persist intents")
		svc.pendingMu.Lock()
		svc.pendingIntents = append(svc.pendingIntents, intents...)
		svc.pendingMu.Unlock()
		return
	}
	svc.logger.Debug().Int("count", len(intents)).Msg("[EngineService] persisted intents")
}
