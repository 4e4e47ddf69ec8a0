package engine

import (
	"github.com/holiman/uint256"

	"github.com/hxuan190/omnipool-engine/internal/adapters/persistence"
	"github.com/hxuan190/omnipool-engine/internal/domain"
	"github.com/hxuan190/omnipool-engine/internal/executor"
	"github.com/hxuan190/omnipool-engine/internal/intent"
	"github.com/hxuan190/omnipool-engine/internal/metrics"
)

// SubmitIntent validates and queues a new intent for the next solver run.
func (svc *Service) SubmitIntent(sub intent.Submission) (*domain.Intent, error) {
	in, err := svc.store.Submit(sub, svc.now())
	if err != nil {
		metrics.IntentsSubmitted.WithLabelValues(sub.Swap.Type.String(), "rejected").Inc()
		return nil, err
	}
	metrics.IntentsSubmitted.WithLabelValues(sub.Swap.Type.String(), "accepted").Inc()
	metrics.IntentsPending.Set(float64(svc.store.Len()))

	if svc.storage != nil {
		svc.pendingMu.Lock()
		svc.pendingIntents = append(svc.pendingIntents, in.Clone())
		svc.pendingMu.Unlock()
	}

	svc.logger.Debug().
		Str("intent", in.ID.String()).
		Str("who", in.Who).
		Uint32("asset_in", uint32(in.Swap.AssetIn)).
		Uint32("asset_out", uint32(in.Swap.AssetOut)).
		Str("type", in.Swap.Type.String()).
		Msg("[EngineService] intent submitted")
	return in, nil
}

// CancelIntent removes a pending intent owned by who.
func (svc *Service) CancelIntent(id domain.IntentID, who string) error {
	in, ok := svc.store.Get(id)
	if !ok {
		return ErrIntentNotFound
	}
	if in.Who != who {
		return ErrNotOwner
	}
	if !svc.store.Remove(id) {
		return ErrIntentNotFound
	}
	metrics.IntentsPending.Set(float64(svc.store.Len()))

	if svc.storage != nil {
		svc.flushIntents()
		if err := svc.storage.SaveIntents([]*domain.Intent{in}, persistence.IntentCancelled, svc.now()); err != nil {
			svc.logger.Error().Err(err).Str("intent", id.String()).Msg("[EngineService] failed to persist cancellation")
		}
	}
	return nil
}

func (svc *Service) Intent(id domain.IntentID) (*domain.Intent, bool) {
	return svc.store.Get(id)
}

// Intents returns every stored intent, optionally only those of who.
func (svc *Service) Intents(who string) []*domain.Intent {
	all := svc.store.All()
	if who == "" {
		return all
	}
	out := make([]*domain.Intent, 0, len(all))
	for _, in := range all {
		if in.Who == who {
			out = append(out, in)
		}
	}
	return out
}

// Quote prices a trade against the current state, caching by state version.
func (svc *Service) Quote(kind domain.TradeKind, in, out domain.AssetID, amount *uint256.Int) (*domain.QuoteResult, error) {
	key := quoteKey{version: svc.exec.Version(), kind: kind, in: in, out: out, amount: amount.Dec()}
	if q, ok := svc.quotes.Get(key); ok {
		metrics.QuoteCacheHits.Inc()
		metrics.QuoteRequests.WithLabelValues(kind.String(), "ok").Inc()
		return q, nil
	}
	metrics.QuoteCacheMisses.Inc()

	q, err := svc.exec.Quote(kind, in, out, amount)
	if err != nil {
		metrics.QuoteRequests.WithLabelValues(kind.String(), "error").Inc()
		return nil, err
	}
	svc.quotes.Set(key, q)
	metrics.QuoteCacheSize.Set(float64(svc.quotes.Size()))
	metrics.QuoteRequests.WithLabelValues(kind.String(), "ok").Inc()
	return q, nil
}

func (svc *Service) Assets(filter []domain.AssetID) []executor.AssetSnapshot {
	return svc.exec.Assets(filter)
}

func (svc *Service) Asset(id domain.AssetID) (*domain.AssetState, bool) {
	return svc.exec.Asset(id)
}

// Snapshot returns the pool state and the pending intents, as handed to
// external solvers.
func (svc *Service) Snapshot() *domain.Snapshot {
	snap := svc.exec.Snapshot()
	snap.Intents = svc.store.Pending(svc.now())
	return snap
}

func (svc *Service) AddAsset(a *domain.AssetState) error {
	err := svc.exec.AddAsset(a)
	svc.afterLiquidity("add_asset", err)
	if err == nil {
		metrics.AssetCount.Set(float64(len(svc.exec.Assets(nil))))
	}
	return err
}

func (svc *Service) SetTradability(id domain.AssetID, flags domain.Tradability) error {
	err := svc.exec.SetTradability(id, flags)
	svc.afterLiquidity("set_tradability", err)
	return err
}

func (svc *Service) AddLiquidity(owner string, id domain.AssetID, amount *uint256.Int) (*domain.Position, error) {
	p, err := svc.exec.AddLiquidity(owner, id, amount)
	svc.afterLiquidity("add_liquidity", err)
	return p, err
}

func (svc *Service) RemoveLiquidity(positionID uint64, shares *uint256.Int) (*executor.Withdrawal, error) {
	w, err := svc.exec.RemoveLiquidity(positionID, shares)
	svc.afterLiquidity("remove_liquidity", err)
	return w, err
}

func (svc *Service) Position(id uint64) (*domain.Position, bool) {
	return svc.exec.Position(id)
}

func (svc *Service) afterLiquidity(op string, err error) {
	if err != nil {
		metrics.LiquidityOps.WithLabelValues(op, "error").Inc()
		return
	}
	metrics.LiquidityOps.WithLabelValues(op, "ok").Inc()
	svc.dirty.Store(true)
}
