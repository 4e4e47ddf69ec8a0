package solver

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hxuan190/omnipool-engine/internal/domain"
	"github.com/hxuan190/omnipool-engine/internal/intent"
	"github.com/hxuan190/omnipool-engine/internal/math/fixed"
)

const (
	DefaultTolerance     uint64 = 1
	DefaultMaxIterations        = 128
)

// OmnipoolSolver nets intents against each other and routes the rest
// through the omnipool in first-seen order.
type OmnipoolSolver struct {
	Name          string
	HubAsset      domain.AssetID
	Tolerance     uint64
	MaxIterations int
	// Batch sells the leftovers of ExactIn intents on the same direction as
	// one pool trade. When unset every intent gets its own trade.
	Batch bool
	// Burn is the share of the protocol fee burned on every trade.
	Burn fixed.Permill
	// Now returns the current time in unix milliseconds.
	Now func() uint64
}

func NewOmnipoolSolver(name string) *OmnipoolSolver {
	return &OmnipoolSolver{
		Name:          name,
		HubAsset:      domain.HubAssetID,
		Tolerance:     DefaultTolerance,
		MaxIterations: DefaultMaxIterations,
		Batch:         true,
		Now:           func() uint64 { return uint64(time.Now().UnixMilli()) },
	}
}

// Solve builds a solution for the batch. Intents that cannot be traded, or
// whose resolution fails validation, are dropped and the batch is solved
// again without them.
func (s *OmnipoolSolver) Solve(ctx context.Context, intents []*domain.Intent, assets []*domain.AssetState) (*domain.Solution, error) {
	now := s.Now()
	base := NewPool(assets, s.HubAsset, s.Burn)

	batch := s.eligible(base, intents, now)
	for len(batch) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resolved, trades, dropped, err := s.attempt(ctx, base.Clone(), batch, now)
		if err != nil {
			return nil, err
		}
		if dropped == nil {
			return s.solution(resolved, trades, batch, assets)
		}

		log.Debug().Str("solver", s.Name).Str("intent", dropped.String()).Msg("[OmnipoolSolver] dropping intent and re-solving")
		batch = without(batch, *dropped)
	}
	return nil, ErrNoSolution
}

// eligible drops expired intents and intents the pool cannot trade, and
// orders the rest first-seen first.
func (s *OmnipoolSolver) eligible(pool *Pool, intents []*domain.Intent, now uint64) []*domain.Intent {
	out := make([]*domain.Intent, 0, len(intents))
	for _, in := range intents {
		if intent.Expired(in, now) {
			continue
		}
		if err := pool.CanTrade(in.Swap.AssetIn, in.Swap.AssetOut); err != nil {
			continue
		}
		if in.Swap.AmountIn == nil || in.Swap.AmountIn.IsZero() || in.Swap.AmountOut == nil || in.Swap.AmountOut.IsZero() {
			continue
		}
		out = append(out, in)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID.Seq < out[j].ID.Seq })
	return out
}

// attempt solves one batch on pool. When an intent has to be dropped it is
// returned and the partial result must be discarded.
func (s *OmnipoolSolver) attempt(
	ctx context.Context,
	pool *Pool,
	batch []*domain.Intent,
	now uint64,
) ([]domain.ResolvedIntent, []domain.TradeInstruction, *domain.IntentID, error) {
	netted := netIntents(pool, batch)

	residuals := make([]residual, len(batch))
	for i, in := range batch {
		r := residual{intent: in, matchedIn: fixed.Zero(), matchedOut: fixed.Zero()}
		if f, ok := netted[in.ID]; ok {
			r.matchedIn, r.matchedOut = f.in, f.out
		}
		residuals[i] = r
	}

	var trades []domain.TradeInstruction
	routed := make(map[domain.IntentID]*fill)
	for _, g := range s.groups(residuals) {
		ts, dropped, err := s.routeGroup(ctx, pool, g, routed)
		if err != nil {
			return nil, nil, nil, err
		}
		if dropped != nil {
			return nil, nil, dropped, nil
		}
		trades = append(trades, ts...)
	}

	var resolved []domain.ResolvedIntent
	for _, r := range residuals {
		in := r.intent
		amountIn, amountOut := fixed.Clone(r.matchedIn), fixed.Clone(r.matchedOut)
		if f, ok := routed[in.ID]; ok {
			amountIn = fixed.SaturatingAdd(amountIn, f.in)
			amountOut = fixed.SaturatingAdd(amountOut, f.out)
		}
		if amountIn.IsZero() || amountOut.IsZero() {
			if r.matchedIn.IsZero() {
				continue
			}
			// netted against another intent but left empty
			id := in.ID
			return nil, nil, &id, nil
		}

		res := domain.ResolvedIntent{ID: in.ID, AmountIn: amountIn, AmountOut: amountOut}
		if err := intent.ValidateResolved(in, res, now); err != nil {
			id := in.ID
			return nil, nil, &id, nil
		}
		resolved = append(resolved, res)
	}
	return resolved, trades, nil, nil
}

func (s *OmnipoolSolver) solution(
	resolved []domain.ResolvedIntent,
	trades []domain.TradeInstruction,
	batch []*domain.Intent,
	assets []*domain.AssetState,
) (*domain.Solution, error) {
	if len(resolved) == 0 {
		return nil, ErrNoSolution
	}
	byID := make(map[domain.IntentID]*domain.Intent, len(batch))
	for _, in := range batch {
		byID[in.ID] = in
	}
	assetMap := make(map[domain.AssetID]*domain.AssetState, len(assets))
	for _, a := range assets {
		assetMap[a.AssetID] = a
	}
	return &domain.Solution{
		Proposer:        s.Name,
		ResolvedIntents: resolved,
		Trades:          trades,
		Score:           intent.Score(resolved, byID, assetMap, s.HubAsset),
	}, nil
}

func without(batch []*domain.Intent, id domain.IntentID) []*domain.Intent {
	out := make([]*domain.Intent, 0, len(batch))
	for _, in := range batch {
		if in.ID != id {
			out = append(out, in)
		}
	}
	return out
}

func (s *OmnipoolSolver) String() string {
	return fmt.Sprintf("OmnipoolSolver(%s, tol=%d, iter=%d, batch=%t)", s.Name, s.Tolerance, s.MaxIterations, s.Batch)
}
