package executor

import (
	"github.com/holiman/uint256"

	"github.com/hxuan190/omnipool-engine/internal/domain"
	"github.com/hxuan190/omnipool-engine/internal/intent"
	"github.com/hxuan190/omnipool-engine/internal/math/fixed"
	"github.com/hxuan190/omnipool-engine/internal/solver"
)

// checked is a solution that passed validation against one state.
type checked struct {
	solution *domain.Solution
	score    uint64
	intents  map[domain.IntentID]*domain.Intent
	trades   []*solver.Trade
	pool     *solver.Pool
}

// check validates sol against st without modifying it. The returned pool
// holds st with every trade applied.
func (e *Executor) check(st *State, sol *domain.Solution, now uint64) (*checked, error) {
	if sol.IsEmpty() {
		return nil, intent.Reject(intent.ReasonEmpty, "no resolved intents")
	}

	ids := make([]domain.IntentID, 0, len(sol.ResolvedIntents))
	seen := make(map[domain.IntentID]struct{}, len(sol.ResolvedIntents))
	for _, r := range sol.ResolvedIntents {
		if _, dup := seen[r.ID]; dup {
			return nil, intent.RejectIntent(intent.ReasonIntentAmount, r.ID, "resolved more than once")
		}
		seen[r.ID] = struct{}{}
		ids = append(ids, r.ID)
	}

	intents := e.store.Lookup(ids)
	for _, r := range sol.ResolvedIntents {
		in, ok := intents[r.ID]
		if !ok {
			return nil, intent.RejectIntent(intent.ReasonIntentNotFound, r.ID, "not pending")
		}
		if err := intent.ValidateResolved(in, r, now); err != nil {
			return nil, err
		}
	}

	pool := st.pool(e.cfg.HubAsset, e.cfg.Burn)
	trades, err := e.replay(pool, sol.Trades)
	if err != nil {
		return nil, err
	}

	if err := conserved(sol.ResolvedIntents, intents, trades); err != nil {
		return nil, err
	}

	return &checked{
		solution: sol,
		score:    intent.Score(sol.ResolvedIntents, intents, st.Assets, e.cfg.HubAsset),
		intents:  intents,
		trades:   trades,
		pool:     pool,
	}, nil
}

// replay re-prices every instruction on pool in order and applies it. The
// fixed side of each instruction is taken as given; the priced side must
// match the claim within the trade tolerance.
func (e *Executor) replay(pool *solver.Pool, instructions []domain.TradeInstruction) ([]*solver.Trade, error) {
	trades := make([]*solver.Trade, 0, len(instructions))
	for i, ins := range instructions {
		if ins.Pool != "" && ins.Pool != domain.OmnipoolName {
			return nil, intent.Reject(intent.ReasonTrade, "trade %d: unknown pool %q", i, ins.Pool)
		}
		if ins.AmountIn == nil || ins.AmountOut == nil {
			return nil, intent.Reject(intent.ReasonTrade, "trade %d: missing amount", i)
		}

		fixedSide, claimed := ins.AmountIn, ins.AmountOut
		if ins.Kind == domain.TradeKindBuy {
			fixedSide, claimed = ins.AmountOut, ins.AmountIn
		}
		t, err := pool.Quote(ins.Kind, ins.AssetIn, ins.AssetOut, fixedSide)
		if err != nil {
			return nil, intent.Reject(intent.ReasonTrade, "trade %d: %v", i, err)
		}

		priced := t.AmountOut
		if ins.Kind == domain.TradeKindBuy {
			priced = t.AmountIn
		}
		diff, _ := fixed.AbsDiff(priced, claimed)
		if diff.GtUint64(e.cfg.TradeTolerance) {
			return nil, intent.Reject(intent.ReasonTrade, "trade %d: %s %s claimed, %s reproduced", i, ins.Kind, claimed.Dec(), priced.Dec())
		}

		if err := pool.Apply(t); err != nil {
			return nil, intent.Reject(intent.ReasonTrade, "trade %d: %v", i, err)
		}
		trades = append(trades, t)
	}
	return trades, nil
}

// conserved checks that per asset the solution pays out no more than it
// takes in: what intents give plus what the pool returns must cover what
// intents receive plus what is sold to the pool.
func conserved(resolved []domain.ResolvedIntent, intents map[domain.IntentID]*domain.Intent, trades []*solver.Trade) error {
	credit := make(map[domain.AssetID]*uint256.Int)
	debit := make(map[domain.AssetID]*uint256.Int)
	add := func(m map[domain.AssetID]*uint256.Int, id domain.AssetID, v *uint256.Int) {
		cur, ok := m[id]
		if !ok {
			cur = fixed.Zero()
		}
		m[id] = fixed.SaturatingAdd(cur, v)
	}

	for _, r := range resolved {
		in := intents[r.ID]
		add(credit, in.Swap.AssetIn, r.AmountIn)
		add(debit, in.Swap.AssetOut, r.AmountOut)
	}
	for _, t := range trades {
		add(credit, t.AssetOut, t.AmountOut)
		add(debit, t.AssetIn, t.AmountIn)
	}

	for id, owed := range debit {
		have, ok := credit[id]
		if !ok {
			have = fixed.Zero()
		}
		if have.Lt(owed) {
			return intent.Reject(intent.ReasonImbalance, "asset %d: %s available, %s paid out", id, have.Dec(), owed.Dec())
		}
	}
	return nil
}
