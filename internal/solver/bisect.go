package solver

import (
	"context"
	"errors"

	"github.com/holiman/uint256"

	"github.com/hxuan190/omnipool-engine/internal/domain"
	"github.com/hxuan190/omnipool-engine/internal/intent"
	"github.com/hxuan190/omnipool-engine/internal/math/fixed"
)

// errUnfillable marks a non-partial intent the pool cannot fill in full.
var errUnfillable = errors.New("intent cannot be filled in full")

// residual is the part of an intent left after netting.
type residual struct {
	intent     *domain.Intent
	matchedIn  *uint256.Int
	matchedOut *uint256.Int
}

// meetsLimit checks the combined fill (netted plus y out for x in) against
// the intent's limit price.
func (r residual) meetsLimit(x, y *uint256.Int) bool {
	totalIn, err := fixed.Add(r.matchedIn, x)
	if err != nil {
		return false
	}
	totalOut, err := fixed.Add(r.matchedOut, y)
	if err != nil {
		return false
	}
	return intent.MeetsLimit(r.intent.Swap, totalIn, totalOut)
}

// route finds the pool trade for the residual of an intent on the working
// pool. It returns nil when nothing should be routed.
func (s *OmnipoolSolver) route(ctx context.Context, pool *Pool, r residual) (*Trade, error) {
	swap := r.intent.Swap
	if swap.Type == domain.ExactOut {
		return s.routeExactOut(ctx, pool, r)
	}

	left := fixed.SaturatingSub(swap.AmountIn, r.matchedIn)
	if left.IsZero() {
		return nil, nil
	}

	full, err := pool.QuoteSell(swap.AssetIn, swap.AssetOut, left)
	if err == nil && r.meetsLimit(left, full.AmountOut) {
		return full, nil
	}
	if !r.intent.Partial {
		if err != nil {
			return nil, err
		}
		return nil, errUnfillable
	}
	hi := reserveOf(pool, swap.AssetOut)
	if err == nil {
		hi = full.AmountOut
	}
	return s.bisect(ctx, pool, r, left, hi)
}

// reserveOf bounds what a single buy of id can return.
func reserveOf(pool *Pool, id domain.AssetID) *uint256.Int {
	a, ok := pool.Asset(id)
	if !ok || a.State.Reserve == nil {
		return fixed.Zero()
	}
	return a.State.Reserve
}

func (s *OmnipoolSolver) routeExactOut(ctx context.Context, pool *Pool, r residual) (*Trade, error) {
	swap := r.intent.Swap
	want := fixed.SaturatingSub(swap.AmountOut, r.matchedOut)
	budget := fixed.SaturatingSub(swap.AmountIn, r.matchedIn)
	if want.IsZero() {
		return nil, nil
	}

	full, err := pool.QuoteBuy(swap.AssetIn, swap.AssetOut, want)
	if err == nil && !full.AmountIn.Gt(budget) {
		return full, nil
	}
	if !r.intent.Partial {
		if err != nil {
			return nil, err
		}
		return nil, errUnfillable
	}
	if budget.IsZero() {
		return nil, nil
	}

	hi := want
	if q, err := pool.QuoteSell(swap.AssetIn, swap.AssetOut, budget); err == nil {
		hi = fixed.Min(q.AmountOut, want)
	}
	return s.bisect(ctx, pool, r, budget, hi)
}

// bisect searches the largest amount out y in [0, hi] whose buy costs at most
// budget and keeps the intent within its limit price. The search stops once
// the bracket is within Tolerance or after MaxIterations halvings.
func (s *OmnipoolSolver) bisect(ctx context.Context, pool *Pool, r residual, budget, hi *uint256.Int) (*Trade, error) {
	swap := r.intent.Swap
	feasible := func(y *uint256.Int) (*Trade, bool) {
		t, err := pool.QuoteBuy(swap.AssetIn, swap.AssetOut, y)
		if err != nil || t.AmountIn.Gt(budget) {
			return nil, false
		}
		return t, r.meetsLimit(t.AmountIn, y)
	}

	lo := fixed.Zero()
	hi = fixed.Clone(hi)
	tol := uint256.NewInt(s.Tolerance)
	gap := new(uint256.Int)

	for it := 0; it < s.MaxIterations; it++ {
		if gap.Sub(hi, lo); !gap.Gt(tol) {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		mid := new(uint256.Int).Rsh(gap, 1)
		mid.Add(mid, lo)
		if _, ok := feasible(mid); ok {
			lo = mid
		} else {
			hi = mid
		}
	}

	if lo.IsZero() {
		return nil, nil
	}
	t, ok := feasible(lo)
	if !ok {
		return nil, nil
	}
	return t, nil
}
