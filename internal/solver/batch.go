package solver

import (
	"context"
	"errors"

	"github.com/holiman/uint256"

	"github.com/hxuan190/omnipool-engine/internal/domain"
	"github.com/hxuan190/omnipool-engine/internal/math/fixed"
)

// fractionOne is the denominator of the common fill fraction.
const fractionOne uint64 = 1_000_000_000_000

// tradeGroup is the set of residuals served by one pool trade: ExactIn
// intents selling the same asset for the same asset, or a single intent.
type tradeGroup struct {
	in      domain.AssetID
	out     domain.AssetID
	members []residual
}

// groups splits residuals into route groups ordered by their first member.
func (s *OmnipoolSolver) groups(residuals []residual) []*tradeGroup {
	var out []*tradeGroup
	byDirection := make(map[pairKey]*tradeGroup)
	for _, r := range residuals {
		swap := r.intent.Swap
		if !s.Batch || swap.Type != domain.ExactIn {
			out = append(out, &tradeGroup{in: swap.AssetIn, out: swap.AssetOut, members: []residual{r}})
			continue
		}
		key := pairKey{a: swap.AssetIn, b: swap.AssetOut}
		if g, ok := byDirection[key]; ok {
			g.members = append(g.members, r)
			continue
		}
		g := &tradeGroup{in: swap.AssetIn, out: swap.AssetOut, members: []residual{r}}
		byDirection[key] = g
		out = append(out, g)
	}
	return out
}

// routeGroup prices the group on pool, applies the trades and records in
// routed what every member gets from them. A group that cannot share one
// trade is routed member by member. dropped is set when a member has to
// leave the batch.
func (s *OmnipoolSolver) routeGroup(
	ctx context.Context,
	pool *Pool,
	g *tradeGroup,
	routed map[domain.IntentID]*fill,
) ([]domain.TradeInstruction, *domain.IntentID, error) {
	if len(g.members) > 1 {
		t, shares, err := s.aggregate(ctx, pool, g)
		if err != nil {
			return nil, nil, err
		}
		if t != nil && pool.Apply(t) == nil {
			for i, r := range g.members {
				if !shares[i].in.IsZero() {
					routed[r.intent.ID] = shares[i]
				}
			}
			return []domain.TradeInstruction{t.Instruction()}, nil, nil
		}
	}

	var trades []domain.TradeInstruction
	for _, r := range g.members {
		t, err := s.route(ctx, pool, r)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			if errors.Is(err, errUnfillable) || !r.intent.Partial {
				id := r.intent.ID
				return nil, &id, nil
			}
			continue
		}
		if t == nil {
			continue
		}
		if err := pool.Apply(t); err != nil {
			id := r.intent.ID
			return nil, &id, nil
		}
		trades = append(trades, t.Instruction())
		routed[r.intent.ID] = &fill{in: fixed.Clone(t.AmountIn), out: fixed.Clone(t.AmountOut)}
	}
	return trades, nil, nil
}

// aggregate sells the group's combined leftover in one trade and splits the
// output pro rata to what each member puts in. If the full amount breaks a
// limit and every member accepts partial fills, it searches the largest
// common fill fraction that keeps every limit. It returns a nil trade when
// no single trade serves the group.
func (s *OmnipoolSolver) aggregate(ctx context.Context, pool *Pool, g *tradeGroup) (*Trade, []*fill, error) {
	lefts := make([]*uint256.Int, len(g.members))
	active, partial := 0, true
	for i, r := range g.members {
		lefts[i] = fixed.SaturatingSub(r.intent.Swap.AmountIn, r.matchedIn)
		if !lefts[i].IsZero() {
			active++
		}
		partial = partial && r.intent.Partial
	}
	if active < 2 {
		return nil, nil, nil
	}

	if t, shares, ok := g.split(pool, lefts); ok {
		return t, shares, nil
	}
	if !partial {
		return nil, nil, nil
	}

	one := uint256.NewInt(fractionOne)
	scaled := func(f *uint256.Int) ([]*uint256.Int, bool) {
		out := make([]*uint256.Int, len(lefts))
		for i, l := range lefts {
			v, err := fixed.MulDiv(l, f, one)
			if err != nil {
				return nil, false
			}
			out[i] = v
		}
		return out, true
	}

	var (
		best   *Trade
		shares []*fill
	)
	lo, hi := fixed.Zero(), fixed.Clone(one)
	gap := new(uint256.Int)
	for it := 0; it < s.MaxIterations; it++ {
		if gap.Sub(hi, lo); !gap.GtUint64(1) {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		mid := new(uint256.Int).Rsh(gap, 1)
		mid.Add(mid, lo)

		amounts, ok := scaled(mid)
		if !ok {
			hi = mid
			continue
		}
		if t, sh, ok := g.split(pool, amounts); ok {
			lo, best, shares = mid, t, sh
		} else {
			hi = mid
		}
	}
	return best, shares, nil
}

// split quotes selling the sum of amounts and hands each member
// floor(out * amount / total). It fails when a member with a non-zero
// amount would get nothing or less than its limit.
func (g *tradeGroup) split(pool *Pool, amounts []*uint256.Int) (*Trade, []*fill, bool) {
	total := fixed.Zero()
	for _, a := range amounts {
		var err error
		if total, err = fixed.Add(total, a); err != nil {
			return nil, nil, false
		}
	}
	if total.IsZero() {
		return nil, nil, false
	}

	t, err := pool.QuoteSell(g.in, g.out, total)
	if err != nil {
		return nil, nil, false
	}

	shares := make([]*fill, len(g.members))
	for i, r := range g.members {
		if amounts[i].IsZero() {
			shares[i] = &fill{in: fixed.Zero(), out: fixed.Zero()}
			continue
		}
		y, err := fixed.MulDiv(t.AmountOut, amounts[i], total)
		if err != nil || y.IsZero() || !r.meetsLimit(amounts[i], y) {
			return nil, nil, false
		}
		shares[i] = &fill{in: fixed.Clone(amounts[i]), out: y}
	}
	return t, shares, true
}
