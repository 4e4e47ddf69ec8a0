package solver

import (
	"github.com/holiman/uint256"

	"github.com/hxuan190/omnipool-engine/internal/domain"
	"github.com/hxuan190/omnipool-engine/internal/intent"
	"github.com/hxuan190/omnipool-engine/internal/math/fixed"
)

// fill accumulates what an intent gives and receives.
type fill struct {
	in  *uint256.Int
	out *uint256.Int
}

func (f *fill) add(in, out *uint256.Int) {
	f.in = fixed.SaturatingAdd(f.in, in)
	f.out = fixed.SaturatingAdd(f.out, out)
}

type pairKey struct {
	a, b domain.AssetID
}

// netIntents matches ExactIn intents selling opposite sides of the same pair
// directly against each other at the pool's fee-less spot price. Intents are
// consumed greedily in first-seen order; an intent whose limit is worse than
// the spot price does not take part. Per asset the amounts given and received
// by matched intents are equal, so netting never touches the pool.
func netIntents(pool *Pool, intents []*domain.Intent) map[domain.IntentID]*fill {
	type side struct {
		forward  []*domain.Intent
		backward []*domain.Intent
	}
	pairs := make(map[pairKey]*side)
	var order []pairKey

	for _, in := range intents {
		s := in.Swap
		if s.Type != domain.ExactIn || s.AssetIn == pool.HubAsset() || s.AssetOut == pool.HubAsset() {
			continue
		}
		key := pairKey{a: s.AssetIn, b: s.AssetOut}
		if key.a > key.b {
			key = pairKey{a: s.AssetOut, b: s.AssetIn}
		}
		p, ok := pairs[key]
		if !ok {
			p = &side{}
			pairs[key] = p
			order = append(order, key)
		}
		if s.AssetIn == key.a {
			p.forward = append(p.forward, in)
		} else {
			p.backward = append(p.backward, in)
		}
	}

	fills := make(map[domain.IntentID]*fill)
	for _, key := range order {
		p := pairs[key]
		if len(p.forward) == 0 || len(p.backward) == 0 {
			continue
		}
		price, err := pool.SpotPrice(key.a, key.b)
		if err != nil || price.IsZero() {
			continue
		}
		forward := acceptingAt(p.forward, price)
		backward := acceptingAt(p.backward, price.Inverse())
		matchPair(forward, backward, price, fills)
	}
	return fills
}

// acceptingAt keeps the intents whose limit is met when their whole amount
// is exchanged at price.
func acceptingAt(intents []*domain.Intent, price fixed.Ratio) []*domain.Intent {
	var out []*domain.Intent
	for _, in := range intents {
		got, err := price.MulInt(in.Swap.AmountIn)
		if err != nil {
			continue
		}
		if intent.MeetsLimit(in.Swap, in.Swap.AmountIn, got) {
			out = append(out, in)
		}
	}
	return out
}

// matchPair walks both sides in order. price is b per a.
func matchPair(forward, backward []*domain.Intent, price fixed.Ratio, fills map[domain.IntentID]*fill) {
	remA := make([]*uint256.Int, len(forward))
	for i, in := range forward {
		remA[i] = fixed.Clone(in.Swap.AmountIn)
	}
	remB := make([]*uint256.Int, len(backward))
	for j, in := range backward {
		remB[j] = fixed.Clone(in.Swap.AmountIn)
	}

	record := func(in *domain.Intent, give, get *uint256.Int) {
		f, ok := fills[in.ID]
		if !ok {
			f = &fill{in: fixed.Zero(), out: fixed.Zero()}
			fills[in.ID] = f
		}
		f.add(give, get)
	}

	i, j := 0, 0
	for i < len(forward) && j < len(backward) {
		a, b := remA[i], remB[j]
		aInB, err := price.MulInt(a)
		if err != nil || aInB.IsZero() {
			i++
			continue
		}

		if !aInB.Gt(b) {
			record(forward[i], a, aInB)
			record(backward[j], aInB, a)
			remB[j] = new(uint256.Int).Sub(b, aInB)
			remA[i] = fixed.Zero()
			i++
			if remB[j].IsZero() {
				j++
			}
			continue
		}

		bInA, err := price.Inverse().MulInt(b)
		if err != nil || bInA.IsZero() {
			j++
			continue
		}
		record(forward[i], bInA, b)
		record(backward[j], b, bInA)
		remA[i] = new(uint256.Int).Sub(a, bInA)
		remB[j] = fixed.Zero()
		j++
	}
}
