package intent

import (
	"github.com/holiman/uint256"

	"github.com/hxuan190/omnipool-engine/internal/domain"
	"github.com/hxuan190/omnipool-engine/internal/math/fixed"
)

// ResolvedBonus is the hub amount credited per resolved intent.
var ResolvedBonus = uint256.NewInt(1_000_000_000_000)

var scoreDivisor = uint256.NewInt(1_000_000)

// Score ranks a solution. Each resolved intent earns ResolvedBonus, and
// volume matched between intents (per asset, min of the amount sold and the
// amount bought) earns its hub value. The sum is expressed in millionths of
// a hub unit and saturates at MaxUint64. hubAsset is valued at par.
func Score(resolved []domain.ResolvedIntent, intents map[domain.IntentID]*domain.Intent, assets map[domain.AssetID]*domain.AssetState, hubAsset domain.AssetID) uint64 {
	total := new(uint256.Int).Mul(ResolvedBonus, uint256.NewInt(uint64(len(resolved))))

	for asset, amount := range MatchedAmounts(resolved, intents) {
		total = fixed.SaturatingAdd(total, hubValue(asset, amount, assets, hubAsset))
	}

	total.Div(total, scoreDivisor)
	if !total.IsUint64() {
		return ^uint64(0)
	}
	return total.Uint64()
}

// MatchedAmounts returns, per asset, min(total sold by intents, total bought
// by intents).
func MatchedAmounts(resolved []domain.ResolvedIntent, intents map[domain.IntentID]*domain.Intent) map[domain.AssetID]*uint256.Int {
	sold := make(map[domain.AssetID]*uint256.Int)
	bought := make(map[domain.AssetID]*uint256.Int)
	for _, r := range resolved {
		in, ok := intents[r.ID]
		if !ok {
			continue
		}
		accumulate(sold, in.Swap.AssetIn, r.AmountIn)
		accumulate(bought, in.Swap.AssetOut, r.AmountOut)
	}

	matched := make(map[domain.AssetID]*uint256.Int)
	for asset, s := range sold {
		if b, ok := bought[asset]; ok {
			matched[asset] = fixed.Min(s, b)
		}
	}
	return matched
}

func accumulate(m map[domain.AssetID]*uint256.Int, asset domain.AssetID, v *uint256.Int) {
	if v == nil {
		return
	}
	if cur, ok := m[asset]; ok {
		m[asset] = fixed.SaturatingAdd(cur, v)
		return
	}
	m[asset] = fixed.Clone(v)
}

func hubValue(asset domain.AssetID, amount *uint256.Int, assets map[domain.AssetID]*domain.AssetState, hubAsset domain.AssetID) *uint256.Int {
	if asset == hubAsset {
		return amount
	}
	a, ok := assets[asset]
	if !ok || a.Reserve == nil || a.Reserve.IsZero() {
		return fixed.Zero()
	}
	v, err := fixed.MulDiv(amount, a.HubReserve, a.Reserve)
	if err != nil {
		return fixed.Clone(fixed.MaxBalance)
	}
	return v
}
