package omnipool

import (
	"math/big"

	"github.com/holiman/uint256"

	"github.com/hxuan190/omnipool-engine/internal/math/fixed"
)

// SpotFees are the fees folded into a spot price.
type SpotFees struct {
	ProtocolFee fixed.Permill
	AssetFee    fixed.Permill
}

// CalculateSpotPrice returns the price of a denominated in b (b per a). With
// fees the price is scaled by (1 - protocol fee) * (1 - asset fee).
func CalculateSpotPrice(a, b AssetReserveState, fees *SpotFees) (fixed.FixedU128, error) {
	if err := ensureTradable(a); err != nil {
		return fixed.FixedU128{}, err
	}
	if err := ensureTradable(b); err != nil {
		return fixed.FixedU128{}, err
	}
	priceA, err := fixed.FixedFromRational(a.HubReserve, a.Reserve)
	if err != nil {
		return fixed.FixedU128{}, err
	}
	priceB, err := fixed.FixedFromRational(b.Reserve, b.HubReserve)
	if err != nil {
		return fixed.FixedU128{}, err
	}
	spot, err := priceA.CheckedMul(priceB)
	if err != nil {
		return fixed.FixedU128{}, err
	}
	if fees == nil {
		return spot, nil
	}
	if spot, err = spot.CheckedMul(fixed.FixedFromPermill(fees.ProtocolFee.Complement())); err != nil {
		return fixed.FixedU128{}, err
	}
	return spot.CheckedMul(fixed.FixedFromPermill(fees.AssetFee.Complement()))
}

// SpotPriceRatio is the exact fee-less price of a in b as a rational:
// (hub_a * reserve_b) / (reserve_a * hub_b).
func SpotPriceRatio(a, b AssetReserveState) (fixed.Ratio, error) {
	if err := ensureTradable(a); err != nil {
		return fixed.Ratio{}, err
	}
	if err := ensureTradable(b); err != nil {
		return fixed.Ratio{}, err
	}
	n := new(big.Int).Mul(a.HubReserve.ToBig(), b.Reserve.ToBig())
	d := new(big.Int).Mul(a.Reserve.ToBig(), b.HubReserve.ToBig())
	return fixed.RoundToRational(n, d, fixed.Nearest), nil
}

// CalculateHubSpotPrice returns the price of the hub asset denominated in
// the asset (asset per hub), optionally net of the asset fee.
func CalculateHubSpotPrice(asset AssetReserveState, fee *fixed.Permill) (fixed.FixedU128, error) {
	if err := ensureTradable(asset); err != nil {
		return fixed.FixedU128{}, err
	}
	spot, err := fixed.FixedFromRational(asset.Reserve, asset.HubReserve)
	if err != nil {
		return fixed.FixedU128{}, err
	}
	if fee == nil {
		return spot, nil
	}
	return spot.CheckedMul(fixed.FixedFromPermill(fee.Complement()))
}

// CalculateTVL values hubReserve in the stable asset given its (reserve, hub reserve).
func CalculateTVL(hubReserve *uint256.Int, stableReserve, stableHubReserve *uint256.Int) (*uint256.Int, error) {
	return fixed.MulDiv(hubReserve, stableReserve, stableHubReserve)
}

// CalculateCapDifference returns how much more of the asset may be added
// before its hub reserve reaches weightCap of the total hub reserve.
func CalculateCapDifference(asset AssetReserveState, weightCap fixed.Permill, totalHubReserve *uint256.Int) (*uint256.Int, error) {
	maxAllowed, err := weightCap.MulFloor(totalHubReserve)
	if err != nil {
		return nil, err
	}
	if maxAllowed.IsZero() {
		return nil, fixed.ErrDivisionByZero
	}
	p, err := fixed.FixedFromRational(fixed.Clone(asset.HubReserve), maxAllowed)
	if err != nil {
		return nil, err
	}
	if p.Cmp(fixed.FixedOne()) > 0 {
		return fixed.Zero(), nil
	}
	return fixed.FixedOne().SaturatingSub(p).CheckedMulInt(fixed.Clone(asset.Reserve))
}

// CalculateTVLCapDifference returns how much of the asset may still be added
// before the pool's TVL, valued in the stable asset, reaches tvlCap.
func CalculateTVLCapDifference(asset, stable AssetReserveState, tvlCap, totalHubReserve *uint256.Int) (*uint256.Int, error) {
	if err := ensureTradable(asset); err != nil {
		return nil, err
	}
	if err := ensureTradable(stable); err != nil {
		return nil, err
	}
	maxHubReserve, err := fixed.MulDivWide(tvlCap, stable.HubReserve, stable.Reserve)
	if err != nil {
		return nil, err
	}
	if maxHubReserve.Lt(totalHubReserve) {
		return fixed.Zero(), nil
	}
	deltaQ := new(uint256.Int).Sub(maxHubReserve, totalHubReserve)
	return fixed.MulDiv(deltaQ, asset.Reserve, asset.HubReserve)
}

// VerifyAssetCap reports whether adding hubAmount keeps the asset's weight
// within weightCap.
func VerifyAssetCap(asset AssetReserveState, weightCap fixed.Permill, hubAmount, totalHubReserve *uint256.Int) (bool, error) {
	num, err := fixed.Add(fixed.Clone(asset.HubReserve), hubAmount)
	if err != nil {
		return false, err
	}
	den, err := fixed.Add(totalHubReserve, hubAmount)
	if err != nil {
		return false, err
	}
	weight, err := fixed.FixedFromRational(num, den)
	if err != nil {
		return false, err
	}
	return weight.Cmp(fixed.FixedFromPermill(weightCap)) <= 0, nil
}
