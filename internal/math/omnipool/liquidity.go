package omnipool

import (
	"github.com/holiman/uint256"

	"github.com/hxuan190/omnipool-engine/internal/math/fixed"
)

// CalculateAddLiquidityStateChanges mints shares proportional to the reserve
// added and the matching hub amount at the current price.
func CalculateAddLiquidityStateChanges(asset AssetReserveState, amount *uint256.Int) (*LiquidityStateChange, error) {
	asset = asset.normalized()
	price, err := asset.Price()
	if err != nil {
		return nil, err
	}
	deltaHub, err := price.CheckedMulInt(amount)
	if err != nil {
		return nil, err
	}
	deltaShares, err := fixed.MulDiv(asset.Shares, amount, asset.Reserve)
	if err != nil {
		return nil, err
	}

	return &LiquidityStateChange{
		Asset: AssetStateChange{
			DeltaReserve:    Increase(amount),
			DeltaHubReserve: Increase(deltaHub),
			DeltaShares:     Increase(deltaShares),
		},
		DeltaPositionReserve: Increase(amount),
		DeltaPositionShares:  Increase(deltaShares),
		LPHubAmount:          fixed.Zero(),
	}, nil
}

// CalculateWithdrawalFee returns |spot - oracle| / oracle clamped to
// [minFee, 1]. A zero oracle price yields minFee.
func CalculateWithdrawalFee(spot, oracle fixed.FixedU128, minFee fixed.Permill) fixed.FixedU128 {
	minFixed := fixed.FixedFromPermill(minFee)
	if oracle.IsZero() {
		return minFixed
	}

	var diff fixed.FixedU128
	if oracle.Cmp(spot) <= 0 {
		diff = spot.SaturatingSub(oracle)
	} else {
		diff = oracle.SaturatingSub(spot)
	}

	fee, err := diff.CheckedDiv(oracle)
	if err != nil || fee.Cmp(fixed.FixedOne()) > 0 {
		return fixed.FixedOne()
	}
	if fee.Cmp(minFixed) < 0 {
		return minFixed
	}
	return fee
}

// CalculateRemoveLiquidityStateChanges burns sharesRemoved of a position.
// When the price fell below the position's entry price the protocol keeps
// part of the shares; when it rose the provider also receives hub asset.
func CalculateRemoveLiquidityStateChanges(
	asset AssetReserveState,
	sharesRemoved *uint256.Int,
	position Position,
	withdrawalFee fixed.FixedU128,
) (*LiquidityStateChange, error) {
	asset = asset.normalized()
	if asset.Shares.IsZero() {
		return nil, fixed.ErrZeroWeight
	}
	if position.Shares == nil || position.Shares.IsZero() {
		return nil, fixed.ErrZeroWeight
	}

	currentPrice, err := asset.Price()
	if err != nil {
		return nil, err
	}
	positionPrice, err := position.price()
	if err != nil {
		return nil, err
	}

	pxr, err := positionPrice.CheckedMulInt(asset.Reserve)
	if err != nil {
		return nil, err
	}
	if pxr, err = fixed.Add(pxr, u256One); err != nil {
		return nil, err
	}

	deltaB := fixed.Zero()
	if currentPrice.Cmp(positionPrice) < 0 {
		numer, err := fixed.Sub(pxr, asset.HubReserve)
		if err != nil {
			return nil, err
		}
		denom, err := fixed.Add(pxr, asset.HubReserve)
		if err != nil {
			return nil, err
		}
		if deltaB, err = fixed.MulDiv(numer, sharesRemoved, denom); err != nil {
			return nil, err
		}
		if deltaB, err = fixed.Add(deltaB, u256One); err != nil {
			return nil, err
		}
	}

	deltaShares, err := fixed.Sub(sharesRemoved, deltaB)
	if err != nil {
		return nil, err
	}
	deltaReserve, err := fixed.MulDiv(asset.Reserve, deltaShares, asset.Shares)
	if err != nil {
		return nil, err
	}
	deltaHubReserve, err := fixed.MulDiv(deltaReserve, asset.HubReserve, asset.Reserve)
	if err != nil {
		return nil, err
	}
	deltaPositionAmount, err := fixed.MulDiv(sharesRemoved, fixed.Clone(position.Amount), position.Shares)
	if err != nil {
		return nil, err
	}

	hubTransferred := fixed.Zero()
	if currentPrice.Cmp(positionPrice) > 0 {
		sub, err := fixed.Sub(asset.HubReserve, pxr)
		if err != nil {
			return nil, err
		}
		sum, err := fixed.Add(asset.HubReserve, pxr)
		if err != nil {
			return nil, err
		}
		div1, err := fixed.MulDivWide(asset.HubReserve, sub, sum)
		if err != nil {
			return nil, err
		}
		if hubTransferred, err = fixed.MulDiv(div1, deltaShares, asset.Shares); err != nil {
			return nil, err
		}
	}

	complement := fixed.FixedOne().SaturatingSub(withdrawalFee)
	if deltaReserve, err = complement.CheckedMulInt(deltaReserve); err != nil {
		return nil, err
	}
	if deltaHubReserve, err = complement.CheckedMulInt(deltaHubReserve); err != nil {
		return nil, err
	}
	if hubTransferred, err = complement.CheckedMulInt(hubTransferred); err != nil {
		return nil, err
	}

	return &LiquidityStateChange{
		Asset: AssetStateChange{
			DeltaReserve:        Decrease(deltaReserve),
			DeltaHubReserve:     Decrease(deltaHubReserve),
			DeltaShares:         Decrease(deltaShares),
			DeltaProtocolShares: Increase(deltaB),
		},
		DeltaPositionReserve: Decrease(deltaPositionAmount),
		DeltaPositionShares:  Decrease(sharesRemoved),
		LPHubAmount:          hubTransferred,
	}, nil
}
