package omnipool

import (
	"github.com/holiman/uint256"

	"github.com/hxuan190/omnipool-engine/internal/math/fixed"
)

var (
	u256One      = uint256.NewInt(1)
	permillDenom = uint256.NewInt(uint64(fixed.PermillAccuracy))
)

func ensureTradable(s AssetReserveState) error {
	if s.Reserve == nil || s.Reserve.IsZero() {
		return fixed.ErrZeroReserve
	}
	if s.HubReserve == nil || s.HubReserve.IsZero() {
		return fixed.ErrZeroWeight
	}
	return nil
}

// amountWithoutFee returns floor((1 - fee) * amount).
func amountWithoutFee(amount *uint256.Int, fee fixed.Permill) (*uint256.Int, error) {
	return fee.Complement().MulFloor(amount)
}

// extraHubMint is the hub amount minted to keep the asset fee, that stays in
// the pool, priced: fee * floor((hub + delta) * delta / hub).
func extraHubMint(hubReserve, delta *uint256.Int, fee fixed.Permill) (*uint256.Int, error) {
	sum, err := fixed.Add(hubReserve, delta)
	if err != nil {
		return nil, err
	}
	scaled, err := fixed.MulDiv(sum, delta, hubReserve)
	if err != nil {
		return nil, err
	}
	return fee.MulFloor(scaled)
}

// CalculateFeeAmountForBuy returns the asset fee charged on a buy of amount,
// rounded up so that amount + fee covers a (1 - fee) fraction.
func CalculateFeeAmountForBuy(fee fixed.Permill, amount *uint256.Int) *uint256.Int {
	if fee.IsZero() {
		return fixed.Zero()
	}
	if fee == fixed.OnePermill {
		return fixed.Clone(amount)
	}
	num := uint256.NewInt(uint64(fee))
	den := uint256.NewInt(uint64(fee.Complement()))
	v, err := fixed.MulDiv(num, amount, den)
	if err != nil {
		return fixed.Clone(fixed.MaxBalance)
	}
	return fixed.SaturatingAdd(v, u256One)
}

// CalculateSellStateChanges prices selling amount of asset in for asset out.
// The asset fee is taken from the out leg, the protocol fee from the hub leg.
func CalculateSellStateChanges(
	in, out AssetReserveState,
	amount *uint256.Int,
	assetFee, protocolFee, m fixed.Permill,
) (*TradeStateChange, error) {
	if err := ensureTradable(in); err != nil {
		return nil, err
	}
	if err := ensureTradable(out); err != nil {
		return nil, err
	}

	denom, err := fixed.Add(in.Reserve, amount)
	if err != nil {
		return nil, err
	}
	deltaHubIn, err := fixed.MulDiv(amount, in.HubReserve, denom)
	if err != nil {
		return nil, err
	}

	protocolFeeAmount, err := protocolFee.MulFloor(deltaHubIn)
	if err != nil {
		return nil, err
	}
	dNet, err := fixed.Sub(deltaHubIn, protocolFeeAmount)
	if err != nil {
		return nil, err
	}

	hubDenom, err := fixed.Add(out.HubReserve, dNet)
	if err != nil {
		return nil, err
	}
	amountOut, err := fixed.MulDiv(out.Reserve, dNet, hubDenom)
	if err != nil {
		return nil, err
	}
	deltaReserveOut, err := amountWithoutFee(amountOut, assetFee)
	if err != nil {
		return nil, err
	}
	assetFeeAmount := fixed.SaturatingSub(amountOut, deltaReserveOut)

	deltaOutM, err := extraHubMint(out.HubReserve, dNet, assetFee)
	if err != nil {
		return nil, err
	}
	burned, err := m.MulFloor(protocolFeeAmount)
	if err != nil {
		return nil, err
	}

	return &TradeStateChange{
		AssetIn: AssetStateChange{
			DeltaReserve:    Increase(amount),
			DeltaHubReserve: Decrease(deltaHubIn),
		},
		AssetOut: AssetStateChange{
			DeltaReserve:          Decrease(deltaReserveOut),
			DeltaHubReserve:       Increase(dNet),
			ExtraHubReserveAmount: Increase(deltaOutM),
		},
		Fee: TradeFee{
			AssetFee:          assetFeeAmount,
			ProtocolFee:       protocolFeeAmount,
			BurnedProtocolFee: burned,
		},
	}, nil
}

// CalculateBuyStateChanges prices buying amount of asset out with asset in.
// The hub amount taken from asset in is rounded up so that selling it back
// through the protocol fee covers the hub amount asset out requires.
func CalculateBuyStateChanges(
	in, out AssetReserveState,
	amount *uint256.Int,
	assetFee, protocolFee, m fixed.Permill,
) (*TradeStateChange, error) {
	if err := ensureTradable(in); err != nil {
		return nil, err
	}
	if err := ensureTradable(out); err != nil {
		return nil, err
	}

	reserveNoFee, err := amountWithoutFee(out.Reserve, assetFee)
	if err != nil {
		return nil, err
	}
	if amount.Cmp(reserveNoFee) >= 0 {
		return nil, fixed.ErrInsufficientOutReserve
	}
	outDenom := new(uint256.Int).Sub(reserveNoFee, amount)
	dNet, err := fixed.MulDiv(out.HubReserve, amount, outDenom)
	if err != nil {
		return nil, err
	}
	if dNet, err = fixed.Add(dNet, u256One); err != nil {
		return nil, err
	}

	if protocolFee == fixed.OnePermill {
		return nil, fixed.ErrDivisionByZero
	}
	deltaHubIn, err := fixed.MulDivCeil(dNet, permillDenom, uint256.NewInt(uint64(protocolFee.Complement())))
	if err != nil {
		return nil, err
	}
	if deltaHubIn.Cmp(in.HubReserve) >= 0 {
		return nil, fixed.ErrOverflow
	}

	inDenom := new(uint256.Int).Sub(in.HubReserve, deltaHubIn)
	deltaReserveIn, err := fixed.MulDiv(in.Reserve, deltaHubIn, inDenom)
	if err != nil {
		return nil, err
	}
	if deltaReserveIn, err = fixed.Add(deltaReserveIn, u256One); err != nil {
		return nil, err
	}

	assetFeeAmount := CalculateFeeAmountForBuy(assetFee, amount)
	protocolFeeAmount, err := protocolFee.MulFloor(deltaHubIn)
	if err != nil {
		return nil, err
	}
	dNetForward, err := fixed.Sub(deltaHubIn, protocolFeeAmount)
	if err != nil {
		return nil, err
	}

	deltaOutM, err := extraHubMint(out.HubReserve, dNetForward, assetFee)
	if err != nil {
		return nil, err
	}
	burned, err := m.MulFloor(protocolFeeAmount)
	if err != nil {
		return nil, err
	}

	return &TradeStateChange{
		AssetIn: AssetStateChange{
			DeltaReserve:    Increase(deltaReserveIn),
			DeltaHubReserve: Decrease(deltaHubIn),
		},
		AssetOut: AssetStateChange{
			DeltaReserve:          Decrease(amount),
			DeltaHubReserve:       Increase(dNetForward),
			ExtraHubReserveAmount: Increase(deltaOutM),
		},
		Fee: TradeFee{
			AssetFee:          assetFeeAmount,
			ProtocolFee:       protocolFeeAmount,
			BurnedProtocolFee: burned,
		},
	}, nil
}

// CalculateSellHubStateChanges prices selling hubAmount of the hub asset for
// the given asset. No protocol fee applies to a hub sell.
func CalculateSellHubStateChanges(out AssetReserveState, hubAmount *uint256.Int, assetFee fixed.Permill) (*HubTradeStateChange, error) {
	if err := ensureTradable(out); err != nil {
		return nil, err
	}

	hubDenom, err := fixed.Add(out.HubReserve, hubAmount)
	if err != nil {
		return nil, err
	}
	amountOut, err := fixed.MulDiv(out.Reserve, hubAmount, hubDenom)
	if err != nil {
		return nil, err
	}
	deltaReserveOut, err := amountWithoutFee(amountOut, assetFee)
	if err != nil {
		return nil, err
	}
	assetFeeAmount := fixed.SaturatingSub(amountOut, deltaReserveOut)

	deltaQM, err := extraHubMint(out.HubReserve, hubAmount, assetFee)
	if err != nil {
		return nil, err
	}

	return &HubTradeStateChange{
		Asset: AssetStateChange{
			DeltaReserve:          Decrease(deltaReserveOut),
			DeltaHubReserve:       Increase(hubAmount),
			ExtraHubReserveAmount: Increase(deltaQM),
		},
		Fee: TradeFee{
			AssetFee:          assetFeeAmount,
			ProtocolFee:       fixed.Zero(),
			BurnedProtocolFee: fixed.Zero(),
		},
	}, nil
}

// CalculateBuyForHubAssetStateChanges prices buying amount of an asset paid
// with the hub asset.
func CalculateBuyForHubAssetStateChanges(out AssetReserveState, amount *uint256.Int, assetFee fixed.Permill) (*HubTradeStateChange, error) {
	if err := ensureTradable(out); err != nil {
		return nil, err
	}

	reserveNoFee, err := amountWithoutFee(out.Reserve, assetFee)
	if err != nil {
		return nil, err
	}
	if amount.Cmp(reserveNoFee) >= 0 {
		return nil, fixed.ErrInsufficientOutReserve
	}
	hubDenom := new(uint256.Int).Sub(reserveNoFee, amount)

	dNet, err := fixed.MulDiv(out.HubReserve, amount, hubDenom)
	if err != nil {
		return nil, err
	}
	if dNet, err = fixed.Add(dNet, u256One); err != nil {
		return nil, err
	}

	feeAmount := CalculateFeeAmountForBuy(assetFee, amount)

	sum, err := fixed.Add(out.HubReserve, dNet)
	if err != nil {
		return nil, err
	}
	// fee * ((hub + d_net) * amount) / hub_denominator
	product := new(uint256.Int).Mul(sum, amount)
	scaled, err := fixed.MulDivWide(product, uint256.NewInt(uint64(assetFee)), permillDenom)
	if err != nil {
		return nil, err
	}
	deltaQM, err := fixed.ToBalance(new(uint256.Int).Div(scaled, hubDenom))
	if err != nil {
		return nil, err
	}

	return &HubTradeStateChange{
		Asset: AssetStateChange{
			DeltaReserve:          Decrease(amount),
			DeltaHubReserve:       Increase(dNet),
			ExtraHubReserveAmount: Increase(deltaQM),
		},
		Fee: TradeFee{
			AssetFee:          feeAmount,
			ProtocolFee:       fixed.Zero(),
			BurnedProtocolFee: fixed.Zero(),
		},
	}, nil
}

// CalculateBurnAmountBasedOnFeeTaken scales the extra hub mint down by the
// share of the asset fee that left the pool: taken * extra / total.
func CalculateBurnAmountBasedOnFeeTaken(taken, totalFee, extra *uint256.Int) *uint256.Int {
	if totalFee == nil || totalFee.IsZero() {
		return fixed.Zero()
	}
	v, err := fixed.MulDiv(fixed.Clone(taken), fixed.Clone(extra), totalFee)
	if err != nil {
		return fixed.Clone(fixed.MaxBalance)
	}
	return v
}
