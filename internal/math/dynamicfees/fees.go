package dynamicfees

import (
	"github.com/holiman/uint256"

	"github.com/hxuan190/omnipool-engine/internal/math/fixed"
)

// ComputeDynamicFee returns the fee after elapsed blocks given the oracle
// volume:
//
//	decayed  = min + (previous - min) * (1 - decay)^elapsed
//	adjusted = decayed +/- amplification * net_volume / liquidity
//	fee      = clamp(adjusted, min, max)
//
// Positive net volume under dir raises the fee, negative lowers it. Zero
// elapsed blocks leave the fee unchanged; zero liquidity only clamps it.
func ComputeDynamicFee(
	volume OracleEntry,
	params FeeParams,
	previous fixed.Permill,
	elapsed uint64,
	dir NetVolumeDirection,
) fixed.Permill {
	if elapsed == 0 {
		return previous
	}
	liquidity := orZero(volume.Liquidity)
	if liquidity.IsZero() {
		return params.Clamp(previous)
	}

	minFee := fixed.FixedFromPermill(params.MinFee)
	fee := decay(fixed.FixedFromPermill(previous), minFee, params.Decay, elapsed)

	net, negative := volume.NetVolume(dir)
	if !net.IsZero() {
		delta := pressure(net, liquidity, params.Amplification)
		if negative {
			fee = fee.SaturatingSub(delta)
		} else if next, err := fee.CheckedAdd(delta); err == nil {
			fee = next
		} else {
			return params.MaxFee
		}
	}

	if fee.Cmp(fixed.FixedOne()) > 0 {
		return params.MaxFee
	}
	return params.Clamp(fee.ToPermill())
}

func decay(previous, minFee, rate fixed.FixedU128, elapsed uint64) fixed.FixedU128 {
	if previous.Cmp(minFee) <= 0 {
		return previous
	}
	excess := previous.SaturatingSub(minFee)
	factor := fixed.FixedOne().SaturatingSub(rate).SaturatingPow(elapsed)
	kept, err := excess.CheckedMul(factor)
	if err != nil {
		return previous
	}
	out, err := minFee.CheckedAdd(kept)
	if err != nil {
		return previous
	}
	return out
}

// pressure is amplification * net / liquidity, saturating at 100%.
func pressure(net, liquidity *uint256.Int, amplification fixed.FixedU128) fixed.FixedU128 {
	ratio, err := fixed.FixedFromRational(net, liquidity)
	if err != nil {
		return fixed.FixedOne()
	}
	delta, err := ratio.CheckedMul(amplification)
	if err != nil || delta.Cmp(fixed.FixedOne()) > 0 {
		return fixed.FixedOne()
	}
	return delta
}

// RecalculateAssetFee moves the asset fee with net outflow from the pool.
func RecalculateAssetFee(volume OracleEntry, previous fixed.Permill, elapsed uint64, params FeeParams) fixed.Permill {
	return ComputeDynamicFee(volume, params, previous, elapsed, OutIn)
}

// RecalculateProtocolFee moves the protocol fee with net inflow to the pool.
func RecalculateProtocolFee(volume OracleEntry, previous fixed.Permill, elapsed uint64, params FeeParams) fixed.Permill {
	return ComputeDynamicFee(volume, params, previous, elapsed, InOut)
}

// RecalculateFees updates both fees of an entry for block and stamps it.
// Calling it again for the same block returns the entry unchanged.
func RecalculateFees(entry FeeEntry, volume OracleEntry, block uint64, assetParams, protocolParams FeeParams) FeeEntry {
	if block <= entry.Timestamp {
		return entry
	}
	elapsed := block - entry.Timestamp
	return FeeEntry{
		AssetFee:    RecalculateAssetFee(volume, entry.AssetFee, elapsed, assetParams),
		ProtocolFee: RecalculateProtocolFee(volume, entry.ProtocolFee, elapsed, protocolParams),
		Timestamp:   block,
	}
}

// InitialEntry starts an asset at its minimum fees.
func InitialEntry(block uint64, assetParams, protocolParams FeeParams) FeeEntry {
	return FeeEntry{AssetFee: assetParams.MinFee, ProtocolFee: protocolParams.MinFee, Timestamp: block}
}
