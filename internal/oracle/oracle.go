// Package oracle aggregates per-asset traded volume into exponential moving
// averages that drive the dynamic fee engine.
package oracle

import (
	"sync"

	"github.com/holiman/uint256"

	"github.com/hxuan190/omnipool-engine/internal/domain"
	"github.com/hxuan190/omnipool-engine/internal/math/dynamicfees"
	"github.com/hxuan190/omnipool-engine/internal/math/fixed"
)

// DefaultPeriod is the EMA window in rounds.
const DefaultPeriod uint64 = 10

type volume struct {
	in        *uint256.Int
	out       *uint256.Int
	liquidity *uint256.Int
}

func newVolume() *volume {
	return &volume{in: fixed.Zero(), out: fixed.Zero(), liquidity: fixed.Zero()}
}

func (v *volume) clone() *volume {
	return &volume{in: fixed.Clone(v.in), out: fixed.Clone(v.out), liquidity: fixed.Clone(v.liquidity)}
}

// VolumeOracle accumulates the trades of the current round and folds them
// into an EMA when the round closes. In and out are seen from the pool: in is
// what was sold into the asset's pool, out is what left it.
type VolumeOracle struct {
	mu      sync.RWMutex
	period  uint64
	pending map[domain.AssetID]*volume
	ema     map[domain.AssetID]*volume
	updated map[domain.AssetID]uint64
}

func NewVolumeOracle(period uint64) *VolumeOracle {
	if period == 0 {
		period = DefaultPeriod
	}
	return &VolumeOracle{
		period:  period,
		pending: make(map[domain.AssetID]*volume),
		ema:     make(map[domain.AssetID]*volume),
		updated: make(map[domain.AssetID]uint64),
	}
}

func (o *VolumeOracle) Period() uint64 {
	return o.period
}

// RecordTrade adds amounts to the asset's current-round volume. liquidity is
// the asset reserve after the trade.
func (o *VolumeOracle) RecordTrade(asset domain.AssetID, amountIn, amountOut, liquidity *uint256.Int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	v, ok := o.pending[asset]
	if !ok {
		v = newVolume()
		o.pending[asset] = v
	}
	v.in = fixed.SaturatingAdd(v.in, orZero(amountIn))
	v.out = fixed.SaturatingAdd(v.out, orZero(amountOut))
	v.liquidity = fixed.Clone(orZero(liquidity))
}

// RecordLiquidity refreshes the liquidity of an asset that did not trade.
func (o *VolumeOracle) RecordLiquidity(asset domain.AssetID, liquidity *uint256.Int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	v, ok := o.pending[asset]
	if !ok {
		v = newVolume()
		o.pending[asset] = v
	}
	v.liquidity = fixed.Clone(orZero(liquidity))
}

// Close folds the current round into the averages of every asset seen so far
// and starts a new round. Assets without trades this round decay toward zero
// volume.
func (o *VolumeOracle) Close(round uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for asset := range o.ema {
		if _, ok := o.pending[asset]; !ok {
			v := newVolume()
			v.liquidity = fixed.Clone(o.ema[asset].liquidity)
			o.pending[asset] = v
		}
	}

	for asset, v := range o.pending {
		prev, ok := o.ema[asset]
		if !ok {
			o.ema[asset] = v.clone()
		} else {
			o.ema[asset] = &volume{
				in:        o.smooth(prev.in, v.in),
				out:       o.smooth(prev.out, v.out),
				liquidity: o.smooth(prev.liquidity, v.liquidity),
			}
		}
		o.updated[asset] = round
	}
	o.pending = make(map[domain.AssetID]*volume)
}

// smooth returns (prev * (period - 1) + 2 * next) / (period + 1).
func (o *VolumeOracle) smooth(prev, next *uint256.Int) *uint256.Int {
	weighted, err := fixed.MulDiv(prev, uint256.NewInt(o.period-1), uint256.NewInt(o.period+1))
	if err != nil {
		return fixed.Clone(next)
	}
	add, err := fixed.MulDiv(next, uint256.NewInt(2), uint256.NewInt(o.period+1))
	if err != nil {
		return fixed.Clone(next)
	}
	return fixed.SaturatingAdd(weighted, add)
}

// Entry returns the averaged volume of an asset.
func (o *VolumeOracle) Entry(asset domain.AssetID) (dynamicfees.OracleEntry, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	v, ok := o.ema[asset]
	if !ok {
		return dynamicfees.OracleEntry{}, false
	}
	return dynamicfees.OracleEntry{
		AmountIn:  fixed.Clone(v.in),
		AmountOut: fixed.Clone(v.out),
		Liquidity: fixed.Clone(v.liquidity),
		UpdatedAt: o.updated[asset],
	}, true
}

// Entries returns every averaged entry.
func (o *VolumeOracle) Entries() map[domain.AssetID]dynamicfees.OracleEntry {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make(map[domain.AssetID]dynamicfees.OracleEntry, len(o.ema))
	for asset, v := range o.ema {
		out[asset] = dynamicfees.OracleEntry{
			AmountIn:  fixed.Clone(v.in),
			AmountOut: fixed.Clone(v.out),
			Liquidity: fixed.Clone(v.liquidity),
			UpdatedAt: o.updated[asset],
		}
	}
	return out
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return fixed.Zero()
	}
	return v
}
