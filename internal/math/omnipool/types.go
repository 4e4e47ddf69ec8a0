// Package omnipool implements the stateless omnipool pricing functions. Every
// asset pool is linked through the hub asset, so a swap between two assets is
// a sell into the hub followed by a buy out of it. All functions are pure and
// return state deltas for the caller to apply.
package omnipool

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/hxuan190/omnipool-engine/internal/math/fixed"
)

// BalanceUpdate is a signed change to a balance.
type BalanceUpdate struct {
	Amount   *uint256.Int
	Negative bool
}

func Increase(v *uint256.Int) BalanceUpdate {
	return BalanceUpdate{Amount: fixed.Clone(v)}
}

func Decrease(v *uint256.Int) BalanceUpdate {
	return BalanceUpdate{Amount: fixed.Clone(v), Negative: true}
}

func (u BalanceUpdate) value() *uint256.Int {
	if u.Amount == nil {
		return fixed.Zero()
	}
	return u.Amount
}

// IsPositive reports an increase or a zero decrease.
func (u BalanceUpdate) IsPositive() bool {
	return !u.Negative || u.value().IsZero()
}

func (u BalanceUpdate) IsZero() bool {
	return u.value().IsZero()
}

// Merge adds two signed updates.
func (u BalanceUpdate) Merge(o BalanceUpdate) (BalanceUpdate, error) {
	a, b := u.value(), o.value()
	if u.Negative == o.Negative {
		sum, err := fixed.Add(a, b)
		if err != nil {
			return BalanceUpdate{}, err
		}
		return BalanceUpdate{Amount: sum, Negative: u.Negative}, nil
	}
	if a.Cmp(b) >= 0 {
		return BalanceUpdate{Amount: new(uint256.Int).Sub(a, b), Negative: u.Negative}, nil
	}
	return BalanceUpdate{Amount: new(uint256.Int).Sub(b, a), Negative: o.Negative}, nil
}

// SaturatingMerge is Merge clamping overflow at the maximum balance.
func (u BalanceUpdate) SaturatingMerge(o BalanceUpdate) BalanceUpdate {
	m, err := u.Merge(o)
	if err != nil {
		return BalanceUpdate{Amount: fixed.Clone(fixed.MaxBalance), Negative: u.Negative}
	}
	return m
}

// ApplyTo returns v adjusted by the update.
func (u BalanceUpdate) ApplyTo(v *uint256.Int) (*uint256.Int, error) {
	if u.Negative {
		return fixed.Sub(v, u.value())
	}
	return fixed.Add(v, u.value())
}

func (u BalanceUpdate) String() string {
	if u.Negative {
		return "-" + u.value().Dec()
	}
	return "+" + u.value().Dec()
}

// AssetReserveState is the subset of an asset's pool state the math needs.
type AssetReserveState struct {
	Reserve        *uint256.Int
	HubReserve     *uint256.Int
	Shares         *uint256.Int
	ProtocolShares *uint256.Int
}

func (s AssetReserveState) normalized() AssetReserveState {
	return AssetReserveState{
		Reserve:        fixed.Clone(s.Reserve),
		HubReserve:     fixed.Clone(s.HubReserve),
		Shares:         fixed.Clone(s.Shares),
		ProtocolShares: fixed.Clone(s.ProtocolShares),
	}
}

// Price returns hub_reserve / reserve.
func (s AssetReserveState) Price() (fixed.FixedU128, error) {
	if s.Reserve == nil || s.Reserve.IsZero() {
		return fixed.FixedU128{}, fixed.ErrZeroReserve
	}
	return fixed.FixedFromRational(fixed.Clone(s.HubReserve), s.Reserve)
}

// DeltaUpdate applies a change and returns the new state. The extra hub
// amount is not part of the asset's hub reserve; it is accounted for in the
// hub imbalance.
func (s AssetReserveState) DeltaUpdate(ch AssetStateChange) (AssetReserveState, error) {
	s = s.normalized()
	var (
		out AssetReserveState
		err error
	)
	if out.Reserve, err = ch.DeltaReserve.ApplyTo(s.Reserve); err != nil {
		return AssetReserveState{}, fmt.Errorf("reserve: %w", err)
	}
	if out.HubReserve, err = ch.DeltaHubReserve.ApplyTo(s.HubReserve); err != nil {
		return AssetReserveState{}, fmt.Errorf("hub reserve: %w", err)
	}
	if out.Shares, err = ch.DeltaShares.ApplyTo(s.Shares); err != nil {
		return AssetReserveState{}, fmt.Errorf("shares: %w", err)
	}
	if out.ProtocolShares, err = ch.DeltaProtocolShares.ApplyTo(s.ProtocolShares); err != nil {
		return AssetReserveState{}, fmt.Errorf("protocol shares: %w", err)
	}
	return out, nil
}

// AssetStateChange holds the signed deltas produced for one asset.
type AssetStateChange struct {
	DeltaReserve          BalanceUpdate
	DeltaHubReserve       BalanceUpdate
	DeltaShares           BalanceUpdate
	DeltaProtocolShares   BalanceUpdate
	ExtraHubReserveAmount BalanceUpdate
}

func (c AssetStateChange) TotalDeltaHubReserve() BalanceUpdate {
	return c.DeltaHubReserve.SaturatingMerge(c.ExtraHubReserveAmount)
}

func (c AssetStateChange) accountForFeeTaken(burn *uint256.Int) AssetStateChange {
	c.ExtraHubReserveAmount = c.ExtraHubReserveAmount.SaturatingMerge(Decrease(burn))
	return c
}

// TradeFee reports fee amounts; ProtocolFee includes the burned portion.
type TradeFee struct {
	AssetFee          *uint256.Int
	ProtocolFee       *uint256.Int
	BurnedProtocolFee *uint256.Int
}

type TradeStateChange struct {
	AssetIn  AssetStateChange
	AssetOut AssetStateChange
	Fee      TradeFee
}

// AccountForFeeTaken reduces the extra hub mint in proportion to the part of
// the asset fee that was taken out of the pool.
func (t TradeStateChange) AccountForFeeTaken(taken *uint256.Int) TradeStateChange {
	burn := CalculateBurnAmountBasedOnFeeTaken(taken, t.Fee.AssetFee, t.AssetOut.ExtraHubReserveAmount.value())
	t.AssetOut = t.AssetOut.accountForFeeTaken(burn)
	return t
}

// HubTradeStateChange is the delta of a trade where one side is the hub asset.
type HubTradeStateChange struct {
	Asset AssetStateChange
	Fee   TradeFee
}

func (t HubTradeStateChange) AccountForFeeTaken(taken *uint256.Int) HubTradeStateChange {
	burn := CalculateBurnAmountBasedOnFeeTaken(taken, t.Fee.AssetFee, t.Asset.ExtraHubReserveAmount.value())
	t.Asset = t.Asset.accountForFeeTaken(burn)
	return t
}

type LiquidityStateChange struct {
	Asset                AssetStateChange
	DeltaPositionReserve BalanceUpdate
	DeltaPositionShares  BalanceUpdate
	LPHubAmount          *uint256.Int
}

// Position is the math view of a liquidity position.
type Position struct {
	Amount *uint256.Int
	Shares *uint256.Int
	Price  fixed.Ratio
}

func (p Position) price() (fixed.FixedU128, error) {
	if p.Price.IsZero() {
		return fixed.FixedU128{}, fixed.ErrZeroReserve
	}
	return fixed.FixedFromRatio(p.Price)
}

// UpdateHubImbalance folds a trade's minted and burned hub amounts into the
// global imbalance. Minted extra hub increases it, burned protocol fee
// decreases it.
func UpdateHubImbalance(current BalanceUpdate, minted BalanceUpdate, burned *uint256.Int) (BalanceUpdate, error) {
	next, err := current.Merge(minted)
	if err != nil {
		return BalanceUpdate{}, err
	}
	return next.Merge(Decrease(fixed.Clone(burned)))
}
