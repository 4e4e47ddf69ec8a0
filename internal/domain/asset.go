package domain

import (
	"github.com/holiman/uint256"

	"github.com/hxuan190/omnipool-engine/internal/math/fixed"
)

type AssetID uint32

const (
	// HubAssetID is the numeraire every pool is priced against.
	HubAssetID       AssetID = 1
	HubAssetDecimals uint8   = 12
)

type Tradability uint8

const (
	TradeSell            Tradability = 1 << 0
	TradeBuy             Tradability = 1 << 1
	TradeAddLiquidity    Tradability = 1 << 2
	TradeRemoveLiquidity Tradability = 1 << 3

	TradeAll = TradeSell | TradeBuy | TradeAddLiquidity | TradeRemoveLiquidity
)

func (t Tradability) Has(mask Tradability) bool {
	return t&mask == mask
}

func (t Tradability) String() string {
	if t == 0 {
		return "FROZEN"
	}
	s := ""
	for _, f := range []struct {
		flag Tradability
		name string
	}{
		{TradeSell, "SELL"},
		{TradeBuy, "BUY"},
		{TradeAddLiquidity, "ADD_LIQUIDITY"},
		{TradeRemoveLiquidity, "REMOVE_LIQUIDITY"},
	} {
		if t.Has(f.flag) {
			if s != "" {
				s += "|"
			}
			s += f.name
		}
	}
	return s
}

// AssetState is the per-asset pool snapshot. Balances are 128-bit.
type AssetState struct {
	AssetID        AssetID       `json:"assetId"`
	Symbol         string        `json:"symbol,omitempty"`
	Decimals       uint8         `json:"decimals"`
	Reserve        *uint256.Int  `json:"reserve"`
	HubReserve     *uint256.Int  `json:"hubReserve"`
	Shares         *uint256.Int  `json:"shares"`
	ProtocolShares *uint256.Int  `json:"protocolShares"`
	Fee            fixed.Permill `json:"fee"`
	ProtocolFee    fixed.Permill `json:"protocolFee"`
	Cap            fixed.Permill `json:"cap"`
	Tradable       Tradability   `json:"tradable"`
}

// HubPrice returns hub_reserve / reserve, or zero when the reserve is empty.
func (a *AssetState) HubPrice() fixed.Ratio {
	if a.Reserve == nil || a.Reserve.IsZero() {
		return fixed.ZeroRatio()
	}
	return fixed.NewRatio(a.HubReserve, a.Reserve)
}

// Normalize replaces nil balances with zero.
func (a *AssetState) Normalize() {
	for _, p := range []**uint256.Int{&a.Reserve, &a.HubReserve, &a.Shares, &a.ProtocolShares} {
		if *p == nil {
			*p = new(uint256.Int)
		}
	}
}

func (a *AssetState) Clone() *AssetState {
	c := *a
	c.Reserve = fixed.Clone(a.Reserve)
	c.HubReserve = fixed.Clone(a.HubReserve)
	c.Shares = fixed.Clone(a.Shares)
	c.ProtocolShares = fixed.Clone(a.ProtocolShares)
	return &c
}

// Position is a liquidity provider's stake in one asset. Price is the hub
// price at the time liquidity was added.
type Position struct {
	ID      uint64       `json:"id"`
	Owner   string       `json:"owner"`
	AssetID AssetID      `json:"assetId"`
	Amount  *uint256.Int `json:"amount"`
	Shares  *uint256.Int `json:"shares"`
	Price   fixed.Ratio  `json:"-"`
}

func (p *Position) Clone() *Position {
	c := *p
	c.Amount = fixed.Clone(p.Amount)
	c.Shares = fixed.Clone(p.Shares)
	c.Price = fixed.NewRatio(p.Price.N, p.Price.D)
	return &c
}
