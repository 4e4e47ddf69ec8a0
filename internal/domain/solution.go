package domain

import (
	"github.com/holiman/uint256"
)

const OmnipoolName = "omnipool"

type TradeKind uint8

const (
	TradeKindSell TradeKind = iota
	TradeKindBuy
)

func (k TradeKind) String() string {
	if k == TradeKindBuy {
		return "buy"
	}
	return "sell"
}

// TradeInstruction is residual flow routed through the pool after netting.
// A sell fixes AmountIn and expects AmountOut; a buy fixes AmountOut and
// expects AmountIn.
type TradeInstruction struct {
	Pool      string       `json:"pool"`
	Kind      TradeKind    `json:"kind"`
	AssetIn   AssetID      `json:"assetIn"`
	AssetOut  AssetID      `json:"assetOut"`
	AmountIn  *uint256.Int `json:"amountIn"`
	AmountOut *uint256.Int `json:"amountOut"`
}

// Solution is one round's complete execution plan.
type Solution struct {
	Proposer        string             `json:"proposer"`
	Round           uint64             `json:"round"`
	ResolvedIntents []ResolvedIntent   `json:"resolvedIntents"`
	Trades          []TradeInstruction `json:"trades"`
	Score           uint64             `json:"score"`
}

func (s *Solution) IsEmpty() bool {
	return s == nil || len(s.ResolvedIntents) == 0
}

// QuoteResult is a priced, unexecuted pool trade.
type QuoteResult struct {
	AssetIn     AssetID      `json:"assetIn"`
	AssetOut    AssetID      `json:"assetOut"`
	Kind        TradeKind    `json:"kind"`
	AmountIn    *uint256.Int `json:"amountIn"`
	AmountOut   *uint256.Int `json:"amountOut"`
	AssetFee    *uint256.Int `json:"assetFee"`
	ProtocolFee *uint256.Int `json:"protocolFee"`
	BurnedFee   *uint256.Int `json:"burnedFee"`
	SpotPrice   string       `json:"spotPrice"`
	Round       uint64       `json:"round"`
}
