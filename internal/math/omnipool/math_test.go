package omnipool

import (
	"math/rand"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hxuan190/omnipool-engine/internal/math/fixed"
)

const UNIT uint64 = 1_000_000_000_000

func units(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(UNIT))
}

func state(reserve, hubReserve, shares uint64) AssetReserveState {
	return AssetReserveState{
		Reserve:        units(reserve),
		HubReserve:     units(hubReserve),
		Shares:         units(shares),
		ProtocolShares: fixed.Zero(),
	}
}

func assertUpdate(t *testing.T, want uint64, negative bool, got BalanceUpdate) {
	t.Helper()
	assert.Equal(t, want, got.Amount.Uint64(), "amount")
	assert.Equal(t, negative, got.Negative, "direction")
}

func TestCalculateSellStateChanges(t *testing.T) {
	in := state(10, 20, 10)
	out := state(5, 5, 20)

	tests := []struct {
		name        string
		assetFee    fixed.Permill
		protocolFee fixed.Permill
		m           fixed.Permill
		hubIn       uint64
		hubOut      uint64
		reserveOut  uint64
		assetFeeAmt uint64
		protocolAmt uint64
		burned      uint64
		extra       uint64
	}{
		{
			name:       "no fees",
			hubIn:      5714285714285,
			hubOut:     5714285714285,
			reserveOut: 2666666666666,
		},
		{
			name:        "asset and protocol fee with half burned",
			assetFee:    fixed.PermillFromPercent(1),
			protocolFee: fixed.PermillFromPercent(1),
			m:           fixed.PermillFromPercent(50),
			hubIn:       5714285714285,
			hubOut:      5657142857143,
			reserveOut:  2627613941018,
			assetFeeAmt: 26541554960,
			protocolAmt: 57142857142,
			burned:      28571428571,
			extra:       120577959183,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch, err := CalculateSellStateChanges(in, out, units(4), tt.assetFee, tt.protocolFee, tt.m)
			require.NoError(t, err)

			assertUpdate(t, 4*UNIT, false, ch.AssetIn.DeltaReserve)
			assertUpdate(t, tt.hubIn, true, ch.AssetIn.DeltaHubReserve)
			assertUpdate(t, tt.reserveOut, true, ch.AssetOut.DeltaReserve)
			assertUpdate(t, tt.hubOut, false, ch.AssetOut.DeltaHubReserve)
			assertUpdate(t, tt.extra, false, ch.AssetOut.ExtraHubReserveAmount)
			assert.Equal(t, tt.assetFeeAmt, ch.Fee.AssetFee.Uint64())
			assert.Equal(t, tt.protocolAmt, ch.Fee.ProtocolFee.Uint64())
			assert.Equal(t, tt.burned, ch.Fee.BurnedProtocolFee.Uint64())
		})
	}
}

func TestCalculateBuyStateChanges(t *testing.T) {
	in := state(10, 20, 10)
	out := state(5, 5, 20)

	tests := []struct {
		name        string
		assetFee    fixed.Permill
		protocolFee fixed.Permill
		m           fixed.Permill
		reserveIn   uint64
		hubIn       uint64
		hubOut      uint64
		assetFeeAmt uint64
		protocolAmt uint64
		burned      uint64
		extra       uint64
	}{
		{
			name:      "no fees",
			reserveIn: 666666666668,
			hubIn:     1250000000001,
			hubOut:    1250000000001,
		},
		{
			name:        "asset and protocol fee with half burned",
			assetFee:    fixed.PermillFromPercent(1),
			protocolFee: fixed.PermillFromPercent(1),
			m:           fixed.PermillFromPercent(50),
			reserveIn:   682966807814,
			hubIn:       1278608873547,
			hubOut:      1265822784812,
			assetFeeAmt: 10101010102,
			protocolAmt: 12786088735,
			burned:      6393044367,
			extra:       15862842493,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch, err := CalculateBuyStateChanges(in, out, units(1), tt.assetFee, tt.protocolFee, tt.m)
			require.NoError(t, err)

			assertUpdate(t, tt.reserveIn, false, ch.AssetIn.DeltaReserve)
			assertUpdate(t, tt.hubIn, true, ch.AssetIn.DeltaHubReserve)
			assertUpdate(t, UNIT, true, ch.AssetOut.DeltaReserve)
			assertUpdate(t, tt.hubOut, false, ch.AssetOut.DeltaHubReserve)
			assertUpdate(t, tt.extra, false, ch.AssetOut.ExtraHubReserveAmount)
			assert.Equal(t, tt.assetFeeAmt, ch.Fee.AssetFee.Uint64())
			assert.Equal(t, tt.protocolAmt, ch.Fee.ProtocolFee.Uint64())
			assert.Equal(t, tt.burned, ch.Fee.BurnedProtocolFee.Uint64())
		})
	}
}

func TestTradeErrors(t *testing.T) {
	in := state(10, 20, 10)
	out := state(5, 5, 20)

	_, err := CalculateBuyStateChanges(in, out, units(5), 0, 0, 0)
	assert.ErrorIs(t, err, fixed.ErrInsufficientOutReserve)

	_, err = CalculateBuyStateChanges(in, out, units(5), fixed.PermillFromPercent(1), 0, 0)
	assert.ErrorIs(t, err, fixed.ErrInsufficientOutReserve)

	empty := AssetReserveState{Reserve: fixed.Zero(), HubReserve: units(1)}
	_, err = CalculateSellStateChanges(empty, out, units(1), 0, 0, 0)
	assert.ErrorIs(t, err, fixed.ErrZeroReserve)

	weightless := AssetReserveState{Reserve: units(1), HubReserve: fixed.Zero()}
	_, err = CalculateSellStateChanges(in, weightless, units(1), 0, 0, 0)
	assert.ErrorIs(t, err, fixed.ErrZeroWeight)

	// the hub leg of this buy needs more hub asset than asset in holds
	thin := state(10, 1, 10)
	_, err = CalculateBuyStateChanges(thin, out, units(4), 0, 0, 0)
	assert.ErrorIs(t, err, fixed.ErrOverflow)
}

func TestHubTrades(t *testing.T) {
	out := state(5, 5, 20)
	fee := fixed.PermillFromPercent(1)

	sell, err := CalculateSellHubStateChanges(out, units(1), fee)
	require.NoError(t, err)
	assertUpdate(t, 824999999999, true, sell.Asset.DeltaReserve)
	assertUpdate(t, UNIT, false, sell.Asset.DeltaHubReserve)
	assertUpdate(t, 12000000000, false, sell.Asset.ExtraHubReserveAmount)
	assert.Equal(t, uint64(8333333334), sell.Fee.AssetFee.Uint64())

	buy, err := CalculateBuyForHubAssetStateChanges(out, units(1), fee)
	require.NoError(t, err)
	assertUpdate(t, UNIT, true, buy.Asset.DeltaReserve)
	assertUpdate(t, 1265822784811, false, buy.Asset.DeltaHubReserve)
	assertUpdate(t, 15862842493, false, buy.Asset.ExtraHubReserveAmount)
	assert.Equal(t, uint64(10101010102), buy.Fee.AssetFee.Uint64())
}

func TestCalculateFeeAmountForBuy(t *testing.T) {
	assert.True(t, CalculateFeeAmountForBuy(0, units(1)).IsZero())
	assert.Equal(t, UNIT, CalculateFeeAmountForBuy(fixed.OnePermill, units(1)).Uint64())
	assert.Equal(t, uint64(10101010102), CalculateFeeAmountForBuy(fixed.PermillFromPercent(1), units(1)).Uint64())
}

func TestAccountForFeeTaken(t *testing.T) {
	in := state(10, 20, 10)
	out := state(5, 5, 20)
	ch, err := CalculateSellStateChanges(in, out, units(4), fixed.PermillFromPercent(1), 0, 0)
	require.NoError(t, err)

	// taking the whole asset fee out of the pool burns the whole extra mint
	full := ch.AccountForFeeTaken(ch.Fee.AssetFee)
	assert.True(t, full.AssetOut.ExtraHubReserveAmount.IsZero())

	none := ch.AccountForFeeTaken(fixed.Zero())
	assert.True(t, none.AssetOut.ExtraHubReserveAmount.Amount.Eq(ch.AssetOut.ExtraHubReserveAmount.Amount))
}

func TestDeltaUpdate(t *testing.T) {
	in := state(10, 20, 10)
	out := state(5, 5, 20)
	ch, err := CalculateSellStateChanges(in, out, units(4), 0, 0, 0)
	require.NoError(t, err)

	newIn, err := in.DeltaUpdate(ch.AssetIn)
	require.NoError(t, err)
	assert.Equal(t, 14*UNIT, newIn.Reserve.Uint64())
	assert.Equal(t, 20*UNIT-5714285714285, newIn.HubReserve.Uint64())

	_, err = out.DeltaUpdate(AssetStateChange{DeltaReserve: Decrease(units(6))})
	assert.ErrorIs(t, err, fixed.ErrOverflow)
}

func TestBalanceUpdateMerge(t *testing.T) {
	m, err := Increase(fixed.U(10)).Merge(Decrease(fixed.U(15)))
	require.NoError(t, err)
	assertUpdate(t, 5, true, m)

	m, err = Decrease(fixed.U(10)).Merge(Decrease(fixed.U(15)))
	require.NoError(t, err)
	assertUpdate(t, 25, true, m)

	assert.True(t, Decrease(fixed.Zero()).IsPositive())

	imb, err := UpdateHubImbalance(BalanceUpdate{}, Increase(fixed.U(100)), fixed.U(30))
	require.NoError(t, err)
	assertUpdate(t, 70, false, imb)
}

func randomState(r *rand.Rand) AssetReserveState {
	scale := uint256.NewInt(1_000_000)
	pick := func() *uint256.Int {
		return new(uint256.Int).Mul(uint256.NewInt(r.Uint64()>>8+1_000_000), scale)
	}
	return AssetReserveState{Reserve: pick(), HubReserve: pick(), Shares: pick(), ProtocolShares: fixed.Zero()}
}

// Selling and then trading straight back must never return more than was put in.
func TestSellRoundTripCreatesNoValue(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	fees := []fixed.Permill{0, 2_500, 10_000, 30_000}
	protocolFees := []fixed.Permill{0, 500, 2_000}

	for i := 0; i < 2_000; i++ {
		a, b := randomState(r), randomState(r)
		assetFee := fees[r.Intn(len(fees))]
		protocolFee := protocolFees[r.Intn(len(protocolFees))]
		amount := new(uint256.Int).Div(a.Reserve, uint256.NewInt(uint64(r.Intn(50)+3)))

		first, err := CalculateSellStateChanges(a, b, amount, assetFee, protocolFee, 0)
		require.NoError(t, err)
		a2, err := a.DeltaUpdate(first.AssetIn)
		require.NoError(t, err)
		b2, err := b.DeltaUpdate(first.AssetOut)
		require.NoError(t, err)

		received := first.AssetOut.DeltaReserve.Amount
		if received.IsZero() {
			continue
		}

		back, err := CalculateSellStateChanges(b2, a2, received, assetFee, protocolFee, 0)
		require.NoError(t, err)
		require.False(t, back.AssetOut.DeltaReserve.Amount.Gt(amount), "round trip %d returned %s for %s", i, back.AssetOut.DeltaReserve.Amount, amount)

		buyBack, err := CalculateBuyStateChanges(b2, a2, amount, assetFee, protocolFee, 0)
		if err != nil {
			continue
		}
		require.False(t, buyBack.AssetIn.DeltaReserve.Amount.Lt(received), "buy back %d cost %s, received %s", i, buyBack.AssetIn.DeltaReserve.Amount, received)
	}
}
