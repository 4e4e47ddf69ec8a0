package oracle

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstRoundSeedsAverage(t *testing.T) {
	o := NewVolumeOracle(9)
	o.RecordTrade(0, uint256.NewInt(100), nil, uint256.NewInt(1_000))
	o.RecordTrade(0, uint256.NewInt(50), uint256.NewInt(30), uint256.NewInt(1_120))

	_, ok := o.Entry(0)
	assert.False(t, ok, "nothing is visible before the round closes")

	o.Close(1)
	e, ok := o.Entry(0)
	require.True(t, ok)
	assert.Equal(t, uint64(150), e.AmountIn.Uint64())
	assert.Equal(t, uint64(30), e.AmountOut.Uint64())
	assert.Equal(t, uint64(1_120), e.Liquidity.Uint64())
	assert.Equal(t, uint64(1), e.UpdatedAt)
}

func TestMovingAverage(t *testing.T) {
	// period 9 weighs the new round by 2/10
	o := NewVolumeOracle(9)
	o.RecordTrade(27, uint256.NewInt(1_000), uint256.NewInt(0), uint256.NewInt(10_000))
	o.Close(1)

	o.RecordTrade(27, uint256.NewInt(0), uint256.NewInt(500), uint256.NewInt(10_000))
	o.Close(2)

	e, ok := o.Entry(27)
	require.True(t, ok)
	assert.Equal(t, uint64(800), e.AmountIn.Uint64())
	assert.Equal(t, uint64(100), e.AmountOut.Uint64())
	assert.Equal(t, uint64(10_000), e.Liquidity.Uint64())
}

func TestIdleRoundsDecay(t *testing.T) {
	o := NewVolumeOracle(1)
	o.RecordTrade(5, uint256.NewInt(100), uint256.NewInt(40), uint256.NewInt(900))
	o.Close(1)
	o.Close(2)

	e, ok := o.Entry(5)
	require.True(t, ok)
	assert.True(t, e.AmountIn.IsZero())
	assert.True(t, e.AmountOut.IsZero())
	assert.Equal(t, uint64(900), e.Liquidity.Uint64())
	assert.Equal(t, uint64(2), e.UpdatedAt)
}

func TestEntriesAreCopies(t *testing.T) {
	o := NewVolumeOracle(0)
	assert.Equal(t, DefaultPeriod, o.Period())

	o.RecordLiquidity(3, uint256.NewInt(77))
	o.Close(1)

	all := o.Entries()
	require.Len(t, all, 1)
	all[3].Liquidity.SetUint64(1)

	e, _ := o.Entry(3)
	assert.Equal(t, uint64(77), e.Liquidity.Uint64())
}
