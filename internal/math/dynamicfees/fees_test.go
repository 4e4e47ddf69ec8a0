package dynamicfees

import (
	"math/rand"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hxuan190/omnipool-engine/internal/math/fixed"
)

func entry(in, out, liquidity uint64) OracleEntry {
	return OracleEntry{
		AmountIn:  uint256.NewInt(in),
		AmountOut: uint256.NewInt(out),
		Liquidity: uint256.NewInt(liquidity),
	}
}

func params(decay fixed.FixedU128, maxPercent uint32) FeeParams {
	return FeeParams{
		MinFee:        fixed.PermillFromPercent(1),
		MaxFee:        fixed.PermillFromPercent(maxPercent),
		Decay:         decay,
		Amplification: fixed.FixedFromInt(2),
	}
}

func mustRational(t *testing.T, n, d uint64) fixed.FixedU128 {
	t.Helper()
	f, err := fixed.FixedFromRational(uint256.NewInt(n), uint256.NewInt(d))
	require.NoError(t, err)
	return f
}

func TestRecalculateFees(t *testing.T) {
	noDecay := fixed.FixedFromInt(0)
	slowDecay := mustRational(t, 1, 1000)

	tests := []struct {
		name    string
		volume  OracleEntry
		params  FeeParams
		elapsed uint64
		dir     NetVolumeDirection
		want    fixed.Permill
	}{
		{"asset fee falls on net inflow", entry(25, 20, 1000), params(noDecay, 30), 1, OutIn, fixed.PermillFromPercent(9)},
		{"asset fee rises on net outflow", entry(5, 20, 1000), params(noDecay, 30), 1, OutIn, fixed.PermillFromPercent(13)},
		{"protocol fee falls on net outflow", entry(5, 20, 1000), params(noDecay, 30), 1, InOut, fixed.PermillFromPercent(7)},
		{"protocol fee rises on net inflow", entry(25, 20, 1000), params(noDecay, 30), 1, InOut, fixed.PermillFromPercent(11)},
		{"asset fee clamps to max", entry(5, 20, 100), params(slowDecay, 30), 3, OutIn, fixed.PermillFromPercent(30)},
		{"asset fee clamps to min", entry(25, 20, 100), params(slowDecay, 30), 3, OutIn, fixed.PermillFromPercent(1)},
		{"protocol fee clamps to min", entry(5, 20, 100), params(slowDecay, 30), 3, InOut, fixed.PermillFromPercent(1)},
		{"protocol fee clamps to max", entry(25, 20, 100), params(slowDecay, 15), 3, InOut, fixed.PermillFromPercent(15)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeDynamicFee(tt.volume, tt.params, fixed.PermillFromPercent(10), tt.elapsed, tt.dir)
			assert.Equal(t, tt.want, got, "got %s", got)
		})
	}
}

func TestDecayTowardMinimum(t *testing.T) {
	p := FeeParams{
		MinFee:        fixed.PermillFromParts(2_500),
		MaxFee:        fixed.PermillFromPercent(30),
		Decay:         mustRational(t, 5, 10_000),
		Amplification: fixed.FixedFromInt(10),
	}
	volume := OracleEntry{
		AmountIn:  fixed.Zero(),
		AmountOut: fixed.Zero(),
		Liquidity: fixed.MustBalance("100000000000000000"),
	}

	// 0.25% + 9.75% * 0.9995^2
	got := RecalculateAssetFee(volume, fixed.PermillFromPercent(10), 2, p)
	assert.Equal(t, fixed.PermillFromParts(99_902), got)
}

func TestZeroElapsedIsNoop(t *testing.T) {
	p := params(fixed.FixedFromInt(0), 30)
	prev := fixed.PermillFromPercent(10)
	assert.Equal(t, prev, ComputeDynamicFee(entry(5, 20, 1000), p, prev, 0, OutIn))

	e := FeeEntry{AssetFee: prev, ProtocolFee: prev, Timestamp: 7}
	assert.Equal(t, e, RecalculateFees(e, entry(5, 20, 1000), 7, p, p))

	next := RecalculateFees(e, entry(5, 20, 1000), 8, p, p)
	assert.Equal(t, uint64(8), next.Timestamp)
	assert.Equal(t, fixed.PermillFromPercent(13), next.AssetFee)
	assert.Equal(t, fixed.PermillFromPercent(7), next.ProtocolFee)
}

func TestZeroLiquidityClampsPrevious(t *testing.T) {
	p := params(fixed.FixedFromInt(0), 5)
	got := ComputeDynamicFee(entry(5, 20, 0), p, fixed.PermillFromPercent(10), 4, OutIn)
	assert.Equal(t, fixed.PermillFromPercent(5), got)
}

func TestNetVolume(t *testing.T) {
	v, negative := entry(5, 20, 0).NetVolume(OutIn)
	assert.Equal(t, uint64(15), v.Uint64())
	assert.False(t, negative)

	v, negative = entry(5, 20, 0).NetVolume(InOut)
	assert.Equal(t, uint64(15), v.Uint64())
	assert.True(t, negative)
}

func TestFeeParamsValidate(t *testing.T) {
	assert.NoError(t, params(fixed.FixedFromInt(0), 30).Validate())

	bad := params(fixed.FixedFromInt(0), 30)
	bad.MinFee = fixed.PermillFromPercent(40)
	assert.ErrorIs(t, bad.Validate(), ErrInvalidFeeParams)
}

func TestFeeStaysInBounds(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	p := FeeParams{
		MinFee:        fixed.PermillFromParts(2_500),
		MaxFee:        fixed.PermillFromPercent(5),
		Decay:         mustRational(t, 5, 10_000),
		Amplification: fixed.FixedFromInt(10),
	}

	fee := p.MinFee
	for i := 0; i < 5_000; i++ {
		volume := entry(r.Uint64()>>20, r.Uint64()>>20, r.Uint64()>>10+1)
		fee = ComputeDynamicFee(volume, p, fee, uint64(r.Intn(5)+1), NetVolumeDirection(r.Intn(2)))
		require.GreaterOrEqual(t, fee, p.MinFee)
		require.LessOrEqual(t, fee, p.MaxFee)
	}
}

func TestBalancedVolumeDecaysMonotonically(t *testing.T) {
	p := FeeParams{
		MinFee:        fixed.PermillFromParts(2_500),
		MaxFee:        fixed.PermillFromPercent(30),
		Decay:         mustRational(t, 1, 100),
		Amplification: fixed.FixedFromInt(10),
	}
	volume := entry(1_000, 1_000, 1_000_000)

	fee := fixed.PermillFromPercent(20)
	for i := 0; i < 1_000; i++ {
		next := ComputeDynamicFee(volume, p, fee, 1, OutIn)
		require.LessOrEqual(t, next, fee)
		require.GreaterOrEqual(t, next, p.MinFee)
		fee = next
	}
	assert.Less(t, fee, fixed.PermillFromPercent(1))
}
