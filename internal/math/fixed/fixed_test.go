package fixed

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func maxU128() *uint256.Int {
	return new(uint256.Int).Set(MaxBalance)
}

func TestRoundToRational(t *testing.T) {
	u256Max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	u512Max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 512), big.NewInt(1))

	tests := []struct {
		name  string
		n, d  *big.Int
		wantN *uint256.Int
		wantD *uint256.Int
	}{
		{"one over one", big.NewInt(1), big.NewInt(1), U(1), U(1)},
		{"u256 max over one", u256Max, big.NewInt(1), maxU128(), U(1)},
		{"u512 max over one", u512Max, big.NewInt(1), maxU128(), U(1)},
		{"u512 max over u512 max", u512Max, u512Max, maxU128(), maxU128()},
		{"one over u512 max", big.NewInt(1), u512Max, U(1), maxU128()},
		{"fits already", big.NewInt(6), big.NewInt(4), U(6), U(4)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RoundToRational(tt.n, tt.d, Nearest)
			assert.Equal(t, tt.wantN.Dec(), got.N.Dec())
			assert.Equal(t, tt.wantD.Dec(), got.D.Dec())
		})
	}
}

func TestRoundToRationalDirection(t *testing.T) {
	n, ok := new(big.Int).SetString("34599284998074995708396179719034205723253966454380752564716172454912477882716", 10)
	require.True(t, ok)
	d, ok := new(big.Int).SetString("323853616005226055489000679651893043332", 10)
	require.True(t, ok)
	exact := new(big.Rat).SetFrac(n, d)

	down := RoundToRational(n, d, Down)
	assert.LessOrEqual(t, new(big.Rat).SetFrac(down.N.ToBig(), down.D.ToBig()).Cmp(exact), 0)
	assert.LessOrEqual(t, down.N.BitLen(), 128)
	assert.LessOrEqual(t, down.D.BitLen(), 128)

	up := RoundToRational(n, d, Up)
	assert.GreaterOrEqual(t, new(big.Rat).SetFrac(up.N.ToBig(), up.D.ToBig()).Cmp(exact), 0)
}

func TestMulDiv(t *testing.T) {
	tests := []struct {
		name     string
		a, b, c  uint64
		floor    uint64
		ceil     uint64
		nearest  uint64
		errFloor error
	}{
		{"exact", 10, 10, 5, 20, 20, 20, nil},
		{"remainder below half", 10, 1, 3, 3, 4, 3, nil},
		{"remainder at half", 3, 1, 2, 1, 2, 2, nil},
		{"zero numerator", 0, 7, 3, 0, 0, 0, nil},
		{"division by zero", 1, 1, 0, 0, 0, 0, ErrDivisionByZero},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			floor, err := MulDiv(U(tt.a), U(tt.b), U(tt.c))
			if tt.errFloor != nil {
				require.ErrorIs(t, err, tt.errFloor)
				_, err = MulDivCeil(U(tt.a), U(tt.b), U(tt.c))
				require.ErrorIs(t, err, tt.errFloor)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.floor, floor.Uint64())

			ceil, err := MulDivCeil(U(tt.a), U(tt.b), U(tt.c))
			require.NoError(t, err)
			assert.Equal(t, tt.ceil, ceil.Uint64())

			nearest, err := MulDivRounding(U(tt.a), U(tt.b), U(tt.c), Nearest)
			require.NoError(t, err)
			assert.Equal(t, tt.nearest, nearest.Uint64())
		})
	}
}

func TestMulDivWideIntermediate(t *testing.T) {
	// (2^128-1)^2 / (2^128-1) needs a 256-bit product but returns a balance
	got, err := MulDiv(MaxBalance, MaxBalance, MaxBalance)
	require.NoError(t, err)
	assert.True(t, got.Eq(MaxBalance))

	_, err = MulDiv(MaxBalance, U(2), U(1))
	require.ErrorIs(t, err, ErrOverflow)
}

func TestCheckedAddSub(t *testing.T) {
	_, err := Add(MaxBalance, U(1))
	require.ErrorIs(t, err, ErrOverflow)

	_, err = Sub(U(1), U(2))
	require.ErrorIs(t, err, ErrOverflow)

	assert.True(t, SaturatingSub(U(1), U(2)).IsZero())
	assert.True(t, SaturatingAdd(MaxBalance, U(5)).Eq(MaxBalance))

	diff, negative := AbsDiff(U(5), U(20))
	assert.Equal(t, uint64(15), diff.Uint64())
	assert.True(t, negative)
}

func TestParseBalance(t *testing.T) {
	v, err := ParseBalance("340282366920938463463374607431768211455")
	require.NoError(t, err)
	assert.True(t, v.Eq(MaxBalance))

	_, err = ParseBalance("340282366920938463463374607431768211456")
	require.ErrorIs(t, err, ErrOverflow)

	_, err = ParseBalance("abc")
	require.Error(t, err)
}

func TestPermill(t *testing.T) {
	fee := PermillFromPercent(3)
	assert.Equal(t, uint32(30_000), fee.Parts())
	assert.Equal(t, uint32(970_000), fee.Complement().Parts())

	floor, err := fee.MulFloor(U(1_001))
	require.NoError(t, err)
	assert.Equal(t, uint64(30), floor.Uint64())

	ceil, err := fee.MulCeil(U(1_001))
	require.NoError(t, err)
	assert.Equal(t, uint64(31), ceil.Uint64())

	p, err := PermillFromRational(1, 400)
	require.NoError(t, err)
	assert.Equal(t, Permill(2_500), p)

	_, err = PermillFromRational(1, 0)
	require.ErrorIs(t, err, ErrDivisionByZero)

	assert.Equal(t, OnePermill, PermillFromParts(2_000_000))
	assert.Equal(t, "0.2500%", p.String())
}

func TestFixedU128(t *testing.T) {
	half, err := FixedFromRational(U(1), U(2))
	require.NoError(t, err)

	quarter := half.SaturatingPow(2)
	want, err := FixedFromRational(U(1), U(4))
	require.NoError(t, err)
	assert.Equal(t, 0, quarter.Cmp(want))

	assert.Equal(t, 0, half.SaturatingPow(0).Cmp(FixedOne()))

	v, err := half.CheckedMulInt(U(101))
	require.NoError(t, err)
	assert.Equal(t, uint64(50), v.Uint64())

	v, err = half.CheckedMulIntCeil(U(101))
	require.NoError(t, err)
	assert.Equal(t, uint64(51), v.Uint64())

	assert.Equal(t, Permill(500_000), half.ToPermill())
	assert.Equal(t, OnePermill, FixedFromInt(3).ToPermill())
	assert.Equal(t, 0, FixedFromPermill(Permill(500_000)).Cmp(half))
	assert.InDelta(t, 0.5, half.Float64(), 1e-12)
}

func TestRatio(t *testing.T) {
	a := RatioFromUint64(1, 3)
	b := RatioFromUint64(2, 6)
	assert.Equal(t, 0, a.Cmp(b))
	assert.Equal(t, -1, a.Cmp(RatioFromUint64(1, 2)))

	prod := a.Mul(RatioFromUint64(3, 1), Nearest)
	assert.Equal(t, 0, prod.Cmp(OneRatio()))

	v, err := RatioFromUint64(2, 3).MulInt(U(10))
	require.NoError(t, err)
	assert.Equal(t, uint64(6), v.Uint64())
	assert.True(t, ZeroRatio().IsZero())
	assert.Equal(t, "3/1", a.Inverse().String())
}
