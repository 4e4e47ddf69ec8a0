package fixed

import (
	"math/big"

	"github.com/holiman/uint256"
)

// FixedAccuracy is the scale of FixedU128 (18 decimals).
var FixedAccuracy = uint256.NewInt(1_000_000_000_000_000_000)

var permillToFixed = uint256.NewInt(1_000_000_000_000)

// FixedU128 is an unsigned fixed-point number with 18 decimals whose inner
// value is bounded to 128 bits.
type FixedU128 struct {
	inner *uint256.Int
}

// FixedFromInner wraps a raw inner value.
func FixedFromInner(inner *uint256.Int) FixedU128 {
	return FixedU128{inner: Clone(inner)}
}

// FixedFromInt returns v as a fixed-point value.
func FixedFromInt(v uint64) FixedU128 {
	return FixedU128{inner: new(uint256.Int).Mul(uint256.NewInt(v), FixedAccuracy)}
}

// FixedOne returns 1.
func FixedOne() FixedU128 {
	return FixedU128{inner: Clone(FixedAccuracy)}
}

// FixedFromRational returns floor(n / d) at 18 decimals.
func FixedFromRational(n, d *uint256.Int) (FixedU128, error) {
	v, err := MulDiv(n, FixedAccuracy, d)
	if err != nil {
		return FixedU128{}, err
	}
	return FixedU128{inner: v}, nil
}

// FixedFromRatio converts a Ratio.
func FixedFromRatio(r Ratio) (FixedU128, error) {
	return FixedFromRational(r.N, r.D)
}

// FixedFromPermill converts a Permill exactly.
func FixedFromPermill(p Permill) FixedU128 {
	return FixedU128{inner: new(uint256.Int).Mul(uint256.NewInt(uint64(p)), permillToFixed)}
}

// Inner returns a copy of the raw inner value.
func (f FixedU128) Inner() *uint256.Int {
	return Clone(f.inner)
}

func (f FixedU128) raw() *uint256.Int {
	if f.inner == nil {
		return zero
	}
	return f.inner
}

// IsZero reports whether f is zero.
func (f FixedU128) IsZero() bool {
	return f.raw().IsZero()
}

// Cmp compares two fixed-point values.
func (f FixedU128) Cmp(o FixedU128) int {
	return f.raw().Cmp(o.raw())
}

// CheckedAdd returns f + o.
func (f FixedU128) CheckedAdd(o FixedU128) (FixedU128, error) {
	v, err := Add(f.raw(), o.raw())
	if err != nil {
		return FixedU128{}, err
	}
	return FixedU128{inner: v}, nil
}

// SaturatingSub returns max(f - o, 0).
func (f FixedU128) SaturatingSub(o FixedU128) FixedU128 {
	return FixedU128{inner: SaturatingSub(f.raw(), o.raw())}
}

// CheckedMul returns floor(f * o).
func (f FixedU128) CheckedMul(o FixedU128) (FixedU128, error) {
	v, err := MulDiv(f.raw(), o.raw(), FixedAccuracy)
	if err != nil {
		return FixedU128{}, err
	}
	return FixedU128{inner: v}, nil
}

// CheckedDiv returns floor(f / o).
func (f FixedU128) CheckedDiv(o FixedU128) (FixedU128, error) {
	v, err := MulDiv(f.raw(), FixedAccuracy, o.raw())
	if err != nil {
		return FixedU128{}, err
	}
	return FixedU128{inner: v}, nil
}

// CheckedMulInt returns floor(f * v) as a balance.
func (f FixedU128) CheckedMulInt(v *uint256.Int) (*uint256.Int, error) {
	return MulDiv(v, f.raw(), FixedAccuracy)
}

// CheckedMulIntCeil returns ceil(f * v) as a balance.
func (f FixedU128) CheckedMulIntCeil(v *uint256.Int) (*uint256.Int, error) {
	return MulDivCeil(v, f.raw(), FixedAccuracy)
}

// SaturatingPow raises f to the n-th power by repeated squaring, rounding
// every step down. Values that overflow saturate at the maximum.
func (f FixedU128) SaturatingPow(n uint64) FixedU128 {
	result := FixedOne()
	base := f
	for n > 0 {
		if n&1 == 1 {
			next, err := result.CheckedMul(base)
			if err != nil {
				return FixedU128{inner: Clone(MaxBalance)}
			}
			result = next
		}
		n >>= 1
		if n == 0 {
			break
		}
		sq, err := base.CheckedMul(base)
		if err != nil {
			return FixedU128{inner: Clone(MaxBalance)}
		}
		base = sq
		if base.IsZero() {
			return FixedU128{inner: new(uint256.Int)}
		}
	}
	return result
}

// ToPermill narrows f to parts per million, rounding down and capping at 100%.
func (f FixedU128) ToPermill() Permill {
	parts := new(uint256.Int).Div(f.raw(), permillToFixed)
	if !parts.IsUint64() || parts.Uint64() > uint64(PermillAccuracy) {
		return OnePermill
	}
	return Permill(parts.Uint64())
}

// Ratio returns inner/1e18.
func (f FixedU128) Ratio() Ratio {
	return Ratio{N: Clone(f.raw()), D: Clone(FixedAccuracy)}
}

// Float64 is a lossy view used for logging and metrics.
func (f FixedU128) Float64() float64 {
	v, _ := new(big.Rat).SetFrac(f.raw().ToBig(), FixedAccuracy.ToBig()).Float64()
	return v
}

func (f FixedU128) String() string {
	return new(big.Rat).SetFrac(f.raw().ToBig(), FixedAccuracy.ToBig()).FloatString(18)
}
