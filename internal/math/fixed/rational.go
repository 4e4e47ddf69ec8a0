package fixed

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// Rounding selects the side a lossy narrowing is allowed to err on.
type Rounding uint8

const (
	// Nearest truncates numerator and denominator alike.
	Nearest Rounding = iota
	// Down guarantees the narrowed ratio is <= the exact one.
	Down
	// Up guarantees the narrowed ratio is >= the exact one.
	Up
)

func (r Rounding) String() string {
	switch r {
	case Down:
		return "down"
	case Up:
		return "up"
	default:
		return "nearest"
	}
}

// bias returns the unit added to (numerator, denominator) after a lossy shift.
func (r Rounding) bias() (uint64, uint64) {
	switch r {
	case Down:
		return 0, 1
	case Up:
		return 1, 0
	default:
		return 0, 0
	}
}

// Ratio is a rational n/d with both components bounded to 128 bits.
type Ratio struct {
	N *uint256.Int
	D *uint256.Int
}

// NewRatio builds a Ratio from two balances.
func NewRatio(n, d *uint256.Int) Ratio {
	return Ratio{N: Clone(n), D: Clone(d)}
}

// RatioFromUint64 builds a Ratio from two uint64 values.
func RatioFromUint64(n, d uint64) Ratio {
	return Ratio{N: uint256.NewInt(n), D: uint256.NewInt(d)}
}

// ZeroRatio returns 0/1.
func ZeroRatio() Ratio {
	return RatioFromUint64(0, 1)
}

// OneRatio returns 1/1.
func OneRatio() Ratio {
	return RatioFromUint64(1, 1)
}

// IsZero reports whether the ratio is zero or undefined.
func (r Ratio) IsZero() bool {
	return r.N == nil || r.N.IsZero() || r.D == nil || r.D.IsZero()
}

// Inverse returns d/n.
func (r Ratio) Inverse() Ratio {
	return Ratio{N: Clone(r.D), D: Clone(r.N)}
}

// Cmp compares two ratios by cross multiplication.
func (r Ratio) Cmp(o Ratio) int {
	left := new(big.Int).Mul(r.N.ToBig(), o.D.ToBig())
	right := new(big.Int).Mul(o.N.ToBig(), r.D.ToBig())
	return left.Cmp(right)
}

// Mul multiplies two ratios, narrowing the product with the given rounding.
func (r Ratio) Mul(o Ratio, rounding Rounding) Ratio {
	n := new(big.Int).Mul(r.N.ToBig(), o.N.ToBig())
	d := new(big.Int).Mul(r.D.ToBig(), o.D.ToBig())
	return RoundToRational(n, d, rounding)
}

// MulInt returns floor(v * n / d).
func (r Ratio) MulInt(v *uint256.Int) (*uint256.Int, error) {
	return MulDiv(v, r.N, r.D)
}

// MulIntCeil returns ceil(v * n / d).
func (r Ratio) MulIntCeil(v *uint256.Int) (*uint256.Int, error) {
	return MulDivCeil(v, r.N, r.D)
}

// Float64 is a lossy view used for logging and metrics.
func (r Ratio) Float64() float64 {
	if r.IsZero() {
		return 0
	}
	f, _ := new(big.Rat).SetFrac(r.N.ToBig(), r.D.ToBig()).Float64()
	return f
}

func (r Ratio) String() string {
	if r.N == nil || r.D == nil {
		return "0/1"
	}
	return fmt.Sprintf("%s/%s", r.N.Dec(), r.D.Dec())
}

// RoundToRational narrows an arbitrary-width (n, d) pair to a 128-bit Ratio.
// Both components are shifted right until they fit; when bits were dropped
// the rounding bias is applied and components are lifted so that a non-zero
// numerator stays non-zero and the denominator is never zero.
func RoundToRational(n, d *big.Int, r Rounding) Ratio {
	bits := n.BitLen()
	if d.BitLen() > bits {
		bits = d.BitLen()
	}
	shift := bits - 128
	if shift <= 0 {
		return Ratio{N: uint256.MustFromBig(n), D: uint256.MustFromBig(d)}
	}

	minN := uint64(0)
	if n.Sign() != 0 {
		minN = 1
	}
	biasN, biasD := r.bias()

	sn := GetBigInt()
	sd := GetBigInt()
	defer PutBigInt(sn)
	defer PutBigInt(sd)
	sn.Rsh(n, uint(shift))
	sd.Rsh(d, uint(shift))

	rn := SaturatingAdd(uint256.MustFromBig(sn), uint256.NewInt(biasN))
	rd := SaturatingAdd(uint256.MustFromBig(sd), uint256.NewInt(biasD))
	if rn.Lt(uint256.NewInt(minN)) {
		rn.SetUint64(minN)
	}
	if rd.IsZero() {
		rd.SetOne()
	}
	return Ratio{N: rn, D: rd}
}

// RoundU256ToRational is RoundToRational for 256-bit inputs.
func RoundU256ToRational(n, d *uint256.Int, r Rounding) Ratio {
	return RoundToRational(n.ToBig(), d.ToBig(), r)
}
