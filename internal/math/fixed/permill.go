package fixed

import (
	"fmt"

	"github.com/holiman/uint256"
)

// PermillAccuracy is the denominator of a Permill.
const PermillAccuracy uint32 = 1_000_000

var permillDenom = uint256.NewInt(uint64(PermillAccuracy))

// Permill is a fraction in parts per million, capped at 100%.
type Permill uint32

// PermillFromPercent returns p percent.
func PermillFromPercent(p uint32) Permill {
	return PermillFromParts(p * 10_000)
}

// PermillFromParts clamps parts to [0, 1_000_000].
func PermillFromParts(parts uint32) Permill {
	if parts > PermillAccuracy {
		return Permill(PermillAccuracy)
	}
	return Permill(parts)
}

// PermillFromRational converts num/den to a Permill, rounding down.
func PermillFromRational(num, den uint32) (Permill, error) {
	if den == 0 {
		return 0, ErrDivisionByZero
	}
	if num >= den {
		return Permill(PermillAccuracy), nil
	}
	return Permill(uint64(num) * uint64(PermillAccuracy) / uint64(den)), nil
}

// OnePermill is 100%.
const OnePermill = Permill(1_000_000)

// Parts returns the raw parts-per-million value.
func (p Permill) Parts() uint32 {
	return uint32(p)
}

// IsZero reports a zero fee.
func (p Permill) IsZero() bool {
	return p == 0
}

// Complement returns 1 - p.
func (p Permill) Complement() Permill {
	return Permill(PermillAccuracy - uint32(p))
}

// Rational returns (parts, 1_000_000), the external fee representation.
func (p Permill) Rational() (uint32, uint32) {
	return uint32(p), PermillAccuracy
}

// Ratio returns p as a Ratio.
func (p Permill) Ratio() Ratio {
	return RatioFromUint64(uint64(p), uint64(PermillAccuracy))
}

// MulFloor returns floor(p * v).
func (p Permill) MulFloor(v *uint256.Int) (*uint256.Int, error) {
	return MulDiv(v, uint256.NewInt(uint64(p)), permillDenom)
}

// MulCeil returns ceil(p * v).
func (p Permill) MulCeil(v *uint256.Int) (*uint256.Int, error) {
	return MulDivCeil(v, uint256.NewInt(uint64(p)), permillDenom)
}

// SaturatingAdd returns min(p + o, 100%).
func (p Permill) SaturatingAdd(o Permill) Permill {
	return PermillFromParts(uint32(p) + uint32(o))
}

// SaturatingSub returns max(p - o, 0).
func (p Permill) SaturatingSub(o Permill) Permill {
	if o > p {
		return 0
	}
	return p - o
}

// Float64 is a lossy view used for logging and metrics.
func (p Permill) Float64() float64 {
	return float64(p) / float64(PermillAccuracy)
}

func (p Permill) String() string {
	return fmt.Sprintf("%d.%04d%%", uint32(p)/10_000, uint32(p)%10_000)
}
