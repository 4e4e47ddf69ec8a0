package fixed

import (
	"fmt"

	"github.com/holiman/uint256"
)

// MaxBalance is the largest representable balance (2^128 - 1).
var MaxBalance = new(uint256.Int).Rsh(new(uint256.Int).SetAllOne(), 128)

var (
	zero = uint256.NewInt(0)
	one  = uint256.NewInt(1)
)

// Zero returns a fresh zero balance.
func Zero() *uint256.Int {
	return new(uint256.Int)
}

// U returns a balance holding v.
func U(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}

// ParseBalance parses a decimal balance string and rejects values above MaxBalance.
func ParseBalance(s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid balance %q: %w", s, err)
	}
	return ToBalance(v)
}

// MustBalance parses a decimal balance string and panics on failure. Intended for tests and constants.
func MustBalance(s string) *uint256.Int {
	v, err := ParseBalance(s)
	if err != nil {
		panic(err)
	}
	return v
}

// ToBalance narrows a 256-bit value back to the 128-bit balance range.
func ToBalance(v *uint256.Int) (*uint256.Int, error) {
	if v.Gt(MaxBalance) {
		return nil, ErrOverflow
	}
	return v, nil
}

// Clone returns a copy of v, treating nil as zero.
func Clone(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(v)
}

// Add returns a + b.
func Add(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, ErrOverflow
	}
	return ToBalance(z)
}

// Sub returns a - b. Underflow is reported as ErrOverflow.
func Sub(a, b *uint256.Int) (*uint256.Int, error) {
	if a.Lt(b) {
		return nil, ErrOverflow
	}
	return new(uint256.Int).Sub(a, b), nil
}

// SaturatingSub returns max(a - b, 0).
func SaturatingSub(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(a, b)
}

// SaturatingAdd returns min(a + b, MaxBalance).
func SaturatingAdd(a, b *uint256.Int) *uint256.Int {
	z, err := Add(a, b)
	if err != nil {
		return new(uint256.Int).Set(MaxBalance)
	}
	return z
}

// MulDivWide computes floor(a * b / c) with a 512-bit intermediate. The
// result is only bounded by 256 bits.
func MulDivWide(a, b, c *uint256.Int) (*uint256.Int, error) {
	if c.IsZero() {
		return nil, ErrDivisionByZero
	}
	z, overflow := new(uint256.Int).MulDivOverflow(a, b, c)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// MulDiv computes floor(a * b / c) and narrows the result to a balance.
func MulDiv(a, b, c *uint256.Int) (*uint256.Int, error) {
	z, err := MulDivWide(a, b, c)
	if err != nil {
		return nil, err
	}
	return ToBalance(z)
}

// MulDivCeil computes ceil(a * b / c) and narrows the result to a balance.
func MulDivCeil(a, b, c *uint256.Int) (*uint256.Int, error) {
	z, err := MulDivWide(a, b, c)
	if err != nil {
		return nil, err
	}
	rem := GetU256()
	defer PutU256(rem)
	if !rem.MulMod(a, b, c).IsZero() {
		if z, err = Add(z, one); err != nil {
			return nil, err
		}
	}
	return ToBalance(z)
}

// MulDivRounding dispatches to MulDiv or MulDivCeil. Nearest rounds half up.
func MulDivRounding(a, b, c *uint256.Int, r Rounding) (*uint256.Int, error) {
	switch r {
	case Up:
		return MulDivCeil(a, b, c)
	case Nearest:
		if c.IsZero() {
			return nil, ErrDivisionByZero
		}
		z, err := MulDivWide(a, b, c)
		if err != nil {
			return nil, err
		}
		rem := new(uint256.Int).MulMod(a, b, c)
		if !rem.IsZero() && new(uint256.Int).Lsh(rem, 1).Cmp(c) >= 0 {
			if z, err = Add(z, one); err != nil {
				return nil, err
			}
		}
		return ToBalance(z)
	default:
		return MulDiv(a, b, c)
	}
}

// Min returns the smaller of a and b.
func Min(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max(a, b *uint256.Int) *uint256.Int {
	if a.Gt(b) {
		return a
	}
	return b
}

// AbsDiff returns |a - b| and whether b exceeded a.
func AbsDiff(a, b *uint256.Int) (*uint256.Int, bool) {
	if a.Lt(b) {
		return new(uint256.Int).Sub(b, a), true
	}
	return new(uint256.Int).Sub(a, b), false
}
