// Package fixed provides checked wide-integer and rational arithmetic used by
// every omnipool formula. Balances are unsigned 128-bit values carried in
// holiman/uint256 integers so that products never wrap.
package fixed

import "errors"

// Math error taxonomy. All of them are recoverable.
var (
	ErrOverflow               = errors.New("math: overflow")
	ErrInsufficientOutReserve = errors.New("math: insufficient out reserve")
	ErrZeroWeight             = errors.New("math: zero weight")
	ErrZeroReserve            = errors.New("math: zero reserve")
	ErrZeroDuration           = errors.New("math: zero duration")
	ErrDivisionByZero         = errors.New("math: division by zero")
)
