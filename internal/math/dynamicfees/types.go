// Package dynamicfees recalculates asset and protocol fees from oracle
// volume. Fees decay toward their minimum every block and move with the net
// volume relative to liquidity, always staying within the configured bounds.
package dynamicfees

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/hxuan190/omnipool-engine/internal/math/fixed"
)

var ErrInvalidFeeParams = errors.New("invalid fee params")

// NetVolumeDirection selects which side of the oracle volume counts as
// positive pressure on a fee.
type NetVolumeDirection uint8

const (
	// OutIn treats amount out above amount in as positive (asset fee).
	OutIn NetVolumeDirection = iota
	// InOut treats amount in above amount out as positive (protocol fee).
	InOut
)

func (d NetVolumeDirection) String() string {
	if d == InOut {
		return "in-out"
	}
	return "out-in"
}

// FeeParams bound and shape one fee.
type FeeParams struct {
	MinFee        fixed.Permill
	MaxFee        fixed.Permill
	Decay         fixed.FixedU128
	Amplification fixed.FixedU128
}

func (p FeeParams) Validate() error {
	if p.MinFee > p.MaxFee {
		return fmt.Errorf("%w: min fee %s above max fee %s", ErrInvalidFeeParams, p.MinFee, p.MaxFee)
	}
	if p.MaxFee > fixed.OnePermill {
		return fmt.Errorf("%w: max fee %s above 100%%", ErrInvalidFeeParams, p.MaxFee)
	}
	return nil
}

// Clamp bounds f to [MinFee, MaxFee].
func (p FeeParams) Clamp(f fixed.Permill) fixed.Permill {
	if f < p.MinFee {
		return p.MinFee
	}
	if f > p.MaxFee {
		return p.MaxFee
	}
	return f
}

// OracleEntry is the traded volume of an asset over the oracle window and
// the liquidity it was traded against.
type OracleEntry struct {
	AmountIn  *uint256.Int
	AmountOut *uint256.Int
	Liquidity *uint256.Int
	UpdatedAt uint64
}

// NetVolume returns |out - in| and whether the volume points against dir.
func (e OracleEntry) NetVolume(dir NetVolumeDirection) (*uint256.Int, bool) {
	in, out := orZero(e.AmountIn), orZero(e.AmountOut)
	if dir == InOut {
		in, out = out, in
	}
	// negative when in exceeds out under the chosen convention
	return fixed.AbsDiff(out, in)
}

// FeeEntry is the fee pair in force for an asset since block Timestamp.
type FeeEntry struct {
	AssetFee    fixed.Permill `json:"assetFee"`
	ProtocolFee fixed.Permill `json:"protocolFee"`
	Timestamp   uint64        `json:"timestamp"`
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return fixed.Zero()
	}
	return v
}
