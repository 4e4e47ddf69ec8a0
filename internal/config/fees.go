package config

import (
	"errors"
	"fmt"

	"github.com/andrew-solarstorm/go-packages/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/hxuan190/omnipool-engine/internal/math/dynamicfees"
	"github.com/hxuan190/omnipool-engine/internal/math/fixed"
)

// FeeConfig holds the dynamic fee bounds. Fees are in permill; decay and
// amplification are decimals ("0.0005", "2").
type FeeConfig struct {
	Enabled bool

	AssetMinFee        uint32
	AssetMaxFee        uint32
	AssetDecay         string
	AssetAmplification string

	ProtocolMinFee        uint32
	ProtocolMaxFee        uint32
	ProtocolDecay         string
	ProtocolAmplification string

	assetParams    dynamicfees.FeeParams
	protocolParams dynamicfees.FeeParams
}

func (c *FeeConfig) Key() string {
	return FEE_CONFIG_KEY
}

func (c *FeeConfig) Load() error {
	c.Enabled = common.GetEnvOrDefault("FEE_DYNAMIC_ENABLED", "true") == "true"

	c.AssetMinFee = uint32(common.GetEnvOrDefaultInt("FEE_ASSET_MIN", 2500))
	c.AssetMaxFee = uint32(common.GetEnvOrDefaultInt("FEE_ASSET_MAX", 50000))
	c.AssetDecay = common.GetEnvOrDefault("FEE_ASSET_DECAY", "0.0005")
	c.AssetAmplification = common.GetEnvOrDefault("FEE_ASSET_AMPLIFICATION", "2")

	c.ProtocolMinFee = uint32(common.GetEnvOrDefaultInt("FEE_PROTOCOL_MIN", 500))
	c.ProtocolMaxFee = uint32(common.GetEnvOrDefaultInt("FEE_PROTOCOL_MAX", 1000))
	c.ProtocolDecay = common.GetEnvOrDefault("FEE_PROTOCOL_DECAY", "0.0005")
	c.ProtocolAmplification = common.GetEnvOrDefault("FEE_PROTOCOL_AMPLIFICATION", "1")

	return c.Validate()
}

func (c *FeeConfig) Validate() error {
	var err error
	if c.assetParams, err = feeParams(c.AssetMinFee, c.AssetMaxFee, c.AssetDecay, c.AssetAmplification); err != nil {
		return fmt.Errorf("asset fee: %w", err)
	}
	if c.protocolParams, err = feeParams(c.ProtocolMinFee, c.ProtocolMaxFee, c.ProtocolDecay, c.ProtocolAmplification); err != nil {
		return fmt.Errorf("protocol fee: %w", err)
	}
	return nil
}

// Params returns the parsed asset and protocol fee parameters. Validate must
// have succeeded first.
func (c *FeeConfig) Params() (dynamicfees.FeeParams, dynamicfees.FeeParams) {
	return c.assetParams, c.protocolParams
}

func feeParams(minFee, maxFee uint32, decay, amplification string) (dynamicfees.FeeParams, error) {
	d, err := ParseFixed(decay)
	if err != nil {
		return dynamicfees.FeeParams{}, fmt.Errorf("decay: %w", err)
	}
	if d.Cmp(fixed.FixedOne()) > 0 {
		return dynamicfees.FeeParams{}, errors.New("decay must not exceed 1")
	}
	a, err := ParseFixed(amplification)
	if err != nil {
		return dynamicfees.FeeParams{}, fmt.Errorf("amplification: %w", err)
	}
	p := dynamicfees.FeeParams{
		MinFee:        fixed.PermillFromParts(minFee),
		MaxFee:        fixed.PermillFromParts(maxFee),
		Decay:         d,
		Amplification: a,
	}
	return p, p.Validate()
}

// ParseFixed parses a non-negative decimal string into an 18-decimal fixed
// point number. Digits beyond 18 decimals are truncated.
func ParseFixed(s string) (fixed.FixedU128, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fixed.FixedU128{}, err
	}
	if d.IsNegative() {
		return fixed.FixedU128{}, fmt.Errorf("negative value %s", s)
	}
	inner, overflow := uint256.FromBig(d.Shift(18).Truncate(0).BigInt())
	if overflow || inner.Cmp(fixed.MaxBalance) > 0 {
		return fixed.FixedU128{}, fmt.Errorf("value %s out of range", s)
	}
	return fixed.FixedFromInner(inner), nil
}
