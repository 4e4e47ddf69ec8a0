package http

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/hxuan190/omnipool-engine/internal/domain"
)

var errInvalidAmount = errors.New("invalid amount")

// parseAmount reads a positive amount. Raw amounts are integers in the
// smallest unit; human amounts are decimal token quantities scaled by the
// asset's decimals.
func parseAmount(s string, decimals uint8, human bool) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if !human {
		v, err := uint256.FromDecimal(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", errInvalidAmount, s)
		}
		if v.IsZero() {
			return nil, fmt.Errorf("%w: must be positive", errInvalidAmount)
		}
		return v, nil
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", errInvalidAmount, s)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("%w: %s has more than %d decimals", errInvalidAmount, s, decimals)
	}
	if scaled.Sign() <= 0 {
		return nil, fmt.Errorf("%w: must be positive", errInvalidAmount)
	}
	v, overflow := uint256.FromBig(scaled.BigInt())
	if overflow || v.BitLen() > 128 {
		return nil, fmt.Errorf("%w: %s out of range", errInvalidAmount, s)
	}
	return v, nil
}

// humanAmount formats a raw amount as a token quantity.
func humanAmount(v *uint256.Int, decimals uint8) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v.ToBig(), -int32(decimals)).String()
}

func parseAssetID(s string) (domain.AssetID, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid asset id %q", s)
	}
	return domain.AssetID(id), nil
}

// parseAssetIDs reads a comma separated id list. Empty input yields nil.
func parseAssetIDs(s string) ([]domain.AssetID, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	ids := make([]domain.AssetID, 0, len(parts))
	for _, p := range parts {
		id, err := parseAssetID(p)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
