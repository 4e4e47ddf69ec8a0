package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"github.com/hxuan190/omnipool-engine/internal/math/fixed"
)

type SwapType uint8

const (
	ExactIn SwapType = iota
	ExactOut
)

func (s SwapType) String() string {
	switch s {
	case ExactIn:
		return "ExactIn"
	case ExactOut:
		return "ExactOut"
	default:
		return "UNKNOWN"
	}
}

var ErrInvalidSwapType = errors.New("invalid swap type")

func ParseSwapType(s string) (SwapType, error) {
	switch strings.ToLower(s) {
	case "exactin", "exact_in", "in":
		return ExactIn, nil
	case "exactout", "exact_out", "out":
		return ExactOut, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidSwapType, s)
	}
}

// IntentID orders intents by deadline first, then by submission sequence.
// Its canonical numeric form is deadline<<64 | seq.
type IntentID struct {
	Deadline uint64 `json:"deadline"`
	Seq      uint64 `json:"seq"`
}

var ErrInvalidIntentID = errors.New("invalid intent id")

func (id IntentID) Uint256() *uint256.Int {
	v := new(uint256.Int).Lsh(uint256.NewInt(id.Deadline), 64)
	return v.Or(v, uint256.NewInt(id.Seq))
}

func (id IntentID) String() string {
	return id.Uint256().Dec()
}

func (id IntentID) Less(o IntentID) bool {
	if id.Deadline != o.Deadline {
		return id.Deadline < o.Deadline
	}
	return id.Seq < o.Seq
}

func ParseIntentID(s string) (IntentID, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return IntentID{}, fmt.Errorf("%w: %v", ErrInvalidIntentID, err)
	}
	if v.BitLen() > 128 {
		return IntentID{}, fmt.Errorf("%w: out of range", ErrInvalidIntentID)
	}
	seq := v.Uint64()
	deadline := new(uint256.Int).Rsh(v, 64).Uint64()
	return IntentID{Deadline: deadline, Seq: seq}, nil
}

func (id IntentID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *IntentID) UnmarshalText(b []byte) error {
	parsed, err := ParseIntentID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

type Swap struct {
	AssetIn   AssetID      `json:"assetIn"`
	AssetOut  AssetID      `json:"assetOut"`
	AmountIn  *uint256.Int `json:"amountIn"`
	AmountOut *uint256.Int `json:"amountOut"`
	Type      SwapType     `json:"swapType"`
}

// Intent is a declarative swap request. For ExactIn AmountIn is what the
// owner gives and AmountOut the minimum received; for ExactOut AmountOut is
// what the owner wants and AmountIn the maximum paid. Deadline is unix ms.
type Intent struct {
	ID        IntentID `json:"id"`
	Who       string   `json:"who"`
	Swap      Swap     `json:"swap"`
	Deadline  uint64   `json:"deadline"`
	Partial   bool     `json:"partial"`
	OnSuccess []byte   `json:"onSuccess,omitempty"`
	OnFailure []byte   `json:"onFailure,omitempty"`
}

func (i *Intent) Clone() *Intent {
	c := *i
	c.Swap.AmountIn = fixed.Clone(i.Swap.AmountIn)
	c.Swap.AmountOut = fixed.Clone(i.Swap.AmountOut)
	if i.OnSuccess != nil {
		c.OnSuccess = append([]byte(nil), i.OnSuccess...)
	}
	if i.OnFailure != nil {
		c.OnFailure = append([]byte(nil), i.OnFailure...)
	}
	return &c
}

// ResolvedIntent carries the amounts an intent was actually matched at.
type ResolvedIntent struct {
	ID        IntentID     `json:"id"`
	AmountIn  *uint256.Int `json:"amountIn"`
	AmountOut *uint256.Int `json:"amountOut"`
}

func (r ResolvedIntent) String() string {
	return fmt.Sprintf("ResolvedIntent{id:%s, in:%s, out:%s}", r.ID, r.AmountIn.Dec(), r.AmountOut.Dec())
}
