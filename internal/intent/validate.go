package intent

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/hxuan190/omnipool-engine/internal/domain"
	"github.com/hxuan190/omnipool-engine/internal/math/fixed"
)

var (
	ErrSameAssets      = errors.New("asset in and asset out are the same")
	ErrZeroAmount      = errors.New("intent amount is zero")
	ErrHubAssetOut     = errors.New("buying the hub asset is not supported")
	ErrDeadlinePassed  = errors.New("intent deadline already passed")
	ErrDeadlineTooFar  = errors.New("intent deadline too far in the future")
	ErrIntentNotFound  = errors.New("intent not found")
	ErrDuplicateIntent = errors.New("intent already exists")
)

// ValidateSubmission checks a new intent before it is stored. now and
// deadline are unix milliseconds; maxDeadline of zero disables the upper
// bound.
func ValidateSubmission(swap domain.Swap, hubAsset domain.AssetID, deadline, now, maxDeadline uint64) error {
	if swap.AssetIn == swap.AssetOut {
		return ErrSameAssets
	}
	if swap.AssetOut == hubAsset {
		return ErrHubAssetOut
	}
	if swap.AmountIn == nil || swap.AmountIn.IsZero() || swap.AmountOut == nil || swap.AmountOut.IsZero() {
		return ErrZeroAmount
	}
	if _, err := fixed.ToBalance(swap.AmountIn); err != nil {
		return fmt.Errorf("amount in: %w", err)
	}
	if _, err := fixed.ToBalance(swap.AmountOut); err != nil {
		return fmt.Errorf("amount out: %w", err)
	}
	if deadline <= now {
		return ErrDeadlinePassed
	}
	if maxDeadline > 0 && deadline-now > maxDeadline {
		return fmt.Errorf("%w: %dms ahead, max %dms", ErrDeadlineTooFar, deadline-now, maxDeadline)
	}
	return nil
}

// Expired reports whether the intent can no longer be resolved at now.
func Expired(in *domain.Intent, now uint64) bool {
	return in.Deadline <= now
}

// ValidateResolved checks a resolved intent against the intent it resolves:
// the deadline has not passed, the fill respects the fill policy and the
// limit price floor(amount_out * resolved_in / amount_in) <= resolved_out
// holds.
func ValidateResolved(in *domain.Intent, resolved domain.ResolvedIntent, now uint64) error {
	id := in.ID
	if Expired(in, now) {
		return RejectIntent(ReasonIntentExpired, id, "deadline %d, now %d", in.Deadline, now)
	}

	rin, rout := resolved.AmountIn, resolved.AmountOut
	if rin == nil || rout == nil || rin.IsZero() || rout.IsZero() {
		return RejectIntent(ReasonIntentAmount, id, "resolved amounts must be positive")
	}

	swap := in.Swap
	switch swap.Type {
	case domain.ExactIn:
		if in.Partial {
			if rin.Gt(swap.AmountIn) {
				return RejectIntent(ReasonIntentPartialAmount, id, "amount in %s above %s", rin.Dec(), swap.AmountIn.Dec())
			}
		} else if !rin.Eq(swap.AmountIn) {
			return RejectIntent(ReasonIntentAmount, id, "amount in %s, want %s", rin.Dec(), swap.AmountIn.Dec())
		}
	case domain.ExactOut:
		if rin.Gt(swap.AmountIn) {
			return RejectIntent(ReasonIntentAmount, id, "amount in %s above limit %s", rin.Dec(), swap.AmountIn.Dec())
		}
		if in.Partial {
			if rout.Gt(swap.AmountOut) {
				return RejectIntent(ReasonIntentPartialAmount, id, "amount out %s above %s", rout.Dec(), swap.AmountOut.Dec())
			}
		} else if !rout.Eq(swap.AmountOut) {
			return RejectIntent(ReasonIntentAmount, id, "amount out %s, want %s", rout.Dec(), swap.AmountOut.Dec())
		}
	default:
		return RejectIntent(ReasonIntentAmount, id, "unknown swap type %d", swap.Type)
	}

	if !MeetsLimit(swap, rin, rout) {
		return RejectIntent(ReasonIntentPrice, id, "%s for %s below limit %s for %s",
			rout.Dec(), rin.Dec(), swap.AmountOut.Dec(), swap.AmountIn.Dec())
	}
	return nil
}

// MeetsLimit reports floor(swap.AmountOut * amountIn / swap.AmountIn) <= amountOut.
func MeetsLimit(swap domain.Swap, amountIn, amountOut *uint256.Int) bool {
	minOut, err := MinAmountOut(swap, amountIn)
	if err != nil {
		return false
	}
	return !minOut.Gt(amountOut)
}

// MinAmountOut is the least amount out the owner accepts for amountIn.
func MinAmountOut(swap domain.Swap, amountIn *uint256.Int) (*uint256.Int, error) {
	return fixed.MulDiv(swap.AmountOut, amountIn, swap.AmountIn)
}

// Remaining returns the swap left after a partial fill, or false when the
// intent is used up.
func Remaining(in *domain.Intent, resolved domain.ResolvedIntent) (domain.Swap, bool) {
	if !in.Partial {
		return domain.Swap{}, false
	}
	swap := in.Swap
	done := false
	switch swap.Type {
	case domain.ExactIn:
		done = !resolved.AmountIn.Lt(swap.AmountIn)
	case domain.ExactOut:
		done = !resolved.AmountOut.Lt(swap.AmountOut)
	}
	if done {
		return domain.Swap{}, false
	}

	left := domain.Swap{
		AssetIn:   swap.AssetIn,
		AssetOut:  swap.AssetOut,
		AmountIn:  fixed.SaturatingSub(swap.AmountIn, resolved.AmountIn),
		AmountOut: fixed.SaturatingSub(swap.AmountOut, resolved.AmountOut),
		Type:      swap.Type,
	}
	if left.AmountIn.IsZero() || left.AmountOut.IsZero() {
		return domain.Swap{}, false
	}
	return left, true
}
