package http

import (
	"errors"

	"github.com/hxuan190/omnipool-engine/internal/common"
	"github.com/hxuan190/omnipool-engine/internal/domain"
	"github.com/hxuan190/omnipool-engine/internal/engine"
	"github.com/hxuan190/omnipool-engine/internal/executor"
	"github.com/hxuan190/omnipool-engine/internal/intent"
	"github.com/hxuan190/omnipool-engine/internal/math/fixed"
	"github.com/hxuan190/omnipool-engine/internal/solver"
)

var notFoundErrors = []error{
	engine.ErrIntentNotFound,
	intent.ErrIntentNotFound,
	executor.ErrUnknownAsset,
	executor.ErrPositionNotFound,
	solver.ErrUnknownAsset,
	solver.ErrNoSolution,
}

var conflictErrors = []error{
	executor.ErrAssetExists,
	intent.ErrDuplicateIntent,
}

var badRequestErrors = []error{
	errInvalidAmount,
	intent.ErrSameAssets,
	intent.ErrZeroAmount,
	intent.ErrHubAssetOut,
	intent.ErrDeadlinePassed,
	intent.ErrDeadlineTooFar,
	executor.ErrNotAllowed,
	executor.ErrAssetCap,
	executor.ErrInsufficientShares,
	executor.ErrZeroAmount,
	solver.ErrNotTradable,
	solver.ErrBuyHubAsset,
	domain.ErrInvalidSwapType,
	domain.ErrInvalidIntentID,
	fixed.ErrOverflow,
	fixed.ErrInsufficientOutReserve,
	fixed.ErrZeroReserve,
	fixed.ErrZeroWeight,
	fixed.ErrDivisionByZero,
}

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// toHttpError maps engine errors onto API errors. Solution rejections keep
// their reason as the error code.
func toHttpError(err error) *common.HttpError {
	var he *common.HttpError
	if errors.As(err, &he) {
		return he
	}
	if reason, ok := intent.ReasonOf(err); ok {
		return common.HTTPErrorRejected(reason.String(), err.Error())
	}
	switch {
	case errors.Is(err, engine.ErrNotOwner):
		return common.HTTPErrorForbidden(err.Error())
	case isAny(err, notFoundErrors):
		return common.HTTPErrorNotFound(err.Error())
	case isAny(err, conflictErrors):
		return common.HTTPErrorResourceConflict(err.Error())
	case isAny(err, badRequestErrors):
		return common.HTTPErrorBadRequest(err.Error())
	}
	return common.HTTPErrorInternalError(err.Error())
}
