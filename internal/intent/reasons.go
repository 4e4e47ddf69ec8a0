// Package intent keeps pending swap intents and checks resolved amounts
// against the limits their owners set.
package intent

import (
	"errors"
	"fmt"

	"github.com/hxuan190/omnipool-engine/internal/domain"
)

// Reason classifies why a solution or one of its resolved intents was
// refused. Rejections never carry partial side effects.
type Reason uint8

const (
	ReasonEmpty Reason = iota + 1
	ReasonScore
	ReasonIntentNotFound
	ReasonIntentAmount
	ReasonIntentPartialAmount
	ReasonIntentPrice
	ReasonIntentExpired
	ReasonTrade
	ReasonImbalance
	ReasonRound
	ReasonAlreadyExecuted
)

var reasonNames = map[Reason]string{
	ReasonEmpty:               "Empty",
	ReasonScore:               "Score",
	ReasonIntentNotFound:      "IntentNotFound",
	ReasonIntentAmount:        "IntentAmount",
	ReasonIntentPartialAmount: "IntentPartialAmount",
	ReasonIntentPrice:         "IntentPrice",
	ReasonIntentExpired:       "IntentExpired",
	ReasonTrade:               "Trade",
	ReasonImbalance:           "Imbalance",
	ReasonRound:               "Round",
	ReasonAlreadyExecuted:     "AlreadyExecuted",
}

func (r Reason) String() string {
	if s, ok := reasonNames[r]; ok {
		return s
	}
	return fmt.Sprintf("Reason(%d)", uint8(r))
}

// Rejection is the error returned for a refused solution.
type Rejection struct {
	Reason Reason
	Intent *domain.IntentID
	Detail string
}

func (r *Rejection) Error() string {
	msg := "solution rejected: " + r.Reason.String()
	if r.Intent != nil {
		msg += " (intent " + r.Intent.String() + ")"
	}
	if r.Detail != "" {
		msg += ": " + r.Detail
	}
	return msg
}

// Is matches another rejection with the same reason, so callers can use
// errors.Is(err, &Rejection{Reason: ReasonScore}).
func (r *Rejection) Is(target error) bool {
	var t *Rejection
	if !errors.As(target, &t) {
		return false
	}
	return t.Reason == r.Reason
}

func Reject(reason Reason, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

func RejectIntent(reason Reason, id domain.IntentID, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Intent: &id, Detail: fmt.Sprintf(format, args...)}
}

// ReasonOf extracts the rejection reason from err.
func ReasonOf(err error) (Reason, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r.Reason, true
	}
	return 0, false
}
