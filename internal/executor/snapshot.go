package executor

import (
	"github.com/holiman/uint256"

	"github.com/hxuan190/omnipool-engine/internal/domain"
	"github.com/hxuan190/omnipool-engine/internal/math/fixed"
)

// Fee is a rational fee as exposed to snapshot consumers.
type Fee struct {
	Numerator   uint32 `json:"numerator"`
	Denominator uint32 `json:"denominator"`
}

func feeOf(p fixed.Permill) Fee {
	n, d := p.Rational()
	return Fee{Numerator: n, Denominator: d}
}

// AssetSnapshot is the read-only view handed to solvers and API clients.
// HubFee is the protocol fee charged on the hub leg.
type AssetSnapshot struct {
	AssetID    domain.AssetID `json:"assetId"`
	Reserve    *uint256.Int   `json:"reserve"`
	HubReserve *uint256.Int   `json:"hubReserve"`
	Decimals   uint8          `json:"decimals"`
	Fee        Fee            `json:"fee"`
	HubFee     Fee            `json:"hubFee"`
}

// Assets returns the current snapshot of the requested assets, or of every
// asset when filter is empty. Unknown ids are skipped.
func (e *Executor) Assets(filter []domain.AssetID) []AssetSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var list []*domain.AssetState
	if len(filter) == 0 {
		list = e.state.AssetList()
	} else {
		for _, id := range filter {
			if a, ok := e.state.Assets[id]; ok {
				list = append(list, a.Clone())
			}
		}
	}

	out := make([]AssetSnapshot, 0, len(list))
	for _, a := range list {
		out = append(out, AssetSnapshot{
			AssetID:    a.AssetID,
			Reserve:    a.Reserve,
			HubReserve: a.HubReserve,
			Decimals:   a.Decimals,
			Fee:        feeOf(a.Fee),
			HubFee:     feeOf(a.ProtocolFee),
		})
	}
	return out
}

// Snapshot returns a deep copy of the full asset state for solvers.
func (e *Executor) Snapshot() *domain.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return &domain.Snapshot{
		Round:  e.state.Round,
		Assets: e.state.AssetList(),
	}
}

// Asset returns a copy of one asset's state.
func (e *Executor) Asset(id domain.AssetID) (*domain.AssetState, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	a, ok := e.state.Assets[id]
	if !ok {
		return nil, false
	}
	return a.Clone(), true
}

// Imbalance returns the current hub imbalance as (amount, negative).
func (e *Executor) Imbalance() (*uint256.Int, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return fixed.Clone(e.state.Imbalance.Amount), e.state.Imbalance.Negative
}

// State returns a deep copy of the executor state.
func (e *Executor) State() *State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.clone()
}

func (e *Executor) Round() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Round
}

// Version changes whenever the state does.
func (e *Executor) Version() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Version
}
