package executor

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/rs/zerolog/log"

	"github.com/hxuan190/omnipool-engine/internal/domain"
	"github.com/hxuan190/omnipool-engine/internal/math/dynamicfees"
	"github.com/hxuan190/omnipool-engine/internal/math/fixed"
	"github.com/hxuan190/omnipool-engine/internal/math/omnipool"
)

var (
	ErrUnknownAsset       = errors.New("unknown asset")
	ErrAssetExists        = errors.New("asset already registered")
	ErrNotAllowed         = errors.New("operation not allowed for asset")
	ErrAssetCap           = errors.New("asset weight cap exceeded")
	ErrPositionNotFound   = errors.New("position not found")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrZeroAmount         = errors.New("amount must be positive")
)

// Withdrawal is the result of removing liquidity.
type Withdrawal struct {
	PositionID uint64           `json:"positionId"`
	AssetID    domain.AssetID   `json:"assetId"`
	Amount     *uint256.Int     `json:"amount"`
	HubAmount  *uint256.Int     `json:"hubAmount"`
	Fee        fixed.Permill    `json:"fee"`
	Position   *domain.Position `json:"position,omitempty"`
}

// mutate runs fn on a copy of the state and swaps it in when fn succeeds.
func (e *Executor) mutate(fn func(next *State) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.state.clone()
	if err := fn(next); err != nil {
		return err
	}
	next.Version++
	e.state = next
	return nil
}

// AddAsset registers a new asset in the pool.
func (e *Executor) AddAsset(a *domain.AssetState) error {
	if a.AssetID == e.cfg.HubAsset {
		return fmt.Errorf("%w: %d is the hub asset", ErrNotAllowed, a.AssetID)
	}
	return e.mutate(func(next *State) error {
		if _, ok := next.Assets[a.AssetID]; ok {
			return fmt.Errorf("%w: %d", ErrAssetExists, a.AssetID)
		}
		c := a.Clone()
		c.Normalize()
		if c.Shares.IsZero() {
			c.Shares = fixed.Clone(c.Reserve)
		}
		next.Assets[c.AssetID] = c
		next.Fees[c.AssetID] = feeEntryOf(c, next.Round)
		next.recordPrice(c)
		log.Info().Uint32("asset", uint32(c.AssetID)).Str("reserve", c.Reserve.Dec()).Msg("[Executor] asset registered")
		return nil
	})
}

// SetTradability replaces the tradability flags of an asset.
func (e *Executor) SetTradability(id domain.AssetID, flags domain.Tradability) error {
	return e.mutate(func(next *State) error {
		a, ok := next.Assets[id]
		if !ok {
			return fmt.Errorf("%w: %d", ErrUnknownAsset, id)
		}
		a.Tradable = flags
		return nil
	})
}

// AddLiquidity deposits amount of an asset and opens a position for owner.
func (e *Executor) AddLiquidity(owner string, id domain.AssetID, amount *uint256.Int) (*domain.Position, error) {
	if amount == nil || amount.IsZero() {
		return nil, ErrZeroAmount
	}

	var pos *domain.Position
	err := e.mutate(func(next *State) error {
		a, ok := next.Assets[id]
		if !ok {
			return fmt.Errorf("%w: %d", ErrUnknownAsset, id)
		}
		if !a.Tradable.Has(domain.TradeAddLiquidity) {
			return fmt.Errorf("%w: %d does not accept liquidity", ErrNotAllowed, id)
		}

		rs := reserveState(a)
		ch, err := omnipool.CalculateAddLiquidityStateChanges(rs, amount)
		if err != nil {
			return err
		}
		if a.Cap != 0 && a.Cap < fixed.OnePermill {
			ok, err := omnipool.VerifyAssetCap(rs, a.Cap, ch.Asset.DeltaHubReserve.Amount, next.TotalHubReserve())
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: %d", ErrAssetCap, id)
			}
		}

		price := a.HubPrice()
		updated, err := rs.DeltaUpdate(ch.Asset)
		if err != nil {
			return err
		}
		setReserveState(a, updated)

		pos = &domain.Position{
			ID:      next.NextPosition,
			Owner:   owner,
			AssetID: id,
			Amount:  fixed.Clone(amount),
			Shares:  fixed.Clone(ch.DeltaPositionShares.Amount),
			Price:   price,
		}
		next.Positions[pos.ID] = pos.Clone()
		next.NextPosition++
		return nil
	})
	if err != nil {
		return nil, err
	}
	if e.oracle != nil {
		if a, ok := e.Asset(id); ok {
			e.oracle.RecordLiquidity(id, a.Reserve)
		}
	}
	return pos, nil
}

// RemoveLiquidity burns shares of a position. The withdrawal fee grows with
// the distance between the current price and the price at the last round
// close. The position is closed when no shares remain.
func (e *Executor) RemoveLiquidity(positionID uint64, shares *uint256.Int) (*Withdrawal, error) {
	if shares == nil || shares.IsZero() {
		return nil, ErrZeroAmount
	}

	var w *Withdrawal
	err := e.mutate(func(next *State) error {
		pos, ok := next.Positions[positionID]
		if !ok {
			return fmt.Errorf("%w: %d", ErrPositionNotFound, positionID)
		}
		if shares.Gt(pos.Shares) {
			return fmt.Errorf("%w: %s requested, %s held", ErrInsufficientShares, shares.Dec(), pos.Shares.Dec())
		}
		a, ok := next.Assets[pos.AssetID]
		if !ok {
			return fmt.Errorf("%w: %d", ErrUnknownAsset, pos.AssetID)
		}
		if !a.Tradable.Has(domain.TradeRemoveLiquidity) {
			return fmt.Errorf("%w: %d does not allow withdrawals", ErrNotAllowed, pos.AssetID)
		}

		rs := reserveState(a)
		spot, err := rs.Price()
		if err != nil {
			return err
		}
		closing, ok := next.Prices[pos.AssetID]
		if !ok {
			closing = spot
		}
		fee := omnipool.CalculateWithdrawalFee(spot, closing, e.cfg.MinWithdrawalFee)

		ch, err := omnipool.CalculateRemoveLiquidityStateChanges(rs, shares, omnipool.Position{
			Amount: pos.Amount,
			Shares: pos.Shares,
			Price:  pos.Price,
		}, fee)
		if err != nil {
			return err
		}
		updated, err := rs.DeltaUpdate(ch.Asset)
		if err != nil {
			return err
		}
		setReserveState(a, updated)

		remainingAmount, err := ch.DeltaPositionReserve.ApplyTo(pos.Amount)
		if err != nil {
			return err
		}
		remainingShares := new(uint256.Int).Sub(pos.Shares, shares)

		w = &Withdrawal{
			PositionID: positionID,
			AssetID:    pos.AssetID,
			Amount:     fixed.Clone(ch.Asset.DeltaReserve.Amount),
			HubAmount:  fixed.Clone(ch.LPHubAmount),
			Fee:        fee.ToPermill(),
		}
		if remainingShares.IsZero() {
			delete(next.Positions, positionID)
			return nil
		}
		pos.Amount = remainingAmount
		pos.Shares = remainingShares
		w.Position = pos.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// Position returns a copy of an open position.
func (e *Executor) Position(id uint64) (*domain.Position, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.state.Positions[id]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

func feeEntryOf(a *domain.AssetState, round uint64) dynamicfees.FeeEntry {
	return dynamicfees.FeeEntry{AssetFee: a.Fee, ProtocolFee: a.ProtocolFee, Timestamp: round}
}
