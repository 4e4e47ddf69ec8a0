package solver

import (
	"errors"
	"fmt"
	"sort"

	"github.com/holiman/uint256"

	"github.com/hxuan190/omnipool-engine/internal/domain"
	"github.com/hxuan190/omnipool-engine/internal/math/fixed"
	"github.com/hxuan190/omnipool-engine/internal/math/omnipool"
)

var (
	ErrUnknownAsset = errors.New("asset not in pool")
	ErrNotTradable  = errors.New("asset not tradable")
	ErrBuyHubAsset  = errors.New("buying the hub asset is not supported")
)

// PoolAsset is one asset of the working pool state.
type PoolAsset struct {
	ID          domain.AssetID
	State       omnipool.AssetReserveState
	Fee         fixed.Permill
	ProtocolFee fixed.Permill
	Tradable    domain.Tradability
}

func (a *PoolAsset) clone() *PoolAsset {
	c := *a
	c.State = omnipool.AssetReserveState{
		Reserve:        fixed.Clone(a.State.Reserve),
		HubReserve:     fixed.Clone(a.State.HubReserve),
		Shares:         fixed.Clone(a.State.Shares),
		ProtocolShares: fixed.Clone(a.State.ProtocolShares),
	}
	return &c
}

// Trade is a priced trade against the pool together with the state changes
// it produces. In is nil when the hub asset is sold.
type Trade struct {
	Kind      domain.TradeKind
	AssetIn   domain.AssetID
	AssetOut  domain.AssetID
	AmountIn  *uint256.Int
	AmountOut *uint256.Int
	Fee       omnipool.TradeFee
	In        *omnipool.AssetStateChange
	Out       omnipool.AssetStateChange
}

// Instruction converts the trade to its solution form.
func (t *Trade) Instruction() domain.TradeInstruction {
	return domain.TradeInstruction{
		Pool:      domain.OmnipoolName,
		Kind:      t.Kind,
		AssetIn:   t.AssetIn,
		AssetOut:  t.AssetOut,
		AmountIn:  fixed.Clone(t.AmountIn),
		AmountOut: fixed.Clone(t.AmountOut),
	}
}

// Pool is a mutable working copy of the omnipool used to price and apply
// trades in sequence. It is not safe for concurrent use; Clone it instead.
type Pool struct {
	assets    map[domain.AssetID]*PoolAsset
	hubAsset  domain.AssetID
	burn      fixed.Permill
	imbalance omnipool.BalanceUpdate
}

// NewPool builds a working pool from asset states. burn is the share of the
// protocol fee that is burned rather than kept in the hub imbalance.
func NewPool(assets []*domain.AssetState, hubAsset domain.AssetID, burn fixed.Permill) *Pool {
	p := &Pool{
		assets:    make(map[domain.AssetID]*PoolAsset, len(assets)),
		hubAsset:  hubAsset,
		burn:      burn,
		imbalance: omnipool.BalanceUpdate{Amount: fixed.Zero()},
	}
	for _, a := range assets {
		p.assets[a.AssetID] = &PoolAsset{
			ID: a.AssetID,
			State: omnipool.AssetReserveState{
				Reserve:        fixed.Clone(a.Reserve),
				HubReserve:     fixed.Clone(a.HubReserve),
				Shares:         fixed.Clone(a.Shares),
				ProtocolShares: fixed.Clone(a.ProtocolShares),
			},
			Fee:         a.Fee,
			ProtocolFee: a.ProtocolFee,
			Tradable:    a.Tradable,
		}
	}
	return p
}

func (p *Pool) Clone() *Pool {
	c := &Pool{
		assets:    make(map[domain.AssetID]*PoolAsset, len(p.assets)),
		hubAsset:  p.hubAsset,
		burn:      p.burn,
		imbalance: omnipool.BalanceUpdate{Amount: fixed.Clone(p.imbalance.Amount), Negative: p.imbalance.Negative},
	}
	for id, a := range p.assets {
		c.assets[id] = a.clone()
	}
	return c
}

func (p *Pool) HubAsset() domain.AssetID {
	return p.hubAsset
}

// SetImbalance seeds the hub imbalance carried by the pool.
func (p *Pool) SetImbalance(imb omnipool.BalanceUpdate) {
	p.imbalance = omnipool.BalanceUpdate{Amount: fixed.Clone(imb.Amount), Negative: imb.Negative}
}

func (p *Pool) Imbalance() omnipool.BalanceUpdate {
	return omnipool.BalanceUpdate{Amount: fixed.Clone(p.imbalance.Amount), Negative: p.imbalance.Negative}
}

// Asset returns a copy of the asset's working state.
func (p *Pool) Asset(id domain.AssetID) (*PoolAsset, bool) {
	a, ok := p.assets[id]
	if !ok {
		return nil, false
	}
	return a.clone(), true
}

// AssetIDs lists the pool's assets in ascending order.
func (p *Pool) AssetIDs() []domain.AssetID {
	ids := make([]domain.AssetID, 0, len(p.assets))
	for id := range p.assets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// CanTrade reports whether asset in can be sold for asset out.
func (p *Pool) CanTrade(in, out domain.AssetID) error {
	if out == p.hubAsset {
		return ErrBuyHubAsset
	}
	if in == out {
		return fmt.Errorf("%w: %d for itself", ErrNotTradable, in)
	}
	o, ok := p.assets[out]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownAsset, out)
	}
	if !o.Tradable.Has(domain.TradeBuy) {
		return fmt.Errorf("%w: %d cannot be bought", ErrNotTradable, out)
	}
	if in == p.hubAsset {
		return nil
	}
	i, ok := p.assets[in]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownAsset, in)
	}
	if !i.Tradable.Has(domain.TradeSell) {
		return fmt.Errorf("%w: %d cannot be sold", ErrNotTradable, in)
	}
	return nil
}

// QuoteSell prices selling amount of in for out without changing the pool.
func (p *Pool) QuoteSell(in, out domain.AssetID, amount *uint256.Int) (*Trade, error) {
	if err := p.CanTrade(in, out); err != nil {
		return nil, err
	}
	o := p.assets[out]

	if in == p.hubAsset {
		ch, err := omnipool.CalculateSellHubStateChanges(o.State, amount, o.Fee)
		if err != nil {
			return nil, err
		}
		return &Trade{
			Kind:      domain.TradeKindSell,
			AssetIn:   in,
			AssetOut:  out,
			AmountIn:  fixed.Clone(amount),
			AmountOut: fixed.Clone(ch.Asset.DeltaReserve.Amount),
			Fee:       ch.Fee,
			Out:       ch.Asset,
		}, nil
	}

	i := p.assets[in]
	ch, err := omnipool.CalculateSellStateChanges(i.State, o.State, amount, o.Fee, i.ProtocolFee, p.burn)
	if err != nil {
		return nil, err
	}
	return &Trade{
		Kind:      domain.TradeKindSell,
		AssetIn:   in,
		AssetOut:  out,
		AmountIn:  fixed.Clone(amount),
		AmountOut: fixed.Clone(ch.AssetOut.DeltaReserve.Amount),
		Fee:       ch.Fee,
		In:        &ch.AssetIn,
		Out:       ch.AssetOut,
	}, nil
}

// QuoteBuy prices buying amount of out with in without changing the pool.
func (p *Pool) QuoteBuy(in, out domain.AssetID, amount *uint256.Int) (*Trade, error) {
	if err := p.CanTrade(in, out); err != nil {
		return nil, err
	}
	o := p.assets[out]

	if in == p.hubAsset {
		ch, err := omnipool.CalculateBuyForHubAssetStateChanges(o.State, amount, o.Fee)
		if err != nil {
			return nil, err
		}
		return &Trade{
			Kind:      domain.TradeKindBuy,
			AssetIn:   in,
			AssetOut:  out,
			AmountIn:  fixed.Clone(ch.Asset.DeltaHubReserve.Amount),
			AmountOut: fixed.Clone(amount),
			Fee:       ch.Fee,
			Out:       ch.Asset,
		}, nil
	}

	i := p.assets[in]
	ch, err := omnipool.CalculateBuyStateChanges(i.State, o.State, amount, o.Fee, i.ProtocolFee, p.burn)
	if err != nil {
		return nil, err
	}
	return &Trade{
		Kind:      domain.TradeKindBuy,
		AssetIn:   in,
		AssetOut:  out,
		AmountIn:  fixed.Clone(ch.AssetIn.DeltaReserve.Amount),
		AmountOut: fixed.Clone(amount),
		Fee:       ch.Fee,
		In:        &ch.AssetIn,
		Out:       ch.AssetOut,
	}, nil
}

// Quote prices a trade of the given kind; amount is the amount in for a sell
// and the amount out for a buy.
func (p *Pool) Quote(kind domain.TradeKind, in, out domain.AssetID, amount *uint256.Int) (*Trade, error) {
	if kind == domain.TradeKindBuy {
		return p.QuoteBuy(in, out, amount)
	}
	return p.QuoteSell(in, out, amount)
}

// Apply commits a priced trade. Either both legs and the imbalance are
// updated or nothing is.
func (p *Pool) Apply(t *Trade) error {
	o, ok := p.assets[t.AssetOut]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownAsset, t.AssetOut)
	}
	newOut, err := o.State.DeltaUpdate(t.Out)
	if err != nil {
		return fmt.Errorf("asset %d: %w", t.AssetOut, err)
	}

	var (
		i     *PoolAsset
		newIn omnipool.AssetReserveState
	)
	if t.In != nil {
		if i, ok = p.assets[t.AssetIn]; !ok {
			return fmt.Errorf("%w: %d", ErrUnknownAsset, t.AssetIn)
		}
		if newIn, err = i.State.DeltaUpdate(*t.In); err != nil {
			return fmt.Errorf("asset %d: %w", t.AssetIn, err)
		}
	}

	imbalance, err := omnipool.UpdateHubImbalance(p.imbalance, t.Out.ExtraHubReserveAmount, t.Fee.BurnedProtocolFee)
	if err != nil {
		return fmt.Errorf("hub imbalance: %w", err)
	}

	o.State = newOut
	if i != nil {
		i.State = newIn
	}
	p.imbalance = imbalance
	return nil
}

// Sell quotes and applies a sell.
func (p *Pool) Sell(in, out domain.AssetID, amount *uint256.Int) (*Trade, error) {
	t, err := p.QuoteSell(in, out, amount)
	if err != nil {
		return nil, err
	}
	return t, p.Apply(t)
}

// Buy quotes and applies a buy.
func (p *Pool) Buy(in, out domain.AssetID, amount *uint256.Int) (*Trade, error) {
	t, err := p.QuoteBuy(in, out, amount)
	if err != nil {
		return nil, err
	}
	return t, p.Apply(t)
}

// SpotPrice returns the fee-less price of in denominated in out.
func (p *Pool) SpotPrice(in, out domain.AssetID) (fixed.Ratio, error) {
	if in == p.hubAsset || out == p.hubAsset {
		id := out
		if out == p.hubAsset {
			id = in
		}
		a, ok := p.assets[id]
		if !ok {
			return fixed.Ratio{}, fmt.Errorf("%w: %d", ErrUnknownAsset, id)
		}
		if a.State.Reserve == nil || a.State.Reserve.IsZero() || a.State.HubReserve == nil || a.State.HubReserve.IsZero() {
			return fixed.Ratio{}, fixed.ErrZeroReserve
		}
		hubPrice := fixed.NewRatio(a.State.HubReserve, a.State.Reserve)
		if out == p.hubAsset {
			return hubPrice, nil
		}
		return hubPrice.Inverse(), nil
	}
	a, ok := p.assets[in]
	if !ok {
		return fixed.Ratio{}, fmt.Errorf("%w: %d", ErrUnknownAsset, in)
	}
	b, ok := p.assets[out]
	if !ok {
		return fixed.Ratio{}, fmt.Errorf("%w: %d", ErrUnknownAsset, out)
	}
	return omnipool.SpotPriceRatio(a.State, b.State)
}
