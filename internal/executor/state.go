package executor

import (
	"sort"

	"github.com/holiman/uint256"

	"github.com/hxuan190/omnipool-engine/internal/domain"
	"github.com/hxuan190/omnipool-engine/internal/math/dynamicfees"
	"github.com/hxuan190/omnipool-engine/internal/math/fixed"
	"github.com/hxuan190/omnipool-engine/internal/math/omnipool"
	"github.com/hxuan190/omnipool-engine/internal/solver"
)

// State is everything the executor mutates. It is only ever replaced as a
// whole: changes are built on a clone and swapped in.
type State struct {
	Round     uint64
	Version   uint64
	Assets    map[domain.AssetID]*domain.AssetState
	Imbalance omnipool.BalanceUpdate
	Fees      map[domain.AssetID]dynamicfees.FeeEntry
	// Prices holds each asset's hub price at the close of the previous round.
	Prices       map[domain.AssetID]fixed.FixedU128
	Positions    map[uint64]*domain.Position
	NextPosition uint64
}

// NewState builds the initial state from an asset list.
func NewState(round uint64, assets []*domain.AssetState) *State {
	s := &State{
		Round:     round,
		Assets:    make(map[domain.AssetID]*domain.AssetState, len(assets)),
		Imbalance: omnipool.BalanceUpdate{Amount: fixed.Zero()},
		Fees:      make(map[domain.AssetID]dynamicfees.FeeEntry, len(assets)),
		Prices:    make(map[domain.AssetID]fixed.FixedU128, len(assets)),
		Positions: make(map[uint64]*domain.Position),
	}
	for _, a := range assets {
		c := a.Clone()
		c.Normalize()
		s.Assets[a.AssetID] = c
		s.Fees[a.AssetID] = feeEntryOf(c, round)
		s.recordPrice(c)
	}
	return s
}

func (s *State) clone() *State {
	c := &State{
		Round:        s.Round,
		Version:      s.Version,
		Assets:       make(map[domain.AssetID]*domain.AssetState, len(s.Assets)),
		Imbalance:    omnipool.BalanceUpdate{Amount: fixed.Clone(s.Imbalance.Amount), Negative: s.Imbalance.Negative},
		Fees:         make(map[domain.AssetID]dynamicfees.FeeEntry, len(s.Fees)),
		Prices:       make(map[domain.AssetID]fixed.FixedU128, len(s.Prices)),
		Positions:    make(map[uint64]*domain.Position, len(s.Positions)),
		NextPosition: s.NextPosition,
	}
	for id, a := range s.Assets {
		c.Assets[id] = a.Clone()
	}
	for id, f := range s.Fees {
		c.Fees[id] = f
	}
	for id, p := range s.Prices {
		c.Prices[id] = p
	}
	for id, p := range s.Positions {
		c.Positions[id] = p.Clone()
	}
	return c
}

// AssetList returns copies of the assets ordered by id.
func (s *State) AssetList() []*domain.AssetState {
	out := make([]*domain.AssetState, 0, len(s.Assets))
	for _, a := range s.Assets {
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssetID < out[j].AssetID })
	return out
}

// TotalHubReserve sums the hub reserve of every asset.
func (s *State) TotalHubReserve() *uint256.Int {
	total := fixed.Zero()
	for _, a := range s.Assets {
		total = fixed.SaturatingAdd(total, a.HubReserve)
	}
	return total
}

func (s *State) pool(hub domain.AssetID, burn fixed.Permill) *solver.Pool {
	p := solver.NewPool(s.AssetList(), hub, burn)
	p.SetImbalance(s.Imbalance)
	return p
}

// commit copies the pool's reserves and imbalance back into s.
func (s *State) commit(p *solver.Pool) {
	for _, id := range p.AssetIDs() {
		pa, _ := p.Asset(id)
		a, ok := s.Assets[id]
		if !ok {
			continue
		}
		a.Reserve = pa.State.Reserve
		a.HubReserve = pa.State.HubReserve
		a.Shares = pa.State.Shares
		a.ProtocolShares = pa.State.ProtocolShares
	}
	s.Imbalance = p.Imbalance()
}

func (s *State) recordPrice(a *domain.AssetState) {
	price, err := omnipool.AssetReserveState{Reserve: a.Reserve, HubReserve: a.HubReserve}.Price()
	if err != nil {
		delete(s.Prices, a.AssetID)
		return
	}
	s.Prices[a.AssetID] = price
}

func reserveState(a *domain.AssetState) omnipool.AssetReserveState {
	return omnipool.AssetReserveState{
		Reserve:        a.Reserve,
		HubReserve:     a.HubReserve,
		Shares:         a.Shares,
		ProtocolShares: a.ProtocolShares,
	}
}

func setReserveState(a *domain.AssetState, rs omnipool.AssetReserveState) {
	a.Reserve = rs.Reserve
	a.HubReserve = rs.HubReserve
	a.Shares = rs.Shares
	a.ProtocolShares = rs.ProtocolShares
}
