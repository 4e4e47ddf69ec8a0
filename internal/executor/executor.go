// Package executor owns the omnipool state. It accepts competing solutions
// for the current round, keeps the best one and applies it atomically when
// the round closes. All state mutations go through a single writer.
package executor

import (
	"fmt"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/rs/zerolog/log"

	"github.com/hxuan190/omnipool-engine/internal/domain"
	"github.com/hxuan190/omnipool-engine/internal/intent"
	"github.com/hxuan190/omnipool-engine/internal/math/dynamicfees"
	"github.com/hxuan190/omnipool-engine/internal/math/fixed"
	"github.com/hxuan190/omnipool-engine/internal/oracle"
)

const DefaultTradeTolerance uint64 = 1

type Config struct {
	HubAsset domain.AssetID
	// Burn is the share of the protocol fee burned on every trade.
	Burn fixed.Permill
	// TradeTolerance is the largest difference, in base units, accepted
	// between a claimed trade amount and its replay.
	TradeTolerance   uint64
	MinWithdrawalFee fixed.Permill
	// AssetFees and ProtocolFees enable dynamic fees when both are set.
	AssetFees    *dynamicfees.FeeParams
	ProtocolFees *dynamicfees.FeeParams
}

func DefaultConfig() Config {
	return Config{
		HubAsset:         domain.HubAssetID,
		TradeTolerance:   DefaultTradeTolerance,
		MinWithdrawalFee: fixed.PermillFromParts(100),
	}
}

type proposal struct {
	who     string
	checked *checked
	version uint64
}

// RoundResult describes a closed round.
type RoundResult struct {
	Round    uint64
	Proposer string
	Solution *domain.Solution
	Score    uint64
	Updates  []intent.Update
	Expired  []*domain.Intent
	Fees     map[domain.AssetID]dynamicfees.FeeEntry
}

// Executor validates solutions and applies the winning one per round.
type Executor struct {
	mu     sync.RWMutex
	cfg    Config
	state  *State
	store  *intent.Store
	oracle *oracle.VolumeOracle
	best   *proposal

	// Now returns the current time in unix milliseconds.
	Now func() uint64
}

// New creates an executor over an initial state. oracle may be nil, in which
// case fees stay fixed.
func New(cfg Config, state *State, store *intent.Store, volumes *oracle.VolumeOracle) *Executor {
	return &Executor{
		cfg:    cfg,
		state:  state,
		store:  store,
		oracle: volumes,
		Now:    func() uint64 { return uint64(time.Now().UnixMilli()) },
	}
}

func (e *Executor) Config() Config {
	return e.cfg
}

// Propose validates a solution for round and keeps it when it beats the
// current best. The first proposal wins ties. It returns the score the
// executor computed for the solution.
func (e *Executor) Propose(who string, sol *domain.Solution, round uint64) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case round < e.state.Round:
		return 0, intent.Reject(intent.ReasonAlreadyExecuted, "round %d already executed", round)
	case round > e.state.Round:
		return 0, intent.Reject(intent.ReasonRound, "round %d is not open, current %d", round, e.state.Round)
	}
	if sol.IsEmpty() {
		return 0, intent.Reject(intent.ReasonEmpty, "no resolved intents")
	}

	c, err := e.check(e.state, cloneSolution(sol), e.Now())
	if err != nil {
		return 0, err
	}
	if e.best != nil && c.score <= e.best.checked.score {
		return c.score, intent.Reject(intent.ReasonScore, "score %d does not beat %d", c.score, e.best.checked.score)
	}

	c.solution.Round = round
	c.solution.Score = c.score
	if c.solution.Proposer == "" {
		c.solution.Proposer = who
	}
	e.best = &proposal{who: who, checked: c, version: e.state.Version}

	log.Debug().
		Str("proposer", who).
		Uint64("round", round).
		Uint64("score", c.score).
		Int("intents", len(sol.ResolvedIntents)).
		Int("trades", len(sol.Trades)).
		Msg("[Executor] new best proposal")
	return c.score, nil
}

// Best returns the current best proposal for the open round.
func (e *Executor) Best() (*domain.Solution, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.best == nil {
		return nil, false
	}
	return cloneSolution(e.best.checked.solution), true
}

// Finalize closes the current round. The best proposal, if any, is checked
// again against the current state and applied together with the intent
// updates; then volumes are folded into the oracle, fees are recalculated,
// the round advances and expired intents are swept.
//
// When the proposal no longer validates it is discarded, the error is
// returned and the state is left untouched; the round stays open.
func (e *Executor) Finalize() (*RoundResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.Now()
	next := e.state.clone()
	result := &RoundResult{Round: next.Round}

	var applied *checked
	if e.best != nil {
		best := e.best
		e.best = nil

		c := best.checked
		if best.version != e.state.Version {
			var err error
			if c, err = e.check(e.state, best.checked.solution, now); err != nil {
				return nil, fmt.Errorf("stale proposal from %s: %w", best.who, err)
			}
		} else {
			// deadlines may have passed since the proposal was accepted
			for _, r := range c.solution.ResolvedIntents {
				if err := intent.ValidateResolved(c.intents[r.ID], r, now); err != nil {
					return nil, err
				}
			}
		}

		next.commit(c.pool)
		updates, err := e.store.ApplyResolved(c.solution.ResolvedIntents)
		if err != nil {
			return nil, intent.Reject(intent.ReasonIntentNotFound, "%v", err)
		}

		applied = c
		result.Proposer = best.who
		result.Solution = cloneSolution(c.solution)
		result.Score = c.score
		result.Updates = updates
	}

	e.closeOracle(next, applied)
	result.Fees = e.recalculateFees(next)

	for _, a := range next.Assets {
		next.recordPrice(a)
	}
	next.Round++
	next.Version++
	e.state = next

	result.Expired = e.store.Expire(now)
	return result, nil
}

func (e *Executor) closeOracle(next *State, applied *checked) {
	if e.oracle == nil {
		return
	}
	if applied != nil {
		for _, t := range applied.trades {
			if a, ok := next.Assets[t.AssetIn]; ok {
				e.oracle.RecordTrade(t.AssetIn, t.AmountIn, nil, a.Reserve)
			}
			if a, ok := next.Assets[t.AssetOut]; ok {
				e.oracle.RecordTrade(t.AssetOut, nil, t.AmountOut, a.Reserve)
			}
		}
	}
	for id, a := range next.Assets {
		if id == e.cfg.HubAsset {
			continue
		}
		e.oracle.RecordLiquidity(id, a.Reserve)
	}
	e.oracle.Close(next.Round)
}

func (e *Executor) recalculateFees(next *State) map[domain.AssetID]dynamicfees.FeeEntry {
	if e.oracle == nil || e.cfg.AssetFees == nil || e.cfg.ProtocolFees == nil {
		return nil
	}
	fees := make(map[domain.AssetID]dynamicfees.FeeEntry, len(next.Assets))
	for id, a := range next.Assets {
		volume, ok := e.oracle.Entry(id)
		if !ok {
			continue
		}
		entry, ok := next.Fees[id]
		if !ok {
			entry = dynamicfees.InitialEntry(next.Round, *e.cfg.AssetFees, *e.cfg.ProtocolFees)
		}
		entry = dynamicfees.RecalculateFees(entry, volume, next.Round+1, *e.cfg.AssetFees, *e.cfg.ProtocolFees)
		next.Fees[id] = entry
		a.Fee = entry.AssetFee
		a.ProtocolFee = entry.ProtocolFee
		fees[id] = entry
	}
	return fees
}

// Quote prices a trade against the current state without applying it.
func (e *Executor) Quote(kind domain.TradeKind, in, out domain.AssetID, amount *uint256.Int) (*domain.QuoteResult, error) {
	e.mu.RLock()
	pool := e.state.pool(e.cfg.HubAsset, e.cfg.Burn)
	round := e.state.Round
	e.mu.RUnlock()

	t, err := pool.Quote(kind, in, out, amount)
	if err != nil {
		return nil, err
	}
	spot := ""
	if price, err := pool.SpotPrice(in, out); err == nil {
		spot = fmt.Sprintf("%.12f", price.Float64())
	}
	return &domain.QuoteResult{
		AssetIn:     in,
		AssetOut:    out,
		Kind:        kind,
		AmountIn:    t.AmountIn,
		AmountOut:   t.AmountOut,
		AssetFee:    orZero(t.Fee.AssetFee),
		ProtocolFee: orZero(t.Fee.ProtocolFee),
		BurnedFee:   orZero(t.Fee.BurnedProtocolFee),
		SpotPrice:   spot,
		Round:       round,
	}, nil
}

func cloneSolution(s *domain.Solution) *domain.Solution {
	c := &domain.Solution{
		Proposer:        s.Proposer,
		Round:           s.Round,
		Score:           s.Score,
		ResolvedIntents: make([]domain.ResolvedIntent, len(s.ResolvedIntents)),
		Trades:          make([]domain.TradeInstruction, len(s.Trades)),
	}
	for i, r := range s.ResolvedIntents {
		c.ResolvedIntents[i] = domain.ResolvedIntent{ID: r.ID, AmountIn: fixed.Clone(r.AmountIn), AmountOut: fixed.Clone(r.AmountOut)}
	}
	for i, t := range s.Trades {
		t.AmountIn = fixed.Clone(t.AmountIn)
		t.AmountOut = fixed.Clone(t.AmountOut)
		c.Trades[i] = t
	}
	return c
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return fixed.Zero()
	}
	return fixed.Clone(v)
}
