package executor

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hxuan190/omnipool-engine/internal/domain"
	"github.com/hxuan190/omnipool-engine/internal/intent"
	"github.com/hxuan190/omnipool-engine/internal/math/dynamicfees"
	"github.com/hxuan190/omnipool-engine/internal/math/fixed"
	"github.com/hxuan190/omnipool-engine/internal/oracle"
	"github.com/hxuan190/omnipool-engine/internal/solver"
)

const testNow uint64 = 1_700_000_000_000

func referenceAssets() []*domain.AssetState {
	return []*domain.AssetState{
		{
			AssetID:        0,
			Symbol:         "HDX",
			Decimals:       12,
			Reserve:        fixed.MustBalance("1000000000000000"),
			HubReserve:     fixed.MustBalance("500000000000000"),
			Shares:         fixed.MustBalance("1000000000000000"),
			ProtocolShares: fixed.Zero(),
			Fee:            fixed.PermillFromParts(2500),
			ProtocolFee:    fixed.PermillFromParts(500),
			Cap:            fixed.OnePermill,
			Tradable:       domain.TradeAll,
		},
		{
			AssetID:        27,
			Symbol:         "DOT",
			Decimals:       10,
			Reserve:        fixed.MustBalance("1893763546814"),
			HubReserve:     fixed.MustBalance("30000004000012"),
			Shares:         fixed.MustBalance("1893763546814"),
			ProtocolShares: fixed.Zero(),
			Fee:            fixed.PermillFromParts(2500),
			ProtocolFee:    fixed.PermillFromParts(500),
			Cap:            fixed.OnePermill,
			Tradable:       domain.TradeAll,
		},
	}
}

type fixture struct {
	exec   *Executor
	store  *intent.Store
	solver *solver.OmnipoolSolver
}

func newFixture(t *testing.T, cfg Config, volumes *oracle.VolumeOracle) *fixture {
	t.Helper()
	store := intent.NewStore(0, domain.HubAssetID)
	exec := New(cfg, NewState(0, referenceAssets()), store, volumes)
	exec.Now = func() uint64 { return testNow }

	s := solver.NewOmnipoolSolver("test")
	s.Now = exec.Now
	return &fixture{exec: exec, store: store, solver: s}
}

func (f *fixture) submit(t *testing.T, in, out domain.AssetID, amountIn, amountOut uint64, partial bool) *domain.Intent {
	t.Helper()
	it, err := f.store.Submit(intent.Submission{
		Who:      "alice",
		Swap:     domain.Swap{AssetIn: in, AssetOut: out, AmountIn: uint256.NewInt(amountIn), AmountOut: uint256.NewInt(amountOut), Type: domain.ExactIn},
		Deadline: testNow + 3_600_000,
		Partial:  partial,
	}, testNow)
	require.NoError(t, err)
	return it
}

func (f *fixture) solve(t *testing.T) (*domain.Solution, uint64) {
	t.Helper()
	snap := f.exec.Snapshot()
	sol, err := f.solver.Solve(context.Background(), f.store.Pending(testNow), snap.Assets)
	require.NoError(t, err)
	return sol, snap.Round
}

func requireReason(t *testing.T, err error, want intent.Reason) {
	t.Helper()
	require.Error(t, err)
	got, ok := intent.ReasonOf(err)
	require.True(t, ok, "not a rejection: %v", err)
	assert.Equal(t, want, got, err.Error())
}

func TestProposeAndFinalize(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)
	it := f.submit(t, 0, 27, 100_000_000_000_000, 1_149_000_000_000, true)

	sol, round := f.solve(t)
	score, err := f.exec.Propose("solver-a", sol, round)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000), score)

	best, ok := f.exec.Best()
	require.True(t, ok)
	assert.Equal(t, uint64(0), best.Round)

	res, err := f.exec.Finalize()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), res.Round)
	assert.Equal(t, "solver-a", res.Proposer)
	require.Len(t, res.Updates, 1)
	assert.False(t, res.Updates[0].Removed, "partial intent keeps its remainder")

	assert.Equal(t, uint64(1), f.exec.Round())
	dot, ok := f.exec.Asset(27)
	require.True(t, ok)
	assert.Equal(t, "762395427507", dot.Reserve.Dec())
	hdx, _ := f.exec.Asset(0)
	assert.Equal(t, "1098465458599392", hdx.Reserve.Dec())

	left, ok := f.store.Get(it.ID)
	require.True(t, ok)
	assert.Equal(t, "1534541400608", left.Swap.AmountIn.Dec())

	_, ok = f.exec.Best()
	assert.False(t, ok)
}

func TestFinalizeWithoutProposalAdvancesRound(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)
	res, err := f.exec.Finalize()
	require.NoError(t, err)
	assert.Nil(t, res.Solution)
	assert.Equal(t, uint64(1), f.exec.Round())
}

func TestFinalizeBatchedSameDirection(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)
	f.submit(t, 0, 27, 1_000_000_000_000, 30_000_000_000, false)
	f.submit(t, 0, 27, 1_000_000_000_000, 30_000_000_000, false)

	sol, round := f.solve(t)
	require.Len(t, sol.Trades, 1)
	score, err := f.exec.Propose("batch", sol, round)
	require.NoError(t, err)
	assert.Equal(t, uint64(2_000_000), score)

	res, err := f.exec.Finalize()
	require.NoError(t, err)
	require.Len(t, res.Updates, 2)
	for _, u := range res.Updates {
		assert.True(t, u.Removed)
	}
	assert.Equal(t, 0, f.store.Len())
}

func TestProposeRejectsWrongRound(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)
	f.submit(t, 0, 27, 1_000_000_000_000, 30_000_000_000, false)
	sol, _ := f.solve(t)

	_, err := f.exec.Propose("a", sol, 1)
	requireReason(t, err, intent.ReasonRound)

	_, err = f.exec.Finalize()
	require.NoError(t, err)
	_, err = f.exec.Propose("a", sol, 0)
	requireReason(t, err, intent.ReasonAlreadyExecuted)
}

func TestProposeRejectsEmpty(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)
	_, err := f.exec.Propose("a", &domain.Solution{}, 0)
	requireReason(t, err, intent.ReasonEmpty)
}

func TestProposeRequiresBetterScore(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)
	f.submit(t, 0, 27, 1_000_000_000_000, 30_000_000_000, false)
	sol, round := f.solve(t)

	_, err := f.exec.Propose("first", sol, round)
	require.NoError(t, err)
	_, err = f.exec.Propose("second", sol, round)
	requireReason(t, err, intent.ReasonScore)

	best, _ := f.exec.Best()
	assert.Equal(t, "test", best.Proposer)
	res, err := f.exec.Finalize()
	require.NoError(t, err)
	assert.Equal(t, "first", res.Proposer)
}

func TestProposeRejectsNonPartialAmount(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)
	it := f.submit(t, 0, 27, 1_000_000_000_000, 30_000_000_000, false)

	pool := solver.NewPool(referenceAssets(), domain.HubAssetID, 0)
	tr, err := pool.QuoteSell(0, 27, uint256.NewInt(500_000_000_000))
	require.NoError(t, err)

	sol := &domain.Solution{
		ResolvedIntents: []domain.ResolvedIntent{{ID: it.ID, AmountIn: tr.AmountIn, AmountOut: tr.AmountOut}},
		Trades:          []domain.TradeInstruction{tr.Instruction()},
	}
	_, err = f.exec.Propose("a", sol, 0)
	requireReason(t, err, intent.ReasonIntentAmount)
}

func TestProposeRejectsUnknownIntent(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)
	sol := &domain.Solution{
		ResolvedIntents: []domain.ResolvedIntent{{
			ID:        domain.IntentID{Deadline: testNow + 1, Seq: 42},
			AmountIn:  uint256.NewInt(1),
			AmountOut: uint256.NewInt(1),
		}},
	}
	_, err := f.exec.Propose("a", sol, 0)
	requireReason(t, err, intent.ReasonIntentNotFound)
}

func TestProposeRejectsIrreproducibleTrade(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)
	f.submit(t, 0, 27, 1_000_000_000_000, 30_000_000_000, false)
	sol, round := f.solve(t)

	sol.Trades[0].AmountOut = new(uint256.Int).AddUint64(sol.Trades[0].AmountOut, 5)
	_, err := f.exec.Propose("a", sol, round)
	requireReason(t, err, intent.ReasonTrade)
}

func TestProposeRejectsValueCreation(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)
	f.submit(t, 0, 27, 1_000_000_000_000, 30_000_000_000, false)
	sol, round := f.solve(t)
	require.Equal(t, "30922041217", sol.ResolvedIntents[0].AmountOut.Dec())

	// pays the user more than the pool returned
	sol.ResolvedIntents[0].AmountOut = uint256.NewInt(30_922_042_217)
	_, err := f.exec.Propose("a", sol, round)
	requireReason(t, err, intent.ReasonImbalance)
}

func TestProposeRejectsStaleSnapshot(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)
	f.submit(t, 0, 27, 1_000_000_000_000, 30_000_000_000, false)
	sol, round := f.solve(t)

	_, err := f.exec.AddLiquidity("lp", 27, uint256.NewInt(100_000_000_000))
	require.NoError(t, err)

	_, err = f.exec.Propose("a", sol, round)
	requireReason(t, err, intent.ReasonTrade)
}

func TestFinalizeRejectsProposalMadeStale(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)
	it := f.submit(t, 0, 27, 1_000_000_000_000, 30_000_000_000, false)
	sol, round := f.solve(t)

	_, err := f.exec.Propose("a", sol, round)
	require.NoError(t, err)
	_, err = f.exec.AddLiquidity("lp", 27, uint256.NewInt(100_000_000_000))
	require.NoError(t, err)
	before, _ := f.exec.Asset(27)

	_, err = f.exec.Finalize()
	requireReason(t, err, intent.ReasonTrade)

	after, _ := f.exec.Asset(27)
	assert.Equal(t, before.Reserve.Dec(), after.Reserve.Dec())
	assert.Equal(t, round, f.exec.Round())
	_, ok := f.store.Get(it.ID)
	assert.True(t, ok, "intent must stay pending")
	_, ok = f.exec.Best()
	assert.False(t, ok)
}

func TestFinalizeRecalculatesFees(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AssetFees = &dynamicfees.FeeParams{
		MinFee:        fixed.PermillFromParts(2500),
		MaxFee:        fixed.PermillFromPercent(5),
		Decay:         fixed.FixedFromInt(0),
		Amplification: fixed.FixedFromInt(1),
	}
	cfg.ProtocolFees = &dynamicfees.FeeParams{
		MinFee:        fixed.PermillFromParts(500),
		MaxFee:        fixed.PermillFromParts(1000),
		Decay:         fixed.FixedFromInt(0),
		Amplification: fixed.FixedFromInt(1),
	}
	f := newFixture(t, cfg, oracle.NewVolumeOracle(10))
	f.submit(t, 0, 27, 100_000_000_000_000, 1_149_000_000_000, true)
	sol, round := f.solve(t)
	_, err := f.exec.Propose("a", sol, round)
	require.NoError(t, err)

	res, err := f.exec.Finalize()
	require.NoError(t, err)
	require.Contains(t, res.Fees, domain.AssetID(27))

	// DOT left the pool: its asset fee rises, its protocol fee falls
	dot, _ := f.exec.Asset(27)
	assert.Equal(t, fixed.PermillFromPercent(5), dot.Fee)
	assert.Equal(t, fixed.PermillFromParts(500), dot.ProtocolFee)

	hdx, _ := f.exec.Asset(0)
	assert.Equal(t, fixed.PermillFromParts(2500), hdx.Fee)
	assert.Equal(t, fixed.PermillFromParts(1000), hdx.ProtocolFee)
	assert.Equal(t, uint64(1), res.Fees[27].Timestamp)
}

func TestFinalizeExpiresIntents(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)
	it := f.submit(t, 0, 27, 1_000_000_000_000, 30_000_000_000, false)

	f.exec.Now = func() uint64 { return it.Deadline }
	res, err := f.exec.Finalize()
	require.NoError(t, err)
	require.Len(t, res.Expired, 1)
	assert.Equal(t, it.ID, res.Expired[0].ID)
	assert.Equal(t, 0, f.store.Len())
}

func TestAssetsSnapshot(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)

	all := f.exec.Assets(nil)
	require.Len(t, all, 2)
	assert.Equal(t, domain.AssetID(0), all[0].AssetID)

	some := f.exec.Assets([]domain.AssetID{27, 99})
	require.Len(t, some, 1)
	assert.Equal(t, "1893763546814", some[0].Reserve.Dec())
	assert.Equal(t, uint8(10), some[0].Decimals)
	assert.Equal(t, Fee{Numerator: 2500, Denominator: 1_000_000}, some[0].Fee)
	assert.Equal(t, Fee{Numerator: 500, Denominator: 1_000_000}, some[0].HubFee)
}

func TestQuote(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)
	q, err := f.exec.Quote(domain.TradeKindSell, 0, 27, uint256.NewInt(1_000_000_000_000))
	require.NoError(t, err)
	assert.Equal(t, "30922041217", q.AmountOut.Dec())
	assert.NotEmpty(t, q.SpotPrice)

	_, err = f.exec.Quote(domain.TradeKindSell, 0, domain.HubAssetID, uint256.NewInt(1))
	assert.ErrorIs(t, err, solver.ErrBuyHubAsset)
}
