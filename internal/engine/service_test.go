package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hxuan190/omnipool-engine/internal/config"
	"github.com/hxuan190/omnipool-engine/internal/domain"
	"github.com/hxuan190/omnipool-engine/internal/intent"
	"github.com/hxuan190/omnipool-engine/internal/solver"
)

const testNow uint64 = 1_700_000_000_000

const snapshotPath = "../solver/testdata/snapshot.json"

func testConfigs() (*config.EngineConfig, *config.SolverConfig, *config.FeeConfig) {
	engineCfg := &config.EngineConfig{
		RoundInterval:    time.Second,
		PersistInterval:  time.Second,
		SnapshotPath:     snapshotPath,
		MaxDeadline:      24 * time.Hour,
		HubAssetID:       1,
		TradeTolerance:   1,
		MinWithdrawalFee: 100,
		OracleWindow:     10,
		QuoteCacheSize:   16,
	}
	solverCfg := &config.SolverConfig{
		Enabled:       true,
		Name:          "builtin",
		Tolerance:     1,
		MaxIterations: 128,
		Timeout:       5 * time.Second,
		Sequential:    true,
	}
	return engineCfg, solverCfg, &config.FeeConfig{}
}

func newTestService(t *testing.T, engineCfg *config.EngineConfig, solverCfg *config.SolverConfig, feeCfg *config.FeeConfig) *Service {
	t.Helper()
	svc, err := NewService(engineCfg, solverCfg, feeCfg, func() uint64 { return testNow })
	require.NoError(t, err)
	return svc
}

func newDefaultService(t *testing.T) *Service {
	t.Helper()
	engineCfg, solverCfg, feeCfg := testConfigs()
	return newTestService(t, engineCfg, solverCfg, feeCfg)
}

func aliceIntent(t *testing.T, svc *Service) *domain.Intent {
	t.Helper()
	all := svc.Intents("alice")
	require.Len(t, all, 1)
	return all[0]
}

func TestSeedFromSnapshot(t *testing.T) {
	svc := newDefaultService(t)

	assert.Equal(t, uint64(0), svc.Round())
	assert.Len(t, svc.Assets(nil), 2)

	snap := svc.Snapshot()
	require.Len(t, snap.Intents, 1)
	assert.Equal(t, "alice", snap.Intents[0].Who)
}

func TestEmptyPoolWithoutSnapshot(t *testing.T) {
	engineCfg, solverCfg, feeCfg := testConfigs()
	engineCfg.SnapshotPath = ""
	svc := newTestService(t, engineCfg, solverCfg, feeCfg)

	assert.Empty(t, svc.Assets(nil))
	assert.Empty(t, svc.Intents(""))
}

func TestSolveAndCloseRound(t *testing.T) {
	svc := newDefaultService(t)
	id := aliceIntent(t, svc).ID

	score, err := svc.SolveAndPropose(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000), score)

	best, ok := svc.Best()
	require.True(t, ok)
	assert.Equal(t, "builtin", best.Proposer)

	result, err := svc.CloseRound()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), result.Round)
	assert.Equal(t, uint64(1_000_000), result.Score)
	require.Len(t, result.Updates, 1)
	assert.False(t, result.Updates[0].Removed)

	assert.Equal(t, uint64(1), svc.Round())
	hdx, ok := svc.Asset(0)
	require.True(t, ok)
	assert.Equal(t, "1098465458599392", hdx.Reserve.Dec())

	left, ok := svc.Intent(id)
	require.True(t, ok)
	assert.Equal(t, "1534541400608", left.Swap.AmountIn.Dec())

	_, ok = svc.Best()
	assert.False(t, ok)
}

func TestSolveRunsEveryCandidate(t *testing.T) {
	svc := newDefaultService(t)
	require.Len(t, svc.providers, 2)

	_, err := svc.SubmitIntent(intent.Submission{
		Who: "bob",
		Swap: domain.Swap{
			AssetIn:   27,
			AssetOut:  0,
			AmountIn:  uint256.NewInt(1_000_000_000),
			AmountOut: uint256.NewInt(1),
			Type:      domain.ExactIn,
		},
		Deadline: testNow + 60_000,
	})
	require.NoError(t, err)

	score, err := svc.SolveAndPropose(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, score, uint64(2_000_000))

	engineCfg, solverCfg, feeCfg := testConfigs()
	solverCfg.Sequential = false
	single := newTestService(t, engineCfg, solverCfg, feeCfg)
	assert.Len(t, single.providers, 1)
}

func TestConfiguredHubAssetRefusesBuys(t *testing.T) {
	engineCfg, solverCfg, feeCfg := testConfigs()
	engineCfg.HubAssetID = 5
	svc := newTestService(t, engineCfg, solverCfg, feeCfg)

	buy := func(out domain.AssetID) error {
		_, err := svc.SubmitIntent(intent.Submission{
			Who: "bob",
			Swap: domain.Swap{
				AssetIn:   0,
				AssetOut:  out,
				AmountIn:  uint256.NewInt(1_000_000_000),
				AmountOut: uint256.NewInt(1),
				Type:      domain.ExactIn,
			},
			Deadline: testNow + 60_000,
		})
		return err
	}
	assert.ErrorIs(t, buy(5), intent.ErrHubAssetOut)
	assert.NoError(t, buy(domain.HubAssetID))
	assert.Equal(t, domain.AssetID(5), svc.HubAsset())
}

func TestCloseRoundWithoutProposal(t *testing.T) {
	svc := newDefaultService(t)

	result, err := svc.CloseRound()
	require.NoError(t, err)
	assert.Nil(t, result.Solution)
	assert.Equal(t, uint64(1), svc.Round())
	assert.Len(t, svc.Intents(""), 1)
}

func TestCancelIntent(t *testing.T) {
	svc := newDefaultService(t)
	id := aliceIntent(t, svc).ID

	assert.ErrorIs(t, svc.CancelIntent(id, "bob"), ErrNotOwner)
	require.NoError(t, svc.CancelIntent(id, "alice"))
	assert.ErrorIs(t, svc.CancelIntent(id, "alice"), ErrIntentNotFound)

	_, err := svc.SolveAndPropose(context.Background())
	assert.ErrorIs(t, err, solver.ErrNoSolution)
}

func TestSubmitIntent(t *testing.T) {
	svc := newDefaultService(t)

	in, err := svc.SubmitIntent(intent.Submission{
		Who: "bob",
		Swap: domain.Swap{
			AssetIn:   27,
			AssetOut:  0,
			AmountIn:  uint256.NewInt(1_000_000_000),
			AmountOut: uint256.NewInt(1),
			Type:      domain.ExactIn,
		},
		Deadline: testNow + 60_000,
	})
	require.NoError(t, err)
	assert.Equal(t, "bob", in.Who)
	assert.Len(t, svc.Intents("bob"), 1)
	assert.Len(t, svc.Intents(""), 2)

	_, err = svc.SubmitIntent(intent.Submission{
		Who: "bob",
		Swap: domain.Swap{
			AssetIn:   27,
			AssetOut:  27,
			AmountIn:  uint256.NewInt(1),
			AmountOut: uint256.NewInt(1),
		},
		Deadline: testNow + 60_000,
	})
	assert.ErrorIs(t, err, intent.ErrSameAssets)
}

func TestQuoteCachedPerStateVersion(t *testing.T) {
	svc := newDefaultService(t)
	amount := uint256.NewInt(1_000_000_000_000)

	first, err := svc.Quote(domain.TradeKindSell, 0, 27, amount)
	require.NoError(t, err)
	assert.Equal(t, "30922041217", first.AmountOut.Dec())

	again, err := svc.Quote(domain.TradeKindSell, 0, 27, amount)
	require.NoError(t, err)
	assert.Same(t, first, again)

	_, err = svc.AddLiquidity("carol", 27, uint256.NewInt(10_000_000_000))
	require.NoError(t, err)

	after, err := svc.Quote(domain.TradeKindSell, 0, 27, amount)
	require.NoError(t, err)
	assert.NotSame(t, first, after)
	assert.Equal(t, 1, svc.quotes.Size())
}

func TestRestartRestoresState(t *testing.T) {
	engineCfg, solverCfg, feeCfg := testConfigs()
	engineCfg.PersistenceEnabled = true
	engineCfg.DBPath = filepath.Join(t.TempDir(), "omnipool.db")

	svc := newTestService(t, engineCfg, solverCfg, feeCfg)
	id := aliceIntent(t, svc).ID

	_, err := svc.SolveAndPropose(context.Background())
	require.NoError(t, err)
	_, err = svc.CloseRound()
	require.NoError(t, err)

	pos, err := svc.AddLiquidity("carol", 27, uint256.NewInt(10_000_000_000))
	require.NoError(t, err)
	bob, err := svc.SubmitIntent(intent.Submission{
		Who: "bob",
		Swap: domain.Swap{
			AssetIn:   27,
			AssetOut:  0,
			AmountIn:  uint256.NewInt(1_000_000_000),
			AmountOut: uint256.NewInt(1),
			Type:      domain.ExactIn,
		},
		Deadline: testNow + 60_000,
	})
	require.NoError(t, err)
	dot, _ := svc.Asset(27)
	require.NoError(t, svc.Stop())

	// the snapshot is ignored once state was stored
	restarted := newTestService(t, engineCfg, solverCfg, feeCfg)
	t.Cleanup(func() { _ = restarted.Stop() })

	assert.Equal(t, uint64(1), restarted.Round())
	restoredDOT, ok := restarted.Asset(27)
	require.True(t, ok)
	assert.Equal(t, dot.Reserve.Dec(), restoredDOT.Reserve.Dec())
	assert.Equal(t, dot.HubReserve.Dec(), restoredDOT.HubReserve.Dec())

	p, ok := restarted.Position(pos.ID)
	require.True(t, ok)
	assert.Equal(t, "carol", p.Owner)

	left, ok := restarted.Intent(id)
	require.True(t, ok)
	assert.Equal(t, "1534541400608", left.Swap.AmountIn.Dec())
	_, ok = restarted.Intent(bob.ID)
	assert.True(t, ok)
}
