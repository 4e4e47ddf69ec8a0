package persistence

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hxuan190/omnipool-engine/internal/domain"
	"github.com/hxuan190/omnipool-engine/internal/executor"
	"github.com/hxuan190/omnipool-engine/internal/intent"
	"github.com/hxuan190/omnipool-engine/internal/math/fixed"
	"github.com/hxuan190/omnipool-engine/internal/math/omnipool"
)

func openStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(filepath.Join(t.TempDir(), "db", "omnipool.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testAssets() []*domain.AssetState {
	return []*domain.AssetState{
		{
			AssetID:     0,
			Symbol:      "HDX",
			Decimals:    12,
			Reserve:     fixed.MustBalance("1000000000000000"),
			HubReserve:  fixed.MustBalance("10000000000000"),
			Shares:      fixed.MustBalance("1000000000000000"),
			Fee:         fixed.PermillFromParts(2500),
			ProtocolFee: fixed.PermillFromParts(500),
			Cap:         fixed.OnePermill,
			Tradable:    domain.TradeAll,
		},
		{
			AssetID:     5,
			Symbol:      "DOT",
			Decimals:    10,
			Reserve:     fixed.MustBalance("860000000000"),
			HubReserve:  fixed.MustBalance("26000000000000"),
			Shares:      fixed.MustBalance("860000000000"),
			Fee:         fixed.PermillFromParts(2500),
			ProtocolFee: fixed.PermillFromParts(500),
			Cap:         fixed.OnePermill,
			Tradable:    domain.TradeAll,
		},
	}
}

func TestLoadStateEmpty(t *testing.T) {
	s := openStorage(t)

	st, ok, err := s.LoadState()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, st)
}

func TestSaveAndLoadState(t *testing.T) {
	s := openStorage(t)

	st := executor.NewState(7, testAssets())
	st.Imbalance = omnipool.Decrease(fixed.U(1234))
	st.NextPosition = 3
	st.Positions[1] = &domain.Position{
		ID:      1,
		Owner:   "alice",
		AssetID: 5,
		Amount:  fixed.U(1_000_000),
		Shares:  fixed.U(1_000_000),
		Price:   fixed.RatioFromUint64(26000, 860),
	}
	st.Positions[2] = &domain.Position{
		ID:      2,
		Owner:   "bob",
		AssetID: 0,
		Amount:  fixed.U(500),
		Shares:  fixed.U(500),
		Price:   fixed.RatioFromUint64(1, 100),
	}
	require.NoError(t, s.SaveState(st))

	loaded, ok, err := s.LoadState()
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, uint64(7), loaded.Round)
	assert.Equal(t, uint64(3), loaded.NextPosition)
	assert.True(t, loaded.Imbalance.Negative)
	assert.Equal(t, "1234", loaded.Imbalance.Amount.Dec())

	require.Len(t, loaded.Assets, 2)
	dot := loaded.Assets[5]
	require.NotNil(t, dot)
	assert.Equal(t, "DOT", dot.Symbol)
	assert.Equal(t, "860000000000", dot.Reserve.Dec())
	assert.Equal(t, fixed.PermillFromParts(2500), dot.Fee)
	assert.Equal(t, st.Fees[5], loaded.Fees[5])
	assert.Equal(t, 0, st.Prices[5].Cmp(loaded.Prices[5]))

	require.Len(t, loaded.Positions, 2)
	p := loaded.Positions[1]
	assert.Equal(t, "alice", p.Owner)
	assert.Equal(t, "26000", p.Price.N.Dec())
	assert.Equal(t, "860", p.Price.D.Dec())

	// closing a position marks it closed on the next save
	delete(st.Positions, 2)
	require.NoError(t, s.SaveState(st))
	loaded, _, err = s.LoadState()
	require.NoError(t, err)
	assert.Len(t, loaded.Positions, 1)
	assert.Contains(t, loaded.Positions, uint64(1))
}

func TestIntentLifecycle(t *testing.T) {
	s := openStorage(t)

	store := intent.NewStore(0, domain.HubAssetID)
	var pending []*domain.Intent
	for i := 0; i < 3; i++ {
		in, err := store.Submit(intent.Submission{
			Who: "alice",
			Swap: domain.Swap{
				AssetIn:   0,
				AssetOut:  5,
				AmountIn:  fixed.U(1_000_000_000_000),
				AmountOut: fixed.U(1),
				Type:      domain.ExactIn,
			},
			Deadline: 2_000,
			Partial:  i == 1,
		}, 1_000)
		require.NoError(t, err)
		pending = append(pending, in)
	}
	require.NoError(t, s.SaveIntents(pending, IntentPending, 1_000))

	loaded, err := s.LoadPendingIntents()
	require.NoError(t, err)
	assert.Len(t, loaded, 3)

	remainder := pending[1].Clone()
	remainder.Swap.AmountIn = fixed.U(400_000_000_000)
	result := &executor.RoundResult{
		Round:    4,
		Proposer: "solver",
		Score:    42,
		Updates: []intent.Update{
			{ID: pending[0].ID, Removed: true},
			{ID: pending[1].ID, Intent: remainder},
		},
		Expired: []*domain.Intent{pending[2]},
	}
	require.NoError(t, s.SaveRound(result, 1_500))

	loaded, err = s.LoadPendingIntents()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, pending[1].ID, loaded[0].ID)
	assert.Equal(t, "400000000000", loaded[0].Swap.AmountIn.Dec())

	rounds, err := s.LoadRounds()
	require.NoError(t, err)
	require.Contains(t, rounds, uint64(4))
	assert.Equal(t, StoredRound{Round: 4, Proposer: "solver", Score: 42, Resolved: 2, Expired: 1}, rounds[4])
}
