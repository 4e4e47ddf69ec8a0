package solver

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hxuan190/omnipool-engine/internal/domain"
)

func TestPoolCanTrade(t *testing.T) {
	snap := loadSnapshot(t)
	frozen := snap.Assets[1].Clone()
	frozen.AssetID = 5
	frozen.Tradable = domain.TradeSell
	pool := NewPool(append(snap.Assets, frozen), domain.HubAssetID, 0)

	assert.NoError(t, pool.CanTrade(0, 27))
	assert.NoError(t, pool.CanTrade(domain.HubAssetID, 27))
	assert.ErrorIs(t, pool.CanTrade(0, domain.HubAssetID), ErrBuyHubAsset)
	assert.ErrorIs(t, pool.CanTrade(0, 0), ErrNotTradable)
	assert.ErrorIs(t, pool.CanTrade(0, 99), ErrUnknownAsset)
	assert.ErrorIs(t, pool.CanTrade(99, 27), ErrUnknownAsset)
	assert.ErrorIs(t, pool.CanTrade(0, 5), ErrNotTradable)
	assert.NoError(t, pool.CanTrade(5, 27))
}

func TestPoolQuoteDoesNotMutate(t *testing.T) {
	snap := loadSnapshot(t)
	pool := NewPool(snap.Assets, domain.HubAssetID, 0)

	q, err := pool.QuoteSell(0, 27, uint256.NewInt(1_000_000_000_000))
	require.NoError(t, err)
	assert.Equal(t, "30922041217", q.AmountOut.Dec())

	dot, ok := pool.Asset(27)
	require.True(t, ok)
	assert.Equal(t, "1893763546814", dot.State.Reserve.Dec())
}

func TestPoolApply(t *testing.T) {
	snap := loadSnapshot(t)
	pool := NewPool(snap.Assets, domain.HubAssetID, 0)
	clone := pool.Clone()

	tr, err := pool.Sell(0, 27, uint256.NewInt(1_000_000_000_000))
	require.NoError(t, err)

	hdx, _ := pool.Asset(0)
	dot, _ := pool.Asset(27)
	assert.Equal(t, "1001000000000000", hdx.State.Reserve.Dec())
	want := new(uint256.Int).Sub(uint256.NewInt(1893763546814), tr.AmountOut)
	assert.Equal(t, want.Dec(), dot.State.Reserve.Dec())

	// the clone is independent
	orig, _ := clone.Asset(27)
	assert.Equal(t, "1893763546814", orig.State.Reserve.Dec())

	// a second identical quote is priced on the moved state
	again, err := pool.QuoteSell(0, 27, uint256.NewInt(1_000_000_000_000))
	require.NoError(t, err)
	assert.True(t, again.AmountOut.Lt(tr.AmountOut))
}

func TestPoolApplyIsAtomic(t *testing.T) {
	snap := loadSnapshot(t)
	pool := NewPool(snap.Assets, domain.HubAssetID, 0)

	tr, err := pool.QuoteSell(0, 27, uint256.NewInt(1_000_000_000_000))
	require.NoError(t, err)
	tr.AssetIn = 42

	require.Error(t, pool.Apply(tr))
	dot, _ := pool.Asset(27)
	assert.Equal(t, "1893763546814", dot.State.Reserve.Dec())
}

func TestPoolSpotPrice(t *testing.T) {
	snap := loadSnapshot(t)
	pool := NewPool(snap.Assets, domain.HubAssetID, 0)

	hub, err := pool.SpotPrice(0, domain.HubAssetID)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, hub.Float64(), 1e-12)

	fwd, err := pool.SpotPrice(0, 27)
	require.NoError(t, err)
	back, err := pool.SpotPrice(27, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, fwd.Float64()*back.Float64(), 1e-9)

	_, err = pool.SpotPrice(0, 99)
	assert.ErrorIs(t, err, ErrUnknownAsset)
}
