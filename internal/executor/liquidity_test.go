package executor

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hxuan190/omnipool-engine/internal/domain"
	"github.com/hxuan190/omnipool-engine/internal/math/fixed"
)

func TestAddAndRemoveLiquidity(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)

	pos, err := f.exec.AddLiquidity("lp", 27, uint256.NewInt(100_000_000_000))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), pos.ID)
	assert.Equal(t, "100000000000", pos.Shares.Dec(), "shares track reserve one to one")

	dot, _ := f.exec.Asset(27)
	assert.Equal(t, "1993763546814", dot.Reserve.Dec())
	assert.True(t, dot.HubReserve.Gt(uint256.NewInt(30_000_004_000_012)))

	half, err := f.exec.RemoveLiquidity(pos.ID, uint256.NewInt(50_000_000_000))
	require.NoError(t, err)
	require.NotNil(t, half.Position)
	assert.Equal(t, "50000000000", half.Position.Shares.Dec())
	assert.Equal(t, fixed.PermillFromParts(100), half.Fee)
	assert.True(t, half.Amount.Lt(uint256.NewInt(50_000_000_000)), "withdrawal fee is kept by the pool")
	assert.True(t, half.Amount.Gt(uint256.NewInt(49_990_000_000-10)))

	rest, err := f.exec.RemoveLiquidity(pos.ID, uint256.NewInt(50_000_000_000))
	require.NoError(t, err)
	assert.Nil(t, rest.Position)
	_, ok := f.exec.Position(pos.ID)
	assert.False(t, ok)
}

func TestLiquidityErrors(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)

	_, err := f.exec.AddLiquidity("lp", 99, uint256.NewInt(1))
	assert.ErrorIs(t, err, ErrUnknownAsset)
	_, err = f.exec.AddLiquidity("lp", 27, uint256.NewInt(0))
	assert.ErrorIs(t, err, ErrZeroAmount)

	_, err = f.exec.RemoveLiquidity(7, uint256.NewInt(1))
	assert.ErrorIs(t, err, ErrPositionNotFound)

	pos, err := f.exec.AddLiquidity("lp", 27, uint256.NewInt(1_000_000))
	require.NoError(t, err)
	_, err = f.exec.RemoveLiquidity(pos.ID, uint256.NewInt(1_000_001))
	assert.ErrorIs(t, err, ErrInsufficientShares)

	require.NoError(t, f.exec.SetTradability(27, domain.TradeSell|domain.TradeBuy))
	_, err = f.exec.AddLiquidity("lp", 27, uint256.NewInt(1_000_000))
	assert.ErrorIs(t, err, ErrNotAllowed)
	_, err = f.exec.RemoveLiquidity(pos.ID, uint256.NewInt(1))
	assert.ErrorIs(t, err, ErrNotAllowed)
}

func TestAssetCap(t *testing.T) {
	assets := referenceAssets()
	assets[1].Cap = fixed.PermillFromPercent(6)
	f := newFixture(t, DefaultConfig(), nil)
	f.exec = New(DefaultConfig(), NewState(0, assets), f.store, nil)

	// DOT holds about 5.66% of the hub reserve
	_, err := f.exec.AddLiquidity("lp", 27, uint256.NewInt(10_000_000_000))
	require.NoError(t, err)
	_, err = f.exec.AddLiquidity("lp", 27, uint256.NewInt(1_000_000_000_000))
	assert.ErrorIs(t, err, ErrAssetCap)
}

func TestAddAsset(t *testing.T) {
	f := newFixture(t, DefaultConfig(), nil)

	usd := &domain.AssetState{
		AssetID:    10,
		Symbol:     "USDT",
		Decimals:   6,
		Reserve:    uint256.NewInt(1_000_000_000_000),
		HubReserve: uint256.NewInt(40_000_000_000_000),
		Fee:        fixed.PermillFromParts(2500),
		Tradable:   domain.TradeAll,
	}
	require.NoError(t, f.exec.AddAsset(usd))
	assert.ErrorIs(t, f.exec.AddAsset(usd), ErrAssetExists)
	assert.ErrorIs(t, f.exec.AddAsset(&domain.AssetState{AssetID: domain.HubAssetID}), ErrNotAllowed)

	got, ok := f.exec.Asset(10)
	require.True(t, ok)
	assert.Equal(t, "1000000000000", got.Shares.Dec())

	q, err := f.exec.Quote(domain.TradeKindSell, 27, 10, uint256.NewInt(1_000_000_000))
	require.NoError(t, err)
	assert.False(t, q.AmountOut.IsZero())
}
