package main

import (
	"fmt"
	"io"
	"math"

	"github.com/bytedance/sonic"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"

	"github.com/hxuan190/omnipool-engine/internal/domain"
	"github.com/hxuan190/omnipool-engine/internal/engine"
	"github.com/hxuan190/omnipool-engine/internal/executor"
	"github.com/hxuan190/omnipool-engine/internal/intent"
	"github.com/hxuan190/omnipool-engine/internal/oracle"
)

type snapshotFlags struct {
	path string
	now  uint64
}

func (f *snapshotFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.path, "snapshot", "s", "snapshot.json", "snapshot file with assets and intents")
	fs.Uint64Var(&f.now, "now", 0, "clock in unix milliseconds, defaults to the wall clock")
}

// offline is an executor seeded from a snapshot file.
type offline struct {
	snap  *domain.Snapshot
	exec  *executor.Executor
	store *intent.Store
}

func (f *snapshotFlags) load() (*offline, error) {
	snap, err := engine.LoadSnapshot(f.path)
	if err != nil {
		return nil, err
	}
	cfg := executor.DefaultConfig()
	store := intent.NewStore(math.MaxUint64, cfg.HubAsset)
	for _, in := range snap.Intents {
		if err := store.Restore(in); err != nil {
			return nil, fmt.Errorf("intent %s: %w", in.ID, err)
		}
	}
	exec := executor.New(cfg, executor.NewState(snap.Round, snap.Assets), store, oracle.NewVolumeOracle(10))
	if f.now != 0 {
		now := f.now
		exec.Now = func() uint64 { return now }
	}
	return &offline{snap: snap, exec: exec, store: store}, nil
}

func (o *offline) decimals(id domain.AssetID) (uint8, error) {
	if id == o.exec.Config().HubAsset {
		return domain.HubAssetDecimals, nil
	}
	a, ok := o.exec.Asset(id)
	if !ok {
		return 0, fmt.Errorf("%w: %d", executor.ErrUnknownAsset, id)
	}
	return a.Decimals, nil
}

// parseAmount reads raw integers, or token quantities when human is set.
func parseAmount(s string, decimals uint8, human bool) (*uint256.Int, error) {
	if !human {
		return uint256.FromDecimal(s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.IsInteger() || scaled.Sign() <= 0 {
		return nil, fmt.Errorf("invalid amount %s for %d decimals", s, decimals)
	}
	v, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return nil, fmt.Errorf("amount %s out of range", s)
	}
	return v, nil
}

func tokens(v *uint256.Int, decimals uint8) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v.ToBig(), -int32(decimals)).String()
}

func writeJSON(w io.Writer, v any) error {
	raw, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(raw))
	return err
}
