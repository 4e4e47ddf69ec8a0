package main

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"github.com/hxuan190/omnipool-engine/internal/config"
	"github.com/hxuan190/omnipool-engine/internal/math/dynamicfees"
	"github.com/hxuan190/omnipool-engine/internal/math/fixed"
)

func feesCmd() *cobra.Command {
	var (
		amountIn, amountOut, liquidity string
		assetFee, protocolFee          uint32
		elapsed                        uint64
	)
	cmd := &cobra.Command{
		Use:   "fees",
		Short: "Preview the next dynamic fees for an oracle volume",
		Long: `Applies the fee parameters from the FEE_* environment to one oracle
entry and prints the resulting asset and protocol fee in parts per million.`,
		Example: `  omnictl fees --in 1000000000 --out 5000000000 --liquidity 100000000000 --elapsed 1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var feeCfg config.FeeConfig
			if err := feeCfg.Load(); err != nil {
				return err
			}
			assetParams, protocolParams := feeCfg.Params()

			volume := dynamicfees.OracleEntry{}
			for _, f := range []struct {
				name string
				raw  string
				dst  **uint256.Int
			}{
				{"in", amountIn, &volume.AmountIn},
				{"out", amountOut, &volume.AmountOut},
				{"liquidity", liquidity, &volume.Liquidity},
			} {
				v, err := uint256.FromDecimal(f.raw)
				if err != nil {
					return fmt.Errorf("%s: %w", f.name, err)
				}
				*f.dst = v
			}

			prev := dynamicfees.FeeEntry{
				AssetFee:    assetParams.Clamp(fixed.PermillFromParts(assetFee)),
				ProtocolFee: protocolParams.Clamp(fixed.PermillFromParts(protocolFee)),
			}
			next := dynamicfees.RecalculateFees(prev, volume, elapsed, assetParams, protocolParams)
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"previous":    prev,
				"next":        next,
				"assetFee":    next.AssetFee.String(),
				"protocolFee": next.ProtocolFee.String(),
			})
		},
	}
	cmd.Flags().StringVar(&amountIn, "in", "0", "oracle volume sold into the pool")
	cmd.Flags().StringVar(&amountOut, "out", "0", "oracle volume bought from the pool")
	cmd.Flags().StringVar(&liquidity, "liquidity", "0", "oracle liquidity")
	cmd.Flags().Uint32Var(&assetFee, "asset-fee", 0, "previous asset fee, ppm")
	cmd.Flags().Uint32Var(&protocolFee, "protocol-fee", 0, "previous protocol fee, ppm")
	cmd.Flags().Uint64Var(&elapsed, "elapsed", 1, "rounds since the previous fee update")
	return cmd
}
