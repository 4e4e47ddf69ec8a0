package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hxuan190/omnipool-engine/internal/domain"
)

func quoteCmd() *cobra.Command {
	var (
		snap    snapshotFlags
		in, out uint32
		amount  string
		buy     bool
		human   bool
	)
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a sell or buy against the snapshot pool",
		Example: `  omnictl quote -s snapshot.json --in 0 --out 27 --amount 1 --human
  omnictl quote -s snapshot.json --in 0 --out 27 --amount 10000000000 --buy`,
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := snap.load()
			if err != nil {
				return err
			}
			assetIn, assetOut := domain.AssetID(in), domain.AssetID(out)
			inDecimals, err := o.decimals(assetIn)
			if err != nil {
				return err
			}
			outDecimals, err := o.decimals(assetOut)
			if err != nil {
				return err
			}

			kind, amountDecimals := domain.TradeKindSell, inDecimals
			if buy {
				kind, amountDecimals = domain.TradeKindBuy, outDecimals
			}
			v, err := parseAmount(amount, amountDecimals, human)
			if err != nil {
				return fmt.Errorf("amount: %w", err)
			}

			q, err := o.exec.Quote(kind, assetIn, assetOut, v)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"quote":           q,
				"amountInTokens":  tokens(q.AmountIn, inDecimals),
				"amountOutTokens": tokens(q.AmountOut, outDecimals),
				"kind":            kind.String(),
			})
		},
	}
	snap.register(cmd.Flags())
	cmd.Flags().Uint32Var(&in, "in", 0, "asset sold")
	cmd.Flags().Uint32Var(&out, "out", 0, "asset bought")
	cmd.Flags().StringVar(&amount, "amount", "", "amount sold, or bought with --buy")
	cmd.Flags().BoolVar(&buy, "buy", false, "fix the amount bought instead of the amount sold")
	cmd.Flags().BoolVar(&human, "human", false, "amount is in whole tokens")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}
