package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hxuan190/omnipool-engine/internal/domain"
	"github.com/hxuan190/omnipool-engine/internal/solver"
)

type solveOutput struct {
	Solution *domain.Solution     `json:"solution"`
	Score    uint64               `json:"score"`
	Applied  bool                 `json:"applied"`
	Assets   []*domain.AssetState `json:"assets,omitempty"`
	Pending  []*domain.Intent     `json:"pending,omitempty"`
}

func solveCmd() *cobra.Command {
	var (
		snap     snapshotFlags
		name     string
		apply    bool
		single   bool
		timeout  time.Duration
		maxIters int
	)
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Solve the snapshot's pending intents",
		Long: `Runs the built-in solver on the snapshot and scores the result with the
executor. With --apply the round is closed and the resulting pool and the
remaining intents are printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := snap.load()
			if err != nil {
				return err
			}
			if name == "" {
				name = "omnictl-" + uuid.NewString()[:8]
			}

			omni := solver.NewOmnipoolSolver(name)
			omni.HubAsset = o.exec.Config().HubAsset
			omni.Now = o.exec.Now
			if maxIters > 0 {
				omni.MaxIterations = maxIters
			}
			var provider solver.SolutionProvider = omni
			if single {
				provider = solver.SingleIntent(omni)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			round := o.exec.Round()
			sol, err := provider.Solve(ctx, o.store.Pending(o.exec.Now()), o.exec.Snapshot().Assets)
			if err != nil {
				return err
			}
			score, err := o.exec.Propose(name, sol, round)
			if err != nil {
				return err
			}

			res := solveOutput{Solution: sol, Score: score}
			if apply {
				result, err := o.exec.Finalize()
				if err != nil {
					return err
				}
				res.Solution = result.Solution
				res.Applied = true
				res.Assets = o.exec.Snapshot().Assets
				res.Pending = o.store.All()
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	snap.register(cmd.Flags())
	cmd.Flags().StringVar(&name, "name", "", "proposer name, random when empty")
	cmd.Flags().BoolVar(&apply, "apply", false, "close the round with the solution")
	cmd.Flags().BoolVar(&single, "single", false, "solve only when exactly one intent is pending; otherwise report no solution")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "solver time budget")
	cmd.Flags().IntVar(&maxIters, "max-iterations", 0, "bisection iteration cap")
	return cmd
}
