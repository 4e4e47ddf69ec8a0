package solver

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hxuan190/omnipool-engine/internal/domain"
)

type bestOf struct {
	providers []SolutionProvider
}

// BestOf runs providers concurrently on the same snapshot and keeps the
// highest-scoring solution. On equal scores the provider listed first wins.
// A provider that fails only loses its entry; the composition reports
// ErrNoSolution when no provider produced anything.
func BestOf(providers ...SolutionProvider) SolutionProvider {
	return &bestOf{providers: providers}
}

func (b *bestOf) Solve(ctx context.Context, intents []*domain.Intent, assets []*domain.AssetState) (*domain.Solution, error) {
	results := make([]*domain.Solution, len(b.providers))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range b.providers {
		g.Go(func() error {
			sol, err := p.Solve(gctx, cloneIntents(intents), cloneAssets(assets))
			switch {
			case err == nil:
				results[i] = sol
			case errors.Is(err, ErrNoSolution):
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return err
			default:
				log.Warn().Err(err).Int("provider", i).Msg("[BestOf] provider failed")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var best *domain.Solution
	for _, sol := range results {
		if sol == nil || sol.IsEmpty() {
			continue
		}
		if best == nil || sol.Score > best.Score {
			best = sol
		}
	}
	if best == nil {
		return nil, ErrNoSolution
	}
	return best, nil
}

func cloneIntents(in []*domain.Intent) []*domain.Intent {
	out := make([]*domain.Intent, len(in))
	for i, x := range in {
		out[i] = x.Clone()
	}
	return out
}

func cloneAssets(in []*domain.AssetState) []*domain.AssetState {
	out := make([]*domain.AssetState, len(in))
	for i, x := range in {
		out[i] = x.Clone()
	}
	return out
}
