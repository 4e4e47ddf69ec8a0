// Package solver turns pending intents and an asset snapshot into a
// Solution: intents on opposite sides of a pair are netted against each
// other, and whatever remains is routed through the omnipool.
package solver

import (
	"context"
	"errors"

	"github.com/hxuan190/omnipool-engine/internal/domain"
)

// ErrNoSolution means the provider found nothing worth submitting this
// round. It is not a failure; callers skip the round.
var ErrNoSolution = errors.New("no solution")

// SolutionProvider computes a solution from a read-only snapshot. It must not
// mutate intents or assets.
type SolutionProvider interface {
	Solve(ctx context.Context, intents []*domain.Intent, assets []*domain.AssetState) (*domain.Solution, error)
}

// ProviderFunc adapts a function to SolutionProvider.
type ProviderFunc func(ctx context.Context, intents []*domain.Intent, assets []*domain.AssetState) (*domain.Solution, error)

func (f ProviderFunc) Solve(ctx context.Context, intents []*domain.Intent, assets []*domain.AssetState) (*domain.Solution, error) {
	return f(ctx, intents, assets)
}

// SingleIntent restricts a provider to batches of exactly one intent and
// reports ErrNoSolution for anything else.
func SingleIntent(p SolutionProvider) SolutionProvider {
	return ProviderFunc(func(ctx context.Context, intents []*domain.Intent, assets []*domain.AssetState) (*domain.Solution, error) {
		if len(intents) != 1 {
			return nil, ErrNoSolution
		}
		return p.Solve(ctx, intents, assets)
	})
}
