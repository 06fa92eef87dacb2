package embedding

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

const defaultWorkers = 4

// EmbedAll embeds texts with at most workers concurrent gateway calls,
// preserving input order in the result. The first failure cancels the
// remaining calls and aborts the whole batch.
func EmbedAll(ctx context.Context, embedder Embedder, texts []string, workers int) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if workers <= 0 {
		workers = defaultWorkers
	}

	vectors := make([][]float32, len(texts))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, text := range texts {
		g.Go(func() error {
			vec, err := embedder.EmbedQuery(ctx, text)
			if err != nil {
				return fmt.Errorf("embed text %d: %w", i, err)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}
