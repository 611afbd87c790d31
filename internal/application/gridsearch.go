package application

import (
	"context"
	"errors"
	"runtime"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/MKY508/momentum-lens-sub000/internal/backtest"
	"github.com/MKY508/momentum-lens-sub000/internal/data"
)

// GridPoint is one parameter combination to backtest. Name must be unique
// within a grid; it keys the result back to the combination.
type GridPoint struct {
	Name     string
	Strategy backtest.StrategyConfig
}

// GridResult is the immutable outcome of one grid point. Exactly one of
// Results or Err is set.
type GridResult struct {
	Name    string
	Results *backtest.Results
	Err     error
}

// GridSearch fans a set of parameter combinations across a worker pool.
// Each point runs a full, independent backtest; workers share nothing but
// the read-only base config and the bar source.
type GridSearch struct {
	base    backtest.RunnerConfig
	source  data.BarSource
	workers int
}

// NewGridSearch creates a grid search over the base run configuration.
// workers <= 0 defaults to the CPU count.
func NewGridSearch(base backtest.RunnerConfig, source data.BarSource, workers int) *GridSearch {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &GridSearch{base: base, source: source, workers: workers}
}

// Run executes every grid point and returns results ordered by name.
// Cancellation is honored between units: a worker finishes its in-flight
// backtest, then drains no further jobs. Points that were never started
// report ctx.Err().
func (g *GridSearch) Run(ctx context.Context, points []GridPoint) ([]GridResult, error) {
	if len(points) == 0 {
		return nil, errors.New("grid search: no parameter combinations")
	}
	seen := make(map[string]bool, len(points))
	for _, p := range points {
		if p.Name == "" {
			return nil, errors.New("grid search: combination with empty name")
		}
		if seen[p.Name] {
			return nil, errors.New("grid search: duplicate combination name " + p.Name)
		}
		seen[p.Name] = true
	}

	jobs := make(chan GridPoint)
	out := make(chan GridResult, len(points))

	var wg sync.WaitGroup
	wg.Add(g.workers)
	for i := 0; i < g.workers; i++ {
		go func() {
			defer wg.Done()
			for point := range jobs {
				out <- g.runPoint(ctx, point)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, point := range points {
			select {
			case jobs <- point:
			case <-ctx.Done():
				out <- GridResult{Name: point.Name, Err: ctx.Err()}
			}
		}
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	results := make([]GridResult, 0, len(points))
	for res := range out {
		results = append(results, res)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })

	log.Info().
		Int("combinations", len(points)).
		Int("workers", g.workers).
		Msg("Grid search complete")
	return results, ctx.Err()
}

func (g *GridSearch) runPoint(ctx context.Context, point GridPoint) GridResult {
	if err := ctx.Err(); err != nil {
		return GridResult{Name: point.Name, Err: err}
	}
	cfg := g.base
	cfg.Strategy = point.Strategy
	cfg.OutputDir = "" // grid runs never write artifacts

	res, err := backtest.NewRunner(cfg, g.source).Run(ctx)
	if err != nil {
		log.Warn().Str("combination", point.Name).Err(err).Msg("Grid point failed")
		return GridResult{Name: point.Name, Err: err}
	}
	return GridResult{Name: point.Name, Results: res}
}
