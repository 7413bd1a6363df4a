package planner

import (
	"context"
	"log/slog"
	"sync"

	"github.com/star/mosaicplanner/internal/mosaic"
)

// outlineJob is a unit of work for the outline pool.
type outlineJob struct {
	index int
	panel mosaic.Panel
}

// outlineResult is the outline of a single panel.
type outlineResult struct {
	index  int
	points []mosaic.Point
}

// OutlinePool manages a fixed number of goroutines generating panel outlines
// in parallel.
type OutlinePool struct {
	workers int
	logger  *slog.Logger
}

// NewOutlinePool creates a pool with the given number of workers. Values
// below one are treated as one.
func NewOutlinePool(workers int, logger *slog.Logger) *OutlinePool {
	if workers < 1 {
		workers = 1
	}
	return &OutlinePool{
		workers: workers,
		logger:  logger,
	}
}

// Workers returns the configured worker count.
func (wp *OutlinePool) Workers() int {
	return wp.workers
}

// Generate computes the outline of every panel. The result is indexed like
// panels. project is called from several goroutines at once and must be safe
// for concurrent use. If ctx is cancelled before all outlines are done, the
// partial result is discarded and ctx.Err() returned.
func (wp *OutlinePool) Generate(ctx context.Context, panels []mosaic.Panel, fov mosaic.FOV, project mosaic.ProjectFunc) ([][]mosaic.Point, error) {
	if len(panels) == 0 {
		return nil, ctx.Err()
	}

	workers := wp.workers
	if workers > len(panels) {
		workers = len(panels)
	}

	jobs := make(chan outlineJob, workers*2)
	results := make(chan outlineResult, workers*2)

	// Start workers.
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				result := outlineResult{
					index:  job.index,
					points: mosaic.ComputeOutline(job.panel, fov, project),
				}
				select {
				case results <- result:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	// Feed jobs in a goroutine.
	go func() {
		defer close(jobs)
		for i, p := range panels {
			select {
			case jobs <- outlineJob{index: i, panel: p}:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Close results when all workers are done.
	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([][]mosaic.Point, len(panels))
	var done int
	for result := range results {
		out[result.index] = result.points
		done++
	}

	if err := ctx.Err(); err != nil {
		wp.logger.Debug("outline generation cancelled",
			"completed", done,
			"total", len(panels),
		)
		return nil, err
	}
	return out, nil
}
