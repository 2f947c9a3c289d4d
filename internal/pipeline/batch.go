package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/capilint/internal/model"
	"github.com/nao1215/capilint/internal/source"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of files scanned at once when no
// concurrency is configured.
const DefaultConcurrency = 10

// ErrTimedOut is recorded on files whose scan exceeded the per-file budget.
var ErrTimedOut = errors.New("timed out")

// BatchProcessor scans many inputs concurrently. Each input gets a fresh
// pipeline from the factory, so no state is shared between files other
// than the read-only rule set.
type BatchProcessor struct {
	// pipelineFactory creates the pipeline for one input.
	pipelineFactory func(source.Input) *Pipeline

	// concurrency is the maximum number of files scanned at once.
	concurrency int

	// fileTimeout bounds the wall-clock time spent on one file.
	// Zero means no limit.
	fileTimeout time.Duration

	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent scans.
// Default is 10 if not specified.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithFileTimeout bounds the time spent scanning one file. A file that
// runs out of time is reported with an error and no findings.
func WithFileTimeout(d time.Duration) BatchOption {
	return func(b *BatchProcessor) {
		if d > 0 {
			b.fileTimeout = d
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(pipelineFactory func(source.Input) *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     DefaultConcurrency,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch scans inputs concurrently and returns one result per input,
// in input order. Failures of individual files are recorded in their
// results. The error is non-nil only when ctx was cancelled; results for
// files that never started then carry the cancellation error.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, inputs []source.Input) ([]*model.FileResult, error) {
	results := make([]*model.FileResult, len(inputs))
	err := bp.ProcessBatchWithCallback(ctx, inputs, func(result *model.FileResult, index int) {
		results[index] = result
	})
	return results, err
}

// ProcessBatchWithCallback scans inputs and calls callback for each
// finished file with its index in inputs. The callback runs on the worker
// goroutine, so it must be safe for concurrent use unless it only writes
// to its own index.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	inputs []source.Input,
	callback func(result *model.FileResult, index int),
) error {
	bp.logger.Debug("starting batch processing",
		"total_files", len(inputs),
		"concurrency", bp.concurrency,
		"file_timeout", bp.fileTimeout,
	)

	startTime := time.Now()

	g := new(errgroup.Group)
	g.SetLimit(bp.concurrency)

	for i, input := range inputs {
		g.Go(func() error {
			result := model.NewFileResult(input.Path, input.Name())

			if err := ctx.Err(); err != nil {
				result.SetError(err)
				result.State = model.StateDone
				callback(result, i)
				return err
			}

			err := bp.scan(ctx, input, result)
			callback(result, i)

			if err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
			return nil
		})
	}

	err := g.Wait()

	bp.logger.Debug("batch processing complete",
		"total_files", len(inputs),
		"elapsed", time.Since(startTime),
	)

	return err
}

// scan runs the pipeline for a single input under the per-file budget.
func (bp *BatchProcessor) scan(ctx context.Context, input source.Input, result *model.FileResult) error {
	if bp.fileTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, bp.fileTimeout)
		defer cancel()
	}

	err := bp.pipelineFactory(input).Execute(ctx, result)
	if result.TimedOut {
		result.SetError(fmt.Errorf("%w after %s", ErrTimedOut, bp.fileTimeout))
		bp.logger.Warn("file scan timed out",
			"file", result.Display,
			"budget", bp.fileTimeout,
		)
	}
	return err
}
