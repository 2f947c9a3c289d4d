package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nao1215/capilint/internal/model"
)

// ErrSkipped is returned by a step that decided the file should not be
// scanned. The pipeline stops without recording an error; the step is
// expected to have called FileResult.Skip.
var ErrSkipped = errors.New("file skipped")

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, each receiving the result accumulated by
// the previous ones.
type Step interface {
	// Do executes the step. Failures that only affect part of the file
	// (lex errors) are recorded in the result and nil is returned.
	Do(ctx context.Context, result *model.FileResult) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
type Pipeline struct {
	steps []Step

	logger *slog.Logger

	// continueOnError keeps running steps after one fails.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to continue execution
// even when a step fails. Failed steps are logged and their errors are
// recorded in the result.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps:           make([]Step, 0),
		continueOnError: false,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps in sequence against result.
//
// Context is checked before each step; steps that loop over tokens check
// it themselves. When the context deadline passes, the findings gathered
// so far are discarded and the result is marked TimedOut.
//
// Whatever happens, result ends in StateDone with its transient source
// buffer released. The returned error is the first step failure, or nil
// when continueOnError is set or the file was skipped.
func (p *Pipeline) Execute(ctx context.Context, result *model.FileResult) error {
	defer func() {
		result.State = model.StateDone
		result.Source = nil
	}()

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"file", result.Display,
				"reason", err,
			)
			p.abandon(result, err)
			return err
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"file", result.Display,
		)

		err := step.Do(ctx, result)
		if err == nil {
			continue
		}
		if errors.Is(err, ErrSkipped) {
			p.logger.Debug("file skipped",
				"file", result.Display,
				"reason", result.SkipReason,
			)
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			p.abandon(result, err)
			return err
		}

		p.logger.Error("step failed",
			"step", step.Name(),
			"file", result.Display,
			"error", err,
		)
		result.SetError(err)
		if !p.continueOnError {
			return err
		}
	}

	return nil
}

// abandon records a cancelled or timed-out scan. Findings are only ever
// appended, but a partial list is not a trustworthy answer for the file.
func (p *Pipeline) abandon(result *model.FileResult, err error) {
	result.Findings = nil
	result.TimedOut = errors.Is(err, context.DeadlineExceeded)
	result.SetError(err)
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
