package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nao1215/capilint/internal/model"
)

// mockStep is a test helper that implements the Step interface.
type mockStep struct {
	name      string
	doFunc    func(ctx context.Context, result *model.FileResult) error
	callCount int
}

// Do implements Step.Do.
func (m *mockStep) Do(ctx context.Context, result *model.FileResult) error {
	m.callCount++
	if m.doFunc != nil {
		return m.doFunc(ctx, result)
	}
	return nil
}

// Name implements Step.Name.
func (m *mockStep) Name() string {
	return m.name
}

func TestPipelineNew(t *testing.T) {
	t.Parallel()

	t.Run("creates pipeline with default settings", func(t *testing.T) {
		t.Parallel()

		p := New()

		if p == nil {
			t.Fatal("expected non-nil pipeline")
		}
		if p.StepCount() != 0 {
			t.Errorf("expected 0 steps, got %d", p.StepCount())
		}
		if p.logger == nil {
			t.Error("expected default logger")
		}
	})

	t.Run("applies WithContinueOnError option", func(t *testing.T) {
		t.Parallel()

		p := New(WithContinueOnError(true))

		if !p.continueOnError {
			t.Error("expected continueOnError to be true")
		}
	})
}

func TestPipelineAddStep(t *testing.T) {
	t.Parallel()

	t.Run("adds multiple steps with AddSteps", func(t *testing.T) {
		t.Parallel()

		p := New()
		p.AddSteps(&mockStep{name: "step-1"}, &mockStep{name: "step-2"}, &mockStep{name: "step-3"})

		if p.StepCount() != 3 {
			t.Errorf("expected 3 steps, got %d", p.StepCount())
		}
	})

	t.Run("maintains step order", func(t *testing.T) {
		t.Parallel()

		p := New()
		p.AddStep(&mockStep{name: "first"})
		p.AddStep(&mockStep{name: "second"})
		p.AddStep(&mockStep{name: "third"})

		names := p.StepNames()

		expected := []string{"first", "second", "third"}
		for i, name := range names {
			if name != expected[i] {
				t.Errorf("step %d: got %q, expected %q", i, name, expected[i])
			}
		}
	})
}

func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("executes all steps in order", func(t *testing.T) {
		t.Parallel()

		executionOrder := make([]string, 0)
		record := func(name string) func(context.Context, *model.FileResult) error {
			return func(_ context.Context, _ *model.FileResult) error {
				executionOrder = append(executionOrder, name)
				return nil
			}
		}

		p := New()
		p.AddSteps(
			&mockStep{name: "step-1", doFunc: record("step-1")},
			&mockStep{name: "step-2", doFunc: record("step-2")},
		)

		result := model.NewFileResult("a.c", "")
		if err := p.Execute(context.Background(), result); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(executionOrder) != 2 || executionOrder[0] != "step-1" || executionOrder[1] != "step-2" {
			t.Errorf("unexpected execution order: %v", executionOrder)
		}
		if result.State != model.StateDone {
			t.Errorf("expected state done, got %s", result.State)
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		stepErr := errors.New("read failed")
		first := &mockStep{
			name: "failing",
			doFunc: func(_ context.Context, _ *model.FileResult) error {
				return stepErr
			},
		}
		second := &mockStep{name: "never"}

		p := New()
		p.AddSteps(first, second)

		result := model.NewFileResult("a.c", "")
		err := p.Execute(context.Background(), result)

		if !errors.Is(err, stepErr) {
			t.Errorf("expected step error, got %v", err)
		}
		if second.callCount != 0 {
			t.Error("expected second step not to run")
		}
		if !result.Failed() {
			t.Error("expected result to be marked failed")
		}
		if result.State != model.StateDone {
			t.Errorf("expected state done, got %s", result.State)
		}
	})

	t.Run("continues on error when configured", func(t *testing.T) {
		t.Parallel()

		second := &mockStep{name: "second"}
		p := New(WithContinueOnError(true))
		p.AddSteps(
			&mockStep{
				name: "failing",
				doFunc: func(_ context.Context, _ *model.FileResult) error {
					return errors.New("boom")
				},
			},
			second,
		)

		result := model.NewFileResult("a.c", "")
		if err := p.Execute(context.Background(), result); err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
		if second.callCount != 1 {
			t.Errorf("expected second step to run once, ran %d times", second.callCount)
		}
		if result.ErrorMessage != "boom" {
			t.Errorf("expected recorded error, got %q", result.ErrorMessage)
		}
	})

	t.Run("skip stops without error", func(t *testing.T) {
		t.Parallel()

		second := &mockStep{name: "second"}
		p := New()
		p.AddSteps(
			&mockStep{
				name: "filter",
				doFunc: func(_ context.Context, r *model.FileResult) error {
					r.Skip("binary file")
					return ErrSkipped
				},
			},
			second,
		)

		result := model.NewFileResult("a.o", "")
		if err := p.Execute(context.Background(), result); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if second.callCount != 0 {
			t.Error("expected second step not to run")
		}
		if !result.Skipped || result.Failed() {
			t.Errorf("expected skipped and not failed, got %+v", result)
		}
	})

	t.Run("cancelled context stops before first step", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		step := &mockStep{name: "step"}
		p := New()
		p.AddStep(step)

		result := model.NewFileResult("a.c", "")
		err := p.Execute(ctx, result)

		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if step.callCount != 0 {
			t.Error("expected step not to run")
		}
		if result.TimedOut {
			t.Error("cancellation is not a timeout")
		}
	})

	t.Run("deadline discards partial findings", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
		defer cancel()

		p := New()
		p.AddStep(&mockStep{
			name: "check",
			doFunc: func(ctx context.Context, r *model.FileResult) error {
				r.Findings = append(r.Findings, model.Finding{Symbol: "Py_TYPE"})
				<-ctx.Done()
				return ctx.Err()
			},
		})

		result := model.NewFileResult("slow.c", "")
		err := p.Execute(ctx, result)

		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
		if !result.TimedOut {
			t.Error("expected TimedOut")
		}
		if len(result.Findings) != 0 {
			t.Errorf("expected partial findings to be discarded, got %d", len(result.Findings))
		}
	})

	t.Run("releases source buffer", func(t *testing.T) {
		t.Parallel()

		p := New()
		p.AddStep(&mockStep{
			name: "read",
			doFunc: func(_ context.Context, r *model.FileResult) error {
				r.Source = []byte("int x;")
				return nil
			},
		})

		result := model.NewFileResult("a.c", "")
		if err := p.Execute(context.Background(), result); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Source != nil {
			t.Error("expected source to be released")
		}
	})
}
