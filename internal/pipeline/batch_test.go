package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/capilint/internal/model"
	"github.com/nao1215/capilint/internal/source"
)

func inputsNamed(names ...string) []source.Input {
	inputs := make([]source.Input, len(names))
	for i, name := range names {
		inputs[i] = source.Input{Path: name}
	}
	return inputs
}

func TestBatchProcessorNew(t *testing.T) {
	t.Parallel()

	factory := func(source.Input) *Pipeline { return New() }

	t.Run("creates processor with defaults", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(factory)

		if bp.concurrency != DefaultConcurrency {
			t.Errorf("expected default concurrency %d, got %d", DefaultConcurrency, bp.concurrency)
		}
		if bp.fileTimeout != 0 {
			t.Errorf("expected no file timeout, got %s", bp.fileTimeout)
		}
		if bp.logger == nil {
			t.Error("expected non-nil logger")
		}
	})

	t.Run("applies options", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(factory, WithConcurrency(5), WithFileTimeout(time.Second))

		if bp.concurrency != 5 {
			t.Errorf("expected concurrency 5, got %d", bp.concurrency)
		}
		if bp.fileTimeout != time.Second {
			t.Errorf("expected timeout 1s, got %s", bp.fileTimeout)
		}
	})

	t.Run("ignores non-positive values", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(factory, WithConcurrency(0), WithFileTimeout(-time.Second))

		if bp.concurrency != DefaultConcurrency {
			t.Errorf("expected concurrency %d, got %d", DefaultConcurrency, bp.concurrency)
		}
		if bp.fileTimeout != 0 {
			t.Errorf("expected no file timeout, got %s", bp.fileTimeout)
		}
	})
}

func TestBatchProcessorProcessBatch(t *testing.T) {
	t.Parallel()

	t.Run("returns results in input order", func(t *testing.T) {
		t.Parallel()

		names := make([]string, 20)
		for i := range names {
			names[i] = fmt.Sprintf("file%02d.c", i)
		}

		factory := func(in source.Input) *Pipeline {
			p := New()
			p.AddStep(&mockStep{
				name: "sleep",
				doFunc: func(_ context.Context, r *model.FileResult) error {
					// Later inputs finish first.
					n := strings.TrimSuffix(strings.TrimPrefix(in.Path, "file"), ".c")
					var idx int
					fmt.Sscanf(n, "%d", &idx) //nolint:errcheck // Test input is well formed
					time.Sleep(time.Duration(20-idx) * time.Millisecond)
					r.Findings = []model.Finding{{File: in.Path}}
					return nil
				},
			})
			return p
		}

		bp := NewBatchProcessor(factory, WithConcurrency(20))
		results, err := bp.ProcessBatch(context.Background(), inputsNamed(names...))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(results) != len(names) {
			t.Fatalf("expected %d results, got %d", len(names), len(results))
		}
		for i, r := range results {
			if r.Path != names[i] {
				t.Errorf("result %d: got %q, expected %q", i, r.Path, names[i])
			}
			if r.State != model.StateDone {
				t.Errorf("result %d: expected state done, got %s", i, r.State)
			}
		}
	})

	t.Run("respects concurrency limit", func(t *testing.T) {
		t.Parallel()

		var running, peak atomic.Int32
		factory := func(source.Input) *Pipeline {
			p := New()
			p.AddStep(&mockStep{
				name: "track",
				doFunc: func(_ context.Context, _ *model.FileResult) error {
					n := running.Add(1)
					for {
						old := peak.Load()
						if n <= old || peak.CompareAndSwap(old, n) {
							break
						}
					}
					time.Sleep(5 * time.Millisecond)
					running.Add(-1)
					return nil
				},
			})
			return p
		}

		bp := NewBatchProcessor(factory, WithConcurrency(2))
		_, err := bp.ProcessBatch(context.Background(), inputsNamed("a.c", "b.c", "c.c", "d.c", "e.c", "f.c"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if peak.Load() > 2 {
			t.Errorf("expected at most 2 concurrent scans, saw %d", peak.Load())
		}
	})

	t.Run("file failure does not stop the batch", func(t *testing.T) {
		t.Parallel()

		factory := func(in source.Input) *Pipeline {
			p := New()
			p.AddStep(&mockStep{
				name: "read",
				doFunc: func(_ context.Context, _ *model.FileResult) error {
					if in.Path == "bad.c" {
						return errors.New("permission denied")
					}
					return nil
				},
			})
			return p
		}

		bp := NewBatchProcessor(factory)
		results, err := bp.ProcessBatch(context.Background(), inputsNamed("good.c", "bad.c", "other.c"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if results[0].Failed() || results[2].Failed() {
			t.Error("expected good files not to fail")
		}
		if !results[1].Failed() {
			t.Error("expected bad.c to fail")
		}
	})

	t.Run("times out slow files", func(t *testing.T) {
		t.Parallel()

		factory := func(in source.Input) *Pipeline {
			p := New()
			p.AddStep(&mockStep{
				name: "check",
				doFunc: func(ctx context.Context, r *model.FileResult) error {
					r.Findings = []model.Finding{{File: in.Path}}
					if in.Path != "slow.c" {
						return nil
					}
					<-ctx.Done()
					return ctx.Err()
				},
			})
			return p
		}

		bp := NewBatchProcessor(factory, WithFileTimeout(10*time.Millisecond))
		results, err := bp.ProcessBatch(context.Background(), inputsNamed("fast.c", "slow.c"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(results[0].Findings) != 1 {
			t.Errorf("expected fast.c findings to be kept, got %d", len(results[0].Findings))
		}
		slow := results[1]
		if !slow.TimedOut {
			t.Fatal("expected slow.c to time out")
		}
		if !errors.Is(slow.Err, ErrTimedOut) {
			t.Errorf("expected ErrTimedOut, got %v", slow.Err)
		}
		if len(slow.Findings) != 0 {
			t.Errorf("expected findings to be discarded, got %d", len(slow.Findings))
		}
	})

	t.Run("cancelled context still yields a result per input", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		bp := NewBatchProcessor(func(source.Input) *Pipeline { return New() })
		results, err := bp.ProcessBatch(ctx, inputsNamed("a.c", "b.c"))

		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		for i, r := range results {
			if r == nil {
				t.Fatalf("result %d is nil", i)
			}
			if !r.Failed() {
				t.Errorf("result %d: expected cancellation to be recorded", i)
			}
		}
	})
}

func TestBatchProcessorProcessBatchWithCallback(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	seen := make([]bool, 3)

	bp := NewBatchProcessor(func(source.Input) *Pipeline { return New() })
	err := bp.ProcessBatchWithCallback(context.Background(), inputsNamed("a.c", "b.c", "c.c"),
		func(_ *model.FileResult, index int) {
			calls.Add(1)
			seen[index] = true
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 callbacks, got %d", calls.Load())
	}
	for i, ok := range seen {
		if !ok {
			t.Errorf("index %d never reported", i)
		}
	}
}
