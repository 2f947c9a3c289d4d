package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "capilint" {
			t.Errorf("expected use 'capilint', got %q", cmd.Use)
		}
	})

	t.Run("has version", func(t *testing.T) {
		t.Parallel()
		if cmd.Version == "" {
			t.Error("expected non-empty version")
		}
	})

	t.Run("has persistent flags", func(t *testing.T) {
		t.Parallel()
		for name, shorthand := range map[string]string{
			"verbose":  "v",
			"quiet":    "q",
			"log-json": "",
			"no-color": "",
			"config":   "c",
		} {
			flag := cmd.PersistentFlags().Lookup(name)
			if flag == nil {
				t.Errorf("expected %s flag", name)
				continue
			}
			if flag.Shorthand != shorthand {
				t.Errorf("%s: expected shorthand %q, got %q", name, shorthand, flag.Shorthand)
			}
		}
	})

	t.Run("has subcommands", func(t *testing.T) {
		t.Parallel()
		want := map[string]bool{"check": false, "rules": false, "compare": false, "init": false, "version": false}
		for _, sub := range cmd.Commands() {
			if _, ok := want[sub.Name()]; ok {
				want[sub.Name()] = true
			}
		}
		for name, found := range want {
			if !found {
				t.Errorf("expected %s subcommand", name)
			}
		}
	})

	t.Run("silences usage and errors", func(t *testing.T) {
		t.Parallel()
		if !cmd.SilenceUsage {
			t.Error("expected SilenceUsage to be true")
		}
		if !cmd.SilenceErrors {
			t.Error("expected SilenceErrors to be true")
		}
	})
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: exitOK},
		{name: "findings", err: errFindings, want: exitFindings},
		{name: "wrapped findings", err: fmt.Errorf("run: %w", errFindings), want: exitFindings},
		{name: "plain error", err: errors.New("boom"), want: exitFatal},
		{name: "explicit fatal", err: &exitError{code: exitFatal, err: errors.New("boom")}, want: exitFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExitErrorMessage(t *testing.T) {
	t.Parallel()

	if got := errFindings.Error(); got != "exit status 1" {
		t.Errorf("Error() = %q, want %q", got, "exit status 1")
	}
	inner := errors.New("bad config")
	ee := &exitError{code: exitFatal, err: inner}
	if ee.Error() != "bad config" {
		t.Errorf("Error() = %q, want %q", ee.Error(), "bad config")
	}
	if !errors.Is(ee, inner) {
		t.Error("expected exitError to unwrap to its cause")
	}
}

func TestRunUnknownCommand(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"frobnicate"}, &stdout, &stderr)
	if code != exitFatal {
		t.Errorf("exit code = %d, want %d", code, exitFatal)
	}
	if !bytes.Contains(stderr.Bytes(), []byte("capilint:")) {
		t.Errorf("expected error message on stderr, got %q", stderr.String())
	}
}
