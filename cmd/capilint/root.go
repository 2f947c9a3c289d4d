package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Process exit codes.
const (
	exitOK       = 0
	exitFindings = 1
	exitFatal    = 2
)

// exitError carries a process exit code through cobra's error return.
// A nil err means the code speaks for itself and nothing is printed.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// errFindings ends a run that completed but reported findings.
var errFindings = &exitError{code: exitFindings}

// exitCode maps an error returned by a command to the process exit code.
// Errors that are not *exitError are fatal.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitFatal
}

// NewRootCmd creates the root command for capilint.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capilint",
		Short: "Find Python C-API macros used as l-values",
		Long: `capilint scans C and Cython sources for Python C-API macros that are
used as assignment targets, increment operands or address-of operands.

Code like "Py_TYPE(obj) = type;" compiles only while Py_TYPE is a macro.
capilint reports each such use and names the setter function to call instead.

Exit status is 0 when nothing is found, 1 when there are findings and 2 on
a fatal error.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging and list skipped files")
	cmd.PersistentFlags().BoolP("quiet", "q", false, "Only log errors and omit the summary")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")
	cmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .capilint.yaml in current or home directory)")

	cmd.AddCommand(NewCheckCmd())
	cmd.AddCommand(NewRulesCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command and exits with its status.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line args and returns the exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	code := exitCode(err)
	if code == exitFatal {
		fmt.Fprintln(stderr, "capilint:", err)
	}
	return code
}

// boolFlag reads a boolean flag from the command or, failing that, from
// the root's persistent flags.
func boolFlag(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetBool(name)
		if err != nil {
			return false
		}
	}
	return v
}

// stringFlag is the string counterpart of boolFlag.
func stringFlag(cmd *cobra.Command, name string) string {
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetString(name)
		if err != nil {
			return ""
		}
	}
	return v
}
