package report

import (
	"os"

	"github.com/mattn/go-isatty"
)

// ColorEnabled reports whether diagnostics written to f should be colored.
// Color is used only on terminals and never when NO_COLOR is set or
// noColor is true.
func ColorEnabled(f *os.File, noColor bool) bool {
	if noColor || f == nil {
		return false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
