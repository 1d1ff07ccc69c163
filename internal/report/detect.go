package report

import (
	"os"

	"golang.org/x/term"
)

// ColorEnabled reports whether output written to f should be styled.
//
// Returns false if:
//   - NO_COLOR is set (accessibility/automation indicator)
//   - CI is set (common CI/CD convention)
//   - f is not a terminal (redirected to a file or pipe)
func ColorEnabled(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("CI") != "" {
		return false
	}
	return f != nil && term.IsTerminal(int(f.Fd()))
}
