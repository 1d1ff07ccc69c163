package report

import (
	"os"
	"testing"
)

func TestColorEnabled_NO_COLOR(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	t.Setenv("CI", "")

	if ColorEnabled(os.Stdout) {
		t.Error("ColorEnabled() = true with NO_COLOR set, want false")
	}
}

func TestColorEnabled_CI(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	t.Setenv("CI", "true")

	if ColorEnabled(os.Stdout) {
		t.Error("ColorEnabled() = true with CI set, want false")
	}
}

func TestColorEnabled_NotATerminal(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	t.Setenv("CI", "")

	f, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if ColorEnabled(f) {
		t.Error("ColorEnabled() = true for a regular file, want false")
	}
}

func TestColorEnabled_NilFile(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	t.Setenv("CI", "")

	if ColorEnabled(nil) {
		t.Error("ColorEnabled(nil) = true, want false")
	}
}
