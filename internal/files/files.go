// Package files locates pipeline inputs and derives output paths.
package files

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vvka-141/comprasetl/pkg/comprasetl"
)

// Discover returns the regular files in dir whose extension matches ext
// (case-insensitive), sorted by name. Subdirectories are not traversed.
// A missing or unreadable directory is a setup error.
func Discover(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("input directory %s: %w: %w", dir, comprasetl.ErrSetup, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ext) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// RequireInputs is Discover that also fails with ErrNoInput when nothing
// matches.
func RequireInputs(dir, ext string) ([]string, error) {
	paths, err := Discover(dir, ext)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no %s files in %s: %w", ext, dir, comprasetl.ErrNoInput)
	}
	return paths, nil
}

// EnsureDir creates dir and its parents if needed.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w: %w", dir, comprasetl.ErrSetup, err)
	}
	return nil
}

// OutputPath maps input to a file in outDir with the same base name, the
// given suffix appended and the extension replaced by ext.
//
//	OutputPath("data/raw/compras_sp.json", "data/processed", "_normalized", ".json")
//	  == "data/processed/compras_sp_normalized.json"
func OutputPath(input, outDir, suffix, ext string) string {
	base := filepath.Base(input)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outDir, base+suffix+ext)
}

// IsNormalized reports whether path names a transform output.
func IsNormalized(path string) bool {
	base := filepath.Base(path)
	return strings.HasSuffix(strings.TrimSuffix(base, filepath.Ext(base)), comprasetl.NormalizedSuffix)
}
