package scenario

import (
	"fmt"
	"path/filepath"
	"strings"

	"sfincsrun/pkg/models"
)

const parentMarker = "../"

// MarkerDepth counts the "go up one level" markers in a file reference.
// Backslash separators count the same as forward slashes.
func MarkerDepth(value string) int {
	return strings.Count(strings.ReplaceAll(value, `\`, "/"), parentMarker)
}

// MaxMarkerDepth returns the largest marker count over all file-valued entries,
// or 0 when no entry climbs out of the scenario directory.
func (c *Config) MaxMarkerDepth() int {
	n := 0
	for _, e := range c.FileEntries() {
		if d := MarkerDepth(e.Value); d > n {
			n = d
		}
	}
	return n
}

// BaseRoot walks MaxMarkerDepth levels up from scenarioDir, which must be absolute.
func (c *Config) BaseRoot(scenarioDir string) (string, error) {
	return ancestor(scenarioDir, c.MaxMarkerDepth())
}

// ResolveBaseRoot loads the scenario at inpPath and returns the directory that
// holds its shared static files.
func ResolveBaseRoot(inpPath string) (string, error) {
	abs, err := filepath.Abs(inpPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", inpPath, err)
	}
	cfg, err := Load(abs)
	if err != nil {
		return "", err
	}
	return cfg.BaseRoot(filepath.Dir(abs))
}

func ancestor(dir string, levels int) (string, error) {
	start := filepath.Clean(dir)
	dir = start
	for i := 0; i < levels; i++ {
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w: file references climb %d levels above %s, past the filesystem root", models.ErrParse, levels, start)
		}
		dir = parent
	}
	return dir, nil
}
