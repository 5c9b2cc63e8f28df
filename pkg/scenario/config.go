// Package scenario reads SFINCS scenario files (sfincs.inp) and locates the
// directory holding the static files a scenario shares with its siblings.
package scenario

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"sfincsrun/pkg/models"
)

// DefaultFileName is the conventional scenario file name.
const DefaultFileName = "sfincs.inp"

// Entry is a single key/value line of a scenario file.
type Entry struct {
	Key   string
	Value string
}

// IsFile reports whether the entry names a path to another file.
func (e Entry) IsFile() bool {
	return strings.Contains(e.Key, "file")
}

// Config is the parsed, read-only content of a scenario file in file order.
type Config struct {
	entries []Entry
	index   map[string]int
}

// Load parses the scenario file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: scenario file %s", models.ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to open scenario file %s: %w", path, err)
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse reads "key = value" lines. Blank lines and lines starting with '#'
// or '!' are skipped. A repeated key keeps its first position and its last value.
func Parse(r io.Reader) (*Config, error) {
	cfg := &Config{index: make(map[string]int)}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: line %d: expected \"key = value\", got %q", models.ErrParse, lineNo, line)
		}
		cfg.set(key, strings.TrimSpace(value))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrParse, err)
	}
	return cfg, nil
}

func (c *Config) set(key, value string) {
	if i, ok := c.index[key]; ok {
		c.entries[i].Value = value
		return
	}
	c.index[key] = len(c.entries)
	c.entries = append(c.entries, Entry{Key: key, Value: value})
}

// Get returns the value stored for key.
func (c *Config) Get(key string) (string, bool) {
	i, ok := c.index[key]
	if !ok {
		return "", false
	}
	return c.entries[i].Value, true
}

// Len returns the number of distinct keys.
func (c *Config) Len() int {
	return len(c.entries)
}

// Entries returns a copy of all entries in file order.
func (c *Config) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// FileEntries returns the entries whose key contains "file", in file order.
func (c *Config) FileEntries() []Entry {
	var out []Entry
	for _, e := range c.entries {
		if e.IsFile() {
			out = append(out, e)
		}
	}
	return out
}
