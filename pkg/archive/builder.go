// Package archive packages a scenario and the shared static files it references
// into a zip archive rooted at the scenario's base root.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"sfincsrun/pkg/logger"
	"sfincsrun/pkg/metrics"
	"sfincsrun/pkg/models"
	tracing "sfincsrun/pkg/observability"
	"sfincsrun/pkg/scenario"
)

const (
	DefaultName = "sfincs.zip"
	Extension   = ".zip"
)

// Entry pairs a file on disk with its name inside the archive.
type Entry struct {
	Source string // absolute path
	Name   string // slash separated, relative to the base root
}

// Skipped is a referenced file that was left out of the archive.
type Skipped struct {
	Key    string
	Value  string
	Reason string // "missing", "outside_base_root" or "not_regular"
}

// Manifest lists what goes into an archive, in write order.
type Manifest struct {
	BaseRoot string
	Entries  []Entry
	Skipped  []Skipped
}

// Builder creates scenario archives.
type Builder struct {
	log *zap.Logger
}

func NewBuilder(log *zap.Logger) *Builder {
	if log == nil {
		log = logger.Get()
	}
	return &Builder{log: log}
}

// DestinationPath applies the archive naming rules: an empty dest means
// DefaultName, any other suffix is replaced by Extension, and relative paths
// are taken relative to the scenario directory.
func DestinationPath(inpPath, dest string) string {
	if dest == "" {
		dest = DefaultName
	}
	if ext := filepath.Ext(dest); ext != Extension {
		dest = strings.TrimSuffix(dest, ext) + Extension
	}
	if !filepath.IsAbs(dest) {
		dest = filepath.Join(filepath.Dir(inpPath), dest)
	}
	return filepath.Clean(dest)
}

// Manifest collects the scenario file and every existing file it references.
// Missing references are logged and skipped, never fatal.
func (b *Builder) Manifest(inpPath string) (*Manifest, error) {
	inp, err := filepath.Abs(inpPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", inpPath, err)
	}
	cfg, err := scenario.Load(inp)
	if err != nil {
		return nil, err
	}
	inpDir := filepath.Dir(inp)
	base, err := cfg.BaseRoot(inpDir)
	if err != nil {
		return nil, err
	}

	m := &Manifest{BaseRoot: base}
	seen := map[string]bool{}
	add := func(src string) bool {
		name, ok := relativeName(base, src)
		if !ok {
			return false
		}
		if !seen[src] {
			seen[src] = true
			m.Entries = append(m.Entries, Entry{Source: src, Name: name})
		}
		return true
	}
	add(inp)

	for _, e := range cfg.FileEntries() {
		p := filepath.FromSlash(strings.ReplaceAll(e.Value, `\`, "/"))
		if !filepath.IsAbs(p) {
			p = filepath.Join(inpDir, p)
		}
		p = filepath.Clean(p)

		info, err := os.Stat(p)
		switch {
		case err != nil:
			b.skip(m, e, "missing")
			continue
		case !info.Mode().IsRegular():
			b.skip(m, e, "not_regular")
			continue
		}
		if !add(p) {
			b.skip(m, e, "outside_base_root")
		}
	}
	return m, nil
}

func (b *Builder) skip(m *Manifest, e scenario.Entry, reason string) {
	m.Skipped = append(m.Skipped, Skipped{Key: e.Key, Value: e.Value, Reason: reason})
	metrics.ArchiveSkipped.WithLabelValues(reason).Inc()
	b.log.Warn("Could not add file to archive",
		zap.String("key", e.Key),
		zap.String("value", e.Value),
		zap.String("reason", reason),
	)
}

// relativeName returns src relative to base with forward slashes, or false
// when src is not below base.
func relativeName(base, src string) (string, bool) {
	rel, err := filepath.Rel(base, src)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	return rel, true
}

// Build writes the archive for the scenario at inpPath and returns its path.
// An existing file at the destination is replaced.
func (b *Builder) Build(ctx context.Context, inpPath, dest string) (path string, err error) {
	ctx, span := tracing.StartSpan(ctx, "sfincs.archive")
	defer func() {
		tracing.SetError(ctx, err)
		span.End()
	}()

	m, err := b.Manifest(inpPath)
	if err != nil {
		return "", err
	}

	inp, _ := filepath.Abs(inpPath)
	path = DestinationPath(inp, dest)
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: could not remove existing zipfile %s: %v", models.ErrArchiveInUse, path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	size, err := write(ctx, path, m.Entries)
	if err != nil {
		_ = os.Remove(path)
		return "", err
	}

	metrics.ArchiveEntries.Add(float64(len(m.Entries)))
	metrics.ArchiveBytes.Observe(float64(size))
	tracing.SetAttributes(ctx,
		attribute.String("archive", path),
		attribute.Int("entries", len(m.Entries)),
		attribute.Int("skipped", len(m.Skipped)),
	)
	b.log.Info("Created model archive",
		zap.String("archive", path),
		zap.String("base_root", m.BaseRoot),
		zap.Int("entries", len(m.Entries)),
		zap.Int("skipped", len(m.Skipped)),
	)
	return path, nil
}

func write(ctx context.Context, path string, entries []Entry) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create archive %s: %w", path, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			zw.Close()
			return 0, err
		}
		if err := addFile(zw, e); err != nil {
			zw.Close()
			return 0, err
		}
	}
	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("failed to finish archive %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), f.Close()
}

func addFile(zw *zip.Writer, e Entry) error {
	src, err := os.Open(e.Source)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", e.Source, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("failed to build header for %s: %w", e.Source, err)
	}
	hdr.Name = e.Name
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", e.Name, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("failed to compress %s: %w", e.Source, err)
	}
	return nil
}
