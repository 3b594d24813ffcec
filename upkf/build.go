package upkf

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ungine/layeredfs/internal/errkind"
)

// SkipCompressionFunc reports whether a file should be stored uncompressed
// instead of with the default compression. It is not consulted for files
// that have a valid sidecar.
type SkipCompressionFunc func(path string, info fs.FileInfo) bool

// BuildOption configures Build.
type BuildOption func(*buildConfig)

type buildConfig struct {
	origin      string
	compression Compression
	skip        SkipCompressionFunc
	jobs        int
	logger      *slog.Logger
}

// WithOrigin sets the origin label (default: base name of the directory).
func WithOrigin(origin string) BuildOption {
	return func(c *buildConfig) {
		c.origin = origin
	}
}

// WithDefaultCompression sets the compression for files without a sidecar
// (default: CompressionNone).
func WithDefaultCompression(ct Compression) BuildOption {
	return func(c *buildConfig) {
		c.compression = ct
	}
}

// WithSkipCompression replaces the default skip predicate.
// Pass nil to compress every file.
func WithSkipCompression(fn SkipCompressionFunc) BuildOption {
	return func(c *buildConfig) {
		c.skip = fn
	}
}

// WithJobs sets the number of concurrent file readers.
// Values < 1 use GOMAXPROCS.
func WithJobs(n int) BuildOption {
	return func(c *buildConfig) {
		c.jobs = n
	}
}

// WithBuildLogger sets the logger for build events.
// If not set, logging is disabled.
func WithBuildLogger(logger *slog.Logger) BuildOption {
	return func(c *buildConfig) {
		c.logger = logger
	}
}

func (c *buildConfig) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// DefaultSkipCompression skips extensions whose content is already compressed.
func DefaultSkipCompression(path string, _ fs.FileInfo) bool {
	_, ok := skipCompressionExts[strings.ToLower(filepath.Ext(path))]
	return ok
}

var skipCompressionExts = map[string]struct{}{
	".7z":    {},
	".bz2":   {},
	".flac":  {},
	".gif":   {},
	".gz":    {},
	".jpeg":  {},
	".jpg":   {},
	".lzma":  {},
	".mp3":   {},
	".mp4":   {},
	".ogg":   {},
	".opus":  {},
	".png":   {},
	".upkf":  {},
	".vpk":   {},
	".wav":   {},
	".webm":  {},
	".webp":  {},
	".woff2": {},
	".xz":    {},
	".zip":   {},
	".zst":   {},
}

var errNotDir = errors.New("not a directory")

type buildJob struct {
	abs  string
	rel  string
	info fs.FileInfo
	elem *Element
}

// Build creates an in-memory archive from the regular files under dir.
//
// Element paths are slash-separated and relative to dir, in lexical walk
// order. Files ending in MetaExt are not stored; they configure the file
// they accompany. A sidecar that fails to parse is ignored with a warning.
// Files are read concurrently, but the element order does not depend on the
// number of jobs.
func Build(ctx context.Context, dir string, opts ...BuildOption) (*Archive, error) {
	cfg := buildConfig{skip: DefaultSkipCompression}
	for _, opt := range opts {
		opt(&cfg)
	}
	log := cfg.log()

	info, err := os.Stat(dir)
	if err != nil {
		return nil, errkind.IO("stat", dir, err)
	}
	if !info.IsDir() {
		return nil, errkind.IO("build", dir, errNotDir)
	}
	if cfg.origin == "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			abs = dir
		}
		cfg.origin = filepath.Base(abs)
	}

	var jobs []*buildJob
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(d.Name(), MetaExt) {
			return nil
		}
		if !d.Type().IsRegular() {
			log.Warn("skipping non-regular file", "path", path, "type", d.Type().String())
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		jobs = append(jobs, &buildJob{abs: path, rel: filepath.ToSlash(rel), info: fi})
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, errkind.IO("walk", dir, err)
	}

	workers := cfg.jobs
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return cfg.load(job)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	a := New(cfg.origin)
	for _, job := range jobs {
		a.add(job.elem)
		log.Debug("added element",
			"path", job.rel,
			"compression", job.elem.Compression.String(),
			"binary", job.elem.Binary,
			"size", len(job.elem.Content))
	}
	log.Info("built archive", "dir", dir, "origin", cfg.origin, "elements", a.Len())
	return a, nil
}

func (c *buildConfig) load(job *buildJob) error {
	content, err := os.ReadFile(job.abs)
	if err != nil {
		return errkind.IO("read", job.abs, err)
	}

	meta := DefaultMeta(c.compression)
	explicit := false
	sidecar := job.abs + MetaExt
	switch fi, err := os.Stat(sidecar); {
	case err == nil && fi.Mode().IsRegular():
		m, err := LoadMeta(sidecar, c.compression)
		if err != nil {
			c.log().Warn("ignoring invalid sidecar", "path", sidecar, "error", err)
			break
		}
		meta = m
		explicit = true
	case err == nil:
		c.log().Warn("ignoring sidecar that is not a regular file", "path", sidecar)
	}

	if !explicit && c.skip != nil && c.skip(job.rel, job.info) {
		meta.Compression = CompressionNone
	}

	job.elem = &Element{
		Path:        job.rel,
		Metadata:    meta.Metadata,
		Binary:      meta.Binary,
		Compression: meta.Compression,
		Content:     content,
	}
	return nil
}
