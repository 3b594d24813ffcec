package layeredfs

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// FS is a priority-ordered overlay of layers.
//
// Mutations (AddLayer, Add, Reverse, RegisterProvider) take an exclusive
// lock; queries share a read lock. Layer construction in AddLayer runs
// outside the lock, so a slow archive load does not block queries.
type FS struct {
	mu        sync.RWMutex
	layers    []Layer
	providers []Provider
	logger    *slog.Logger
}

// Option configures an FS.
type Option func(*config)

type config struct {
	providers   []Provider
	replaced    bool
	extra       []Provider
	verify      bool
	maxElemSize uint64
	logger      *slog.Logger
}

// WithProviders replaces the default provider registry.
func WithProviders(providers ...Provider) Option {
	return func(c *config) {
		c.providers = providers
		c.replaced = true
	}
}

// WithProvider appends a provider after the registry.
func WithProvider(p Provider) Option {
	return func(c *config) {
		c.extra = append(c.extra, p)
	}
}

// WithVerify controls CRC32 and SHA-256 verification by the default UPKF
// provider (default: true). It has no effect together with WithProviders.
func WithVerify(enabled bool) Option {
	return func(c *config) {
		c.verify = enabled
	}
}

// WithMaxElementSize caps decompressed UPKF elements loaded by the default
// UPKF provider. Zero uses upkf.DefaultMaxElementSize.
func WithMaxElementSize(limit uint64) Option {
	return func(c *config) {
		c.maxElemSize = limit
	}
}

// WithLogger sets the logger for layer events.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// New creates an empty FS.
func New(opts ...Option) *FS {
	cfg := config{verify: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	providers := cfg.providers
	if !cfg.replaced {
		providers = []Provider{
			FolderProvider{},
			&UpkfProvider{Verify: cfg.verify, MaxElementSize: cfg.maxElemSize, Logger: cfg.logger},
			VpkProvider{},
		}
	}
	providers = append(slices.Clone(providers), cfg.extra...)

	return &FS{providers: providers, logger: cfg.logger}
}

// log returns the logger, falling back to a discard logger if nil.
func (f *FS) log() *slog.Logger {
	if f.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return f.logger
}

// RegisterProvider appends p to the provider registry.
func (f *FS) RegisterProvider(p Provider) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.providers = append(f.providers, p)
}

// Providers returns a copy of the provider registry in trial order.
func (f *FS) Providers() []Provider {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.providers)
}

// AddLayer builds a layer from path with the first provider that supports
// it and inserts it at the front (prepend) or the back.
//
// If no provider supports path, AddLayer returns ErrNoExtension for a path
// without an extension and an *UnsupportedError otherwise. A failed
// construction leaves the layer list untouched.
func (f *FS) AddLayer(path string, prepend bool) (Layer, error) {
	p, err := f.selectProvider(path)
	if err != nil {
		f.log().Debug("no provider for layer", "path", path, "error", err)
		return nil, err
	}

	layer, err := p.Create(path)
	if err != nil {
		f.log().Debug("layer construction failed", "path", path, "provider", p.Name(), "error", err)
		return nil, err
	}
	f.Add(layer, prepend)
	return layer, nil
}

func (f *FS) selectProvider(path string) (Provider, error) {
	for _, p := range f.Providers() {
		if p.Supports(path) {
			return p, nil
		}
	}

	ext := filepath.Ext(path)
	if ext == "" {
		return nil, &fs.PathError{Op: "add layer", Path: path, Err: ErrNoExtension}
	}
	ue := &UnsupportedError{Path: path, Ext: ext}
	if _, err := os.Stat(path); err != nil {
		var pe *fs.PathError
		if errors.As(err, &pe) {
			err = pe.Err
		}
		ue.Err = err
	}
	return nil, ue
}

// Add inserts a constructed layer at the front (prepend) or the back.
func (f *FS) Add(layer Layer, prepend bool) {
	f.mu.Lock()
	if prepend {
		f.layers = slices.Insert(f.layers, 0, layer)
	} else {
		f.layers = append(f.layers, layer)
	}
	n := len(f.layers)
	f.mu.Unlock()

	f.log().Debug("added layer",
		"id", layer.ID().String(),
		"kind", layer.Kind().String(),
		"name", layer.Meta().Name,
		"prepend", prepend,
		"layers", n)
}

// Reverse reverses the layer order in place, flipping override priority.
func (f *FS) Reverse() {
	f.mu.Lock()
	defer f.mu.Unlock()
	slices.Reverse(f.layers)
}

// Contains reports whether any layer contains name.
func (f *FS) Contains(name string) bool {
	_, ok := f.Which(name)
	return ok
}

// Which returns the first layer, in priority order, that contains name.
func (f *FS) Which(name string) (Layer, bool) {
	name, ok := cleanName(name)
	if !ok {
		return nil, false
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, l := range f.layers {
		if l.Contains(name) {
			return l, true
		}
	}
	return nil, false
}

// GetFile returns name from the first layer that contains it. That layer's
// result, success or error, is returned as is. A name contained by no layer
// yields an error matching ErrNotFound.
func (f *FS) GetFile(name string) (*File, error) {
	clean, ok := cleanName(name)
	if !ok {
		return nil, invalidName("open", name)
	}
	l, ok := f.Which(clean)
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: clean, Err: ErrNotFound}
	}
	return l.GetFile(clean)
}

// Resolve returns the concrete location of name in the first layer that
// contains it.
func (f *FS) Resolve(name string) (string, bool) {
	l, ok := f.Which(name)
	if !ok {
		return "", false
	}
	return l.Resolve(name), true
}

// FindLayer returns the layer with the given identity.
func (f *FS) FindLayer(id ID) (Layer, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, l := range f.layers {
		if l.ID() == id {
			return l, true
		}
	}
	return nil, false
}

// Layers returns a copy of the layer list, highest priority first.
func (f *FS) Layers() []Layer {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.layers)
}

// Len returns the number of layers.
func (f *FS) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.layers)
}
