package layeredfs

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ungine/layeredfs/upkf"
)

// UpkfLayer serves the elements of a fully loaded UPKF archive.
type UpkfLayer struct {
	archive *upkf.Archive
	name    string
	size    int64
	id      ID
}

// NewUpkfLayer loads the archive at path. Options are passed to upkf.Load.
func NewUpkfLayer(path string, opts ...upkf.Option) (*UpkfLayer, error) {
	a, err := upkf.Load(path, opts...)
	if err != nil {
		return nil, err
	}
	l := UpkfLayerFromArchive(a)
	if info, err := os.Stat(path); err == nil {
		l.size = info.Size()
	}
	return l, nil
}

// UpkfLayerFromArchive wraps an archive that is already in memory.
//
// The layer name is the archive path, or its origin when the archive has
// never been loaded or saved; the size is that of the decompressed content
// until the archive is backed by a file.
func UpkfLayerFromArchive(a *upkf.Archive) *UpkfLayer {
	name := a.Path()
	if name == "" {
		name = a.Origin()
	}
	return &UpkfLayer{archive: a, name: name, size: a.Size(), id: newID()}
}

// Resolve returns "archive!member".
func (l *UpkfLayer) Resolve(name string) string {
	name, _ = cleanName(name)
	return filepath.ToSlash(l.name) + "!" + name
}

// Contains reports whether the archive holds an element at name.
func (l *UpkfLayer) Contains(name string) bool {
	name, ok := cleanName(name)
	return ok && l.archive.Contains(name)
}

// GetFile returns a handle referencing the resident element content.
func (l *UpkfLayer) GetFile(name string) (*File, error) {
	name, ok := cleanName(name)
	if !ok {
		return nil, invalidName("open", name)
	}
	e, found := l.archive.Lookup(name)
	if !found {
		return nil, fmt.Errorf("%w: %s", upkf.ErrNotFound, l.Resolve(name))
	}
	return &File{kind: KindUpkf, layer: l.id, name: name, path: l.Resolve(name), elem: e}, nil
}

// Meta returns the archive origin, path and file size.
func (l *UpkfLayer) Meta() Meta {
	return Meta{
		Origin:    l.archive.Origin(),
		HasOrigin: true,
		Name:      l.name,
		Size:      l.size,
		HasSize:   true,
	}
}

// ID returns the layer identity.
func (l *UpkfLayer) ID() ID { return l.id }

// Kind returns KindUpkf.
func (l *UpkfLayer) Kind() Kind { return KindUpkf }

// Archive returns the wrapped archive.
func (l *UpkfLayer) Archive() *upkf.Archive { return l.archive }
