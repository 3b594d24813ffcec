package layeredfs

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ungine/layeredfs/vpk"
)

// VpkLayer serves the entries of a VPK directory. The tree is indexed at
// construction; payloads are read from disk on demand.
type VpkLayer struct {
	dir  *vpk.Directory
	size int64
	id   ID
}

// NewVpkLayer parses the VPK directory at path.
func NewVpkLayer(path string) (*VpkLayer, error) {
	d, err := vpk.Open(path)
	if err != nil {
		return nil, err
	}
	l := &VpkLayer{dir: d, id: newID()}
	if info, err := os.Stat(path); err == nil {
		l.size = info.Size()
	}
	return l, nil
}

// Resolve returns "archive!member".
func (l *VpkLayer) Resolve(name string) string {
	name, _ = cleanName(name)
	return filepath.ToSlash(l.dir.Path) + "!" + name
}

// Contains reports whether the directory has an entry at name.
func (l *VpkLayer) Contains(name string) bool {
	name, ok := cleanName(name)
	return ok && l.dir.Contains(name)
}

// GetFile returns a handle whose reads seek into the backing archive.
func (l *VpkLayer) GetFile(name string) (*File, error) {
	name, ok := cleanName(name)
	if !ok {
		return nil, invalidName("open", name)
	}
	e, found := l.dir.Lookup(name)
	if !found {
		return nil, fmt.Errorf("%w: %s", vpk.ErrNotFound, l.Resolve(name))
	}
	return &File{kind: KindVpk, layer: l.id, name: name, path: l.Resolve(name), dir: l.dir, entry: e}, nil
}

// Meta returns the directory path and file size. VPKs carry no origin.
func (l *VpkLayer) Meta() Meta {
	return Meta{Name: l.dir.Path, Size: l.size, HasSize: true}
}

// ID returns the layer identity.
func (l *VpkLayer) ID() ID { return l.id }

// Kind returns KindVpk.
func (l *VpkLayer) Kind() Kind { return KindVpk }

// Directory returns the parsed VPK directory.
func (l *VpkLayer) Directory() *vpk.Directory { return l.dir }
