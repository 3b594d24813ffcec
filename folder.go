package layeredfs

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/ungine/layeredfs/internal/errkind"
)

var errIsDir = errors.New("is a directory")

// FolderLayer serves files from a directory on disk.
//
// Containment is a real existence check on every call; nothing is indexed.
type FolderLayer struct {
	base string
	id   ID
}

// NewFolderLayer creates a layer rooted at dir. The directory must exist.
func NewFolderLayer(dir string) (*FolderLayer, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errkind.IO("stat", dir, err)
	}
	if !info.IsDir() {
		return nil, errkind.IO("open", dir, errors.New("not a directory"))
	}
	return &FolderLayer{base: dir, id: newID()}, nil
}

// Resolve joins the base directory and name.
func (l *FolderLayer) Resolve(name string) string {
	name, _ = cleanName(name)
	return filepath.Join(l.base, filepath.FromSlash(name))
}

// Contains reports whether name exists under the base directory.
// Directories count.
func (l *FolderLayer) Contains(name string) bool {
	name, ok := cleanName(name)
	if !ok {
		return false
	}
	_, err := os.Stat(l.Resolve(name))
	return err == nil
}

// GetFile opens name. Opening a directory is an I/O error.
func (l *FolderLayer) GetFile(name string) (*File, error) {
	name, ok := cleanName(name)
	if !ok {
		return nil, invalidName("open", name)
	}
	p := l.Resolve(name)
	f, err := os.Open(p)
	if err != nil {
		return nil, errkind.IO("open", p, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errkind.IO("stat", p, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, errkind.IO("open", p, errIsDir)
	}
	return &File{kind: KindFolder, layer: l.id, name: name, path: p, osFile: f}, nil
}

// Meta returns the base directory as the layer name.
func (l *FolderLayer) Meta() Meta {
	return Meta{Name: l.base}
}

// ID returns the layer identity.
func (l *FolderLayer) ID() ID { return l.id }

// Kind returns KindFolder.
func (l *FolderLayer) Kind() Kind { return KindFolder }

// Base returns the base directory.
func (l *FolderLayer) Base() string { return l.base }
