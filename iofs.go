package layeredfs

import (
	"bytes"
	"io"
	"io/fs"
	"iter"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// Interface compliance checks.
var (
	_ fs.FS          = (*FS)(nil)
	_ fs.ReadFileFS  = (*FS)(nil)
	_ fs.StatFS      = (*FS)(nil)
	_ fs.File        = (*openFile)(nil)
	_ fs.ReadDirFile = (*openDir)(nil)
	_ fs.FileInfo    = (*fileInfo)(nil)
)

// dirLayer is implemented by layers that can list a directory.
// readDir reports false when name is not a directory of the layer.
type dirLayer interface {
	readDir(name string) ([]fs.DirEntry, bool)
}

// lookup finds the front-most layer serving name as a file or a directory.
// A directory is listed from that single layer; listings are never merged
// across layers.
func (f *FS) lookup(name string) (Layer, []fs.DirEntry, bool) {
	for _, l := range f.Layers() {
		if dl, ok := l.(dirLayer); ok {
			if entries, isDir := dl.readDir(name); isDir {
				return l, entries, true
			}
		}
		if l.Contains(name) {
			return l, nil, false
		}
	}
	if name == "." {
		return nil, nil, true
	}
	return nil, nil, false
}

func (f *FS) open(op, name string) (*File, *openDir, error) {
	if !fs.ValidPath(name) {
		return nil, nil, invalidName(op, name)
	}
	l, entries, isDir := f.lookup(name)
	switch {
	case isDir:
		return nil, &openDir{info: dirInfo(path.Base(name)), entries: entries}, nil
	case l == nil:
		return nil, nil, &fs.PathError{Op: op, Path: name, Err: ErrNotFound}
	}
	lf, err := l.GetFile(name)
	if err != nil {
		return nil, nil, err
	}
	return lf, nil, nil
}

// Open implements fs.FS. Directories list the entries of the front-most
// layer holding them, so files only present in lower layers are served by
// Open but not listed.
func (f *FS) Open(name string) (fs.File, error) {
	lf, dir, err := f.open("open", name)
	if err != nil {
		return nil, err
	}
	if dir != nil {
		return dir, nil
	}
	info, err := statFile(lf)
	if err != nil {
		lf.Close()
		return nil, err
	}
	return &openFile{file: lf, info: info}, nil
}

// ReadFile implements fs.ReadFileFS. The returned slice is always a copy.
func (f *FS) ReadFile(name string) ([]byte, error) {
	lf, dir, err := f.open("read", name)
	if err != nil {
		return nil, err
	}
	if dir != nil {
		return nil, &fs.PathError{Op: "read", Path: name, Err: errIsDir}
	}
	defer lf.Close()
	data, err := lf.Read()
	if err != nil {
		return nil, err
	}
	if lf.Kind() == KindUpkf {
		data = bytes.Clone(data)
	}
	return data, nil
}

// Stat implements fs.StatFS.
func (f *FS) Stat(name string) (fs.FileInfo, error) {
	lf, dir, err := f.open("stat", name)
	if err != nil {
		return nil, err
	}
	if dir != nil {
		return dir.info, nil
	}
	defer lf.Close()
	return statFile(lf)
}

func statFile(lf *File) (*fileInfo, error) {
	info := &fileInfo{name: path.Base(lf.Name()), kind: lf.Kind()}
	if lf.Kind() == KindFolder && lf.osFile != nil {
		st, err := lf.osFile.Stat()
		if err != nil {
			return nil, err
		}
		info.size = st.Size()
		info.modTime = st.ModTime()
		return info, nil
	}
	size, err := lf.Size()
	if err != nil {
		return nil, err
	}
	info.size = size
	return info, nil
}

// readDir lists a directory under the base directory. Entries that are
// neither regular files nor directories are left out.
func (l *FolderLayer) readDir(name string) ([]fs.DirEntry, bool) {
	name, ok := cleanName(name)
	if !ok {
		return nil, false
	}
	p := l.Resolve(name)
	if info, err := os.Stat(p); err != nil || !info.IsDir() {
		return nil, false
	}
	des, err := os.ReadDir(p)
	if err != nil {
		return nil, true
	}
	var entries []fs.DirEntry
	for _, de := range des {
		if strings.Contains(de.Name(), `\`) {
			continue
		}
		st, err := os.Stat(filepath.Join(p, de.Name()))
		switch {
		case err != nil:
			continue
		case st.IsDir():
			entries = append(entries, fs.FileInfoToDirEntry(dirInfo(de.Name())))
		case st.Mode().IsRegular():
			entries = append(entries, fs.FileInfoToDirEntry(&fileInfo{
				name:    de.Name(),
				size:    st.Size(),
				modTime: st.ModTime(),
				kind:    KindFolder,
			}))
		}
	}
	return entries, true
}

func (l *UpkfLayer) readDir(name string) ([]fs.DirEntry, bool) {
	return listMembers(name, KindUpkf, func(yield func(string, int64) bool) {
		for e := range l.archive.Elements() {
			if !yield(e.Path, e.Size()) {
				return
			}
		}
	})
}

func (l *VpkLayer) readDir(name string) ([]fs.DirEntry, bool) {
	return listMembers(name, KindVpk, func(yield func(string, int64) bool) {
		for e := range l.dir.Entries() {
			if !yield(e.Path, e.Size()) {
				return
			}
		}
	})
}

// listMembers derives the directory name from archive member paths. The
// root always exists; any other directory exists when a member lies below
// it. A member stored at name itself makes name a file, not a directory.
func listMembers(name string, kind Kind, members iter.Seq2[string, int64]) ([]fs.DirEntry, bool) {
	name, ok := cleanName(name)
	if !ok {
		return nil, false
	}
	prefix := name + "/"
	if name == "." {
		prefix = ""
	}

	found := name == "."
	files := make(map[string]int64)
	dirs := make(map[string]struct{})
	for p, size := range members {
		if p == name {
			return nil, false
		}
		if !fs.ValidPath(p) || strings.Contains(p, `\`) || !strings.HasPrefix(p, prefix) {
			continue
		}
		found = true
		child, _, nested := strings.Cut(p[len(prefix):], "/")
		if nested {
			dirs[child] = struct{}{}
		} else if _, dup := files[child]; !dup {
			files[child] = size
		}
	}
	if !found {
		return nil, false
	}

	entries := make([]fs.DirEntry, 0, len(files)+len(dirs))
	for child, size := range files {
		entries = append(entries, fs.FileInfoToDirEntry(&fileInfo{name: child, size: size, kind: kind}))
	}
	for child := range dirs {
		if _, isFile := files[child]; !isFile {
			entries = append(entries, fs.FileInfoToDirEntry(dirInfo(child)))
		}
	}
	return entries, true
}

// openFile adapts a File to fs.File. Folder files stream from their
// descriptor; archive content is loaded on the first Read.
type openFile struct {
	file *File
	info *fileInfo
	r    io.Reader
}

func (o *openFile) Stat() (fs.FileInfo, error) { return o.info, nil }

func (o *openFile) Read(p []byte) (int, error) {
	if o.r == nil {
		if o.file.Kind() == KindFolder {
			if o.file.osFile == nil {
				return 0, fs.ErrClosed
			}
			o.r = o.file.osFile
		} else {
			data, err := o.file.Read()
			if err != nil {
				return 0, err
			}
			o.r = bytes.NewReader(data)
		}
	}
	return o.r.Read(p)
}

func (o *openFile) Close() error { return o.file.Close() }

// openDir is a read-only directory listing.
type openDir struct {
	info    *fileInfo
	entries []fs.DirEntry
	offset  int
	sorted  bool
}

func (d *openDir) Stat() (fs.FileInfo, error) { return d.info, nil }

func (d *openDir) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.info.name, Err: errIsDir}
}

func (d *openDir) Close() error { return nil }

// ReadDir implements fs.ReadDirFile. Entries are sorted by name.
func (d *openDir) ReadDir(n int) ([]fs.DirEntry, error) {
	if !d.sorted {
		slices.SortFunc(d.entries, func(a, b fs.DirEntry) int {
			return strings.Compare(a.Name(), b.Name())
		})
		d.sorted = true
	}
	rest := d.entries[d.offset:]
	if n <= 0 {
		d.offset = len(d.entries)
		return slices.Clone(rest), nil
	}
	if len(rest) == 0 {
		return nil, io.EOF
	}
	n = min(n, len(rest))
	d.offset += n
	return slices.Clone(rest[:n]), nil
}

// fileInfo describes a file or directory served by the overlay.
type fileInfo struct {
	name    string
	size    int64
	modTime time.Time
	kind    Kind
	dir     bool
}

func dirInfo(name string) *fileInfo {
	return &fileInfo{name: name, dir: true}
}

func (fi *fileInfo) Name() string       { return fi.name }
func (fi *fileInfo) Size() int64        { return fi.size }
func (fi *fileInfo) ModTime() time.Time { return fi.modTime }
func (fi *fileInfo) IsDir() bool        { return fi.dir }

func (fi *fileInfo) Mode() fs.FileMode {
	if fi.dir {
		return fs.ModeDir | 0o555
	}
	return 0o444
}

// Sys returns the backing Kind. Directories report KindFolder.
func (fi *fileInfo) Sys() any { return fi.kind }
