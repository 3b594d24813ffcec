package layeredfs

import (
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/ungine/layeredfs/internal/errkind"
	"github.com/ungine/layeredfs/upkf"
	"github.com/ungine/layeredfs/vpk"
)

// File is a per-query handle to content served by one layer.
//
// A File is owned by the caller that requested it. Folder files hold an
// open descriptor until Close; archive files hold none, and Close is a
// no-op for them.
type File struct {
	kind  Kind
	layer ID
	name  string
	path  string

	// KindFolder
	osFile *os.File

	// KindUpkf
	elem *upkf.Element

	// KindVpk
	dir   *vpk.Directory
	entry *vpk.Entry
}

// Kind returns the backing kind of the file.
func (f *File) Kind() Kind { return f.kind }

// Layer returns the identity of the layer that produced the file.
func (f *File) Layer() ID { return f.layer }

// Name returns the logical path the file was requested by.
func (f *File) Name() string { return f.name }

// Path returns the resolved location of the file.
func (f *File) Path() string { return f.path }

// Size returns the content size in bytes.
func (f *File) Size() (int64, error) {
	switch f.kind {
	case KindFolder:
		if f.osFile == nil {
			return 0, errkind.IO("stat", f.path, os.ErrClosed)
		}
		info, err := f.osFile.Stat()
		if err != nil {
			return 0, errkind.IO("stat", f.path, err)
		}
		return info.Size(), nil
	case KindUpkf:
		return f.elem.Size(), nil
	case KindVpk:
		return f.entry.Size(), nil
	default:
		return 0, fmt.Errorf("layeredfs: file of unknown kind %d", f.kind)
	}
}

// Read returns the full content.
//
// UPKF content is already resident in its layer and is returned without
// copying; callers must not modify it. Folder and VPK content is read from
// disk on every call.
func (f *File) Read() ([]byte, error) {
	switch f.kind {
	case KindFolder:
		if f.osFile == nil {
			return nil, errkind.IO("read", f.path, os.ErrClosed)
		}
		if _, err := f.osFile.Seek(0, io.SeekStart); err != nil {
			return nil, errkind.IO("seek", f.path, err)
		}
		data, err := io.ReadAll(f.osFile)
		if err != nil {
			return nil, errkind.IO("read", f.path, err)
		}
		return data, nil
	case KindUpkf:
		return f.elem.Content, nil
	case KindVpk:
		return f.dir.ReadEntry(f.entry)
	default:
		return nil, fmt.Errorf("layeredfs: file of unknown kind %d", f.kind)
	}
}

// ReadString returns the content as text. Content that is not valid UTF-8
// yields ErrInvalidUTF8.
func (f *File) ReadString() (string, error) {
	data, err := f.Read()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s", ErrInvalidUTF8, f.path)
	}
	return string(data), nil
}

// Binary reports whether the content is flagged as binary. Only UPKF
// elements carry the flag; folder and VPK files report false.
func (f *File) Binary() bool {
	return f.kind == KindUpkf && f.elem.Binary
}

// Metadata returns the element metadata of a UPKF file, or "".
func (f *File) Metadata() string {
	if f.kind != KindUpkf {
		return ""
	}
	return f.elem.Metadata
}

// Close releases the descriptor of a folder file.
func (f *File) Close() error {
	if f.osFile == nil {
		return nil
	}
	err := f.osFile.Close()
	f.osFile = nil
	return err
}
