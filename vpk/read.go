package vpk

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ungine/layeredfs/internal/errkind"
)

const dirSuffix = "_dir.vpk"

// ArchivePath returns the numbered archive holding entries with the given
// archive index: "pak01_003.vpk" for index 3 of "pak01_dir.vpk".
// DirArchiveIndex returns the directory file itself.
func (d *Directory) ArchivePath(index uint16) (string, error) {
	if index == DirArchiveIndex {
		return d.Path, nil
	}
	if !strings.HasSuffix(d.Path, dirSuffix) {
		return "", fmt.Errorf("%w: %q", ErrNoArchives, d.Path)
	}
	return fmt.Sprintf("%s_%03d.vpk", strings.TrimSuffix(d.Path, dirSuffix), index), nil
}

// ReadFile returns the payload of the entry at path.
func (d *Directory) ReadFile(path string) ([]byte, error) {
	e, ok := d.Lookup(path)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, path)
	}
	return d.ReadEntry(e)
}

// ReadEntry returns the preload bytes of e followed by its archive bytes.
func (d *Directory) ReadEntry(e *Entry) ([]byte, error) {
	if e.Length == 0 {
		return append([]byte(nil), e.Preload...), nil
	}

	path, err := d.ArchivePath(e.ArchiveIndex)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, errkind.IO("read", e.Path, os.ErrInvalid)
	}
	offset := int64(e.Offset)
	if e.ArchiveIndex == DirArchiveIndex {
		offset += d.HeaderSize() + int64(d.TreeLength)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errkind.IO("open", path, err)
	}
	defer f.Close()

	if fi, err := f.Stat(); err == nil && fi.Size() < offset+int64(e.Length) {
		return nil, errkind.IO("read", entryName(path, e), io.ErrUnexpectedEOF)
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, errkind.IO("seek", entryName(path, e), err)
	}

	buf := make([]byte, len(e.Preload)+int(e.Length))
	copy(buf, e.Preload)
	if _, err := io.ReadFull(f, buf[len(e.Preload):]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, errkind.IO("read", entryName(path, e), err)
	}
	return buf, nil
}

func entryName(archive string, e *Entry) string {
	return filepath.ToSlash(archive) + "!" + e.Path
}
