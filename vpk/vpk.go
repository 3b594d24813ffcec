// Package vpk reads Valve VPK (version 1 and 2) directories.
//
// Parsing loads the directory tree into an in-memory index. Entry payloads
// are read lazily: every ReadEntry opens the backing file, seeks to the
// recorded offset and reads exactly the recorded length.
package vpk

import (
	"errors"
	"fmt"
	"iter"

	"github.com/ungine/layeredfs/internal/errkind"
)

const (
	// Signature is the magic number at the start of every VPK directory.
	Signature uint32 = 0x55AA1234

	// DirArchiveIndex marks an entry whose payload follows the directory tree
	// in the directory file itself.
	DirArchiveIndex uint16 = 0x7FFF

	// EntryTerminator ends every directory entry record.
	EntryTerminator uint16 = 0xFFFF

	headerSizeV1 = 12
	headerSizeV2 = 28
	recordSize   = 18
)

var (
	// ErrInvalidSignature is returned when the header signature is not Signature.
	ErrInvalidSignature = fmt.Errorf("vpk: invalid signature: %w", errkind.ErrFormat)

	// ErrUnsupportedVersion is returned for versions other than 1 and 2.
	ErrUnsupportedVersion = fmt.Errorf("vpk: unsupported version: %w", errkind.ErrFormat)

	// ErrInvalidTerminator is wrapped by every *TerminatorError.
	ErrInvalidTerminator = fmt.Errorf("vpk: invalid entry terminator: %w", errkind.ErrFormat)

	// ErrNoArchives is returned when an entry lives in a numbered archive but
	// the directory is not named "<name>_dir.vpk".
	ErrNoArchives = fmt.Errorf("vpk: directory has no numbered archives: %w", errkind.ErrFormat)

	// ErrNotFound is returned when a directory has no entry at a path.
	ErrNotFound = fmt.Errorf("vpk: %w", errkind.ErrNotFound)
)

// TerminatorError reports an entry record whose terminator is not EntryTerminator.
type TerminatorError struct {
	Path  string
	Value uint16
}

func (e *TerminatorError) Error() string {
	return fmt.Sprintf("vpk: invalid entry terminator 0x%04x for %q", e.Value, e.Path)
}

func (e *TerminatorError) Unwrap() error { return ErrInvalidTerminator }

// IsTerminator reports whether err carries a *TerminatorError and returns its value.
func IsTerminator(err error) (uint16, bool) {
	var te *TerminatorError
	if errors.As(err, &te) {
		return te.Value, true
	}
	return 0, false
}

// Entry is one file of a VPK directory.
type Entry struct {
	// Path is "folder/filename.extension", with the " " placeholder for an
	// empty folder or extension left out.
	Path string

	CRC          uint32
	PreloadBytes uint16
	ArchiveIndex uint16
	Offset       uint32
	Length       uint32
	Terminator   uint16

	// Preload holds the inline bytes stored in the directory tree.
	Preload []byte
}

// Size returns the full payload size: preload bytes plus archive bytes.
func (e *Entry) Size() int64 {
	return int64(e.PreloadBytes) + int64(e.Length)
}

// Directory is a parsed VPK directory.
type Directory struct {
	Version uint32

	// Path is the directory file, or "" when parsed from a reader.
	Path string

	TreeLength uint32

	// Version 2 only.
	FileDataSectionSize   uint32
	ArchiveMD5SectionSize uint32
	OtherMD5SectionSize   uint32
	SignatureSectionSize  uint32

	entries []*Entry
	index   map[string]int
}

// HeaderSize returns the size of the fixed header for the directory's version.
func (d *Directory) HeaderSize() int64 {
	if d.Version == 2 {
		return headerSizeV2
	}
	return headerSizeV1
}

// Lookup returns the entry at path.
func (d *Directory) Lookup(path string) (*Entry, bool) {
	i, ok := d.index[path]
	if !ok {
		return nil, false
	}
	return d.entries[i], true
}

// Contains reports whether the directory has an entry at path.
func (d *Directory) Contains(path string) bool {
	_, ok := d.index[path]
	return ok
}

// Len returns the number of entries.
func (d *Directory) Len() int {
	return len(d.entries)
}

// Entries iterates over entries in tree order.
func (d *Directory) Entries() iter.Seq[*Entry] {
	return func(yield func(*Entry) bool) {
		for _, e := range d.entries {
			if !yield(e) {
				return
			}
		}
	}
}

func (d *Directory) add(e *Entry) {
	if d.index == nil {
		d.index = make(map[string]int)
	}
	if _, ok := d.index[e.Path]; !ok {
		d.index[e.Path] = len(d.entries)
	}
	d.entries = append(d.entries, e)
}
