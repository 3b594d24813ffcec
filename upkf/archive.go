// Package upkf reads and writes UPKF archives.
//
// A UPKF archive is a single little-endian file: a header carrying the
// origin label, an aggregate checksum and the entry count, followed by one
// length-prefixed entry per element. Each payload is stored compressed with
// its own algorithm; the CRC32 and SHA-256 recorded for it are computed
// over the stored (compressed) bytes.
//
// Archives are loaded fully into memory. Once loaded, an Archive is
// immutable unless the caller adds elements, and is safe for concurrent
// reads.
package upkf

import (
	"iter"

	"github.com/ungine/layeredfs/internal/compress"
	"github.com/ungine/layeredfs/internal/sizing"
)

// Compression identifies the algorithm used for an element payload.
type Compression = compress.Type

// Compression algorithms.
const (
	CompressionNone  = compress.None
	CompressionLZMA  = compress.LZMA
	CompressionLZMA2 = compress.LZMA2
	CompressionGZIP  = compress.GZIP
)

// Checksum is the aggregate 128-bit archive checksum: the wrapping sum of
// every element CRC32. It detects corruption only; reordered elements and
// crafted collisions go unnoticed.
type Checksum = sizing.Uint128

// Element is one logical file stored in an archive.
type Element struct {
	// Path is the archive-relative lookup key.
	Path string

	// Metadata is an opaque caller-defined string, conventionally JSON.
	Metadata string

	// Binary reports whether consumers should treat Content as bytes rather than text.
	Binary bool

	// Compression is the algorithm the payload is stored with.
	Compression Compression

	// Content is the decompressed element data.
	Content []byte

	// Integrity holds the checksums recorded in the file.
	// Nil unless the archive was loaded with verification.
	Integrity *Integrity
}

// Size returns the decompressed content length.
func (e *Element) Size() int64 {
	return int64(len(e.Content))
}

// Integrity holds the checksums of a stored payload.
type Integrity struct {
	CRC32  uint32
	SHA256 string
}

// Archive is an in-memory UPKF archive.
type Archive struct {
	origin       string
	path         string
	recompressed bool
	checksum     Checksum
	elements     []*Element
	index        map[string]int
}

// New creates an empty in-memory archive with the given origin label.
func New(origin string) *Archive {
	return &Archive{
		origin: origin,
		index:  make(map[string]int),
	}
}

// AddFile appends an element and returns the archive for chaining.
//
// Content is referenced, not copied. When several elements share a path,
// lookups return the first one added.
func (a *Archive) AddFile(path, metadata string, content []byte, binary bool, c Compression) *Archive {
	a.add(&Element{
		Path:        path,
		Metadata:    metadata,
		Binary:      binary,
		Compression: c,
		Content:     content,
	})
	return a
}

// AddTextFile appends a text element.
func (a *Archive) AddTextFile(path, metadata, text string, c Compression) *Archive {
	return a.AddFile(path, metadata, []byte(text), false, c)
}

// AddBinaryFile appends a binary element.
func (a *Archive) AddBinaryFile(path, metadata string, data []byte, c Compression) *Archive {
	return a.AddFile(path, metadata, data, true, c)
}

func (a *Archive) add(e *Element) {
	if _, ok := a.index[e.Path]; !ok {
		a.index[e.Path] = len(a.elements)
	}
	a.elements = append(a.elements, e)
}

// Lookup returns the element stored at path.
func (a *Archive) Lookup(path string) (*Element, bool) {
	i, ok := a.index[path]
	if !ok {
		return nil, false
	}
	return a.elements[i], true
}

// Contains reports whether an element is stored at path.
func (a *Archive) Contains(path string) bool {
	_, ok := a.index[path]
	return ok
}

// Len returns the number of elements, duplicates included.
func (a *Archive) Len() int {
	return len(a.elements)
}

// Elements iterates over elements in on-disk order.
func (a *Archive) Elements() iter.Seq[*Element] {
	return func(yield func(*Element) bool) {
		for _, e := range a.elements {
			if !yield(e) {
				return
			}
		}
	}
}

// Origin returns the free-text provenance label.
func (a *Archive) Origin() string { return a.origin }

// Path returns the backing file path, or "" for an archive never loaded or saved.
func (a *Archive) Path() string { return a.path }

// Recompressed reports the informational recompressed flag of the header.
func (a *Archive) Recompressed() bool { return a.recompressed }

// SetRecompressed sets the recompressed flag written by Write.
func (a *Archive) SetRecompressed(v bool) *Archive {
	a.recompressed = v
	return a
}

// Checksum returns the aggregate checksum read at load time or computed by
// the most recent Write.
func (a *Archive) Checksum() Checksum { return a.checksum }

// Size returns the sum of the decompressed element sizes.
func (a *Archive) Size() int64 {
	var n int64
	for _, e := range a.elements {
		n += e.Size()
	}
	return n
}
