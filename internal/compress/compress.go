// Package compress is the uniform entry point over the element codecs
// supported by UPKF archives.
package compress

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz/lzma"

	"github.com/ungine/layeredfs/internal/errkind"
	"github.com/ungine/layeredfs/internal/sizing"
)

// Type identifies the compression algorithm of an element.
// The numeric values are part of the on-disk format and must never change.
type Type uint8

const (
	None Type = iota
	LZMA
	LZMA2
	GZIP
)

// Sentinel errors.
var (
	// ErrDecompression is returned when a payload cannot be decoded.
	ErrDecompression = fmt.Errorf("%w: decompression failed", errkind.ErrIntegrity)

	// ErrUnknownCompression is returned for compression codes outside the known set.
	ErrUnknownCompression = fmt.Errorf("%w: unknown compression type", errkind.ErrFormat)

	// ErrSizeOverflow is returned when decompressed output exceeds the configured limit.
	ErrSizeOverflow = fmt.Errorf("%w: decompressed size exceeds limit", errkind.ErrFormat)
)

const (
	// lzmaHeaderLen is the classic .lzma header: properties, dictionary
	// size and uncompressed size.
	lzmaHeaderLen = 13

	// lzmaMinDictCeiling is the dictionary size always accepted, the
	// writer default, so small output limits never reject valid streams.
	lzmaMinDictCeiling = 8 << 20

	// lzmaMaxDictCap bounds the dictionary when no output limit is set.
	lzmaMaxDictCap = 1 << 28
)

// String returns the human-readable name of the compression algorithm.
func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case LZMA:
		return "lzma"
	case LZMA2:
		return "lzma2"
	case GZIP:
		return "gzip"
	default:
		return "unknown"
	}
}

// Valid reports whether t is one of the known algorithms.
func (t Type) Valid() bool {
	return t <= GZIP
}

// ParseType accepts a case-insensitive algorithm name or its numeric code.
func ParseType(s string) (Type, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "none", "":
		return None, nil
	case "lzma":
		return LZMA, nil
	case "lzma2":
		return LZMA2, nil
	case "gzip", "gz":
		return GZIP, nil
	}
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil || !Type(n).Valid() {
		return None, fmt.Errorf("%w: %q", ErrUnknownCompression, s)
	}
	return Type(n), nil
}

// Compress encodes src with algorithm t.
// None returns a copy of src so callers never alias element content.
func Compress(t Type, src []byte) ([]byte, error) {
	switch t {
	case None:
		return bytes.Clone(src), nil
	case LZMA:
		var buf bytes.Buffer
		w, err := lzma.NewWriter(&buf)
		if err != nil {
			return nil, fmt.Errorf("create lzma writer: %w", err)
		}
		return finish(&buf, w, src)
	case LZMA2:
		var buf bytes.Buffer
		w, err := lzma.NewWriter2(&buf)
		if err != nil {
			return nil, fmt.Errorf("create lzma2 writer: %w", err)
		}
		return finish(&buf, w, src)
	case GZIP:
		var buf bytes.Buffer
		return finish(&buf, gzip.NewWriter(&buf), src)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, t)
	}
}

func finish(buf *bytes.Buffer, w io.WriteCloser, src []byte) ([]byte, error) {
	if _, err := w.Write(src); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress decodes src with algorithm t.
//
// The output is sized by what the decoder produces, never by a size field
// stored alongside the payload. A limit of 0 disables the output cap.
func Decompress(t Type, src []byte, limit uint64) ([]byte, error) {
	var (
		r   io.Reader
		err error
	)
	switch t {
	case None:
		if limit > 0 && uint64(len(src)) > limit {
			return nil, ErrSizeOverflow
		}
		return bytes.Clone(src), nil
	case LZMA:
		if err := checkLZMAHeader(src, limit); err != nil {
			return nil, err
		}
		r, err = lzma.NewReader(bytes.NewReader(src))
	case LZMA2:
		r, err = lzma.NewReader2(bytes.NewReader(src))
	case GZIP:
		var zr *gzip.Reader
		zr, err = gzip.NewReader(bytes.NewReader(src))
		if err == nil {
			defer zr.Close()
			r = zr
		}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, t)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecompression, t, err)
	}

	out, err := sizing.ReadAllWithLimit(r, limit, ErrSizeOverflow)
	if err != nil {
		if errors.Is(err, ErrSizeOverflow) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrDecompression, t, err)
	}
	return out, nil
}

// checkLZMAHeader rejects a dictionary size the output limit cannot need.
// The reader allocates the dictionary up front from the header field.
func checkLZMAHeader(src []byte, limit uint64) error {
	if len(src) < lzmaHeaderLen {
		return fmt.Errorf("%w: lzma: header is %d bytes", ErrDecompression, len(src))
	}
	dict := uint64(binary.LittleEndian.Uint32(src[1:5]))
	ceiling := uint64(lzmaMaxDictCap)
	if limit > 0 {
		ceiling = max(limit, lzmaMinDictCeiling)
	}
	if dict > ceiling {
		return fmt.Errorf("%w: lzma: dictionary of %d bytes exceeds %d", ErrDecompression, dict, ceiling)
	}
	return nil
}
