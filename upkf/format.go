package upkf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/ungine/layeredfs/internal/sizing"
)

const (
	// Magic is "UPKF" read as a little-endian uint32.
	Magic uint32 = 0x464B5055

	// Version is the only supported format version.
	Version uint8 = 0
)

// FileHeader is the fixed archive header.
type FileHeader struct {
	Magic        uint32
	Version      uint8
	Recompressed bool
	Origin       string
	Checksum     Checksum
	EntryCount   uint64
}

// EntryHeader precedes each element payload.
type EntryHeader struct {
	Size        uint64
	Name        string
	Binary      bool
	Compression Compression
	CRC32       uint32
	SHA256      string
	Metadata    string
}

func appendBool(b []byte, v bool) []byte {
	if v {
		return append(b, 1)
	}
	return append(b, 0)
}

func (h *FileHeader) appendTo(b []byte) ([]byte, error) {
	if len(h.Origin) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: origin is %d bytes", ErrFieldTooLong, len(h.Origin))
	}
	b = binary.LittleEndian.AppendUint32(b, h.Magic)
	b = append(b, h.Version)
	b = appendBool(b, h.Recompressed)
	b = binary.LittleEndian.AppendUint16(b, uint16(len(h.Origin))) //nolint:gosec // checked above
	b = append(b, h.Origin...)
	b = h.Checksum.AppendLE(b)
	b = binary.LittleEndian.AppendUint64(b, h.EntryCount)
	return b, nil
}

func (h *EntryHeader) appendTo(b []byte) ([]byte, error) {
	switch {
	case uint64(len(h.Name)) > math.MaxUint32:
		return nil, fmt.Errorf("%w: name is %d bytes", ErrFieldTooLong, len(h.Name))
	case len(h.SHA256) > math.MaxUint16:
		return nil, fmt.Errorf("%w: sha256 is %d bytes", ErrFieldTooLong, len(h.SHA256))
	case uint64(len(h.Metadata)) > math.MaxUint32:
		return nil, fmt.Errorf("%w: metadata of %q is %d bytes", ErrFieldTooLong, h.Name, len(h.Metadata))
	}
	b = binary.LittleEndian.AppendUint64(b, h.Size)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(h.Name))) //nolint:gosec // checked above
	b = append(b, h.Name...)
	b = appendBool(b, h.Binary)
	b = append(b, uint8(h.Compression))
	b = binary.LittleEndian.AppendUint32(b, h.CRC32)
	b = binary.LittleEndian.AppendUint16(b, uint16(len(h.SHA256))) //nolint:gosec // checked above
	b = append(b, h.SHA256...)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(h.Metadata))) //nolint:gosec // checked above
	b = append(b, h.Metadata...)
	return b, nil
}

// decoder reads little-endian primitives and keeps the first error.
type decoder struct {
	r   io.Reader
	buf [16]byte
	err error
}

func (d *decoder) fill(n int) []byte {
	if d.err != nil {
		return d.buf[:n]
	}
	if _, err := io.ReadFull(d.r, d.buf[:n]); err != nil {
		d.err = truncated(err)
	}
	return d.buf[:n]
}

func (d *decoder) u8() uint8   { return d.fill(1)[0] }
func (d *decoder) flag() bool  { return d.u8() != 0 }
func (d *decoder) u16() uint16 { return binary.LittleEndian.Uint16(d.fill(2)) }
func (d *decoder) u32() uint32 { return binary.LittleEndian.Uint32(d.fill(4)) }
func (d *decoder) u64() uint64 { return binary.LittleEndian.Uint64(d.fill(8)) }

func (d *decoder) u128() Checksum {
	return sizing.Uint128FromLE(d.fill(16))
}

// raw reads exactly n bytes. The buffer grows with the data actually
// present, so a corrupt length cannot force a huge allocation.
func (d *decoder) raw(n uint64) []byte {
	if d.err != nil {
		return nil
	}
	if n == 0 {
		return []byte{}
	}
	limit, err := sizing.ToInt64(n, ErrSizeOverflow)
	if err != nil {
		d.err = err
		return nil
	}
	data, err := io.ReadAll(io.LimitReader(d.r, limit))
	if err != nil {
		d.err = err
		return nil
	}
	if uint64(len(data)) != n {
		d.err = truncated(io.ErrUnexpectedEOF)
		return nil
	}
	return data
}

func (d *decoder) str(n uint64) string {
	return string(d.raw(n))
}

func truncated(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

func (d *decoder) fileHeader() (FileHeader, error) {
	var h FileHeader
	h.Magic = d.u32()
	if d.err != nil {
		return h, d.err
	}
	if h.Magic != Magic {
		return h, fmt.Errorf("%w: magic 0x%08x", ErrNotArchive, h.Magic)
	}
	h.Version = d.u8()
	if d.err == nil && h.Version != Version {
		return h, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	h.Recompressed = d.flag()
	h.Origin = d.str(uint64(d.u16()))
	h.Checksum = d.u128()
	h.EntryCount = d.u64()
	return h, d.err
}

func (d *decoder) entryHeader() (EntryHeader, error) {
	var h EntryHeader
	h.Size = d.u64()
	h.Name = d.str(uint64(d.u32()))
	h.Binary = d.flag()
	h.Compression = Compression(d.u8())
	h.CRC32 = d.u32()
	h.SHA256 = d.str(uint64(d.u16()))
	h.Metadata = d.str(uint64(d.u32()))
	if d.err != nil {
		return h, d.err
	}
	if !h.Compression.Valid() {
		return h, fmt.Errorf("%w: element %q uses code %d", ErrUnknownCompression, h.Name, uint8(h.Compression))
	}
	return h, nil
}
