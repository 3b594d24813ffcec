package vpk

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ungine/layeredfs/internal/errkind"
)

type headerV1 struct {
	Signature  uint32
	Version    uint32
	TreeLength uint32
}

type headerV2 struct {
	FileDataSectionSize   uint32
	ArchiveMD5SectionSize uint32
	OtherMD5SectionSize   uint32
	SignatureSectionSize  uint32
}

type record struct {
	CRC          uint32
	PreloadBytes uint16
	ArchiveIndex uint16
	Offset       uint32
	Length       uint32
	Terminator   uint16
}

// Open parses the VPK directory at path.
func Open(path string) (*Directory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errkind.IO("open", path, err)
	}
	defer f.Close()

	d, err := parse(bufio.NewReader(f), path)
	if err != nil {
		return nil, err
	}
	d.Path = path
	return d, nil
}

// Parse reads a VPK directory from r.
//
// Entries of the returned directory whose payload is not fully preloaded
// cannot be read until Path is set to the directory file.
func Parse(r io.Reader) (*Directory, error) {
	return parse(r, "")
}

func parse(r io.Reader, name string) (*Directory, error) {
	var h1 headerV1
	if err := binary.Read(r, binary.LittleEndian, &h1); err != nil {
		return nil, ioErr(name, "read header", err)
	}
	if h1.Signature != Signature {
		return nil, fmt.Errorf("%w: 0x%08x", ErrInvalidSignature, h1.Signature)
	}

	d := &Directory{Version: h1.Version, TreeLength: h1.TreeLength}
	switch h1.Version {
	case 1:
	case 2:
		var h2 headerV2
		if err := binary.Read(r, binary.LittleEndian, &h2); err != nil {
			return nil, ioErr(name, "read v2 header", err)
		}
		d.FileDataSectionSize = h2.FileDataSectionSize
		d.ArchiveMD5SectionSize = h2.ArchiveMD5SectionSize
		d.OtherMD5SectionSize = h2.OtherMD5SectionSize
		d.SignatureSectionSize = h2.SignatureSectionSize
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h1.Version)
	}

	if err := d.readTree(bufio.NewReader(io.LimitReader(r, int64(d.TreeLength))), name); err != nil {
		return nil, err
	}
	return d, nil
}

// readTree walks the extension, folder and filename levels. An empty string
// ends the current level.
func (d *Directory) readTree(b *bufio.Reader, name string) error {
	for {
		ext, err := readNullString(b)
		if err != nil {
			return ioErr(name, "read tree extension", err)
		}
		if ext == "" {
			return nil
		}
		for {
			folder, err := readNullString(b)
			if err != nil {
				return ioErr(name, "read tree folder", err)
			}
			if folder == "" {
				break
			}
			for {
				file, err := readNullString(b)
				if err != nil {
					return ioErr(name, "read tree filename", err)
				}
				if file == "" {
					break
				}
				e, err := readEntry(b, joinPath(folder, file, ext), name)
				if err != nil {
					return err
				}
				d.add(e)
			}
		}
	}
}

func joinPath(folder, file, ext string) string {
	p := file
	if ext != " " {
		p += "." + ext
	}
	if folder != " " {
		p = folder + "/" + p
	}
	return p
}

func readEntry(b *bufio.Reader, path, name string) (*Entry, error) {
	var rec record
	if err := binary.Read(b, binary.LittleEndian, &rec); err != nil {
		return nil, ioErr(name, fmt.Sprintf("read entry %q", path), err)
	}
	if rec.Terminator != EntryTerminator {
		return nil, &TerminatorError{Path: path, Value: rec.Terminator}
	}
	e := &Entry{
		Path:         path,
		CRC:          rec.CRC,
		PreloadBytes: rec.PreloadBytes,
		ArchiveIndex: rec.ArchiveIndex,
		Offset:       rec.Offset,
		Length:       rec.Length,
		Terminator:   rec.Terminator,
		Preload:      make([]byte, rec.PreloadBytes),
	}
	if _, err := io.ReadFull(b, e.Preload); err != nil {
		return nil, ioErr(name, fmt.Sprintf("read preload of %q", path), err)
	}
	return e, nil
}

func readNullString(r io.ByteReader) (string, error) {
	var s []byte
	for {
		c, err := r.ReadByte()
		if err != nil {
			return string(s), err
		}
		if c == 0 {
			return string(s), nil
		}
		s = append(s, c)
	}
}

func ioErr(name, op string, err error) error {
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return errkind.IO(op, name, err)
}
