package upkf

import (
	"bufio"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"strings"

	"github.com/opencontainers/go-digest"

	"github.com/ungine/layeredfs/internal/compress"
	"github.com/ungine/layeredfs/internal/errkind"
)

// Load reads the archive at path.
func Load(path string, opts ...Option) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errkind.IO("open", path, err)
	}
	defer f.Close()

	opts = append(opts, func(c *loadConfig) { c.name = path })
	a, err := Read(bufio.NewReader(f), opts...)
	if err != nil {
		return nil, err
	}
	a.path = path
	return a, nil
}

// Read decodes an archive from r.
//
// Every element is read and decompressed before Read returns. Any format,
// integrity or I/O failure aborts the whole read.
func Read(r io.Reader, opts ...Option) (*Archive, error) {
	cfg := newLoadConfig(opts)
	log := cfg.log()
	d := &decoder{r: r}

	hdr, err := d.fileHeader()
	if err != nil {
		return nil, cfg.wrap(err)
	}
	log.Debug("upkf header",
		"path", cfg.name,
		"origin", hdr.Origin,
		"entries", hdr.EntryCount,
		"checksum", hdr.Checksum.String())

	a := New(hdr.Origin)
	a.recompressed = hdr.Recompressed
	a.checksum = hdr.Checksum

	var sum Checksum
	for i := uint64(0); i < hdr.EntryCount; i++ {
		eh, err := d.entryHeader()
		if err != nil {
			return nil, cfg.wrap(err)
		}
		payload := d.raw(eh.Size)
		if d.err != nil {
			return nil, cfg.wrap(fmt.Errorf("element %q: %w", eh.Name, d.err))
		}
		sum = sum.Add32(eh.CRC32)

		elem, err := cfg.decodeElement(&eh, payload)
		if err != nil {
			return nil, cfg.wrap(err)
		}
		a.add(elem)
		log.Debug("upkf element",
			"path", eh.Name,
			"compression", eh.Compression.String(),
			"stored", eh.Size,
			"size", len(elem.Content))
	}

	if sum != hdr.Checksum {
		return nil, cfg.wrap(&IntegrityError{
			Want: hdr.Checksum.String(),
			Got:  sum.String(),
			Err:  ErrChecksumMismatch,
		})
	}
	return a, nil
}

func (c *loadConfig) decodeElement(eh *EntryHeader, payload []byte) (*Element, error) {
	var integrity *Integrity
	if c.verify {
		if got := crc32.ChecksumIEEE(payload); got != eh.CRC32 {
			return nil, &IntegrityError{
				Path: eh.Name,
				Want: fmt.Sprintf("%08x", eh.CRC32),
				Got:  fmt.Sprintf("%08x", got),
				Err:  ErrCRCMismatch,
			}
		}
		if got := digest.FromBytes(payload).Encoded(); !strings.EqualFold(got, eh.SHA256) {
			return nil, &IntegrityError{
				Path: eh.Name,
				Want: eh.SHA256,
				Got:  got,
				Err:  ErrSHAMismatch,
			}
		}
		integrity = &Integrity{CRC32: eh.CRC32, SHA256: eh.SHA256}
	}

	content, err := compress.Decompress(eh.Compression, payload, c.maxElementSize)
	if err != nil {
		return nil, fmt.Errorf("element %q: %w", eh.Name, err)
	}
	return &Element{
		Path:        eh.Name,
		Metadata:    eh.Metadata,
		Binary:      eh.Binary,
		Compression: eh.Compression,
		Content:     content,
		Integrity:   integrity,
	}, nil
}

// wrap attaches the source name to I/O failures. Format, integrity and
// size errors keep their category.
func (c *loadConfig) wrap(err error) error {
	if isCategorized(err) {
		if c.name == "" {
			return err
		}
		return fmt.Errorf("%s: %w", c.name, err)
	}
	return errkind.IO("read", c.name, err)
}
