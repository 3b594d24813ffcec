package upkf

import (
	"bufio"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"

	"github.com/ungine/layeredfs/internal/compress"
	"github.com/ungine/layeredfs/internal/errkind"
)

type stagedEntry struct {
	header  []byte
	payload []byte
}

// Write encodes the archive to w and returns the number of bytes written.
//
// Every element is compressed and checksummed before anything is written,
// because the header carrying the aggregate checksum precedes the entries.
// On success the archive's Checksum reflects the written file.
func (a *Archive) Write(w io.Writer) (int64, error) {
	staged := make([]stagedEntry, 0, len(a.elements))
	var sum Checksum
	for _, e := range a.elements {
		payload, err := compress.Compress(e.Compression, e.Content)
		if err != nil {
			return 0, fmt.Errorf("upkf: compress %q: %w", e.Path, err)
		}
		eh := EntryHeader{
			Size:        uint64(len(payload)),
			Name:        e.Path,
			Binary:      e.Binary,
			Compression: e.Compression,
			CRC32:       crc32.ChecksumIEEE(payload),
			SHA256:      digest.FromBytes(payload).Encoded(),
			Metadata:    e.Metadata,
		}
		hdr, err := eh.appendTo(nil)
		if err != nil {
			return 0, err
		}
		sum = sum.Add32(eh.CRC32)
		staged = append(staged, stagedEntry{header: hdr, payload: payload})
	}

	fh := FileHeader{
		Magic:        Magic,
		Version:      Version,
		Recompressed: a.recompressed,
		Origin:       a.origin,
		Checksum:     sum,
		EntryCount:   uint64(len(staged)),
	}
	hdr, err := fh.appendTo(nil)
	if err != nil {
		return 0, err
	}

	cw := &countingWriter{w: w}
	if _, err := cw.Write(hdr); err != nil {
		return cw.n, err
	}
	for _, s := range staged {
		if _, err := cw.Write(s.header); err != nil {
			return cw.n, err
		}
		if _, err := cw.Write(s.payload); err != nil {
			return cw.n, err
		}
	}
	a.checksum = sum
	return cw.n, nil
}

// Save writes the archive to path.
//
// Uses atomic writes (temp file + rename) to prevent partial writes on failure.
// Parent directories are created as needed. On success Path returns path.
func (a *Archive) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return errkind.IO("mkdir", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".upkf-*")
	if err != nil {
		return errkind.IO("create", path, err)
	}
	tmpPath := tmp.Name()

	bw := bufio.NewWriter(tmp)
	if _, err := a.Write(bw); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return wrapWrite(path, err)
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errkind.IO("write", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errkind.IO("write", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errkind.IO("rename", path, err)
	}
	a.path = path
	return nil
}

func wrapWrite(path string, err error) error {
	if isCategorized(err) {
		return fmt.Errorf("%s: %w", path, err)
	}
	return errkind.IO("write", path, err)
}

// countingWriter tracks the number of bytes written.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
