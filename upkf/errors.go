package upkf

import (
	"errors"
	"fmt"

	"github.com/ungine/layeredfs/internal/compress"
	"github.com/ungine/layeredfs/internal/errkind"
)

// Format errors.
var (
	// ErrNotArchive is returned when the magic signature is not "UPKF".
	ErrNotArchive = fmt.Errorf("upkf: not an archive: %w", errkind.ErrFormat)

	// ErrUnsupportedVersion is returned for a header version other than Version.
	ErrUnsupportedVersion = fmt.Errorf("upkf: unsupported version: %w", errkind.ErrFormat)

	// ErrFieldTooLong is returned when a string does not fit its length prefix.
	ErrFieldTooLong = fmt.Errorf("upkf: field too long: %w", errkind.ErrFormat)

	// ErrUnknownCompression is returned for a compression code outside the known set.
	ErrUnknownCompression = compress.ErrUnknownCompression
)

// Integrity errors.
var (
	// ErrCRCMismatch is returned when an element payload does not match its CRC32.
	ErrCRCMismatch = fmt.Errorf("upkf: crc32 mismatch: %w", errkind.ErrIntegrity)

	// ErrSHAMismatch is returned when an element payload does not match its SHA-256.
	ErrSHAMismatch = fmt.Errorf("upkf: sha256 mismatch: %w", errkind.ErrIntegrity)

	// ErrChecksumMismatch is returned when the sum of the element CRC32s does
	// not match the header checksum.
	ErrChecksumMismatch = fmt.Errorf("upkf: archive checksum mismatch: %w", errkind.ErrIntegrity)

	// ErrDecompression is returned when an element payload fails to decode.
	ErrDecompression = compress.ErrDecompression
)

var (
	// ErrNotFound is returned when an archive has no element at a path.
	ErrNotFound = fmt.Errorf("upkf: %w", errkind.ErrNotFound)

	// ErrSizeOverflow is returned when an element exceeds the configured size limit.
	ErrSizeOverflow = compress.ErrSizeOverflow
)

// IntegrityError reports a checksum failure for a single element or for the
// archive as a whole (empty Path).
type IntegrityError struct {
	Path string
	Want string
	Got  string
	Err  error
}

func (e *IntegrityError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%v: want %s, got %s", e.Err, e.Want, e.Got)
	}
	return fmt.Sprintf("%v: element %q: want %s, got %s", e.Err, e.Path, e.Want, e.Got)
}

func (e *IntegrityError) Unwrap() error { return e.Err }

// IsIntegrity reports whether err is any integrity failure.
func IsIntegrity(err error) bool {
	return errors.Is(err, errkind.ErrIntegrity)
}

func isCategorized(err error) bool {
	return errors.Is(err, errkind.ErrFormat) ||
		errors.Is(err, errkind.ErrIntegrity) ||
		errors.Is(err, ErrSizeOverflow)
}
