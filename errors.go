package layeredfs

import (
	"fmt"

	"github.com/ungine/layeredfs/internal/errkind"
	"github.com/ungine/layeredfs/upkf"
	"github.com/ungine/layeredfs/vpk"
)

// Error categories. Every error returned by this module wraps exactly one.
var (
	// ErrFormat marks bad magic numbers, unsupported versions and invalid
	// VPK entry terminators.
	ErrFormat = errkind.ErrFormat

	// ErrIntegrity marks CRC32, SHA-256 and aggregate checksum mismatches.
	ErrIntegrity = errkind.ErrIntegrity

	// ErrNotFound marks a path absent from every layer. It matches fs.ErrNotExist.
	ErrNotFound = errkind.ErrNotFound

	// ErrUnsupported marks a path no provider recognizes.
	ErrUnsupported = errkind.ErrUnsupported

	// ErrIO marks failed filesystem operations.
	ErrIO = errkind.ErrIO
)

// Errors re-exported from upkf.
var (
	// ErrNotArchive is returned when a UPKF file has the wrong magic number.
	ErrNotArchive = upkf.ErrNotArchive

	// ErrCRCMismatch is returned when a UPKF payload does not match its CRC32.
	ErrCRCMismatch = upkf.ErrCRCMismatch

	// ErrSHAMismatch is returned when a UPKF payload does not match its SHA-256.
	ErrSHAMismatch = upkf.ErrSHAMismatch

	// ErrChecksumMismatch is returned when a UPKF aggregate checksum does not match.
	ErrChecksumMismatch = upkf.ErrChecksumMismatch
)

// Errors re-exported from vpk.
var (
	// ErrInvalidSignature is returned when a VPK has the wrong signature.
	ErrInvalidSignature = vpk.ErrInvalidSignature

	// ErrInvalidTerminator is returned when a VPK entry record is corrupt.
	ErrInvalidTerminator = vpk.ErrInvalidTerminator
)

var (
	// ErrNoExtension is returned by AddLayer for a path that is not a
	// directory and has no extension to select a provider by.
	ErrNoExtension = fmt.Errorf("layeredfs: path has no extension: %w", errkind.ErrUnsupported)

	// ErrInvalidUTF8 is returned by File.ReadString for content that is not valid UTF-8.
	ErrInvalidUTF8 = fmt.Errorf("layeredfs: content is not valid utf-8: %w", errkind.ErrFormat)
)

// UnsupportedError is returned by AddLayer when no provider supports a path
// that has an extension.
type UnsupportedError struct {
	Path string
	Ext  string

	// Err is the reason the path could not be inspected, if any.
	Err error
}

func (e *UnsupportedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("layeredfs: no provider for %q (extension %q): %v", e.Path, e.Ext, e.Err)
	}
	return fmt.Sprintf("layeredfs: no provider for %q (extension %q)", e.Path, e.Ext)
}

func (e *UnsupportedError) Unwrap() []error {
	if e.Err != nil {
		return []error{errkind.ErrUnsupported, e.Err}
	}
	return []error{errkind.ErrUnsupported}
}
