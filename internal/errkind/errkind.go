// Package errkind defines the error categories shared by every layeredfs package.
//
// Concrete errors wrap exactly one category so callers can branch with
// errors.Is on the category without knowing which backend produced it.
package errkind

import (
	"errors"
	"fmt"
	"io/fs"
)

// Error categories.
var (
	// ErrFormat marks data that is not in the expected binary format
	// (bad magic, unsupported version, invalid terminator).
	ErrFormat = errors.New("format error")

	// ErrIntegrity marks content whose recorded checksums do not match.
	ErrIntegrity = errors.New("integrity error")

	// ErrNotFound marks a path absent from a layer or from every layer.
	// It matches fs.ErrNotExist.
	ErrNotFound = fmt.Errorf("not found: %w", fs.ErrNotExist)

	// ErrUnsupported marks a path no backend knows how to handle.
	ErrUnsupported = errors.New("unsupported backend")

	// ErrIO marks a failed filesystem open, seek, read or write.
	ErrIO = errors.New("i/o error")
)

// IO wraps err as an *fs.PathError whose chain contains both ErrIO and err.
// A nil err returns nil.
func IO(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return &fs.PathError{Op: op, Path: path, Err: fmt.Errorf("%w: %w", ErrIO, pe.Err)}
	}
	return &fs.PathError{Op: op, Path: path, Err: fmt.Errorf("%w: %w", ErrIO, err)}
}
