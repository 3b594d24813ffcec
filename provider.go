package layeredfs

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ungine/layeredfs/upkf"
)

// Provider recognizes a filesystem path and builds the matching layer.
type Provider interface {
	// Name identifies the provider in logs.
	Name() string

	// Supports reports whether the provider can build a layer from path.
	Supports(path string) bool

	// Create builds the layer. It is only called after Supports returned true.
	Create(path string) (Layer, error)
}

// DefaultProviders returns the folder, UPKF and VPK providers, in that order.
// UPKF archives are loaded with verification.
func DefaultProviders() []Provider {
	return []Provider{
		FolderProvider{},
		&UpkfProvider{Verify: true},
		VpkProvider{},
	}
}

// FolderProvider builds a FolderLayer from any existing directory.
type FolderProvider struct{}

// Name returns "folder".
func (FolderProvider) Name() string { return "folder" }

// Supports reports whether path is a directory.
func (FolderProvider) Supports(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Create builds a FolderLayer.
func (FolderProvider) Create(path string) (Layer, error) {
	return NewFolderLayer(path)
}

// UpkfProvider builds an UpkfLayer from an existing ".upkf" file.
type UpkfProvider struct {
	// Verify checks every element CRC32 and SHA-256 while loading.
	Verify bool

	// MaxElementSize caps a decompressed element.
	// Zero uses upkf.DefaultMaxElementSize.
	MaxElementSize uint64

	// Logger receives load events. Nil disables logging.
	Logger *slog.Logger
}

// Name returns "upkf".
func (*UpkfProvider) Name() string { return "upkf" }

// Supports reports whether path is a regular file with a ".upkf" extension.
func (*UpkfProvider) Supports(path string) bool {
	return hasExt(path, ".upkf") && isRegular(path)
}

// Create loads the archive.
func (p *UpkfProvider) Create(path string) (Layer, error) {
	opts := []upkf.Option{upkf.WithVerify(p.Verify), upkf.WithLogger(p.Logger)}
	if p.MaxElementSize > 0 {
		opts = append(opts, upkf.WithMaxElementSize(p.MaxElementSize))
	}
	return NewUpkfLayer(path, opts...)
}

// VpkProvider builds a VpkLayer from an existing ".vpk" file.
type VpkProvider struct{}

// Name returns "vpk".
func (VpkProvider) Name() string { return "vpk" }

// Supports reports whether path is a regular file with a ".vpk" extension.
func (VpkProvider) Supports(path string) bool {
	return hasExt(path, ".vpk") && isRegular(path)
}

// Create parses the VPK directory.
func (VpkProvider) Create(path string) (Layer, error) {
	return NewVpkLayer(path)
}

func hasExt(path, ext string) bool {
	return strings.EqualFold(filepath.Ext(path), ext)
}

func isRegular(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
