package layeredfs

import (
	"github.com/google/uuid"
)

// Kind identifies the backing storage of a layer or file.
type Kind uint8

// Backing kinds.
const (
	KindFolder Kind = iota
	KindUpkf
	KindVpk
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindFolder:
		return "folder"
	case KindUpkf:
		return "upkf"
	case KindVpk:
		return "vpk"
	default:
		return "unknown"
	}
}

// ID is the stable identity of a layer. It is generated once when the
// layer is constructed and never derived from its address.
type ID = uuid.UUID

func newID() ID {
	return uuid.New()
}

// Meta describes a layer.
type Meta struct {
	// Origin is the provenance label of a UPKF archive.
	Origin    string
	HasOrigin bool

	// Name is the directory or archive path the layer was built from.
	Name string

	// Size is the size in bytes of the backing archive file.
	Size    int64
	HasSize bool
}

// Layer is one content source taking part in path resolution.
//
// Names are slash-separated paths relative to the layer root. Layers
// reject names that do not satisfy fs.ValidPath.
type Layer interface {
	// Resolve returns the concrete location of name: a filesystem path for
	// folders, "archive!member" for archives. It does not check existence.
	Resolve(name string) string

	// Contains reports whether the layer holds name.
	Contains(name string) bool

	// GetFile returns a handle to name.
	GetFile(name string) (*File, error)

	// Meta describes the layer.
	Meta() Meta

	// ID returns the layer identity.
	ID() ID

	// Kind returns the backing kind.
	Kind() Kind
}

// Compile-time interface checks.
var (
	_ Layer = (*FolderLayer)(nil)
	_ Layer = (*UpkfLayer)(nil)
	_ Layer = (*VpkLayer)(nil)
)
