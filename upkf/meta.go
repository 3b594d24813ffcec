package upkf

import (
	"bytes"
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/ungine/layeredfs/internal/compress"
	"github.com/ungine/layeredfs/internal/errkind"
)

// MetaExt is the extension of the sidecar file read by Build.
// The sidecar of "textures/a.png" is "textures/a.png.upkfmeta".
const MetaExt = ".upkfmeta"

// ErrInvalidMeta is returned when a sidecar document cannot be parsed.
var ErrInvalidMeta = fmt.Errorf("upkf: invalid %s document: %w", MetaExt, errkind.ErrFormat)

// Meta holds the per-element settings read from a sidecar document.
type Meta struct {
	Compression Compression
	Binary      bool
	Metadata    string
}

// DefaultMeta returns the settings used when no sidecar exists.
func DefaultMeta(c Compression) Meta {
	return Meta{Compression: c}
}

type metaDocument struct {
	Compression json.RawMessage `json:"compression"`
	Binary      *bool           `json:"binary"`
	Metadata    json.RawMessage `json:"metadata"`
}

// ParseMeta parses a sidecar document.
//
// Recognized keys are "compression" (name or numeric code), "binary" and
// "metadata". The metadata value is kept as compact JSON. Missing keys fall
// back to def, false and "" respectively.
func ParseMeta(data []byte, def Compression) (Meta, error) {
	var doc metaDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return Meta{}, fmt.Errorf("%w: %v", ErrInvalidMeta, err)
	}

	m := DefaultMeta(def)
	c, err := parseMetaCompression(doc.Compression)
	if err != nil {
		return Meta{}, err
	}
	if c != nil {
		m.Compression = *c
	}
	if doc.Binary != nil {
		m.Binary = *doc.Binary
	}
	if len(doc.Metadata) > 0 && !bytes.Equal(doc.Metadata, []byte("null")) {
		var buf bytes.Buffer
		if err := json.Compact(&buf, doc.Metadata); err != nil {
			return Meta{}, fmt.Errorf("%w: metadata: %v", ErrInvalidMeta, err)
		}
		m.Metadata = buf.String()
	}
	return m, nil
}

func parseMetaCompression(raw json.RawMessage) (*Compression, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		c, err := compress.ParseType(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidMeta, err)
		}
		return &c, nil
	}
	var code uint8
	if err := json.Unmarshal(raw, &code); err != nil {
		return nil, fmt.Errorf("%w: compression: %v", ErrInvalidMeta, err)
	}
	c := Compression(code)
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %w: %d", ErrInvalidMeta, ErrUnknownCompression, code)
	}
	return &c, nil
}

// LoadMeta reads and parses the sidecar document at path.
func LoadMeta(path string, def Compression) (Meta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Meta{}, errkind.IO("read", path, err)
	}
	m, err := ParseMeta(data, def)
	if err != nil {
		return Meta{}, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}
