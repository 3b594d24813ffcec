// Package testutil holds fixture builders shared by package tests.
package testutil

import (
	"encoding/binary"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"
)

// WriteFiles writes files (slash-separated names relative to dir) and
// returns dir. Parent directories are created as needed.
func WriteFiles(t testing.TB, dir string, files map[string]string) string {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
			t.Fatalf("mkdir %s: %v", p, err)
		}
		if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	return dir
}

// DirArchive places a VPKFile's payload after the directory tree.
const DirArchive = -1

// VPKFile describes one entry of a synthetic VPK.
type VPKFile struct {
	// Path is "folder/name.ext"; a missing folder or extension is written
	// as the " " placeholder.
	Path string
	Data []byte

	// Preload is the number of leading Data bytes stored inline in the tree.
	Preload int

	// Archive is DirArchive or a numbered archive index.
	Archive int

	// Terminator overrides the record terminator when non-zero.
	Terminator uint16
}

// VPK is the encoded form of a synthetic VPK.
type VPK struct {
	Dir      []byte
	Archives map[int][]byte
}

type vpkGroup struct {
	ext     string
	folders []string
	files   map[string][]int
}

// BuildVPK encodes a VPK directory of the given version (1 or 2).
func BuildVPK(version uint32, files []VPKFile) VPK {
	var groups []*vpkGroup
	byExt := map[string]*vpkGroup{}
	for i, f := range files {
		folder, base := path.Split(f.Path)
		folder = strings.TrimSuffix(folder, "/")
		if folder == "" {
			folder = " "
		}
		ext := " "
		if dot := strings.LastIndexByte(base, '.'); dot >= 0 {
			ext = base[dot+1:]
		}
		g, ok := byExt[ext]
		if !ok {
			g = &vpkGroup{ext: ext, files: map[string][]int{}}
			byExt[ext] = g
			groups = append(groups, g)
		}
		if _, ok := g.files[folder]; !ok {
			g.folders = append(g.folders, folder)
		}
		g.files[folder] = append(g.files[folder], i)
	}

	out := VPK{Archives: map[int][]byte{}}
	var tree, inline []byte
	le := binary.LittleEndian
	for _, g := range groups {
		tree = append(append(tree, g.ext...), 0)
		for _, folder := range g.folders {
			tree = append(append(tree, folder...), 0)
			for _, i := range g.files[folder] {
				f := files[i]
				base := path.Base(f.Path)
				if g.ext != " " {
					base = strings.TrimSuffix(base, "."+g.ext)
				}
				tree = append(append(tree, base...), 0)

				rest := f.Data[f.Preload:]
				index := uint16(0x7FFF)
				var offset int
				if f.Archive == DirArchive {
					offset = len(inline)
					inline = append(inline, rest...)
				} else {
					index = uint16(f.Archive) //nolint:gosec // test fixture
					offset = len(out.Archives[f.Archive])
					out.Archives[f.Archive] = append(out.Archives[f.Archive], rest...)
				}
				term := f.Terminator
				if term == 0 {
					term = 0xFFFF
				}
				tree = le.AppendUint32(tree, 0)
				tree = le.AppendUint16(tree, uint16(f.Preload)) //nolint:gosec // test fixture
				tree = le.AppendUint16(tree, index)
				tree = le.AppendUint32(tree, uint32(offset))    //nolint:gosec // test fixture
				tree = le.AppendUint32(tree, uint32(len(rest))) //nolint:gosec // test fixture
				tree = le.AppendUint16(tree, term)
				tree = append(tree, f.Data[:f.Preload]...)
			}
			tree = append(tree, 0)
		}
		tree = append(tree, 0)
	}
	tree = append(tree, 0)

	dir := le.AppendUint32(nil, 0x55AA1234)
	dir = le.AppendUint32(dir, version)
	dir = le.AppendUint32(dir, uint32(len(tree))) //nolint:gosec // test fixture
	if version == 2 {
		dir = le.AppendUint32(dir, uint32(len(inline))) //nolint:gosec // test fixture
		dir = le.AppendUint32(dir, 0)
		dir = le.AppendUint32(dir, 48)
		dir = le.AppendUint32(dir, 0)
	}
	dir = append(dir, tree...)
	out.Dir = append(dir, inline...)
	return out
}

// WriteVPK writes "<name>_dir.vpk" and its numbered archives into dir and
// returns the directory file path.
func WriteVPK(t testing.TB, dir, name string, version uint32, files []VPKFile) string {
	t.Helper()
	v := BuildVPK(version, files)
	dirPath := filepath.Join(dir, name+"_dir.vpk")
	if err := os.WriteFile(dirPath, v.Dir, 0o600); err != nil {
		t.Fatalf("write %s: %v", dirPath, err)
	}
	for index, data := range v.Archives {
		p := filepath.Join(dir, fmt.Sprintf("%s_%03d.vpk", name, index))
		if err := os.WriteFile(p, data, 0o600); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	return dirPath
}
