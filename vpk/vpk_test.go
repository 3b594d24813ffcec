package vpk

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ungine/layeredfs/internal/errkind"
	"github.com/ungine/layeredfs/internal/testutil"
)

func twoFolderFiles(n int) []testutil.VPKFile {
	files := make([]testutil.VPKFile, 0, n)
	for i := range n {
		folder := "materials"
		if i%2 == 1 {
			folder = "scripts/vscripts"
		}
		files = append(files, testutil.VPKFile{
			Path:    fmt.Sprintf("%s/file%d.txt", folder, i),
			Data:    bytes.Repeat([]byte{byte('a' + i)}, 10+i),
			Archive: testutil.DirArchive,
		})
	}
	return files
}

func TestParseV1(t *testing.T) {
	t.Parallel()

	const n = 7
	files := twoFolderFiles(n)
	v := testutil.BuildVPK(1, files)

	d, err := Parse(bytes.NewReader(v.Dir))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), d.Version)
	assert.Equal(t, int64(12), d.HeaderSize())
	require.Equal(t, n, d.Len())

	for _, f := range files {
		e, ok := d.Lookup(f.Path)
		require.True(t, ok, f.Path)
		assert.Equal(t, uint32(len(f.Data)), e.Length, f.Path)
		assert.Equal(t, int64(len(f.Data)), e.Size())
		assert.Equal(t, DirArchiveIndex, e.ArchiveIndex)
		assert.Equal(t, EntryTerminator, e.Terminator)
	}
	assert.True(t, d.Contains("materials/file0.txt"))
	assert.False(t, d.Contains("materials/file1.txt"))
}

func TestOpenAndReadInline(t *testing.T) {
	t.Parallel()

	for _, version := range []uint32{1, 2} {
		t.Run(fmt.Sprint("v", version), func(t *testing.T) {
			t.Parallel()

			files := twoFolderFiles(4)
			path := testutil.WriteVPK(t, t.TempDir(), "pak01", version, files)

			d, err := Open(path)
			require.NoError(t, err)
			assert.Equal(t, path, d.Path)
			assert.Equal(t, version, d.Version)

			for _, f := range files {
				got, err := d.ReadFile(f.Path)
				require.NoError(t, err, f.Path)
				assert.Equal(t, f.Data, got, f.Path)
			}
		})
	}
}

func TestV2Header(t *testing.T) {
	t.Parallel()

	v := testutil.BuildVPK(2, twoFolderFiles(2))
	d, err := Parse(bytes.NewReader(v.Dir))
	require.NoError(t, err)
	assert.Equal(t, int64(28), d.HeaderSize())
	assert.Equal(t, uint32(48), d.OtherMD5SectionSize)
	assert.Equal(t, uint32(10+11), d.FileDataSectionSize)
}

func TestPlaceholderPaths(t *testing.T) {
	t.Parallel()

	files := []testutil.VPKFile{
		{Path: "root.txt", Data: []byte("r"), Archive: testutil.DirArchive},
		{Path: "bin/noext", Data: []byte("n"), Archive: testutil.DirArchive},
		{Path: "README", Data: []byte("x"), Archive: testutil.DirArchive},
	}
	d, err := Parse(bytes.NewReader(testutil.BuildVPK(1, files).Dir))
	require.NoError(t, err)

	var paths []string
	for e := range d.Entries() {
		paths = append(paths, e.Path)
	}
	assert.ElementsMatch(t, []string{"root.txt", "bin/noext", "README"}, paths)
}

func TestPreloadAndArchives(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	files := []testutil.VPKFile{
		{Path: "a/preloaded.bin", Data: []byte("entirely inline"), Preload: len("entirely inline"), Archive: testutil.DirArchive},
		{Path: "a/split.bin", Data: []byte("head+tail"), Preload: 5, Archive: 0},
		{Path: "b/zero.bin", Data: []byte("in archive zero"), Archive: 0},
		{Path: "b/two.bin", Data: []byte("in archive two"), Archive: 2},
	}
	path := testutil.WriteVPK(t, dir, "pak01", 2, files)

	d, err := Open(path)
	require.NoError(t, err)

	for _, f := range files {
		got, err := d.ReadFile(f.Path)
		require.NoError(t, err, f.Path)
		assert.Equal(t, string(f.Data), string(got), f.Path)
	}

	e, _ := d.Lookup("a/split.bin")
	assert.Equal(t, []byte("head+"), e.Preload)
	assert.Equal(t, uint16(5), e.PreloadBytes)

	p, err := d.ArchivePath(2)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "pak01_002.vpk"), p)
}

func TestArchivePathWithoutDirSuffix(t *testing.T) {
	t.Parallel()

	d := &Directory{Path: "/games/single.vpk"}
	_, err := d.ArchivePath(1)
	assert.ErrorIs(t, err, ErrNoArchives)

	p, err := d.ArchivePath(DirArchiveIndex)
	require.NoError(t, err)
	assert.Equal(t, "/games/single.vpk", p)
}

func TestInvalidTerminator(t *testing.T) {
	t.Parallel()

	files := twoFolderFiles(3)
	files[1].Terminator = 0xBEEF
	_, err := Parse(bytes.NewReader(testutil.BuildVPK(1, files).Dir))
	require.Error(t, err)

	var te *TerminatorError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, uint16(0xBEEF), te.Value)
	assert.Equal(t, files[1].Path, te.Path)
	assert.ErrorIs(t, err, ErrInvalidTerminator)
	assert.ErrorIs(t, err, errkind.ErrFormat)

	v, ok := IsTerminator(err)
	assert.True(t, ok)
	assert.Equal(t, uint16(0xBEEF), v)
}

func TestInvalidSignatureAndVersion(t *testing.T) {
	t.Parallel()

	v := testutil.BuildVPK(1, twoFolderFiles(1)).Dir

	bad := bytes.Clone(v)
	bad[0] = 0
	_, err := Parse(bytes.NewReader(bad))
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.ErrorIs(t, err, errkind.ErrFormat)

	bad = bytes.Clone(v)
	bad[4] = 3
	_, err = Parse(bytes.NewReader(bad))
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestTruncatedTree(t *testing.T) {
	t.Parallel()

	v := testutil.BuildVPK(1, twoFolderFiles(3)).Dir
	for _, n := range []int{0, 6, 20, 40} {
		assert.NotPanics(t, func() {
			_, err := Parse(bytes.NewReader(v[:n]))
			assert.ErrorIs(t, err, errkind.ErrIO, n)
		})
	}
}

func TestShortRead(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	files := []testutil.VPKFile{
		{Path: "a/big.bin", Data: bytes.Repeat([]byte("x"), 64), Archive: 0},
	}
	path := testutil.WriteVPK(t, dir, "pak01", 1, files)
	archive := filepath.Join(dir, "pak01_000.vpk")
	require.NoError(t, os.WriteFile(archive, []byte("short"), 0o600))

	d, err := Open(path)
	require.NoError(t, err)
	_, err = d.ReadFile("a/big.bin")
	assert.ErrorIs(t, err, errkind.ErrIO)

	require.NoError(t, os.Remove(archive))
	_, err = d.ReadFile("a/big.bin")
	assert.ErrorIs(t, err, errkind.ErrIO)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadFileNotFound(t *testing.T) {
	t.Parallel()

	d, err := Parse(bytes.NewReader(testutil.BuildVPK(1, nil).Dir))
	require.NoError(t, err)
	assert.Equal(t, 0, d.Len())

	_, err = d.ReadFile("nope.txt")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
