package layeredfs

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ungine/layeredfs/internal/testutil"
	"github.com/ungine/layeredfs/upkf"
)

func TestFileKinds(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	folder := testutil.WriteFiles(t, filepath.Join(root, "f"), map[string]string{"folder.txt": "folder text"})

	a := upkf.New("mem").
		AddFile("bin.dat", `{"k":"v"}`, []byte{0xff, 0xfe, 0x00}, true, upkf.CompressionLZMA).
		AddTextFile("text.txt", "", "upkf text", upkf.CompressionLZMA2)
	archive := filepath.Join(root, "mem.upkf")
	require.NoError(t, a.Save(archive))

	vpkPath := testutil.WriteVPK(t, root, "pak01", 2, []testutil.VPKFile{
		{Path: "v/split.txt", Data: []byte("preload+archive"), Preload: 8, Archive: 0},
	})

	lfs := New()
	for _, p := range []string{folder, archive, vpkPath} {
		_, err := lfs.AddLayer(p, false)
		require.NoError(t, err)
	}

	tests := []struct {
		name   string
		kind   Kind
		text   string
		binary bool
		meta   string
	}{
		{"folder.txt", KindFolder, "folder text", false, ""},
		{"text.txt", KindUpkf, "upkf text", false, ""},
		{"v/split.txt", KindVpk, "preload+archive", false, ""},
	}
	for _, tt := range tests {
		f, err := lfs.GetFile(tt.name)
		require.NoError(t, err, tt.name)

		assert.Equal(t, tt.kind, f.Kind(), tt.name)
		assert.Equal(t, tt.name, f.Name())
		size, err := f.Size()
		require.NoError(t, err)
		assert.Equal(t, int64(len(tt.text)), size, tt.name)

		s, err := f.ReadString()
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.text, s)

		// Reading twice yields the same content.
		data, err := f.Read()
		require.NoError(t, err)
		assert.Equal(t, tt.text, string(data))

		assert.Equal(t, tt.binary, f.Binary())
		assert.Equal(t, tt.meta, f.Metadata())

		owner, ok := lfs.FindLayer(f.Layer())
		require.True(t, ok)
		assert.Equal(t, tt.kind, owner.Kind())
		require.NoError(t, f.Close())
	}

	f, err := lfs.GetFile("bin.dat")
	require.NoError(t, err)
	assert.True(t, f.Binary())
	assert.Equal(t, `{"k":"v"}`, f.Metadata())
	_, err = f.ReadString()
	assert.ErrorIs(t, err, ErrInvalidUTF8)
	assert.ErrorIs(t, err, ErrFormat)
	data, err := f.Read()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xfe, 0x00}, data)
}

func TestFolderFileClosed(t *testing.T) {
	t.Parallel()

	dir := testutil.WriteFiles(t, t.TempDir(), map[string]string{"a.txt": "a"})
	l, err := NewFolderLayer(dir)
	require.NoError(t, err)

	f, err := l.GetFile("a.txt")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, f.Close())

	_, err = f.Read()
	assert.ErrorIs(t, err, ErrIO)
	_, err = f.Size()
	assert.ErrorIs(t, err, ErrIO)
}

func TestLayerMeta(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	archive := filepath.Join(root, "meta.upkf")
	require.NoError(t, upkf.New("origin-label").AddTextFile("a", "", "a", upkf.CompressionNone).Save(archive))
	vpkPath := testutil.WriteVPK(t, root, "pak01", 1, nil)

	ul, err := NewUpkfLayer(archive)
	require.NoError(t, err)
	m := ul.Meta()
	assert.True(t, m.HasOrigin)
	assert.Equal(t, "origin-label", m.Origin)
	assert.Equal(t, archive, m.Name)
	assert.True(t, m.HasSize)
	assert.Positive(t, m.Size)

	vl, err := NewVpkLayer(vpkPath)
	require.NoError(t, err)
	m = vl.Meta()
	assert.False(t, m.HasOrigin)
	assert.Equal(t, vpkPath, m.Name)
	assert.Equal(t, int64(13), m.Size)
	assert.Equal(t, 0, vl.Directory().Len())

	fl, err := NewFolderLayer(root)
	require.NoError(t, err)
	m = fl.Meta()
	assert.False(t, m.HasSize)
	assert.Equal(t, root, m.Name)

	assert.NotEqual(t, ul.ID(), vl.ID())
	assert.NotEqual(t, vl.ID(), fl.ID())

	_, err = NewFolderLayer(archive)
	assert.ErrorIs(t, err, ErrIO)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "folder", KindFolder.String())
	assert.Equal(t, "upkf", KindUpkf.String())
	assert.Equal(t, "vpk", KindVpk.String())
	assert.Equal(t, "unknown", Kind(42).String())
}
