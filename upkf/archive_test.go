package upkf

import (
	"bytes"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ungine/layeredfs/internal/errkind"
)

var allCompressions = []Compression{CompressionNone, CompressionLZMA, CompressionLZMA2, CompressionGZIP}

func sampleArchive() *Archive {
	a := New("sample")
	for i, c := range allCompressions {
		text := string(bytes.Repeat([]byte("text payload "), 50*(i+1)))
		a.AddTextFile("text/"+c.String()+".txt", `{"kind":"text"}`, text, c)
		bin := bytes.Repeat([]byte{0x00, 0x01, 0xfe, byte(i)}, 300)
		a.AddBinaryFile("bin/"+c.String()+".dat", "", bin, c)
	}
	a.AddTextFile("empty.txt", "", "", CompressionGZIP)
	return a
}

func encode(t *testing.T, a *Archive) []byte {
	t.Helper()
	var buf bytes.Buffer
	n, err := a.Write(&buf)
	require.NoError(t, err)
	require.Equal(t, int64(buf.Len()), n)
	return buf.Bytes()
}

func saveArchive(t *testing.T, a *Archive) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "archive.upkf")
	require.NoError(t, a.Save(path))
	return path
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	src := sampleArchive()
	path := saveArchive(t, src)
	assert.Equal(t, path, src.Path())

	got, err := Load(path, WithVerify(true))
	require.NoError(t, err)

	assert.Equal(t, "sample", got.Origin())
	assert.Equal(t, path, got.Path())
	assert.Equal(t, src.Checksum(), got.Checksum())
	require.Equal(t, src.Len(), got.Len())

	var want []*Element
	for e := range src.Elements() {
		want = append(want, e)
	}
	i := 0
	for e := range got.Elements() {
		w := want[i]
		assert.Equal(t, w.Path, e.Path)
		assert.Equal(t, w.Metadata, e.Metadata)
		assert.Equal(t, w.Binary, e.Binary)
		assert.Equal(t, w.Compression, e.Compression)
		assert.True(t, bytes.Equal(w.Content, e.Content), e.Path)
		require.NotNil(t, e.Integrity, e.Path)
		assert.Len(t, e.Integrity.SHA256, 64)
		i++
	}
	assert.Equal(t, src.Size(), got.Size())
}

func TestReadWithoutVerifyHasNoIntegrity(t *testing.T) {
	t.Parallel()

	data := encode(t, sampleArchive())
	got, err := Read(bytes.NewReader(data))
	require.NoError(t, err)
	for e := range got.Elements() {
		assert.Nil(t, e.Integrity, e.Path)
	}
}

func TestHeaderLayout(t *testing.T) {
	t.Parallel()

	data := encode(t, New("o"))
	// magic, version, recompressed, origin, zero checksum, zero entries
	want := []byte{0x55, 0x50, 0x4b, 0x46, 0x00, 0x00, 0x01, 0x00, 'o'}
	want = append(want, make([]byte, 16+8)...)
	assert.Equal(t, want, data)
}

func TestEntryLayout(t *testing.T) {
	t.Parallel()

	content := []byte("abc")
	a := New("").AddFile("k", "m", content, true, CompressionNone)
	data := encode(t, a)

	crc := crc32.ChecksumIEEE(content)
	hdrLen := 4 + 1 + 1 + 2 + 16 + 8
	entry := data[hdrLen:]

	assert.Equal(t, []byte{3, 0, 0, 0, 0, 0, 0, 0}, entry[:8])
	assert.Equal(t, []byte{1, 0, 0, 0, 'k'}, entry[8:13])
	assert.Equal(t, byte(1), entry[13])
	assert.Equal(t, byte(CompressionNone), entry[14])
	assert.Equal(t, crc, uint32(entry[15])|uint32(entry[16])<<8|uint32(entry[17])<<16|uint32(entry[18])<<24)
	assert.Equal(t, []byte{64, 0}, entry[19:21])
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", string(entry[21:85]))
	assert.Equal(t, []byte{1, 0, 0, 0, 'm'}, entry[85:90])
	assert.Equal(t, content, entry[90:])
}

func TestChecksumIsWrappingSumOfCRCs(t *testing.T) {
	t.Parallel()

	a := New("sum").
		AddTextFile("a", "", "first", CompressionNone).
		AddTextFile("b", "", "second", CompressionNone)
	data := encode(t, a)

	want := Checksum{}.Add32(crc32.ChecksumIEEE([]byte("first"))).Add32(crc32.ChecksumIEEE([]byte("second")))
	assert.Equal(t, want, a.Checksum())

	got, err := Read(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, want, got.Checksum())
}

func TestPayloadByteFlip(t *testing.T) {
	t.Parallel()

	for _, c := range allCompressions {
		t.Run(c.String(), func(t *testing.T) {
			t.Parallel()

			a := New("flip").AddTextFile("a.txt", "", string(bytes.Repeat([]byte("flip me "), 200)), c)
			data := encode(t, a)
			// A single element ends the file, so the last byte is payload.
			data[len(data)-1] ^= 0xff

			_, err := Read(bytes.NewReader(data), WithVerify(true))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrCRCMismatch)
			assert.ErrorIs(t, err, errkind.ErrIntegrity)
			var ie *IntegrityError
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, "a.txt", ie.Path)

			assert.NotPanics(t, func() {
				_, _ = Read(bytes.NewReader(data))
			})
		})
	}
}

func TestPayloadByteFlipWithoutVerifyStillLoads(t *testing.T) {
	t.Parallel()

	a := New("flip").AddTextFile("a.txt", "", "plain", CompressionNone)
	data := encode(t, a)
	data[len(data)-1] ^= 0xff

	got, err := Read(bytes.NewReader(data))
	require.NoError(t, err)
	e, ok := got.Lookup("a.txt")
	require.True(t, ok)
	assert.NotEqual(t, "plain", string(e.Content))
}

func TestSHAMismatch(t *testing.T) {
	t.Parallel()

	a := New("").AddTextFile("a", "", "abc", CompressionNone)
	data := encode(t, a)
	hdrLen := 4 + 1 + 1 + 2 + 16 + 8
	shaStart := hdrLen + 8 + 4 + 1 + 1 + 1 + 4 + 2
	require.Equal(t, byte('b'), data[shaStart])
	data[shaStart] = 'f'

	_, err := Read(bytes.NewReader(data), WithVerify(true))
	assert.ErrorIs(t, err, ErrSHAMismatch)
}

func TestAggregateChecksumMismatch(t *testing.T) {
	t.Parallel()

	data := encode(t, sampleArchive())
	checksumAt := 4 + 1 + 1 + 2 + len("sample")
	data[checksumAt] ^= 0x01

	_, err := Read(bytes.NewReader(data))
	require.ErrorIs(t, err, ErrChecksumMismatch)
	var ie *IntegrityError
	require.ErrorAs(t, err, &ie)
	assert.Empty(t, ie.Path)
}

func TestMagicRejection(t *testing.T) {
	t.Parallel()

	inputs := map[string][]byte{
		"zip":     []byte("PK\x03\x04rest of file"),
		"vpk":     {0x34, 0x12, 0xaa, 0x55, 1, 0, 0, 0},
		"swapped": {0x46, 0x4b, 0x50, 0x55, 0},
	}
	for name, data := range inputs {
		assert.NotPanics(t, func() {
			_, err := Read(bytes.NewReader(data))
			assert.ErrorIs(t, err, ErrNotArchive, name)
			assert.ErrorIs(t, err, errkind.ErrFormat, name)
		})
	}

	path := filepath.Join(t.TempDir(), "bogus.upkf")
	require.NoError(t, os.WriteFile(path, []byte("not an archive at all"), 0o600))
	_, err := Load(path)
	assert.ErrorIs(t, err, ErrNotArchive)
}

func TestUnsupportedVersion(t *testing.T) {
	t.Parallel()

	data := encode(t, New("v"))
	data[4] = 1
	_, err := Read(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
	assert.ErrorIs(t, err, errkind.ErrFormat)
}

func TestUnknownCompressionCode(t *testing.T) {
	t.Parallel()

	data := encode(t, New("").AddTextFile("n", "", "x", CompressionNone))
	hdrLen := 4 + 1 + 1 + 2 + 16 + 8
	data[hdrLen+8+4+len("n")+1] = 9

	_, err := Read(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrUnknownCompression)
	assert.ErrorIs(t, err, errkind.ErrFormat)
}

func TestTruncated(t *testing.T) {
	t.Parallel()

	data := encode(t, sampleArchive())
	for _, n := range []int{0, 3, 10, 40, len(data) / 2, len(data) - 1} {
		assert.NotPanics(t, func() {
			_, err := Read(bytes.NewReader(data[:n]))
			require.Error(t, err, n)
			assert.ErrorIs(t, err, errkind.ErrIO, n)
			assert.ErrorIs(t, err, io.ErrUnexpectedEOF, n)
		})
	}
}

func TestHugeDeclaredSizeDoesNotAllocate(t *testing.T) {
	t.Parallel()

	data := encode(t, New("").AddTextFile("n", "", "x", CompressionNone))
	hdrLen := 4 + 1 + 1 + 2 + 16 + 8
	for i := range 8 {
		data[hdrLen+i] = 0x7f
	}

	_, err := Read(bytes.NewReader(data))
	assert.ErrorIs(t, err, errkind.ErrIO)
}

func TestMaxElementSize(t *testing.T) {
	t.Parallel()

	a := New("").AddTextFile("big", "", string(bytes.Repeat([]byte("z"), 8192)), CompressionGZIP)
	data := encode(t, a)

	_, err := Read(bytes.NewReader(data), WithMaxElementSize(1024))
	assert.ErrorIs(t, err, ErrSizeOverflow)

	_, err = Read(bytes.NewReader(data), WithMaxElementSize(0))
	assert.NoError(t, err)
}

func TestCorruptLZMADictionaryWithoutVerify(t *testing.T) {
	t.Parallel()

	a := New("").AddTextFile("a.txt", "", string(bytes.Repeat([]byte("lzma "), 100)), CompressionLZMA)
	data := encode(t, a)
	hdrLen := 4 + 1 + 1 + 2 + 16 + 8
	payloadAt := hdrLen + 8 + 4 + len("a.txt") + 1 + 1 + 4 + 2 + 64 + 4
	copy(data[payloadAt+1:payloadAt+5], []byte{0x00, 0x00, 0x00, 0xf0})

	for _, limit := range []uint64{DefaultMaxElementSize, 0} {
		_, err := Read(bytes.NewReader(data), WithMaxElementSize(limit))
		require.ErrorIs(t, err, ErrDecompression)
		assert.True(t, IsIntegrity(err))
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.upkf"))
	assert.ErrorIs(t, err, errkind.ErrIO)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLookupFirstMatchWins(t *testing.T) {
	t.Parallel()

	a := New("dup").
		AddTextFile("same", "", "first", CompressionNone).
		AddTextFile("same", "", "second", CompressionNone)

	e, ok := a.Lookup("same")
	require.True(t, ok)
	assert.Equal(t, "first", string(e.Content))
	assert.Equal(t, 2, a.Len())
	assert.True(t, a.Contains("same"))
	assert.False(t, a.Contains("other"))

	got, err := Read(bytes.NewReader(encode(t, a)))
	require.NoError(t, err)
	e, ok = got.Lookup("same")
	require.True(t, ok)
	assert.Equal(t, "first", string(e.Content))
}

func TestRecompressedFlag(t *testing.T) {
	t.Parallel()

	a := New("r").SetRecompressed(true)
	got, err := Read(bytes.NewReader(encode(t, a)))
	require.NoError(t, err)
	assert.True(t, got.Recompressed())
}

func TestSaveFailureLeavesNoFile(t *testing.T) {
	t.Parallel()

	a := New(string(bytes.Repeat([]byte("o"), 70000)))
	path := filepath.Join(t.TempDir(), "out.upkf")
	err := a.Save(path)
	require.ErrorIs(t, err, ErrFieldTooLong)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Empty(t, entries)
}
