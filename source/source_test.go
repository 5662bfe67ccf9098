package source

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTempTrace(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trace.fst")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	return path
}

func TestOpenFile(t *testing.T) {
	data := []byte("header geometry hierarchy")
	path := writeTempTrace(t, data)

	src, err := OpenFile(path)
	require.NoError(t, err)
	defer src.Close()

	require.Equal(t, int64(len(data)), src.Size())

	buf := make([]byte, 8)
	n, err := src.ReadAt(buf, 7)
	require.NoError(t, err)
	require.Equal(t, []byte("geometry"), buf[:n])
}

func TestOpenFile_Missing(t *testing.T) {
	_, err := OpenFile(filepath.Join(t.TempDir(), "absent.fst"))
	require.Error(t, err)
}

func TestOpenMmap(t *testing.T) {
	data := []byte("memory mapped trace data")
	path := writeTempTrace(t, data)

	src, err := OpenMmap(path)
	require.NoError(t, err)
	defer src.Close()

	require.Equal(t, int64(len(data)), src.Size())

	got, err := io.ReadAll(SectionOf(src, 7, 6))
	require.NoError(t, err)
	require.Equal(t, []byte("mapped"), got)
}

func TestFromBytes(t *testing.T) {
	src := FromBytes([]byte("abcdef"))
	require.Equal(t, int64(6), src.Size())

	buf := make([]byte, 3)
	_, err := src.ReadAt(buf, 3)
	require.NoError(t, err)
	require.Equal(t, []byte("def"), buf)
	require.NoError(t, src.Close())
}

func TestBuffer_WriteSeekReadAt(t *testing.T) {
	var buf Buffer

	n, err := buf.Write([]byte("0123456789"))
	require.NoError(t, err)
	require.Equal(t, 10, n)

	// Patch bytes 2..5 in place.
	_, err = buf.Seek(2, io.SeekStart)
	require.NoError(t, err)
	_, err = buf.Write([]byte("abc"))
	require.NoError(t, err)
	require.Equal(t, []byte("01abc56789"), buf.Bytes())

	// Writes after a patch continue from the patch position.
	pos, err := buf.Seek(0, io.SeekEnd)
	require.NoError(t, err)
	require.Equal(t, int64(10), pos)
	_, err = buf.Write([]byte("XY"))
	require.NoError(t, err)
	require.Equal(t, 12, buf.Len())

	out := make([]byte, 4)
	_, err = buf.ReadAt(out, 8)
	require.NoError(t, err)
	require.Equal(t, []byte("89XY"), out)

	_, err = buf.ReadAt(out, 100)
	require.ErrorIs(t, err, io.EOF)
}

func TestBuffer_SeekPastEndZeroFills(t *testing.T) {
	var buf Buffer
	_, err := buf.Seek(4, io.SeekStart)
	require.NoError(t, err)
	_, err = buf.Write([]byte{0xFF})
	require.NoError(t, err)
	require.Equal(t, []byte{0, 0, 0, 0, 0xFF}, buf.Bytes())
}

func TestBuffer_Reset(t *testing.T) {
	var buf Buffer
	_, err := buf.Write([]byte("data"))
	require.NoError(t, err)
	buf.Reset()
	require.Zero(t, buf.Len())
}

func TestBuffer_InvalidSeek(t *testing.T) {
	var buf Buffer
	_, err := buf.Seek(-1, io.SeekStart)
	require.Error(t, err)
	_, err = buf.Seek(0, 42)
	require.Error(t, err)
}
