package fs_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/plus3/hopper/fs"
	"github.com/plus3/hopper/heap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFS(t *testing.T) (*heap.Heap, *fs.FS) {
	t.Helper()
	h, err := heap.New(1 << 16)
	require.NoError(t, err)
	f := fs.New(h, 16, nil)
	return h, f
}

func TestReadPlainFile(t *testing.T) {
	h, f := newFS(t)

	path := filepath.Join(t.TempDir(), "plain.txt")
	content := []byte("hopper engine asset data")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	work := f.Read(path)
	require.NoError(t, work.Err())
	assert.Equal(t, content, work.Buffer())
	assert.Equal(t, len(content), work.Size())
	work.Release()

	require.NoError(t, f.Close())
	assert.NoError(t, h.Close())
}

func TestReadNullTerminated(t *testing.T) {
	h, f := newFS(t)

	path := filepath.Join(t.TempDir(), "script.lua")
	require.NoError(t, os.WriteFile(path, []byte("return 1"), 0o644))

	work := f.Read(path, fs.WithNullTerminate())
	require.NoError(t, work.Err())
	buf := work.Buffer()
	require.Equal(t, len("return 1")+1, len(buf))
	assert.Equal(t, byte(0), buf[len(buf)-1])
	work.Release()

	require.NoError(t, f.Close())
	assert.NoError(t, h.Close())
}

func TestWriteThenRead(t *testing.T) {
	h, f := newFS(t)

	path := filepath.Join(t.TempDir(), "out.bin")
	content := bytes.Repeat([]byte("abcdefgh"), 100)

	require.NoError(t, f.Write(path, content).Err())

	work := f.Read(path)
	require.NoError(t, work.Err())
	assert.Equal(t, content, work.Buffer())
	work.Release()

	require.NoError(t, f.Close())
	assert.NoError(t, h.Close())
}

func TestCompressedRoundTrip(t *testing.T) {
	h, f := newFS(t)

	path := filepath.Join(t.TempDir(), "data.lz4")
	content := bytes.Repeat([]byte("the quick brown frog jumps the road "), 64)

	wr := f.Write(path, content, fs.WithCompression())
	require.NoError(t, wr.Err())
	wr.Release()

	// The file on disk must actually be smaller than the payload.
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Less(t, info.Size(), int64(len(content)))

	rd := f.Read(path, fs.WithCompression())
	require.NoError(t, rd.Err())
	assert.Equal(t, content, rd.Buffer())
	rd.Release()

	require.NoError(t, f.Close())
	assert.NoError(t, h.Close(), "all fs buffers must be returned to the heap")
}

func TestCompressedIncompressibleData(t *testing.T) {
	h, f := newFS(t)

	// High-entropy payload LZ4 cannot shrink; stored raw behind the header.
	content := make([]byte, 256)
	for i := range content {
		content[i] = byte(i*37 + 11)
	}

	path := filepath.Join(t.TempDir(), "noise.lz4")
	wr := f.Write(path, content, fs.WithCompression())
	require.NoError(t, wr.Err())
	wr.Release()

	rd := f.Read(path, fs.WithCompression())
	require.NoError(t, rd.Err())
	assert.Equal(t, content, rd.Buffer())
	rd.Release()

	require.NoError(t, f.Close())
	assert.NoError(t, h.Close())
}

func TestReadMissingFile(t *testing.T) {
	h, f := newFS(t)

	work := f.Read(filepath.Join(t.TempDir(), "nope.bin"))
	assert.Error(t, work.Err())
	assert.Nil(t, work.Buffer())
	work.Release()

	require.NoError(t, f.Close())
	assert.NoError(t, h.Close())
}

func TestManyConcurrentRequests(t *testing.T) {
	h, f := newFS(t)

	dir := t.TempDir()
	content := bytes.Repeat([]byte("frogger "), 512)

	works := make([]*fs.Work, 0, 32)
	for i := 0; i < 16; i++ {
		path := filepath.Join(dir, "f"+string(rune('a'+i)))
		works = append(works, f.Write(path, content, fs.WithCompression()))
	}
	for _, w := range works {
		require.NoError(t, w.Err())
	}

	reads := make([]*fs.Work, 0, 16)
	for i := 0; i < 16; i++ {
		path := filepath.Join(dir, "f"+string(rune('a'+i)))
		reads = append(reads, f.Read(path, fs.WithCompression()))
	}
	for _, w := range reads {
		require.NoError(t, w.Err())
		assert.Equal(t, content, w.Buffer())
		w.Release()
	}
	for _, w := range works {
		w.Release()
	}

	require.NoError(t, f.Close())
	assert.NoError(t, h.Close())
}
