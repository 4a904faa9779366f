// Package fs provides asynchronous file reads and writes with optional LZ4
// compression. An FS runs one file worker and one compression worker; every
// payload buffer is allocated from the shared heap, so the two workers are
// concurrent producers against the heap's lock.
package fs

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/pierrec/lz4/v4"
	"github.com/plus3/hopper/heap"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Compressed files start with the raw payload size, little endian, followed
// by one LZ4 block. The header's top bit marks payloads that were stored
// uncompressed because LZ4 could not shrink them.
const (
	sizeHeaderLen = 4
	storedRawFlag = 1 << 31
)

type workOp int

const (
	opRead workOp = iota
	opWrite
)

// FS owns the worker goroutines and their queues.
type FS struct {
	heap *heap.Heap
	log  *zap.Logger

	fileQueue chan *Work
	compQueue chan *Work
	workers   errgroup.Group
}

// New starts the file and compression workers. queueCap bounds how many
// requests may be in flight before callers block.
func New(h *heap.Heap, queueCap int, log *zap.Logger) *FS {
	if log == nil {
		log = zap.NewNop()
	}
	f := &FS{
		heap:      h,
		log:       log,
		fileQueue: make(chan *Work, queueCap),
		compQueue: make(chan *Work, queueCap),
	}
	f.workers.Go(f.fileWorker)
	f.workers.Go(f.compressionWorker)
	return f
}

// Close stops both workers. Every outstanding Work must have completed
// (Wait returned) before Close is called.
func (f *FS) Close() error {
	f.fileQueue <- nil
	f.compQueue <- nil
	return f.workers.Wait()
}

// Option adjusts a single read or write request.
type Option func(*Work)

// WithCompression stores the file LZ4-compressed on write and transparently
// decompresses it on read.
func WithCompression() Option {
	return func(w *Work) { w.compress = true }
}

// WithNullTerminate appends a zero byte to read buffers, for callers that
// treat the content as a C-style string.
func WithNullTerminate() Option {
	return func(w *Work) { w.nullTerminate = true }
}

// Read queues an asynchronous read of path. The returned buffer is owned by
// the heap; release it with (*Work).Release when done.
func (f *FS) Read(path string, opts ...Option) *Work {
	w := newWork(f, opRead, path)
	for _, opt := range opts {
		opt(w)
	}
	f.fileQueue <- w
	return w
}

// Write queues an asynchronous write of data to path. data must stay valid
// until the work completes.
func (f *FS) Write(path string, data []byte, opts ...Option) *Work {
	w := newWork(f, opWrite, path)
	w.buffer = data
	w.size = len(data)
	for _, opt := range opts {
		opt(w)
	}
	if w.compress {
		f.compQueue <- w
	} else {
		f.fileQueue <- w
	}
	return w
}

func (f *FS) fileWorker() error {
	for w := range f.fileQueue {
		if w == nil {
			return nil
		}
		switch w.op {
		case opRead:
			f.fileRead(w)
		case opWrite:
			f.fileWrite(w)
		}
	}
	return nil
}

func (f *FS) fileRead(w *Work) {
	file, err := os.Open(w.path)
	if err != nil {
		w.fail(fmt.Errorf("open %s: %w", w.path, err))
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		w.fail(fmt.Errorf("stat %s: %w", w.path, err))
		return
	}
	size := int(info.Size())

	bufSize := size
	if w.nullTerminate && !w.compress {
		bufSize++
	}
	if bufSize == 0 {
		bufSize = 1
	}
	buf := f.heap.Alloc(bufSize, 8)
	if buf == nil {
		w.fail(fmt.Errorf("read %s: %w", w.path, heap.ErrBudgetExceeded))
		return
	}

	if _, err := io.ReadFull(file, buf[:size]); err != nil {
		f.heap.Free(buf)
		w.fail(fmt.Errorf("read %s: %w", w.path, err))
		return
	}

	w.buffer = buf
	w.size = size
	if w.compress {
		// Hand off to the compression worker for decompression.
		f.compQueue <- w
		return
	}
	if w.nullTerminate {
		w.buffer[size] = 0
		w.size = size + 1
	}
	w.finish()
}

func (f *FS) fileWrite(w *Work) {
	buf, size := w.buffer, w.size
	if w.compress {
		buf, size = w.temp, w.tempSize
	}
	if err := os.WriteFile(w.path, buf[:size], 0o644); err != nil {
		w.fail(fmt.Errorf("write %s: %w", w.path, err))
		return
	}
	w.finish()
}

func (f *FS) compressionWorker() error {
	for w := range f.compQueue {
		if w == nil {
			return nil
		}
		switch w.op {
		case opRead:
			f.decompress(w)
		case opWrite:
			f.compress(w)
		}
	}
	return nil
}

func (f *FS) decompress(w *Work) {
	// The file worker left the raw file content in w.buffer.
	w.temp = w.buffer
	w.tempSize = w.size
	w.buffer = nil
	w.size = 0

	if w.tempSize < sizeHeaderLen {
		w.fail(fmt.Errorf("decompress %s: truncated header", w.path))
		return
	}
	header := binary.LittleEndian.Uint32(w.temp[:sizeHeaderLen])
	storedRaw := header&storedRawFlag != 0
	rawSize := int(header &^ storedRawFlag)

	bufSize := rawSize
	if w.nullTerminate {
		bufSize++
	}
	if bufSize == 0 {
		bufSize = 1
	}
	buf := f.heap.Alloc(bufSize, 8)
	if buf == nil {
		w.fail(fmt.Errorf("decompress %s: %w", w.path, heap.ErrBudgetExceeded))
		return
	}

	if storedRaw {
		copy(buf[:rawSize], w.temp[sizeHeaderLen:w.tempSize])
	} else {
		n, err := lz4.UncompressBlock(w.temp[sizeHeaderLen:w.tempSize], buf[:rawSize])
		if err != nil || n != rawSize {
			f.heap.Free(buf)
			f.log.Error("fs: decompression failed",
				zap.String("path", w.path), zap.Error(err))
			w.fail(fmt.Errorf("decompress %s: lz4: %w", w.path, err))
			return
		}
	}

	w.buffer = buf
	w.size = rawSize
	if w.nullTerminate {
		w.buffer[rawSize] = 0
		w.size = rawSize + 1
	}
	w.finish()
}

func (f *FS) compress(w *Work) {
	bound := lz4.CompressBlockBound(w.size)
	buf := f.heap.Alloc(sizeHeaderLen+bound, 8)
	if buf == nil {
		w.fail(fmt.Errorf("compress %s: %w", w.path, heap.ErrBudgetExceeded))
		return
	}

	binary.LittleEndian.PutUint32(buf[:sizeHeaderLen], uint32(w.size))

	n, err := lz4.CompressBlock(w.buffer[:w.size], buf[sizeHeaderLen:], nil)
	if err != nil {
		f.heap.Free(buf)
		f.log.Error("fs: compression failed",
			zap.String("path", w.path), zap.Error(err))
		w.fail(fmt.Errorf("compress %s: lz4: %w", w.path, err))
		return
	}
	if n == 0 {
		// Incompressible; store the payload as-is.
		copy(buf[sizeHeaderLen:], w.buffer[:w.size])
		binary.LittleEndian.PutUint32(buf[:sizeHeaderLen], uint32(w.size)|storedRawFlag)
		n = w.size
	}

	w.temp = buf
	w.tempSize = sizeHeaderLen + n
	f.fileQueue <- w
}
