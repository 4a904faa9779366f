package fs

// Work is the handle for one queued read or write. Getters block until the
// work has completed.
type Work struct {
	fs   *FS
	op   workOp
	path string

	nullTerminate bool
	compress      bool

	buffer   []byte
	size     int
	temp     []byte
	tempSize int

	done chan struct{}
	err  error
}

func newWork(f *FS, op workOp, path string) *Work {
	return &Work{
		fs:   f,
		op:   op,
		path: path,
		done: make(chan struct{}),
	}
}

func (w *Work) finish() {
	close(w.done)
}

func (w *Work) fail(err error) {
	w.err = err
	close(w.done)
}

// Done reports whether the work has completed, without blocking.
func (w *Work) Done() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the work has completed.
func (w *Work) Wait() {
	<-w.done
}

// Err waits and returns the work's error, if any.
func (w *Work) Err() error {
	w.Wait()
	return w.err
}

// Buffer waits and returns the payload. For reads this is heap-owned
// memory; release it via Release.
func (w *Work) Buffer() []byte {
	w.Wait()
	if w.buffer == nil {
		return nil
	}
	return w.buffer[:w.size]
}

// Size waits and returns the payload size in bytes.
func (w *Work) Size() int {
	w.Wait()
	return w.size
}

// Release waits for completion and returns any heap-owned buffers to the
// heap. Write payloads are caller-owned and left alone.
func (w *Work) Release() {
	w.Wait()
	if w.temp != nil {
		w.fs.heap.Free(w.temp)
		w.temp = nil
	}
	if w.op == opRead && w.buffer != nil {
		w.fs.heap.Free(w.buffer)
		w.buffer = nil
	}
	w.size = 0
	w.tempSize = 0
}
