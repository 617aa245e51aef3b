package process

import (
	"bytes"
	"sync"
)

// lineWriter splits written bytes into lines. A line ends with \n, \r\n or
// a bare \r, the latter is what progress meters print to redraw a line.
// Empty lines are dropped.
type lineWriter struct {
	mu  *sync.Mutex // shared by stdout and stderr writers of one process
	fn  LineFunc
	buf []byte
}

func newLineWriter(mu *sync.Mutex, fn LineFunc) *lineWriter {
	return &lineWriter{mu: mu, fn: fn}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexAny(w.buf, "\r\n")
		if i < 0 {
			break
		}
		w.emit(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

func (w *lineWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.emit(w.buf)
	w.buf = nil
}

func (w *lineWriter) emit(line []byte) {
	if len(line) == 0 || w.fn == nil {
		return
	}
	w.fn(string(line))
}
