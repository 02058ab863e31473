// Package testhelpers contains logging utilities shared by the tests.
package testhelpers

import (
	"io"
	"strings"
	"sync/atomic"
	"testing"
)

// Writer forwards writes to t.Log so that logs are only shown for failing tests.
type Writer struct {
	t    *testing.T
	done atomic.Bool
}

// NewWriter creates a Writer bound to t. Writing after the test has finished panics, which surfaces goroutines such
// as servers that outlive the test.
func NewWriter(t *testing.T) io.Writer {
	t.Helper()
	w := &Writer{t: t}
	t.Cleanup(func() { w.done.Store(true) })
	return w
}

func (w *Writer) Write(p []byte) (int, error) {
	if w.done.Load() {
		panic("testhelpers: write after test completion, is something missing a t.Cleanup shutdown?")
	}
	if line := strings.TrimSuffix(string(p), "\n"); line != "" {
		w.t.Log(line)
	}
	return len(p), nil
}
