package logpipe

import (
	"fmt"
	"os"
	"sync"
)

// SyncWriter is the synchronous-write capability behind an appender. SyncWrite
// must fully deliver p before returning, leaving nothing buffered across
// calls; the appender worker relies on that to make Close a real flush
// barrier. Implementations are only ever called from a single worker
// goroutine.
type SyncWriter interface {
	SyncWrite(p []byte) error
	Close() error
}

// stdoutMu guards process stdout so appender output does not interleave with
// other writers mid-line.
var stdoutMu sync.Mutex

type consoleWriter struct{}

func newConsoleWriter() *consoleWriter { return &consoleWriter{} }

func (*consoleWriter) SyncWrite(p []byte) error {
	stdoutMu.Lock()
	defer stdoutMu.Unlock()
	if _, err := os.Stdout.Write(p); err != nil {
		return fmt.Errorf("write stdout: %w", err)
	}
	return nil
}

func (*consoleWriter) Close() error { return nil }

type fileWriter struct {
	file *os.File
}

// newFileWriter opens path for writing, creating it when absent. With
// appendMode false any existing content is truncated before the first write.
func newFileWriter(path string, appendMode bool) (*fileWriter, error) {
	flags := os.O_WRONLY | os.O_CREATE
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return &fileWriter{file: file}, nil
}

func (w *fileWriter) SyncWrite(p []byte) error {
	if _, err := w.file.Write(p); err != nil {
		return fmt.Errorf("write log file: %w", err)
	}
	return nil
}

func (w *fileWriter) Close() error {
	return w.file.Close()
}
