package logpipe

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// ErrAppenderClosed is returned by Append once Close has begun; the message is
// not queued and the caller may drop it.
var ErrAppenderClosed = errors.New("appender closed")

const defaultQueueSize = 1024

type asyncEvent struct {
	msg       []byte
	terminate bool
}

// AsyncAppender accepts encoded records from any number of producer
// goroutines and hands them, in FIFO order, to a single worker goroutine that
// performs all blocking writes against one SyncWriter. Producers therefore
// never wait on I/O latency, only on the queue send itself.
type AsyncAppender struct {
	layout Layout
	writer SyncWriter // touched only by the worker, and by Close after join

	mu     sync.RWMutex
	closed bool

	events chan asyncEvent
	done   chan struct{}

	limiter *rate.Limiter
	dropped atomic.Uint64
}

// NewAsyncAppender spawns the worker goroutine and returns immediately. The
// appender takes ownership of w; after construction the worker is the only
// goroutine that touches it.
func NewAsyncAppender(w SyncWriter, layout Layout) *AsyncAppender {
	return newAsyncAppender(w, layout, defaultQueueSize, nil)
}

func newAsyncAppender(w SyncWriter, layout Layout, queueSize int, limiter *rate.Limiter) *AsyncAppender {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	a := &AsyncAppender{
		layout:  layout,
		writer:  w,
		events:  make(chan asyncEvent, queueSize),
		done:    make(chan struct{}),
		limiter: limiter,
	}
	go a.run()
	return a
}

// run is the worker loop: drain the queue, rewrite the file-path span, and
// perform the blocking write. Write failures are reported to stderr and
// swallowed so the pipeline stays live; there is no producer left to receive
// them.
func (a *AsyncAppender) run() {
	defer close(a.done)
	for event := range a.events {
		if event.terminate {
			return
		}
		msg := shortenFilePath(event.msg)
		if err := a.writer.SyncWrite(msg); err != nil {
			fmt.Fprintf(os.Stderr, "logpipe: dropped log write: %v\n", err)
		}
	}
}

// Append encodes rec on the calling goroutine and enqueues the bytes for the
// worker. It fails only when the appender has been closed.
func (a *AsyncAppender) Append(rec Record) error {
	if a.limiter != nil && !a.limiter.Allow() {
		a.dropped.Add(1)
		return nil
	}

	var buf bytes.Buffer
	if err := a.layout.Append(&buf, rec); err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrAppenderClosed
	}
	a.events <- asyncEvent{msg: buf.Bytes()}
	return nil
}

// Dropped reports how many messages the rate limiter discarded.
func (a *AsyncAppender) Dropped() uint64 {
	return a.dropped.Load()
}

// Close sends the terminate sentinel and blocks until the worker has written
// every previously queued message, then closes the transport. It is
// idempotent; later Append calls return ErrAppenderClosed.
func (a *AsyncAppender) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		<-a.done
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	// Every producer that passed the closed check holds the read lock while
	// sending, so the sentinel lands strictly after all accepted messages.
	a.events <- asyncEvent{terminate: true}
	<-a.done
	return a.writer.Close()
}

// shortenFilePath rewrites the span between the file markers down to its
// final path component. A plain byte search replaces the regex the historical
// implementation used; the intent is only to keep the file name short.
func shortenFilePath(msg []byte) []byte {
	start := bytes.Index(msg, []byte(fileStartMarker))
	if start < 0 {
		return msg
	}
	rest := msg[start+len(fileStartMarker):]
	end := bytes.Index(rest, []byte(fileEndMarker))
	if end < 0 {
		return msg
	}
	span := rest[:end]
	if i := bytes.LastIndexAny(span, `/\#`); i >= 0 {
		span = span[i+1:]
	}

	out := make([]byte, 0, start+len(span)+len(rest)-end-len(fileEndMarker))
	out = append(out, msg[:start]...)
	out = append(out, span...)
	out = append(out, rest[end+len(fileEndMarker):]...)
	return out
}
