package logpipe

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

// recordingWriter captures every SyncWrite for later inspection.
type recordingWriter struct {
	mu     sync.Mutex
	writes []string
	delay  time.Duration
	failOn map[int]bool // 1-based write indices that fail
	calls  int
	closed bool
}

func (w *recordingWriter) SyncWrite(p []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.delay > 0 {
		time.Sleep(w.delay)
	}
	w.calls++
	if w.failOn[w.calls] {
		return errors.New("injected write failure")
	}
	w.writes = append(w.writes, string(p))
	return nil
}

func (w *recordingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *recordingWriter) recorded() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.writes...)
}

func mustPattern(t *testing.T, pattern string) *PatternLayout {
	t.Helper()
	layout, err := NewPatternLayout(pattern)
	if err != nil {
		t.Fatalf("compile pattern %q: %v", pattern, err)
	}
	return layout
}

func infoRecord(msg string) Record {
	return Record{
		Level:   LevelInfo,
		Time:    time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		Message: msg,
	}
}

func TestAppenderDeliversInOrder(t *testing.T) {
	writer := &recordingWriter{}
	appender := NewAsyncAppender(writer, mustPattern(t, "%m"))

	const n = 100
	for i := 0; i < n; i++ {
		if err := appender.Append(infoRecord(fmt.Sprintf("message %03d", i))); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	if err := appender.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got := writer.recorded()
	if len(got) != n {
		t.Fatalf("expected %d writes, got %d", n, len(got))
	}
	for i, msg := range got {
		if want := fmt.Sprintf("message %03d", i); msg != want {
			t.Fatalf("write %d: got %q, want %q", i, msg, want)
		}
	}
}

func TestAppenderPreservesPerProducerOrder(t *testing.T) {
	writer := &recordingWriter{}
	appender := NewAsyncAppender(writer, mustPattern(t, "%m"))

	const producers = 4
	const perProducer = 50

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				if err := appender.Append(infoRecord(fmt.Sprintf("p%d-%04d", p, i))); err != nil {
					t.Errorf("append p%d i%d: %v", p, i, err)
					return
				}
			}
		}(p)
	}
	wg.Wait()
	if err := appender.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got := writer.recorded()
	if len(got) != producers*perProducer {
		t.Fatalf("expected %d writes, got %d", producers*perProducer, len(got))
	}
	for p := 0; p < producers; p++ {
		prefix := fmt.Sprintf("p%d-", p)
		last := -1
		for _, msg := range got {
			if !strings.HasPrefix(msg, prefix) {
				continue
			}
			var i int
			if _, err := fmt.Sscanf(msg[len(prefix):], "%04d", &i); err != nil {
				t.Fatalf("parse %q: %v", msg, err)
			}
			if i <= last {
				t.Fatalf("producer %d order violated: %d after %d", p, i, last)
			}
			last = i
		}
		if last != perProducer-1 {
			t.Fatalf("producer %d: last message %d, want %d", p, last, perProducer-1)
		}
	}
}

func TestCloseFlushesQueuedMessages(t *testing.T) {
	writer := &recordingWriter{delay: 100 * time.Microsecond}
	appender := NewAsyncAppender(writer, mustPattern(t, "%m"))

	const n = 200
	for i := 0; i < n; i++ {
		if err := appender.Append(infoRecord(fmt.Sprintf("queued %d", i))); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	if err := appender.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Close must not return before every accepted message reached the writer.
	if got := len(writer.recorded()); got != n {
		t.Fatalf("expected %d writes flushed by Close, got %d", n, got)
	}
	if !writer.closed {
		t.Fatal("transport not closed")
	}
}

func TestAppendAfterCloseFails(t *testing.T) {
	writer := &recordingWriter{}
	appender := NewAsyncAppender(writer, mustPattern(t, "%m"))
	if err := appender.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := appender.Append(infoRecord("late")); !errors.Is(err, ErrAppenderClosed) {
		t.Fatalf("expected ErrAppenderClosed, got %v", err)
	}
	// Close is idempotent.
	if err := appender.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestWorkerSurvivesWriteErrors(t *testing.T) {
	writer := &recordingWriter{failOn: map[int]bool{2: true}}
	appender := NewAsyncAppender(writer, mustPattern(t, "%m"))

	for i := 0; i < 3; i++ {
		if err := appender.Append(infoRecord(fmt.Sprintf("msg %d", i))); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	if err := appender.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got := writer.recorded()
	if len(got) != 2 {
		t.Fatalf("expected 2 successful writes around the failure, got %d", len(got))
	}
	if got[0] != "msg 0" || got[1] != "msg 2" {
		t.Fatalf("unexpected surviving writes: %q", got)
	}
}

func TestRateLimitDropsInsteadOfBlocking(t *testing.T) {
	writer := &recordingWriter{}
	limited := newAsyncAppender(writer, mustPattern(t, "%m"), 8, newLimiter(1, 1))
	const n = 5
	for i := 0; i < n; i++ {
		if err := limited.Append(infoRecord(fmt.Sprintf("burst %d", i))); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	if err := limited.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	written := len(writer.recorded())
	dropped := int(limited.Dropped())
	if written+dropped != n {
		t.Fatalf("written %d + dropped %d != %d", written, dropped, n)
	}
	if written < 1 || dropped < 1 {
		t.Fatalf("expected both deliveries and drops, got written=%d dropped=%d", written, dropped)
	}
}

func TestShortenFilePath(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"unix path", "INFO [mod #FS#/home/dev/src/pkg/file.go#FE#:10] hi", "INFO [mod file.go:10] hi"},
		{"windows path", "WARN #FS#C:\\src\\app\\main.go#FE#:3", "WARN main.go:3"},
		{"bare file", "ERROR #FS#main.go#FE# done", "ERROR main.go done"},
		{"no markers", "plain message", "plain message"},
		{"unterminated", "bad #FS#/a/b.go:1", "bad #FS#/a/b.go:1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := string(shortenFilePath([]byte(tc.in))); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}
