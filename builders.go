package logpipe

import (
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/time/rate"
)

// ConsoleBuilder configures an appender that writes to process stdout.
type ConsoleBuilder struct {
	layout        Layout
	showGoroutine bool
	queueSize     int
	limit         rate.Limit
	burst         int
}

// NewConsole starts a console appender build.
func NewConsole() *ConsoleBuilder {
	return &ConsoleBuilder{}
}

// WithLayout overrides the default pattern layout.
func (b *ConsoleBuilder) WithLayout(layout Layout) *ConsoleBuilder {
	b.layout = layout
	return b
}

// WithGoroutine includes the goroutine id in the default pattern.
func (b *ConsoleBuilder) WithGoroutine(show bool) *ConsoleBuilder {
	b.showGoroutine = show
	return b
}

// WithQueueSize overrides the appender queue capacity.
func (b *ConsoleBuilder) WithQueueSize(n int) *ConsoleBuilder {
	b.queueSize = n
	return b
}

// WithRateLimit caps throughput at perSecond messages; excess messages are
// counted and dropped instead of blocking producers.
func (b *ConsoleBuilder) WithRateLimit(perSecond float64) *ConsoleBuilder {
	b.limit = rate.Limit(perSecond)
	b.burst = int(perSecond)
	return b
}

// Build spawns the appender. The default layout colours level names when
// stdout is a terminal.
func (b *ConsoleBuilder) Build() *AsyncAppender {
	layout := b.layout
	if layout == nil {
		colored := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
		layout = DefaultLayout(b.showGoroutine).WithColor(colored)
	}
	return newAsyncAppender(newConsoleWriter(), layout, b.queueSize, newLimiter(b.limit, b.burst))
}

// FileBuilder configures an appender that writes to a log file.
type FileBuilder struct {
	path       string
	appendMode bool
	layout     Layout
	queueSize  int
	limit      rate.Limit
	burst      int
}

// NewFile starts a file appender build for path. The file is opened in append
// mode unless WithAppend(false) asks for truncation.
func NewFile(path string) *FileBuilder {
	return &FileBuilder{path: path, appendMode: true}
}

// WithLayout overrides the default pattern layout.
func (b *FileBuilder) WithLayout(layout Layout) *FileBuilder {
	b.layout = layout
	return b
}

// WithAppend selects append (true) or truncate (false) open mode.
func (b *FileBuilder) WithAppend(appendMode bool) *FileBuilder {
	b.appendMode = appendMode
	return b
}

// WithQueueSize overrides the appender queue capacity.
func (b *FileBuilder) WithQueueSize(n int) *FileBuilder {
	b.queueSize = n
	return b
}

// WithRateLimit caps throughput at perSecond messages.
func (b *FileBuilder) WithRateLimit(perSecond float64) *FileBuilder {
	b.limit = rate.Limit(perSecond)
	b.burst = int(perSecond)
	return b
}

// Build opens the file and spawns the appender. Open failures surface here,
// before any worker exists.
func (b *FileBuilder) Build() (*AsyncAppender, error) {
	writer, err := newFileWriter(b.path, b.appendMode)
	if err != nil {
		return nil, err
	}
	layout := b.layout
	if layout == nil {
		layout = DefaultLayout(false)
	}
	return newAsyncAppender(writer, layout, b.queueSize, newLimiter(b.limit, b.burst)), nil
}

// ServerBuilder configures an appender that streams to a TCP log server,
// delimiting messages with Terminator.
type ServerBuilder struct {
	addr      string
	noDelay   bool
	layout    Layout
	queueSize int
	limit     rate.Limit
	burst     int
}

// NewServer starts a TCP server appender build. Nagle's algorithm is disabled
// unless WithNoDelay(false) re-enables it.
func NewServer(addr string) *ServerBuilder {
	return &ServerBuilder{addr: addr, noDelay: true}
}

// WithLayout overrides the default pattern layout.
func (b *ServerBuilder) WithLayout(layout Layout) *ServerBuilder {
	b.layout = layout
	return b
}

// WithNoDelay toggles TCP_NODELAY on the connection.
func (b *ServerBuilder) WithNoDelay(noDelay bool) *ServerBuilder {
	b.noDelay = noDelay
	return b
}

// WithQueueSize overrides the appender queue capacity.
func (b *ServerBuilder) WithQueueSize(n int) *ServerBuilder {
	b.queueSize = n
	return b
}

// WithRateLimit caps throughput at perSecond messages.
func (b *ServerBuilder) WithRateLimit(perSecond float64) *ServerBuilder {
	b.limit = rate.Limit(perSecond)
	b.burst = int(perSecond)
	return b
}

// Build dials the server and spawns the appender. Connection failures surface
// here.
func (b *ServerBuilder) Build() (*AsyncAppender, error) {
	writer, err := dialServer(b.addr, b.noDelay)
	if err != nil {
		return nil, err
	}
	layout := b.layout
	if layout == nil {
		layout = DefaultLayout(false)
	}
	return newAsyncAppender(writer, layout, b.queueSize, newLimiter(b.limit, b.burst)), nil
}

// WebSocketBuilder configures an appender that ships one binary frame per
// message to a web-socket endpoint.
type WebSocketBuilder struct {
	url       string
	layout    Layout
	timeout   time.Duration
	queueSize int
	limit     rate.Limit
	burst     int
}

// NewWebSocket starts a web-socket appender build for url (ws:// or wss://).
func NewWebSocket(url string) *WebSocketBuilder {
	return &WebSocketBuilder{url: url}
}

// WithLayout overrides the default JSON layout.
func (b *WebSocketBuilder) WithLayout(layout Layout) *WebSocketBuilder {
	b.layout = layout
	return b
}

// WithHandshakeTimeout bounds the connection handshake.
func (b *WebSocketBuilder) WithHandshakeTimeout(d time.Duration) *WebSocketBuilder {
	b.timeout = d
	return b
}

// WithQueueSize overrides the appender queue capacity.
func (b *WebSocketBuilder) WithQueueSize(n int) *WebSocketBuilder {
	b.queueSize = n
	return b
}

// WithRateLimit caps throughput at perSecond messages.
func (b *WebSocketBuilder) WithRateLimit(perSecond float64) *WebSocketBuilder {
	b.limit = rate.Limit(perSecond)
	b.burst = int(perSecond)
	return b
}

// Build connects and spawns the appender. Without an explicit layout the
// messages are JSON objects carrying a per-appender correlation id.
func (b *WebSocketBuilder) Build() (*AsyncAppender, error) {
	writer, err := dialWebSocket(b.url, b.timeout)
	if err != nil {
		return nil, err
	}
	layout := b.layout
	if layout == nil {
		layout = NewJSONLayout()
	}
	return newAsyncAppender(writer, layout, b.queueSize, newLimiter(b.limit, b.burst)), nil
}

func newLimiter(limit rate.Limit, burst int) *rate.Limiter {
	if limit <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(limit, burst)
}
