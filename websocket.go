package logpipe

import (
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// defaultHandshakeTimeout bounds how long a web-socket appender build waits
// for the handshake goroutine to report.
const defaultHandshakeTimeout = 30 * time.Second

type webSocketWriter struct {
	conn *websocket.Conn
}

type dialResult struct {
	conn *websocket.Conn
	err  error
}

// dialWebSocket performs the handshake on a background goroutine and blocks
// until it reports success or failure through a one-shot channel, so a slow
// endpoint cannot wedge construction past the timeout.
func dialWebSocket(url string, timeout time.Duration) (*webSocketWriter, error) {
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}

	results := make(chan dialResult, 1)
	go func() {
		dialer := websocket.Dialer{HandshakeTimeout: timeout}
		conn, _, err := dialer.Dial(url, nil)
		results <- dialResult{conn: conn, err: err}
	}()

	select {
	case res := <-results:
		if res.err != nil {
			return nil, fmt.Errorf("connect web socket %s: %w", url, res.err)
		}
		return &webSocketWriter{conn: res.conn}, nil
	case <-time.After(timeout + time.Second):
		// The goroutine's buffered send cannot block; any late connection is
		// closed by it going out of scope unused.
		go func() {
			if res := <-results; res.conn != nil {
				_ = res.conn.Close()
			}
		}()
		return nil, fmt.Errorf("connect web socket %s: handshake timed out", url)
	}
}

// SyncWrite ships one binary frame per message; the protocol's own framing
// makes a terminator unnecessary.
func (w *webSocketWriter) SyncWrite(p []byte) error {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return fmt.Errorf("write web socket frame: %w", err)
	}
	return nil
}

// Close sends a normal close frame before tearing the connection down.
func (w *webSocketWriter) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	deadline := time.Now().Add(time.Second)
	_ = w.conn.WriteControl(websocket.CloseMessage, msg, deadline)
	return w.conn.Close()
}
