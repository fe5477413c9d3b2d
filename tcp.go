package logpipe

import (
	"fmt"
	"net"
)

// Terminator is the out-of-band marker appended after every message shipped
// over a raw TCP stream. TCP offers no framing of its own, so receivers scan
// the byte stream for this exact sequence to delimit messages.
var Terminator = []byte{254, 253, 255}

type serverWriter struct {
	conn net.Conn
}

// dialServer connects to a TCP log server. noDelay disables Nagle's algorithm
// so each log message leaves immediately.
func dialServer(addr string, noDelay bool) (*serverWriter, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect log server %s: %w", addr, err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		if err := tcp.SetNoDelay(noDelay); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("set nodelay: %w", err)
		}
	}
	return &serverWriter{conn: conn}, nil
}

func (w *serverWriter) SyncWrite(p []byte) error {
	if _, err := w.conn.Write(p); err != nil {
		return fmt.Errorf("write log server: %w", err)
	}
	if _, err := w.conn.Write(Terminator); err != nil {
		return fmt.Errorf("write terminator: %w", err)
	}
	return nil
}

func (w *serverWriter) Close() error {
	return w.conn.Close()
}
