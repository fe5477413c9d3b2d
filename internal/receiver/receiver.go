// Package receiver implements the server side of the logpipe wire formats: a
// TCP listener that frames messages on the terminator sequence and a
// web-socket listener that treats each frame as one message.
package receiver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Message is one received log payload together with its connection identity.
type Message struct {
	SessionID  string
	Source     string // "tcp" or "websocket"
	ReceivedAt time.Time
	Payload    string
}

// Server accepts log streams and hands every framed message to a callback.
type Server struct {
	handle func(Message)
	logger *slog.Logger

	mu      sync.Mutex
	tcpLn   net.Listener
	httpLn  net.Listener
	httpSv  *http.Server
	wsConns map[*websocket.Conn]struct{}
	closed  bool

	wg sync.WaitGroup
}

// New builds a server delivering messages to handle. The callback runs on
// connection goroutines and must be safe for concurrent use.
func New(handle func(Message), logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{handle: handle, logger: logger, wsConns: make(map[*websocket.Conn]struct{})}
}

// ListenTCP binds addr and starts accepting terminator-framed streams. The
// returned address carries the chosen port when addr used port 0.
func (s *Server) ListenTCP(addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen tcp %s: %w", addr, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ln.Close()
		return nil, errors.New("receiver closed")
	}
	s.tcpLn = ln
	s.mu.Unlock()

	s.wg.Add(1)
	go s.acceptLoop(ln)
	return ln.Addr(), nil
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.logger.Warn("tcp accept failed", "error", err)
			}
			return
		}
		s.wg.Add(1)
		go s.serveStream(conn)
	}
}

func (s *Server) serveStream(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	session := uuid.NewString()
	s.logger.Debug("log stream opened", "session", session, "remote", conn.RemoteAddr().String())

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	scanner.Split(ScanMessages)
	for scanner.Scan() {
		s.handle(Message{
			SessionID:  session,
			Source:     "tcp",
			ReceivedAt: time.Now().UTC(),
			Payload:    string(scanner.Bytes()),
		})
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.logger.Warn("log stream failed", "session", session, "error", err)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The receiver is a log sink, not a browser-facing service.
	CheckOrigin: func(*http.Request) bool { return true },
}

// ListenWebSocket binds addr and starts accepting web-socket log streams on
// every request path.
func (s *Server) ListenWebSocket(addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen websocket %s: %w", addr, err)
	}

	server := &http.Server{
		Handler:           http.HandlerFunc(s.serveWebSocket),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ln.Close()
		return nil, errors.New("receiver closed")
	}
	s.httpLn = ln
	s.httpSv = server
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if serveErr := server.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Warn("websocket server failed", "error", serveErr)
		}
	}()
	return ln.Addr(), nil
}

func (s *Server) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.wsConns[conn] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.wsConns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	session := uuid.NewString()
	s.logger.Debug("websocket stream opened", "session", session, "remote", conn.RemoteAddr().String())

	for {
		_, data, readErr := conn.ReadMessage()
		if readErr != nil {
			if !websocket.IsCloseError(readErr, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket stream ended", "session", session, "error", readErr)
			}
			return
		}
		s.handle(Message{
			SessionID:  session,
			Source:     "websocket",
			ReceivedAt: time.Now().UTC(),
			Payload:    string(data),
		})
	}
}

// Close stops both listeners and waits for in-flight connection handlers.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.wg.Wait()
		return nil
	}
	s.closed = true
	tcpLn, httpSv := s.tcpLn, s.httpSv
	for conn := range s.wsConns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	var firstErr error
	if tcpLn != nil {
		if err := tcpLn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if httpSv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := httpSv.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		cancel()
	}
	s.wg.Wait()
	return firstErr
}
