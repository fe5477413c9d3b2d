package logpipe

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newFrameServer(t *testing.T) (*httptest.Server, chan []byte) {
	t.Helper()
	frames := make(chan []byte, 32)
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, readErr := conn.ReadMessage()
			if readErr != nil {
				return
			}
			frames <- data
		}
	}))
	t.Cleanup(srv.Close)
	return srv, frames
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func collectFrames(t *testing.T, frames chan []byte, count int) [][]byte {
	t.Helper()
	out := make([][]byte, 0, count)
	for len(out) < count {
		select {
		case frame := <-frames:
			out = append(out, frame)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out after %d of %d frames", len(out), count)
		}
	}
	return out
}

func TestWebSocketAppenderDefaultJSON(t *testing.T) {
	srv, frames := newFrameServer(t)

	appender, err := NewWebSocket(wsURL(srv)).Build()
	if err != nil {
		t.Fatalf("build websocket appender: %v", err)
	}

	for i, msg := range []string{"This is message 0", "message 1", "message 2"} {
		rec := infoRecord(msg)
		rec.Module = "app"
		rec.File = "/src/app/main.go"
		rec.Line = 10 + i
		if appendErr := appender.Append(rec); appendErr != nil {
			t.Fatalf("append %d: %v", i, appendErr)
		}
	}
	if err := appender.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var ids []string
	for i, frame := range collectFrames(t, frames, 3) {
		var decoded map[string]string
		if err := json.Unmarshal(frame, &decoded); err != nil {
			t.Fatalf("frame %d is not JSON: %v (%q)", i, err, frame)
		}
		if !strings.Contains(decoded["msg"], "message") {
			t.Fatalf("frame %d unexpected msg: %q", i, decoded["msg"])
		}
		ids = append(ids, decoded["id"])
	}
	for _, id := range ids[1:] {
		if id != ids[0] {
			t.Fatalf("correlation id varies within one appender: %v", ids)
		}
	}

	// A separately built appender carries a different correlation id.
	second, err := NewWebSocket(wsURL(srv)).Build()
	if err != nil {
		t.Fatalf("build second appender: %v", err)
	}
	if err := second.Append(infoRecord("another stream")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := second.Close(); err != nil {
		t.Fatalf("close second: %v", err)
	}
	frame := collectFrames(t, frames, 1)[0]
	var decoded map[string]string
	if err := json.Unmarshal(frame, &decoded); err != nil {
		t.Fatalf("second frame is not JSON: %v", err)
	}
	if decoded["id"] == ids[0] {
		t.Fatalf("two appender instances share correlation id %s", ids[0])
	}
}

func TestWebSocketAppenderConnectFailure(t *testing.T) {
	srv, _ := newFrameServer(t)
	url := wsURL(srv)
	srv.Close()

	if _, err := NewWebSocket(url).WithHandshakeTimeout(2 * time.Second).Build(); err == nil {
		t.Fatal("expected handshake failure against closed server")
	}
}
