package logpipe

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileAppenderAppendPreservesContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	if err := os.WriteFile(path, []byte("old line\n"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	appender, err := NewFile(path).
		WithAppend(true).
		WithLayout(mustPattern(t, "%m\n")).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := appender.Append(infoRecord("new line")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := appender.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(content) != "old line\nnew line\n" {
		t.Fatalf("unexpected content: %q", content)
	}
}

func TestFileAppenderTruncateDiscardsContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	if err := os.WriteFile(path, []byte("stale content that must go\n"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	appender, err := NewFile(path).
		WithAppend(false).
		WithLayout(mustPattern(t, "%m\n")).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := appender.Append(infoRecord("fresh")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := appender.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(content) != "fresh\n" {
		t.Fatalf("truncate mode kept prior content: %q", content)
	}
}

func TestFileAppenderOpenFailure(t *testing.T) {
	missingDir := filepath.Join(t.TempDir(), "absent", "app.log")
	if _, err := NewFile(missingDir).Build(); err == nil {
		t.Fatal("expected open error for missing directory")
	}
}
