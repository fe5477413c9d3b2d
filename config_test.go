package logpipe

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigBuildsAppenders(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "from_config.log")
	configPath := filepath.Join(dir, ConfigFileName)

	config := fmt.Sprintf(`[async_console]
pattern = "%%l %%m\n"

[async_file]
path = %q
append = false
`, logPath)
	if err := os.WriteFile(configPath, []byte(config), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	appenders, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(appenders) != 2 {
		t.Fatalf("expected 2 appenders, got %d", len(appenders))
	}
	for _, appender := range appenders {
		if err := appender.Append(infoRecord("configured message")); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	closeAll(appenders)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if len(content) == 0 {
		t.Fatal("file appender from config wrote nothing")
	}
}

func TestLoadConfigRejectsBadTable(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, ConfigFileName)
	if err := os.WriteFile(configPath, []byte("async_console = \"not a table\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := LoadConfig(configPath); err == nil {
		t.Fatal("expected error for non-table appender entry")
	} else {
		var cfgErr *ConfigError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("expected *ConfigError, got %T", err)
		}
	}
}

func TestLoadConfigPropagatesCreatorErrors(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, ConfigFileName)
	if err := os.WriteFile(configPath, []byte("[async_file]\nappend = true\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err := LoadConfig(configPath)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigError for missing path, got %v", err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
