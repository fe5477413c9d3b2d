package logpipe

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pelletier/go-toml/v2"
)

// ConfigFileName is looked up next to the executable by Init.
const ConfigFileName = "log.toml"

// LoadConfig reads a TOML file whose top-level tables are appender
// configurations keyed by kind:
//
//	[async_console]
//	pattern = "%l %m\n"
//
//	[async_file]
//	path = "app.log"
//	append = false
//
// Appenders are built in lexical kind order. On any error the appenders built
// so far are closed and nothing is returned.
func LoadConfig(path string) ([]*AsyncAppender, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var root map[string]any
	if err := toml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	kinds := make([]string, 0, len(root))
	for kind := range root {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	var appenders []*AsyncAppender
	for _, kind := range kinds {
		table, ok := root[kind].(map[string]any)
		if !ok {
			closeAll(appenders)
			return nil, &ConfigError{Key: kind, Reason: "must be a table"}
		}
		appender, err := CreateAppender(kind, table)
		if err != nil {
			closeAll(appenders)
			return nil, err
		}
		appenders = append(appenders, appender)
	}
	return appenders, nil
}

// configPathNextToExecutable returns the conventional log.toml location, or
// "" when the executable path cannot be resolved.
func configPathNextToExecutable() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	return filepath.Join(filepath.Dir(exe), ConfigFileName)
}

func closeAll(appenders []*AsyncAppender) {
	for _, a := range appenders {
		_ = a.Close()
	}
}
