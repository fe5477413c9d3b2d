package logpipe

import "fmt"

// Appender kinds understood by CreateAppender.
const (
	KindConsole   = "async_console"
	KindFile      = "async_file"
	KindServer    = "async_server"
	KindWebSocket = "async_web_socket"
)

// ConfigError reports an invalid appender configuration table: a missing
// required key, a value of the wrong type, or an unknown appender kind.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Key == "" {
		return "config: " + e.Reason
	}
	return fmt.Sprintf("config: `%s` %s", e.Key, e.Reason)
}

func errRequired(key string) error {
	return &ConfigError{Key: key, Reason: "is required"}
}

func errWrongType(key, want string) error {
	return &ConfigError{Key: key, Reason: "must be a " + want}
}

// CreateAppender builds an appender of the given kind from an untyped
// configuration table, as decoded from TOML. Validation is strict: a present
// key of the wrong type is an error, and all validation runs before any file
// is opened or connection attempted.
func CreateAppender(kind string, cfg map[string]any) (*AsyncAppender, error) {
	switch kind {
	case KindConsole:
		return createConsoleAppender(cfg)
	case KindFile:
		return createFileAppender(cfg)
	case KindServer:
		return createServerAppender(cfg)
	case KindWebSocket:
		return createWebSocketAppender(cfg)
	default:
		return nil, &ConfigError{Reason: fmt.Sprintf("unknown appender kind %q", kind)}
	}
}

func createConsoleAppender(cfg map[string]any) (*AsyncAppender, error) {
	layout, err := layoutFromConfig(cfg, false)
	if err != nil {
		return nil, err
	}
	builder := NewConsole()
	if layout != nil {
		builder.WithLayout(layout)
	}
	return builder.Build(), nil
}

func createFileAppender(cfg map[string]any) (*AsyncAppender, error) {
	path, ok, err := stringValue(cfg, "path")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errRequired("path")
	}
	appendMode, err := boolValue(cfg, "append", true)
	if err != nil {
		return nil, err
	}
	layout, err := layoutFromConfig(cfg, false)
	if err != nil {
		return nil, err
	}
	builder := NewFile(path).WithAppend(appendMode)
	if layout != nil {
		builder.WithLayout(layout)
	}
	return builder.Build()
}

func createServerAppender(cfg map[string]any) (*AsyncAppender, error) {
	addr, ok, err := stringValue(cfg, "server_addr")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errRequired("server_addr")
	}
	noDelay, err := boolValue(cfg, "no_delay", true)
	if err != nil {
		return nil, err
	}
	layout, err := layoutFromConfig(cfg, false)
	if err != nil {
		return nil, err
	}
	builder := NewServer(addr).WithNoDelay(noDelay)
	if layout != nil {
		builder.WithLayout(layout)
	}
	return builder.Build()
}

func createWebSocketAppender(cfg map[string]any) (*AsyncAppender, error) {
	url, ok, err := stringValue(cfg, "server_url")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errRequired("server_url")
	}
	layout, err := layoutFromConfig(cfg, true)
	if err != nil {
		return nil, err
	}
	builder := NewWebSocket(url)
	if layout != nil {
		builder.WithLayout(layout)
	}
	return builder.Build()
}

// layoutFromConfig resolves the optional `pattern` key. A nil, nil return
// means "use the builder's default"; for web sockets that default is the JSON
// layout with a fresh correlation id.
func layoutFromConfig(cfg map[string]any, isWebSocket bool) (Layout, error) {
	pattern, ok, err := stringValue(cfg, "pattern")
	if err != nil {
		return nil, err
	}
	if !ok {
		if isWebSocket {
			return NewJSONLayout(), nil
		}
		return nil, nil
	}
	layout, err := NewPatternLayout(pattern)
	if err != nil {
		return nil, &ConfigError{Key: "pattern", Reason: err.Error()}
	}
	return layout, nil
}

func stringValue(cfg map[string]any, key string) (string, bool, error) {
	raw, ok := cfg[key]
	if !ok {
		return "", false, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", false, errWrongType(key, "string")
	}
	return s, true, nil
}

func boolValue(cfg map[string]any, key string, fallback bool) (bool, error) {
	raw, ok := cfg[key]
	if !ok {
		return fallback, nil
	}
	b, ok := raw.(bool)
	if !ok {
		return false, errWrongType(key, "boolean")
	}
	return b, nil
}
