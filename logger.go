package logpipe

import (
	"log/slog"
	"os"
)

// Options configures the facade built by the Init functions.
type Options struct {
	// Level is the minimum level name ("trace" through "fatal"). Empty means
	// "warn", the historical default for this pipeline.
	Level string
	// ShowGoroutine includes the emitting goroutine id in default patterns.
	ShowGoroutine bool
	// ConfigPath points at an explicit log.toml. When empty, Init looks for
	// one next to the executable.
	ConfigPath string
}

// Pipeline owns an installed set of appenders and the slog handler over them.
// Closing it drains every appender queue; that is the shutdown ordering
// guarantee callers rely on for log durability.
type Pipeline struct {
	handler   *Handler
	appenders []*AsyncAppender
	level     *slog.LevelVar
}

// New assembles a pipeline over the given appenders without touching global
// state.
func New(opts Options, appenders ...*AsyncAppender) (*Pipeline, error) {
	name := opts.Level
	if name == "" {
		name = "warn"
	}
	level, err := ParseLevel(name)
	if err != nil {
		return nil, err
	}
	levelVar := new(slog.LevelVar)
	levelVar.Set(level.slogLevel())
	return &Pipeline{
		handler:   NewHandler(levelVar, appenders...),
		appenders: appenders,
		level:     levelVar,
	}, nil
}

// Logger returns a slog.Logger writing through the pipeline.
func (p *Pipeline) Logger() *slog.Logger {
	return slog.New(p.handler)
}

// SetLevel changes the minimum level at runtime.
func (p *Pipeline) SetLevel(l Level) {
	p.level.Set(l.slogLevel())
}

// Close drains and closes every appender, returning the first close error.
func (p *Pipeline) Close() error {
	var firstErr error
	for _, appender := range p.appenders {
		if err := appender.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Init installs the default pipeline as the process slog logger, exactly once
// per process. When a log.toml exists (see Options.ConfigPath) its appender
// tables drive construction; otherwise a console appender with the default
// pattern is used.
func Init(opts Options) (*Pipeline, error) {
	return initWith(&defaultGuard, opts, func() ([]*AsyncAppender, error) {
		path := opts.ConfigPath
		if path == "" {
			path = configPathNextToExecutable()
		}
		if path != "" {
			if _, err := os.Stat(path); err == nil {
				return LoadConfig(path)
			}
		}
		return []*AsyncAppender{consoleAppender(opts)}, nil
	})
}

// InitToFile installs a pipeline logging to file_path, truncating any prior
// content, optionally teeing to the console.
func InitToFile(path string, logToConsole bool, opts Options) (*Pipeline, error) {
	return initWith(&defaultGuard, opts, func() ([]*AsyncAppender, error) {
		fileAppender, err := NewFile(path).
			WithAppend(false).
			WithLayout(DefaultLayout(opts.ShowGoroutine)).
			Build()
		if err != nil {
			return nil, err
		}
		return teeConsole([]*AsyncAppender{fileAppender}, logToConsole, opts), nil
	})
}

// InitToServer installs a pipeline streaming to a TCP log server, optionally
// teeing to the console.
func InitToServer(addr string, logToConsole bool, opts Options) (*Pipeline, error) {
	return initWith(&defaultGuard, opts, func() ([]*AsyncAppender, error) {
		serverAppender, err := NewServer(addr).
			WithLayout(DefaultLayout(opts.ShowGoroutine)).
			Build()
		if err != nil {
			return nil, err
		}
		return teeConsole([]*AsyncAppender{serverAppender}, logToConsole, opts), nil
	})
}

// InitToWebSocket installs a pipeline shipping JSON frames to a web-socket
// endpoint, optionally teeing to the console. The web-socket stream always
// uses the JSON layout so server-side viewers can filter on its fields.
func InitToWebSocket(url string, logToConsole bool, opts Options) (*Pipeline, error) {
	return initWith(&defaultGuard, opts, func() ([]*AsyncAppender, error) {
		wsAppender, err := NewWebSocket(url).Build()
		if err != nil {
			return nil, err
		}
		return teeConsole([]*AsyncAppender{wsAppender}, logToConsole, opts), nil
	})
}

func initWith(guard *Guard, opts Options, build func() ([]*AsyncAppender, error)) (*Pipeline, error) {
	var pipeline *Pipeline
	err := guard.Install(func() error {
		appenders, err := build()
		if err != nil {
			return err
		}
		pipeline, err = New(opts, appenders...)
		if err != nil {
			closeAll(appenders)
			return err
		}
		slog.SetDefault(pipeline.Logger())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pipeline, nil
}

func consoleAppender(opts Options) *AsyncAppender {
	return NewConsole().WithGoroutine(opts.ShowGoroutine).Build()
}

func teeConsole(appenders []*AsyncAppender, logToConsole bool, opts Options) []*AsyncAppender {
	if !logToConsole {
		return appenders
	}
	return append(appenders, consoleAppender(opts))
}
