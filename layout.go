package logpipe

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Layout renders a Record into the byte form an appender ships to its
// transport. Layouts are stateless once constructed and are owned by exactly
// one appender.
type Layout interface {
	Append(dst *bytes.Buffer, rec Record) error
}

// Markers wrapped around the source file path by the default patterns. The
// appender worker rewrites the span between them down to the final path
// component, keeping that work off the producer's critical path.
const (
	fileStartMarker = "#FS#"
	fileEndMarker   = "#FE#"
)

const defaultTimeLayout = "15:04:05.000000"

// DefaultPattern is the layout used when no pattern is configured.
// DefaultPatternGoroutine additionally shows the emitting goroutine.
const (
	DefaultPattern          = "%l %d [%M " + fileStartMarker + "%f" + fileEndMarker + ":%L] %m\n"
	DefaultPatternGoroutine = "%l %d %T [%M " + fileStartMarker + "%f" + fileEndMarker + ":%L] %m\n"
)

type patternChunk struct {
	literal string
	verb    byte
	arg     string
}

// PatternLayout renders records according to a printf-like pattern compiled at
// construction. Supported verbs: %l level, %d time (optionally %d{go-layout}),
// %T goroutine id, %M module, %f file, %L line, %m message, %% literal percent.
type PatternLayout struct {
	chunks []patternChunk
	color  bool
}

// NewPatternLayout compiles pattern, rejecting unknown verbs and unterminated
// arguments.
func NewPatternLayout(pattern string) (*PatternLayout, error) {
	var chunks []patternChunk
	var literal strings.Builder

	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		if c != '%' {
			literal.WriteByte(c)
			continue
		}
		if i+1 >= len(pattern) {
			return nil, fmt.Errorf("pattern ends with a bare %%")
		}
		i++
		verb := pattern[i]
		if verb == '%' {
			literal.WriteByte('%')
			continue
		}
		switch verb {
		case 'l', 'd', 'T', 'M', 'f', 'L', 'm':
		default:
			return nil, fmt.Errorf("unknown pattern verb %%%c", verb)
		}
		chunk := patternChunk{literal: literal.String(), verb: verb}
		literal.Reset()
		if verb == 'd' && i+1 < len(pattern) && pattern[i+1] == '{' {
			end := strings.IndexByte(pattern[i+1:], '}')
			if end < 0 {
				return nil, fmt.Errorf("unterminated {} argument after %%d")
			}
			chunk.arg = pattern[i+2 : i+1+end]
			i += 1 + end
		}
		chunks = append(chunks, chunk)
	}
	if literal.Len() > 0 {
		chunks = append(chunks, patternChunk{literal: literal.String()})
	}
	return &PatternLayout{chunks: chunks}, nil
}

// DefaultLayout returns the compiled DefaultPattern, optionally including the
// goroutine id.
func DefaultLayout(showGoroutine bool) *PatternLayout {
	pattern := DefaultPattern
	if showGoroutine {
		pattern = DefaultPatternGoroutine
	}
	layout, err := NewPatternLayout(pattern)
	if err != nil {
		panic("logpipe: default pattern failed to compile: " + err.Error())
	}
	return layout
}

// WithColor returns a copy that wraps the level token in ANSI colour codes.
// Intended for console output on a terminal.
func (p *PatternLayout) WithColor(enabled bool) *PatternLayout {
	clone := *p
	clone.color = enabled
	return &clone
}

// Append implements Layout.
func (p *PatternLayout) Append(dst *bytes.Buffer, rec Record) error {
	for _, chunk := range p.chunks {
		dst.WriteString(chunk.literal)
		switch chunk.verb {
		case 'l':
			if p.color {
				dst.WriteString(levelColor(rec.Level))
				dst.WriteString(rec.Level.String())
				dst.WriteString(ansiReset)
			} else {
				dst.WriteString(rec.Level.String())
			}
		case 'd':
			layout := chunk.arg
			if layout == "" {
				layout = defaultTimeLayout
			}
			dst.WriteString(rec.Time.Format(layout))
		case 'T':
			dst.WriteString(strconv.FormatUint(rec.Goroutine, 10))
		case 'M':
			dst.WriteString(rec.Module)
		case 'f':
			dst.WriteString(rec.File)
		case 'L':
			dst.WriteString(strconv.Itoa(rec.Line))
		case 'm':
			dst.WriteString(rec.Message)
		}
	}
	return nil
}

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

func levelColor(l Level) string {
	switch l {
	case LevelTrace, LevelDebug:
		return ansiBlue
	case LevelInfo:
		return ansiGreen
	case LevelWarn:
		return ansiYellow
	default:
		return ansiRed
	}
}

// JSONLayout renders records as one JSON object per message with the fixed
// keys id, level, time, thread, module, file, line, and msg. The id is a
// random 64-bit correlation value drawn once per layout, so every message from
// one appender shares it while separately built appenders differ.
type JSONLayout struct {
	id string
}

// NewJSONLayout builds a JSON layout with a fresh correlation id.
func NewJSONLayout() *JSONLayout {
	return &JSONLayout{id: strconv.FormatUint(newCorrelationID(), 10)}
}

// CorrelationID returns the layout's correlation id rendered in the payload.
func (j *JSONLayout) CorrelationID() string { return j.id }

type jsonRecord struct {
	ID     string `json:"id"`
	Level  string `json:"level"`
	Time   string `json:"time"`
	Thread string `json:"thread"`
	Module string `json:"module"`
	File   string `json:"file"`
	Line   string `json:"line"`
	Msg    string `json:"msg"`
}

// Append implements Layout.
func (j *JSONLayout) Append(dst *bytes.Buffer, rec Record) error {
	payload, err := json.Marshal(jsonRecord{
		ID:     j.id,
		Level:  rec.Level.String(),
		Time:   rec.Time.Format(time.RFC3339Nano),
		Thread: strconv.FormatUint(rec.Goroutine, 10),
		Module: rec.Module,
		File:   rec.File,
		Line:   strconv.Itoa(rec.Line),
		Msg:    rec.Message,
	})
	if err != nil {
		return fmt.Errorf("encode json record: %w", err)
	}
	dst.Write(payload)
	return nil
}

func newCorrelationID() uint64 {
	var raw [8]byte
	if _, err := rand.Read(raw[:]); err != nil {
		// crypto/rand read failure leaves the timestamp as a weak fallback.
		return uint64(time.Now().UnixNano())
	}
	return binary.BigEndian.Uint64(raw[:])
}
