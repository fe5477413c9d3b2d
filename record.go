package logpipe

import (
	"bytes"
	"runtime"
	"strconv"
	"time"
)

// Record is one log call, captured at the producer and handed to appenders.
// It is a plain value; appenders never mutate it.
type Record struct {
	Level     Level
	Time      time.Time
	Message   string
	Module    string
	File      string
	Line      int
	Goroutine uint64
}

// goroutineID extracts the current goroutine's numeric id from the first line
// of its stack header ("goroutine 123 [running]:"). It stands in for the
// thread name a log line would otherwise carry.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	header := buf[:n]
	header = bytes.TrimPrefix(header, []byte("goroutine "))
	if i := bytes.IndexByte(header, ' '); i > 0 {
		header = header[:i]
	}
	id, err := strconv.ParseUint(string(header), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
