package receiver

import (
	"bytes"

	"logpipe"
)

// ScanMessages is a bufio.SplitFunc that frames a raw TCP log stream on the
// 3-byte terminator sequence. The terminator may arrive split across reads;
// bufio keeps the partial tail buffered until the remaining bytes show up. A
// trailing fragment with no terminator at EOF is an incomplete message and is
// discarded.
func ScanMessages(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if i := bytes.Index(data, logpipe.Terminator); i >= 0 {
		return i + len(logpipe.Terminator), data[:i], nil
	}
	if atEOF {
		return len(data), nil, nil
	}
	return 0, nil, nil
}
