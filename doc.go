// Package logpipe decouples emitting a structured log record from physically
// writing it. Each appender owns a single worker goroutine that drains a FIFO
// queue and performs all blocking I/O for one destination (console, file, TCP
// log server, or web socket), so producer goroutines never wait on I/O.
//
// The usual entry points are the Init functions, which build an appender set,
// install a log/slog handler as the process default, and return a Pipeline
// whose Close drains every queue before shutdown. Appenders can also be built
// directly through the builders in this package, or from untyped configuration
// tables via CreateAppender.
package logpipe
