package log

import (
	"io"
	"strings"
)

// httpLogWriter adapts the package logger to an io.Writer so HTTP access
// logging middleware can write through zap.
type httpLogWriter struct{}

// NewHTTPLogWriter returns a writer that logs each access-log line at debug
// level.
func NewHTTPLogWriter() io.Writer {
	return &httpLogWriter{}
}

func (w *httpLogWriter) Write(p []byte) (int, error) {
	Debugf("http: %s", strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
