package process

import (
	"bytes"
	"strings"
	"sync"

	"github.com/smazurov/procspawn/internal/logging"
)

// maxLineLength matches bufio.MaxScanTokenSize. Longer lines are split.
const maxLineLength = 64 * 1024

// OutputHandler receives output lines from the subprocess.
type OutputHandler interface {
	HandleLine(source, line string)
}

// LogParser parses a log line and returns the log level and message.
// Used to extract structured log info from process output.
type LogParser func(line string) (level, msg string)

// LogSink is an io.Writer that splits a child's output stream into lines
// and logs each one at the level reported by its parser.
type LogSink struct {
	source  string
	logger  logging.Logger
	parser  LogParser
	handler OutputHandler

	mu      sync.Mutex
	partial []byte
}

// NewLogSink creates a sink for one stream. parser and handler may be nil.
func NewLogSink(source string, logger logging.Logger, parser LogParser, handler OutputHandler) *LogSink {
	return &LogSink{
		source:  source,
		logger:  logger,
		parser:  parser,
		handler: handler,
	}
}

// Write logs every complete line in p and keeps the remainder until the
// next write or Flush.
func (s *LogSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.partial = append(s.partial, p...)
	for {
		i := bytes.IndexByte(s.partial, '\n')
		if i < 0 {
			break
		}
		s.emit(string(s.partial[:i]))
		s.partial = s.partial[i+1:]
	}
	for len(s.partial) >= maxLineLength {
		s.emit(string(s.partial[:maxLineLength]))
		s.partial = s.partial[maxLineLength:]
	}
	if len(s.partial) == 0 {
		s.partial = nil
	}
	return len(p), nil
}

// Flush logs a trailing line that had no newline.
func (s *LogSink) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.partial) > 0 {
		s.emit(string(s.partial))
		s.partial = nil
	}
}

func (s *LogSink) emit(line string) {
	line = strings.TrimSuffix(line, "\r")

	if s.handler != nil {
		s.handler.HandleLine(s.source, line)
	}

	level, msg := "info", line
	if s.parser != nil {
		level, msg = s.parser(line)
	}

	switch level {
	case "panic", "fatal", "error":
		s.logger.Error(msg, "stream", s.source)
	case "warning", "warn":
		s.logger.Warn(msg, "stream", s.source)
	case "debug", "trace", "verbose":
		s.logger.Debug(msg, "stream", s.source)
	default:
		s.logger.Info(msg, "stream", s.source)
	}
}

// ParseBracketLevel extracts a level from lines like "[warning] message" or
// "[component @ 0x...] [error] message". The level tag is stripped and any
// component prefix is kept. Lines without a known level are "info".
func ParseBracketLevel(line string) (level, msg string) {
	if len(line) < 3 || line[0] != '[' {
		return "info", line
	}

	end := strings.Index(line, "] ")
	if end == -1 {
		return "info", line
	}

	if tag := line[1:end]; isLogLevel(tag) {
		return tag, line[end+2:]
	}

	component := line[:end+2]
	rest := line[end+2:]
	if len(rest) > 2 && rest[0] == '[' {
		if next := strings.Index(rest, "] "); next != -1 {
			if tag := rest[1:next]; isLogLevel(tag) {
				return tag, component + rest[next+2:]
			}
		}
	}

	return "info", line
}

func isLogLevel(s string) bool {
	switch s {
	case "quiet", "panic", "fatal", "error", "warning", "warn", "info", "verbose", "debug", "trace":
		return true
	}
	return false
}
