package process

import (
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"
)

func TestParseBracketLevel(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantLevel string
		wantMsg   string
	}{
		{
			name:      "simple info",
			input:     "[info] listening on :8080",
			wantLevel: "info",
			wantMsg:   "listening on :8080",
		},
		{
			name:      "simple warning",
			input:     "[warning] deprecated option",
			wantLevel: "warning",
			wantMsg:   "deprecated option",
		},
		{
			name:      "short warn",
			input:     "[warn] disk almost full",
			wantLevel: "warn",
			wantMsg:   "disk almost full",
		},
		{
			name:      "simple error",
			input:     "[error] failed to open file",
			wantLevel: "error",
			wantMsg:   "failed to open file",
		},
		{
			name:      "component prefix with warning",
			input:     "[worker @ 0x7f673c439fc0] [warning] queue is backing up",
			wantLevel: "warning",
			wantMsg:   "[worker @ 0x7f673c439fc0] queue is backing up",
		},
		{
			name:      "component prefix without level",
			input:     "[worker @ 0x55f4a8c00000] processed=100",
			wantLevel: "info",
			wantMsg:   "[worker @ 0x55f4a8c00000] processed=100",
		},
		{
			name:      "unknown tag",
			input:     "[notice] hello",
			wantLevel: "info",
			wantMsg:   "[notice] hello",
		},
		{
			name:      "no prefix",
			input:     "processed=100 rate=30/s",
			wantLevel: "info",
			wantMsg:   "processed=100 rate=30/s",
		},
		{
			name:      "empty line",
			input:     "",
			wantLevel: "info",
			wantMsg:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotLevel, gotMsg := ParseBracketLevel(tt.input)
			if gotLevel != tt.wantLevel {
				t.Errorf("ParseBracketLevel() level = %q, want %q", gotLevel, tt.wantLevel)
			}
			if gotMsg != tt.wantMsg {
				t.Errorf("ParseBracketLevel() msg = %q, want %q", gotMsg, tt.wantMsg)
			}
		})
	}
}

type testOutputHandler struct {
	mu    sync.Mutex
	lines []string
}

func (h *testOutputHandler) HandleLine(_, line string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lines = append(h.lines, line)
}

func (h *testOutputHandler) Lines() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.lines)
}

type recordedLine struct {
	level slog.Level
	msg   string
}

// lineRecorder is a logging.Logger that remembers what it was asked to log.
type lineRecorder struct {
	lines []recordedLine
}

func (r *lineRecorder) Debug(msg string, _ ...any) { r.add(slog.LevelDebug, msg) }
func (r *lineRecorder) Info(msg string, _ ...any)  { r.add(slog.LevelInfo, msg) }
func (r *lineRecorder) Warn(msg string, _ ...any)  { r.add(slog.LevelWarn, msg) }
func (r *lineRecorder) Error(msg string, _ ...any) { r.add(slog.LevelError, msg) }

func (r *lineRecorder) add(level slog.Level, msg string) {
	r.lines = append(r.lines, recordedLine{level, msg})
}

func TestLogSinkSplitsLines(t *testing.T) {
	rec := &lineRecorder{}
	handler := &testOutputHandler{}
	sink := NewLogSink("stdout", rec, nil, handler)

	chunks := []string{"first li", "ne\nsecond\r\nthi", "rd\n", "partial"}
	for _, c := range chunks {
		n, err := sink.Write([]byte(c))
		if err != nil || n != len(c) {
			t.Fatalf("Write(%q) = %d, %v", c, n, err)
		}
	}

	want := []string{"first line", "second", "third"}
	if got := handler.Lines(); !slices.Equal(got, want) {
		t.Errorf("before flush: %v, want %v", got, want)
	}

	sink.Flush()
	sink.Flush()

	want = append(want, "partial")
	if got := handler.Lines(); !slices.Equal(got, want) {
		t.Errorf("after flush: %v, want %v", got, want)
	}
	if len(rec.lines) != len(want) {
		t.Errorf("logged %d lines, want %d", len(rec.lines), len(want))
	}
}

func TestLogSinkLevels(t *testing.T) {
	rec := &lineRecorder{}
	sink := NewLogSink("stderr", rec, ParseBracketLevel, nil)

	input := "[error] e\n[fatal] f\n[warning] w\n[debug] d\n[trace] t\nplain\n"
	if _, err := sink.Write([]byte(input)); err != nil {
		t.Fatal(err)
	}

	want := []recordedLine{
		{slog.LevelError, "e"},
		{slog.LevelError, "f"},
		{slog.LevelWarn, "w"},
		{slog.LevelDebug, "d"},
		{slog.LevelDebug, "t"},
		{slog.LevelInfo, "plain"},
	}
	if !slices.Equal(rec.lines, want) {
		t.Errorf("got %v, want %v", rec.lines, want)
	}
}

func TestLogSinkSplitsLongLines(t *testing.T) {
	rec := &lineRecorder{}
	sink := NewLogSink("stdout", rec, nil, nil)

	long := strings.Repeat("x", maxLineLength+10)
	if _, err := sink.Write([]byte(long)); err != nil {
		t.Fatal(err)
	}
	if len(rec.lines) != 1 || len(rec.lines[0].msg) != maxLineLength {
		t.Fatalf("expected one line of %d bytes, got %d lines", maxLineLength, len(rec.lines))
	}

	sink.Flush()
	if len(rec.lines) != 2 || rec.lines[1].msg != strings.Repeat("x", 10) {
		t.Errorf("expected the remainder after flush, got %d lines", len(rec.lines))
	}
}
