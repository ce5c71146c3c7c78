package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/smazurov/procspawn/internal/version"
	"github.com/smazurov/procspawn/pkg/spawn"
)

func TestQuoteLine(t *testing.T) {
	tests := []struct {
		name     string
		template string
		args     []string
		want     string
	}{
		{"plain words", "", []string{"a", "b"}, "a b"},
		{"quoted", "", []string{"a b", "it's"}, `$'a b' $'it\'s'`},
		{"template", "grep {} {}", []string{"x y", "file.txt"}, `grep $'x y' file.txt`},
		{"template extra placeholders", "echo {} {}", []string{"one"}, "echo one "},
		{"template without placeholders", "ls -l", nil, "ls -l"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := quoteLine(tt.template, tt.args); got != tt.want {
				t.Errorf("quoteLine(%q, %q) = %q, want %q", tt.template, tt.args, got, tt.want)
			}
		})
	}
}

func TestCommandLine(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		noShell bool
		want    string
	}{
		{"single shell line", []string{"make build && ./app"}, false, "make build && ./app"},
		{"shell with args", []string{"echo", "a b", "c"}, false, `echo $'a b' c`},
		{"argv", []string{"printf", "%s\n", "a b"}, true, "printf %s\n \"a b\""},
		{"argv escapes", []string{"echo", `say "hi"`, `back\slash`}, true, `echo "say \"hi\"" "back\\slash"`},
		{"argv empty arg", []string{"echo", ""}, true, `echo ""`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := commandLine(tt.args, tt.noShell); got != tt.want {
				t.Errorf("commandLine(%q, %v) = %q, want %q", tt.args, tt.noShell, got, tt.want)
			}
		})
	}
}

func TestArgvQuote(t *testing.T) {
	tests := map[string]string{
		"plain":     "plain",
		"":          `""`,
		"two words": `"two words"`,
		"it's":      `"it's"`,
		"tab\there": "\"tab\there\"",
		`a"b`:       `"a\"b"`,
	}
	for in, want := range tests {
		if got := argvQuote(in); got != want {
			t.Errorf("argvQuote(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestProcessName(t *testing.T) {
	tests := map[string]string{
		"./bin/server --port 80":  "server",
		"/usr/bin/python3 app.py": "python3",
		"make":                    "make",
		"   ":                     "command",
	}
	for in, want := range tests {
		if got := processName(in); got != want {
			t.Errorf("processName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSplitEnv(t *testing.T) {
	tests := []struct {
		in         string
		key, value string
		ok         bool
	}{
		{"FOO=bar", "FOO", "bar", true},
		{"FOO=", "FOO", "", true},
		{"URL=a=b", "URL", "a=b", true},
		{"=bar", "", "bar", false},
		{"FOO", "", "", false},
	}
	for _, tt := range tests {
		key, value, ok := splitEnv(tt.in)
		if key != tt.key || value != tt.value || ok != tt.ok {
			t.Errorf("splitEnv(%q) = %q, %q, %v, want %q, %q, %v", tt.in, key, value, ok, tt.key, tt.value, tt.ok)
		}
	}
}

func TestExitCode(t *testing.T) {
	status := func(n int) *int { return &n }

	tests := []struct {
		name string
		res  *spawn.Result
		want int
	}{
		{"success", &spawn.Result{Status: status(0)}, 0},
		{"non-zero", &spawn.Result{Status: status(3)}, 3},
		{"aborted before start", &spawn.Result{Err: errors.Join(spawn.ErrAborted, errors.New("ctx"))}, 130},
		{"start failure", &spawn.Result{Err: errors.New("exec: not found")}, 127},
		{"nothing known", &spawn.Result{}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.res); got != tt.want {
				t.Errorf("exitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestVersionCmdJSON(t *testing.T) {
	cmd := CreateVersionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--json"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var info version.Info
	if err := json.Unmarshal(out.Bytes(), &info); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if info != version.Get() {
		t.Errorf("got %+v, want %+v", info, version.Get())
	}
}

func TestVersionCmdText(t *testing.T) {
	cmd := CreateVersionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(nil)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !bytes.HasPrefix(out.Bytes(), []byte("procspawn "+version.Get().Version+"\n")) {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}

func TestQuoteCmd(t *testing.T) {
	cmd := CreateQuoteCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"-t", "rm -- {}", "my file"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got, want := out.String(), "rm -- $'my file'\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}
