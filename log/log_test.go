package log

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupLogDir(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	SetDir(tmp)
	t.Cleanup(func() { Close(); SetDir(""); SetTerminal(nil); SetDebug(false) })
	return tmp
}

func TestResolveDir(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	for _, tt := range []struct {
		name, flag, env, want string
	}{
		{"absolute flag", "/tmp/mylog", "", "/tmp/mylog"},
		{"relative flag", "logs", "", filepath.Join(wd, "logs")},
		{"flag beats env", "/tmp/flag", "/tmp/env", "/tmp/flag"},
		{"env", "", "/tmp/hotscribe-env-log", "/tmp/hotscribe-env-log"},
		{"relative env", "", "envlogs", filepath.Join(wd, "envlogs")},
	} {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HOTSCRIBE_LOG_PATH", tt.env)
			got, err := ResolveDir(tt.flag)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveDirDefault(t *testing.T) {
	t.Setenv("HOTSCRIBE_LOG_PATH", "")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "hotscribe") {
		t.Errorf("default dir %q does not mention hotscribe", got)
	}
}

func TestInitCreatesFiles(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"diagnostics_log.txt", "transcribe_log.txt"} {
		path := filepath.Join(tmp, name)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}
}

func TestTranscriptionText(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	TranscriptionText("hello world")

	data, err := os.ReadFile(filepath.Join(tmp, "transcribe_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	line := string(data)
	if !strings.Contains(line, "hello world") {
		t.Errorf("transcribe_log.txt missing text, got: %q", line)
	}
	// format: "2006-01-02 15:04:05\t[pid]\ttext\n"
	if strings.Count(line, "\t") != 2 {
		t.Errorf("expected tab-separated format, got: %q", line)
	}
}

func TestTerminalMirror(t *testing.T) {
	tmp := setupLogDir(t)
	var buf bytes.Buffer
	SetTerminal(&buf)

	if err := Init(); err != nil {
		t.Fatal(err)
	}
	SessionEvent("default", "abc", "recording_started")
	Close()

	if !strings.Contains(buf.String(), "recording_started") {
		t.Errorf("terminal output missing event: %q", buf.String())
	}
	data, err := os.ReadFile(filepath.Join(tmp, "diagnostics_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "session=abc") {
		t.Errorf("diagnostics missing session field: %q", data)
	}
}

func TestDebugGated(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}
	Debugf("hidden %d", 1)
	Close()

	SetDebug(true)
	if err := Init(); err != nil {
		t.Fatal(err)
	}
	Debugf("shown %d", 2)
	Close()

	data, err := os.ReadFile(filepath.Join(tmp, "diagnostics_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "hidden 1") {
		t.Error("debug line written at info level")
	}
	if !strings.Contains(string(data), "shown 2") {
		t.Error("debug line missing at debug level")
	}
}

func TestNoopBeforeInit(t *testing.T) {
	Close()
	Info("nothing")
	Errorf("nothing %d", 1)
	TranscriptionText("nothing")
}

func TestCloseIdempotent(t *testing.T) {
	setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}
	Close()
	Close() // should not panic
}

func TestTranscriptionMetrics(t *testing.T) {
	tmp := setupLogDir(t)
	if err := Init(); err != nil {
		t.Fatal(err)
	}
	TranscriptionMetrics(Metrics{AudioLengthS: 2, NetworkMs: 42, TotalTimeMs: 50}, "openai", true, "")
	Close()

	data, err := os.ReadFile(filepath.Join(tmp, "diagnostics_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"backend=openai", "conn=reused", "net_ms=42", "total_ms=50"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("diagnostics missing %q: %q", want, data)
		}
	}
}
