//go:build integration

package test_test

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// The binary under test is built separately:
//
//	go build -o /tmp/hotscribe . && HOTSCRIBE_TEST_BIN=/tmp/hotscribe go test -tags integration ./test
var testBinary string

func TestMain(m *testing.M) {
	testBinary = os.Getenv("HOTSCRIBE_TEST_BIN")
	if testBinary == "" {
		fmt.Fprintln(os.Stderr, "HOTSCRIBE_TEST_BIN not set")
		os.Exit(1)
	}
	os.Exit(m.Run())
}

// writeToneWAV writes a 16-bit mono 440 Hz tone.
func writeToneWAV(t *testing.T, sampleRate int, seconds float64) string {
	t.Helper()
	const headerSize = 44
	n := int(float64(sampleRate) * seconds)
	dataSize := n * 2

	buf := make([]byte, headerSize+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(headerSize-8+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	for i := 0; i < n; i++ {
		v := int16(8000 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
		binary.LittleEndian.PutUint16(buf[headerSize+2*i:], uint16(v))
	}

	path := filepath.Join(t.TempDir(), "tone.wav")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func cmds(parts ...string) string {
	return strings.Join(parts, "\n") + "\n"
}

type runResult struct {
	stdout string
	logDir string
}

func runHotscribe(t *testing.T, configPath, wav, stdin string) runResult {
	t.Helper()
	logDir := t.TempDir()
	cmd := exec.Command(testBinary, "-config", configPath, "-logpath", logDir, "-test", wav)
	cmd.Stdin = strings.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("hotscribe exited with error: %v\nstderr: %s", err, stderr.String())
		}
	case <-time.After(60 * time.Second):
		cmd.Process.Kill()
		t.Fatalf("hotscribe did not exit\nstderr: %s", stderr.String())
	}
	return runResult{stdout: stdout.String(), logDir: logDir}
}

func readLog(t *testing.T, logDir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(logDir, name))
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("read %s: %v", name, err)
	}
	return string(data)
}

const batchConfig = `
global_options:
  input_backend: stdin
profiles:
  - name: dictate
    activation_key: f9
    backend_type: fake
    backend:
      texts: ["hello from the test"]
    recording_options:
      recording_mode: hold_to_record
    post_processing:
      enabled_scripts: [capitalize, add_trailing_space]
      keyboard_simulator: print
`

func TestBatchHoldToRecord(t *testing.T) {
	cfg := writeConfig(t, batchConfig)
	wav := writeToneWAV(t, 16000, 2)
	res := runHotscribe(t, cfg, wav, cmds("press f9", "sleep 600ms", "release f9"))

	if !strings.Contains(res.stdout, "Hello from the test ") {
		t.Errorf("stdout = %q, want processed transcription", res.stdout)
	}
	if !strings.Contains(readLog(t, res.logDir, "transcribe_log.txt"), "Hello from the test") {
		t.Error("transcription missing from transcribe_log.txt")
	}
	diag := readLog(t, res.logDir, "diagnostics_log.txt")
	for _, want := range []string{"recording_started", "recording_stopped"} {
		if !strings.Contains(diag, want) {
			t.Errorf("diagnostics missing %q", want)
		}
	}
}

func TestBatchTwoSessions(t *testing.T) {
	cfg := writeConfig(t, strings.Replace(batchConfig,
		`texts: ["hello from the test"]`, `texts: ["first", "second"]`, 1))
	wav := writeToneWAV(t, 16000, 3)
	res := runHotscribe(t, cfg, wav, cmds(
		"press f9", "sleep 400ms", "release f9",
		"sleep 500ms",
		"press f9", "sleep 400ms", "release f9",
	))
	if !strings.Contains(res.stdout, "First Second ") {
		t.Errorf("stdout = %q, want both sessions in order", res.stdout)
	}
}

func TestShortRecordingDiscarded(t *testing.T) {
	cfg := writeConfig(t, strings.Replace(batchConfig,
		"recording_mode: hold_to_record", "recording_mode: hold_to_record\n      min_duration: 2000", 1))
	wav := writeToneWAV(t, 16000, 2)
	res := runHotscribe(t, cfg, wav, cmds("press f9", "sleep 300ms", "release f9"))
	if strings.Contains(res.stdout, "Hello") {
		t.Errorf("stdout = %q, short recording should be discarded", res.stdout)
	}
}

const streamConfig = `
global_options:
  input_backend: stdin
profiles:
  - name: live
    activation_key: f8
    backend_type: fake
    backend:
      use_streaming: true
      chunk_ms: 100
      stream_texts: ["hel", "hello", "hello world"]
      final_text: "hello world"
    recording_options:
      recording_mode: press_to_toggle
    post_processing:
      keyboard_simulator: print
`

func TestStreamingToggle(t *testing.T) {
	cfg := writeConfig(t, streamConfig)
	wav := writeToneWAV(t, 16000, 2)
	res := runHotscribe(t, cfg, wav, cmds("tap f8", "sleep 800ms", "tap f8"))
	if !strings.Contains(res.stdout, "hello world") {
		t.Errorf("stdout = %q, want streamed text", res.stdout)
	}
}
