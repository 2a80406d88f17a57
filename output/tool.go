package output

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"hotscribe/log"
)

const toolTimeout = 10 * time.Second

// ydotool runs one ydotool invocation per call; ydotoold must be running.
type ydotool struct {
	delay time.Duration
	run   func(ctx context.Context, name string, args ...string) error
}

func newYdotool(delay time.Duration) (Simulator, error) {
	if _, err := exec.LookPath("ydotool"); err != nil {
		return nil, fmt.Errorf("ydotool: %w", err)
	}
	return &ydotool{delay: delay, run: runTool}, nil
}

func runTool(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (y *ydotool) Typewrite(text string) error {
	if text == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), toolTimeout)
	defer cancel()
	return y.run(ctx, "ydotool", y.typeArgs(text)...)
}

func (y *ydotool) typeArgs(text string) []string {
	return []string{"type", "--key-delay", strconv.FormatInt(y.delay.Milliseconds(), 10), "--", text}
}

func (y *ydotool) Backspace(n int) error {
	if n <= 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), toolTimeout)
	defer cancel()
	return y.run(ctx, "ydotool", backspaceArgs(n)...)
}

func backspaceArgs(n int) []string {
	args := make([]string, 0, 1+2*n)
	args = append(args, "key")
	press := strconv.Itoa(keyBackspace)
	for range n {
		args = append(args, press+":1", press+":0")
	}
	return args
}

func (y *ydotool) Cleanup() {}

// dotool keeps one dotool process alive and feeds it commands on stdin.
type dotool struct {
	mu    sync.Mutex
	cmd   *exec.Cmd
	w     *bufio.Writer
	stdin io.Closer
}

func newDotool(delay time.Duration) (Simulator, error) {
	cmd := exec.Command("dotool")
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("dotool: %w", err)
	}
	d := &dotool{cmd: cmd, w: bufio.NewWriter(stdin), stdin: stdin}
	if err := d.send(fmt.Sprintf("typedelay %d", delay.Milliseconds())); err != nil {
		d.Cleanup()
		return nil, err
	}
	return d, nil
}

func newDotoolWriter(w io.WriteCloser, delay time.Duration) *dotool {
	d := &dotool{w: bufio.NewWriter(w), stdin: w}
	d.send(fmt.Sprintf("typedelay %d", delay.Milliseconds()))
	return d
}

func (d *dotool) send(lines ...string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.w == nil {
		return io.ErrClosedPipe
	}
	for _, line := range lines {
		if _, err := d.w.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return d.w.Flush()
}

func (d *dotool) Typewrite(text string) error {
	if text == "" {
		return nil
	}
	// dotool reads one command per line
	var lines []string
	for i, part := range strings.Split(text, "\n") {
		if i > 0 {
			lines = append(lines, "key enter")
		}
		if part != "" {
			lines = append(lines, "type "+part)
		}
	}
	return d.send(lines...)
}

func (d *dotool) Backspace(n int) error {
	if n <= 0 {
		return nil
	}
	lines := make([]string, n)
	for i := range lines {
		lines[i] = "key backspace"
	}
	return d.send(lines...)
}

func (d *dotool) Cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.w == nil {
		return
	}
	d.stdin.Close()
	d.w = nil
	if d.cmd != nil {
		if err := d.cmd.Wait(); err != nil {
			log.Debugf("dotool exited: %v", err)
		}
	}
}
