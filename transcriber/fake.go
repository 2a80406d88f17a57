package transcriber

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"hotscribe/config"
)

// Fake is a scripted backend for tests and -test mode. Fields set before
// Initialize win over backend options.
//
// Options: texts (list), stream_texts (list), final_text, error, fail_init,
// use_streaming, delay_ms, chunk_ms.
type Fake struct {
	Texts       []string
	StreamTexts []string
	FinalText   string
	Err         error
	InitErr     error
	Streaming   bool
	Delay       time.Duration
	ChunkMs     int

	mu        sync.Mutex
	ready     bool
	calls     int
	streamIdx int
	finalizes int
	samples   int
	cleaned   bool
}

func NewFake() *Fake { return &Fake{} }

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Initialize(_ context.Context, opts config.Options) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.InitErr == nil && opts.Bool("fail_init", false) {
		f.InitErr = errors.New("fake: initialization failed")
	}
	if f.InitErr != nil {
		return f.InitErr
	}
	if f.Texts == nil {
		f.Texts = stringList(opts["texts"])
	}
	if f.StreamTexts == nil {
		f.StreamTexts = stringList(opts["stream_texts"])
	}
	if f.FinalText == "" {
		f.FinalText = opts.String("final_text", "")
	}
	if f.Err == nil {
		if msg := opts.String("error", ""); msg != "" {
			f.Err = errors.New(msg)
		}
	}
	if !f.Streaming {
		f.Streaming = opts.Bool("use_streaming", false)
	}
	if f.Delay == 0 {
		f.Delay = time.Duration(opts.Int("delay_ms", 0)) * time.Millisecond
	}
	if f.ChunkMs == 0 {
		f.ChunkMs = opts.Int("chunk_ms", 0)
	}
	f.ready = true
	return nil
}

func stringList(v any) []string {
	switch l := v.(type) {
	case []string:
		return l
	case []any:
		out := make([]string, 0, len(l))
		for _, s := range l {
			out = append(out, fmt.Sprint(s))
		}
		return out
	case string:
		return []string{l}
	}
	return nil
}

func (f *Fake) IsInitialized() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func (f *Fake) wait(ctx context.Context) error {
	if f.Delay <= 0 {
		return nil
	}
	select {
	case <-time.After(f.Delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Fake) TranscribeComplete(ctx context.Context, samples []int16, _, _ int, language string) Result {
	if err := f.wait(ctx); err != nil {
		return errResult(err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.ready {
		return errResult(ErrNotInitialized)
	}
	f.calls++
	f.samples += len(samples)
	if f.Err != nil {
		return errResult(f.Err)
	}
	text := "hello world"
	if len(f.Texts) > 0 {
		text = f.Texts[(f.calls-1)%len(f.Texts)]
	}
	return Result{RawText: text, Language: language}
}

func (f *Fake) TranscribeStream(ctx context.Context, chunk []int16, _, _ int, language string) Result {
	if err := f.wait(ctx); err != nil {
		return errResult(err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.Streaming {
		return errResult(ErrStreamingUnsupported)
	}
	f.samples += len(chunk)
	if f.Err != nil {
		return errResult(f.Err)
	}
	if len(f.StreamTexts) == 0 {
		return Result{Language: language}
	}
	text := f.StreamTexts[min(f.streamIdx, len(f.StreamTexts)-1)]
	f.streamIdx++
	return Result{RawText: text, Language: language}
}

func (f *Fake) FinalizeStream(context.Context) Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.Streaming {
		return errResult(ErrStreamingUnsupported)
	}
	f.finalizes++
	f.streamIdx = 0
	return Result{RawText: f.FinalText, IsUtteranceEnd: true}
}

func (f *Fake) SupportsStreaming() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Streaming
}

func (f *Fake) PreferredChunkSize(sampleRate int) int {
	return f.ChunkMs * sampleRate / 1000
}

func (f *Fake) Cleanup() {
	f.mu.Lock()
	f.cleaned = true
	f.ready = false
	f.mu.Unlock()
}

// Calls reports how many complete transcriptions ran.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *Fake) Finalizes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finalizes
}

// Samples is the total number of samples passed to the backend.
func (f *Fake) Samples() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.samples
}

func (f *Fake) CleanedUp() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cleaned
}
