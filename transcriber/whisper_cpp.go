//go:build whispercpp

package transcriber

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"hotscribe/config"
)

// WhisperCpp runs whisper.cpp in process. The model is loaded once in
// Initialize; each call gets a fresh context from it.
type WhisperCpp struct {
	batchOnly
	model whisperlib.Model
}

func NewWhisperCpp() *WhisperCpp { return &WhisperCpp{} }

func (w *WhisperCpp) Name() string { return "whisper_cpp" }

func (w *WhisperCpp) Initialize(_ context.Context, opts config.Options) error {
	path := opts.String("model_path", "")
	if path == "" {
		return errors.New("whisper_cpp: model_path is required")
	}
	model, err := whisperlib.New(path)
	if err != nil {
		return fmt.Errorf("whisper_cpp: load model %q: %w", path, err)
	}
	w.model = model
	return nil
}

func (w *WhisperCpp) IsInitialized() bool { return w.model != nil }

func (w *WhisperCpp) TranscribeComplete(_ context.Context, samples []int16, sampleRate, channels int, language string) Result {
	if w.model == nil {
		return errResult(ErrNotInitialized)
	}
	if sampleRate != whisperlib.SampleRate {
		return errResult(fmt.Errorf("whisper_cpp: sample rate %d, model expects %d", sampleRate, whisperlib.SampleRate))
	}
	wctx, err := w.model.NewContext()
	if err != nil {
		return errResult(fmt.Errorf("whisper_cpp: create context: %w", err))
	}
	lang := requestLanguage(language)
	if lang == "" {
		lang = "auto"
	}
	if err := wctx.SetLanguage(lang); err != nil {
		return errResult(fmt.Errorf("whisper_cpp: language %q: %w", lang, err))
	}
	if err := wctx.Process(toFloatMono(samples, channels), nil, nil, nil); err != nil {
		return errResult(fmt.Errorf("whisper_cpp: process: %w", err))
	}

	var parts []string
	for {
		seg, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return errResult(fmt.Errorf("whisper_cpp: segment: %w", err))
		}
		if t := strings.TrimSpace(seg.Text); t != "" {
			parts = append(parts, t)
		}
	}
	detected := language
	if d := wctx.DetectedLanguage(); d != "" {
		detected = d
	}
	return Result{RawText: strings.Join(parts, " "), Language: detected}
}

func (w *WhisperCpp) Cleanup() {
	if w.model != nil {
		_ = w.model.Close()
		w.model = nil
	}
}
