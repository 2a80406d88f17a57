//go:build !whispercpp

package transcriber

import (
	"context"
	"errors"

	"hotscribe/config"
)

var errNoWhisperCpp = errors.New("whisper_cpp: this build has no whisper.cpp support (rebuild with -tags whispercpp)")

type WhisperCpp struct{ batchOnly }

func NewWhisperCpp() *WhisperCpp { return &WhisperCpp{} }

func (w *WhisperCpp) Name() string { return "whisper_cpp" }

func (w *WhisperCpp) Initialize(context.Context, config.Options) error { return errNoWhisperCpp }

func (w *WhisperCpp) IsInitialized() bool { return false }

func (w *WhisperCpp) TranscribeComplete(context.Context, []int16, int, int, string) Result {
	return errResult(errNoWhisperCpp)
}

func (w *WhisperCpp) Cleanup() {}
