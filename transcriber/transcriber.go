// Package transcriber turns recorded audio into text. A Backend is one
// speech-to-text engine; a Manager owns one backend for one profile and runs
// the worker goroutine that drains the profile's audio queue.
package transcriber

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"hotscribe/config"
)

var (
	ErrStreamingUnsupported = errors.New("backend does not support streaming")
	ErrUnknownBackend       = errors.New("unknown backend type")
	ErrNotInitialized       = errors.New("backend is not initialized")
)

// Result is what a backend returns for one call. Err is set instead of
// returning an error so results can travel on the bus unchanged.
type Result struct {
	RawText        string
	Language       string
	Err            error
	IsUtteranceEnd bool
}

func errResult(err error) Result { return Result{Err: err} }

// Backend is a speech-to-text engine. Calls for one backend are made from a
// single goroutine.
type Backend interface {
	Name() string
	Initialize(ctx context.Context, opts config.Options) error
	IsInitialized() bool
	TranscribeComplete(ctx context.Context, samples []int16, sampleRate, channels int, language string) Result
	// TranscribeStream feeds one chunk. The returned text is the current
	// hypothesis for the utterance in progress, replacing earlier ones.
	TranscribeStream(ctx context.Context, chunk []int16, sampleRate, channels int, language string) Result
	FinalizeStream(ctx context.Context) Result
	// PreferredChunkSize is the streaming chunk length in samples, or 0.
	PreferredChunkSize(sampleRate int) int
	Cleanup()
}

// batchOnly supplies the streaming half of Backend for engines that only
// transcribe complete recordings.
type batchOnly struct{}

func (batchOnly) TranscribeStream(context.Context, []int16, int, int, string) Result {
	return errResult(ErrStreamingUnsupported)
}

func (batchOnly) FinalizeStream(context.Context) Result {
	return errResult(ErrStreamingUnsupported)
}

func (batchOnly) PreferredChunkSize(int) int { return 0 }

func (batchOnly) SupportsStreaming() bool { return false }

// SupportsStreaming reports whether b can transcribe incrementally.
// Backends that do not say otherwise are assumed to.
func SupportsStreaming(b Backend) bool {
	if s, ok := b.(interface{ SupportsStreaming() bool }); ok {
		return s.SupportsStreaming()
	}
	return true
}

// requestLanguage maps the configured language to what goes on the wire.
// "auto" and "" both mean autodetect.
func requestLanguage(lang string) string {
	if strings.EqualFold(lang, "auto") {
		return ""
	}
	return lang
}

type NetworkMetrics struct {
	DNS         time.Duration
	ConnWait    time.Duration
	TCP         time.Duration
	TLS         time.Duration
	ReqHeaders  time.Duration
	ReqBody     time.Duration
	TTFB        time.Duration
	Download    time.Duration
	Total       time.Duration
	ConnReused  bool
	TLSProtocol string
}

// Sum is the time spent in the traced request phases. Total minus Sum is
// time outside the network, such as body encoding.
func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}
