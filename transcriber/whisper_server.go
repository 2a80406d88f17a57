package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"hotscribe/config"
	"hotscribe/encoder"
)

const defaultWhisperServerURL = "http://127.0.0.1:8080"

// WhisperServer posts WAV audio to a whisper.cpp example server.
type WhisperServer struct {
	batchOnly
	http *TracedClient

	url         string
	model       string
	temperature float64
	ready       bool
}

func NewWhisperServer() *WhisperServer {
	return &WhisperServer{http: NewTracedClient(5 * time.Minute)}
}

func (w *WhisperServer) Name() string { return "whisper_server" }

func (w *WhisperServer) Initialize(_ context.Context, opts config.Options) error {
	w.url = strings.TrimRight(opts.String("server_url", defaultWhisperServerURL), "/")
	if !strings.HasPrefix(w.url, "http://") && !strings.HasPrefix(w.url, "https://") {
		return fmt.Errorf("whisper_server: server_url %q must be an http(s) URL", w.url)
	}
	w.model = opts.String("model", "")
	w.temperature = opts.Float("temperature", 0)
	w.ready = true
	return nil
}

func (w *WhisperServer) IsInitialized() bool { return w.ready }

func (w *WhisperServer) TranscribeComplete(ctx context.Context, samples []int16, sampleRate, channels int, language string) Result {
	if !w.ready {
		return errResult(ErrNotInitialized)
	}
	wav, err := encoder.EncodeWAV(samples, sampleRate, channels)
	if err != nil {
		return errResult(fmt.Errorf("whisper_server: encode: %w", err))
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return errResult(err)
	}
	if _, err := part.Write(wav); err != nil {
		return errResult(err)
	}
	_ = mw.WriteField("response_format", "json")
	_ = mw.WriteField("temperature", strconv.FormatFloat(w.temperature, 'f', -1, 64))
	if lang := requestLanguage(language); lang != "" {
		_ = mw.WriteField("language", lang)
	} else {
		_ = mw.WriteField("language", "auto")
	}
	if w.model != "" {
		_ = mw.WriteField("model", w.model)
	}
	if err := mw.Close(); err != nil {
		return errResult(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url+"/inference", &body)
	if err != nil {
		return errResult(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := w.http.Do(req)
	if err != nil {
		return errResult(fmt.Errorf("whisper_server: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return errResult(fmt.Errorf("whisper_server error %d: %s", resp.StatusCode, strings.TrimSpace(string(resp.Body))))
	}
	logMetrics(w.Name(), resp.Metrics, float64(len(samples))/float64(sampleRate*max(channels, 1)), int64(len(wav)))

	var out struct {
		Text     string `json:"text"`
		Language string `json:"language"`
		Error    string `json:"error"`
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return errResult(fmt.Errorf("whisper_server response parse error: %w", err))
	}
	if out.Error != "" {
		return errResult(fmt.Errorf("whisper_server: %s", out.Error))
	}
	lang := language
	if out.Language != "" {
		lang = out.Language
	}
	return Result{RawText: strings.TrimSpace(out.Text), Language: lang}
}

func (w *WhisperServer) Cleanup() {
	w.http.HTTPClient().CloseIdleConnections()
	w.ready = false
}
