package transcriber

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"hotscribe/config"
	"hotscribe/encoder"
)

const defaultOpenAIModel = "whisper-1"

// OpenAI talks to /v1/audio/transcriptions. With base_url it also serves
// Groq and other compatible endpoints.
type OpenAI struct {
	batchOnly
	http *TracedClient

	client      openai.Client
	model       string
	prompt      string
	temperature *float64
	ready       bool
	audioS      float64
}

func NewOpenAI() *OpenAI {
	return &OpenAI{http: NewTracedClient(2 * time.Minute)}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Initialize(_ context.Context, opts config.Options) error {
	key := opts.String("api_key", os.Getenv("OPENAI_API_KEY"))
	if key == "" {
		return errors.New("openai: no api key (set backend api_key or OPENAI_API_KEY)")
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithHTTPClient(o.http.HTTPClient()),
		option.WithMiddleware(o.http.Middleware(o.Name(), func() float64 { return o.audioS })),
		option.WithMaxRetries(1),
	}
	if base := opts.String("base_url", ""); base != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(base))
	}
	o.client = openai.NewClient(reqOpts...)
	o.model = opts.String("model", defaultOpenAIModel)
	o.prompt = opts.String("initial_prompt", "")
	if _, ok := opts["temperature"]; ok {
		t := opts.Float("temperature", 0)
		o.temperature = &t
	}
	o.ready = true
	return nil
}

func (o *OpenAI) IsInitialized() bool { return o.ready }

func (o *OpenAI) TranscribeComplete(ctx context.Context, samples []int16, sampleRate, channels int, language string) Result {
	if !o.ready {
		return errResult(ErrNotInitialized)
	}
	data, err := encoder.EncodeFLAC(samples, sampleRate, channels)
	if err != nil {
		return errResult(fmt.Errorf("openai: encode: %w", err))
	}
	o.audioS = float64(len(samples)) / float64(sampleRate*max(channels, 1))

	params := openai.AudioTranscriptionNewParams{
		File:           openai.File(bytes.NewReader(data), "audio.flac", "audio/flac"),
		Model:          openai.AudioModel(o.model),
		ResponseFormat: openai.AudioResponseFormatJSON,
	}
	if lang := requestLanguage(language); lang != "" {
		params.Language = openai.String(lang)
	}
	if o.prompt != "" {
		params.Prompt = openai.String(o.prompt)
	}
	if o.temperature != nil {
		params.Temperature = openai.Float(*o.temperature)
	}

	tr, err := o.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return errResult(fmt.Errorf("openai: %w", err))
	}
	return Result{RawText: strings.TrimSpace(tr.Text), Language: language}
}

func (o *OpenAI) Cleanup() {
	o.http.HTTPClient().CloseIdleConnections()
	o.ready = false
}
