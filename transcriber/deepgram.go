package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"hotscribe/config"
	"hotscribe/encoder"
	"hotscribe/log"
)

const (
	defaultDeepgramURL   = "https://api.deepgram.com"
	defaultDeepgramModel = "nova-3"
)

// Deepgram transcribes FLAC uploads over HTTP and, for streaming profiles,
// raw linear16 over a websocket opened lazily for each session.
type Deepgram struct {
	http *TracedClient

	apiKey      string
	baseURL     string
	model       string
	smartFormat bool
	ready       bool

	stream *deepgramStream
}

func NewDeepgram() *Deepgram {
	return &Deepgram{http: NewTracedClient(2 * time.Minute)}
}

func (d *Deepgram) Name() string { return "deepgram" }

func (d *Deepgram) Initialize(_ context.Context, opts config.Options) error {
	d.apiKey = opts.String("api_key", os.Getenv("DEEPGRAM_API_KEY"))
	if d.apiKey == "" {
		return errors.New("deepgram: no api key (set backend api_key or DEEPGRAM_API_KEY)")
	}
	d.baseURL = strings.TrimRight(opts.String("base_url", defaultDeepgramURL), "/")
	d.model = opts.String("model", defaultDeepgramModel)
	d.smartFormat = opts.Bool("smart_format", true)
	d.ready = true
	return nil
}

func (d *Deepgram) IsInitialized() bool { return d.ready }

// PreferredChunkSize is 100 ms, the granularity Deepgram recommends.
func (d *Deepgram) PreferredChunkSize(sampleRate int) int { return sampleRate / 10 }

func (d *Deepgram) listenURL(scheme string, q url.Values) (string, error) {
	u, err := url.Parse(d.baseURL + "/v1/listen")
	if err != nil {
		return "", err
	}
	if scheme != "" {
		u.Scheme = scheme
	}
	q.Set("model", d.model)
	q.Set("smart_format", strconv.FormatBool(d.smartFormat))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type deepgramResponse struct {
	Metadata struct {
		Duration float64 `json:"duration"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			DetectedLanguage string `json:"detected_language"`
			Alternatives     []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func (d *Deepgram) TranscribeComplete(ctx context.Context, samples []int16, sampleRate, channels int, language string) Result {
	if !d.ready {
		return errResult(ErrNotInitialized)
	}
	data, err := encoder.EncodeFLAC(samples, sampleRate, channels)
	if err != nil {
		return errResult(fmt.Errorf("deepgram: encode: %w", err))
	}

	q := url.Values{}
	if lang := requestLanguage(language); lang != "" {
		q.Set("language", lang)
	} else {
		q.Set("detect_language", "true")
	}
	endpoint, err := d.listenURL("", q)
	if err != nil {
		return errResult(fmt.Errorf("deepgram: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return errResult(err)
	}
	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", "audio/flac")

	resp, err := d.http.Do(req)
	if err != nil {
		return errResult(fmt.Errorf("deepgram: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return errResult(fmt.Errorf("deepgram API error %d: %s", resp.StatusCode, string(resp.Body)))
	}
	logMetrics(d.Name(), resp.Metrics, float64(len(samples))/float64(sampleRate*max(channels, 1)), int64(len(data)))

	var dg deepgramResponse
	if err := json.Unmarshal(resp.Body, &dg); err != nil {
		return errResult(fmt.Errorf("deepgram response parse error: %w", err))
	}

	res := Result{Language: language}
	if len(dg.Results.Channels) > 0 {
		ch := dg.Results.Channels[0]
		if ch.DetectedLanguage != "" {
			res.Language = ch.DetectedLanguage
		}
		if len(ch.Alternatives) > 0 {
			res.RawText = strings.TrimSpace(ch.Alternatives[0].Transcript)
		}
	}
	remaining := firstNonEmpty(resp.Header, "x-dg-ratelimit-remaining", "x-ratelimit-remaining", "ratelimit-remaining")
	limit := firstNonEmpty(resp.Header, "x-dg-ratelimit-limit", "x-ratelimit-limit", "ratelimit-limit")
	log.Debugf("deepgram: rate limit %s/%s", remaining, limit)
	return res
}

func (d *Deepgram) Cleanup() {
	d.closeStream()
	d.http.HTTPClient().CloseIdleConnections()
	d.ready = false
}
