package transcriber

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"

	"hotscribe/encoder"
	"hotscribe/log"
)

const (
	streamDialTimeout  = 10 * time.Second
	streamFinalizeMax  = 1000 * time.Millisecond
	streamCloseTimeout = 500 * time.Millisecond
)

type deepgramMessage struct {
	Type         string `json:"type"`
	IsFinal      bool   `json:"is_final"`
	SpeechFinal  bool   `json:"speech_final"`
	FromFinalize bool   `json:"from_finalize"`
	Channel      struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (m deepgramMessage) transcript() string {
	if len(m.Channel.Alternatives) == 0 {
		return ""
	}
	return strings.TrimSpace(m.Channel.Alternatives[0].Transcript)
}

// deepgramStream is one websocket session. Finalized segments of the
// current utterance accumulate in committed; interim holds the latest
// unfinalized hypothesis.
type deepgramStream struct {
	conn    *websocket.Conn
	cancel  context.CancelFunc
	msgs    chan deepgramMessage
	readErr chan error

	committed []string
	interim   string

	started time.Time
	stats   log.StreamMetricsData
}

func (d *Deepgram) openStream(ctx context.Context, sampleRate, channels int, language string) (*deepgramStream, error) {
	q := url.Values{}
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(sampleRate))
	q.Set("channels", strconv.Itoa(max(channels, 1)))
	q.Set("interim_results", "true")
	if lang := requestLanguage(language); lang != "" {
		q.Set("language", lang)
	}
	scheme := "wss"
	if strings.HasPrefix(d.baseURL, "http://") {
		scheme = "ws"
	}
	endpoint, err := d.listenURL(scheme, q)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+d.apiKey)

	start := time.Now()
	dialCtx, cancelDial := context.WithTimeout(ctx, streamDialTimeout)
	defer cancelDial()
	conn, _, err := websocket.Dial(dialCtx, endpoint, &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		return nil, fmt.Errorf("deepgram: dial: %w", err)
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	s := &deepgramStream{
		conn:    conn,
		cancel:  cancel,
		msgs:    make(chan deepgramMessage, 64),
		readErr: make(chan error, 1),
		started: time.Now(),
	}
	s.stats.ConnectMs = ms(time.Since(start))
	go s.read(streamCtx)
	return s, nil
}

func (s *deepgramStream) read(ctx context.Context) {
	defer close(s.msgs)
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.readErr <- err
			}
			return
		}
		var m deepgramMessage
		if err := json.Unmarshal(data, &m); err != nil {
			log.Debugf("deepgram: bad message: %v", err)
			continue
		}
		if m.Type != "Results" {
			continue
		}
		select {
		case s.msgs <- m:
		case <-ctx.Done():
			return
		}
	}
}

func (s *deepgramStream) hypothesis() string {
	parts := s.committed
	if s.interim != "" {
		parts = append(parts[:len(parts):len(parts)], s.interim)
	}
	return strings.Join(parts, " ")
}

// apply folds one message into the utterance state. It reports true with
// the full utterance text when the message ends the utterance.
func (s *deepgramStream) apply(m deepgramMessage) (string, bool) {
	s.stats.RecvMessages++
	text := m.transcript()
	if m.IsFinal {
		s.stats.RecvFinal++
		if text != "" {
			s.committed = append(s.committed, text)
		}
		s.interim = ""
	} else {
		s.interim = text
	}
	if m.SpeechFinal {
		full := s.hypothesis()
		s.committed = nil
		s.interim = ""
		return full, true
	}
	return "", false
}

func (s *deepgramStream) failed() error {
	select {
	case err := <-s.readErr:
		return err
	default:
		return nil
	}
}

func (d *Deepgram) TranscribeStream(ctx context.Context, chunk []int16, sampleRate, channels int, language string) Result {
	if !d.ready {
		return errResult(ErrNotInitialized)
	}
	if d.stream == nil {
		s, err := d.openStream(ctx, sampleRate, channels, language)
		if err != nil {
			return errResult(err)
		}
		d.stream = s
	}
	s := d.stream
	if err := s.failed(); err != nil {
		d.closeStream()
		return errResult(fmt.Errorf("deepgram: stream: %w", err))
	}

	pcm := encoder.BytesFromInt16(chunk)
	if err := s.conn.Write(ctx, websocket.MessageBinary, pcm); err != nil {
		d.closeStream()
		return errResult(fmt.Errorf("deepgram: send: %w", err))
	}
	s.stats.SentChunks++
	s.stats.SentKB += float64(len(pcm)) / 1024

	changed := false
	for {
		select {
		case m, ok := <-s.msgs:
			if !ok {
				return Result{RawText: s.hypothesis(), Language: language}
			}
			if text, end := s.apply(m); end {
				return Result{RawText: text, Language: language, IsUtteranceEnd: true}
			}
			changed = true
		default:
			if !changed {
				return Result{Language: language}
			}
			return Result{RawText: s.hypothesis(), Language: language}
		}
	}
}

// FinalizeStream flushes the server side buffer and returns everything
// recognized since the last utterance end as one final result.
func (d *Deepgram) FinalizeStream(ctx context.Context) Result {
	s := d.stream
	if s == nil {
		return Result{IsUtteranceEnd: true}
	}
	defer d.closeStream()

	start := time.Now()
	if err := s.conn.Write(ctx, websocket.MessageText, []byte(`{"type":"Finalize"}`)); err != nil {
		return errResult(fmt.Errorf("deepgram: finalize: %w", err))
	}

	var done []string
	timer := time.NewTimer(streamFinalizeMax)
	defer timer.Stop()
wait:
	for {
		select {
		case m, ok := <-s.msgs:
			if !ok {
				break wait
			}
			if text, end := s.apply(m); end && text != "" {
				done = append(done, text)
			}
			if m.FromFinalize {
				break wait
			}
		case <-timer.C:
			log.Warn("deepgram: no finalize reply, using last hypothesis")
			break wait
		case <-ctx.Done():
			break wait
		}
	}
	s.stats.FinalizeMs = ms(time.Since(start))

	if h := s.hypothesis(); h != "" {
		done = append(done, h)
	}
	s.committed = nil
	s.interim = ""
	return Result{RawText: strings.Join(done, " "), IsUtteranceEnd: true}
}

func (d *Deepgram) closeStream() {
	s := d.stream
	if s == nil {
		return
	}
	d.stream = nil
	ctx, cancel := context.WithTimeout(context.Background(), streamCloseTimeout)
	defer cancel()
	_ = s.conn.Write(ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`))
	s.cancel()
	_ = s.conn.Close(websocket.StatusNormalClosure, "")
	log.StreamMetrics(s.stats)
}
