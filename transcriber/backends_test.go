package transcriber

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"hotscribe/config"
)

func TestWhisperServerTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inference" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		head := make([]byte, 4)
		io.ReadFull(f, head)
		if string(head) != "RIFF" || hdr.Filename != "audio.wav" {
			http.Error(w, "not a wav upload", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"text": " hi there ", "language": r.FormValue("language")})
	}))
	defer srv.Close()

	w := NewWhisperServer()
	if err := w.Initialize(context.Background(), config.Options{"server_url": srv.URL}); err != nil {
		t.Fatal(err)
	}
	res := w.TranscribeComplete(context.Background(), make([]int16, 1600), 16000, 1, "de")
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	if res.RawText != "hi there" || res.Language != "de" {
		t.Errorf("result = %+v", res)
	}

	res = w.TranscribeComplete(context.Background(), make([]int16, 1600), 16000, 1, "auto")
	if res.Language != "auto" {
		t.Errorf("autodetect language = %q", res.Language)
	}
}

func TestWhisperServerRejectsBadURL(t *testing.T) {
	if err := NewWhisperServer().Initialize(context.Background(), config.Options{"server_url": "ftp://x"}); err == nil {
		t.Fatal("expected error for non-http server_url")
	}
}

func TestWhisperServerHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	w := NewWhisperServer()
	if err := w.Initialize(context.Background(), config.Options{"server_url": srv.URL}); err != nil {
		t.Fatal(err)
	}
	res := w.TranscribeComplete(context.Background(), make([]int16, 160), 16000, 1, "en")
	if res.Err == nil || !strings.Contains(res.Err.Error(), "500") {
		t.Errorf("err = %v", res.Err)
	}
}

func TestDeepgramBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token k" || r.Header.Get("Content-Type") != "audio/flac" {
			http.Error(w, "bad headers", http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("detect_language") != "true" || r.URL.Query().Get("model") != "nova-3" {
			http.Error(w, "bad query "+r.URL.RawQuery, http.StatusBadRequest)
			return
		}
		io.WriteString(w, `{"results":{"channels":[{"detected_language":"fr","alternatives":[{"transcript":"bonjour","confidence":0.9}]}]}}`)
	}))
	defer srv.Close()

	d := NewDeepgram()
	if err := d.Initialize(context.Background(), config.Options{"api_key": "k", "base_url": srv.URL}); err != nil {
		t.Fatal(err)
	}
	res := d.TranscribeComplete(context.Background(), make([]int16, 1600), 16000, 1, "auto")
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	if res.RawText != "bonjour" || res.Language != "fr" {
		t.Errorf("result = %+v", res)
	}
}

func TestDeepgramRequiresKey(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "")
	if err := NewDeepgram().Initialize(context.Background(), nil); err == nil {
		t.Fatal("expected missing key error")
	}
}

func dgMessage(text string, isFinal, speechFinal, fromFinalize bool) []byte {
	m := map[string]any{
		"type":          "Results",
		"is_final":      isFinal,
		"speech_final":  speechFinal,
		"from_finalize": fromFinalize,
		"channel": map[string]any{
			"alternatives": []map[string]any{{"transcript": text}},
		},
	}
	b, _ := json.Marshal(m)
	return b
}

func TestDeepgramStreamFinalize(t *testing.T) {
	query := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query <- r.URL.RawQuery
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.CloseNow()
		ctx := r.Context()
		chunks := 0
		for {
			typ, data, err := c.Read(ctx)
			if err != nil {
				return
			}
			if typ == websocket.MessageBinary {
				chunks++
				switch chunks {
				case 1:
					c.Write(ctx, websocket.MessageText, dgMessage("hel", false, false, false))
				case 2:
					c.Write(ctx, websocket.MessageText, dgMessage("hello", true, false, false))
				}
				continue
			}
			if strings.Contains(string(data), "Finalize") {
				c.Write(ctx, websocket.MessageText, dgMessage("world", true, false, true))
			}
		}
	}))
	defer srv.Close()

	d := NewDeepgram()
	if err := d.Initialize(context.Background(), config.Options{"api_key": "k", "base_url": srv.URL}); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for range 2 {
		if res := d.TranscribeStream(ctx, make([]int16, 1600), 16000, 1, "en"); res.Err != nil {
			t.Fatal(res.Err)
		}
	}
	q := <-query
	if !strings.Contains(q, "sample_rate=16000") || !strings.Contains(q, "encoding=linear16") {
		t.Errorf("query = %s", q)
	}

	res := d.FinalizeStream(ctx)
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	if res.RawText != "hello world" || !res.IsUtteranceEnd {
		t.Errorf("final = %+v", res)
	}
	if d.stream != nil {
		t.Error("stream left open after finalize")
	}
	d.Cleanup()
}

func TestDeepgramStreamUtteranceEnd(t *testing.T) {
	s := &deepgramStream{}
	if _, end := s.apply(deepgramMessage{IsFinal: true}); end {
		t.Fatal("empty final should not end the utterance")
	}
	msg := func(text string, final, speech bool) deepgramMessage {
		var m deepgramMessage
		json.Unmarshal(dgMessage(text, final, speech, false), &m)
		return m
	}
	s.apply(msg("good", true, false))
	s.apply(msg("morn", false, false))
	if h := s.hypothesis(); h != "good morn" {
		t.Errorf("hypothesis = %q", h)
	}
	text, end := s.apply(msg("morning", true, true))
	if !end || text != "good morning" {
		t.Errorf("utterance = %q, %v", text, end)
	}
	if s.hypothesis() != "" {
		t.Error("state not reset after utterance end")
	}
}

func TestOpenAITranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/audio/transcriptions") {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.FormValue("model") != "whisper-1" || r.FormValue("language") != "en" || r.FormValue("prompt") != "Hotscribe" {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"text":"Hello from the API."}`)
	}))
	defer srv.Close()

	o := NewOpenAI()
	err := o.Initialize(context.Background(), config.Options{
		"api_key":        "sk-test",
		"base_url":       srv.URL + "/v1/",
		"initial_prompt": "Hotscribe",
	})
	if err != nil {
		t.Fatal(err)
	}
	res := o.TranscribeComplete(context.Background(), make([]int16, 16000), 16000, 1, "en")
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	if res.RawText != "Hello from the API." {
		t.Errorf("text = %q", res.RawText)
	}
}

func TestToFloatMono(t *testing.T) {
	got := toFloatMono([]int16{16384, -16384, 0, 32767}, 2)
	if len(got) != 2 || got[0] != 0 {
		t.Fatalf("stereo downmix = %v", got)
	}
	if mono := toFloatMono([]int16{-32768}, 1); mono[0] != -1 {
		t.Errorf("mono = %v", mono)
	}
}

func TestRequestLanguage(t *testing.T) {
	for in, want := range map[string]string{"auto": "", "AUTO": "", "": "", "en": "en"} {
		if got := requestLanguage(in); got != want {
			t.Errorf("requestLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNetworkMetricsSum(t *testing.T) {
	m := &NetworkMetrics{
		DNS:      2 * time.Millisecond,
		TCP:      3 * time.Millisecond,
		TLS:      5 * time.Millisecond,
		TTFB:     40 * time.Millisecond,
		Download: 10 * time.Millisecond,
		Total:    75 * time.Millisecond,
	}
	if got := m.Sum(); got != 60*time.Millisecond {
		t.Errorf("Sum = %v, want 60ms", got)
	}
}
