package transcriber

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptrace"
	"time"

	"github.com/openai/openai-go/option"

	"hotscribe/log"
)

// TracedClient is an HTTP client that records per-phase timings for every
// request, so slow transcriptions can be attributed to DNS, TLS, upload or
// inference.
type TracedClient struct {
	client *http.Client
}

func NewTracedClient(timeout time.Duration) *TracedClient {
	return &TracedClient{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
	}
}

type TracedResponse struct {
	Body       []byte
	StatusCode int
	Header     http.Header
	Metrics    *NetworkMetrics
}

type requestTrace struct {
	metrics *NetworkMetrics

	start, getConnStart, dnsStart, tcpStart, tlsStart time.Time
	gotConn, wroteHeaders, wroteRequest, firstByte    time.Time
}

func traceRequest(req *http.Request) (*http.Request, *requestTrace) {
	t := &requestTrace{metrics: &NetworkMetrics{}, start: time.Now()}
	m := t.metrics
	ct := &httptrace.ClientTrace{
		GetConn: func(string) { t.getConnStart = time.Now() },
		GotConn: func(info httptrace.GotConnInfo) {
			t.gotConn = time.Now()
			m.ConnWait = t.gotConn.Sub(t.getConnStart)
			m.ConnReused = info.Reused
		},
		DNSStart:          func(httptrace.DNSStartInfo) { t.dnsStart = time.Now() },
		DNSDone:           func(httptrace.DNSDoneInfo) { m.DNS = time.Since(t.dnsStart) },
		ConnectStart:      func(_, _ string) { t.tcpStart = time.Now() },
		ConnectDone:       func(_, _ string, _ error) { m.TCP = time.Since(t.tcpStart) },
		TLSHandshakeStart: func() { t.tlsStart = time.Now() },
		TLSHandshakeDone: func(cs tls.ConnectionState, _ error) {
			m.TLS = time.Since(t.tlsStart)
			m.TLSProtocol = cs.NegotiatedProtocol
		},
		WroteHeaders: func() {
			t.wroteHeaders = time.Now()
			m.ReqHeaders = t.wroteHeaders.Sub(t.gotConn)
		},
		WroteRequest: func(httptrace.WroteRequestInfo) {
			t.wroteRequest = time.Now()
			m.ReqBody = t.wroteRequest.Sub(t.wroteHeaders)
		},
		GotFirstResponseByte: func() {
			t.firstByte = time.Now()
			m.TTFB = t.firstByte.Sub(t.wroteRequest)
		},
	}
	return req.WithContext(httptrace.WithClientTrace(req.Context(), ct)), t
}

func (t *requestTrace) done() *NetworkMetrics {
	if !t.firstByte.IsZero() {
		t.metrics.Download = time.Since(t.firstByte)
	}
	t.metrics.Total = time.Since(t.start)
	return t.metrics
}

func (c *TracedClient) Do(req *http.Request) (*TracedResponse, error) {
	req, t := traceRequest(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &TracedResponse{
		Body:       body,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Metrics:    t.done(),
	}, nil
}

// Middleware traces requests made through the OpenAI SDK. Timings are
// logged as soon as the response headers arrive.
func (c *TracedClient) Middleware(backend string, audioSeconds func() float64) option.Middleware {
	return func(req *http.Request, next option.MiddlewareNext) (*http.Response, error) {
		req, t := traceRequest(req)
		size := req.ContentLength
		resp, err := next(req)
		if err != nil {
			return resp, err
		}
		logMetrics(backend, t.done(), audioSeconds(), size)
		return resp, nil
	}
}

// HTTPClient exposes the underlying client for SDKs that take one.
func (c *TracedClient) HTTPClient() *http.Client { return c.client }

func logMetrics(backend string, m *NetworkMetrics, audioSeconds float64, uploadBytes int64) {
	log.TranscriptionMetrics(log.Metrics{
		AudioLengthS: audioSeconds,
		UploadKB:     float64(uploadBytes) / 1024,
		DNSTimeMs:    ms(m.DNS),
		TLSTimeMs:    ms(m.TLS),
		TTFBMs:       ms(m.TTFB),
		NetworkMs:    ms(m.Sum()),
		TotalTimeMs:  ms(m.Total),
	}, backend, m.ConnReused, m.TLSProtocol)
}

func ms(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }
