package dispatch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lupppig/notifyhttp/internal/domain"
	"github.com/lupppig/notifyhttp/internal/httpclient"
	"github.com/lupppig/notifyhttp/internal/logging"
	"github.com/lupppig/notifyhttp/internal/retry"
)

// mockRequestLogStore implements store.RequestLogStore for testing
type mockRequestLogStore struct {
	entries []*domain.RequestLog
	err     error
	panics  bool
	mu      sync.Mutex
}

func (s *mockRequestLogStore) LogRequest(ctx context.Context, entry *domain.RequestLog) error {
	if s.panics {
		panic("sink exploded")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return s.err
}

func (s *mockRequestLogStore) Close() error {
	return nil
}

func (s *mockRequestLogStore) GetAll() []*domain.RequestLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]*domain.RequestLog, len(s.entries))
	copy(result, s.entries)
	return result
}

// fakeTimer fires immediately and records every requested delay
type fakeTimer struct {
	delays *[]time.Duration
	mu     *sync.Mutex
	ch     chan time.Time
}

func newFakeTimerFactory() (func() backoff.Timer, func() []time.Duration) {
	var delays []time.Duration
	var mu sync.Mutex
	factory := func() backoff.Timer {
		return &fakeTimer{delays: &delays, mu: &mu, ch: make(chan time.Time, 1)}
	}
	recorded := func() []time.Duration {
		mu.Lock()
		defer mu.Unlock()
		out := make([]time.Duration, len(delays))
		copy(out, delays)
		return out
	}
	return factory, recorded
}

func (t *fakeTimer) Start(d time.Duration) {
	t.mu.Lock()
	*t.delays = append(*t.delays, d)
	t.mu.Unlock()
	t.ch <- time.Now()
}

func (t *fakeTimer) Stop() {}

func (t *fakeTimer) C() <-chan time.Time {
	return t.ch
}

// flakyClient fails the first n attempts at the transport level
type flakyClient struct {
	failures int
	calls    atomic.Int32
	next     Client
}

func (c *flakyClient) Do(req *http.Request) (*httpclient.Response, error) {
	if int(c.calls.Add(1)) <= c.failures {
		return nil, &httpclient.TransportError{Op: "execute request", Err: errors.New("connection reset by peer")}
	}
	return c.next.Do(req)
}

func (c *flakyClient) CloseIdleConnections() {}

// panicClient fails at the transport level for the first failures calls, then panics
type panicClient struct {
	failures int
	calls    atomic.Int32
}

func (c *panicClient) Do(req *http.Request) (*httpclient.Response, error) {
	if int(c.calls.Add(1)) <= c.failures {
		return nil, &httpclient.TransportError{Op: "execute request", Err: errors.New("connection refused")}
	}
	panic("boom")
}

func (c *panicClient) CloseIdleConnections() {}

type capturedRequest struct {
	method      string
	contentType string
	body        string
}

func newRecordingServer(t *testing.T, status int) (*httptest.Server, func() []capturedRequest) {
	t.Helper()
	var mu sync.Mutex
	var captured []capturedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		captured = append(captured, capturedRequest{
			method:      r.Method,
			contentType: r.Header.Get("Content-Type"),
			body:        string(body),
		})
		mu.Unlock()
		w.WriteHeader(status)
		w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(server.Close)
	return server, func() []capturedRequest {
		mu.Lock()
		defer mu.Unlock()
		out := make([]capturedRequest, len(captured))
		copy(out, captured)
		return out
	}
}

func testPolicy() retry.Config {
	return retry.Config{MaxAttempts: 3, Delay: 2 * time.Second, AttemptTimeout: time.Second}
}

func newTestDispatcher(t *testing.T, sink *mockRequestLogStore, opts Options) (*Dispatcher, func() []time.Duration) {
	t.Helper()
	timerFactory, delays := newFakeTimerFactory()
	if opts.Retry == (retry.Config{}) {
		opts.Retry = testPolicy()
	}
	if sink != nil {
		opts.Store = sink
	}
	opts.Logger = logging.Discard()
	if opts.NewTimer == nil {
		opts.NewTimer = timerFactory
	}
	d, err := New(opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return d, delays
}

// TestSuccessfulDispatchAllMethods verifies 2xx completes in one attempt with one log entry
func TestSuccessfulDispatchAllMethods(t *testing.T) {
	for _, method := range []string{"GET", "POST", "PUT", "DELETE"} {
		t.Run(method, func(t *testing.T) {
			server, requests := newRecordingServer(t, http.StatusOK)
			sink := &mockRequestLogStore{}
			d, _ := newTestDispatcher(t, sink, Options{})

			res := d.Run(context.Background(), "success", nil, map[string]string{
				"url":    server.URL,
				"method": method,
				"body":   `{"message":"hi"}`,
			})

			if !res.OK {
				t.Fatalf("expected success, got %+v", res)
			}
			if res.Outcome.Attempts != 1 {
				t.Errorf("expected 1 attempt, got %d", res.Outcome.Attempts)
			}
			if got := requests(); len(got) != 1 || got[0].method != method {
				t.Errorf("expected one %s request, got %+v", method, got)
			}

			entries := sink.GetAll()
			if len(entries) != 1 {
				t.Fatalf("expected 1 log entry, got %d", len(entries))
			}
			if entries[0].StatusCode != http.StatusOK {
				t.Errorf("expected logged status 200, got %d", entries[0].StatusCode)
			}
			if entries[0].Trigger != "success" || entries[0].Method != method || entries[0].URL != server.URL {
				t.Errorf("unexpected log entry %+v", entries[0])
			}
		})
	}
}

// TestMissingConfigFailsWithoutNetwork verifies configuration errors never reach the network or the sink
func TestMissingConfigFailsWithoutNetwork(t *testing.T) {
	server, requests := newRecordingServer(t, http.StatusOK)

	configs := map[string]map[string]string{
		"missing url":    {"method": "POST"},
		"missing method": {"url": server.URL},
		"nil config":     nil,
	}

	for name, cfg := range configs {
		t.Run(name, func(t *testing.T) {
			sink := &mockRequestLogStore{}
			d, _ := newTestDispatcher(t, sink, Options{})

			res := d.Run(context.Background(), "trigger", nil, cfg)
			if res.OK {
				t.Fatal("expected failure")
			}
			if res.Kind != domain.ErrorKindConfiguration {
				t.Errorf("expected configuration kind, got %s", res.Kind)
			}
			if res.Outcome.Attempts != 0 {
				t.Errorf("expected 0 attempts, got %d", res.Outcome.Attempts)
			}
			if len(sink.GetAll()) != 0 {
				t.Error("sink should not be called")
			}
		})
	}

	if n := len(requests()); n != 0 {
		t.Errorf("expected no network calls, got %d", n)
	}
}

// TestTransportFailureExhaustsRetries verifies maxAttempts attempts with the fixed delay between them
func TestTransportFailureExhaustsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	sink := &mockRequestLogStore{}
	d, delays := newTestDispatcher(t, sink, Options{})

	res := d.Run(context.Background(), "failure", nil, map[string]string{"url": url, "method": "POST", "body": "x"})

	if res.OK {
		t.Fatal("expected failure")
	}
	if res.Kind != domain.ErrorKindTransport {
		t.Errorf("expected transport kind, got %s", res.Kind)
	}
	if res.Outcome.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", res.Outcome.Attempts)
	}
	if res.Outcome.StatusCode != 0 {
		t.Errorf("expected no status code, got %d", res.Outcome.StatusCode)
	}

	got := delays()
	if len(got) != 2 {
		t.Fatalf("expected 2 waits between 3 attempts, got %d", len(got))
	}
	for i, wait := range got {
		if wait != 2*time.Second {
			t.Errorf("wait %d = %v, want 2s", i, wait)
		}
	}
	if len(sink.GetAll()) != 0 {
		t.Error("transport failures must not be logged to the sink")
	}
}

// TestTransportFailureWaitsRealDelay verifies the default timer actually sleeps
func TestTransportFailureWaitsRealDelay(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	d, err := New(Options{
		Retry:  retry.Config{MaxAttempts: 3, Delay: 30 * time.Millisecond, AttemptTimeout: time.Second},
		Logger: logging.Discard(),
	})
	if err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	if d.Dispatch(context.Background(), "failure", nil, map[string]string{"url": url, "method": "GET"}) {
		t.Fatal("expected failure")
	}
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("expected at least two 30ms waits, took %v", elapsed)
	}
}

// TestNonSuccessStatusIsTerminal verifies a 500 ends the dispatch after one attempt
func TestNonSuccessStatusIsTerminal(t *testing.T) {
	server, requests := newRecordingServer(t, http.StatusInternalServerError)
	sink := &mockRequestLogStore{}
	d, delays := newTestDispatcher(t, sink, Options{})

	res := d.Run(context.Background(), "failure", nil, map[string]string{"url": server.URL, "method": "POST", "body": "{}"})

	if res.OK {
		t.Fatal("expected failure")
	}
	if res.Kind != domain.ErrorKindApplication {
		t.Errorf("expected application kind, got %s", res.Kind)
	}
	if res.Outcome.Attempts != 1 || len(requests()) != 1 {
		t.Errorf("expected exactly 1 attempt, got %d (%d requests)", res.Outcome.Attempts, len(requests()))
	}
	if len(delays()) != 0 {
		t.Error("non-2xx must not wait for a retry")
	}

	entries := sink.GetAll()
	if len(entries) != 1 || entries[0].StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected one entry with status 500, got %+v", entries)
	}
	if entries[0].ResponseBody != `{"ok":true}` {
		t.Errorf("expected response body logged, got %q", entries[0].ResponseBody)
	}
}

// TestRedirectStatusIsFailure verifies 3xx is not success
func TestRedirectStatusIsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	}))
	defer server.Close()

	d, _ := newTestDispatcher(t, &mockRequestLogStore{}, Options{})
	res := d.Run(context.Background(), "t", nil, map[string]string{"url": server.URL, "method": "GET"})
	if res.OK || res.Outcome.StatusCode != http.StatusNotModified {
		t.Errorf("expected failed 304 outcome, got %+v", res)
	}
}

// TestGetAndDeleteNeverSendBody verifies body and content type are dropped for GET/DELETE
func TestGetAndDeleteNeverSendBody(t *testing.T) {
	for _, method := range []string{"get", "DELETE"} {
		server, requests := newRecordingServer(t, http.StatusOK)
		d, _ := newTestDispatcher(t, &mockRequestLogStore{}, Options{})

		ok := d.Dispatch(context.Background(), "t", nil, map[string]string{
			"url":         server.URL,
			"method":      method,
			"body":        `{"ignored":true}`,
			"contentType": "text/plain",
		})
		if !ok {
			t.Fatalf("%s: expected success", method)
		}
		got := requests()[0]
		if got.body != "" || got.contentType != "" {
			t.Errorf("%s: expected no body or content type, got %+v", method, got)
		}
	}
}

// TestPostAndPutWithoutBodyHaveNoEntity verifies empty bodies set no Content-Type
func TestPostAndPutWithoutBodyHaveNoEntity(t *testing.T) {
	for _, cfg := range []map[string]string{
		{"method": "POST"},
		{"method": "PUT", "body": ""},
		{"method": "post", "contentType": "text/plain"},
	} {
		server, requests := newRecordingServer(t, http.StatusNoContent)
		cfg["url"] = server.URL
		d, _ := newTestDispatcher(t, &mockRequestLogStore{}, Options{})

		if !d.Dispatch(context.Background(), "t", nil, cfg) {
			t.Fatalf("%v: expected success", cfg)
		}
		got := requests()[0]
		if got.contentType != "" || got.body != "" {
			t.Errorf("%v: expected no entity, got %+v", cfg, got)
		}
	}
}

// TestPostCarriesBodyAndDefaultContentType verifies body and application/json default
func TestPostCarriesBodyAndDefaultContentType(t *testing.T) {
	server, requests := newRecordingServer(t, http.StatusCreated)
	d, _ := newTestDispatcher(t, &mockRequestLogStore{}, Options{})

	if !d.Dispatch(context.Background(), "t", nil, map[string]string{"url": server.URL, "method": "Post", "body": `{"a":1}`}) {
		t.Fatal("expected success")
	}
	got := requests()[0]
	if got.method != http.MethodPost || got.body != `{"a":1}` || got.contentType != "application/json" {
		t.Errorf("unexpected request %+v", got)
	}
}

// TestUnknownMethodFallsBackToGet verifies unrecognised methods are sent as GET
func TestUnknownMethodFallsBackToGet(t *testing.T) {
	server, requests := newRecordingServer(t, http.StatusOK)
	d, _ := newTestDispatcher(t, &mockRequestLogStore{}, Options{})

	if !d.Dispatch(context.Background(), "t", nil, map[string]string{"url": server.URL, "method": "PATCH", "body": "x"}) {
		t.Fatal("expected success")
	}
	if got := requests()[0]; got.method != http.MethodGet || got.body != "" {
		t.Errorf("expected bodiless GET, got %+v", got)
	}
}

// TestRecoversAfterTransientTransportFailure verifies a transport error followed by 2xx succeeds
func TestRecoversAfterTransientTransportFailure(t *testing.T) {
	server, requests := newRecordingServer(t, http.StatusOK)
	sink := &mockRequestLogStore{}
	flaky := &flakyClient{failures: 2, next: httpclient.New(time.Second)}

	d, delays := newTestDispatcher(t, sink, Options{
		NewClient: func(time.Duration) Client { return flaky },
	})

	res := d.Run(context.Background(), "t", nil, map[string]string{"url": server.URL, "method": "POST", "body": "x"})
	if !res.OK {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Outcome.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", res.Outcome.Attempts)
	}
	if len(delays()) != 2 {
		t.Errorf("expected 2 waits, got %d", len(delays()))
	}
	if len(requests()) != 1 || len(sink.GetAll()) != 1 {
		t.Errorf("expected one completed exchange logged once, got %d requests and %d entries", len(requests()), len(sink.GetAll()))
	}
	if sink.GetAll()[0].Attempt != 3 {
		t.Errorf("expected entry for attempt 3, got %d", sink.GetAll()[0].Attempt)
	}
}

// TestSinkErrorDoesNotChangeOutcome verifies logging failures are swallowed
func TestSinkErrorDoesNotChangeOutcome(t *testing.T) {
	server, _ := newRecordingServer(t, http.StatusOK)

	for name, sink := range map[string]*mockRequestLogStore{
		"error": {err: errors.New("connection refused")},
		"panic": {panics: true},
	} {
		t.Run(name, func(t *testing.T) {
			d, _ := newTestDispatcher(t, sink, Options{})
			res := d.Run(context.Background(), "t", nil, map[string]string{"url": server.URL, "method": "GET"})
			if !res.OK || res.Outcome.Attempts != 1 {
				t.Errorf("expected success in one attempt, got %+v", res)
			}
		})
	}
}

// TestClientPanicIsRecovered verifies a panic during an attempt reports false with the attempts made
func TestClientPanicIsRecovered(t *testing.T) {
	tests := []struct {
		name         string
		failures     int
		wantAttempts int
	}{
		{"first attempt", 0, 1},
		{"after a transport failure", 1, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &panicClient{failures: tt.failures}
			sink := &mockRequestLogStore{}
			d, _ := newTestDispatcher(t, sink, Options{
				NewClient: func(time.Duration) Client { return client },
			})

			res := d.Run(context.Background(), "t", nil, map[string]string{"url": "http://example.com", "method": "GET"})
			if res.OK {
				t.Fatal("expected failure")
			}
			if res.Kind != domain.ErrorKindInternal {
				t.Errorf("expected internal kind, got %s", res.Kind)
			}
			if res.Detail != "boom" {
				t.Errorf("expected panic detail, got %q", res.Detail)
			}
			if res.Outcome.Attempts != tt.wantAttempts {
				t.Errorf("expected %d attempts, got %d", tt.wantAttempts, res.Outcome.Attempts)
			}
			if len(sink.GetAll()) != 0 {
				t.Error("sink should not be called")
			}

			if d.Dispatch(context.Background(), "t", nil, map[string]string{"url": "http://example.com", "method": "GET"}) {
				t.Error("Dispatch should report false after a panic")
			}
		})
	}
}

// TestCancelledContextStopsRetrying verifies cancellation ends the wait between attempts
func TestCancelledContextStopsRetrying(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	d, err := New(Options{
		Retry:  retry.Config{MaxAttempts: 3, Delay: time.Minute, AttemptTimeout: time.Second},
		Logger: logging.Discard(),
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	res := d.Run(ctx, "t", nil, map[string]string{"url": url, "method": "GET"})
	if res.OK {
		t.Fatal("expected failure")
	}
	if res.Kind != domain.ErrorKindTransport {
		t.Errorf("expected transport kind, got %s", res.Kind)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("cancellation not honoured, took %v", elapsed)
	}
}

// TestExecutionDataIsIgnored verifies arbitrary execution data does not affect the request
func TestExecutionDataIsIgnored(t *testing.T) {
	server, requests := newRecordingServer(t, http.StatusOK)
	d, _ := newTestDispatcher(t, &mockRequestLogStore{}, Options{})

	data := map[string]any{"job": map[string]any{"id": 42}, "status": "failed"}
	if !d.Dispatch(context.Background(), "failure", data, map[string]string{"url": server.URL, "method": "GET"}) {
		t.Fatal("expected success")
	}
	if len(requests()) != 1 {
		t.Errorf("expected 1 request, got %d", len(requests()))
	}
}

// TestConcurrentDispatches verifies dispatches share no mutable state
func TestConcurrentDispatches(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink := &mockRequestLogStore{}
	d, _ := newTestDispatcher(t, sink, Options{})

	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !d.Dispatch(context.Background(), "t", nil, map[string]string{"url": server.URL, "method": "POST", "body": "x"}) {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	if failures.Load() != 0 {
		t.Errorf("expected no failures, got %d", failures.Load())
	}
	if hits.Load() != 10 || len(sink.GetAll()) != 10 {
		t.Errorf("expected 10 requests and entries, got %d and %d", hits.Load(), len(sink.GetAll()))
	}
}

func TestNewRejectsInvalidPolicy(t *testing.T) {
	_, err := New(Options{Retry: retry.Config{MaxAttempts: 0, AttemptTimeout: time.Second}})
	if err == nil {
		t.Error("expected error for zero attempts")
	}
}

func TestNewDefaultsPolicy(t *testing.T) {
	d, err := New(Options{})
	if err != nil {
		t.Fatal(err)
	}
	if d.retry != retry.DefaultConfig() {
		t.Errorf("expected default policy, got %+v", d.retry)
	}
}
