package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// recordSleeps replaces the executor's sleep with one that records the
// requested delays and returns immediately.
func recordSleeps(e *Executor) *[]time.Duration {
	var mu sync.Mutex
	delays := []time.Duration{}
	e.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		defer mu.Unlock()
		delays = append(delays, d)
		return ctx.Err()
	}
	return &delays
}

func TestExecute_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("expected Accept application/json, got %q", r.Header.Get("Accept"))
		}
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	e := NewExecutor(Config{})
	body, err := e.Execute(context.Background(), Request{URL: srv.URL})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if string(body) != `{"data":[]}` {
		t.Errorf("unexpected body %s", body)
	}
	if e.Monitor().GetStats().Requests != 1 {
		t.Errorf("expected one recorded request")
	}
}

func TestExecute_RateLimitExhaustsBudget(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	e := NewExecutor(Config{})
	delays := recordSleeps(e)

	_, err := e.Execute(context.Background(), Request{URL: srv.URL})
	if KindOf(err) != KindRateLimit {
		t.Fatalf("expected rate_limit, got %v", err)
	}
	if hits.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", hits.Load())
	}
	if len(*delays) != 2 {
		t.Fatalf("expected 2 waits, got %d", len(*delays))
	}
	for _, d := range *delays {
		if d != 1200*time.Millisecond {
			t.Errorf("expected default 1.2s backoff, got %s", d)
		}
	}
	if st := e.Monitor().CheckStatus(); st != StatusThrottled {
		t.Errorf("expected throttled monitor, got %s", st)
	}
}

func TestExecute_HonorsRetryAfter(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	e := NewExecutor(Config{})
	delays := recordSleeps(e)

	if _, err := e.Execute(context.Background(), Request{URL: srv.URL}); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(*delays) != 1 || (*delays)[0] != 3*time.Second {
		t.Errorf("expected a single 3s wait, got %v", *delays)
	}
}

func TestExecute_BadRequestNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, `{"error":"invalid_api_token"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	e := NewExecutor(Config{})
	recordSleeps(e)

	_, err := e.Execute(context.Background(), Request{URL: srv.URL})
	fe := AsError(err)
	if fe.Kind != KindBadRequest || fe.Status != http.StatusUnauthorized {
		t.Fatalf("expected bad_request 401, got %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", hits.Load())
	}
}

func TestExecute_ServerErrorNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e := NewExecutor(Config{})
	recordSleeps(e)

	_, err := e.Execute(context.Background(), Request{URL: srv.URL})
	if KindOf(err) != KindServer {
		t.Fatalf("expected server, got %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", hits.Load())
	}
}

func TestExecute_InvalidJSON(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	e := NewExecutor(Config{})
	recordSleeps(e)

	_, err := e.Execute(context.Background(), Request{URL: srv.URL})
	if KindOf(err) != KindUnknown {
		t.Fatalf("expected unknown, got %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", hits.Load())
	}
}

func TestExecute_TimeoutRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	e := NewExecutor(Config{Timeout: 20 * time.Millisecond})
	delays := recordSleeps(e)

	_, err := e.Execute(context.Background(), Request{URL: srv.URL})
	if KindOf(err) != KindTimeout {
		t.Fatalf("expected timeout, got %v", err)
	}
	if hits.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", hits.Load())
	}
	for _, d := range *delays {
		if d != 300*time.Millisecond {
			t.Errorf("expected 300ms retry delay, got %s", d)
		}
	}
}

func TestExecute_NetworkErrorRetried(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	e := NewExecutor(Config{Retries: 1})
	delays := recordSleeps(e)

	_, err := e.Execute(context.Background(), Request{URL: url})
	if KindOf(err) != KindNetwork {
		t.Fatalf("expected network, got %v", err)
	}
	if len(*delays) != 1 {
		t.Errorf("expected 1 wait with Retries=1, got %d", len(*delays))
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	if got := NewExecutor(Config{}).Config().Retries; got != DefaultConfig.Retries {
		t.Errorf("expected default budget %d, got %d", DefaultConfig.Retries, got)
	}
	disabled := Config{Retries: -1}.WithDefaults().WithDefaults()
	if disabled.Retries != -1 {
		t.Errorf("expected negative retries to survive defaults, got %d", disabled.Retries)
	}
	if kept := (Config{Retries: 5}).WithDefaults(); kept.Retries != 5 {
		t.Errorf("expected explicit retries kept, got %d", kept.Retries)
	}
}

func TestExecute_ZeroRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	e := NewExecutor(Config{Retries: -5})
	recordSleeps(e)

	if _, err := e.Execute(context.Background(), Request{URL: srv.URL}); err == nil {
		t.Fatal("expected error")
	}
	if hits.Load() != 1 {
		t.Errorf("expected a single attempt, got %d", hits.Load())
	}
}

func TestExecute_CallerCancel(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	e := NewExecutor(Config{})
	e.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}

	_, err := e.Execute(ctx, Request{URL: srv.URL})
	if KindOf(err) != KindUnknown {
		t.Fatalf("expected unknown for canceled request, got %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("expected no attempts after cancel, got %d", hits.Load())
	}
}

func TestHostLimiter_Disabled(t *testing.T) {
	if NewHostLimiter(0, 1) != nil {
		t.Fatal("expected nil limiter when rate is 0")
	}
	var l *HostLimiter
	if err := l.Wait(context.Background(), "http://example.com"); err != nil {
		t.Errorf("nil limiter should not block: %v", err)
	}
}

func TestHostLimiter_CanceledWait(t *testing.T) {
	l := NewHostLimiter(0.001, 1)
	ctx, cancel := context.WithCancel(context.Background())

	if err := l.Wait(ctx, "http://example.com/a"); err != nil {
		t.Fatalf("first wait should use the burst: %v", err)
	}
	cancel()
	if err := l.Wait(ctx, "http://example.com/b"); err == nil {
		t.Error("expected error waiting with a canceled context")
	}
	if err := l.Wait(context.Background(), "/relative"); err == nil {
		t.Error("expected error for URL without host")
	}
}
