package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/newsfeed/internal/core/domain"
	"github.com/vietddude/newsfeed/internal/feed"
	"github.com/vietddude/newsfeed/internal/health"
	"github.com/vietddude/newsfeed/internal/infra/fetch"
)

type stubProvider struct {
	mu        sync.Mutex
	pages     map[domain.Category][][]domain.Article
	pageErr   error
	headlines []domain.Article
	headErr   error
}

func (p *stubProvider) Page(ctx context.Context, category domain.Category, page int, force bool) ([]domain.Article, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pageErr != nil {
		return nil, p.pageErr
	}
	pages := p.pages[category]
	if page-1 < len(pages) {
		return pages[page-1], nil
	}
	return nil, nil
}

func (p *stubProvider) Headlines(ctx context.Context, force bool) ([]domain.Article, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.headlines, p.headErr
}

type stubClearer struct {
	removed int
	err     error
}

func (c *stubClearer) Clear(ctx context.Context) (int, error) { return c.removed, c.err }

type stubUpstream struct{ status fetch.Status }

func (s stubUpstream) CheckStatus() fetch.Status     { return s.status }
func (s stubUpstream) GetStats() fetch.MonitorStats { return fetch.MonitorStats{} }

func arts(ids ...string) []domain.Article {
	out := []domain.Article{}
	for _, id := range ids {
		out = append(out, domain.Article{UUID: id, Title: id})
	}
	return out
}

func newTestServer(p *stubProvider, up fetch.Status) *Server {
	session := feed.NewSession(domain.CategoryAll, p, p)
	monitor := health.NewMonitor(stubUpstream{status: up}, nil, nil)
	return NewServer(session, &stubClearer{removed: 7}, monitor, 0)
}

func do(t *testing.T, s *Server, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	body := map[string]any{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON from %s %s: %v (%s)", method, path, err, rec.Body.String())
	}
	return rec, body
}

func itemIDs(v any) []string {
	out := []string{}
	list, _ := v.([]any)
	for _, it := range list {
		m, _ := it.(map[string]any)
		id, _ := m["uuid"].(string)
		out = append(out, id)
	}
	return out
}

func TestFeedFlow(t *testing.T) {
	p := &stubProvider{
		pages: map[domain.Category][][]domain.Article{
			domain.CategoryAll: {arts("A", "B"), arts("B", "C")},
			"tech":             {arts("T")},
		},
		headlines: arts("A"),
	}
	s := newTestServer(p, fetch.StatusHealthy)

	rec, body := do(t, s, http.MethodPost, "/v1/feed/refresh")
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Errorf("expected request id header")
	}

	_, body = do(t, s, http.MethodPost, "/v1/feed/more")
	f := body["feed"].(map[string]any)
	if got := itemIDs(f["items"]); len(got) != 3 {
		t.Errorf("expected 3 merged items, got %v", got)
	}
	if f["category"] != "all" {
		t.Errorf("expected category all, got %v", f["category"])
	}

	do(t, s, http.MethodGet, "/v1/headlines")
	_, body = do(t, s, http.MethodGet, "/v1/feed")
	if got := itemIDs(body["visible"]); len(got) != 2 || got[0] != "B" {
		t.Errorf("expected visible [B C], got %v", got)
	}

	_, body = do(t, s, http.MethodPut, "/v1/feed/category?name=Tech")
	f = body["feed"].(map[string]any)
	if f["category"] != "tech" {
		t.Errorf("expected category tech, got %v", f["category"])
	}
	if got := itemIDs(f["items"]); len(got) != 1 || got[0] != "T" {
		t.Errorf("expected [T], got %v", got)
	}
}

func TestFeedStats(t *testing.T) {
	p := &stubProvider{
		pages: map[domain.Category][][]domain.Article{
			domain.CategoryAll: {arts("A")},
		},
	}
	s := newTestServer(p, fetch.StatusHealthy)

	do(t, s, http.MethodPost, "/v1/feed/refresh")
	do(t, s, http.MethodPost, "/v1/feed/more")

	rec, body := do(t, s, http.MethodGet, "/v1/feed/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["phase"] != "idle" {
		t.Errorf("expected idle phase, got %v", body["phase"])
	}
	if body["refreshes"] != float64(1) || body["loads"] != float64(1) {
		t.Errorf("expected one refresh and one load, got %v / %v", body["refreshes"], body["loads"])
	}
	transitions, _ := body["transitions"].([]any)
	if len(transitions) != 4 {
		t.Errorf("expected 4 transitions, got %d", len(transitions))
	}
}

func TestFeedRateLimited(t *testing.T) {
	p := &stubProvider{pageErr: &fetch.Error{Kind: fetch.KindRateLimit, Status: 429, RetryAfter: 4 * time.Second}}
	s := newTestServer(p, fetch.StatusThrottled)

	rec, body := do(t, s, http.MethodPost, "/v1/feed/more")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "4" {
		t.Errorf("expected Retry-After 4, got %q", rec.Header().Get("Retry-After"))
	}
	e := body["feed_error"].(map[string]any)
	if e["kind"] != "rate_limit" || e["title"] != "Rate limit reached" || e["retry_after"] != float64(4) {
		t.Errorf("unexpected error body %v", e)
	}
}

func TestHeadlinesError(t *testing.T) {
	p := &stubProvider{headErr: &fetch.Error{Kind: fetch.KindTimeout}}
	s := newTestServer(p, fetch.StatusHealthy)

	rec, body := do(t, s, http.MethodGet, "/v1/headlines")
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", rec.Code)
	}
	if body["error"].(map[string]any)["kind"] != "timeout" {
		t.Errorf("unexpected body %v", body)
	}
	if _, ok := body["headlines"].([]any); !ok {
		t.Errorf("expected empty headlines list, got %v", body["headlines"])
	}
}

func TestRefreshAllSettles(t *testing.T) {
	p := &stubProvider{
		pages:   map[domain.Category][][]domain.Article{domain.CategoryAll: {arts("A")}},
		headErr: &fetch.Error{Kind: fetch.KindServer, Status: 502},
	}
	s := newTestServer(p, fetch.StatusHealthy)

	rec, body := do(t, s, http.MethodPost, "/v1/refresh")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := itemIDs(body["feed"].(map[string]any)["items"]); len(got) != 1 {
		t.Errorf("expected refreshed feed, got %v", got)
	}
	if body["headline_error"] == nil {
		t.Errorf("expected headline error in body")
	}
}

func TestClearCache(t *testing.T) {
	s := newTestServer(&stubProvider{}, fetch.StatusHealthy)

	rec, body := do(t, s, http.MethodDelete, "/v1/cache")
	if rec.Code != http.StatusOK || body["removed"] != float64(7) {
		t.Errorf("unexpected clear response %d %v", rec.Code, body)
	}

	s.cache = &stubClearer{err: errors.New("store down")}
	rec, _ = do(t, s, http.MethodDelete, "/v1/cache")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(&stubProvider{}, fetch.StatusHealthy)
	rec, body := do(t, s, http.MethodGet, "/health")
	if rec.Code != http.StatusOK || body["status"] != "healthy" {
		t.Errorf("unexpected health %d %v", rec.Code, body)
	}

	s = newTestServer(&stubProvider{}, fetch.StatusDown)
	rec, body = do(t, s, http.MethodGet, "/health")
	if rec.Code != http.StatusServiceUnavailable || body["status"] != "critical" {
		t.Errorf("unexpected health %d %v", rec.Code, body)
	}

	_, body = do(t, s, http.MethodGet, "/health/detailed")
	if _, ok := body["components"].(map[string]any)["upstream"]; !ok {
		t.Errorf("expected upstream component, got %v", body)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(&stubProvider{}, fetch.StatusHealthy)
	req := httptest.NewRequest(http.MethodGet, "/v1/feed/more", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}
