package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"
)

func TestClassify_Status(t *testing.T) {
	tests := []struct {
		name   string
		status int
		header http.Header
		want   Kind
		after  time.Duration
	}{
		{"rate limit with hint", 429, http.Header{"Retry-After": []string{"3"}}, KindRateLimit, 3 * time.Second},
		{"rate limit without hint", 429, nil, KindRateLimit, 0},
		{"rate limit zero hint", 429, http.Header{"Retry-After": []string{"0"}}, KindRateLimit, 0},
		{"internal error", 500, nil, KindServer, 0},
		{"bad gateway", 502, nil, KindServer, 0},
		{"not found", 404, nil, KindBadRequest, 0},
		{"unauthorized", 401, nil, KindBadRequest, 0},
		{"redirect", 302, nil, KindUnknown, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.status, tt.header, nil, nil)
			if got.Kind != tt.want {
				t.Errorf("expected kind %s, got %s", tt.want, got.Kind)
			}
			if got.Status != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, got.Status)
			}
			if got.RetryAfter != tt.after {
				t.Errorf("expected retry after %s, got %s", tt.after, got.RetryAfter)
			}
		})
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify_Transport(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"wrapped deadline", fmt.Errorf("get: %w", context.DeadlineExceeded), KindTimeout},
		{"net timeout", timeoutErr{}, KindTimeout},
		{"canceled", context.Canceled, KindUnknown},
		{"dial refused", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, KindNetwork},
		{"dns", &net.DNSError{Err: "no such host", Name: "example.invalid"}, KindNetwork},
		{"unexpected eof", io.ErrUnexpectedEOF, KindNetwork},
		{"other", errors.New("boom"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(0, nil, nil, tt.err)
			if got.Kind != tt.want {
				t.Errorf("expected kind %s, got %s", tt.want, got.Kind)
			}
			if got.Status != 0 {
				t.Errorf("expected no status, got %d", got.Status)
			}
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"5", 5 * time.Second},
		{"1.5", 1500 * time.Millisecond},
		{"-1", 0},
		{"soon", 0},
		{now.Add(10 * time.Second).Format(http.TimeFormat), 10 * time.Second},
		{now.Add(-10 * time.Second).Format(http.TimeFormat), 0},
		{"NaN", 0},
		{"-Inf", 0},
		{"Inf", MaxRetryAfter},
		{"1e300", MaxRetryAfter},
		{"99999999999", MaxRetryAfter},
		{now.Add(48 * time.Hour).Format(http.TimeFormat), MaxRetryAfter},
	}

	for _, tt := range tests {
		if got := ParseRetryAfter(tt.in, now); got != tt.want {
			t.Errorf("ParseRetryAfter(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestClassify_HugeRetryAfter(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "99999999999")
	err := Classify(http.StatusTooManyRequests, h, nil, nil)
	if err.RetryAfter != MaxRetryAfter {
		t.Errorf("expected retry after clamped to %s, got %s", MaxRetryAfter, err.RetryAfter)
	}
	if got := err.RetryAfterSeconds(); got != 3600 {
		t.Errorf("expected 3600 seconds, got %d", got)
	}
}

func TestKindOf(t *testing.T) {
	err := fmt.Errorf("fetch page: %w", &Error{Kind: KindServer, Status: 503})
	if KindOf(err) != KindServer {
		t.Errorf("expected server, got %s", KindOf(err))
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Errorf("expected unknown for plain error")
	}
	if AsError(nil) != nil {
		t.Errorf("expected nil for nil error")
	}
}

func TestKind_Text(t *testing.T) {
	for kind, name := range kindNames {
		b, _ := kind.MarshalText()
		if string(b) != name {
			t.Errorf("expected %s, got %s", name, b)
		}
		var back Kind
		if err := back.UnmarshalText(b); err != nil || back != kind {
			t.Errorf("round trip of %s gave %s", name, back)
		}
	}
}

func TestExplain(t *testing.T) {
	ex := Explain(&Error{Kind: KindRateLimit, RetryAfter: 2500 * time.Millisecond})
	if ex.Title != "Rate limit reached" || ex.Message != "Please try again in about 3 seconds." {
		t.Errorf("unexpected rate limit copy: %+v", ex)
	}

	ex = Explain(&Error{Kind: KindRateLimit})
	if ex.Message != "Please wait a moment or reduce the number of data requests." {
		t.Errorf("unexpected rate limit copy without hint: %+v", ex)
	}

	ex = Explain(&Error{Kind: KindTimeout})
	if ex.Title != "Request timed out" {
		t.Errorf("unexpected timeout copy: %+v", ex)
	}
}
