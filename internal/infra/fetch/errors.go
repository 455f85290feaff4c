package fetch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Kind is the closed set of failure classes surfaced to callers.
type Kind int

const (
	KindUnknown Kind = iota
	KindRateLimit
	KindTimeout
	KindNetwork
	KindServer
	KindBadRequest
)

var kindNames = map[Kind]string{
	KindUnknown:    "unknown",
	KindRateLimit:  "rate_limit",
	KindTimeout:    "timeout",
	KindNetwork:    "network",
	KindServer:     "server",
	KindBadRequest: "bad_request",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// MarshalText renders the kind by its wire name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a wire name; unrecognized names become KindUnknown.
func (k *Kind) UnmarshalText(b []byte) error {
	for kind, name := range kindNames {
		if name == string(b) {
			*k = kind
			return nil
		}
	}
	*k = KindUnknown
	return nil
}

// Retryable reports whether the executor may spend retry budget on this kind.
func (k Kind) Retryable() bool {
	return k == KindRateLimit || k == KindTimeout || k == KindNetwork
}

// Error is the classified failure of a fetch. It is never mutated after
// construction.
type Error struct {
	Kind       Kind
	Message    string
	Status     int           // HTTP status, 0 when no response was obtained
	RetryAfter time.Duration // server-provided Retry-After, 0 when absent
	Err        error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s (http %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// RetryAfterSeconds returns the Retry-After hint in whole seconds.
func (e *Error) RetryAfterSeconds() int {
	return int(e.RetryAfter / time.Second)
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// AsError returns the *Error in err's chain, classifying err if there is none.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	return Classify(0, nil, nil, err)
}

// Classify maps a transport error or a non-2xx response onto an *Error.
// Pass status 0 when no response was received.
func Classify(status int, header http.Header, body []byte, err error) *Error {
	if status == 0 {
		return classifyTransport(err)
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", status)
	}

	switch {
	case status == http.StatusTooManyRequests:
		return &Error{
			Kind:       KindRateLimit,
			Message:    "rate limit exceeded",
			Status:     status,
			RetryAfter: ParseRetryAfter(header.Get("Retry-After"), time.Now()),
		}
	case status >= 500:
		return &Error{Kind: KindServer, Message: msg, Status: status}
	case status >= 400:
		return &Error{Kind: KindBadRequest, Message: msg, Status: status}
	default:
		return &Error{Kind: KindUnknown, Message: msg, Status: status}
	}
}

func classifyTransport(err error) *Error {
	if err == nil {
		return &Error{Kind: KindUnknown, Message: "unknown error"}
	}

	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Message: "request timeout", Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Kind: KindUnknown, Message: "request canceled", Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Message: "request timeout", Err: err}
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) || netErr != nil {
		return &Error{Kind: KindNetwork, Message: "network error", Err: err}
	}

	s := strings.ToLower(err.Error())
	if strings.Contains(s, "connection refused") || strings.Contains(s, "connection reset") ||
		strings.Contains(s, "no such host") || strings.Contains(s, "eof") {
		return &Error{Kind: KindNetwork, Message: "network error", Err: err}
	}

	return &Error{Kind: KindUnknown, Message: err.Error(), Err: err}
}

// MaxRetryAfter bounds the Retry-After hint honoured by the executor.
const MaxRetryAfter = time.Hour

// ParseRetryAfter reads a Retry-After header given either in seconds or as
// an HTTP date. Missing, malformed, non-finite or non-positive values yield
// 0; larger values are clamped to MaxRetryAfter.
func ParseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		if math.IsNaN(secs) || secs <= 0 {
			return 0
		}
		if secs >= MaxRetryAfter.Seconds() {
			return MaxRetryAfter
		}
		return time.Duration(secs * float64(time.Second))
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return min(d, MaxRetryAfter)
		}
	}
	return 0
}
