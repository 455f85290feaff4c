package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/vietddude/newsfeed/internal/feed"
	"github.com/vietddude/newsfeed/internal/infra/fetch"
)

// ErrorBody is the JSON form of a failed fetch.
type ErrorBody struct {
	Kind       fetch.Kind `json:"kind"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	Status     int        `json:"status,omitempty"`
	RetryAfter int        `json:"retry_after,omitempty"` // seconds
}

// NewErrorBody renders err; nil stays nil.
func NewErrorBody(err error) *ErrorBody {
	fe := fetch.AsError(err)
	if fe == nil {
		return nil
	}
	ex := fetch.Explain(fe)
	return &ErrorBody{
		Kind:       fe.Kind,
		Title:      ex.Title,
		Message:    ex.Message,
		Status:     fe.Status,
		RetryAfter: fe.RetryAfterSeconds(),
	}
}

// statusFor maps a failure onto the HTTP status returned to the caller.
func statusFor(err error) int {
	if errors.Is(err, feed.ErrClosed) {
		return http.StatusConflict
	}
	switch fetch.KindOf(err) {
	case fetch.KindRateLimit:
		return http.StatusTooManyRequests
	case fetch.KindTimeout:
		return http.StatusGatewayTimeout
	case fetch.KindNetwork, fetch.KindServer, fetch.KindBadRequest:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes v with the status mapped from err. A rate-limit hint is
// forwarded as Retry-After.
func writeError(w http.ResponseWriter, err error, v any) {
	if fe := fetch.AsError(err); fe != nil && fe.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(fe.RetryAfterSeconds()))
	}
	writeJSON(w, statusFor(err), v)
}
