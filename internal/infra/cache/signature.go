package cache

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/vietddude/newsfeed/internal/infra/fetch"
)

// Signature renders the cache identity of a request: method, URL with
// query parameters in sorted order, and the request headers in canonical
// form. Requests with equal signatures are served from the same entry.
func Signature(req fetch.Request) string {
	var b strings.Builder
	b.WriteString(http.MethodGet)
	b.WriteByte(' ')
	b.WriteString(normalizeURL(req.URL))

	names := make([]string, 0, len(req.Header))
	for name := range req.Header {
		names = append(names, http.CanonicalHeaderKey(name))
	}
	sort.Strings(names)
	for _, name := range names {
		b.WriteByte('\n')
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(strings.Join(req.Header.Values(name), ","))
	}
	return b.String()
}

func normalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	// Encode sorts by key, which makes parameter order irrelevant.
	u.RawQuery = u.Query().Encode()
	return u.String()
}

// HashSignature returns the fixed-width hex digest used in store keys.
func HashSignature(sig string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(sig))
}
