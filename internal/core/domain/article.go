package domain

import (
	"net/url"
	"strings"
	"time"
)

// Article is a news record as returned by the upstream provider.
// Only the fields the feed needs are decoded; everything else stays in the
// cached payload.
type Article struct {
	UUID        string    `json:"uuid"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Snippet     string    `json:"snippet,omitempty"`
	Keywords    string    `json:"keywords,omitempty"`
	URL         string    `json:"url"`
	ImageURL    string    `json:"image_url,omitempty"`
	Language    string    `json:"language,omitempty"`
	Locale      string    `json:"locale,omitempty"`
	Source      string    `json:"source,omitempty"`
	Categories  []string  `json:"categories,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// Identity returns the stable key used to de-duplicate articles.
// The provider id wins; the canonical URL is the fallback. An empty
// identity means the article cannot be de-duplicated and is dropped.
func (a Article) Identity() string {
	if id := strings.TrimSpace(a.UUID); id != "" {
		return id
	}
	return CanonicalURL(a.URL)
}

// PrimaryCategory returns the first category or "general".
func (a Article) PrimaryCategory() string {
	if len(a.Categories) > 0 && a.Categories[0] != "" {
		return a.Categories[0]
	}
	return "general"
}

// CanonicalURL normalizes a link so that the same article fetched twice
// (with a different fragment or host casing) maps to the same identity.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	if u.Path == "/" {
		u.Path = ""
	}
	return u.String()
}

// Dedupe keeps the first article of each identity, preserving order.
func Dedupe(articles []Article) []Article {
	seen := make(map[string]struct{}, len(articles))
	out := make([]Article, 0, len(articles))
	for _, a := range articles {
		id := a.Identity()
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, a)
	}
	return out
}
