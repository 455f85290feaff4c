package newsapi

import (
	"bytes"
	"encoding/json"
	"sort"
	"time"

	"github.com/vietddude/newsfeed/internal/core/domain"
	"github.com/vietddude/newsfeed/internal/infra/fetch"
)

// listResponse is the provider envelope. data is either an array of
// articles or, for grouped endpoints, an object of arrays.
type listResponse struct {
	Data json.RawMessage `json:"data"`
}

type wireArticle struct {
	UUID        string   `json:"uuid"`
	Title       string   `json:"title"`
	Description *string  `json:"description"`
	Keywords    *string  `json:"keywords"`
	Snippet     *string  `json:"snippet"`
	URL         string   `json:"url"`
	ImageURL    *string  `json:"image_url"`
	Language    *string  `json:"language"`
	PublishedAt string   `json:"published_at"`
	Source      string   `json:"source"`
	Categories  []string `json:"categories"`
	Locale      *string  `json:"locale"`
}

func decodeArticles(body []byte) ([]domain.Article, error) {
	var resp listResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, invalidShape(err)
	}

	data := bytes.TrimSpace(resp.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return []domain.Article{}, nil
	}

	var wire []wireArticle
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &wire); err != nil {
			return nil, invalidShape(err)
		}
	case '{':
		grouped := map[string][]wireArticle{}
		if err := json.Unmarshal(data, &grouped); err != nil {
			return nil, invalidShape(err)
		}
		keys := make([]string, 0, len(grouped))
		for k := range grouped {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			wire = append(wire, grouped[k]...)
		}
	default:
		return []domain.Article{}, nil
	}

	out := make([]domain.Article, 0, len(wire))
	for _, w := range wire {
		out = append(out, w.toDomain())
	}
	return out, nil
}

func (w wireArticle) toDomain() domain.Article {
	desc := deref(w.Description)
	if desc == "" {
		desc = deref(w.Snippet)
	}
	lang := deref(w.Language)
	if lang == "" {
		lang = "en"
	}
	a := domain.Article{
		UUID:        w.UUID,
		Title:       w.Title,
		Description: desc,
		Snippet:     deref(w.Snippet),
		Keywords:    deref(w.Keywords),
		URL:         w.URL,
		ImageURL:    deref(w.ImageURL),
		Language:    lang,
		Locale:      deref(w.Locale),
		Source:      w.Source,
		Categories:  w.Categories,
	}
	if t, err := time.Parse(time.RFC3339Nano, w.PublishedAt); err == nil {
		a.PublishedAt = t
	}
	return a
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func invalidShape(err error) error {
	return &fetch.Error{Kind: fetch.KindUnknown, Message: "invalid response shape", Err: err}
}
