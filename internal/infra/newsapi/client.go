// Package newsapi talks to the upstream news provider (thenewsapi.com
// compatible) through the response cache.
package newsapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vietddude/newsfeed/internal/core/domain"
	"github.com/vietddude/newsfeed/internal/infra/cache"
	"github.com/vietddude/newsfeed/internal/infra/fetch"
)

const DefaultBaseURL = "https://api.thenewsapi.com/v1"

// ErrMissingToken is returned when no API token is configured.
var ErrMissingToken = errors.New("newsapi: missing API token")

// Config holds provider settings.
type Config struct {
	BaseURL              string        `yaml:"base_url"`
	Token                string        `yaml:"token"`
	Language             string        `yaml:"language"`
	Locale               string        `yaml:"locale"`
	PageSize             int           `yaml:"page_size"`
	MaxLimit             int           `yaml:"max_limit"` // free plan caps limit at 3
	HeadlinesPerCategory int           `yaml:"headlines_per_category"`
	HeadlineTop          int           `yaml:"headline_top"`
	TTL                  time.Duration `yaml:"ttl"` // 0 = cache default
	AllowStaleOnError    *bool         `yaml:"allow_stale_on_error"`
}

// WithDefaults fills zero fields.
func (c Config) WithDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Language == "" {
		c.Language = "en"
	}
	if c.PageSize <= 0 {
		c.PageSize = 20
	}
	if c.MaxLimit <= 0 {
		c.MaxLimit = 3
	}
	if c.HeadlinesPerCategory <= 0 {
		c.HeadlinesPerCategory = 3
	}
	if c.HeadlinesPerCategory > 10 {
		c.HeadlinesPerCategory = 10
	}
	if c.HeadlineTop <= 0 {
		c.HeadlineTop = 10
	}
	if c.AllowStaleOnError == nil {
		on := true
		c.AllowStaleOnError = &on
	}
	return c
}

// Resolver is the cache surface the client needs.
type Resolver interface {
	Resolve(ctx context.Context, req fetch.Request, opts cache.Options) ([]byte, cache.Outcome, error)
}

// Client fetches article pages and headlines.
type Client struct {
	cfg      Config
	resolver Resolver
	log      *slog.Logger
}

// NewClient creates a provider client.
func NewClient(cfg Config, resolver Resolver) *Client {
	return &Client{
		cfg:      cfg.WithDefaults(),
		resolver: resolver,
		log:      slog.Default().With("component", "newsapi"),
	}
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// PageQuery returns a query for category with the configured defaults.
func (c *Client) PageQuery(category domain.Category, page int) domain.PageQuery {
	return domain.PageQuery{
		Language: c.cfg.Language,
		Locale:   c.cfg.Locale,
		Category: category,
		Limit:    c.cfg.PageSize,
		Page:     page,
	}
}

// HeadlineQuery returns the headline query with the configured defaults.
func (c *Client) HeadlineQuery() domain.HeadlineQuery {
	return domain.HeadlineQuery{
		Language:    c.cfg.Language,
		Locale:      c.cfg.Locale,
		PerCategory: c.cfg.HeadlinesPerCategory,
		Top:         c.cfg.HeadlineTop,
	}
}

// PageRequest builds the request for one page of /news/all.
func (c *Client) PageRequest(q domain.PageQuery) (fetch.Request, error) {
	if c.cfg.Token == "" {
		return fetch.Request{}, ErrMissingToken
	}
	page := q.Page
	if page < 1 {
		page = 1
	}

	v := url.Values{}
	if q.Language != "" {
		v.Set("language", q.Language)
	}
	if q.Locale != "" {
		v.Set("locale", q.Locale)
	}
	if q.Category != domain.CategoryAll {
		v.Set("categories", string(q.Category))
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	v.Set("limit", strconv.Itoa(c.capLimit(q.Limit)))
	v.Set("page", strconv.Itoa(page))
	v.Set("api_token", c.cfg.Token)

	return fetch.Request{URL: c.cfg.BaseURL + "/news/all?" + v.Encode()}, nil
}

// capLimit clamps a requested page size into [1, MaxLimit].
func (c *Client) capLimit(requested int) int {
	n := requested
	if n <= 0 {
		n = c.cfg.MaxLimit
	}
	return max(1, min(n, c.cfg.MaxLimit))
}

// FetchPage returns one de-duplicated page. force bypasses the cache
// freshness check.
func (c *Client) FetchPage(ctx context.Context, q domain.PageQuery, force bool) ([]domain.Article, error) {
	req, err := c.PageRequest(q)
	if err != nil {
		return nil, &fetch.Error{Kind: fetch.KindUnknown, Message: err.Error(), Err: err}
	}

	body, outcome, err := c.resolver.Resolve(ctx, req, c.options(force))
	if err != nil {
		return nil, fmt.Errorf("fetch page %d (%s): %w", q.Page, q.Category, err)
	}
	c.log.Debug("Page resolved", "category", q.Category.String(), "page", q.Page, "cache", outcome.String())

	articles, err := decodeArticles(body)
	if err != nil {
		return nil, err
	}
	return domain.Dedupe(articles), nil
}

// FetchHeadlines returns the headline stream: the first page of the
// unfiltered listing, grouped by primary category with at most
// PerCategory items each, truncated to Top.
func (c *Client) FetchHeadlines(ctx context.Context, q domain.HeadlineQuery, force bool) ([]domain.Article, error) {
	per := q.PerCategory
	if per <= 0 {
		per = c.cfg.HeadlinesPerCategory
	}
	// Ask for more than needed so grouping has something to pick from;
	// capLimit still applies the plan cap.
	need := max(3, min(50, per*8))

	req, err := c.PageRequest(domain.PageQuery{
		Language: q.Language,
		Locale:   q.Locale,
		Limit:    need,
		Page:     1,
	})
	if err != nil {
		return nil, &fetch.Error{Kind: fetch.KindUnknown, Message: err.Error(), Err: err}
	}

	body, outcome, err := c.resolver.Resolve(ctx, req, c.options(force))
	if err != nil {
		return nil, fmt.Errorf("fetch headlines: %w", err)
	}
	c.log.Debug("Headlines resolved", "cache", outcome.String())

	articles, err := decodeArticles(body)
	if err != nil {
		return nil, err
	}

	items := domain.Dedupe(GroupByCategory(articles, per))
	if q.Top > 0 && len(items) > q.Top {
		items = items[:q.Top]
	}
	return items, nil
}

// Page fetches page of category with the configured language, locale and
// page size.
func (c *Client) Page(ctx context.Context, category domain.Category, page int, force bool) ([]domain.Article, error) {
	return c.FetchPage(ctx, c.PageQuery(category, page), force)
}

// Headlines fetches the headline stream with the configured defaults.
func (c *Client) Headlines(ctx context.Context, force bool) ([]domain.Article, error) {
	return c.FetchHeadlines(ctx, c.HeadlineQuery(), force)
}

// options builds the cache options for a fetch. A forced fetch never falls
// back to the stored payload, so a failed refresh reaches the caller.
func (c *Client) options(force bool) cache.Options {
	return cache.Options{
		TTL:               c.cfg.TTL,
		Force:             force,
		AllowStaleOnError: *c.cfg.AllowStaleOnError && !force,
	}
}

// GroupByCategory keeps at most per articles for each primary category.
// Groups appear in order of first occurrence.
func GroupByCategory(articles []domain.Article, per int) []domain.Article {
	order := []string{}
	groups := make(map[string][]domain.Article)
	for _, a := range articles {
		cat := a.PrimaryCategory()
		if _, seen := groups[cat]; !seen {
			order = append(order, cat)
			groups[cat] = nil
		}
		if len(groups[cat]) < per {
			groups[cat] = append(groups[cat], a)
		}
	}

	out := make([]domain.Article, 0, len(articles))
	for _, cat := range order {
		out = append(out, groups[cat]...)
	}
	return out
}
