package feed

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/vietddude/newsfeed/internal/core/domain"
	"github.com/vietddude/newsfeed/internal/infra/fetch"
)

// HeadlineSource fetches the headline stream.
type HeadlineSource interface {
	Headlines(ctx context.Context, force bool) ([]domain.Article, error)
}

// View is what the UI renders: the feed state, the headline stream, and
// the feed items not already shown as headlines.
type View struct {
	Feed          State            `json:"feed"`
	Headlines     []domain.Article `json:"headlines"`
	HeadlineError *fetch.Error     `json:"-"`
	Visible       []domain.Article `json:"visible"`
}

// Session owns the active category feed and the headline stream.
type Session struct {
	pages     PageSource
	headlines HeadlineSource

	mu              sync.Mutex
	feed            *Feed
	headlineItems   []domain.Article
	headlineErr     *fetch.Error
	headlinesLoaded bool
	headlineGen     uint64
	headlineLoads   singleflight.Group
	closed          bool

	log *slog.Logger
}

// NewSession creates a session on category. No fetch happens until
// Select, Refresh or LoadMore is called.
func NewSession(category domain.Category, pages PageSource, headlines HeadlineSource) *Session {
	return &Session{
		pages:     pages,
		headlines: headlines,
		feed:      New(category, pages),
		log:       slog.Default().With("component", "session"),
	}
}

// Feed returns the active feed.
func (s *Session) Feed() *Feed {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feed
}

// Category returns the active category.
func (s *Session) Category() domain.Category {
	return s.Feed().Category()
}

// Select switches to category: the current feed is closed, a fresh one is
// created and refreshed. Selecting the active category only refreshes it
// if it has never loaded.
func (s *Session) Select(ctx context.Context, category domain.Category) (State, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return State{}, ErrClosed
	}
	current := s.feed
	if current.Category() == category {
		s.mu.Unlock()
		st := current.State()
		if st.Generation > 0 {
			return st, nil
		}
		return current.Refresh(ctx)
	}
	next := New(category, s.pages)
	s.feed = next
	s.mu.Unlock()

	current.Close()
	s.log.Info("Category selected", "from", current.Category().String(), "to", category.String())
	return next.Refresh(ctx)
}

// LoadMore loads the next page of the active feed.
func (s *Session) LoadMore(ctx context.Context) (State, error) {
	return s.Feed().LoadMore(ctx)
}

// Refresh refreshes the active feed.
func (s *Session) Refresh(ctx context.Context) (State, error) {
	return s.Feed().Refresh(ctx)
}

// LoadHeadlines returns the headline stream, fetching it on first use.
// Concurrent first loads share one fetch. If a forced reload supersedes
// that fetch, the recorded stream is returned instead.
func (s *Session) LoadHeadlines(ctx context.Context) ([]domain.Article, error) {
	if items, ok, err := s.loadedHeadlines(); ok {
		return items, err
	}

	ch := s.headlineLoads.DoChan("headlines", func() (any, error) {
		return s.ReloadHeadlines(context.WithoutCancel(ctx), false)
	})
	select {
	case <-ctx.Done():
		return nil, fetch.Classify(0, nil, nil, ctx.Err())
	case res := <-ch:
		if errors.Is(res.Err, ErrSuperseded) {
			items, _, err := s.loadedHeadlines()
			return items, err
		}
		items, _ := res.Val.([]domain.Article)
		return items, res.Err
	}
}

func (s *Session) loadedHeadlines() ([]domain.Article, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.headlinesLoaded {
		return nil, false, nil
	}
	if s.headlineErr != nil {
		return s.headlineItems, true, s.headlineErr
	}
	return s.headlineItems, true, nil
}

// ReloadHeadlines fetches the headline stream again. On failure the
// stream is emptied and the error recorded.
func (s *Session) ReloadHeadlines(ctx context.Context, force bool) ([]domain.Article, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.headlineGen++
	gen := s.headlineGen
	s.mu.Unlock()

	items, err := s.headlines.Headlines(ctx, force)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.headlineGen {
		return nil, ErrSuperseded
	}
	s.headlinesLoaded = true
	if err != nil {
		s.headlineItems = nil
		s.headlineErr = fetch.AsError(err)
		s.log.Warn("Headlines failed", "kind", s.headlineErr.Kind.String(), "error", err)
		return nil, err
	}
	s.headlineItems = items
	s.headlineErr = nil
	return items, nil
}

// RefreshAll refreshes the feed and reloads headlines concurrently. Both
// settle independently; the returned error joins whichever failed.
func (s *Session) RefreshAll(ctx context.Context) (View, error) {
	var (
		wg               sync.WaitGroup
		feedErr, headErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, feedErr = s.Refresh(ctx)
	}()
	go func() {
		defer wg.Done()
		_, headErr = s.ReloadHeadlines(ctx, false)
	}()
	wg.Wait()

	return s.View(), errors.Join(feedErr, headErr)
}

// Visible returns the feed items whose identity is not in the headline
// stream, in feed order.
func (s *Session) Visible() []domain.Article {
	return s.View().Visible
}

// View returns the current feed state, headlines and visible items.
func (s *Session) View() View {
	s.mu.Lock()
	feed := s.feed
	headlines := make([]domain.Article, len(s.headlineItems))
	copy(headlines, s.headlineItems)
	herr := s.headlineErr
	s.mu.Unlock()

	st := feed.State()
	return View{
		Feed:          st,
		Headlines:     headlines,
		HeadlineError: herr,
		Visible:       ExcludeHeadlines(st.Items, headlines),
	}
}

// Close closes the active feed; late headline results are discarded.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	feed := s.feed
	s.mu.Unlock()
	feed.Close()
}

// ExcludeHeadlines filters items whose identity appears in headlines.
func ExcludeHeadlines(items, headlines []domain.Article) []domain.Article {
	ids := make(map[string]struct{}, len(headlines))
	for _, h := range headlines {
		if id := h.Identity(); id != "" {
			ids[id] = struct{}{}
		}
	}
	out := make([]domain.Article, 0, len(items))
	for _, a := range items {
		if _, hit := ids[a.Identity()]; hit {
			continue
		}
		out = append(out, a)
	}
	return out
}
