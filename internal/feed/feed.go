// Package feed holds the paginated article list for one category and the
// session that switches between categories.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/newsfeed/internal/core/domain"
	"github.com/vietddude/newsfeed/internal/infra/fetch"
	"github.com/vietddude/newsfeed/internal/metrics"
)

var (
	// ErrClosed is returned by operations on a feed that has been torn down.
	ErrClosed = errors.New("feed closed")

	// ErrSuperseded is returned when a fetch completed after a refresh or
	// teardown made its result obsolete. The result was discarded.
	ErrSuperseded = errors.New("feed result superseded")
)

// PageSource fetches one page of a category. force bypasses cache freshness.
type PageSource interface {
	Page(ctx context.Context, category domain.Category, page int, force bool) ([]domain.Article, error)
}

// State is a snapshot of a feed.
type State struct {
	ID           string           `json:"id"`
	Category     domain.Category  `json:"category"`
	Items        []domain.Article `json:"items"`
	NextPage     int              `json:"next_page"`
	AtEnd        bool             `json:"at_end"`
	IsLoading    bool             `json:"is_loading"`
	IsRefreshing bool             `json:"is_refreshing"`
	LastError    *fetch.Error     `json:"-"`
	Generation   uint64           `json:"generation"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// Feed accumulates pages of one category. Network work runs outside the
// lock; results are applied only if the generation is unchanged and the
// feed is still open.
type Feed struct {
	id       string
	category domain.Category
	source   PageSource

	mu         sync.Mutex
	phase      Phase
	items      []domain.Article
	seen       map[string]struct{}
	nextPage   int
	atEnd      bool
	lastErr    *fetch.Error
	generation uint64
	updatedAt  time.Time
	history    *History
	subs       []chan State

	log *slog.Logger
}

// New creates an idle feed for category starting at page 1.
func New(category domain.Category, source PageSource) *Feed {
	id := uuid.NewString()
	return &Feed{
		id:        id,
		category:  category,
		source:    source,
		phase:     PhaseIdle,
		seen:      make(map[string]struct{}),
		nextPage:  1,
		updatedAt: time.Now(),
		history:   NewHistory(10),
		log:       slog.Default().With("component", "feed", "category", category.String(), "feed_id", id),
	}
}

// ID returns the feed instance ID.
func (f *Feed) ID() string {
	return f.id
}

// Category returns the feed category.
func (f *Feed) Category() domain.Category {
	return f.category
}

// State returns a snapshot.
func (f *Feed) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

// Phase returns the current phase.
func (f *Feed) Phase() Phase {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phase
}

// Stats returns recent transitions and counters.
func (f *Feed) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history.Stats()
}

// LoadMore fetches the next page and appends the items not already held.
// It does nothing when a load or refresh is in flight or the end was
// reached.
func (f *Feed) LoadMore(ctx context.Context) (State, error) {
	f.mu.Lock()
	if f.phase == PhaseClosed {
		f.mu.Unlock()
		return State{}, ErrClosed
	}
	if f.phase != PhaseIdle || f.atEnd {
		s := f.snapshotLocked()
		f.mu.Unlock()
		return s, nil
	}
	gen := f.generation
	page := f.nextPage
	f.lastErr = nil
	if err := f.transitionLocked(PhaseLoading, fmt.Sprintf("load page %d", page)); err != nil {
		f.mu.Unlock()
		return State{}, err
	}
	f.mu.Unlock()

	items, err := f.source.Page(ctx, f.category, page, false)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.phase == PhaseClosed || f.generation != gen {
		f.history.discarded++
		metrics.FeedLoads.WithLabelValues("more", "discarded").Inc()
		f.log.Debug("Discarding superseded page", "page", page, "generation", gen)
		return f.snapshotLocked(), ErrSuperseded
	}

	if err != nil {
		f.failLocked("more", err)
		return f.snapshotLocked(), err
	}

	added := f.mergeLocked(items)
	f.nextPage++
	if len(items) == 0 {
		f.atEnd = true
	}
	_ = f.transitionLocked(PhaseIdle, fmt.Sprintf("page %d loaded", page))
	metrics.FeedLoads.WithLabelValues("more", "ok").Inc()
	metrics.FeedItems.WithLabelValues(f.category.String()).Set(float64(len(f.items)))
	f.log.Debug("Page merged", "page", page, "fetched", len(items), "added", added, "total", len(f.items))
	return f.snapshotLocked(), nil
}

// Refresh re-fetches page 1 bypassing cache freshness and replaces the
// items. It supersedes an outstanding LoadMore. A second Refresh while one
// is in flight does nothing.
func (f *Feed) Refresh(ctx context.Context) (State, error) {
	f.mu.Lock()
	if f.phase == PhaseClosed {
		f.mu.Unlock()
		return State{}, ErrClosed
	}
	if f.phase == PhaseRefreshing {
		s := f.snapshotLocked()
		f.mu.Unlock()
		return s, nil
	}
	f.generation++
	gen := f.generation
	f.atEnd = false
	f.lastErr = nil
	if err := f.transitionLocked(PhaseRefreshing, "refresh"); err != nil {
		f.mu.Unlock()
		return State{}, err
	}
	f.mu.Unlock()

	items, err := f.source.Page(ctx, f.category, 1, true)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.phase == PhaseClosed || f.generation != gen {
		f.history.discarded++
		metrics.FeedLoads.WithLabelValues("refresh", "discarded").Inc()
		return f.snapshotLocked(), ErrSuperseded
	}

	if err != nil {
		f.failLocked("refresh", err)
		return f.snapshotLocked(), err
	}

	f.items = nil
	f.seen = make(map[string]struct{})
	f.mergeLocked(items)
	f.nextPage = 2
	if len(items) == 0 {
		f.atEnd = true
	}
	_ = f.transitionLocked(PhaseIdle, "refreshed")
	metrics.FeedLoads.WithLabelValues("refresh", "ok").Inc()
	metrics.FeedItems.WithLabelValues(f.category.String()).Set(float64(len(f.items)))
	f.log.Debug("Feed refreshed", "items", len(f.items))
	return f.snapshotLocked(), nil
}

// Close tears the feed down. Results of fetches still in flight are
// discarded and subscriber channels are closed.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.phase == PhaseClosed {
		return
	}
	f.generation++
	_ = f.transitionLocked(PhaseClosed, "closed")
	for _, ch := range f.subs {
		close(ch)
	}
	f.subs = nil
}

// Subscribe returns a channel receiving the state after every change. Only
// the latest state is buffered; slow readers miss intermediate ones. The
// channel is closed by Close.
func (f *Feed) Subscribe() <-chan State {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan State, 1)
	if f.phase == PhaseClosed {
		close(ch)
		return ch
	}
	ch <- f.snapshotLocked()
	f.subs = append(f.subs, ch)
	return ch
}

func (f *Feed) failLocked(op string, err error) {
	f.lastErr = fetch.AsError(err)
	f.history.failures++
	_ = f.transitionLocked(PhaseIdle, "failed: "+f.lastErr.Kind.String())
	metrics.FeedLoads.WithLabelValues(op, f.lastErr.Kind.String()).Inc()
	f.log.Warn("Feed fetch failed", "op", op, "kind", f.lastErr.Kind.String(), "error", err)
}

// mergeLocked appends items whose identity is new, keeping first-seen
// order. Items without an identity are dropped.
func (f *Feed) mergeLocked(items []domain.Article) int {
	added := 0
	for _, a := range items {
		id := a.Identity()
		if id == "" {
			continue
		}
		if _, dup := f.seen[id]; dup {
			continue
		}
		f.seen[id] = struct{}{}
		f.items = append(f.items, a)
		added++
	}
	return added
}

func (f *Feed) transitionLocked(to Phase, reason string) error {
	t := NewTransition(f.phase, to, reason, f.generation)
	if !t.IsValid() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, f.phase, to)
	}
	f.phase = to
	f.updatedAt = t.Timestamp
	f.history.Record(t)
	f.publishLocked()
	return nil
}

func (f *Feed) publishLocked() {
	if len(f.subs) == 0 {
		return
	}
	s := f.snapshotLocked()
	for _, ch := range f.subs {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}

func (f *Feed) snapshotLocked() State {
	items := make([]domain.Article, len(f.items))
	copy(items, f.items)
	return State{
		ID:           f.id,
		Category:     f.category,
		Items:        items,
		NextPage:     f.nextPage,
		AtEnd:        f.atEnd,
		IsLoading:    f.phase == PhaseLoading,
		IsRefreshing: f.phase == PhaseRefreshing,
		LastError:    f.lastErr,
		Generation:   f.generation,
		UpdatedAt:    f.updatedAt,
	}
}
