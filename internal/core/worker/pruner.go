package worker

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper is implemented by stores that can drop entries past an age.
type Sweeper interface {
	Sweep(ctx context.Context, maxAge time.Duration) (int, error)
}

// Pruner deletes old cache entries based on a retention policy. TTL
// freshness is unaffected; the pruner only bounds how much the durable
// store keeps around for stale-on-error fallbacks.
type Pruner struct {
	target    Sweeper
	retention time.Duration
	interval  time.Duration
}

// NewPruner creates a new Pruner worker. A zero interval is derived from
// the retention period.
func NewPruner(target Sweeper, retention, interval time.Duration) *Pruner {
	if interval <= 0 {
		// 10% of retention, between 1 minute and 1 hour
		interval = min(retention/10, 1*time.Hour)
		interval = max(interval, 1*time.Minute)
	}
	return &Pruner{
		target:    target,
		retention: retention,
		interval:  interval,
	}
}

// Start runs the pruner loop until ctx is done.
func (p *Pruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		return // Retention disabled
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// Initial prune
	p.prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *Pruner) prune(ctx context.Context) {
	removed, err := p.target.Sweep(ctx, p.retention)
	if err != nil {
		slog.Error("[Pruner] failed to prune cache", "error", err, "removed", removed)
		return
	}
	if removed > 0 {
		slog.Info("[Pruner] pruned cache entries", "removed", removed, "retention", p.retention)
	}
}
