package background

import (
	"context"
	"fmt"
	"time"

	"github.com/JakeFAU/url-frontier/internal/frontier"
)

// StatsReader is the part of frontier.Store the stats phase needs.
type StatsReader interface {
	Stats(ctx context.Context) (frontier.Stats, error)
}

// FrontierStats reads per-status counts and hands them to sink.
func FrontierStats(store StatsReader, sink func(frontier.Stats)) Phase {
	return Phase{
		Name: "frontier-stats",
		Run: func(ctx context.Context) error {
			stats, err := store.Stats(ctx)
			if err != nil {
				return fmt.Errorf("read frontier stats: %w", err)
			}
			sink(stats)
			return nil
		},
	}
}

// Pruner drops idle per-key state.
type Pruner interface {
	Prune(idle time.Duration) int
}

// PruneRateLimits forgets rate-limit buckets unused for longer than idle.
func PruneRateLimits(p Pruner, idle time.Duration) Phase {
	return Phase{
		Name: "ratelimit-prune",
		Run: func(context.Context) error {
			p.Prune(idle)
			return nil
		},
	}
}
