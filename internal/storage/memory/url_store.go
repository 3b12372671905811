// Package memory provides in-memory stores for local development and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/url-frontier/internal/frontier"
)

// URLStore keeps the frontier in process memory. It follows the same contract
// as the Postgres store: rows held by an in-flight call are skipped by every
// other caller rather than waited on.
type URLStore struct {
	mu      sync.Mutex
	records map[string]*row
	clock   frontier.Clock
	lease   frontier.LeaseConfig
	chunk   int
	logger  *zap.Logger

	// between runs after rows are held and before they are written; tests use
	// it to widen the window in which a concurrent caller can see a held row.
	between func()
}

type row struct {
	rec  frontier.URLRecord
	held bool
}

// Option customizes a URLStore.
type Option func(*URLStore)

// WithClock overrides the clock used to stamp leases.
func WithClock(clock frontier.Clock) Option {
	return func(s *URLStore) { s.clock = clock }
}

// WithLeaseConfig overrides batch size and lease TTL.
func WithLeaseConfig(cfg frontier.LeaseConfig) Option {
	return func(s *URLStore) { s.lease = cfg.Normalize() }
}

// WithScoreChunkSize bounds the number of URLs looked up per score query.
func WithScoreChunkSize(n int) Option {
	return func(s *URLStore) {
		if n > 0 {
			s.chunk = n
		}
	}
}

// WithLogger sets the logger used for contention warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(s *URLStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewURLStore constructs an empty URLStore.
func NewURLStore(opts ...Option) *URLStore {
	s := &URLStore{
		records: make(map[string]*row),
		clock:   frontier.SystemClock{},
		lease:   frontier.DefaultLeaseConfig(),
		chunk:   frontier.ScoreChunkSize,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UpdateFoundURLs merges reports into the store.
func (s *URLStore) UpdateFoundURLs(ctx context.Context, reports []frontier.FoundURL) (frontier.MergeResult, error) {
	if len(reports) == 0 {
		return frontier.MergeResult{}, nil
	}
	if err := frontier.ValidateReports(reports); err != nil {
		return frontier.MergeResult{}, err //nolint:wrapcheck // validation errors are returned as-is
	}
	if err := ctx.Err(); err != nil {
		return frontier.MergeResult{}, err //nolint:wrapcheck // context errors are returned as-is
	}
	sorted := frontier.SortedReports(reports)
	result := frontier.MergeResult{Requested: len(sorted)}

	type claim struct {
		row    *row
		report frontier.FoundURL
		fresh  bool
	}
	claims := make([]claim, 0, len(sorted))

	s.mu.Lock()
	for _, report := range sorted {
		r, ok := s.records[report.URL]
		switch {
		case !ok:
			r = &row{rec: frontier.NewRecord(report), held: true}
			s.records[report.URL] = r
			claims = append(claims, claim{row: r, report: report, fresh: true})
			result.Inserted++
		case r.held:
			result.Skipped++
		default:
			r.held = true
			claims = append(claims, claim{row: r, report: report})
			result.Locked++
		}
	}
	s.mu.Unlock()

	if s.between != nil {
		s.between()
	}

	s.mu.Lock()
	for _, c := range claims {
		if !c.fresh {
			c.row.rec = frontier.MergeRecord(c.row.rec, c.report)
		}
		c.row.held = false
	}
	s.mu.Unlock()

	if result.Skipped > 0 {
		s.logger.Warn("merge skipped rows locked by concurrent callers",
			zap.Int("requested", result.Requested),
			zap.Int("applied", result.Applied()),
			zap.Int("new", result.Inserted),
		)
	}
	return result, nil
}

// GetNewBatchForUser leases the highest-scoring eligible URLs to userIDHash.
func (s *URLStore) GetNewBatchForUser(ctx context.Context, userIDHash string) ([]string, error) {
	if err := frontier.ValidateRequester(userIDHash); err != nil {
		return nil, err //nolint:wrapcheck // validation errors are returned as-is
	}
	if err := ctx.Err(); err != nil {
		return nil, err //nolint:wrapcheck // context errors are returned as-is
	}
	now := s.clock.Now().UTC()

	s.mu.Lock()
	candidates := make([]*row, 0)
	for _, r := range s.records {
		if !r.held && s.lease.Leasable(r.rec, now) {
			candidates = append(candidates, r)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].rec.Score != candidates[j].rec.Score {
			return candidates[i].rec.Score > candidates[j].rec.Score
		}
		return candidates[i].rec.URL < candidates[j].rec.URL
	})
	if len(candidates) > s.lease.BatchSize {
		candidates = candidates[:s.lease.BatchSize]
	}
	for _, r := range candidates {
		r.held = true
	}
	s.mu.Unlock()

	if s.between != nil {
		s.between()
	}

	s.mu.Lock()
	urls := make([]string, 0, len(candidates))
	for _, r := range candidates {
		r.rec = frontier.Assign(r.rec, userIDHash, now)
		r.held = false
		urls = append(urls, r.rec.URL)
	}
	s.mu.Unlock()
	return urls, nil
}

// GetURLScores returns the score of every known URL in urls.
func (s *URLStore) GetURLScores(ctx context.Context, urls []string) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err //nolint:wrapcheck // context errors are returned as-is
	}
	scores := make(map[string]float64)
	// One snapshot for the whole read; chunks only bound each pass.
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, chunk := range frontier.Chunk(urls, s.chunk) {
		for _, u := range chunk {
			if r, ok := s.records[u]; ok {
				scores[u] = r.rec.Score
			}
		}
	}
	return scores, nil
}

// GetRecord returns a copy of the record for url.
func (s *URLStore) GetRecord(_ context.Context, url string) (frontier.URLRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[url]
	if !ok {
		return frontier.URLRecord{}, frontier.ErrNotFound
	}
	return r.rec, nil
}

// Stats counts records per status.
func (s *URLStore) Stats(_ context.Context) (frontier.Stats, error) {
	stats := frontier.NewStats()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		stats.Add(r.rec.Status, 1)
	}
	return stats, nil
}

// Ping always succeeds.
func (s *URLStore) Ping(context.Context) error {
	return nil
}

// Close is a no-op.
func (s *URLStore) Close() {}
