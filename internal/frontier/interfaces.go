package frontier

import (
	"context"
	"time"
)

// Store is the URL record store. Every method runs as one unit of work against
// current persisted state; implementations must not cache records.
type Store interface {
	// UpdateFoundURLs merges client reports. Rows locked by a concurrent caller
	// are skipped, not waited on; the result reports how many were applied.
	UpdateFoundURLs(ctx context.Context, reports []FoundURL) (MergeResult, error)
	// GetNewBatchForUser leases up to BatchSize new or expired URLs to the
	// requester, highest score first. Fewer (or none) is a normal outcome.
	GetNewBatchForUser(ctx context.Context, userIDHash string) ([]string, error)
	// GetURLScores returns the score of every known URL among urls.
	GetURLScores(ctx context.Context, urls []string) (map[string]float64, error)
	// GetRecord loads one record or returns ErrNotFound.
	GetRecord(ctx context.Context, url string) (URLRecord, error)
	// Stats counts records per status.
	Stats(ctx context.Context) (Stats, error)
	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
	// Close releases backend resources.
	Close()
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time {
	return f()
}
