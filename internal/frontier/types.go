package frontier

import (
	"time"
)

// Frontier limits.
const (
	// BatchSize is the maximum number of URLs handed out by a single lease.
	BatchSize = 100
	// LeaseTTL is how long a client may hold an assigned URL before it is reassigned.
	LeaseTTL = time.Hour
	// ScoreChunkSize bounds the number of URLs sent to the backend per score query.
	ScoreChunkSize = 10000
)

// FoundURL is one client report about a URL. It is consumed by the merge and
// never persisted as-is.
type FoundURL struct {
	URL        string
	UserIDHash string
	Score      float64
	Status     URLStatus
	Timestamp  time.Time
}

// URLRecord is the authoritative row kept for each distinct URL.
type URLRecord struct {
	URL        string    `json:"url"`
	Status     URLStatus `json:"status"`
	UserIDHash string    `json:"user_id_hash"`
	Score      float64   `json:"score"`
	Updated    time.Time `json:"updated"`
}

// MergeResult describes how many reports of one merge call were applied.
// Skipped reports lost a row lock to a concurrent caller; that is not an error.
type MergeResult struct {
	Requested int `json:"requested"`
	Inserted  int `json:"inserted"`
	Locked    int `json:"locked"`
	Skipped   int `json:"skipped"`
}

// Applied is the number of reports written by the merge.
func (r MergeResult) Applied() int {
	return r.Inserted + r.Locked
}

// Stats counts records per status.
type Stats struct {
	Counts map[URLStatus]int64 `json:"counts"`
	Total  int64               `json:"total"`
}

// NewStats returns Stats with a zero count for every known status.
func NewStats() Stats {
	counts := make(map[URLStatus]int64, len(statusNames))
	for _, s := range AllStatuses() {
		counts[s] = 0
	}
	return Stats{Counts: counts}
}

// Add accumulates n records with status s.
func (s *Stats) Add(status URLStatus, n int64) {
	if s.Counts == nil {
		s.Counts = make(map[URLStatus]int64)
	}
	s.Counts[status] += n
	s.Total += n
}
