// Package ingest turns client crawl batches into frontier reports.
package ingest

import (
	"errors"
	"time"
)

// ErrInvalidBatch is returned for batches rejected before any state changes.
var ErrInvalidBatch = errors.New("invalid batch")

// Batch is what a crawler client submits after a crawl round.
type Batch struct {
	UserID string `json:"user_id"`
	Items  []Item `json:"items"`
}

// Item is the outcome of crawling one URL.
type Item struct {
	URL string `json:"url"`
	// Status is the HTTP status the client saw, if any.
	Status *int `json:"status,omitempty"`
	// Timestamp is milliseconds since the Unix epoch.
	Timestamp int64    `json:"timestamp"`
	Content   *Content `json:"content,omitempty"`
	Error     *Error   `json:"error,omitempty"`
}

// Content is the extracted page summary.
type Content struct {
	Title   string   `json:"title"`
	Extract string   `json:"extract"`
	Links   []string `json:"links"`
}

// Error describes a failed crawl as reported by the client.
type Error struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// Time converts the item timestamp to UTC, falling back to def when the
// client sent none.
func (i Item) Time(def time.Time) time.Time {
	if i.Timestamp <= 0 {
		return def.UTC()
	}
	return time.UnixMilli(i.Timestamp).UTC()
}

// HashedBatch is the archived form of a batch: the raw user ID never leaves
// the ingestion path.
type HashedBatch struct {
	UserIDHash string    `json:"user_id_hash"`
	ReceivedAt time.Time `json:"received_at"`
	Items      []Item    `json:"items"`
}
