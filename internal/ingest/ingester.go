package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/url-frontier/internal/archive"
	"github.com/JakeFAU/url-frontier/internal/frontier"
)

// DefaultMaxItems bounds the number of items in one batch.
const DefaultMaxItems = 1000

// UserHasher hides raw client IDs.
type UserHasher interface {
	HashUserID(userID string) string
}

// Archiver persists the hashed batch before it is merged.
type Archiver interface {
	Archive(ctx context.Context, userIDHash string, items int, batch any) (archive.Notification, error)
}

// Config controls batch validation and scoring.
type Config struct {
	TrustedDomains []string
	BlockedDomains []string
	MaxItems       int
}

// Result summarizes one ingested batch.
type Result struct {
	UserIDHash string               `json:"user_id_hash"`
	BatchID    string               `json:"batch_id,omitempty"`
	URI        string               `json:"uri,omitempty"`
	Merge      frontier.MergeResult `json:"merge"`
}

// Ingester archives client batches and merges them into the frontier.
type Ingester struct {
	store    frontier.Store
	archiver Archiver
	hasher   UserHasher
	scorer   Scorer
	maxItems int
	clock    frontier.Clock
	logger   *zap.Logger
}

// Option customizes an Ingester.
type Option func(*Ingester)

// WithArchiver stores every batch before merging it.
func WithArchiver(a Archiver) Option {
	return func(i *Ingester) { i.archiver = a }
}

// WithClock overrides the clock used for items without a timestamp.
func WithClock(clock frontier.Clock) Option {
	return func(i *Ingester) { i.clock = clock }
}

// WithLogger sets the ingester logger.
func WithLogger(logger *zap.Logger) Option {
	return func(i *Ingester) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// NewIngester wires an Ingester.
func NewIngester(store frontier.Store, hasher UserHasher, cfg Config, opts ...Option) (*Ingester, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if hasher == nil {
		return nil, errors.New("hasher is required")
	}
	maxItems := cfg.MaxItems
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	i := &Ingester{
		store:    store,
		hasher:   hasher,
		scorer:   NewScorer(cfg.TrustedDomains).WithBlocklist(cfg.BlockedDomains),
		maxItems: maxItems,
		clock:    frontier.SystemClock{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Ingest validates, archives and merges batch.
func (i *Ingester) Ingest(ctx context.Context, batch Batch) (Result, error) {
	if strings.TrimSpace(batch.UserID) == "" {
		return Result{}, fmt.Errorf("%w: user_id is required", ErrInvalidBatch)
	}
	if len(batch.Items) > i.maxItems {
		return Result{}, fmt.Errorf("%w: %d items exceeds limit of %d", ErrInvalidBatch, len(batch.Items), i.maxItems)
	}

	userIDHash := i.hasher.HashUserID(batch.UserID)
	receivedAt := i.clock.Now().UTC()
	reports, err := BuildReports(batch, userIDHash, i.scorer, receivedAt)
	if err != nil {
		return Result{}, err
	}
	result := Result{UserIDHash: userIDHash}

	if i.archiver != nil {
		note, err := i.archiver.Archive(ctx, userIDHash, len(batch.Items), HashedBatch{
			UserIDHash: userIDHash,
			ReceivedAt: receivedAt,
			Items:      batch.Items,
		})
		if err != nil {
			return Result{}, fmt.Errorf("archive batch: %w", err)
		}
		result.BatchID = note.BatchID
		result.URI = note.URI
	}

	merge, err := i.store.UpdateFoundURLs(ctx, reports)
	if err != nil {
		return Result{}, fmt.Errorf("merge batch: %w", err)
	}
	result.Merge = merge

	i.logger.Info("batch ingested",
		zap.String("user_id_hash", userIDHash),
		zap.String("batch_id", result.BatchID),
		zap.Int("items", len(batch.Items)),
		zap.Int("reports", merge.Requested),
		zap.Int("applied", merge.Applied()),
	)
	return result, nil
}

// HashUserID exposes the configured hasher to callers that lease work.
func (i *Ingester) HashUserID(userID string) string {
	return i.hasher.HashUserID(userID)
}
