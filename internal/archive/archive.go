// Package archive stores raw crawl batches and announces them to downstream
// indexing through a publisher.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/url-frontier/internal/frontier"
)

// DefaultPrefix is the object prefix for archived batches.
const DefaultPrefix = "batches"

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes batch notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// IDGenerator issues batch identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Notification announces one archived batch.
type Notification struct {
	BatchID    string    `json:"batch_id"`
	URI        string    `json:"uri"`
	UserIDHash string    `json:"user_id_hash"`
	Items      int       `json:"items"`
	ReceivedAt time.Time `json:"received_at"`
}

// Archiver writes batches to a BlobStore and optionally publishes a Notification.
type Archiver struct {
	blobs     BlobStore
	ids       IDGenerator
	publisher Publisher
	topic     string
	prefix    string
	clock     frontier.Clock
	logger    *zap.Logger
}

// Option customizes an Archiver.
type Option func(*Archiver)

// WithPublisher announces each archived batch on topic.
func WithPublisher(p Publisher, topic string) Option {
	return func(a *Archiver) {
		a.publisher = p
		a.topic = topic
	}
}

// WithPrefix overrides DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(a *Archiver) {
		if p := strings.Trim(prefix, "/"); p != "" {
			a.prefix = p
		}
	}
}

// WithClock overrides the clock used for received_at and the date path segment.
func WithClock(clock frontier.Clock) Option {
	return func(a *Archiver) { a.clock = clock }
}

// WithLogger sets the archiver logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Archiver) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New constructs an Archiver.
func New(blobs BlobStore, ids IDGenerator, opts ...Option) (*Archiver, error) {
	if blobs == nil {
		return nil, errors.New("blob store is required")
	}
	if ids == nil {
		return nil, errors.New("id generator is required")
	}
	a := &Archiver{
		blobs:  blobs,
		ids:    ids,
		prefix: DefaultPrefix,
		clock:  frontier.SystemClock{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// ObjectPath returns prefix/yyyy-mm-dd/user/id.json.
func (a *Archiver) ObjectPath(receivedAt time.Time, userIDHash, batchID string) string {
	return path.Join(a.prefix, receivedAt.UTC().Format(time.DateOnly), userIDHash, batchID+".json")
}

// Archive stores batch as JSON and publishes a Notification when a publisher is configured.
func (a *Archiver) Archive(ctx context.Context, userIDHash string, items int, batch any) (Notification, error) {
	if userIDHash == "" {
		return Notification{}, frontier.ErrEmptyUser
	}
	payload, err := json.Marshal(batch)
	if err != nil {
		return Notification{}, fmt.Errorf("marshal batch: %w", err)
	}
	batchID, err := a.ids.NewID()
	if err != nil {
		return Notification{}, fmt.Errorf("batch id: %w", err)
	}
	receivedAt := a.clock.Now().UTC()

	uri, err := a.blobs.PutObject(ctx, a.ObjectPath(receivedAt, userIDHash, batchID), "application/json", bytes.NewReader(payload))
	if err != nil {
		return Notification{}, fmt.Errorf("store batch: %w", err)
	}
	note := Notification{
		BatchID:    batchID,
		URI:        uri,
		UserIDHash: userIDHash,
		Items:      items,
		ReceivedAt: receivedAt,
	}

	if a.publisher != nil {
		msgID, err := a.publisher.Publish(ctx, a.topic, note)
		if err != nil {
			return Notification{}, fmt.Errorf("publish batch %s: %w", batchID, err)
		}
		a.logger.Debug("batch announced", zap.String("batch_id", batchID), zap.String("message_id", msgID))
	}
	a.logger.Info("batch archived",
		zap.String("batch_id", batchID),
		zap.String("uri", uri),
		zap.Int("items", items),
	)
	return note, nil
}
