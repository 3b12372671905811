package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/url-frontier/internal/archive"
	"github.com/JakeFAU/url-frontier/internal/frontier"
	"github.com/JakeFAU/url-frontier/internal/hash/sha256"
	"github.com/JakeFAU/url-frontier/internal/ingest"
	pubmemory "github.com/JakeFAU/url-frontier/internal/publisher/memory"
	"github.com/JakeFAU/url-frontier/internal/storage/memory"
)

type seqIDs struct{ n int }

func (s *seqIDs) NewID() (string, error) {
	s.n++
	return fmt.Sprintf("batch-%d", s.n), nil
}

type failingArchiver struct{}

func (failingArchiver) Archive(context.Context, string, int, any) (archive.Notification, error) {
	return archive.Notification{}, errors.New("bucket unavailable")
}

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func clock() frontier.Clock {
	return frontier.ClockFunc(func() time.Time { return now })
}

func sampleBatch() ingest.Batch {
	return ingest.Batch{
		UserID: "crawler-7",
		Items: []ingest.Item{{
			URL:       "https://a.com/",
			Timestamp: now.UnixMilli(),
			Content:   &ingest.Content{Title: "A", Links: []string{"https://b.com/", "https://c.com/"}},
		}},
	}
}

func TestIngestArchivesThenMerges(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewURLStore()
	blobs := memory.NewBlobStore()
	pub := pubmemory.New()
	arch, err := archive.New(blobs, &seqIDs{}, archive.WithPublisher(pub, "batches"), archive.WithClock(clock()))
	require.NoError(t, err)

	hasher := sha256.New("")
	ing, err := ingest.NewIngester(store, hasher, ingest.Config{}, ingest.WithArchiver(arch), ingest.WithClock(clock()))
	require.NoError(t, err)

	res, err := ing.Ingest(ctx, sampleBatch())
	require.NoError(t, err)

	userHash := hasher.HashUserID("crawler-7")
	require.Equal(t, userHash, res.UserIDHash)
	require.Equal(t, ing.HashUserID("crawler-7"), userHash)
	require.Equal(t, "batch-1", res.BatchID)
	require.Equal(t, "memory://batches/2024-03-01/"+userHash+"/batch-1.json", res.URI)
	require.Equal(t, frontier.MergeResult{Requested: 3, Inserted: 3}, res.Merge)
	require.Len(t, pub.Messages(), 1)

	data, _, ok := blobs.Object("batches/2024-03-01/" + userHash + "/batch-1.json")
	require.True(t, ok)
	require.NotContains(t, string(data), "crawler-7", "raw user id must not be archived")

	rec, err := store.GetRecord(ctx, "https://b.com/")
	require.NoError(t, err)
	require.Equal(t, frontier.StatusNew, rec.Status)
	require.InDelta(t, ingest.CrossDomainScore, rec.Score, 1e-12)

	scores, err := store.GetURLScores(ctx, []string{"https://b.com/", "https://c.com/", "https://zzz.com/"})
	require.NoError(t, err)
	require.Len(t, scores, 2)

	// Rediscovering a link accumulates score.
	_, err = ing.Ingest(ctx, sampleBatch())
	require.NoError(t, err)
	rec, err = store.GetRecord(ctx, "https://b.com/")
	require.NoError(t, err)
	require.InDelta(t, 2*ingest.CrossDomainScore, rec.Score, 1e-12)
}

func TestIngestValidation(t *testing.T) {
	t.Parallel()

	store := memory.NewURLStore()
	ing, err := ingest.NewIngester(store, sha256.New(""), ingest.Config{MaxItems: 1})
	require.NoError(t, err)

	_, err = ing.Ingest(context.Background(), ingest.Batch{})
	require.ErrorIs(t, err, ingest.ErrInvalidBatch)

	batch := sampleBatch()
	batch.Items = append(batch.Items, batch.Items[0])
	_, err = ing.Ingest(context.Background(), batch)
	require.ErrorIs(t, err, ingest.ErrInvalidBatch)

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	require.Zero(t, stats.Total)

	_, err = ingest.NewIngester(nil, sha256.New(""), ingest.Config{})
	require.Error(t, err)
	_, err = ingest.NewIngester(store, nil, ingest.Config{})
	require.Error(t, err)
}

func TestIngestArchiveFailureSkipsMerge(t *testing.T) {
	t.Parallel()

	store := memory.NewURLStore()
	ing, err := ingest.NewIngester(store, sha256.New(""), ingest.Config{}, ingest.WithArchiver(failingArchiver{}))
	require.NoError(t, err)

	_, err = ing.Ingest(context.Background(), sampleBatch())
	require.ErrorContains(t, err, "bucket unavailable")

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	require.Zero(t, stats.Total)
}
