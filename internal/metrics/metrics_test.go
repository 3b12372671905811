package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/url-frontier/internal/archive"
	"github.com/JakeFAU/url-frontier/internal/frontier"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	first := mergeReportsTotal
	Init()
	require.Same(t, first, mergeReportsTotal)
	require.NotNil(t, frontierURLs)
	require.NotNil(t, httpRequestDurationSeconds)
}

func TestFrontierObserverMerge(t *testing.T) {
	obs := NewFrontierObserver()
	inserted := testutil.ToFloat64(mergeReportsTotal.WithLabelValues("inserted"))
	skipped := testutil.ToFloat64(mergeReportsTotal.WithLabelValues("skipped"))
	rejected := testutil.ToFloat64(mergeRejectedTotal)
	failed := testutil.ToFloat64(mergeErrorsTotal)

	obs.ObserveMerge(frontier.MergeResult{Requested: 5, Inserted: 2, Locked: 1, Skipped: 2}, nil)
	obs.ObserveMerge(frontier.MergeResult{}, &frontier.ValidationError{Err: frontier.ErrDuplicateURL})
	obs.ObserveMerge(frontier.MergeResult{}, errors.New("db down"))

	require.InDelta(t, inserted+2, testutil.ToFloat64(mergeReportsTotal.WithLabelValues("inserted")), 1e-9)
	require.InDelta(t, skipped+2, testutil.ToFloat64(mergeReportsTotal.WithLabelValues("skipped")), 1e-9)
	require.InDelta(t, rejected+1, testutil.ToFloat64(mergeRejectedTotal), 1e-9)
	require.InDelta(t, failed+1, testutil.ToFloat64(mergeErrorsTotal), 1e-9)
}

func TestFrontierObserverLeaseAndScores(t *testing.T) {
	obs := NewFrontierObserver()
	leaseErrors := testutil.ToFloat64(leaseErrorsTotal)
	found := testutil.ToFloat64(scoreLookupsTotal.WithLabelValues("found"))
	missing := testutil.ToFloat64(scoreLookupsTotal.WithLabelValues("missing"))

	obs.ObserveLease(40, nil)
	obs.ObserveLease(0, frontier.ErrEmptyUser)
	obs.ObserveLease(0, errors.New("timeout"))
	obs.ObserveScores(10, 7, nil)

	require.InDelta(t, leaseErrors+1, testutil.ToFloat64(leaseErrorsTotal), 1e-9)
	require.InDelta(t, found+7, testutil.ToFloat64(scoreLookupsTotal.WithLabelValues("found")), 1e-9)
	require.InDelta(t, missing+3, testutil.ToFloat64(scoreLookupsTotal.WithLabelValues("missing")), 1e-9)
	require.Positive(t, testutil.CollectAndCount(leaseBatchSize))
}

func TestSetURLCounts(t *testing.T) {
	Init()
	stats := frontier.NewStats()
	stats.Add(frontier.StatusNew, 12)
	stats.Add(frontier.StatusCrawled, 3)

	SetURLCounts(stats)

	require.InDelta(t, 12, testutil.ToFloat64(frontierURLs.WithLabelValues("NEW")), 1e-9)
	require.InDelta(t, 3, testutil.ToFloat64(frontierURLs.WithLabelValues("CRAWLED")), 1e-9)
	require.InDelta(t, 0, testutil.ToFloat64(frontierURLs.WithLabelValues("ERROR_404")), 1e-9)
}

type stubArchiver struct{ err error }

func (s stubArchiver) Archive(context.Context, string, int, any) (archive.Notification, error) {
	return archive.Notification{BatchID: "b"}, s.err
}

func TestInstrumentArchiver(t *testing.T) {
	ok := InstrumentArchiver(stubArchiver{})
	bad := InstrumentArchiver(stubArchiver{err: errors.New("gcs down")})
	before := testutil.ToFloat64(archiveBatchesTotal.WithLabelValues("error"))

	note, err := ok.Archive(context.Background(), "u", 1, nil)
	require.NoError(t, err)
	require.Equal(t, "b", note.BatchID)
	_, err = bad.Archive(context.Background(), "u", 1, nil)
	require.Error(t, err)

	require.InDelta(t, before+1, testutil.ToFloat64(archiveBatchesTotal.WithLabelValues("error")), 1e-9)
}
