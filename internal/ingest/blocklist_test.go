package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDomainBlocklist(t *testing.T) {
	t.Parallel()

	t.Run("exact match", func(t *testing.T) {
		t.Parallel()
		bl := newDomainBlocklist([]string{"Example.org"})
		require.NotNil(t, bl)
		require.True(t, bl.Blocked("example.org"))
		require.False(t, bl.Blocked("sub.example.org"))
	})

	t.Run("wildcard suffix", func(t *testing.T) {
		t.Parallel()
		bl := newDomainBlocklist([]string{"*.ru", ".test"})
		cases := []struct {
			host    string
			blocked bool
		}{
			{"example.ru", true},
			{"sub.domain.ru", true},
			{"ru", true},
			{"a.test", true},
			{"example.com", false},
			{"", false},
		}
		for _, tc := range cases {
			require.Equal(t, tc.blocked, bl.Blocked(tc.host), tc.host)
		}
	})

	t.Run("empty patterns", func(t *testing.T) {
		t.Parallel()
		bl := newDomainBlocklist([]string{" ", "*."})
		require.Nil(t, bl)
		require.False(t, bl.Blocked("anything.com"))
	})
}

func TestBuildReportsDropsBlockedLinks(t *testing.T) {
	t.Parallel()

	received := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	batch := Batch{UserID: "u", Items: []Item{{
		URL:     "https://spam.ads.net/page",
		Content: &Content{Links: []string{"https://ok.com/", "https://tracker.ads.net/pixel"}},
	}}}

	reports, err := BuildReports(batch, "h", NewScorer(nil).WithBlocklist([]string{"*.ads.net"}), received)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	require.Equal(t, "https://ok.com/", reports[0].URL)
	require.Equal(t, "https://spam.ads.net/page", reports[1].URL)
}
