package ingest

import (
	"fmt"
	"sort"
	"time"

	"github.com/JakeFAU/url-frontier/internal/frontier"
)

// BuildReports folds a batch into one report per URL, sorted by URL.
// Crawled items become CRAWLED, failed items take their error status, and each
// link on a crawled page adds a NEW report scored by scorer unless its host is
// blocked. Repeated URLs are combined: scores add and the higher status wins.
// Items without a timestamp are stamped with receivedAt.
func BuildReports(batch Batch, userIDHash string, scorer Scorer, receivedAt time.Time) ([]frontier.FoundURL, error) {
	byURL := make(map[string]frontier.FoundURL)
	add := func(r frontier.FoundURL) {
		prev, ok := byURL[r.URL]
		if !ok {
			byURL[r.URL] = r
			return
		}
		if prev.Status.Compare(r.Status) > 0 {
			r.Status = prev.Status
			r.Timestamp = prev.Timestamp
		}
		r.Score += prev.Score
		byURL[r.URL] = r
	}

	for idx, item := range batch.Items {
		source, ok := parseHTTPURL(item.URL)
		if !ok {
			return nil, fmt.Errorf("%w: item %d has invalid url %q", ErrInvalidBatch, idx, item.URL)
		}
		at := item.Time(receivedAt)

		if item.Content == nil || item.Error != nil {
			add(frontier.FoundURL{
				URL:        item.URL,
				UserIDHash: userIDHash,
				Status:     ErrorStatus(item),
				Timestamp:  at,
			})
			continue
		}

		add(frontier.FoundURL{
			URL:        item.URL,
			UserIDHash: userIDHash,
			Status:     frontier.StatusCrawled,
			Timestamp:  at,
		})
		for _, link := range item.Content.Links {
			target, ok := parseHTTPURL(link)
			if !ok || scorer.Blocked(target.Hostname()) {
				continue
			}
			add(frontier.FoundURL{
				URL:        link,
				UserIDHash: userIDHash,
				Score:      scorer.LinkScore(source, target),
				Status:     frontier.StatusNew,
				Timestamp:  at,
			})
		}
	}

	reports := make([]frontier.FoundURL, 0, len(byURL))
	for _, r := range byURL {
		reports = append(reports, r)
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].URL < reports[j].URL })
	return reports, nil
}
