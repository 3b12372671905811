package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/url-frontier/internal/frontier"
)

// columns holds reports as parallel arrays for unnest().
type columns struct {
	urls     []string
	statuses []int32
	users    []string
	scores   []float64
	updated  []time.Time
}

func toColumns(reports []frontier.FoundURL) columns {
	c := columns{
		urls:     make([]string, 0, len(reports)),
		statuses: make([]int32, 0, len(reports)),
		users:    make([]string, 0, len(reports)),
		scores:   make([]float64, 0, len(reports)),
		updated:  make([]time.Time, 0, len(reports)),
	}
	for _, r := range reports {
		c.urls = append(c.urls, r.URL)
		c.statuses = append(c.statuses, int32(r.Status.Rank()))
		c.users = append(c.users, r.UserIDHash)
		c.scores = append(c.scores, r.Score)
		c.updated = append(c.updated, r.Timestamp.UTC())
	}
	return c
}

func (c columns) args() []any {
	return []any{c.urls, c.statuses, c.users, c.scores, c.updated}
}

const unnestReports = `unnest($1::text[], $2::int[], $3::text[], $4::float8[], $5::timestamp[])`

// UpdateFoundURLs merges reports in one transaction. URLs with no row are
// inserted and existing rows are locked with SKIP LOCKED and merged. Rows held
// by a concurrent transaction are skipped and counted, never waited on.
func (s *URLStore) UpdateFoundURLs(ctx context.Context, reports []frontier.FoundURL) (frontier.MergeResult, error) {
	if len(reports) == 0 {
		return frontier.MergeResult{}, nil
	}
	if err := frontier.ValidateReports(reports); err != nil {
		return frontier.MergeResult{}, err //nolint:wrapcheck // validation errors are returned as-is
	}
	sorted := frontier.SortedReports(reports)
	result := frontier.MergeResult{Requested: len(sorted)}

	err := s.withTx(ctx, func(tx pgx.Tx) error {
		urls := make([]string, len(sorted))
		for i, r := range sorted {
			urls[i] = r.URL
		}

		existsQuery := fmt.Sprintf(`SELECT url FROM %s WHERE url = ANY($1)`, s.table)
		existing, err := collectURLs(ctx, tx, existsQuery, urls)
		if err != nil {
			return fmt.Errorf("find existing urls: %w", err)
		}

		// Existing rows that SKIP LOCKED passes over must never reach the
		// INSERT: its conflict check waits on an uncommitted writer.
		locked := map[string]struct{}{}
		if len(existing) > 0 {
			lockQuery := fmt.Sprintf(
				`SELECT url FROM %s WHERE url = ANY($1) ORDER BY url FOR UPDATE SKIP LOCKED`, s.table)
			locked, err = collectURLs(ctx, tx, lockQuery, urls)
			if err != nil {
				return fmt.Errorf("lock existing urls: %w", err)
			}
		}

		var fresh, held []frontier.FoundURL
		for _, r := range sorted {
			if _, ok := locked[r.URL]; ok {
				held = append(held, r)
			} else if _, ok := existing[r.URL]; !ok {
				fresh = append(fresh, r)
			}
		}

		if len(fresh) > 0 {
			insertQuery := fmt.Sprintf(`
INSERT INTO %s (url, status, user_id_hash, score, updated)
SELECT * FROM %s
ON CONFLICT (url) DO NOTHING
RETURNING url`, s.table, unnestReports)
			inserted, err := collectURLs(ctx, tx, insertQuery, toColumns(fresh).args()...)
			if err != nil {
				return fmt.Errorf("insert new urls: %w", err)
			}
			result.Inserted = len(inserted)
		}

		if len(held) > 0 {
			updateQuery := fmt.Sprintf(`
UPDATE %[1]s AS u SET
	status = GREATEST(u.status, v.status),
	score = u.score + v.score,
	user_id_hash = CASE WHEN u.status > v.status THEN u.user_id_hash ELSE v.user_id_hash END,
	updated = CASE WHEN u.status > v.status THEN u.updated ELSE v.updated END
FROM %[2]s AS v(url, status, user_id_hash, score, updated)
WHERE u.url = v.url`, s.table, unnestReports)
			tag, err := tx.Exec(ctx, updateQuery, toColumns(held).args()...)
			if err != nil {
				return fmt.Errorf("merge existing urls: %w", err)
			}
			result.Locked = int(tag.RowsAffected())
		}
		return nil
	})
	if err != nil {
		return frontier.MergeResult{}, err
	}

	result.Skipped = result.Requested - result.Applied()
	if result.Skipped > 0 {
		s.logger.Warn("merge skipped rows locked by concurrent callers",
			zap.Int("requested", result.Requested),
			zap.Int("applied", result.Applied()),
			zap.Int("new", result.Inserted),
		)
	}
	return result, nil
}

// GetNewBatchForUser leases up to the configured batch size of NEW or expired
// ASSIGNED URLs to userIDHash, highest score first.
func (s *URLStore) GetNewBatchForUser(ctx context.Context, userIDHash string) ([]string, error) {
	if err := frontier.ValidateRequester(userIDHash); err != nil {
		return nil, err //nolint:wrapcheck // validation errors are returned as-is
	}
	now := s.clock.Now().UTC()
	query := fmt.Sprintf(`
WITH picked AS (
	SELECT url FROM %[1]s
	WHERE status = $1 OR (status = $2 AND updated <= $3)
	ORDER BY score DESC
	LIMIT $4
	FOR UPDATE SKIP LOCKED
)
UPDATE %[1]s AS u
SET status = $2, user_id_hash = $5, updated = $6
FROM picked
WHERE u.url = picked.url
RETURNING u.url, u.score`, s.table)

	type leased struct {
		url   string
		score float64
	}
	var batch []leased
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query,
			int32(frontier.StatusNew.Rank()),
			int32(frontier.StatusAssigned.Rank()),
			s.lease.Cutoff(now),
			s.lease.BatchSize,
			userIDHash,
			now,
		)
		if err != nil {
			return fmt.Errorf("lease urls: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var l leased
			if err := rows.Scan(&l.url, &l.score); err != nil {
				return fmt.Errorf("scan leased url: %w", err)
			}
			batch = append(batch, l)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("lease urls: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// RETURNING does not preserve the CTE ordering.
	sort.Slice(batch, func(i, j int) bool {
		if batch[i].score != batch[j].score {
			return batch[i].score > batch[j].score
		}
		return batch[i].url < batch[j].url
	})
	urls := make([]string, len(batch))
	for i, l := range batch {
		urls[i] = l.url
	}
	return urls, nil
}

// GetURLScores reads scores in chunks (frontier.ScoreChunkSize by default) inside one
// read transaction. Unknown URLs are absent from the result.
func (s *URLStore) GetURLScores(ctx context.Context, urls []string) (map[string]float64, error) {
	scores := make(map[string]float64)
	if len(urls) == 0 {
		return scores, nil
	}
	query := fmt.Sprintf(`SELECT url, score FROM %s WHERE url = ANY($1)`, s.table)
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		for _, chunk := range frontier.Chunk(urls, s.chunk) {
			if err := readScores(ctx, tx, query, chunk, scores); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return scores, nil
}

func readScores(ctx context.Context, tx pgx.Tx, query string, chunk []string, into map[string]float64) error {
	rows, err := tx.Query(ctx, query, chunk)
	if err != nil {
		return fmt.Errorf("query scores: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			url   string
			score float64
		)
		if err := rows.Scan(&url, &score); err != nil {
			return fmt.Errorf("scan score: %w", err)
		}
		into[url] = score
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("query scores: %w", err)
	}
	return nil
}

// GetRecord loads the record for url.
func (s *URLStore) GetRecord(ctx context.Context, url string) (frontier.URLRecord, error) {
	query := fmt.Sprintf(
		`SELECT url, status, user_id_hash, score, updated FROM %s WHERE url = $1`, s.table)
	var rec frontier.URLRecord
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var rank int32
		err := tx.QueryRow(ctx, query, url).Scan(&rec.URL, &rank, &rec.UserIDHash, &rec.Score, &rec.Updated)
		if errors.Is(err, pgx.ErrNoRows) {
			return frontier.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get record: %w", err)
		}
		status, err := frontier.StatusFromRank(int(rank))
		if err != nil {
			return fmt.Errorf("get record %s: %w", url, err)
		}
		rec.Status = status
		rec.Updated = rec.Updated.UTC()
		return nil
	})
	if err != nil {
		return frontier.URLRecord{}, err
	}
	return rec, nil
}

// Stats counts rows per status.
func (s *URLStore) Stats(ctx context.Context) (frontier.Stats, error) {
	query := fmt.Sprintf(`SELECT status, count(*) FROM %s GROUP BY status`, s.table)
	stats := frontier.NewStats()
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query)
		if err != nil {
			return fmt.Errorf("count statuses: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				rank  int32
				count int64
			)
			if err := rows.Scan(&rank, &count); err != nil {
				return fmt.Errorf("scan status count: %w", err)
			}
			status, err := frontier.StatusFromRank(int(rank))
			if err != nil {
				return fmt.Errorf("count statuses: %w", err)
			}
			stats.Add(status, count)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("count statuses: %w", err)
		}
		return nil
	})
	if err != nil {
		return frontier.Stats{}, err
	}
	return stats, nil
}

func collectURLs(ctx context.Context, tx pgx.Tx, query string, args ...any) (map[string]struct{}, error) {
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with the statement's purpose
	}
	urls, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with the statement's purpose
	}
	set := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		set[u] = struct{}{}
	}
	return set, nil
}
