package frontier

import (
	"math"
	"sort"
)

// ValidateReports enforces the merge contract. Any violation fails the whole
// call before a transaction is opened.
func ValidateReports(reports []FoundURL) error {
	seen := make(map[string]struct{}, len(reports))
	for _, r := range reports {
		if r.URL == "" {
			return &ValidationError{Reason: "empty url", Err: ErrInvalidReport}
		}
		if _, dup := seen[r.URL]; dup {
			return &ValidationError{URL: r.URL, Reason: "reported more than once", Err: ErrDuplicateURL}
		}
		seen[r.URL] = struct{}{}
		if math.IsNaN(r.Score) || math.IsInf(r.Score, 0) || r.Score < 0 {
			return &ValidationError{URL: r.URL, Reason: "score must be a finite non-negative number", Err: ErrInvalidReport}
		}
		if !r.Status.Valid() {
			return &ValidationError{URL: r.URL, Reason: "unknown status " + r.Status.String(), Err: ErrInvalidReport}
		}
		if r.Timestamp.IsZero() {
			return &ValidationError{URL: r.URL, Reason: "missing timestamp", Err: ErrInvalidReport}
		}
	}
	return nil
}

// SortedReports returns a copy of reports ordered by URL. Every caller that
// touches several rows acquires them in this order.
func SortedReports(reports []FoundURL) []FoundURL {
	out := append([]FoundURL(nil), reports...)
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}

// NewRecord builds the record created by the first report about a URL.
func NewRecord(r FoundURL) URLRecord {
	return URLRecord{
		URL:        r.URL,
		Status:     r.Status,
		UserIDHash: r.UserIDHash,
		Score:      r.Score,
		Updated:    r.Timestamp.UTC(),
	}
}

// MergeRecord folds an incoming report into an existing record. Attribution and
// timestamp stay with the existing record only when it ranks strictly higher;
// score always accumulates.
func MergeRecord(existing URLRecord, incoming FoundURL) URLRecord {
	merged := existing
	merged.Status = MaxStatus(existing.Status, incoming.Status)
	merged.Score = existing.Score + incoming.Score
	if existing.Status.Compare(incoming.Status) <= 0 {
		merged.UserIDHash = incoming.UserIDHash
		merged.Updated = incoming.Timestamp.UTC()
	}
	return merged
}
