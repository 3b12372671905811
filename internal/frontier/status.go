package frontier

import (
	"fmt"
	"strings"
)

// URLStatus is the crawl progress of a URL. Statuses are totally ordered by
// rank and a persisted status only ever moves forward.
type URLStatus int

// Known statuses. The numeric rank is what gets persisted.
const (
	// StatusNew means at least one client has reported the URL.
	StatusNew URLStatus = 0
	// StatusAssigned means the URL is leased to a client for crawling.
	StatusAssigned URLStatus = 10
	// StatusErrorTimeout means the fetch timed out.
	StatusErrorTimeout URLStatus = 20
	// StatusError404 means the page returned a 404.
	StatusError404 URLStatus = 30
	// StatusErrorOther means any other fetch error.
	StatusErrorOther URLStatus = 40
	// StatusErrorRobotsDenied means robots.txt disallows the page.
	StatusErrorRobotsDenied URLStatus = 50
	// StatusCrawled means at least one client has crawled the URL.
	StatusCrawled URLStatus = 100
)

var statusNames = map[URLStatus]string{
	StatusNew:               "NEW",
	StatusAssigned:          "ASSIGNED",
	StatusErrorTimeout:      "ERROR_TIMEOUT",
	StatusError404:          "ERROR_404",
	StatusErrorOther:        "ERROR_OTHER",
	StatusErrorRobotsDenied: "ERROR_ROBOTS_DENIED",
	StatusCrawled:           "CRAWLED",
}

// AllStatuses lists every status in ascending rank order.
func AllStatuses() []URLStatus {
	return []URLStatus{
		StatusNew,
		StatusAssigned,
		StatusErrorTimeout,
		StatusError404,
		StatusErrorOther,
		StatusErrorRobotsDenied,
		StatusCrawled,
	}
}

// StatusFromRank converts a persisted rank back into a URLStatus.
func StatusFromRank(rank int) (URLStatus, error) {
	s := URLStatus(rank)
	if !s.Valid() {
		return StatusNew, fmt.Errorf("unknown url status rank %d", rank)
	}
	return s, nil
}

// ParseStatus converts a status name (case-insensitive) into a URLStatus.
func ParseStatus(name string) (URLStatus, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for s, n := range statusNames {
		if n == upper {
			return s, nil
		}
	}
	return StatusNew, fmt.Errorf("unknown url status %q", name)
}

// Rank returns the persisted integer value.
func (s URLStatus) Rank() int {
	return int(s)
}

// Valid reports whether s is one of the known statuses.
func (s URLStatus) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

func (s URLStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("URLStatus(%d)", int(s))
}

// Compare returns -1, 0 or 1 when s ranks below, equal to or above other.
func (s URLStatus) Compare(other URLStatus) int {
	switch {
	case s < other:
		return -1
	case s > other:
		return 1
	default:
		return 0
	}
}

// Less reports whether s ranks strictly below other.
func (s URLStatus) Less(other URLStatus) bool {
	return s.Compare(other) < 0
}

// MaxStatus is the only transition rule: whatever is merged, the persisted
// status is the higher of the two.
func MaxStatus(current, incoming URLStatus) URLStatus {
	if current.Compare(incoming) >= 0 {
		return current
	}
	return incoming
}

// MarshalText encodes the status by name so it can be used in JSON bodies and map keys.
func (s URLStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("unknown url status rank %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *URLStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
