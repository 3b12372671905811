package ingest

import (
	"net/url"
	"strings"

	"github.com/JakeFAU/url-frontier/internal/frontier"
)

// Link scores.
const (
	CrossDomainScore    = 1.0
	SameDomainScore     = 0.01
	UntrustedMultiplier = 0.001
)

// Scorer assigns priority contributions to discovered links.
type Scorer struct {
	trusted []string
	blocked *domainBlocklist
}

// NewScorer builds a Scorer. An empty trusted list trusts every source.
func NewScorer(trustedDomains []string) Scorer {
	trusted := make([]string, 0, len(trustedDomains))
	for _, d := range trustedDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			trusted = append(trusted, d)
		}
	}
	return Scorer{trusted: trusted}
}

// WithBlocklist returns a copy of s that drops links to hosts matching
// patterns. Crawled items on those hosts are still recorded.
func (s Scorer) WithBlocklist(patterns []string) Scorer {
	s.blocked = newDomainBlocklist(patterns)
	return s
}

// Blocked reports whether links to host are ignored.
func (s Scorer) Blocked(host string) bool {
	return s.blocked.Blocked(host)
}

// Trusted reports whether host is a trusted domain or one of its subdomains.
func (s Scorer) Trusted(host string) bool {
	if len(s.trusted) == 0 {
		return true
	}
	host = strings.ToLower(host)
	for _, d := range s.trusted {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// LinkScore is the contribution of a link from source to target.
func (s Scorer) LinkScore(source, target *url.URL) float64 {
	score := CrossDomainScore
	if strings.EqualFold(source.Hostname(), target.Hostname()) {
		score = SameDomainScore
	}
	if !s.Trusted(source.Hostname()) {
		score *= UntrustedMultiplier
	}
	return score
}

// ErrorStatus maps a failed crawl to its terminal status.
func ErrorStatus(item Item) frontier.URLStatus {
	switch {
	case item.Status != nil && *item.Status == 404:
		return frontier.StatusError404
	case item.Error == nil:
		return frontier.StatusErrorOther
	case item.Error.Name == "AbortError":
		return frontier.StatusErrorTimeout
	case item.Error.Name == "RobotsDenied":
		return frontier.StatusErrorRobotsDenied
	default:
		return frontier.StatusErrorOther
	}
}

func parseHTTPURL(raw string) (*url.URL, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return nil, false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	return u, true
}
