package ingest

import "strings"

// domainBlocklist matches hosts against exact names and suffix wildcards
// ("*.example.com" or ".example.com").
type domainBlocklist struct {
	exact    map[string]struct{}
	suffixes []string
}

func newDomainBlocklist(patterns []string) *domainBlocklist {
	b := &domainBlocklist{exact: make(map[string]struct{})}
	for _, raw := range patterns {
		value := strings.TrimSpace(strings.ToLower(raw))
		switch {
		case value == "":
		case strings.HasPrefix(value, "*."):
			b.addSuffix(strings.TrimPrefix(value, "*."))
		case strings.HasPrefix(value, "."):
			b.addSuffix(strings.TrimPrefix(value, "."))
		default:
			b.exact[value] = struct{}{}
		}
	}
	if len(b.exact) == 0 && len(b.suffixes) == 0 {
		return nil
	}
	return b
}

func (b *domainBlocklist) addSuffix(suffix string) {
	if suffix == "" {
		return
	}
	for _, existing := range b.suffixes {
		if existing == suffix {
			return
		}
	}
	b.suffixes = append(b.suffixes, suffix)
}

// Blocked reports whether host matches an entry. A nil list blocks nothing.
func (b *domainBlocklist) Blocked(host string) bool {
	if b == nil {
		return false
	}
	host = strings.TrimSpace(strings.ToLower(host))
	if host == "" {
		return false
	}
	if _, ok := b.exact[host]; ok {
		return true
	}
	for _, suffix := range b.suffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}
