package domain

import (
	"net/url"
	"strings"
)

// ParseDomainName splits a user supplied domain into its second-level label and TLD.
// It accepts bare names ("example.com"), URLs ("https://example.com/path") and
// host:port values. For multi-label hosts the TLD is the last label and the name is
// the label before it ("app.example.com" -> "example", "com").
func ParseDomainName(value string) (name string, tld string) {
	host := NormalizeDomainValue(value)
	if host == "" {
		return "", ""
	}

	lastDot := strings.LastIndex(host, ".")
	if lastDot == -1 {
		return host, ""
	}

	tld = host[lastDot+1:]
	rest := host[:lastDot]
	if idx := strings.LastIndex(rest, "."); idx != -1 {
		rest = rest[idx+1:]
	}
	return rest, tld
}

// NormalizeDomainValue lower-cases a domain and strips scheme, path, port and the
// trailing root dot.
func NormalizeDomainValue(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return ""
	}

	if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
		if u, err := url.Parse(value); err == nil {
			value = u.Hostname()
		}
	}

	// host:port or host/path without a scheme
	if idx := strings.IndexAny(value, "/?#"); idx != -1 {
		value = value[:idx]
	}
	if idx := strings.LastIndex(value, ":"); idx != -1 {
		value = value[:idx]
	}

	return strings.TrimSuffix(value, ".")
}
