package crawl

import (
	"net/url"
	"strings"
)

// DedupKey computes the frontier deduplication key for a URL: lowercased
// scheme and host, default ports removed, trailing slash stripped, query and
// fragment ignored. Malformed URLs fall back to their literal string, so they
// only ever dedup against byte-identical repeats.
func DedupKey(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	if scheme == "http" {
		host = strings.TrimSuffix(host, ":80")
	}
	if scheme == "https" {
		host = strings.TrimSuffix(host, ":443")
	}

	path := strings.TrimSuffix(u.Path, "/")

	return scheme + "://" + host + path
}

// Domain extracts the lowercased hostname used for per-domain politeness
// state. Unparseable URLs share a single "unknown" bucket.
func Domain(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
