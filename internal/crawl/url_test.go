package crawl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"trailing slash stripped", "https://x.com/a/", "https://x.com/a"},
		{"no trailing slash unchanged", "https://x.com/a", "https://x.com/a"},
		{"query ignored", "https://x.com/a?page=2", "https://x.com/a"},
		{"fragment ignored", "https://x.com/a#section", "https://x.com/a"},
		{"host lowercased", "https://X.COM/A", "https://x.com/A"},
		{"default https port removed", "https://x.com:443/a", "https://x.com/a"},
		{"default http port removed", "http://x.com:80/a", "http://x.com/a"},
		{"non-default port kept", "https://x.com:8443/a", "https://x.com:8443/a"},
		{"root forms collapse", "https://x.com/", "https://x.com"},
		{"malformed kept verbatim", "http://[::1]:namedport", "http://[::1]:namedport"},
		{"schemeless kept verbatim", "not a url at all", "not a url at all"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DedupKey(tc.raw))
		})
	}
}

func TestDedupKeyEquivalentForms(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DedupKey("https://x.com/a/"), DedupKey("https://x.com/a"))
	assert.NotEqual(t, DedupKey("https://x.com/a"), DedupKey("https://x.com/b"))
}

func TestDomain(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "example.com", Domain("https://Example.com:8080/path"))
	assert.Equal(t, "unknown", Domain("::::"))
	assert.Equal(t, "unknown", Domain("relative/path"))
}
