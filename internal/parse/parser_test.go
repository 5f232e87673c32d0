package parse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seedline/crawld/internal/crawl"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
  <title>  Example Page  </title>
  <meta name="description" content="a test page">
  <meta property="og:type" content="article">
</head>
<body>
  <h1>Heading</h1>
  <p>Some   body
  text.</p>
  <a href="/relative">rel</a>
  <a href="https://other.example/abs">abs</a>
  <a href="https://other.example/abs">dup</a>
  <a href="mailto:x@example.com">mail</a>
  <a href="javascript:void(0)">js</a>
  <a href="#frag">frag</a>
</body>
</html>`

func result(body, contentType string) crawl.FetchResult {
	return crawl.FetchResult{
		URL:         "https://site.example/dir/page",
		StatusCode:  200,
		Body:        []byte(body),
		ContentType: contentType,
	}
}

func TestParseExtractsTitleLinksTextMeta(t *testing.T) {
	t.Parallel()

	p := New(zap.NewNop())
	out, err := p.Parse(context.Background(), result(samplePage, "text/html; charset=utf-8"))
	require.NoError(t, err)

	assert.Equal(t, "Example Page", out.Title)
	assert.Equal(t, []string{
		"https://site.example/relative",
		"https://other.example/abs",
	}, out.Links)
	assert.Contains(t, out.Text, "Some body text.")
	assert.Equal(t, "a test page", out.Meta["description"])
	assert.Equal(t, "article", out.Meta["og:type"])
}

func TestParseRejectsEmptyBody(t *testing.T) {
	t.Parallel()

	p := New(nil)
	_, err := p.Parse(context.Background(), result("", "text/html"))
	var verr *crawl.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "empty body")
}

func TestParseRejectsNonHTMLContentType(t *testing.T) {
	t.Parallel()

	p := New(nil)
	_, err := p.Parse(context.Background(), result(`{"a":1}`, "application/json"))
	var verr *crawl.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestParseAcceptsMissingContentType(t *testing.T) {
	t.Parallel()

	p := New(nil)
	out, err := p.Parse(context.Background(), result(samplePage, ""))
	require.NoError(t, err)
	assert.Equal(t, "Example Page", out.Title)
}

func TestParseHonorsCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New(nil)
	_, err := p.Parse(ctx, result(samplePage, "text/html"))
	assert.ErrorIs(t, err, context.Canceled)
}
