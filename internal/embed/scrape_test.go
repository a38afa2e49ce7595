package embed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const vimeoPage = `<html><head>
<script type="application/ld+json">
[{"@type":"VideoObject","embedUrl":"https://player.vimeo.com/video/76979871",
  "thumbnail":{"@type":"ImageObject","url":"https://i.vimeocdn.com/video/452001751_640.jpg","width":640,"height":360}},
 {"@type":"BreadcrumbList","itemListElement":[]}]
</script>
</head><body></body></html>`

func TestParseStructuredVideo(t *testing.T) {
	sv := ParseStructuredVideo([]byte(vimeoPage))
	assert.Equal(t, "https://player.vimeo.com/video/76979871", sv.EmbedURL)
	assert.Equal(t, "https://i.vimeocdn.com/video/452001751_640.jpg", sv.ThumbnailURL)
	assert.Equal(t, 640, sv.ThumbnailWidth)
}

func TestParseStructuredVideoSkipsMalformedBlocks(t *testing.T) {
	page := `<script type="application/ld+json">{not json</script>
<script type="application/ld+json">{"thumbnail":{"url":"https://img.example/t.png","width":"320"}}</script>`
	sv := ParseStructuredVideo([]byte(page))
	assert.Empty(t, sv.EmbedURL)
	assert.Equal(t, "https://img.example/t.png", sv.ThumbnailURL)
	assert.Equal(t, 320, sv.ThumbnailWidth)
}

func TestParseStructuredVideoMixedArray(t *testing.T) {
	page := `<script type="application/ld+json">
[{"@type":"VideoObject","embedUrl":"https://player.vimeo.com/video/1","thumbnail":{"url":"https://i.vimeocdn.com/x.jpg"}},
 {"@type":"Person","thumbnail":"https://x/y.jpg"},
 {"@type":"Thing","embedUrl":42}]
</script>`
	sv := ParseStructuredVideo([]byte(page))
	assert.Equal(t, "https://player.vimeo.com/video/1", sv.EmbedURL)
	assert.Equal(t, "https://i.vimeocdn.com/x.jpg", sv.ThumbnailURL)
	assert.Equal(t, "https://player.vimeo.com/video/1", FindEmbedURL([]byte(page), "https:"))
}

func TestParseStructuredVideoStringThumbnailKeepsEmbedURL(t *testing.T) {
	page := `<script type="application/ld+json">
[{"@type":"ImageObject","thumbnail":"https://x/y.jpg"},
 {"@type":"VideoObject","embedUrl":"https://player.vimeo.com/video/2","thumbnail":"https://x/z.jpg"},
 {"thumbnail":{"url":"https://i.vimeocdn.com/2.jpg","width":"640"}}]
</script>`
	sv := ParseStructuredVideo([]byte(page))
	assert.Equal(t, "https://player.vimeo.com/video/2", sv.EmbedURL)
	assert.Equal(t, "https://i.vimeocdn.com/2.jpg", sv.ThumbnailURL)
	assert.Equal(t, 640, sv.ThumbnailWidth)
}

func TestFindEmbedURLFallsBackToJSONLD(t *testing.T) {
	assert.Equal(t, "https://player.vimeo.com/video/76979871", FindEmbedURL([]byte(vimeoPage), "https:"))
	assert.Empty(t, FindEmbedURL([]byte(vimeoPage), "http:"))
}

func TestFindEmbedURLNothing(t *testing.T) {
	assert.Empty(t, FindEmbedURL([]byte("<html><body>plain</body></html>"), "https:"))
	assert.Empty(t, FindEmbedURL(nil, "https:"))
}

func TestParsePolicy(t *testing.T) {
	policy, err := ParsePolicy([]byte(`
disallow_embed:
  - '^https?://(www\.)?example\.com/private'
`))
	require.NoError(t, err)
	require.Len(t, policy.DisallowEmbed, 1)
	assert.True(t, matchAny(policy.DisallowEmbed, "https://example.com/private/1"))
	assert.True(t, matchAny(policy.CheckEmbedURL, "https://docs.google.com/x"), "default allow-list kept")

	_, err = ParsePolicy([]byte("check_embed_url: ['(']"))
	assert.Error(t, err)
}
