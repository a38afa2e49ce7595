package preview

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataRejectsDuplicateKeys(t *testing.T) {
	m := NewMetadata()
	require.NoError(t, m.Set("image_width", 1280))

	err := m.Set("image_width", 640)
	assert.ErrorIs(t, err, ErrDuplicateMetadataKey)

	v, ok := m.Get("image_width")
	assert.True(t, ok)
	assert.Equal(t, 1280, v)
}

func TestMetadataPreservesOrder(t *testing.T) {
	m := NewMetadata()
	require.NoError(t, m.Set("httpEmbeddable", true))
	require.NoError(t, m.Set("httpsEmbeddable", false))
	require.NoError(t, m.Set("httpEmbedUrl", nil))
	require.NoError(t, m.Set("image_width", 1280))

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{"httpEmbeddable":true,"httpsEmbeddable":false,"httpEmbedUrl":null,"image_width":1280}`, string(data))

	var decoded Metadata
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, m.Keys(), decoded.Keys())
}

func TestMetadataMerge(t *testing.T) {
	a := NewMetadata()
	require.NoError(t, a.Set("image_width", 100))
	b := NewMetadata()
	require.NoError(t, b.Set("youtubeId", "abc"))

	require.NoError(t, a.Merge(b))
	assert.Equal(t, []string{"image_width", "youtubeId"}, a.Keys())
	assert.ErrorIs(t, a.Merge(b), ErrDuplicateMetadataKey)
}

func TestResultJSON(t *testing.T) {
	m := NewMetadata()
	require.NoError(t, m.Set("image_width", 800))
	r := NewResult(StatusDone, "/tmp/t.png", "/tmp/i.png", "", m)

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"done","thumbnail":"/tmp/t.png","image":"/tmp/i.png","metadata":{"image_width":800}}`, string(data))

	assert.Equal(t, 0, Unsupported().Metadata.Len())
}
