package embed

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// FindEmbedURL searches an HTML body for an alternate embed URL starting
// with prefix. A meta itemprop="embedURL" tag wins; otherwise the first
// JSON-LD object exposing a matching embedUrl is used.
func FindEmbedURL(body []byte, prefix string) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	var found string
	doc.Find(`meta[itemprop="embedURL"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		content, ok := s.Attr("content")
		if ok && strings.HasPrefix(content, prefix) {
			found = content
			return false
		}
		return true
	})
	if found != "" {
		return found
	}

	for _, obj := range jsonLDObjects(doc) {
		if u := obj.EmbedURL; strings.HasPrefix(u, prefix) && u != "" {
			return u
		}
	}
	return ""
}

// VideoObject is the subset of schema.org VideoObject read from JSON-LD.
type VideoObject struct {
	EmbedURL  string         `json:"embedUrl"`
	Thumbnail VideoThumbnail `json:"thumbnail"`
}

// VideoThumbnail is the ImageObject under "thumbnail". Other shapes, such
// as a bare URL string, decode as empty.
type VideoThumbnail struct {
	URL   string          `json:"url"`
	Width json.RawMessage `json:"width"`
}

func (t *VideoThumbnail) UnmarshalJSON(data []byte) error {
	type plain VideoThumbnail
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		*t = VideoThumbnail{}
		return nil
	}
	*t = VideoThumbnail(v)
	return nil
}

// ThumbnailWidth returns the declared thumbnail width, accepting numbers
// and numeric strings.
func (v VideoObject) ThumbnailWidth() int {
	raw := strings.Trim(string(v.Thumbnail.Width), `"`)
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 {
		return 0
	}
	return int(f)
}

// StructuredVideo is the first non-empty value of each field across every
// JSON-LD object on a page.
type StructuredVideo struct {
	EmbedURL       string
	ThumbnailURL   string
	ThumbnailWidth int
}

// ParseStructuredVideo scans JSON-LD blocks in body.
func ParseStructuredVideo(body []byte) StructuredVideo {
	var sv StructuredVideo
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return sv
	}
	for _, obj := range jsonLDObjects(doc) {
		if sv.EmbedURL == "" {
			sv.EmbedURL = obj.EmbedURL
		}
		if sv.ThumbnailURL == "" {
			sv.ThumbnailURL = obj.Thumbnail.URL
		}
		if sv.ThumbnailWidth == 0 {
			sv.ThumbnailWidth = obj.ThumbnailWidth()
		}
	}
	return sv
}

// jsonLDObjects decodes every ld+json script. Blocks may hold a single
// object or an array; elements that do not decode are skipped on their own.
func jsonLDObjects(doc *goquery.Document) []VideoObject {
	var out []VideoObject
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		elems := []json.RawMessage{json.RawMessage(text)}
		if strings.HasPrefix(text, "[") {
			elems = nil
			if err := json.Unmarshal([]byte(text), &elems); err != nil {
				return
			}
		}
		for _, raw := range elems {
			var obj VideoObject
			if err := json.Unmarshal(raw, &obj); err == nil {
				out = append(out, obj)
			}
		}
	})
	return out
}
