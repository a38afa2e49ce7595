package preview

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		job      Job
		expected Kind
	}{
		{"youtube watch", Job{Link: "https://www.youtube.com/watch?v=dQw4w9WgXcQ"}, KindYouTube},
		{"youtube mobile", Job{Link: "http://m.youtube.com/watch?v=abc"}, KindYouTube},
		{"youtube short", Job{Link: "https://youtu.be/dQw4w9WgXcQ"}, KindYouTube},
		{"youtube watch without id", Job{Link: "https://www.youtube.com/watch"}, KindLink},
		{"vimeo", Job{Link: "https://vimeo.com/123456"}, KindVimeo},
		{"vimeo www", Job{Link: "http://www.vimeo.com/42"}, KindVimeo},
		{"vimeo channel is a plain link", Job{Link: "https://vimeo.com/channels/staffpicks"}, KindLink},
		{"plain link", Job{Link: "https://example.com/page"}, KindLink},
		{"link wins over mime", Job{Link: "https://example.com", MimeType: "image/png"}, KindLink},
		{"png", Job{MimeType: "image/png"}, KindImage},
		{"svg", Job{MimeType: "image/svg+xml"}, KindImage},
		{"video", Job{MimeType: "video/quicktime"}, KindVideo},
		{"pdf", Job{MimeType: "application/pdf"}, KindPDF},
		{"docx", Job{MimeType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document"}, KindOffice},
		{"mixed case", Job{MimeType: " Application/MSWord "}, KindOffice},
		{"zip", Job{MimeType: "application/zip"}, KindUnsupported},
		{"empty", Job{}, KindUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, KindOf(tt.job))
		})
	}
}

func TestYouTubeID(t *testing.T) {
	assert.Equal(t, "dQw4w9WgXcQ", YouTubeID("https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42"))
	assert.Equal(t, "dQw4w9WgXcQ", YouTubeID("https://youtu.be/dQw4w9WgXcQ"))
	assert.Equal(t, "", YouTubeID("https://example.com/watch?v=dQw4w9WgXcQ"))
}
