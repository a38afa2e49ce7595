package preview

import (
	"net/url"
	"regexp"
	"strings"
)

// Job identifies one content item to preview. It is read-only inside the
// dispatcher; Directory is owned by the job and cleaned by the caller.
type Job struct {
	ID         string
	Link       string // set for link jobs
	SourcePath string // set for file jobs, inside Directory
	MimeType   string
	Directory  string
}

// Kind selects the processor for a job.
type Kind string

const (
	KindYouTube     Kind = "youtube"
	KindVimeo       Kind = "vimeo"
	KindLink        Kind = "link"
	KindImage       Kind = "image"
	KindVideo       Kind = "video"
	KindOffice      Kind = "office"
	KindPDF         Kind = "pdf"
	KindUnsupported Kind = "unsupported"
)

var (
	youtubeFullRegex  = regexp.MustCompile(`^https?://(www\.|m\.)?youtube\.com/watch`)
	youtubeShortRegex = regexp.MustCompile(`^https?://youtu\.be/(.+)`)
	vimeoRegex        = regexp.MustCompile(`^https?://(www\.)?vimeo\.com/(\d+)$`)
)

var officeMimeTypes = map[string]bool{
	"application/msword":            true,
	"application/rtf":               true,
	"application/vnd.ms-excel":      true,
	"application/vnd.ms-powerpoint": true,
	"application/vnd.oasis.opendocument.presentation":                           true,
	"application/vnd.oasis.opendocument.spreadsheet":                            true,
	"application/vnd.oasis.opendocument.text":                                   true,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": true,
	"application/vnd.openxmlformats-officedocument.presentationml.slideshow":    true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   true,
	"text/rtf": true,
}

// KindOf computes the job's kind once, at dispatch entry.
func KindOf(job Job) Kind {
	if job.Link != "" {
		switch {
		case YouTubeID(job.Link) != "":
			return KindYouTube
		case vimeoRegex.MatchString(job.Link):
			return KindVimeo
		default:
			return KindLink
		}
	}

	mimeType := strings.ToLower(strings.TrimSpace(job.MimeType))
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return KindImage
	case strings.HasPrefix(mimeType, "video/"):
		return KindVideo
	case mimeType == "application/pdf":
		return KindPDF
	case officeMimeTypes[mimeType]:
		return KindOffice
	default:
		return KindUnsupported
	}
}

// YouTubeID extracts the video identifier from a watch URL (?v=) or a
// youtu.be short link. It returns "" for anything else.
func YouTubeID(link string) string {
	switch {
	case youtubeFullRegex.MatchString(link):
		u, err := url.Parse(link)
		if err != nil {
			return ""
		}
		return u.Query().Get("v")
	case youtubeShortRegex.MatchString(link):
		u, err := url.Parse(link)
		if err != nil {
			return ""
		}
		return strings.TrimPrefix(u.Path, "/")
	}
	return ""
}
