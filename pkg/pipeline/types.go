package pipeline

import "encoding/json"

// ProcessRequest represents a request to preview one content item.
// Exactly one of ContentID, SourceURI or Link identifies the source.
type ProcessRequest struct {
	ContentID string            `json:"content_id,omitempty"` // simple-content ID
	SourceURI string            `json:"source_uri,omitempty"` // http(s)://, s3://, file:// or content://
	Link      string            `json:"link,omitempty"`       // web page, YouTube or Vimeo URL
	MimeType  string            `json:"mime_type,omitempty"`  // overrides the detected type
	Job       string            `json:"job"`                  // preview
	Versions  map[string]int    `json:"versions,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Force     bool              `json:"force,omitempty"` // regenerate existing previews
}

// SourceKey identifies the request's source for deduplication.
func (r ProcessRequest) SourceKey() string {
	switch {
	case r.ContentID != "":
		return r.ContentID
	case r.SourceURI != "":
		return r.SourceURI
	default:
		return r.Link
	}
}

// ProcessResponse represents the response from triggering processing
type ProcessResponse struct {
	RunID           string   `json:"run_id"`
	DedupeSeenCount int      `json:"dedupe_seen_count"`
	Skipped         bool     `json:"skipped,omitempty"`
	Preview         *Preview `json:"preview,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// Preview is a published preview. References are storage URIs.
type Preview struct {
	Status    string          `json:"status"`
	Thumbnail string          `json:"thumbnail,omitempty"`
	Image     string          `json:"image,omitempty"`
	PDF       string          `json:"pdf,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	Error     *PreviewError   `json:"error,omitempty"`
}

// PreviewError is the {code, msg} pair reported for failed jobs.
type PreviewError struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
}

// RunStatus reports an asynchronous run.
type RunStatus struct {
	RunID     string   `json:"run_id"`
	State     string   `json:"state"` // pending, enqueued, success, error, cancelled
	CreatedAt int64    `json:"created_at,omitempty"`
	UpdatedAt int64    `json:"updated_at,omitempty"`
	Preview   *Preview `json:"preview,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// JobType constants
const (
	JobPreview = "preview"
)

// DerivedType constants (match simple-content conventions)
const (
	DerivedTypeThumbnail      = "thumbnail"
	DerivedTypeImage          = "image"
	DerivedTypePDF            = "pdf"
	DerivedTypeConvertedVideo = "converted_video"
)

// Preview status values
const (
	StatusDone        = "done"
	StatusError       = "error"
	StatusUnsupported = "unsupported"
)
