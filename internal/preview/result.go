package preview

// Status is the outcome of processing one content item.
type Status string

const (
	StatusDone        Status = "done"
	StatusError       Status = "error"
	StatusUnsupported Status = "unsupported"
)

// Result is built exactly once per job by whichever processor completes it.
// Thumbnail, Image and PDF are local paths until the workflow publishes them,
// after which they hold storage URLs.
type Result struct {
	Status    Status    `json:"status"`
	Thumbnail string    `json:"thumbnail,omitempty"`
	Image     string    `json:"image,omitempty"`
	PDF       string    `json:"pdf,omitempty"`
	Metadata  *Metadata `json:"metadata"`
}

// NewResult creates a result. A nil metadata set is replaced with an empty one.
func NewResult(status Status, thumbnail, image, pdf string, metadata *Metadata) *Result {
	if metadata == nil {
		metadata = NewMetadata()
	}
	return &Result{
		Status:    status,
		Thumbnail: thumbnail,
		Image:     image,
		PDF:       pdf,
		Metadata:  metadata,
	}
}

// Unsupported is the result for content no processor handles.
func Unsupported() *Result {
	return NewResult(StatusUnsupported, "", "", "", nil)
}
