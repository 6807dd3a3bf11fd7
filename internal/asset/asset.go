package asset

import (
	"time"

	"stockstudio/internal/meta"
)

// Status represents the generation lifecycle of an asset.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// File is an admitted input file: a named binary blob with a declared MIME
// type, as produced by a multipart upload or a URL fetch.
type File struct {
	Name     string
	MimeType string
	Data     []byte
}

// Asset is one uploaded image and its derived processing state. The raw
// content is immutable after admission; everything else is mutated only by
// the Store, keyed by ID.
type Asset struct {
	ID         string
	Name       string
	MimeType   string
	Data       []byte
	Status     Status
	Metadata   *meta.Record
	Error      string
	UploadedAt time.Time

	// attempt is the latest dispatched generation attempt token. A result
	// carrying an older token is stale and must be discarded.
	attempt uint64

	preview     *previewFile
	previewPath string
}

// PreviewPath returns the path of the preview spool file, or "" if the
// preview has been released.
func (a *Asset) PreviewPath() string {
	if a.preview != nil {
		return a.preview.path
	}
	return a.previewPath
}

// snapshot returns a copy of the asset safe to hand out of the store.
// The raw data slice is shared (it is never mutated); the metadata record
// is cloned and the preview handle is flattened to its path so nothing
// outside the store touches live state.
func (a *Asset) snapshot() Asset {
	out := *a
	out.Metadata = a.Metadata.Clone()
	out.preview = nil
	if a.preview != nil {
		out.previewPath = a.preview.path
	}
	return out
}
