package asset

import "fmt"

// ViewMode selects which top-level screen a client is on. It is a closed
// enum; anything else is rejected at the boundary.
type ViewMode string

const (
	ViewUpload   ViewMode = "upload"
	ViewEditor   ViewMode = "editor"
	ViewHistory  ViewMode = "history"
	ViewSettings ViewMode = "settings"
)

// ParseViewMode validates a view mode received from a client.
func ParseViewMode(s string) (ViewMode, error) {
	switch v := ViewMode(s); v {
	case ViewUpload, ViewEditor, ViewHistory, ViewSettings:
		return v, nil
	}
	return "", fmt.Errorf("unknown view mode: %q", s)
}
