package asset

import (
	"fmt"
	"os"
	"path/filepath"
)

// previewFile is a display-only copy of an asset's content, spooled to disk
// for the lifetime of the session. It is owned by its store entry and
// released when the entry is removed or the store is closed.
type previewFile struct {
	path string
}

// newPreviewFile writes data to a spool file under dir.
func newPreviewFile(dir, id string, data []byte) (*previewFile, error) {
	path := filepath.Join(dir, id)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write preview spool: %w", err)
	}
	return &previewFile{path: path}, nil
}

// release removes the spool file. Safe to call more than once.
func (p *previewFile) release() error {
	if p.path == "" {
		return nil
	}
	err := os.Remove(p.path)
	p.path = ""
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove preview spool: %w", err)
	}
	return nil
}
