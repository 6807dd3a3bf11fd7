package asset

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"stockstudio/internal/meta"
)

// ErrNotFound is returned when an asset ID is not present in the store.
var ErrNotFound = errors.New("asset not found")

// SessionState is the navigation state of the session: the active view and
// the currently selected asset. SelectedID is either empty or the ID of
// an asset still present in the store.
type SessionState struct {
	View       ViewMode
	SelectedID string
}

// StatusCounts aggregates assets per lifecycle status.
type StatusCounts struct {
	Total      int
	Idle       int
	Processing int
	Completed  int
	Error      int
}

// Store owns the session's asset collection and all mutation of asset
// state. The collection is ordered newest first; new batches are prepended
// whole. All state transitions are keyed by asset ID, never by position,
// so concurrent completions of unrelated assets cannot corrupt each other.
type Store struct {
	mu       sync.RWMutex
	assets   []*Asset
	byID     map[string]*Asset
	session  SessionState
	spoolDir string
	ownSpool bool
	closed   bool
}

// NewStore creates a store. If spoolDir is empty a per-session temporary
// directory is created and removed again on Close.
func NewStore(spoolDir string) (*Store, error) {
	ownSpool := false
	if spoolDir == "" {
		dir, err := os.MkdirTemp("", "stockstudio-spool-")
		if err != nil {
			return nil, fmt.Errorf("failed to create spool dir: %w", err)
		}
		spoolDir = dir
		ownSpool = true
	} else if err := os.MkdirAll(spoolDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create spool dir: %w", err)
	}

	return &Store{
		byID:     make(map[string]*Asset),
		session:  SessionState{View: ViewUpload},
		spoolDir: spoolDir,
		ownSpool: ownSpool,
	}, nil
}

// AddBatch admits a batch of files: each gets a fresh ID, a preview spool
// file and idle status, and the whole batch is prepended to the collection
// preserving input order. The first asset of the batch becomes the
// selection and the view switches to the editor. An empty batch is a no-op.
func (s *Store) AddBatch(files []File) ([]Asset, error) {
	if len(files) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	batch := make([]*Asset, 0, len(files))
	for _, f := range files {
		id := uuid.NewString()
		preview, err := newPreviewFile(s.spoolDir, id, f.Data)
		if err != nil {
			// Roll back previews already spooled for this batch
			for _, a := range batch {
				a.preview.release()
			}
			return nil, err
		}
		batch = append(batch, &Asset{
			ID:         id,
			Name:       f.Name,
			MimeType:   f.MimeType,
			Data:       f.Data,
			Status:     StatusIdle,
			UploadedAt: now,
			preview:    preview,
		})
	}

	s.assets = append(batch, s.assets...)
	for _, a := range batch {
		s.byID[a.ID] = a
	}
	s.session.SelectedID = batch[0].ID
	s.session.View = ViewEditor

	out := make([]Asset, len(batch))
	for i, a := range batch {
		out[i] = a.snapshot()
	}
	return out, nil
}

// Get returns a snapshot of one asset.
func (s *Store) Get(id string) (Asset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.byID[id]
	if !ok {
		return Asset{}, false
	}
	return a.snapshot(), true
}

// List returns snapshots of all assets, newest first, optionally filtered
// by a case-insensitive substring match on filename or generated title.
func (s *Store) List(query string) []Asset {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query = strings.ToLower(query)
	out := make([]Asset, 0, len(s.assets))
	for _, a := range s.assets {
		if query != "" && !matchesQuery(a, query) {
			continue
		}
		out = append(out, a.snapshot())
	}
	return out
}

func matchesQuery(a *Asset, query string) bool {
	if strings.Contains(strings.ToLower(a.Name), query) {
		return true
	}
	return a.Metadata != nil && strings.Contains(strings.ToLower(a.Metadata.Title), query)
}

// BeginAttempt marks the asset as processing and returns a fresh attempt
// token. Prior metadata and error detail are left untouched until the
// attempt resolves, so a regenerate does not blank current metadata while
// in flight. Each call supersedes any earlier in-flight attempt for the
// same asset.
func (s *Store) BeginAttempt(id string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return 0, ErrNotFound
	}
	a.attempt++
	a.Status = StatusProcessing
	return a.attempt, nil
}

// CompleteAttempt resolves an attempt successfully: metadata is replaced
// with the new record and any prior error detail is cleared. If the token
// has been superseded by a later BeginAttempt the result is discarded and
// false is returned.
func (s *Store) CompleteAttempt(id string, token uint64, record *meta.Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return false, ErrNotFound
	}
	if token != a.attempt {
		log.Debug().Str("assetId", id).Uint64("token", token).Uint64("latest", a.attempt).
			Msg("discarding stale generation result")
		return false, nil
	}
	a.Metadata = record.Clone()
	a.Error = ""
	a.Status = StatusCompleted
	return true, nil
}

// FailAttempt resolves an attempt with an error: the error detail is set
// and prior metadata, if any, is preserved unchanged. Stale tokens are
// discarded the same way as in CompleteAttempt.
func (s *Store) FailAttempt(id string, token uint64, message string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return false, ErrNotFound
	}
	if token != a.attempt {
		log.Debug().Str("assetId", id).Uint64("token", token).Uint64("latest", a.attempt).
			Msg("discarding stale generation failure")
		return false, nil
	}
	a.Error = message
	a.Status = StatusError
	return true, nil
}

// SetTitle replaces the asset's title. A no-op when the asset has no
// metadata yet.
func (s *Store) SetTitle(id, title string) error {
	return s.editMetadata(id, func(r *meta.Record) {
		r.Title = title
	})
}

// SetDescription replaces the asset's description. A no-op when the asset
// has no metadata yet.
func (s *Store) SetDescription(id, description string) error {
	return s.editMetadata(id, func(r *meta.Record) {
		r.Description = description
	})
}

// AddKeyword appends a keyword to the asset's keyword list, subject to the
// trimming and uniqueness rules of meta.Record.AddKeyword.
func (s *Store) AddKeyword(id, keyword string) error {
	return s.editMetadata(id, func(r *meta.Record) {
		r.AddKeyword(keyword)
	})
}

// RemoveKeyword removes a keyword from the asset's keyword list.
func (s *Store) RemoveKeyword(id, keyword string) error {
	return s.editMetadata(id, func(r *meta.Record) {
		r.RemoveKeyword(keyword)
	})
}

func (s *Store) editMetadata(id string, edit func(*meta.Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	if a.Metadata == nil {
		return nil
	}
	edit(a.Metadata)
	return nil
}

// Select makes id the current selection. The asset must be present.
func (s *Store) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return ErrNotFound
	}
	s.session.SelectedID = id
	return nil
}

// SetView switches the active view.
func (s *Store) SetView(v ViewMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session.View = v
}

// Session returns the current navigation state.
func (s *Store) Session() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// Counts returns per-status asset counts for the session.
func (s *Store) Counts() StatusCounts {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := StatusCounts{Total: len(s.assets)}
	for _, a := range s.assets {
		switch a.Status {
		case StatusIdle:
			counts.Idle++
		case StatusProcessing:
			counts.Processing++
		case StatusCompleted:
			counts.Completed++
		case StatusError:
			counts.Error++
		}
	}
	return counts
}

// Remove discards an asset and releases its preview spool. If the asset
// was selected the selection is cleared.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.byID, id)
	for i, candidate := range s.assets {
		if candidate.ID == id {
			s.assets = append(s.assets[:i], s.assets[i+1:]...)
			break
		}
	}
	if s.session.SelectedID == id {
		s.session.SelectedID = ""
	}
	if err := a.preview.release(); err != nil {
		log.Warn().Err(err).Str("assetId", id).Msg("failed to release preview")
	}
	return nil
}

// Close releases every preview spool and, when the store created the spool
// directory itself, removes the directory.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	for _, a := range s.assets {
		if err := a.preview.release(); err != nil {
			log.Warn().Err(err).Str("assetId", a.ID).Msg("failed to release preview")
		}
	}
	if s.ownSpool {
		if err := os.RemoveAll(s.spoolDir); err != nil {
			return fmt.Errorf("failed to remove spool dir: %w", err)
		}
	}
	return nil
}
