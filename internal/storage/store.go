package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"stockstudio/internal/meta"
)

// SQLiteStore persists generation results keyed by image content hash, so a
// session restart or a regenerate of an identical image does not repeat the
// model call.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (creating if needed) the cache database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// WAL mode and busy timeout for better concurrency
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	query := `
	CREATE TABLE IF NOT EXISTS generation_cache (
		image_hash TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		keywords TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create generation_cache table: %w", err)
	}
	return nil
}

// GetGenerationCache retrieves a cached generation result by image hash.
// Returns nil, nil if no cache entry exists.
func (s *SQLiteStore) GetGenerationCache(imageHash string) (*meta.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var record meta.Record
	var keywordsJSON string
	err := s.db.QueryRow(
		"SELECT title, description, keywords FROM generation_cache WHERE image_hash = ?",
		imageHash,
	).Scan(&record.Title, &record.Description, &keywordsJSON)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query generation cache: %w", err)
	}

	if err := json.Unmarshal([]byte(keywordsJSON), &record.Keywords); err != nil {
		return nil, fmt.Errorf("failed to decode cached keywords: %w", err)
	}

	return &record, nil
}

// SetGenerationCache stores a generation result in the cache.
func (s *SQLiteStore) SetGenerationCache(imageHash string, record *meta.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keywordsJSON, err := json.Marshal(record.Keywords)
	if err != nil {
		return fmt.Errorf("failed to encode keywords: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO generation_cache (image_hash, title, description, keywords)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(image_hash) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			keywords = excluded.keywords,
			created_at = CURRENT_TIMESTAMP
	`, imageHash, record.Title, record.Description, string(keywordsJSON))

	if err != nil {
		return fmt.Errorf("failed to cache generation result: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
