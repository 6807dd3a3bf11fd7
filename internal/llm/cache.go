package llm

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/rs/zerolog/log"

	"stockstudio/internal/meta"
)

// CacheStore persists generation results keyed by image content hash.
type CacheStore interface {
	GetGenerationCache(imageHash string) (*meta.Record, error)
	SetGenerationCache(imageHash string, record *meta.Record) error
}

// CachedGenerator wraps a Generator with content-hash caching, so
// regenerating metadata for an identical image does not pay for a second
// model call.
type CachedGenerator struct {
	inner Generator
	store CacheStore
}

// NewCachedGenerator creates a cached generator.
func NewCachedGenerator(inner Generator, store CacheStore) *CachedGenerator {
	return &CachedGenerator{inner: inner, store: store}
}

// hashImage creates a SHA256 hash from the image content and its MIME type.
// The length prefix keeps distinct (mimeType, data) pairs from colliding.
func hashImage(imageData []byte, mimeType string) string {
	h := sha256.New()
	binary.Write(h, binary.LittleEndian, int64(len(mimeType)))
	h.Write([]byte(mimeType))
	h.Write(imageData)
	return hex.EncodeToString(h.Sum(nil))
}

// Generate implements the Generator interface with caching. Cache errors
// are logged and ignored; they never fail a generation attempt.
func (c *CachedGenerator) Generate(ctx context.Context, imageData []byte, mimeType string) (*Result, error) {
	hash := hashImage(imageData, mimeType)

	if c.store != nil {
		cached, err := c.store.GetGenerationCache(hash)
		if err != nil {
			log.Warn().Err(err).Msg("failed to check generation cache")
		} else if cached != nil {
			log.Debug().Str("hash", hash[:16]).Msg("generation cache hit")
			return &Result{Record: cached.Clone()}, nil
		}
	}

	result, err := c.inner.Generate(ctx, imageData, mimeType)
	if err != nil {
		return nil, err
	}

	if c.store != nil && result.Record != nil {
		if err := c.store.SetGenerationCache(hash, result.Record); err != nil {
			log.Warn().Err(err).Msg("failed to cache generation result")
		} else {
			log.Debug().Str("hash", hash[:16]).Msg("cached generation result")
		}
	}

	return result, nil
}
