// Package pipeline drives newly admitted images through metadata
// generation. Each asset gets its own goroutine per attempt; attempts for
// different assets run concurrently and results are reconciled back into
// the store by asset ID, so completion order does not matter.
package pipeline

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"stockstudio/internal/asset"
	"stockstudio/internal/llm"
)

// Pipeline turns input files into store entries and runs their generation
// attempts.
type Pipeline struct {
	store     *asset.Store
	generator llm.Generator
	wg        sync.WaitGroup
}

// New creates a pipeline writing into store and generating with generator.
func New(store *asset.Store, generator llm.Generator) *Pipeline {
	return &Pipeline{store: store, generator: generator}
}

// Ingest admits files into the store (first of the batch selected, view
// switched to the editor) and dispatches a generation attempt for each.
// Ingesting zero files is a no-op.
func (p *Pipeline) Ingest(ctx context.Context, files []asset.File) ([]asset.Asset, error) {
	batch, err := p.store.AddBatch(files)
	if err != nil {
		return nil, err
	}
	for _, a := range batch {
		p.dispatch(ctx, a)
	}
	if len(batch) > 0 {
		log.Info().Int("count", len(batch)).Msg("ingested image batch")
	}
	return batch, nil
}

// Regenerate dispatches a fresh generation attempt for an existing asset.
// Current metadata is kept until the new attempt resolves.
func (p *Pipeline) Regenerate(ctx context.Context, id string) error {
	a, ok := p.store.Get(id)
	if !ok {
		return asset.ErrNotFound
	}
	p.dispatch(ctx, a)
	return nil
}

// dispatch begins an attempt synchronously (capturing the token that keeps
// a later dispatch from being clobbered by this one's result) and resolves
// it in a goroutine. All failures are converted into asset error state;
// nothing propagates past this boundary.
func (p *Pipeline) dispatch(ctx context.Context, a asset.Asset) {
	token, err := p.store.BeginAttempt(a.ID)
	if err != nil {
		log.Warn().Err(err).Str("assetId", a.ID).Msg("failed to begin generation attempt")
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		result, err := p.generator.Generate(ctx, a.Data, a.MimeType)
		if err != nil {
			log.Error().Err(err).Str("assetId", a.ID).Str("file", a.Name).Msg("generation attempt failed")
			if _, failErr := p.store.FailAttempt(a.ID, token, err.Error()); failErr != nil {
				log.Warn().Err(failErr).Str("assetId", a.ID).Msg("failed to record generation failure")
			}
			return
		}

		applied, err := p.store.CompleteAttempt(a.ID, token, result.Record)
		if err != nil {
			log.Warn().Err(err).Str("assetId", a.ID).Msg("failed to record generation result")
			return
		}
		if applied {
			log.Info().Str("assetId", a.ID).Str("file", a.Name).
				Str("title", result.Record.Title).Msg("generation attempt completed")
		}
	}()
}

// Wait blocks until all dispatched attempts have resolved. Used on
// shutdown and in tests.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}
