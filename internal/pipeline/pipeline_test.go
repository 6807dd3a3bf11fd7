package pipeline

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockstudio/internal/asset"
	"stockstudio/internal/llm"
	"stockstudio/internal/meta"
)

// gatedGenerator blocks each Generate call until its gate is released,
// allowing tests to control completion order.
type gatedGenerator struct {
	mu      sync.Mutex
	gates   map[string]chan struct{} // keyed by image data
	started map[string]chan struct{}
	fail    map[string]bool
}

func newGatedGenerator() *gatedGenerator {
	return &gatedGenerator{
		gates:   make(map[string]chan struct{}),
		started: make(map[string]chan struct{}),
		fail:    make(map[string]bool),
	}
}

func (g *gatedGenerator) gate(key string) (chan struct{}, chan struct{}) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.gates[key]; !ok {
		g.gates[key] = make(chan struct{})
		g.started[key] = make(chan struct{}, 8)
	}
	return g.gates[key], g.started[key]
}

func (g *gatedGenerator) failWith(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fail[key] = true
}

func (g *gatedGenerator) Generate(ctx context.Context, imageData []byte, mimeType string) (*llm.Result, error) {
	key := string(imageData)
	gate, started := g.gate(key)
	started <- struct{}{}
	<-gate

	g.mu.Lock()
	shouldFail := g.fail[key]
	g.mu.Unlock()
	if shouldFail {
		return nil, &llm.GenerationError{Reason: "remote call failed"}
	}
	return &llm.Result{Record: &meta.Record{
		Title:       "Title for " + key,
		Description: "Description for " + key,
		Keywords:    []string{key},
	}}, nil
}

// openGenerator resolves immediately.
type openGenerator struct {
	err error
}

func (g *openGenerator) Generate(ctx context.Context, imageData []byte, mimeType string) (*llm.Result, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &llm.Result{Record: &meta.Record{
		Title:       "Title for " + string(imageData),
		Description: "D",
		Keywords:    []string{"k"},
	}}, nil
}

func newTestPipeline(t *testing.T, gen llm.Generator) (*Pipeline, *asset.Store) {
	t.Helper()
	store, err := asset.NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return New(store, gen), store
}

func files(names ...string) []asset.File {
	out := make([]asset.File, len(names))
	for i, name := range names {
		out[i] = asset.File{Name: name + ".jpg", MimeType: "image/jpeg", Data: []byte(name)}
	}
	return out
}

func TestPipeline_IngestCompletesAllAssets(t *testing.T) {
	p, store := newTestPipeline(t, &openGenerator{})

	batch, err := p.Ingest(context.Background(), files("a", "b", "c"))
	require.NoError(t, err)
	require.Len(t, batch, 3)
	p.Wait()

	for _, a := range store.List("") {
		assert.Equal(t, asset.StatusCompleted, a.Status)
		require.NotNil(t, a.Metadata)
		assert.True(t, strings.HasPrefix(a.Metadata.Title, "Title for "))
	}
}

func TestPipeline_IngestZeroFilesIsNoop(t *testing.T) {
	p, store := newTestPipeline(t, &openGenerator{})

	batch, err := p.Ingest(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, batch)
	assert.Empty(t, store.List(""))
}

func TestPipeline_OutOfOrderCompletion(t *testing.T) {
	gen := newGatedGenerator()
	p, store := newTestPipeline(t, gen)

	_, err := p.Ingest(context.Background(), files("a", "b"))
	require.NoError(t, err)

	gateA, startedA := gen.gate("a")
	gateB, startedB := gen.gate("b")
	<-startedA
	<-startedB

	// Resolve b first, then a
	close(gateB)
	close(gateA)
	p.Wait()

	byName := map[string]asset.Asset{}
	for _, a := range store.List("") {
		byName[a.Name] = a
	}
	assert.Equal(t, "Title for a", byName["a.jpg"].Metadata.Title)
	assert.Equal(t, "Title for b", byName["b.jpg"].Metadata.Title)
	assert.Equal(t, asset.StatusCompleted, byName["a.jpg"].Status)
	assert.Equal(t, asset.StatusCompleted, byName["b.jpg"].Status)
}

func TestPipeline_FailureBecomesAssetError(t *testing.T) {
	p, store := newTestPipeline(t, &openGenerator{err: &llm.GenerationError{Reason: "no response from model"}})

	_, err := p.Ingest(context.Background(), files("a"))
	require.NoError(t, err)
	p.Wait()

	got := store.List("")[0]
	assert.Equal(t, asset.StatusError, got.Status)
	assert.Contains(t, got.Error, "no response from model")
	assert.Nil(t, got.Metadata)
}

func TestPipeline_OneFailureDoesNotBlockOthers(t *testing.T) {
	gen := newGatedGenerator()
	gen.failWith("bad")
	p, store := newTestPipeline(t, gen)

	_, err := p.Ingest(context.Background(), files("bad", "good"))
	require.NoError(t, err)

	gateBad, startedBad := gen.gate("bad")
	gateGood, startedGood := gen.gate("good")
	<-startedBad
	<-startedGood
	close(gateBad)
	close(gateGood)
	p.Wait()

	byName := map[string]asset.Asset{}
	for _, a := range store.List("") {
		byName[a.Name] = a
	}
	assert.Equal(t, asset.StatusError, byName["bad.jpg"].Status)
	assert.Equal(t, asset.StatusCompleted, byName["good.jpg"].Status)
}

func TestPipeline_RegenerateUnknownAsset(t *testing.T) {
	p, _ := newTestPipeline(t, &openGenerator{})
	assert.ErrorIs(t, p.Regenerate(context.Background(), "nope"), asset.ErrNotFound)
}

func TestPipeline_RegenerateAfterError(t *testing.T) {
	gen := newGatedGenerator()
	gen.failWith("a")
	p, store := newTestPipeline(t, gen)

	batch, err := p.Ingest(context.Background(), files("a"))
	require.NoError(t, err)
	id := batch[0].ID

	gate, started := gen.gate("a")
	<-started
	close(gate)
	p.Wait()

	got, _ := store.Get(id)
	require.Equal(t, asset.StatusError, got.Status)

	// Second attempt succeeds and clears the error
	gen.mu.Lock()
	gen.fail["a"] = false
	gen.gates["a"] = make(chan struct{})
	close(gen.gates["a"])
	gen.mu.Unlock()

	require.NoError(t, p.Regenerate(context.Background(), id))
	p.Wait()

	got, _ = store.Get(id)
	assert.Equal(t, asset.StatusCompleted, got.Status)
	assert.Empty(t, got.Error)
	assert.Equal(t, "Title for a", got.Metadata.Title)
}

func TestPipeline_ConcurrentRegenerateLatestWins(t *testing.T) {
	gen := newGatedGenerator()
	p, store := newTestPipeline(t, gen)

	batch, err := p.Ingest(context.Background(), files("a"))
	require.NoError(t, err)
	id := batch[0].ID

	gate, started := gen.gate("a")
	<-started

	// Dispatch a second attempt while the first is still in flight. The
	// first attempt's token is now superseded.
	require.NoError(t, p.Regenerate(context.Background(), id))
	<-started

	close(gate)
	p.Wait()

	got, _ := store.Get(id)
	assert.Equal(t, asset.StatusCompleted, got.Status)
	assert.Equal(t, "Title for a", got.Metadata.Title)
}
