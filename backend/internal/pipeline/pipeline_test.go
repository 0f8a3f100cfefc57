package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lifegraph/backend/internal/graph"
	"lifegraph/backend/internal/storage"
	apperrors "lifegraph/backend/pkg/errors"
)

var fixedNow = time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

const adaFile = `# Memory
## Identity
- Name: Ada Lovelace
- Lives in: London

## People
- Charles Babbage: collaborator, co-authored the Analytical Engine notes
- Mary Somerville: tutor

## Interests
- Mathematics, Poetry
`

const charlesFile = `## Identity
- Name: Charles Babbage
- Lives in: london

## People
- ada lovelace: friend

## Interests
- Engines
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newPipeline(t *testing.T) (*Pipeline, storage.Store) {
	t.Helper()
	store := storage.NewJSONStore(filepath.Join(t.TempDir(), "kg"), zap.NewNop())
	p := New(store,
		WithLogger(zap.NewNop()),
		WithClock(func() time.Time { return fixedNow }),
		WithConcurrency(2),
	)
	return p, store
}

func TestProcessSource_SavesGraph(t *testing.T) {
	ctx := context.Background()
	p, store := newPipeline(t)
	path := writeFile(t, t.TempDir(), "ada.md", adaFile)

	res, err := p.ProcessSource(ctx, path, Options{})
	require.NoError(t, err)
	assert.NotEmpty(t, res.IngestionID)
	assert.Equal(t, []string{path}, res.Sources)

	saved, err := store.LoadGraph(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.Graph.EntityCount(), saved.EntityCount())
	assert.Equal(t, res.Graph.TripletCount(), saved.TripletCount())
	assert.Equal(t, "markdown", saved.Metadata["source"])
	assert.Equal(t, res.IngestionID, saved.Metadata["ingestion_id"])

	assert.True(t, saved.HasEntity("Ada_Lovelace"))
	assert.True(t, saved.HasEntity("Charles_Babbage"))
	assert.True(t, saved.HasEntity("London"))
}

func TestProcessSource_SkipsNamelessBullets(t *testing.T) {
	ctx := context.Background()
	p, store := newPipeline(t)
	path := writeFile(t, t.TempDir(), "m.md", `## Identity
- Name: Ada Lovelace

## People
- : someone from the ball
- Bob: neighbour

## Events & Memories
- → trip in Paris with Bob
`)

	_, err := p.ProcessSource(ctx, path, Options{})
	require.NoError(t, err)

	saved, err := store.LoadGraph(ctx)
	require.NoError(t, err)
	assert.True(t, saved.HasEntity("Ada_Lovelace"))
	assert.True(t, saved.HasEntity("Bob"))
	assert.Equal(t, 2, saved.EntityCount())
	assert.Equal(t, 1, saved.TripletCount())
}

func TestProcessSource_ReingestionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	p, _ := newPipeline(t)
	path := writeFile(t, t.TempDir(), "ada.md", adaFile)

	first, err := p.ProcessSource(ctx, path, Options{Merge: true})
	require.NoError(t, err)

	second, err := p.ProcessSource(ctx, path, Options{Merge: true})
	require.NoError(t, err)

	assert.Equal(t, first.Graph.EntityCount(), second.Graph.EntityCount())
	assert.Equal(t, first.Graph.TripletCount(), second.Graph.TripletCount())
	assert.Equal(t, first.Graph.EntityCount(), second.Report.EntitiesMatched)
	assert.Zero(t, second.Report.TripletsAdded)
	assert.Zero(t, second.Graph.Stats().DuplicateTriplets)
	assert.NotEqual(t, first.IngestionID, second.IngestionID)
	assert.Equal(t, "2024-06-01T09:30:00Z", second.Graph.Metadata["last_updated"])
}

func TestProcessSource_MergeJoinsIdentities(t *testing.T) {
	ctx := context.Background()
	p, _ := newPipeline(t)
	dir := t.TempDir()

	_, err := p.ProcessSource(ctx, writeFile(t, dir, "ada.md", adaFile), Options{Merge: true})
	require.NoError(t, err)
	res, err := p.ProcessSource(ctx, writeFile(t, dir, "charles.md", charlesFile), Options{Merge: true})
	require.NoError(t, err)

	g := res.Graph
	assert.Empty(t, graph.DuplicateNames(g.Entities()))
	for _, tr := range g.Triplets() {
		assert.True(t, g.HasEntity(tr.Subject), "dangling subject %s", tr.Subject)
	}

	var knowsAda bool
	for _, tr := range g.TripletsBySubject("Charles_Babbage") {
		if tr.Predicate == graph.RelKnows && tr.Object == "Ada_Lovelace" {
			knowsAda = true
		}
	}
	assert.True(t, knowsAda)
}

func TestProcessSource_NoMergeReplaces(t *testing.T) {
	ctx := context.Background()
	p, store := newPipeline(t)
	dir := t.TempDir()

	_, err := p.ProcessSource(ctx, writeFile(t, dir, "ada.md", adaFile), Options{})
	require.NoError(t, err)
	_, err = p.ProcessSource(ctx, writeFile(t, dir, "charles.md", charlesFile), Options{})
	require.NoError(t, err)

	saved, err := store.LoadGraph(ctx)
	require.NoError(t, err)
	assert.False(t, saved.HasEntity("Mary_Somerville"))
}

func TestProcessSource_ParseFailureLeavesStore(t *testing.T) {
	ctx := context.Background()
	p, store := newPipeline(t)
	path := writeFile(t, t.TempDir(), "ada.md", adaFile)
	_, err := p.ProcessSource(ctx, path, Options{})
	require.NoError(t, err)
	before, err := store.LoadGraph(ctx)
	require.NoError(t, err)

	_, err = p.ProcessSource(ctx, filepath.Join(t.TempDir(), "missing.md"), Options{Merge: true})
	var stageErr *apperrors.ErrPipelineStageFailed
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageParse, stageErr.Stage)

	var parseErr *apperrors.ErrSourceParseFailed
	assert.ErrorAs(t, err, &parseErr)

	after, err := store.LoadGraph(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.EntityCount(), after.EntityCount())
}

func TestProcessSource_UnknownSourceType(t *testing.T) {
	p, _ := newPipeline(t)
	path := writeFile(t, t.TempDir(), "ada.md", adaFile)

	_, err := p.ProcessSource(context.Background(), path, Options{SourceType: "myspace"})
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypePipeline))
}

// failingStore fails the operation named by failOn
type failingStore struct {
	storage.Store
	failOn string
	saves  int
}

func (f *failingStore) LoadGraph(ctx context.Context) (*graph.KnowledgeGraph, error) {
	if f.failOn == StageLoad {
		return nil, errors.New("disk on fire")
	}
	return graph.New(), nil
}

func (f *failingStore) SaveGraph(ctx context.Context, g *graph.KnowledgeGraph) error {
	f.saves++
	if f.failOn == StageSave {
		return errors.New("disk full")
	}
	return nil
}

func TestProcessSource_StoreFailures(t *testing.T) {
	path := writeFile(t, t.TempDir(), "ada.md", adaFile)

	for _, stage := range []string{StageLoad, StageSave} {
		t.Run(stage, func(t *testing.T) {
			store := &failingStore{failOn: stage}
			p := New(store, WithLogger(zap.NewNop()))

			_, err := p.ProcessSource(context.Background(), path, Options{Merge: true})
			var stageErr *apperrors.ErrPipelineStageFailed
			require.ErrorAs(t, err, &stageErr)
			assert.Equal(t, stage, stageErr.Stage)
			assert.Equal(t, path, stageErr.Source)

			if stage == StageLoad {
				assert.Zero(t, store.saves)
			}
		})
	}
}

func TestProcessFiles(t *testing.T) {
	ctx := context.Background()
	p, store := newPipeline(t)
	dir := t.TempDir()
	paths := []string{
		writeFile(t, dir, "ada.md", adaFile),
		writeFile(t, dir, "charles.md", charlesFile),
	}

	res, err := p.ProcessFiles(ctx, paths, Options{})
	require.NoError(t, err)
	assert.Equal(t, paths, res.Sources)

	saved, err := store.LoadGraph(ctx)
	require.NoError(t, err)
	assert.True(t, saved.HasEntity("Mary_Somerville"))
	assert.True(t, saved.HasEntity("Engines"))
	assert.Empty(t, graph.DuplicateNames(saved.Entities()))
	assert.Equal(t, res.IngestionID, saved.Metadata["ingestion_id"])
}

func TestProcessFiles_Errors(t *testing.T) {
	p, _ := newPipeline(t)

	_, err := p.ProcessFiles(context.Background(), nil, Options{})
	assert.ErrorIs(t, err, ErrNoSources)

	dir := t.TempDir()
	_, err = p.ProcessFiles(context.Background(), []string{
		writeFile(t, dir, "ada.md", adaFile),
		filepath.Join(dir, "gone.md"),
	}, Options{})
	var stageErr *apperrors.ErrPipelineStageFailed
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, filepath.Join(dir, "gone.md"), stageErr.Source)
}

func TestStatisticsAndQuery(t *testing.T) {
	ctx := context.Background()
	p, _ := newPipeline(t)

	stats, err := p.Statistics(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalEntities)
	assert.Zero(t, stats.TotalTriplets)

	_, err = p.QueryContext(ctx, "Ada", 2)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound))

	_, err = p.ProcessSource(ctx, writeFile(t, t.TempDir(), "ada.md", adaFile), Options{})
	require.NoError(t, err)

	stats, err = p.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.EntityTypes["Person"])
	assert.Equal(t, 2, stats.PredicateTypes["knows"])

	res, err := p.QueryContext(ctx, "charles", 2)
	require.NoError(t, err)
	assert.Equal(t, "Charles Babbage", res.Entity.Name)
	assert.Contains(t, res.RelatedEntities, "Ada Lovelace")
}
