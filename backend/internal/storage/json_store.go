package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"lifegraph/backend/internal/graph"
	apperrors "lifegraph/backend/pkg/errors"
	"lifegraph/backend/pkg/logger"
)

// JSONStore keeps the graph as a single JSON document. The decoded graph
// is cached and reloaded when the file changes on disk.
type JSONStore struct {
	path   string
	logger *zap.Logger

	mu       sync.Mutex
	cache    *graph.KnowledgeGraph
	cachedAt time.Time
}

// NewJSONStore creates a store writing to base + ".json"
func NewJSONStore(base string, log *zap.Logger) *JSONStore {
	if log == nil {
		log = logger.Get()
	}
	return &JSONStore{
		path:   withSuffix(base, ".json"),
		logger: log,
	}
}

// Path returns the document location
func (s *JSONStore) Path() string { return s.path }

// LoadGraph returns a copy of the stored graph
func (s *JSONStore) LoadGraph(ctx context.Context) (*graph.KnowledgeGraph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return g.Clone(), nil
}

// load refreshes the cache when needed. Callers hold s.mu.
func (s *JSONStore) load(ctx context.Context) (*graph.KnowledgeGraph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.cache, s.cachedAt = graph.New(), time.Time{}
		return s.cache, nil
	}
	if err != nil {
		return nil, apperrors.NewStorageFailed("load", err)
	}
	if s.cache != nil && info.ModTime().Equal(s.cachedAt) {
		return s.cache, nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, apperrors.NewStorageFailed("load", err)
	}
	g := graph.New()
	if err := json.Unmarshal(data, g); err != nil {
		return nil, apperrors.NewStorageFailed("load", err)
	}

	s.cache, s.cachedAt = g, info.ModTime()
	s.logger.Debug("Loaded graph document",
		zap.String("path", s.path),
		zap.Int("entities", g.EntityCount()),
		zap.Int("triplets", g.TripletCount()),
	)
	return g, nil
}

// SaveGraph writes g to a temporary file and renames it over the document
func (s *JSONStore) SaveGraph(ctx context.Context, g *graph.KnowledgeGraph) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return apperrors.NewStorageFailed("save", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.NewStorageFailed("save", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return apperrors.NewStorageFailed("save", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return apperrors.NewStorageFailed("save", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return apperrors.NewStorageFailed("save", err)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.NewStorageFailed("save", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return apperrors.NewStorageFailed("save", err)
	}

	s.cache = g.Clone()
	if info, err := os.Stat(s.path); err == nil {
		s.cachedAt = info.ModTime()
	}
	s.logger.Info("Saved graph document",
		zap.String("path", s.path),
		zap.Int("entities", g.EntityCount()),
		zap.Int("triplets", g.TripletCount()),
	)
	return nil
}

// QueryEntities filters the stored entities
func (s *JSONStore) QueryEntities(ctx context.Context, filter EntityFilter) ([]graph.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	var out []graph.Entity
	for _, e := range g.Entities() {
		if filter.Match(e) {
			out = append(out, e.Detached())
		}
	}
	return out, nil
}

// QueryTriplets filters the stored triplets
func (s *JSONStore) QueryTriplets(ctx context.Context, filter TripletFilter) ([]graph.Triplet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	candidates := g.Triplets()
	switch {
	case filter.Subject != "":
		candidates = g.TripletsBySubject(filter.Subject)
	case filter.Object != "":
		candidates = g.TripletsByObject(filter.Object)
	}

	var out []graph.Triplet
	for _, t := range candidates {
		if filter.Match(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

// Close is a no-op; the document is closed after every write
func (s *JSONStore) Close() error { return nil }
