package storage

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"lifegraph/backend/internal/constants"
	"lifegraph/backend/internal/graph"
	"lifegraph/backend/pkg/config"
	apperrors "lifegraph/backend/pkg/errors"
)

// Store persists one knowledge graph. SaveGraph replaces everything
// previously saved; LoadGraph returns an empty graph when nothing has been
// saved yet. Queries return results in insertion order.
type Store interface {
	LoadGraph(ctx context.Context) (*graph.KnowledgeGraph, error)
	SaveGraph(ctx context.Context, g *graph.KnowledgeGraph) error
	QueryEntities(ctx context.Context, filter EntityFilter) ([]graph.Entity, error)
	QueryTriplets(ctx context.Context, filter TripletFilter) ([]graph.Triplet, error)
	Close() error
}

// EntityFilter selects entities. Zero fields do not filter. NamePattern is
// a case-insensitive substring.
type EntityFilter struct {
	Type        graph.EntityType
	NamePattern string
}

// Match reports whether e passes the filter
func (f EntityFilter) Match(e graph.Entity) bool {
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.NamePattern != "" && !strings.Contains(strings.ToLower(e.Name), strings.ToLower(f.NamePattern)) {
		return false
	}
	return true
}

// TripletFilter selects triplets by exact field values. Zero fields do not filter.
type TripletFilter struct {
	Subject   string
	Predicate graph.RelationType
	Object    string
}

// Match reports whether t passes the filter
func (f TripletFilter) Match(t graph.Triplet) bool {
	return (f.Subject == "" || t.Subject == f.Subject) &&
		(f.Predicate == "" || t.Predicate == f.Predicate) &&
		(f.Object == "" || t.Object == f.Object)
}

// New opens the backend named by cfg.StorageType
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (Store, error) {
	switch kind := strings.ToLower(strings.TrimSpace(cfg.StorageType)); kind {
	case constants.StorageJSON:
		return NewJSONStore(cfg.StoragePath, log), nil
	case constants.StorageSQLite:
		return NewSQLiteStore(cfg.StoragePath, log)
	case constants.StorageNeo4j:
		return NewNeo4jStore(ctx, Neo4jOptions{
			URI:      cfg.Neo4jURI,
			User:     cfg.Neo4jUser,
			Password: cfg.Neo4jPassword,
			Database: cfg.Neo4jDatabase,
		}, log)
	default:
		return nil, apperrors.NewUnsupportedStorage(cfg.StorageType)
	}
}

// withSuffix appends ext to base unless it is already there
func withSuffix(base, ext string) string {
	if strings.HasSuffix(strings.ToLower(base), ext) {
		return base
	}
	return base + ext
}
