package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"lifegraph/backend/internal/graph"
	apperrors "lifegraph/backend/pkg/errors"
	"lifegraph/backend/pkg/logger"
)

// Neo4jOptions holds the connection settings
type Neo4jOptions struct {
	URI      string
	User     string
	Password string
	Database string
}

// Neo4jStore keeps entities, triplets and metadata as nodes. Triplets are
// nodes rather than relationships because their objects may be literals.
// A seq property records insertion order.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *zap.Logger
}

var neo4jSchema = []string{
	`CREATE INDEX entity_id IF NOT EXISTS FOR (e:Entity) ON (e.id)`,
	`CREATE INDEX entity_type IF NOT EXISTS FOR (e:Entity) ON (e.type)`,
	`CREATE INDEX entity_name IF NOT EXISTS FOR (e:Entity) ON (e.name)`,
	`CREATE INDEX triplet_subject IF NOT EXISTS FOR (t:Triplet) ON (t.subject)`,
	`CREATE INDEX triplet_predicate IF NOT EXISTS FOR (t:Triplet) ON (t.predicate)`,
	`CREATE INDEX triplet_object IF NOT EXISTS FOR (t:Triplet) ON (t.object)`,
}

// NewNeo4jStore connects, verifies connectivity and creates the indexes
func NewNeo4jStore(ctx context.Context, opts Neo4jOptions, log *zap.Logger) (*Neo4jStore, error) {
	if log == nil {
		log = logger.Get()
	}

	driver, err := neo4j.NewDriverWithContext(opts.URI, neo4j.BasicAuth(opts.User, opts.Password, ""))
	if err != nil {
		return nil, apperrors.NewStorageFailed("connect", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, apperrors.NewStorageFailed("connect", err)
	}

	s := &Neo4jStore{driver: driver, database: opts.Database, logger: log}
	if err := s.migrate(ctx); err != nil {
		driver.Close(ctx)
		return nil, err
	}

	log.Info("Connected to Neo4j", zap.String("uri", opts.URI))
	return s, nil
}

func (s *Neo4jStore) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: s.database})
}

func (s *Neo4jStore) migrate(ctx context.Context) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	for _, stmt := range neo4jSchema {
		res, err := session.Run(ctx, stmt, nil)
		if err == nil {
			_, err = res.Consume(ctx)
		}
		if err != nil {
			return apperrors.NewStorageFailed("migrate", err)
		}
	}
	return nil
}

// Close closes the driver
func (s *Neo4jStore) Close() error {
	return s.driver.Close(context.Background())
}

// ============================================================================
// Save
// ============================================================================

// SaveGraph replaces all stored nodes in a single write transaction
func (s *Neo4jStore) SaveGraph(ctx context.Context, g *graph.KnowledgeGraph) error {
	entities := make([]map[string]interface{}, 0, g.EntityCount())
	for i, e := range g.Entities() {
		props, err := json.Marshal(e.Properties)
		if err != nil {
			return apperrors.NewStorageFailed("save entities", fmt.Errorf("entity %s properties: %w", e.ID, err))
		}
		entities = append(entities, map[string]interface{}{
			"id":         e.ID,
			"name":       e.Name,
			"type":       string(e.Type),
			"properties": string(props),
			"created_at": formatTime(e.CreatedAt),
			"seq":        int64(i),
		})
	}

	triplets := make([]map[string]interface{}, 0, g.TripletCount())
	for i, t := range g.Triplets() {
		triplets = append(triplets, map[string]interface{}{
			"subject":    t.Subject,
			"predicate":  string(t.Predicate),
			"object":     t.Object,
			"confidence": t.Confidence,
			"source":     t.Source,
			"created_at": formatTime(t.CreatedAt),
			"seq":        int64(i),
		})
	}

	metadata := make([]map[string]interface{}, 0, len(g.Metadata))
	for k, v := range g.Metadata {
		value, err := json.Marshal(v)
		if err != nil {
			return apperrors.NewStorageFailed("save metadata", fmt.Errorf("key %s: %w", k, err))
		}
		metadata = append(metadata, map[string]interface{}{"key": k, "value": string(value)})
	}

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		if _, err := tx.Run(ctx, `MATCH (n) WHERE n:Entity OR n:Triplet OR n:GraphMetadata DETACH DELETE n`, nil); err != nil {
			return nil, err
		}
		if _, err := tx.Run(ctx, `
			UNWIND $entities AS e
			CREATE (:Entity {id: e.id, name: e.name, type: e.type, properties: e.properties,
			                 created_at: e.created_at, seq: e.seq})
		`, map[string]interface{}{"entities": entities}); err != nil {
			return nil, err
		}
		if _, err := tx.Run(ctx, `
			UNWIND $triplets AS t
			CREATE (:Triplet {subject: t.subject, predicate: t.predicate, object: t.object,
			                  confidence: t.confidence, source: t.source, created_at: t.created_at, seq: t.seq})
		`, map[string]interface{}{"triplets": triplets}); err != nil {
			return nil, err
		}
		if _, err := tx.Run(ctx, `
			UNWIND $metadata AS m
			CREATE (:GraphMetadata {key: m.key, value: m.value})
		`, map[string]interface{}{"metadata": metadata}); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return apperrors.NewStorageFailed("save", err)
	}

	s.logger.Info("Saved graph to Neo4j",
		zap.Int("entities", len(entities)),
		zap.Int("triplets", len(triplets)),
	)
	return nil
}

// ============================================================================
// Load and query
// ============================================================================

// LoadGraph reads every stored node back into a graph
func (s *Neo4jStore) LoadGraph(ctx context.Context) (*graph.KnowledgeGraph, error) {
	g := graph.New()

	entities, err := s.QueryEntities(ctx, EntityFilter{})
	if err != nil {
		return nil, err
	}
	for _, e := range entities {
		g.AddEntity(e)
	}

	triplets, err := s.QueryTriplets(ctx, TripletFilter{})
	if err != nil {
		return nil, err
	}
	for _, t := range triplets {
		g.AddTriplet(t)
	}

	records, err := s.read(ctx, `MATCH (m:GraphMetadata) RETURN m.key AS key, m.value AS value`, nil)
	if err != nil {
		return nil, apperrors.NewStorageFailed("load metadata", err)
	}
	for _, rec := range records {
		key := getStringFromRecord(rec, "key")
		var v interface{}
		if err := json.Unmarshal([]byte(getStringFromRecord(rec, "value")), &v); err != nil {
			return nil, apperrors.NewStorageFailed("load metadata", fmt.Errorf("key %s: %w", key, err))
		}
		g.Metadata[key] = v
	}
	return g, nil
}

// QueryEntities filters entities in Cypher
func (s *Neo4jStore) QueryEntities(ctx context.Context, filter EntityFilter) ([]graph.Entity, error) {
	query := `
		MATCH (e:Entity)
		WHERE ($type = '' OR e.type = $type)
		  AND ($pattern = '' OR toLower(e.name) CONTAINS toLower($pattern))
		RETURN e.id AS id, e.name AS name, e.type AS type, e.properties AS properties,
		       e.created_at AS created_at
		ORDER BY e.seq
	`
	records, err := s.read(ctx, query, map[string]interface{}{
		"type":    string(filter.Type),
		"pattern": filter.NamePattern,
	})
	if err != nil {
		return nil, apperrors.NewStorageFailed("query entities", err)
	}

	out := make([]graph.Entity, 0, len(records))
	for _, rec := range records {
		e, err := entityFromRecord(rec)
		if err != nil {
			return nil, apperrors.NewStorageFailed("query entities", err)
		}
		out = append(out, e)
	}
	return out, nil
}

// QueryTriplets filters triplets in Cypher
func (s *Neo4jStore) QueryTriplets(ctx context.Context, filter TripletFilter) ([]graph.Triplet, error) {
	query := `
		MATCH (t:Triplet)
		WHERE ($subject = '' OR t.subject = $subject)
		  AND ($predicate = '' OR t.predicate = $predicate)
		  AND ($object = '' OR t.object = $object)
		RETURN t.subject AS subject, t.predicate AS predicate, t.object AS object,
		       t.confidence AS confidence, t.source AS source, t.created_at AS created_at
		ORDER BY t.seq
	`
	records, err := s.read(ctx, query, map[string]interface{}{
		"subject":   filter.Subject,
		"predicate": string(filter.Predicate),
		"object":    filter.Object,
	})
	if err != nil {
		return nil, apperrors.NewStorageFailed("query triplets", err)
	}

	out := make([]graph.Triplet, 0, len(records))
	for _, rec := range records {
		t, err := tripletFromRecord(rec)
		if err != nil {
			return nil, apperrors.NewStorageFailed("query triplets", err)
		}
		out = append(out, t)
	}
	return out, nil
}

// read runs a query in a read transaction and collects its records
func (s *Neo4jStore) read(ctx context.Context, query string, params map[string]interface{}) ([]*neo4j.Record, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*neo4j.Record), nil
}
