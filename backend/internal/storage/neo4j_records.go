package storage

import (
	"encoding/json"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"lifegraph/backend/internal/graph"
)

// ============================================================================
// Record decoding
// ============================================================================

func entityFromRecord(rec *neo4j.Record) (graph.Entity, error) {
	e := graph.Entity{
		ID:         getStringFromRecord(rec, "id"),
		Name:       getStringFromRecord(rec, "name"),
		Properties: make(map[string]interface{}),
	}

	t, err := graph.ParseEntityType(getStringFromRecord(rec, "type"))
	if err != nil {
		return e, err
	}
	e.Type = t

	if props := getStringFromRecord(rec, "properties"); props != "" {
		if err := json.Unmarshal([]byte(props), &e.Properties); err != nil {
			return e, fmt.Errorf("entity %s properties: %w", e.ID, err)
		}
	}

	if e.CreatedAt, err = parseTime(getStringFromRecord(rec, "created_at")); err != nil {
		return e, fmt.Errorf("entity %s: %w", e.ID, err)
	}
	return e, nil
}

func tripletFromRecord(rec *neo4j.Record) (graph.Triplet, error) {
	t := graph.Triplet{
		Subject:    getStringFromRecord(rec, "subject"),
		Object:     getStringFromRecord(rec, "object"),
		Confidence: getFloat64FromRecord(rec, "confidence"),
		Source:     getStringFromRecord(rec, "source"),
	}

	p, err := graph.ParseRelationType(getStringFromRecord(rec, "predicate"))
	if err != nil {
		return t, err
	}
	t.Predicate = p

	if t.CreatedAt, err = parseTime(getStringFromRecord(rec, "created_at")); err != nil {
		return t, err
	}
	return t, nil
}

func getStringFromRecord(record *neo4j.Record, key string) string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}

func getFloat64FromRecord(record *neo4j.Record, key string) float64 {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return 0.0
	}
	if f, ok := val.(float64); ok {
		return f
	}
	if i, ok := val.(int64); ok {
		return float64(i)
	}
	return 0.0
}
