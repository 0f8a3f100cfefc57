package storage

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lifegraph/backend/internal/graph"
)

// createTestStore connects to the Neo4j named by NEO4J_URI. Requires a
// running Neo4j instance; the test database is wiped by every save.
func createTestStore(t *testing.T) *Neo4jStore {
	t.Helper()
	uri := os.Getenv("NEO4J_URI")
	if testing.Short() || uri == "" {
		t.Skip("Skipping Neo4j integration test")
	}

	user := os.Getenv("NEO4J_USER")
	if user == "" {
		user = "neo4j"
	}
	password := os.Getenv("NEO4J_PASSWORD")
	if password == "" {
		password = "password"
	}

	s, err := NewNeo4jStore(context.Background(), Neo4jOptions{
		URI:      uri,
		User:     user,
		Password: password,
		Database: os.Getenv("NEO4J_DATABASE"),
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNeo4jStore_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	want := sampleGraph()
	require.NoError(t, s.SaveGraph(ctx, want))

	got, err := s.LoadGraph(ctx)
	require.NoError(t, err)
	assert.Equal(t, want.Entities(), got.Entities())
	assert.Equal(t, want.Triplets(), got.Triplets())
	assert.Equal(t, want.Metadata, got.Metadata)
}

func TestNeo4jStore_Queries(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveGraph(ctx, sampleGraph()))

	people, err := s.QueryEntities(ctx, EntityFilter{Type: graph.EntityPerson})
	require.NoError(t, err)
	assert.Equal(t, []string{"Ada_Lovelace", "Charles_Babbage"}, ids(people))

	literal, err := s.QueryEntities(ctx, EntityFilter{NamePattern: "0% OFF_"})
	require.NoError(t, err)
	assert.Equal(t, []string{"fifty_percent"}, ids(literal))

	knows, err := s.QueryTriplets(ctx, TripletFilter{Subject: "Ada_Lovelace", Predicate: graph.RelKnows})
	require.NoError(t, err)
	require.Len(t, knows, 1)
	assert.Equal(t, "Charles_Babbage", knows[0].Object)
}

func TestNeo4jStore_SaveReplaces(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveGraph(ctx, sampleGraph()))
	require.NoError(t, s.SaveGraph(ctx, graph.New()))

	got, err := s.LoadGraph(ctx)
	require.NoError(t, err)
	assert.Zero(t, got.EntityCount())
	assert.Zero(t, got.TripletCount())
	assert.Empty(t, got.Metadata)
}
