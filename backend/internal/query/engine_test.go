package query

import (
	"context"
	"encoding/json"
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

var created = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	g := graph.New()
	add := func(id, name string, typ graph.EntityType) {
		g.AddEntity(graph.Entity{ID: id, Name: name, Type: typ, CreatedAt: created})
	}
	add("Sam_Jones", "Sam Jones", graph.EntityPerson)
	add("Daisy", "Daisy", graph.EntityPerson)
	add("Daisy_Duke", "Daisy Duke", graph.EntityPerson)
	add("slt", "slt", graph.EntityRole)
	add("Paper", "Paper on AAC", graph.EntityMemory)
	add("CHI_2019", "CHI 2019", graph.EntityEvent)

	rel := func(s string, p graph.RelationType, o string) {
		g.AddTriplet(graph.Triplet{Subject: s, Predicate: p, Object: o, Confidence: 1, CreatedAt: created})
	}
	rel("Daisy", graph.RelHasRole, "slt")
	rel("Daisy", graph.RelCoauthored, "Paper")
	rel("Daisy", graph.RelCoauthored, "Paper")
	rel("Daisy", graph.RelWears, "glasses")
	rel("Daisy", graph.RelMetAt, "CHI_2019")
	rel("Sam_Jones", graph.RelKnows, "Daisy")
	rel("Paper", graph.RelHappenedIn, "Daisy")

	s := storage.NewJSONStore(filepath.Join(t.TempDir(), "kg"), zap.NewNop())
	require.NoError(t, s.SaveGraph(context.Background(), g))
	return NewEngine(s, zap.NewNop())
}

func TestQueryContext_GroupsRelationships(t *testing.T) {
	res, err := newEngine(t).QueryContext(context.Background(), "daisy", 2)
	require.NoError(t, err)

	assert.Equal(t, "Daisy", res.Entity.Name)
	assert.Equal(t, graph.EntityPerson, res.Entity.Type)
	assert.NotNil(t, res.Entity.Properties)

	var labels []string
	for _, g := range res.Relationships {
		labels = append(labels, g.Label)
	}
	assert.Equal(t, []string{"hasRole", "coauthored", "wears", "metAt", "is_knows_of", "is_happenedIn_of"}, labels)

	roles, ok := res.Relationships.Get("hasRole")
	require.True(t, ok)
	assert.Equal(t, []Target{{Name: "slt", Type: "Role"}}, roles)

	wears, _ := res.Relationships.Get("wears")
	require.Len(t, wears, 1)
	assert.True(t, wears[0].IsLiteral())
	assert.Equal(t, "glasses", wears[0].Label())

	papers, _ := res.Relationships.Get("coauthored")
	assert.Len(t, papers, 2)

	knownBy, _ := res.Relationships.Get("is_knows_of")
	assert.Equal(t, []Target{{Name: "Sam Jones", Type: "Person"}}, knownBy)

	assert.Equal(t, []string{"slt", "Paper on AAC", "CHI 2019", "Sam Jones"}, res.RelatedEntities)
}

func TestQueryContext_NotFound(t *testing.T) {
	res, err := newEngine(t).QueryContext(context.Background(), "Nobody", 2)
	assert.Nil(t, res)

	var notFound *apperrors.ErrEntityNotFound
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "Nobody", notFound.Name)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound))
}

func TestQueryContext_DepthIsOneHop(t *testing.T) {
	e := newEngine(t)
	for _, depth := range []int{0, 1, 5} {
		res, err := e.QueryContext(context.Background(), "Sam", depth)
		require.NoError(t, err)

		// Daisy's own relationships are two hops away from Sam
		assert.Equal(t, []string{"Daisy"}, res.RelatedEntities)
		_, ok := res.Relationships.Get("hasRole")
		assert.False(t, ok)
	}

	res, err := e.QueryContext(context.Background(), "Sam", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, res.MaxDepth)
}

func TestQueryContext_NoRelationships(t *testing.T) {
	s := storage.NewJSONStore(filepath.Join(t.TempDir(), "kg"), zap.NewNop())
	g := graph.New()
	g.AddEntity(graph.Entity{ID: "Loner", Name: "Loner", Type: graph.EntityPerson, CreatedAt: created})
	require.NoError(t, s.SaveGraph(context.Background(), g))

	res, err := NewEngine(s, zap.NewNop()).QueryContext(context.Background(), "loner", 1)
	require.NoError(t, err)
	assert.Empty(t, res.Relationships)

	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"entity":{"name":"Loner","type":"Person","properties":{}},
		"relationships":{},"related_entities":[],"max_depth":1}`, string(data))
}

func TestRelationships_MarshalKeepsOrder(t *testing.T) {
	r := Relationships{}
	r.add("zeta", Target{Name: "Z", Type: "Person"})
	r.add("alpha", Target{Value: "3", Type: "literal"})
	r.add("zeta", Target{Name: "Y", Type: "Person"})

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t,
		`{"zeta":[{"name":"Z","type":"Person"},{"name":"Y","type":"Person"}],"alpha":[{"value":"3","type":"literal"}]}`,
		string(data))
}

func TestIncomingLabel(t *testing.T) {
	assert.Equal(t, "is_spouseOf_of", IncomingLabel(graph.RelSpouseOf))
}
