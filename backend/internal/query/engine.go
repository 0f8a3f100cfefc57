package query

import (
	"bytes"
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"lifegraph/backend/internal/constants"
	"lifegraph/backend/internal/graph"
	"lifegraph/backend/internal/storage"
	apperrors "lifegraph/backend/pkg/errors"
	"lifegraph/backend/pkg/logger"
)

// EntitySummary describes the entity a context was built for
type EntitySummary struct {
	ID         string                 `json:"-"`
	Name       string                 `json:"name"`
	Type       graph.EntityType       `json:"type"`
	Properties map[string]interface{} `json:"properties"`
}

// Target is one end of a relationship. Entity targets carry Name; literal
// targets carry Value and the type "literal".
type Target struct {
	Name  string `json:"name,omitempty"`
	Value string `json:"value,omitempty"`
	Type  string `json:"type"`
}

// IsLiteral reports whether the target is a plain value
func (t Target) IsLiteral() bool { return t.Type == constants.LiteralType }

// Label returns the display text of the target
func (t Target) Label() string {
	if t.IsLiteral() {
		return t.Value
	}
	return t.Name
}

// Group holds every target reached through one predicate label
type Group struct {
	Label   string
	Targets []Target
}

// Relationships keeps predicate groups in first-seen order
type Relationships []Group

// Get returns the targets under label
func (r Relationships) Get(label string) ([]Target, bool) {
	for _, g := range r {
		if g.Label == label {
			return g.Targets, true
		}
	}
	return nil, false
}

func (r *Relationships) add(label string, t Target) {
	for i := range *r {
		if (*r)[i].Label == label {
			(*r)[i].Targets = append((*r)[i].Targets, t)
			return
		}
	}
	*r = append(*r, Group{Label: label, Targets: []Target{t}})
}

// MarshalJSON writes the groups as an object keyed by label, in order
func (r Relationships) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, g := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(g.Label)
		if err != nil {
			return nil, err
		}
		targets := g.Targets
		if targets == nil {
			targets = []Target{}
		}
		val, err := json.Marshal(targets)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ContextResult is the one-hop neighbourhood of an entity
type ContextResult struct {
	Entity          EntitySummary `json:"entity"`
	Relationships   Relationships `json:"relationships"`
	RelatedEntities []string      `json:"related_entities"`
	MaxDepth        int           `json:"max_depth"`
}

// IncomingLabel builds the reverse label for a predicate, e.g. is_knows_of
func IncomingLabel(p graph.RelationType) string {
	return constants.IncomingPrefix + string(p) + constants.IncomingSuffix
}

// Engine answers context queries against a store
type Engine struct {
	store  storage.Store
	logger *zap.Logger
}

// NewEngine creates a query engine
func NewEngine(store storage.Store, log *zap.Logger) *Engine {
	if log == nil {
		log = logger.Get()
	}
	return &Engine{store: store, logger: log}
}

// QueryContext resolves name to the first entity whose name contains it
// and gathers its outgoing and incoming relationships. maxDepth is kept on
// the result; only direct neighbours are returned whatever its value.
func (e *Engine) QueryContext(ctx context.Context, name string, maxDepth int) (*ContextResult, error) {
	if maxDepth < 1 {
		maxDepth = constants.DefaultQueryDepth
	}

	matches, err := e.store.QueryEntities(ctx, storage.EntityFilter{NamePattern: name})
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		e.logger.Debug("No entity matched query", zap.String("name", name))
		return nil, apperrors.NewEntityNotFound(name)
	}
	entity := matches[0]

	outgoing, err := e.store.QueryTriplets(ctx, storage.TripletFilter{Subject: entity.ID})
	if err != nil {
		return nil, err
	}
	incoming, err := e.store.QueryTriplets(ctx, storage.TripletFilter{Object: entity.ID})
	if err != nil {
		return nil, err
	}

	known, err := e.neighbours(ctx, outgoing, incoming)
	if err != nil {
		return nil, err
	}

	props := entity.Properties
	if props == nil {
		props = map[string]interface{}{}
	}
	result := &ContextResult{
		Entity: EntitySummary{
			ID:         entity.ID,
			Name:       entity.Name,
			Type:       entity.Type,
			Properties: props,
		},
		Relationships:   Relationships{},
		RelatedEntities: []string{},
		MaxDepth:        maxDepth,
	}

	seen := make(map[string]bool)
	related := func(n string) {
		if !seen[n] {
			seen[n] = true
			result.RelatedEntities = append(result.RelatedEntities, n)
		}
	}

	for _, t := range outgoing {
		if obj, ok := known[t.Object]; ok {
			result.Relationships.add(string(t.Predicate), Target{Name: obj.Name, Type: string(obj.Type)})
			related(obj.Name)
			continue
		}
		result.Relationships.add(string(t.Predicate), Target{Value: t.Object, Type: constants.LiteralType})
	}

	for _, t := range incoming {
		subj, ok := known[t.Subject]
		if !ok {
			continue
		}
		result.Relationships.add(IncomingLabel(t.Predicate), Target{Name: subj.Name, Type: string(subj.Type)})
		related(subj.Name)
	}

	e.logger.Debug("Built entity context",
		zap.String("name", name),
		zap.String("entity_id", entity.ID),
		zap.Int("outgoing", len(outgoing)),
		zap.Int("incoming", len(incoming)),
	)
	return result, nil
}

// neighbours loads the entities referenced by the given triplets
func (e *Engine) neighbours(ctx context.Context, outgoing, incoming []graph.Triplet) (map[string]graph.Entity, error) {
	if len(outgoing) == 0 && len(incoming) == 0 {
		return map[string]graph.Entity{}, nil
	}

	wanted := make(map[string]bool, len(outgoing)+len(incoming))
	for _, t := range outgoing {
		wanted[t.Object] = true
	}
	for _, t := range incoming {
		wanted[t.Subject] = true
	}

	all, err := e.store.QueryEntities(ctx, storage.EntityFilter{})
	if err != nil {
		return nil, err
	}
	known := make(map[string]graph.Entity, len(wanted))
	for _, ent := range all {
		if wanted[ent.ID] {
			known[ent.ID] = ent
		}
	}
	return known, nil
}
