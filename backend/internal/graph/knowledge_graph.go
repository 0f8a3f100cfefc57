package graph

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// KnowledgeGraph holds entities keyed by id in insertion order, an ordered
// triplet list and an open metadata map. Referential integrity of triplet
// endpoints is a convention only; dangling references are kept.
type KnowledgeGraph struct {
	order    []string
	entities map[string]Entity
	triplets []Triplet
	Metadata map[string]interface{}
}

// New returns an empty graph
func New() *KnowledgeGraph {
	return &KnowledgeGraph{
		order:    []string{},
		entities: make(map[string]Entity),
		triplets: []Triplet{},
		Metadata: make(map[string]interface{}),
	}
}

// AddEntity inserts e. Re-adding an id replaces the entity in place.
func (g *KnowledgeGraph) AddEntity(e Entity) {
	if e.Properties == nil {
		e.Properties = make(map[string]interface{})
	}
	if _, exists := g.entities[e.ID]; !exists {
		g.order = append(g.order, e.ID)
	}
	g.entities[e.ID] = e
}

// AddTriplet appends t
func (g *KnowledgeGraph) AddTriplet(t Triplet) {
	g.triplets = append(g.triplets, t)
}

// Entity looks up an entity by id
func (g *KnowledgeGraph) Entity(id string) (Entity, bool) {
	e, ok := g.entities[id]
	return e, ok
}

// HasEntity reports whether id refers to an entity of this graph
func (g *KnowledgeGraph) HasEntity(id string) bool {
	_, ok := g.entities[id]
	return ok
}

// Entities returns all entities in insertion order
func (g *KnowledgeGraph) Entities() []Entity {
	out := make([]Entity, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.entities[id])
	}
	return out
}

// Triplets returns a copy of the triplet list
func (g *KnowledgeGraph) Triplets() []Triplet {
	out := make([]Triplet, len(g.triplets))
	copy(out, g.triplets)
	return out
}

func (g *KnowledgeGraph) EntityCount() int  { return len(g.order) }
func (g *KnowledgeGraph) TripletCount() int { return len(g.triplets) }

// TripletsBySubject returns triplets where id is the subject
func (g *KnowledgeGraph) TripletsBySubject(id string) []Triplet {
	var out []Triplet
	for _, t := range g.triplets {
		if t.Subject == id {
			out = append(out, t)
		}
	}
	return out
}

// TripletsByObject returns triplets where id is the object
func (g *KnowledgeGraph) TripletsByObject(id string) []Triplet {
	var out []Triplet
	for _, t := range g.triplets {
		if t.Object == id {
			out = append(out, t)
		}
	}
	return out
}

// Clone returns a copy that shares no slices or maps with g. Property and
// metadata values are copied shallowly.
func (g *KnowledgeGraph) Clone() *KnowledgeGraph {
	c := New()
	for _, e := range g.Entities() {
		props := make(map[string]interface{}, len(e.Properties))
		for k, v := range e.Properties {
			props[k] = v
		}
		e.Properties = props
		c.AddEntity(e)
	}
	c.triplets = g.Triplets()
	for k, v := range g.Metadata {
		c.Metadata[k] = v
	}
	return c
}

// ============================================================================
// Serialization
// ============================================================================

// MarshalJSON writes {"entities": {id: entity}, "triplets": [...], "metadata": {...}}
// with entity keys in insertion order.
func (g *KnowledgeGraph) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"entities":{`)
	for i, id := range g.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(g.entities[id])
		if err != nil {
			return nil, fmt.Errorf("failed to encode entity %s: %w", id, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteString(`},"triplets":`)

	triplets, err := json.Marshal(g.triplets)
	if err != nil {
		return nil, err
	}
	buf.Write(triplets)

	buf.WriteString(`,"metadata":`)
	meta := g.Metadata
	if meta == nil {
		meta = map[string]interface{}{}
	}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	buf.Write(metaBytes)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the document written by MarshalJSON, keeping the
// key order of the entities object.
func (g *KnowledgeGraph) UnmarshalJSON(data []byte) error {
	var raw struct {
		Entities json.RawMessage        `json:"entities"`
		Triplets []Triplet              `json:"triplets"`
		Metadata map[string]interface{} `json:"metadata"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	fresh := New()
	if len(raw.Entities) > 0 && !bytes.Equal(bytes.TrimSpace(raw.Entities), []byte("null")) {
		dec := json.NewDecoder(bytes.NewReader(raw.Entities))
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if delim, ok := tok.(json.Delim); !ok || delim != '{' {
			return fmt.Errorf("entities must be an object")
		}
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return err
			}
			key, _ := keyTok.(string)
			var e Entity
			if err := dec.Decode(&e); err != nil {
				return fmt.Errorf("failed to decode entity %s: %w", key, err)
			}
			if e.ID == "" {
				e.ID = key
			}
			if !e.Type.Valid() {
				return ErrUnknownKind{Kind: "entity type", Value: string(e.Type)}
			}
			fresh.AddEntity(e)
		}
		if _, err := dec.Token(); err != nil {
			return err
		}
	}

	for _, t := range raw.Triplets {
		if !t.Predicate.Valid() {
			return ErrUnknownKind{Kind: "relation type", Value: string(t.Predicate)}
		}
		fresh.AddTriplet(t)
	}
	if raw.Metadata != nil {
		fresh.Metadata = raw.Metadata
	}

	*g = *fresh
	return nil
}

// MarshalYAML emits the same document shape as MarshalJSON
func (g *KnowledgeGraph) MarshalYAML() (interface{}, error) {
	entities := &yaml.Node{Kind: yaml.MappingNode}
	for _, id := range g.order {
		var val yaml.Node
		if err := val.Encode(g.entities[id]); err != nil {
			return nil, fmt.Errorf("failed to encode entity %s: %w", id, err)
		}
		entities.Content = append(entities.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: id},
			&val,
		)
	}

	var triplets, meta yaml.Node
	if err := triplets.Encode(g.triplets); err != nil {
		return nil, err
	}
	metadata := g.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	if err := meta.Encode(metadata); err != nil {
		return nil, err
	}

	return &yaml.Node{
		Kind: yaml.MappingNode,
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Value: "entities"}, entities,
			{Kind: yaml.ScalarNode, Value: "triplets"}, &triplets,
			{Kind: yaml.ScalarNode, Value: "metadata"}, &meta,
		},
	}, nil
}
