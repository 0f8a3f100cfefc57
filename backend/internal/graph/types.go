package graph

import (
	"fmt"
	"time"
)

// ============================================================================
// Entity and Relation Kinds
// ============================================================================

// EntityType is the closed set of node kinds
type EntityType string

const (
	EntityPerson       EntityType = "Person"
	EntityPlace        EntityType = "Place"
	EntityEvent        EntityType = "Event"
	EntityOrganization EntityType = "Organization"
	EntityMemory       EntityType = "Memory"
	EntityPhrase       EntityType = "Phrase"
	EntityInterest     EntityType = "Interest"
	EntityRole         EntityType = "Role"
	EntityPost         EntityType = "Post"
	EntityMessage      EntityType = "Message"
	EntityPhoto        EntityType = "Photo"
	EntityGroup        EntityType = "Group"
	EntityPage         EntityType = "Page"
)

// EntityTypes lists every entity kind in declaration order
var EntityTypes = []EntityType{
	EntityPerson, EntityPlace, EntityEvent, EntityOrganization, EntityMemory, EntityPhrase,
	EntityInterest, EntityRole, EntityPost, EntityMessage, EntityPhoto, EntityGroup, EntityPage,
}

// RelationType is the closed set of triplet predicates
type RelationType string

const (
	// Generic
	RelKnows         RelationType = "knows"
	RelWorksAt       RelationType = "worksAt"
	RelHasRole       RelationType = "hasRole"
	RelAttendedEvent RelationType = "attendedEvent"
	RelHappenedIn    RelationType = "happenedIn"
	RelHasInterest   RelationType = "hasInterest"
	RelSaidPhrase    RelationType = "saidPhrase"
	RelMetAt         RelationType = "metAt"
	RelIsFamilyWith  RelationType = "isFamilyWith"
	RelLivesIn       RelationType = "livesIn"
	RelHasChildren   RelationType = "hasChildren"
	RelWears         RelationType = "wears"
	RelCoauthored    RelationType = "coauthored"
	RelPartneredWith RelationType = "partneredWith"

	// Social network
	RelFriendsWith RelationType = "friendsWith"
	RelPosted      RelationType = "posted"
	RelLiked       RelationType = "liked"
	RelCommentedOn RelationType = "commentedOn"
	RelShared      RelationType = "shared"
	RelTaggedIn    RelationType = "taggedIn"
	RelMemberOf    RelationType = "memberOf"
	RelFollows     RelationType = "follows"
	RelMessaged    RelationType = "messaged"
	RelCheckedInAt RelationType = "checkedInAt"

	// Genealogy
	RelParentOf      RelationType = "parentOf"
	RelChildOf       RelationType = "childOf"
	RelSiblingOf     RelationType = "siblingOf"
	RelSpouseOf      RelationType = "spouseOf"
	RelGrandparentOf RelationType = "grandparentOf"
	RelGrandchildOf  RelationType = "grandchildOf"
	RelAuntUncleOf   RelationType = "auntUncleOf"
	RelNieceNephewOf RelationType = "nieceNephewOf"
	RelCousinOf      RelationType = "cousinOf"
	RelBornIn        RelationType = "bornIn"
	RelDiedIn        RelationType = "diedIn"
	RelMarriedIn     RelationType = "marriedIn"
)

// RelationTypes lists every predicate in declaration order
var RelationTypes = []RelationType{
	RelKnows, RelWorksAt, RelHasRole, RelAttendedEvent, RelHappenedIn, RelHasInterest, RelSaidPhrase,
	RelMetAt, RelIsFamilyWith, RelLivesIn, RelHasChildren, RelWears, RelCoauthored, RelPartneredWith,
	RelFriendsWith, RelPosted, RelLiked, RelCommentedOn, RelShared, RelTaggedIn, RelMemberOf,
	RelFollows, RelMessaged, RelCheckedInAt,
	RelParentOf, RelChildOf, RelSiblingOf, RelSpouseOf, RelGrandparentOf, RelGrandchildOf,
	RelAuntUncleOf, RelNieceNephewOf, RelCousinOf, RelBornIn, RelDiedIn, RelMarriedIn,
}

var (
	entityTypeSet   = make(map[EntityType]struct{}, len(EntityTypes))
	relationTypeSet = make(map[RelationType]struct{}, len(RelationTypes))
)

func init() {
	for _, t := range EntityTypes {
		entityTypeSet[t] = struct{}{}
	}
	for _, r := range RelationTypes {
		relationTypeSet[r] = struct{}{}
	}
}

// Valid reports whether t is a known entity kind
func (t EntityType) Valid() bool {
	_, ok := entityTypeSet[t]
	return ok
}

// Valid reports whether r is a known predicate
func (r RelationType) Valid() bool {
	_, ok := relationTypeSet[r]
	return ok
}

// ParseEntityType converts a stored string into an EntityType
func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(s)
	if !t.Valid() {
		return "", ErrUnknownKind{Kind: "entity type", Value: s}
	}
	return t, nil
}

// ParseRelationType converts a stored string into a RelationType
func ParseRelationType(s string) (RelationType, error) {
	r := RelationType(s)
	if !r.Valid() {
		return "", ErrUnknownKind{Kind: "relation type", Value: s}
	}
	return r, nil
}

// ============================================================================
// Graph Elements
// ============================================================================

// Entity is a typed node. Entities are never mutated once created; merge
// replaces or drops them.
type Entity struct {
	ID         string                 `json:"id" yaml:"id"`
	Name       string                 `json:"name" yaml:"name"`
	Type       EntityType             `json:"entity_type" yaml:"entity_type"`
	Properties map[string]interface{} `json:"properties" yaml:"properties"`
	CreatedAt  time.Time              `json:"created_at" yaml:"created_at"`
}

// Detached returns e with its own copy of the property map. A nil map
// stays nil.
func (e Entity) Detached() Entity {
	if e.Properties == nil {
		return e
	}
	props := make(map[string]interface{}, len(e.Properties))
	for k, v := range e.Properties {
		props[k] = v
	}
	e.Properties = props
	return e
}

// Triplet is a directed fact. Object holds either an entity id or a literal
// value; callers check entity existence before treating it as a reference.
type Triplet struct {
	Subject    string       `json:"subject" yaml:"subject"`
	Predicate  RelationType `json:"predicate" yaml:"predicate"`
	Object     string       `json:"object" yaml:"object"`
	Confidence float64      `json:"confidence" yaml:"confidence"`
	Source     string       `json:"source,omitempty" yaml:"source,omitempty"`
	CreatedAt  time.Time    `json:"created_at" yaml:"created_at"`
}

// Signature is the dedup key of a triplet. Confidence and source are not part of it.
type Signature struct {
	Subject   string
	Predicate RelationType
	Object    string
}

// Signature returns the (subject, predicate, object) key
func (t Triplet) Signature() Signature {
	return Signature{Subject: t.Subject, Predicate: t.Predicate, Object: t.Object}
}

// Errors

type ErrUnknownKind struct {
	Kind  string
	Value string
}

func (e ErrUnknownKind) Error() string {
	return fmt.Sprintf("unknown %s: %q", e.Kind, e.Value)
}
