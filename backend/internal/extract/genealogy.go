package extract

import (
	"strings"

	"go.uber.org/zap"

	"lifegraph/backend/internal/constants"
	"lifegraph/backend/internal/graph"
	"lifegraph/backend/internal/record"
)

const heritagePrefix = "family connection to"

// kinship describes how one relationship type from a family tree maps onto
// predicates. forward points from the relative to the subject, inverse
// from the subject to the relative.
type kinship struct {
	forward    graph.RelationType
	inverse    graph.RelationType
	confidence float64
}

var kinships = map[string]kinship{
	"parent":       {forward: graph.RelParentOf, inverse: graph.RelChildOf, confidence: 1.0},
	"child":        {forward: graph.RelChildOf, inverse: graph.RelParentOf, confidence: 1.0},
	"sibling":      {forward: graph.RelSiblingOf, inverse: graph.RelSiblingOf, confidence: 1.0},
	"spouse":       {forward: graph.RelSpouseOf, inverse: graph.RelSpouseOf, confidence: 1.0},
	"grandparent":  {forward: graph.RelGrandparentOf, inverse: graph.RelGrandchildOf, confidence: 0.85},
	"grandchild":   {forward: graph.RelGrandchildOf, inverse: graph.RelGrandparentOf, confidence: 0.85},
	"aunt_uncle":   {forward: graph.RelAuntUncleOf, inverse: graph.RelNieceNephewOf, confidence: 0.75},
	"niece_nephew": {forward: graph.RelNieceNephewOf, inverse: graph.RelAuntUncleOf, confidence: 0.75},
	"cousin":       {forward: graph.RelCousinOf, inverse: graph.RelCousinOf, confidence: 0.75},
}

// descriptionKinship resolves a relationship from the description when the
// record carries no relationship type, e.g. "Mother" or "Sibling".
func descriptionKinship(description string) string {
	head := strings.ToLower(strings.TrimSpace(strings.SplitN(description, ",", 2)[0]))
	switch head {
	case "father", "mother":
		return "parent"
	case "child", "son", "daughter":
		return "child"
	case "sibling", "brother", "sister":
		return "sibling"
	case "spouse", "husband", "wife":
		return "spouse"
	}
	return ""
}

// GenealogyExtractor handles records parsed from a family tree file
type GenealogyExtractor struct {
	base
}

// NewGenealogyExtractor creates a genealogy extractor
func NewGenealogyExtractor(opts ...Option) *GenealogyExtractor {
	return &GenealogyExtractor{base: newBase(opts)}
}

func (e *GenealogyExtractor) Name() string { return "genealogy" }

// Extract builds the graph fragment for rec
func (e *GenealogyExtractor) Extract(rec *record.PersonRecord) (*graph.KnowledgeGraph, error) {
	props := map[string]interface{}{"source": "ancestry"}
	if rec.Location != "" {
		props["location"] = rec.Location
	}

	s, err := e.begin(rec, props)
	if err != nil {
		return nil, err
	}

	e.family(s, rec)
	e.lifeEvents(s, rec)
	e.places(s, rec)
	e.interests(s, rec)

	kg := s.finish(rec, constants.SourceGenealogy)
	e.logger.Debug("Genealogy extraction complete",
		zap.String("person", rec.Name),
		zap.Int("entities", kg.EntityCount()),
		zap.Int("triplets", kg.TripletCount()),
	)
	return kg, nil
}

func (e *GenealogyExtractor) family(s *session, rec *record.PersonRecord) {
	for _, p := range rec.People {
		relativeID := s.entity(p.Name, graph.EntityPerson)

		kind := p.RelationshipType
		if _, known := kinships[kind]; !known {
			kind = descriptionKinship(p.Description)
		}
		if k, ok := kinships[kind]; ok {
			s.relate(relativeID, k.forward, s.rootID, k.confidence, constants.SourceGenealogy)
			s.relate(s.rootID, k.inverse, relativeID, k.confidence, constants.SourceGenealogy)
		}

		s.relate(s.rootID, graph.RelIsFamilyWith, relativeID, constants.ConfidenceStructural, constants.SourceGenealogy)
	}
}

func (e *GenealogyExtractor) lifeEvents(s *session, rec *record.PersonRecord) {
	for _, ev := range rec.Events {
		eventID := s.entity(ev.Name, graph.EntityEvent)
		s.relate(s.rootID, graph.RelAttendedEvent, eventID, constants.ConfidenceStructural, constants.SourceGenealogy)

		var placeRel graph.RelationType
		lower := strings.ToLower(ev.Name)
		switch {
		case strings.Contains(lower, "birth"):
			placeRel = graph.RelBornIn
		case strings.Contains(lower, "death"):
			placeRel = graph.RelDiedIn
		case strings.Contains(lower, "marriage"), strings.Contains(lower, "wedding"):
			placeRel = graph.RelMarriedIn
		default:
			continue
		}

		place, ok := LifeEventPlace(ev.Description)
		if !ok {
			continue
		}
		placeID := s.entity(place, graph.EntityPlace)
		s.relate(s.rootID, placeRel, placeID, constants.ConfidenceStructural, constants.SourceGenealogy)
		s.relate(eventID, graph.RelHappenedIn, placeID, constants.ConfidenceStructural, constants.SourceGenealogy)
	}
}

func (e *GenealogyExtractor) places(s *session, rec *record.PersonRecord) {
	if rec.Location != "" {
		s.relate(s.rootID, graph.RelBornIn, s.entity(rec.Location, graph.EntityPlace), constants.ConfidenceStructural, constants.SourceGenealogy)
	}
	for _, p := range rec.People {
		for _, place := range FamilyPlaces(p.Description) {
			s.relate(s.rootID, graph.RelHasInterest, s.entity(place, graph.EntityPlace), constants.ConfidenceFamilyPlace, "ancestry_family_places")
		}
	}
}

func (e *GenealogyExtractor) interests(s *session, rec *record.PersonRecord) {
	for _, interest := range rec.Interests {
		if strings.HasPrefix(strings.ToLower(interest), heritagePrefix) {
			place := strings.TrimSpace(interest[len(heritagePrefix):])
			if place == "" {
				continue
			}
			s.relate(s.rootID, graph.RelHasInterest, s.entity(place, graph.EntityPlace), constants.ConfidenceStructural, "ancestry_heritage")
			continue
		}
		s.relate(s.rootID, graph.RelHasInterest, s.entity(interest, graph.EntityInterest), constants.ConfidenceStructural, "ancestry_interests")
	}
}
