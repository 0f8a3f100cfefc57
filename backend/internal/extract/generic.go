package extract

import (
	"go.uber.org/zap"

	"lifegraph/backend/internal/constants"
	"lifegraph/backend/internal/graph"
	"lifegraph/backend/internal/record"
)

// GenericExtractor handles records without a specialised provenance
type GenericExtractor struct {
	base
}

// NewGenericExtractor creates a generic extractor
func NewGenericExtractor(opts ...Option) *GenericExtractor {
	return &GenericExtractor{base: newBase(opts)}
}

func (e *GenericExtractor) Name() string { return "generic" }

// Extract builds the graph fragment for rec
func (e *GenericExtractor) Extract(rec *record.PersonRecord) (*graph.KnowledgeGraph, error) {
	s, err := e.begin(rec, identityProperties(rec))
	if err != nil {
		return nil, err
	}

	identityTriplets(s, rec)
	e.people(s, rec)
	e.workplaces(s, rec)
	e.events(s, rec)
	for _, interest := range rec.Interests {
		s.relate(s.rootID, graph.RelHasInterest, s.entity(interest, graph.EntityInterest), constants.ConfidenceStructural, "interests")
	}
	for _, phrase := range rec.Phrases {
		s.relate(s.rootID, graph.RelSaidPhrase, s.entity(phrase, graph.EntityPhrase), constants.ConfidenceStructural, "phrases")
	}

	kg := s.finish(rec, constants.SourceMarkdown)
	e.logger.Debug("Generic extraction complete",
		zap.String("person", rec.Name),
		zap.Int("entities", kg.EntityCount()),
		zap.Int("triplets", kg.TripletCount()),
	)
	return kg, nil
}

func (e *GenericExtractor) people(s *session, rec *record.PersonRecord) {
	for _, p := range rec.People {
		otherID := s.entity(p.Name, graph.EntityPerson)
		s.relate(s.rootID, graph.RelKnows, otherID, constants.ConfidenceStructural, "people")
		describePerson(s, otherID, p.Description)
	}
}

// describePerson applies the description heuristics to a mentioned person.
// Attributes attach to the person described; co-authorship attaches to the
// record's subject, who is the co-author.
func describePerson(s *session, personID, description string) {
	if description == "" {
		return
	}
	for _, role := range RolesInDescription(description) {
		s.relate(personID, graph.RelHasRole, s.entity(role, graph.EntityRole), constants.ConfidenceDescription, "description")
	}
	if WearsGlasses(description) {
		s.relate(personID, graph.RelWears, "glasses", constants.ConfidenceDescription, "description")
	}
	if n, ok := ChildrenCount(description); ok {
		s.relate(personID, graph.RelHasChildren, n, constants.ConfidenceDescription, "description")
	}
	if work, ok := CoauthoredWork(description); ok {
		s.relate(s.rootID, graph.RelCoauthored, s.entity(work, graph.EntityMemory), constants.ConfidenceDescription, "description")
	}
}

func (e *GenericExtractor) workplaces(s *session, rec *record.PersonRecord) {
	for _, w := range rec.Workplaces {
		companyID := s.entity(w.Company, graph.EntityOrganization)
		s.relate(s.rootID, graph.RelWorksAt, companyID, constants.ConfidenceWorkplace, "workplaces")
		if w.Position != "" && w.Position != "Unknown" {
			s.relate(s.rootID, graph.RelHasRole, s.entity(w.Position, graph.EntityRole), constants.ConfidenceWorkplace, "workplaces")
		}
	}
}

func (e *GenericExtractor) events(s *session, rec *record.PersonRecord) {
	for _, ev := range rec.Events {
		eventID := s.entity(ev.Name, graph.EntityEvent)
		s.relate(s.rootID, graph.RelAttendedEvent, eventID, constants.ConfidenceStructural, "events")

		for _, place := range EventPlaces(ev.Description) {
			s.relate(eventID, graph.RelHappenedIn, s.entity(place, graph.EntityPlace), constants.ConfidenceEventPlace, "event_description")
		}
		for _, name := range EventPeople(ev.Description) {
			s.relate(s.rootID, graph.RelMetAt, s.entity(name, graph.EntityPerson), constants.ConfidenceEventPerson, "event_description")
		}
	}
}
