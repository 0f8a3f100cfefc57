package extract

import (
	"time"

	"go.uber.org/zap"

	"lifegraph/backend/internal/constants"
	"lifegraph/backend/internal/graph"
	"lifegraph/backend/internal/record"
	"lifegraph/backend/pkg/logger"
)

// Extractor turns one intermediate record into a graph fragment. Each
// implementation owns its identity cache and resets it on every call, so an
// instance must not be shared between goroutines.
type Extractor interface {
	Extract(rec *record.PersonRecord) (*graph.KnowledgeGraph, error)
	Name() string
}

// Option configures an extractor
type Option func(*base)

// WithClock overrides the time source used for created_at stamps
func WithClock(clock func() time.Time) Option {
	return func(b *base) {
		b.clock = clock
	}
}

// WithLogger sets the logger
func WithLogger(log *zap.Logger) Option {
	return func(b *base) {
		b.logger = log
	}
}

// base carries the state shared by every extractor variant
type base struct {
	ids    *graph.IDAllocator
	clock  func() time.Time
	logger *zap.Logger
}

func newBase(opts []Option) base {
	b := base{
		ids:    graph.NewIDAllocator(),
		clock:  time.Now,
		logger: logger.Get(),
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// begin validates rec, drops nameless mentions, resets the identity cache
// and returns a session with the root person already created.
func (b *base) begin(rec *record.PersonRecord, props map[string]interface{}) (*session, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	for _, skipped := range rec.DropBlankMentions() {
		b.logger.Warn("Skipping nameless entry",
			zap.String("person", rec.Name),
			zap.String("section", skipped.Section),
			zap.Int("index", skipped.Index),
		)
	}
	b.ids.Reset()

	s := &session{
		kg:   graph.New(),
		ids:  b.ids,
		now:  b.clock(),
		seen: make(map[graph.Signature]struct{}),
	}
	s.rootID = s.addRoot(rec.Name, props)
	return s, nil
}

// session accumulates one extraction
type session struct {
	kg     *graph.KnowledgeGraph
	ids    *graph.IDAllocator
	now    time.Time
	rootID string
	seen   map[graph.Signature]struct{}
}

func (s *session) addRoot(name string, props map[string]interface{}) string {
	id := s.ids.Allocate(name)
	s.kg.AddEntity(graph.Entity{
		ID:         id,
		Name:       name,
		Type:       graph.EntityPerson,
		Properties: props,
		CreatedAt:  s.now,
	})
	s.ids.Register(name, id)
	return id
}

// entity returns the id already bound to name in this extraction, or
// creates a new entity of type t. An existing binding wins even when its
// type differs.
func (s *session) entity(name string, t graph.EntityType) string {
	if id, ok := s.ids.Lookup(name); ok {
		return id
	}
	id := s.ids.Allocate(name)
	s.kg.AddEntity(graph.Entity{
		ID:         id,
		Name:       name,
		Type:       t,
		Properties: map[string]interface{}{},
		CreatedAt:  s.now,
	})
	s.ids.Register(name, id)
	return id
}

// relate appends a triplet unless the same fact was already emitted in this
// extraction.
func (s *session) relate(subject string, p graph.RelationType, object string, confidence float64, source string) {
	t := graph.Triplet{
		Subject:    subject,
		Predicate:  p,
		Object:     object,
		Confidence: confidence,
		Source:     source,
		CreatedAt:  s.now,
	}
	if _, dup := s.seen[t.Signature()]; dup {
		return
	}
	s.seen[t.Signature()] = struct{}{}
	s.kg.AddTriplet(t)
}

// finish copies record metadata and stamps provenance and creation time
func (s *session) finish(rec *record.PersonRecord, defaultSource string) *graph.KnowledgeGraph {
	for k, v := range rec.Metadata {
		s.kg.Metadata[k] = v
	}
	if _, ok := s.kg.Metadata[constants.MetaSource]; !ok {
		s.kg.Metadata[constants.MetaSource] = defaultSource
	}
	s.kg.Metadata[constants.MetaCreatedAt] = s.now.UTC().Format(time.RFC3339Nano)
	return s.kg
}

// identityProperties keeps only the identity fields that are set
func identityProperties(rec *record.PersonRecord) map[string]interface{} {
	props := make(map[string]interface{})
	for k, v := range map[string]string{
		"pronouns":  rec.Pronouns,
		"location":  rec.Location,
		"workplace": rec.Workplace,
		"role":      rec.Role,
	} {
		if v != "" {
			props[k] = v
		}
	}
	return props
}

// identityTriplets links the root to its current location, employer and role
func identityTriplets(s *session, rec *record.PersonRecord) {
	if rec.Location != "" {
		s.relate(s.rootID, graph.RelLivesIn, s.entity(rec.Location, graph.EntityPlace), constants.ConfidenceStructural, "identity")
	}
	if rec.Workplace != "" {
		s.relate(s.rootID, graph.RelWorksAt, s.entity(rec.Workplace, graph.EntityOrganization), constants.ConfidenceStructural, "identity")
	}
	if rec.Role != "" {
		s.relate(s.rootID, graph.RelHasRole, s.entity(rec.Role, graph.EntityRole), constants.ConfidenceStructural, "identity")
	}
}
