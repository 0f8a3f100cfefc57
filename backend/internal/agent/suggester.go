package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"lifegraph/backend/internal/adapter"
	"lifegraph/backend/internal/constants"
	"lifegraph/backend/internal/graph"
	"lifegraph/backend/internal/query"
	"lifegraph/backend/pkg/logger"
)

// ContextSource resolves a name to its one-hop context
type ContextSource interface {
	QueryContext(ctx context.Context, name string, maxDepth int) (*query.ContextResult, error)
}

// Completer is the chat capability used to rephrase suggestions
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userMsg string) (string, error)
}

// Suggestions are sentences a communication aid can offer when a name comes up
type Suggestions struct {
	Entity      string           `json:"entity"`
	Type        graph.EntityType `json:"type"`
	Suggestions []string         `json:"suggestions"`
	Rephrased   bool             `json:"rephrased"`
}

// Option configures a Suggester
type Option func(*Suggester)

// WithCompleter enables rephrasing through a language model
func WithCompleter(c Completer) Option {
	return func(s *Suggester) {
		s.llm = c
	}
}

// WithLogger sets the logger
func WithLogger(log *zap.Logger) Option {
	return func(s *Suggester) {
		s.logger = log
	}
}

// Suggester turns entity contexts into conversational suggestions
type Suggester struct {
	source ContextSource
	llm    Completer
	logger *zap.Logger
}

// NewSuggester creates a suggester reading contexts from source
func NewSuggester(source ContextSource, opts ...Option) *Suggester {
	s := &Suggester{source: source, logger: logger.Get()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const rephrasePrompt = `You help a person who uses an augmentative and alternative communication (AAC) device.
You receive a JSON array of candidate sentences about someone in their life.
Rewrite each sentence so it sounds natural and warm when spoken. Keep every fact and name unchanged,
keep one sentence per entry and keep the order. Reply with only a JSON array of strings of the same length.`

// Suggest builds template suggestions for the entity matching name and,
// when a completer is configured, asks it to rephrase them. The templates
// are returned unchanged when rephrasing fails.
func (s *Suggester) Suggest(ctx context.Context, name string) (*Suggestions, error) {
	res, err := s.source.QueryContext(ctx, name, constants.DefaultQueryDepth)
	if err != nil {
		return nil, err
	}

	out := &Suggestions{
		Entity:      res.Entity.Name,
		Type:        res.Entity.Type,
		Suggestions: Templates(res),
	}
	if s.llm == nil {
		return out, nil
	}

	rephrased, err := s.rephrase(ctx, out.Suggestions)
	if err != nil {
		s.logger.Warn("Failed to rephrase suggestions, using templates",
			zap.String("entity", out.Entity),
			zap.Error(err),
		)
		return out, nil
	}
	out.Suggestions = rephrased
	out.Rephrased = true
	return out, nil
}

func (s *Suggester) rephrase(ctx context.Context, templates []string) ([]string, error) {
	payload, err := json.Marshal(templates)
	if err != nil {
		return nil, err
	}

	content, err := s.llm.Complete(ctx, rephrasePrompt, string(payload))
	if err != nil {
		return nil, err
	}
	list, err := adapter.ParseStringList(content)
	if err != nil {
		return nil, err
	}
	if len(list) != len(templates) {
		return nil, fmt.Errorf("expected %d suggestions, got %d", len(templates), len(list))
	}
	for _, item := range list {
		if strings.TrimSpace(item) == "" {
			return nil, fmt.Errorf("empty suggestion in model output")
		}
	}
	return list, nil
}

// ============================================================================
// Templates
// ============================================================================

// Templates derives suggestions from a context result. At most three
// phrases are included; an entity with no usable relationships gets a
// single prompt to talk about it.
func Templates(res *query.ContextResult) []string {
	name := res.Entity.Name
	rels := res.Relationships
	var out []string

	first := func(label string) (string, bool) {
		targets, ok := rels.Get(label)
		if !ok || len(targets) == 0 {
			return "", false
		}
		return targets[0].Label(), true
	}
	has := func(label string) bool {
		_, ok := rels.Get(label)
		return ok
	}

	if role, ok := first(string(graph.RelHasRole)); ok {
		out = append(out, fmt.Sprintf("Would you like to message %s, your %s?", name, role))
		if strings.EqualFold(role, "slt") {
			out = append(out, fmt.Sprintf("Ask %s about speech therapy.", name))
		} else {
			out = append(out, fmt.Sprintf("Discuss work with %s.", name))
		}
	}
	if work, ok := first(string(graph.RelCoauthored)); ok {
		out = append(out, fmt.Sprintf("%s co-authored %s with you.", name, work))
	}
	if has(query.IncomingLabel(graph.RelMetAt)) {
		out = append(out, fmt.Sprintf("You have met %s before.", name))
	}
	if has(query.IncomingLabel(graph.RelKnows)) && res.Entity.Type != "" {
		out = append(out, fmt.Sprintf("%s is a %s you know.", name, strings.ToLower(string(res.Entity.Type))))
	}

	switch {
	case has(string(graph.RelSpouseOf)) || has(query.IncomingLabel(graph.RelSpouseOf)):
		out = append(out, fmt.Sprintf("Plan date night with %s.", name))
	case isFamily(rels):
		out = append(out, fmt.Sprintf("Plan family time with %s.", name))
	}

	if org, ok := first(string(graph.RelWorksAt)); ok {
		out = append(out, fmt.Sprintf("%s works at %s.", name, org))
	}
	if place, ok := first(string(graph.RelLivesIn)); ok {
		out = append(out, fmt.Sprintf("%s lives in %s.", name, place))
	}
	if place, ok := first(string(graph.RelHappenedIn)); ok {
		out = append(out, fmt.Sprintf("%s happened in %s.", name, place))
	}
	if res.Entity.Type == graph.EntityEvent {
		out = append(out, fmt.Sprintf("Tell me about the %s.", name))
	}
	if interest, ok := first(string(graph.RelHasInterest)); ok {
		out = append(out, fmt.Sprintf("Ask %s about %s.", name, interest))
	}
	if phrases, ok := rels.Get(string(graph.RelSaidPhrase)); ok {
		for i, p := range phrases {
			if i == 3 {
				break
			}
			out = append(out, fmt.Sprintf("You often say: '%s'", p.Label()))
		}
	}

	if len(out) == 0 {
		out = append(out, fmt.Sprintf("Tell me about %s.", name))
	}
	return out
}

var familyPredicates = []graph.RelationType{
	graph.RelIsFamilyWith, graph.RelParentOf, graph.RelChildOf, graph.RelSiblingOf,
	graph.RelGrandparentOf, graph.RelGrandchildOf, graph.RelAuntUncleOf, graph.RelNieceNephewOf,
	graph.RelCousinOf,
}

func isFamily(rels query.Relationships) bool {
	for _, p := range familyPredicates {
		if _, ok := rels.Get(string(p)); ok {
			return true
		}
		if _, ok := rels.Get(query.IncomingLabel(p)); ok {
			return true
		}
	}
	return false
}
