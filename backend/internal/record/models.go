package record

import (
	"fmt"
	"strings"
)

// PersonRecord is the normalized output of every source parser. It is built
// fresh per parse and consumed once by an extractor.
type PersonRecord struct {
	Name      string `json:"name" yaml:"name"`
	Pronouns  string `json:"pronouns,omitempty" yaml:"pronouns,omitempty"`
	Location  string `json:"location,omitempty" yaml:"location,omitempty"`
	Workplace string `json:"workplace,omitempty" yaml:"workplace,omitempty"`
	Role      string `json:"role,omitempty" yaml:"role,omitempty"`

	People     []PersonMention `json:"people" yaml:"people"`
	Workplaces []Workplace     `json:"workplaces" yaml:"workplaces"`
	Events     []EventMention  `json:"events" yaml:"events"`
	Interests  []string        `json:"interests" yaml:"interests"`
	Phrases    []string        `json:"phrases" yaml:"phrases"`

	Metadata map[string]interface{} `json:"metadata" yaml:"metadata"`
}

// PersonMention is someone the record's subject knows
type PersonMention struct {
	Name             string `json:"name" yaml:"name"`
	Description      string `json:"description" yaml:"description"`
	RelationshipType string `json:"relationship_type,omitempty" yaml:"relationship_type,omitempty"` // e.g. facebook_friend, parent, cousin
	Source           string `json:"source,omitempty" yaml:"source,omitempty"`
}

// Workplace is one entry of a work history
type Workplace struct {
	Company  string `json:"company" yaml:"company"`
	Years    string `json:"years" yaml:"years"`
	Position string `json:"position,omitempty" yaml:"position,omitempty"`
}

// EventMention is a memorable event or memory
type EventMention struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Source      string `json:"source,omitempty" yaml:"source,omitempty"` // e.g. facebook_posts, birth, marriage
}

// New returns an empty record for name with all collections initialised
func New(name string) *PersonRecord {
	return &PersonRecord{
		Name:       name,
		People:     []PersonMention{},
		Workplaces: []Workplace{},
		Events:     []EventMention{},
		Interests:  []string{},
		Phrases:    []string{},
		Metadata:   make(map[string]interface{}),
	}
}

// Source returns the provenance tag stamped by the parser, or "" when absent
func (r *PersonRecord) Source() string {
	if r.Metadata == nil {
		return ""
	}
	if s, ok := r.Metadata["source"].(string); ok {
		return s
	}
	return ""
}

// Validate checks that the record can be extracted. Only the root name is
// required; blank mentions are removed by DropBlankMentions instead.
func (r *PersonRecord) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrInvalidRecord{Field: "name", Reason: "cannot be empty"}
	}
	return nil
}

// DropBlankMentions removes people, workplace and event entries without a
// name and returns one ErrInvalidMention per removed entry, indexed by its
// position before removal.
func (r *PersonRecord) DropBlankMentions() []ErrInvalidMention {
	var dropped []ErrInvalidMention

	people := r.People[:0]
	for i, p := range r.People {
		if strings.TrimSpace(p.Name) == "" {
			dropped = append(dropped, ErrInvalidMention{Section: "people", Index: i})
			continue
		}
		people = append(people, p)
	}
	r.People = people

	workplaces := r.Workplaces[:0]
	for i, w := range r.Workplaces {
		if strings.TrimSpace(w.Company) == "" {
			dropped = append(dropped, ErrInvalidMention{Section: "workplaces", Index: i})
			continue
		}
		workplaces = append(workplaces, w)
	}
	r.Workplaces = workplaces

	events := r.Events[:0]
	for i, e := range r.Events {
		if strings.TrimSpace(e.Name) == "" {
			dropped = append(dropped, ErrInvalidMention{Section: "events", Index: i})
			continue
		}
		events = append(events, e)
	}
	r.Events = events

	return dropped
}

// Errors

type ErrInvalidRecord struct {
	Field  string
	Reason string
}

func (e ErrInvalidRecord) Error() string {
	return fmt.Sprintf("invalid record: %s - %s", e.Field, e.Reason)
}

type ErrInvalidMention struct {
	Section string
	Index   int
}

func (e ErrInvalidMention) Error() string {
	return fmt.Sprintf("invalid %s entry at index %d: name cannot be empty", e.Section, e.Index)
}
