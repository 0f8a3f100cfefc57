package extract

import (
	"lifegraph/backend/internal/constants"
	"lifegraph/backend/internal/graph"
	"lifegraph/backend/internal/record"
)

// Dispatcher holds one extractor per provenance and picks by the record's
// metadata["source"] tag.
type Dispatcher struct {
	generic   *GenericExtractor
	social    *SocialExtractor
	genealogy *GenealogyExtractor
}

// NewDispatcher creates the three extractor variants with shared options
func NewDispatcher(opts ...Option) *Dispatcher {
	return &Dispatcher{
		generic:   NewGenericExtractor(opts...),
		social:    NewSocialExtractor(opts...),
		genealogy: NewGenealogyExtractor(opts...),
	}
}

// For returns the extractor for a provenance tag. Unknown tags fall back to
// the generic extractor.
func (d *Dispatcher) For(source string) Extractor {
	switch source {
	case constants.SourceFacebook:
		return d.social
	case constants.SourceGenealogy:
		return d.genealogy
	default:
		return d.generic
	}
}

// Extract dispatches on rec's provenance
func (d *Dispatcher) Extract(rec *record.PersonRecord) (*graph.KnowledgeGraph, error) {
	return d.For(rec.Source()).Extract(rec)
}
