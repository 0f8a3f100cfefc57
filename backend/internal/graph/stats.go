package graph

// Statistics is an aggregate view of a graph
type Statistics struct {
	TotalEntities     int                    `json:"total_entities" yaml:"total_entities"`
	TotalTriplets     int                    `json:"total_triplets" yaml:"total_triplets"`
	EntityTypes       map[string]int         `json:"entity_types" yaml:"entity_types"`
	PredicateTypes    map[string]int         `json:"predicate_types" yaml:"predicate_types"`
	DuplicateTriplets int                    `json:"duplicate_triplets" yaml:"duplicate_triplets"`
	DuplicateNames    []string               `json:"duplicate_names,omitempty" yaml:"duplicate_names,omitempty"`
	Metadata          map[string]interface{} `json:"metadata" yaml:"metadata"`
}

// Stats counts entities per type and triplets per predicate. It never fails,
// an empty graph yields zero counts.
func (g *KnowledgeGraph) Stats() Statistics {
	stats := Statistics{
		TotalEntities:     g.EntityCount(),
		TotalTriplets:     g.TripletCount(),
		EntityTypes:       make(map[string]int),
		PredicateTypes:    make(map[string]int),
		DuplicateTriplets: DuplicateSignatures(g.triplets),
		DuplicateNames:    DuplicateNames(g.Entities()),
		Metadata:          g.Metadata,
	}
	if stats.Metadata == nil {
		stats.Metadata = map[string]interface{}{}
	}

	for _, id := range g.order {
		stats.EntityTypes[string(g.entities[id].Type)]++
	}
	for _, t := range g.triplets {
		stats.PredicateTypes[string(t.Predicate)]++
	}
	return stats
}
