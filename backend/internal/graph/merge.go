package graph

import (
	"time"
)

// ============================================================================
// Merge Engine
// ============================================================================

// MergeReport summarises what a merge did
type MergeReport struct {
	EntitiesAdded   int `json:"entities_added"`
	EntitiesMatched int `json:"entities_matched"`
	EntitiesRenamed int `json:"entities_renamed"`
	TripletsAdded   int `json:"triplets_added"`
	TripletsSkipped int `json:"triplets_skipped"`
}

// Merge combines a persisted graph with a freshly extracted one.
//
// Entities of incoming whose lowercased name matches an entity already in the
// merged graph are dropped and every incoming triplet that referenced them is
// rewritten to the surviving id. Identity is indexed from existing and from
// incoming entities as they are added; existing is never deduplicated against
// itself, so Merge is not commutative. Incoming triplets whose exact
// (subject, predicate, object) already occurs in existing are skipped.
//
// Metadata is the union with incoming winning on collision; last_updated is
// incoming's created_at, or now when incoming carries none.
//
// Neither input is modified.
func Merge(existing, incoming *KnowledgeGraph, now time.Time) (*KnowledgeGraph, MergeReport) {
	var report MergeReport
	merged := New()

	for _, e := range existing.Entities() {
		merged.AddEntity(e)
	}
	for _, t := range existing.triplets {
		merged.AddTriplet(t)
	}

	identity := make(map[string]string, existing.EntityCount()+incoming.EntityCount())
	for _, e := range existing.Entities() {
		identity[NameKey(e.Name)] = e.ID
	}

	// Rewrites are keyed on the ids incoming was extracted with, so a
	// reference is redirected at most once.
	remap := make(map[string]string)
	for _, e := range incoming.Entities() {
		key := NameKey(e.Name)
		if survivorID, ok := identity[key]; ok {
			remap[e.ID] = survivorID
			report.EntitiesMatched++
			continue
		}

		// An unrelated entity already owns this id; move the newcomer aside
		// rather than overwrite it.
		if merged.HasEntity(e.ID) {
			freshID := nextFreeID(e.ID, merged, incoming)
			remap[e.ID] = freshID
			e.ID = freshID
			report.EntitiesRenamed++
		}

		merged.AddEntity(e)
		identity[key] = e.ID
		report.EntitiesAdded++
	}
	pending := incoming.Triplets()
	rewriteReferences(pending, remap)

	seen := make(map[Signature]struct{}, existing.TripletCount())
	for _, t := range existing.triplets {
		seen[t.Signature()] = struct{}{}
	}
	for _, t := range pending {
		if _, dup := seen[t.Signature()]; dup {
			report.TripletsSkipped++
			continue
		}
		merged.AddTriplet(t)
		report.TripletsAdded++
	}

	for k, v := range existing.Metadata {
		merged.Metadata[k] = v
	}
	for k, v := range incoming.Metadata {
		merged.Metadata[k] = v
	}
	if createdAt, ok := incoming.Metadata["created_at"]; ok && createdAt != nil && createdAt != "" {
		merged.Metadata["last_updated"] = createdAt
	} else {
		merged.Metadata["last_updated"] = now.UTC().Format(time.RFC3339Nano)
	}

	return merged, report
}

// rewriteReferences redirects subjects and objects found in remap
func rewriteReferences(triplets []Triplet, remap map[string]string) {
	if len(remap) == 0 {
		return
	}
	for i := range triplets {
		if to, ok := remap[triplets[i].Subject]; ok {
			triplets[i].Subject = to
		}
		if to, ok := remap[triplets[i].Object]; ok {
			triplets[i].Object = to
		}
	}
}

func nextFreeID(base string, graphs ...*KnowledgeGraph) string {
	alloc := NewIDAllocator()
	for _, g := range graphs {
		for _, id := range g.order {
			alloc.Reserve(id)
		}
	}
	return alloc.Allocate(base)
}
