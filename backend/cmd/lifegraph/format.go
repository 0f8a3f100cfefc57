package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"lifegraph/backend/internal/graph"
	"lifegraph/backend/internal/query"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func printStats(w io.Writer, stats graph.Statistics) {
	fmt.Fprintln(w, "📊 Knowledge Graph Statistics")
	fmt.Fprintln(w, strings.Repeat("=", 40))
	fmt.Fprintf(w, "Total Entities: %d\n", stats.TotalEntities)
	fmt.Fprintf(w, "Total Triplets: %d\n", stats.TotalTriplets)

	fmt.Fprintln(w, "\n📋 Entity Types:")
	for _, k := range sortedKeys(stats.EntityTypes) {
		fmt.Fprintf(w, "  %s: %d\n", k, stats.EntityTypes[k])
	}

	fmt.Fprintln(w, "\n🔗 Relationship Types:")
	for _, k := range sortedKeys(stats.PredicateTypes) {
		fmt.Fprintf(w, "  %s: %d\n", k, stats.PredicateTypes[k])
	}

	if stats.DuplicateTriplets > 0 {
		fmt.Fprintf(w, "\n⚠️  Repeated triplets: %d\n", stats.DuplicateTriplets)
	}
	if len(stats.DuplicateNames) > 0 {
		fmt.Fprintf(w, "⚠️  Names shared by several entities: %s\n", strings.Join(stats.DuplicateNames, ", "))
	}

	if len(stats.Metadata) > 0 {
		fmt.Fprintln(w, "\n📝 Metadata:")
		keys := make([]string, 0, len(stats.Metadata))
		for k := range stats.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  %s: %v\n", k, stats.Metadata[k])
		}
	}
}

func printContext(w io.Writer, res *query.ContextResult) {
	fmt.Fprintf(w, "🔍 Context for: %s\n", res.Entity.Name)
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintf(w, "Type: %s\n", res.Entity.Type)

	if props := nonEmpty(res.Entity.Properties); len(props) > 0 {
		fmt.Fprintln(w, "Properties:")
		for _, k := range props {
			fmt.Fprintf(w, "  %s: %v\n", k, res.Entity.Properties[k])
		}
	}

	fmt.Fprintln(w, "\n🔗 Relationships:")
	for _, g := range res.Relationships {
		fmt.Fprintf(w, "  %s:\n", g.Label)
		for _, t := range g.Targets {
			if t.IsLiteral() {
				fmt.Fprintf(w, "    • %s\n", t.Value)
				continue
			}
			fmt.Fprintf(w, "    • %s (%s)\n", t.Name, t.Type)
		}
	}

	if len(res.RelatedEntities) > 0 {
		fmt.Fprintf(w, "\n👥 Related Entities: %s\n", strings.Join(res.RelatedEntities, ", "))
	}
}

func printEntities(w io.Writer, entities []graph.Entity) {
	if len(entities) == 0 {
		fmt.Fprintln(w, "No entities found matching the criteria.")
		return
	}
	fmt.Fprintf(w, "📋 Found %d entities:\n", len(entities))
	fmt.Fprintln(w, strings.Repeat("=", 40))
	for _, e := range entities {
		fmt.Fprintf(w, "• %s (%s)\n", e.Name, e.Type)
		for _, k := range nonEmpty(e.Properties) {
			fmt.Fprintf(w, "  %s: %v\n", k, e.Properties[k])
		}
	}
}

func printTriplets(w io.Writer, triplets []graph.Triplet) {
	if len(triplets) == 0 {
		fmt.Fprintln(w, "No triplets found matching the criteria.")
		return
	}
	fmt.Fprintf(w, "🔗 Found %d triplets:\n", len(triplets))
	fmt.Fprintln(w, strings.Repeat("=", 50))
	for _, t := range triplets {
		fmt.Fprintf(w, "• %s --%s--> %s\n", t.Subject, t.Predicate, t.Object)
		if t.Source != "" {
			fmt.Fprintf(w, "  Source: %s\n", t.Source)
		}
		if t.Confidence < 1.0 {
			fmt.Fprintf(w, "  Confidence: %.2f\n", t.Confidence)
		}
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// nonEmpty returns the sorted keys whose values are set
func nonEmpty(props map[string]interface{}) []string {
	var keys []string
	for k, v := range props {
		if v == nil || v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
