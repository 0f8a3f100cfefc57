package graph

import (
	"regexp"
	"strings"
)

// ============================================================================
// Name and Fact Deduplication Helpers
// ============================================================================

var whitespaceRun = regexp.MustCompile(`\s+`)

// CleanName trims a free-text name and collapses inner whitespace. Trailing
// sentence punctuation is dropped.
func CleanName(name string) string {
	name = whitespaceRun.ReplaceAllString(strings.TrimSpace(name), " ")
	return strings.TrimRight(name, ".,!?;:")
}

// UniqueNames drops empty and repeated names, comparing case-insensitively
// and keeping the first spelling seen.
func UniqueNames(names []string) []string {
	if len(names) == 0 {
		return names
	}

	seen := make(map[string]struct{}, len(names))
	unique := make([]string, 0, len(names))
	for _, name := range names {
		key := NameKey(name)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, name)
	}
	return unique
}

// DuplicateSignatures counts triplets whose signature already occurred
// earlier in the list. Merge only deduplicates incoming facts against the
// persisted graph, so repeated facts inside one graph are possible.
func DuplicateSignatures(triplets []Triplet) int {
	seen := make(map[Signature]struct{}, len(triplets))
	dups := 0
	for _, t := range triplets {
		sig := t.Signature()
		if _, ok := seen[sig]; ok {
			dups++
			continue
		}
		seen[sig] = struct{}{}
	}
	return dups
}

// DuplicateNames returns name keys shared by more than one entity
func DuplicateNames(entities []Entity) []string {
	counts := make(map[string]int, len(entities))
	var order []string
	for _, e := range entities {
		key := NameKey(e.Name)
		if counts[key] == 0 {
			order = append(order, key)
		}
		counts[key]++
	}

	var dups []string
	for _, key := range order {
		if counts[key] > 1 {
			dups = append(dups, key)
		}
	}
	return dups
}
