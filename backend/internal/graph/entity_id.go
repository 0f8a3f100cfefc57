package graph

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	nonIdentifierChars = regexp.MustCompile(`[^a-zA-Z0-9]`)
	repeatedSeparators = regexp.MustCompile(`_+`)
)

// fallbackID is used for names with no letters or digits
const fallbackID = "entity"

// NormalizeID maps a name onto an identifier-safe string: every character
// outside [a-zA-Z0-9] becomes "_", runs of "_" collapse, and leading or
// trailing "_" are trimmed.
func NormalizeID(name string) string {
	id := nonIdentifierChars.ReplaceAllString(strings.TrimSpace(name), "_")
	id = repeatedSeparators.ReplaceAllString(id, "_")
	return strings.Trim(id, "_")
}

// NameKey is the case-insensitive identity key for a name
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// IDAllocator assigns entity ids for one extraction. It owns the identity
// cache (name key to id) and the collision counter; both are reset between
// extractions.
type IDAllocator struct {
	counter  int
	assigned map[string]struct{}
	byName   map[string]string
}

// NewIDAllocator returns an empty allocator
func NewIDAllocator() *IDAllocator {
	a := &IDAllocator{}
	a.Reset()
	return a
}

// Reset clears the identity cache and the counter
func (a *IDAllocator) Reset() {
	a.counter = 0
	a.assigned = make(map[string]struct{})
	a.byName = make(map[string]string)
}

// Allocate returns a fresh id for name. Without a prior collision the id is
// NormalizeID(name); otherwise the shared counter is incremented and
// appended until the id is unused.
func (a *IDAllocator) Allocate(name string) string {
	base := NormalizeID(name)
	if base == "" {
		base = fallbackID
	}

	id := base
	for {
		if _, taken := a.assigned[id]; !taken {
			break
		}
		a.counter++
		id = fmt.Sprintf("%s_%d", base, a.counter)
	}
	a.assigned[id] = struct{}{}
	return id
}

// Lookup returns the id already assigned to name in this extraction
func (a *IDAllocator) Lookup(name string) (string, bool) {
	id, ok := a.byName[NameKey(name)]
	return id, ok
}

// Register binds name to id in the identity cache
func (a *IDAllocator) Register(name, id string) {
	a.byName[NameKey(name)] = id
}

// Reserve marks id as taken without binding a name
func (a *IDAllocator) Reserve(id string) {
	a.assigned[id] = struct{}{}
}
