package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Ada Lovelace", "Ada_Lovelace"},
		{"punctuation runs collapse", "  St. Mary's -- Hospital ", "St_Mary_s_Hospital"},
		{"leading and trailing trimmed", "!!Bob!!", "Bob"},
		{"non ascii letters replaced", "José Ñúñez", "Jos_ez"},
		{"only symbols", "???", ""},
		{"digits kept", "Route 66", "Route_66"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeID(tt.in))
		})
	}
}

func TestIDAllocator_Collisions(t *testing.T) {
	alloc := NewIDAllocator()

	assert.Equal(t, "Lisa", alloc.Allocate("Lisa"))
	assert.Equal(t, "Lisa_1", alloc.Allocate("Lisa!"))
	assert.Equal(t, "Mark", alloc.Allocate("Mark"))
	// The counter is shared across names
	assert.Equal(t, "Mark_2", alloc.Allocate("Mark?"))
	assert.Equal(t, "Lisa_3", alloc.Allocate("Lisa"))
}

func TestIDAllocator_SuffixSkipsTakenIDs(t *testing.T) {
	alloc := NewIDAllocator()
	alloc.Reserve("Bob")
	alloc.Reserve("Bob_1")

	assert.Equal(t, "Bob_2", alloc.Allocate("Bob"))
}

func TestIDAllocator_EmptyName(t *testing.T) {
	alloc := NewIDAllocator()
	assert.Equal(t, "entity", alloc.Allocate("???"))
	assert.Equal(t, "entity_1", alloc.Allocate(""))
}

func TestIDAllocator_DeterministicAfterReset(t *testing.T) {
	alloc := NewIDAllocator()
	first := alloc.Allocate("Charles Babbage")
	alloc.Register("Charles Babbage", first)

	id, ok := alloc.Lookup("  charles babbage ")
	assert.True(t, ok)
	assert.Equal(t, first, id)

	alloc.Reset()
	_, ok = alloc.Lookup("Charles Babbage")
	assert.False(t, ok)
	assert.Equal(t, first, alloc.Allocate("Charles Babbage"))
}
