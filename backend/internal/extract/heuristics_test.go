package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRolesInDescription(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"keyword", "My SLT, very patient", []string{"slt"}},
		{"works as", "Works as a nurse, lives nearby", []string{"a nurse"}},
		{"keyword and phrase", "Teacher who works at the school", []string{"teacher", "the school"}},
		{"nothing", "old friend from university", nil},
		{"substring is not a keyword", "managerial type", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RolesInDescription(tt.in))
		})
	}
}

func TestAttributeHeuristics(t *testing.T) {
	assert.True(t, WearsGlasses("Wears Glasses, tall"))
	assert.False(t, WearsGlasses("tall"))

	n, ok := ChildrenCount("Married, 3 children")
	assert.True(t, ok)
	assert.Equal(t, "3", n)

	n, ok = ChildrenCount("has 1 child")
	assert.True(t, ok)
	assert.Equal(t, "1", n)

	_, ok = ChildrenCount("no kids")
	assert.False(t, ok)
}

func TestCoauthoredWork(t *testing.T) {
	work, ok := CoauthoredWork("collaborator, co-authored the Analytical Engine notes")
	assert.True(t, ok)
	assert.Equal(t, "the analytical engine notes", work)

	work, ok = CoauthoredWork("Coauthored a paper on AAC. Lovely person")
	assert.True(t, ok)
	assert.Equal(t, "a paper on aac", work)

	_, ok = CoauthoredWork("authored nothing")
	assert.False(t, ok)
}

func TestEventHeuristics(t *testing.T) {
	desc := "We met Sarah at Central Park in New York with Tom"
	assert.Equal(t, []string{"Central Park", "New York"}, EventPlaces(desc))
	assert.Equal(t, []string{"Sarah", "Tom"}, EventPeople(desc))

	assert.Empty(t, EventPlaces("nothing here in lowercase"))
	assert.Empty(t, EventPeople(""))
}

func TestMessagingConfidence(t *testing.T) {
	assert.InDelta(t, 0.62, MessagingConfidence("Frequent Facebook messenger contact (12 messages)"), 1e-9)
	assert.Equal(t, 0.9, MessagingConfidence("Frequent Facebook messenger contact (250 messages)"))
	assert.Equal(t, 0.9, MessagingConfidence("contact"))
}

func TestPostHeuristics(t *testing.T) {
	text := "Lunch with Anna Smith and Bob at Blue Cafe, then visited Rome. Thanks @Carla and Bob"
	assert.Equal(t, []string{"Anna Smith", "Bob", "Carla"}, PostMentions(text))
	assert.Equal(t, []string{"Blue Cafe", "Rome"}, PostLocations(text))

	assert.True(t, IsPlaceLike("Luigi's Restaurant"))
	assert.False(t, IsPlaceLike("Jazz"))
}

func TestLifeEventPlace(t *testing.T) {
	place, ok := LifeEventPlace("Born on 1 JAN 1900 in Cork, Ireland")
	assert.True(t, ok)
	assert.Equal(t, "Cork, Ireland", place)

	_, ok = LifeEventPlace("Died on Unknown date in Unknown place")
	assert.False(t, ok)

	_, ok = LifeEventPlace("no place given")
	assert.False(t, ok)
}

func TestFamilyPlaces(t *testing.T) {
	assert.Equal(t, []string{"Cork, Ireland"}, FamilyPlaces("Father, born in Cork, Ireland"))
	assert.Equal(t, []string{"Leeds", "York"}, FamilyPlaces("Sibling, from Leeds, lived in York"))
	assert.Empty(t, FamilyPlaces("Mother"))
}
