package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifegraph/backend/internal/graph"
	"lifegraph/backend/internal/record"
)

var fixedNow = time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func findTriplet(kg *graph.KnowledgeGraph, s string, p graph.RelationType, o string) (graph.Triplet, bool) {
	for _, t := range kg.Triplets() {
		if t.Subject == s && t.Predicate == p && t.Object == o {
			return t, true
		}
	}
	return graph.Triplet{}, false
}

func entitiesOfType(kg *graph.KnowledgeGraph, et graph.EntityType) []string {
	var names []string
	for _, e := range kg.Entities() {
		if e.Type == et {
			names = append(names, e.Name)
		}
	}
	return names
}

func TestGenericExtractor_CoauthorScenario(t *testing.T) {
	rec := record.New("Ada Lovelace")
	rec.People = append(rec.People, record.PersonMention{
		Name:        "Charles Babbage",
		Description: "collaborator, co-authored the Analytical Engine notes",
	})

	kg, err := NewGenericExtractor(WithClock(fixedClock)).Extract(rec)
	require.NoError(t, err)

	assert.Equal(t, []string{"Ada Lovelace", "Charles Babbage"}, entitiesOfType(kg, graph.EntityPerson))

	knows, ok := findTriplet(kg, "Ada_Lovelace", graph.RelKnows, "Charles_Babbage")
	require.True(t, ok)
	assert.Equal(t, 1.0, knows.Confidence)
	assert.Equal(t, "people", knows.Source)

	notes, ok := kg.Entity("the_analytical_engine_notes")
	require.True(t, ok)
	assert.Equal(t, graph.EntityMemory, notes.Type)
	assert.Equal(t, "the analytical engine notes", notes.Name)

	coauthored, ok := findTriplet(kg, "Ada_Lovelace", graph.RelCoauthored, "the_analytical_engine_notes")
	require.True(t, ok)
	assert.Equal(t, "description", coauthored.Source)
	assert.Equal(t, 2, kg.TripletCount())
}

func TestGenericExtractor_FullRecord(t *testing.T) {
	rec := record.New("Sam Jones")
	rec.Pronouns = "they/them"
	rec.Location = "Manchester"
	rec.Workplace = "Acme"
	rec.Role = "Engineer"
	rec.People = []record.PersonMention{
		{Name: "Lisa", Description: "My SLT, wears glasses, 2 children"},
	}
	rec.Workplaces = []record.Workplace{{Company: "Acme", Years: "2019-2023"}, {Company: "Globex", Years: "2015-2019"}}
	rec.Events = []record.EventMention{{Name: "Graduation", Description: "Ceremony in Leeds where I met Priya"}}
	rec.Interests = []string{"Jazz", "Chess"}
	rec.Phrases = []string{"Let me think"}
	rec.Metadata["file"] = "sam.md"

	kg, err := NewGenericExtractor(WithClock(fixedClock)).Extract(rec)
	require.NoError(t, err)

	root, ok := kg.Entity("Sam_Jones")
	require.True(t, ok)
	assert.Equal(t, map[string]interface{}{
		"pronouns": "they/them", "location": "Manchester", "workplace": "Acme", "role": "Engineer",
	}, root.Properties)
	assert.Equal(t, fixedNow, root.CreatedAt)

	_, ok = findTriplet(kg, "Sam_Jones", graph.RelLivesIn, "Manchester")
	assert.True(t, ok)
	identityJob, ok := findTriplet(kg, "Sam_Jones", graph.RelWorksAt, "Acme")
	require.True(t, ok)
	assert.Equal(t, "identity", identityJob.Source)

	// Acme appears twice; the workplace history entry is the same fact
	worksAt := 0
	for _, tr := range kg.Triplets() {
		if tr.Predicate == graph.RelWorksAt {
			worksAt++
		}
	}
	assert.Equal(t, 2, worksAt)
	globex, ok := findTriplet(kg, "Sam_Jones", graph.RelWorksAt, "Globex")
	require.True(t, ok)
	assert.Equal(t, 0.8, globex.Confidence)

	role, ok := findTriplet(kg, "Lisa", graph.RelHasRole, "slt")
	require.True(t, ok)
	assert.Equal(t, 0.9, role.Confidence)
	_, ok = findTriplet(kg, "Lisa", graph.RelWears, "glasses")
	assert.True(t, ok)
	_, ok = findTriplet(kg, "Lisa", graph.RelHasChildren, "2")
	assert.True(t, ok)
	assert.False(t, kg.HasEntity("glasses"))

	_, ok = findTriplet(kg, "Graduation", graph.RelHappenedIn, "Leeds")
	assert.True(t, ok)
	met, ok := findTriplet(kg, "Sam_Jones", graph.RelMetAt, "Priya")
	require.True(t, ok)
	assert.Equal(t, "event_description", met.Source)

	_, ok = findTriplet(kg, "Sam_Jones", graph.RelHasInterest, "Chess")
	assert.True(t, ok)
	_, ok = findTriplet(kg, "Sam_Jones", graph.RelSaidPhrase, "Let_me_think")
	assert.True(t, ok)

	assert.Equal(t, "sam.md", kg.Metadata["file"])
	assert.Equal(t, "markdown", kg.Metadata["source"])
	assert.Equal(t, "2024-06-01T09:30:00Z", kg.Metadata["created_at"])
}

func TestGenericExtractor_OmitsEmptyProperties(t *testing.T) {
	kg, err := NewGenericExtractor().Extract(record.New("Solo"))
	require.NoError(t, err)

	root, _ := kg.Entity("Solo")
	assert.Empty(t, root.Properties)
	assert.Equal(t, 1, kg.EntityCount())
	assert.Equal(t, 0, kg.TripletCount())
}

func TestGenericExtractor_IdentityCacheIsPerExtraction(t *testing.T) {
	ex := NewGenericExtractor()

	first := record.New("Ada")
	first.People = []record.PersonMention{{Name: "Bob"}, {Name: "bob"}}
	kg1, err := ex.Extract(first)
	require.NoError(t, err)
	assert.Equal(t, 2, kg1.EntityCount())

	second := record.New("Bob")
	kg2, err := ex.Extract(second)
	require.NoError(t, err)
	// A fresh extraction starts from an empty cache, so no suffix is needed
	assert.True(t, kg2.HasEntity("Bob"))
}

func TestGenericExtractor_IDCollisionGetsSuffix(t *testing.T) {
	rec := record.New("Jo")
	rec.Interests = []string{"Rock & Roll", "Rock Roll"}

	kg, err := NewGenericExtractor().Extract(rec)
	require.NoError(t, err)

	assert.True(t, kg.HasEntity("Rock_Roll"))
	second, ok := kg.Entity("Rock_Roll_1")
	require.True(t, ok)
	assert.Equal(t, "Rock Roll", second.Name)
}

func TestGenericExtractor_RejectsNamelessRecord(t *testing.T) {
	_, err := NewGenericExtractor().Extract(record.New(""))
	assert.Error(t, err)
}

func TestGenericExtractor_SkipsNamelessMentions(t *testing.T) {
	rec := record.New("Ada Lovelace")
	rec.People = []record.PersonMention{{Name: "", Description: "met at a ball"}, {Name: "Charles Babbage"}}
	rec.Events = []record.EventMention{{Name: "", Description: "trip in Paris with Bob"}}

	kg, err := NewGenericExtractor(WithClock(fixedClock)).Extract(rec)
	require.NoError(t, err)

	assert.Equal(t, []string{"Ada Lovelace", "Charles Babbage"}, entitiesOfType(kg, graph.EntityPerson))
	assert.Empty(t, entitiesOfType(kg, graph.EntityEvent))
	_, ok := findTriplet(kg, "Ada_Lovelace", graph.RelKnows, "Charles_Babbage")
	assert.True(t, ok)
}

func TestSocialExtractor(t *testing.T) {
	rec := record.New("Alex Doe")
	rec.Location = "Berlin"
	rec.Metadata["source"] = "facebook"
	rec.People = []record.PersonMention{
		{Name: "Jamie", Description: "Facebook friend since 2015-01-01", RelationshipType: "facebook_friend", Source: "facebook_friends"},
		{Name: "Morgan", Description: "Frequent Facebook messenger contact (30 messages)", RelationshipType: "frequent_contact", Source: "facebook_messages"},
	}
	rec.Workplaces = []record.Workplace{
		{Company: "Initech", Years: "2018-01-01 - Present", Position: "Analyst"},
		{Company: "TU Berlin", Years: "Education", Position: "Student"},
		{Company: "Hooli", Years: "Unknown period", Position: "Unknown"},
	}
	rec.Events = []record.EventMention{
		{Name: "Facebook post from 2023-03-03", Description: "Dinner with Chris at Blue Cafe", Source: "facebook_posts"},
		{Name: "Summer Party", Description: "Facebook event on 2023-07-01", Source: "facebook_events"},
	}
	rec.Interests = []string{"Facebook group: Berlin Runners", "#coffee", "City Museum", "Jazz"}

	kg, err := NewSocialExtractor(WithClock(fixedClock)).Extract(rec)
	require.NoError(t, err)

	root, _ := kg.Entity("Alex_Doe")
	assert.Equal(t, "facebook", root.Properties["source"])

	friend, ok := findTriplet(kg, "Alex_Doe", graph.RelFriendsWith, "Jamie")
	require.True(t, ok)
	assert.Equal(t, "facebook_friends", friend.Source)

	messaged, ok := findTriplet(kg, "Alex_Doe", graph.RelMessaged, "Morgan")
	require.True(t, ok)
	assert.InDelta(t, 0.8, messaged.Confidence, 1e-9)
	knows, ok := findTriplet(kg, "Alex_Doe", graph.RelKnows, "Morgan")
	require.True(t, ok)
	assert.Equal(t, 0.9, knows.Confidence)

	job, _ := findTriplet(kg, "Alex_Doe", graph.RelWorksAt, "Initech")
	assert.Equal(t, 0.9, job.Confidence)
	school, _ := findTriplet(kg, "Alex_Doe", graph.RelWorksAt, "TU_Berlin")
	assert.Equal(t, 0.7, school.Confidence)
	_, ok = findTriplet(kg, "Alex_Doe", graph.RelHasRole, "Analyst")
	assert.True(t, ok)
	assert.False(t, kg.HasEntity("Unknown"))

	post, ok := kg.Entity("Facebook_post_from_2023_03_03")
	require.True(t, ok)
	assert.Equal(t, graph.EntityPost, post.Type)
	_, ok = findTriplet(kg, "Alex_Doe", graph.RelPosted, post.ID)
	assert.True(t, ok)
	_, ok = findTriplet(kg, "Alex_Doe", graph.RelAttendedEvent, "Summer_Party")
	assert.True(t, ok)

	mention, ok := findTriplet(kg, "Alex_Doe", graph.RelKnows, "Chris")
	require.True(t, ok)
	assert.Equal(t, 0.6, mention.Confidence)
	visit, ok := findTriplet(kg, "Alex_Doe", graph.RelCheckedInAt, "Blue_Cafe")
	require.True(t, ok)
	assert.Equal(t, "facebook_post_locations", visit.Source)

	group, ok := kg.Entity("Berlin_Runners")
	require.True(t, ok)
	assert.Equal(t, graph.EntityGroup, group.Type)
	_, ok = findTriplet(kg, "Alex_Doe", graph.RelMemberOf, "Berlin_Runners")
	assert.True(t, ok)

	hashtag, ok := findTriplet(kg, "Alex_Doe", graph.RelHasInterest, "coffee")
	require.True(t, ok)
	assert.Equal(t, "facebook_posts", hashtag.Source)

	museum, ok := findTriplet(kg, "Alex_Doe", graph.RelCheckedInAt, "City_Museum")
	require.True(t, ok)
	assert.Equal(t, 0.7, museum.Confidence)
	_, ok = findTriplet(kg, "Alex_Doe", graph.RelCheckedInAt, "Jazz")
	assert.False(t, ok)

	assert.Equal(t, "facebook", kg.Metadata["source"])
}

func TestGenealogyExtractor(t *testing.T) {
	rec := record.New("Mary Walsh")
	rec.Location = "Cork, Ireland"
	rec.Metadata["source"] = "ancestry_gedcom"
	rec.People = []record.PersonMention{
		{Name: "John Walsh", Description: "Father, born in Dublin", RelationshipType: "parent"},
		{Name: "Ann Walsh", Description: "Mother"},
		{Name: "Peter Walsh", Description: "Sibling", RelationshipType: "sibling"},
		{Name: "Tom Byrne", Description: "Spouse", RelationshipType: "spouse"},
		{Name: "Kate Byrne", Description: "Child", RelationshipType: "child"},
		{Name: "Nora Walsh", Description: "Grandmother", RelationshipType: "grandparent"},
		{Name: "Liam Walsh", Description: "Uncle", RelationshipType: "aunt_uncle"},
		{Name: "Sean Walsh", Description: "Cousin", RelationshipType: "cousin"},
	}
	rec.Events = []record.EventMention{
		{Name: "Birth of Mary Walsh", Description: "Born on 2 MAR 1950 in Cork, Ireland"},
		{Name: "Marriage of Mary Walsh and Tom Byrne", Description: "Married on 5 MAY 1975 in Galway"},
		{Name: "Death of Mary Walsh", Description: "Died on Unknown date in Unknown place"},
	}
	rec.Interests = []string{"Family connection to Dublin", "Family connection to Galway"}

	kg, err := NewGenealogyExtractor(WithClock(fixedClock)).Extract(rec)
	require.NoError(t, err)

	root := "Mary_Walsh"
	for _, want := range []graph.Signature{
		{Subject: "John_Walsh", Predicate: graph.RelParentOf, Object: root},
		{Subject: root, Predicate: graph.RelChildOf, Object: "John_Walsh"},
		{Subject: "Ann_Walsh", Predicate: graph.RelParentOf, Object: root},
		{Subject: root, Predicate: graph.RelSiblingOf, Object: "Peter_Walsh"},
		{Subject: "Peter_Walsh", Predicate: graph.RelSiblingOf, Object: root},
		{Subject: root, Predicate: graph.RelSpouseOf, Object: "Tom_Byrne"},
		{Subject: "Tom_Byrne", Predicate: graph.RelSpouseOf, Object: root},
		{Subject: root, Predicate: graph.RelParentOf, Object: "Kate_Byrne"},
		{Subject: "Kate_Byrne", Predicate: graph.RelChildOf, Object: root},
		{Subject: "Nora_Walsh", Predicate: graph.RelGrandparentOf, Object: root},
		{Subject: root, Predicate: graph.RelGrandchildOf, Object: "Nora_Walsh"},
		{Subject: "Liam_Walsh", Predicate: graph.RelAuntUncleOf, Object: root},
		{Subject: root, Predicate: graph.RelNieceNephewOf, Object: "Liam_Walsh"},
		{Subject: root, Predicate: graph.RelCousinOf, Object: "Sean_Walsh"},
		{Subject: root, Predicate: graph.RelIsFamilyWith, Object: "Sean_Walsh"},
		{Subject: root, Predicate: graph.RelBornIn, Object: "Cork_Ireland"},
		{Subject: "Birth_of_Mary_Walsh", Predicate: graph.RelHappenedIn, Object: "Cork_Ireland"},
		{Subject: root, Predicate: graph.RelMarriedIn, Object: "Galway"},
		{Subject: root, Predicate: graph.RelHasInterest, Object: "Dublin"},
	} {
		_, ok := findTriplet(kg, want.Subject, want.Predicate, want.Object)
		assert.True(t, ok, "missing %v", want)
	}

	grand, _ := findTriplet(kg, "Nora_Walsh", graph.RelGrandparentOf, root)
	assert.Equal(t, 0.85, grand.Confidence)
	cousin, _ := findTriplet(kg, root, graph.RelCousinOf, "Sean_Walsh")
	assert.Equal(t, 0.75, cousin.Confidence)

	// The record location and the birth event both say Cork; one fact survives
	bornIn := 0
	for _, tr := range kg.Triplets() {
		if tr.Predicate == graph.RelBornIn {
			bornIn++
		}
	}
	assert.Equal(t, 1, bornIn)

	_, ok := findTriplet(kg, root, graph.RelDiedIn, "Unknown_place")
	assert.False(t, ok)

	dublin, _ := kg.Entity("Dublin")
	assert.Equal(t, graph.EntityPlace, dublin.Type)
	familyPlace, ok := findTriplet(kg, root, graph.RelHasInterest, "Dublin")
	require.True(t, ok)
	assert.Equal(t, "ancestry_family_places", familyPlace.Source)

	assert.Equal(t, "ancestry_gedcom", kg.Metadata["source"])
}

func TestDispatcher_For(t *testing.T) {
	d := NewDispatcher()
	assert.Equal(t, "social", d.For("facebook").Name())
	assert.Equal(t, "genealogy", d.For("ancestry_gedcom").Name())
	assert.Equal(t, "generic", d.For("markdown").Name())
	assert.Equal(t, "generic", d.For("").Name())

	rec := record.New("Mia")
	rec.Metadata["source"] = "facebook"
	rec.People = []record.PersonMention{{Name: "Zed", RelationshipType: "facebook_friend"}}
	kg, err := d.Extract(rec)
	require.NoError(t, err)
	_, ok := findTriplet(kg, "Mia", graph.RelFriendsWith, "Zed")
	assert.True(t, ok)
}
