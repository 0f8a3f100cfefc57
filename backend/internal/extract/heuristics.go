package extract

import (
	"regexp"
	"strconv"
	"strings"

	"lifegraph/backend/internal/graph"
)

// Free-text heuristics. Every function here is pure: text in, zero or more
// candidate facts out. No match means no fact; none of them fail.

var (
	roleKeywordPattern = regexp.MustCompile(`\b(slt|speech therapist|teacher|manager|director|researcher|developer)\b`)
	worksAsPattern     = regexp.MustCompile(`\bworks? (?:as|at) ([^,.;]+)`)
	childrenPattern    = regexp.MustCompile(`(\d+)\s*child(?:ren)?\b`)
	coauthoredPattern  = regexp.MustCompile(`\bco-?authored\s+([^,.;]+)`)

	eventPlacePattern  = regexp.MustCompile(`\b(?:in|at) ([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)`)
	eventPeoplePattern = regexp.MustCompile(`\b(?:met|with) ([A-Z][a-z]+)`)

	messageCountPattern = regexp.MustCompile(`(\d+)\s+messages`)
	postMentionPattern  = regexp.MustCompile(`(?:\bwith\s+|\band\s+|@)([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)`)
	postPlacePattern    = regexp.MustCompile(`\b(?:at|in|visited)\s+([A-Z][a-zA-Z]*(?:\s+[A-Z][a-zA-Z]*)*)`)

	lifeEventPlacePattern = regexp.MustCompile(`\b(?:in|at)\s+([A-Z][^.;!?]*)`)
	trailingPreposition   = regexp.MustCompile(`\s+(?:on|at|in)$`)
	familyPlacePattern    = regexp.MustCompile(`\b(?i:born in|from|lived in|died in|married in)\s+([A-Z][A-Za-z]*(?:[\s,]+[A-Z][A-Za-z]*)*)`)
)

var placeKeywords = []string{"restaurant", "cafe", "park", "museum", "theater"}

// RolesInDescription returns role names mentioned in a person description,
// lowercased, keyword matches first then "works as/at" phrases.
func RolesInDescription(description string) []string {
	lower := strings.ToLower(description)
	var roles []string
	for _, m := range roleKeywordPattern.FindAllStringSubmatch(lower, -1) {
		roles = append(roles, m[1])
	}
	for _, m := range worksAsPattern.FindAllStringSubmatch(lower, -1) {
		if role := graph.CleanName(m[1]); role != "" {
			roles = append(roles, role)
		}
	}
	return roles
}

// WearsGlasses reports whether the description mentions glasses
func WearsGlasses(description string) bool {
	return strings.Contains(strings.ToLower(description), "glasses")
}

// ChildrenCount returns the number in "N children" as written
func ChildrenCount(description string) (string, bool) {
	m := childrenPattern.FindStringSubmatch(strings.ToLower(description))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// CoauthoredWork returns what the description says was co-authored, lowercased
func CoauthoredWork(description string) (string, bool) {
	m := coauthoredPattern.FindStringSubmatch(strings.ToLower(description))
	if m == nil {
		return "", false
	}
	work := graph.CleanName(m[1])
	return work, work != ""
}

// EventPlaces returns capitalised place names following "in" or "at"
func EventPlaces(description string) []string {
	var places []string
	for _, m := range eventPlacePattern.FindAllStringSubmatch(description, -1) {
		places = append(places, m[1])
	}
	return places
}

// EventPeople returns capitalised first names following "met" or "with"
func EventPeople(description string) []string {
	var people []string
	for _, m := range eventPeoplePattern.FindAllStringSubmatch(description, -1) {
		people = append(people, m[1])
	}
	return people
}

// MessageCount parses "(N messages)" from a contact description
func MessageCount(description string) (int, bool) {
	m := messageCountPattern.FindStringSubmatch(description)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// MessagingConfidence grows with message volume and caps at 0.9
func MessagingConfidence(description string) float64 {
	n, ok := MessageCount(description)
	if !ok {
		return 0.9
	}
	c := 0.5 + float64(n)/100
	if c > 0.9 {
		return 0.9
	}
	return c
}

// PostMentions returns people tagged or mentioned in a post, deduplicated
// in order of appearance.
func PostMentions(text string) []string {
	var names []string
	for _, m := range postMentionPattern.FindAllStringSubmatch(text, -1) {
		names = append(names, m[1])
	}
	return graph.UniqueNames(names)
}

// PostLocations returns place names after "at", "in" or "visited"
func PostLocations(text string) []string {
	var places []string
	for _, m := range postPlacePattern.FindAllStringSubmatch(text, -1) {
		place := graph.CleanName(m[1])
		if len(place) > 2 && len(place) < 50 {
			places = append(places, place)
		}
	}
	return graph.UniqueNames(places)
}

// IsPlaceLike reports whether an interest name looks like a venue
func IsPlaceLike(interest string) bool {
	lower := strings.ToLower(interest)
	for _, kw := range placeKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// LifeEventPlace returns the place of a "Born on DATE in PLACE" style
// description. Unknown places yield nothing.
func LifeEventPlace(description string) (string, bool) {
	m := lifeEventPlacePattern.FindStringSubmatch(description)
	if m == nil {
		return "", false
	}
	place := strings.TrimRight(strings.TrimSpace(m[1]), ",")
	place = trailingPreposition.ReplaceAllString(place, "")
	if strings.EqualFold(place, "unknown place") || len(place) <= 2 || len(place) >= 100 {
		return "", false
	}
	return place, true
}

// FamilyPlaces returns places named in a relative's description such as
// "Father, born in Cork, Ireland"
func FamilyPlaces(description string) []string {
	var places []string
	for _, m := range familyPlacePattern.FindAllStringSubmatch(description, -1) {
		place := strings.TrimRight(strings.TrimSpace(m[1]), ", ")
		if len(place) > 2 && len(place) < 50 {
			places = append(places, place)
		}
	}
	return graph.UniqueNames(places)
}
