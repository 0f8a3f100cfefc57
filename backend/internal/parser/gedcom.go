package parser

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"lifegraph/backend/internal/constants"
	"lifegraph/backend/internal/graph"
	"lifegraph/backend/internal/record"
	apperrors "lifegraph/backend/pkg/errors"
)

const maxFamilyPlaces = 5

var surnameSlashes = regexp.MustCompile(`/([^/]+)/`)

// lifeEvent is a dated, placed event such as BIRT, DEAT or MARR
type lifeEvent struct {
	Date  string
	Place string
}

type individual struct {
	ID             string
	Name           string
	Sex            string
	Birth          *lifeEvent
	Death          *lifeEvent
	SpouseFamilies []string
	ChildFamily    string
	AKA            []string
}

// preferredName is the first AKA when present, else the formal name
func (i *individual) preferredName() string {
	if len(i.AKA) > 0 {
		return i.AKA[0]
	}
	if i.Name == "" {
		return "Unknown Person"
	}
	return i.Name
}

type family struct {
	ID       string
	Husband  string
	Wife     string
	Children []string
	Marriage *lifeEvent
}

// familyTree holds one parsed file, in file order
type familyTree struct {
	individuals map[string]*individual
	families    map[string]*family
	order       []string
}

// GedcomParser reads genealogical record files and builds the record of one
// focus person from their family tree.
type GedcomParser struct {
	settings
}

// NewGedcomParser creates a GEDCOM parser. WithFocusPerson picks the person;
// without it the first individual in the file is used.
func NewGedcomParser(opts ...Option) *GedcomParser {
	return &GedcomParser{settings: newSettings(opts)}
}

func (p *GedcomParser) Kind() Kind { return KindAncestry }

// Parse reads the file at path. The tree is built fresh on every call.
func (p *GedcomParser) Parse(ctx context.Context, path string) (*record.PersonRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}

	tree, err := parseTree(data)
	if err != nil {
		return nil, apperrors.NewSourceParseFailed(path, err)
	}

	focus := tree.findFocus(p.focusPerson)
	if focus == nil {
		rec := record.New("Unknown Person")
		tree.stamp(rec, path, nil)
		p.logger.Warn("Family tree has no individuals", zap.String("path", path))
		return rec, nil
	}

	rec := tree.buildRecord(focus)
	tree.stamp(rec, path, focus)

	p.logger.Info("Parsed family tree",
		zap.String("path", path),
		zap.String("focus_person", focus.Name),
		zap.Int("individuals", len(tree.individuals)),
		zap.Int("families", len(tree.families)),
		zap.Int("relatives", len(rec.People)),
	)
	return rec, nil
}

// ============================================================================
// Line parsing
// ============================================================================

// treeBuilder tracks the record and sub-structure the current line belongs to
type treeBuilder struct {
	tree   *familyTree
	indi   *individual
	fam    *family
	event  *lifeEvent
	inAKA  bool
	inFact bool
}

func parseTree(data []byte) (*familyTree, error) {
	b := &treeBuilder{tree: &familyTree{
		individuals: make(map[string]*individual),
		families:    make(map[string]*family),
	}}

	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(strings.ToValidUTF8(scanner.Text(), ""))
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, " ", 3)
		if len(parts) < 2 {
			continue
		}
		level, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}
		value := ""
		if len(parts) == 3 {
			value = parts[2]
		}
		b.line(level, parts[1], value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading records: %w", err)
	}
	return b.tree, nil
}

func (b *treeBuilder) line(level int, tag, value string) {
	switch level {
	case 0:
		b.indi, b.fam, b.event = nil, nil, nil
		b.inAKA, b.inFact = false, false
		if !isPointer(tag) {
			return
		}
		id := stripPointer(tag)
		switch value {
		case "INDI":
			b.indi = &individual{ID: id}
			b.tree.individuals[id] = b.indi
			b.tree.order = append(b.tree.order, id)
		case "FAM":
			b.fam = &family{ID: id}
			b.tree.families[id] = b.fam
		}
	case 1:
		b.event = nil
		b.inAKA, b.inFact = false, false
		switch {
		case b.indi != nil:
			b.individualTag(tag, value)
		case b.fam != nil:
			b.familyTag(tag, value)
		}
	case 2:
		b.detailTag(tag, value)
	}
}

func (b *treeBuilder) individualTag(tag, value string) {
	switch tag {
	case "NAME":
		if b.indi.Name == "" {
			b.indi.Name = cleanName(value)
		}
	case "SEX":
		b.indi.Sex = strings.ToUpper(strings.TrimSpace(value))
	case "BIRT":
		if b.indi.Birth == nil {
			b.indi.Birth = &lifeEvent{}
			b.event = b.indi.Birth
		}
	case "DEAT":
		if b.indi.Death == nil {
			b.indi.Death = &lifeEvent{}
			b.event = b.indi.Death
		}
	case "FACT":
		b.inFact = true
	case "FAMS":
		b.indi.SpouseFamilies = append(b.indi.SpouseFamilies, stripPointer(value))
	case "FAMC":
		if b.indi.ChildFamily == "" {
			b.indi.ChildFamily = stripPointer(value)
		}
	}
}

func (b *treeBuilder) familyTag(tag, value string) {
	switch tag {
	case "HUSB":
		b.fam.Husband = stripPointer(value)
	case "WIFE":
		b.fam.Wife = stripPointer(value)
	case "CHIL":
		b.fam.Children = append(b.fam.Children, stripPointer(value))
	case "MARR":
		if b.fam.Marriage == nil {
			b.fam.Marriage = &lifeEvent{}
			b.event = b.fam.Marriage
		}
	}
}

func (b *treeBuilder) detailTag(tag, value string) {
	switch tag {
	case "DATE":
		if b.event != nil && b.event.Date == "" {
			b.event.Date = strings.TrimSpace(value)
		}
	case "PLAC":
		if b.event != nil && b.event.Place == "" {
			b.event.Place = strings.TrimSpace(value)
		}
	case "TYPE":
		b.inAKA = b.inFact && strings.EqualFold(strings.TrimSpace(value), "AKA")
	case "NOTE":
		if b.inAKA && b.indi != nil {
			if aka := strings.TrimSpace(value); aka != "" {
				b.indi.AKA = append(b.indi.AKA, aka)
			}
			b.inAKA, b.inFact = false, false
		}
	}
}

func isPointer(s string) bool {
	return len(s) > 2 && strings.HasPrefix(s, "@") && strings.HasSuffix(s, "@")
}

func stripPointer(s string) string {
	s = strings.TrimSpace(s)
	if isPointer(s) {
		return s[1 : len(s)-1]
	}
	return s
}

// cleanName drops the slashes GEDCOM puts around surnames
func cleanName(name string) string {
	return strings.Join(strings.Fields(surnameSlashes.ReplaceAllString(name, "$1")), " ")
}

// ============================================================================
// Focus person and record building
// ============================================================================

// findFocus returns the first individual, in file order, whose name equals
// focus or contains all its words; failing that, the first containing any
// word; failing that, the first individual.
func (t *familyTree) findFocus(focus string) *individual {
	if len(t.order) == 0 {
		return nil
	}

	if focus = strings.ToLower(strings.TrimSpace(focus)); focus != "" {
		words := strings.Fields(focus)
		for _, id := range t.order {
			name := strings.ToLower(t.individuals[id].Name)
			if name == focus || containsAll(name, words) {
				return t.individuals[id]
			}
		}
		for _, id := range t.order {
			if containsAny(strings.ToLower(t.individuals[id].Name), words) {
				return t.individuals[id]
			}
		}
	}
	return t.individuals[t.order[0]]
}

func containsAll(s string, words []string) bool {
	for _, w := range words {
		if !strings.Contains(s, w) {
			return false
		}
	}
	return true
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func (t *familyTree) person(id string) *individual {
	if id == "" {
		return nil
	}
	return t.individuals[id]
}

// parents returns the father and mother of i, either may be nil
func (t *familyTree) parents(i *individual) []*individual {
	fam := t.families[i.ChildFamily]
	if fam == nil {
		return nil
	}
	var out []*individual
	for _, id := range []string{fam.Husband, fam.Wife} {
		if p := t.person(id); p != nil {
			out = append(out, p)
		}
	}
	return out
}

func (t *familyTree) siblings(i *individual) []*individual {
	fam := t.families[i.ChildFamily]
	if fam == nil {
		return nil
	}
	var out []*individual
	for _, id := range fam.Children {
		if c := t.person(id); c != nil && c.ID != i.ID {
			out = append(out, c)
		}
	}
	return out
}

func (t *familyTree) children(i *individual) []*individual {
	var out []*individual
	for _, famID := range i.SpouseFamilies {
		fam := t.families[famID]
		if fam == nil {
			continue
		}
		for _, id := range fam.Children {
			if c := t.person(id); c != nil {
				out = append(out, c)
			}
		}
	}
	return out
}

// relativeAdder appends each relative once, first relationship wins
type relativeAdder struct {
	rec         *record.PersonRecord
	seen        map[string]struct{}
	birthPlaces []string
}

func (a *relativeAdder) add(rel *individual, kind, label string) {
	if _, dup := a.seen[rel.ID]; dup {
		return
	}
	a.seen[rel.ID] = struct{}{}

	desc := label
	if rel.Birth != nil && rel.Birth.Place != "" {
		desc += ", born in " + rel.Birth.Place
		a.birthPlaces = append(a.birthPlaces, rel.Birth.Place)
	}
	a.rec.People = append(a.rec.People, record.PersonMention{
		Name:             rel.preferredName(),
		Description:      desc,
		RelationshipType: kind,
		Source:           constants.SourceGenealogy,
	})
}

func (t *familyTree) buildRecord(focus *individual) *record.PersonRecord {
	name := focus.Name
	if name == "" {
		name = "Unknown Person"
	}
	rec := record.New(name)
	if focus.Birth != nil && focus.Birth.Place != "" {
		rec.Location = focus.Birth.Place
	}

	a := &relativeAdder{rec: rec, seen: map[string]struct{}{focus.ID: {}}}

	parents := t.parents(focus)
	for _, parent := range parents {
		a.add(parent, "parent", bySex(parent, "Father", "Mother", "Parent"))
	}
	siblings := t.siblings(focus)
	for _, sib := range siblings {
		a.add(sib, "sibling", bySex(sib, "Brother", "Sister", "Sibling"))
	}

	for _, famID := range focus.SpouseFamilies {
		fam := t.families[famID]
		if fam == nil {
			continue
		}
		spouseID := fam.Wife
		if fam.Wife == focus.ID {
			spouseID = fam.Husband
		} else if fam.Husband != focus.ID {
			spouseID = ""
		}
		if spouse := t.person(spouseID); spouse != nil {
			a.add(spouse, "spouse", bySex(spouse, "Husband", "Wife", "Spouse"))
		}
	}
	children := t.children(focus)
	for _, child := range children {
		a.add(child, "child", bySex(child, "Son", "Daughter", "Child"))
	}

	// Extended family
	var auntsUncles []*individual
	for _, parent := range parents {
		for _, gp := range t.parents(parent) {
			a.add(gp, "grandparent", bySex(gp, "Grandfather", "Grandmother", "Grandparent"))
		}
		auntsUncles = append(auntsUncles, t.siblings(parent)...)
	}
	for _, child := range children {
		for _, gc := range t.children(child) {
			a.add(gc, "grandchild", bySex(gc, "Grandson", "Granddaughter", "Grandchild"))
		}
	}
	for _, au := range auntsUncles {
		a.add(au, "aunt_uncle", bySex(au, "Uncle", "Aunt", "Aunt or uncle"))
	}
	for _, sib := range siblings {
		for _, nn := range t.children(sib) {
			a.add(nn, "niece_nephew", bySex(nn, "Nephew", "Niece", "Niece or nephew"))
		}
	}
	for _, au := range auntsUncles {
		for _, cousin := range t.children(au) {
			a.add(cousin, "cousin", "Cousin")
		}
	}

	t.lifeEvents(focus, rec)
	t.familyPlaces(focus, rec, a.birthPlaces)
	return rec
}

func bySex(i *individual, male, female, unknown string) string {
	switch i.Sex {
	case "M":
		return male
	case "F":
		return female
	default:
		return unknown
	}
}

func describeEvent(verb string, ev *lifeEvent) string {
	date, place := ev.Date, ev.Place
	if date == "" {
		date = "Unknown date"
	}
	if place == "" {
		place = "Unknown place"
	}
	return fmt.Sprintf("%s on %s in %s", verb, date, place)
}

func (t *familyTree) lifeEvents(focus *individual, rec *record.PersonRecord) {
	if focus.Birth != nil {
		rec.Events = append(rec.Events, record.EventMention{
			Name:        "Birth of " + rec.Name,
			Description: describeEvent("Born", focus.Birth),
			Source:      constants.SourceGenealogy,
		})
	}
	if focus.Death != nil {
		rec.Events = append(rec.Events, record.EventMention{
			Name:        "Death of " + rec.Name,
			Description: describeEvent("Died", focus.Death),
			Source:      constants.SourceGenealogy,
		})
	}
	for _, famID := range focus.SpouseFamilies {
		fam := t.families[famID]
		if fam == nil || fam.Marriage == nil {
			continue
		}
		name := "Marriage of " + rec.Name
		spouseID := fam.Wife
		if fam.Wife == focus.ID {
			spouseID = fam.Husband
		}
		if spouse := t.person(spouseID); spouse != nil && spouse.ID != focus.ID {
			name += " and " + spouse.preferredName()
		}
		rec.Events = append(rec.Events, record.EventMention{
			Name:        name,
			Description: describeEvent("Married", fam.Marriage),
			Source:      constants.SourceGenealogy,
		})
	}
}

// familyPlaces records up to five distinct places tied to the focus person
// or their relatives, in the order they were encountered.
func (t *familyTree) familyPlaces(focus *individual, rec *record.PersonRecord, relativePlaces []string) {
	var places []string
	addPlace := func(ev *lifeEvent) {
		if ev != nil && ev.Place != "" {
			places = append(places, ev.Place)
		}
	}

	addPlace(focus.Birth)
	addPlace(focus.Death)
	for _, famID := range focus.SpouseFamilies {
		if fam := t.families[famID]; fam != nil {
			addPlace(fam.Marriage)
		}
	}
	places = append(places, relativePlaces...)

	places = graph.UniqueNames(places)
	if len(places) > maxFamilyPlaces {
		places = places[:maxFamilyPlaces]
	}
	for _, place := range places {
		rec.Interests = append(rec.Interests, "Family connection to "+place)
	}
}

func (t *familyTree) stamp(rec *record.PersonRecord, path string, focus *individual) {
	rec.Metadata[constants.MetaSource] = constants.SourceGenealogy
	rec.Metadata[constants.MetaFilePath] = path
	rec.Metadata[constants.MetaIndividuals] = len(t.individuals)
	rec.Metadata[constants.MetaFamilies] = len(t.families)
	if focus != nil {
		rec.Metadata[constants.MetaFocusPerson] = focus.ID
	}
}
