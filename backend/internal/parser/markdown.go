package parser

import (
	"context"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"lifegraph/backend/internal/constants"
	"lifegraph/backend/internal/record"
)

type section string

const (
	sectionIdentity   section = "identity"
	sectionPeople     section = "people"
	sectionWorkplaces section = "workplaces"
	sectionEvents     section = "events"
	sectionInterests  section = "interests"
	sectionPhrases    section = "phrases"
)

// headings maps the lowercased heading text (after any emoji) to a section
var headings = []struct {
	prefix string
	sec    section
}{
	{"identity", sectionIdentity},
	{"people", sectionPeople},
	{"workplaces", sectionWorkplaces},
	{"events", sectionEvents},
	{"interests", sectionInterests},
	{"phrases", sectionPhrases},
}

// MarkdownParser reads personal memory files laid out as "## Section"
// blocks of "- " list items.
type MarkdownParser struct {
	settings
}

// NewMarkdownParser creates a markdown memory file parser
func NewMarkdownParser(opts ...Option) *MarkdownParser {
	return &MarkdownParser{settings: newSettings(opts)}
}

func (p *MarkdownParser) Kind() Kind { return KindMarkdown }

// Parse reads the file at path
func (p *MarkdownParser) Parse(ctx context.Context, path string) (*record.PersonRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}

	rec := p.ParseContent(string(data))
	rec.Metadata[constants.MetaFilePath] = path

	p.logger.Debug("Parsed markdown memory file",
		zap.String("path", path),
		zap.String("person", rec.Name),
		zap.Int("people", len(rec.People)),
		zap.Int("events", len(rec.Events)),
	)
	return rec, nil
}

// ParseContent parses markdown text. Unknown sections and lines outside a
// section are ignored; a file without an identity name yields "Unknown".
func (p *MarkdownParser) ParseContent(content string) *record.PersonRecord {
	rec := record.New("Unknown")
	rec.Metadata[constants.MetaSource] = constants.SourceMarkdown

	var current section
	for _, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)
		if sec, ok := identifySection(line); ok {
			current = sec
			continue
		}
		if current == "" || !strings.HasPrefix(line, "- ") {
			continue
		}
		item := strings.TrimSpace(line[2:])

		switch current {
		case sectionIdentity:
			parseIdentity(line, rec)
		case sectionPeople:
			if name, desc, ok := strings.Cut(item, ":"); ok {
				rec.People = append(rec.People, record.PersonMention{
					Name:        strings.TrimSpace(name),
					Description: strings.TrimSpace(desc),
				})
			}
		case sectionWorkplaces:
			company, years, ok := splitParenthesised(item)
			if !ok {
				company, years = item, "Unknown"
			}
			rec.Workplaces = append(rec.Workplaces, record.Workplace{Company: company, Years: years})
		case sectionEvents:
			name, desc, ok := strings.Cut(item, "→")
			if !ok {
				rec.Events = append(rec.Events, record.EventMention{Name: item})
				continue
			}
			rec.Events = append(rec.Events, record.EventMention{
				Name:        strings.Trim(strings.TrimSpace(name), `"`),
				Description: strings.TrimSpace(desc),
			})
		case sectionInterests:
			for _, interest := range strings.Split(item, ",") {
				if interest = strings.TrimSpace(interest); interest != "" {
					rec.Interests = append(rec.Interests, interest)
				}
			}
		case sectionPhrases:
			if phrase := strings.Trim(item, `"`); phrase != "" {
				rec.Phrases = append(rec.Phrases, phrase)
			}
		}
	}
	return rec
}

// identifySection recognises "## <emoji> Title" headings
func identifySection(line string) (section, bool) {
	if !strings.HasPrefix(line, "##") {
		return "", false
	}
	title := strings.TrimLeftFunc(strings.TrimPrefix(line, "##"), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	title = strings.ToLower(title)
	for _, h := range headings {
		if strings.HasPrefix(title, h.prefix) {
			return h.sec, true
		}
	}
	return "", false
}

func parseIdentity(line string, rec *record.PersonRecord) {
	switch {
	case strings.HasPrefix(line, "- Name:"):
		rec.Name = strings.TrimSpace(strings.TrimPrefix(line, "- Name:"))
	case strings.HasPrefix(line, "- Pronouns:"):
		rec.Pronouns = strings.TrimSpace(strings.TrimPrefix(line, "- Pronouns:"))
	case strings.HasPrefix(line, "- Lives in:"):
		rec.Location = strings.TrimSpace(strings.TrimPrefix(line, "- Lives in:"))
	case strings.HasPrefix(line, "- Works at:"):
		info := strings.TrimSpace(strings.TrimPrefix(line, "- Works at:"))
		if company, role, ok := splitParenthesised(info); ok {
			rec.Workplace, rec.Role = company, role
		} else {
			rec.Workplace = info
		}
	}
}

// splitParenthesised splits "Outer (inner)" into its two parts
func splitParenthesised(s string) (string, string, bool) {
	open := strings.Index(s, "(")
	if open < 0 || !strings.Contains(s[open:], ")") {
		return "", "", false
	}
	outer := strings.TrimSpace(s[:open])
	inner := s[open+1:]
	if end := strings.Index(inner, ")"); end >= 0 {
		inner = inner[:end]
	}
	return outer, strings.TrimSpace(inner), true
}
