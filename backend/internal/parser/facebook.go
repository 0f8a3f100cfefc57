package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"lifegraph/backend/internal/constants"
	"lifegraph/backend/internal/record"
	apperrors "lifegraph/backend/pkg/errors"
)

// Limits on how much of an export becomes part of the record
const (
	maxPosts          = 50
	maxHashtags       = 10
	maxPostEvents     = 5
	maxLikedPages     = 20
	maxPlaces         = 10
	maxGroups         = 10
	frequentThreshold = 10
	postSnippetLength = 100
)

var (
	hashtagPattern    = regexp.MustCompile(`#(\w+)`)
	eventLikeKeywords = []string{"went to", "visited", "at ", "conference", "meeting", "party"}
)

// FacebookParser reads an extracted Facebook "Download your information"
// directory. Each sub-file is optional; a sub-file that fails to parse is
// logged and skipped.
type FacebookParser struct {
	settings
}

// NewFacebookParser creates a social-network export parser
func NewFacebookParser(opts ...Option) *FacebookParser {
	return &FacebookParser{settings: newSettings(opts)}
}

func (p *FacebookParser) Kind() Kind { return KindFacebook }

// exportSection reads one part of the export into rec
type exportSection struct {
	path  string
	parse func(path string, rec *record.PersonRecord) error
}

// Parse reads the export directory at dir
func (p *FacebookParser) Parse(ctx context.Context, dir string) (*record.PersonRecord, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, apperrors.NewSourceParseFailed(dir, err)
	}
	if !info.IsDir() {
		return nil, apperrors.NewSourceParseFailed(dir, fmt.Errorf("not an export directory"))
	}

	rec := record.New("Facebook User")
	rec.Metadata[constants.MetaSource] = constants.SourceFacebook
	rec.Metadata["export_date"] = p.clock().UTC().Format(time.RFC3339)
	rec.Metadata[constants.MetaExportPath] = dir

	// Profile first: the owner's name filters message participants
	sections := []exportSection{
		{"profile_information/profile_information.json", p.parseProfile},
		{"friends/friends.json", p.parseFriends},
		{"posts/your_posts_1.json", p.parsePosts},
		{"messages/inbox", p.parseMessages},
		{"likes_and_reactions/pages.json", p.parseLikedPages},
		{"events/your_events.json", p.parseEvents},
		{"places/places_you_ve_created.json", p.parsePlaces},
		{"groups/your_groups.json", p.parseGroups},
	}

	for _, s := range sections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		full := filepath.Join(dir, filepath.FromSlash(s.path))
		if _, err := os.Stat(full); err != nil {
			if s.path == "friends/friends.json" {
				p.warnOnFailure(full, p.parseFriendsHTML(dir, rec))
			}
			continue
		}
		p.warnOnFailure(full, s.parse(full, rec))
	}

	if rec.Name != "Facebook User" {
		rec.Metadata[constants.MetaProfileOwner] = rec.Name
	}

	p.logger.Info("Parsed Facebook export",
		zap.String("path", dir),
		zap.String("person", rec.Name),
		zap.Int("people", len(rec.People)),
		zap.Int("events", len(rec.Events)),
		zap.Int("interests", len(rec.Interests)),
	)
	return rec, nil
}

func (p *FacebookParser) warnOnFailure(path string, err error) {
	if err != nil {
		p.logger.Warn("Failed to parse export file, skipping",
			zap.String("path", path),
			zap.Error(err),
		)
	}
}

// ============================================================================
// Export file shapes
// ============================================================================

// named decodes either "Berlin" or {"name": "Berlin"}; exports use both
type named struct {
	Name string
}

func (n *named) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &n.Name)
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	n.Name = obj.Name
	return nil
}

type profileFile struct {
	Profile struct {
		Name struct {
			FullName string `json:"full_name"`
		} `json:"name"`
		PlacesLived []struct {
			Place named `json:"place"`
		} `json:"places_lived"`
		Work []struct {
			Employer named `json:"employer"`
			Position named `json:"position"`
			Start    int64 `json:"start_timestamp"`
			End      int64 `json:"end_timestamp"`
		} `json:"work"`
		Education []struct {
			School named `json:"school"`
		} `json:"education"`
	} `json:"profile_v2"`
}

type friendsFile struct {
	Friends []struct {
		Name      string `json:"name"`
		Timestamp int64  `json:"timestamp"`
	} `json:"friends_v2"`
}

type post struct {
	Timestamp int64 `json:"timestamp"`
	Data      []struct {
		Post string `json:"post"`
	} `json:"data"`
}

type postsFile struct {
	StatusUpdates []post `json:"status_updates_v2"`
	Posts         []post `json:"posts_v2"`
}

type messageThread struct {
	Participants []struct {
		Name string `json:"name"`
	} `json:"participants"`
	Messages []json.RawMessage `json:"messages"`
}

type namedList struct {
	PageLikes []named `json:"page_likes_v2"`
	Places    []named `json:"places_created_v2"`
	Groups    []named `json:"groups_v2"`
}

type eventsFile struct {
	Events []struct {
		Name  string `json:"name"`
		Start int64  `json:"start_timestamp"`
	} `json:"your_events_v2"`
}

func decodeJSONFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// ============================================================================
// Sections
// ============================================================================

func (p *FacebookParser) parseProfile(path string, rec *record.PersonRecord) error {
	var f profileFile
	if err := decodeJSONFile(path, &f); err != nil {
		return err
	}
	profile := f.Profile

	if profile.Name.FullName != "" {
		rec.Name = profile.Name.FullName
	}
	if len(profile.PlacesLived) > 0 && profile.PlacesLived[0].Place.Name != "" {
		rec.Location = profile.PlacesLived[0].Place.Name
	}

	for i, w := range profile.Work {
		if i == 0 {
			if w.Employer.Name != "" {
				rec.Workplace = w.Employer.Name
			}
			if w.Position.Name != "" {
				rec.Role = w.Position.Name
			}
		}
		if w.Employer.Name == "" {
			continue
		}
		position := w.Position.Name
		if position == "" {
			position = "Unknown"
		}
		rec.Workplaces = append(rec.Workplaces, record.Workplace{
			Company:  w.Employer.Name,
			Years:    formatDateRange(w.Start, w.End),
			Position: position,
		})
	}

	for _, edu := range profile.Education {
		if edu.School.Name == "" {
			continue
		}
		rec.Workplaces = append(rec.Workplaces, record.Workplace{
			Company:  edu.School.Name,
			Years:    "Education",
			Position: "Student",
		})
	}
	return nil
}

func (p *FacebookParser) parseFriends(path string, rec *record.PersonRecord) error {
	var f friendsFile
	if err := decodeJSONFile(path, &f); err != nil {
		return err
	}
	for _, friend := range f.Friends {
		if friend.Name == "" {
			continue
		}
		since := "Unknown"
		if friend.Timestamp != 0 {
			since = formatTimestamp(friend.Timestamp)
		}
		rec.People = append(rec.People, friendMention(friend.Name, since))
	}
	return nil
}

// parseFriendsHTML reads friends/*.html from exports downloaded in HTML
// format. Each list item is a friend; when the item has child elements the
// first one holds the name.
func (p *FacebookParser) parseFriendsHTML(dir string, rec *record.PersonRecord) error {
	pages, err := filepath.Glob(filepath.Join(dir, "friends", "*.html"))
	if err != nil || len(pages) == 0 {
		return err
	}
	sort.Strings(pages)

	for _, page := range pages {
		file, err := os.Open(page)
		if err != nil {
			return err
		}
		doc, err := goquery.NewDocumentFromReader(file)
		file.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(page), err)
		}

		doc.Find("li").Each(func(_ int, s *goquery.Selection) {
			name := strings.TrimSpace(s.Children().First().Text())
			if name == "" {
				name = strings.TrimSpace(s.Text())
			}
			if name == "" {
				return
			}
			rec.People = append(rec.People, friendMention(name, "Unknown"))
		})
	}
	return nil
}

func friendMention(name, since string) record.PersonMention {
	return record.PersonMention{
		Name:             name,
		Description:      "Facebook friend since " + since,
		RelationshipType: "facebook_friend",
		Source:           "facebook_friends",
	}
}

// parsePosts mines hashtags as interests and event-like posts as events.
// Newer exports store posts as a bare array.
func (p *FacebookParser) parsePosts(path string, rec *record.PersonRecord) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var posts []post
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &posts); err != nil {
			return err
		}
	} else {
		var f postsFile
		if err := json.Unmarshal(trimmed, &f); err != nil {
			return err
		}
		posts = append(f.StatusUpdates, f.Posts...)
	}
	if len(posts) > maxPosts {
		posts = posts[:maxPosts]
	}

	var hashtags []string
	seen := make(map[string]struct{})
	var events []record.EventMention

	for _, ps := range posts {
		if len(ps.Data) == 0 || ps.Data[0].Post == "" {
			continue
		}
		text := ps.Data[0].Post

		for _, m := range hashtagPattern.FindAllStringSubmatch(text, -1) {
			if _, dup := seen[m[1]]; dup {
				continue
			}
			seen[m[1]] = struct{}{}
			hashtags = append(hashtags, "#"+m[1])
		}

		if isEventLike(text) {
			date := "Unknown date"
			if ps.Timestamp != 0 {
				date = formatTimestamp(ps.Timestamp)
			}
			events = append(events, record.EventMention{
				Name:        "Facebook post from " + date,
				Description: snippet(text, postSnippetLength),
				Source:      "facebook_posts",
			})
		}
	}

	if len(hashtags) > maxHashtags {
		hashtags = hashtags[:maxHashtags]
	}
	if len(events) > maxPostEvents {
		events = events[:maxPostEvents]
	}
	rec.Interests = append(rec.Interests, hashtags...)
	rec.Events = append(rec.Events, events...)
	return nil
}

func isEventLike(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range eventLikeKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// parseMessages marks participants of busy threads as frequent contacts.
// Unreadable threads are skipped.
func (p *FacebookParser) parseMessages(inbox string, rec *record.PersonRecord) error {
	threads, err := os.ReadDir(inbox)
	if err != nil {
		return err
	}

	for _, thread := range threads {
		if !thread.IsDir() {
			continue
		}
		var t messageThread
		if err := decodeJSONFile(filepath.Join(inbox, thread.Name(), "message_1.json"), &t); err != nil {
			p.logger.Debug("Skipping message thread", zap.String("thread", thread.Name()), zap.Error(err))
			continue
		}
		if len(t.Messages) <= frequentThreshold {
			continue
		}
		for _, participant := range t.Participants {
			if participant.Name == "" || participant.Name == rec.Name {
				continue
			}
			rec.People = append(rec.People, record.PersonMention{
				Name:             participant.Name,
				Description:      fmt.Sprintf("Frequent Facebook messenger contact (%d messages)", len(t.Messages)),
				RelationshipType: "frequent_contact",
				Source:           "facebook_messages",
			})
		}
	}
	return nil
}

func (p *FacebookParser) parseLikedPages(path string, rec *record.PersonRecord) error {
	var f namedList
	if err := decodeJSONFile(path, &f); err != nil {
		return err
	}
	rec.Interests = append(rec.Interests, names(f.PageLikes, maxLikedPages, "")...)
	return nil
}

func (p *FacebookParser) parseEvents(path string, rec *record.PersonRecord) error {
	var f eventsFile
	if err := decodeJSONFile(path, &f); err != nil {
		return err
	}
	for _, ev := range f.Events {
		if ev.Name == "" {
			continue
		}
		date := "Unknown date"
		if ev.Start != 0 {
			date = formatTimestamp(ev.Start)
		}
		rec.Events = append(rec.Events, record.EventMention{
			Name:        ev.Name,
			Description: "Facebook event on " + date,
			Source:      "facebook_events",
		})
	}
	return nil
}

func (p *FacebookParser) parsePlaces(path string, rec *record.PersonRecord) error {
	var f namedList
	if err := decodeJSONFile(path, &f); err != nil {
		return err
	}
	rec.Interests = append(rec.Interests, names(f.Places, maxPlaces, "")...)
	return nil
}

func (p *FacebookParser) parseGroups(path string, rec *record.PersonRecord) error {
	var f namedList
	if err := decodeJSONFile(path, &f); err != nil {
		return err
	}
	rec.Interests = append(rec.Interests, names(f.Groups, maxGroups, "Facebook group: ")...)
	return nil
}

// names returns up to limit non-empty names from the head of items
func names(items []named, limit int, prefix string) []string {
	if len(items) > limit {
		items = items[:limit]
	}
	var out []string
	for _, it := range items {
		if it.Name != "" {
			out = append(out, prefix+it.Name)
		}
	}
	return out
}

// ============================================================================
// Formatting helpers
// ============================================================================

// formatTimestamp renders a unix timestamp as a UTC calendar date
func formatTimestamp(ts int64) string {
	if ts <= 0 {
		return "Unknown date"
	}
	return time.Unix(ts, 0).UTC().Format("2006-01-02")
}

func formatDateRange(start, end int64) string {
	switch {
	case start == 0 && end == 0:
		return "Unknown period"
	case start == 0:
		return "Unknown - " + formatTimestamp(end)
	case end == 0:
		return formatTimestamp(start) + " - Present"
	default:
		return formatTimestamp(start) + " - " + formatTimestamp(end)
	}
}

// snippet truncates text to n runes, marking the cut with "..."
func snippet(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
