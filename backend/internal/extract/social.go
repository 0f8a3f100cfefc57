package extract

import (
	"strings"

	"go.uber.org/zap"

	"lifegraph/backend/internal/constants"
	"lifegraph/backend/internal/graph"
	"lifegraph/backend/internal/record"
)

const groupPrefix = "Facebook group:"

// SocialExtractor handles records parsed from a social-network export.
// Friendships become friendsWith, message threads become messaged, posts
// become Post entities.
type SocialExtractor struct {
	base
}

// NewSocialExtractor creates a social-network extractor
func NewSocialExtractor(opts ...Option) *SocialExtractor {
	return &SocialExtractor{base: newBase(opts)}
}

func (e *SocialExtractor) Name() string { return "social" }

// Extract builds the graph fragment for rec
func (e *SocialExtractor) Extract(rec *record.PersonRecord) (*graph.KnowledgeGraph, error) {
	props := identityProperties(rec)
	props["source"] = constants.SourceFacebook

	s, err := e.begin(rec, props)
	if err != nil {
		return nil, err
	}

	identityTriplets(s, rec)
	e.contacts(s, rec)
	e.workplaces(s, rec)
	e.events(s, rec)
	e.interests(s, rec)
	e.posts(s, rec)

	kg := s.finish(rec, constants.SourceFacebook)
	e.logger.Debug("Social extraction complete",
		zap.String("person", rec.Name),
		zap.Int("entities", kg.EntityCount()),
		zap.Int("triplets", kg.TripletCount()),
	)
	return kg, nil
}

func (e *SocialExtractor) contacts(s *session, rec *record.PersonRecord) {
	for _, p := range rec.People {
		otherID := s.entity(p.Name, graph.EntityPerson)
		source := p.Source
		if source == "" {
			source = constants.SourceFacebook
		}

		switch p.RelationshipType {
		case "facebook_friend":
			s.relate(s.rootID, graph.RelFriendsWith, otherID, constants.ConfidenceStructural, source)
		case "frequent_contact":
			s.relate(s.rootID, graph.RelMessaged, otherID, MessagingConfidence(p.Description), source)
			s.relate(s.rootID, graph.RelKnows, otherID, constants.ConfidenceSocialFriend, source)
		default:
			s.relate(s.rootID, graph.RelKnows, otherID, constants.ConfidenceStructural, source)
		}
	}
}

func (e *SocialExtractor) workplaces(s *session, rec *record.PersonRecord) {
	for _, w := range rec.Workplaces {
		companyID := s.entity(w.Company, graph.EntityOrganization)
		confidence := 0.9
		if w.Years == "Education" {
			confidence = 0.7
		}
		s.relate(s.rootID, graph.RelWorksAt, companyID, confidence, "facebook_profile")

		if w.Position != "" && w.Position != "Unknown" {
			s.relate(s.rootID, graph.RelHasRole, s.entity(w.Position, graph.EntityRole), constants.ConfidenceStructural, "facebook_profile")
		}
	}
}

func (e *SocialExtractor) events(s *session, rec *record.PersonRecord) {
	for _, ev := range rec.Events {
		if ev.Source == "facebook_posts" {
			s.relate(s.rootID, graph.RelPosted, s.entity(ev.Name, graph.EntityPost), constants.ConfidenceStructural, ev.Source)
			continue
		}
		source := ev.Source
		if source == "" {
			source = "facebook_events"
		}
		s.relate(s.rootID, graph.RelAttendedEvent, s.entity(ev.Name, graph.EntityEvent), constants.ConfidenceStructural, source)
	}
}

func (e *SocialExtractor) interests(s *session, rec *record.PersonRecord) {
	for _, interest := range rec.Interests {
		switch {
		case strings.HasPrefix(interest, groupPrefix):
			name := strings.TrimSpace(strings.TrimPrefix(interest, groupPrefix))
			if name == "" {
				continue
			}
			s.relate(s.rootID, graph.RelMemberOf, s.entity(name, graph.EntityGroup), constants.ConfidenceStructural, "facebook_groups")
		case strings.HasPrefix(interest, "#"):
			s.relate(s.rootID, graph.RelHasInterest, s.entity(interest, graph.EntityInterest), constants.ConfidenceStructural, "facebook_posts")
		default:
			s.relate(s.rootID, graph.RelHasInterest, s.entity(interest, graph.EntityInterest), constants.ConfidenceStructural, "facebook_likes")
			if IsPlaceLike(interest) {
				// Same name, so the identity cache hands back the Interest entity
				s.relate(s.rootID, graph.RelCheckedInAt, s.entity(interest, graph.EntityPlace), 0.7, "facebook_places")
			}
		}
	}
}

// posts mines post text for mentioned people and visited places
func (e *SocialExtractor) posts(s *session, rec *record.PersonRecord) {
	for _, ev := range rec.Events {
		if ev.Source != "facebook_posts" {
			continue
		}
		for _, name := range PostMentions(ev.Description) {
			s.relate(s.rootID, graph.RelKnows, s.entity(name, graph.EntityPerson), constants.ConfidencePostMention, "facebook_post_mentions")
		}
		for _, place := range PostLocations(ev.Description) {
			s.relate(s.rootID, graph.RelCheckedInAt, s.entity(place, graph.EntityPlace), constants.ConfidencePostMention, "facebook_post_locations")
		}
	}
}
